package dispatch

import (
	"context"
	"sort"
	"sync"

	"github.com/andrei-cloud/go_ayoto/internal/manifest"
	"github.com/andrei-cloud/go_ayoto/pkg/media"
	"golang.org/x/sync/errgroup"
)

// DefaultSearchConcurrency bounds SearchAll when no limit is given.
const DefaultSearchConcurrency = 8

// SearchResult is the outcome of one plugin in a fan-out search.
type SearchResult struct {
	Target Target           `json:"target"`
	List   *media.AnimeList `json:"list,omitempty"`
	Err    error            `json:"-"`
}

// SearchAll runs Search on every enabled search-capable plugin of every
// backend. Plugin failures are reported per result and never cancel the
// other searches. Results are ordered by target.
func (d *Dispatcher) SearchAll(ctx context.Context, query string, page uint32, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = DefaultSearchConcurrency
	}

	var targets []Target
	for _, b := range d.backends {
		for _, id := range b.CapableIDs(manifest.CapSearch) {
			targets = append(targets, Target{Backend: b.Name(), PluginID: id})
		}
	}

	var (
		mu      sync.Mutex
		results = make([]SearchResult, 0, len(targets))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, t := range targets {
		g.Go(func() error {
			list, err := d.Search(gctx, t, query, page)

			mu.Lock()
			results = append(results, SearchResult{Target: t, List: list, Err: err})
			mu.Unlock()

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Target.String() < results[j].Target.String() })

	return results, ctx.Err()
}
