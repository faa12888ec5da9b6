package plugins

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
)

// LoadResult reports the outcome of one load attempt.
type LoadResult struct {
	Success  bool     `json:"success"            yaml:"success"`
	PluginID string   `json:"pluginId,omitempty" yaml:"pluginId,omitempty"`
	Source   string   `json:"source,omitempty"   yaml:"source,omitempty"`
	Errors   []string `json:"errors,omitempty"   yaml:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// NewLoadResult starts a result for source.
func NewLoadResult(source string) *LoadResult {
	return &LoadResult{Source: source}
}

// Fail records err and returns it so loaders can `return res, res.Fail(err)`.
func (r *LoadResult) Fail(err error) error {
	r.Success = false
	r.Errors = append(r.Errors, err.Error())

	return err
}

// Warnf appends a warning.
func (r *LoadResult) Warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Succeed marks the load successful for id.
func (r *LoadResult) Succeed(id string) {
	r.Success = true
	r.PluginID = id
}

// Log writes the outcome to the global logger.
func (r *LoadResult) Log(backend string) {
	for _, w := range r.Warnings {
		log.Warn().
			Str("event", "plugin_load_warning").
			Str("backend", backend).
			Str("plugin_id", r.PluginID).
			Str("path", r.Source).
			Msg(w)
	}

	if !r.Success {
		log.Error().
			Str("event", "plugin_load_failed").
			Str("backend", backend).
			Str("path", r.Source).
			Strs("errors", r.Errors).
			Msg("plugin load failed")

		return
	}

	log.Info().
		Str("event", "plugin_loaded").
		Str("backend", backend).
		Str("plugin_id", r.PluginID).
		Str("path", r.Source).
		Msg("plugin loaded")
}

// LoadDir applies load to every accepted regular file in dir, in name order,
// and logs each outcome. A missing directory yields no results.
func LoadDir(
	ctx context.Context,
	backend string,
	dir string,
	accept func(string) bool,
	load func(context.Context, string) (*LoadResult, error),
) ([]*LoadResult, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var results []*LoadResult
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() || !accept(path) {
			continue
		}
		res, _ := load(ctx, path)
		res.Log(backend)
		results = append(results, res)
	}

	return results, nil
}
