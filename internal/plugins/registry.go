// Package plugins holds the backend-neutral plugin registry shared by the
// native, WASM and catalog backends.
package plugins

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
	"github.com/andrei-cloud/go_ayoto/internal/manifest"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handle is the backend resource owned by a record.
type Handle interface {
	// Close quiesces the plugin and releases its resources.
	Close(ctx context.Context) error
}

// DispatchMode selects the lock taken while a plugin call runs.
type DispatchMode int

const (
	// SharedDispatch lets calls run concurrently under the read lock.
	SharedDispatch DispatchMode = iota
	// ExclusiveDispatch serialises calls under the write lock.
	ExclusiveDispatch
)

func (m DispatchMode) String() string {
	if m == ExclusiveDispatch {
		return "exclusive"
	}

	return "shared"
}

// Record is a loaded plugin.
type Record[H Handle] struct {
	Manifest      *manifest.Manifest
	Enabled       bool
	Handle        H
	LoadedAt      time.Time
	LoadID        uuid.UUID
	Source        string
	Compatibility manifest.CompatibilityReport
	LastError     string
}

// NewRecord builds an enabled record stamped with a fresh load id.
func NewRecord[H Handle](
	m *manifest.Manifest,
	h H,
	source string,
	report manifest.CompatibilityReport,
) *Record[H] {
	return &Record[H]{
		Manifest:      m,
		Enabled:       true,
		Handle:        h,
		LoadedAt:      time.Now(),
		LoadID:        uuid.New(),
		Source:        source,
		Compatibility: report,
	}
}

// Registry maps plugin ids to records for one backend.
type Registry[H Handle] struct {
	name    string
	mode    DispatchMode
	mu      sync.RWMutex
	records map[string]*Record[H]
	closed  bool
}

// NewRegistry creates an empty registry.
func NewRegistry[H Handle](name string, mode DispatchMode) *Registry[H] {
	return &Registry[H]{
		name:    name,
		mode:    mode,
		records: make(map[string]*Record[H]),
	}
}

// Name returns the backend name.
func (r *Registry[H]) Name() string { return r.name }

// Mode returns the dispatch locking mode.
func (r *Registry[H]) Mode() DispatchMode { return r.mode }

func (r *Registry[H]) closedErr() error {
	return errorcodes.ErrLockFailure.Withf("%s registry is closed", r.name)
}

// Insert stores rec, replacing and closing any record with the same id.
// It reports whether a record was replaced.
func (r *Registry[H]) Insert(ctx context.Context, rec *Record[H]) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false, r.closedErr()
	}

	id := rec.Manifest.ID
	old, replaced := r.records[id]
	r.records[id] = rec

	if replaced {
		if err := old.Handle.Close(ctx); err != nil {
			log.Warn().
				Err(err).
				Str("event", "plugin_evict").
				Str("backend", r.name).
				Str("plugin_id", id).
				Msg("failed to release replaced plugin")
		}
	}

	return replaced, nil
}

// Contains reports whether id is loaded.
func (r *Registry[H]) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.records[id]

	return ok
}

// Unload removes id and releases its handle.
func (r *Registry[H]) Unload(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return r.closedErr()
	}

	rec, ok := r.records[id]
	if !ok {
		return errorcodes.ErrNotFound.Withf("plugin '%s' not found in %s registry", id, r.name)
	}
	delete(r.records, id)

	if err := rec.Handle.Close(ctx); err != nil {
		return fmt.Errorf("unload %s: %w", id, err)
	}

	return nil
}

// Get returns a copy of the record for id.
func (r *Registry[H]) Get(id string) (Record[H], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return Record[H]{}, r.closedErr()
	}

	rec, ok := r.records[id]
	if !ok {
		return Record[H]{}, errorcodes.ErrNotFound.Withf("plugin '%s' not found in %s registry", id, r.name)
	}

	return *rec, nil
}

// Len returns the number of loaded plugins.
func (r *Registry[H]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.records)
}

// filter returns copies of the records accepted by keep, sorted by id.
func (r *Registry[H]) filter(keep func(*Record[H]) bool) []Record[H] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record[H], 0, len(r.records))
	for _, rec := range r.records {
		if keep(rec) {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Manifest.ID < out[j].Manifest.ID })

	return out
}

// GetAll returns every record.
func (r *Registry[H]) GetAll() []Record[H] {
	return r.filter(func(*Record[H]) bool { return true })
}

// GetEnabled returns the enabled records.
func (r *Registry[H]) GetEnabled() []Record[H] {
	return r.filter(func(rec *Record[H]) bool { return rec.Enabled })
}

// GetByCapability returns enabled records declaring c.
func (r *Registry[H]) GetByCapability(c manifest.Capability) []Record[H] {
	return r.filter(func(rec *Record[H]) bool {
		return rec.Enabled && rec.Manifest.Capabilities.Has(c)
	})
}

// GetByFormat returns enabled records that can produce the stream format.
func (r *Registry[H]) GetByFormat(format string) []Record[H] {
	return r.filter(func(rec *Record[H]) bool {
		return rec.Enabled && rec.Manifest.SupportsFormat(format)
	})
}

// GetByType returns enabled records of the given plugin category.
func (r *Registry[H]) GetByType(t manifest.PluginType) []Record[H] {
	return r.filter(func(rec *Record[H]) bool {
		return rec.Enabled && rec.Manifest.PluginType == t
	})
}

// FindBySource returns the ids of records loaded from source.
func (r *Registry[H]) FindBySource(source string) []string {
	return ids(r.filter(func(rec *Record[H]) bool { return rec.Source == source }))
}

// CapableIDs returns the ids of enabled records declaring c.
func (r *Registry[H]) CapableIDs(c manifest.Capability) []string {
	return ids(r.GetByCapability(c))
}

func ids[H Handle](recs []Record[H]) []string {
	out := make([]string, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Manifest.ID)
	}

	return out
}

// SetEnabled toggles dispatch for id.
func (r *Registry[H]) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return r.closedErr()
	}

	rec, ok := r.records[id]
	if !ok {
		return errorcodes.ErrNotFound.Withf("plugin '%s' not found in %s registry", id, r.name)
	}
	rec.Enabled = enabled

	return nil
}

// Dispatch resolves id, checks enablement and capability, then runs fn
// under the lock selected by the registry mode. A panic inside fn becomes
// ErrGuestExecution.
func (r *Registry[H]) Dispatch(id string, c manifest.Capability, fn func(rec *Record[H]) error) error {
	if r.mode == ExclusiveDispatch {
		r.mu.Lock()
		defer r.mu.Unlock()
	} else {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}

	if r.closed {
		return r.closedErr()
	}

	rec, ok := r.records[id]
	if !ok {
		return errorcodes.ErrNotFound.Withf("plugin '%s' not found in %s registry", id, r.name)
	}
	if !rec.Enabled {
		return errorcodes.ErrDisabled.Withf("plugin '%s' is disabled", id)
	}
	if !rec.Manifest.Capabilities.Has(c) {
		return errorcodes.ErrCapabilityUnsupported.Withf("plugin '%s' does not support %s", id, c)
	}

	return invoke(rec, fn)
}

func invoke[H Handle](rec *Record[H], fn func(rec *Record[H]) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errorcodes.ErrGuestExecution.Withf("plugin '%s' panicked: %v", rec.Manifest.ID, p)
		}
	}()

	return fn(rec)
}

// Close releases every handle and rejects further use.
func (r *Registry[H]) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var firstErr error
	for id, rec := range r.records {
		if err := rec.Handle.Close(ctx); err != nil {
			log.Error().
				Err(err).
				Str("event", "plugin_close").
				Str("backend", r.name).
				Str("plugin_id", id).
				Msg("failed to release plugin")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	r.records = nil

	return firstErr
}
