// Package dispatch routes logical plugin operations to the backend that
// holds the target plugin.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
	"github.com/andrei-cloud/go_ayoto/internal/logging"
	"github.com/andrei-cloud/go_ayoto/internal/manifest"
	"github.com/andrei-cloud/go_ayoto/internal/plugins"
)

// Backend is an executable plugin backend.
type Backend interface {
	Name() string
	Accepts(path string) bool
	Load(ctx context.Context, path string) (*plugins.LoadResult, error)
	LoadDir(ctx context.Context, dir string) ([]*plugins.LoadResult, error)
	Invoke(ctx context.Context, id string, c manifest.Capability, request []byte) (json.RawMessage, error)
	Unload(ctx context.Context, id string) error
	Contains(id string) bool
	SetEnabled(id string, enabled bool) error
	CapableIDs(c manifest.Capability) []string
	FindBySource(path string) []string
	Summaries() []plugins.Summary
	Close(ctx context.Context) error
}

// Observer receives load and dispatch outcomes.
type Observer interface {
	ObserveLoad(backend string, res *plugins.LoadResult)
	ObserveDispatch(backend, op string, d time.Duration, err error)
	SetLoaded(backend string, n int)
}

type nopObserver struct{}

func (nopObserver) ObserveLoad(string, *plugins.LoadResult)                {}
func (nopObserver) ObserveDispatch(string, string, time.Duration, error) {}
func (nopObserver) SetLoaded(string, int)                                 {}

// Target addresses a plugin, optionally pinned to a backend.
type Target struct {
	Backend  string `json:"backend,omitempty"`
	PluginID string `json:"plugin"`
}

// ParseTarget reads "backend:id" or a bare id.
func ParseTarget(s string) Target {
	if backend, id, ok := strings.Cut(s, ":"); ok {
		return Target{Backend: backend, PluginID: id}
	}

	return Target{PluginID: s}
}

func (t Target) String() string {
	if t.Backend == "" {
		return t.PluginID
	}

	return t.Backend + ":" + t.PluginID
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithObserver attaches o to every load and call.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

// Dispatcher fans requests out to its backends.
type Dispatcher struct {
	backends []Backend
	byName   map[string]Backend
	observer Observer
}

// New returns a dispatcher over backends, consulted in the given order.
func New(backends []Backend, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		backends: backends,
		byName:   make(map[string]Backend, len(backends)),
		observer: nopObserver{},
	}
	for _, b := range backends {
		d.byName[b.Name()] = b
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Backends returns the backends in lookup order.
func (d *Dispatcher) Backends() []Backend { return d.backends }

// Backend returns the backend called name.
func (d *Dispatcher) Backend(name string) (Backend, error) {
	b, ok := d.byName[name]
	if !ok {
		return nil, errorcodes.ErrNotFound.Withf("unknown backend '%s'", name)
	}

	return b, nil
}

// Resolve returns the backend holding t. A bare id must be held by exactly one backend.
func (d *Dispatcher) Resolve(t Target) (Backend, error) {
	if t.Backend != "" {
		return d.Backend(t.Backend)
	}

	var found []Backend
	for _, b := range d.backends {
		if b.Contains(t.PluginID) {
			found = append(found, b)
		}
	}

	switch len(found) {
	case 0:
		return nil, errorcodes.ErrNotFound.Withf("plugin '%s' not found", t.PluginID)
	case 1:
		return found[0], nil
	default:
		names := make([]string, 0, len(found))
		for _, b := range found {
			names = append(names, b.Name())
		}

		return nil, errorcodes.ErrAmbiguous.Withf(
			"plugin '%s' is loaded by %s; qualify it as backend:id", t.PluginID, strings.Join(names, ", "))
	}
}

// InvokeRaw runs capability c with an already encoded request.
func (d *Dispatcher) InvokeRaw(
	ctx context.Context,
	t Target,
	c manifest.Capability,
	request []byte,
) (json.RawMessage, error) {
	b, err := d.Resolve(t)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := b.Invoke(ctx, t.PluginID, c, request)
	elapsed := time.Since(start)

	d.observer.ObserveDispatch(b.Name(), string(c), elapsed, err)
	logging.LogDispatch(b.Name(), t.PluginID, string(c), elapsed, err)

	return out, err
}

// Invoke encodes request and runs capability c.
func (d *Dispatcher) Invoke(ctx context.Context, t Target, c manifest.Capability, request any) (json.RawMessage, error) {
	data, err := json.Marshal(request)
	if err != nil {
		return nil, errorcodes.ErrParse.Withf("failed to encode %s request", c).Wrap(err)
	}

	return d.InvokeRaw(ctx, t, c, data)
}

func call[T any](ctx context.Context, d *Dispatcher, t Target, c manifest.Capability, request any) (*T, error) {
	raw, err := d.Invoke(ctx, t, c, request)
	if err != nil {
		return nil, err
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errorcodes.ErrGuestExecution.Withf("plugin '%s' returned an invalid %s result", t, c).Wrap(err)
	}

	return &out, nil
}

// LoadPath loads path into the first backend that accepts it.
func (d *Dispatcher) LoadPath(ctx context.Context, path string) (*plugins.LoadResult, error) {
	for _, b := range d.backends {
		if !b.Accepts(path) {
			continue
		}
		res, err := b.Load(ctx, path)
		res.Log(b.Name())
		d.observe(b, res)

		return res, err
	}

	res := plugins.NewLoadResult(path)

	return res, res.Fail(errorcodes.ErrValidation.Withf("no backend accepts '%s'", path))
}

// LoadDir loads dir into every backend.
func (d *Dispatcher) LoadDir(ctx context.Context, dir string) ([]*plugins.LoadResult, error) {
	var (
		all  []*plugins.LoadResult
		errs []error
	)
	for _, b := range d.backends {
		results, err := b.LoadDir(ctx, dir)
		if err != nil {
			errs = append(errs, err)
		}
		for _, res := range results {
			d.observer.ObserveLoad(b.Name(), res)
		}
		d.observer.SetLoaded(b.Name(), len(b.Summaries()))
		all = append(all, results...)
	}

	return all, errors.Join(errs...)
}

func (d *Dispatcher) observe(b Backend, res *plugins.LoadResult) {
	d.observer.ObserveLoad(b.Name(), res)
	d.observer.SetLoaded(b.Name(), len(b.Summaries()))
}

// Unload removes t from its backend.
func (d *Dispatcher) Unload(ctx context.Context, t Target) error {
	b, err := d.Resolve(t)
	if err != nil {
		return err
	}
	if err := b.Unload(ctx, t.PluginID); err != nil {
		return err
	}
	d.observer.SetLoaded(b.Name(), len(b.Summaries()))

	return nil
}

// UnloadSource removes every plugin loaded from path and returns their targets.
func (d *Dispatcher) UnloadSource(ctx context.Context, path string) ([]Target, error) {
	var (
		removed []Target
		errs    []error
	)
	for _, b := range d.backends {
		for _, id := range b.FindBySource(path) {
			if err := b.Unload(ctx, id); err != nil {
				errs = append(errs, err)

				continue
			}
			removed = append(removed, Target{Backend: b.Name(), PluginID: id})
		}
		d.observer.SetLoaded(b.Name(), len(b.Summaries()))
	}

	return removed, errors.Join(errs...)
}

// SetEnabled toggles t.
func (d *Dispatcher) SetEnabled(t Target, enabled bool) error {
	b, err := d.Resolve(t)
	if err != nil {
		return err
	}

	return b.SetEnabled(t.PluginID, enabled)
}

// Summaries lists every plugin of every backend.
func (d *Dispatcher) Summaries() []plugins.Summary {
	var out []plugins.Summary
	for _, b := range d.backends {
		out = append(out, b.Summaries()...)
	}

	return out
}

// Close closes every backend.
func (d *Dispatcher) Close(ctx context.Context) error {
	var errs []error
	for _, b := range d.backends {
		if err := b.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
