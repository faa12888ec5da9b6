// Package watch hot-loads plugins dropped into a directory and unloads them
// when their files disappear.
//
// Native libraries are not reloaded in place: the dynamic loader hands back
// the mapping it already holds for a path, so a rewritten library would be
// replaced by a new instance of the old code. Remove the file first, then
// copy the new build in.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/andrei-cloud/go_ayoto/internal/plugins"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDelay coalesces bursts of events on one file, such as a copy in progress.
const DefaultDelay = 500 * time.Millisecond

// Loader is a backend that can load and unload plugins by file.
type Loader interface {
	Name() string
	Accepts(path string) bool
	Load(ctx context.Context, path string) (*plugins.LoadResult, error)
	Unload(ctx context.Context, id string) error
	FindBySource(path string) []string
}

// FileMapper is implemented by loaders that keep loaded files mapped. The
// watcher does not reload such a path while plugins from it are loaded.
type FileMapper interface {
	MapsFiles() bool
}

func mapsFiles(l Loader) bool {
	m, ok := l.(FileMapper)

	return ok && m.MapsFiles()
}

// Watcher routes file events in one directory to the loader accepting the file.
type Watcher struct {
	dir     string
	delay   time.Duration
	loaders []Loader
	onLoad  func(backend string, res *plugins.LoadResult)

	mu       sync.Mutex
	debounce map[string]*time.Timer
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDelay sets the debounce interval.
func WithDelay(d time.Duration) Option {
	return func(w *Watcher) { w.delay = d }
}

// WithLoadHook is called after every load the watcher triggers.
func WithLoadHook(fn func(backend string, res *plugins.LoadResult)) Option {
	return func(w *Watcher) { w.onLoad = fn }
}

// New returns a watcher for dir.
func New(dir string, loaders []Loader, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		delay:    DefaultDelay,
		loaders:  loaders,
		onLoad:   func(string, *plugins.LoadResult) {},
		debounce: make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch plugin dir: %w", err)
	}
	log.Info().Str("event", "watch_started").Str("path", w.dir).Msg("watching plugin directory")

	defer w.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Str("event", "watch_error").Str("path", w.dir).Msg("watcher error")
		}
	}
}

func (w *Watcher) loaderFor(path string) Loader {
	for _, l := range w.loaders {
		if l.Accepts(path) {
			return l
		}
	}

	return nil
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	l := w.loaderFor(path)
	if l == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.debounce[path]; ok {
		t.Stop()
	}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		delete(w.debounce, path)
		w.unload(ctx, l, path)
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.debounce[path] = time.AfterFunc(w.delay, func() {
			w.mu.Lock()
			delete(w.debounce, path)
			w.mu.Unlock()

			w.reload(ctx, l, path)
		})
	}
}

// reload loads path and drops records from the same file whose id changed.
func (w *Watcher) reload(ctx context.Context, l Loader, path string) {
	if ctx.Err() != nil {
		return
	}

	previous := l.FindBySource(path)
	if len(previous) > 0 && mapsFiles(l) {
		log.Warn().
			Str("event", "watch_skip").
			Str("backend", l.Name()).
			Str("path", path).
			Strs("plugin_ids", previous).
			Msg("library rewritten while loaded; remove it before copying a new build")

		return
	}

	res, _ := l.Load(ctx, path)
	res.Log(l.Name())
	w.onLoad(l.Name(), res)

	if !res.Success {
		return
	}
	for _, id := range previous {
		if id != res.PluginID {
			w.unloadID(ctx, l, path, id)
		}
	}
}

func (w *Watcher) unload(ctx context.Context, l Loader, path string) {
	for _, id := range l.FindBySource(path) {
		w.unloadID(ctx, l, path, id)
	}
}

func (w *Watcher) unloadID(ctx context.Context, l Loader, path, id string) {
	if err := l.Unload(ctx, id); err != nil {
		log.Warn().
			Err(err).
			Str("event", "plugin_unload_failed").
			Str("backend", l.Name()).
			Str("plugin_id", id).
			Str("path", path).
			Msg("failed to unload plugin")

		return
	}
	log.Info().
		Str("event", "plugin_unloaded").
		Str("backend", l.Name()).
		Str("plugin_id", id).
		Str("path", path).
		Msg("plugin unloaded")
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for path, t := range w.debounce {
		t.Stop()
		delete(w.debounce, path)
	}
}
