// Package app assembles the plugin backends from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/andrei-cloud/go_ayoto/internal/config"
	"github.com/andrei-cloud/go_ayoto/internal/dispatch"
	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
	"github.com/andrei-cloud/go_ayoto/internal/manifest"
	"github.com/andrei-cloud/go_ayoto/internal/metrics"
	"github.com/andrei-cloud/go_ayoto/internal/plugins"
	"github.com/andrei-cloud/go_ayoto/internal/plugins/catalog"
	"github.com/andrei-cloud/go_ayoto/internal/plugins/native"
	"github.com/andrei-cloud/go_ayoto/internal/plugins/wasm"
	"github.com/andrei-cloud/go_ayoto/internal/semver"
	"github.com/andrei-cloud/go_ayoto/internal/watch"
)

// Options configures New.
type Options struct {
	Config *config.Config
	// Metrics is optional; nil leaves the backends uninstrumented.
	Metrics *metrics.Metrics
	// Platform overrides the detected host platform.
	Platform manifest.Platform
	// Native overrides the dynamic loader, mainly for tests.
	NativeOpener native.Opener
	NativeBinder native.Binder
}

// App owns one generation of loaded plugins.
type App struct {
	HostVersion semver.Version
	Runtime     *wasm.Runtime
	Wasm        *wasm.Loader
	Native      *native.Loader
	Catalog     *catalog.Catalog
	Dispatcher  *dispatch.Dispatcher

	pluginDir string
	metrics   *metrics.Metrics
}

// New builds the runtime and every backend without loading anything.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}

	host, err := semver.Parse(cfg.Host.Version)
	if err != nil {
		return nil, fmt.Errorf("invalid host version %q: %w", cfg.Host.Version, err)
	}

	platform := opts.Platform
	if platform == "" {
		platform = manifest.CurrentPlatform()
	}

	rtOpts := wasm.RuntimeOptions{
		MemoryLimitPages: cfg.Plugin.WasmMemoryPages,
		CacheSize:        cfg.Plugin.WasmCacheSize,
	}
	if opts.Metrics != nil {
		rtOpts.OnCompile = opts.Metrics.ObserveCompile
	}
	rt, err := wasm.NewRuntime(ctx, rtOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create wasm runtime: %w", err)
	}

	hostCfg := native.DefaultHostConfig(host.String(), cfg.Plugin.DataDir, cfg.Plugin.CacheDir)
	if cfg.Plugin.UserAgent != "" {
		hostCfg.UserAgent = cfg.Plugin.UserAgent
	}

	a := &App{
		HostVersion: host,
		Runtime:     rt,
		Wasm:        wasm.NewLoader(rt, wasm.Options{HostVersion: host, Platform: platform}),
		Native: native.NewLoader(native.Options{
			HostVersion: host,
			Platform:    platform,
			Host:        hostCfg,
			Opener:      opts.NativeOpener,
			Binder:      opts.NativeBinder,
		}),
		Catalog:   catalog.New(catalog.Options{HostVersion: host, Platform: platform}),
		pluginDir: cfg.Plugin.Path,
		metrics:   opts.Metrics,
	}

	var dopts []dispatch.Option
	if opts.Metrics != nil {
		dopts = append(dopts, dispatch.WithObserver(opts.Metrics))
	}
	a.Dispatcher = dispatch.New([]dispatch.Backend{a.Wasm, a.Native}, dopts...)

	return a, nil
}

// Open builds an App and loads the plugin directory into it.
func Open(ctx context.Context, opts Options) (*App, []*plugins.LoadResult, error) {
	a, err := New(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	results, err := a.LoadAll(ctx)
	if err != nil {
		_ = a.Close(ctx)

		return nil, nil, err
	}

	return a, results, nil
}

// PluginDir returns the configured plugin directory.
func (a *App) PluginDir() string { return a.pluginDir }

// LoadAll loads the plugin directory into every backend and the catalog.
func (a *App) LoadAll(ctx context.Context) ([]*plugins.LoadResult, error) {
	results, err := a.Dispatcher.LoadDir(ctx, a.pluginDir)
	catResults, catErr := a.Catalog.LoadDir(ctx, a.pluginDir)
	for _, res := range catResults {
		a.ObserveLoad(a.Catalog.Name(), res)
	}

	return append(results, catResults...), errors.Join(err, catErr)
}

// Loaders lists the backends the directory watcher feeds.
func (a *App) Loaders() []watch.Loader {
	return []watch.Loader{a.Wasm, a.Native, a.Catalog}
}

// LoadPath loads one file into whichever backend accepts it, the catalog last.
func (a *App) LoadPath(ctx context.Context, path string) (*plugins.LoadResult, error) {
	if a.Catalog.Accepts(path) {
		res, err := a.Catalog.Load(ctx, path)
		res.Log(a.Catalog.Name())
		a.ObserveLoad(a.Catalog.Name(), res)

		return res, err
	}

	return a.Dispatcher.LoadPath(ctx, path)
}

// ObserveLoad records a load outcome for backend and refreshes its loaded gauge.
func (a *App) ObserveLoad(backend string, res *plugins.LoadResult) {
	if a.metrics == nil {
		return
	}
	a.metrics.ObserveLoad(backend, res)

	n := 0
	for _, s := range a.Summaries() {
		if s.Backend == backend {
			n++
		}
	}
	a.metrics.SetLoaded(backend, n)
}

// Summaries lists executable plugins followed by catalog entries.
func (a *App) Summaries() []plugins.Summary {
	return append(a.Dispatcher.Summaries(), a.Catalog.Summaries()...)
}

// SetEnabled toggles t, consulting the catalog when the target names it or
// no executable backend knows the id.
func (a *App) SetEnabled(t dispatch.Target, enabled bool) error {
	if t.Backend == catalog.BackendName {
		return a.Catalog.SetEnabled(t.PluginID, enabled)
	}

	err := a.Dispatcher.SetEnabled(t, enabled)
	if t.Backend == "" && errorcodes.ErrNotFound.Is(err) && a.Catalog.Contains(t.PluginID) {
		return a.Catalog.SetEnabled(t.PluginID, enabled)
	}

	return err
}

// Describe returns the summary of t.
func (a *App) Describe(t dispatch.Target) (plugins.Summary, error) {
	var matches []plugins.Summary
	for _, s := range a.Summaries() {
		if s.ID != t.PluginID {
			continue
		}
		if t.Backend != "" && s.Backend != t.Backend {
			continue
		}
		matches = append(matches, s)
	}

	switch len(matches) {
	case 0:
		return plugins.Summary{}, errorcodes.ErrNotFound.Withf("plugin '%s' not found", t)
	case 1:
		return matches[0], nil
	default:
		return plugins.Summary{}, errorcodes.ErrAmbiguous.Withf(
			"plugin '%s' is loaded by %d backends; qualify it as backend:id", t.PluginID, len(matches))
	}
}

// Close unloads every plugin and releases the runtime.
func (a *App) Close(ctx context.Context) error {
	return errors.Join(
		a.Dispatcher.Close(ctx),
		a.Catalog.Close(ctx),
		a.Runtime.Close(ctx),
	)
}
