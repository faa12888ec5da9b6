package app

import (
	"context"
	"testing"

	"github.com/andrei-cloud/go_ayoto/internal/config"
	"github.com/andrei-cloud/go_ayoto/internal/dispatch"
	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
	"github.com/andrei-cloud/go_ayoto/internal/manifest"
	"github.com/andrei-cloud/go_ayoto/internal/metrics"
	"github.com/andrei-cloud/go_ayoto/internal/plugins/catalog"
	"github.com/andrei-cloud/go_ayoto/internal/plugins/wasm"
	"github.com/andrei-cloud/go_ayoto/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(dir string) *config.Config {
	cfg := &config.Config{}
	cfg.Plugin.Path = dir
	cfg.Plugin.DataDir = dir
	cfg.Plugin.CacheDir = dir
	cfg.Host.Version = "1.0.0"

	return cfg
}

func newApp(t *testing.T, dir string, m *metrics.Metrics) *App {
	t.Helper()

	a, err := New(context.Background(), Options{
		Config:   testConfig(dir),
		Metrics:  m,
		Platform: manifest.PlatformLinux,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	return a
}

func writeEcho(t *testing.T, dir, id string) string {
	t.Helper()

	return testutil.WriteFile(t, dir, id+wasm.ArchiveExtension, testutil.Archive(t, map[string][]byte{
		wasm.ManifestFile: testutil.ManifestJSON(t, id, map[string]bool{"search": true}, nil),
		wasm.ModuleFile:   testutil.EchoModule(),
	}))
}

func TestNewRejectsBadHostVersion(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Host.Version = "one"

	_, err := New(context.Background(), Options{Config: cfg})
	assert.Error(t, err)

	_, err = New(context.Background(), Options{})
	assert.Error(t, err)
}

func TestLoadAllAndQuery(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	m := metrics.New(prometheus.NewRegistry())
	a := newApp(t, dir, m)

	writeEcho(t, dir, "echo")
	testutil.WriteFile(t, dir, "listing"+catalog.JSONExtension,
		testutil.ManifestJSON(t, "listing", map[string]bool{"search": true}, nil))
	testutil.WriteFile(t, dir, "README.md", []byte("ignored"))

	results, err := a.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.True(t, res.Success, res.Errors)
	}

	list, err := a.Dispatcher.Search(ctx, dispatch.Target{PluginID: "echo"}, "haibane", 1)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Echo: haibane", list.Items[0].Title)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.PluginsLoaded.WithLabelValues(wasm.BackendName)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.PluginsLoaded.WithLabelValues(catalog.BackendName)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.LoadsTotal.WithLabelValues(catalog.BackendName, "success")))

	ids := map[string]string{}
	for _, s := range a.Summaries() {
		ids[s.ID] = s.Backend
	}
	assert.Equal(t, map[string]string{"echo": wasm.BackendName, "listing": catalog.BackendName}, ids)

	s, err := a.Describe(dispatch.Target{PluginID: "listing"})
	require.NoError(t, err)
	assert.Equal(t, catalog.BackendName, s.Backend)

	_, err = a.Describe(dispatch.ParseTarget("native:echo"))
	assert.True(t, errorcodes.ErrNotFound.Is(err))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	writeEcho(t, dir, "echo")

	a, results, err := Open(context.Background(), Options{Config: testConfig(dir), Platform: manifest.PlatformLinux})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	require.Len(t, results, 1)
	assert.Equal(t, "echo", results[0].PluginID)
	assert.Equal(t, dir, a.PluginDir())
	assert.True(t, a.Wasm.Contains("echo"))
}

func TestSetEnabledFallsBackToCatalog(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a := newApp(t, dir, nil)

	path := testutil.WriteFile(t, dir, "listing"+catalog.JSONExtension,
		testutil.ManifestJSON(t, "listing", map[string]bool{"search": true}, nil))
	res, err := a.LoadPath(ctx, path)
	require.NoError(t, err)
	require.True(t, res.Success)

	require.NoError(t, a.SetEnabled(dispatch.Target{PluginID: "listing"}, false))
	rec, err := a.Catalog.Get("listing")
	require.NoError(t, err)
	assert.False(t, rec.Enabled)

	require.NoError(t, a.SetEnabled(dispatch.ParseTarget("catalog:listing"), true))

	err = a.SetEnabled(dispatch.Target{PluginID: "ghost"}, false)
	assert.True(t, errorcodes.ErrNotFound.Is(err))
}

func TestDescribeAmbiguous(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a := newApp(t, dir, nil)

	res, err := a.LoadPath(ctx, writeEcho(t, dir, "echo"))
	require.NoError(t, err)
	require.True(t, res.Success)

	res, err = a.LoadPath(ctx, testutil.WriteFile(t, dir, "echo"+catalog.JSONExtension,
		testutil.ManifestJSON(t, "echo", map[string]bool{"search": true}, nil)))
	require.NoError(t, err)
	require.True(t, res.Success)

	_, err = a.Describe(dispatch.Target{PluginID: "echo"})
	assert.True(t, errorcodes.ErrAmbiguous.Is(err))

	s, err := a.Describe(dispatch.ParseTarget("wasm:echo"))
	require.NoError(t, err)
	assert.Equal(t, wasm.BackendName, s.Backend)

	assert.Len(t, a.Loaders(), 3)
}
