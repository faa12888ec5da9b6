package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
	"github.com/andrei-cloud/go_ayoto/internal/manifest"
	"github.com/andrei-cloud/go_ayoto/internal/plugins"
	"github.com/andrei-cloud/go_ayoto/internal/plugins/native"
	"github.com/andrei-cloud/go_ayoto/internal/plugins/wasm"
	"github.com/andrei-cloud/go_ayoto/internal/semver"
	"github.com/andrei-cloud/go_ayoto/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Backend = (*wasm.Loader)(nil)
	_ Backend = (*native.Loader)(nil)
)

type fakePlugin struct {
	caps    []manifest.Capability
	enabled bool
	source  string
	respond func(c manifest.Capability, req []byte) (json.RawMessage, error)
}

type fakeBackend struct {
	name string
	ext  string

	mu      sync.Mutex
	plugins map[string]*fakePlugin
	closed  bool
}

func newFake(name, ext string) *fakeBackend {
	return &fakeBackend{name: name, ext: ext, plugins: map[string]*fakePlugin{}}
}

func (f *fakeBackend) add(id string, p *fakePlugin) *fakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.enabled = true
	f.plugins[id] = p

	return f
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Accepts(path string) bool { return filepath.Ext(path) == f.ext }

func (f *fakeBackend) Load(_ context.Context, path string) (*plugins.LoadResult, error) {
	res := plugins.NewLoadResult(path)
	id := strings.TrimSuffix(filepath.Base(path), f.ext)
	f.add(id, &fakePlugin{caps: []manifest.Capability{manifest.CapSearch}, source: path})
	res.Succeed(id)

	return res, nil
}

func (f *fakeBackend) LoadDir(context.Context, string) ([]*plugins.LoadResult, error) {
	return nil, nil
}

func (f *fakeBackend) Invoke(
	_ context.Context,
	id string,
	c manifest.Capability,
	req []byte,
) (json.RawMessage, error) {
	f.mu.Lock()
	p, ok := f.plugins[id]
	f.mu.Unlock()

	if !ok {
		return nil, errorcodes.ErrNotFound.Withf("plugin '%s' not found", id)
	}
	if !p.enabled {
		return nil, errorcodes.ErrDisabled.Withf("plugin '%s' is disabled", id)
	}

	return p.respond(c, req)
}

func (f *fakeBackend) Unload(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.plugins[id]; !ok {
		return errorcodes.ErrNotFound.Withf("plugin '%s' not found", id)
	}
	delete(f.plugins, id)

	return nil
}

func (f *fakeBackend) Contains(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.plugins[id]

	return ok
}

func (f *fakeBackend) SetEnabled(id string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.plugins[id]
	if !ok {
		return errorcodes.ErrNotFound.Withf("plugin '%s' not found", id)
	}
	p.enabled = enabled

	return nil
}

func (f *fakeBackend) CapableIDs(c manifest.Capability) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var ids []string
	for id, p := range f.plugins {
		for _, have := range p.caps {
			if have == c && p.enabled {
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)

	return ids
}

func (f *fakeBackend) FindBySource(path string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var ids []string
	for id, p := range f.plugins {
		if p.source == path {
			ids = append(ids, id)
		}
	}

	return ids
}

func (f *fakeBackend) Summaries() []plugins.Summary {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]plugins.Summary, 0, len(f.plugins))
	for id, p := range f.plugins {
		out = append(out, plugins.Summary{ID: id, Backend: f.name, Enabled: p.enabled})
	}

	return out
}

func (f *fakeBackend) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true

	return nil
}

type dispatchCall struct {
	backend, op string
	err         error
}

type fakeObserver struct {
	mu     sync.Mutex
	calls  []dispatchCall
	loads  int
	loaded map[string]int
}

func (o *fakeObserver) ObserveLoad(string, *plugins.LoadResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loads++
}

func (o *fakeObserver) ObserveDispatch(backend, op string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, dispatchCall{backend, op, err})
}

func (o *fakeObserver) SetLoaded(backend string, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.loaded == nil {
		o.loaded = map[string]int{}
	}
	o.loaded[backend] = n
}

func echo(title string) func(manifest.Capability, []byte) (json.RawMessage, error) {
	return func(_ manifest.Capability, req []byte) (json.RawMessage, error) {
		var in struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal(req, &in); err != nil {
			return nil, err
		}

		return json.RawMessage(`{"items":[{"id":"1","title":"` + title + in.Query + `"}],"currentPage":1}`), nil
	}
}

func TestParseTarget(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Target{Backend: "wasm", PluginID: "demo"}, ParseTarget("wasm:demo"))
	assert.Equal(t, Target{PluginID: "demo"}, ParseTarget("demo"))
	assert.Equal(t, "native:x", Target{Backend: "native", PluginID: "x"}.String())
}

func TestResolve(t *testing.T) {
	t.Parallel()

	n := newFake("native", ".so").
		add("shared", &fakePlugin{}).
		add("only-native", &fakePlugin{})
	w := newFake("wasm", ".zpe").
		add("shared", &fakePlugin{})
	d := New([]Backend{n, w})

	tests := []struct {
		name     string
		target   Target
		backend  string
		wantCode string
	}{
		{name: "bare unique", target: Target{PluginID: "only-native"}, backend: "native"},
		{name: "qualified", target: Target{Backend: "wasm", PluginID: "shared"}, backend: "wasm"},
		{name: "bare ambiguous", target: Target{PluginID: "shared"}, wantCode: errorcodes.ErrAmbiguous.Code},
		{name: "missing", target: Target{PluginID: "ghost"}, wantCode: errorcodes.ErrNotFound.Code},
		{name: "unknown backend", target: Target{Backend: "lua", PluginID: "x"}, wantCode: errorcodes.ErrNotFound.Code},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := d.Resolve(tt.target)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, errorcodes.CodeOf(err))

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.backend, b.Name())
		})
	}
}

func TestTypedCalls(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	obs := &fakeObserver{}
	b := newFake("wasm", ".zpe").
		add("good", &fakePlugin{caps: []manifest.Capability{manifest.CapSearch}, respond: echo("Echo: ")}).
		add("garbled", &fakePlugin{respond: func(manifest.Capability, []byte) (json.RawMessage, error) {
			return json.RawMessage(`"not a list"`), nil
		}}).
		add("links", &fakePlugin{respond: func(c manifest.Capability, req []byte) (json.RawMessage, error) {
			assert.Equal(t, manifest.CapGetDownloadLink, c)
			assert.JSONEq(t, `{"url":"https://host/v/1"}`, string(req))

			return json.RawMessage(`"https://cdn/v/1.mp4"`), nil
		}})
	d := New([]Backend{b}, WithObserver(obs))

	list, err := d.Search(ctx, Target{PluginID: "good"}, "naruto", 1)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Echo: naruto", list.Items[0].Title)

	_, err = d.Search(ctx, Target{PluginID: "garbled"}, "x", 1)
	assert.True(t, errors.Is(err, errorcodes.ErrGuestExecution))

	link, err := d.GetDownloadLink(ctx, Target{PluginID: "links"}, "https://host/v/1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/v/1.mp4", link.URL)

	require.NoError(t, d.SetEnabled(Target{PluginID: "good"}, false))
	_, err = d.Search(ctx, Target{PluginID: "good"}, "x", 1)
	assert.True(t, errors.Is(err, errorcodes.ErrDisabled))

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Len(t, obs.calls, 4)
	assert.Equal(t, dispatchCall{"wasm", "search", nil}, obs.calls[0])
	assert.Equal(t, "getDownloadLink", obs.calls[2].op)
	assert.Error(t, obs.calls[3].err)
}

func TestSearchAll(t *testing.T) {
	t.Parallel()

	search := []manifest.Capability{manifest.CapSearch}
	n := newFake("native", ".so").
		add("alpha", &fakePlugin{caps: search, respond: echo("A ")}).
		add("broken", &fakePlugin{caps: search, respond: func(manifest.Capability, []byte) (json.RawMessage, error) {
			return nil, errorcodes.ErrGuestExecution.Withf("boom")
		}}).
		add("streams-only", &fakePlugin{caps: []manifest.Capability{manifest.CapGetStreams}})
	w := newFake("wasm", ".zpe").
		add("beta", &fakePlugin{caps: search, respond: echo("B ")}).
		add("sleeping", &fakePlugin{caps: search, respond: echo("Z ")})
	require.NoError(t, w.SetEnabled("sleeping", false))

	d := New([]Backend{n, w})
	results, err := d.SearchAll(context.Background(), "q", 1, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "native:alpha", results[0].Target.String())
	assert.Equal(t, "A q", results[0].List.Items[0].Title)
	assert.Equal(t, "native:broken", results[1].Target.String())
	assert.True(t, errors.Is(results[1].Err, errorcodes.ErrGuestExecution))
	assert.Nil(t, results[1].List)
	assert.Equal(t, "wasm:beta", results[2].Target.String())
	assert.Equal(t, "B q", results[2].List.Items[0].Title)
}

func TestLoadAndUnloadSource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	obs := &fakeObserver{}
	n := newFake("native", ".so")
	w := newFake("wasm", ".zpe")
	d := New([]Backend{n, w}, WithObserver(obs))

	res, err := d.LoadPath(ctx, "/plugins/demo.zpe")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, w.Contains("demo"))
	assert.False(t, n.Contains("demo"))

	res, err = d.LoadPath(ctx, "/plugins/readme.md")
	require.Error(t, err)
	assert.Equal(t, errorcodes.ErrValidation.Code, errorcodes.CodeOf(err))
	assert.False(t, res.Success)

	removed, err := d.UnloadSource(ctx, "/plugins/demo.zpe")
	require.NoError(t, err)
	assert.Equal(t, []Target{{Backend: "wasm", PluginID: "demo"}}, removed)
	assert.False(t, w.Contains("demo"))

	err = d.Unload(ctx, Target{PluginID: "demo"})
	assert.True(t, errors.Is(err, errorcodes.ErrNotFound))

	assert.Equal(t, 1, obs.loads)
	assert.Equal(t, 0, obs.loaded["wasm"])

	require.NoError(t, d.Close(ctx))
	assert.True(t, n.closed)
	assert.True(t, w.closed)
}

func TestWasmBackendEndToEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	rt, err := wasm.NewRuntime(ctx, wasm.RuntimeOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	l := wasm.NewLoader(rt, wasm.Options{HostVersion: semver.MustParse("1.0.0"), Platform: manifest.PlatformLinux})
	d := New([]Backend{l})
	t.Cleanup(func() { _ = d.Close(ctx) })

	m := testutil.ManifestJSON(t, "echo", map[string]bool{"search": true}, nil)
	zpe := testutil.Archive(t, map[string][]byte{
		wasm.ManifestFile: m,
		wasm.ModuleFile:   testutil.EchoModule(),
	})
	res, err := l.LoadBytes(ctx, zpe, "echo.zpe")
	require.NoError(t, err)
	require.True(t, res.Success)

	results, err := d.SearchAll(ctx, "frieren", 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "Echo: frieren", results[0].List.Items[0].Title)

	_, err = d.GetStreams(ctx, Target{PluginID: "echo"}, "1", "1")
	assert.True(t, errors.Is(err, errorcodes.ErrCapabilityUnsupported))
}
