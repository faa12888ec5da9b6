package plugins

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
	"github.com/andrei-cloud/go_ayoto/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	closed atomic.Int32
	calls  atomic.Int32
	err    error
}

func (h *fakeHandle) Close(context.Context) error {
	h.closed.Add(1)

	return h.err
}

func record(id string, caps manifest.Capabilities) (*Record[*fakeHandle], *fakeHandle) {
	h := &fakeHandle{}
	m := &manifest.Manifest{
		ID:           id,
		Name:         id,
		Version:      "1.0.0",
		PluginType:   manifest.TypeContentProvider,
		Capabilities: caps,
		Formats:      []string{"m3u8"},
	}

	return NewRecord(m, h, "/plugins/"+id, manifest.CompatibilityReport{}), h
}

func TestInsertReplacesDuplicate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := NewRegistry[*fakeHandle]("wasm", ExclusiveDispatch)

	first, firstHandle := record("demo", manifest.Capabilities{Search: true})
	replaced, err := reg.Insert(ctx, first)
	require.NoError(t, err)
	assert.False(t, replaced)

	second, secondHandle := record("demo", manifest.Capabilities{GetStreams: true})
	second.Manifest.Version = "2.0.0"
	replaced, err = reg.Insert(ctx, second)
	require.NoError(t, err)
	assert.True(t, replaced)

	assert.Equal(t, 1, reg.Len())
	got, err := reg.Get("demo")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", got.Manifest.Version)
	assert.Equal(t, second.LoadID, got.LoadID)
	assert.Equal(t, int32(1), firstHandle.closed.Load())
	assert.Zero(t, secondHandle.closed.Load())
}

func TestUnload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := NewRegistry[*fakeHandle]("native", SharedDispatch)

	rec, h := record("demo", manifest.Capabilities{Search: true})
	_, err := reg.Insert(ctx, rec)
	require.NoError(t, err)

	err = reg.Unload(ctx, "nonexistent")
	require.ErrorIs(t, err, errorcodes.ErrNotFound)
	assert.Equal(t, 1, reg.Len())

	require.NoError(t, reg.Unload(ctx, "demo"))
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, int32(1), h.closed.Load())

	err = reg.Unload(ctx, "demo")
	assert.ErrorIs(t, err, errorcodes.ErrNotFound)

	bad, badHandle := record("bad", manifest.Capabilities{})
	badHandle.err = errors.New("shutdown failed")
	_, err = reg.Insert(ctx, bad)
	require.NoError(t, err)
	require.Error(t, reg.Unload(ctx, "bad"))
	assert.False(t, reg.Contains("bad"))
}

func TestDispatchOrdering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name    string
		id      string
		cap     manifest.Capability
		disable bool
		want    error
	}{
		{name: "unknown id", id: "ghost", cap: manifest.CapSearch, want: errorcodes.ErrNotFound},
		{name: "disabled before capability", id: "demo", cap: manifest.CapGetStreams, disable: true, want: errorcodes.ErrDisabled},
		{name: "disabled", id: "demo", cap: manifest.CapSearch, disable: true, want: errorcodes.ErrDisabled},
		{name: "capability", id: "demo", cap: manifest.CapGetStreams, want: errorcodes.ErrCapabilityUnsupported},
		{name: "executes", id: "demo", cap: manifest.CapSearch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			reg := NewRegistry[*fakeHandle]("native", SharedDispatch)
			rec, h := record("demo", manifest.Capabilities{Search: true})
			_, err := reg.Insert(ctx, rec)
			require.NoError(t, err)
			if tt.disable {
				require.NoError(t, reg.SetEnabled("demo", false))
			}

			err = reg.Dispatch(tt.id, tt.cap, func(rec *Record[*fakeHandle]) error {
				rec.Handle.calls.Add(1)

				return nil
			})

			if tt.want == nil {
				require.NoError(t, err)
				assert.Equal(t, int32(1), h.calls.Load())

				return
			}
			require.ErrorIs(t, err, tt.want)
			assert.Zero(t, h.calls.Load())
		})
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	t.Parallel()
	reg := NewRegistry[*fakeHandle]("native", SharedDispatch)
	rec, _ := record("demo", manifest.Capabilities{Search: true})
	_, err := reg.Insert(context.Background(), rec)
	require.NoError(t, err)

	err = reg.Dispatch("demo", manifest.CapSearch, func(*Record[*fakeHandle]) error {
		panic("guest blew up")
	})
	require.ErrorIs(t, err, errorcodes.ErrGuestExecution)
	assert.Contains(t, err.Error(), "guest blew up")
}

func TestQueries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := NewRegistry[*fakeHandle]("catalog", SharedDispatch)

	a, _ := record("b-plugin", manifest.Capabilities{Search: true})
	b, _ := record("a-plugin", manifest.Capabilities{Search: true, GetStreams: true})
	b.Manifest.Formats = []string{"mp4"}
	c, _ := record("c-plugin", manifest.Capabilities{ExtractStream: true})
	c.Manifest.PluginType = manifest.TypeStreamExtractor
	for _, rec := range []*Record[*fakeHandle]{a, b, c} {
		_, err := reg.Insert(ctx, rec)
		require.NoError(t, err)
	}

	ids := func(recs []Record[*fakeHandle]) []string {
		out := make([]string, 0, len(recs))
		for _, r := range recs {
			out = append(out, r.Manifest.ID)
		}

		return out
	}

	assert.Equal(t, []string{"a-plugin", "b-plugin", "c-plugin"}, ids(reg.GetAll()))
	assert.Equal(t, []string{"a-plugin", "b-plugin"}, ids(reg.GetByCapability(manifest.CapSearch)))
	assert.Equal(t, []string{"b-plugin", "c-plugin"}, ids(reg.GetByFormat("m3u8")))
	assert.Equal(t, []string{"c-plugin"}, ids(reg.GetByType(manifest.TypeStreamExtractor)))
	assert.Equal(t, []string{"c-plugin"}, reg.FindBySource("/plugins/c-plugin"))

	require.NoError(t, reg.SetEnabled("a-plugin", false))
	assert.Equal(t, []string{"b-plugin", "c-plugin"}, ids(reg.GetEnabled()))
	assert.Equal(t, []string{"b-plugin"}, ids(reg.GetByCapability(manifest.CapSearch)))
	assert.Len(t, reg.GetAll(), 3)

	assert.ErrorIs(t, reg.SetEnabled("ghost", true), errorcodes.ErrNotFound)

	summaries := reg.Summaries()
	require.Len(t, summaries, 3)
	assert.Equal(t, "a-plugin", summaries[0].ID)
	assert.False(t, summaries[0].Enabled)
	assert.Equal(t, "catalog", summaries[0].Backend)
	assert.Equal(t, []manifest.Capability{manifest.CapSearch, manifest.CapGetStreams}, summaries[0].Capabilities)
}

func TestClose(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := NewRegistry[*fakeHandle]("wasm", ExclusiveDispatch)
	rec, h := record("demo", manifest.Capabilities{Search: true})
	_, err := reg.Insert(ctx, rec)
	require.NoError(t, err)

	require.NoError(t, reg.Close(ctx))
	require.NoError(t, reg.Close(ctx))
	assert.Equal(t, int32(1), h.closed.Load())

	_, err = reg.Get("demo")
	require.ErrorIs(t, err, errorcodes.ErrLockFailure)
	_, err = reg.Insert(ctx, rec)
	require.ErrorIs(t, err, errorcodes.ErrLockFailure)
	require.ErrorIs(t, reg.Unload(ctx, "demo"), errorcodes.ErrLockFailure)
	require.ErrorIs(t, reg.SetEnabled("demo", true), errorcodes.ErrLockFailure)
	err = reg.Dispatch("demo", manifest.CapSearch, func(*Record[*fakeHandle]) error { return nil })
	require.ErrorIs(t, err, errorcodes.ErrLockFailure)
}

func TestSharedDispatchRunsConcurrently(t *testing.T) {
	t.Parallel()
	reg := NewRegistry[*fakeHandle]("native", SharedDispatch)
	rec, _ := record("demo", manifest.Capabilities{Search: true})
	_, err := reg.Insert(context.Background(), rec)
	require.NoError(t, err)

	// Both calls must be inside the read lock at once for the barrier to open.
	var ready sync.WaitGroup
	ready.Add(2)
	release := make(chan struct{})
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = reg.Dispatch("demo", manifest.CapSearch, func(*Record[*fakeHandle]) error {
				ready.Done()
				<-release

				return nil
			})
		}()
	}
	ready.Wait()
	close(release)
	wg.Wait()
}

func TestExclusiveDispatchSerialises(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := NewRegistry[*fakeHandle]("wasm", ExclusiveDispatch)
	for _, id := range []string{"a", "b"} {
		rec, _ := record(id, manifest.Capabilities{Search: true})
		_, err := reg.Insert(ctx, rec)
		require.NoError(t, err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = reg.Dispatch("a", manifest.CapSearch, func(*Record[*fakeHandle]) error {
			close(entered)
			<-release

			return nil
		})
	}()
	<-entered

	var secondRan, inserted atomic.Bool
	wg.Add(2)
	go func() {
		defer wg.Done()
		err := reg.Dispatch("b", manifest.CapSearch, func(*Record[*fakeHandle]) error {
			secondRan.Store(true)

			return nil
		})
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		rec, _ := record("c", manifest.Capabilities{Search: true})
		_, err := reg.Insert(ctx, rec)
		assert.NoError(t, err)
		inserted.Store(true)
	}()

	assert.Never(t, func() bool { return secondRan.Load() || inserted.Load() },
		100*time.Millisecond, 10*time.Millisecond)

	close(release)
	wg.Wait()
	assert.True(t, secondRan.Load())
	assert.True(t, inserted.Load())
	assert.True(t, reg.Contains("c"))
}

func TestLoadResult(t *testing.T) {
	t.Parallel()

	res := NewLoadResult("/tmp/demo.zpe")
	res.Warnf("plugin '%s' replacing", "demo")
	err := res.Fail(errorcodes.ErrArchive.Withf("plugin.wasm not found in archive"))
	require.ErrorIs(t, err, errorcodes.ErrArchive)
	assert.False(t, res.Success)
	assert.Len(t, res.Errors, 1)
	assert.Equal(t, []string{"plugin 'demo' replacing"}, res.Warnings)

	ok := NewLoadResult("x")
	ok.Succeed("demo")
	assert.True(t, ok.Success)
	assert.Equal(t, "demo", ok.PluginID)
}
