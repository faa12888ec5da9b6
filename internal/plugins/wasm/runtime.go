// Package wasm runs sandboxed content plugins shipped as .zpe archives.
package wasm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Defaults for RuntimeOptions.
const (
	DefaultMemoryLimitPages = 256
	DefaultCacheSize        = 32
)

// RuntimeOptions tunes the shared engine.
type RuntimeOptions struct {
	// MemoryLimitPages caps each guest memory in 64 KiB pages.
	MemoryLimitPages uint32
	// CacheSize bounds the number of compiled modules kept.
	CacheSize int
	// OnCompile, when set, is told whether each Compile hit the cache.
	OnCompile func(hit bool)
}

// Runtime is the engine shared by every WASM plugin: one wazero runtime,
// the env host module and a cache of compiled modules.
type Runtime struct {
	rt        wazero.Runtime
	cache     *lru.Cache[string, wazero.CompiledModule]
	onCompile func(hit bool)
}

// NewRuntime creates the engine and registers host functions.
func NewRuntime(ctx context.Context, opts RuntimeOptions) (*Runtime, error) {
	if opts.MemoryLimitPages == 0 {
		opts.MemoryLimitPages = DefaultMemoryLimitPages
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}

	// Guest calls are not interrupted by context cancellation: a closed
	// module could not serve later calls.
	cfg := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(opts.MemoryLimitPages)
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)

		return nil, fmt.Errorf("failed to instantiate wasi: %w", err)
	}

	if err := NewHostFunctions(rt).Register(ctx); err != nil {
		_ = rt.Close(ctx)

		return nil, err
	}

	cache, err := lru.NewWithEvict(opts.CacheSize, func(digest string, cm wazero.CompiledModule) {
		if err := cm.Close(context.Background()); err != nil {
			log.Warn().Err(err).Str("digest", digest).Msg("failed to close evicted module")
		}
	})
	if err != nil {
		_ = rt.Close(ctx)

		return nil, err
	}

	onCompile := opts.OnCompile
	if onCompile == nil {
		onCompile = func(bool) {}
	}

	return &Runtime{rt: rt, cache: cache, onCompile: onCompile}, nil
}

// Compile returns the compiled form of code, compiling at most once per digest.
func (r *Runtime) Compile(ctx context.Context, code []byte) (wazero.CompiledModule, error) {
	sum := sha256.Sum256(code)
	digest := hex.EncodeToString(sum[:])

	if cm, ok := r.cache.Get(digest); ok {
		log.Debug().Str("event", "wasm_cache_hit").Str("digest", digest).Msg("reusing compiled module")
		r.onCompile(true)

		return cm, nil
	}
	r.onCompile(false)

	cm, err := r.rt.CompileModule(ctx, code)
	if err != nil {
		return nil, errorcodes.ErrInstantiation.Withf("failed to compile module").Wrap(err)
	}
	r.cache.Add(digest, cm)

	return cm, nil
}

// Cached reports how many compiled modules are held.
func (r *Runtime) Cached() int {
	return r.cache.Len()
}

// Close tears down every module and the engine.
func (r *Runtime) Close(ctx context.Context) error {
	r.cache.Purge()

	return r.rt.Close(ctx)
}
