package wasm

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
	"github.com/andrei-cloud/go_ayoto/internal/manifest"
	"github.com/andrei-cloud/go_ayoto/internal/plugins"
	"github.com/andrei-cloud/go_ayoto/internal/semver"
	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
)

// BackendName identifies this backend in registries, logs and metrics.
const BackendName = "wasm"

// ABIVersion is the guest ABI the host implements.
const ABIVersion uint32 = 1

// Options configures a Loader.
type Options struct {
	HostVersion semver.Version
	Platform    manifest.Platform
}

// Loader loads .zpe archives into a registry and dispatches calls to them.
type Loader struct {
	runtime  *Runtime
	registry *plugins.Registry[*Instance]
	opts     Options
}

// NewLoader returns a loader with its own exclusive-dispatch registry.
func NewLoader(rt *Runtime, opts Options) *Loader {
	if opts.Platform == "" {
		opts.Platform = manifest.CurrentPlatform()
	}

	return &Loader{
		runtime:  rt,
		registry: plugins.NewRegistry[*Instance](BackendName, plugins.ExclusiveDispatch),
		opts:     opts,
	}
}

// Name returns the backend name.
func (l *Loader) Name() string { return BackendName }

// Registry exposes the underlying registry.
func (l *Loader) Registry() *plugins.Registry[*Instance] { return l.registry }

// Accepts reports whether path looks like a WASM plugin archive.
func (l *Loader) Accepts(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ArchiveExtension)
}

// Load reads and loads an archive from disk.
func (l *Loader) Load(ctx context.Context, path string) (*plugins.LoadResult, error) {
	res := plugins.NewLoadResult(path)

	bundle, err := ReadArchiveFile(path)
	if err != nil {
		return res, res.Fail(err)
	}

	return l.load(ctx, bundle, res)
}

// LoadBytes loads an in-memory archive; source is recorded on the record.
func (l *Loader) LoadBytes(ctx context.Context, data []byte, source string) (*plugins.LoadResult, error) {
	res := plugins.NewLoadResult(source)

	bundle, err := ReadArchive(data)
	if err != nil {
		return res, res.Fail(err)
	}

	return l.load(ctx, bundle, res)
}

func (l *Loader) load(ctx context.Context, bundle *Bundle, res *plugins.LoadResult) (*plugins.LoadResult, error) {
	m := bundle.Manifest
	if bundle.IconDataURI != "" {
		m.Icon = bundle.IconDataURI
	}

	vr := m.Validate()
	if !vr.Valid {
		res.Errors = append(res.Errors, vr.Errors...)
		res.Warnings = append(res.Warnings, vr.Warnings...)

		return res, vr.Err()
	}
	res.Warnings = append(res.Warnings, vr.Warnings...)
	res.PluginID = m.ID

	if m.AbiVersion != ABIVersion {
		res.Warnf("plugin '%s' targets ABI version %d, host implements %d", m.ID, m.AbiVersion, ABIVersion)
	}

	report := m.CheckCompatibility(l.opts.HostVersion, l.opts.Platform)
	if !report.PlatformCompatible {
		return res, res.Fail(errorcodes.ErrPlatformIncompatible.Withf(
			"plugin '%s' does not support platform %s", m.ID, l.opts.Platform))
	}
	res.Warnings = append(res.Warnings, report.Warnings...)

	if l.registry.Contains(m.ID) {
		res.Warnf("plugin '%s' already loaded, replacing", m.ID)
	}

	compiled, err := l.runtime.Compile(ctx, bundle.Module)
	if err != nil {
		return res, res.Fail(err)
	}
	if _, ok := compiled.ExportedMemories()[MemoryExport]; !ok {
		return res, res.Fail(errorcodes.ErrInstantiation.Withf("module does not export %s", MemoryExport))
	}

	loadID := uuid.New()
	cfg := wazero.NewModuleConfig().
		WithName(moduleName(m.ID, loadID.String())).
		WithStartFunctions("_initialize")

	mod, err := l.runtime.rt.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return res, res.Fail(errorcodes.ErrInstantiation.Withf("failed to instantiate module").Wrap(err))
	}

	inst := &Instance{id: m.ID, module: mod}
	rec := plugins.NewRecord(m, inst, res.Source, report)
	rec.LoadID = loadID

	if err := inst.initialize(ctx); err != nil {
		res.Warnf("plugin initialization warning: %v", err)
		rec.LastError = err.Error()
	}

	if _, err := l.registry.Insert(ctx, rec); err != nil {
		_ = mod.Close(ctx)

		return res, res.Fail(err)
	}
	res.Succeed(m.ID)

	return res, nil
}

// LoadDir loads every archive in dir. A missing directory yields no results.
func (l *Loader) LoadDir(ctx context.Context, dir string) ([]*plugins.LoadResult, error) {
	return plugins.LoadDir(ctx, BackendName, dir, l.Accepts, l.Load)
}

// Invoke dispatches one call under the registry's exclusive lock. The call
// runs to completion even if ctx is cancelled while it waits or executes.
func (l *Loader) Invoke(
	ctx context.Context,
	id string,
	c manifest.Capability,
	request []byte,
) (json.RawMessage, error) {
	ctx = context.WithoutCancel(ctx)

	var out json.RawMessage
	err := l.registry.Dispatch(id, c, func(rec *plugins.Record[*Instance]) error {
		var err error
		out, err = rec.Handle.Call(ctx, c, request)

		return err
	})

	return out, err
}

// Unload removes a plugin, running its shutdown export first.
func (l *Loader) Unload(ctx context.Context, id string) error {
	return l.registry.Unload(ctx, id)
}

// Contains reports whether id is loaded.
func (l *Loader) Contains(id string) bool { return l.registry.Contains(id) }

// SetEnabled toggles a plugin.
func (l *Loader) SetEnabled(id string, enabled bool) error {
	return l.registry.SetEnabled(id, enabled)
}

// CapableIDs returns enabled plugins declaring c.
func (l *Loader) CapableIDs(c manifest.Capability) []string { return l.registry.CapableIDs(c) }

// FindBySource returns the plugins loaded from path.
func (l *Loader) FindBySource(path string) []string { return l.registry.FindBySource(path) }

// Summaries returns the listing view of every plugin.
func (l *Loader) Summaries() []plugins.Summary { return l.registry.Summaries() }

// Close unloads every plugin. The runtime is closed by its owner.
func (l *Loader) Close(ctx context.Context) error {
	return l.registry.Close(ctx)
}
