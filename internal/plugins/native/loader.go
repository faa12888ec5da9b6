package native

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"

	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
	"github.com/andrei-cloud/go_ayoto/internal/manifest"
	"github.com/andrei-cloud/go_ayoto/internal/plugins"
	"github.com/andrei-cloud/go_ayoto/internal/semver"
	"github.com/andrei-cloud/go_ayoto/pkg/zpeplugin"
	"github.com/rs/zerolog/log"
)

// BackendName identifies this backend in registries, logs and metrics.
const BackendName = "native"

// Options configures a Loader.
type Options struct {
	HostVersion semver.Version
	Platform    manifest.Platform
	Host        HostConfig
	// Opener and Binder default to the system dynamic loader.
	Opener Opener
	Binder Binder
}

// Plugin owns an instance and the library that produced it.
type Plugin struct {
	id   string
	lib  Library
	inst Instance
}

// Close shuts the instance down, destroys it, then releases the library.
func (p *Plugin) Close(context.Context) error {
	if err := p.inst.Shutdown(); err != nil {
		log.Warn().
			Err(err).
			Str("source", "native").
			Str("plugin_id", p.id).
			Msg("plugin shutdown failed")
	}
	destroyErr := p.inst.Destroy()
	closeErr := p.lib.Close()

	return errors.Join(destroyErr, closeErr)
}

// Loader loads native libraries into a shared-dispatch registry.
type Loader struct {
	opener   Opener
	binder   Binder
	registry *plugins.Registry[*Plugin]
	opts     Options
}

// NewLoader returns a loader with its own registry.
func NewLoader(opts Options) *Loader {
	if opts.Opener == nil {
		opts.Opener = SystemOpener()
	}
	if opts.Binder == nil {
		opts.Binder = SystemBinder()
	}
	if opts.Platform == "" {
		opts.Platform = manifest.CurrentPlatform()
	}
	if opts.Host.HostVersion == "" {
		opts.Host = DefaultHostConfig(opts.HostVersion.String(), opts.Host.DataDir, opts.Host.CacheDir)
	}

	return &Loader{
		opener:   opts.Opener,
		binder:   opts.Binder,
		registry: plugins.NewRegistry[*Plugin](BackendName, plugins.SharedDispatch),
		opts:     opts,
	}
}

// Name returns the backend name.
func (l *Loader) Name() string { return BackendName }

// Registry exposes the underlying registry.
func (l *Loader) Registry() *plugins.Registry[*Plugin] { return l.registry }

// Accepts reports whether path has the host's library extension.
func (l *Loader) Accepts(path string) bool {
	return strings.EqualFold(filepath.Ext(path), PluginExtension())
}

// Load opens a library, checks its ABI, creates and initialises the plugin.
func (l *Loader) Load(ctx context.Context, path string) (*plugins.LoadResult, error) {
	res := plugins.NewLoadResult(path)

	if !l.Accepts(path) {
		return res, res.Fail(errorcodes.ErrLibraryLoad.Withf(
			"invalid plugin extension '%s', expected '%s'", filepath.Ext(path), PluginExtension()))
	}

	lib, err := l.opener.Open(path)
	if err != nil {
		return res, res.Fail(err)
	}

	abi, err := l.binder.ABIVersion(lib)
	if err != nil {
		_ = lib.Close()

		return res, res.Fail(err)
	}
	if abi != ABIVersion {
		_ = lib.Close()

		return res, res.Fail(errorcodes.ErrAbiMismatch.Withf(
			"ABI version mismatch: plugin has v%d, expected v%d", abi, ABIVersion))
	}

	inst, err := l.binder.Create(lib)
	if err != nil {
		_ = lib.Close()

		return res, res.Fail(err)
	}

	md, err := inst.Metadata()
	if err == nil && md.ID == "" {
		err = errorcodes.ErrValidation.Withf("plugin has empty id")
	}
	if err != nil {
		_ = inst.Destroy()
		_ = lib.Close()

		return res, res.Fail(err)
	}

	m := md.Manifest()
	res.PluginID = m.ID
	report := m.CheckCompatibility(l.opts.HostVersion, l.opts.Platform)
	if !report.PlatformCompatible {
		_ = inst.Destroy()
		_ = lib.Close()

		return res, res.Fail(errorcodes.ErrPlatformIncompatible.Withf(
			"plugin '%s' does not support platform %s", m.ID, l.opts.Platform))
	}
	res.Warnings = append(res.Warnings, report.Warnings...)

	if l.registry.Contains(m.ID) {
		res.Warnf("plugin '%s' already loaded, replacing", m.ID)
	}

	p := &Plugin{id: m.ID, lib: lib, inst: inst}
	rec := plugins.NewRecord(m, p, path, report)

	if err := inst.Initialize(l.opts.Host); err != nil {
		res.Warnf("plugin initialization warning: %v", err)
		rec.LastError = err.Error()
	}

	if _, err := l.registry.Insert(ctx, rec); err != nil {
		_ = p.Close(ctx)

		return res, res.Fail(err)
	}
	res.Succeed(m.ID)

	return res, nil
}

// MapsFiles reports that a loaded path keeps its mapping: opening it again
// returns the library already in memory, not the file on disk.
func (l *Loader) MapsFiles() bool { return true }

// LoadDir loads every library in dir.
func (l *Loader) LoadDir(ctx context.Context, dir string) ([]*plugins.LoadResult, error) {
	return plugins.LoadDir(ctx, BackendName, dir, l.Accepts, l.Load)
}

// Invoke dispatches one call under the registry's shared lock.
func (l *Loader) Invoke(
	ctx context.Context,
	id string,
	c manifest.Capability,
	request []byte,
) (json.RawMessage, error) {
	var out json.RawMessage
	err := l.registry.Dispatch(id, c, func(rec *plugins.Record[*Plugin]) error {
		resp, err := rec.Handle.inst.Call(c, request)
		if err != nil {
			return err
		}
		out, err = decodeEnvelope(resp)

		return err
	})

	return out, err
}

// Unload shuts the plugin down and releases its library.
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

// Close unloads every plugin.
func (l *Loader) Close(ctx context.Context) error {
	return l.registry.Close(ctx)
}

func decodeEnvelope(resp []byte) (json.RawMessage, error) {
	value, err := zpeplugin.DecodeEnvelope(resp)
	if err != nil {
		var failure *zpeplugin.FailureError
		if errors.As(err, &failure) {
			return nil, errorcodes.ErrGuestExecution.Withf("%s", failure.Error())
		}

		return nil, errorcodes.ErrGuestExecution.Withf("invalid result envelope").Wrap(err)
	}

	return value, nil
}

// checkEnvelope accepts any successful envelope, with or without a value.
func checkEnvelope(resp []byte) error {
	var env zpeplugin.Envelope
	if err := json.Unmarshal(resp, &env); err != nil {
		return errorcodes.ErrGuestExecution.Withf("invalid result envelope").Wrap(err)
	}
	if !env.Success {
		return errorcodes.ErrGuestExecution.Withf("%s", (&zpeplugin.FailureError{Message: env.Error}).Error())
	}

	return nil
}
