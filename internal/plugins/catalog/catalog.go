// Package catalog keeps declarative plugins: manifests shipped as `.ayoto`
// JSON or `.ayoto.yaml` documents that describe a scraping source but carry no
// executable code.
package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
	"github.com/andrei-cloud/go_ayoto/internal/manifest"
	"github.com/andrei-cloud/go_ayoto/internal/plugins"
	"github.com/andrei-cloud/go_ayoto/internal/semver"
)

// BackendName identifies the catalog in registries and logs.
const BackendName = "catalog"

// Manifest file extensions.
const (
	JSONExtension = ".ayoto"
	YAMLExtension = ".ayoto.yaml"
	ymlExtension  = ".ayoto.yml"
)

// Entry is the handle of a declarative plugin. It owns no resources.
type Entry struct{}

// Close implements plugins.Handle.
func (Entry) Close(context.Context) error { return nil }

// Record is a catalog registry record.
type Record = plugins.Record[Entry]

// Options configures a Catalog.
type Options struct {
	HostVersion semver.Version
	Platform    manifest.Platform
}

// Catalog is a registry of declarative plugins.
type Catalog struct {
	registry *plugins.Registry[Entry]
	opts     Options
}

// New returns an empty catalog.
func New(opts Options) *Catalog {
	if opts.Platform == "" {
		opts.Platform = manifest.CurrentPlatform()
	}

	return &Catalog{
		registry: plugins.NewRegistry[Entry](BackendName, plugins.SharedDispatch),
		opts:     opts,
	}
}

// Name returns the backend name.
func (c *Catalog) Name() string { return BackendName }

// Registry exposes the underlying registry.
func (c *Catalog) Registry() *plugins.Registry[Entry] { return c.registry }

// Accepts reports whether path has a manifest extension.
func (c *Catalog) Accepts(path string) bool {
	return isYAML(path) || strings.EqualFold(filepath.Ext(path), JSONExtension)
}

func isYAML(path string) bool {
	lower := strings.ToLower(path)

	return strings.HasSuffix(lower, YAMLExtension) || strings.HasSuffix(lower, ymlExtension)
}

// LoadJSON loads a JSON manifest; source is recorded on the record.
func (c *Catalog) LoadJSON(ctx context.Context, data []byte, source string) (*plugins.LoadResult, error) {
	res := plugins.NewLoadResult(source)

	m, err := manifest.Parse(data)
	if err != nil {
		return res, res.Fail(err)
	}

	return c.load(ctx, m, res)
}

// LoadYAML loads a YAML manifest.
func (c *Catalog) LoadYAML(ctx context.Context, data []byte, source string) (*plugins.LoadResult, error) {
	res := plugins.NewLoadResult(source)

	m, err := manifest.ParseYAML(data)
	if err != nil {
		return res, res.Fail(err)
	}

	return c.load(ctx, m, res)
}

// LoadFile loads a manifest from disk, choosing the decoder by extension.
func (c *Catalog) LoadFile(ctx context.Context, path string) (*plugins.LoadResult, error) {
	if !c.Accepts(path) {
		res := plugins.NewLoadResult(path)

		return res, res.Fail(errorcodes.ErrValidation.Withf(
			"invalid plugin file extension '%s', expected '%s' or '%s'",
			filepath.Ext(path), JSONExtension, YAMLExtension))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		res := plugins.NewLoadResult(path)

		return res, res.Fail(errorcodes.ErrParse.Withf("failed to read plugin file").Wrap(err))
	}

	if isYAML(path) {
		return c.LoadYAML(ctx, data, path)
	}

	return c.LoadJSON(ctx, data, path)
}

func (c *Catalog) load(ctx context.Context, m *manifest.Manifest, res *plugins.LoadResult) (*plugins.LoadResult, error) {
	vr := m.Validate()
	res.Warnings = append(res.Warnings, vr.Warnings...)
	if m.ID != "" {
		res.PluginID = m.ID
	}
	if !vr.Valid {
		res.Errors = append(res.Errors, vr.Errors...)

		return res, vr.Err()
	}

	report := m.CheckCompatibility(c.opts.HostVersion, c.opts.Platform)
	if !report.PlatformCompatible {
		return res, res.Fail(errorcodes.ErrPlatformIncompatible.Withf(
			"plugin '%s' does not support platform %s", m.Name, c.opts.Platform))
	}
	res.Warnings = append(res.Warnings, report.Warnings...)

	if c.registry.Contains(m.ID) {
		res.Warnf("plugin '%s' already loaded, replacing", m.ID)
	}

	rec := plugins.NewRecord(m, Entry{}, res.Source, report)
	if _, err := c.registry.Insert(ctx, rec); err != nil {
		return res, res.Fail(err)
	}
	res.Succeed(m.ID)

	return res, nil
}

// Load is LoadFile under the name shared with the executable backends.
func (c *Catalog) Load(ctx context.Context, path string) (*plugins.LoadResult, error) {
	return c.LoadFile(ctx, path)
}

// LoadDir loads every manifest in dir.
func (c *Catalog) LoadDir(ctx context.Context, dir string) ([]*plugins.LoadResult, error) {
	return plugins.LoadDir(ctx, BackendName, dir, c.Accepts, c.LoadFile)
}

// Contains reports whether id is loaded.
func (c *Catalog) Contains(id string) bool { return c.registry.Contains(id) }

// FindBySource returns the plugins loaded from path.
func (c *Catalog) FindBySource(path string) []string { return c.registry.FindBySource(path) }

// Get returns the record for id.
func (c *Catalog) Get(id string) (Record, error) { return c.registry.Get(id) }

// SetEnabled toggles a plugin.
func (c *Catalog) SetEnabled(id string, enabled bool) error {
	return c.registry.SetEnabled(id, enabled)
}

// Unload removes a plugin.
func (c *Catalog) Unload(ctx context.Context, id string) error {
	return c.registry.Unload(ctx, id)
}

// GetAnime4K returns enabled plugins that support Anime4K upscaling.
func (c *Catalog) GetAnime4K() []Record {
	return c.filterEnabled(func(m *manifest.Manifest) bool { return m.Anime4KSupport })
}

// GetContentProviders returns enabled content provider plugins.
func (c *Catalog) GetContentProviders() []Record {
	return c.registry.GetByType(manifest.TypeContentProvider)
}

// GetStreamExtractors returns enabled stream extractor plugins.
func (c *Catalog) GetStreamExtractors() []Record {
	return c.registry.GetByType(manifest.TypeStreamExtractor)
}

// GetByProvider returns enabled plugins of type t that list provider,
// compared case-insensitively. Stream extractors list hosters there,
// content providers list sites or languages.
func (c *Catalog) GetByProvider(t manifest.PluginType, provider string) []Record {
	return c.filterEnabled(func(m *manifest.Manifest) bool {
		if m.PluginType != t {
			return false
		}
		for _, p := range m.Providers {
			if strings.EqualFold(p, provider) {
				return true
			}
		}

		return false
	})
}

func (c *Catalog) filterEnabled(keep func(*manifest.Manifest) bool) []Record {
	var out []Record
	for _, rec := range c.registry.GetEnabled() {
		if keep(rec.Manifest) {
			out = append(out, rec)
		}
	}

	return out
}

// Summaries returns the listing view of every plugin.
func (c *Catalog) Summaries() []plugins.Summary { return c.registry.Summaries() }

// Close drops every plugin.
func (c *Catalog) Close(ctx context.Context) error { return c.registry.Close(ctx) }

// Sample returns a complete manifest for `plugin init` style scaffolding.
func Sample(host semver.Version) *manifest.Manifest {
	m := &manifest.Manifest{
		ID:                "sample-provider",
		Name:              "Sample Anime Provider",
		Version:           "1.0.0",
		TargetHostVersion: host.String(),
		Description:       "A sample declarative plugin",
		Author:            "go_ayoto",
		PluginType:        manifest.TypeContentProvider,
		Platforms:         []manifest.Platform{manifest.PlatformUniversal},
		Providers:         []string{"Sample Provider"},
		Formats:           []string{"m3u8", "mp4"},
		Anime4KSupport:    true,
		ScrapingConfig: &manifest.ScrapingConfig{
			BaseURL:     "https://example.com",
			UserAgent:   "go_ayoto/" + host.String(),
			RateLimitMs: 1000,
		},
		Config: map[string]any{
			"defaultQuality":  "1080p",
			"preferredServer": "main",
		},
	}
	for _, cp := range []manifest.Capability{
		manifest.CapSearch,
		manifest.CapGetPopular,
		manifest.CapGetLatest,
		manifest.CapGetEpisodes,
		manifest.CapGetStreams,
		manifest.CapGetAnimeDetails,
		manifest.CapScraping,
	} {
		m.Capabilities.Set(cp, true)
	}

	return m
}
