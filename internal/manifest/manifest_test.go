package manifest

import (
	"testing"

	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
	"github.com/andrei-cloud/go_ayoto/internal/semver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validManifest() *Manifest {
	return &Manifest{
		ID:                "demo-plugin_1",
		Name:              "Demo",
		Version:           "1.0.0",
		TargetHostVersion: "1.0.0",
		PluginType:        TypeContentProvider,
		Capabilities:      Capabilities{Search: true},
		Formats:           []string{"m3u8", "mp4"},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		mutate       func(m *Manifest)
		valid        bool
		wantError    string
		wantWarnings int
	}{
		{name: "valid", mutate: func(*Manifest) {}, valid: true},
		{
			name:      "missing id",
			mutate:    func(m *Manifest) { m.ID = "" },
			wantError: "plugin id is required",
		},
		{
			name:      "bad id characters",
			mutate:    func(m *Manifest) { m.ID = "demo plugin!" },
			wantError: "plugin id must contain only alphanumeric characters, hyphens, and underscores",
		},
		{
			name:      "missing name",
			mutate:    func(m *Manifest) { m.Name = "" },
			wantError: "plugin name is required",
		},
		{
			name:      "bad version",
			mutate:    func(m *Manifest) { m.Version = "1.0" },
			wantError: "invalid plugin version",
		},
		{
			name:      "bad target version",
			mutate:    func(m *Manifest) { m.TargetHostVersion = "latest" },
			wantError: "invalid target host version",
		},
		{
			name:      "bad max version",
			mutate:    func(m *Manifest) { m.MaxHostVersion = "2" },
			wantError: "invalid max host version",
		},
		{
			name:         "unknown format is a warning",
			mutate:       func(m *Manifest) { m.Formats = []string{"m3u8", "flv"} },
			valid:        true,
			wantWarnings: 1,
		},
		{
			name:         "no capabilities is a warning",
			mutate:       func(m *Manifest) { m.Capabilities = Capabilities{} },
			valid:        true,
			wantWarnings: 1,
		},
		{
			name:      "scraping without config",
			mutate:    func(m *Manifest) { m.Capabilities.Scraping = true },
			wantError: "scraping capability requires a scraping config with a baseUrl",
		},
		{
			name: "scraping with empty base url",
			mutate: func(m *Manifest) {
				m.Capabilities.Scraping = true
				m.ScrapingConfig = &ScrapingConfig{}
			},
			wantError: "scraping capability requires a scraping config with a baseUrl",
		},
		{
			name: "scraping with base url",
			mutate: func(m *Manifest) {
				m.Capabilities.Scraping = true
				m.ScrapingConfig = &ScrapingConfig{BaseURL: "https://example.org"}
			},
			valid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := validManifest()
			tt.mutate(m)

			res := m.Validate()
			assert.Equal(t, tt.valid, res.Valid)
			assert.Len(t, res.Warnings, tt.wantWarnings)
			if tt.valid {
				assert.Empty(t, res.Errors)
				assert.NoError(t, res.Err())

				return
			}
			require.NotEmpty(t, res.Errors)
			assert.Contains(t, res.Errors[0], tt.wantError)
			assert.ErrorIs(t, res.Err(), errorcodes.ErrValidation)
		})
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	doc := `{
		"id": "demo",
		"name": "Demo",
		"version": "1.2.0",
		"targetHostVersion": "1.0.0",
		"pluginType": "streamProvider",
		"capabilities": {"search": true, "getStreams": true},
		"platforms": ["desktop"],
		"formats": ["m3u8"],
		"abiVersion": 1
	}`

	m, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "demo", m.ID)
	assert.Equal(t, TypeStreamExtractor, m.PluginType)
	assert.True(t, m.Capabilities.Has(CapSearch))
	assert.True(t, m.Capabilities.Has(CapGetStreams))
	assert.False(t, m.Capabilities.Has(CapGetEpisodes))
	assert.Equal(t, uint32(1), m.AbiVersion)

	_, err = Parse([]byte(`{"id": `))
	assert.ErrorIs(t, err, errorcodes.ErrParse)

	_, err = Parse([]byte(`{"id": "x", "pluginType": "bogus"}`))
	assert.ErrorIs(t, err, errorcodes.ErrParse)
}

func TestParseYAML(t *testing.T) {
	t.Parallel()

	doc := `
id: yaml-demo
name: YAML Demo
version: 0.1.0
targetHostVersion: 1.0.0
capabilities:
  getEpisodes: true
scrapingConfig:
  baseUrl: https://example.org
  rateLimitMs: 250
`
	m, err := ParseYAML([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "yaml-demo", m.ID)
	assert.Equal(t, TypeContentProvider, m.PluginType)
	assert.True(t, m.Capabilities.GetEpisodes)
	require.NotNil(t, m.ScrapingConfig)
	assert.Equal(t, uint64(250), m.ScrapingConfig.RateLimitMs)
}

func TestCheckCompatibility(t *testing.T) {
	t.Parallel()

	host := semver.MustParse("1.4.0")

	tests := []struct {
		name       string
		target     string
		maxVersion string
		platforms  []Platform
		platform   Platform
		compatible bool
		platformOK bool
	}{
		{name: "same major", target: "1.0.0", platform: PlatformLinux, compatible: true, platformOK: true},
		{name: "newer minor", target: "1.5.0", platform: PlatformLinux, platformOK: true},
		{name: "older major", target: "0.9.0", platform: PlatformLinux, platformOK: true},
		{name: "newer major", target: "2.0.0", platform: PlatformLinux, platformOK: true},
		{
			name: "max of other major", target: "1.0.0", maxVersion: "2.0.0",
			platform: PlatformLinux, platformOK: true,
		},
		{
			name: "desktop group", target: "1.0.0", platforms: []Platform{PlatformDesktop},
			platform: PlatformMacOS, compatible: true, platformOK: true,
		},
		{
			name: "mobile only", target: "1.0.0", platforms: []Platform{PlatformMobile},
			platform: PlatformWindows, compatible: true,
		},
		{
			name: "universal", target: "1.0.0", platforms: []Platform{PlatformUniversal},
			platform: PlatformAndroid, compatible: true, platformOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := validManifest()
			m.TargetHostVersion = tt.target
			m.MaxHostVersion = tt.maxVersion
			m.Platforms = tt.platforms

			report := m.CheckCompatibility(host, tt.platform)
			assert.Equal(t, tt.compatible, report.HostVersionCompatible)
			assert.Equal(t, tt.platformOK, report.PlatformCompatible)
			assert.Equal(t, tt.compatible && tt.platformOK, len(report.Warnings) == 0)
			assert.Equal(t, "1.4.0", report.HostVersion)
			assert.Equal(t, tt.target, report.TargetVersion)
		})
	}
}

func TestCapabilities(t *testing.T) {
	t.Parallel()

	var caps Capabilities
	caps.Set(CapSearch, true)
	caps.Set(CapExtractStream, true)
	caps.Set(Capability("unknown"), true)

	assert.Equal(t, []Capability{CapSearch, CapExtractStream}, caps.Names())
	assert.Equal(t, 2, caps.Count())
	assert.Equal(t, FlagSearch|FlagExtractStream, caps.Flags())
	assert.False(t, caps.Has(Capability("unknown")))

	all := Capabilities{}
	for _, c := range AllCapabilities {
		all.Set(c, true)
	}
	assert.Equal(t, all, CapabilitiesFromFlags(all.Flags()))
	assert.Equal(t, Capabilities{GetStreams: true}, CapabilitiesFromFlags(FlagGetStreams|1<<7))

	parsed, err := ParseCapability("GETSTREAMS")
	require.NoError(t, err)
	assert.Equal(t, CapGetStreams, parsed)

	_, err = ParseCapability("teleport")
	assert.Error(t, err)
}

func TestPlatforms(t *testing.T) {
	t.Parallel()

	assert.Nil(t, PlatformsFromFlags(0))
	assert.Nil(t, PlatformsFromFlags(PlatformFlagUniversal))
	assert.Equal(t,
		[]Platform{PlatformLinux, PlatformMacOS},
		PlatformsFromFlags(PlatformFlagLinux|PlatformFlagMacOS))
	assert.Equal(t, PlatformMacOS, platformFromGOOS("darwin"))
	assert.Equal(t, PlatformUniversal, platformFromGOOS("plan9"))
	assert.Equal(t, TypeStreamExtractor, PluginTypeFromCode(1))
	assert.Equal(t, TypeContentProvider, PluginTypeFromCode(0))
}

func TestClone(t *testing.T) {
	t.Parallel()

	m := validManifest()
	m.ScrapingConfig = &ScrapingConfig{BaseURL: "https://a"}
	c := m.Clone()
	c.Formats[0] = "mkv"
	c.ScrapingConfig.BaseURL = "https://b"
	c.Icon = "data:image/png;base64,AA=="

	assert.Equal(t, "m3u8", m.Formats[0])
	assert.Equal(t, "https://a", m.ScrapingConfig.BaseURL)
	assert.Empty(t, m.Icon)
}
