// Package manifest describes plugins declaratively: identity, target host
// version, capabilities, plugin category and platform applicability.
package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
	"github.com/andrei-cloud/go_ayoto/internal/semver"
	"gopkg.in/yaml.v3"
)

// PluginType is the plugin category.
type PluginType string

// Plugin categories.
const (
	TypeContentProvider PluginType = "contentProvider"
	TypeStreamExtractor PluginType = "streamExtractor"
)

// ParsePluginType resolves a plugin category, accepting legacy names.
func ParsePluginType(s string) (PluginType, error) {
	switch s {
	case "", string(TypeContentProvider), "mediaProvider":
		return TypeContentProvider, nil
	case string(TypeStreamExtractor), "streamProvider":
		return TypeStreamExtractor, nil
	default:
		return "", fmt.Errorf("unknown plugin type %q", s)
	}
}

// PluginTypeFromCode maps the native metadata byte to a category.
func PluginTypeFromCode(code uint8) PluginType {
	if code == 1 {
		return TypeStreamExtractor
	}

	return TypeContentProvider
}

// UnmarshalJSON accepts current and legacy category names.
func (t *PluginType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePluginType(s)
	if err != nil {
		return err
	}
	*t = parsed

	return nil
}

// UnmarshalYAML accepts current and legacy category names.
func (t *PluginType) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParsePluginType(node.Value)
	if err != nil {
		return err
	}
	*t = parsed

	return nil
}

// ScrapingConfig describes the source site of a scraping plugin.
type ScrapingConfig struct {
	BaseURL            string         `json:"baseUrl"                      yaml:"baseUrl"`
	UserAgent          string         `json:"userAgent,omitempty"          yaml:"userAgent,omitempty"`
	RateLimitMs        uint64         `json:"rateLimitMs,omitempty"        yaml:"rateLimitMs,omitempty"`
	RequiresJavascript bool           `json:"requiresJavascript,omitempty" yaml:"requiresJavascript,omitempty"`
	Selectors          map[string]any `json:"selectors,omitempty"          yaml:"selectors,omitempty"`
}

// Manifest is the declarative description of a plugin.
type Manifest struct {
	ID                string              `json:"id"                       yaml:"id"`
	Name              string              `json:"name"                     yaml:"name"`
	Version           string              `json:"version"                  yaml:"version"`
	TargetHostVersion string              `json:"targetHostVersion"        yaml:"targetHostVersion"`
	MaxHostVersion    string              `json:"maxHostVersion,omitempty" yaml:"maxHostVersion,omitempty"`
	Description       string              `json:"description,omitempty"    yaml:"description,omitempty"`
	Author            string              `json:"author,omitempty"         yaml:"author,omitempty"`
	Homepage          string              `json:"homepage,omitempty"       yaml:"homepage,omitempty"`
	Icon              string              `json:"icon,omitempty"           yaml:"icon,omitempty"`
	PluginType        PluginType          `json:"pluginType,omitempty"     yaml:"pluginType,omitempty"`
	Capabilities      Capabilities        `json:"capabilities"             yaml:"capabilities"`
	Platforms         []Platform          `json:"platforms,omitempty"      yaml:"platforms,omitempty"`
	Providers         []string            `json:"providers,omitempty"      yaml:"providers,omitempty"`
	Formats           []string            `json:"formats,omitempty"        yaml:"formats,omitempty"`
	Anime4KSupport    bool                `json:"anime4kSupport,omitempty" yaml:"anime4kSupport,omitempty"`
	ScrapingConfig    *ScrapingConfig     `json:"scrapingConfig,omitempty" yaml:"scrapingConfig,omitempty"`
	AbiVersion        uint32              `json:"abiVersion,omitempty"     yaml:"abiVersion,omitempty"`
	Libraries         map[Platform]string `json:"libraries,omitempty"      yaml:"libraries,omitempty"`
	Config            map[string]any      `json:"config,omitempty"         yaml:"config,omitempty"`
}

// Parse decodes a JSON manifest document.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errorcodes.ErrParse.Withf("failed to parse plugin manifest").Wrap(err)
	}
	m.normalize()

	return &m, nil
}

// ParseYAML decodes a YAML manifest document.
func ParseYAML(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errorcodes.ErrParse.Withf("failed to parse plugin manifest").Wrap(err)
	}
	m.normalize()

	return &m, nil
}

func (m *Manifest) normalize() {
	if m.PluginType == "" {
		m.PluginType = TypeContentProvider
	}
}

// JSON renders the manifest as indented JSON.
func (m *Manifest) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// Clone returns a deep enough copy for callers that mutate slices or the icon.
func (m *Manifest) Clone() *Manifest {
	c := *m
	c.Platforms = append([]Platform(nil), m.Platforms...)
	c.Providers = append([]string(nil), m.Providers...)
	c.Formats = append([]string(nil), m.Formats...)
	if m.ScrapingConfig != nil {
		sc := *m.ScrapingConfig
		c.ScrapingConfig = &sc
	}

	return &c
}

// ParsedVersion returns the plugin version.
func (m *Manifest) ParsedVersion() (semver.Version, error) {
	return semver.Parse(m.Version)
}

// ParsedTargetVersion returns the targeted host version.
func (m *Manifest) ParsedTargetVersion() (semver.Version, error) {
	return semver.Parse(m.TargetHostVersion)
}

// SupportsPlatform reports whether the plugin runs on p. No declared platforms means universal.
func (m *Manifest) SupportsPlatform(p Platform) bool {
	if len(m.Platforms) == 0 {
		return true
	}
	for _, declared := range m.Platforms {
		if declared.Matches(p) {
			return true
		}
	}

	return false
}

// SupportsFormat reports whether the plugin declares stream format f.
func (m *Manifest) SupportsFormat(f string) bool {
	for _, declared := range m.Formats {
		if declared == f {
			return true
		}
	}

	return false
}

// IsCompatibleWithHost reports whether host satisfies the manifest's version window:
// same major as the target, at least the target, and same major as the max when set.
func (m *Manifest) IsCompatibleWithHost(host semver.Version) (bool, error) {
	target, err := m.ParsedTargetVersion()
	if err != nil {
		return false, err
	}
	if !host.IsCompatibleWith(target) || !host.IsAtLeast(target) {
		return false, nil
	}
	if m.MaxHostVersion != "" {
		maxVersion, err := semver.Parse(m.MaxHostVersion)
		if err != nil {
			return false, err
		}
		if !host.IsCompatibleWith(maxVersion) {
			return false, nil
		}
	}

	return true, nil
}
