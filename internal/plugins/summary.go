package plugins

import (
	"time"

	"github.com/andrei-cloud/go_ayoto/internal/manifest"
)

// Summary is the listing view of a loaded plugin.
type Summary struct {
	ID           string                `json:"id"                 yaml:"id"`
	Name         string                `json:"name"               yaml:"name"`
	Version      string                `json:"version"            yaml:"version"`
	Backend      string                `json:"backend"            yaml:"backend"`
	Type         manifest.PluginType   `json:"pluginType"         yaml:"pluginType"`
	Enabled      bool                  `json:"enabled"            yaml:"enabled"`
	Capabilities []manifest.Capability `json:"capabilities"       yaml:"capabilities"`
	Formats      []string              `json:"formats,omitempty"  yaml:"formats,omitempty"`
	Anime4K      bool                  `json:"anime4kSupport"     yaml:"anime4kSupport"`
	Source       string                `json:"source,omitempty"   yaml:"source,omitempty"`
	LoadedAt     time.Time             `json:"loadedAt"           yaml:"loadedAt"`
	Warnings     []string              `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Summarize builds the listing view of rec.
func Summarize[H Handle](backend string, rec Record[H]) Summary {
	m := rec.Manifest
	warnings := append([]string(nil), rec.Compatibility.Warnings...)
	if rec.LastError != "" {
		warnings = append(warnings, rec.LastError)
	}

	return Summary{
		ID:           m.ID,
		Name:         m.Name,
		Version:      m.Version,
		Backend:      backend,
		Type:         m.PluginType,
		Enabled:      rec.Enabled,
		Capabilities: m.Capabilities.Names(),
		Formats:      m.Formats,
		Anime4K:      m.Anime4KSupport,
		Source:       rec.Source,
		LoadedAt:     rec.LoadedAt,
		Warnings:     warnings,
	}
}

// Summaries returns the listing view of every record.
func (r *Registry[H]) Summaries() []Summary {
	recs := r.GetAll()
	out := make([]Summary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Summarize(r.name, rec))
	}

	return out
}
