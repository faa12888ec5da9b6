package manifest

import (
	"fmt"

	"github.com/andrei-cloud/go_ayoto/internal/semver"
)

// CompatibilityReport is computed once at load time and cached in the plugin record.
type CompatibilityReport struct {
	HostVersionCompatible bool     `json:"hostVersionCompatible" yaml:"hostVersionCompatible"`
	PlatformCompatible    bool     `json:"platformCompatible"    yaml:"platformCompatible"`
	Warnings              []string `json:"warnings,omitempty"    yaml:"warnings,omitempty"`
	TargetVersion         string   `json:"targetVersion"         yaml:"targetVersion"`
	HostVersion           string   `json:"hostVersion"           yaml:"hostVersion"`
}

// CheckCompatibility evaluates the manifest against a host version and platform.
// A version mismatch only produces warnings; callers decide whether a platform
// mismatch is fatal.
func (m *Manifest) CheckCompatibility(host semver.Version, platform Platform) CompatibilityReport {
	report := CompatibilityReport{
		PlatformCompatible: m.SupportsPlatform(platform),
		TargetVersion:      m.TargetHostVersion,
		HostVersion:        host.String(),
	}

	ok, err := m.IsCompatibleWithHost(host)
	switch {
	case err != nil:
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("cannot determine host compatibility: %v", err))
	case !ok:
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"plugin '%s' v%s was built for host v%s but current version is v%s; there may be compatibility issues",
			m.Name, m.Version, m.TargetHostVersion, host))
	}
	report.HostVersionCompatible = err == nil && ok

	if !report.PlatformCompatible {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("plugin '%s' does not support platform %s", m.Name, platform))
	}

	return report
}
