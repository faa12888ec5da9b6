package manifest

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/andrei-cloud/go_ayoto/internal/errorcodes"
	"github.com/andrei-cloud/go_ayoto/internal/semver"
)

// KnownFormats lists the stream formats the host understands.
var KnownFormats = []string{"m3u8", "mp4", "mkv", "webm", "torrent"}

// ValidationResult collects rule violations (errors) and advisories (warnings).
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Err returns the violations as a single ErrValidation, or nil when valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}

	return errorcodes.ErrValidation.Withf("%s", strings.Join(r.Errors, "; "))
}

// Validate checks required fields, version strings, formats and cross-field rules.
func (m *Manifest) Validate() ValidationResult {
	var errs, warnings []string

	switch {
	case m.ID == "":
		errs = append(errs, "plugin id is required")
	case !validID(m.ID):
		errs = append(errs,
			"plugin id must contain only alphanumeric characters, hyphens, and underscores")
	}

	if m.Name == "" {
		errs = append(errs, "plugin name is required")
	}

	if _, err := semver.Parse(m.Version); err != nil {
		errs = append(errs, fmt.Sprintf("invalid plugin version: %v", err))
	}
	if _, err := semver.Parse(m.TargetHostVersion); err != nil {
		errs = append(errs, fmt.Sprintf("invalid target host version: %v", err))
	}
	if m.MaxHostVersion != "" {
		if _, err := semver.Parse(m.MaxHostVersion); err != nil {
			errs = append(errs, fmt.Sprintf("invalid max host version: %v", err))
		}
	}

	for _, f := range m.Formats {
		if !knownFormat(f) {
			warnings = append(warnings, fmt.Sprintf(
				"unknown stream format: %s (valid formats: %s)", f, strings.Join(KnownFormats, ", ")))
		}
	}

	if m.Capabilities.Count() == 0 {
		warnings = append(warnings, "plugin has no capabilities enabled")
	}

	if m.Capabilities.Scraping && (m.ScrapingConfig == nil || m.ScrapingConfig.BaseURL == "") {
		errs = append(errs, "scraping capability requires a scraping config with a baseUrl")
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs, Warnings: warnings}
}

func validID(id string) bool {
	for _, r := range id {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return false
		}
	}

	return true
}

func knownFormat(f string) bool {
	for _, k := range KnownFormats {
		if k == f {
			return true
		}
	}

	return false
}
