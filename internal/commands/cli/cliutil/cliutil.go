// Package cliutil holds helpers shared by the one-shot commands.
package cliutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/andrei-cloud/go_ayoto/internal/app"
	"github.com/andrei-cloud/go_ayoto/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by -o.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Quiet disables logging for commands that print results, unless debug
// logging was requested.
func Quiet() {
	if zerolog.GlobalLevel() > zerolog.DebugLevel {
		log.Logger = log.Logger.Level(zerolog.Disabled)
	}
}

// OpenApp loads the configured plugin directory.
func OpenApp(ctx context.Context) (*app.App, error) {
	a, _, err := app.Open(ctx, app.Options{Config: config.Get()})
	if err != nil {
		return nil, fmt.Errorf("failed to load plugins: %w", err)
	}

	return a, nil
}

// NewApp builds backends without loading the plugin directory.
func NewApp(ctx context.Context) (*app.App, error) {
	return app.New(ctx, app.Options{Config: config.Get()})
}

// ServerAddress is the configured server address.
func ServerAddress() string {
	cfg := config.Get()

	return net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
}

// Render writes v to w as JSON or YAML.
func Render(w io.Writer, format string, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}

		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
