// Package cli provides the CLI command structure for go_ayoto.
package cli

import (
	"fmt"
	"strings"

	"github.com/andrei-cloud/go_ayoto/internal/config"
	"github.com/andrei-cloud/go_ayoto/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// flagKeys maps flag names to the configuration keys they override.
var flagKeys = map[string]string{
	"log-level":       "log.level",
	"log-format":      "log.format",
	"plugin-path":     "plugin.path",
	"host-version":    "host.version",
	"host":            "server.host",
	"port":            "server.port",
	"watch":           "plugin.watch",
	"metrics-address": "metrics.address",
}

// NewRootCommand creates and returns the root command with all subcommands.
func NewRootCommand() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:   "go_ayoto",
		Short: "Anime source plugin runtime and utilities",
		Long: `Loads anime source plugins (WebAssembly archives, native libraries and
declarative manifests) and serves their operations locally or over TCP.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Initialize configuration before running any command.
			config.UseFile(cfgFile)
			if err := config.Initialize(); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			// Flags override config file and environment values.
			if err := config.Rebind(func(v *viper.Viper) error {
				return bindFlags(cmd, v)
			}); err != nil {
				return fmt.Errorf("failed to bind flags: %w", err)
			}

			cfg := config.Get()
			logging.InitLogger(
				strings.EqualFold(strings.TrimSpace(cfg.Log.Level), "debug"),
				strings.EqualFold(strings.TrimSpace(cfg.Log.Format), "human"),
			)

			return nil
		},
	}

	// Add persistent flags that affect all commands.
	rootCmd.PersistentFlags().
		StringVar(&cfgFile, "config", "", "config file (default is $HOME/.go_ayoto/config.yaml)")

	// Add global flags that can override config file settings.
	rootCmd.PersistentFlags().
		String("log-level", "info", "logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "human", "logging format (human, json)")
	rootCmd.PersistentFlags().String("plugin-path", "plugins", "path to plugin directory")
	rootCmd.PersistentFlags().String("host-version", "1.0.0", "host version reported to plugins")

	// Register all commands.
	if err := RegisterCommands(rootCmd); err != nil {
		return nil, fmt.Errorf("failed to register commands: %w", err)
	}

	return rootCmd, nil
}

// bindFlags binds every known flag of cmd, including inherited ones.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("flag %s: %w", name, err)
		}
	}

	return nil
}
