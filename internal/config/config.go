package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	configData Config
	v          *viper.Viper
	configFile string
)

// Config holds all configuration settings.
type Config struct {
	// Server configuration
	Server struct {
		Host string
		Port int
	}
	// Plugin configuration
	Plugin struct {
		Path            string
		DataDir         string `mapstructure:"data_dir"`
		CacheDir        string `mapstructure:"cache_dir"`
		UserAgent       string `mapstructure:"user_agent"`
		Watch           bool
		WasmCacheSize   int    `mapstructure:"wasm_cache_size"`
		WasmMemoryPages uint32 `mapstructure:"wasm_memory_pages"`
	}
	// Host identity reported to plugins
	Host struct {
		Version string
	}
	// Metrics endpoint
	Metrics struct {
		Address string
	}
	// Logging configuration
	Log struct {
		Level  string
		Format string
	}
}

// HomeDir is the per-user configuration directory name.
const HomeDir = ".go_ayoto"

// Initialize sets up the configuration system.
func Initialize() error {
	v = viper.New()

	// Set config name and paths
	v.SetConfigType("yaml") // config file type
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")           // name of config file (without extension)
		v.AddConfigPath(".")                // optionally look for config in working directory
		v.AddConfigPath("$HOME/" + HomeDir) // look for config in .go_ayoto directory in home
		v.AddConfigPath("/etc/go_ayoto/")   // path to look for the config file in
	}

	// Set default values
	setDefaults()

	// Environment variables
	v.SetEnvPrefix("GOAYOTO") // prefix for env vars
	v.AutomaticEnv()          // read in environment variables that match
	v.SetEnvKeyReplacer(      // replace dots with underscores in env vars
		strings.NewReplacer(".", "_"),
	)

	// Create config file if it doesn't exist
	if err := ensureConfig(); err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}

	// Read in config file
	if err := v.ReadInConfig(); err != nil {
		// It's okay if we can't find a config file, we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Unmarshal config into struct
	if err := v.Unmarshal(&configData); err != nil {
		return fmt.Errorf("unable to decode into config struct: %w", err)
	}

	return nil
}

// setDefaults sets default values for all configuration options.
func setDefaults() {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 1500)

	// Plugin defaults
	v.SetDefault("plugin.path", "plugins")
	v.SetDefault("plugin.data_dir", filepath.Join(os.Getenv("HOME"), HomeDir, "data"))
	v.SetDefault("plugin.cache_dir", filepath.Join(os.Getenv("HOME"), HomeDir, "cache"))
	v.SetDefault("plugin.user_agent", "")
	v.SetDefault("plugin.watch", false)
	v.SetDefault("plugin.wasm_cache_size", 32)
	v.SetDefault("plugin.wasm_memory_pages", 256)

	// Host defaults
	v.SetDefault("host.version", "1.0.0")

	// Metrics defaults; empty disables the endpoint
	v.SetDefault("metrics.address", "")

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "human")
}

// ensureConfig creates a default config file if none exists.
func ensureConfig() error {
	dir := filepath.Join(os.Getenv("HOME"), HomeDir)

	// Check if config directory exists
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		// Create directory
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		// Create default config file
		defaultConfig := `# go_ayoto configuration file
server:
  host: localhost
  port: 1500

plugin:
  path: plugins
  watch: false
  wasm_cache_size: 32
  wasm_memory_pages: 256

host:
  version: 1.0.0

metrics:
  address: ""

log:
  level: info
  format: human
`
		if err := os.WriteFile(configFile, []byte(defaultConfig), 0o644); err != nil {
			return err
		}
	}

	return nil
}

// UseFile makes the next Initialize read path instead of searching the default locations.
func UseFile(path string) {
	configFile = path
}

// Rebind lets bind attach flags or keys to the active viper instance, then
// refreshes the decoded configuration.
func Rebind(bind func(v *viper.Viper) error) error {
	if v == nil {
		return fmt.Errorf("configuration is not initialized")
	}
	if err := bind(v); err != nil {
		return err
	}
	if err := v.Unmarshal(&configData); err != nil {
		return fmt.Errorf("unable to decode into config struct: %w", err)
	}

	return nil
}

// Get returns the current configuration.
func Get() *Config {
	return &configData
}

// GetViper returns the viper instance.
func GetViper() *viper.Viper {
	return v
}
