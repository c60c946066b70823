package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. WPBOLT_SSH_HOST.
const EnvPrefix = "WPBOLT"

// envBindings lists every key that can be set from the environment.
var envBindings = []string{
	"transport",
	"ssh.host",
	"ssh.port",
	"ssh.user",
	"ssh.key_path",
	"ssh.key_passphrase",
	"ssh.password",
	"ssh.known_hosts",
	"ssh.timeout",
	"docker.container",
	"docker.user",
	"local.run_as",
	"wp.path",
	"wp.binary",
	"wp.timeout",
	"logging.level",
	"logging.format",
}

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v: viper.New(),
	}
}

// SetConfigFile sets an explicit config file path. A missing explicit file
// is an error; a missing file on the search path is not.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// Load resolves configuration with precedence
// defaults < config file < environment.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	l.setupViper(cfg)

	if err := l.loadConfigFile(); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SSH.KeyPath = expandTilde(cfg.SSH.KeyPath)
	cfg.SSH.KnownHosts = expandTilde(cfg.SSH.KnownHosts)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Set overrides a key, e.g. from a command line flag.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// AllSettings returns every resolved key as nested maps. Call it after Load.
func (l *Loader) AllSettings() map[string]any {
	return l.v.AllSettings()
}

// ConfigFileUsed returns the config file that was loaded, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

func (l *Loader) setupViper(cfg *Config) {
	v := l.v

	v.SetConfigName("wpbolt")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		v.AddConfigPath(filepath.Join(xdgConfig, "wpbolt"))
	}
	if homeDir, _ := os.UserHomeDir(); homeDir != "" {
		v.AddConfigPath(filepath.Join(homeDir, ".config", "wpbolt"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v, cfg)

	// Nested keys are only picked up by Unmarshal when bound explicitly.
	for _, key := range envBindings {
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	}

	v.AutomaticEnv()
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("transport", cfg.Transport)

	v.SetDefault("ssh.port", cfg.SSH.Port)
	v.SetDefault("ssh.timeout", cfg.SSH.Timeout)

	v.SetDefault("wp.binary", cfg.WP.Binary)
	v.SetDefault("wp.timeout", cfg.WP.Timeout)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}

func (l *Loader) loadConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// expandTilde expands ~ to the user's home directory.
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}
