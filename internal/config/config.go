// Package config loads wpbolt settings from defaults, a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Transport names.
const (
	TransportSSH    = "ssh"
	TransportDocker = "docker"
	TransportLocal  = "local"
)

// Config is the complete wpbolt configuration.
type Config struct {
	// Transport selects how commands reach the site (ssh, docker, local).
	Transport string `yaml:"transport" mapstructure:"transport"`

	SSH     SSHConfig     `yaml:"ssh" mapstructure:"ssh"`
	Docker  DockerConfig  `yaml:"docker" mapstructure:"docker"`
	Local   LocalConfig   `yaml:"local" mapstructure:"local"`
	WP      WPConfig      `yaml:"wp" mapstructure:"wp"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// SSHConfig contains remote session settings.
type SSHConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
	User string `yaml:"user" mapstructure:"user"`

	// KeyPath wins over Password when both are set.
	KeyPath       string `yaml:"key_path" mapstructure:"key_path"`
	KeyPassphrase string `yaml:"key_passphrase" mapstructure:"key_passphrase"`
	Password      string `yaml:"password" mapstructure:"password"`

	// KnownHosts enables host key checking. Empty accepts any host key.
	KnownHosts string `yaml:"known_hosts" mapstructure:"known_hosts"`

	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// DockerConfig targets a running container.
type DockerConfig struct {
	Container string `yaml:"container" mapstructure:"container"`
	User      string `yaml:"user" mapstructure:"user"`
}

// LocalConfig runs commands on this machine.
type LocalConfig struct {
	// RunAs runs every command through sudo as this user.
	RunAs string `yaml:"run_as" mapstructure:"run_as"`
}

// WPConfig describes the WordPress installation.
type WPConfig struct {
	// Path is the installation directory on the target.
	Path string `yaml:"path" mapstructure:"path"`

	// Binary is the wp-cli executable (default: wp).
	Binary string `yaml:"binary" mapstructure:"binary"`

	// Timeout bounds each command.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Transport: TransportSSH,
		SSH: SSHConfig{
			Port:    22,
			Timeout: 30 * time.Second,
		},
		WP: WPConfig{
			Binary:  "wp",
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// Validate checks the settings for the selected transport.
func (c *Config) Validate() error {
	var errs []error

	switch c.Transport {
	case TransportSSH:
		if c.SSH.Host == "" {
			errs = append(errs, errors.New("ssh.host is required"))
		}
		if c.SSH.User == "" {
			errs = append(errs, errors.New("ssh.user is required"))
		}
		if c.SSH.KeyPath == "" && c.SSH.Password == "" {
			errs = append(errs, errors.New("ssh.key_path or ssh.password is required"))
		}
		if c.SSH.Port < 1 || c.SSH.Port > 65535 {
			errs = append(errs, fmt.Errorf("ssh.port %d out of range", c.SSH.Port))
		}
		if c.SSH.Timeout <= 0 {
			errs = append(errs, errors.New("ssh.timeout must be positive"))
		}
	case TransportDocker:
		if c.Docker.Container == "" {
			errs = append(errs, errors.New("docker.container is required"))
		}
	case TransportLocal:
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q (want ssh, docker or local)", c.Transport))
	}

	if c.WP.Binary == "" {
		errs = append(errs, errors.New("wp.binary cannot be empty"))
	}
	if c.WP.Timeout <= 0 {
		errs = append(errs, errors.New("wp.timeout must be positive"))
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be console or json", c.Logging.Format))
	}

	return errors.Join(errs...)
}
