package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenetaranov/wpbolt/internal/logging"
)

// isolate points every search path at an empty temp tree.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	chdir(t, dir)
	return dir
}

// chdir changes the working directory for the duration of the test
// (stand-in for testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func writeFile(t *testing.T, path, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const sshYAML = `
transport: ssh
ssh:
  host: lms.example.com
  port: 2222
  user: deploy
  key_path: ~/.ssh/id_ed25519
  known_hosts: ~/.ssh/known_hosts
  timeout: 45s
wp:
  path: /var/www/html
  timeout: 1m
logging:
  level: debug
  format: json
`

func TestLoadFromFile(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, filepath.Join(dir, "custom.yaml"), sshYAML)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, TransportSSH, cfg.Transport)
	assert.Equal(t, "lms.example.com", cfg.SSH.Host)
	assert.Equal(t, 2222, cfg.SSH.Port)
	assert.Equal(t, "deploy", cfg.SSH.User)
	assert.Equal(t, filepath.Join(dir, ".ssh", "id_ed25519"), cfg.SSH.KeyPath)
	assert.Equal(t, filepath.Join(dir, ".ssh", "known_hosts"), cfg.SSH.KnownHosts)
	assert.Equal(t, 45*time.Second, cfg.SSH.Timeout)
	assert.Equal(t, "/var/www/html", cfg.WP.Path)
	assert.Equal(t, "wp", cfg.WP.Binary)
	assert.Equal(t, time.Minute, cfg.WP.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadSearchPaths(t *testing.T) {
	t.Run("working directory", func(t *testing.T) {
		dir := isolate(t)
		writeFile(t, filepath.Join(dir, "wpbolt.yaml"), "transport: local\n")

		loader := NewLoader()
		cfg, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, TransportLocal, cfg.Transport)
		assert.Equal(t, filepath.Join(dir, "wpbolt.yaml"), loader.ConfigFileUsed())
	})

	t.Run("xdg config home", func(t *testing.T) {
		dir := isolate(t)
		writeFile(t, filepath.Join(dir, "xdg", "wpbolt", "wpbolt.yaml"), "transport: docker\ndocker:\n  container: wp\n")

		cfg, err := NewLoader().Load()
		require.NoError(t, err)
		assert.Equal(t, TransportDocker, cfg.Transport)
		assert.Equal(t, "wp", cfg.Docker.Container)
	})

	t.Run("no file", func(t *testing.T) {
		isolate(t)
		t.Setenv("WPBOLT_TRANSPORT", "local")

		loader := NewLoader()
		cfg, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, TransportLocal, cfg.Transport)
		assert.Empty(t, loader.ConfigFileUsed())
	})
}

func TestEnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, filepath.Join(dir, "wpbolt.yaml"), sshYAML)

	t.Setenv("WPBOLT_SSH_HOST", "staging.example.com")
	t.Setenv("WPBOLT_SSH_PASSWORD", "s3cret")
	t.Setenv("WPBOLT_WP_TIMEOUT", "5s")
	t.Setenv("WPBOLT_LOGGING_LEVEL", "error")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "staging.example.com", cfg.SSH.Host)
	assert.Equal(t, "s3cret", cfg.SSH.Password)
	assert.Equal(t, 5*time.Second, cfg.WP.Timeout)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, "deploy", cfg.SSH.User)
}

func TestSetOverridesEverything(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, filepath.Join(dir, "wpbolt.yaml"), sshYAML)
	t.Setenv("WPBOLT_LOGGING_LEVEL", "error")

	loader := NewLoader()
	loader.SetConfigFile(path)
	loader.Set("logging.level", "trace")

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "trace", cfg.Logging.Level)
}

func TestAllSettingsRedacted(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, filepath.Join(dir, "wpbolt.yaml"), sshYAML)
	t.Setenv("WPBOLT_SSH_KEY_PASSPHRASE", "open sesame")

	loader := NewLoader()
	loader.SetConfigFile(path)
	_, err := loader.Load()
	require.NoError(t, err)

	ssh, ok := loader.AllSettings()["ssh"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "open sesame", ssh["key_passphrase"])

	redacted, ok := logging.RedactMap(loader.AllSettings())["ssh"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, logging.RedactedValue, redacted["key_passphrase"])
	assert.Equal(t, "lms.example.com", redacted["host"])
}

func TestLoadErrors(t *testing.T) {
	t.Run("explicit file missing", func(t *testing.T) {
		dir := isolate(t)
		_, err := LoadFromFile(filepath.Join(dir, "absent.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load config file")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		dir := isolate(t)
		path := writeFile(t, filepath.Join(dir, "bad.yaml"), "ssh: [unterminated\n")
		_, err := LoadFromFile(path)
		require.Error(t, err)
	})

	t.Run("ssh without required fields", func(t *testing.T) {
		isolate(t)
		_, err := NewLoader().Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config validation failed")
		assert.Contains(t, err.Error(), "ssh.host is required")
		assert.Contains(t, err.Error(), "ssh.user is required")
		assert.Contains(t, err.Error(), "ssh.key_path or ssh.password is required")
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.SSH.Host = "h"
		cfg.SSH.User = "u"
		cfg.SSH.Password = "p"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid ssh", mutate: func(*Config) {}},
		{name: "valid local", mutate: func(c *Config) { c.Transport = TransportLocal; c.SSH = SSHConfig{} }},
		{name: "unknown transport", mutate: func(c *Config) { c.Transport = "ftp" }, wantErr: `unknown transport "ftp"`},
		{name: "port out of range", mutate: func(c *Config) { c.SSH.Port = 70000 }, wantErr: "ssh.port 70000 out of range"},
		{name: "docker without container", mutate: func(c *Config) { c.Transport = TransportDocker }, wantErr: "docker.container is required"},
		{name: "empty binary", mutate: func(c *Config) { c.WP.Binary = "" }, wantErr: "wp.binary cannot be empty"},
		{name: "zero timeout", mutate: func(c *Config) { c.WP.Timeout = 0 }, wantErr: "wp.timeout must be positive"},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExpandTilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, "", expandTilde(""))
	assert.Equal(t, home, expandTilde("~"))
	assert.Equal(t, filepath.Join(home, "keys", "id"), expandTilde("~/keys/id"))
	assert.Equal(t, "/abs/path", expandTilde("/abs/path"))
	assert.Equal(t, "~other/x", expandTilde("~other/x"))
}
