package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 18790, cfg.Server.Port)
	assert.Equal(t, "loopback", cfg.Server.Bind)
	assert.Equal(t, "open", cfg.Server.Auth.Mode)
	assert.Equal(t, 50, cfg.History.Keep)
	assert.Equal(t, 500*time.Millisecond, cfg.Client.Reconnect.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Client.Reconnect.MaxDelay)
	assert.Equal(t, 0.25, cfg.Client.Reconnect.Jitter)
	assert.Equal(t, time.Second, cfg.Client.Typing.Debounce)
}

func TestLoad_PartialFileFillsDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
client:
  url: ws://example.com/ws
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "ws://example.com/ws", cfg.Client.URL)
	// Unspecified fields take defaults.
	assert.Equal(t, "loopback", cfg.Server.Bind)
	assert.Equal(t, 32, cfg.Client.SendQueue)
	assert.Equal(t, "pretty", cfg.Logging.ConsoleStyle)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")

	_, err := Load(path)
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SUPPORTWIRE_SERVER_PORT", "7777")
	t.Setenv("SUPPORTWIRE_URL", "ws://override:7777/ws")
	t.Setenv("SUPPORTWIRE_LOG_LEVEL", "DEBUG")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "ws://override:7777/ws", cfg.Client.URL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_ExpandsTokenEnvVars(t *testing.T) {
	t.Setenv("SW_TEST_TOKEN", "secret-token")

	path := writeConfig(t, `
client:
  token: ${SW_TEST_TOKEN}
server:
  auth:
    mode: required
    tokens:
      - ${SW_TEST_TOKEN}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret-token", cfg.Client.Token)
	require.Len(t, cfg.Server.Auth.Tokens, 1)
	assert.Equal(t, "secret-token", cfg.Server.Auth.Tokens[0])
}

func TestExpandEnvVars_UnsetLeftAlone(t *testing.T) {
	assert.Equal(t, "${DEFINITELY_NOT_SET_XYZ}", expandEnvVars("${DEFINITELY_NOT_SET_XYZ}"))
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_BadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = 99999
	cfg.Server.Bind = "everywhere"
	cfg.Server.Auth.Mode = "maybe"
	cfg.Client.Reconnect.Jitter = 2
	cfg.Logging.Level = "loud"

	issues := Validate(&cfg)
	paths := make([]string, 0, len(issues))
	for _, issue := range issues {
		paths = append(paths, issue.Path)
	}

	assert.Contains(t, paths, "server.port")
	assert.Contains(t, paths, "server.bind")
	assert.Contains(t, paths, "server.auth.mode")
	assert.Contains(t, paths, "client.reconnect.jitter")
	assert.Contains(t, paths, "logging.level")
}

func TestValidate_RequiredAuthNeedsTokens(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Auth.Mode = "required"

	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "server.auth.tokens", issues[0].Path)

	cfg.Server.Auth.Tokens = []string{"tok"}
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_MaxDelayBelowBaseDelay(t *testing.T) {
	cfg := Defaults()
	cfg.Client.Reconnect.BaseDelay = time.Minute
	cfg.Client.Reconnect.MaxDelay = time.Second

	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "client.reconnect.maxDelay", issues[0].Path)
}

func TestResolvePaths_HomeOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SUPPORTWIRE_HOME", dir)

	p, err := ResolvePaths()
	require.NoError(t, err)

	assert.Equal(t, dir, p.Base)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), p.Config)
	assert.Equal(t, filepath.Join(dir, "data"), p.Data)

	require.NoError(t, p.EnsureDirs())
	assert.DirExists(t, p.Logs)
	assert.DirExists(t, p.Data)
}
