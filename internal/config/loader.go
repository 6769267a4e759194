package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so tokens can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Client.Token = expandEnvVars(cfg.Client.Token)
	for i, t := range cfg.Server.Auth.Tokens {
		cfg.Server.Auth.Tokens[i] = expandEnvVars(t)
	}
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	def := Defaults()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = def.Server.Bind
	}
	if cfg.Server.Auth.Mode == "" {
		cfg.Server.Auth.Mode = def.Server.Auth.Mode
	}
	if cfg.Server.Store == "" {
		cfg.Server.Store = def.Server.Store
	}
	if cfg.Client.URL == "" {
		cfg.Client.URL = def.Client.URL
	}
	if cfg.Client.Reconnect.BaseDelay <= 0 {
		cfg.Client.Reconnect.BaseDelay = def.Client.Reconnect.BaseDelay
	}
	if cfg.Client.Reconnect.MaxDelay <= 0 {
		cfg.Client.Reconnect.MaxDelay = def.Client.Reconnect.MaxDelay
	}
	if cfg.Client.Reconnect.Jitter <= 0 {
		cfg.Client.Reconnect.Jitter = def.Client.Reconnect.Jitter
	}
	if cfg.Client.Typing.Debounce <= 0 {
		cfg.Client.Typing.Debounce = def.Client.Typing.Debounce
	}
	if cfg.Client.Typing.RemoteExpiry <= 0 {
		cfg.Client.Typing.RemoteExpiry = def.Client.Typing.RemoteExpiry
	}
	if cfg.Client.SendQueue <= 0 {
		cfg.Client.SendQueue = def.Client.SendQueue
	}
	if cfg.Client.DialTimeout <= 0 {
		cfg.Client.DialTimeout = def.Client.DialTimeout
	}
	if cfg.History.Keep <= 0 {
		cfg.History.Keep = def.History.Keep
	}
	if cfg.History.Store == "" {
		cfg.History.Store = def.History.Store
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = def.Logging.ConsoleStyle
	}
}

// applyEnvOverrides reads SUPPORTWIRE_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SUPPORTWIRE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SUPPORTWIRE_SERVER_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("SUPPORTWIRE_URL"); v != "" {
		cfg.Client.URL = v
	}
	if v := os.Getenv("SUPPORTWIRE_TOKEN"); v != "" {
		cfg.Client.Token = v
	}
	if v := os.Getenv("SUPPORTWIRE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("SUPPORTWIRE_HISTORY_KEEP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.History.Keep = n
		}
	}
	if v := os.Getenv("SUPPORTWIRE_DIAL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Client.DialTimeout = d
		}
	}
}
