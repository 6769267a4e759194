package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "server.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Server.Port),
		})
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Server.Bind != "" && !slices.Contains(validBinds, cfg.Server.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "server.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Server.Bind),
		})
	}

	validAuthModes := []string{"open", "required"}
	if cfg.Server.Auth.Mode != "" && !slices.Contains(validAuthModes, cfg.Server.Auth.Mode) {
		issues = append(issues, ValidationIssue{
			Path:    "server.auth.mode",
			Message: fmt.Sprintf("must be one of %v, got %q", validAuthModes, cfg.Server.Auth.Mode),
		})
	}
	if cfg.Server.Auth.Mode == "required" && len(cfg.Server.Auth.Tokens) == 0 {
		issues = append(issues, ValidationIssue{
			Path:    "server.auth.tokens",
			Message: "at least one token is required when auth mode is \"required\"",
		})
	}

	validStores := []string{"sqlite", "memory"}
	if cfg.Server.Store != "" && !slices.Contains(validStores, cfg.Server.Store) {
		issues = append(issues, ValidationIssue{
			Path:    "server.store",
			Message: fmt.Sprintf("must be one of %v, got %q", validStores, cfg.Server.Store),
		})
	}
	if cfg.History.Store != "" && !slices.Contains(validStores, cfg.History.Store) {
		issues = append(issues, ValidationIssue{
			Path:    "history.store",
			Message: fmt.Sprintf("must be one of %v, got %q", validStores, cfg.History.Store),
		})
	}

	if cfg.Client.Reconnect.Jitter < 0 || cfg.Client.Reconnect.Jitter > 1 {
		issues = append(issues, ValidationIssue{
			Path:    "client.reconnect.jitter",
			Message: fmt.Sprintf("jitter must be 0-1, got %v", cfg.Client.Reconnect.Jitter),
		})
	}
	if cfg.Client.Reconnect.MaxDelay > 0 && cfg.Client.Reconnect.MaxDelay < cfg.Client.Reconnect.BaseDelay {
		issues = append(issues, ValidationIssue{
			Path:    "client.reconnect.maxDelay",
			Message: "maxDelay must not be smaller than baseDelay",
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	return issues
}
