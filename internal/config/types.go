package config

import "time"

// Config is the root configuration for supportwire. One file drives both
// the embeddable widget client and the reference support server.
type Config struct {
	Server  ServerConfig  `yaml:"server,omitempty"`
	Client  ClientConfig  `yaml:"client,omitempty"`
	History HistoryConfig `yaml:"history,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
	Hooks   HooksConfig   `yaml:"hooks,omitempty"`
}

// ServerConfig controls the support server.
type ServerConfig struct {
	Port           int        `yaml:"port,omitempty"`
	Bind           string     `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string     `yaml:"customBindHost,omitempty"`
	Auth           ServerAuth `yaml:"auth,omitempty"`
	AllowedOrigins []string   `yaml:"allowedOrigins,omitempty"`
	Echo           bool       `yaml:"echo,omitempty"` // reply to every user message with a bot echo
	Store          string     `yaml:"store,omitempty"` // "sqlite" | "memory"
}

// ServerAuth configures how the server treats visitor identities.
type ServerAuth struct {
	// Mode "open" accepts anonymous visitors; "required" rejects them with
	// authentication-required until they announce a valid token.
	Mode   string   `yaml:"mode,omitempty"`
	Tokens []string `yaml:"tokens,omitempty"`
}

// ClientConfig controls the widget client core.
type ClientConfig struct {
	URL         string        `yaml:"url,omitempty"`
	DisplayName string        `yaml:"displayName,omitempty"`
	Contact     string        `yaml:"contact,omitempty"`
	Token       string        `yaml:"token,omitempty"`
	Reconnect   Reconnect     `yaml:"reconnect,omitempty"`
	Typing      TypingConfig  `yaml:"typing,omitempty"`
	SendQueue   int           `yaml:"sendQueue,omitempty"`
	DialTimeout time.Duration `yaml:"dialTimeout,omitempty"`
}

// Reconnect tunes the link's backoff policy. Retries are unlimited.
type Reconnect struct {
	BaseDelay time.Duration `yaml:"baseDelay,omitempty"`
	MaxDelay  time.Duration `yaml:"maxDelay,omitempty"`
	Jitter    float64       `yaml:"jitter,omitempty"` // fraction of the delay, e.g. 0.25
}

// TypingConfig tunes the typing-indicator timers.
type TypingConfig struct {
	Debounce     time.Duration `yaml:"debounce,omitempty"`
	RemoteExpiry time.Duration `yaml:"remoteExpiry,omitempty"`
}

// HistoryConfig controls the local persisted history cache.
type HistoryConfig struct {
	// Keep is the size of the persisted slice per identity.
	Keep  int    `yaml:"keep,omitempty"`
	Store string `yaml:"store,omitempty"` // "sqlite" | "memory"
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`        // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}

// HooksConfig defines shell-command hooks fired on server lifecycle events.
type HooksConfig struct {
	ServerStart   []HookEntry `yaml:"serverStart,omitempty"`
	ServerStop    []HookEntry `yaml:"serverStop,omitempty"`
	MessageStored []HookEntry `yaml:"messageStored,omitempty"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}
