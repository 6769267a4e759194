package config

import (
	"fmt"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:  18790,
			Bind:  "loopback",
			Auth:  ServerAuth{Mode: "open"},
			Store: "sqlite",
		},
		Client: ClientConfig{
			URL: "ws://127.0.0.1:18790/ws",
			Reconnect: Reconnect{
				BaseDelay: 500 * time.Millisecond,
				MaxDelay:  30 * time.Second,
				Jitter:    0.25,
			},
			Typing: TypingConfig{
				Debounce:     time.Second,
				RemoteExpiry: 5 * time.Second,
			},
			SendQueue:   32,
			DialTimeout: 10 * time.Second,
		},
		History: HistoryConfig{
			Keep:  50,
			Store: "sqlite",
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}
