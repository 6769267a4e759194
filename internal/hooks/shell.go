package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/soyeahso/supportwire/internal/config"
	"github.com/soyeahso/supportwire/internal/logging"
)

const defaultShellTimeout = 10 * time.Second

// RegisterShell registers shell-command handlers from configuration. Each
// configured command runs via `sh -c` with the event payload as JSON on
// stdin, so operators can wire ticket creation or paging without touching
// the binary.
func RegisterShell(m *Manager, cfg config.HooksConfig, log *logging.Logger) {
	register := func(event string, entries []config.HookEntry) {
		for i, entry := range entries {
			if entry.Command == "" {
				continue
			}
			name := fmt.Sprintf("shell-%d", i)
			m.On(event, name, shellHandler(entry, log.Sub("hooks")))
		}
	}

	register(EventServerStart, cfg.ServerStart)
	register(EventServerStop, cfg.ServerStop)
	register(EventMessageStored, cfg.MessageStored)
}

func shellHandler(entry config.HookEntry, log *logging.Logger) Handler {
	timeout := time.Duration(entry.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultShellTimeout
	}

	return func(ctx context.Context, p Payload) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		stdin, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal hook payload: %w", err)
		}

		cmd := exec.CommandContext(ctx, "sh", "-c", entry.Command)
		// Without WaitDelay, orphaned children holding the output pipe keep
		// Wait blocked past the timeout after the shell itself is killed.
		cmd.WaitDelay = time.Second
		cmd.Stdin = bytes.NewReader(stdin)
		cmd.Env = append(cmd.Environ(), "SUPPORTWIRE_HOOK_EVENT="+p.Event)

		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("hook command failed: %w (output: %s)", err, truncate(string(out), 200))
		}
		log.Debug().Str("event", p.Event).Str("command", entry.Command).Msg("shell hook ran")
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
