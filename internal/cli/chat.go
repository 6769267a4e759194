package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/soyeahso/supportwire/internal/config"
	"github.com/soyeahso/supportwire/internal/domain"
	"github.com/soyeahso/supportwire/internal/msglog"
	"github.com/soyeahso/supportwire/internal/store"
	"github.com/soyeahso/supportwire/internal/widget"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	var (
		url   string
		token string
		name  string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the support chat in the terminal",
		Long: `Chat runs the widget core with a terminal presentation adapter.

Lines you type are sent as messages. Commands:
  /open, /close    show or hide the panel (affects the unread badge)
  /login <token>   switch to an authenticated identity
  /logout          drop back to an anonymous identity
  /quit            exit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			applyLogConfig(cfg)

			if url != "" {
				cfg.Client.URL = url
			}
			if token != "" {
				cfg.Client.Token = token
			}
			if name != "" {
				cfg.Client.DisplayName = name
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			identity := domain.Anonymous(loadVisitorID(paths))
			if cfg.Client.Token != "" {
				identity = domain.AuthenticatedIdentity(identity.VisitorID, cfg.Client.Token, cfg.Client.DisplayName, cfg.Client.Contact)
			}

			var cache msglog.Cache
			if cfg.History.Store == "sqlite" {
				db, err := store.Open(filepath.Join(paths.Data, "widget.db"), log)
				if err != nil {
					return fmt.Errorf("opening history cache: %w", err)
				}
				defer db.Close()
				cache = store.NewHistoryCache(db)
			} else {
				cache = store.NewMemoryHistoryCache()
			}

			adapter := newTerminalAdapter(os.Stdout)
			core := widget.New(cfg.Client, cfg.History, identity, cache, adapter, log)
			if err := core.Start(); err != nil {
				return err
			}
			defer core.Close()

			// The terminal chat is always "open": no badge while looking at it.
			core.OpenWidget()

			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}

				if strings.HasPrefix(line, "/") {
					if quit := runChatCommand(core, cfg, line); quit {
						return nil
					}
					continue
				}

				core.Keystroke()
				if err := core.Submit(line); err != nil {
					fmt.Fprintf(os.Stderr, "not sent: %v\n", err)
				}
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "support server websocket URL (overrides config)")
	cmd.Flags().StringVar(&token, "token", "", "auth token (overrides config)")
	cmd.Flags().StringVar(&name, "name", "", "display name (overrides config)")

	return cmd
}

func runChatCommand(core *widget.Core, cfg config.Config, line string) (quit bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/open":
		core.OpenWidget()
	case "/close":
		core.CloseWidget()
	case "/login":
		if len(fields) < 2 {
			fmt.Println("usage: /login <token>")
			return false
		}
		core.Login(fields[1], cfg.Client.DisplayName, cfg.Client.Contact)
	case "/logout":
		core.Logout()
	default:
		fmt.Printf("unknown command: %s\n", fields[0])
	}
	return false
}

// loadVisitorID returns the stable anonymous visitor ID for this machine,
// creating one on first use. Keeping it stable is what makes anonymous
// history survive restarts.
func loadVisitorID(p config.Paths) string {
	path := filepath.Join(p.Data, "visitor-id")
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}

	id := uuid.New().String()
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		log.Warn().Err(err).Msg("could not persist visitor id")
	}
	return id
}
