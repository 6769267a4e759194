package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/soyeahso/supportwire/internal/config"
	"github.com/soyeahso/supportwire/internal/hooks"
	"github.com/soyeahso/supportwire/internal/server"
	"github.com/soyeahso/supportwire/internal/store"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
		echo bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the support server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			applyLogConfig(cfg)

			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}
			if cmd.Flags().Changed("echo") {
				cfg.Server.Echo = echo
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			hookMgr := hooks.NewManager(log)
			hooks.RegisterShell(hookMgr, cfg.Hooks, log)

			var conversations store.ConversationStore
			if cfg.Server.Store == "sqlite" {
				dbPath := filepath.Join(paths.Data, "supportwire.db")
				db, err := store.Open(dbPath, log)
				if err != nil {
					return fmt.Errorf("opening database: %w", err)
				}
				defer db.Close()
				conversations = store.NewSQLiteConversationStore(db)
				log.Info().Str("path", dbPath).Msg("using SQLite conversation store")
			} else {
				conversations = store.NewMemoryConversationStore()
				log.Info().Msg("using in-memory conversation store")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := server.New(cfg.Server, cfg.History, conversations, log, server.WithHooks(hookMgr))
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config)")
	cmd.Flags().StringVar(&bind, "bind", "", "bind mode: loopback, lan, custom (overrides config)")
	cmd.Flags().BoolVar(&echo, "echo", false, "reply to every user message with a bot echo")

	return cmd
}
