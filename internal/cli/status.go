package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/soyeahso/supportwire/internal/config"
	"github.com/soyeahso/supportwire/internal/server"
	"github.com/soyeahso/supportwire/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show supportwire status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("supportwire %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Data:    %s\n", paths.Data)
			fmt.Printf("Logs:    %s\n", paths.Logs)
			fmt.Println()

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Printf("Config:  error loading: %v\n", err)
				return nil
			}

			fmt.Printf("Server:  port=%d bind=%s auth=%s store=%s echo=%v\n",
				cfg.Server.Port, cfg.Server.Bind, cfg.Server.Auth.Mode, cfg.Server.Store, cfg.Server.Echo)
			fmt.Printf("Client:  url=%s sendQueue=%d\n", cfg.Client.URL, cfg.Client.SendQueue)
			fmt.Printf("History: keep=%d store=%s\n", cfg.History.Keep, cfg.History.Store)

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			printServerHealth(cfg)
			return nil
		},
	}

	return cmd
}

// printServerHealth probes a locally running server's health endpoint.
func printServerHealth(cfg config.Config) {
	url := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		fmt.Println("\nServer:  not running")
		return
	}
	defer resp.Body.Close()

	var health server.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		fmt.Println("\nServer:  unexpected health response")
		return
	}

	fmt.Printf("\nServer:  %s version=%s sessions=%d conversations=%d uptime=%ds\n",
		health.Status, health.Version, health.Sessions, health.Conversations, health.UptimeSeconds)
}
