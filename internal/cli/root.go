// Package cli implements the supportwire command line interface.
package cli

import (
	"github.com/soyeahso/supportwire/internal/config"
	"github.com/soyeahso/supportwire/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	// loaded at init time
	paths config.Paths
	log   *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "supportwire",
		Short: "Embeddable customer support chat",
		Long:  "supportwire runs the reference support server and a terminal rendition of the support chat widget.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}
			level := logLevel
			if level == "" {
				level = "info"
			}
			log = logging.New(nil, level)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.supportwire/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// applyLogConfig rebuilds the logger from the loaded config unless the
// --log-level flag already pinned a level.
func applyLogConfig(cfg config.Config) {
	if logLevel != "" {
		return
	}
	log = logging.NewStyled(nil, cfg.Logging.Level, cfg.Logging.ConsoleStyle)
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
