package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/contract-analyzer/internal/bootstrap"
	"github.com/kirillkom/contract-analyzer/internal/config"
	"github.com/kirillkom/contract-analyzer/internal/observability/logging"
)

const version = "0.3.0"

type cli struct {
	cfg       config.Config
	app       *bootstrap.App
	logLevel  string
	logFormat string
}

func main() {
	c := &cli{}
	if err := c.rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "contractctl",
		Short:         "Analyze contracts and inspect cached analyses",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c.cfg = config.Load()
			level := c.cfg.LogLevel
			if cmd.Flags().Changed("log-level") {
				level = c.logLevel
			}
			// stdout belongs to command output and the MCP transport.
			slog.SetDefault(logging.New(os.Stderr, c.logFormat, "contractctl", level))

			app, err := bootstrap.New(cmd.Context(), c.cfg, bootstrap.Options{})
			if err != nil {
				return err
			}
			c.app = app
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.app != nil {
				c.app.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", "text", "log format (text or json)")

	root.AddCommand(
		c.analyzeCommand(),
		c.cacheCommand(),
		c.exportCommand(),
		c.mcpCommand(),
	)
	return root
}
