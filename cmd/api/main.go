package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ledgerdesk/api/internal/config"
)

// Set by the build via -ldflags.
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "ledgerdesk",
		Short:         "Ledgerdesk document export service",
		Long:          `Previews invoice documents and exports them as A4 PDFs by download, print or share link.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	loadConfig := func() (config.Config, error) {
		cfg, err := config.Load()
		if err != nil {
			return config.Config{}, err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		return cfg, nil
	}

	root.AddCommand(
		newServeCommand(loadConfig),
		newExportCommand(loadConfig),
		newMigrateCommand(loadConfig),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "ledgerdesk %s\n", version)
			},
		},
	)
	return root
}
