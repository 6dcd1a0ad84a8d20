package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/ca-srg/slackscan/internal/config"
	"github.com/ca-srg/slackscan/internal/metrics"
	"github.com/ca-srg/slackscan/internal/observability"
)

var (
	appConfig         *config.Config
	shutdownTelemetry observability.ShutdownFunc
)

var rootCmd = &cobra.Command{
	Use:   "slackscan",
	Short: "slackscan - query Slack message search as a table",
	Long: `slackscan runs the search_slack table function from the command line.
Each query is sent once to Slack's search.messages API and at most 10 matches
come back as rows (id, channel, username, timestamp, text, permalink).

SLACK_API_TOKEN must hold a user token with the search:read scope. Settings
may also be placed in a .env file in the working directory.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(statsCmd)
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	appConfig = cfg

	shutdown, err := observability.Init(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	shutdownTelemetry = shutdown

	if cfg.StatsEnabled {
		// Counters are best effort.
		if err := metrics.Init(cfg.StatsDBPath); err != nil {
			log.Printf("Scan statistics disabled: %v", err)
		} else if err := metrics.InitOTelMetrics(); err != nil {
			log.Printf("Scan statistics gauge unavailable: %v", err)
		}
	}
	return nil
}

func teardown(cmd *cobra.Command, _ []string) error {
	if err := metrics.Close(); err != nil {
		log.Printf("Failed to close statistics store: %v", err)
	}
	if shutdownTelemetry == nil {
		return nil
	}
	return shutdownTelemetry(context.Background())
}
