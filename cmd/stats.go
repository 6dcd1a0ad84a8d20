package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ca-srg/slackscan/internal/metrics"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cumulative scan counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if appConfig != nil && !appConfig.StatsEnabled {
			fmt.Fprintln(cmd.OutOrStdout(), "Scan statistics are disabled (SLACKSCAN_STATS_ENABLED=false)")
			return nil
		}
		return writeStats(cmd.OutOrStdout(), metrics.Stats())
	},
}

func writeStats(w io.Writer, stats map[metrics.Mode]int64) error {
	if stats == nil {
		_, err := fmt.Fprintln(w, "Scan statistics are unavailable")
		return err
	}

	fmt.Fprintln(w, "=== Scan Statistics ===")
	for _, mode := range metrics.Modes {
		fmt.Fprintf(w, "%-8s %d\n", mode+":", stats[mode])
	}
	return nil
}
