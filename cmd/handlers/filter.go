package handlers

import (
	"os"

	"github.com/spf13/cobra"

	"painfinder/internal/config"
	"painfinder/internal/logger"
	"painfinder/internal/signal"
)

// NewFilterCmd creates the filter command for the pain-signal stage.
func NewFilterCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Score unfiltered items for pain signal",
		Long: `Run the heuristic pain-signal filter over items that have not been
filtered yet. Items at or above the configured minimum pain score pass
through to extraction; the rest are recorded with their rejection
reasons and skipped.

Example:
  painfinder filter
  painfinder filter --limit 200`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runFilter(limit); err != nil {
				logger.Error("Filter stage failed", err)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum items to filter (0 = all)")
	return cmd
}

func runFilter(limit int) error {
	cfg := config.Get()

	st, err := getStore()
	if err != nil {
		return err
	}
	defer st.Close()

	filter := signal.NewFilter(st, signal.NewScorer(cfg.Signal.MinPainScore))
	summary, err := filter.Run(limit)
	if err != nil {
		return err
	}
	printSummary(summary)
	return nil
}
