package handlers

import (
	"os"

	"github.com/spf13/cobra"

	"painfinder/internal/config"
	"painfinder/internal/logger"
	"painfinder/internal/viability"
)

// NewScoreCmd creates the score command for viability scoring.
func NewScoreCmd() *cobra.Command {
	var limit int
	var rescore bool
	var skipFiltering bool

	cmd := &cobra.Command{
		Use:   "score [cluster-id...]",
		Short: "Score opportunity viability",
		Long: `Score unscored opportunities with the LLM. Scores are always persisted
before the quantitative post-score filter runs, so a filtered
opportunity still carries its score and can be revisited with different
thresholds.

With --rescore, already-scored opportunities of the named clusters are
scored again in place; the row keeps its identity and bumps its rescore
count.

Example:
  painfinder score
  painfinder score --rescore 4f2a...
  painfinder score --skip-filtering`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runScore(cmd, args, limit, rescore, skipFiltering); err != nil {
				logger.Error("Score stage failed", err)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum opportunities to score (0 = all)")
	cmd.Flags().BoolVar(&rescore, "rescore", false, "Re-score already-scored opportunities in place")
	cmd.Flags().BoolVar(&skipFiltering, "skip-filtering", false, "Skip the quantitative post-score filter report")
	return cmd
}

func runScore(cmd *cobra.Command, clusterIDs []string, limit int, rescore, skipFiltering bool) error {
	db, err := getDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	service, err := getLLM()
	if err != nil {
		return err
	}

	scorer := viability.NewScorer(db, service, config.Get().Viability)
	summary, err := scorer.Score(cmd.Context(), viability.Options{
		Limit:         limit,
		Rescore:       rescore,
		ClusterIDs:    clusterIDs,
		SkipFiltering: skipFiltering,
	})
	if err != nil {
		return err
	}
	printSummary(summary)
	return nil
}
