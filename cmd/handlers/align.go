package handlers

import (
	"os"

	"github.com/spf13/cobra"

	"painfinder/internal/align"
	"painfinder/internal/config"
	"painfinder/internal/logger"
)

// NewAlignCmd creates the align command for cross-source alignment.
func NewAlignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "align",
		Short: "Align clusters describing the same problem across sources",
		Long: `Pair unaligned clusters from different source types and ask the LLM
whether they describe the same underlying problem. Confirmed pairs are
merged into an aligned problem; the member clusters are excluded from
direct opportunity mapping in favor of the merged record.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runAlign(cmd); err != nil {
				logger.Error("Align stage failed", err)
				os.Exit(1)
			}
		},
	}
	return cmd
}

func runAlign(cmd *cobra.Command) error {
	db, err := getDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	service, err := getLLM()
	if err != nil {
		return err
	}

	aligner := align.NewAligner(db, service, config.Get().Alignment)
	summary, err := aligner.Run(cmd.Context())
	if err != nil {
		return err
	}
	printSummary(summary)
	return nil
}
