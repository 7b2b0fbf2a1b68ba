package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"painfinder/internal/logger"
)

// NewDedupeCmd creates the dedupe command enforcing one opportunity per cluster.
func NewDedupeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dedupe",
		Short: "Remove duplicate opportunities",
		Long: `Remove duplicate opportunities so each cluster owns at most one.
The highest-scoring row per cluster is kept; ties fall back to the
newest row.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := getDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			removed, err := db.Opportunities().DeleteDuplicates(cmd.Context())
			if err != nil {
				return fmt.Errorf("dedupe failed: %w", err)
			}

			logger.Info("Dedupe complete", "removed", removed)
			fmt.Printf("✅ Removed %d duplicate opportunities\n", removed)
			return nil
		},
	}
}
