package handlers

import (
	"os"

	"github.com/spf13/cobra"

	"painfinder/internal/config"
	"painfinder/internal/logger"
	"painfinder/internal/opportunity"
)

// NewMapCmd creates the map command for opportunity mapping.
func NewMapCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "map [cluster-id...]",
		Short: "Map clusters and aligned problems to product opportunities",
		Long: `Generate product opportunities from unmapped clusters and aligned
problems. Each target's events are compacted into a token-bounded
summary before the LLM call. Targets that already own an opportunity
are refused.

Example:
  painfinder map
  painfinder map --limit 10
  painfinder map 4f2a... 91bc...`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runMap(cmd, args, limit); err != nil {
				logger.Error("Map stage failed", err)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum targets to map (0 = all)")
	return cmd
}

func runMap(cmd *cobra.Command, clusterIDs []string, limit int) error {
	db, err := getDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	service, err := getLLM()
	if err != nil {
		return err
	}

	mapper := opportunity.NewMapper(db, service, config.Get().Mapping)
	summary, err := mapper.Map(cmd.Context(), opportunity.Options{
		ClusterIDs: clusterIDs,
		Limit:      limit,
	})
	if err != nil {
		return err
	}
	printSummary(summary)
	return nil
}
