package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"painfinder/internal/cluster"
	"painfinder/internal/config"
	"painfinder/internal/logger"
)

// NewClusterCmd creates the cluster command for the clustering stage.
func NewClusterCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Group embedded pain events into problem clusters",
		Long: `Group unclustered pain events by embedding similarity. Groups that
reach the configured minimum size become clusters with an LLM-generated
summary; smaller groups are marked orphan and re-enter the next pass.

Example:
  painfinder cluster
  painfinder cluster enrich 4f2a...`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runCluster(cmd, limit); err != nil {
				logger.Error("Cluster stage failed", err)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum events to consider (0 = all)")
	cmd.AddCommand(newClusterEnrichCmd())
	return cmd
}

func newClusterEnrichCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enrich [cluster-id...]",
		Short: "Lazily enrich clusters with a jobs-to-be-done block",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clusterer, cleanup, err := buildClusterer()
			if err != nil {
				return err
			}
			defer cleanup()

			for _, id := range args {
				if err := clusterer.EnrichJTBD(cmd.Context(), id); err != nil {
					return fmt.Errorf("cluster %s: %w", id, err)
				}
				fmt.Printf("✅ Enriched cluster %s\n", id)
			}
			return nil
		},
	}
}

func runCluster(cmd *cobra.Command, limit int) error {
	clusterer, cleanup, err := buildClusterer()
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := clusterer.Run(cmd.Context(), limit)
	if err != nil {
		return err
	}
	printSummary(summary)
	return nil
}

func buildClusterer() (*cluster.Clusterer, func(), error) {
	db, err := getDatabase()
	if err != nil {
		return nil, nil, err
	}

	service, err := getLLM()
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	clusterer := cluster.NewClusterer(db, service, config.Get().Clustering)
	return clusterer, func() { db.Close() }, nil
}
