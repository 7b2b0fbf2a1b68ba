package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"painfinder/internal/persistence"
	"painfinder/internal/vectorstore"
)

// NewSimilarCmd creates the similar command for inspecting neighbors.
func NewSimilarCmd() *cobra.Command {
	var topK int
	var threshold float64

	cmd := &cobra.Command{
		Use:   "similar [pain-event-id]",
		Short: "Show the nearest neighbors of a pain event",
		Long: `Query the vector index for the pain events most similar to the given
one. Useful for checking why an event did or did not cluster.

Example:
  painfinder similar 4f2a... --top-k 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimilar(cmd, args[0], topK, threshold)
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 10, "Number of neighbors to show")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum similarity (0 = no floor)")
	return cmd
}

func runSimilar(cmd *cobra.Command, id string, topK int, threshold float64) error {
	db, err := getDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	event, err := db.PainEvents().Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	if len(event.Embedding) == 0 {
		return fmt.Errorf("pain event %s has no embedding yet; run 'painfinder embed' first", id)
	}

	vectors := vectorstore.NewPgVectorAdapter(db.(*persistence.PostgresDB).DB())
	query := vectorstore.DefaultSearchQuery(event.Embedding)
	query.TopK = topK
	query.SimilarityThreshold = threshold
	query.ExcludeIDs = []string{id}

	results, err := vectors.QuerySimilar(cmd.Context(), query)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No neighbors found")
		return nil
	}

	fmt.Printf("Neighbors of %s (%q):\n", id, event.Problem)
	for _, r := range results {
		fmt.Printf("  %.4f  %s\n", r.Similarity, r.PainEventID)
	}
	return nil
}
