package handlers

import (
	"os"

	"github.com/spf13/cobra"

	"painfinder/internal/embed"
	"painfinder/internal/logger"
	"painfinder/internal/persistence"
	"painfinder/internal/vectorstore"
)

// NewEmbedCmd creates the embed command for the embedding stage.
func NewEmbedCmd() *cobra.Command {
	var limit int
	var createIndex bool

	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Generate embeddings for unembedded pain events",
		Long: `Generate an embedding vector for every pain event that does not have
one yet, and mirror it into the vector index used by clustering.

Example:
  painfinder embed
  painfinder embed --limit 500 --create-index`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runEmbed(cmd, limit, createIndex); err != nil {
				logger.Error("Embed stage failed", err)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum events to embed (0 = all)")
	cmd.Flags().BoolVar(&createIndex, "create-index", false, "Create the vector similarity index after embedding")
	return cmd
}

func runEmbed(cmd *cobra.Command, limit int, createIndex bool) error {
	db, err := getDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	service, err := getLLM()
	if err != nil {
		return err
	}

	pgDB := db.(*persistence.PostgresDB)
	vectors := vectorstore.NewPgVectorAdapter(pgDB.DB())

	embedder := embed.NewEmbedder(db.PainEvents(), vectors, service)
	summary, err := embedder.Run(cmd.Context(), limit)
	if err != nil {
		return err
	}
	printSummary(summary)

	if createIndex {
		if err := vectors.CreateIndex(cmd.Context()); err != nil {
			return err
		}
		logger.Info("Vector index created")
	}
	return nil
}
