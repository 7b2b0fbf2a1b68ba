package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"painfinder/internal/persistence"
	"painfinder/internal/vectorstore"
)

// NewArchiveCmd creates the archive command for retiring pain events.
func NewArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive [pain-event-id...]",
		Short: "Retire pain events from future clustering passes",
		Long: `Mark pain events as archived. Archived events keep their data but are
never picked up by clustering again; this is the cleanup path for noise
that slipped through the signal filter.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := getDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			vectors := vectorstore.NewPgVectorAdapter(db.(*persistence.PostgresDB).DB())
			for _, id := range args {
				if err := db.PainEvents().Archive(cmd.Context(), id); err != nil {
					return fmt.Errorf("pain event %s: %w", id, err)
				}
				if err := vectors.Delete(cmd.Context(), id); err != nil {
					return fmt.Errorf("pain event %s: %w", id, err)
				}
				fmt.Printf("✅ Archived pain event %s\n", id)
			}
			return nil
		},
	}
}
