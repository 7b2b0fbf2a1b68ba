package handlers

import (
	"os"

	"github.com/spf13/cobra"

	"painfinder/internal/config"
	"painfinder/internal/extract"
	"painfinder/internal/logger"
)

// NewExtractCmd creates the extract command for structured pain extraction.
func NewExtractCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract structured pain events from filtered items",
		Long: `Run LLM extraction over filtered items that have not been extracted
yet. Each item yields zero or more pain events persisted to the
database. Items whose response cannot be parsed stay unextracted and
are retried on the next pass.

Example:
  painfinder extract --limit 50`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runExtract(cmd, limit); err != nil {
				logger.Error("Extract stage failed", err)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum items to extract (0 = all)")
	return cmd
}

func runExtract(cmd *cobra.Command, limit int) error {
	st, err := getStore()
	if err != nil {
		return err
	}
	defer st.Close()

	db, err := getDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	service, err := getLLM()
	if err != nil {
		return err
	}

	extractor := extract.NewExtractor(st, db.PainEvents(), service, config.Get())
	summary, err := extractor.Run(cmd.Context(), limit)
	if err != nil {
		return err
	}
	printSummary(summary)
	return nil
}
