package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"painfinder/internal/config"
	"painfinder/internal/logger"
	"painfinder/internal/render"
	"painfinder/internal/shortlist"
)

// NewShortlistCmd creates the shortlist command producing decision reports.
func NewShortlistCmd() *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "shortlist",
		Short: "Generate the decision shortlist report",
		Long: `Rank scored opportunities into a decision shortlist. Candidates with
cross-source validation rank ahead of unvalidated ones; within each
group the weighted final score decides. The report is written as
Markdown and JSON.

Example:
  painfinder shortlist
  painfinder shortlist --output reports`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runShortlist(cmd, outputDir); err != nil {
				logger.Error("Shortlist stage failed", err)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (default from config)")
	return cmd
}

func runShortlist(cmd *cobra.Command, outputDir string) error {
	cfg := config.Get()
	if outputDir == "" {
		outputDir = cfg.Output.Directory
	}

	db, err := getDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	service, err := getLLM()
	if err != nil {
		return err
	}

	generator := shortlist.NewGenerator(db, service, cfg.Shortlist)
	report, err := generator.Generate(cmd.Context())
	if err != nil {
		return err
	}

	mdPath, jsonPath, err := render.WriteShortlist(report, outputDir)
	if err != nil {
		return err
	}

	fmt.Printf("✅ Shortlist with %d candidates written\n", report.TotalCount)
	fmt.Printf("   Markdown: %s\n", mdPath)
	fmt.Printf("   JSON:     %s\n", jsonPath)
	return nil
}
