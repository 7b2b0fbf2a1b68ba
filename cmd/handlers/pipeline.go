package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"painfinder/internal/align"
	"painfinder/internal/cluster"
	"painfinder/internal/config"
	"painfinder/internal/core"
	"painfinder/internal/embed"
	"painfinder/internal/extract"
	"painfinder/internal/logger"
	"painfinder/internal/opportunity"
	"painfinder/internal/persistence"
	"painfinder/internal/render"
	"painfinder/internal/shortlist"
	"painfinder/internal/signal"
	"painfinder/internal/vectorstore"
	"painfinder/internal/viability"
)

// NewPipelineCmd creates the pipeline command chaining every stage.
func NewPipelineCmd() *cobra.Command {
	var limit int
	var skipShortlist bool

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run every pipeline stage in order",
		Long: `Run filter, extract, embed, cluster, align, map, and score in
sequence, then write the decision shortlist. A stage that fails stops
the run; per-item failures within a stage are reported and do not.

Example:
  painfinder pipeline
  painfinder pipeline --limit 100 --skip-shortlist`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runPipeline(cmd.Context(), limit, skipShortlist); err != nil {
				logger.Error("Pipeline failed", err)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Per-stage item limit (0 = all)")
	cmd.Flags().BoolVar(&skipShortlist, "skip-shortlist", false, "Stop after scoring, do not write the shortlist")
	return cmd
}

func runPipeline(ctx context.Context, limit int, skipShortlist bool) error {
	cfg := config.Get()
	log := logger.Get()

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

	vectors := vectorstore.NewPgVectorAdapter(db.(*persistence.PostgresDB).DB())

	stages := []struct {
		name string
		run  func() (*core.StageSummary, error)
	}{
		{"filter", func() (*core.StageSummary, error) {
			return signal.NewFilter(st, signal.NewScorer(cfg.Signal.MinPainScore)).Run(limit)
		}},
		{"extract", func() (*core.StageSummary, error) {
			return extract.NewExtractor(st, db.PainEvents(), service, cfg).Run(ctx, limit)
		}},
		{"embed", func() (*core.StageSummary, error) {
			return embed.NewEmbedder(db.PainEvents(), vectors, service).Run(ctx, limit)
		}},
		{"cluster", func() (*core.StageSummary, error) {
			return cluster.NewClusterer(db, service, cfg.Clustering).Run(ctx, limit)
		}},
		{"align", func() (*core.StageSummary, error) {
			return align.NewAligner(db, service, cfg.Alignment).Run(ctx)
		}},
		{"map", func() (*core.StageSummary, error) {
			return opportunity.NewMapper(db, service, cfg.Mapping).Map(ctx, opportunity.Options{Limit: limit})
		}},
		{"score", func() (*core.StageSummary, error) {
			return viability.NewScorer(db, service, cfg.Viability).Score(ctx, viability.Options{Limit: limit})
		}},
	}

	var summaries []*core.StageSummary
	for _, stage := range stages {
		log.Info("Pipeline stage starting", "stage", stage.name)
		summary, err := stage.run()
		if err != nil {
			return fmt.Errorf("stage %s: %w", stage.name, err)
		}
		summaries = append(summaries, summary)
	}

	fmt.Println("\n📋 Pipeline Summary")
	fmt.Println("===================")
	for _, summary := range summaries {
		fmt.Printf("%-10s processed=%-5d succeeded=%-5d skipped=%-5d failed=%d\n",
			summary.Stage, summary.Processed, summary.Succeeded, summary.Skipped, summary.Failed)
	}

	if skipShortlist {
		return nil
	}

	report, err := shortlist.NewGenerator(db, service, cfg.Shortlist).Generate(ctx)
	if err != nil {
		return fmt.Errorf("shortlist: %w", err)
	}
	mdPath, jsonPath, err := render.WriteShortlist(report, cfg.Output.Directory)
	if err != nil {
		return fmt.Errorf("shortlist: %w", err)
	}
	fmt.Printf("\n✅ Shortlist with %d candidates: %s (%s)\n", report.TotalCount, mdPath, jsonPath)
	return nil
}
