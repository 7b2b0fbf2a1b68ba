package handlers

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"painfinder/internal/core"
	"painfinder/internal/logger"
)

// NewIngestCmd creates the ingest command for loading collected items.
func NewIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [file.json]",
		Short: "Load collected posts and comments into the raw store",
		Long: `Load a JSON array of collected posts and comments into the local raw
item store. Items already present (same id) are overwritten.

The file format matches the RawPost JSON shape; collection itself is out
of scope and handled by external scrapers.

Example:
  painfinder ingest exports/reddit-2025-08.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(args[0])
		},
	}
}

// NewStatsCmd creates the stats command for the raw store.
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show raw store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats()
		},
	}
}

func runIngest(path string) error {
	log := logger.Get()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	var posts []core.RawPost
	if err := json.Unmarshal(data, &posts); err != nil {
		return fmt.Errorf("failed to parse input file: %w", err)
	}

	st, err := getStore()
	if err != nil {
		return err
	}
	defer st.Close()

	saved := 0
	for i := range posts {
		post := posts[i]
		if post.ID == "" {
			post.ID = uuid.New().String()
		}
		if post.SourceType == "" {
			post.SourceType = core.SourcePost
		}
		if post.CollectedAt.IsZero() {
			post.CollectedAt = time.Now().UTC()
		}
		if err := st.SaveRawPost(post); err != nil {
			log.Warn("Failed to save item", "id", post.ID, "error", err)
			continue
		}
		saved++
	}

	log.Info("Ingest complete", "file", path, "items", len(posts), "saved", saved)
	fmt.Printf("✅ Ingested %d/%d items from %s\n", saved, len(posts), path)
	return nil
}

func runStats() error {
	st, err := getStore()
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read store stats: %w", err)
	}

	fmt.Println("Raw Store Statistics:")
	fmt.Println("=====================")
	fmt.Printf("Total items:    %d\n", stats.TotalItems)
	fmt.Printf("Passed filter:  %d\n", stats.FilteredItems)
	fmt.Printf("Extracted:      %d\n", stats.Extracted)
	if !stats.LastCollected.IsZero() {
		fmt.Printf("Last collected: %s\n", stats.LastCollected.Format("2006-01-02 15:04"))
	}
	return nil
}
