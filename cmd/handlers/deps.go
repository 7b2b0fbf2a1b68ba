package handlers

import (
	"fmt"

	"painfinder/internal/config"
	"painfinder/internal/core"
	"painfinder/internal/llm"
	"painfinder/internal/persistence"
	"painfinder/internal/store"
)

// getDatabase opens the Postgres database that holds pain events,
// clusters, aligned problems, and opportunities.
func getDatabase() (persistence.Database, error) {
	cfg := config.Get()
	if cfg.Database.PostgresURL == "" {
		return nil, fmt.Errorf("database.postgres_url is not configured: set PAINFINDER_DATABASE_URL or DATABASE_URL")
	}
	db, err := persistence.NewPostgresDB(cfg.Database.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// getStore opens the local SQLite store holding raw and filtered items.
func getStore() (*store.Store, error) {
	cfg := config.Get()
	st, err := store.NewStore(cfg.Database.SQLiteDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open raw item store: %w", err)
	}
	return st, nil
}

// getLLM creates the Gemini-backed LLM service.
func getLLM() (llm.Service, error) {
	client, err := llm.NewClient("")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	return client, nil
}

// printSummary renders one stage result for the terminal.
func printSummary(summary *core.StageSummary) {
	fmt.Printf("\n📊 Stage %q complete in %s\n", summary.Stage, summary.Duration)
	fmt.Printf("   Processed: %d | Succeeded: %d | Skipped: %d | Failed: %d\n",
		summary.Processed, summary.Succeeded, summary.Skipped, summary.Failed)
	for _, e := range summary.Errors {
		fmt.Printf("   ❌ %s\n", e)
	}
}
