package signal

import (
	"fmt"
	"time"

	"painfinder/internal/core"
	"painfinder/internal/logger"
	"painfinder/internal/store"
)

// Filter runs the heuristic scorer over unfiltered raw items and
// persists a verdict for each one.
type Filter struct {
	store  *store.Store
	scorer *Scorer
}

func NewFilter(st *store.Store, scorer *Scorer) *Filter {
	return &Filter{store: st, scorer: scorer}
}

// Run scores up to limit unfiltered items. Individual verdict failures
// are accumulated; only listing failures abort the pass.
func (f *Filter) Run(limit int) (*core.StageSummary, error) {
	log := logger.Get()
	summary := &core.StageSummary{Stage: "filter", StartedAt: time.Now()}

	items, err := f.store.ListUnfiltered(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unfiltered items: %w", err)
	}

	for i := range items {
		summary.Processed++
		verdict := f.scorer.Score(&items[i])
		if err := f.store.RecordFilterVerdict(items[i].ID, verdict.Score, verdict.Passed, verdict.Reasons); err != nil {
			log.Warn("Failed to record filter verdict", "id", items[i].ID, "error", err)
			summary.RecordError(fmt.Errorf("item %s: %w", items[i].ID, err))
			continue
		}
		if verdict.Passed {
			summary.Succeeded++
		} else {
			summary.Skipped++
		}
	}

	summary.Duration = time.Since(summary.StartedAt).String()
	log.Info("Filter pass complete",
		"processed", summary.Processed,
		"passed", summary.Succeeded,
		"rejected", summary.Skipped,
		"failed", summary.Failed)
	return summary, nil
}
