// Package extract turns filtered posts and comments into structured pain
// events via the LLM.
package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"painfinder/internal/config"
	"painfinder/internal/core"
	"painfinder/internal/llm"
	"painfinder/internal/logger"
	"painfinder/internal/persistence"
	"painfinder/internal/store"
	"painfinder/internal/viability"
)

// Extractor runs LLM extraction over filtered-but-unextracted items.
type Extractor struct {
	store       *store.Store
	events      persistence.PainEventRepository
	llm         llm.Service
	topComments int
	scale       map[string]float64
}

func NewExtractor(st *store.Store, events persistence.PainEventRepository, service llm.Service, cfg *config.Config) *Extractor {
	return &Extractor{
		store:       st,
		events:      events,
		llm:         service,
		topComments: cfg.Signal.TopComments,
		scale:       cfg.Viability.FrequencyScale,
	}
}

// Run extracts pain events from up to limit filtered items. Malformed
// LLM responses skip the item with a warning; the source stays
// unextracted so a later pass can retry it. Persistence failures are
// accumulated per item.
func (e *Extractor) Run(ctx context.Context, limit int) (*core.StageSummary, error) {
	log := logger.Get()
	summary := &core.StageSummary{Stage: "extract", StartedAt: time.Now()}

	items, err := e.store.ListFilteredUnextracted(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list filtered items: %w", err)
	}

	for i := range items {
		item := &items[i]
		summary.Processed++

		created, err := e.extractOne(ctx, item)
		if err != nil {
			var malformed *llm.MalformedLLMResponse
			if errors.As(err, &malformed) {
				log.Warn("Skipping item with malformed extraction response",
					"id", item.ID, "detail", malformed.Detail)
				summary.Skipped++
				continue
			}
			summary.RecordError(fmt.Errorf("item %s: %w", item.ID, err))
			continue
		}

		if err := e.store.MarkExtracted(item.ID); err != nil {
			summary.RecordError(fmt.Errorf("item %s: %w", item.ID, err))
			continue
		}
		summary.Succeeded++
		log.Debug("Extracted pain events", "id", item.ID, "events", created)
	}

	summary.Duration = time.Since(summary.StartedAt).String()
	log.Info("Extraction pass complete",
		"processed", summary.Processed,
		"succeeded", summary.Succeeded,
		"skipped", summary.Skipped,
		"failed", summary.Failed)
	return summary, nil
}

func (e *Extractor) extractOne(ctx context.Context, item *core.RawPost) (int, error) {
	var topComments []string
	if item.SourceType == core.SourcePost {
		comments, err := e.store.TopCommentsFor(item.ID, e.topComments)
		if err != nil {
			return 0, fmt.Errorf("failed to load top comments: %w", err)
		}
		topComments = comments
	}

	text := item.Body
	if item.Title != "" {
		text = item.Title + "\n\n" + item.Body
	}

	drafts, err := e.llm.ExtractPainEvents(ctx, text, topComments)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, draft := range drafts {
		if draft.Problem == "" {
			continue
		}
		event := e.buildEvent(item, draft)
		if err := e.events.Create(ctx, event); err != nil {
			return created, fmt.Errorf("failed to persist pain event: %w", err)
		}
		created++
	}
	return created, nil
}

func (e *Extractor) buildEvent(item *core.RawPost, draft llm.PainEventDraft) *core.PainEvent {
	return &core.PainEvent{
		ID:                uuid.New().String(),
		Problem:           draft.Problem,
		Context:           draft.Context,
		CurrentWorkaround: draft.CurrentWorkaround,
		EmotionalSignal:   draft.EmotionalSignal,
		FrequencyPhrase:   draft.FrequencyPhrase,
		FrequencyScore:    viability.FrequencyScore(e.scale, draft.FrequencyPhrase),
		PostPainScore:     item.PainScore,
		SourceType:        item.SourceType,
		SourceID:          item.ID,
		ParentPostID:      item.ParentPostID,
		Platform:          item.Platform,
		Community:         item.Community,
		Author:            item.Author,
		MentionedTools:    draft.MentionedTools,
		LifecycleStage:    core.StageOrphan,
		CreatedAt:         time.Now().UTC(),
	}
}
