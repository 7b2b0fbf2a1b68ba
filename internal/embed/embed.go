// Package embed computes embeddings for pain events and mirrors them
// into the vector index.
package embed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"painfinder/internal/core"
	"painfinder/internal/llm"
	"painfinder/internal/logger"
	"painfinder/internal/persistence"
	"painfinder/internal/vectorstore"
)

// Embedder fills in missing embeddings.
type Embedder struct {
	events  persistence.PainEventRepository
	vectors vectorstore.VectorStore
	llm     llm.Service
}

func NewEmbedder(events persistence.PainEventRepository, vectors vectorstore.VectorStore, service llm.Service) *Embedder {
	return &Embedder{events: events, vectors: vectors, llm: service}
}

// Run embeds up to limit events that have no embedding yet. The vector
// is stored on the event row and mirrored into the pgvector index in
// the same pass.
func (e *Embedder) Run(ctx context.Context, limit int) (*core.StageSummary, error) {
	log := logger.Get()
	summary := &core.StageSummary{Stage: "embed", StartedAt: time.Now()}

	events, err := e.events.ListUnembedded(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unembedded events: %w", err)
	}

	for i := range events {
		event := &events[i]
		summary.Processed++

		embedding, err := e.llm.GenerateEmbedding(ctx, EmbeddingText(event))
		if err != nil {
			log.Warn("Embedding generation failed", "id", event.ID, "error", err)
			summary.RecordError(fmt.Errorf("event %s: %w", event.ID, err))
			continue
		}

		if err := e.events.UpdateEmbedding(ctx, event.ID, embedding); err != nil {
			summary.RecordError(fmt.Errorf("event %s: %w", event.ID, err))
			continue
		}
		if err := e.vectors.Upsert(ctx, event.ID, embedding); err != nil {
			summary.RecordError(fmt.Errorf("event %s: %w", event.ID, err))
			continue
		}
		summary.Succeeded++
	}

	summary.Duration = time.Since(summary.StartedAt).String()
	log.Info("Embedding pass complete",
		"processed", summary.Processed,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed)
	return summary, nil
}

// EmbeddingText builds the text an event is embedded from. Problem and
// context dominate similarity; the workaround disambiguates events
// whose problem statements coincide.
func EmbeddingText(event *core.PainEvent) string {
	parts := []string{event.Problem}
	if event.Context != "" {
		parts = append(parts, event.Context)
	}
	if event.CurrentWorkaround != "" {
		parts = append(parts, "Workaround: "+event.CurrentWorkaround)
	}
	return strings.Join(parts, "\n")
}
