package extract

import (
	"context"
	"testing"

	"painfinder/internal/core"
	"painfinder/internal/llm"
	"painfinder/internal/persistence"
)

type fakeLLM struct {
	llm.Service
	drafts []llm.PainEventDraft
	err    error
}

func (f *fakeLLM) ExtractPainEvents(ctx context.Context, body string, topComments []string) ([]llm.PainEventDraft, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.drafts, nil
}

type fakeEventRepo struct {
	persistence.PainEventRepository
	created []*core.PainEvent
}

func (f *fakeEventRepo) Create(ctx context.Context, event *core.PainEvent) error {
	f.created = append(f.created, event)
	return nil
}

func TestExtractOneBuildsValidatedEvents(t *testing.T) {
	repo := &fakeEventRepo{}
	e := &Extractor{
		events: repo,
		llm: &fakeLLM{drafts: []llm.PainEventDraft{
			{Problem: "exports break", Context: "monthly close", FrequencyPhrase: "daily"},
			{Problem: "", Context: "vague complaint"}, // dropped: no problem
		}},
		scale: map[string]float64{"daily": 4.0, "unknown": 1.5},
	}

	item := &core.RawPost{
		ID:         "raw-1",
		SourceType: core.SourceComment,
		Platform:   "reddit",
		Community:  "r/accounting",
		Author:     "user1",
		Body:       "exports break constantly",
		PainScore:  0.8,
	}

	created, err := e.extractOne(context.Background(), item)
	if err != nil {
		t.Fatalf("extractOne returned error: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected 1 event created, got %d", created)
	}

	event := repo.created[0]
	if event.ID == "" {
		t.Error("event should get a generated id")
	}
	if event.SourceID != "raw-1" || event.SourceType != core.SourceComment {
		t.Errorf("event should carry source lineage, got %s/%s", event.SourceType, event.SourceID)
	}
	if event.PostPainScore != 0.8 {
		t.Errorf("event should inherit the source pain score, got %f", event.PostPainScore)
	}
	if event.FrequencyScore != 4.0 {
		t.Errorf("frequency phrase should map to 4.0, got %f", event.FrequencyScore)
	}
	if event.LifecycleStage != core.StageOrphan || event.ClusterID != nil {
		t.Error("new events must start unclustered")
	}
}

func TestExtractOnePropagatesMalformedResponse(t *testing.T) {
	e := &Extractor{
		events: &fakeEventRepo{},
		llm: &fakeLLM{err: &llm.MalformedLLMResponse{
			Operation: "extract_pain_events", Detail: "missing events key",
		}},
		scale: map[string]float64{"unknown": 1.5},
	}

	_, err := e.extractOne(context.Background(), &core.RawPost{ID: "raw-2", SourceType: core.SourceComment, Body: "text"})
	if err == nil {
		t.Fatal("expected malformed response error")
	}
}
