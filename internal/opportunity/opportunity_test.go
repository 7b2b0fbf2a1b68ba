package opportunity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"painfinder/internal/config"
	"painfinder/internal/core"
	"painfinder/internal/llm"
	"painfinder/internal/persistence"
)

func mappingConfig() config.Mapping {
	return config.Mapping{
		MinClusterSize:    3,
		MaxEventsInPrompt: 20,
		MaxFieldChars:     200,
		MaxSummaryChars:   50000,
	}
}

// 25 events scored 0, 100, ..., 2400: the compact summary keeps exactly
// the top 20, so the kept minimum is 500 and the maximum 2400.
func TestSummarizeKeepsTopTwentyByPainScore(t *testing.T) {
	var events []core.PainEvent
	for i := 0; i < 25; i++ {
		events = append(events, core.PainEvent{
			ID:            fmt.Sprintf("ev-%d", i),
			Problem:       "problem",
			PostPainScore: float64(i * 100),
		})
	}

	s := NewSummarizer(mappingConfig())
	summary := s.Summarize(&core.Cluster{ID: "cl-1", ClusterSize: 25}, events)

	if len(summary.TopEvents) != 20 {
		t.Fatalf("expected 20 kept events, got %d", len(summary.TopEvents))
	}
	min, max := summary.TopEvents[0].PostPainScore, summary.TopEvents[0].PostPainScore
	for _, ev := range summary.TopEvents {
		if ev.PostPainScore < min {
			min = ev.PostPainScore
		}
		if ev.PostPainScore > max {
			max = ev.PostPainScore
		}
	}
	if min != 500 {
		t.Errorf("kept minimum score = %.0f, want 500", min)
	}
	if max != 2400 {
		t.Errorf("kept maximum score = %.0f, want 2400", max)
	}
}

func TestSummarizeTruncatesFreeTextFields(t *testing.T) {
	long := strings.Repeat("x", 1000)
	events := []core.PainEvent{{
		Problem:           long,
		Context:           long,
		CurrentWorkaround: long,
		PostPainScore:     1,
	}}

	s := NewSummarizer(mappingConfig())
	summary := s.Summarize(&core.Cluster{ID: "cl-1"}, events)

	ev := summary.TopEvents[0]
	for name, field := range map[string]string{
		"problem": ev.Problem, "context": ev.Context, "current_workaround": ev.CurrentWorkaround,
	} {
		if len(field) > 200 {
			t.Errorf("%s not truncated: %d chars", name, len(field))
		}
	}
}

func TestSummarizeTruncatesOnRuneBoundary(t *testing.T) {
	// 100 three-byte runes: 300 bytes, and 200 lands mid-rune. The cut
	// must back off to a boundary and keep the field valid UTF-8.
	long := strings.Repeat("每", 100)
	events := []core.PainEvent{{Problem: long, PostPainScore: 1}}

	s := NewSummarizer(mappingConfig())
	summary := s.Summarize(&core.Cluster{ID: "cl-1"}, events)

	got := summary.TopEvents[0].Problem
	if len(got) > 200 {
		t.Errorf("problem not truncated: %d bytes", len(got))
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncated problem is not valid UTF-8: last bytes %x", got[len(got)-3:])
	}
}

func TestSummarizePreservesAggregates(t *testing.T) {
	events := []core.PainEvent{
		{Community: "r/a", MentionedTools: []string{"excel"}, EmotionalSignal: "angry", PostPainScore: 10, FrequencyScore: 4},
		{Community: "r/a", MentionedTools: []string{"excel", "sheets"}, EmotionalSignal: "tired", PostPainScore: 20, FrequencyScore: 2},
		{Community: "r/b", PostPainScore: 30, FrequencyScore: 3},
	}

	s := NewSummarizer(mappingConfig())
	summary := s.Summarize(&core.Cluster{ID: "cl-1", ClusterSize: 3, WorkflowSimilarity: 0.8}, events)

	if summary.SubredditDistribution["r/a"] != 2 || summary.SubredditDistribution["r/b"] != 1 {
		t.Errorf("subreddit distribution wrong: %v", summary.SubredditDistribution)
	}
	if summary.MentionedTools["excel"] != 2 {
		t.Errorf("mentioned tools wrong: %v", summary.MentionedTools)
	}
	if summary.EmotionalSignals["angry"] != 1 {
		t.Errorf("emotional signals wrong: %v", summary.EmotionalSignals)
	}
	if summary.TotalPainScore != 60 {
		t.Errorf("total pain score = %.0f, want 60", summary.TotalPainScore)
	}
	if summary.AvgFrequencyScore != 3 {
		t.Errorf("avg frequency score = %.1f, want 3", summary.AvgFrequencyScore)
	}
	if summary.ClusterSize != 3 || summary.WorkflowSimilarity != 0.8 {
		t.Error("cluster-level aggregates must carry over untouched")
	}
}

// Worst case from the original failure mode: a 100-member cluster with
// maximal field lengths must still serialize under the hard bound.
func TestSerializeStaysUnderHardBound(t *testing.T) {
	var events []core.PainEvent
	for i := 0; i < 100; i++ {
		events = append(events, core.PainEvent{
			Problem:           strings.Repeat("p", 5000),
			Context:           strings.Repeat("c", 5000),
			CurrentWorkaround: strings.Repeat("w", 5000),
			Community:         fmt.Sprintf("r/community-%d", i%20),
			EmotionalSignal:   fmt.Sprintf("signal-%d", i%20),
			MentionedTools:    []string{fmt.Sprintf("tool-%d", i%20)},
			PostPainScore:     float64(i),
			FrequencyScore:    4,
		})
	}

	s := NewSummarizer(mappingConfig())
	summary := s.Summarize(&core.Cluster{ID: "cl-big", ClusterSize: 100}, events)
	data, err := s.Serialize(summary)
	if err != nil {
		t.Fatalf("Serialize returned error: %v", err)
	}
	if len(data) >= 50000 {
		t.Fatalf("serialized summary is %d chars, must stay under 50000", len(data))
	}
	if !json.Valid([]byte(data)) {
		t.Fatal("serialized summary is not valid JSON")
	}
}

type fakeLLM struct {
	llm.Service
	drafts []llm.OpportunityDraft
	calls  int
}

func (f *fakeLLM) MapOpportunities(ctx context.Context, compactSummaryJSON string) ([]llm.OpportunityDraft, error) {
	f.calls++
	return f.drafts, nil
}

type fakeClusterRepo struct {
	persistence.ClusterRepository
	unmapped []core.Cluster
}

func (f *fakeClusterRepo) ListUnmapped(ctx context.Context, minSize, limit int) ([]core.Cluster, error) {
	var out []core.Cluster
	for _, c := range f.unmapped {
		if c.ClusterSize >= minSize {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeEventRepo struct {
	persistence.PainEventRepository
}

func (f *fakeEventRepo) ListByCluster(ctx context.Context, clusterID string) ([]core.PainEvent, error) {
	return []core.PainEvent{{Problem: "p", PostPainScore: 1}}, nil
}

type fakeProblemRepo struct {
	persistence.AlignedProblemRepository
}

func (f *fakeProblemRepo) ListUnmapped(ctx context.Context, limit int) ([]core.AlignedProblem, error) {
	return nil, nil
}

type fakeOpportunityRepo struct {
	persistence.OpportunityRepository
	created []*core.Opportunity
}

func (f *fakeOpportunityRepo) Create(ctx context.Context, opp *core.Opportunity) error {
	f.created = append(f.created, opp)
	return nil
}

func (f *fakeOpportunityRepo) GetByCluster(ctx context.Context, clusterID string) (*core.Opportunity, error) {
	for _, opp := range f.created {
		if opp.ClusterID == clusterID {
			return opp, nil
		}
	}
	return nil, nil
}

type fakeDB struct {
	persistence.Database
	clusters *fakeClusterRepo
	events   *fakeEventRepo
	problems *fakeProblemRepo
	opps     *fakeOpportunityRepo
}

func (f *fakeDB) Clusters() persistence.ClusterRepository               { return f.clusters }
func (f *fakeDB) PainEvents() persistence.PainEventRepository           { return f.events }
func (f *fakeDB) AlignedProblems() persistence.AlignedProblemRepository { return f.problems }
func (f *fakeDB) Opportunities() persistence.OpportunityRepository      { return f.opps }

// Running the mapper twice over the same data creates no second
// opportunity: clusters that own one are refused.
func TestMapIsIdempotent(t *testing.T) {
	db := &fakeDB{
		clusters: &fakeClusterRepo{unmapped: []core.Cluster{
			{ID: "cl-1", Name: "cluster", ClusterSize: 5},
		}},
		events:   &fakeEventRepo{},
		problems: &fakeProblemRepo{},
		opps:     &fakeOpportunityRepo{},
	}
	service := &fakeLLM{drafts: []llm.OpportunityDraft{{Name: "opp", Description: "d"}}}
	m := NewMapper(db, service, mappingConfig())

	first, err := m.Map(context.Background(), Options{Limit: 10})
	if err != nil {
		t.Fatalf("first Map: %v", err)
	}
	if first.Succeeded != 1 || len(db.opps.created) != 1 {
		t.Fatalf("expected 1 opportunity after first pass, got %d", len(db.opps.created))
	}

	second, err := m.Map(context.Background(), Options{Limit: 10})
	if err != nil {
		t.Fatalf("second Map: %v", err)
	}
	if second.Succeeded != 0 || len(db.opps.created) != 1 {
		t.Errorf("second pass must create nothing: created=%d total=%d",
			second.Succeeded, len(db.opps.created))
	}
	if second.Skipped != 1 {
		t.Errorf("second pass should report the cluster as already mapped, skipped=%d", second.Skipped)
	}
	if service.calls != 1 {
		t.Errorf("already-mapped cluster must not reach the LLM, calls=%d", service.calls)
	}
}
