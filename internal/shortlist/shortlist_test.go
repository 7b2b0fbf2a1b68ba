package shortlist

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"painfinder/internal/config"
	"painfinder/internal/core"
	"painfinder/internal/llm"
	"painfinder/internal/persistence"
)

func shortlistConfig() config.Shortlist {
	return config.Shortlist{
		MinViabilityScore: 6.0,
		MinClusterSize:    3,
		MinTrustLevel:     0,
		MinCandidates:     3,
		MaxCandidates:     5,
		Weights:           config.Weights{Viability: 1.0, ClusterSize: 2.5, Trust: 1.5, CrossSource: 5.0},
		Boosts:            config.Boosts{Level1: 2.0, Level2: 1.0, Level3: 0.5},
	}
}

func candidate(id string, finalScore float64, level core.ValidationLevel) *Candidate {
	return &Candidate{
		Opportunity: core.Opportunity{ID: id},
		FinalScore:  finalScore,
		Validation:  core.CrossSourceValidation{Level: level, HasCrossSource: level != core.ValidationNone},
	}
}

// Candidates (9.0, none), (7.0, level 2), (8.0, level 1) must rank
// level 1, level 2, then the unvalidated one: any validated candidate
// outranks any non-validated candidate regardless of raw score.
func TestSortValidationLevelBeforeScore(t *testing.T) {
	pool := []*Candidate{
		candidate("high-unvalidated", 9.0, core.ValidationNone),
		candidate("mid-level2", 7.0, core.ValidationMultiCommunity),
		candidate("low-level1", 8.0, core.ValidationMultiPlatform),
	}

	SortCandidates(pool)

	want := []string{"low-level1", "mid-level2", "high-unvalidated"}
	for i, id := range want {
		if pool[i].Opportunity.ID != id {
			t.Errorf("position %d: got %s, want %s", i, pool[i].Opportunity.ID, id)
		}
	}
}

func TestSortTiesBreakByFinalScore(t *testing.T) {
	pool := []*Candidate{
		candidate("weaker", 5.0, core.ValidationMultiPlatform),
		candidate("stronger", 9.0, core.ValidationMultiPlatform),
	}
	SortCandidates(pool)
	if pool[0].Opportunity.ID != "stronger" {
		t.Errorf("same level must rank by final score, got %s first", pool[0].Opportunity.ID)
	}
}

// Stronger validation means a strictly larger boost, so adding
// validation never lowers a candidate's final score.
func TestBoostMonotonicity(t *testing.T) {
	g := &Generator{cfg: shortlistConfig()}

	boosts := []float64{
		g.validation(core.ValidationMultiPlatform, "").BoostScore,
		g.validation(core.ValidationMultiCommunity, "").BoostScore,
		g.validation(core.ValidationWeak, "").BoostScore,
		0,
	}
	for i := 0; i+1 < len(boosts); i++ {
		if boosts[i] <= boosts[i+1] {
			t.Errorf("boost for level %d (%.1f) must exceed level %d (%.1f)",
				i+1, boosts[i], i+2, boosts[i+1])
		}
	}

	opp := &core.Opportunity{TotalScore: 7, TrustLevel: 1}
	base := g.finalScore(opp, 5, 0)
	if boosted := g.finalScore(opp, 5, boosts[0]); boosted <= base {
		t.Errorf("boost must raise the final score: %.2f vs %.2f", boosted, base)
	}
}

type fakeLLM struct {
	llm.Service
	failFor map[string]bool
}

func (f *fakeLLM) NarrateCandidate(ctx context.Context, opp *core.Opportunity) (*llm.CandidateNarrative, error) {
	if f.failFor[opp.ID] {
		return nil, errors.New("narrative model unavailable")
	}
	return &llm.CandidateNarrative{Problem: "p", MVP: "m", WhyNow: "w"}, nil
}

type fakeOpportunityRepo struct {
	persistence.OpportunityRepository
	scored []core.Opportunity
}

func (f *fakeOpportunityRepo) ListScored(ctx context.Context, minScore float64, limit int) ([]core.Opportunity, error) {
	var out []core.Opportunity
	for _, opp := range f.scored {
		if opp.Scored && opp.TotalScore >= minScore {
			out = append(out, opp)
		}
	}
	return out, nil
}

type fakeClusterRepo struct {
	persistence.ClusterRepository
	clusters map[string]*core.Cluster
}

func (f *fakeClusterRepo) Get(ctx context.Context, id string) (*core.Cluster, error) {
	if c, ok := f.clusters[id]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("cluster %s not found", id)
}

type fakeEventRepo struct {
	persistence.PainEventRepository
	byCluster map[string][]core.PainEvent
}

func (f *fakeEventRepo) ListByCluster(ctx context.Context, clusterID string) ([]core.PainEvent, error) {
	return f.byCluster[clusterID], nil
}

type fakeDB struct {
	persistence.Database
	opps     *fakeOpportunityRepo
	clusters *fakeClusterRepo
	events   *fakeEventRepo
}

func (f *fakeDB) Opportunities() persistence.OpportunityRepository { return f.opps }
func (f *fakeDB) Clusters() persistence.ClusterRepository          { return f.clusters }
func (f *fakeDB) PainEvents() persistence.PainEventRepository      { return f.events }

func testDB(n int) *fakeDB {
	db := &fakeDB{
		opps:     &fakeOpportunityRepo{},
		clusters: &fakeClusterRepo{clusters: make(map[string]*core.Cluster)},
		events:   &fakeEventRepo{byCluster: make(map[string][]core.PainEvent)},
	}
	for i := 0; i < n; i++ {
		clusterID := fmt.Sprintf("cl-%d", i)
		db.opps.scored = append(db.opps.scored, core.Opportunity{
			ID: fmt.Sprintf("opp-%d", i), ClusterID: clusterID,
			TotalScore: 7 + float64(i)*0.1, Scored: true, TrustLevel: 1,
		})
		db.clusters.clusters[clusterID] = &core.Cluster{ID: clusterID, ClusterSize: 5}
		db.events.byCluster[clusterID] = []core.PainEvent{
			{Platform: "reddit", Community: "r/a", SourceType: core.SourcePost},
		}
	}
	return db
}

func TestGenerateClampsToMaxCandidates(t *testing.T) {
	g := NewGenerator(testDB(8), &fakeLLM{}, shortlistConfig())
	report, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(report.Candidates) != 5 {
		t.Errorf("expected 5 candidates (max), got %d", len(report.Candidates))
	}
	if report.TotalCount != len(report.Candidates) {
		t.Errorf("total_count %d must match candidates %d", report.TotalCount, len(report.Candidates))
	}
}

func TestGenerateEmitsAvailableWithoutPadding(t *testing.T) {
	g := NewGenerator(testDB(2), &fakeLLM{}, shortlistConfig())
	report, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	// Only 2 pass filtering, below min_candidates=3: emit 2, pad nothing.
	if len(report.Candidates) != 2 {
		t.Errorf("expected 2 candidates, got %d", len(report.Candidates))
	}
}

func TestGenerateIsolatesNarrativeFailures(t *testing.T) {
	db := testDB(3)
	g := NewGenerator(db, &fakeLLM{failFor: map[string]bool{"opp-1": true}}, shortlistConfig())

	report, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(report.Candidates) != 3 {
		t.Fatalf("narrative failure must not drop candidates, got %d", len(report.Candidates))
	}

	withNarrative := 0
	for _, c := range report.Candidates {
		if c.Narrative != nil {
			withNarrative++
		}
	}
	if withNarrative != 2 {
		t.Errorf("expected 2 candidates with narratives, got %d", withNarrative)
	}
}
