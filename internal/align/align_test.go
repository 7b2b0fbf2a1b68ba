package align

import (
	"context"
	"errors"
	"testing"

	"painfinder/internal/config"
	"painfinder/internal/core"
	"painfinder/internal/llm"
	"painfinder/internal/persistence"
)

type fakeLLM struct {
	llm.Service
	verdicts map[string]bool
	calls    int
}

func (f *fakeLLM) JudgeAlignment(ctx context.Context, clusters []core.Cluster) (*llm.AlignmentJudgment, error) {
	f.calls++
	same := f.verdicts[clusters[0].ID+"+"+clusters[1].ID]
	return &llm.AlignmentJudgment{
		SameProblem: same,
		CoreProblem: "shared problem",
		Evidence:    []string{"e1"},
	}, nil
}

type fakeClusterRepo struct {
	persistence.ClusterRepository
	candidates []core.Cluster
	aligned    map[string]string
	failMark   string
}

func (f *fakeClusterRepo) ListAlignmentCandidates(ctx context.Context, minSize, limit int) ([]core.Cluster, error) {
	var out []core.Cluster
	for _, c := range f.candidates {
		if c.AlignmentStatus == core.AlignmentNone && c.ClusterSize >= minSize {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeClusterRepo) MarkAligned(ctx context.Context, id, alignedProblemID string) error {
	if id == f.failMark {
		return errors.New("mark rejected")
	}
	f.aligned[id] = alignedProblemID
	for i := range f.candidates {
		if f.candidates[i].ID == id {
			f.candidates[i].AlignmentStatus = core.AlignmentAligned
		}
	}
	return nil
}

type fakeProblemRepo struct {
	persistence.AlignedProblemRepository
	created []*core.AlignedProblem
}

func (f *fakeProblemRepo) Create(ctx context.Context, problem *core.AlignedProblem) error {
	f.created = append(f.created, problem)
	return nil
}

type fakeDB struct {
	persistence.Database
	clusters *fakeClusterRepo
	problems *fakeProblemRepo
	lastTx   *fakeTx
}

func (f *fakeDB) Clusters() persistence.ClusterRepository               { return f.clusters }
func (f *fakeDB) AlignedProblems() persistence.AlignedProblemRepository { return f.problems }

func (f *fakeDB) BeginTx(ctx context.Context) (persistence.Transaction, error) {
	f.lastTx = &fakeTx{fakeDB: f}
	return f.lastTx, nil
}

type fakeTx struct {
	*fakeDB
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit() error { t.committed = true; return nil }

func (t *fakeTx) Rollback() error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

func TestRunAlignsCrossSourceClusters(t *testing.T) {
	clusters := &fakeClusterRepo{
		candidates: []core.Cluster{
			{ID: "reddit-1", SourceType: "reddit", ClusterSize: 5, AlignmentStatus: core.AlignmentNone},
			{ID: "hn-1", SourceType: "hackernews", ClusterSize: 4, AlignmentStatus: core.AlignmentNone},
		},
		aligned: make(map[string]string),
	}
	problems := &fakeProblemRepo{}
	db := &fakeDB{clusters: clusters, problems: problems}
	service := &fakeLLM{verdicts: map[string]bool{"reddit-1+hn-1": true}}
	a := NewAligner(db, service, config.Alignment{MinClusterSize: 3, MaxCandidates: 20})

	summary, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Succeeded != 1 {
		t.Fatalf("expected 1 alignment, got %d", summary.Succeeded)
	}
	if len(problems.created) != 1 {
		t.Fatalf("expected 1 aligned problem, got %d", len(problems.created))
	}

	problem := problems.created[0]
	if len(problem.ClusterIDs) != 2 {
		t.Errorf("aligned problem should reference both clusters, got %v", problem.ClusterIDs)
	}
	if len(problem.Sources) != 2 {
		t.Errorf("aligned problem should list both sources, got %v", problem.Sources)
	}
	for _, id := range []string{"reddit-1", "hn-1"} {
		if clusters.aligned[id] != problem.ID {
			t.Errorf("cluster %s should point at aligned problem %s", id, problem.ID)
		}
	}
	if db.lastTx == nil || !db.lastTx.committed {
		t.Error("alignment should commit its transaction")
	}
}

func TestRunRollsBackAlignmentOnMarkFailure(t *testing.T) {
	// A failed mark must roll the aligned problem back; a committed
	// problem whose contributors still read 'none' would be re-judged
	// and duplicated on the next pass.
	clusters := &fakeClusterRepo{
		candidates: []core.Cluster{
			{ID: "reddit-1", SourceType: "reddit", ClusterSize: 5, AlignmentStatus: core.AlignmentNone},
			{ID: "hn-1", SourceType: "hackernews", ClusterSize: 4, AlignmentStatus: core.AlignmentNone},
		},
		aligned:  make(map[string]string),
		failMark: "hn-1",
	}
	db := &fakeDB{clusters: clusters, problems: &fakeProblemRepo{}}
	service := &fakeLLM{verdicts: map[string]bool{"reddit-1+hn-1": true}}
	a := NewAligner(db, service, config.Alignment{MinClusterSize: 3, MaxCandidates: 20})

	summary, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Failed != 1 || summary.Succeeded != 0 {
		t.Errorf("expected 1 failed group, got failed=%d succeeded=%d", summary.Failed, summary.Succeeded)
	}
	if db.lastTx == nil {
		t.Fatal("alignment should run inside a transaction")
	}
	if db.lastTx.committed {
		t.Error("failed alignment must not commit")
	}
	if !db.lastTx.rolledBack {
		t.Error("failed alignment must roll back")
	}
}

func TestRunIsIdempotent(t *testing.T) {
	clusters := &fakeClusterRepo{
		candidates: []core.Cluster{
			{ID: "reddit-1", SourceType: "reddit", ClusterSize: 5, AlignmentStatus: core.AlignmentNone},
			{ID: "hn-1", SourceType: "hackernews", ClusterSize: 4, AlignmentStatus: core.AlignmentNone},
		},
		aligned: make(map[string]string),
	}
	db := &fakeDB{clusters: clusters, problems: &fakeProblemRepo{}}
	service := &fakeLLM{verdicts: map[string]bool{"reddit-1+hn-1": true}}
	a := NewAligner(db, service, config.Alignment{MinClusterSize: 3, MaxCandidates: 20})

	if _, err := a.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	summary, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Processed != 0 || service.calls != 1 {
		t.Errorf("aligned clusters must not be re-judged: processed=%d calls=%d",
			summary.Processed, service.calls)
	}
}

func TestCrossSourceGroupsSkipsSameSourcePairs(t *testing.T) {
	groups := crossSourceGroups([]core.Cluster{
		{ID: "a", SourceType: "reddit"},
		{ID: "b", SourceType: "reddit"},
		{ID: "c", SourceType: "hackernews"},
	})
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if groups[0][0].ID != "a" || groups[0][1].ID != "c" {
		t.Errorf("expected pair (a, c), got (%s, %s)", groups[0][0].ID, groups[0][1].ID)
	}
}
