package cluster

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
}

func (f *fakeLLM) SummarizeCluster(ctx context.Context, events []core.PainEvent) (*llm.ClusterSummary, error) {
	return &llm.ClusterSummary{Name: "test cluster", CentroidSummary: "summary"}, nil
}

type fakeEventRepo struct {
	persistence.PainEventRepository
	unclustered []core.PainEvent
	assigned    map[string]string
	orphaned    []string
	failAssign  string
}

func (f *fakeEventRepo) ListUnclustered(ctx context.Context, limit int) ([]core.PainEvent, error) {
	return f.unclustered, nil
}

func (f *fakeEventRepo) AssignCluster(ctx context.Context, id, clusterID string) error {
	if id == f.failAssign {
		return errors.New("assignment rejected")
	}
	f.assigned[id] = clusterID
	return nil
}

func (f *fakeEventRepo) MarkOrphan(ctx context.Context, id string) error {
	f.orphaned = append(f.orphaned, id)
	return nil
}

type fakeClusterRepo struct {
	persistence.ClusterRepository
	created []*core.Cluster
}

func (f *fakeClusterRepo) Create(ctx context.Context, cluster *core.Cluster) error {
	f.created = append(f.created, cluster)
	return nil
}

type fakeDB struct {
	persistence.Database
	events   persistence.PainEventRepository
	clusters persistence.ClusterRepository
	lastTx   *fakeTx
}

func (f *fakeDB) PainEvents() persistence.PainEventRepository { return f.events }
func (f *fakeDB) Clusters() persistence.ClusterRepository     { return f.clusters }

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

func event(id string, embedding ...float64) core.PainEvent {
	return core.PainEvent{ID: id, Problem: "p", Embedding: embedding}
}

func TestRunEmitsClustersAndOrphans(t *testing.T) {
	// Three near-identical vectors plus one pointing the other way: one
	// cluster of three and one orphan under min_cluster_size=3.
	events := &fakeEventRepo{
		unclustered: []core.PainEvent{
			event("a", 1, 0.00),
			event("b", 1, 0.01),
			event("c", 1, 0.02),
			event("d", 0, 1),
		},
		assigned: make(map[string]string),
	}
	clusters := &fakeClusterRepo{}
	db := &fakeDB{events: events, clusters: clusters}
	c := NewClusterer(db, &fakeLLM{}, config.Clustering{
		SimilarityThreshold: 0.9,
		MinClusterSize:      3,
	})

	summary, err := c.Run(context.Background(), 100)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(clusters.created) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters.created))
	}
	cl := clusters.created[0]

	if cl.ClusterSize != len(cl.PainEventIDs) {
		t.Errorf("cluster_size %d != len(pain_event_ids) %d", cl.ClusterSize, len(cl.PainEventIDs))
	}
	if cl.ClusterSize != 3 {
		t.Errorf("expected cluster of 3, got %d", cl.ClusterSize)
	}
	for _, id := range []string{"a", "b", "c"} {
		if events.assigned[id] != cl.ID {
			t.Errorf("event %s should be assigned to cluster %s, got %q", id, cl.ID, events.assigned[id])
		}
	}
	if len(events.orphaned) != 1 || events.orphaned[0] != "d" {
		t.Errorf("expected only d orphaned, got %v", events.orphaned)
	}
	if summary.Succeeded != 3 {
		t.Errorf("expected 3 clustered events, got %d", summary.Succeeded)
	}
	if db.lastTx == nil || !db.lastTx.committed {
		t.Error("cluster creation should commit its transaction")
	}
}

func TestRunRollsBackClusterOnAssignFailure(t *testing.T) {
	// An assignment failing mid-batch must roll the whole cluster back:
	// no committed cluster row may reference events left unassigned.
	events := &fakeEventRepo{
		unclustered: []core.PainEvent{
			event("a", 1, 0.00),
			event("b", 1, 0.01),
			event("c", 1, 0.02),
		},
		assigned:   make(map[string]string),
		failAssign: "b",
	}
	db := &fakeDB{events: events, clusters: &fakeClusterRepo{}}
	c := NewClusterer(db, &fakeLLM{}, config.Clustering{
		SimilarityThreshold: 0.9,
		MinClusterSize:      3,
	})

	if _, err := c.Run(context.Background(), 100); err == nil {
		t.Fatal("expected Run to fail when an assignment is rejected")
	}
	if db.lastTx == nil {
		t.Fatal("cluster creation should run inside a transaction")
	}
	if db.lastTx.committed {
		t.Error("failed batch must not commit")
	}
	if !db.lastTx.rolledBack {
		t.Error("failed batch must roll back")
	}
}

func TestRunSkipsEventsWithoutEmbeddings(t *testing.T) {
	events := &fakeEventRepo{
		unclustered: []core.PainEvent{
			{ID: "no-embedding", Problem: "p"},
		},
		assigned: make(map[string]string),
	}
	db := &fakeDB{events: events, clusters: &fakeClusterRepo{}}
	c := NewClusterer(db, &fakeLLM{}, config.Clustering{
		SimilarityThreshold: 0.9,
		MinClusterSize:      2,
	})

	summary, err := c.Run(context.Background(), 100)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Skipped != 1 {
		t.Errorf("expected 1 skipped, got %d", summary.Skipped)
	}
	if len(events.orphaned) != 0 || len(events.assigned) != 0 {
		t.Error("events without embeddings must be left untouched")
	}
}

func TestGroupByThresholdSeparatesDissimilar(t *testing.T) {
	events := []core.PainEvent{
		event("a", 1, 0),
		event("b", 0, 1),
		event("c", 1, 0.01),
	}
	groups := groupByThreshold(events, 0.9)

	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	// a and c group together; b stands alone.
	if len(groups[0]) != 2 || groups[0][0] != 0 || groups[0][1] != 2 {
		t.Errorf("expected group [0 2], got %v", groups[0])
	}
	if len(groups[1]) != 1 || groups[1][0] != 1 {
		t.Errorf("expected group [1], got %v", groups[1])
	}
}

type enrichLLM struct {
	llm.Service
	calls int
}

func (f *enrichLLM) EnrichJTBD(ctx context.Context, cluster *core.Cluster, sample []core.PainEvent) (*core.JTBD, error) {
	f.calls++
	return &core.JTBD{JobStatement: "when I close the books, I want clean exports"}, nil
}

type jtbdClusterRepo struct {
	persistence.ClusterRepository
	cluster *core.Cluster
	updated map[string]*core.JTBD
}

func (f *jtbdClusterRepo) Get(ctx context.Context, id string) (*core.Cluster, error) {
	return f.cluster, nil
}

func (f *jtbdClusterRepo) UpdateJTBD(ctx context.Context, id string, jtbd *core.JTBD) error {
	f.updated[id] = jtbd
	return nil
}

type jtbdEventRepo struct {
	persistence.PainEventRepository
}

func (f *jtbdEventRepo) ListByCluster(ctx context.Context, clusterID string) ([]core.PainEvent, error) {
	return []core.PainEvent{{ID: "e1"}}, nil
}

func TestEnrichJTBDIsLazy(t *testing.T) {
	service := &enrichLLM{}
	repo := &jtbdClusterRepo{
		cluster: &core.Cluster{ID: "cl-1"},
		updated: make(map[string]*core.JTBD),
	}
	db := &fakeDB{events: &jtbdEventRepo{}, clusters: repo}
	c := NewClusterer(db, service, config.Clustering{})

	if err := c.EnrichJTBD(context.Background(), "cl-1"); err != nil {
		t.Fatalf("EnrichJTBD returned error: %v", err)
	}
	if service.calls != 1 || repo.updated["cl-1"] == nil {
		t.Fatal("first enrichment should call the LLM and persist")
	}

	// Second call sees the populated block and does nothing.
	repo.cluster.JTBD = repo.updated["cl-1"]
	if err := c.EnrichJTBD(context.Background(), "cl-1"); err != nil {
		t.Fatalf("EnrichJTBD returned error: %v", err)
	}
	if service.calls != 1 {
		t.Errorf("already-enriched cluster should not trigger another LLM call, calls=%d", service.calls)
	}
}
