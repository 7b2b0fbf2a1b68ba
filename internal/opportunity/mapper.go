package opportunity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"painfinder/internal/config"
	"painfinder/internal/core"
	"painfinder/internal/llm"
	"painfinder/internal/logger"
	"painfinder/internal/persistence"
)

// Mapper turns clusters and aligned problems into opportunity rows.
// At most one opportunity may exist per cluster: the mapper refuses
// targets that already own one.
type Mapper struct {
	db         persistence.Database
	llm        llm.Service
	summarizer *Summarizer
	cfg        config.Mapping
}

// Options select which clusters a mapping pass targets.
type Options struct {
	// ClusterIDs maps exactly these clusters/aligned problems when set.
	ClusterIDs []string

	// Limit caps automatic selection.
	Limit int
}

func NewMapper(db persistence.Database, service llm.Service, cfg config.Mapping) *Mapper {
	return &Mapper{db: db, llm: service, summarizer: NewSummarizer(cfg), cfg: cfg}
}

// Map runs one mapping pass. On LLM failure a cluster is left unmapped
// and reported; it is not retried within the call.
func (m *Mapper) Map(ctx context.Context, opts Options) (*core.StageSummary, error) {
	log := logger.Get()
	summary := &core.StageSummary{Stage: "map", StartedAt: time.Now()}

	targets, err := m.selectTargets(ctx, opts)
	if err != nil {
		return nil, err
	}

	for _, target := range targets {
		summary.Processed++

		existing, err := m.db.Opportunities().GetByCluster(ctx, target.id)
		if err != nil {
			summary.RecordError(fmt.Errorf("cluster %s: %w", target.id, err))
			continue
		}
		if existing != nil {
			log.Debug("Cluster already owns an opportunity", "cluster", target.id)
			summary.Skipped++
			continue
		}

		created, err := m.mapOne(ctx, target)
		if err != nil {
			log.Warn("Mapping failed, cluster left unmapped", "cluster", target.id, "error", err)
			summary.RecordError(fmt.Errorf("cluster %s: %w", target.id, err))
			continue
		}
		summary.Succeeded += created
	}

	summary.Duration = time.Since(summary.StartedAt).String()
	log.Info("Mapping pass complete",
		"targets", summary.Processed,
		"opportunities_created", summary.Succeeded,
		"already_mapped", summary.Skipped,
		"failed", summary.Failed)
	return summary, nil
}

// target is a cluster or an aligned problem presented under the same
// mapping contract.
type target struct {
	id      string
	cluster *core.Cluster
	events  []core.PainEvent
}

func (m *Mapper) selectTargets(ctx context.Context, opts Options) ([]target, error) {
	if len(opts.ClusterIDs) > 0 {
		var targets []target
		for _, id := range opts.ClusterIDs {
			t, err := m.loadTarget(ctx, id)
			if err != nil {
				return nil, err
			}
			targets = append(targets, t)
		}
		return targets, nil
	}

	clusters, err := m.db.Clusters().ListUnmapped(ctx, m.cfg.MinClusterSize, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unmapped clusters: %w", err)
	}
	var targets []target
	for i := range clusters {
		t, err := m.clusterTarget(ctx, &clusters[i])
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}

	problems, err := m.db.AlignedProblems().ListUnmapped(ctx, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unmapped aligned problems: %w", err)
	}
	for i := range problems {
		t, err := m.alignedTarget(ctx, &problems[i])
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}

	if opts.Limit > 0 && len(targets) > opts.Limit {
		targets = targets[:opts.Limit]
	}
	return targets, nil
}

func (m *Mapper) loadTarget(ctx context.Context, id string) (target, error) {
	cluster, err := m.db.Clusters().Get(ctx, id)
	if err == nil {
		return m.clusterTarget(ctx, cluster)
	}
	problem, apErr := m.db.AlignedProblems().Get(ctx, id)
	if apErr != nil {
		return target{}, fmt.Errorf("target %s is neither a cluster nor an aligned problem: %w", id, err)
	}
	return m.alignedTarget(ctx, problem)
}

func (m *Mapper) clusterTarget(ctx context.Context, cluster *core.Cluster) (target, error) {
	events, err := m.db.PainEvents().ListByCluster(ctx, cluster.ID)
	if err != nil {
		return target{}, fmt.Errorf("failed to load cluster %s events: %w", cluster.ID, err)
	}
	return target{id: cluster.ID, cluster: cluster, events: events}, nil
}

// alignedTarget presents an aligned problem as a pseudo-cluster pooling
// every contributing cluster's events.
func (m *Mapper) alignedTarget(ctx context.Context, problem *core.AlignedProblem) (target, error) {
	pseudo := &core.Cluster{
		ID:              problem.ID,
		Name:            "Aligned: " + problem.CoreProblem,
		CentroidSummary: problem.CoreProblem,
	}
	var events []core.PainEvent
	for _, clusterID := range problem.ClusterIDs {
		members, err := m.db.PainEvents().ListByCluster(ctx, clusterID)
		if err != nil {
			return target{}, fmt.Errorf("failed to load aligned cluster %s events: %w", clusterID, err)
		}
		events = append(events, members...)
	}
	pseudo.ClusterSize = len(events)
	return target{id: problem.ID, cluster: pseudo, events: events}, nil
}

func (m *Mapper) mapOne(ctx context.Context, t target) (int, error) {
	compact := m.summarizer.Summarize(t.cluster, t.events)
	compactJSON, err := m.summarizer.Serialize(compact)
	if err != nil {
		return 0, err
	}

	drafts, err := m.llm.MapOpportunities(ctx, compactJSON)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, draft := range drafts {
		if draft.Name == "" {
			continue
		}
		opp := &core.Opportunity{
			ID:                uuid.New().String(),
			ClusterID:         t.id,
			Name:              draft.Name,
			Description:       draft.Description,
			TargetUsers:       draft.TargetUsers,
			MissingCapability: draft.MissingCapability,
			WhyExistingFail:   draft.WhyExistingFail,
			TrustLevel:        1.0,
			CurrentVersion:    1,
			CreatedAt:         time.Now().UTC(),
		}
		if err := m.db.Opportunities().Create(ctx, opp); err != nil {
			return created, fmt.Errorf("failed to persist opportunity: %w", err)
		}
		created++
	}
	return created, nil
}
