package viability

import (
	"context"
	"fmt"
	"time"

	"painfinder/internal/config"
	"painfinder/internal/core"
	"painfinder/internal/llm"
	"painfinder/internal/logger"
	"painfinder/internal/persistence"
)

// Scorer runs viability scoring over opportunities.
type Scorer struct {
	db  persistence.Database
	llm llm.Service
	cfg config.Viability
}

// Options select which opportunities a scoring pass targets.
type Options struct {
	// Limit caps how many unscored opportunities are picked up.
	Limit int

	// Rescore re-runs scoring on already-scored opportunities for the
	// given clusters, updating rows in place.
	Rescore bool

	// ClusterIDs restricts the pass to opportunities of these clusters.
	ClusterIDs []string

	// SkipFiltering suppresses the post-scoring filter report.
	SkipFiltering bool
}

func NewScorer(db persistence.Database, service llm.Service, cfg config.Viability) *Scorer {
	return &Scorer{db: db, llm: service, cfg: cfg}
}

// Score scores every targeted opportunity and persists the result
// before any filtering is considered. Filtering only annotates which
// opportunities downstream stages should skip; it never blocks a score
// from being written.
func (s *Scorer) Score(ctx context.Context, opts Options) (*core.StageSummary, error) {
	log := logger.Get()
	summary := &core.StageSummary{Stage: "score", StartedAt: time.Now()}

	targets, err := s.selectTargets(ctx, opts)
	if err != nil {
		return nil, err
	}

	for i := range targets {
		opp := &targets[i]
		summary.Processed++

		clusterContext, err := s.clusterContext(ctx, opp.ClusterID)
		if err != nil {
			log.Warn("Failed to load cluster context", "opportunity", opp.ID, "error", err)
			summary.RecordError(fmt.Errorf("opportunity %s: %w", opp.ID, err))
			continue
		}

		result, err := s.llm.ScoreViability(ctx, opp, clusterContext)
		if err != nil {
			log.Warn("Viability scoring failed", "opportunity", opp.ID, "error", err)
			summary.RecordError(fmt.Errorf("opportunity %s: %w", opp.ID, err))
			continue
		}

		rescore := opts.Rescore && opp.Scored
		if err := s.db.Opportunities().RecordScore(ctx, opp.ID, result.Score, result.Recommendation, rescore); err != nil {
			summary.RecordError(fmt.Errorf("opportunity %s: %w", opp.ID, err))
			continue
		}
		summary.Succeeded++

		if opts.SkipFiltering {
			continue
		}
		metrics, err := ComputeClusterMetrics(ctx, s.db.PainEvents(), s.cfg, opp.ClusterID)
		if err != nil {
			log.Warn("Failed to compute cluster metrics", "opportunity", opp.ID, "error", err)
			continue
		}
		if skip, reason := ShouldSkipSolutionDesign(s.cfg, metrics); skip {
			summary.Skipped++
			log.Info("Opportunity scored but filtered from solution design",
				"opportunity", opp.ID, "score", result.Score, "reason", reason)
		}
	}

	summary.Duration = time.Since(summary.StartedAt).String()
	log.Info("Scoring pass complete",
		"processed", summary.Processed,
		"scored", summary.Succeeded,
		"filtered", summary.Skipped,
		"failed", summary.Failed)
	return summary, nil
}

func (s *Scorer) selectTargets(ctx context.Context, opts Options) ([]core.Opportunity, error) {
	if len(opts.ClusterIDs) > 0 {
		var targets []core.Opportunity
		for _, clusterID := range opts.ClusterIDs {
			opp, err := s.db.Opportunities().GetByCluster(ctx, clusterID)
			if err != nil {
				return nil, fmt.Errorf("failed to look up cluster %s opportunity: %w", clusterID, err)
			}
			if opp == nil {
				continue
			}
			if opp.Scored && !opts.Rescore {
				continue
			}
			targets = append(targets, *opp)
		}
		return targets, nil
	}

	targets, err := s.db.Opportunities().ListUnscored(ctx, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unscored opportunities: %w", err)
	}
	return targets, nil
}

func (s *Scorer) clusterContext(ctx context.Context, clusterID string) (string, error) {
	cluster, err := s.db.Clusters().Get(ctx, clusterID)
	if err != nil {
		// Opportunities mapped from aligned problems carry the aligned
		// problem id in cluster_id.
		problem, apErr := s.db.AlignedProblems().Get(ctx, clusterID)
		if apErr != nil {
			return "", err
		}
		return fmt.Sprintf("Aligned problem across %v: %s\nEvidence: %v",
			problem.Sources, problem.CoreProblem, problem.Evidence), nil
	}
	return fmt.Sprintf("Cluster %q (%d events): %s\nCommon pain: %s\nCommon context: %s",
		cluster.Name, cluster.ClusterSize, cluster.CentroidSummary,
		cluster.CommonPain, cluster.CommonContext), nil
}
