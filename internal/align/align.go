// Package align merges clusters observed on different platforms when
// they describe the same underlying problem.
package align

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

// Aligner evaluates unaligned clusters spanning more than one source.
type Aligner struct {
	db  persistence.Database
	llm llm.Service
	cfg config.Alignment
}

func NewAligner(db persistence.Database, service llm.Service, cfg config.Alignment) *Aligner {
	return &Aligner{db: db, llm: service, cfg: cfg}
}

// Run judges candidate cluster pairs. A positive judgment creates one
// aligned problem and marks every contributor 'aligned', which excludes
// them from future candidate sets; a pass over already-aligned data is
// therefore a no-op.
func (a *Aligner) Run(ctx context.Context) (*core.StageSummary, error) {
	log := logger.Get()
	summary := &core.StageSummary{Stage: "align", StartedAt: time.Now()}

	candidates, err := a.db.Clusters().ListAlignmentCandidates(ctx, a.cfg.MinClusterSize, a.cfg.MaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("failed to list alignment candidates: %w", err)
	}

	groups := crossSourceGroups(candidates)
	for _, group := range groups {
		summary.Processed++

		judgment, err := a.llm.JudgeAlignment(ctx, group)
		if err != nil {
			log.Warn("Alignment judgment failed", "error", err)
			summary.RecordError(err)
			continue
		}
		if !judgment.SameProblem {
			summary.Skipped++
			continue
		}

		if err := a.recordAlignment(ctx, group, judgment); err != nil {
			summary.RecordError(err)
			continue
		}
		summary.Succeeded++
	}

	summary.Duration = time.Since(summary.StartedAt).String()
	log.Info("Alignment pass complete",
		"groups", summary.Processed,
		"aligned", summary.Succeeded,
		"distinct", summary.Skipped,
		"failed", summary.Failed)
	return summary, nil
}

// recordAlignment persists the aligned problem and flips every
// contributor to 'aligned' in one transaction, so a mark failure never
// strands an aligned problem with unmarked members.
func (a *Aligner) recordAlignment(ctx context.Context, group []core.Cluster, judgment *llm.AlignmentJudgment) error {
	problem := &core.AlignedProblem{
		ID:                   uuid.New().String(),
		CoreProblem:          judgment.CoreProblem,
		WhyTheyLookDifferent: judgment.WhyTheyLookDifferent,
		Evidence:             judgment.Evidence,
		CreatedAt:            time.Now().UTC(),
	}
	seen := make(map[string]bool)
	for _, cluster := range group {
		problem.ClusterIDs = append(problem.ClusterIDs, cluster.ID)
		if !seen[cluster.SourceType] {
			seen[cluster.SourceType] = true
			problem.Sources = append(problem.Sources, cluster.SourceType)
		}
	}

	tx, err := a.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := tx.AlignedProblems().Create(ctx, problem); err != nil {
		return fmt.Errorf("failed to create aligned problem: %w", err)
	}
	for _, cluster := range group {
		if err := tx.Clusters().MarkAligned(ctx, cluster.ID, problem.ID); err != nil {
			return fmt.Errorf("failed to mark cluster %s aligned: %w", cluster.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit aligned problem %s: %w", problem.ID, err)
	}
	return nil
}

// crossSourceGroups pairs each cluster with candidates from other
// sources. Only groups spanning more than one source type are worth a
// judgment call; same-source duplicates are the clusterer's territory.
func crossSourceGroups(clusters []core.Cluster) [][]core.Cluster {
	var groups [][]core.Cluster
	used := make(map[string]bool)

	for i := range clusters {
		if used[clusters[i].ID] {
			continue
		}
		for j := i + 1; j < len(clusters); j++ {
			if used[clusters[j].ID] || clusters[j].SourceType == clusters[i].SourceType {
				continue
			}
			groups = append(groups, []core.Cluster{clusters[i], clusters[j]})
			used[clusters[i].ID] = true
			used[clusters[j].ID] = true
			break
		}
	}
	return groups
}
