// Package shortlist ranks scored opportunities into a small decision
// report.
package shortlist

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"painfinder/internal/config"
	"painfinder/internal/core"
	"painfinder/internal/llm"
	"painfinder/internal/logger"
	"painfinder/internal/persistence"
)

// Candidate is one shortlisted opportunity with its ranking inputs and
// narrative fields.
type Candidate struct {
	Opportunity core.Opportunity           `json:"opportunity"`
	ClusterSize int                        `json:"cluster_size"`
	FinalScore  float64                    `json:"final_score"`
	Validation  core.CrossSourceValidation `json:"validation"`
	Narrative   *llm.CandidateNarrative    `json:"narrative,omitempty"`
}

// Report is the JSON shape of a generated shortlist.
type Report struct {
	GeneratedAt time.Time   `json:"generated_at"`
	Filter      Filter      `json:"filter"`
	TotalCount  int         `json:"total_count"`
	Candidates  []Candidate `json:"candidates"`
}

// Filter echoes the thresholds a report was generated under.
type Filter struct {
	MinViabilityScore float64 `json:"min_viability_score"`
	MinClusterSize    int     `json:"min_cluster_size"`
	MinTrustLevel     float64 `json:"min_trust_level"`
}

// Generator builds shortlists.
type Generator struct {
	db  persistence.Database
	llm llm.Service
	cfg config.Shortlist
}

func NewGenerator(db persistence.Database, service llm.Service, cfg config.Shortlist) *Generator {
	return &Generator{db: db, llm: service, cfg: cfg}
}

// Generate selects, ranks, and narrates the shortlist. A narrative call
// failing for one candidate leaves that candidate without narrative
// fields; it never aborts the others.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	log := logger.Get()

	pool, err := g.candidatePool(ctx)
	if err != nil {
		return nil, err
	}

	SortCandidates(pool)
	if len(pool) > g.cfg.MaxCandidates {
		pool = pool[:g.cfg.MaxCandidates]
	}
	if len(pool) < g.cfg.MinCandidates {
		log.Warn("Fewer candidates than the configured minimum; emitting what passed",
			"available", len(pool), "min", g.cfg.MinCandidates)
	}

	for i := range pool {
		narrative, err := g.llm.NarrateCandidate(ctx, &pool[i].Opportunity)
		if err != nil {
			log.Warn("Narrative generation failed for candidate",
				"opportunity", pool[i].Opportunity.ID, "error", err)
			continue
		}
		pool[i].Narrative = narrative
	}

	candidates := make([]Candidate, len(pool))
	for i, c := range pool {
		candidates[i] = *c
	}
	return &Report{
		GeneratedAt: time.Now().UTC(),
		Filter: Filter{
			MinViabilityScore: g.cfg.MinViabilityScore,
			MinClusterSize:    g.cfg.MinClusterSize,
			MinTrustLevel:     g.cfg.MinTrustLevel,
		},
		TotalCount: len(candidates),
		Candidates: candidates,
	}, nil
}

func (g *Generator) candidatePool(ctx context.Context) ([]*Candidate, error) {
	scored, err := g.db.Opportunities().ListScored(ctx, g.cfg.MinViabilityScore, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list scored opportunities: %w", err)
	}

	ignored := make(map[string]bool, len(g.cfg.IgnoredClusters))
	for _, id := range g.cfg.IgnoredClusters {
		ignored[id] = true
	}

	var pool []*Candidate
	for i := range scored {
		opp := scored[i]
		if ignored[opp.ClusterID] || opp.TrustLevel < g.cfg.MinTrustLevel {
			continue
		}

		size, validation, err := g.lineage(ctx, opp.ClusterID)
		if err != nil {
			return nil, err
		}
		if size < g.cfg.MinClusterSize {
			continue
		}

		pool = append(pool, &Candidate{
			Opportunity: opp,
			ClusterSize: size,
			Validation:  validation,
			FinalScore:  g.finalScore(&opp, size, validation.BoostScore),
		})
	}
	return pool, nil
}

// finalScore is the weighted sum that ranks candidates within one
// validation level.
func (g *Generator) finalScore(opp *core.Opportunity, clusterSize int, boost float64) float64 {
	w := g.cfg.Weights
	return opp.TotalScore*w.Viability +
		math.Log(float64(clusterSize))*w.ClusterSize +
		opp.TrustLevel*w.Trust +
		boost*w.CrossSource
}

// lineage resolves an opportunity's cluster or aligned problem to a
// member count plus the derived cross-source validation.
func (g *Generator) lineage(ctx context.Context, clusterID string) (int, core.CrossSourceValidation, error) {
	cluster, err := g.db.Clusters().Get(ctx, clusterID)
	if err == nil {
		events, err := g.db.PainEvents().ListByCluster(ctx, clusterID)
		if err != nil {
			return 0, core.CrossSourceValidation{}, fmt.Errorf("failed to load cluster %s events: %w", clusterID, err)
		}
		return cluster.ClusterSize, g.validateCluster(events), nil
	}

	problem, apErr := g.db.AlignedProblems().Get(ctx, clusterID)
	if apErr != nil {
		return 0, core.CrossSourceValidation{}, fmt.Errorf("lineage of %s not found: %w", clusterID, err)
	}
	size := 0
	for _, memberID := range problem.ClusterIDs {
		member, err := g.db.Clusters().Get(ctx, memberID)
		if err != nil {
			return 0, core.CrossSourceValidation{}, fmt.Errorf("failed to load aligned cluster %s: %w", memberID, err)
		}
		size += member.ClusterSize
	}
	// An aligned problem exists precisely because independent sources
	// agreed, so it always validates at the platform level.
	return size, g.validation(core.ValidationMultiPlatform,
		fmt.Sprintf("aligned across %d sources: %v", len(problem.Sources), problem.Sources)), nil
}

// validateCluster derives the validation level from member events:
// multiple platforms beats multiple communities beats a mixed
// post/comment signal inside one community.
func (g *Generator) validateCluster(events []core.PainEvent) core.CrossSourceValidation {
	platforms := make(map[string]bool)
	communities := make(map[string]bool)
	sourceTypes := make(map[core.SourceType]bool)
	for _, ev := range events {
		if ev.Platform != "" {
			platforms[ev.Platform] = true
		}
		if ev.Community != "" {
			communities[ev.Community] = true
		}
		sourceTypes[ev.SourceType] = true
	}

	switch {
	case len(platforms) > 1:
		return g.validation(core.ValidationMultiPlatform,
			fmt.Sprintf("observed on %d platforms", len(platforms)))
	case len(communities) > 1:
		return g.validation(core.ValidationMultiCommunity,
			fmt.Sprintf("observed in %d communities", len(communities)))
	case len(sourceTypes) > 1:
		return g.validation(core.ValidationWeak,
			"corroborated by both posts and comments in one community")
	default:
		return core.CrossSourceValidation{}
	}
}

func (g *Generator) validation(level core.ValidationLevel, evidence string) core.CrossSourceValidation {
	v := core.CrossSourceValidation{
		HasCrossSource:   true,
		Level:            level,
		Evidence:         evidence,
		ValidatedProblem: true,
	}
	switch level {
	case core.ValidationMultiPlatform:
		v.BoostScore = g.cfg.Boosts.Level1
		v.Badge = "CROSS-PLATFORM"
	case core.ValidationMultiCommunity:
		v.BoostScore = g.cfg.Boosts.Level2
		v.Badge = "MULTI-COMMUNITY"
	case core.ValidationWeak:
		v.BoostScore = g.cfg.Boosts.Level3
		v.Badge = "WEAK SIGNAL"
	}
	return v
}

// SortCandidates orders the pool for the report: any cross-source-
// validated candidate outranks any non-validated one regardless of raw
// score; within validated candidates lower level wins; ties fall back
// to final score descending.
func SortCandidates(pool []*Candidate) {
	sort.SliceStable(pool, func(i, j int) bool {
		li, lj := pool[i].Validation.Level, pool[j].Validation.Level
		if (li != core.ValidationNone) != (lj != core.ValidationNone) {
			return li != core.ValidationNone
		}
		if li != lj {
			return li < lj
		}
		return pool[i].FinalScore > pool[j].FinalScore
	})
}
