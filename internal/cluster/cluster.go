// Package cluster groups embedded pain events into clusters by vector
// similarity and manages the event lifecycle around them.
package cluster

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

// Clusterer partitions unclustered events into new clusters. It never
// merges existing clusters; cross-source merging belongs to the aligner.
type Clusterer struct {
	db  persistence.Database
	llm llm.Service
	cfg config.Clustering
}

func NewClusterer(db persistence.Database, service llm.Service, cfg config.Clustering) *Clusterer {
	return &Clusterer{db: db, llm: service, cfg: cfg}
}

// Run clusters up to limit unclustered embedded events. Groups below
// the minimum member count leave their events orphaned so later passes
// can pick them up again. Events without embeddings are skipped with a
// warning; storage failures abort the pass.
func (c *Clusterer) Run(ctx context.Context, limit int) (*core.StageSummary, error) {
	log := logger.Get()
	summary := &core.StageSummary{Stage: "cluster", StartedAt: time.Now()}

	events, err := c.db.PainEvents().ListUnclustered(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unclustered events: %w", err)
	}

	var embedded []core.PainEvent
	for _, ev := range events {
		if len(ev.Embedding) == 0 {
			log.Warn("Skipping event without embedding", "id", ev.ID)
			summary.Skipped++
			continue
		}
		embedded = append(embedded, ev)
	}
	summary.Processed = len(embedded)

	groups := groupByThreshold(embedded, c.cfg.SimilarityThreshold)

	for _, group := range groups {
		if len(group) < c.cfg.MinClusterSize {
			for _, idx := range group {
				if err := c.db.PainEvents().MarkOrphan(ctx, embedded[idx].ID); err != nil {
					return nil, fmt.Errorf("failed to orphan event %s: %w", embedded[idx].ID, err)
				}
			}
			continue
		}

		members := make([]core.PainEvent, len(group))
		for i, idx := range group {
			members[i] = embedded[idx]
		}
		if err := c.emitCluster(ctx, members); err != nil {
			return nil, err
		}
		summary.Succeeded += len(members)
	}

	summary.Duration = time.Since(summary.StartedAt).String()
	log.Info("Clustering pass complete",
		"events", summary.Processed,
		"clustered", summary.Succeeded,
		"orphaned", summary.Processed-summary.Succeeded,
		"skipped", summary.Skipped)
	return summary, nil
}

// emitCluster persists one new cluster and moves its members to active.
// Cluster row and member assignments commit together; a failed
// assignment rolls the cluster back instead of leaving it half-filled.
func (c *Clusterer) emitCluster(ctx context.Context, members []core.PainEvent) error {
	log := logger.Get()

	centroid := meanEmbedding(members)
	ids := make([]string, len(members))
	for i, ev := range members {
		ids[i] = ev.ID
	}

	cluster := &core.Cluster{
		ID:                 uuid.New().String(),
		SourceType:         dominantPlatform(members),
		PainEventIDs:       ids,
		ClusterSize:        len(ids),
		WorkflowSimilarity: cohesion(members, centroid),
		Centroid:           centroid,
		AlignmentStatus:    core.AlignmentNone,
		CreatedAt:          time.Now().UTC(),
	}

	if summary, err := c.llm.SummarizeCluster(ctx, members); err != nil {
		// Derived text failing never blocks cluster creation.
		log.Warn("Cluster summarization failed, using fallback name", "error", err)
		cluster.Name = fmt.Sprintf("Unsummarized cluster of %d events", len(members))
		cluster.CentroidSummary = members[0].Problem
	} else {
		cluster.Name = summary.Name
		cluster.Description = summary.Description
		cluster.CentroidSummary = summary.CentroidSummary
		cluster.CommonPain = summary.CommonPain
		cluster.CommonContext = summary.CommonContext
	}

	tx, err := c.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := tx.Clusters().Create(ctx, cluster); err != nil {
		return fmt.Errorf("failed to create cluster: %w", err)
	}
	for _, id := range ids {
		if err := tx.PainEvents().AssignCluster(ctx, id, cluster.ID); err != nil {
			return fmt.Errorf("failed to assign event %s to cluster %s: %w", id, cluster.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cluster %s: %w", cluster.ID, err)
	}
	log.Info("Created cluster", "id", cluster.ID, "name", cluster.Name, "size", cluster.ClusterSize)
	return nil
}

// EnrichJTBD lazily fills in the jobs-to-be-done block for one cluster.
// Already-enriched clusters are left untouched.
func (c *Clusterer) EnrichJTBD(ctx context.Context, clusterID string) error {
	cluster, err := c.db.Clusters().Get(ctx, clusterID)
	if err != nil {
		return err
	}
	if cluster.JTBD != nil {
		return nil
	}

	members, err := c.db.PainEvents().ListByCluster(ctx, clusterID)
	if err != nil {
		return fmt.Errorf("failed to load cluster members: %w", err)
	}
	if len(members) > 5 {
		members = members[:5]
	}

	jtbd, err := c.llm.EnrichJTBD(ctx, cluster, members)
	if err != nil {
		return fmt.Errorf("jtbd enrichment failed for cluster %s: %w", clusterID, err)
	}
	return c.db.Clusters().UpdateJTBD(ctx, clusterID, jtbd)
}

// groupByThreshold greedily assigns each event to the most similar
// existing group whose running centroid clears the threshold, otherwise
// seeds a new group. Deterministic for a given input order.
func groupByThreshold(events []core.PainEvent, threshold float64) [][]int {
	var groups [][]int
	var centroids [][]float64
	var counts []int

	for i := range events {
		best := -1
		bestSim := threshold
		for g := range groups {
			sim := llm.CosineSimilarity(events[i].Embedding, centroids[g])
			if sim >= bestSim {
				best = g
				bestSim = sim
			}
		}
		if best == -1 {
			groups = append(groups, []int{i})
			centroids = append(centroids, append([]float64(nil), events[i].Embedding...))
			counts = append(counts, 1)
			continue
		}
		groups[best] = append(groups[best], i)
		updateCentroid(centroids[best], events[i].Embedding, counts[best])
		counts[best]++
	}
	return groups
}

// updateCentroid folds one more vector into a running mean of n vectors.
func updateCentroid(centroid, vector []float64, n int) {
	for d := range centroid {
		centroid[d] = (centroid[d]*float64(n) + vector[d]) / float64(n+1)
	}
}

func meanEmbedding(events []core.PainEvent) []float64 {
	if len(events) == 0 {
		return nil
	}
	mean := make([]float64, len(events[0].Embedding))
	for _, ev := range events {
		for d := range mean {
			mean[d] += ev.Embedding[d]
		}
	}
	for d := range mean {
		mean[d] /= float64(len(events))
	}
	return mean
}

// cohesion is the average similarity of members to the centroid.
func cohesion(events []core.PainEvent, centroid []float64) float64 {
	if len(events) == 0 {
		return 0
	}
	var total float64
	for _, ev := range events {
		total += llm.CosineSimilarity(ev.Embedding, centroid)
	}
	return total / float64(len(events))
}

// dominantPlatform returns the platform contributing the most members.
func dominantPlatform(events []core.PainEvent) string {
	counts := make(map[string]int)
	for _, ev := range events {
		counts[ev.Platform]++
	}
	var dominant string
	var max int
	for platform, n := range counts {
		if n > max || (n == max && platform < dominant) {
			dominant = platform
			max = n
		}
	}
	return dominant
}
