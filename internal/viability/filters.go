package viability

import (
	"context"
	"fmt"

	"painfinder/internal/config"
	"painfinder/internal/persistence"
)

// ClusterMetrics are the quantitative facts the post-scoring filter
// judges, joined from a cluster's member pain events.
type ClusterMetrics struct {
	ClusterSize         int
	UniqueAuthors       int
	CrossSubredditCount int
	AvgFrequencyScore   float64
}

// ShouldSkipSolutionDesign applies the declarative filtering rules.
// It never touches stored scores; a true result only hides the
// opportunity from downstream selection.
func ShouldSkipSolutionDesign(cfg config.Viability, m ClusterMetrics) (bool, string) {
	if m.ClusterSize < cfg.MinClusterSize {
		return true, fmt.Sprintf("cluster size %d below minimum %d", m.ClusterSize, cfg.MinClusterSize)
	}
	if m.UniqueAuthors < cfg.MinUniqueAuthors {
		return true, fmt.Sprintf("unique authors %d below minimum %d", m.UniqueAuthors, cfg.MinUniqueAuthors)
	}
	if m.CrossSubredditCount < cfg.MinCrossSubreddits {
		return true, fmt.Sprintf("cross-subreddit count %d below minimum %d", m.CrossSubredditCount, cfg.MinCrossSubreddits)
	}
	if m.AvgFrequencyScore < cfg.MinAvgFrequencyScore {
		return true, fmt.Sprintf("avg frequency score %.2f below minimum %.2f", m.AvgFrequencyScore, cfg.MinAvgFrequencyScore)
	}
	return false, ""
}

// ComputeClusterMetrics derives the filter inputs from a cluster's
// member pain events.
func ComputeClusterMetrics(ctx context.Context, events persistence.PainEventRepository, cfg config.Viability, clusterID string) (ClusterMetrics, error) {
	members, err := events.ListByCluster(ctx, clusterID)
	if err != nil {
		return ClusterMetrics{}, fmt.Errorf("failed to load cluster %s members: %w", clusterID, err)
	}

	authors := make(map[string]bool)
	communities := make(map[string]bool)
	var frequencyTotal float64
	for _, ev := range members {
		if ev.Author != "" {
			authors[ev.Author] = true
		}
		if ev.Community != "" {
			communities[ev.Community] = true
		}
		frequencyTotal += FrequencyScore(cfg.FrequencyScale, ev.FrequencyPhrase)
	}

	metrics := ClusterMetrics{
		ClusterSize:         len(members),
		UniqueAuthors:       len(authors),
		CrossSubredditCount: len(communities),
	}
	if len(members) > 0 {
		metrics.AvgFrequencyScore = frequencyTotal / float64(len(members))
	}
	return metrics, nil
}
