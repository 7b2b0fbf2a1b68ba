// Package opportunity maps clusters and aligned problems to candidate
// product opportunities.
package opportunity

import (
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf8"

	"painfinder/internal/config"
	"painfinder/internal/core"
)

// CompactSummary is the token-budget-safe cluster representation sent
// to the mapping LLM call. A full pain-event list can blow past the
// model's input limit, so only the highest-pain examples survive, with
// free-text fields truncated; aggregate statistics are always carried
// untouched.
type CompactSummary struct {
	ClusterID             string         `json:"cluster_id"`
	ClusterName           string         `json:"cluster_name"`
	CentroidSummary       string         `json:"centroid_summary"`
	ClusterSize           int            `json:"cluster_size"`
	WorkflowSimilarity    float64        `json:"workflow_similarity"`
	TotalPainScore        float64        `json:"total_pain_score"`
	AvgFrequencyScore     float64        `json:"avg_frequency_score"`
	SubredditDistribution map[string]int `json:"subreddit_distribution"`
	MentionedTools        map[string]int `json:"mentioned_tools"`
	EmotionalSignals      map[string]int `json:"emotional_signals"`
	TopEvents             []CompactEvent `json:"top_events"`
}

// CompactEvent is one truncated pain event inside a compact summary.
type CompactEvent struct {
	Problem           string  `json:"problem"`
	Context           string  `json:"context"`
	CurrentWorkaround string  `json:"current_workaround"`
	PostPainScore     float64 `json:"post_pain_score"`
	FrequencyScore    float64 `json:"frequency_score"`
}

// Summarizer builds compact summaries under a hard size bound.
type Summarizer struct {
	cfg config.Mapping
}

func NewSummarizer(cfg config.Mapping) *Summarizer {
	return &Summarizer{cfg: cfg}
}

// Summarize builds the compact summary for one cluster. Aggregates
// cover every member event; the event list keeps at most
// max_events_in_prompt entries chosen by highest post_pain_score.
func (s *Summarizer) Summarize(cluster *core.Cluster, events []core.PainEvent) *CompactSummary {
	summary := &CompactSummary{
		ClusterID:             cluster.ID,
		ClusterName:           cluster.Name,
		CentroidSummary:       cluster.CentroidSummary,
		ClusterSize:           cluster.ClusterSize,
		WorkflowSimilarity:    cluster.WorkflowSimilarity,
		SubredditDistribution: make(map[string]int),
		MentionedTools:        make(map[string]int),
		EmotionalSignals:      make(map[string]int),
	}

	var frequencyTotal float64
	for _, ev := range events {
		summary.TotalPainScore += ev.PostPainScore
		frequencyTotal += ev.FrequencyScore
		if ev.Community != "" {
			summary.SubredditDistribution[ev.Community]++
		}
		for _, tool := range ev.MentionedTools {
			summary.MentionedTools[tool]++
		}
		if ev.EmotionalSignal != "" {
			summary.EmotionalSignals[ev.EmotionalSignal]++
		}
	}
	if len(events) > 0 {
		summary.AvgFrequencyScore = frequencyTotal / float64(len(events))
	}

	ranked := make([]core.PainEvent, len(events))
	copy(ranked, events)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].PostPainScore > ranked[j].PostPainScore
	})
	if len(ranked) > s.cfg.MaxEventsInPrompt {
		ranked = ranked[:s.cfg.MaxEventsInPrompt]
	}

	for _, ev := range ranked {
		summary.TopEvents = append(summary.TopEvents, CompactEvent{
			Problem:           truncate(ev.Problem, s.cfg.MaxFieldChars),
			Context:           truncate(ev.Context, s.cfg.MaxFieldChars),
			CurrentWorkaround: truncate(ev.CurrentWorkaround, s.cfg.MaxFieldChars),
			PostPainScore:     ev.PostPainScore,
			FrequencyScore:    ev.FrequencyScore,
		})
	}
	return summary
}

// Serialize marshals a compact summary, shedding events if the JSON
// would exceed the size bound. The bound holds no matter how large the
// source cluster is.
func (s *Summarizer) Serialize(summary *CompactSummary) (string, error) {
	for {
		data, err := json.Marshal(summary)
		if err != nil {
			return "", fmt.Errorf("failed to marshal compact summary: %w", err)
		}
		if len(data) < s.cfg.MaxSummaryChars {
			return string(data), nil
		}
		if len(summary.TopEvents) == 0 {
			return "", fmt.Errorf("compact summary for cluster %s exceeds %d chars even with no events",
				summary.ClusterID, s.cfg.MaxSummaryChars)
		}
		summary.TopEvents = summary.TopEvents[:len(summary.TopEvents)/2]
	}
}

// truncate cuts text to at most max bytes, backing off to the nearest
// rune boundary so multibyte text never ends mid-rune.
func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
