// Package viability scores opportunities with the LLM and applies the
// quantitative filtering rules that gate downstream visibility. Scores
// are always persisted before any filtering runs.
package viability

import (
	"sort"
	"strings"
)

// FrequencyScore maps a free-text frequency phrase onto the numeric
// scale. Phrases are matched case-insensitively by substring so
// "happens daily" resolves the same as "daily"; anything unrecognized
// falls back to the "unknown" entry.
func FrequencyScore(scale map[string]float64, phrase string) float64 {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if score, ok := scale[phrase]; ok {
		return score
	}
	if phrase != "" {
		var matches []string
		for key := range scale {
			if key != "unknown" && strings.Contains(phrase, key) {
				matches = append(matches, key)
			}
		}
		// Longest key wins when several match, then alphabetical, so a
		// phrase like "daily or weekly" scores the same every run.
		sort.Slice(matches, func(i, j int) bool {
			if len(matches[i]) != len(matches[j]) {
				return len(matches[i]) > len(matches[j])
			}
			return matches[i] < matches[j]
		})
		if len(matches) > 0 {
			return scale[matches[0]]
		}
	}
	return scale["unknown"]
}
