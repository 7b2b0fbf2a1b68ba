// Package render writes shortlist reports to disk as Markdown and JSON.
package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"painfinder/internal/shortlist"
)

// WriteShortlist renders one report as a Markdown file for humans and a
// JSON file for tooling. Returns both paths.
func WriteShortlist(report *shortlist.Report, outputDir string) (string, string, error) {
	if outputDir == "" {
		outputDir = "reports"
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	dateStr := report.GeneratedAt.Format("2006-01-02")
	mdPath := filepath.Join(outputDir, fmt.Sprintf("shortlist_%s.md", dateStr))
	jsonPath := filepath.Join(outputDir, fmt.Sprintf("shortlist_%s.json", dateStr))

	if err := os.WriteFile(mdPath, []byte(MarkdownShortlist(report)), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write markdown report %s: %w", mdPath, err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write json report %s: %w", jsonPath, err)
	}

	return mdPath, jsonPath, nil
}

// MarkdownShortlist renders the human-readable decision report.
func MarkdownShortlist(report *shortlist.Report) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# Decision Shortlist - %s\n\n", report.GeneratedAt.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("Generated at %s. %d candidate(s) passed filtering (min viability %.1f, min cluster size %d).\n\n",
		report.GeneratedAt.Format(time.RFC3339), report.TotalCount,
		report.Filter.MinViabilityScore, report.Filter.MinClusterSize))

	if len(report.Candidates) == 0 {
		b.WriteString("No opportunities cleared the thresholds.\n")
		return b.String()
	}

	for i, c := range report.Candidates {
		b.WriteString(fmt.Sprintf("## %d. %s", i+1, c.Opportunity.Name))
		if c.Validation.Badge != "" {
			b.WriteString(fmt.Sprintf(" [%s]", c.Validation.Badge))
		}
		b.WriteString("\n\n")

		b.WriteString(fmt.Sprintf("- Final score: %.2f (viability %.1f, cluster size %d)\n",
			c.FinalScore, c.Opportunity.TotalScore, c.ClusterSize))
		if c.Validation.HasCrossSource {
			b.WriteString(fmt.Sprintf("- Cross-source validation: level %d, %s\n",
				c.Validation.Level, c.Validation.Evidence))
		}
		if c.Opportunity.Recommendation != "" {
			b.WriteString(fmt.Sprintf("- Recommendation: %s\n", c.Opportunity.Recommendation))
		}
		b.WriteString("\n")

		if c.Narrative != nil {
			b.WriteString(fmt.Sprintf("**Problem:** %s\n\n", c.Narrative.Problem))
			b.WriteString(fmt.Sprintf("**MVP:** %s\n\n", c.Narrative.MVP))
			b.WriteString(fmt.Sprintf("**Why now:** %s\n\n", c.Narrative.WhyNow))
		} else if c.Opportunity.Description != "" {
			b.WriteString(c.Opportunity.Description + "\n\n")
		}
		b.WriteString("---\n\n")
	}
	return b.String()
}
