package render

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"painfinder/internal/core"
	"painfinder/internal/shortlist"
)

func testReport() *shortlist.Report {
	return &shortlist.Report{
		GeneratedAt: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
		Filter:      shortlist.Filter{MinViabilityScore: 6.0, MinClusterSize: 3},
		TotalCount:  1,
		Candidates: []shortlist.Candidate{{
			Opportunity: core.Opportunity{Name: "Invoice fixer", TotalScore: 7.5},
			ClusterSize: 5,
			FinalScore:  14.2,
			Validation: core.CrossSourceValidation{
				HasCrossSource: true,
				Level:          core.ValidationMultiPlatform,
				Badge:          "CROSS-PLATFORM",
				Evidence:       "observed on 2 platforms",
			},
		}},
	}
}

func TestWriteShortlistEmitsBothFiles(t *testing.T) {
	dir := t.TempDir()
	mdPath, jsonPath, err := WriteShortlist(testReport(), dir)
	if err != nil {
		t.Fatalf("WriteShortlist returned error: %v", err)
	}

	md, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatalf("failed to read markdown: %v", err)
	}
	if !strings.Contains(string(md), "Invoice fixer") || !strings.Contains(string(md), "CROSS-PLATFORM") {
		t.Error("markdown report missing candidate content")
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("failed to read json: %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json report is not valid JSON: %v", err)
	}
	for _, key := range []string{"generated_at", "filter", "total_count", "candidates"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("json report missing %q key", key)
		}
	}

	if filepath.Dir(mdPath) != dir || filepath.Dir(jsonPath) != dir {
		t.Error("reports must land in the requested directory")
	}
}

func TestMarkdownShortlistEmptyPool(t *testing.T) {
	report := &shortlist.Report{GeneratedAt: time.Now()}
	md := MarkdownShortlist(report)
	if !strings.Contains(md, "No opportunities") {
		t.Error("empty shortlist should say so")
	}
}
