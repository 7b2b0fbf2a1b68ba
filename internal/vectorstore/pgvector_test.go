package vectorstore

import "testing"

func TestFormatVector(t *testing.T) {
	tests := []struct {
		name      string
		embedding []float64
		expected  string
	}{
		{"empty", nil, "[]"},
		{"single", []float64{0.5}, "[0.500000]"},
		{"multiple", []float64{0.1, 0.2, 0.3}, "[0.100000,0.200000,0.300000]"},
		{"negative", []float64{-1.5, 2}, "[-1.500000,2.000000]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatVector(tt.embedding); got != tt.expected {
				t.Errorf("formatVector(%v) = %q, want %q", tt.embedding, got, tt.expected)
			}
		})
	}
}

func TestDefaultSearchQuery(t *testing.T) {
	embedding := []float64{0.1, 0.2}
	q := DefaultSearchQuery(embedding)

	if q.TopK != 10 {
		t.Errorf("expected TopK 10, got %d", q.TopK)
	}
	if q.SimilarityThreshold != 0.7 {
		t.Errorf("expected threshold 0.7, got %f", q.SimilarityThreshold)
	}
	if len(q.Embedding) != 2 {
		t.Errorf("expected embedding to be kept, got %v", q.Embedding)
	}
}
