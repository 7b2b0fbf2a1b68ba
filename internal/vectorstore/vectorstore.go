package vectorstore

import "context"

// VectorStore provides similarity search over pain-event embeddings.
// Backed by pgvector with cosine distance.
type VectorStore interface {
	// Upsert stores or replaces the embedding for a pain event.
	// Returns an error if the pain event does not exist.
	Upsert(ctx context.Context, painEventID string, embedding []float64) error

	// QuerySimilar finds pain events similar to the query embedding,
	// ordered by similarity (highest first). Filter fields are exact-match.
	QuerySimilar(ctx context.Context, query SearchQuery) ([]SearchResult, error)

	// Delete removes an embedding (when a pain event is archived).
	Delete(ctx context.Context, painEventID string) error

	// CreateIndex builds the pgvector index. Call after bulk inserts.
	CreateIndex(ctx context.Context) error

	// GetStats returns counts and index information.
	GetStats(ctx context.Context) (*Stats, error)
}

// SearchQuery configures a similarity search.
type SearchQuery struct {
	// Embedding is the query vector (768-dim).
	Embedding []float64

	// TopK is the maximum number of results (default 10).
	TopK int

	// SimilarityThreshold is the minimum cosine similarity (default 0.7).
	SimilarityThreshold float64

	// ExcludeIDs filters out specific pain events.
	ExcludeIDs []string

	// Filter restricts results by exact metadata match; nil fields
	// are not applied.
	Filter Filter
}

// Filter restricts similarity results to matching pain events.
type Filter struct {
	LifecycleStage *string
	ClusterID      *string
}

// SearchResult is one similar pain event.
type SearchResult struct {
	PainEventID string

	// Similarity is the cosine similarity (1 - distance).
	Similarity float64

	// Distance is the raw cosine distance.
	Distance float64
}

// Stats describes the state of the vector index.
type Stats struct {
	TotalEmbeddings     int64
	EmbeddingDimensions int
	IndexType           string
}

// DefaultSearchQuery returns sensible defaults for a query vector.
func DefaultSearchQuery(embedding []float64) SearchQuery {
	return SearchQuery{
		Embedding:           embedding,
		TopK:                10,
		SimilarityThreshold: 0.7,
	}
}
