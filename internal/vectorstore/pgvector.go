package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// PgVectorAdapter implements VectorStore on PostgreSQL with the pgvector
// extension. Embeddings live in the embedding_vector column of
// pain_events, so lifecycle and cluster metadata are always consistent
// with the relational rows.
type PgVectorAdapter struct {
	db *sql.DB
}

func NewPgVectorAdapter(db *sql.DB) *PgVectorAdapter {
	return &PgVectorAdapter{db: db}
}

func (p *PgVectorAdapter) Upsert(ctx context.Context, painEventID string, embedding []float64) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE pain_events
		SET embedding_vector = $1::vector
		WHERE id = $2
	`, formatVector(embedding), painEventID)
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("pain event %s not found", painEventID)
	}
	return nil
}

func (p *PgVectorAdapter) QuerySimilar(ctx context.Context, query SearchQuery) ([]SearchResult, error) {
	if query.TopK == 0 {
		query.TopK = 10
	}
	if query.SimilarityThreshold == 0 {
		query.SimilarityThreshold = 0.7
	}

	args := []interface{}{formatVector(query.Embedding), query.SimilarityThreshold, query.TopK}
	var clauses []string
	if query.Filter.LifecycleStage != nil {
		args = append(args, *query.Filter.LifecycleStage)
		clauses = append(clauses, fmt.Sprintf("AND lifecycle_stage = $%d", len(args)))
	}
	if query.Filter.ClusterID != nil {
		args = append(args, *query.Filter.ClusterID)
		clauses = append(clauses, fmt.Sprintf("AND cluster_id = $%d", len(args)))
	}
	if len(query.ExcludeIDs) > 0 {
		args = append(args, pq.Array(query.ExcludeIDs))
		clauses = append(clauses, fmt.Sprintf("AND id != ALL($%d::uuid[])", len(args)))
	}

	sqlQuery := fmt.Sprintf(`
		SELECT
			id,
			1 - (embedding_vector <=> $1::vector) as similarity,
			embedding_vector <=> $1::vector as distance
		FROM pain_events
		WHERE embedding_vector IS NOT NULL
		  AND 1 - (embedding_vector <=> $1::vector) >= $2
		  %s
		ORDER BY embedding_vector <=> $1::vector
		LIMIT $3
	`, strings.Join(clauses, "\n\t\t  "))

	rows, err := p.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var result SearchResult
		if err := rows.Scan(&result.PainEventID, &result.Similarity, &result.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return results, nil
}

func (p *PgVectorAdapter) Delete(ctx context.Context, painEventID string) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE pain_events
		SET embedding_vector = NULL
		WHERE id = $1
	`, painEventID)
	if err != nil {
		return fmt.Errorf("failed to delete embedding: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("pain event %s not found", painEventID)
	}
	return nil
}

// CreateIndex builds an HNSW index for approximate nearest neighbor
// search. m=16, ef_construction=64.
func (p *PgVectorAdapter) CreateIndex(ctx context.Context) error {
	var exists bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_indexes
			WHERE tablename = 'pain_events'
			AND indexname = 'idx_pain_events_embedding_hnsw'
		)
	`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	if exists {
		return nil
	}

	_, err = p.db.ExecContext(ctx, `
		CREATE INDEX idx_pain_events_embedding_hnsw
		ON pain_events
		USING hnsw (embedding_vector vector_cosine_ops)
		WITH (m = 16, ef_construction = 64)
	`)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

func (p *PgVectorAdapter) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM pain_events
		WHERE embedding_vector IS NOT NULL
	`).Scan(&stats.TotalEmbeddings)
	if err != nil {
		return nil, fmt.Errorf("failed to count embeddings: %w", err)
	}
	stats.EmbeddingDimensions = 768

	var indexDef string
	err = p.db.QueryRowContext(ctx, `
		SELECT indexdef
		FROM pg_indexes
		WHERE tablename = 'pain_events'
		AND indexname LIKE '%embedding%'
		LIMIT 1
	`).Scan(&indexDef)
	switch {
	case err == sql.ErrNoRows:
		stats.IndexType = "none"
	case err != nil:
		return nil, fmt.Errorf("failed to get index info: %w", err)
	case strings.Contains(indexDef, "hnsw"):
		stats.IndexType = "hnsw"
	case strings.Contains(indexDef, "ivfflat"):
		stats.IndexType = "ivfflat"
	default:
		stats.IndexType = "unknown"
	}
	return &stats, nil
}

// formatVector converts []float64 to the pgvector text format,
// e.g. [0.1,0.2,0.3].
func formatVector(embedding []float64) string {
	if len(embedding) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, val := range embedding {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%f", val)
	}
	b.WriteByte(']')
	return b.String()
}
