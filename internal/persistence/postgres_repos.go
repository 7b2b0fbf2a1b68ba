package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"painfinder/internal/core"
)

// postgresPainEventRepo implements PainEventRepository.
type postgresPainEventRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresPainEventRepo) query() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const painEventColumns = `id, problem, context, current_workaround, emotional_signal,
	frequency_phrase, frequency_score, post_pain_score, source_type, source_id,
	parent_post_id, platform, community, author, mentioned_tools, cluster_id,
	lifecycle_stage, last_clustered_at, orphan_since, embedding, created_at`

func (r *postgresPainEventRepo) Create(ctx context.Context, event *core.PainEvent) error {
	embeddingJSON, err := json.Marshal(event.Embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	query := `
		INSERT INTO pain_events (` + painEventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`
	_, err = r.query().ExecContext(ctx, query,
		event.ID, event.Problem, event.Context, event.CurrentWorkaround,
		event.EmotionalSignal, event.FrequencyPhrase, event.FrequencyScore,
		event.PostPainScore, string(event.SourceType), event.SourceID,
		event.ParentPostID, event.Platform, event.Community, event.Author,
		pq.Array(event.MentionedTools), event.ClusterID,
		string(event.LifecycleStage), event.LastClusteredAt, event.OrphanSince,
		embeddingJSON, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert pain event: %w", err)
	}
	return nil
}

func (r *postgresPainEventRepo) Get(ctx context.Context, id string) (*core.PainEvent, error) {
	row := r.query().QueryRowContext(ctx,
		`SELECT `+painEventColumns+` FROM pain_events WHERE id = $1`, id)
	event, err := scanPainEvent(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("pain event %s not found", id)
	}
	return event, err
}

// limitArg turns a non-positive limit into NULL, which Postgres treats
// as LIMIT ALL.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func (r *postgresPainEventRepo) ListUnclustered(ctx context.Context, limit int) ([]core.PainEvent, error) {
	return r.list(ctx, `SELECT `+painEventColumns+` FROM pain_events
		WHERE cluster_id IS NULL AND lifecycle_stage != 'archived'
		  AND embedding IS NOT NULL AND embedding::text != 'null'
		ORDER BY created_at LIMIT $1`, limitArg(limit))
}

func (r *postgresPainEventRepo) ListUnembedded(ctx context.Context, limit int) ([]core.PainEvent, error) {
	return r.list(ctx, `SELECT `+painEventColumns+` FROM pain_events
		WHERE (embedding IS NULL OR embedding::text = 'null') AND lifecycle_stage != 'archived'
		ORDER BY created_at LIMIT $1`, limitArg(limit))
}

func (r *postgresPainEventRepo) ListByCluster(ctx context.Context, clusterID string) ([]core.PainEvent, error) {
	return r.list(ctx, `SELECT `+painEventColumns+` FROM pain_events
		WHERE cluster_id = $1 ORDER BY post_pain_score DESC`, clusterID)
}

func (r *postgresPainEventRepo) UpdateEmbedding(ctx context.Context, id string, embedding []float64) error {
	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}
	result, err := r.query().ExecContext(ctx,
		`UPDATE pain_events SET embedding = $2 WHERE id = $1`, id, embeddingJSON)
	if err != nil {
		return fmt.Errorf("failed to update embedding for %s: %w", id, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("pain event %s not found", id)
	}
	return nil
}

func (r *postgresPainEventRepo) AssignCluster(ctx context.Context, id string, clusterID string) error {
	_, err := r.query().ExecContext(ctx, `
		UPDATE pain_events
		SET cluster_id = $2, lifecycle_stage = 'active',
		    last_clustered_at = NOW(), orphan_since = NULL
		WHERE id = $1`, id, clusterID)
	if err != nil {
		return fmt.Errorf("failed to assign pain event %s to cluster %s: %w", id, clusterID, err)
	}
	return nil
}

func (r *postgresPainEventRepo) MarkOrphan(ctx context.Context, id string) error {
	_, err := r.query().ExecContext(ctx, `
		UPDATE pain_events
		SET cluster_id = NULL, lifecycle_stage = 'orphan',
		    orphan_since = COALESCE(orphan_since, NOW())
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark pain event %s orphan: %w", id, err)
	}
	return nil
}

func (r *postgresPainEventRepo) Archive(ctx context.Context, id string) error {
	_, err := r.query().ExecContext(ctx, `
		UPDATE pain_events
		SET cluster_id = NULL, lifecycle_stage = 'archived'
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to archive pain event %s: %w", id, err)
	}
	return nil
}

func (r *postgresPainEventRepo) list(ctx context.Context, query string, args ...interface{}) ([]core.PainEvent, error) {
	rows, err := r.query().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []core.PainEvent
	for rows.Next() {
		event, err := scanPainEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPainEvent(row rowScanner) (*core.PainEvent, error) {
	var event core.PainEvent
	var sourceType, stage string
	var embeddingJSON []byte

	err := row.Scan(&event.ID, &event.Problem, &event.Context,
		&event.CurrentWorkaround, &event.EmotionalSignal, &event.FrequencyPhrase,
		&event.FrequencyScore, &event.PostPainScore, &sourceType, &event.SourceID,
		&event.ParentPostID, &event.Platform, &event.Community, &event.Author,
		pq.Array(&event.MentionedTools), &event.ClusterID, &stage,
		&event.LastClusteredAt, &event.OrphanSince, &embeddingJSON, &event.CreatedAt)
	if err != nil {
		return nil, err
	}

	event.SourceType = core.SourceType(sourceType)
	event.LifecycleStage = core.LifecycleStage(stage)
	if len(embeddingJSON) > 0 {
		if err := json.Unmarshal(embeddingJSON, &event.Embedding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding: %w", err)
		}
	}
	return &event, nil
}

// postgresClusterRepo implements ClusterRepository.
type postgresClusterRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresClusterRepo) query() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const clusterColumns = `id, cluster_name, cluster_description, source_type,
	centroid_summary, common_pain, common_context, pain_event_ids, cluster_size,
	workflow_similarity, centroid, jtbd, semantic_category, product_impact,
	alignment_status, aligned_problem_id, created_at`

func (r *postgresClusterRepo) Create(ctx context.Context, cluster *core.Cluster) error {
	if cluster.ClusterSize != len(cluster.PainEventIDs) {
		return fmt.Errorf("cluster %s size %d does not match %d member ids",
			cluster.ID, cluster.ClusterSize, len(cluster.PainEventIDs))
	}

	centroidJSON, err := json.Marshal(cluster.Centroid)
	if err != nil {
		return fmt.Errorf("failed to marshal centroid: %w", err)
	}
	var jtbdJSON []byte
	if cluster.JTBD != nil {
		if jtbdJSON, err = json.Marshal(cluster.JTBD); err != nil {
			return fmt.Errorf("failed to marshal jtbd: %w", err)
		}
	}

	query := `
		INSERT INTO clusters (` + clusterColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = r.query().ExecContext(ctx, query,
		cluster.ID, cluster.Name, cluster.Description, cluster.SourceType,
		cluster.CentroidSummary, cluster.CommonPain, cluster.CommonContext,
		pq.Array(cluster.PainEventIDs), cluster.ClusterSize,
		cluster.WorkflowSimilarity, centroidJSON, jtbdJSON,
		cluster.SemanticCategory, cluster.ProductImpact,
		string(cluster.AlignmentStatus), cluster.AlignedProblemID, cluster.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert cluster: %w", err)
	}
	return nil
}

func (r *postgresClusterRepo) Get(ctx context.Context, id string) (*core.Cluster, error) {
	row := r.query().QueryRowContext(ctx,
		`SELECT `+clusterColumns+` FROM clusters WHERE id = $1`, id)
	cluster, err := scanCluster(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cluster %s not found", id)
	}
	return cluster, err
}

func (r *postgresClusterRepo) List(ctx context.Context, limit int) ([]core.Cluster, error) {
	return r.list(ctx, `SELECT `+clusterColumns+` FROM clusters
		ORDER BY cluster_size DESC LIMIT $1`, limitArg(limit))
}

func (r *postgresClusterRepo) ListUnmapped(ctx context.Context, minSize, limit int) ([]core.Cluster, error) {
	// Clusters inside an aligned problem are excluded: the aligned problem
	// is offered to the mapper instead.
	return r.list(ctx, `SELECT `+clusterColumns+` FROM clusters c
		WHERE c.cluster_size >= $1
		  AND c.aligned_problem_id IS NULL
		  AND NOT EXISTS (SELECT 1 FROM opportunities o WHERE o.cluster_id = c.id)
		ORDER BY c.cluster_size DESC LIMIT $2`, minSize, limitArg(limit))
}

func (r *postgresClusterRepo) ListAlignmentCandidates(ctx context.Context, minSize, limit int) ([]core.Cluster, error) {
	return r.list(ctx, `SELECT `+clusterColumns+` FROM clusters
		WHERE alignment_status = 'none' AND cluster_size >= $1
		ORDER BY cluster_size DESC LIMIT $2`, minSize, limitArg(limit))
}

func (r *postgresClusterRepo) UpdateJTBD(ctx context.Context, id string, jtbd *core.JTBD) error {
	jtbdJSON, err := json.Marshal(jtbd)
	if err != nil {
		return fmt.Errorf("failed to marshal jtbd: %w", err)
	}
	result, err := r.query().ExecContext(ctx,
		`UPDATE clusters SET jtbd = $2 WHERE id = $1`, id, jtbdJSON)
	if err != nil {
		return fmt.Errorf("failed to update jtbd for cluster %s: %w", id, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("cluster %s not found", id)
	}
	return nil
}

func (r *postgresClusterRepo) MarkAligned(ctx context.Context, id string, alignedProblemID string) error {
	_, err := r.query().ExecContext(ctx, `
		UPDATE clusters
		SET alignment_status = 'aligned', aligned_problem_id = $2
		WHERE id = $1`, id, alignedProblemID)
	if err != nil {
		return fmt.Errorf("failed to mark cluster %s aligned: %w", id, err)
	}
	return nil
}

func (r *postgresClusterRepo) list(ctx context.Context, query string, args ...interface{}) ([]core.Cluster, error) {
	rows, err := r.query().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clusters []core.Cluster
	for rows.Next() {
		cluster, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, *cluster)
	}
	return clusters, rows.Err()
}

func scanCluster(row rowScanner) (*core.Cluster, error) {
	var cluster core.Cluster
	var status string
	var centroidJSON, jtbdJSON []byte

	err := row.Scan(&cluster.ID, &cluster.Name, &cluster.Description,
		&cluster.SourceType, &cluster.CentroidSummary, &cluster.CommonPain,
		&cluster.CommonContext, pq.Array(&cluster.PainEventIDs),
		&cluster.ClusterSize, &cluster.WorkflowSimilarity, &centroidJSON,
		&jtbdJSON, &cluster.SemanticCategory, &cluster.ProductImpact,
		&status, &cluster.AlignedProblemID, &cluster.CreatedAt)
	if err != nil {
		return nil, err
	}

	cluster.AlignmentStatus = core.AlignmentStatus(status)
	if len(centroidJSON) > 0 {
		if err := json.Unmarshal(centroidJSON, &cluster.Centroid); err != nil {
			return nil, fmt.Errorf("failed to unmarshal centroid: %w", err)
		}
	}
	if len(jtbdJSON) > 0 {
		if err := json.Unmarshal(jtbdJSON, &cluster.JTBD); err != nil {
			return nil, fmt.Errorf("failed to unmarshal jtbd: %w", err)
		}
	}
	return &cluster, nil
}

// postgresAlignedProblemRepo implements AlignedProblemRepository.
type postgresAlignedProblemRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresAlignedProblemRepo) query() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const alignedProblemColumns = `id, sources, core_problem, why_they_look_different,
	evidence, cluster_ids, created_at`

func (r *postgresAlignedProblemRepo) Create(ctx context.Context, problem *core.AlignedProblem) error {
	query := `
		INSERT INTO aligned_problems (` + alignedProblemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.query().ExecContext(ctx, query,
		problem.ID, pq.Array(problem.Sources), problem.CoreProblem,
		problem.WhyTheyLookDifferent, pq.Array(problem.Evidence),
		pq.Array(problem.ClusterIDs), problem.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert aligned problem: %w", err)
	}
	return nil
}

func (r *postgresAlignedProblemRepo) Get(ctx context.Context, id string) (*core.AlignedProblem, error) {
	row := r.query().QueryRowContext(ctx,
		`SELECT `+alignedProblemColumns+` FROM aligned_problems WHERE id = $1`, id)
	problem, err := scanAlignedProblem(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("aligned problem %s not found", id)
	}
	return problem, err
}

func (r *postgresAlignedProblemRepo) ListUnmapped(ctx context.Context, limit int) ([]core.AlignedProblem, error) {
	rows, err := r.query().QueryContext(ctx, `SELECT `+alignedProblemColumns+`
		FROM aligned_problems ap
		WHERE NOT EXISTS (SELECT 1 FROM opportunities o WHERE o.cluster_id = ap.id)
		ORDER BY created_at LIMIT $1`, limitArg(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var problems []core.AlignedProblem
	for rows.Next() {
		problem, err := scanAlignedProblem(rows)
		if err != nil {
			return nil, err
		}
		problems = append(problems, *problem)
	}
	return problems, rows.Err()
}

func scanAlignedProblem(row rowScanner) (*core.AlignedProblem, error) {
	var problem core.AlignedProblem
	err := row.Scan(&problem.ID, pq.Array(&problem.Sources), &problem.CoreProblem,
		&problem.WhyTheyLookDifferent, pq.Array(&problem.Evidence),
		pq.Array(&problem.ClusterIDs), &problem.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &problem, nil
}

// postgresOpportunityRepo implements OpportunityRepository.
type postgresOpportunityRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresOpportunityRepo) query() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const opportunityColumns = `id, cluster_id, opportunity_name, description,
	target_users, missing_capability, why_existing_fail, total_score, scored,
	recommendation, trust_level, current_version, scored_at, last_rescored_at,
	rescore_count, created_at`

func (r *postgresOpportunityRepo) Create(ctx context.Context, opp *core.Opportunity) error {
	query := `
		INSERT INTO opportunities (` + opportunityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := r.query().ExecContext(ctx, query,
		opp.ID, opp.ClusterID, opp.Name, opp.Description, opp.TargetUsers,
		opp.MissingCapability, opp.WhyExistingFail, opp.TotalScore, opp.Scored,
		opp.Recommendation, opp.TrustLevel, opp.CurrentVersion,
		opp.ScoredAt, opp.LastRescoredAt, opp.RescoreCount, opp.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert opportunity: %w", err)
	}
	return nil
}

func (r *postgresOpportunityRepo) Get(ctx context.Context, id string) (*core.Opportunity, error) {
	row := r.query().QueryRowContext(ctx,
		`SELECT `+opportunityColumns+` FROM opportunities WHERE id = $1`, id)
	opp, err := scanOpportunity(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("opportunity %s not found", id)
	}
	return opp, err
}

func (r *postgresOpportunityRepo) GetByCluster(ctx context.Context, clusterID string) (*core.Opportunity, error) {
	row := r.query().QueryRowContext(ctx, `SELECT `+opportunityColumns+`
		FROM opportunities WHERE cluster_id = $1
		ORDER BY total_score DESC LIMIT 1`, clusterID)
	opp, err := scanOpportunity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return opp, err
}

func (r *postgresOpportunityRepo) ListUnscored(ctx context.Context, limit int) ([]core.Opportunity, error) {
	return r.list(ctx, `SELECT `+opportunityColumns+` FROM opportunities
		WHERE NOT scored ORDER BY created_at LIMIT $1`, limitArg(limit))
}

func (r *postgresOpportunityRepo) ListScored(ctx context.Context, minScore float64, limit int) ([]core.Opportunity, error) {
	if limit <= 0 {
		return r.list(ctx, `SELECT `+opportunityColumns+` FROM opportunities
			WHERE scored AND total_score >= $1
			ORDER BY total_score DESC`, minScore)
	}
	return r.list(ctx, `SELECT `+opportunityColumns+` FROM opportunities
		WHERE scored AND total_score >= $1
		ORDER BY total_score DESC LIMIT $2`, minScore, limit)
}

func (r *postgresOpportunityRepo) RecordScore(ctx context.Context, id string, score float64, recommendation string, rescore bool) error {
	var query string
	if rescore {
		query = `
			UPDATE opportunities
			SET total_score = $2, recommendation = $3, scored = TRUE,
			    last_rescored_at = NOW(), rescore_count = rescore_count + 1
			WHERE id = $1`
	} else {
		query = `
			UPDATE opportunities
			SET total_score = $2, recommendation = $3, scored = TRUE, scored_at = NOW()
			WHERE id = $1`
	}
	result, err := r.query().ExecContext(ctx, query, id, score, recommendation)
	if err != nil {
		return fmt.Errorf("failed to record score for opportunity %s: %w", id, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("opportunity %s not found", id)
	}
	return nil
}

func (r *postgresOpportunityRepo) DeleteDuplicates(ctx context.Context) (int, error) {
	// Keep the highest-scoring row per cluster; created_at breaks ties so
	// reruns are deterministic.
	result, err := r.query().ExecContext(ctx, `
		DELETE FROM opportunities o
		USING opportunities keep
		WHERE o.cluster_id = keep.cluster_id
		  AND o.id != keep.id
		  AND (keep.total_score, keep.created_at, keep.id) >
		      (o.total_score, o.created_at, o.id)
		  AND NOT EXISTS (
			SELECT 1 FROM opportunities better
			WHERE better.cluster_id = keep.cluster_id
			  AND (better.total_score, better.created_at, better.id) >
			      (keep.total_score, keep.created_at, keep.id)
		  )`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete duplicate opportunities: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (r *postgresOpportunityRepo) list(ctx context.Context, query string, args ...interface{}) ([]core.Opportunity, error) {
	rows, err := r.query().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var opps []core.Opportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		opps = append(opps, *opp)
	}
	return opps, rows.Err()
}

func scanOpportunity(row rowScanner) (*core.Opportunity, error) {
	var opp core.Opportunity
	var scoredAt, lastRescoredAt sql.NullTime

	err := row.Scan(&opp.ID, &opp.ClusterID, &opp.Name, &opp.Description,
		&opp.TargetUsers, &opp.MissingCapability, &opp.WhyExistingFail,
		&opp.TotalScore, &opp.Scored, &opp.Recommendation, &opp.TrustLevel,
		&opp.CurrentVersion, &scoredAt, &lastRescoredAt,
		&opp.RescoreCount, &opp.CreatedAt)
	if err != nil {
		return nil, err
	}

	if scoredAt.Valid {
		t := scoredAt.Time
		opp.ScoredAt = &t
	}
	if lastRescoredAt.Valid {
		t := lastRescoredAt.Time
		opp.LastRescoredAt = &t
	}
	return &opp, nil
}
