// Package persistence provides the Postgres-backed repositories for pain
// events, clusters, aligned problems, and opportunities.
package persistence

import (
	"context"

	"painfinder/internal/core"
)

// PainEventRepository handles pain event persistence.
type PainEventRepository interface {
	// Create inserts a new pain event.
	Create(ctx context.Context, event *core.PainEvent) error

	// Get retrieves a pain event by ID.
	Get(ctx context.Context, id string) (*core.PainEvent, error)

	// ListUnclustered retrieves embedded events with no cluster assignment
	// (orphans included, archived excluded).
	ListUnclustered(ctx context.Context, limit int) ([]core.PainEvent, error)

	// ListUnembedded retrieves events that have no embedding yet.
	ListUnembedded(ctx context.Context, limit int) ([]core.PainEvent, error)

	// ListByCluster retrieves the member events of a cluster.
	ListByCluster(ctx context.Context, clusterID string) ([]core.PainEvent, error)

	// UpdateEmbedding stores the embedding vector for an event.
	UpdateEmbedding(ctx context.Context, id string, embedding []float64) error

	// AssignCluster moves an event into a cluster and marks it active.
	AssignCluster(ctx context.Context, id string, clusterID string) error

	// MarkOrphan records that an event failed to reach a minimum-size cluster.
	MarkOrphan(ctx context.Context, id string) error

	// Archive retires an event from future clustering passes.
	Archive(ctx context.Context, id string) error
}

// ClusterRepository handles cluster persistence.
type ClusterRepository interface {
	Create(ctx context.Context, cluster *core.Cluster) error
	Get(ctx context.Context, id string) (*core.Cluster, error)
	List(ctx context.Context, limit int) ([]core.Cluster, error)

	// ListUnmapped retrieves clusters of at least minSize that own no
	// opportunity and belong to no aligned problem.
	ListUnmapped(ctx context.Context, minSize, limit int) ([]core.Cluster, error)

	// ListAlignmentCandidates retrieves clusters with alignment_status
	// 'none' and at least minSize members.
	ListAlignmentCandidates(ctx context.Context, minSize, limit int) ([]core.Cluster, error)

	// UpdateJTBD stores the lazily enriched jobs-to-be-done block.
	UpdateJTBD(ctx context.Context, id string, jtbd *core.JTBD) error

	// MarkAligned sets alignment_status='aligned' and the owning aligned problem.
	MarkAligned(ctx context.Context, id string, alignedProblemID string) error
}

// AlignedProblemRepository handles cross-source aligned problems.
type AlignedProblemRepository interface {
	Create(ctx context.Context, problem *core.AlignedProblem) error
	Get(ctx context.Context, id string) (*core.AlignedProblem, error)

	// ListUnmapped retrieves aligned problems that own no opportunity.
	ListUnmapped(ctx context.Context, limit int) ([]core.AlignedProblem, error)
}

// OpportunityRepository handles opportunity persistence.
type OpportunityRepository interface {
	Create(ctx context.Context, opp *core.Opportunity) error
	Get(ctx context.Context, id string) (*core.Opportunity, error)

	// GetByCluster returns the opportunity owned by a cluster, or nil.
	GetByCluster(ctx context.Context, clusterID string) (*core.Opportunity, error)

	// ListUnscored retrieves opportunities that have not been scored.
	ListUnscored(ctx context.Context, limit int) ([]core.Opportunity, error)

	// ListScored retrieves scored opportunities above a minimum score.
	// A limit of 0 or less returns all of them.
	ListScored(ctx context.Context, minScore float64, limit int) ([]core.Opportunity, error)

	// RecordScore persists a viability score in place; rescore bumps
	// rescore_count instead of creating a new row.
	RecordScore(ctx context.Context, id string, score float64, recommendation string, rescore bool) error

	// DeleteDuplicates keeps only the highest-scoring row per cluster and
	// returns the number of rows removed.
	DeleteDuplicates(ctx context.Context) (int, error)
}

// Database is the top-level accessor: repositories plus transactions.
type Database interface {
	PainEvents() PainEventRepository
	Clusters() ClusterRepository
	AlignedProblems() AlignedProblemRepository
	Opportunities() OpportunityRepository

	// BeginTx starts a transaction exposing the same repositories; commit
	// or rollback happens on all exit paths so no partial batch leaks.
	BeginTx(ctx context.Context) (Transaction, error)

	Ping(ctx context.Context) error
	Close() error
}

// Transaction exposes the repositories bound to one database transaction.
type Transaction interface {
	PainEvents() PainEventRepository
	Clusters() ClusterRepository
	AlignedProblems() AlignedProblemRepository
	Opportunities() OpportunityRepository
	Commit() error
	Rollback() error
}
