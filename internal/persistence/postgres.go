package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Postgres driver
)

// PostgresDB implements the Database interface for PostgreSQL.
type PostgresDB struct {
	db              *sql.DB
	painEvents      PainEventRepository
	clusters        ClusterRepository
	alignedProblems AlignedProblemRepository
	opportunities   OpportunityRepository
}

// NewPostgresDB creates a new PostgreSQL database connection.
func NewPostgresDB(connectionString string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pgDB := &PostgresDB{db: db}
	pgDB.painEvents = &postgresPainEventRepo{db: db}
	pgDB.clusters = &postgresClusterRepo{db: db}
	pgDB.alignedProblems = &postgresAlignedProblemRepo{db: db}
	pgDB.opportunities = &postgresOpportunityRepo{db: db}
	return pgDB, nil
}

func (p *PostgresDB) PainEvents() PainEventRepository           { return p.painEvents }
func (p *PostgresDB) Clusters() ClusterRepository               { return p.clusters }
func (p *PostgresDB) AlignedProblems() AlignedProblemRepository { return p.alignedProblems }
func (p *PostgresDB) Opportunities() OpportunityRepository      { return p.opportunities }

func (p *PostgresDB) Close() error {
	return p.db.Close()
}

func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// DB exposes the raw handle for components sharing the connection, such
// as the pgvector index and the migration manager.
func (p *PostgresDB) DB() *sql.DB {
	return p.db
}

func (p *PostgresDB) BeginTx(ctx context.Context) (Transaction, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &postgresTx{
		tx:              tx,
		painEvents:      &postgresPainEventRepo{db: p.db, tx: tx},
		clusters:        &postgresClusterRepo{db: p.db, tx: tx},
		alignedProblems: &postgresAlignedProblemRepo{db: p.db, tx: tx},
		opportunities:   &postgresOpportunityRepo{db: p.db, tx: tx},
	}, nil
}

// postgresTx implements the Transaction interface.
type postgresTx struct {
	tx              *sql.Tx
	painEvents      PainEventRepository
	clusters        ClusterRepository
	alignedProblems AlignedProblemRepository
	opportunities   OpportunityRepository
}

func (t *postgresTx) Commit() error                             { return t.tx.Commit() }
func (t *postgresTx) Rollback() error                           { return t.tx.Rollback() }
func (t *postgresTx) PainEvents() PainEventRepository           { return t.painEvents }
func (t *postgresTx) Clusters() ClusterRepository               { return t.clusters }
func (t *postgresTx) AlignedProblems() AlignedProblemRepository { return t.alignedProblems }
func (t *postgresTx) Opportunities() OpportunityRepository      { return t.opportunities }

// queryer abstracts over *sql.DB and *sql.Tx so each repository works
// inside and outside a transaction.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}
