// Package store is the accessor for the "raw" and "filtered" logical
// databases: collected posts/comments and their signal-filter verdicts
// live in a local SQLite file, separate from the Postgres pipeline state.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"painfinder/internal/core"
)

// Store wraps the SQLite database holding raw and filtered items.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the raw store under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "painfinder.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	rawTable := `
	CREATE TABLE IF NOT EXISTS raw_items (
		id TEXT PRIMARY KEY,
		source_type TEXT NOT NULL,
		platform TEXT NOT NULL,
		community TEXT,
		author TEXT,
		title TEXT,
		body TEXT,
		parent_post_id TEXT,
		score INTEGER,
		collected_at DATETIME,
		pain_score REAL DEFAULT 0,
		pain_filtered INTEGER DEFAULT 0,
		extracted INTEGER DEFAULT 0,
		filter_reasons TEXT
	);`

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_raw_items_filtered ON raw_items (pain_filtered, extracted);`,
		`CREATE INDEX IF NOT EXISTS idx_raw_items_parent ON raw_items (parent_post_id);`,
	}

	if _, err := s.db.Exec(rawTable); err != nil {
		return fmt.Errorf("failed to create raw_items table: %w", err)
	}
	for _, idx := range indexes {
		if _, err := s.db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRawPost inserts or replaces one collected item.
func (s *Store) SaveRawPost(post core.RawPost) error {
	reasons, _ := json.Marshal(post.FilterReasons)

	query := `
	INSERT OR REPLACE INTO raw_items
	(id, source_type, platform, community, author, title, body, parent_post_id,
	 score, collected_at, pain_score, pain_filtered, extracted, filter_reasons)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query,
		post.ID, string(post.SourceType), post.Platform, post.Community,
		post.Author, post.Title, post.Body, post.ParentPostID,
		post.Score, post.CollectedAt, post.PainScore,
		boolToInt(post.PainFiltered), boolToInt(post.Extracted), string(reasons),
	)
	if err != nil {
		return fmt.Errorf("failed to save raw item %s: %w", post.ID, err)
	}
	return nil
}

// GetRawPost returns one item by id, or nil if absent.
func (s *Store) GetRawPost(id string) (*core.RawPost, error) {
	row := s.db.QueryRow(`SELECT `+rawColumns+` FROM raw_items WHERE id = ?`, id)
	post, err := scanRawPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return post, err
}

// ListUnfiltered returns items the signal filter has not yet scored.
// A limit of 0 or less returns all of them.
func (s *Store) ListUnfiltered(limit int) ([]core.RawPost, error) {
	return s.listRaw(`SELECT `+rawColumns+` FROM raw_items
		WHERE pain_score = 0 AND pain_filtered = 0
		ORDER BY collected_at LIMIT ?`, sqliteLimit(limit))
}

// ListFilteredUnextracted returns items that passed the filter but have
// not been through pain extraction.
func (s *Store) ListFilteredUnextracted(limit int) ([]core.RawPost, error) {
	return s.listRaw(`SELECT `+rawColumns+` FROM raw_items
		WHERE pain_filtered = 1 AND extracted = 0
		ORDER BY pain_score DESC LIMIT ?`, sqliteLimit(limit))
}

// sqliteLimit turns a non-positive limit into -1, which SQLite treats
// as no limit.
func sqliteLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// TopCommentsFor returns the bodies of the highest-scoring comments under
// a post, for inclusion in the extraction prompt.
func (s *Store) TopCommentsFor(postID string, limit int) ([]string, error) {
	rows, err := s.db.Query(`SELECT body FROM raw_items
		WHERE parent_post_id = ? AND source_type = 'comment'
		ORDER BY score DESC LIMIT ?`, postID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bodies []string
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		bodies = append(bodies, body)
	}
	return bodies, rows.Err()
}

// RecordFilterVerdict stores the signal filter's score and verdict.
func (s *Store) RecordFilterVerdict(id string, painScore float64, passed bool, reasons []string) error {
	reasonsJSON, _ := json.Marshal(reasons)
	result, err := s.db.Exec(`UPDATE raw_items
		SET pain_score = ?, pain_filtered = ?, filter_reasons = ?
		WHERE id = ?`, painScore, boolToInt(passed), string(reasonsJSON), id)
	if err != nil {
		return fmt.Errorf("failed to record filter verdict for %s: %w", id, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("raw item %s not found", id)
	}
	return nil
}

// MarkExtracted flags an item as processed by the extractor.
func (s *Store) MarkExtracted(id string) error {
	_, err := s.db.Exec(`UPDATE raw_items SET extracted = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark %s extracted: %w", id, err)
	}
	return nil
}

// Stats reports raw store counts.
type Stats struct {
	TotalItems    int
	FilteredItems int
	Extracted     int
	LastCollected time.Time
}

// GetStats returns counts over the raw store.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}
	err := s.db.QueryRow(`SELECT COUNT(*),
		COALESCE(SUM(pain_filtered), 0),
		COALESCE(SUM(extracted), 0),
		COALESCE(MAX(collected_at), '0001-01-01')
		FROM raw_items`).Scan(&stats.TotalItems, &stats.FilteredItems, &stats.Extracted, &stats.LastCollected)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw store stats: %w", err)
	}
	return stats, nil
}

const rawColumns = `id, source_type, platform, community, author, title, body,
	parent_post_id, score, collected_at, pain_score, pain_filtered, extracted, filter_reasons`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRawPost(row rowScanner) (*core.RawPost, error) {
	var post core.RawPost
	var sourceType, reasonsJSON string
	var filtered, extracted int

	err := row.Scan(&post.ID, &sourceType, &post.Platform, &post.Community,
		&post.Author, &post.Title, &post.Body, &post.ParentPostID,
		&post.Score, &post.CollectedAt, &post.PainScore,
		&filtered, &extracted, &reasonsJSON)
	if err != nil {
		return nil, err
	}

	post.SourceType = core.SourceType(sourceType)
	post.PainFiltered = filtered != 0
	post.Extracted = extracted != 0
	if reasonsJSON != "" {
		if err := json.Unmarshal([]byte(reasonsJSON), &post.FilterReasons); err != nil {
			return nil, fmt.Errorf("failed to unmarshal filter reasons for %s: %w", post.ID, err)
		}
	}
	return &post, nil
}

func (s *Store) listRaw(query string, args ...any) ([]core.RawPost, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []core.RawPost
	for rows.Next() {
		post, err := scanRawPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}
	return posts, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
