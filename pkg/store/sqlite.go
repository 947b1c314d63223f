package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gilchrisn/graph-matching-service/pkg/corpus"
)

// ErrNoRuns is returned by BestRun when nothing was recorded for a gold file
var ErrNoRuns = errors.New("no runs recorded")

// Store keeps the history of evaluation runs in SQLite
type Store struct {
	db *sql.DB
}

// RunInfo describes how a run was invoked
type RunInfo struct {
	TestPath string
	GoldPath string
	Restarts int
	Seed     int64
}

// RunRecord is one row of the runs table
type RunRecord struct {
	RunID     string
	TestPath  string
	GoldPath  string
	Restarts  int
	Seed      int64
	Match     int
	Test      int
	Gold      int
	Precision float64
	Recall    float64
	F1        float64
	Scored    int
	Failed    int
	RuntimeMS int64
	CreatedAt time.Time
}

// NewStore opens (or creates) the database at dbPath with WAL enabled
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		test_path TEXT NOT NULL,
		gold_path TEXT NOT NULL,
		restarts INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		match_count INTEGER NOT NULL,
		test_triples INTEGER NOT NULL,
		gold_triples INTEGER NOT NULL,
		precision REAL NOT NULL,
		recall REAL NOT NULL,
		f1 REAL NOT NULL,
		scored INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		runtime_ms INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pair_scores (
		run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		pair_index INTEGER NOT NULL,
		pair_id TEXT,
		match_count INTEGER NOT NULL,
		test_triples INTEGER NOT NULL,
		gold_triples INTEGER NOT NULL,
		f1 REAL NOT NULL,
		timed_out INTEGER NOT NULL,
		error TEXT,
		PRIMARY KEY (run_id, pair_index)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_gold ON runs(gold_path);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// RecordRun stores a report and its pair scores in one transaction
func (s *Store) RecordRun(ctx context.Context, info RunInfo, report *corpus.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, test_path, gold_path, restarts, seed,
			match_count, test_triples, gold_triples, precision, recall, f1,
			scored, failed, runtime_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID, info.TestPath, info.GoldPath, info.Restarts, info.Seed,
		report.Totals.Match, report.Totals.TestTriples, report.Totals.GoldTriples,
		report.Precision, report.Recall, report.F1,
		report.Scored, report.Failed, report.RuntimeMS, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", report.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pair_scores (run_id, pair_index, pair_id, match_count,
			test_triples, gold_triples, f1, timed_out, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare pair insert: %w", err)
	}
	defer stmt.Close()

	for _, pr := range report.Pairs {
		var pairErr sql.NullString
		if pr.Err != nil {
			pairErr = sql.NullString{String: pr.Err.Error(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, report.RunID, pr.Index, pr.ID, pr.Match,
			pr.TestTriples, pr.GoldTriples, pr.F1, pr.TimedOut, pairErr); err != nil {
			return fmt.Errorf("failed to insert pair %d: %w", pr.Index+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", report.RunID, err)
	}
	return nil
}

const runColumns = `run_id, test_path, gold_path, restarts, seed, match_count,
	test_triples, gold_triples, precision, recall, f1, scored, failed,
	runtime_ms, created_at`

func scanRun(row interface{ Scan(...any) error }) (RunRecord, error) {
	var r RunRecord
	err := row.Scan(&r.RunID, &r.TestPath, &r.GoldPath, &r.Restarts, &r.Seed,
		&r.Match, &r.Test, &r.Gold, &r.Precision, &r.Recall, &r.F1,
		&r.Scored, &r.Failed, &r.RuntimeMS, &r.CreatedAt)
	return r, err
}

// ListRuns returns the most recent runs first, at most limit of them
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// BestRun returns the highest-F1 run recorded against goldPath. Ties go to
// the earliest run.
func (s *Store) BestRun(ctx context.Context, goldPath string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE gold_path = ? ORDER BY f1 DESC, rowid ASC LIMIT 1`, goldPath)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("%s: %w", goldPath, ErrNoRuns)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to query best run: %w", err)
	}
	return r, nil
}

// PairF1s returns the per-pair F1 of a run in pair order, skipping failed
// pairs.
func (s *Store) PairF1s(ctx context.Context, runID string) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f1 FROM pair_scores WHERE run_id = ? AND error IS NULL ORDER BY pair_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pair scores: %w", err)
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var f1 float64
		if err := rows.Scan(&f1); err != nil {
			return nil, fmt.Errorf("failed to scan pair score: %w", err)
		}
		scores = append(scores, f1)
	}
	return scores, rows.Err()
}
