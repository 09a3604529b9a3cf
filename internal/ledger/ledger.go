// Package ledger keeps an SQLite record of packaging runs, the manifests
// they wrote and the submissions made from them.
package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/nishad/enasub/internal/pipeline"
)

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
	path string
	now  func() time.Time
}

var _ pipeline.Recorder = (*DB)(nil)

// Open creates the ledger at path, along with its directory, if absent.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000&_sync=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	db.SetMaxOpenConns(1)

	return &DB{DB: db, path: path, now: time.Now}, nil
}

// Path returns the database file location.
func (db *DB) Path() string {
	return db.path
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		schema_name TEXT NOT NULL,
		table_path TEXT NOT NULL,
		submission_dir TEXT NOT NULL,
		started TIMESTAMP NOT NULL,
		finished TIMESTAMP,
		status TEXT NOT NULL,
		manifests INTEGER NOT NULL DEFAULT 0,
		error TEXT
	);

	CREATE TABLE IF NOT EXISTS manifests (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		table_row INTEGER NOT NULL,
		sample TEXT NOT NULL,
		directory TEXT NOT NULL,
		path TEXT NOT NULL,
		files INTEGER NOT NULL,
		bytes INTEGER NOT NULL,
		written TIMESTAMP NOT NULL,
		PRIMARY KEY (run_id, table_row)
	);

	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		manifest TEXT NOT NULL,
		context TEXT NOT NULL,
		live INTEGER NOT NULL,
		exit_code INTEGER NOT NULL,
		output_dir TEXT NOT NULL,
		submitted TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started);
	CREATE INDEX IF NOT EXISTS idx_runs_dir ON runs(submission_dir);
	CREATE INDEX IF NOT EXISTS idx_submissions_manifest ON submissions(manifest);
	`
	_, err := db.Exec(schema)
	return err
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// RunStarted records a new run as running.
func (db *DB) RunStarted(run pipeline.Run) error {
	query := `
		INSERT INTO runs (id, schema_name, table_path, submission_dir, started, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := db.Exec(query,
		run.ID, run.Schema, absPath(run.Table), absPath(run.SubmissionDir),
		run.Started.UTC(), StatusRunning)
	return err
}

// ManifestWritten records one manifest of a run.
func (db *DB) ManifestWritten(runID string, res pipeline.Result) error {
	var bytes int64
	for _, f := range res.Files {
		bytes += f.Bytes
	}
	query := `
		INSERT OR REPLACE INTO manifests (
			run_id, table_row, sample, directory, path, files, bytes, written
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.Exec(query,
		runID, res.Row, res.Sample, absPath(res.Directory), absPath(res.Manifest),
		len(res.Files), bytes, db.now().UTC())
	return err
}

// RunFinished closes a run, marking it failed when runErr is set.
func (db *DB) RunFinished(runID string, manifests int, runErr error) error {
	status := StatusCompleted
	var msg sql.NullString
	if runErr != nil {
		status = StatusFailed
		msg = sql.NullString{String: runErr.Error(), Valid: true}
	}
	query := `
		UPDATE runs SET finished = ?, status = ?, manifests = ?, error = ?
		WHERE id = ?
	`
	res, err := db.Exec(query, db.now().UTC(), status, manifests, msg, runID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

const runColumns = `id, schema_name, table_path, submission_dir, started, finished, status, manifests, COALESCE(error, '')`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (RunRecord, error) {
	var (
		r        RunRecord
		finished sql.NullTime
	)
	err := s.Scan(&r.ID, &r.Schema, &r.Table, &r.SubmissionDir, &r.Started,
		&finished, &r.Status, &r.Manifests, &r.Error)
	if finished.Valid {
		t := finished.Time
		r.Finished = &t
	}
	return r, err
}

// Runs returns the most recent runs first. A limit of 0 returns all runs.
func (db *DB) Runs(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun retrieves a run by id.
func (db *DB) GetRun(id string) (*RunRecord, error) {
	r, err := scanRun(db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Manifests returns the manifests of a run in row order.
func (db *DB) Manifests(runID string) ([]ManifestRecord, error) {
	query := `
		SELECT run_id, table_row, sample, directory, path, files, bytes, written
		FROM manifests
		WHERE run_id = ?
		ORDER BY table_row
	`
	rows, err := db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ManifestRecord
	for rows.Next() {
		var m ManifestRecord
		if err := rows.Scan(&m.RunID, &m.Row, &m.Sample, &m.Directory, &m.Path,
			&m.Files, &m.Bytes, &m.Written); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// LatestManifests returns the manifests of the most recent completed run
// that wrote into submissionDir. It returns nil when there is none.
func (db *DB) LatestManifests(submissionDir string) ([]ManifestRecord, error) {
	var id string
	query := `
		SELECT id FROM runs
		WHERE submission_dir = ? AND status = ?
		ORDER BY started DESC, rowid DESC
		LIMIT 1
	`
	err := db.QueryRow(query, absPath(submissionDir), StatusCompleted).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return db.Manifests(id)
}

// RecordSubmission stores the outcome of one submission client call.
func (db *DB) RecordSubmission(s SubmissionRecord) error {
	if s.Submitted.IsZero() {
		s.Submitted = db.now()
	}
	query := `
		INSERT INTO submissions (manifest, context, live, exit_code, output_dir, submitted)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := db.Exec(query,
		absPath(s.Manifest), s.Context, s.Live, s.ExitCode, absPath(s.OutputDir), s.Submitted.UTC())
	return err
}

// Submissions returns the submissions made for a manifest, oldest first.
func (db *DB) Submissions(manifest string) ([]SubmissionRecord, error) {
	query := `
		SELECT manifest, context, live, exit_code, output_dir, submitted
		FROM submissions
		WHERE manifest = ?
		ORDER BY submitted, id
	`
	rows, err := db.Query(query, absPath(manifest))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SubmissionRecord
	for rows.Next() {
		var s SubmissionRecord
		if err := rows.Scan(&s.Manifest, &s.Context, &s.Live, &s.ExitCode, &s.OutputDir, &s.Submitted); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
