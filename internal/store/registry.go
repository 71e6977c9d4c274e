// Package store keeps the run registry: a small SQLite database recording
// every pipeline run, its configuration fingerprint, and which stages
// completed. The flat artifacts stay the source of truth; the registry
// exists so reruns and audits can be enumerated without scanning output
// directories.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Registry is the SQLite-backed run history.
type Registry struct {
	db     *sql.DB
	dbPath string
}

// Run is one recorded pipeline run.
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Status       string // running, completed, failed
	ConfigDigest string
	OutputRoot   string
}

// StageRecord is one completed stage of a run.
type StageRecord struct {
	RunID       string
	Stage       string
	CompletedAt time.Time
	Detail      string
}

// Open initializes the registry database at the given path.
func Open(path string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("run registry: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("run registry: %w", err)
	}
	r := &Registry{db: db, dbPath: path}
	if err := r.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Registry) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		status TEXT NOT NULL,
		config_digest TEXT NOT NULL,
		output_root TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS run_stages (
		run_id TEXT NOT NULL REFERENCES runs(id),
		stage TEXT NOT NULL,
		completed_at DATETIME NOT NULL,
		detail TEXT,
		PRIMARY KEY (run_id, stage)
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("run registry schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (r *Registry) Close() error { return r.db.Close() }

// BeginRun records a new run and returns its id.
func (r *Registry) BeginRun(configDigest, outputRoot string) (string, error) {
	id := uuid.NewString()
	_, err := r.db.Exec(
		`INSERT INTO runs (id, started_at, status, config_digest, output_root) VALUES (?, ?, 'running', ?, ?)`,
		id, time.Now().UTC(), configDigest, outputRoot)
	if err != nil {
		return "", fmt.Errorf("run registry: %w", err)
	}
	return id, nil
}

// CompleteStage records one finished stage of a run.
func (r *Registry) CompleteStage(runID, stage, detail string) error {
	_, err := r.db.Exec(
		`INSERT OR REPLACE INTO run_stages (run_id, stage, completed_at, detail) VALUES (?, ?, ?, ?)`,
		runID, stage, time.Now().UTC(), detail)
	if err != nil {
		return fmt.Errorf("run registry: %w", err)
	}
	return nil
}

// FinishRun marks a run completed or failed.
func (r *Registry) FinishRun(runID, status string) error {
	if status != "completed" && status != "failed" {
		return fmt.Errorf("run registry: invalid final status %q", status)
	}
	_, err := r.db.Exec(
		`UPDATE runs SET finished_at = ?, status = ? WHERE id = ?`,
		time.Now().UTC(), status, runID)
	if err != nil {
		return fmt.Errorf("run registry: %w", err)
	}
	return nil
}

// Stages lists the completed stages of a run in completion order.
func (r *Registry) Stages(runID string) ([]StageRecord, error) {
	rows, err := r.db.Query(
		`SELECT run_id, stage, completed_at, COALESCE(detail, '') FROM run_stages WHERE run_id = ? ORDER BY completed_at, stage`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("run registry: %w", err)
	}
	defer rows.Close()
	var out []StageRecord
	for rows.Next() {
		var rec StageRecord
		if err := rows.Scan(&rec.RunID, &rec.Stage, &rec.CompletedAt, &rec.Detail); err != nil {
			return nil, fmt.Errorf("run registry: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LastRun returns the most recently started run, or nil when the registry
// is empty.
func (r *Registry) LastRun() (*Run, error) {
	row := r.db.QueryRow(
		`SELECT id, started_at, COALESCE(finished_at, started_at), status, config_digest, output_root
		 FROM runs ORDER BY started_at DESC LIMIT 1`)
	var run Run
	err := row.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Status, &run.ConfigDigest, &run.OutputRoot)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("run registry: %w", err)
	}
	return &run, nil
}
