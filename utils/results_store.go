package utils

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ResultsStore persists annotation runs and their per-observation
// predictions in SQLite.
type ResultsStore struct {
	db   *sql.DB
	path string
}

// RunRecord is one stored annotation run.
type RunRecord struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	NumObs       int
	NumLabelled  int
	ConsensusKey string
	Config       string // serialized run configuration, for provenance
}

// PredictionRecord is one stored prediction: an observation's label under one
// result column, with the max class probability when it was requested.
type PredictionRecord struct {
	ObsName     string
	ResultKey   string
	Label       string
	Probability *float64
}

// NewResultsStore opens (creating if needed) a results database at dbPath.
func NewResultsStore(dbPath string) (*ResultsStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rs := &ResultsStore{db: db, path: dbPath}
	if err := rs.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return rs, nil
}

// initSchema creates the database schema
func (rs *ResultsStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS annotation_runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		num_obs INTEGER NOT NULL,
		num_labelled INTEGER NOT NULL,
		consensus_key TEXT NOT NULL,
		config TEXT
	);

	CREATE TABLE IF NOT EXISTS predictions (
		run_id TEXT NOT NULL,
		obs_name TEXT NOT NULL,
		result_key TEXT NOT NULL,
		label TEXT NOT NULL,
		probability REAL,
		FOREIGN KEY (run_id) REFERENCES annotation_runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_predictions_run ON predictions(run_id);
	CREATE INDEX IF NOT EXISTS idx_predictions_run_key ON predictions(run_id, result_key);
	`

	_, err := rs.db.Exec(schema)
	return err
}

// SaveRun stores a run record.
func (rs *ResultsStore) SaveRun(ctx context.Context, run *RunRecord) error {
	query := `
		INSERT INTO annotation_runs (id, started_at, finished_at, num_obs, num_labelled, consensus_key, config)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := rs.db.ExecContext(ctx, query,
		run.ID, run.StartedAt, run.FinishedAt, run.NumObs, run.NumLabelled, run.ConsensusKey, run.Config)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// SavePredictions stores a batch of predictions for a run in one transaction.
func (rs *ResultsStore) SavePredictions(ctx context.Context, runID string, preds []PredictionRecord) error {
	tx, err := rs.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO predictions (run_id, obs_name, result_key, label, probability)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range preds {
		var prob any
		if p.Probability != nil {
			prob = *p.Probability
		}
		if _, err := stmt.ExecContext(ctx, runID, p.ObsName, p.ResultKey, p.Label, prob); err != nil {
			return fmt.Errorf("failed to insert prediction for %s: %w", p.ObsName, err)
		}
	}

	return tx.Commit()
}

// GetRun loads one run record by id.
func (rs *ResultsStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := rs.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, num_obs, num_labelled, consensus_key, config
		FROM annotation_runs WHERE id = ?
	`, id)

	var run RunRecord
	var config sql.NullString
	if err := row.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.NumObs, &run.NumLabelled, &run.ConsensusKey, &config); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s not found", id)
		}
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	run.Config = config.String
	return &run, nil
}

// ListRuns returns all stored runs, most recent first.
func (rs *ResultsStore) ListRuns(ctx context.Context) ([]*RunRecord, error) {
	rows, err := rs.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, num_obs, num_labelled, consensus_key, config
		FROM annotation_runs ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		var run RunRecord
		var config sql.NullString
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.NumObs, &run.NumLabelled, &run.ConsensusKey, &config); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Config = config.String
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// Predictions loads the stored predictions of one result column of a run.
func (rs *ResultsStore) Predictions(ctx context.Context, runID, resultKey string) ([]PredictionRecord, error) {
	rows, err := rs.db.QueryContext(ctx, `
		SELECT obs_name, result_key, label, probability
		FROM predictions WHERE run_id = ? AND result_key = ?
	`, runID, resultKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load predictions: %w", err)
	}
	defer rows.Close()

	var preds []PredictionRecord
	for rows.Next() {
		var p PredictionRecord
		var prob sql.NullFloat64
		if err := rows.Scan(&p.ObsName, &p.ResultKey, &p.Label, &prob); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		if prob.Valid {
			v := prob.Float64
			p.Probability = &v
		}
		preds = append(preds, p)
	}
	return preds, rows.Err()
}

// Close closes the underlying database.
func (rs *ResultsStore) Close() error {
	return rs.db.Close()
}
