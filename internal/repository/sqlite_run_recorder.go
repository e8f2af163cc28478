package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/alexenache10/NeuralPortofolio/internal/domain/models"
)

// SQLiteRunRecorder persists training runs and their epochs to SQLite.
type SQLiteRunRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRunRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRunRecorder(path string) (*SQLiteRunRecorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	r := &SQLiteRunRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLiteRunRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS training_runs (
			id              TEXT PRIMARY KEY,
			symbol          TEXT NOT NULL,
			started_at      INTEGER NOT NULL,
			finished_at     INTEGER NOT NULL,
			row_count       INTEGER,
			train_rows      INTEGER,
			test_rows       INTEGER,
			train_windows   INTEGER,
			test_windows    INTEGER,
			final_train_mse REAL,
			test_mse        REAL,
			baseline_mse    REAL,
			last_close      REAL,
			predicted_close REAL,
			as_of           INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_symbol_ts ON training_runs(symbol, started_at)`,

		`CREATE TABLE IF NOT EXISTS training_epochs (
			run_id      TEXT NOT NULL REFERENCES training_runs(id),
			epoch       INTEGER NOT NULL,
			train_mse   REAL,
			test_mse    REAL,
			duration_ms INTEGER,
			PRIMARY KEY (run_id, epoch)
		)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRunRecorder) RecordRun(ctx context.Context, run *models.TrainingRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var lastClose, predicted sql.NullFloat64
	var asOf sql.NullInt64
	if f := run.Forecast; f != nil {
		lastClose = sql.NullFloat64{Float64: f.LastClose, Valid: true}
		predicted = sql.NullFloat64{Float64: f.PredictedClose, Valid: true}
		asOf = sql.NullInt64{Int64: f.AsOf.Unix(), Valid: true}
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO training_runs (
		id, symbol, started_at, finished_at, row_count, train_rows, test_rows,
		train_windows, test_windows, final_train_mse, test_mse, baseline_mse,
		last_close, predicted_close, as_of
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Symbol, run.StartedAt.Unix(), run.FinishedAt.Unix(),
		run.Rows, run.TrainRows, run.TestRows, run.TrainWindows, run.TestWindows,
		run.FinalTrainLoss(), run.TestLoss, run.BaselineLoss,
		lastClose, predicted, asOf,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, e := range run.Epochs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO training_epochs (run_id, epoch, train_mse, test_mse, duration_ms) VALUES (?, ?, ?, ?, ?)`,
			run.ID, e.Epoch, e.TrainLoss, e.TestLoss, e.Duration.Milliseconds(),
		); err != nil {
			return fmt.Errorf("insert epoch %d: %w", e.Epoch, err)
		}
	}
	return tx.Commit()
}

// LastRun returns the most recent run of symbol without its epochs, or nil.
func (r *SQLiteRunRecorder) LastRun(ctx context.Context, symbol string) (*models.TrainingRun, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, symbol, row_count, train_rows, test_rows, train_windows, test_windows, test_mse, baseline_mse
		FROM training_runs
		WHERE symbol = ?
		ORDER BY started_at DESC
		LIMIT 1`, symbol)
	var run models.TrainingRun
	err := row.Scan(&run.ID, &run.Symbol, &run.Rows, &run.TrainRows, &run.TestRows,
		&run.TrainWindows, &run.TestWindows, &run.TestLoss, &run.BaselineLoss)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last run: %w", err)
	}
	return &run, nil
}

func (r *SQLiteRunRecorder) Close() error {
	return r.db.Close()
}

// NoopRunRecorder is used when the recorder is disabled.
type NoopRunRecorder struct{}

func (NoopRunRecorder) RecordRun(context.Context, *models.TrainingRun) error { return nil }
func (NoopRunRecorder) LastRun(context.Context, string) (*models.TrainingRun, error) {
	return nil, nil
}
func (NoopRunRecorder) Close() error { return nil }
