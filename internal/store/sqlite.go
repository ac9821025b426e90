package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"binclass-forge/internal/history"
)

// ErrRunNotFound is returned by LoadRun for an unknown id.
var ErrRunNotFound = errors.New("store: run not found")

const schema = `
CREATE TABLE IF NOT EXISTS training_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    model_name TEXT NOT NULL,
    optimizer TEXT NOT NULL,
    batch_size INTEGER NOT NULL,
    epochs INTEGER NOT NULL,
    learning_rate REAL NOT NULL,
    device TEXT NOT NULL,
    train_size INTEGER NOT NULL,
    val_size INTEGER NOT NULL,
    best_epoch INTEGER NOT NULL,
    restored INTEGER NOT NULL,
    started_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS epoch_metrics (
    run_id INTEGER NOT NULL REFERENCES training_runs(id),
    epoch INTEGER NOT NULL,
    train_loss REAL NOT NULL,
    train_accuracy REAL NOT NULL,
    val_loss REAL NOT NULL,
    val_accuracy REAL NOT NULL,
    learning_rate REAL NOT NULL,
    duration_ns INTEGER NOT NULL,
    PRIMARY KEY (run_id, epoch)
);
`

// RunInfo describes the configuration of a stored run.
type RunInfo struct {
	ID           int64
	ModelName    string
	Optimizer    string
	BatchSize    int
	Epochs       int
	LearningRate float64
	Device       string
	TrainSize    int
	ValSize      int
	StartedAt    time.Time
}

// Run is a stored run with its history.
type Run struct {
	Info    RunInfo
	History *history.History
}

// Store persists training runs in SQLite.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun writes info and every epoch of h in one transaction and returns
// the new run id.
func (s *Store) SaveRun(ctx context.Context, info RunInfo, h *history.History) (int64, error) {
	if h == nil {
		return 0, errors.New("store: nil history")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `
        INSERT INTO training_runs (
            model_name, optimizer, batch_size, epochs, learning_rate, device,
            train_size, val_size, best_epoch, restored, started_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		info.ModelName, info.Optimizer, info.BatchSize, info.Epochs, info.LearningRate, info.Device,
		info.TrainSize, info.ValSize, h.BestEpoch, h.Restored, info.StartedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO epoch_metrics (
            run_id, epoch, train_loss, train_accuracy, val_loss, val_accuracy, learning_rate, duration_ns
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, rec := range h.Epochs {
		if _, err := stmt.ExecContext(ctx, id, rec.Epoch, rec.TrainLoss, rec.TrainAccuracy,
			rec.ValLoss, rec.ValAccuracy, rec.LearningRate, int64(rec.Duration)); err != nil {
			return 0, fmt.Errorf("insert epoch %d: %w", rec.Epoch, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// LoadRun reads a run and its epochs.
func (s *Store) LoadRun(ctx context.Context, id int64) (*Run, error) {
	var (
		info      RunInfo
		h         history.History
		startedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
        SELECT id, model_name, optimizer, batch_size, epochs, learning_rate, device,
               train_size, val_size, best_epoch, restored, started_at
        FROM training_runs WHERE id = ?`, id).Scan(
		&info.ID, &info.ModelName, &info.Optimizer, &info.BatchSize, &info.Epochs, &info.LearningRate,
		&info.Device, &info.TrainSize, &info.ValSize, &h.BestEpoch, &h.Restored, &startedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	info.StartedAt = time.UnixMilli(startedAt)

	rows, err := s.db.QueryContext(ctx, `
        SELECT epoch, train_loss, train_accuracy, val_loss, val_accuracy, learning_rate, duration_ns
        FROM epoch_metrics WHERE run_id = ? ORDER BY epoch`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec history.EpochRecord
			ns  int64
		)
		if err := rows.Scan(&rec.Epoch, &rec.TrainLoss, &rec.TrainAccuracy, &rec.ValLoss,
			&rec.ValAccuracy, &rec.LearningRate, &ns); err != nil {
			return nil, err
		}
		rec.Duration = time.Duration(ns)
		h.Epochs = append(h.Epochs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &Run{Info: info, History: &h}, nil
}

// ListRuns returns every stored run, newest first, without epoch detail.
func (s *Store) ListRuns(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, model_name, optimizer, batch_size, epochs, learning_rate, device,
               train_size, val_size, started_at
        FROM training_runs ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]RunInfo, 0)
	for rows.Next() {
		var (
			info      RunInfo
			startedAt int64
		)
		if err := rows.Scan(&info.ID, &info.ModelName, &info.Optimizer, &info.BatchSize, &info.Epochs,
			&info.LearningRate, &info.Device, &info.TrainSize, &info.ValSize, &startedAt); err != nil {
			return nil, err
		}
		info.StartedAt = time.UnixMilli(startedAt)
		runs = append(runs, info)
	}
	return runs, rows.Err()
}
