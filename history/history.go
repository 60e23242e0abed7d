// Package history records finished training runs in a SQLite database so
// results can be compared across invocations.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts REAL NOT NULL,
	command TEXT NOT NULL,
	data_count INTEGER NOT NULL,
	range REAL NOT NULL,
	slope REAL NOT NULL,
	exponent INTEGER NOT NULL,
	learning_rate REAL NOT NULL,
	epochs INTEGER NOT NULL,
	iterations INTEGER NOT NULL,
	final_loss REAL,
	test_error REAL,
	mean_cost REAL
)`

// Run is one row of the runs table.
type Run struct {
	ID   int64
	Time time.Time

	Command string

	DataCount    int
	Range        float64
	Slope        float64
	Exponent     int
	LearningRate float64
	Epochs       int
	Iterations   int

	FinalLoss float64
	TestError float64
	MeanCost  float64
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.  Use ":memory:" for a
// throwaway store.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history path is empty")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("while opening %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("while creating runs table: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts r and returns its id.  A zero r.Time is replaced with the
// current time.
func (s *Store) Record(ctx context.Context, r Run) (int64, error) {
	if r.Time.IsZero() {
		r.Time = time.Now()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(ts, command, data_count, range, slope, exponent, learning_rate, epochs, iterations, final_loss, test_error, mean_cost)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		float64(r.Time.UnixMilli())/1000.0,
		r.Command,
		r.DataCount,
		r.Range,
		r.Slope,
		r.Exponent,
		r.LearningRate,
		r.Epochs,
		r.Iterations,
		r.FinalLoss,
		r.TestError,
		r.MeanCost,
	)
	if err != nil {
		return 0, fmt.Errorf("while inserting run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("while reading run id: %w", err)
	}
	return id, nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		return []Run{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, command, data_count, range, slope, exponent, learning_rate, epochs, iterations,
			COALESCE(final_loss, 0), COALESCE(test_error, 0), COALESCE(mean_cost, 0)
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("while querying runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		var ts float64
		if err := rows.Scan(
			&r.ID, &ts, &r.Command,
			&r.DataCount, &r.Range, &r.Slope, &r.Exponent,
			&r.LearningRate, &r.Epochs, &r.Iterations,
			&r.FinalLoss, &r.TestError, &r.MeanCost,
		); err != nil {
			return nil, fmt.Errorf("while scanning run: %w", err)
		}
		r.Time = time.UnixMilli(int64(math.Round(ts * 1000)))
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("while iterating runs: %w", err)
	}
	return runs, nil
}
