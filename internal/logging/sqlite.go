package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// #region log-rows
// LogParamRow writes a parameter to the run_params table.
func LogParamRow(db execer, entry ParamEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := db.Exec(
		`INSERT INTO run_params (run_id, key, value, created_at) VALUES (?, ?, ?, ?)`,
		entry.RunID, entry.Key, entry.Value, entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log param %s: %w", entry.Key, err)
	}
	return nil
}

// LogMetricRow writes a metric value to the run_metrics table.
func LogMetricRow(db execer, entry MetricEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := db.Exec(
		`INSERT INTO run_metrics (run_id, key, step, value, created_at) VALUES (?, ?, ?, ?, ?)`,
		entry.RunID, entry.Key, entry.Step, entry.Value, entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log metric %s: %w", entry.Key, err)
	}
	return nil
}

// #endregion log-rows

// #region sqlite-sink
// SQLiteExperiment writes a run's parameters and metrics into the tracking database.
type SQLiteExperiment struct {
	DB    *sql.DB
	RunID string
}

func (s SQLiteExperiment) LogParam(key, value string) error {
	return LogParamRow(s.DB, ParamEntry{RunID: s.RunID, Key: key, Value: value})
}

func (s SQLiteExperiment) LogScalar(key string, v float64) error {
	return LogMetricRow(s.DB, MetricEntry{RunID: s.RunID, Key: key, Value: v})
}

// LogSequence writes one row per step in a single transaction.
func (s SQLiteExperiment) LogSequence(key string, vs []float64) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for i, v := range vs {
		if err := LogMetricRow(tx, MetricEntry{RunID: s.RunID, Key: key, Step: i, Value: v, CreatedAt: now}); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// #endregion sqlite-sink
