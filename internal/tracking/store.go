// Package tracking records training runs and their metrics in SQLite.
package tracking

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
// Schema creates the tracking tables. Exported so sinks writing into the
// same database can be tested against it.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	family        TEXT NOT NULL,
	model_name    TEXT NOT NULL,
	data_path     TEXT NOT NULL,
	options_json  TEXT NOT NULL,
	seed          INTEGER NOT NULL,
	folds         INTEGER NOT NULL,
	test_size     REAL NOT NULL,
	status        TEXT NOT NULL,
	artifact_path TEXT,
	error         TEXT,
	created_at    TEXT NOT NULL,
	finished_at   TEXT
);

CREATE TABLE IF NOT EXISTS run_params (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	key           TEXT NOT NULL,
	value         TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS run_metrics (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	key           TEXT NOT NULL,
	step          INTEGER NOT NULL,
	value         REAL NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// #endregion schema

// #region store-struct
// Store manages training runs in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region create-run
// CreateRun inserts a run in the running state, assigning its ID and
// creation time.
func (s *Store) CreateRun(rec RunRecord) (RunRecord, error) {
	rec.RunID = uuid.New().String()
	rec.Status = StatusRunning
	rec.CreatedAt = time.Now().UTC()
	rec.FinishedAt = time.Time{}

	opts := rec.Options
	if opts == nil {
		opts = map[string]string{}
	}
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return RunRecord{}, fmt.Errorf("marshal options: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO runs (run_id, family, model_name, data_path, options_json, seed, folds, test_size, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Family, rec.ModelName, rec.DataPath, string(optsJSON),
		rec.Seed, rec.Folds, rec.TestSize, rec.Status, rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("insert run: %w", err)
	}
	return rec, nil
}

// #endregion create-run

// #region finish-run
// FinishRun records the final status of a run.
func (s *Store) FinishRun(runID, status, artifactPath, errText string) error {
	if status != StatusSucceeded && status != StatusFailed {
		return fmt.Errorf("finish run %s: invalid status %q", runID, status)
	}
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, artifact_path = ?, error = ?, finished_at = ? WHERE run_id = ?`,
		status, nullIfEmpty(artifactPath), nullIfEmpty(errText), time.Now().UTC().Format(time.RFC3339Nano), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, sql.ErrNoRows)
	}
	return nil
}

// #endregion finish-run

// #region get-run
const runColumns = `run_id, family, model_name, data_path, options_json, seed, folds, test_size,
	status, artifact_path, error, created_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var rec RunRecord
	var optsJSON, createdStr string
	var artifactPath, errText, finishedStr sql.NullString

	err := row.Scan(&rec.RunID, &rec.Family, &rec.ModelName, &rec.DataPath, &optsJSON,
		&rec.Seed, &rec.Folds, &rec.TestSize, &rec.Status, &artifactPath, &errText, &createdStr, &finishedStr)
	if err != nil {
		return RunRecord{}, err
	}
	if err := json.Unmarshal([]byte(optsJSON), &rec.Options); err != nil {
		return RunRecord{}, fmt.Errorf("unmarshal options: %w", err)
	}
	rec.ArtifactPath = artifactPath.String
	rec.Error = errText.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	if finishedStr.Valid {
		rec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedStr.String)
	}
	return rec, nil
}

// GetRun retrieves one run by ID.
func (s *Store) GetRun(runID string) (RunRecord, error) {
	rec, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID))
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return rec, nil
}

// #endregion get-run

// #region list-runs
// ListRuns returns the newest runs first, at most limit of them.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// #endregion list-runs

// #region run-rows
// RunMetrics returns every metric of a run ordered by key and step.
func (s *Store) RunMetrics(runID string) ([]Metric, error) {
	rows, err := s.db.Query(
		`SELECT key, step, value FROM run_metrics WHERE run_id = ? ORDER BY key, step, id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("run metrics %s: %w", runID, err)
	}
	defer rows.Close()

	var out []Metric
	for rows.Next() {
		var m Metric
		if err := rows.Scan(&m.Key, &m.Step, &m.Value); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RunParams returns every parameter of a run in logging order.
func (s *Store) RunParams(runID string) ([]Param, error) {
	rows, err := s.db.Query(`SELECT key, value FROM run_params WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("run params %s: %w", runID, err)
	}
	defer rows.Close()

	var out []Param
	for rows.Next() {
		var p Param
		if err := rows.Scan(&p.Key, &p.Value); err != nil {
			return nil, fmt.Errorf("scan param: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// #endregion run-rows

// #region helpers
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
