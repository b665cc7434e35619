package tracking

import "time"

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// #region run-record
// RunRecord is one training run. Options holds the raw option values the
// run was started with, so it can be replayed.
type RunRecord struct {
	RunID        string
	Family       string
	ModelName    string
	DataPath     string
	Options      map[string]string
	Seed         int64
	Folds        int // 0 when cross-validation is off
	TestSize     float64
	Status       string
	ArtifactPath string
	Error        string
	CreatedAt    time.Time
	FinishedAt   time.Time
}

// #endregion run-record

// #region metric
// Param is one logged run parameter.
type Param struct {
	Key   string
	Value string
}

// Metric is one logged value. Sequences are stored one row per step.
type Metric struct {
	Key   string
	Step  int
	Value float64
}

// #endregion metric
