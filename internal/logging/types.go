package logging

import "time"

// #region entries
// ParamEntry is a single row in the run_params table.
type ParamEntry struct {
	RunID     string
	Key       string
	Value     string
	CreatedAt time.Time
}

// MetricEntry is a single row in the run_metrics table. Scalars use step 0.
type MetricEntry struct {
	RunID     string
	Key       string
	Step      int
	Value     float64
	CreatedAt time.Time
}

// #endregion entries
