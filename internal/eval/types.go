package eval

// #region eval-config
// Config holds the thresholds a test partition has to meet.
type Config struct {
	MinAccuracy float64 // fail below this accuracy
	MaxLoss     float64 // fail above this mean squared error
	// Baseline is informational: accuracy under it is reported, never failed.
	Baseline float64
}

// DefaultConfig returns thresholds for a balanced binary problem.
func DefaultConfig() Config {
	return Config{
		MinAccuracy: 0.5,
		MaxLoss:     0.5,
		Baseline:    0.8,
	}
}

// #endregion eval-config

// #region eval-metric
// Metric captures a single check result.
type Metric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// Result is the output of the quality gate.
type Result struct {
	Passed  bool
	Metrics []Metric
	Reason  string
}

// #endregion eval-result
