package replay

import "github.com/danielpatrickdp/lendingclub-trainer/internal/tracking"

// #region types
// Mismatch is one recorded metric the replay did not reproduce.
type Mismatch struct {
	Key      string
	Step     int
	Recorded float64
	Replayed float64
	// Missing is set when the replay produced no value for the key and step.
	Missing bool
}

// Report is the outcome of comparing a replay against its recorded run.
type Report struct {
	RunID      string
	Compared   int
	Mismatches []Mismatch
	// Extra are replayed metrics the recorded run does not have.
	Extra []tracking.Metric
}

// OK reports whether every recorded metric was reproduced.
func (r Report) OK() bool {
	return len(r.Mismatches) == 0 && len(r.Extra) == 0
}

// #endregion types
