package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/replay"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/tracking"
)

type usageError struct{ err error }

func (u usageError) Error() string { return u.err.Error() }
func (u usageError) Unwrap() error { return u.err }

// errDiverged is returned after the comparison table when metrics differ.
var errDiverged = errors.New("replay diverged from the recorded run")

// #region main
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var ue usageError
		if errors.As(err, &ue) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dbPath, runID, dataPath string
	var tolerance float64

	cmd := &cobra.Command{
		Use:           "replay",
		Short:         "Re-run a tracked training run and compare its metrics",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			if dbPath == "" || runID == "" {
				return usageError{errors.New("usage: replay --db path/to/runs.db --run id [--data path] [--tolerance x]")}
			}
			if tolerance < 0 {
				return usageError{fmt.Errorf("--tolerance %g: want a value >= 0", tolerance)}
			}
			store, err := tracking.NewStore(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := replay.Run(store, runID, dataPath, tolerance)
			if err != nil {
				return err
			}
			if !printReport(report) {
				return errDiverged
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })

	f := cmd.Flags()
	f.StringVar(&dbPath, "db", envOr("LCT_TRACKING_DB", "runs.db"), "tracking database")
	f.StringVar(&runID, "run", "", "run to replay")
	f.StringVar(&dataPath, "data", "", "processed CSV, default is the recorded path")
	f.Float64Var(&tolerance, "tolerance", 0, "largest accepted metric difference")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion main

// #region output

// printReport prints the mismatches and a summary line. It reports whether
// the replay reproduced the run.
func printReport(r replay.Report) bool {
	if len(r.Mismatches) > 0 || len(r.Extra) > 0 {
		fmt.Printf("%-12s| %4s | %-12s| %-12s\n", "Metric", "Step", "Recorded", "Replayed")
		fmt.Printf("%-12s+%6s+%-13s+%-12s\n", "------------", "------", "-------------", "------------")
	}
	for _, m := range r.Mismatches {
		replayed := "missing"
		if !m.Missing {
			replayed = fmt.Sprintf("%.6f", m.Replayed)
		}
		fmt.Printf("%-12s| %4d | %-12.6f| %s\n", m.Key, m.Step, m.Recorded, replayed)
	}
	for _, m := range r.Extra {
		fmt.Printf("%-12s| %4d | %-12s| %.6f\n", m.Key, m.Step, "missing", m.Value)
	}

	fmt.Printf("\nRun %s: %d compared, %d diverge, %d extra\n",
		r.RunID, r.Compared, len(r.Mismatches), len(r.Extra))
	return r.OK()
}

// #endregion output
