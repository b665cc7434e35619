package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/tracking"
)

type usageError struct{ err error }

func (u usageError) Error() string { return u.err.Error() }
func (u usageError) Unwrap() error { return u.err }

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
	var dbPath, runID string
	var last int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:           "inspect",
		Short:         "List tracked training runs or show one run in detail",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			if dbPath == "" {
				return usageError{errors.New("usage: inspect --db path/to/runs.db [--last N] [--run id] [--json]")}
			}
			if _, err := os.Stat(dbPath); err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			store, err := tracking.NewStore(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if runID != "" {
				return runDetailMode(store, runID, jsonOut)
			}
			return runListMode(store, last, jsonOut)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })

	f := cmd.Flags()
	f.StringVar(&dbPath, "db", envOr("LCT_TRACKING_DB", "runs.db"), "tracking database")
	f.IntVar(&last, "last", 20, "show N most recent runs")
	f.StringVar(&runID, "run", "", "show a single run in detail")
	f.BoolVar(&jsonOut, "json", false, "output as JSON instead of a table")
	return cmd
}

// #endregion main

// #region list-mode

type listRow struct {
	RunID     string   `json:"run_id"`
	Family    string   `json:"family"`
	Status    string   `json:"status"`
	Folds     int      `json:"folds"`
	TestAcc   *float64 `json:"test_acc,omitempty"`
	TestLoss  *float64 `json:"test_loss,omitempty"`
	CreatedAt string   `json:"created_at"`
}

func runListMode(store *tracking.Store, last int, jsonOut bool) error {
	runs, err := store.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}

	// Store returns newest first; print oldest first.
	rows := make([]listRow, len(runs))
	for i, rec := range runs {
		metrics, err := store.RunMetrics(rec.RunID)
		if err != nil {
			return err
		}
		r := listRow{
			RunID:     rec.RunID,
			Family:    rec.Family,
			Status:    rec.Status,
			Folds:     rec.Folds,
			CreatedAt: formatTime(rec.CreatedAt),
		}
		r.TestAcc = scalar(metrics, "test_acc")
		r.TestLoss = scalar(metrics, "test_loss")
		rows[len(runs)-1-i] = r
	}

	if jsonOut {
		return printJSON(rows)
	}
	fmt.Printf("%-10s  %-7s  %-10s  %5s  %8s  %9s  %s\n",
		"Run", "Family", "Status", "Folds", "Test Acc", "Test Loss", "Time")
	fmt.Printf("%-10s+-%-7s+-%-10s+-%5s+-%8s+-%9s+-%s\n",
		"----------", "-------", "----------", "-----", "--------", "---------", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-10s  %-7s  %-10s  %5d  %8s  %9s  %s\n",
			shortID(r.RunID), r.Family, r.Status, r.Folds, optional(r.TestAcc), optional(r.TestLoss), r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type metricRow struct {
	Key   string  `json:"key"`
	Step  int     `json:"step"`
	Value float64 `json:"value"`
}

type detailOutput struct {
	RunID        string            `json:"run_id"`
	Family       string            `json:"family"`
	ModelName    string            `json:"model_name"`
	DataPath     string            `json:"data_path"`
	Status       string            `json:"status"`
	Seed         int64             `json:"seed"`
	Folds        int               `json:"folds"`
	TestSize     float64           `json:"test_size"`
	ArtifactPath string            `json:"artifact_path,omitempty"`
	Error        string            `json:"error,omitempty"`
	CreatedAt    string            `json:"created_at"`
	FinishedAt   string            `json:"finished_at,omitempty"`
	Options      map[string]string `json:"options"`
	Params       map[string]string `json:"params"`
	Metrics      []metricRow       `json:"metrics"`
}

func runDetailMode(store *tracking.Store, runID string, jsonOut bool) error {
	rec, err := store.GetRun(runID)
	if err != nil {
		return err
	}
	params, err := store.RunParams(runID)
	if err != nil {
		return err
	}
	metrics, err := store.RunMetrics(runID)
	if err != nil {
		return err
	}

	out := detailOutput{
		RunID:        rec.RunID,
		Family:       rec.Family,
		ModelName:    rec.ModelName,
		DataPath:     rec.DataPath,
		Status:       rec.Status,
		Seed:         rec.Seed,
		Folds:        rec.Folds,
		TestSize:     rec.TestSize,
		ArtifactPath: rec.ArtifactPath,
		Error:        rec.Error,
		CreatedAt:    formatTime(rec.CreatedAt),
		Options:      rec.Options,
		Params:       make(map[string]string, len(params)),
		Metrics:      make([]metricRow, len(metrics)),
	}
	if !rec.FinishedAt.IsZero() {
		out.FinishedAt = formatTime(rec.FinishedAt)
	}
	for _, p := range params {
		out.Params[p.Key] = p.Value
	}
	for i, m := range metrics {
		out.Metrics[i] = metricRow{Key: m.Key, Step: m.Step, Value: m.Value}
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Run:        %s\n", out.RunID)
	fmt.Printf("Family:     %s\n", out.Family)
	fmt.Printf("Model:      %s\n", out.ModelName)
	fmt.Printf("Data:       %s\n", out.DataPath)
	fmt.Printf("Status:     %s\n", out.Status)
	fmt.Printf("Seed:       %d\n", out.Seed)
	fmt.Printf("Folds:      %d\n", out.Folds)
	fmt.Printf("Test size:  %g\n", out.TestSize)
	fmt.Printf("Created:    %s\n", out.CreatedAt)
	if out.FinishedAt != "" {
		fmt.Printf("Finished:   %s\n", out.FinishedAt)
	}
	if out.ArtifactPath != "" {
		fmt.Printf("Artifact:   %s\n", out.ArtifactPath)
	}
	if out.Error != "" {
		fmt.Printf("Error:      %s\n", out.Error)
	}

	fmt.Printf("\nParams:\n")
	for _, p := range params {
		fmt.Printf("  %-14s %s\n", p.Key, p.Value)
	}
	fmt.Printf("\nMetrics:\n")
	for _, m := range out.Metrics {
		fmt.Printf("  %-14s %3d  %.6f\n", m.Key, m.Step, m.Value)
	}
	return nil
}

// #endregion detail-mode

// #region output

func scalar(metrics []tracking.Metric, key string) *float64 {
	for _, m := range metrics {
		if m.Key == key {
			v := m.Value
			return &v
		}
	}
	return nil
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion output
