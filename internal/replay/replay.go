// Package replay re-runs a tracked training run with its recorded options
// and seed and compares the metrics it produces with the recorded ones.
package replay

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/features"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/model"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/tracking"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/training"
)

type metricKey struct {
	key  string
	step int
}

// #region compare
// Compare matches every recorded metric by key and step against the
// replayed values. Values within tolerance of each other are equal.
func Compare(recorded, replayed []tracking.Metric, tolerance float64) Report {
	got := make(map[metricKey]float64, len(replayed))
	for _, m := range replayed {
		got[metricKey{m.Key, m.Step}] = m.Value
	}

	var r Report
	seen := make(map[metricKey]bool, len(recorded))
	for _, m := range recorded {
		k := metricKey{m.Key, m.Step}
		seen[k] = true
		r.Compared++
		v, ok := got[k]
		switch {
		case !ok:
			r.Mismatches = append(r.Mismatches, Mismatch{Key: m.Key, Step: m.Step, Recorded: m.Value, Missing: true})
		case math.Abs(v-m.Value) > tolerance:
			r.Mismatches = append(r.Mismatches, Mismatch{Key: m.Key, Step: m.Step, Recorded: m.Value, Replayed: v})
		}
	}
	for _, m := range replayed {
		if !seen[metricKey{m.Key, m.Step}] {
			r.Extra = append(r.Extra, m)
		}
	}
	sort.Slice(r.Extra, func(i, j int) bool {
		if r.Extra[i].Key != r.Extra[j].Key {
			return r.Extra[i].Key < r.Extra[j].Key
		}
		return r.Extra[i].Step < r.Extra[j].Step
	})
	return r
}

// #endregion compare

// #region run
// Run replays runID from store. An empty dataPath uses the recorded one.
// The replayed model is not persisted.
func Run(store *tracking.Store, runID, dataPath string, tolerance float64) (Report, error) {
	rec, err := store.GetRun(runID)
	if err != nil {
		return Report{}, err
	}
	if dataPath == "" {
		dataPath = rec.DataPath
	}
	feats, labels, err := features.LoadProcessed(dataPath)
	if err != nil {
		return Report{}, fmt.Errorf("load %s: %w", dataPath, err)
	}
	factory, err := model.FactoryFor(rec.Family, rec.Options)
	if err != nil {
		return Report{}, fmt.Errorf("rebuild %s factory: %w", rec.Family, err)
	}

	sink := &recorder{}
	ev := &training.Evaluator{Sink: sink, Logger: slog.Default()}
	_, _, err = ev.Run(factory, feats, labels, training.Config{
		TestFraction: rec.TestSize,
		Folds:        rec.Folds,
		Seed:         rec.Seed,
		ModelName:    rec.ModelName,
	})
	if err != nil {
		return Report{}, fmt.Errorf("replay run %s: %w", runID, err)
	}

	recorded, err := store.RunMetrics(runID)
	if err != nil {
		return Report{}, err
	}
	report := Compare(recorded, sink.metrics, tolerance)
	report.RunID = runID
	return report, nil
}

// #endregion run

// recorder keeps replayed metrics in memory, one entry per step.
type recorder struct {
	metrics []tracking.Metric
}

func (r *recorder) LogParam(string, string) error { return nil }

func (r *recorder) LogScalar(key string, v float64) error {
	r.metrics = append(r.metrics, tracking.Metric{Key: key, Value: v})
	return nil
}

func (r *recorder) LogSequence(key string, vs []float64) error {
	for i, v := range vs {
		r.metrics = append(r.metrics, tracking.Metric{Key: key, Step: i, Value: v})
	}
	return nil
}
