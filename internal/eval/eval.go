// Package eval scores predictions and checks them against quality thresholds.
package eval

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrLength is returned when labels and predictions differ in length or are empty.
var ErrLength = errors.New("labels and predictions differ in length")

// #region metrics
// Accuracy returns the share of predictions equal to their label.
func Accuracy(labels, predictions []float64) (float64, error) {
	if err := checkLengths(labels, predictions); err != nil {
		return 0, err
	}
	hits := make([]float64, len(labels))
	for i := range labels {
		if labels[i] == predictions[i] {
			hits[i] = 1
		}
	}
	return stat.Mean(hits, nil), nil
}

// MSE returns the mean squared error between predictions and labels.
func MSE(labels, predictions []float64) (float64, error) {
	if err := checkLengths(labels, predictions); err != nil {
		return 0, err
	}
	diff := make([]float64, len(labels))
	floats.SubTo(diff, predictions, labels)
	return floats.Dot(diff, diff) / float64(len(diff)), nil
}

func checkLengths(labels, predictions []float64) error {
	if len(labels) == 0 || len(labels) != len(predictions) {
		return fmt.Errorf("%w: %d labels, %d predictions", ErrLength, len(labels), len(predictions))
	}
	return nil
}

// #endregion metrics

// #region eval-harness
// Harness is the quality gate run on the test partition.
type Harness struct {
	config Config
}

// NewHarness creates a harness with the given thresholds.
func NewHarness(config Config) *Harness {
	return &Harness{config: config}
}

// Run checks test accuracy and loss. The baseline check never fails the gate.
func (h *Harness) Run(accuracy, loss float64) Result {
	var metrics []Metric
	passed := true
	var failReasons []string

	accPass := accuracy >= h.config.MinAccuracy
	metrics = append(metrics, Metric{Name: "test_acc", Value: accuracy, Pass: accPass})
	if !accPass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("accuracy %.4f below %.4f", accuracy, h.config.MinAccuracy))
	}

	lossPass := loss <= h.config.MaxLoss
	metrics = append(metrics, Metric{Name: "test_loss", Value: loss, Pass: lossPass})
	if !lossPass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("loss %.4f exceeds %.4f", loss, h.config.MaxLoss))
	}

	metrics = append(metrics, Metric{
		Name:  "baseline",
		Value: accuracy - h.config.Baseline,
		Pass:  accuracy >= h.config.Baseline,
	})

	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return Result{
		Passed:  passed,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness
