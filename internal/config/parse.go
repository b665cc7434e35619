// Package config turns the string-valued command-line options of the
// training binaries into typed parameter structs. Parsers only coerce types;
// range checks belong to the component that consumes the value.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidValue is returned when an option value cannot be coerced.
var ErrInvalidValue = errors.New("invalid value")

// None is the spelling of an unset optional value.
const None = "None"

func invalid(name, value, want string) error {
	return fmt.Errorf("%w for %s: %q is not %s", ErrInvalidValue, name, value, want)
}

// #region scalars
// ParseInt parses a required integer option.
func ParseInt(name, value string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, invalid(name, value, "an integer")
	}
	return v, nil
}

// ParseInt64 parses a required 64-bit integer option.
func ParseInt64(name, value string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, invalid(name, value, "an integer")
	}
	return v, nil
}

// ParseFloat parses a required finite float option. Integers are accepted.
func ParseFloat(name, value string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, invalid(name, value, "a number")
	}
	return v, nil
}

// ParseOptionalInt parses an integer or "None" (nil).
func ParseOptionalInt(name, value string) (*int, error) {
	if isNone(value) {
		return nil, nil
	}
	v, err := ParseInt(name, value)
	if err != nil {
		return nil, invalid(name, value, "an integer or None")
	}
	return &v, nil
}

// ParseOptionalInt64 parses a 64-bit integer or "None" (nil).
func ParseOptionalInt64(name, value string) (*int64, error) {
	if isNone(value) {
		return nil, nil
	}
	v, err := ParseInt64(name, value)
	if err != nil {
		return nil, invalid(name, value, "an integer or None")
	}
	return &v, nil
}

// ParseOptionalFloat parses a float or "None" (nil).
func ParseOptionalFloat(name, value string) (*float64, error) {
	if isNone(value) {
		return nil, nil
	}
	v, err := ParseFloat(name, value)
	if err != nil {
		return nil, invalid(name, value, "a number or None")
	}
	return &v, nil
}

// ParseBool accepts the usual spellings of true and false.
func ParseBool(name, value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "t", "1", "yes":
		return true, nil
	case "false", "f", "0", "no":
		return false, nil
	}
	return false, invalid(name, value, "a boolean")
}

func isNone(value string) bool {
	v := strings.TrimSpace(value)
	return v == None || v == ""
}

// #endregion scalars

// #region composite
// Threshold is a sample count, or a fraction of the sample count.
type Threshold struct {
	Count      int     `json:"count,omitempty"`
	Fraction   float64 `json:"fraction,omitempty"`
	IsFraction bool    `json:"is_fraction,omitempty"`
}

// Resolve returns the threshold as a count for n samples.
func (t Threshold) Resolve(n int) int {
	if t.IsFraction {
		return int(math.Ceil(t.Fraction * float64(n)))
	}
	return t.Count
}

// ParseThreshold reads an integer as a count and anything else as a fraction.
func ParseThreshold(name, value string) (Threshold, error) {
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return Threshold{Count: v}, nil
	}
	f, err := ParseFloat(name, value)
	if err != nil {
		return Threshold{}, invalid(name, value, "an integer or a fraction")
	}
	return Threshold{Fraction: f, IsFraction: true}, nil
}

// Feature sampling modes.
const (
	FeaturesAuto     = "auto"
	FeaturesSqrt     = "sqrt"
	FeaturesLog2     = "log2"
	FeaturesAll      = "all"
	FeaturesCount    = "count"
	FeaturesFraction = "fraction"
)

// MaxFeatures is the number of features a tree considers at each split.
type MaxFeatures struct {
	Mode     string  `json:"mode"`
	Count    int     `json:"count,omitempty"`
	Fraction float64 `json:"fraction,omitempty"`
}

// Resolve returns the number of features to sample out of n, at least 1.
func (m MaxFeatures) Resolve(n int) int {
	var k int
	switch m.Mode {
	case FeaturesAuto, FeaturesSqrt:
		k = int(math.Sqrt(float64(n)))
	case FeaturesLog2:
		k = int(math.Log2(float64(n)))
	case FeaturesCount:
		k = m.Count
	case FeaturesFraction:
		k = int(m.Fraction * float64(n))
	default:
		k = n
	}
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k
}

// ParseMaxFeatures accepts auto, sqrt, log2, None, an integer or a float.
// A value with a decimal point is a fraction.
func ParseMaxFeatures(name, value string) (MaxFeatures, error) {
	v := strings.TrimSpace(value)
	switch v {
	case FeaturesAuto, FeaturesSqrt, FeaturesLog2:
		return MaxFeatures{Mode: v}, nil
	}
	if isNone(v) {
		return MaxFeatures{Mode: FeaturesAll}, nil
	}
	if i, err := strconv.Atoi(v); err == nil {
		return MaxFeatures{Mode: FeaturesCount, Count: i}, nil
	}
	f, err := ParseFloat(name, v)
	if err != nil {
		return MaxFeatures{}, invalid(name, value, "auto, sqrt, log2, None or a number")
	}
	return MaxFeatures{Mode: FeaturesFraction, Fraction: f}, nil
}

// Class weighting modes.
const (
	WeightNone              = ""
	WeightBalanced          = "balanced"
	WeightBalancedSubsample = "balanced_subsample"
	WeightExplicit          = "explicit"
)

// ClassWeight is the per-class sample weighting policy.
type ClassWeight struct {
	Mode    string             `json:"mode,omitempty"`
	Weights map[string]float64 `json:"weights,omitempty"`
}

// Weight returns the explicit weight of a class label, 1 when not listed.
func (c ClassWeight) Weight(label float64) float64 {
	if w, ok := c.Weights[strconv.FormatFloat(label, 'f', -1, 64)]; ok {
		return w
	}
	return 1
}

// ParseClassWeight accepts None, balanced, balanced_subsample or a JSON
// object mapping class labels to weights, e.g. {"0": 1, "1": 3}.
func ParseClassWeight(name, value string) (ClassWeight, error) {
	v := strings.TrimSpace(value)
	switch {
	case isNone(v):
		return ClassWeight{}, nil
	case v == WeightBalanced || v == WeightBalancedSubsample:
		return ClassWeight{Mode: v}, nil
	}

	var raw map[string]float64
	if err := json.Unmarshal([]byte(v), &raw); err != nil || len(raw) == 0 {
		return ClassWeight{}, invalid(name, value, `None, balanced, balanced_subsample or {"label": weight}`)
	}
	weights := make(map[string]float64, len(raw))
	for k, w := range raw {
		f, err := ParseFloat(name, k)
		if err != nil {
			return ClassWeight{}, invalid(name, value, "keyed by numeric class labels")
		}
		weights[strconv.FormatFloat(f, 'f', -1, 64)] = w
	}
	return ClassWeight{Mode: WeightExplicit, Weights: weights}, nil
}

// String renders the policy in the form ParseClassWeight reads.
func (c ClassWeight) String() string {
	switch c.Mode {
	case WeightNone:
		return None
	case WeightExplicit:
		keys := make([]string, 0, len(c.Weights))
		for k := range c.Weights {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%q: %s", k, strconv.FormatFloat(c.Weights[k], 'f', -1, 64))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return c.Mode
	}
}

// #endregion composite
