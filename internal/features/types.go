package features

import (
	"errors"
	"log/slog"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/table"
)

// ErrSchemaViolation is returned when a step names an absent column or the
// computed columns do not match the fixed output schema.
var ErrSchemaViolation = errors.New("schema violation")

// Pipeline is an ordered, declarative description of the feature transforms.
type Pipeline struct {
	// Target is the label column name. Absent from the input means inference mode.
	Target string
	// UnnamedPrefix marks serialized index columns that are dropped up front.
	UnnamedPrefix string
	Steps         []Step
	// Schema is the fixed ordered list of output feature names.
	Schema    []string
	FillValue float64
	// Logger receives data-quality warnings. Nil uses slog.Default().
	Logger *slog.Logger
}

// Result is the output of Pipeline.Apply.
type Result struct {
	Features *table.Table
	// Labels is nil when the input had no target column.
	Labels *table.Column
	// Schema lists the output columns, the label last when present.
	Schema []string
}

// Table joins features and labels into one table with the label last.
func (r Result) Table() (*table.Table, error) {
	out := r.Features.Clone()
	if r.Labels != nil {
		if err := out.Append(r.Labels.Clone()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Step is one column operation. The set of steps is closed.
type Step interface {
	// Kind names the step in spec files and logs.
	Kind() string
	apply(t *table.Table, log *slog.Logger) error
}

// Drop removes columns.
type Drop struct {
	Columns []string
}

// Scale min-max normalizes each column in order.
type Scale struct {
	Columns []string
}

// OrdinalMap maps a categorical column through a lookup table. Misses pass
// through unchanged and are logged.
type OrdinalMap struct {
	Column  string
	Mapping map[string]float64
}

// SubstringOrdinalMap maps the character at Position of each cell. Misses
// become the default bucket.
type SubstringOrdinalMap struct {
	Column   string
	Position int
	Mapping  map[string]float64
}

// OneHot expands a column into indicator columns. A nil Categories list uses
// the categories observed in the data.
type OneHot struct {
	Column     string
	Categories []string
}

// NumericCoerce forces columns to numbers, substituting Default on failure.
type NumericCoerce struct {
	Columns []string
	Default float64
}

// BucketMap maps discrete buckets through a lookup table, Default on a miss.
type BucketMap struct {
	Column  string
	Mapping map[string]float64
	Default float64
}

func (Drop) Kind() string                { return "drop" }
func (Scale) Kind() string               { return "scale" }
func (OrdinalMap) Kind() string          { return "ordinal_map" }
func (SubstringOrdinalMap) Kind() string { return "substring_ordinal_map" }
func (OneHot) Kind() string              { return "one_hot" }
func (NumericCoerce) Kind() string       { return "numeric_coerce" }
func (BucketMap) Kind() string           { return "bucket_map" }
