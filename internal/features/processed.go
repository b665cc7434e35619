package features

import (
	"fmt"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/table"
)

// LoadProcessed reads a processed CSV for training. Serialized index columns
// are dropped and the last column becomes the label.
func LoadProcessed(path string) (*table.Table, *table.Column, error) {
	t, err := table.ReadCSVFile(path)
	if err != nil {
		return nil, nil, err
	}
	return SplitLabel(t)
}

// SplitLabel drops index columns from t and splits off its last column as
// the label. t is modified.
func SplitLabel(t *table.Table) (*table.Table, *table.Column, error) {
	if err := dropUnnamed(t, UnnamedPrefix); err != nil {
		return nil, nil, err
	}
	if t.Width() == 0 {
		return nil, nil, fmt.Errorf("%w: no label column", ErrSchemaViolation)
	}
	label, err := t.Remove(t.ColumnAt(t.Width() - 1).Name)
	if err != nil {
		return nil, nil, err
	}
	return t, &label, nil
}
