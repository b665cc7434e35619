package training

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/table"
)

// #region kfold
// KFold splits n rows into k contiguous folds in order. The first n%k folds
// hold one row more than the rest.
func KFold(n, k int) ([]Fold, error) {
	if k < 2 || k > n {
		return nil, fmt.Errorf("%w: %d folds for %d training rows", ErrInvalidFoldCount, k, n)
	}
	folds := make([]Fold, k)
	start := 0
	for i := range folds {
		size := n / k
		if i < n%k {
			size++
		}
		folds[i] = Fold{Start: start, End: start + size}
		start += size
	}
	return folds, nil
}

// #endregion kfold

// #region dataset
// dataset converts the feature table and labels into a matrix and a label
// vector. Missing features become NaN; text anywhere and missing labels are
// rejected.
func dataset(features *table.Table, labels *table.Column) (*mat.Dense, []float64, error) {
	if features == nil || features.Rows() == 0 {
		return nil, nil, fmt.Errorf("%w: no rows", ErrDataset)
	}
	if features.Width() == 0 {
		return nil, nil, fmt.Errorf("%w: need at least one feature column and a label", ErrDataset)
	}
	if labels == nil {
		return nil, nil, fmt.Errorf("%w: no label column", ErrDataset)
	}
	n := features.Rows()
	if labels.Len() != n {
		return nil, nil, fmt.Errorf("%w: %d rows, %d labels", ErrDataset, n, labels.Len())
	}

	X := mat.NewDense(n, features.Width(), nil)
	for j := 0; j < features.Width(); j++ {
		col := features.ColumnAt(j)
		for i, v := range col.Values {
			if v.IsMissing() {
				X.Set(i, j, math.NaN())
				continue
			}
			f, ok := v.Float()
			if !ok {
				return nil, nil, fmt.Errorf("%w: row %d column %q holds %q, want a number", ErrDataset, i, col.Name, v.Str)
			}
			X.Set(i, j, f)
		}
	}

	y := make([]float64, n)
	for i, v := range labels.Values {
		f, ok := v.Float()
		if !ok {
			return nil, nil, fmt.Errorf("%w: row %d label %q holds %q, want a number", ErrDataset, i, labels.Name, v.Key())
		}
		y[i] = f
	}
	return X, y, nil
}

// subset copies the rows idx of X and y, in that order.
func subset(X *mat.Dense, y []float64, idx []int) (*mat.Dense, []float64) {
	_, c := X.Dims()
	out := mat.NewDense(len(idx), c, nil)
	outY := make([]float64, len(idx))
	for r, i := range idx {
		out.SetRow(r, X.RawRowView(i))
		outY[r] = y[i]
	}
	return out, outY
}

// #endregion dataset
