// Package transform holds the column-level feature transforms. Every function
// returns a new slice and leaves its input untouched. Apart from Scale they
// never fail: bad cells resolve to a documented default or pass through.
package transform

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/table"
)

// ErrDivideByZero is returned by Scale when the shifted column maximum is zero.
var ErrDivideByZero = errors.New("divide by zero")

// #region numeric-coerce
// NumericCoerce parses every cell as a finite number, substituting def when
// parsing fails. Every output cell is a number.
func NumericCoerce(col []table.Value, def float64) []table.Value {
	out := make([]table.Value, len(col))
	for i, v := range col {
		f, ok := v.Float()
		if !ok {
			f = def
		}
		out[i] = table.Number(f)
	}
	return out
}

// #endregion numeric-coerce

// #region scale
// Scale min-max normalizes a column in two passes: the column minimum is
// subtracted from every cell, then every cell is divided by the maximum of
// the shifted column. Missing cells, and text that does not parse, are
// ignored and come out missing.
func Scale(col []table.Value) ([]table.Value, error) {
	nums := make([]float64, 0, len(col))
	pos := make([]int, 0, len(col))
	for i, v := range col {
		if f, ok := v.Float(); ok {
			nums = append(nums, f)
			pos = append(pos, i)
		}
	}
	if len(nums) == 0 {
		return nil, ErrDivideByZero
	}

	floats.AddConst(-floats.Min(nums), nums)
	peak := floats.Max(nums)
	if peak == 0 {
		return nil, ErrDivideByZero
	}
	for i := range nums {
		nums[i] /= peak
	}

	out := make([]table.Value, len(col))
	for i := range out {
		out[i] = table.Missing()
	}
	for j, i := range pos {
		out[i] = table.Number(nums[j])
	}
	return out, nil
}

// #endregion scale

// #region ordinal
// OrdinalMap maps every cell through mapping by its key. A cell whose key is
// not in the mapping keeps its original value. The number of such misses
// (missing cells excluded) is returned alongside.
func OrdinalMap(col []table.Value, mapping map[string]float64) ([]table.Value, int) {
	out := make([]table.Value, len(col))
	misses := 0
	for i, v := range col {
		if v.IsMissing() {
			out[i] = v
			continue
		}
		if m, ok := mapping[v.Key()]; ok {
			out[i] = table.Number(m)
			continue
		}
		out[i] = v
		misses++
	}
	return out, misses
}

// Extractor pulls the part of a cell key that a SubstringOrdinalMap looks up.
type Extractor func(key string) (string, bool)

// CharAt extracts the byte at position i.
func CharAt(i int) Extractor {
	return func(key string) (string, bool) {
		if i < 0 || i >= len(key) {
			return "", false
		}
		return key[i : i+1], true
	}
}

// SubstringOrdinalMap extracts a part of every cell key and maps it. When the
// extraction fails or the part has no mapping the cell becomes DefaultBucket.
func SubstringOrdinalMap(col []table.Value, extract Extractor, mapping map[string]float64) []table.Value {
	out := make([]table.Value, len(col))
	for i, v := range col {
		out[i] = table.Number(DefaultBucket)
		if v.IsMissing() {
			continue
		}
		part, ok := extract(v.Key())
		if !ok {
			continue
		}
		if m, ok := mapping[part]; ok {
			out[i] = table.Number(m)
		}
	}
	return out
}

// DefaultBucket is the value substring and bucket lookups fall back to.
const DefaultBucket = 0

// BucketMap maps every cell key through mapping, using def on a miss.
func BucketMap(col []table.Value, mapping map[string]float64, def float64) []table.Value {
	out := make([]table.Value, len(col))
	for i, v := range col {
		m, ok := mapping[v.Key()]
		if v.IsMissing() || !ok {
			m = def
		}
		out[i] = table.Number(m)
	}
	return out
}

// #endregion ordinal

// #region one-hot
// Encoded is the output of OneHot.
type Encoded struct {
	Columns []table.Column
	// Unknown counts observed categories that have no indicator column.
	Unknown map[string]int
}

// OneHot expands a column into one 0/1 indicator column per category, named
// "<name>_<category>", in the order of categories. A category never observed
// yields an all-zero column. Observed categories outside the list get no
// column; their rows are zero in every indicator. Missing cells are never a
// category.
func OneHot(col []table.Value, name string, categories []string) Encoded {
	idx := make(map[string]int, len(categories))
	enc := Encoded{Columns: make([]table.Column, len(categories))}
	for j, c := range categories {
		idx[c] = j
		vals := make([]table.Value, len(col))
		for i := range vals {
			vals[i] = table.Number(0)
		}
		enc.Columns[j] = table.Column{Name: name + "_" + c, Values: vals}
	}
	for i, v := range col {
		if v.IsMissing() {
			continue
		}
		j, ok := idx[v.Key()]
		if !ok {
			if enc.Unknown == nil {
				enc.Unknown = make(map[string]int)
			}
			enc.Unknown[v.Key()]++
			continue
		}
		enc.Columns[j].Values[i] = table.Number(1)
	}
	return enc
}

// ObservedCategories returns the distinct non-missing keys of a column.
// Numbers sort numerically before text, text sorts lexically.
func ObservedCategories(col []table.Value) []string {
	seen := make(map[string]table.Value)
	for _, v := range col {
		if v.IsMissing() {
			continue
		}
		seen[v.Key()] = v
	}
	vals := make([]table.Value, 0, len(seen))
	for _, v := range seen {
		vals = append(vals, v)
	}
	sort.Slice(vals, func(a, b int) bool {
		va, vb := vals[a], vals[b]
		if va.Kind != vb.Kind {
			return va.Kind == table.KindNumber
		}
		if va.Kind == table.KindNumber {
			return va.Num < vb.Num
		}
		return va.Str < vb.Str
	})
	keys := make([]string, len(vals))
	for i, v := range vals {
		keys[i] = v.Key()
	}
	return keys
}

// #endregion one-hot

// #region fill
// FillMissing replaces missing cells with v.
func FillMissing(col []table.Value, v float64) []table.Value {
	out := make([]table.Value, len(col))
	for i, c := range col {
		if c.IsMissing() {
			c = table.Number(v)
		}
		out[i] = c
	}
	return out
}

// #endregion fill
