package table

import (
	"math"
	"strconv"
	"strings"
)

// #region value
// Kind tags the content of a single cell.
type Kind uint8

const (
	KindMissing Kind = iota
	KindNumber
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	default:
		return "missing"
	}
}

// Value is one heterogeneous cell: missing, a number or a string.
type Value struct {
	Kind Kind
	Num  float64
	Str  string
}

// Missing returns an empty cell.
func Missing() Value { return Value{Kind: KindMissing} }

// Number returns a numeric cell. NaN is stored as missing.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Missing()
	}
	return Value{Kind: KindNumber, Num: f}
}

// Text returns a string cell.
func Text(s string) Value { return Value{Kind: KindText, Str: s} }

func (v Value) IsMissing() bool { return v.Kind == KindMissing }

// Key is the category key used by lookup tables and one-hot column names.
// Numbers use the shortest exact decimal form, so 1.0 becomes "1".
func (v Value) Key() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindText:
		return v.Str
	default:
		return ""
	}
}

// Float returns the numeric value of the cell. Text cells are parsed after
// trimming surrounding whitespace; only finite results are accepted.
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindText:
		return parseFinite(v.Str)
	default:
		return 0, false
	}
}

// String renders the cell for CSV output. Missing renders as an empty field.
func (v Value) String() string {
	return v.Key()
}

// #endregion value

// #region column
// Column is a named, ordered slice of cells.
type Column struct {
	Name   string
	Values []Value
}

// Len returns the number of cells in the column.
func (c Column) Len() int { return len(c.Values) }

// Clone returns a deep copy of the column.
func (c Column) Clone() Column {
	vals := make([]Value, len(c.Values))
	copy(vals, c.Values)
	return Column{Name: c.Name, Values: vals}
}

// #endregion column

// #region parsing
// missingTokens are the cell spellings read as missing, matching the usual
// pandas defaults.
var missingTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// ParseCell infers the kind of a raw CSV field.
func ParseCell(raw string) Value {
	if _, ok := missingTokens[raw]; ok {
		return Missing()
	}
	if f, ok := parseFinite(raw); ok {
		return Number(f)
	}
	return Text(raw)
}

func parseFinite(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// #endregion parsing
