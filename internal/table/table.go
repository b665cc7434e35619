package table

import (
	"errors"
	"fmt"
)

var (
	// ErrNoColumn is returned when a named column does not exist.
	ErrNoColumn = errors.New("no such column")
	// ErrDuplicateColumn is returned when a column name is already taken.
	ErrDuplicateColumn = errors.New("duplicate column")
	// ErrLength is returned when a column length differs from the table's row count.
	ErrLength = errors.New("column length mismatch")
)

// #region table
// Table is an ordered collection of equally long named columns.
type Table struct {
	cols []Column
	rows int
}

// New builds a table from columns. All columns must have the same length
// and distinct names. The columns are copied.
func New(cols ...Column) (*Table, error) {
	t := &Table{}
	for _, c := range cols {
		if err := t.Append(c.Clone()); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Rows returns the number of rows.
func (t *Table) Rows() int { return t.rows }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.cols) }

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Has reports whether a column exists.
func (t *Table) Has(name string) bool { return t.indexOf(name) >= 0 }

// Column returns the named column. The returned values must not be modified.
func (t *Table) Column(name string) (Column, error) {
	i := t.indexOf(name)
	if i < 0 {
		return Column{}, fmt.Errorf("%w: %q", ErrNoColumn, name)
	}
	return t.cols[i], nil
}

// ColumnAt returns the i-th column.
func (t *Table) ColumnAt(i int) Column { return t.cols[i] }

// Append adds a column at the end of the table.
func (t *Table) Append(c Column) error {
	if t.indexOf(c.Name) >= 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, c.Name)
	}
	if len(t.cols) == 0 && t.rows == 0 {
		t.rows = c.Len()
	}
	if c.Len() != t.rows {
		return fmt.Errorf("%w: %q has %d values, table has %d rows", ErrLength, c.Name, c.Len(), t.rows)
	}
	t.cols = append(t.cols, c)
	return nil
}

// Remove deletes the named column and returns it.
func (t *Table) Remove(name string) (Column, error) {
	i := t.indexOf(name)
	if i < 0 {
		return Column{}, fmt.Errorf("%w: %q", ErrNoColumn, name)
	}
	c := t.cols[i]
	t.cols = append(t.cols[:i:i], t.cols[i+1:]...)
	return c, nil
}

// Drop removes every named column. It fails on the first absent name and
// leaves the table unchanged in that case.
func (t *Table) Drop(names ...string) error {
	for _, n := range names {
		if !t.Has(n) {
			return fmt.Errorf("%w: %q", ErrNoColumn, n)
		}
	}
	for _, n := range names {
		if _, err := t.Remove(n); err != nil {
			return err
		}
	}
	return nil
}

// MoveToEnd replaces the named column's values and moves it to the last
// position.
func (t *Table) MoveToEnd(name string, values []Value) error {
	if _, err := t.Remove(name); err != nil {
		return err
	}
	return t.Append(Column{Name: name, Values: values})
}

// Select returns a new table with the named columns in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	out := &Table{rows: t.rows}
	for _, n := range names {
		c, err := t.Column(n)
		if err != nil {
			return nil, err
		}
		if err := out.Append(c.Clone()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{rows: t.rows, cols: make([]Column, len(t.cols))}
	for i, c := range t.cols {
		out.cols[i] = c.Clone()
	}
	return out
}

// Equal reports whether two tables have the same names and cells.
func (t *Table) Equal(o *Table) bool {
	if t.rows != o.rows || len(t.cols) != len(o.cols) {
		return false
	}
	for i, c := range t.cols {
		oc := o.cols[i]
		if c.Name != oc.Name {
			return false
		}
		for r, v := range c.Values {
			if v != oc.Values[r] {
				return false
			}
		}
	}
	return true
}

func (t *Table) indexOf(name string) int {
	for i, c := range t.cols {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// #endregion table
