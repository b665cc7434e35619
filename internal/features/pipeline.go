// Package features turns a raw table into the fixed feature schema the
// classifiers are trained on.
package features

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/table"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/transform"
)

// #region apply
// Apply runs the pipeline on a copy of raw. The label column, when present, is
// split off first and returned untouched; the features are transformed step by
// step, missing cells are filled and the result is checked against Schema.
func (p *Pipeline) Apply(raw *table.Table) (Result, error) {
	if raw == nil {
		return Result{}, fmt.Errorf("%w: nil input table", ErrSchemaViolation)
	}
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}

	t := raw.Clone()
	var labels *table.Column
	if p.Target != "" && t.Has(p.Target) {
		c, err := t.Remove(p.Target)
		if err != nil {
			return Result{}, err
		}
		labels = &c
	}

	if p.UnnamedPrefix != "" {
		if err := dropUnnamed(t, p.UnnamedPrefix); err != nil {
			return Result{}, err
		}
	}

	for i, s := range p.Steps {
		if err := s.apply(t, log); err != nil {
			return Result{}, fmt.Errorf("step %d %s: %w", i+1, s.Kind(), err)
		}
	}

	filled, err := fillMissing(t, p.FillValue)
	if err != nil {
		return Result{}, err
	}

	out, err := p.enforceSchema(filled)
	if err != nil {
		return Result{}, err
	}

	schema := append([]string(nil), p.Schema...)
	if labels != nil {
		schema = append(schema, labels.Name)
	}
	return Result{Features: out, Labels: labels, Schema: schema}, nil
}

// dropUnnamed removes serialized index columns: names with the prefix and
// the empty header.
func dropUnnamed(t *table.Table, prefix string) error {
	for _, name := range t.Names() {
		if name == "" || strings.HasPrefix(name, prefix) {
			if _, err := t.Remove(name); err != nil {
				return err
			}
		}
	}
	return nil
}

func fillMissing(t *table.Table, v float64) (*table.Table, error) {
	cols := make([]table.Column, t.Width())
	for i := range cols {
		c := t.ColumnAt(i)
		cols[i] = table.Column{Name: c.Name, Values: transform.FillMissing(c.Values, v)}
	}
	return table.New(cols...)
}

func (p *Pipeline) enforceSchema(t *table.Table) (*table.Table, error) {
	if t.Width() != len(p.Schema) {
		return nil, fmt.Errorf("%w: count mismatch: computed %d columns, schema has %d (computed: %s)",
			ErrSchemaViolation, t.Width(), len(p.Schema), strings.Join(t.Names(), ", "))
	}
	for _, name := range p.Schema {
		if !t.Has(name) {
			return nil, fmt.Errorf("%w: schema column %q was not produced", ErrSchemaViolation, name)
		}
	}
	return t.Select(p.Schema...)
}

// #endregion apply

// #region steps
func column(t *table.Table, name string) (table.Column, error) {
	c, err := t.Column(name)
	if err != nil {
		return table.Column{}, fmt.Errorf("%w: missing input column %q", ErrSchemaViolation, name)
	}
	return c, nil
}

func (s Drop) apply(t *table.Table, _ *slog.Logger) error {
	for _, name := range s.Columns {
		if !t.Has(name) {
			return fmt.Errorf("%w: missing input column %q", ErrSchemaViolation, name)
		}
	}
	return t.Drop(s.Columns...)
}

func (s Scale) apply(t *table.Table, _ *slog.Logger) error {
	for _, name := range s.Columns {
		c, err := column(t, name)
		if err != nil {
			return err
		}
		scaled, err := transform.Scale(c.Values)
		if err != nil {
			return fmt.Errorf("scale %q: %w", name, err)
		}
		if err := t.MoveToEnd(name, scaled); err != nil {
			return err
		}
	}
	return nil
}

func (s OrdinalMap) apply(t *table.Table, log *slog.Logger) error {
	c, err := column(t, s.Column)
	if err != nil {
		return err
	}
	mapped, misses := transform.OrdinalMap(c.Values, s.Mapping)
	if misses > 0 {
		log.Warn("unmapped values passed through", "column", s.Column, "count", misses)
	}
	return t.MoveToEnd(s.Column, mapped)
}

func (s SubstringOrdinalMap) apply(t *table.Table, _ *slog.Logger) error {
	c, err := column(t, s.Column)
	if err != nil {
		return err
	}
	return t.MoveToEnd(s.Column, transform.SubstringOrdinalMap(c.Values, transform.CharAt(s.Position), s.Mapping))
}

func (s NumericCoerce) apply(t *table.Table, _ *slog.Logger) error {
	for _, name := range s.Columns {
		c, err := column(t, name)
		if err != nil {
			return err
		}
		if err := t.MoveToEnd(name, transform.NumericCoerce(c.Values, s.Default)); err != nil {
			return err
		}
	}
	return nil
}

func (s OneHot) apply(t *table.Table, log *slog.Logger) error {
	c, err := t.Remove(s.Column)
	if err != nil {
		return fmt.Errorf("%w: missing input column %q", ErrSchemaViolation, s.Column)
	}
	cats := s.Categories
	if cats == nil {
		cats = transform.ObservedCategories(c.Values)
	}
	enc := transform.OneHot(c.Values, s.Column, cats)
	for cat, n := range enc.Unknown {
		log.Warn("category outside the expected universe", "column", s.Column, "category", cat, "count", n)
	}
	for _, ind := range enc.Columns {
		if err := t.Append(ind); err != nil {
			return err
		}
	}
	return nil
}

func (s BucketMap) apply(t *table.Table, _ *slog.Logger) error {
	c, err := column(t, s.Column)
	if err != nil {
		return err
	}
	return t.MoveToEnd(s.Column, transform.BucketMap(c.Values, s.Mapping, s.Default))
}

// #endregion steps
