package features

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// ErrSpec is returned for a pipeline spec file that cannot be turned into steps.
var ErrSpec = errors.New("invalid pipeline spec")

// #region spec
type specDoc struct {
	Target        string     `yaml:"target"`
	UnnamedPrefix string     `yaml:"unnamed_prefix"`
	FillValue     float64    `yaml:"fill_value"`
	Schema        []string   `yaml:"schema"`
	Steps         []stepSpec `yaml:"steps"`
}

type stepSpec struct {
	Kind       string             `yaml:"kind"`
	Column     string             `yaml:"column,omitempty"`
	Columns    []string           `yaml:"columns,omitempty"`
	Position   *int               `yaml:"position,omitempty"`
	Mapping    map[string]float64 `yaml:"mapping,omitempty"`
	Categories []string           `yaml:"categories,omitempty"`
	Default    float64            `yaml:"default,omitempty"`
}

// LoadSpec reads a pipeline definition from a YAML file.
func LoadSpec(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline spec: %w", err)
	}
	p, err := ParseSpec(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ParseSpec decodes a YAML pipeline definition. Unknown fields, unknown step
// kinds and steps missing a required field are errors.
func ParseSpec(data []byte) (*Pipeline, error) {
	var doc specDoc
	if err := yaml.UnmarshalWithOptions(data, &doc, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpec, err)
	}
	if len(doc.Schema) == 0 {
		return nil, fmt.Errorf("%w: schema is empty", ErrSpec)
	}

	p := &Pipeline{
		Target:        doc.Target,
		UnnamedPrefix: doc.UnnamedPrefix,
		FillValue:     doc.FillValue,
		Schema:        doc.Schema,
		Steps:         make([]Step, 0, len(doc.Steps)),
	}
	for i, s := range doc.Steps {
		step, err := s.step()
		if err != nil {
			return nil, fmt.Errorf("%w: step %d: %v", ErrSpec, i+1, err)
		}
		p.Steps = append(p.Steps, step)
	}
	return p, nil
}

func (s stepSpec) step() (Step, error) {
	needColumns := func() error {
		if len(s.Columns) == 0 {
			return fmt.Errorf("%s needs columns", s.Kind)
		}
		return nil
	}
	needColumn := func() error {
		if s.Column == "" {
			return fmt.Errorf("%s needs column", s.Kind)
		}
		return nil
	}
	needMapping := func() error {
		if err := needColumn(); err != nil {
			return err
		}
		if len(s.Mapping) == 0 {
			return fmt.Errorf("%s needs mapping", s.Kind)
		}
		return nil
	}

	switch s.Kind {
	case "drop":
		if err := needColumns(); err != nil {
			return nil, err
		}
		return Drop{Columns: s.Columns}, nil
	case "scale":
		if err := needColumns(); err != nil {
			return nil, err
		}
		return Scale{Columns: s.Columns}, nil
	case "numeric_coerce":
		if err := needColumns(); err != nil {
			return nil, err
		}
		return NumericCoerce{Columns: s.Columns, Default: s.Default}, nil
	case "ordinal_map":
		if err := needMapping(); err != nil {
			return nil, err
		}
		return OrdinalMap{Column: s.Column, Mapping: s.Mapping}, nil
	case "substring_ordinal_map":
		if err := needMapping(); err != nil {
			return nil, err
		}
		if s.Position == nil || *s.Position < 0 {
			return nil, fmt.Errorf("%s needs a non-negative position", s.Kind)
		}
		return SubstringOrdinalMap{Column: s.Column, Position: *s.Position, Mapping: s.Mapping}, nil
	case "bucket_map":
		if err := needMapping(); err != nil {
			return nil, err
		}
		return BucketMap{Column: s.Column, Mapping: s.Mapping, Default: s.Default}, nil
	case "one_hot":
		if err := needColumn(); err != nil {
			return nil, err
		}
		return OneHot{Column: s.Column, Categories: s.Categories}, nil
	case "":
		return nil, fmt.Errorf("missing kind")
	default:
		return nil, fmt.Errorf("unknown kind %q", s.Kind)
	}
}

// MarshalSpec encodes a pipeline as YAML in the form ParseSpec reads.
func MarshalSpec(p *Pipeline) ([]byte, error) {
	doc := specDoc{
		Target:        p.Target,
		UnnamedPrefix: p.UnnamedPrefix,
		FillValue:     p.FillValue,
		Schema:        p.Schema,
		Steps:         make([]stepSpec, len(p.Steps)),
	}
	for i, st := range p.Steps {
		s := stepSpec{Kind: st.Kind()}
		switch v := st.(type) {
		case Drop:
			s.Columns = v.Columns
		case Scale:
			s.Columns = v.Columns
		case NumericCoerce:
			s.Columns, s.Default = v.Columns, v.Default
		case OrdinalMap:
			s.Column, s.Mapping = v.Column, v.Mapping
		case SubstringOrdinalMap:
			pos := v.Position
			s.Column, s.Position, s.Mapping = v.Column, &pos, v.Mapping
		case BucketMap:
			s.Column, s.Mapping, s.Default = v.Column, v.Mapping, v.Default
		case OneHot:
			s.Column, s.Categories = v.Column, v.Categories
		}
		doc.Steps[i] = s
	}
	return yaml.Marshal(doc)
}

// #endregion spec
