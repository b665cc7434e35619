package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"
)

// LoadParamsFile reads a flat YAML mapping of option names to values. Values
// are rendered back to the command-line spelling: null becomes None, booleans
// become True or False and nested mappings become JSON objects.
func LoadParamsFile(path string) (Raw, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read params file: %w", err)
	}
	raw, err := ParseParams(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return raw, nil
}

// ParseParams decodes the YAML form read by LoadParamsFile.
func ParseParams(data []byte) (Raw, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	out := make(Raw, len(doc))
	for k, v := range doc {
		s, err := render(v)
		if err != nil {
			return nil, fmt.Errorf("%w for %s: %v", ErrInvalidValue, k, err)
		}
		out[k] = s
	}
	return out, nil
}

func render(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return None, nil
	case bool:
		if x {
			return "True", nil
		}
		return "False", nil
	case string:
		return x, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case []any:
		return "", fmt.Errorf("lists are not supported")
	default:
		return fmt.Sprint(x), nil
	}
}
