package loader

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

func decodeYAML(source string, data []byte) (map[string]any, error) {
	var settings map[string]any
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, &ParseError{Path: source, Message: err.Error(), Err: err}
	}
	normalizeYAML(settings)
	return settings, nil
}

// normalizeYAML rewrites nested maps with non-string keys, which yaml.v3
// produces for documents like `1: one`, as map[string]any so the result can
// be encoded as JSON.
func normalizeYAML(m map[string]any) {
	for k, v := range m {
		m[k] = normalizeYAMLValue(v)
	}
}

func normalizeYAMLValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		normalizeYAML(val)
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[fmt.Sprint(k)] = normalizeYAMLValue(inner)
		}
		return out
	case []any:
		for i, inner := range val {
			val[i] = normalizeYAMLValue(inner)
		}
		return val
	default:
		return v
	}
}
