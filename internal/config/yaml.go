package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// coerceToJSONBytes turns a yaml config into JSON so one strict decoder
// (DisallowUnknownFields) serves both formats. Non-yaml extensions pass
// through untouched.
func coerceToJSONBytes(path string, data []byte) ([]byte, string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return data, "json", nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, "yaml", fmt.Errorf("yaml: %w", err)
	}
	j, err := json.Marshal(stringifyKeys(doc))
	if err != nil {
		return nil, "yaml", fmt.Errorf("yaml: %w", err)
	}
	return j, "yaml", nil
}

// stringifyKeys rewrites every map key to a string so the value can be
// JSON-marshaled. yaml/v3 decodes mappings to map[string]any in the common
// case; map[any]any shows up for non-scalar keys.
func stringifyKeys(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, inner := range x {
			x[k] = stringifyKeys(inner)
		}
		return x
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, inner := range x {
			out[fmt.Sprint(k)] = stringifyKeys(inner)
		}
		return out
	case []any:
		for i := range x {
			x[i] = stringifyKeys(x[i])
		}
		return x
	default:
		return v
	}
}
