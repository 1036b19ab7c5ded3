package models

import (
	"fmt"
)

// Features is the raw feature set of a single observation, as produced by a
// source connector. Values are opaque to the stream engine except for the
// configured moment, delay and key fields.
type Features map[string]interface{}

// Field returns a field value rendered as a string.
func (x Features) Field(name string) string {
	if x == nil {
		return ""
	}
	v, ok := x[name]
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case int:
		return fmt.Sprintf("%d", val)
	case int64:
		return fmt.Sprintf("%d", val)
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%f", val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Clone returns a deep copy of the feature set. Nested maps and slices are
// copied recursively so downstream mutation cannot reach the original.
func (x Features) Clone() Features {
	if x == nil {
		return nil
	}
	out := make(Features, len(x))
	for k, v := range x {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case Features:
		return val.Clone()
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[k] = cloneValue(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return val
	}
}
