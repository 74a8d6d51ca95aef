// Package utils provides helpers for reading loosely typed node content.
package utils

import "encoding/json"

// GetFloat64 extracts a number from a map. Numbers decoded from JSON arrive
// as float64, those decoded from CBOR as integer types; both are accepted.
func GetFloat64(m map[string]interface{}, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}
