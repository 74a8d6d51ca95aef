package utils

import (
	"encoding/json"
	"testing"
)

func TestGetFloat64(t *testing.T) {
	tests := []struct {
		name   string
		m      map[string]interface{}
		key    string
		want   float64
		wantOK bool
	}{
		{"float64", map[string]interface{}{"v": 0.5}, "v", 0.5, true},
		{"int", map[string]interface{}{"v": 3}, "v", 3, true},
		{"int64 from cbor", map[string]interface{}{"v": int64(-2)}, "v", -2, true},
		{"uint64 from cbor", map[string]interface{}{"v": uint64(7)}, "v", 7, true},
		{"json number", map[string]interface{}{"v": json.Number("1e-3")}, "v", 1e-3, true},
		{"bad json number", map[string]interface{}{"v": json.Number("x")}, "v", 0, false},
		{"string", map[string]interface{}{"v": "1"}, "v", 0, false},
		{"missing key", map[string]interface{}{"other": 1.0}, "v", 0, false},
		{"nil map", nil, "v", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := GetFloat64(tt.m, tt.key)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("GetFloat64() = (%v, %v), want (%v, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
