package extract

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

func decode(body []byte) (any, error) {
	var out any
	err := json.Unmarshal(body, &out)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// Object returns v as a json object when it is one.
func Object(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func Array(v any) ([]any, bool) {
	a, ok := v.([]any)
	return a, ok
}

// Path walks nested objects by key.
func Path(v any, keys ...string) any {
	for _, k := range keys {
		m, ok := Object(v)
		if !ok {
			return nil
		}
		v = m[k]
	}
	return v
}

// Truthy renders the first non-empty value among keys as a string: non-empty
// strings, non-zero numbers and true.
func Truthy(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			if v != 0 {
				return strconv.FormatFloat(v, 'f', -1, 64)
			}
		case bool:
			if v {
				return "true"
			}
		}
	}
	return ""
}

func TruthyOr(m map[string]any, fallback string, keys ...string) string {
	s := Truthy(m, keys...)
	if s == "" {
		return fallback
	}
	return s
}

// Number returns the first value among keys that is a json number.
func Number(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k].(float64); ok {
			return v, true
		}
	}
	return 0, false
}

// FirstObject returns the first value among keys that is a json object, or
// an empty object.
func FirstObject(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if obj, ok := Object(m[k]); ok {
			return obj
		}
	}
	return map[string]any{}
}

// sortedKeys makes the deeper search deterministic, json objects have no
// key order once decoded.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
