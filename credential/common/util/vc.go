package util

import (
	"fmt"
	"strings"
)

// JSONMap represents a JSON object as a map.
type JSONMap = map[string]interface{}

// SerializeStrings converts a slice of strings to a JSON-LD compatible
// value: a single entry collapses to a plain string.
func SerializeStrings(values []string) interface{} {
	if len(values) == 0 {
		return nil
	}
	if len(values) == 1 {
		return values[0]
	}
	return MapSlice(values, func(v string) interface{} { return v })
}

// MapSlice transforms a slice of type T to a slice of type U using a mapping function.
func MapSlice[T any, U any](slice []T, mapFn func(T) U) []U {
	result := make([]U, 0, len(slice))
	for _, v := range slice {
		result = append(result, mapFn(v))
	}
	return result
}

// NormalizeStrings turns a JSON-LD string-or-array value into a slice.
// A nil value yields a nil slice.
func NormalizeStrings(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []string:
		return append([]string(nil), v...), nil
	case []interface{}:
		result := make([]string, 0, len(v))
		for i, entry := range v {
			s, ok := entry.(string)
			if !ok {
				return nil, fmt.Errorf("entry at index %d must be a string, got %T", i, entry)
			}
			result = append(result, s)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("must be a string or an array of strings, got %T", value)
	}
}

// SingleObject accepts either a JSON object or an array holding exactly one
// object and returns the object.
func SingleObject(value interface{}) (JSONMap, error) {
	switch v := value.(type) {
	case map[string]interface{}:
		return v, nil
	case []interface{}:
		if len(v) != 1 {
			return nil, fmt.Errorf("expected exactly one object, got %d", len(v))
		}
		obj, ok := v[0].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("expected an object, got %T", v[0])
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("expected an object, got %T", value)
	}
}

// Objects accepts either a JSON object or an array of objects.
func Objects(value interface{}) ([]JSONMap, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case map[string]interface{}:
		return []JSONMap{v}, nil
	case []interface{}:
		result := make([]JSONMap, 0, len(v))
		for i, entry := range v {
			obj, ok := entry.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("entry at index %d must be an object, got %T", i, entry)
			}
			result = append(result, obj)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("expected an object or an array of objects, got %T", value)
	}
}

// IsBlank reports whether s is empty or only whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
