package analysis

import "fmt"

// requireString extracts a non-empty string from args by key.
func requireString(args map[string]any, key string) (string, error) {
	v, _ := args[key].(string)
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

// optionalString extracts a string from args by key, returning the fallback
// when it is missing or empty.
func optionalString(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// optionalInt extracts a whole number from args by key. JSON numbers arrive
// as float64; a fractional or negative value is an error.
func optionalInt(args map[string]any, key string, fallback int) (int, error) {
	v, exists := args[key]
	if !exists || v == nil {
		return fallback, nil
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("%s must be a number, got %T", key, v)
	}
	if f < 0 || f != float64(int(f)) {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return int(f), nil
}

func optionalBool(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}
