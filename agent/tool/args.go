package tool

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
)

func stringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%w: %s is required", contractx.ErrValidation, key)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", contractx.ErrValidation, key)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: %s is empty", contractx.ErrValidation, key)
	}
	return value, nil
}

// intArg accepts JSON numbers, Go integers and numeric strings, since models
// are inconsistent about quoting integers.
func intArg(args map[string]any, key string, fallback int) (int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return fallback, nil
	}

	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%w: %s must be an integer", contractx.ErrValidation, key)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be an integer", contractx.ErrValidation, key)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %s must be an integer", contractx.ErrValidation, key)
	}
}

func requiredIntArg(args map[string]any, key string) (int, error) {
	if _, ok := args[key]; !ok {
		return 0, fmt.Errorf("%w: %s is required", contractx.ErrValidation, key)
	}
	return intArg(args, key, 0)
}
