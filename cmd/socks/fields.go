package main

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Decoded reply envelopes carry json.Number for every numeric value; these
// helpers normalize the lookups the render paths need.

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func intField(fields map[string]any, key string) (int64, bool) {
	switch v := fields[key].(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

func numberString(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case json.Number:
		return n.String()
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return fmt.Sprint(n)
	}
}

// millisString renders a numeric millisecond value with one decimal.
func millisString(v any) string {
	var ms float64
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return n.String()
		}
		ms = f
	case float64:
		ms = n
	default:
		return numberString(v)
	}
	return strconv.FormatFloat(ms, 'f', 1, 64)
}
