// Package parse provides string parsing utilities for CLI commands.
package parse

import (
	"strings"

	"github.com/getmockd/reqchain/pkg/workflow"
)

// KeyValue parses a "key:value" or "key=value" string.
// If delimiters are provided, uses the first one found; otherwise defaults to ':'.
// Returns the key, value, and a boolean indicating success.
func KeyValue(s string, delimiters ...rune) (key, value string, ok bool) {
	if len(delimiters) == 0 {
		delimiters = []rune{':'}
	}

	for i, c := range s {
		for _, d := range delimiters {
			if c == d {
				return s[:i], s[i+1:], true
			}
		}
	}
	return "", "", false
}

// SplitTrim splits a string by separator and trims each part.
func SplitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Value turns a command-line string into a variable value. JSON scalars,
// arrays and objects keep their type; anything else is a String, so
// --var id=42 is a Number and --var name=alice is a String.
func Value(s string) workflow.Value {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return workflow.String(s)
	}
	v, err := workflow.ParseJSON([]byte(trimmed))
	if err != nil {
		return workflow.String(s)
	}
	return v
}

// Values converts every entry with Value.
func Values(m map[string]string) map[string]workflow.Value {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]workflow.Value, len(m))
	for k, v := range m {
		out[k] = Value(v)
	}
	return out
}
