// Package flags provides reusable flag types for CLI commands.
package flags

import (
	"fmt"
	"sort"
	"strings"

	"github.com/getmockd/reqchain/pkg/cli/internal/parse"
)

// KeyValues implements pflag.Value for repeatable key=value flags such as
// --var. A later key replaces an earlier one.
type KeyValues map[string]string

// String returns the sorted key=value pairs joined by commas.
func (kv *KeyValues) String() string {
	if kv == nil || *kv == nil {
		return ""
	}
	pairs := make([]string, 0, len(*kv))
	for k, v := range *kv {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

// Set parses one key=value pair.
func (kv *KeyValues) Set(value string) error {
	key, val, ok := parse.KeyValue(value, '=')
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	if *kv == nil {
		*kv = make(KeyValues)
	}
	(*kv)[key] = val
	return nil
}

// Type specifies the type label for Cobra flags.
func (kv *KeyValues) Type() string {
	return "key=value"
}
