// Package flagconf reconciles command-line arguments with an optional JSON
// configuration file. Both sides are plain key→value maps: the CLI side
// contains only flags the user actually set (presence-based booleans), the
// file side is a flat JSON object keyed by flag name without leading dashes.
// CLI values win on conflict; defaults sit below both.
package flagconf

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

// ErrMissingArgument reports required keys that are absent or null after
// reconciliation. All missing keys are named in a single error.
var ErrMissingArgument = errors.New("missing required argument")

// LoadFile reads a flat JSON object of flag values.
func LoadFile(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return doc, nil
}

// Merge combines CLI arguments with a config document. For every key present
// in either source the CLI value is preferred when present and non-nil;
// otherwise the document value is used, which may itself be nil. Merging the
// result with the same document again is a no-op.
func Merge(cli, doc map[string]any) map[string]any {
	out := make(map[string]any, len(cli)+len(doc))
	for k, v := range doc {
		out[k] = v
	}
	for k, v := range cli {
		if v != nil {
			out[k] = v
		} else if _, ok := out[k]; !ok {
			out[k] = nil
		}
	}
	return out
}

// ApplyDefaults fills absent or nil keys from defaults, lowest priority.
func ApplyDefaults(merged, defaults map[string]any) map[string]any {
	out := make(map[string]any, len(merged)+len(defaults))
	for k, v := range merged {
		out[k] = v
	}
	for k, v := range defaults {
		if cur, ok := out[k]; !ok || cur == nil {
			out[k] = v
		}
	}
	return out
}

// ValidateRequired checks that every required key is present and non-nil,
// reporting all offenders in one error.
func ValidateRequired(args map[string]any, required []string) error {
	var missing []string
	for _, key := range required {
		if v, ok := args[key]; !ok || v == nil {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %s", ErrMissingArgument, strings.Join(missing, ", "))
}

// String extracts a string value.
func String(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int extracts an integer value, accepting the float64 that encoding/json
// produces for numbers as well as numeric strings. A fractional value is
// rejected rather than truncated.
func Int(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

// Bool extracts a boolean value. A key that was set at all on the CLI side
// arrives as true; the file side carries explicit JSON booleans.
func Bool(args map[string]any, key string) bool {
	v, ok := args[key].(bool)
	return ok && v
}

// Strings extracts a list value, accepting both []string and the []any that
// encoding/json produces for arrays.
func Strings(args map[string]any, key string) ([]string, bool) {
	switch v := args[key].(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
