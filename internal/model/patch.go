package model

import (
	"strconv"
	"strings"
)

// Patch is a partial field update keyed by wire field name.
//
// Values arrive loosely typed (JSON decoding, user input), so consumers use
// the As* helpers to coerce them. The immutable fields (id, created_at and
// the owner partition key) are never applied; Strip removes them.
type Patch map[string]any

// immutable fields that can never be patched, on any entity kind.
var protectedFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"user_id":    true,
}

// Strip returns a copy of the patch without immutable fields.
// Returns an empty (non-nil) patch when nothing survives.
func (p Patch) Strip() Patch {
	out := make(Patch, len(p))
	for k, v := range p {
		if protectedFields[k] {
			continue
		}
		out[k] = v
	}
	return out
}

// Has reports whether the patch contains the given field.
func (p Patch) Has(field string) bool {
	_, ok := p[field]
	return ok
}

// AsString coerces a patch value to a string. Non-string values yield "".
func AsString(v any) string {
	s, _ := v.(string)
	return s
}

// AsBool coerces a patch value to a bool. Accepts bool, 0/1 numbers and
// "true"/"false" strings; anything else is false.
func AsBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case string:
		return t == "true" || t == "1"
	}
	return false
}

// AsFloat coerces a patch value to a float64.
// Strings are parsed with comma-decimal tolerance; failures yield (0, false).
func AsFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", "."))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// AsInt64 coerces a patch value to an int64. JSON numbers decode as float64,
// so that is the common case.
func AsInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	}
	return 0, false
}
