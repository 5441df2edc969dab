package cache

import (
	"encoding/json"
	"regexp"
	"strings"
)

// StableJSON serializes v such that deeply-equal values (as maps, slices,
// and primitives) always produce the same string, regardless of map key
// insertion order. Array element order is preserved and significant.
//
// encoding/json already sorts map[string]any keys when marshaling, so this
// is a thin, documented wrapper rather than a hand-rolled serializer — the
// value add is the name and the "deeply equal → equal string" contract
// callers rely on for cache-key stability (spec.md §4.C, scenario 6).
func StableJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// CanonicalJSON re-serializes raw JSON bytes into their stable form by
// round-tripping through a generic interface{}. Used when args arrive as
// already-encoded json.RawMessage (e.g. read via gjson) rather than a
// decoded Go value.
func CanonicalJSON(raw []byte) string {
	if len(raw) == 0 {
		return "null"
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return StableJSON(v)
}

var punctuation = regexp.MustCompile(`[[:punct:]]`)
var whitespace = regexp.MustCompile(`\s+`)

// NormalizeGoal lower-cases, strips punctuation, collapses internal
// whitespace, and trims a goal string. An empty goal normalizes to the
// empty string, so "" and "   " encode identically — spec.md §4.C's "empty
// goal is encoded identically to no goal".
func NormalizeGoal(goal string) string {
	g := strings.ToLower(goal)
	g = punctuation.ReplaceAllString(g, "")
	g = whitespace.ReplaceAllString(g, " ")
	return strings.TrimSpace(g)
}

// ToolKey builds the deterministic cache key for a tool-call result.
func ToolKey(namespacedName string, args any, goal string) string {
	return buildKey("tool", namespacedName, args, goal)
}

// ResourceKey builds the deterministic cache key for a resource read.
func ResourceKey(namespacedURI string) string {
	return "resource:" + namespacedURI
}

// CompressedKey builds the deterministic cache key for a compressed result.
func CompressedKey(namespacedName string, args any, goal string) string {
	return buildKey("compressed", namespacedName, args, goal)
}

func buildKey(prefix, namespacedName string, args any, goal string) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte(':')
	b.WriteString(namespacedName)
	b.WriteByte(':')
	b.WriteString(StableJSON(args))
	if g := NormalizeGoal(goal); g != "" {
		b.WriteByte(':')
		b.WriteString(g)
	}
	return b.String()
}
