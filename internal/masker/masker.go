// Package masker replaces PII in tool-call arguments before they reach an
// upstream, and restores the original values in a later response, per
// spec.md §4.H.
//
// DESIGN: the argument tree is walked with gjson/sjson path operations
// instead of a hand-rolled map[string]any recursion, mirroring the
// config-patch idiom the crush example applies to its own JSON documents
// (tidwall/sjson's Set-by-path). This also lets the masker operate without
// knowing the argument shape ahead of time.
package masker

import (
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/samteezy/mcproxy/internal/pii"
)

// Masker applies a fixed pattern library to argument trees and text
// payloads.
type Masker struct {
	library *pii.Library
}

// New builds a Masker over the shared pattern library.
func New(library *pii.Library) *Masker {
	return &Masker{library: library}
}

// Map is the bijective placeholder -> original-value restoration table
// produced by one MaskArgs or MaskText call.
type Map struct {
	entries map[string]string
	counts  map[pii.Kind]int
}

func newMap() *Map {
	return &Map{entries: make(map[string]string), counts: make(map[pii.Kind]int)}
}

func (m *Map) allocate(kind pii.Kind, value string) string {
	m.counts[kind]++
	placeholder := fmt.Sprintf("[%s_%d]", kindTag(kind), m.counts[kind])
	m.entries[placeholder] = value
	return placeholder
}

func kindTag(k pii.Kind) string {
	switch k {
	case pii.KindCustom:
		return "CUSTOM"
	default:
		result := make([]byte, 0, len(k))
		for i := 0; i < len(k); i++ {
			c := k[i]
			if c == '_' {
				result = append(result, '_')
				continue
			}
			if c >= 'a' && c <= 'z' {
				c -= 'a' - 'A'
			}
			result = append(result, c)
		}
		return string(result)
	}
}

// Entries returns the placeholder -> original value pairs allocated so far.
func (m *Map) Entries() map[string]string {
	return m.entries
}

// MaskArgs walks every string value in a decoded JSON argument tree and
// replaces PII matches with allocated placeholders. enabledKinds and custom
// come from the resolver's per-call policy. Placeholder numbering restarts
// at 1 for each kind on every call (spec.md §4.H: scoped to a single
// masking operation, not global).
func (m *Masker) MaskArgs(args map[string]any, enabledKinds []pii.Kind, custom []pii.CustomPattern) (map[string]any, *Map) {
	patterns := m.library.PatternsFor(enabledKinds, custom)
	if len(patterns) == 0 || args == nil {
		return args, newMap()
	}

	raw, err := stableMarshal(args)
	if err != nil {
		return args, newMap()
	}

	restoreMap := newMap()
	doc := string(raw)
	for _, path := range stringPaths(gjson.Parse(doc), "") {
		val := gjson.Get(doc, path)
		masked, changed := maskText(val.String(), patterns, restoreMap)
		if !changed {
			continue
		}
		doc, err = sjson.Set(doc, path, masked)
		if err != nil {
			continue
		}
	}

	out, err := unmarshalMap(doc)
	if err != nil {
		return args, restoreMap
	}
	return out, restoreMap
}

// MaskText replaces PII in a single string payload, returning the masked
// text and the allocated restoration map.
func (m *Masker) MaskText(text string, enabledKinds []pii.Kind, custom []pii.CustomPattern) (string, *Map) {
	patterns := m.library.PatternsFor(enabledKinds, custom)
	restoreMap := newMap()
	masked, _ := maskText(text, patterns, restoreMap)
	return masked, restoreMap
}

// Restore substitutes every placeholder in text with its original value.
// Unknown placeholders (e.g. synthetic <LLM_DETECTED_*> markers from the
// masker's LLMFallback) are left untouched — restoration is a
// best-effort, not-guaranteed-total operation for those, per spec.md §4.H.
func Restore(text string, m *Map) string {
	if m == nil {
		return text
	}
	result := text
	for placeholder, original := range m.entries {
		result = replaceAll(result, placeholder, original)
	}
	return result
}

func maskText(text string, patterns []pii.Pattern, restoreMap *Map) (string, bool) {
	if text == "" {
		return text, false
	}
	changed := false
	out := text
	for _, p := range patterns {
		out = p.Regex.ReplaceAllStringFunc(out, func(match string) string {
			changed = true
			if p.Kind == pii.KindCustom && p.Replacement != "" {
				return p.Replacement
			}
			return restoreMap.allocate(p.Kind, match)
		})
	}
	return out, changed
}

// stringPaths returns every gjson path addressing a string leaf, walked
// depth-first. Object keys at each level are sorted once (for determinism
// across repeated runs over the same document) and then recursed into
// immediately, so a key's whole subtree is emitted before its next sibling.
// This deliberately avoids a single sort over the flattened, dotted path
// strings: comparing full paths as text puts two-digit array indices before
// single-digit ones ("arr.10" < "arr.2") and interleaves unrelated branches
// by their dotted text rather than the document's own nesting.
func stringPaths(res gjson.Result, prefix string) []string {
	var paths []string
	switch {
	case res.IsObject():
		var keys []string
		children := map[string]gjson.Result{}
		res.ForEach(func(key, value gjson.Result) bool {
			k := key.String()
			keys = append(keys, k)
			children[k] = value
			return true
		})
		sort.Strings(keys)
		for _, key := range keys {
			childPath := key
			if prefix != "" {
				childPath = prefix + "." + key
			}
			paths = append(paths, stringPaths(children[key], childPath)...)
		}
	case res.IsArray():
		i := 0
		res.ForEach(func(_, value gjson.Result) bool {
			childPath := fmt.Sprintf("%s.%d", prefix, i)
			paths = append(paths, stringPaths(value, childPath)...)
			i++
			return true
		})
	default:
		if res.Type == gjson.String {
			paths = append(paths, prefix)
		}
	}
	return paths
}
