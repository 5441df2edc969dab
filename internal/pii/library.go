package pii

import "regexp"

// Library returns, for a given enabled-kind set plus custom patterns, the
// ordered sequence of patterns applicable to a masking operation.
//
// Thread-safe and side-effect-free: the built-in table is compiled once at
// init and never mutated; PatternsFor only reads it and compiles the caller's
// custom patterns fresh each call (custom sets are typically small and
// change per policy resolution, so caching them is not worth the
// complexity).
type Library struct{}

// New returns a ready-to-use Library.
func New() *Library {
	return &Library{}
}

// PatternsFor returns patterns for the given enabled kinds (order
// irrelevant; builtin order is normalized internally) plus the custom
// patterns, in the deterministic order required by spec.md §4.B: kind order
// as listed in the Kind enumeration, then pattern order within kind. Custom
// patterns that fail to compile are skipped (a malformed custom pattern
// must not break masking for every other kind).
func (l *Library) PatternsFor(enabled []Kind, custom []CustomPattern) []Pattern {
	enabledSet := make(map[Kind]bool, len(enabled))
	for _, k := range enabled {
		enabledSet[k] = true
	}

	var out []Pattern
	for _, k := range kindOrder {
		if !enabledSet[k] {
			continue
		}
		if k == KindCustom {
			out = append(out, compileCustom(custom)...)
			continue
		}
		for _, p := range compiled {
			if p.Kind == k {
				out = append(out, p)
			}
		}
	}
	return out
}

func compileCustom(custom []CustomPattern) []Pattern {
	var out []Pattern
	for _, c := range custom {
		re, err := regexp.Compile(c.Regex)
		if err != nil {
			continue
		}
		out = append(out, Pattern{
			Kind:        KindCustom,
			Tier:        TierHigh,
			Regex:       re,
			Replacement: c.Replacement,
		})
	}
	return out
}
