// Package pii is a closed enumeration of built-in PII pattern kinds plus
// support for user-supplied custom patterns.
//
// DESIGN: ported from the regex/confidence-tier pattern table in the
// anonymizing-proxy teacher example, adapted to the kind set and low|medium|
// high confidence tiers this spec requires instead of that example's
// numeric 0.0-1.0 confidence scores. Patterns are grouped by Kind and
// ordered so that, for a fixed enabled-kind set, PatternsFor always returns
// the same sequence — this is what makes masking output reproducible
// (spec.md §4.B).
package pii

import "regexp"

// Kind identifies a category of PII. The set is closed except for Custom,
// which admits user-supplied regex/replacement pairs.
type Kind string

const (
	KindEmail         Kind = "email"
	KindSSN           Kind = "ssn"
	KindPhone         Kind = "phone"
	KindCreditCard    Kind = "credit_card"
	KindIPAddress     Kind = "ip_address"
	KindDateOfBirth   Kind = "date_of_birth"
	KindPassport      Kind = "passport"
	KindDriverLicense Kind = "driver_license"
	KindCustom        Kind = "custom"
)

// kindOrder is the deterministic iteration order over built-in kinds.
var kindOrder = []Kind{
	KindEmail,
	KindSSN,
	KindPhone,
	KindCreditCard,
	KindIPAddress,
	KindDateOfBirth,
	KindPassport,
	KindDriverLicense,
	KindCustom,
}

// Tier is the confidence tier of a single pattern match.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Pattern pairs a compiled regex with its kind, confidence tier, and
// (for custom patterns) the literal replacement to substitute instead of a
// masker-allocated placeholder.
type Pattern struct {
	Kind        Kind
	Tier        Tier
	Regex       *regexp.Regexp
	Replacement string // only meaningful for KindCustom; empty for built-ins
}

// CustomPattern is a user-supplied (regex, replacement) pair at KindCustom.
type CustomPattern struct {
	Name        string // identifies the pattern for config-merge dedup
	Regex       string
	Replacement string
}

// spec pairs a pattern's literal regex source with its kind and tier. Built
// at package init time into compiled Patterns.
type spec struct {
	expr string
	kind Kind
	tier Tier
}

// builtinSpecs enumerates every built-in pattern. Within a kind, patterns
// are tried in this order — more specific / higher-tier patterns first,
// so a string that could match either the specific or the broad form of a
// kind is tagged with the more informative tier.
var builtinSpecs = []spec{
	// Email: unambiguous structural markers (@, domain, TLD).
	{`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`, KindEmail, TierHigh},

	// SSN: structured hyphenated or unbroken 9-digit form.
	{`\b\d{3}-\d{2}-\d{4}\b`, KindSSN, TierHigh},
	{`\b\d{9}\b`, KindSSN, TierLow},

	// Phone: NANP-style formats with separators are specific; a bare
	// 10-digit run is much more ambiguous.
	{`\(\d{3}\)[\s.\-]?\d{3}[\s.\-]\d{4}`, KindPhone, TierHigh},
	{`\b\d{3}[\s.\-]\d{3}[\s.\-]\d{4}\b`, KindPhone, TierMedium},
	{`\b\d{10}\b`, KindPhone, TierLow},

	// Credit card: 16-digit grouped or unbroken block.
	{`\b(?:\d{4}[\s\-]){3}\d{4}\b`, KindCreditCard, TierHigh},
	{`\b\d{16}\b`, KindCreditCard, TierMedium},

	// IPv4/IPv6. IPv6 alternation ordered longest-first so greedy
	// matching picks the most complete address.
	{`\b(?:(?:25[0-5]|2[0-4]\d|1\d{2}|[1-9]?\d)\.){3}(?:25[0-5]|2[0-4]\d|1\d{2}|[1-9]?\d)\b`, KindIPAddress, TierHigh},
	{`(?:[0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4}` +
		`|(?:[0-9a-fA-F]{1,4}:){1,7}:` +
		`|(?:[0-9a-fA-F]{1,4}:){1,6}:[0-9a-fA-F]{1,4}` +
		`|(?:[0-9a-fA-F]{1,4}:){1,5}(?::[0-9a-fA-F]{1,4}){1,2}` +
		`|(?:[0-9a-fA-F]{1,4}:){1,4}(?::[0-9a-fA-F]{1,4}){1,3}` +
		`|(?:[0-9a-fA-F]{1,4}:){1,3}(?::[0-9a-fA-F]{1,4}){1,4}` +
		`|(?:[0-9a-fA-F]{1,4}:){1,2}(?::[0-9a-fA-F]{1,4}){1,5}` +
		`|[0-9a-fA-F]{1,4}:(?::[0-9a-fA-F]{1,4}){1,6}` +
		`|:(?::[0-9a-fA-F]{1,4}){1,7}` +
		`|::`, KindIPAddress, TierMedium},

	// Date of birth: common numeric date shapes. Broad by nature — any
	// date could be a DOB or an unrelated timestamp.
	{`\b(?:0[1-9]|1[0-2])[/\-](?:0[1-9]|[12]\d|3[01])[/\-](?:19|20)\d{2}\b`, KindDateOfBirth, TierMedium},
	{`\b(?:19|20)\d{2}-(?:0[1-9]|1[0-2])-(?:0[1-9]|[12]\d|3[01])\b`, KindDateOfBirth, TierMedium},

	// Passport: keyword-anchored alphanumeric, and bare US-style fallback.
	{`(?i)passport\s*(?:no\.?|number|#)?\s*[:#]?\s*([A-Z0-9]{6,9})`, KindPassport, TierHigh},
	{`\b[A-Z]{1,2}\d{6,7}\b`, KindPassport, TierLow},

	// Driver's license: keyword-anchored; bare alphanumeric fallback.
	{`(?i)driver'?s?\s*licen[sc]e\s*(?:no\.?|number|#)?\s*[:#]?\s*([A-Z0-9]{5,13})`, KindDriverLicense, TierHigh},
	{`\b[A-Z]\d{7,12}\b`, KindDriverLicense, TierLow},
}

var compiled []Pattern

func init() {
	for _, s := range builtinSpecs {
		compiled = append(compiled, Pattern{
			Kind:  s.kind,
			Tier:  s.tier,
			Regex: regexp.MustCompile(s.expr),
		})
	}
}
