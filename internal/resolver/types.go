// Package resolver merges the four-level configuration hierarchy (built-in
// defaults → global → upstream → tool) into a frozen per-call policy
// snapshot, per spec.md §4.D.
//
// DESIGN: mirrors the teacher's layered-config-with-pointer-fields idiom
// (internal/config's required-field Config plus internal/pipes's
// strategy/threshold enums), generalized to the "undefined means inherit"
// shallow-merge semantics this spec calls for. Pointer fields here stand in
// for "undefined at this level" the way the teacher's YAML-unmarshaled
// structs use zero values for "not set" — the difference is that a
// resolver-level zero value (false, 0, "") is a meaningful override, so
// every mergeable field is a pointer.
package resolver

import "github.com/samteezy/mcproxy/internal/pii"

// CompressionConfig is the compression sub-policy at any hierarchy level.
// A nil field means "inherit from the level below".
type CompressionConfig struct {
	Enabled            *bool   `json:"enabled,omitempty"`
	TokenThreshold     *int    `json:"tokenThreshold,omitempty"`
	MaxOutputTokens    *int    `json:"maxOutputTokens,omitempty"`
	Model              *string `json:"model,omitempty"`
	CustomInstructions *string `json:"customInstructions,omitempty"`
	GoalAware          *bool   `json:"goalAware,omitempty"`
}

// MaskingConfig is the masking sub-policy at any hierarchy level.
type MaskingConfig struct {
	Enabled              *bool               `json:"enabled,omitempty"`
	EnabledKinds         *[]pii.Kind         `json:"enabledKinds,omitempty"`
	CustomPatterns       []pii.CustomPattern `json:"customPatterns,omitempty"` // always a union, never a replace
	LLMFallback          *bool               `json:"llmFallback,omitempty"`
	LLMFallbackThreshold *pii.Tier           `json:"llmFallbackThreshold,omitempty"`
}

// CacheConfig is the cache sub-policy at any hierarchy level.
type CacheConfig struct {
	Enabled     *bool `json:"enabled,omitempty"`
	TTLSeconds  *int  `json:"ttlSeconds,omitempty"`
	CacheErrors *bool `json:"cacheErrors,omitempty"`
}

// ToolConfig holds per-tool overrides, keyed by the tool's *original*
// (un-namespaced) name within its upstream.
type ToolConfig struct {
	Hidden               bool               `json:"hidden,omitempty"`
	Compression          *CompressionConfig `json:"compression,omitempty"`
	Masking              *MaskingConfig     `json:"masking,omitempty"`
	Cache                *CacheConfig       `json:"cache,omitempty"`
	OverwriteDescription string             `json:"overwriteDescription,omitempty"`
	HideParameters       []string           `json:"hideParameters,omitempty"`
	ParameterOverrides   map[string]any     `json:"parameterOverrides,omitempty"`
}

// UpstreamDefaults holds an upstream's own default policy trio, applied
// between the global defaults and that upstream's per-tool overrides.
type UpstreamDefaults struct {
	Compression *CompressionConfig `json:"compression,omitempty"`
	Masking     *MaskingConfig     `json:"masking,omitempty"`
	Cache       *CacheConfig       `json:"cache,omitempty"`
}

// Transport discriminates how a session reaches its upstream process/endpoint.
type Transport string

const (
	TransportStdio          Transport = "stdio"
	TransportSSE            Transport = "sse"
	TransportStreamableHTTP Transport = "streamable-http"
)

// UpstreamSpec is the immutable record describing one upstream MCP server.
type UpstreamSpec struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Transport   Transport         `json:"transport"`
	Command     string            `json:"command,omitempty"`
	Args        []string          `json:"args,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	URL         string            `json:"url,omitempty"`
	Enabled     bool              `json:"enabled"`
	Tools       map[string]ToolConfig `json:"tools,omitempty"`
	Defaults    UpstreamDefaults  `json:"defaults,omitempty"`
}

// GlobalDefaults is the `defaults` section of the config file: the
// second-from-bottom hierarchy level, applied above the built-in defaults
// and below every upstream's own defaults.
type GlobalDefaults struct {
	Compression *CompressionConfig `json:"compression,omitempty"`
	Masking     *MaskingConfig     `json:"masking,omitempty"`
	Cache       *CacheConfig       `json:"cache,omitempty"`
}

// ResolvedCompression is the frozen per-call compression policy.
type ResolvedCompression struct {
	Enabled            bool
	TokenThreshold     int
	MaxOutputTokens    int
	Model              string
	CustomInstructions string
	GoalAware          bool
}

// ResolvedMasking is the frozen per-call masking policy.
type ResolvedMasking struct {
	Enabled              bool
	EnabledKinds         []pii.Kind
	CustomPatterns       []pii.CustomPattern
	LLMFallback          bool
	LLMFallbackThreshold pii.Tier
}

// ResolvedCache is the frozen per-call cache policy.
type ResolvedCache struct {
	Enabled     bool
	TTLSeconds  int
	CacheErrors bool
}

// Resolved bundles the three resolved policies plus the convenience
// booleans spec.md §4.D calls for.
type Resolved struct {
	Compression ResolvedCompression
	Masking     ResolvedMasking
	Cache       ResolvedCache
	Hidden      bool
	GoalAware   bool
	Bypass      bool
}
