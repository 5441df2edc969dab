package resolver

import (
	"strings"
	"sync"

	"github.com/samteezy/mcproxy/internal/pii"
)

// Separator joins an upstream id to a tool/prompt's original name to form
// its namespaced id.
const Separator = "__"

// Resolver merges the four-level configuration hierarchy into frozen
// per-call policies. Safe for concurrent use; swapped wholesale on hot
// reload (spec.md §4.L), never mutated in place.
type Resolver struct {
	mu sync.RWMutex

	defaults     GlobalDefaults
	upstreams    map[string]*UpstreamSpec
	maskingOn    bool // masking.enabled master switch (top-level)
	bypassOn     bool // compression.bypassEnabled (top-level)
	goalPrefix   string
}

// New builds a Resolver from the config-level inputs. goalPrefix is the
// vendor tag used for injected virtual parameter names (e.g. "mcp" for
// "_mcp_goal"/"_mcp_bypass").
func New(defaults GlobalDefaults, upstreams map[string]*UpstreamSpec, maskingMasterEnabled, bypassEnabled bool, goalPrefix string) *Resolver {
	if goalPrefix == "" {
		goalPrefix = "mcp"
	}
	return &Resolver{
		defaults:   defaults,
		upstreams:  upstreams,
		maskingOn:  maskingMasterEnabled,
		bypassOn:   bypassEnabled,
		goalPrefix: goalPrefix,
	}
}

// GoalPrefix returns the vendor tag used for virtual parameter names.
func (r *Resolver) GoalPrefix() string {
	return r.goalPrefix
}

// BypassEnabled reports the global compression-bypass master switch.
func (r *Resolver) BypassEnabled() bool {
	return r.bypassOn
}

// ParseNamespacedName splits "<upstreamId>__<originalName>" into its parts.
// ok is false if name has no "__" separator (malformed, per spec.md §4.D).
func ParseNamespacedName(name string) (upstreamID, originalName string, ok bool) {
	idx := strings.Index(name, Separator)
	if idx < 0 {
		return "", "", false
	}
	return name[:idx], name[idx+len(Separator):], true
}

// lookup resolves a namespaced name to its upstream spec and tool config,
// if any. A malformed name or one naming a non-existent upstream returns
// ok=false for both skip-steps-3-4 cases spec.md §4.D describes; the
// caller falls back to global-plus-built-in values.
func (r *Resolver) lookup(namespacedName string) (up *UpstreamSpec, tool ToolConfig, hasTool bool) {
	upstreamID, originalName, ok := ParseNamespacedName(namespacedName)
	if !ok {
		return nil, ToolConfig{}, false
	}
	up, exists := r.upstreams[upstreamID]
	if !exists {
		return nil, ToolConfig{}, false
	}
	tool, hasTool = up.Tools[originalName]
	return up, tool, hasTool
}

// Resolve returns the frozen policy snapshot for namespacedName, which may
// be empty, malformed, or name a tool the proxy has never seen.
func (r *Resolver) Resolve(namespacedName string) Resolved {
	r.mu.RLock()
	defer r.mu.RUnlock()

	up, tool, hasTool := r.lookup(namespacedName)

	compression := mergeCompression(builtinCompression(), r.defaults.Compression)
	masking := mergeMasking(builtinMasking(), r.defaults.Masking)
	cache := mergeCache(builtinCache(), r.defaults.Cache)

	if up != nil {
		compression = mergeCompression(compression, up.Defaults.Compression)
		masking = mergeMasking(masking, up.Defaults.Masking)
		cache = mergeCache(cache, up.Defaults.Cache)

		if hasTool {
			compression = mergeCompression(compression, tool.Compression)
			masking = mergeMasking(masking, tool.Masking)
			cache = mergeCache(cache, tool.Cache)
		}
	}

	resolvedMasking := toResolvedMasking(masking)
	resolvedMasking.Enabled = resolvedMasking.Enabled && r.maskingOn

	return Resolved{
		Compression: toResolvedCompression(compression),
		Masking:     resolvedMasking,
		Cache:       toResolvedCache(cache),
		Hidden:      hasTool && tool.Hidden,
		GoalAware:   compression.GoalAware != nil && *compression.GoalAware,
		Bypass:      r.bypassOn,
	}
}

// DescriptionOverride returns the configured replacement description for a
// tool, if any.
func (r *Resolver) DescriptionOverride(namespacedName string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, tool, hasTool := r.lookup(namespacedName)
	if !hasTool || tool.OverwriteDescription == "" {
		return "", false
	}
	return tool.OverwriteDescription, true
}

// HiddenParameters returns the parameter names to remove from the exposed
// schema for a tool.
func (r *Resolver) HiddenParameters(namespacedName string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, tool, hasTool := r.lookup(namespacedName)
	if !hasTool {
		return nil
	}
	return tool.HideParameters
}

// ParameterOverrides returns the injected key/value pairs for a tool.
func (r *Resolver) ParameterOverrides(namespacedName string) map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, tool, hasTool := r.lookup(namespacedName)
	if !hasTool {
		return nil
	}
	return tool.ParameterOverrides
}

// --- merge helpers -----------------------------------------------------

func mergeCompression(base *CompressionConfig, override *CompressionConfig) *CompressionConfig {
	if override == nil {
		return base
	}
	out := *base
	if override.Enabled != nil {
		out.Enabled = override.Enabled
	}
	if override.TokenThreshold != nil {
		out.TokenThreshold = override.TokenThreshold
	}
	if override.MaxOutputTokens != nil {
		out.MaxOutputTokens = override.MaxOutputTokens
	}
	if override.Model != nil {
		out.Model = override.Model
	}
	if override.CustomInstructions != nil {
		out.CustomInstructions = override.CustomInstructions
	}
	if override.GoalAware != nil {
		out.GoalAware = override.GoalAware
	}
	return &out
}

func mergeMasking(base *MaskingConfig, override *MaskingConfig) *MaskingConfig {
	if override == nil {
		return base
	}
	out := *base
	if override.Enabled != nil {
		out.Enabled = override.Enabled
	}
	if override.EnabledKinds != nil {
		out.EnabledKinds = override.EnabledKinds
	}
	if override.LLMFallback != nil {
		out.LLMFallback = override.LLMFallback
	}
	if override.LLMFallbackThreshold != nil {
		out.LLMFallbackThreshold = override.LLMFallbackThreshold
	}
	// customPatterns is a union across all levels, not an override; later
	// levels win on name collisions (spec.md §4.D step 6).
	out.CustomPatterns = unionPatterns(base.CustomPatterns, override.CustomPatterns)
	return &out
}

func unionPatterns(base, override []pii.CustomPattern) []pii.CustomPattern {
	if len(override) == 0 {
		return base
	}
	byName := make(map[string]pii.CustomPattern, len(base)+len(override))
	var order []string
	for _, p := range base {
		if _, seen := byName[p.Name]; !seen {
			order = append(order, p.Name)
		}
		byName[p.Name] = p
	}
	for _, p := range override {
		if _, seen := byName[p.Name]; !seen {
			order = append(order, p.Name)
		}
		byName[p.Name] = p // later levels win on collision
	}
	out := make([]pii.CustomPattern, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out
}

func mergeCache(base *CacheConfig, override *CacheConfig) *CacheConfig {
	if override == nil {
		return base
	}
	out := *base
	if override.Enabled != nil {
		out.Enabled = override.Enabled
	}
	if override.TTLSeconds != nil {
		out.TTLSeconds = override.TTLSeconds
	}
	if override.CacheErrors != nil {
		out.CacheErrors = override.CacheErrors
	}
	return &out
}

func toResolvedCompression(c *CompressionConfig) ResolvedCompression {
	return ResolvedCompression{
		Enabled:            derefBool(c.Enabled),
		TokenThreshold:     derefInt(c.TokenThreshold),
		MaxOutputTokens:    derefInt(c.MaxOutputTokens),
		Model:              derefStr(c.Model),
		CustomInstructions: derefStr(c.CustomInstructions),
		GoalAware:          derefBool(c.GoalAware),
	}
}

func toResolvedMasking(m *MaskingConfig) ResolvedMasking {
	var kinds []pii.Kind
	if m.EnabledKinds != nil {
		kinds = *m.EnabledKinds
	}
	threshold := pii.TierMedium
	if m.LLMFallbackThreshold != nil {
		threshold = *m.LLMFallbackThreshold
	}
	return ResolvedMasking{
		Enabled:              derefBool(m.Enabled),
		EnabledKinds:         kinds,
		CustomPatterns:       m.CustomPatterns,
		LLMFallback:          derefBool(m.LLMFallback),
		LLMFallbackThreshold: threshold,
	}
}

func toResolvedCache(c *CacheConfig) ResolvedCache {
	return ResolvedCache{
		Enabled:     derefBool(c.Enabled),
		TTLSeconds:  derefInt(c.TTLSeconds),
		CacheErrors: derefBool(c.CacheErrors),
	}
}

func derefBool(b *bool) bool {
	return b != nil && *b
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
