package resolver

import "github.com/samteezy/mcproxy/internal/pii"

func boolPtr(b bool) *bool       { return &b }
func intPtr(i int) *int          { return &i }
func strPtr(s string) *string    { return &s }
func tierPtr(t pii.Tier) *pii.Tier { return &t }

// builtinCompression is the hard-coded compression default, the base of
// the four-level merge.
func builtinCompression() *CompressionConfig {
	return &CompressionConfig{
		Enabled:            boolPtr(true),
		TokenThreshold:     intPtr(2000),
		MaxOutputTokens:    intPtr(1000),
		Model:              strPtr(""),
		CustomInstructions: strPtr(""),
		GoalAware:          boolPtr(false),
	}
}

// builtinMasking is the hard-coded masking default.
func builtinMasking() *MaskingConfig {
	kinds := []pii.Kind{}
	return &MaskingConfig{
		Enabled:              boolPtr(false),
		EnabledKinds:         &kinds,
		CustomPatterns:       nil,
		LLMFallback:          boolPtr(false),
		LLMFallbackThreshold: tierPtr(pii.TierMedium),
	}
}

// builtinCache is the hard-coded cache default.
func builtinCache() *CacheConfig {
	return &CacheConfig{
		Enabled:     boolPtr(true),
		TTLSeconds:  intPtr(300),
		CacheErrors: boolPtr(false),
	}
}
