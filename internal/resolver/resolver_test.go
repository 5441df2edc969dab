package resolver

import (
	"testing"

	"github.com/samteezy/mcproxy/internal/pii"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_BuiltinOnly(t *testing.T) {
	r := New(GlobalDefaults{}, map[string]*UpstreamSpec{}, true, false, "")
	got := r.Resolve("unknownUpstream__someTool")
	assert.True(t, got.Compression.Enabled)
	assert.Equal(t, 2000, got.Compression.TokenThreshold)
	assert.False(t, got.Masking.Enabled)
	assert.True(t, got.Cache.Enabled)
	assert.Equal(t, 300, got.Cache.TTLSeconds)
}

func TestResolve_MalformedName_FallsBackToGlobalPlusBuiltin(t *testing.T) {
	threshold := 500
	r := New(GlobalDefaults{
		Compression: &CompressionConfig{TokenThreshold: &threshold},
	}, map[string]*UpstreamSpec{}, true, false, "")

	// no "__" separator at all
	got := r.Resolve("noSeparatorHere")
	assert.Equal(t, 500, got.Compression.TokenThreshold)
}

func TestResolve_UnknownUpstream_FallsBackToGlobalPlusBuiltin(t *testing.T) {
	threshold := 750
	r := New(GlobalDefaults{
		Compression: &CompressionConfig{TokenThreshold: &threshold},
	}, map[string]*UpstreamSpec{}, true, false, "")

	got := r.Resolve("ghost__tool")
	assert.Equal(t, 750, got.Compression.TokenThreshold)
}

func TestResolve_FourLevelMerge(t *testing.T) {
	globalThreshold := 1000
	upstreamThreshold := 1500
	toolThreshold := 2500

	upstreams := map[string]*UpstreamSpec{
		"fs": {
			ID: "fs",
			Defaults: UpstreamDefaults{
				Compression: &CompressionConfig{TokenThreshold: &upstreamThreshold},
			},
			Tools: map[string]ToolConfig{
				"read": {
					Compression: &CompressionConfig{TokenThreshold: &toolThreshold},
				},
			},
		},
	}
	r := New(GlobalDefaults{
		Compression: &CompressionConfig{TokenThreshold: &globalThreshold},
	}, upstreams, true, false, "")

	// tool-level wins
	got := r.Resolve("fs__read")
	assert.Equal(t, 2500, got.Compression.TokenThreshold)

	// a different tool on the same upstream falls to upstream-level
	got2 := r.Resolve("fs__write")
	assert.Equal(t, 1500, got2.Compression.TokenThreshold)
}

func TestResolve_MaskingMasterSwitch_ANDsWithResolvedValue(t *testing.T) {
	enabled := true
	upstreams := map[string]*UpstreamSpec{
		"fs": {
			ID: "fs",
			Defaults: UpstreamDefaults{
				Masking: &MaskingConfig{Enabled: &enabled},
			},
		},
	}
	// master switch off: masking stays disabled even though every other
	// level asks for it on.
	r := New(GlobalDefaults{}, upstreams, false, false, "")
	got := r.Resolve("fs__tool")
	assert.False(t, got.Masking.Enabled)

	r2 := New(GlobalDefaults{}, upstreams, true, false, "")
	got2 := r2.Resolve("fs__tool")
	assert.True(t, got2.Masking.Enabled)
}

func TestResolve_CustomPatterns_UnionAcrossLevelsWithLaterWins(t *testing.T) {
	globalPatterns := []pii.CustomPattern{
		{Name: "employeeId", Regex: "EMP-\\d+", Replacement: "[EMPLOYEE_ID]"},
		{Name: "shared", Regex: "g-shared", Replacement: "[G]"},
	}
	upstreamPatterns := []pii.CustomPattern{
		{Name: "shared", Regex: "u-shared", Replacement: "[U]"}, // overrides global's "shared"
		{Name: "orderId", Regex: "ORD-\\d+", Replacement: "[ORDER_ID]"},
	}
	upstreams := map[string]*UpstreamSpec{
		"fs": {
			ID: "fs",
			Defaults: UpstreamDefaults{
				Masking: &MaskingConfig{CustomPatterns: upstreamPatterns},
			},
		},
	}
	r := New(GlobalDefaults{
		Masking: &MaskingConfig{CustomPatterns: globalPatterns},
	}, upstreams, true, false, "")

	got := r.Resolve("fs__tool")
	require.Len(t, got.Masking.CustomPatterns, 3)

	byName := map[string]pii.CustomPattern{}
	for _, p := range got.Masking.CustomPatterns {
		byName[p.Name] = p
	}
	assert.Equal(t, "[EMPLOYEE_ID]", byName["employeeId"].Replacement)
	assert.Equal(t, "[ORDER_ID]", byName["orderId"].Replacement)
	assert.Equal(t, "[U]", byName["shared"].Replacement, "upstream level must win the name collision")
}

func TestResolve_ToolHiddenFlag(t *testing.T) {
	upstreams := map[string]*UpstreamSpec{
		"fs": {
			ID: "fs",
			Tools: map[string]ToolConfig{
				"secretTool": {Hidden: true},
			},
		},
	}
	r := New(GlobalDefaults{}, upstreams, true, false, "")
	assert.True(t, r.Resolve("fs__secretTool").Hidden)
	assert.False(t, r.Resolve("fs__otherTool").Hidden)
}

func TestParseNamespacedName(t *testing.T) {
	up, name, ok := ParseNamespacedName("fs__read_file")
	require.True(t, ok)
	assert.Equal(t, "fs", up)
	assert.Equal(t, "read_file", name)

	_, _, ok = ParseNamespacedName("noSeparator")
	assert.False(t, ok)

	// first separator wins when the original name itself contains "__"
	up2, name2, ok2 := ParseNamespacedName("fs__nested__tool")
	require.True(t, ok2)
	assert.Equal(t, "fs", up2)
	assert.Equal(t, "nested__tool", name2)
}

func TestDescriptionOverride_EmptyMeansUnset(t *testing.T) {
	upstreams := map[string]*UpstreamSpec{
		"fs": {
			ID: "fs",
			Tools: map[string]ToolConfig{
				"read": {OverwriteDescription: "Reads a file from disk."},
			},
		},
	}
	r := New(GlobalDefaults{}, upstreams, true, false, "")
	desc, ok := r.DescriptionOverride("fs__read")
	require.True(t, ok)
	assert.Equal(t, "Reads a file from disk.", desc)

	_, ok2 := r.DescriptionOverride("fs__write")
	assert.False(t, ok2)
}

func TestGoalPrefix_DefaultsWhenEmpty(t *testing.T) {
	r := New(GlobalDefaults{}, map[string]*UpstreamSpec{}, true, false, "")
	assert.Equal(t, "mcp", r.GoalPrefix())

	r2 := New(GlobalDefaults{}, map[string]*UpstreamSpec{}, true, false, "acme")
	assert.Equal(t, "acme", r2.GoalPrefix())
}
