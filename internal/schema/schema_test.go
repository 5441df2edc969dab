package schema

import (
	"testing"

	"github.com/samteezy/mcproxy/internal/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":   map[string]any{"type": "string"},
			"apiKey": map[string]any{"type": "string"},
		},
		"required": []any{"path", "apiKey"},
	}
}

func TestTransform_HidesParameters(t *testing.T) {
	out := Transform(baseSchema(), resolver.Resolved{}, "", []string{"apiKey"}, "mcp")
	props := out["properties"].(map[string]any)
	_, has := props["apiKey"]
	assert.False(t, has)
	_, has = props["path"]
	assert.True(t, has)

	required := out["required"].([]any)
	assert.NotContains(t, required, "apiKey")
	assert.Contains(t, required, "path")
}

func TestTransform_InjectsGoalField(t *testing.T) {
	out := Transform(baseSchema(), resolver.Resolved{GoalAware: true}, "", nil, "mcp")
	props := out["properties"].(map[string]any)
	_, has := props["_mcp_goal"]
	assert.True(t, has)
	_, hasBypass := props["_mcp_bypass"]
	assert.False(t, hasBypass)
}

func TestTransform_InjectsBypassField(t *testing.T) {
	out := Transform(baseSchema(), resolver.Resolved{Bypass: true}, "", nil, "mcp")
	props := out["properties"].(map[string]any)
	_, has := props["_mcp_bypass"]
	assert.True(t, has)
}

func TestTransform_DoesNotMutateInput(t *testing.T) {
	in := baseSchema()
	Transform(in, resolver.Resolved{GoalAware: true}, "", []string{"apiKey"}, "mcp")
	props := in["properties"].(map[string]any)
	_, stillHas := props["apiKey"]
	assert.True(t, stillHas, "Transform must not mutate the caller's schema")
}

func TestVirtualFieldNames_CustomPrefix(t *testing.T) {
	goal, bypass := VirtualFieldNames("acme")
	assert.Equal(t, "_acme_goal", goal)
	assert.Equal(t, "_acme_bypass", bypass)
}

func TestDescriptionFor(t *testing.T) {
	assert.Equal(t, "original", DescriptionFor("original", "", resolver.Resolved{}, "mcp"))
	assert.Equal(t, "overridden", DescriptionFor("original", "overridden", resolver.Resolved{}, "mcp"))
}

func TestTransform_CreatesPropertiesWhenSchemaHasNone(t *testing.T) {
	out := Transform(map[string]any{"type": "object"}, resolver.Resolved{GoalAware: true}, "", nil, "mcp")
	props, ok := out["properties"].(map[string]any)
	require.True(t, ok)
	_, has := props["_mcp_goal"]
	assert.True(t, has)
}
