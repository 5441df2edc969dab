package handler

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"

	"github.com/samteezy/mcproxy/internal/masker"
	"github.com/samteezy/mcproxy/internal/pii"
	"github.com/samteezy/mcproxy/internal/schema"
)

func TestExtractGoalForCacheKey_Present(t *testing.T) {
	goalName, _ := schema.VirtualFieldNames("mcp")
	args := map[string]any{goalName: "summarize the log"}
	goal, ok := extractGoalForCacheKey(args, "mcp")
	assert.True(t, ok)
	assert.Equal(t, "summarize the log", goal)
}

func TestExtractGoalForCacheKey_Missing(t *testing.T) {
	goal, ok := extractGoalForCacheKey(map[string]any{}, "mcp")
	assert.False(t, ok)
	assert.Equal(t, "", goal)
}

func TestExtractGoalForCacheKey_NilArgs(t *testing.T) {
	goal, ok := extractGoalForCacheKey(nil, "mcp")
	assert.False(t, ok)
	assert.Equal(t, "", goal)
}

func TestToRawSchema_RoundTripsPropertiesAndRequired(t *testing.T) {
	tool := mcp.Tool{
		Name: "read_file",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"path":   map[string]any{"type": "string"},
				"apiKey": map[string]any{"type": "string"},
			},
			Required: []string{"path"},
		},
	}
	raw := toRawSchema(tool)
	props, ok := raw["properties"].(map[string]any)
	assert.True(t, ok)
	assert.Contains(t, props, "path")
	assert.Contains(t, props, "apiKey")

	required, ok := raw["required"].([]any)
	assert.True(t, ok)
	assert.Equal(t, []any{"path"}, required)
}

func TestApplyRawSchema_CopiesPropertiesAndRequired(t *testing.T) {
	tool := mcp.Tool{Name: "read_file"}
	raw := map[string]any{
		"properties": map[string]any{
			"path": map[string]any{"type": "string"},
		},
		"required": []any{"path"},
	}
	applyRawSchema(&tool, raw)
	assert.Contains(t, tool.InputSchema.Properties, "path")
	assert.Equal(t, []string{"path"}, tool.InputSchema.Required)
}

func TestRestoreContentText_ReplacesPlaceholdersInTextContent(t *testing.T) {
	library := pii.New()
	msk := masker.New(library)
	_, restoreMap := msk.MaskText("contact me at jane@example.com", []pii.Kind{pii.KindEmail}, nil)

	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: "see [EMAIL_1] for details"},
		},
	}
	restoreContentText(result, restoreMap)

	text, ok := result.Content[0].(mcp.TextContent)
	assert.True(t, ok)
	assert.Contains(t, text.Text, "jane@example.com")
}

func TestRestoreContentText_NilResultIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		restoreContentText(nil, nil)
	})
}
