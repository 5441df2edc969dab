package masker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/samteezy/mcproxy/internal/llmclient"
	"github.com/samteezy/mcproxy/internal/pii"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLLMFallback_ReplacesDetectedSpansWithMarkers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": `[{"text": "Jane Q. Public", "kind": "name"}]`}},
			},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5},
		})
	}))
	defer srv.Close()

	m := newMasker()
	client := llmclient.New(srv.URL, "key", nil)
	out, err := m.LLMFallback(context.Background(), client, "gpt-4o-mini", "the account belongs to Jane Q. Public", pii.TierMedium)
	require.NoError(t, err)
	assert.Contains(t, out, "<LLM_DETECTED_NAME>")
	assert.NotContains(t, out, "Jane Q. Public")
}

func TestLLMFallback_NoDetections_ReturnsTextUnchanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": `[]`}},
			},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 1},
		})
	}))
	defer srv.Close()

	m := newMasker()
	client := llmclient.New(srv.URL, "key", nil)
	out, err := m.LLMFallback(context.Background(), client, "gpt-4o-mini", "nothing sensitive here", pii.TierMedium)
	require.NoError(t, err)
	assert.Equal(t, "nothing sensitive here", out)
}

func TestLLMFallback_UnparseableResponse_ReturnsOriginalTextAndError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "not json"}},
			},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 1},
		})
	}))
	defer srv.Close()

	m := newMasker()
	client := llmclient.New(srv.URL, "key", nil)
	out, err := m.LLMFallback(context.Background(), client, "gpt-4o-mini", "some text", pii.TierMedium)
	assert.Error(t, err)
	assert.Equal(t, "some text", out)
}

func TestLLMFallback_NilClient_ReturnsTextUnchanged(t *testing.T) {
	m := newMasker()
	out, err := m.LLMFallback(context.Background(), nil, "gpt-4o-mini", "some text", pii.TierMedium)
	require.NoError(t, err)
	assert.Equal(t, "some text", out)
}

func TestLLMFallback_EmptyText_ReturnsEmptyUnchanged(t *testing.T) {
	m := newMasker()
	client := llmclient.New("http://example.invalid", "key", nil)
	out, err := m.LLMFallback(context.Background(), client, "gpt-4o-mini", "", pii.TierMedium)
	require.NoError(t, err)
	assert.Equal(t, "", out)
}
