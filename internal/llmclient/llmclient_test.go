package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete_ParsesContentAndUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "compressed text"}},
			},
			"usage": map[string]any{"prompt_tokens": 100, "completion_tokens": 20},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", nil)
	result, err := c.Complete(context.Background(), Request{
		Model:        "gpt-4o-mini",
		SystemPrompt: "compress this",
		UserPrompt:   "some long tool output",
		MaxTokens:    500,
	})
	require.NoError(t, err)
	assert.Equal(t, "compressed text", result.Content)
	assert.Equal(t, 100, result.InputTokens)
	assert.Equal(t, 20, result.OutputTokens)
}

func TestComplete_MissingModel_Errors(t *testing.T) {
	c := New("http://example.invalid", "key", nil)
	_, err := c.Complete(context.Background(), Request{})
	assert.Error(t, err)
}

func TestComplete_NonOKStatus_ReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	c := New(srv.URL, "key", nil)
	_, err := c.Complete(context.Background(), Request{Model: "gpt-4o-mini"})
	assert.Error(t, err)
}

func TestComplete_NoChoices_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := New(srv.URL, "key", nil)
	_, err := c.Complete(context.Background(), Request{Model: "gpt-4o-mini"})
	assert.Error(t, err)
}
