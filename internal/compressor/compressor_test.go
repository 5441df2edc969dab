package compressor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/samteezy/mcproxy/internal/llmclient"
	"github.com/samteezy/mcproxy/internal/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCompressor(t *testing.T, responseContent string) *Compressor {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": responseContent}}},
			"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 5},
		})
	}))
	t.Cleanup(srv.Close)

	client := llmclient.New(srv.URL, "key", nil)
	return New(client, "gpt-4o-mini", NewRateLimiterRegistry(100))
}

func TestCompress_BelowThreshold_Passthrough(t *testing.T) {
	c := newTestCompressor(t, "ignored")
	policy := resolver.ResolvedCompression{Enabled: true, TokenThreshold: 1000000, MaxOutputTokens: 500}

	result, err := c.Compress(context.Background(), "fs", "key1", "", "short content", policy)
	require.NoError(t, err)
	assert.Equal(t, "short content", result.Text)
	assert.Empty(t, result.Strategy)
}

func TestCompress_Disabled_Passthrough(t *testing.T) {
	c := newTestCompressor(t, "ignored")
	policy := resolver.ResolvedCompression{Enabled: false, TokenThreshold: 0}

	result, err := c.Compress(context.Background(), "fs", "key1", "", "any content at all", policy)
	require.NoError(t, err)
	assert.Equal(t, "any content at all", result.Text)
}

func TestCompress_AboveThreshold_CallsLLMAndPrependsHeader(t *testing.T) {
	c := newTestCompressor(t, "the compressed version")
	policy := resolver.ResolvedCompression{Enabled: true, TokenThreshold: 1, MaxOutputTokens: 500}

	long := "this is a long piece of content that certainly exceeds one token of threshold"
	result, err := c.Compress(context.Background(), "fs", "key2", "", long, policy)
	require.NoError(t, err)
	assert.Contains(t, result.Text, "[Compressed:")
	assert.Contains(t, result.Text, "the compressed version")
	assert.Equal(t, StrategyDefault, result.Strategy)
}

func TestCompress_StripsThinkTags(t *testing.T) {
	c := newTestCompressor(t, "<think>internal reasoning</think>final answer")
	policy := resolver.ResolvedCompression{Enabled: true, TokenThreshold: 1, MaxOutputTokens: 500}

	result, err := c.Compress(context.Background(), "fs", "key3", "", "content long enough to exceed threshold", policy)
	require.NoError(t, err)
	assert.NotContains(t, result.Text, "internal reasoning")
	assert.Contains(t, result.Text, "final answer")
	assert.Equal(t, "internal reasoning", result.Thinking)
}

func TestCompress_RateLimitExceeded_Errors(t *testing.T) {
	c := newTestCompressor(t, "ignored")
	limiter := c.limiters.For("fs")
	for limiter.Allow() {
	} // exhaust the bucket

	policy := resolver.ResolvedCompression{Enabled: true, TokenThreshold: 1, MaxOutputTokens: 500}
	_, err := c.Compress(context.Background(), "fs", "key4", "", "long enough content to exceed threshold", policy)
	assert.Error(t, err)
}

func TestDetectStrategy(t *testing.T) {
	assert.Equal(t, StrategyJSON, DetectStrategy(`{"a": 1}`))
	assert.Equal(t, StrategyJSON, DetectStrategy(`[1, 2, 3]`))
	assert.Equal(t, StrategyCode, DetectStrategy("func main() {\n  fmt.Println(\"hi\")\n}"))
	assert.Equal(t, StrategyDefault, DetectStrategy("just some plain prose here"))
}

func TestEscalation_LinearGrowth(t *testing.T) {
	assert.Equal(t, 1.0, Escalation(1, 0.5))
	assert.Equal(t, 1.5, Escalation(2, 0.5))
	assert.Equal(t, 2.0, Escalation(3, 0.5))
}

func TestRetryTracker_AttemptIncrementsPerKey(t *testing.T) {
	rt := NewRetryTracker()
	assert.Equal(t, 1, rt.Attempt("k"))
	assert.Equal(t, 2, rt.Attempt("k"))
	assert.Equal(t, 1, rt.Attempt("other"))
}

func TestRetryTracker_ResetClearsCount(t *testing.T) {
	rt := NewRetryTracker()
	rt.Attempt("k")
	rt.Attempt("k")
	rt.Reset("k")
	assert.Equal(t, 1, rt.Attempt("k"))
}

func TestMetrics_SnapshotComputesBytesSaved(t *testing.T) {
	m := NewMetrics()
	m.RecordSuccess(1000, 200)
	snap := m.Snapshot()
	assert.Equal(t, int64(800), snap.BytesSaved)
	assert.InDelta(t, 0.2, snap.CompressionRate, 0.001)
}

func TestRateLimiterRegistry_PerUpstreamIsolation(t *testing.T) {
	reg := NewRateLimiterRegistry(1)
	a := reg.For("fs")
	b := reg.For("git")
	assert.True(t, a.Allow())
	assert.True(t, b.Allow())
	assert.False(t, a.Allow(), "fs bucket should be exhausted independent of git's")
}
