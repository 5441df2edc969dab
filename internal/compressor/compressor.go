// Package compressor compresses oversized tool and resource results
// through an LLM, choosing a prompt strategy by content shape and
// escalating the output token budget on repeated calls for the same
// logical request, per spec.md §4.I and §4.M.
package compressor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/samteezy/mcproxy/internal/llmclient"
	"github.com/samteezy/mcproxy/internal/resolver"
	"github.com/samteezy/mcproxy/internal/tokenizer"
)

// Compressor wires the tokenizer, LLM client, per-upstream rate limiters,
// and retry escalation into one compression operation.
type Compressor struct {
	client    *llmclient.Client
	counter   *tokenizer.Counter
	limiters  *RateLimiterRegistry
	retries   *RetryTracker
	metrics   *Metrics
	modelName string // fallback model when a tool's resolved policy leaves Model empty
}

// New builds a Compressor. defaultModel is used whenever a resolved
// policy's Model field is empty.
func New(client *llmclient.Client, defaultModel string, limiters *RateLimiterRegistry) *Compressor {
	return &Compressor{
		client:    client,
		counter:   tokenizer.New(),
		limiters:  limiters,
		retries:   NewRetryTracker(),
		metrics:   NewMetrics(),
		modelName: defaultModel,
	}
}

// Metrics exposes the running counters for the admin status endpoint.
func (c *Compressor) Metrics() *Metrics {
	return c.metrics
}

// Result is a compressed tool/resource output ready to send downstream.
type Result struct {
	Text       string
	Strategy   Strategy
	Original   int
	Compressed int
	Escalation float64
	Thinking   string
}

// Compress runs one compression pass over content if it exceeds the
// resolved token threshold; otherwise it returns the content unchanged,
// with Strategy left empty and no metadata header.
func (c *Compressor) Compress(ctx context.Context, upstreamID, cacheKey, goal, content string, policy resolver.ResolvedCompression) (Result, error) {
	originalTokens := c.counter.Count(content)
	if !policy.Enabled || originalTokens <= policy.TokenThreshold {
		return Result{Text: content, Original: originalTokens, Compressed: originalTokens}, nil
	}

	limiter := c.limiters.For(upstreamID)
	if !limiter.Allow() {
		c.metrics.RecordRateLimited()
		return Result{}, fmt.Errorf("compressor: rate limit exceeded for upstream %q", upstreamID)
	}

	attempt := c.retries.Attempt(cacheKey)
	escalation := Escalation(attempt, 0.5)
	maxTokens := int(float64(policy.MaxOutputTokens) * escalation)

	strategy := DetectStrategy(content)
	model := policy.Model
	if model == "" {
		model = c.modelName
	}

	effectiveGoal := goal
	if !policy.GoalAware {
		effectiveGoal = ""
	}

	req := llmclient.Request{
		Model:        model,
		SystemPrompt: SystemPromptFor(strategy, policy.CustomInstructions),
		UserPrompt:   UserPrompt(effectiveGoal, content),
		MaxTokens:    maxTokens,
	}

	res, err := c.client.Complete(ctx, req)
	if err != nil {
		c.metrics.RecordFailure()
		log.Warn().Err(err).Str("upstream", upstreamID).Str("strategy", string(strategy)).Msg("compression call failed")
		return Result{}, fmt.Errorf("compressor: llm call failed: %w", err)
	}

	c.retries.Reset(cacheKey)

	thinking := ExtractThinking(res.Content)
	cleaned := StripThinking(res.Content)
	compressedTokens := c.counter.Count(cleaned)

	c.metrics.RecordSuccess(len(content), len(cleaned))

	header := MetadataHeader(originalTokens, compressedTokens, strategy, escalation)
	final := header + "\n" + cleaned

	return Result{
		Text:       final,
		Strategy:   strategy,
		Original:   originalTokens,
		Compressed: compressedTokens,
		Escalation: escalation,
		Thinking:   thinking,
	}, nil
}

// stripLeadingHeader removes a previously-applied metadata header from a
// cached compressed result before it's re-compressed or re-measured, so
// repeated compression passes don't compound headers.
func stripLeadingHeader(text string) string {
	if !strings.HasPrefix(text, "[Compressed:") {
		return text
	}
	idx := strings.IndexByte(text, '\n')
	if idx < 0 {
		return text
	}
	return text[idx+1:]
}
