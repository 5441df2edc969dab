// Package llmclient calls an OpenAI-compatible chat completions endpoint
// for compression and summarization, the one LLM backend this proxy
// targets.
//
// DESIGN: trimmed from the teacher's external/llm.go multi-provider
// CallLLM, which also dispatched to Anthropic, Gemini, and Bedrock via
// DetectProvider. Only the OpenAI Chat Completions branch survives here;
// the rest of that dispatch has no home in this proxy's OpenAI-only scope.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds a single compression call.
	DefaultTimeout = 30 * time.Second

	maxResponseSize = 10 * 1024 * 1024
	maxErrorBodyLen = 500
)

// Client calls one OpenAI-compatible endpoint.
type Client struct {
	Endpoint string
	APIKey   string
	HTTP     *http.Client
}

// New builds a Client. If httpClient is nil a default one is used; the
// per-call timeout is applied via context, not the client, so callers can
// share one Client across calls with different deadlines.
func New(endpoint, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{Endpoint: endpoint, APIKey: apiKey, HTTP: httpClient}
}

// Request is one compression or summarization call.
type Request struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Timeout      time.Duration
}

// Result is the parsed content and token usage from a completed call.
type Result struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	MaxCompletionTokens int           `json:"max_completion_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete issues one chat completion call. Temperature is intentionally
// omitted from the request body: some OpenAI-compatible models (the
// o-series reasoning models) reject the field outright.
func (c *Client) Complete(ctx context.Context, req Request) (*Result, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("llmclient: model required")
	}
	if c.Endpoint == "" {
		return nil, fmt.Errorf("llmclient: endpoint required")
	}
	timeout := req.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	body, err := json.Marshal(chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		MaxCompletionTokens: req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("llmclient: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llmclient: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llmclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("llmclient: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		errBody := string(respBody)
		if len(errBody) > maxErrorBodyLen {
			errBody = errBody[:maxErrorBodyLen] + "... (truncated)"
		}
		return nil, fmt.Errorf("llmclient: api returned status %d: %s", resp.StatusCode, errBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("llmclient: parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("llmclient: response contained no choices")
	}

	return &Result{
		Content:      parsed.Choices[0].Message.Content,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
	}, nil
}
