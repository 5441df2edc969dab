package masker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samteezy/mcproxy/internal/llmclient"
	"github.com/samteezy/mcproxy/internal/pii"
)

const llmFallbackSystemPrompt = `You detect personally identifiable information a regex pattern library may have missed.
Given a block of text, return a JSON array of objects {"text": "<exact substring>", "kind": "<category>"}.
Only report substrings that are genuinely sensitive personal information. Return "[]" if nothing qualifies.`

type llmDetection struct {
	Text string `json:"text"`
	Kind string `json:"kind"`
}

// LLMFallback asks an LLM to find PII the regex pass missed, and replaces
// each match with a synthetic "<LLM_DETECTED_<KIND>>" marker directly in
// the text. threshold does not filter the detections: every reported
// match is replaced. These markers are
// not added to restoreMap: an LLM-origin detection has no placeholder
// number to invert, so Restore leaves them untouched by design (spec.md
// §4.H's documented restoration asymmetry).
func (m *Masker) LLMFallback(ctx context.Context, client *llmclient.Client, model, text string, threshold pii.Tier) (string, error) {
	if text == "" || client == nil {
		return text, nil
	}

	req := llmclient.Request{
		Model:        model,
		SystemPrompt: llmFallbackSystemPrompt,
		UserPrompt:   text,
		MaxTokens:    512,
	}
	res, err := client.Complete(ctx, req)
	if err != nil {
		return text, fmt.Errorf("masker: llm fallback call failed: %w", err)
	}

	var detections []llmDetection
	if err := json.Unmarshal([]byte(strings.TrimSpace(res.Content)), &detections); err != nil {
		return text, fmt.Errorf("masker: llm fallback returned unparseable output: %w", err)
	}

	out := text
	for _, d := range detections {
		if d.Text == "" {
			continue
		}
		marker := fmt.Sprintf("<LLM_DETECTED_%s>", strings.ToUpper(d.Kind))
		out = strings.ReplaceAll(out, d.Text, marker)
	}
	return out, nil
}
