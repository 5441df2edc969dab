package compressor

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Strategy names the compression prompt variant chosen for a payload.
type Strategy string

const (
	StrategyJSON    Strategy = "json"
	StrategyCode    Strategy = "code"
	StrategyDefault Strategy = "default"
)

// codeHeuristics is a fixed set of independent signals that a payload is
// source code. Any single one of these (a stray "import", a brace on its
// own line) shows up plenty in ordinary prose or log output, so
// DetectStrategy requires at least two to agree before committing to the
// code strategy.
var codeHeuristics = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*(func|def|class|import|package|const|let|var|public|private|#include)\b`),
	regexp.MustCompile(`[;{}]\s*$`),
	regexp.MustCompile(`(?m)^\s*(//|#|/\*)`),
	regexp.MustCompile(`=>|::|->`),
	regexp.MustCompile(`(?m)^\s{2,}\S`),
}

const codeHeuristicThreshold = 2

// DetectStrategy classifies a text payload so the compressor can pick a
// tailored prompt: structurally valid JSON gets the JSON strategy, text
// matching at least codeHeuristicThreshold independent code heuristics gets
// the code strategy, everything else gets the default strategy.
func DetectStrategy(content string) Strategy {
	trimmed := strings.TrimSpace(content)
	if looksLikeJSON(trimmed) {
		return StrategyJSON
	}
	matches := 0
	for _, h := range codeHeuristics {
		if h.MatchString(content) {
			matches++
		}
	}
	if matches >= codeHeuristicThreshold {
		return StrategyCode
	}
	return StrategyDefault
}

func looksLikeJSON(trimmed string) bool {
	if trimmed == "" {
		return false
	}
	first := trimmed[0]
	if first != '{' && first != '[' {
		return false
	}
	var v any
	return json.Unmarshal([]byte(trimmed), &v) == nil
}

var thinkTag = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinking removes any <think>...</think> blocks an LLM compression
// response included, returning the cleaned text. Some reasoning models
// emit these even when not asked to.
func StripThinking(text string) string {
	return strings.TrimSpace(thinkTag.ReplaceAllString(text, ""))
}

// ExtractThinking returns the concatenated contents of every <think> block
// in text, for callers that want to log or inspect the model's reasoning
// separately from the compressed output.
func ExtractThinking(text string) string {
	matches := thinkTag.FindAllString(text, -1)
	var b strings.Builder
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n")
		}
		inner := strings.TrimPrefix(m, "<think>")
		inner = strings.TrimSuffix(inner, "</think>")
		b.WriteString(strings.TrimSpace(inner))
	}
	return b.String()
}
