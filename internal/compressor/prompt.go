package compressor

import "fmt"

const (
	jsonSystemPrompt = "You compress JSON tool output while preserving every field a caller might need. " +
		"Summarize large arrays and deeply nested structures; never invent fields. " +
		"Respond with the compressed content only, no commentary."

	codeSystemPrompt = "You compress source-code-shaped tool output. " +
		"Keep signatures, structure, and anything referenced by the goal; elide repetitive bodies. " +
		"Respond with the compressed content only, no commentary."

	defaultSystemPrompt = "You compress verbose tool output to its essential meaning. " +
		"Respond with the compressed content only, no commentary."
)

// SystemPromptFor returns the base system prompt for a detected strategy,
// optionally appended with the caller's per-tool custom instructions.
func SystemPromptFor(strategy Strategy, customInstructions string) string {
	base := defaultSystemPrompt
	switch strategy {
	case StrategyJSON:
		base = jsonSystemPrompt
	case StrategyCode:
		base = codeSystemPrompt
	}
	if customInstructions != "" {
		return base + "\n\n" + customInstructions
	}
	return base
}

// UserPrompt builds the user-turn content: the goal (if any) followed by
// the raw content to compress.
func UserPrompt(goal, content string) string {
	if goal == "" {
		return content
	}
	return fmt.Sprintf("Goal: %s\n\n%s", goal, content)
}

// MetadataHeader formats the "[Compressed: ...]" line spec.md §4.I
// prepends to every compressed result.
func MetadataHeader(originalTokens, compressedTokens int, strategy Strategy, escalation float64) string {
	if escalation > 1 {
		return fmt.Sprintf("[Compressed: %d→%d tokens, strategy: %s, escalation: %.1fx]", originalTokens, compressedTokens, strategy, escalation)
	}
	return fmt.Sprintf("[Compressed: %d→%d tokens, strategy: %s]", originalTokens, compressedTokens, strategy)
}
