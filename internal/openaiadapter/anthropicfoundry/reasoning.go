package anthropicfoundry

import (
	"github.com/anthropics/anthropic-sdk-go"
)

// buildThinking maps OpenAI's reasoning effort levels to Anthropic's
// explicit thinking token budgets.
//
// Mapping: low ≈ 1,024 tokens, medium ≈ 8,192 tokens, high ≈ 24,576 tokens
func buildThinking(reasoningEffort *string) anthropic.ThinkingConfigParamUnion {
	var thinking anthropic.ThinkingConfigParamUnion
	if reasoningEffort == nil {
		return thinking
	}

	switch *reasoningEffort {
	case "low":
		thinking = anthropic.ThinkingConfigParamOfEnabled(1024)
	case "medium":
		thinking = anthropic.ThinkingConfigParamOfEnabled(8192)
	case "high":
		thinking = anthropic.ThinkingConfigParamOfEnabled(24576)
	default:
		// Unknown reasoning_effort values are ignored; thinking remains unset
	}

	return thinking
}
