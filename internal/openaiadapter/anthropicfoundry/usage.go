package anthropicfoundry

import (
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/pkoukk/tiktoken-go"

	"foundry-relay/internal/openaiadapter/types"
)

// toCompletionUsage converts Anthropic usage metadata to the OpenAI shape.
// The Messages API reports input and output tokens only; the total is
// computed here.
func toCompletionUsage(usage anthropic.Usage) types.CompletionUsage {
	return types.CompletionUsage{
		PromptTokens:     usage.InputTokens,
		CompletionTokens: usage.OutputTokens,
		TotalTokens:      usage.InputTokens + usage.OutputTokens,
	}
}

// estimateUsage approximates token counts with the cl100k_base encoding for
// streams whose accumulated usage came back empty. Estimates beat zeros for
// clients that meter by usage. Returns zeros when the encoding cannot be
// loaded.
func estimateUsage(prompt, completion string) types.CompletionUsage {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return types.CompletionUsage{}
	}

	promptTokens := int64(len(enc.Encode(prompt, nil, nil)))
	completionTokens := int64(len(enc.Encode(completion, nil, nil)))
	return types.CompletionUsage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}
