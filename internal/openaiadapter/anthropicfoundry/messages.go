package anthropicfoundry

import (
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"foundry-relay/internal/openaiadapter/types"
)

// splitMessages hoists system messages into the dedicated system prompt and
// shapes the rest for the Messages API. System parts keep their original
// order and are joined by newlines into a single text block.
//
// Non-system roles pass through untranslated; the backend owns role
// validation and its rejection travels back to the client as a regular
// backend error. A message without a role counts as a user turn.
func splitMessages(messages []types.ChatCompletionMessage) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var systemParts []string
	turns := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		role := msg.Role
		if role == "" {
			role = types.RoleUser
		}
		if role == types.RoleSystem {
			systemParts = append(systemParts, msg.Content)
			continue
		}

		turns = append(turns, anthropic.MessageParam{
			Role:    anthropic.MessageParamRole(role),
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
		})
	}

	var system []anthropic.TextBlockParam
	if len(systemParts) > 0 {
		system = []anthropic.TextBlockParam{{Text: strings.Join(systemParts, "\n")}}
	}

	return system, turns
}

// promptText flattens the conversation into one string for token estimation.
func promptText(messages []types.ChatCompletionMessage) string {
	var b strings.Builder
	for _, msg := range messages {
		b.WriteString(msg.Content)
		b.WriteByte('\n')
	}
	return b.String()
}
