package anthropicfoundry

import (
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"foundry-relay/internal/openaiadapter/types"
	"foundry-relay/internal/toolbridge"
)

// emptyResponseMessage replaces a completion that carries no text, no
// reasoning, and no tool call. Several clients treat an all-empty completion
// as a fatal protocol violation, so the relay degrades it to an explicit
// in-band error instead.
const emptyResponseMessage = "response was empty"

// result is the adapter's view of one completed backend message after
// content collection and tool extraction.
type result struct {
	id        string
	model     string
	text      string
	reasoning string
	calls     []toolbridge.Call
	usage     types.CompletionUsage
}

// collectMessage extracts the first text block and all thinking blocks of a
// completed message. The chat shapes this relay sends produce at most one
// text block; thinking may arrive split and is concatenated.
func collectMessage(message *anthropic.Message) result {
	res := result{
		id:    message.ID,
		model: string(message.Model),
		usage: toCompletionUsage(message.Usage),
	}

	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			if res.text == "" {
				res.text = variant.Text
			}
		case anthropic.ThinkingBlock:
			res.reasoning += variant.Thinking
		}
	}

	return res
}

// isEmpty reports whether the result carries nothing a client could act on.
func isEmpty(res result) bool {
	return res.text == "" && res.reasoning == "" && len(res.calls) == 0
}

// assembleCompletion shapes one backend result as a chat.completion object.
func assembleCompletion(clientReq types.CreateChatCompletionRequest, res result) *types.CreateChatCompletionResponse {
	if isEmpty(res) {
		return types.NewErrorChatCompletion(clientReq.Model, emptyResponseMessage)
	}

	message := types.ChatCompletionResponseMessage{
		Role:             types.RoleAssistant,
		Content:          res.text,
		ReasoningContent: res.reasoning,
	}
	finish := types.FinishReasonStop
	if len(res.calls) > 0 {
		finish = types.FinishReasonToolCalls
		message.ToolCalls = toMessageToolCalls(res.calls)
	}

	return &types.CreateChatCompletionResponse{
		ID:      responseID(res.id),
		Object:  types.ObjectChatCompletion,
		Model:   modelName(clientReq.Model, res.model),
		Created: time.Now().Unix(),
		Choices: []types.ChatCompletionChoice{
			{
				Index:        0,
				Message:      message,
				FinishReason: finish,
			},
		},
		Usage: res.usage,
	}
}

// assembleChunks renders one backend result as the coarse two-chunk stream:
// a delta chunk carrying either the remaining text or the first tool call,
// then a terminal chunk carrying the finish reason and usage.
func assembleChunks(clientReq types.CreateChatCompletionRequest, res result) []*types.CreateChatCompletionStreamResponse {
	if isEmpty(res) {
		return types.NewErrorChatCompletionChunks(clientReq.Model, emptyResponseMessage)
	}

	id := responseID(res.id)
	model := modelName(clientReq.Model, res.model)
	created := time.Now().Unix()

	first := types.ChatCompletionStreamChoice{
		Index: 0,
		Delta: types.ChatCompletionStreamDelta{Role: types.RoleAssistant},
	}
	finish := types.FinishReasonStop
	if len(res.calls) > 0 {
		finish = types.FinishReasonToolCalls
		// Only the first extracted call travels on the stream, with the
		// explicit zero index clients require on tool-call fragments.
		call := res.calls[0]
		first.Delta.ToolCalls = []types.ChatCompletionMessageToolCallChunk{
			{
				Index: 0,
				ID:    call.ID,
				Type:  types.ToolTypeFunction,
				Function: types.FunctionCall{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			},
		}
	} else {
		content := res.text
		first.Delta.Content = &content
	}

	usage := res.usage
	return []*types.CreateChatCompletionStreamResponse{
		{
			ID:      id,
			Object:  types.ObjectChatCompletionChunk,
			Model:   model,
			Created: created,
			Choices: []types.ChatCompletionStreamChoice{first},
		},
		{
			ID:      id,
			Object:  types.ObjectChatCompletionChunk,
			Model:   model,
			Created: created,
			Choices: []types.ChatCompletionStreamChoice{
				{
					Index:        0,
					Delta:        types.ChatCompletionStreamDelta{},
					FinishReason: &finish,
				},
			},
			Usage: &usage,
		},
	}
}

// toMessageToolCalls converts extracted calls to the wire's tool_calls shape.
func toMessageToolCalls(calls []toolbridge.Call) []types.ChatCompletionMessageToolCall {
	out := make([]types.ChatCompletionMessageToolCall, 0, len(calls))
	for _, call := range calls {
		out = append(out, types.ChatCompletionMessageToolCall{
			ID:   call.ID,
			Type: types.ToolTypeFunction,
			Function: types.FunctionCall{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		})
	}
	return out
}
