package types

import "time"

// Wire object discriminators.
const (
	ObjectChatCompletion      = "chat.completion"
	ObjectChatCompletionChunk = "chat.completion.chunk"
	ObjectTextCompletion      = "text_completion"
	ObjectModel               = "model"
	ObjectList                = "list"
	ObjectEmbedding           = "embedding"
)

// Message roles on the client protocol.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Finish states this relay emits. The client protocol defines more
// (length, content_filter), but a relayed choice only ever terminates
// in one of these two.
const (
	FinishReasonStop      = "stop"
	FinishReasonToolCalls = "tool_calls"
)

// ToolTypeFunction is the only tool type the client protocol defines today.
const ToolTypeFunction = "function"

// UnknownModel is the placeholder model id used on responses when the client
// did not supply one.
const UnknownModel = "unknown-model"

// ErrorResponseID marks completions that carry an error rendered as content.
// Handlers use it to tell real completions from embedded failures.
const ErrorResponseID = "error"

// CreateChatCompletionRequest is the inbound body of POST /v1/chat/completions.
type CreateChatCompletionRequest struct {
	Model    string                  `json:"model"`
	Messages []ChatCompletionMessage `json:"messages"`

	// Tools is the current tool declaration list; Functions is the legacy
	// spelling some clients still send. Tools wins when both are present.
	Tools     []ChatCompletionTool `json:"tools,omitempty"`
	Functions []FunctionDefinition `json:"functions,omitempty"`

	Stream          *bool    `json:"stream,omitempty"`
	MaxTokens       *int64   `json:"max_tokens,omitempty" validate:"omitempty,gte=1"`
	Temperature     *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	User            *string  `json:"user,omitempty"`
	ReasoningEffort *string  `json:"reasoning_effort,omitempty"`
}

// IsStream reports whether the client requested SSE delivery.
func (r *CreateChatCompletionRequest) IsStream() bool {
	return r.Stream != nil && *r.Stream
}

// ToolNames returns the declared tool names, preferring tools over the legacy
// functions list. An empty result disables tool-call extraction entirely.
func (r *CreateChatCompletionRequest) ToolNames() []string {
	if len(r.Tools) > 0 {
		names := make([]string, 0, len(r.Tools))
		for _, t := range r.Tools {
			if t.Type == ToolTypeFunction && t.Function.Name != "" {
				names = append(names, t.Function.Name)
			}
		}
		return names
	}

	names := make([]string, 0, len(r.Functions))
	for _, f := range r.Functions {
		if f.Name != "" {
			names = append(names, f.Name)
		}
	}
	return names
}

// ChatCompletionMessage is one role-tagged turn of the inbound conversation.
type ChatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionTool declares a callable function to the model.
// The parameters schema is carried but never validated by the relay.
type ChatCompletionTool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes a single function tool.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description *string        `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// CreateChatCompletionResponse is the non-streaming response body.
type CreateChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Model   string                 `json:"model"`
	Created int64                  `json:"created"`
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   CompletionUsage        `json:"usage"`
}

// ChatCompletionChoice is a single completion alternative. The relay always
// emits exactly one.
type ChatCompletionChoice struct {
	Index        int                           `json:"index"`
	Message      ChatCompletionResponseMessage `json:"message"`
	FinishReason string                        `json:"finish_reason"`
}

// ChatCompletionResponseMessage is the assistant message of a completed choice.
// ReasoningContent is an extension field carrying the model's thinking text
// when extended thinking was requested.
type ChatCompletionResponseMessage struct {
	Role             string                          `json:"role"`
	Content          string                          `json:"content"`
	ReasoningContent string                          `json:"reasoning_content,omitempty"`
	ToolCalls        []ChatCompletionMessageToolCall `json:"tool_calls,omitempty"`
}

// ChatCompletionMessageToolCall is a completed tool invocation on the wire.
type ChatCompletionMessageToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the invoked function name and its arguments.
// Arguments is a JSON-encoded object string, never a nested object; clients
// parse it themselves.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// CreateChatCompletionStreamResponse is one SSE chunk of a streamed completion.
type CreateChatCompletionStreamResponse struct {
	ID      string                       `json:"id"`
	Object  string                       `json:"object"`
	Model   string                       `json:"model"`
	Created int64                        `json:"created"`
	Choices []ChatCompletionStreamChoice `json:"choices"`
	Usage   *CompletionUsage             `json:"usage,omitempty"`
}

// ChatCompletionStreamChoice is the single choice of a streamed chunk.
// FinishReason marshals as null until the terminal chunk, as clients expect.
type ChatCompletionStreamChoice struct {
	Index        int                       `json:"index"`
	Delta        ChatCompletionStreamDelta `json:"delta"`
	FinishReason *string                   `json:"finish_reason"`
}

// ChatCompletionStreamDelta carries the incremental payload of a chunk.
// Content is a pointer so that an explicit empty string survives marshaling
// while tool-call chunks omit the field entirely.
type ChatCompletionStreamDelta struct {
	Role      string                               `json:"role,omitempty"`
	Content   *string                              `json:"content,omitempty"`
	ToolCalls []ChatCompletionMessageToolCallChunk `json:"tool_calls,omitempty"`
}

// ChatCompletionMessageToolCallChunk is a tool-call fragment inside a delta.
// Index is required by the client protocol even for a single call.
type ChatCompletionMessageToolCallChunk struct {
	Index    int          `json:"index"`
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

// CompletionUsage accumulates token counts in the client protocol's naming.
type CompletionUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// NewErrorChatCompletion renders an error as a normal-looking completion:
// HTTP 200, the error text in the content slot, finish_reason stop, usage
// zeroed. Thin clients that never inspect non-2xx bodies still surface the
// message to the user this way.
func NewErrorChatCompletion(model, message string) *CreateChatCompletionResponse {
	return &CreateChatCompletionResponse{
		ID:      ErrorResponseID,
		Object:  ObjectChatCompletion,
		Model:   modelOrUnknown(model),
		Created: time.Now().Unix(),
		Choices: []ChatCompletionChoice{
			{
				Index: 0,
				Message: ChatCompletionResponseMessage{
					Role:    RoleAssistant,
					Content: message,
				},
				FinishReason: FinishReasonStop,
			},
		},
		Usage: CompletionUsage{},
	}
}

// NewErrorChatCompletionChunks renders an error as the streamed equivalent of
// NewErrorChatCompletion: a content chunk carrying the error text followed by
// a terminal chunk with finish_reason stop and zeroed usage.
func NewErrorChatCompletionChunks(model, message string) []*CreateChatCompletionStreamResponse {
	created := time.Now().Unix()
	modelID := modelOrUnknown(model)
	content := message
	finish := FinishReasonStop

	return []*CreateChatCompletionStreamResponse{
		{
			ID:      ErrorResponseID,
			Object:  ObjectChatCompletionChunk,
			Model:   modelID,
			Created: created,
			Choices: []ChatCompletionStreamChoice{
				{
					Index: 0,
					Delta: ChatCompletionStreamDelta{
						Role:    RoleAssistant,
						Content: &content,
					},
				},
			},
		},
		{
			ID:      ErrorResponseID,
			Object:  ObjectChatCompletionChunk,
			Model:   modelID,
			Created: created,
			Choices: []ChatCompletionStreamChoice{
				{
					Index:        0,
					Delta:        ChatCompletionStreamDelta{},
					FinishReason: &finish,
				},
			},
			Usage: &CompletionUsage{},
		},
	}
}

func modelOrUnknown(model string) string {
	if model == "" {
		return UnknownModel
	}
	return model
}
