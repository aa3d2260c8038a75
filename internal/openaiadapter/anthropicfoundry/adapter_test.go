package anthropicfoundry

import (
	"context"
	"encoding/json"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foundry-relay/internal/openaiadapter/types"
	"foundry-relay/internal/routing"
)

// mockTransport returns pre-recorded responses without network calls and
// captures outbound requests for inspection.
type mockTransport struct {
	status      int
	contentType string
	body        string
	err         error

	requests []*http.Request
	bodies   [][]byte
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var payload []byte
	if req.Body != nil {
		payload, _ = io.ReadAll(req.Body)
		_ = req.Body.Close()
	}
	m.requests = append(m.requests, req)
	m.bodies = append(m.bodies, payload)

	if m.err != nil {
		return nil, m.err
	}

	contentType := m.contentType
	if contentType == "" {
		contentType = "application/json"
	}
	return &http.Response{
		StatusCode: m.status,
		Body:       io.NopCloser(strings.NewReader(m.body)),
		Header:     http.Header{"Content-Type": []string{contentType}},
		Request:    req,
	}, nil
}

var testRoute = routing.BackendConfig{
	Resource:   "myresource",
	Credential: "foundry-key-123",
	Model:      "claude-sonnet-4-5",
}

func newTestAdapter() *CreateChatCompletionAdapter {
	return NewCreateChatCompletionAdapter(0, 30*time.Second, nil)
}

func collectChunks(t *testing.T, seq iter.Seq2[*types.CreateChatCompletionStreamResponse, error]) []*types.CreateChatCompletionStreamResponse {
	t.Helper()

	var chunks []*types.CreateChatCompletionStreamResponse
	for chunk, err := range seq {
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}
	return chunks
}

const bufferedTextResponse = `{
	"id": "msg_01",
	"type": "message",
	"role": "assistant",
	"model": "claude-sonnet-4-5",
	"content": [{"type": "text", "text": "OK"}],
	"stop_reason": "end_turn",
	"usage": {"input_tokens": 10, "output_tokens": 5}
}`

func TestProcessRequestText(t *testing.T) {
	transport := &mockTransport{status: http.StatusOK, body: bufferedTextResponse}
	adapter := newTestAdapter()

	req := types.CreateChatCompletionRequest{
		Model: "claude-sonnet-4-5",
		Messages: []types.ChatCompletionMessage{
			{Role: "user", Content: "Say OK"},
		},
	}

	resp, err := adapter.ProcessRequest(context.Background(), req, testRoute, transport)
	require.NoError(t, err)

	assert.Equal(t, "msg_01", resp.ID)
	assert.Equal(t, types.ObjectChatCompletion, resp.Object)
	assert.Equal(t, "claude-sonnet-4-5", resp.Model)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "OK", resp.Choices[0].Message.Content)
	assert.Equal(t, types.RoleAssistant, resp.Choices[0].Message.Role)
	assert.Equal(t, types.FinishReasonStop, resp.Choices[0].FinishReason)
	assert.Empty(t, resp.Choices[0].Message.ToolCalls)
	assert.Equal(t, int64(10), resp.Usage.PromptTokens)
	assert.Equal(t, int64(5), resp.Usage.CompletionTokens)
	assert.Equal(t, int64(15), resp.Usage.TotalTokens)

	// The request must hit the per-tenant Foundry endpoint with the
	// per-request credential.
	require.Len(t, transport.requests, 1)
	sent := transport.requests[0]
	assert.Equal(t, "myresource.services.ai.azure.com", sent.URL.Host)
	assert.Equal(t, "/anthropic/v1/messages", sent.URL.Path)
	assert.Equal(t, "foundry-key-123", sent.Header.Get("X-Api-Key"))
}

func TestProcessRequestPayloadShape(t *testing.T) {
	transport := &mockTransport{status: http.StatusOK, body: bufferedTextResponse}
	adapter := newTestAdapter()

	temp := 0.5
	maxTokens := int64(256)
	req := types.CreateChatCompletionRequest{
		Model: "claude-sonnet-4-5",
		Messages: []types.ChatCompletionMessage{
			{Role: "system", Content: "be brief"},
			{Role: "system", Content: "answer in English"},
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi"},
			{Role: "user", Content: "bye"},
		},
		MaxTokens:   &maxTokens,
		Temperature: &temp,
	}

	_, err := adapter.ProcessRequest(context.Background(), req, testRoute, transport)
	require.NoError(t, err)

	require.Len(t, transport.bodies, 1)
	var payload struct {
		Model     string  `json:"model"`
		MaxTokens int64   `json:"max_tokens"`
		Temp      float64 `json:"temperature"`
		System    []struct {
			Text string `json:"text"`
		} `json:"system"`
		Messages []struct {
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(transport.bodies[0], &payload))

	assert.Equal(t, "claude-sonnet-4-5", payload.Model)
	assert.Equal(t, int64(256), payload.MaxTokens)
	assert.Equal(t, 0.5, payload.Temp)

	// Both system messages collapse into one block, joined in order.
	require.Len(t, payload.System, 1)
	assert.Equal(t, "be brief\nanswer in English", payload.System[0].Text)

	require.Len(t, payload.Messages, 3)
	assert.Equal(t, "user", payload.Messages[0].Role)
	assert.Equal(t, "hello", payload.Messages[0].Content[0].Text)
	assert.Equal(t, "assistant", payload.Messages[1].Role)
	assert.Equal(t, "user", payload.Messages[2].Role)
}

func TestProcessRequestDefaultMaxTokens(t *testing.T) {
	transport := &mockTransport{status: http.StatusOK, body: bufferedTextResponse}
	adapter := newTestAdapter()

	req := types.CreateChatCompletionRequest{
		Model:    "claude-sonnet-4-5",
		Messages: []types.ChatCompletionMessage{{Role: "user", Content: "hi"}},
	}

	_, err := adapter.ProcessRequest(context.Background(), req, testRoute, transport)
	require.NoError(t, err)

	var payload struct {
		MaxTokens int64    `json:"max_tokens"`
		Temp      *float64 `json:"temperature"`
	}
	require.NoError(t, json.Unmarshal(transport.bodies[0], &payload))
	assert.Equal(t, int64(defaultMaxTokens), payload.MaxTokens)
	assert.Nil(t, payload.Temp)
}

func TestProcessRequestToolBridge(t *testing.T) {
	transport := &mockTransport{status: http.StatusOK, body: `{
		"id": "msg_02",
		"type": "message",
		"role": "assistant",
		"model": "claude-sonnet-4-5",
		"content": [{"type": "text", "text": "<read_file><path>/tmp/a.txt</path></read_file>\n<search><query>go</query></search>"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 20, "output_tokens": 30}
	}`}
	adapter := newTestAdapter()

	req := types.CreateChatCompletionRequest{
		Model:    "claude-sonnet-4-5",
		Messages: []types.ChatCompletionMessage{{Role: "user", Content: "read then search"}},
		Tools: []types.ChatCompletionTool{
			{Type: "function", Function: types.FunctionDefinition{Name: "read_file"}},
			{Type: "function", Function: types.FunctionDefinition{Name: "search"}},
		},
	}

	resp, err := adapter.ProcessRequest(context.Background(), req, testRoute, transport)
	require.NoError(t, err)

	require.Len(t, resp.Choices, 1)
	choice := resp.Choices[0]
	assert.Equal(t, types.FinishReasonToolCalls, choice.FinishReason)
	assert.Equal(t, "", choice.Message.Content)

	require.Len(t, choice.Message.ToolCalls, 2)
	assert.Equal(t, "call_read_file_0", choice.Message.ToolCalls[0].ID)
	assert.Equal(t, "read_file", choice.Message.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"uri": "/tmp/a.txt"}`, choice.Message.ToolCalls[0].Function.Arguments)
	assert.Equal(t, "call_search_1", choice.Message.ToolCalls[1].ID)

	// Tool definitions must not be forwarded upstream.
	assert.NotContains(t, string(transport.bodies[0]), `"tools"`)
}

func TestProcessRequestReasoningContent(t *testing.T) {
	transport := &mockTransport{status: http.StatusOK, body: `{
		"id": "msg_03",
		"type": "message",
		"role": "assistant",
		"model": "claude-sonnet-4-5",
		"content": [
			{"type": "thinking", "thinking": "Let me think about this.", "signature": "sig"},
			{"type": "text", "text": "OK"}
		],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 8, "output_tokens": 40}
	}`}
	adapter := newTestAdapter()

	effort := "low"
	req := types.CreateChatCompletionRequest{
		Model:           "claude-sonnet-4-5",
		Messages:        []types.ChatCompletionMessage{{Role: "user", Content: "think"}},
		ReasoningEffort: &effort,
	}

	resp, err := adapter.ProcessRequest(context.Background(), req, testRoute, transport)
	require.NoError(t, err)

	assert.Equal(t, "OK", resp.Choices[0].Message.Content)
	assert.Equal(t, "Let me think about this.", resp.Choices[0].Message.ReasoningContent)

	// reasoning_effort low maps to an enabled thinking budget of 1024.
	var payload struct {
		Thinking struct {
			Type         string `json:"type"`
			BudgetTokens int64  `json:"budget_tokens"`
		} `json:"thinking"`
	}
	require.NoError(t, json.Unmarshal(transport.bodies[0], &payload))
	assert.Equal(t, "enabled", payload.Thinking.Type)
	assert.Equal(t, int64(1024), payload.Thinking.BudgetTokens)
}

func TestProcessRequestEmptyResponseGuard(t *testing.T) {
	transport := &mockTransport{status: http.StatusOK, body: `{
		"id": "msg_04",
		"type": "message",
		"role": "assistant",
		"model": "claude-sonnet-4-5",
		"content": [],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 5, "output_tokens": 0}
	}`}
	adapter := newTestAdapter()

	req := types.CreateChatCompletionRequest{
		Model:    "claude-sonnet-4-5",
		Messages: []types.ChatCompletionMessage{{Role: "user", Content: "hi"}},
	}

	resp, err := adapter.ProcessRequest(context.Background(), req, testRoute, transport)
	require.NoError(t, err)

	assert.Equal(t, "error", resp.ID)
	assert.Equal(t, "response was empty", resp.Choices[0].Message.Content)
	assert.Equal(t, types.FinishReasonStop, resp.Choices[0].FinishReason)
	assert.Equal(t, types.CompletionUsage{}, resp.Usage)
}

func TestProcessRequestBackendError(t *testing.T) {
	transport := &mockTransport{status: http.StatusUnauthorized, body: `{
		"type": "error",
		"error": {"type": "authentication_error", "message": "invalid x-api-key"}
	}`}
	adapter := newTestAdapter()

	req := types.CreateChatCompletionRequest{
		Model:    "claude-sonnet-4-5",
		Messages: []types.ChatCompletionMessage{{Role: "user", Content: "hi"}},
	}

	resp, err := adapter.ProcessRequest(context.Background(), req, testRoute, transport)
	require.NoError(t, err)

	assert.Equal(t, "error", resp.ID)
	assert.Equal(t, "claude-sonnet-4-5", resp.Model)
	content := resp.Choices[0].Message.Content
	assert.Contains(t, content, "authentication_error")
	assert.Contains(t, content, "invalid x-api-key")
	assert.Equal(t, types.FinishReasonStop, resp.Choices[0].FinishReason)
	assert.Equal(t, types.CompletionUsage{}, resp.Usage)
}

func TestProcessRequestCanceledContext(t *testing.T) {
	transport := &mockTransport{status: http.StatusOK, body: bufferedTextResponse}
	adapter := newTestAdapter()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := types.CreateChatCompletionRequest{
		Model:    "claude-sonnet-4-5",
		Messages: []types.ChatCompletionMessage{{Role: "user", Content: "hi"}},
	}

	resp, err := adapter.ProcessRequest(ctx, req, testRoute, transport)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, resp)
}

const streamedTextResponse = `event: message_start
data: {"type":"message_start","message":{"id":"msg_stream1","type":"message","role":"assistant","model":"claude-sonnet-4-5","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":12,"output_tokens":1}}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel"}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"lo"}}

event: content_block_stop
data: {"type":"content_block_stop","index":0}

event: message_delta
data: {"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":6}}

event: message_stop
data: {"type":"message_stop"}

`

func TestProcessStreamingRequestText(t *testing.T) {
	transport := &mockTransport{
		status:      http.StatusOK,
		contentType: "text/event-stream",
		body:        streamedTextResponse,
	}
	adapter := newTestAdapter()

	req := types.CreateChatCompletionRequest{
		Model:    "claude-sonnet-4-5",
		Messages: []types.ChatCompletionMessage{{Role: "user", Content: "Say hello"}},
	}

	seq, err := adapter.ProcessStreamingRequest(context.Background(), req, testRoute, transport)
	require.NoError(t, err)

	chunks := collectChunks(t, seq)
	require.Len(t, chunks, 2)

	first := chunks[0]
	assert.Equal(t, "msg_stream1", first.ID)
	assert.Equal(t, types.ObjectChatCompletionChunk, first.Object)
	require.Len(t, first.Choices, 1)
	assert.Equal(t, types.RoleAssistant, first.Choices[0].Delta.Role)
	require.NotNil(t, first.Choices[0].Delta.Content)
	assert.Equal(t, "Hello", *first.Choices[0].Delta.Content)
	assert.Nil(t, first.Choices[0].FinishReason)
	assert.Nil(t, first.Usage)

	terminal := chunks[1]
	require.NotNil(t, terminal.Choices[0].FinishReason)
	assert.Equal(t, types.FinishReasonStop, *terminal.Choices[0].FinishReason)
	require.NotNil(t, terminal.Usage)
	assert.Equal(t, int64(12), terminal.Usage.PromptTokens)
	assert.Equal(t, int64(6), terminal.Usage.CompletionTokens)
	assert.Equal(t, int64(18), terminal.Usage.TotalTokens)

	// The upstream call must request SSE delivery.
	var payload struct {
		Stream bool `json:"stream"`
	}
	require.NoError(t, json.Unmarshal(transport.bodies[0], &payload))
	assert.True(t, payload.Stream)
}

const streamedToolResponse = `event: message_start
data: {"type":"message_start","message":{"id":"msg_stream2","type":"message","role":"assistant","model":"claude-sonnet-4-5","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":30,"output_tokens":1}}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"<read_file><path>/a</path></read_file>"}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"<read_file><path>/b</path></read_file>"}}

event: content_block_stop
data: {"type":"content_block_stop","index":0}

event: message_delta
data: {"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":25}}

event: message_stop
data: {"type":"message_stop"}

`

func TestProcessStreamingRequestToolDelta(t *testing.T) {
	transport := &mockTransport{
		status:      http.StatusOK,
		contentType: "text/event-stream",
		body:        streamedToolResponse,
	}
	adapter := newTestAdapter()

	req := types.CreateChatCompletionRequest{
		Model:    "claude-sonnet-4-5",
		Messages: []types.ChatCompletionMessage{{Role: "user", Content: "read files"}},
		Tools: []types.ChatCompletionTool{
			{Type: "function", Function: types.FunctionDefinition{Name: "read_file"}},
		},
	}

	seq, err := adapter.ProcessStreamingRequest(context.Background(), req, testRoute, transport)
	require.NoError(t, err)

	chunks := collectChunks(t, seq)
	require.Len(t, chunks, 2)

	// Even though two calls were extracted, only the first travels on the
	// stream, at the explicit zero index.
	deltaCalls := chunks[0].Choices[0].Delta.ToolCalls
	require.Len(t, deltaCalls, 1)
	assert.Equal(t, 0, deltaCalls[0].Index)
	assert.Equal(t, "call_read_file_0", deltaCalls[0].ID)
	assert.Equal(t, "read_file", deltaCalls[0].Function.Name)
	assert.JSONEq(t, `{"uri": "/a"}`, deltaCalls[0].Function.Arguments)
	assert.Nil(t, chunks[0].Choices[0].Delta.Content)

	require.NotNil(t, chunks[1].Choices[0].FinishReason)
	assert.Equal(t, types.FinishReasonToolCalls, *chunks[1].Choices[0].FinishReason)
}

const streamedErrorResponse = `event: error
data: {"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}

`

func TestProcessStreamingRequestBackendError(t *testing.T) {
	transport := &mockTransport{
		status:      http.StatusOK,
		contentType: "text/event-stream",
		body:        streamedErrorResponse,
	}
	adapter := newTestAdapter()

	req := types.CreateChatCompletionRequest{
		Model:    "claude-sonnet-4-5",
		Messages: []types.ChatCompletionMessage{{Role: "user", Content: "hi"}},
	}

	seq, err := adapter.ProcessStreamingRequest(context.Background(), req, testRoute, transport)
	require.NoError(t, err)

	chunks := collectChunks(t, seq)
	require.Len(t, chunks, 2)

	assert.Equal(t, "error", chunks[0].ID)
	require.NotNil(t, chunks[0].Choices[0].Delta.Content)
	assert.Contains(t, *chunks[0].Choices[0].Delta.Content, "Overloaded")
	require.NotNil(t, chunks[1].Choices[0].FinishReason)
	assert.Equal(t, types.FinishReasonStop, *chunks[1].Choices[0].FinishReason)
	require.NotNil(t, chunks[1].Usage)
	assert.Equal(t, types.CompletionUsage{}, *chunks[1].Usage)
}

func TestErrorMessageConnectionHint(t *testing.T) {
	err := &url.Error{
		Op:  "Post",
		URL: "https://myresource.services.ai.azure.com/anthropic/v1/messages",
		Err: io.EOF,
	}

	msg := errorMessage(err, "myresource")
	assert.Contains(t, msg, "Could not reach Foundry resource 'myresource'")
	assert.Contains(t, msg, "Verify that the resource name in your apiKey is correct and accessible.")
	assert.Contains(t, msg, "Underlying error:")
}

func TestErrorMessageStreamingPayload(t *testing.T) {
	err := streamingError{`{"type":"error","error":{"type":"rate_limit_error","message":"Too many requests"}}`}
	assert.Equal(t, "rate_limit_error: Too many requests", errorMessage(err, "myresource"))
}

// streamingError mimics the SDK's wrapped streaming error string.
type streamingError struct {
	payload string
}

func (e streamingError) Error() string {
	return streamingErrorPrefix + e.payload
}
