package anthropicfoundry

import (
	"context"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"foundry-relay/internal/openaiadapter"
	"foundry-relay/internal/openaiadapter/types"
	"foundry-relay/internal/routing"
	"foundry-relay/internal/toolbridge"
)

// defaultMaxTokens caps completions for clients that omit max_tokens; the
// Messages API requires an explicit value.
const defaultMaxTokens = 1024

// CreateChatCompletionAdapter translates chat completion requests into
// Anthropic Messages calls against the Foundry resource resolved for each
// request. The zero value is not usable; construct with
// NewCreateChatCompletionAdapter.
type CreateChatCompletionAdapter struct {
	maxTokens      int64
	requestTimeout time.Duration
	log            *slog.Logger
}

var _ openaiadapter.CreateChatCompletionAdapter = (*CreateChatCompletionAdapter)(nil)

// NewCreateChatCompletionAdapter builds the adapter. maxTokens substitutes
// for requests that omit max_tokens, requestTimeout bounds each backend call
// (zero disables the bound), and a nil logger disables debug output.
func NewCreateChatCompletionAdapter(maxTokens int64, requestTimeout time.Duration, log *slog.Logger) *CreateChatCompletionAdapter {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &CreateChatCompletionAdapter{
		maxTokens:      maxTokens,
		requestTimeout: requestTimeout,
		log:            log,
	}
}

// ProcessRequest performs one blocking Messages call and maps the outcome to
// a chat.completion object. Backend failures come back as protocol-shaped
// error completions; the error return fires only when ctx was canceled and
// no client is left to answer.
func (a *CreateChatCompletionAdapter) ProcessRequest(
	ctx context.Context,
	clientReq types.CreateChatCompletionRequest,
	route routing.BackendConfig,
	transport http.RoundTripper,
) (*types.CreateChatCompletionResponse, error) {
	client := newClient(route, transport, a.requestTimeout)
	params := a.buildParams(clientReq, route)

	a.log.DebugContext(ctx, "sending messages request",
		"resource", route.Resource, "model", route.Model, "turns", len(params.Messages))

	message, err := client.Messages.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.log.ErrorContext(ctx, "foundry request failed", "error", err)
		return types.NewErrorChatCompletion(clientReq.Model, errorMessage(err, route.Resource)), nil
	}

	res := a.bridgeTools(clientReq, collectMessage(message))
	return assembleCompletion(clientReq, res), nil
}

// ProcessStreamingRequest consumes the backend stream to completion,
// accumulates it into one message, and returns an iterator replaying the
// result as a coarse chunk pair. Stream failures are replayed as error
// chunks so the client still receives a well-formed event stream.
func (a *CreateChatCompletionAdapter) ProcessStreamingRequest(
	ctx context.Context,
	clientReq types.CreateChatCompletionRequest,
	route routing.BackendConfig,
	transport http.RoundTripper,
) (iter.Seq2[*types.CreateChatCompletionStreamResponse, error], error) {
	client := newClient(route, transport, a.requestTimeout)
	params := a.buildParams(clientReq, route)

	a.log.DebugContext(ctx, "sending streaming messages request",
		"resource", route.Resource, "model", route.Model, "turns", len(params.Messages))

	stream := client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	acc := anthropic.Message{}
	var streamErr error
	for stream.Next() {
		if streamErr = acc.Accumulate(stream.Current()); streamErr != nil {
			break
		}
	}
	if streamErr == nil {
		streamErr = stream.Err()
	}
	if streamErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.log.ErrorContext(ctx, "foundry stream failed", "error", streamErr)
		return replay(types.NewErrorChatCompletionChunks(clientReq.Model, errorMessage(streamErr, route.Resource))), nil
	}

	res := a.bridgeTools(clientReq, collectMessage(&acc))
	if res.usage.TotalTokens == 0 {
		// Some deployments return streams without usage deltas; estimate so
		// metering clients do not see zeros.
		res.usage = estimateUsage(promptText(clientReq.Messages), res.text+res.reasoning)
	}

	return replay(assembleChunks(clientReq, res)), nil
}

// buildParams shapes the request for the Messages API. Tool definitions are
// deliberately not forwarded: Foundry deployments answer tool prompts in
// free text, which the toolbridge decodes after the fact.
func (a *CreateChatCompletionAdapter) buildParams(
	clientReq types.CreateChatCompletionRequest,
	route routing.BackendConfig,
) anthropic.MessageNewParams {
	system, turns := splitMessages(clientReq.Messages)

	maxTokens := a.maxTokens
	if clientReq.MaxTokens != nil && *clientReq.MaxTokens > 0 {
		maxTokens = *clientReq.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(route.Model),
		MaxTokens: maxTokens,
		Messages:  turns,
		System:    system,
		Thinking:  buildThinking(clientReq.ReasoningEffort),
	}
	if clientReq.Temperature != nil {
		params.Temperature = anthropic.Float(*clientReq.Temperature)
	}

	return params
}

// bridgeTools runs tool-call extraction over the collected text when the
// client declared tools. The residual text replaces the full text so tool
// markup never leaks into content.
func (a *CreateChatCompletionAdapter) bridgeTools(clientReq types.CreateChatCompletionRequest, res result) result {
	names := clientReq.ToolNames()
	if len(names) == 0 {
		return res
	}

	calls, remaining := toolbridge.New(names, a.log).Extract(res.text)
	res.calls = calls
	res.text = remaining
	return res
}

// replay wraps pre-assembled chunks in the iterator shape handlers consume.
func replay(chunks []*types.CreateChatCompletionStreamResponse) iter.Seq2[*types.CreateChatCompletionStreamResponse, error] {
	return func(yield func(*types.CreateChatCompletionStreamResponse, error) bool) {
		for _, chunk := range chunks {
			if !yield(chunk, nil) {
				return
			}
		}
	}
}
