package proxy

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"foundry-relay/internal/metrics"
	"foundry-relay/internal/openaiadapter/anthropicfoundry"
	"foundry-relay/internal/openaiadapter/types"
	"foundry-relay/internal/routing"
)

const routeChatCompletions = "/v1/chat/completions"

// CreateChatCompletionsHandler handles OpenAI-compatible chat completion
// requests. Every failure on this endpoint is rendered as a normal-looking
// completion (HTTP 200, the message in the content slot) so thin clients
// that never inspect non-2xx bodies still surface it to the user.
type CreateChatCompletionsHandler struct {
	Adapter              *anthropicfoundry.CreateChatCompletionAdapter
	Transport            http.RoundTripper
	Tokens               *TokenValidator
	Recorder             metrics.Recorder
	DevDefaultCredential string
}

// Compile-time check to ensure CreateChatCompletionsHandler implements http.Handler
var _ http.Handler = (*CreateChatCompletionsHandler)(nil)

// ServeHTTP implements http.Handler interface for streaming or non-streaming requests.
func (h *CreateChatCompletionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.WarnContext(ctx, "failed to read request body", "error", err)
		h.failInBand(ctx, w, false, "", "Invalid JSON: "+err.Error())
		return
	}

	// Some clients POST an array of request objects. There is exactly one
	// backend call per relay request, so reject the batch before decoding
	// fails with a confusing type error.
	if firstJSONByte(body) == '[' {
		h.failInBand(ctx, w, false, "", "Batch chat requests are not supported; send a single request object.")
		return
	}

	var req types.CreateChatCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		slog.WarnContext(ctx, "failed to decode request", "error", err)
		h.failInBand(ctx, w, false, "", "Invalid JSON: "+err.Error())
		return
	}
	stream := req.IsStream()

	if len(req.Messages) == 0 {
		h.failInBand(ctx, w, stream, req.Model, "No 'messages' field provided")
		return
	}

	model, tokenLabel, err := h.Tokens.Extract(req.Model, r.Header)
	if err != nil {
		slog.WarnContext(ctx, "proxy token rejected", "error", err)
		h.failInBand(ctx, w, stream, req.Model, err.Error())
		return
	}
	req.Model = model

	credential := bearerCredential(r.Header.Get("Authorization"), h.DevDefaultCredential)
	userID := tokenLabel
	if userID == "" {
		userID = metrics.DeriveUserID(credential, deref(req.User))
	}

	if model == "" {
		h.record(routeChatCompletions, "", "", userID, metrics.TokenUsage{}, true, start)
		h.failInBand(ctx, w, stream, "", "No 'model' field provided")
		return
	}

	if err := validateRequest(&req); err != nil {
		h.record(routeChatCompletions, model, "", userID, metrics.TokenUsage{}, true, start)
		h.failInBand(ctx, w, stream, model, "Invalid request: "+err.Error())
		return
	}

	route, err := routing.Resolve(credential, model)
	if err != nil {
		slog.WarnContext(ctx, "routing failed", "error", err)
		h.record(routeChatCompletions, model, "", userID, metrics.TokenUsage{}, true, start)
		h.failInBand(ctx, w, stream, model, err.Error())
		return
	}
	// Strip the resource prefix so the backend sees the bare deployment name
	// and the response echoes what was actually called.
	req.Model = route.Model

	if stream {
		h.streamResponse(ctx, w, req, route, userID, start)
	} else {
		h.writeResponse(ctx, w, req, route, userID, start)
	}
}

// writeResponse handles non-streaming chat completion requests.
func (h *CreateChatCompletionsHandler) writeResponse(
	ctx context.Context,
	w http.ResponseWriter,
	req types.CreateChatCompletionRequest,
	route routing.BackendConfig,
	userID string,
	start time.Time,
) {
	if ctx.Err() != nil {
		return
	}
	response, err := h.Adapter.ProcessRequest(ctx, req, route, h.Transport)
	if err != nil {
		// Only context cancellation reaches here; the client is gone.
		slog.DebugContext(ctx, "request canceled", "error", err)
		return
	}

	h.record(routeChatCompletions, req.Model, route.Resource, userID,
		usageOf(response.Usage), response.ID == types.ErrorResponseID, start)
	writeJSON(ctx, w, response, http.StatusOK)
}

// streamResponse streams chat completion chunks using SSE.
func (h *CreateChatCompletionsHandler) streamResponse(
	ctx context.Context,
	w http.ResponseWriter,
	req types.CreateChatCompletionRequest,
	route routing.BackendConfig,
	userID string,
	start time.Time,
) {
	if ctx.Err() != nil {
		return
	}
	stream, err := h.Adapter.ProcessStreamingRequest(ctx, req, route, h.Transport)
	if err != nil {
		slog.DebugContext(ctx, "streaming request canceled", "error", err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		slog.ErrorContext(ctx, "SSE not supported", "error", err)
		writeStructuredError(ctx, w, http.StatusInternalServerError,
			types.NewErrorResponse(types.ErrorTypeServer, "streaming is not supported by this server", req.Model))
		return
	}

	var usage metrics.TokenUsage
	isError := false
	for chunk, err := range stream {
		// Check for client disconnect before processing chunk
		if ctx.Err() != nil {
			slog.DebugContext(ctx, "client disconnected during stream")
			return
		}

		if err != nil {
			// The adapter embeds backend failures in the chunks themselves,
			// so an iterator error is unexpected. Keep the stream well-formed
			// by finishing it with an embedded error pair.
			slog.ErrorContext(ctx, "stream error", "error", err)
			writeErrorChunks(ctx, sse, req.Model, err.Error())
			h.record(routeChatCompletions, req.Model, route.Resource, userID, usage, true, start)
			return
		}

		if chunk.ID == types.ErrorResponseID {
			isError = true
		}
		if chunk.Usage != nil {
			usage = usageOf(*chunk.Usage)
		}

		if err := sse.WriteData(chunk); err != nil {
			slog.ErrorContext(ctx, "failed to write chunk", "error", err)
			return
		}
	}

	// OpenAI streaming protocol requires [DONE] marker
	if err := sse.WriteRaw(doneMarker); err != nil {
		slog.ErrorContext(ctx, "failed to write stream termination marker", "error", err)
	}

	h.record(routeChatCompletions, req.Model, route.Resource, userID, usage, isError, start)
}

// failInBand renders a failure as a fake-success completion, matching the
// delivery mode the client asked for.
func (h *CreateChatCompletionsHandler) failInBand(ctx context.Context, w http.ResponseWriter, stream bool, model, message string) {
	if !stream {
		writeJSON(ctx, w, types.NewErrorChatCompletion(model, message), http.StatusOK)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		slog.ErrorContext(ctx, "SSE not supported", "error", err)
		writeJSON(ctx, w, types.NewErrorChatCompletion(model, message), http.StatusOK)
		return
	}
	writeErrorChunks(ctx, sse, model, message)
}

// writeErrorChunks emits the in-band error chunk pair and the [DONE] marker.
func writeErrorChunks(ctx context.Context, sse *SSEWriter, model, message string) {
	for _, chunk := range types.NewErrorChatCompletionChunks(model, message) {
		if err := sse.WriteData(chunk); err != nil {
			slog.ErrorContext(ctx, "failed to write error chunk", "error", err)
			return
		}
	}
	if err := sse.WriteRaw(doneMarker); err != nil {
		slog.ErrorContext(ctx, "failed to write stream termination marker", "error", err)
	}
}

// record forwards one request outcome to the usage recorder.
func (h *CreateChatCompletionsHandler) record(route, model, resource, userID string, usage metrics.TokenUsage, isError bool, start time.Time) {
	recordSample(h.Recorder, route, model, resource, userID, usage, isError, start)
}
