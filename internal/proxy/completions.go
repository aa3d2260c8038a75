package proxy

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"foundry-relay/internal/openaiadapter/anthropicfoundry"
	"foundry-relay/internal/openaiadapter/types"
	"foundry-relay/internal/routing"
)

// CreateCompletionsHandler handles the legacy text completion endpoint by
// folding the prompt into a single-turn chat request. Delivery is always
// buffered; a stream flag on the body is ignored. Failures keep the
// chat.completion error shape so the oldest clients still see a body they
// can print.
type CreateCompletionsHandler struct {
	Adapter              *anthropicfoundry.CreateChatCompletionAdapter
	Transport            http.RoundTripper
	DevDefaultCredential string
}

var _ http.Handler = (*CreateCompletionsHandler)(nil)

func (h *CreateCompletionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req types.CreateCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.WarnContext(ctx, "failed to decode request", "error", err)
		writeJSON(ctx, w, types.NewErrorChatCompletion("", "Invalid JSON: "+err.Error()), http.StatusOK)
		return
	}

	if req.Prompt == nil {
		writeJSON(ctx, w, types.NewErrorChatCompletion(req.Model, "No 'prompt' field provided"), http.StatusOK)
		return
	}
	if req.Model == "" {
		writeJSON(ctx, w, types.NewErrorChatCompletion("", "No 'model' field provided"), http.StatusOK)
		return
	}
	if err := validateRequest(&req); err != nil {
		writeJSON(ctx, w, types.NewErrorChatCompletion(req.Model, "Invalid request: "+err.Error()), http.StatusOK)
		return
	}

	credential := bearerCredential(r.Header.Get("Authorization"), h.DevDefaultCredential)
	route, err := routing.Resolve(credential, req.Model)
	if err != nil {
		slog.WarnContext(ctx, "routing failed", "error", err)
		writeJSON(ctx, w, types.NewErrorChatCompletion(req.Model, err.Error()), http.StatusOK)
		return
	}

	chatReq := types.CreateChatCompletionRequest{
		Model:       route.Model,
		Messages:    []types.ChatCompletionMessage{{Role: types.RoleUser, Content: req.Prompt.Text}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		User:        req.User,
	}

	response, err := h.Adapter.ProcessRequest(ctx, chatReq, route, h.Transport)
	if err != nil {
		slog.DebugContext(ctx, "request canceled", "error", err)
		return
	}

	if response.ID == types.ErrorResponseID {
		writeJSON(ctx, w, response, http.StatusOK)
		return
	}

	writeJSON(ctx, w, toTextCompletion(response), http.StatusOK)
}

// toTextCompletion reshapes a successful chat completion into the legacy
// text_completion form. Tool calls cannot be represented on this endpoint,
// so only the content text carries over.
func toTextCompletion(resp *types.CreateChatCompletionResponse) *types.CreateCompletionResponse {
	text := ""
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}

	return &types.CreateCompletionResponse{
		ID:      resp.ID,
		Object:  types.ObjectTextCompletion,
		Model:   resp.Model,
		Created: resp.Created,
		Choices: []types.CompletionChoice{
			{
				Index:        0,
				Text:         text,
				FinishReason: types.FinishReasonStop,
			},
		},
		Usage: resp.Usage,
	}
}
