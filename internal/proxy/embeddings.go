package proxy

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"

	"foundry-relay/internal/metrics"
	"foundry-relay/internal/openaiadapter/types"
	"foundry-relay/internal/routing"
)

const routeEmbeddings = "/v1/embeddings"

// maxUpstreamErrorBytes bounds how much of an upstream error body is echoed
// back to the client.
const maxUpstreamErrorBytes = 2048

// errEmbeddingsUnsupported marks resources whose deployment answers 404 or
// 501 on the embeddings path.
var errEmbeddingsUnsupported = errors.New("embeddings are not available on this Foundry resource")

// CreateEmbeddingsHandler forwards embedding requests to the resolved
// resource's OpenAI-compatible deployment surface. Unlike the completion
// endpoints, failures here are structured errors with real status codes:
// embedding clients are programs, not chat UIs, and branch on the status.
type CreateEmbeddingsHandler struct {
	Transport            http.RoundTripper
	Tokens               *TokenValidator
	Recorder             metrics.Recorder
	DevDefaultCredential string
	RequestTimeout       time.Duration
}

var _ http.Handler = (*CreateEmbeddingsHandler)(nil)

func (h *CreateEmbeddingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var req types.CreateEmbeddingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.WarnContext(ctx, "failed to decode request", "error", err)
		writeStructuredError(ctx, w, http.StatusBadRequest,
			types.NewErrorResponse(types.ErrorTypeInvalidRequest, "Invalid JSON: "+err.Error(), ""))
		return
	}

	model, tokenLabel, err := h.Tokens.Extract(req.Model, r.Header)
	if err != nil {
		slog.WarnContext(ctx, "proxy token rejected", "error", err)
		writeStructuredError(ctx, w, http.StatusUnauthorized,
			types.NewErrorResponse(types.ErrorTypeInvalidRequest, err.Error(), req.Model))
		return
	}

	credential := bearerCredential(r.Header.Get("Authorization"), h.DevDefaultCredential)
	userID := tokenLabel
	if userID == "" {
		userID = metrics.DeriveUserID(credential, deref(req.User))
	}

	if model == "" {
		recordSample(h.Recorder, routeEmbeddings, "", "", userID, metrics.TokenUsage{}, true, start)
		writeStructuredError(ctx, w, http.StatusBadRequest,
			types.NewErrorResponse(types.ErrorTypeInvalidRequest, "No 'model' field provided", ""))
		return
	}
	if req.Input == nil {
		recordSample(h.Recorder, routeEmbeddings, model, "", userID, metrics.TokenUsage{}, true, start)
		writeStructuredError(ctx, w, http.StatusBadRequest,
			types.NewErrorResponse(types.ErrorTypeInvalidRequest, "No 'input' field provided", model))
		return
	}

	route, err := routing.Resolve(credential, model)
	if err != nil {
		slog.WarnContext(ctx, "routing failed", "error", err)
		recordSample(h.Recorder, routeEmbeddings, model, "", userID, metrics.TokenUsage{}, true, start)
		writeStructuredError(ctx, w, http.StatusBadRequest,
			types.NewErrorResponse(types.ErrorTypeInvalidRequest, err.Error(), model))
		return
	}

	response, err := h.forward(ctx, route, req.Input.Values)
	if err != nil {
		if ctx.Err() != nil {
			slog.DebugContext(ctx, "request canceled", "error", err)
			return
		}
		slog.ErrorContext(ctx, "embeddings request failed", "resource", route.Resource, "error", err)

		status, errType := http.StatusInternalServerError, types.ErrorTypeServer
		if errors.Is(err, errEmbeddingsUnsupported) {
			status, errType = http.StatusBadRequest, types.ErrorTypeNotSupported
		}
		recordSample(h.Recorder, routeEmbeddings, model, route.Resource, userID, metrics.TokenUsage{}, true, start)
		writeStructuredError(ctx, w, status, types.NewErrorResponse(errType, err.Error(), model))
		return
	}

	// Echo the model id the client asked for, not the deployment name.
	response.Model = model

	recordSample(h.Recorder, routeEmbeddings, model, route.Resource, userID, usageOf(response.Usage), false, start)
	writeJSON(ctx, w, response, http.StatusOK)
}

// embeddingsURL is the OpenAI-compatible surface a Foundry resource exposes
// alongside the Anthropic one.
func embeddingsURL(resource string) string {
	return fmt.Sprintf("https://%s.services.ai.azure.com/openai/v1/embeddings", resource)
}

// forward posts the embedding input to the resource's deployment and
// normalizes the response into the relay's wire shape.
func (h *CreateEmbeddingsHandler) forward(ctx context.Context, route routing.BackendConfig, input []string) (*types.CreateEmbeddingsResponse, error) {
	payload, err := json.Marshal(map[string]any{
		"model": route.Model,
		"input": input,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embeddings request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, embeddingsURL(route.Resource), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build embeddings request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", route.Credential)
	// Requesting encodings explicitly disables the transport's transparent
	// gzip handling, so decompression happens below for both.
	httpReq.Header.Set("Accept-Encoding", "gzip, br")

	client := &http.Client{Transport: h.Transport, Timeout: h.RequestTimeout}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach Foundry resource '%s': %w", route.Resource, err)
	}
	defer resp.Body.Close()

	reader, err := decompressedReader(resp)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNotImplemented {
		return nil, fmt.Errorf("%w: '%s' has no OpenAI-compatible embeddings deployment (upstream status %d)",
			errEmbeddingsUnsupported, route.Resource, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		excerpt, _ := io.ReadAll(io.LimitReader(reader, maxUpstreamErrorBytes))
		return nil, fmt.Errorf("embeddings request failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(excerpt))
	}

	var upstream upstreamEmbeddings
	if err := json.NewDecoder(reader).Decode(&upstream); err != nil {
		return nil, fmt.Errorf("failed to decode embeddings response: %w", err)
	}

	return upstream.normalize(), nil
}

// decompressedReader wraps the upstream body according to its
// Content-Encoding header.
func decompressedReader(resp *http.Response) (io.ReadCloser, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read gzip response: %w", err)
		}
		return zr, nil
	case "br":
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	default:
		return io.NopCloser(resp.Body), nil
	}
}

// upstreamEmbeddings reads the deployment's response loosely: usage field
// names differ between OpenAI-style and Anthropic-style deployments, and
// some return vectors under "vector" instead of "embedding".
type upstreamEmbeddings struct {
	Data []struct {
		Object    string    `json:"object"`
		Index     *int      `json:"index"`
		Embedding []float64 `json:"embedding"`
		Vector    []float64 `json:"vector"`
	} `json:"data"`
	Usage   flexibleUsage `json:"usage"`
	Created int64         `json:"created"`
}

func (u *upstreamEmbeddings) normalize() *types.CreateEmbeddingsResponse {
	data := make([]types.Embedding, 0, len(u.Data))
	for i, item := range u.Data {
		vector := item.Embedding
		if len(vector) == 0 {
			vector = item.Vector
		}
		index := i
		if item.Index != nil {
			index = *item.Index
		}
		object := item.Object
		if object == "" {
			object = types.ObjectEmbedding
		}
		data = append(data, types.Embedding{Object: object, Index: index, Embedding: vector})
	}

	created := u.Created
	if created == 0 {
		created = time.Now().Unix()
	}

	return &types.CreateEmbeddingsResponse{
		Object:  types.ObjectList,
		Data:    data,
		Usage:   u.Usage.toCompletionUsage(),
		Created: created,
	}
}

// flexibleUsage accepts both token-count naming conventions.
type flexibleUsage struct {
	InputTokens      int64 `json:"input_tokens"`
	OutputTokens     int64 `json:"output_tokens"`
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

func (u flexibleUsage) toCompletionUsage() types.CompletionUsage {
	prompt := u.InputTokens
	if prompt == 0 {
		prompt = u.PromptTokens
	}
	completion := u.OutputTokens
	if completion == 0 {
		completion = u.CompletionTokens
	}
	total := u.TotalTokens
	if total == 0 {
		total = prompt + completion
	}

	return types.CompletionUsage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      total,
	}
}
