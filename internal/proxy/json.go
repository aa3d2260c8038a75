package proxy

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"foundry-relay/internal/openaiadapter/types"
)

// writeJSON writes a JSON response with the given status code.
// Logs encoding failures internally using the provided context.
func writeJSON(ctx context.Context, w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	// Headers and status are written before encoding to avoid buffering.
	// If encoding fails, the client may receive a partial response.
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(ctx, "failed to encode JSON response", "error", err)
	}
}

// writeStructuredError writes an OpenAI-style {"error": {...}} body. Only the
// endpoints without a completion shape to embed failures in use this; the
// chat and text completion endpoints render errors as fake successes instead.
func writeStructuredError(ctx context.Context, w http.ResponseWriter, status int, errResp *types.ErrorResponse) {
	writeJSON(ctx, w, errResp, status)
}
