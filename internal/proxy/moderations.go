package proxy

import (
	"encoding/json"
	"net/http"

	"foundry-relay/internal/openaiadapter/types"
)

// moderationsMessage is returned for every moderation request. Foundry has no
// mapping for this endpoint at all, so rejection is unconditional.
const moderationsMessage = "Moderations are not currently supported on this proxy. " +
	"Azure AI Foundry does not expose an OpenAI-compatible /v1/moderations endpoint; " +
	"use Azure AI Content Safety directly if needed."

// moderationsHandler rejects moderation requests with a structured
// not_supported error. The body is still decoded so the rejection can echo
// the model id and malformed JSON gets its own message.
func moderationsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req types.CreateModerationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeStructuredError(ctx, w, http.StatusBadRequest,
				types.NewErrorResponse(types.ErrorTypeInvalidRequest, "Invalid JSON: "+err.Error(), ""))
			return
		}

		writeStructuredError(ctx, w, http.StatusBadRequest,
			types.NewErrorResponse(types.ErrorTypeNotSupported, moderationsMessage, req.Model))
	})
}
