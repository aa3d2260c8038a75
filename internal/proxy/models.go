package proxy

import (
	"net/http"

	"foundry-relay/internal/openaiadapter/types"
)

// modelOwner is the owned_by value advertised for every listed model.
const modelOwner = "azure_foundry"

// modelsHandler lists the configured default model. The relay has no model
// catalog of its own: the real deployment name arrives on each request's
// model field, so the listing exists only to satisfy clients that insist on
// picking from GET /v1/models before sending anything.
func modelsHandler(defaultModel string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, &types.ModelList{
			Object: types.ObjectList,
			Data: []types.Model{
				{
					ID:      defaultModel,
					Object:  types.ObjectModel,
					OwnedBy: modelOwner,
				},
			},
		}, http.StatusOK)
	})
}
