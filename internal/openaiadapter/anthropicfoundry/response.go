package anthropicfoundry

import (
	"crypto/rand"
	"encoding/base64"

	"foundry-relay/internal/openaiadapter/types"
)

// responseID prefers the backend's message id so responses stay correlatable
// with backend logs, falling back to a generated id when the backend omits
// one.
func responseID(backendID string) string {
	if backendID != "" {
		return backendID
	}
	return newResponseID()
}

// newResponseID generates an OpenAI-compatible response ID (chatcmpl-<token>).
func newResponseID() string {
	b := make([]byte, 24) // 24 bytes yields 32 URL-safe base64 characters
	_, err := rand.Read(b)
	if err != nil {
		panic(err)
	}
	// Use RawURLEncoding to avoid '+', '/' and trailing '='
	token := base64.RawURLEncoding.EncodeToString(b)
	return "chatcmpl-" + token
}

// modelName picks the model id echoed on responses: the client's own model
// string wins so round-tripping clients see what they sent, then the
// backend's reported model, then the placeholder.
func modelName(clientModel, backendModel string) string {
	if clientModel != "" {
		return clientModel
	}
	if backendModel != "" {
		return backendModel
	}
	return types.UnknownModel
}
