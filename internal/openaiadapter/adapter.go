package openaiadapter

import (
	"context"
	"iter"
	"net/http"

	"foundry-relay/internal/openaiadapter/types"
	"foundry-relay/internal/routing"
)

// Adapter defines the contract for transforming client requests to backend API calls.
//
// Type parameters allow the interface to express transformation contracts for different
// request/response shapes while maintaining compile-time type safety.
//
// Type parameters:
//   - TRequest:  Client-specific request structure
//   - TResponse: Client-specific response structure
//   - TChunk:    Client-specific streaming chunk protocol
type Adapter[TRequest, TResponse, TChunk any] interface {
	// ProcessRequest transforms the client request, calls the backend, and returns
	// the transformed response. The resolved route carries the per-request backend
	// resource, credential, and model; implementations must not cache it across
	// requests. Backend failures are rendered into the response, not returned; the
	// error return is reserved for context cancellation.
	ProcessRequest(ctx context.Context, clientReq TRequest, route routing.BackendConfig, transport http.RoundTripper) (*TResponse, error)

	// ProcessStreamingRequest transforms the client request, calls the backend, and
	// returns an iterator of transformed chunks. The backend call is completed and
	// accumulated before the iterator is returned; chunks replay the complete
	// result coarsely rather than forwarding token-level deltas.
	ProcessStreamingRequest(ctx context.Context, clientReq TRequest, route routing.BackendConfig, transport http.RoundTripper) (iter.Seq2[*TChunk, error], error)
}

// Type aliases for OpenAI-compatible chat completion operations.
// CreateChatCompletionAdapter is the adapter interface for this operation.
type (
	CreateChatCompletionRequest  = types.CreateChatCompletionRequest
	CreateChatCompletionResponse = types.CreateChatCompletionResponse
	CreateChatCompletionChunk    = types.CreateChatCompletionStreamResponse

	CreateChatCompletionAdapter = Adapter[
		CreateChatCompletionRequest,
		CreateChatCompletionResponse,
		CreateChatCompletionChunk,
	]
)

// Type aliases for OpenAI-compatible structured error responses.
type (
	Error         = types.Error
	ErrorResponse = types.ErrorResponse
)
