package anthropicfoundry

import (
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"foundry-relay/internal/routing"
)

// newClient creates an Anthropic client bound to one Foundry resource. The
// credential and base URL come from the per-request route; the transport is
// injectable for tests and defaults to the process transport.
func newClient(route routing.BackendConfig, transport http.RoundTripper, timeout time.Duration) *anthropic.Client {
	if transport == nil {
		transport = http.DefaultTransport
	}

	httpClient := &http.Client{
		Transport: transport,
		// Client.Timeout = 0 allows long-running SSE streams (bounded by the per-request timeout below)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(route.Credential),
		option.WithBaseURL(route.BaseURL()),
		option.WithHTTPClient(httpClient),
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}

	client := anthropic.NewClient(opts...)
	return &client
}
