package anthropicfoundry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// streamingErrorPrefix is the prefix used by the Anthropic SDK when wrapping streaming errors.
const streamingErrorPrefix = "received error while streaming: "

// errorMessage flattens a backend failure into the single line of text the
// relay embeds in its protocol-shaped error responses. The SDK reports
// different shapes for streaming and non-streaming failures; both carry the
// same JSON error document and are normalized here. Unreachable resources
// get an explicit hint because a mistyped resource name in the apiKey is the
// most common misconfiguration.
func errorMessage(err error, resource string) string {
	if err == nil {
		return ""
	}

	// Non-streaming: *anthropic.Error provides the response document via RawJSON().
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if msg, ok := parseErrorJSON(apiErr.RawJSON()); ok {
			return msg
		}
		return apiErr.Error()
	}

	// Streaming: the SDK embeds the same JSON in the error string.
	if jsonStr, ok := strings.CutPrefix(err.Error(), streamingErrorPrefix); ok {
		if msg, ok := parseErrorJSON(jsonStr); ok {
			return msg
		}
	}

	if isConnectionError(err) {
		return fmt.Sprintf(
			"Could not reach Foundry resource '%s'. Verify that the resource name in your apiKey is correct and accessible. Underlying error: %s",
			resource, err.Error())
	}

	return err.Error()
}

// parseErrorJSON extracts the type and message out of an Anthropic error
// document.
func parseErrorJSON(jsonStr string) (string, bool) {
	var errorResp anthropic.ErrorResponse
	if err := json.Unmarshal([]byte(jsonStr), &errorResp); err != nil {
		return "", false
	}
	if errorResp.Error.Message == "" {
		return "", false
	}
	if errorResp.Error.Type != "" {
		return fmt.Sprintf("%s: %s", errorResp.Error.Type, errorResp.Error.Message), true
	}
	return errorResp.Error.Message, true
}

// isConnectionError reports whether err looks like a failure to reach the
// resource at all rather than a response from it.
func isConnectionError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
