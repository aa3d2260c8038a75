package proxy

import (
	"bytes"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"foundry-relay/internal/metrics"
	"foundry-relay/internal/openaiadapter/types"
)

var requestValidator = validator.New(validator.WithRequiredStructEnabled())

// validateRequest applies the protocol's numeric bounds (temperature range,
// minimum max_tokens) to a decoded request body.
func validateRequest(req any) error {
	return requestValidator.Struct(req)
}

// bearerCredential extracts the bearer credential from an Authorization
// header value, falling back to the configured development default when the
// header is absent or not bearer-shaped.
func bearerCredential(header, devDefault string) string {
	const prefix = "Bearer "
	if len(header) >= len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return devDefault
}

// firstJSONByte returns the first non-whitespace byte of body, or zero when
// there is none.
func firstJSONByte(body []byte) byte {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func usageOf(usage types.CompletionUsage) metrics.TokenUsage {
	return metrics.TokenUsage{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	}
}

func recordSample(rec metrics.Recorder, route, model, resource, userID string, usage metrics.TokenUsage, isError bool, start time.Time) {
	rec.Record(metrics.Sample{
		Route:    route,
		Model:    model,
		Resource: resource,
		UserID:   userID,
		Usage:    usage,
		Error:    isError,
		Duration: time.Since(start),
	})
}
