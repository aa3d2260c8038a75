// Package routing derives per-request backend routing and credentials from the
// opaque fields clients already send: the bearer credential and the model id.
// There is no central tenant registry; every request carries everything needed
// to reach its own Foundry resource, which is what makes the relay
// multi-tenant without shared state.
package routing

import (
	"fmt"
	"strings"
)

// BackendConfig is the effective per-request backend configuration. It is an
// immutable value produced by Resolve and never mutated afterwards; all three
// fields are non-empty.
type BackendConfig struct {
	Resource   string
	Credential string
	Model      string
}

// BaseURL returns the Anthropic-compatible endpoint of the resolved Foundry
// resource.
func (c BackendConfig) BaseURL() string {
	return fmt.Sprintf("https://%s.services.ai.azure.com/anthropic/", c.Resource)
}

// Missing-part descriptions, in the order they are enumerated. The phrasing is
// part of the user-visible error contract; clients grep for it.
const (
	missingCredential = "Foundry API key (must be provided via apiKey)"
	missingResource   = "Foundry resource (must be encoded in apiKey or model)"
	missingModel      = "Foundry model (must be provided via model)"
)

// MissingFieldsError reports which parts of the backend configuration could
// not be derived. Resolution never fails with a generic message.
type MissingFieldsError struct {
	Parts []string
}

func (e *MissingFieldsError) Error() string {
	return "Could not derive complete Foundry configuration; missing: " + strings.Join(e.Parts, "; ")
}

// DecodeCredential splits a client credential into (resource, secret).
//
// The structured form is "<resource>:<secret>" with exactly one separator and
// a resource that looks like a simple identifier; anything else is treated as
// an unstructured secret with no resource.
func DecodeCredential(raw string) (resource, secret string) {
	if raw == "" {
		return "", ""
	}

	if strings.Count(raw, ":") == 1 {
		left, right, _ := strings.Cut(raw, ":")
		left = strings.TrimSpace(left)
		right = strings.TrimSpace(right)
		if left != "" && right != "" && looksLikeResource(left) {
			return left, right
		}
	}

	return "", raw
}

// DecodeModel splits a client model id into (resource, model).
//
// The structured form is "<resource>/<model>" with exactly one separator and
// an identifier-shaped resource; anything else is an unstructured model name
// with no resource override.
func DecodeModel(raw string) (resource, model string) {
	if raw == "" {
		return "", ""
	}

	if strings.Count(raw, "/") == 1 {
		left, right, _ := strings.Cut(raw, "/")
		left = strings.TrimSpace(left)
		right = strings.TrimSpace(right)
		if left != "" && right != "" && looksLikeResource(left) {
			return left, right
		}
	}

	return "", raw
}

// Resolve derives the complete backend configuration for one request from the
// client credential and model strings.
//
// The secret only ever comes from the credential. The resource comes from the
// credential when encoded there, else from the model. Resolution is a pure
// function: no I/O, no caching, same inputs always produce the same output or
// the same *MissingFieldsError enumerating every absent part.
func Resolve(credential, model string) (BackendConfig, error) {
	credResource, secret := DecodeCredential(credential)
	modelResource, modelName := DecodeModel(model)

	resource := credResource
	if resource == "" {
		resource = modelResource
	}

	var parts []string
	if secret == "" {
		parts = append(parts, missingCredential)
	}
	if resource == "" {
		parts = append(parts, missingResource)
	}
	if modelName == "" {
		parts = append(parts, missingModel)
	}
	if len(parts) > 0 {
		return BackendConfig{}, &MissingFieldsError{Parts: parts}
	}

	return BackendConfig{
		Resource:   resource,
		Credential: secret,
		Model:      modelName,
	}, nil
}

// looksLikeResource reports whether text is plausible as the resource segment
// of a structured credential: letters, digits, '-' and '_' only. Secrets with
// an embedded colon but a non-identifier prefix stay whole.
func looksLikeResource(text string) bool {
	if text == "" {
		return false
	}
	for _, ch := range text {
		switch {
		case ch >= 'a' && ch <= 'z':
		case ch >= 'A' && ch <= 'Z':
		case ch >= '0' && ch <= '9':
		case ch == '-' || ch == '_':
		default:
			return false
		}
	}
	return true
}
