package proxy

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"foundry-relay/internal/config"
)

// proxyTokenHeader carries the relay access token for clients that can set
// custom headers. Clients that cannot prefix the model field instead.
const proxyTokenHeader = "X-Proxy-Token"

// Relay access failures, rendered to clients verbatim.
var (
	errNoProxyToken      = errors.New("Proxy auth required: no token provided.")
	errInvalidProxyToken = errors.New("Proxy auth token is invalid.")
)

// TokenValidator checks relay access tokens against configured SHA-256
// digests. A validator with no entries admits every request unchanged.
type TokenValidator struct {
	entries []tokenEntry
}

type tokenEntry struct {
	label  string
	digest [sha256.Size]byte
}

// NewTokenValidator builds a validator from configured token digests.
func NewTokenValidator(tokens []config.ProxyToken) (*TokenValidator, error) {
	v := &TokenValidator{}
	for _, t := range tokens {
		raw, err := hex.DecodeString(t.SHA256)
		if err != nil || len(raw) != sha256.Size {
			return nil, fmt.Errorf("proxy token %q: sha256 must be %d hex characters", t.Label, sha256.Size*2)
		}
		entry := tokenEntry{label: t.Label}
		copy(entry.digest[:], raw)
		v.entries = append(v.entries, entry)
	}
	return v, nil
}

// Required reports whether requests must present a token.
func (v *TokenValidator) Required() bool {
	return len(v.entries) > 0
}

// Extract returns the model id with any token prefix removed and the label of
// the matched token. The token comes from the X-Proxy-Token header or, when
// that is absent, from a "token:model" prefix on the model field. On failure
// the model is returned unmodified so error responses can echo it.
func (v *TokenValidator) Extract(model string, header http.Header) (cleanModel, label string, err error) {
	if !v.Required() {
		return model, "", nil
	}

	token := strings.TrimSpace(header.Get(proxyTokenHeader))
	cleanModel = model
	if token == "" {
		if before, after, ok := strings.Cut(model, ":"); ok {
			token, cleanModel = before, after
		}
	}

	if token == "" {
		return model, "", errNoProxyToken
	}

	label, ok := v.validate(token)
	if !ok {
		return model, "", errInvalidProxyToken
	}

	return cleanModel, label, nil
}

// validate compares the token digest against every configured entry, without
// early exit, so timing does not reveal the match position.
func (v *TokenValidator) validate(token string) (string, bool) {
	digest := sha256.Sum256([]byte(token))

	matched := ""
	ok := false
	for _, entry := range v.entries {
		if subtle.ConstantTimeCompare(digest[:], entry.digest[:]) == 1 {
			matched = entry.label
			ok = true
		}
	}
	return matched, ok
}
