package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// maxRequestIDLength caps accepted client request IDs. Oversized IDs are
// replaced rather than truncated so the logged ID always matches the echoed
// one.
const maxRequestIDLength = 64

// RequestIDContextKey is the context key under which the request ID travels.
type RequestIDContextKey struct{}

// requestIDFrom returns the inbound X-Request-ID when it is usable, otherwise
// a fresh UUID. Client-supplied IDs end up verbatim in log lines and response
// headers, so anything oversized or non-printable is discarded.
func requestIDFrom(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" && len(id) <= maxRequestIDLength && isPrintableASCII(id) {
		return id
	}
	if id, ok := r.Context().Value(RequestIDContextKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

func isPrintableASCII(s string) bool {
	return !strings.ContainsFunc(s, func(r rune) bool {
		return r > unicode.MaxASCII || !unicode.IsPrint(r)
	})
}

// RequestIDGeneration ensures every request carries an ID: the client's own
// X-Request-ID when acceptable, a generated UUID otherwise. The ID is stored
// in the request context for downstream middleware.
func RequestIDGeneration(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), RequestIDContextKey{}, requestIDFrom(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDPropagation echoes the request ID back to the client via the
// X-Request-ID response header and attaches it to the request log line. The
// header is set before the handler runs so it survives error paths.
func RequestIDPropagation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestID, ok := r.Context().Value(RequestIDContextKey{}).(string); ok && requestID != "" {
			w.Header().Set("X-Request-ID", requestID)
			SetLogAttrs(r.Context(), slog.String("request_id", requestID))
		}

		next.ServeHTTP(w, r)
	})
}
