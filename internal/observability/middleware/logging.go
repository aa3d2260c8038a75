package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/httplog/v3"
)

// Logging emits one line per HTTP request: method, path, status, duration.
// Health probe requests are skipped; orchestrators poll them every few
// seconds and the lines carry no information.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return httplog.RequestLogger(logger, &httplog.Options{
		Schema: httplog.SchemaECS.Concise(true),

		Skip: func(req *http.Request, respStatus int) bool {
			return strings.HasPrefix(req.URL.Path, "/healthz/")
		},

		// Never log credential-bearing headers or payloads: Authorization
		// carries Foundry API keys, X-Proxy-Token carries relay tokens, and
		// bodies hold user conversations.
		LogRequestHeaders:  []string{"Content-Type", "Origin"},
		LogResponseHeaders: []string{},
		LogRequestBody:     nil,
		LogResponseBody:    nil,

		RecoverPanics: false, // the proxy runs its own recovery middleware
	})
}

// SetLogAttrs attaches attributes to the current request's log line.
func SetLogAttrs(ctx context.Context, attrs ...slog.Attr) {
	httplog.SetAttrs(ctx, attrs...)
}
