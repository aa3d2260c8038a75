package proxy

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"foundry-relay/internal/openaiadapter/types"
)

// Recovery turns handler panics into a structured 500. When the panic fires
// mid-stream the status line is already on the wire and the error write is a
// no-op; the connection still closes, which is all a streaming client can
// observe.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.ErrorContext(r.Context(), "panic in handler",
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				writeStructuredError(r.Context(), w, http.StatusInternalServerError,
					types.NewErrorResponse(types.ErrorTypeServer, "internal server error", ""))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// RequestSizeLimit caps request bodies at maxBytes. Handlers read the body
// through the cap and see *http.MaxBytesError past it, which the decode paths
// report like any other malformed payload.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// applyMiddlewares wraps h so that the first middleware listed is the
// outermost.
func applyMiddlewares(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
