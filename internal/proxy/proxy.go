// Package proxy exposes the OpenAI-compatible HTTP surface of the relay and
// translates each request onto an Azure AI Foundry Anthropic deployment.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"foundry-relay/internal/config"
	"foundry-relay/internal/metrics"
	"foundry-relay/internal/observability/middleware"
	"foundry-relay/internal/openaiadapter/anthropicfoundry"
)

// ReadinessChecker reports whether the application is ready to serve traffic.
type ReadinessChecker interface {
	IsReady() bool
}

type options struct {
	transport http.RoundTripper
	recorder  metrics.Recorder
}

// Option configures optional Proxy collaborators.
type Option func(*options)

// WithTransport overrides the HTTP transport used for backend requests.
// Tests substitute recorded responses through this.
func WithTransport(transport http.RoundTripper) Option {
	return func(o *options) {
		o.transport = transport
	}
}

// WithRecorder overrides the usage metrics sink.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(o *options) {
		o.recorder = recorder
	}
}

// Proxy is the relay's HTTP server: request handlers for every supported
// endpoint behind the shared middleware stack.
type Proxy struct {
	handler http.Handler
	server  *http.Server

	// tracker is set only when the proxy owns its metrics sink.
	tracker *metrics.Tracker
}

// New assembles the relay's HTTP surface from its configuration.
func New(cfg *config.Config, health ReadinessChecker, opts ...Option) (*Proxy, error) {
	if cfg == nil {
		return nil, errors.New("config must not be nil")
	}
	if health == nil {
		return nil, errors.New("readiness checker must not be nil")
	}

	o := options{transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}

	var tracker *metrics.Tracker
	recorder := o.recorder
	if recorder == nil {
		tracker = metrics.NewTracker()
		recorder = tracker
	}

	tokens, err := NewTokenValidator(cfg.Auth.ProxyTokens)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy token configuration: %w", err)
	}

	adapter := anthropicfoundry.NewCreateChatCompletionAdapter(
		cfg.Backend.DefaultMaxTokens,
		cfg.Backend.RequestTimeout,
		slog.Default(),
	)

	mux := http.NewServeMux()
	mux.Handle("POST /v1/chat/completions", &CreateChatCompletionsHandler{
		Adapter:              adapter,
		Transport:            o.transport,
		Tokens:               tokens,
		Recorder:             recorder,
		DevDefaultCredential: cfg.Auth.DevDefaultCredential,
	})
	mux.Handle("POST /v1/completions", &CreateCompletionsHandler{
		Adapter:              adapter,
		Transport:            o.transport,
		DevDefaultCredential: cfg.Auth.DevDefaultCredential,
	})
	mux.Handle("POST /v1/embeddings", &CreateEmbeddingsHandler{
		Transport:            o.transport,
		Tokens:               tokens,
		Recorder:             recorder,
		DevDefaultCredential: cfg.Auth.DevDefaultCredential,
		RequestTimeout:       cfg.Backend.RequestTimeout,
	})
	mux.Handle("POST /v1/moderations", moderationsHandler())
	mux.Handle("GET /v1/models", modelsHandler(cfg.Models.Default))
	mux.Handle("GET /healthz/live", livenessHandler())
	mux.Handle("GET /healthz/ready", readinessHandler(health))

	// Logging sits outside the handlers that attach per-request log
	// attributes, so those attributes land on the request log line.
	handler := applyMiddlewares(mux,
		middleware.RequestIDGeneration,
		middleware.Logging(slog.Default()),
		middleware.TraceContextExtraction,
		middleware.RequestIDPropagation,
		Recovery,
		RequestSizeLimit(cfg.Server.MaxRequestBytes),
	)

	return &Proxy{
		handler: handler,
		tracker: tracker,
	}, nil
}

// ServeHTTP implements http.Handler so tests can mount the full stack
// without a listener.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.handler.ServeHTTP(w, r)
}

// Start begins serving on addr. The returned channel delivers at most one
// runtime error and is closed on clean shutdown.
func (p *Proxy) Start(ctx context.Context, addr string) (<-chan error, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	p.server = &http.Server{
		Handler: p.handler,
		// No write timeout: SSE responses stay open for the duration of the
		// backend call.
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.InfoContext(ctx, "proxy listening", "addr", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := p.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return errCh, nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests until
// ctx expires.
func (p *Proxy) Shutdown(ctx context.Context) error {
	if p.server == nil {
		return nil
	}
	if err := p.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// UsageSnapshot returns the aggregated usage metrics. The second return is
// false when a custom recorder was injected and the proxy has nothing to
// report itself.
func (p *Proxy) UsageSnapshot() (metrics.Snapshot, bool) {
	if p.tracker == nil {
		return metrics.Snapshot{}, false
	}
	return p.tracker.Snapshot(), true
}
