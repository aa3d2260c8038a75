package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"foundry-relay/internal/config"
)

// benchTransport returns one pre-recorded response without network calls.
type benchTransport struct {
	responseBody string
	contentType  string
}

func (m *benchTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		_, _ = io.Copy(io.Discard, req.Body)
		_ = req.Body.Close()
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(m.responseBody)),
		Header:     http.Header{"Content-Type": []string{m.contentType}},
		Request:    req,
	}, nil
}

const benchChatRequest = `{
	"model": "claude-sonnet-4-5",
	"messages": [
		{"role": "system", "content": "You are a terse assistant."},
		{"role": "user", "content": "Summarize the plot of Hamlet in one sentence."},
		{"role": "assistant", "content": "A prince avenges his father's murder and nearly everyone dies."},
		{"role": "user", "content": "Now do Macbeth."}
	]
}`

const benchStreamRequest = `{
	"model": "claude-sonnet-4-5",
	"stream": true,
	"messages": [
		{"role": "user", "content": "Summarize the plot of Hamlet in one sentence."}
	]
}`

const benchBufferedResponse = `{
	"id": "msg_bench",
	"type": "message",
	"role": "assistant",
	"model": "claude-sonnet-4-5",
	"content": [{"type": "text", "text": "A Scottish lord murders his way to the throne and is undone by prophecy and guilt."}],
	"stop_reason": "end_turn",
	"usage": {"input_tokens": 64, "output_tokens": 21}
}`

const benchStreamResponse = `event: message_start
data: {"type":"message_start","message":{"id":"msg_bench_stream","type":"message","role":"assistant","model":"claude-sonnet-4-5","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":18,"output_tokens":1}}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"A prince "}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"avenges his father's murder "}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"and nearly everyone dies."}}

event: content_block_stop
data: {"type":"content_block_stop","index":0}

event: message_delta
data: {"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":14}}

event: message_stop
data: {"type":"message_stop"}

`

// setupBenchServer creates the full middleware stack on a test listener with
// a mocked upstream.
func setupBenchServer(b *testing.B, transport http.RoundTripper) *httptest.Server {
	b.Helper()

	cfg, err := config.Load("", func() []string { return nil })
	if err != nil {
		b.Fatalf("Failed to load config: %v", err)
	}

	p, err := New(cfg, readyChecker(true), WithTransport(transport))
	if err != nil {
		b.Fatalf("Failed to create proxy: %v", err)
	}

	server := httptest.NewServer(p)
	b.Cleanup(server.Close)
	return server
}

func benchPost(b *testing.B, url, body string) *http.Response {
	b.Helper()

	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		b.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer myresource:bench-key")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		b.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		b.Fatalf("Unexpected status code: %d", resp.StatusCode)
	}
	return resp
}

// BenchmarkProxyNonStreaming measures end-to-end buffered response latency.
// Includes routing, middleware, handler, adapter, and JSON encoding.
// Excludes network latency (mocked transport).
func BenchmarkProxyNonStreaming(b *testing.B) {
	server := setupBenchServer(b, &benchTransport{
		responseBody: benchBufferedResponse,
		contentType:  "application/json",
	})

	b.ReportAllocs()
	b.ResetTimer()

	for b.Loop() {
		resp := benchPost(b, server.URL+"/v1/chat/completions", benchChatRequest)
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			b.Fatalf("Failed to read response: %v", err)
		}
		_ = resp.Body.Close()
	}
}

// BenchmarkProxyStreaming measures end-to-end streaming latency including the
// SSE replay encoding.
func BenchmarkProxyStreaming(b *testing.B) {
	server := setupBenchServer(b, &benchTransport{
		responseBody: benchStreamResponse,
		contentType:  "text/event-stream",
	})

	b.ReportAllocs()
	b.ResetTimer()

	for b.Loop() {
		resp := benchPost(b, server.URL+"/v1/chat/completions", benchStreamRequest)
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			b.Fatalf("Stream read error: %v", err)
		}
		_ = resp.Body.Close()
	}
}

// BenchmarkProxyStreaming_TTFB measures Time-To-First-Byte for streaming
// responses. The backend stream is consumed in full before replay, so TTFB
// here tracks the whole accumulate-and-translate pipeline.
func BenchmarkProxyStreaming_TTFB(b *testing.B) {
	server := setupBenchServer(b, &benchTransport{
		responseBody: benchStreamResponse,
		contentType:  "text/event-stream",
	})

	b.ReportAllocs()
	b.ResetTimer()

	var totalTTFB time.Duration
	var iterations int
	buf := make([]byte, 1)

	for b.Loop() {
		start := time.Now()
		resp := benchPost(b, server.URL+"/v1/chat/completions", benchStreamRequest)

		if _, err := resp.Body.Read(buf); err != nil {
			b.Fatalf("Failed to read first byte: %v", err)
		}

		totalTTFB += time.Since(start)
		iterations++

		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}

	avgTTFB := totalTTFB / time.Duration(iterations)
	b.ReportMetric(float64(avgTTFB.Microseconds()), "µs/ttfb")
}

// BenchmarkProxyConcurrentThroughput measures buffered throughput under
// concurrent load.
func BenchmarkProxyConcurrentThroughput(b *testing.B) {
	server := setupBenchServer(b, &benchTransport{
		responseBody: benchBufferedResponse,
		contentType:  "application/json",
	})

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			resp := benchPost(b, server.URL+"/v1/chat/completions", benchChatRequest)
			if _, err := io.Copy(io.Discard, resp.Body); err != nil {
				b.Fatalf("Failed to read response: %v", err)
			}
			_ = resp.Body.Close()
		}
	})
}
