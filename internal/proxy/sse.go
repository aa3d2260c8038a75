package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// doneMarker terminates OpenAI-style SSE streams.
const doneMarker = "[DONE]"

// SSEWriter writes server-sent events, flushing after every event so chunks
// reach the client immediately.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter prepares w for an SSE response. Fails when the underlying
// writer cannot be flushed incrementally.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteData JSON-encodes v as a data event and flushes.
func (s *SSEWriter) WriteData(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode event data: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("failed to write event data: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// WriteRaw writes a literal data line and flushes. Used for the protocol's
// [DONE] terminator, which is not JSON.
func (s *SSEWriter) WriteRaw(data string) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write raw data: %w", err)
	}
	s.flusher.Flush()
	return nil
}
