package app

import (
	"sync/atomic"

	"foundry-relay/internal/proxy"
)

// Health is the relay's readiness flag. It starts not-ready, flips on once
// the listener accepts, and flips back off when shutdown begins so probes
// steer traffic away while in-flight requests drain. Safe for concurrent use.
type Health struct {
	ready atomic.Bool
}

var _ proxy.ReadinessChecker = (*Health)(nil)

func NewHealth() *Health {
	return &Health{}
}

// SetReady updates the readiness state.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports the current readiness state.
func (h *Health) IsReady() bool {
	return h.ready.Load()
}
