// Package metrics aggregates per-route usage counters for the relay.
//
// The [Tracker] is a write-only sink behind the narrow [Recorder] interface:
// request handlers record finished requests and never read back. Aggregates
// are exposed once through [Tracker.Snapshot], typically at shutdown.
package metrics

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"math"
	"slices"
	"sync"
	"time"
)

// maxLatencySamples bounds the per-route latency window to the most recent
// requests.
const maxLatencySamples = 200

// TokenUsage accumulates token counts across requests.
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

func (u *TokenUsage) add(delta TokenUsage) {
	u.PromptTokens += delta.PromptTokens
	u.CompletionTokens += delta.CompletionTokens
	u.TotalTokens += delta.TotalTokens
}

// Sample is one finished request as seen by the sink.
type Sample struct {
	Route    string
	Model    string
	Resource string
	UserID   string
	Usage    TokenUsage
	Error    bool
	Duration time.Duration
}

// Recorder is the write-only surface request handlers depend on.
type Recorder interface {
	Record(sample Sample)
}

// DeriveUserID picks a stable per-caller label without storing raw
// credentials: the explicit user field when present, else a short digest of
// the credential, else "unknown".
func DeriveUserID(credential, explicitUser string) string {
	if explicitUser != "" {
		return explicitUser
	}
	if credential != "" {
		digest := sha256.Sum256([]byte(credential))
		return "key:" + hex.EncodeToString(digest[:])[:12]
	}
	return "unknown"
}

type routeMetrics struct {
	count       int64
	errorCount  int64
	lastSeen    time.Time
	usage       TokenUsage
	byModel     map[string]TokenUsage
	byResource  map[string]TokenUsage
	byUser      map[string]TokenUsage
	durationsMS []float64
	durationSum float64
}

// Tracker is an in-memory [Recorder] keyed by route.
type Tracker struct {
	mu        sync.Mutex
	startTime time.Time
	routes    map[string]*routeMetrics
}

var _ Recorder = (*Tracker)(nil)

// NewTracker returns an empty tracker whose uptime starts now.
func NewTracker() *Tracker {
	return &Tracker{
		startTime: time.Now(),
		routes:    make(map[string]*routeMetrics),
	}
}

// Record folds one sample into the per-route aggregates.
func (t *Tracker) Record(sample Sample) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.routes[sample.Route]
	if !ok {
		m = &routeMetrics{
			byModel:    make(map[string]TokenUsage),
			byResource: make(map[string]TokenUsage),
			byUser:     make(map[string]TokenUsage),
		}
		t.routes[sample.Route] = m
	}

	m.count++
	if sample.Error {
		m.errorCount++
	}
	m.lastSeen = time.Now()
	m.usage.add(sample.Usage)

	if sample.Duration > 0 {
		ms := float64(sample.Duration) / float64(time.Millisecond)
		m.durationsMS = append(m.durationsMS, ms)
		m.durationSum += ms
		if len(m.durationsMS) > maxLatencySamples {
			m.durationSum -= m.durationsMS[0]
			m.durationsMS = m.durationsMS[1:]
		}
	}

	addUsage(m.byModel, orDefault(sample.Model, "unknown-model"), sample.Usage)
	addUsage(m.byResource, orDefault(sample.Resource, "unknown-resource"), sample.Usage)
	addUsage(m.byUser, orDefault(sample.UserID, "unknown"), sample.Usage)
}

// Snapshot is a point-in-time copy of every route's aggregates.
type Snapshot struct {
	StartTime time.Time                `json:"start_time"`
	Routes    map[string]RouteSnapshot `json:"routes"`
}

// RouteSnapshot mirrors one route's counters.
type RouteSnapshot struct {
	Count      int64                 `json:"count"`
	ErrorCount int64                 `json:"error_count"`
	LastSeen   time.Time             `json:"last_seen"`
	Usage      TokenUsage            `json:"usage"`
	ByModel    map[string]TokenUsage `json:"by_model"`
	ByResource map[string]TokenUsage `json:"by_resource"`
	ByUser     map[string]TokenUsage `json:"by_user"`
	Latency    LatencySnapshot       `json:"latency_ms"`
}

// LatencySnapshot summarizes the bounded latency window in milliseconds.
type LatencySnapshot struct {
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

// Snapshot copies the current aggregates. The returned maps are detached
// from the tracker and safe to hold after further records.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	routes := make(map[string]RouteSnapshot, len(t.routes))
	for route, m := range t.routes {
		routes[route] = RouteSnapshot{
			Count:      m.count,
			ErrorCount: m.errorCount,
			LastSeen:   m.lastSeen,
			Usage:      m.usage,
			ByModel:    maps.Clone(m.byModel),
			ByResource: maps.Clone(m.byResource),
			ByUser:     maps.Clone(m.byUser),
			Latency:    m.latencySnapshot(),
		}
	}
	return Snapshot{StartTime: t.startTime, Routes: routes}
}

func (m *routeMetrics) latencySnapshot() LatencySnapshot {
	n := len(m.durationsMS)
	if n == 0 {
		return LatencySnapshot{}
	}

	sorted := slices.Clone(m.durationsMS)
	slices.Sort(sorted)
	return LatencySnapshot{
		Avg:   m.durationSum / float64(n),
		P50:   percentile(sorted, 0.50),
		P95:   percentile(sorted, 0.95),
		P99:   percentile(sorted, 0.99),
		Count: n,
	}
}

func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	idx := min(n-1, int(math.Round(p*float64(n-1))))
	return sorted[idx]
}

func addUsage(byKey map[string]TokenUsage, key string, delta TokenUsage) {
	u := byKey[key]
	u.add(delta)
	byKey[key] = u
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
