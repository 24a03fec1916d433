// Package health exposes liveness, readiness and usage counters over HTTP.
package health

import (
	"sync/atomic"
	"time"
)

// UsageMetrics counts proxied requests. Safe for concurrent use.
type UsageMetrics struct {
	requests  atomic.Int64
	errors    atomic.Int64
	inFlight  atomic.Int64
	startedAt time.Time
}

func NewUsageMetrics() *UsageMetrics {
	return &UsageMetrics{startedAt: time.Now()}
}

// Begin marks a request as started and counts it. The returned func
// records completion; failed reports whether the request ended in error.
func (m *UsageMetrics) Begin() func(failed bool) {
	m.requests.Add(1)
	m.inFlight.Add(1)
	var done atomic.Bool
	return func(failed bool) {
		if !done.CompareAndSwap(false, true) {
			return
		}
		m.inFlight.Add(-1)
		if failed {
			m.errors.Add(1)
		}
	}
}

// UsageSnapshot is a point-in-time copy of the counters.
type UsageSnapshot struct {
	Requests      int64   `json:"requests"`
	Errors        int64   `json:"errors"`
	InFlight      int64   `json:"in_flight"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func (m *UsageMetrics) Snapshot() UsageSnapshot {
	return UsageSnapshot{
		Requests:      m.requests.Load(),
		Errors:        m.errors.Load(),
		InFlight:      m.inFlight.Load(),
		UptimeSeconds: time.Since(m.startedAt).Seconds(),
	}
}
