package speechrouter

import (
	"sync"
	"time"
)

// HealthStatus is a provider's liveness state.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// ProviderHealth is the externally visible health record for a provider.
type ProviderHealth struct {
	Status    HealthStatus  `json:"status"`
	Latency   time.Duration `json:"latency"`
	ErrorRate float64       `json:"error_rate"`
	LastCheck time.Time     `json:"last_check"`
}

// HealthMonitor tracks per-provider health. Transitions come from two
// sources: periodic probes, and the dispatcher forcing a provider unhealthy
// when its live error rate crosses the breaker threshold. Promotion back to
// healthy happens only through successful probes: an unhealthy provider
// first becomes degraded, then healthy after Breaker.HalfOpenMaxProbes
// consecutive probe successes.
type HealthMonitor struct {
	mu      sync.RWMutex
	entries map[string]*healthEntry
	breaker BreakerConfig
}

type healthEntry struct {
	mu        sync.Mutex
	health    ProviderHealth
	trippedAt time.Time // when the provider last went unhealthy
	streak    int       // consecutive successful probes while recovering
}

// NewHealthMonitor creates a monitor with the given breaker settings.
func NewHealthMonitor(breaker BreakerConfig) *HealthMonitor {
	return &HealthMonitor{
		entries: make(map[string]*healthEntry),
		breaker: breaker,
	}
}

// Register creates a healthy record for a provider. Records are never
// deleted, only updated.
func (m *HealthMonitor) Register(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[name]; !ok {
		m.entries[name] = &healthEntry{health: ProviderHealth{Status: StatusHealthy}}
	}
}

// Get returns the current health record for a provider. Unregistered
// providers report healthy.
func (m *HealthMonitor) Get(name string) ProviderHealth {
	e := m.entry(name)
	if e == nil {
		return ProviderHealth{Status: StatusHealthy}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.health
}

// Snapshot returns copies of all health records.
func (m *HealthMonitor) Snapshot() map[string]ProviderHealth {
	m.mu.RLock()
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	m.mu.RUnlock()

	out := make(map[string]ProviderHealth, len(names))
	for _, name := range names {
		out[name] = m.Get(name)
	}
	return out
}

// HealthyCount returns the number of providers currently healthy.
func (m *HealthMonitor) HealthyCount() int {
	n := 0
	for _, h := range m.Snapshot() {
		if h.Status == StatusHealthy {
			n++
		}
	}
	return n
}

// ForceUnhealthy trips the breaker for a provider, recording the live error
// rate that caused it. Takes effect immediately, not at the next probe.
func (m *HealthMonitor) ForceUnhealthy(name string, errorRate float64) {
	e := m.entry(name)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.health.Status = StatusUnhealthy
	e.health.ErrorRate = errorRate
	e.trippedAt = time.Now()
	e.streak = 0
}

// RecordLatency updates the last-known latency from a live call.
func (m *HealthMonitor) RecordLatency(name string, d time.Duration) {
	e := m.entry(name)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.health.Latency = d
}

// ShouldProbe reports whether a provider is due for a probe. Unhealthy
// providers sit out the breaker reset timeout before re-probing.
func (m *HealthMonitor) ShouldProbe(name string) bool {
	e := m.entry(name)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.health.Status != StatusUnhealthy {
		return true
	}
	return time.Since(e.trippedAt) >= m.breaker.ResetTimeout
}

// RecordProbe applies the outcome of a health probe.
func (m *HealthMonitor) RecordProbe(name string, latency time.Duration, err error) {
	e := m.entry(name)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.health.LastCheck = time.Now()
	e.health.Latency = latency

	if err != nil {
		e.health.Status = StatusUnhealthy
		e.health.ErrorRate = 1
		e.trippedAt = e.health.LastCheck
		e.streak = 0
		return
	}

	switch e.health.Status {
	case StatusUnhealthy:
		e.health.Status = StatusDegraded
		e.streak = 1
	case StatusDegraded:
		e.streak++
		if e.streak >= m.breaker.HalfOpenMaxProbes {
			e.health.Status = StatusHealthy
			e.health.ErrorRate = 0
			e.streak = 0
		}
	}
}

func (m *HealthMonitor) entry(name string) *healthEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[name]
}
