package speechrouter

import (
	"sync"
	"time"
)

// ProviderMetrics are running aggregates for a single provider. Snapshots
// returned by the tracker are copies; the tracker exclusively owns the
// mutable state.
type ProviderMetrics struct {
	TotalRequests      int64         `json:"total_requests"`
	SuccessfulRequests int64         `json:"successful_requests"`
	FailedRequests     int64         `json:"failed_requests"`
	TotalCharacters    int64         `json:"total_characters"`
	TotalAudioSeconds  float64       `json:"total_audio_seconds"`
	TotalCost          float64       `json:"total_cost"`
	AverageLatency     time.Duration `json:"average_latency"`
	ErrorRate          float64       `json:"error_rate"`
}

// AttemptRecord captures the outcome of a single synthesis attempt.
type AttemptRecord struct {
	Success      bool
	Characters   int
	AudioSeconds float64
	Cost         float64
	Latency      time.Duration
}

// MetricsTracker maintains per-provider aggregates feeding both selection
// scoring and budget enforcement. Counters use per-provider locks so
// concurrent requests to unrelated providers do not serialize.
type MetricsTracker struct {
	mu        sync.RWMutex
	providers map[string]*providerCounters
	billYear  int
	billMonth time.Month
}

type providerCounters struct {
	mu sync.Mutex
	m  ProviderMetrics
}

// NewMetricsTracker creates an empty tracker with the current billing period.
func NewMetricsTracker() *MetricsTracker {
	now := time.Now().UTC()
	return &MetricsTracker{
		providers: make(map[string]*providerCounters),
		billYear:  now.Year(),
		billMonth: now.Month(),
	}
}

// RecordAttempt atomically applies one attempt to a provider's counters and
// returns the updated snapshot.
func (t *MetricsTracker) RecordAttempt(name string, rec AttemptRecord) ProviderMetrics {
	pc := t.counters(name)

	pc.mu.Lock()
	defer pc.mu.Unlock()

	m := &pc.m
	m.TotalRequests++
	m.TotalCharacters += int64(rec.Characters)
	if rec.Success {
		m.SuccessfulRequests++
		m.TotalAudioSeconds += rec.AudioSeconds
		m.TotalCost += rec.Cost
		// Cumulative average weighted by successful-request count.
		n := m.SuccessfulRequests
		m.AverageLatency = time.Duration((int64(m.AverageLatency)*(n-1) + int64(rec.Latency)) / n)
	} else {
		m.FailedRequests++
	}
	m.ErrorRate = float64(m.FailedRequests) / float64(m.TotalRequests)

	return *m
}

// Provider returns a snapshot of one provider's metrics.
func (t *MetricsTracker) Provider(name string) ProviderMetrics {
	t.checkBillingReset()

	t.mu.RLock()
	pc, ok := t.providers[name]
	t.mu.RUnlock()
	if !ok {
		return ProviderMetrics{}
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.m
}

// Snapshot returns copies of all per-provider metrics.
func (t *MetricsTracker) Snapshot() map[string]ProviderMetrics {
	t.mu.RLock()
	names := make([]string, 0, len(t.providers))
	for name := range t.providers {
		names = append(names, name)
	}
	t.mu.RUnlock()

	out := make(map[string]ProviderMetrics, len(names))
	for _, name := range names {
		out[name] = t.Provider(name)
	}
	return out
}

// TotalSpend returns the cumulative cost across providers for the current
// billing period.
func (t *MetricsTracker) TotalSpend() float64 {
	var total float64
	for _, m := range t.Snapshot() {
		total += m.TotalCost
	}
	return total
}

// BudgetUtilization returns total spend as a percentage of the monthly
// budget. Values >= 100 indicate budget exhaustion. A zero budget reports 0.
func (t *MetricsTracker) BudgetUtilization(monthlyBudget float64) float64 {
	if monthlyBudget <= 0 {
		return 0
	}
	return t.TotalSpend() / monthlyBudget * 100
}

// checkBillingReset zeroes the cost ledger when the calendar month rolls
// over (UTC). Other counters survive; only spend is period-scoped.
func (t *MetricsTracker) checkBillingReset() {
	now := time.Now().UTC()

	t.mu.Lock()
	if now.Year() == t.billYear && now.Month() == t.billMonth {
		t.mu.Unlock()
		return
	}
	t.billYear = now.Year()
	t.billMonth = now.Month()
	pcs := make([]*providerCounters, 0, len(t.providers))
	for _, pc := range t.providers {
		pcs = append(pcs, pc)
	}
	t.mu.Unlock()

	for _, pc := range pcs {
		pc.mu.Lock()
		pc.m.TotalCost = 0
		pc.mu.Unlock()
	}
}

func (t *MetricsTracker) counters(name string) *providerCounters {
	t.mu.RLock()
	pc, ok := t.providers[name]
	t.mu.RUnlock()
	if ok {
		return pc
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if pc, ok = t.providers[name]; ok {
		return pc
	}
	pc = &providerCounters{}
	t.providers[name] = pc
	return pc
}
