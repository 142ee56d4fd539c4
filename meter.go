package speechrouter

import "time"

// Meter observes routing events for monitoring/logging.
type Meter interface {
	// OnRoute is called when a candidate is about to be invoked.
	OnRoute(event RouteEvent)

	// OnResult is called when a provider attempt completes.
	OnResult(event ResultEvent)

	// OnSkip is called when a candidate is skipped without being invoked
	// (e.g. rate-limit admission denied).
	OnSkip(event SkipEvent)

	// OnBreakerOpen is called when a provider is forced unhealthy.
	OnBreakerOpen(event BreakerEvent)
}

// RouteEvent describes a routing decision.
type RouteEvent struct {
	RequestID     string
	Provider      string
	Attempt       int
	Characters    int
	EstimatedCost float64
	Score         float64
}

// ResultEvent describes the outcome of a provider attempt.
type ResultEvent struct {
	RequestID    string
	Provider     string
	Success      bool
	Latency      time.Duration
	Cost         float64
	AudioSeconds float64
	Error        error
}

// SkipEvent describes a candidate passed over without an attempt.
type SkipEvent struct {
	RequestID string
	Provider  string
	Reason    string
}

// BreakerEvent describes a circuit-breaker trip.
type BreakerEvent struct {
	Provider  string
	ErrorRate float64
}
