package speechrouter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Router dispatches speech-synthesis requests across multiple providers.
// Construct with New, then call Init before serving traffic. Routers are
// independent instances; nothing is process-global.
type Router struct {
	mu          sync.RWMutex // guards cfg and limiters
	cfg         Config
	providers   map[string]Provider
	descriptors map[string]Descriptor
	metrics     *MetricsTracker
	health      *HealthMonitor
	meter       Meter
	limiters    map[string]*providerLimiter
	initialized bool
}

// Option configures a Router.
type Option func(*Router)

// WithMeter sets the event observer.
func WithMeter(m Meter) Option {
	return func(r *Router) { r.meter = m }
}

// WithMetrics sets the metrics tracker.
func WithMetrics(t *MetricsTracker) Option {
	return func(r *Router) { r.metrics = t }
}

// WithHealthMonitor sets the health monitor.
func WithHealthMonitor(h *HealthMonitor) Option {
	return func(r *Router) { r.health = h }
}

// WithDescriptors overrides the provider descriptor table.
func WithDescriptors(table map[string]Descriptor) Option {
	return func(r *Router) { r.descriptors = table }
}

// New creates a Router from a validated config and a set of adapters.
// Default components are used unless overridden via options.
func New(cfg Config, providers []Provider, opts ...Option) (*Router, error) {
	if len(providers) == 0 {
		return nil, &ConfigError{Reason: "at least one provider adapter is required"}
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provMap := make(map[string]Provider, len(providers))
	for _, p := range providers {
		provMap[p.Name()] = p
	}
	for _, pc := range cfg.EnabledProviders() {
		if _, ok := provMap[pc.Name]; !ok {
			return nil, &ConfigError{Field: pc.Name, Reason: "enabled provider has no adapter"}
		}
	}

	r := &Router{
		cfg:         cfg,
		providers:   provMap,
		descriptors: copyDescriptors(),
		limiters:    make(map[string]*providerLimiter),
	}

	for _, opt := range opts {
		opt(r)
	}

	// Apply defaults after options.
	if r.metrics == nil {
		r.metrics = NewMetricsTracker()
	}
	if r.health == nil {
		r.health = NewHealthMonitor(cfg.Policy.Breaker)
	}
	if r.meter == nil {
		r.meter = noopMeter{}
	}

	return r, nil
}

// Init validates each enabled adapter against its configuration and
// registers health and rate-limit state. Any failure aborts initialization.
func (r *Router) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, pc := range r.cfg.EnabledProviders() {
		p := r.providers[pc.Name]
		if err := p.Init(pc); err != nil {
			return fmt.Errorf("speechrouter: init provider %s: %w", pc.Name, err)
		}
		r.health.Register(pc.Name)
		r.limiters[pc.Name] = newProviderLimiter(pc.RateLimit)
	}

	r.initialized = true
	return nil
}

// Synthesize selects a provider, invokes it and walks the fallback order on
// failure. Every attempt, success or failure, is recorded in metrics. Only
// terminal errors surface to the caller.
func (r *Router) Synthesize(ctx context.Context, req SynthesisRequest, criteria *SelectionCriteria) (SynthesisResult, error) {
	r.mu.RLock()
	cfg := r.cfg
	initialized := r.initialized
	r.mu.RUnlock()

	if !initialized {
		return SynthesisResult{}, ErrNotInitialized
	}
	if req.Text == "" {
		return SynthesisResult{}, ErrEmptyText
	}
	if limit := cfg.Policy.CharacterLimit; limit > 0 && len(req.Text) > limit {
		return SynthesisResult{}, ErrTextTooLong
	}

	ranked, err := selectCandidates(cfg, r.descriptors, r.health, r.metrics, req, criteria)
	if err != nil {
		return SynthesisResult{}, err
	}
	ordered := r.fallbackOrdered(cfg, ranked)

	requestID := uuid.New().String()
	attempts := 0
	var lastErr error

	for _, c := range ordered {
		lim := r.limiter(c.Name)
		if lim != nil && !lim.tryAcquire() {
			r.meter.OnSkip(SkipEvent{RequestID: requestID, Provider: c.Name, Reason: "rate limit"})
			continue
		}

		attempts++
		r.meter.OnRoute(RouteEvent{
			RequestID:     requestID,
			Provider:      c.Name,
			Attempt:       attempts,
			Characters:    len(req.Text),
			EstimatedCost: c.EstimatedCost,
			Score:         c.Score,
		})

		provReq := ProviderRequest{
			Auth:     c.Config.Auth,
			Text:     req.Text,
			Voice:    req.Voice,
			Language: req.Language,
			Speed:    req.Speed,
			Pitch:    req.Pitch,
		}
		if provReq.Voice == "" {
			provReq.Voice = c.Config.DefaultVoice
		}

		callCtx, cancel := context.WithTimeout(ctx, c.Config.Timeout)
		start := time.Now()
		resp, err := r.providers[c.Name].Synthesize(callCtx, provReq)
		cancel()
		latency := time.Since(start)

		if lim != nil {
			lim.release()
		}

		if err != nil {
			updated := r.metrics.RecordAttempt(c.Name, AttemptRecord{
				Characters: len(req.Text),
				Latency:    latency,
			})
			if updated.ErrorRate > cfg.Policy.Breaker.FailureThreshold {
				r.health.ForceUnhealthy(c.Name, updated.ErrorRate)
				r.meter.OnBreakerOpen(BreakerEvent{Provider: c.Name, ErrorRate: updated.ErrorRate})
			}
			r.meter.OnResult(ResultEvent{
				RequestID: requestID,
				Provider:  c.Name,
				Latency:   latency,
				Error:     err,
			})

			if IsFatal(err) {
				return SynthesisResult{}, &RouterError{
					Err:       err,
					Provider:  c.Name,
					RequestID: requestID,
					Attempts:  attempts,
				}
			}
			if ctx.Err() != nil {
				return SynthesisResult{}, &RouterError{
					Err:       ctx.Err(),
					Provider:  c.Name,
					RequestID: requestID,
					Attempts:  attempts,
				}
			}

			lastErr = err
			continue
		}

		// Success.
		cost := EstimateCost(req.Text, c.Config.CostPerChar)
		audioSec := resp.AudioSeconds
		if audioSec <= 0 {
			audioSec = EstimateAudioSeconds(req.Text, c.Descriptor.CharsPerSecond)
		}
		r.metrics.RecordAttempt(c.Name, AttemptRecord{
			Success:      true,
			Characters:   len(req.Text),
			AudioSeconds: audioSec,
			Cost:         cost,
			Latency:      latency,
		})
		r.health.RecordLatency(c.Name, latency)
		r.meter.OnResult(ResultEvent{
			RequestID:    requestID,
			Provider:     c.Name,
			Success:      true,
			Latency:      latency,
			Cost:         cost,
			AudioSeconds: audioSec,
		})

		return SynthesisResult{
			Audio:        resp.Audio,
			AudioSeconds: audioSec,
			CostEstimate: cost,
			Format:       resp.Format,
			Routing: RoutingInfo{
				Provider:  c.Name,
				RequestID: requestID,
				Attempts:  attempts,
			},
		}, nil
	}

	if lastErr != nil {
		return SynthesisResult{}, &RouterError{
			Err:       ErrAllProvidersFailed,
			RequestID: requestID,
			Attempts:  attempts,
		}
	}
	return SynthesisResult{}, ErrNoProviderAvailable
}

// fallbackOrdered produces the attempt sequence: the top-ranked candidate
// first, then the policy's fallback order when configured, then any ranked
// survivors the policy does not mention. Without a policy order, the
// selection ranking (health, then error rate via the composite score) is
// used as-is. A provider never appears twice.
func (r *Router) fallbackOrdered(cfg Config, ranked []Candidate) []Candidate {
	if len(cfg.Policy.FallbackOrder) == 0 || len(ranked) <= 1 {
		return ranked
	}

	byName := make(map[string]Candidate, len(ranked))
	for _, c := range ranked {
		byName[c.Name] = c
	}

	ordered := make([]Candidate, 0, len(ranked))
	ordered = append(ordered, ranked[0])
	seen := map[string]bool{ranked[0].Name: true}
	for _, name := range cfg.Policy.FallbackOrder {
		if c, ok := byName[name]; ok && !seen[name] {
			ordered = append(ordered, c)
			seen[name] = true
		}
	}
	for _, c := range ranked[1:] {
		if !seen[c.Name] {
			ordered = append(ordered, c)
			seen[c.Name] = true
		}
	}
	return ordered
}

// RunHealthChecks probes all enabled providers on the policy interval until
// the context is cancelled. Run it in its own goroutine.
func (r *Router) RunHealthChecks(ctx context.Context) {
	r.mu.RLock()
	interval := r.cfg.Policy.HealthCheckInterval
	r.mu.RUnlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.ProbeAll(ctx)
		}
	}
}

// ProbeAll runs one concurrent probe round across enabled providers.
// Unhealthy providers still inside the breaker reset timeout are skipped.
func (r *Router) ProbeAll(ctx context.Context) {
	r.mu.RLock()
	configs := r.cfg.EnabledProviders()
	r.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, pc := range configs {
		pc := pc
		if !r.health.ShouldProbe(pc.Name) {
			continue
		}
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(gctx, pc.Timeout)
			defer cancel()

			start := time.Now()
			err := r.providers[pc.Name].HealthCheck(probeCtx)
			r.health.RecordProbe(pc.Name, time.Since(start), err)
			return nil
		})
	}
	_ = g.Wait()
}

// Status reports the router's current view of its providers.
func (r *Router) Status() Status {
	r.mu.RLock()
	initialized := r.initialized
	enabled := r.cfg.EnabledProviders()
	r.mu.RUnlock()

	return Status{
		Initialized:      initialized,
		TotalProviders:   len(enabled),
		HealthyProviders: r.health.HealthyCount(),
		Health:           r.health.Snapshot(),
		Metrics:          r.metrics.Snapshot(),
	}
}

// BudgetUtilization returns current spend as a percentage of the monthly
// budget.
func (r *Router) BudgetUtilization() float64 {
	r.mu.RLock()
	budget := r.cfg.Policy.MonthlyBudget
	r.mu.RUnlock()
	return r.metrics.BudgetUtilization(budget)
}

// UpdateProvider applies a validated provider config change at runtime.
// The adapter is re-initialized when the provider is enabled.
func (r *Router) UpdateProvider(name string, pc ProviderConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.cfg.UpdateProvider(name, pc); err != nil {
		return err
	}

	applied := r.cfg.Providers[name]
	if applied.Enabled {
		p, ok := r.providers[name]
		if !ok {
			return &ConfigError{Field: name, Reason: "enabled provider has no adapter"}
		}
		if err := p.Init(applied); err != nil {
			return fmt.Errorf("speechrouter: init provider %s: %w", name, err)
		}
		r.health.Register(name)
		r.limiters[name] = newProviderLimiter(applied.RateLimit)
	}
	return nil
}

func (r *Router) limiter(name string) *providerLimiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiters[name]
}

// noopMeter is the default observer; it discards all events.
type noopMeter struct{}

func (noopMeter) OnRoute(RouteEvent)         {}
func (noopMeter) OnResult(ResultEvent)       {}
func (noopMeter) OnSkip(SkipEvent)           {}
func (noopMeter) OnBreakerOpen(BreakerEvent) {}
