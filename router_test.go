package speechrouter_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sr "github.com/voicewing/speechrouter"
	"github.com/voicewing/speechrouter/meter"
	"github.com/voicewing/speechrouter/provider/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, cfg sr.Config, providers []sr.Provider, opts ...sr.Option) *sr.Router {
	t.Helper()
	opts = append(opts, sr.WithMeter(&meter.NoopMeter{}))
	r, err := sr.New(cfg, providers, opts...)
	require.NoError(t, err)
	require.NoError(t, r.Init())
	return r
}

func providerConfig(cost float64, langs ...string) sr.ProviderConfig {
	if len(langs) == 0 {
		langs = []string{"en"}
	}
	return sr.ProviderConfig{
		Enabled:            true,
		Auth:               sr.Auth{APIKey: "test-key"},
		MaxCharsPerRequest: 5000,
		CostPerChar:        cost,
		Languages:          langs,
		Timeout:            time.Second,
	}
}

// Test 1: cheapest provider wins under cost optimization with equal health.
func TestCheapestProvider_SelectedUnderCostOptimization(t *testing.T) {
	a := mock.New(mock.WithName("alpha"))
	b := mock.New(mock.WithName("beta"))

	cfg := sr.Config{
		Policy: sr.Policy{CostOptimization: true},
		Providers: map[string]sr.ProviderConfig{
			"alpha": providerConfig(0.00003),
			"beta":  providerConfig(0.000015),
		},
	}

	r := newTestRouter(t, cfg, []sr.Provider{a, b})

	res, err := r.Synthesize(context.Background(), sr.SynthesisRequest{Text: "Hello there", Language: "en"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "beta", res.Routing.Provider)
	assert.Equal(t, 1, res.Routing.Attempts)
}

// Test 2: sole provider fails -> AllProvidersFailed and metrics reflect it.
func TestSingleProviderFailure_AllProvidersFailed(t *testing.T) {
	a := mock.New(mock.WithName("alpha"), mock.WithError(sr.ErrProviderUnavailable))

	cfg := sr.Config{
		Providers: map[string]sr.ProviderConfig{
			"alpha": providerConfig(0.00003),
		},
	}

	r := newTestRouter(t, cfg, []sr.Provider{a})

	_, err := r.Synthesize(context.Background(), sr.SynthesisRequest{Text: "hello"}, nil)
	assert.ErrorIs(t, err, sr.ErrAllProvidersFailed)

	st := r.Status()
	m := st.Metrics["alpha"]
	assert.Equal(t, int64(1), m.FailedRequests)
	assert.Equal(t, 1.0, m.ErrorRate)
}

// Test 3: language filter selects the only provider declaring "ja".
func TestLanguageFilter_SelectsJapaneseProvider(t *testing.T) {
	a := mock.New(mock.WithName("alpha"))
	b := mock.New(mock.WithName("beta"))
	c := mock.New(mock.WithName("gamma"))

	cfg := sr.Config{
		Policy: sr.Policy{CostOptimization: true},
		Providers: map[string]sr.ProviderConfig{
			"alpha": providerConfig(0.000001, "en"),
			"beta":  providerConfig(0.000002, "en", "fr"),
			"gamma": providerConfig(0.0001, "en", "ja"),
		},
	}

	r := newTestRouter(t, cfg, []sr.Provider{a, b, c})

	res, err := r.Synthesize(context.Background(), sr.SynthesisRequest{Text: "こんにちは", Language: "ja"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "gamma", res.Routing.Provider)
}

// Test 4: a failed provider is never re-selected within the same call.
func TestFallback_SkipsFailedProvider(t *testing.T) {
	a := mock.New(mock.WithName("alpha"), mock.WithError(sr.ErrProviderUnavailable))
	b := mock.New(mock.WithName("beta"))

	cfg := sr.Config{
		Policy: sr.Policy{CostOptimization: true},
		Providers: map[string]sr.ProviderConfig{
			"alpha": providerConfig(0.000001), // cheapest, selected first
			"beta":  providerConfig(0.00005),
		},
	}

	r := newTestRouter(t, cfg, []sr.Provider{a, b})

	res, err := r.Synthesize(context.Background(), sr.SynthesisRequest{Text: "hello"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "beta", res.Routing.Provider)
	assert.Equal(t, 2, res.Routing.Attempts)
	assert.Equal(t, int64(1), a.Calls())
	assert.Equal(t, int64(1), b.Calls())
}

// Test 5: text longer than every provider's limit -> NoProviderAvailable.
func TestTextExceedsAllProviderLimits_NoProviderAvailable(t *testing.T) {
	a := mock.New(mock.WithName("alpha"))

	pc := providerConfig(0.00003)
	pc.MaxCharsPerRequest = 5

	cfg := sr.Config{
		Providers: map[string]sr.ProviderConfig{"alpha": pc},
	}

	r := newTestRouter(t, cfg, []sr.Provider{a})

	_, err := r.Synthesize(context.Background(), sr.SynthesisRequest{Text: "this is far too long"}, nil)
	assert.ErrorIs(t, err, sr.ErrNoProviderAvailable)
	assert.Equal(t, int64(0), a.Calls())
}

// Test 6: global character limit rejects before selection.
func TestGlobalCharacterLimit_Rejects(t *testing.T) {
	a := mock.New(mock.WithName("alpha"))

	cfg := sr.Config{
		Policy:    sr.Policy{CharacterLimit: 3},
		Providers: map[string]sr.ProviderConfig{"alpha": providerConfig(0.00003)},
	}

	r := newTestRouter(t, cfg, []sr.Provider{a})

	_, err := r.Synthesize(context.Background(), sr.SynthesisRequest{Text: "hello"}, nil)
	assert.ErrorIs(t, err, sr.ErrTextTooLong)
}

// Test 7: empty text is rejected.
func TestEmptyText_Rejected(t *testing.T) {
	a := mock.New(mock.WithName("alpha"))

	cfg := sr.Config{
		Providers: map[string]sr.ProviderConfig{"alpha": providerConfig(0.00003)},
	}

	r := newTestRouter(t, cfg, []sr.Provider{a})

	_, err := r.Synthesize(context.Background(), sr.SynthesisRequest{}, nil)
	assert.ErrorIs(t, err, sr.ErrEmptyText)
}

// Test 8: breaker trips on error rate and excludes the provider until a
// successful probe round.
func TestBreakerTrip_ExcludedUntilProbe(t *testing.T) {
	a := mock.New(mock.WithName("alpha"), mock.WithError(sr.ErrProviderUnavailable))
	b := mock.New(mock.WithName("beta"))

	cfg := sr.Config{
		Policy: sr.Policy{
			CostOptimization: true,
			Breaker: sr.BreakerConfig{
				FailureThreshold:  0.5,
				ResetTimeout:      time.Millisecond,
				HalfOpenMaxProbes: 2,
			},
		},
		Providers: map[string]sr.ProviderConfig{
			"alpha": providerConfig(0.000001),
			"beta":  providerConfig(0.00005),
		},
	}

	r := newTestRouter(t, cfg, []sr.Provider{a, b})

	// First call: alpha fails (error rate 1.0 > 0.5), beta serves.
	res, err := r.Synthesize(context.Background(), sr.SynthesisRequest{Text: "hello"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "beta", res.Routing.Provider)
	assert.Equal(t, sr.StatusUnhealthy, r.Status().Health["alpha"].Status)

	// Second call: alpha is not even attempted.
	_, err = r.Synthesize(context.Background(), sr.SynthesisRequest{Text: "hello again"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.Calls())

	// Provider recovers; probes promote it in steps after the reset timeout.
	a.SetError(nil)
	time.Sleep(5 * time.Millisecond)

	r.ProbeAll(context.Background())
	assert.Equal(t, sr.StatusDegraded, r.Status().Health["alpha"].Status)

	r.ProbeAll(context.Background())
	assert.Equal(t, sr.StatusHealthy, r.Status().Health["alpha"].Status)
}

// Test 9: policy fallback order controls the walk after the primary fails.
func TestFallbackOrder_Respected(t *testing.T) {
	a := mock.New(mock.WithName("alpha"), mock.WithError(sr.ErrProviderUnavailable))
	b := mock.New(mock.WithName("beta"))
	c := mock.New(mock.WithName("gamma"))

	cfg := sr.Config{
		Policy: sr.Policy{
			CostOptimization: true,
			FallbackOrder:    []string{"gamma", "beta"},
		},
		Providers: map[string]sr.ProviderConfig{
			"alpha": providerConfig(0.000001),
			"beta":  providerConfig(0.000002),
			"gamma": providerConfig(0.000003),
		},
	}

	r := newTestRouter(t, cfg, []sr.Provider{a, b, c})

	res, err := r.Synthesize(context.Background(), sr.SynthesisRequest{Text: "hello"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "gamma", res.Routing.Provider)
	assert.Equal(t, int64(0), b.Calls())
}

// Test 10: premium criteria prefers the premium-tuned provider over a
// cheaper standard one.
func TestCriteria_PremiumQualityBias(t *testing.T) {
	prem := mock.New(mock.WithName("prem"))
	cheap := mock.New(mock.WithName("cheap"))

	table := map[string]sr.Descriptor{
		"prem": {
			Name:         "prem",
			PremiumVoice: true,
			QualityRank:  map[sr.QualityTier]int{sr.QualityPremium: 1},
		},
		"cheap": {Name: "cheap"},
	}

	cfg := sr.Config{
		Policy: sr.Policy{CostOptimization: true},
		Providers: map[string]sr.ProviderConfig{
			"prem":  providerConfig(0.00003),
			"cheap": providerConfig(0.000015),
		},
	}

	r := newTestRouter(t, cfg, []sr.Provider{prem, cheap}, sr.WithDescriptors(table))

	res, err := r.Synthesize(context.Background(), sr.SynthesisRequest{Text: "hello"},
		&sr.SelectionCriteria{Quality: sr.QualityPremium})
	require.NoError(t, err)
	assert.Equal(t, "prem", res.Routing.Provider)
}

// Test 11: budget utilization accumulates monotonically across calls.
func TestBudgetUtilization_Accumulates(t *testing.T) {
	a := mock.New(mock.WithName("alpha"))

	pc := providerConfig(0.01)
	cfg := sr.Config{
		Policy:    sr.Policy{MonthlyBudget: 10},
		Providers: map[string]sr.ProviderConfig{"alpha": pc},
	}

	r := newTestRouter(t, cfg, []sr.Provider{a})

	_, err := r.Synthesize(context.Background(), sr.SynthesisRequest{Text: "hello"}, nil) // 5 chars * 0.01 = 0.05
	require.NoError(t, err)
	first := r.BudgetUtilization()
	assert.InDelta(t, 0.05/10*100, first, 1e-9)

	_, err = r.Synthesize(context.Background(), sr.SynthesisRequest{Text: "hello"}, nil)
	require.NoError(t, err)
	second := r.BudgetUtilization()
	assert.Greater(t, second, first)
	assert.InDelta(t, 2*0.05/10*100, second, 1e-9)
}

// Test 12: rate-limited provider is skipped, not failed.
func TestRateLimit_SkipsToNextProvider(t *testing.T) {
	a := mock.New(mock.WithName("alpha"))
	b := mock.New(mock.WithName("beta"))

	limited := providerConfig(0.000001)
	limited.RateLimit = sr.RateLimit{RequestsPerMinute: 1}

	cfg := sr.Config{
		Policy: sr.Policy{CostOptimization: true},
		Providers: map[string]sr.ProviderConfig{
			"alpha": limited,
			"beta":  providerConfig(0.00005),
		},
	}

	r := newTestRouter(t, cfg, []sr.Provider{a, b})

	res, err := r.Synthesize(context.Background(), sr.SynthesisRequest{Text: "hello"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "alpha", res.Routing.Provider)

	// Token bucket exhausted: the second call must skip alpha without
	// touching its metrics.
	res, err = r.Synthesize(context.Background(), sr.SynthesisRequest{Text: "hello"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "beta", res.Routing.Provider)
	assert.Equal(t, int64(0), r.Status().Metrics["alpha"].FailedRequests)
}

// Test 13: concurrent synthesis keeps metrics consistent.
func TestConcurrentSynthesize_MetricsConsistent(t *testing.T) {
	a := mock.New(mock.WithName("alpha"))

	cfg := sr.Config{
		Providers: map[string]sr.ProviderConfig{"alpha": providerConfig(0.00001)},
	}

	r := newTestRouter(t, cfg, []sr.Provider{a})

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = r.Synthesize(context.Background(), sr.SynthesisRequest{Text: "hello"}, nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	m := r.Status().Metrics["alpha"]
	assert.Equal(t, int64(n), m.TotalRequests)
	assert.Equal(t, int64(n), m.SuccessfulRequests)
	assert.InDelta(t, float64(n)*5*0.00001, m.TotalCost, 1e-9)
}

// Test 14: synthesize before Init fails cleanly.
func TestSynthesize_BeforeInit(t *testing.T) {
	a := mock.New(mock.WithName("alpha"))

	cfg := sr.Config{
		Providers: map[string]sr.ProviderConfig{"alpha": providerConfig(0.00003)},
	}

	r, err := sr.New(cfg, []sr.Provider{a})
	require.NoError(t, err)

	_, err = r.Synthesize(context.Background(), sr.SynthesisRequest{Text: "hello"}, nil)
	assert.ErrorIs(t, err, sr.ErrNotInitialized)
}

// Test 15: status reflects provider counts and health.
func TestStatus_Reports(t *testing.T) {
	a := mock.New(mock.WithName("alpha"))
	b := mock.New(mock.WithName("beta"))

	cfg := sr.Config{
		Providers: map[string]sr.ProviderConfig{
			"alpha": providerConfig(0.00003),
			"beta":  providerConfig(0.000015),
		},
	}

	r := newTestRouter(t, cfg, []sr.Provider{a, b})

	st := r.Status()
	assert.True(t, st.Initialized)
	assert.Equal(t, 2, st.TotalProviders)
	assert.Equal(t, 2, st.HealthyProviders)
	assert.Equal(t, sr.StatusHealthy, st.Health["alpha"].Status)
}

// Test 16: fatal errors abort the walk instead of falling back.
func TestFatalError_AbortsWalk(t *testing.T) {
	a := mock.New(mock.WithName("alpha"), mock.WithError(sr.ErrAuthFailed))
	b := mock.New(mock.WithName("beta"))

	cfg := sr.Config{
		Policy: sr.Policy{CostOptimization: true},
		Providers: map[string]sr.ProviderConfig{
			"alpha": providerConfig(0.000001),
			"beta":  providerConfig(0.00005),
		},
	}

	r := newTestRouter(t, cfg, []sr.Provider{a, b})

	_, err := r.Synthesize(context.Background(), sr.SynthesisRequest{Text: "hello"}, nil)
	assert.ErrorIs(t, err, sr.ErrAuthFailed)

	var re *sr.RouterError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "alpha", re.Provider)
	assert.Equal(t, int64(0), b.Calls())
}

// Test 17: runtime provider update re-validates before applying.
func TestUpdateProvider_Revalidates(t *testing.T) {
	a := mock.New(mock.WithName("alpha"))

	cfg := sr.Config{
		Providers: map[string]sr.ProviderConfig{"alpha": providerConfig(0.00003)},
	}

	r := newTestRouter(t, cfg, []sr.Provider{a})

	bad := providerConfig(-1)
	err := r.UpdateProvider("alpha", bad)
	var ce *sr.ConfigError
	require.True(t, errors.As(err, &ce))

	good := providerConfig(0.00001)
	require.NoError(t, r.UpdateProvider("alpha", good))
}
