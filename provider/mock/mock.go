package mock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voicewing/speechrouter"
)

// Provider is a mock speech-synthesis provider for testing.
type Provider struct {
	name         string
	latency      time.Duration
	failAfter    int
	callCount    atomic.Int64
	probeCount   atomic.Int64
	errMu        sync.Mutex
	staticErr    error
	probeErr     error
	audio        []byte
	audioSeconds float64
	voices       []speechrouter.Voice
	synthesizeFn func(speechrouter.ProviderRequest) (speechrouter.ProviderResponse, error)
}

var _ speechrouter.Provider = (*Provider)(nil)

// Option configures a mock Provider.
type Option func(*Provider)

// New creates a mock provider with the given options.
func New(opts ...Option) *Provider {
	p := &Provider{
		name:         "mock",
		audio:        []byte("mock-audio"),
		audioSeconds: 1.5,
		voices: []speechrouter.Voice{
			{ID: "mock-voice", Name: "Mock Voice", Language: "en"},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithName sets the provider name.
func WithName(name string) Option {
	return func(p *Provider) { p.name = name }
}

// WithLatency adds simulated latency to each call.
func WithLatency(d time.Duration) Option {
	return func(p *Provider) { p.latency = d }
}

// WithFailAfter makes the provider fail after N successful calls.
func WithFailAfter(n int) Option {
	return func(p *Provider) { p.failAfter = n }
}

// WithError makes every synthesis call return this error.
func WithError(err error) Option {
	return func(p *Provider) { p.staticErr = err }
}

// WithProbeError makes every health check return this error.
func WithProbeError(err error) Option {
	return func(p *Provider) { p.probeErr = err }
}

// WithAudio sets the audio payload and duration returned by the mock.
func WithAudio(audio []byte, seconds float64) Option {
	return func(p *Provider) {
		p.audio = audio
		p.audioSeconds = seconds
	}
}

// WithVoices sets the voice list.
func WithVoices(voices ...speechrouter.Voice) Option {
	return func(p *Provider) { p.voices = voices }
}

// WithSynthesizeFunc sets a custom synthesis function.
func WithSynthesizeFunc(fn func(speechrouter.ProviderRequest) (speechrouter.ProviderResponse, error)) Option {
	return func(p *Provider) { p.synthesizeFn = fn }
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Init(speechrouter.ProviderConfig) error { return nil }

func (p *Provider) Synthesize(ctx context.Context, req speechrouter.ProviderRequest) (speechrouter.ProviderResponse, error) {
	count := p.callCount.Add(1)

	if p.latency > 0 {
		select {
		case <-time.After(p.latency):
		case <-ctx.Done():
			return speechrouter.ProviderResponse{}, ctx.Err()
		}
	}

	p.errMu.Lock()
	staticErr := p.staticErr
	p.errMu.Unlock()
	if staticErr != nil {
		return speechrouter.ProviderResponse{}, staticErr
	}
	if p.failAfter > 0 && count > int64(p.failAfter) {
		return speechrouter.ProviderResponse{}, speechrouter.ErrProviderUnavailable
	}
	if p.synthesizeFn != nil {
		return p.synthesizeFn(req)
	}

	return speechrouter.ProviderResponse{
		Audio:        p.audio,
		AudioSeconds: p.audioSeconds,
		Format:       "mp3",
	}, nil
}

func (p *Provider) Voices(context.Context) ([]speechrouter.Voice, error) {
	return p.voices, nil
}

func (p *Provider) HealthCheck(context.Context) error {
	p.probeCount.Add(1)
	return p.probeErr
}

// Calls returns the number of synthesis calls made.
func (p *Provider) Calls() int64 { return p.callCount.Load() }

// Probes returns the number of health checks made.
func (p *Provider) Probes() int64 { return p.probeCount.Load() }

// SetError changes the synthesis error at runtime.
func (p *Provider) SetError(err error) {
	p.errMu.Lock()
	p.staticErr = err
	p.errMu.Unlock()
}
