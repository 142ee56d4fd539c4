package speechrouter

import "context"

// Provider is the interface that speech-synthesis adapters must implement.
type Provider interface {
	// Name returns the provider identifier (e.g. "elevenlabs", "openai", "edge").
	Name() string

	// Init validates the adapter's configuration (credentials, endpoint) and
	// prepares it for use. It must be idempotent.
	Init(cfg ProviderConfig) error

	// Synthesize performs a synchronous text-to-speech call.
	Synthesize(ctx context.Context, req ProviderRequest) (ProviderResponse, error)

	// Voices lists the voices the provider currently offers.
	Voices(ctx context.Context) ([]Voice, error)

	// HealthCheck probes the provider's liveness endpoint.
	HealthCheck(ctx context.Context) error
}

// Auth holds authentication credentials for a provider.
type Auth struct {
	APIKey string `yaml:"api_key" json:"api_key"`
}

// ProviderRequest is the request sent to a provider adapter.
type ProviderRequest struct {
	Auth     Auth
	Text     string
	Voice    string
	Language string
	Speed    float64
	Pitch    float64
}

// ProviderResponse is the response from a provider adapter.
type ProviderResponse struct {
	Audio        []byte
	AudioSeconds float64 // 0 when the provider does not report duration
	Format       string  // e.g. "mp3", "wav"
}

// Voice describes a single voice offered by a provider.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
	Gender   string `json:"gender,omitempty"`
}
