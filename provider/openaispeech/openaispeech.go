// Package openaispeech implements a speechrouter adapter for the OpenAI
// audio/speech endpoint.
package openaispeech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/voicewing/speechrouter"
)

const defaultVoice = "alloy"

// Client implements speechrouter.Provider using the go-openai SDK.
type Client struct {
	mu           sync.RWMutex
	api          *openai.Client
	model        openai.SpeechModel
	baseURL      string
	defaultVoice string
}

var _ speechrouter.Provider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithModel sets the speech model (default tts-1).
func WithModel(m openai.SpeechModel) Option {
	return func(c *Client) { c.model = m }
}

// WithBaseURL overrides the API base URL (Azure-style gateways, tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// New creates an OpenAI speech adapter. The API client itself is built at
// Init, once credentials are known.
func New(opts ...Option) *Client {
	c := &Client{model: openai.TTSModel1}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return "openai" }

// Init builds the SDK client from the provider config.
func (c *Client) Init(cfg speechrouter.ProviderConfig) error {
	if cfg.Auth.APIKey == "" {
		return speechrouter.ErrAuthFailed
	}

	apiCfg := openai.DefaultConfig(cfg.Auth.APIKey)
	if cfg.Endpoint != "" {
		apiCfg.BaseURL = cfg.Endpoint
	} else if c.baseURL != "" {
		apiCfg.BaseURL = c.baseURL
	}

	c.mu.Lock()
	c.api = openai.NewClientWithConfig(apiCfg)
	c.defaultVoice = cfg.DefaultVoice
	c.mu.Unlock()
	return nil
}

// Synthesize calls the audio/speech endpoint and returns MP3 audio.
func (c *Client) Synthesize(ctx context.Context, req speechrouter.ProviderRequest) (speechrouter.ProviderResponse, error) {
	api, voice := c.apiAndVoice(req.Voice)
	if api == nil {
		return speechrouter.ProviderResponse{}, speechrouter.ErrNotInitialized
	}

	speechReq := openai.CreateSpeechRequest{
		Model: c.model,
		Input: req.Text,
		Voice: openai.SpeechVoice(voice),
	}
	if req.Speed > 0 {
		speechReq.Speed = req.Speed
	}

	raw, err := api.CreateSpeech(ctx, speechReq)
	if err != nil {
		return speechrouter.ProviderResponse{}, mapAPIError(err)
	}
	defer raw.Close()

	audio, err := io.ReadAll(raw)
	if err != nil {
		return speechrouter.ProviderResponse{}, fmt.Errorf("openaispeech: read audio: %w", err)
	}

	return speechrouter.ProviderResponse{Audio: audio, Format: "mp3"}, nil
}

// Voices returns the fixed OpenAI voice catalog; the API has no listing call.
func (c *Client) Voices(context.Context) ([]speechrouter.Voice, error) {
	names := []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}
	voices := make([]speechrouter.Voice, 0, len(names))
	for _, n := range names {
		voices = append(voices, speechrouter.Voice{ID: n, Name: n})
	}
	return voices, nil
}

// HealthCheck verifies API reachability via the models listing.
func (c *Client) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	api := c.api
	c.mu.RUnlock()
	if api == nil {
		return speechrouter.ErrNotInitialized
	}
	if _, err := api.ListModels(ctx); err != nil {
		return mapAPIError(err)
	}
	return nil
}

func (c *Client) apiAndVoice(requested string) (*openai.Client, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	voice := requested
	if voice == "" {
		voice = c.defaultVoice
	}
	if voice == "" {
		voice = defaultVoice
	}
	return c.api, voice
}

// mapAPIError translates SDK errors into the router's sentinel taxonomy so
// the dispatcher can decide between aborting and falling back.
func mapAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
			return fmt.Errorf("openaispeech: %w: %s", speechrouter.ErrAuthFailed, apiErr.Message)
		case apiErr.HTTPStatusCode == 429:
			return fmt.Errorf("openaispeech: %w: %s", speechrouter.ErrRateLimited, apiErr.Message)
		case apiErr.HTTPStatusCode >= 500:
			return fmt.Errorf("openaispeech: %w: %s", speechrouter.ErrProviderUnavailable, apiErr.Message)
		}
	}
	return fmt.Errorf("openaispeech: %w: %v", speechrouter.ErrProviderUnavailable, err)
}
