// Package elevenlabs implements a speechrouter adapter for the ElevenLabs
// text-to-speech API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voicewing/speechrouter"
)

const defaultBaseURL = "https://api.elevenlabs.io"

// defaultVoiceID is Rachel, the stock English voice.
const defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"

const defaultModelID = "eleven_multilingual_v2"

// Client implements speechrouter.Provider against the ElevenLabs API.
type Client struct {
	baseURL       string
	modelID       string
	httpClient    *http.Client
	apiKey        string
	retryAttempts int
	defaultVoice  string
}

var _ speechrouter.Provider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (useful for tests and proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithModelID sets the synthesis model, e.g. "eleven_flash_v2_5" for low
// latency.
func WithModelID(id string) Option {
	return func(c *Client) { c.modelID = id }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates an ElevenLabs adapter.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		modelID:    defaultModelID,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return "elevenlabs" }

// Init captures per-provider settings. The configured key authenticates
// voice listing and health probes; synthesis prefers the key carried on each
// request.
func (c *Client) Init(cfg speechrouter.ProviderConfig) error {
	if cfg.Auth.APIKey == "" {
		return speechrouter.ErrAuthFailed
	}
	if cfg.Endpoint != "" {
		c.baseURL = cfg.Endpoint
	}
	c.apiKey = cfg.Auth.APIKey
	c.retryAttempts = cfg.RetryAttempts
	c.defaultVoice = cfg.DefaultVoice
	return nil
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	LanguageCode  string        `json:"language_code,omitempty"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

type errorResponse struct {
	Detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"detail"`
}

// Synthesize calls POST /v1/text-to-speech/{voice} and returns MP3 audio.
// Transient network errors are retried up to the configured attempt count.
func (c *Client) Synthesize(ctx context.Context, req speechrouter.ProviderRequest) (speechrouter.ProviderResponse, error) {
	voice := req.Voice
	if voice == "" {
		voice = c.defaultVoice
	}
	if voice == "" {
		voice = defaultVoiceID
	}
	apiKey := req.Auth.APIKey
	if apiKey == "" {
		apiKey = c.apiKey
	}

	body := synthesisRequest{
		Text:    req.Text,
		ModelID: c.modelID,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Speed:           req.Speed,
		},
	}
	if req.Language != "" {
		body.LanguageCode = req.Language
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return speechrouter.ProviderResponse{}, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, voice)

	var lastErr error
	for attempt := 0; attempt <= c.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			case <-ctx.Done():
				return speechrouter.ProviderResponse{}, ctx.Err()
			}
		}

		audio, err := c.doSynthesize(ctx, url, apiKey, payload)
		if err == nil {
			return speechrouter.ProviderResponse{Audio: audio, Format: "mp3"}, nil
		}
		if !retryableTransport(err) {
			return speechrouter.ProviderResponse{}, err
		}
		lastErr = err
	}
	return speechrouter.ProviderResponse{}, lastErr
}

func (c *Client) doSynthesize(ctx context.Context, url, apiKey string, payload []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: %w: %v", speechrouter.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read audio: %w", err)
	}
	return audio, nil
}

func (c *Client) apiError(resp *http.Response) error {
	var apiErr errorResponse
	msg := ""
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil {
		msg = apiErr.Detail.Message
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("elevenlabs: %w: %s", speechrouter.ErrAuthFailed, msg)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("elevenlabs: %w: %s", speechrouter.ErrRateLimited, msg)
	case resp.StatusCode >= 500:
		return fmt.Errorf("elevenlabs: %w: status %d: %s", speechrouter.ErrProviderUnavailable, resp.StatusCode, msg)
	default:
		return fmt.Errorf("elevenlabs: unexpected status %d: %s", resp.StatusCode, msg)
	}
}

type voicesResponse struct {
	Voices []struct {
		VoiceID string            `json:"voice_id"`
		Name    string            `json:"name"`
		Labels  map[string]string `json:"labels"`
	} `json:"voices"`
}

// Voices lists the account's available voices.
func (c *Client) Voices(ctx context.Context) ([]speechrouter.Voice, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: %w: %v", speechrouter.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}

	var vr voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("elevenlabs: decode voices: %w", err)
	}

	voices := make([]speechrouter.Voice, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		voices = append(voices, speechrouter.Voice{
			ID:       v.VoiceID,
			Name:     v.Name,
			Language: v.Labels["language"],
			Gender:   v.Labels["gender"],
		})
	}
	return voices, nil
}

// HealthCheck probes the voices endpoint with the configured key.
func (c *Client) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/voices", nil)
	if err != nil {
		return fmt.Errorf("elevenlabs: create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("elevenlabs: %w: %v", speechrouter.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("elevenlabs: %w: status %d", speechrouter.ErrProviderUnavailable, resp.StatusCode)
	}
	return nil
}

// retryableTransport reports whether an error is worth a transport-level
// retry. Rate limits, auth and client errors are not.
func retryableTransport(err error) bool {
	return errors.Is(err, speechrouter.ErrProviderUnavailable)
}
