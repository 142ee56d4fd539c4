// Package edge implements a speechrouter adapter for Microsoft Edge's free
// text-to-speech voices via the edge-tts-go library. The service needs no
// credentials, so the adapter serves as the always-available default
// provider.
package edge

import (
	"context"
	"fmt"

	"github.com/wujunwei928/edge-tts-go/edge_tts"

	"github.com/voicewing/speechrouter"
)

const defaultVoice = "en-US-AriaNeural"

// probeText is the minimal utterance used by HealthCheck; the service has no
// dedicated liveness endpoint for anonymous clients.
const probeText = "ok"

// Client implements speechrouter.Provider over the Edge speech service.
type Client struct {
	defaultVoice string
}

var _ speechrouter.Provider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithDefaultVoice sets the voice used when a request does not name one.
func WithDefaultVoice(v string) Option {
	return func(c *Client) { c.defaultVoice = v }
}

// New creates an Edge TTS adapter.
func New(opts ...Option) *Client {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return "edge" }

// Init applies config. No credentials are required.
func (c *Client) Init(cfg speechrouter.ProviderConfig) error {
	if cfg.DefaultVoice != "" {
		c.defaultVoice = cfg.DefaultVoice
	}
	return nil
}

// Synthesize runs one synthesis against the Edge speech service and returns
// MP3 audio.
func (c *Client) Synthesize(ctx context.Context, req speechrouter.ProviderRequest) (speechrouter.ProviderResponse, error) {
	if err := ctx.Err(); err != nil {
		return speechrouter.ProviderResponse{}, err
	}

	audio, err := c.synthesize(c.resolveVoice(req.Voice), req.Text)
	if err != nil {
		return speechrouter.ProviderResponse{}, err
	}
	return speechrouter.ProviderResponse{Audio: audio, Format: "mp3"}, nil
}

func (c *Client) synthesize(voice, text string) ([]byte, error) {
	conn, err := edge_tts.NewCommunicate(text, edge_tts.SetVoice(voice))
	if err != nil {
		return nil, fmt.Errorf("edge: %w: %v", speechrouter.ErrProviderUnavailable, err)
	}

	audio, err := conn.Stream()
	if err != nil {
		return nil, fmt.Errorf("edge: %w: %v", speechrouter.ErrProviderUnavailable, err)
	}
	return audio, nil
}

func (c *Client) resolveVoice(requested string) string {
	if requested != "" {
		return requested
	}
	if c.defaultVoice != "" {
		return c.defaultVoice
	}
	return defaultVoice
}

// curatedVoices is a fixed multilingual subset of the Edge neural catalog.
var curatedVoices = []speechrouter.Voice{
	{ID: "en-US-AriaNeural", Name: "Aria", Language: "en-US", Gender: "female"},
	{ID: "en-US-GuyNeural", Name: "Guy", Language: "en-US", Gender: "male"},
	{ID: "en-GB-SoniaNeural", Name: "Sonia", Language: "en-GB", Gender: "female"},
	{ID: "de-DE-KatjaNeural", Name: "Katja", Language: "de-DE", Gender: "female"},
	{ID: "fr-FR-DeniseNeural", Name: "Denise", Language: "fr-FR", Gender: "female"},
	{ID: "es-ES-ElviraNeural", Name: "Elvira", Language: "es-ES", Gender: "female"},
	{ID: "ja-JP-NanamiNeural", Name: "Nanami", Language: "ja-JP", Gender: "female"},
	{ID: "zh-CN-XiaoxiaoNeural", Name: "Xiaoxiao", Language: "zh-CN", Gender: "female"},
	{ID: "ru-RU-SvetlanaNeural", Name: "Svetlana", Language: "ru-RU", Gender: "female"},
}

// Voices returns the curated catalog.
func (c *Client) Voices(context.Context) ([]speechrouter.Voice, error) {
	out := make([]speechrouter.Voice, len(curatedVoices))
	copy(out, curatedVoices)
	return out, nil
}

// HealthCheck synthesizes a minimal utterance to verify the service is
// reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.synthesize(c.resolveVoice(""), probeText)
	return err
}
