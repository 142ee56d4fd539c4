package openaispeech_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sr "github.com/voicewing/speechrouter"
	"github.com/voicewing/speechrouter/provider/openaispeech"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesize_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/speech", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["input"])
		assert.Equal(t, "nova", body["voice"])

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	c := openaispeech.New()
	require.NoError(t, c.Init(sr.ProviderConfig{
		Auth:     sr.Auth{APIKey: "sk-test"},
		Endpoint: srv.URL,
	}))

	resp, err := c.Synthesize(context.Background(), sr.ProviderRequest{Text: "hello", Voice: "nova"})
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), resp.Audio)
	assert.Equal(t, "mp3", resp.Format)
}

func TestSynthesize_AuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := openaispeech.New()
	require.NoError(t, c.Init(sr.ProviderConfig{
		Auth:     sr.Auth{APIKey: "sk-bad"},
		Endpoint: srv.URL,
	}))

	_, err := c.Synthesize(context.Background(), sr.ProviderRequest{Text: "hello"})
	assert.ErrorIs(t, err, sr.ErrAuthFailed)
}

func TestSynthesize_BeforeInit(t *testing.T) {
	c := openaispeech.New()
	_, err := c.Synthesize(context.Background(), sr.ProviderRequest{Text: "hello"})
	assert.ErrorIs(t, err, sr.ErrNotInitialized)
}

func TestInit_RequiresAPIKey(t *testing.T) {
	c := openaispeech.New()
	assert.ErrorIs(t, c.Init(sr.ProviderConfig{}), sr.ErrAuthFailed)
}

func TestVoices_StaticCatalog(t *testing.T) {
	c := openaispeech.New()
	voices, err := c.Voices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 6)
	assert.Equal(t, "alloy", voices[0].ID)
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"tts-1","object":"model"}]}`))
	}))
	defer srv.Close()

	c := openaispeech.New()
	require.NoError(t, c.Init(sr.ProviderConfig{
		Auth:     sr.Auth{APIKey: "sk-test"},
		Endpoint: srv.URL,
	}))
	assert.NoError(t, c.HealthCheck(context.Background()))
}
