package tts

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radioforge/radioforge/internal/config"
	"github.com/radioforge/radioforge/pkg/apperror"
)

func newTestClient(baseURL string) *Client {
	cfg := &config.Config{}
	cfg.TTS = config.TTSConfig{
		BaseURL:  baseURL,
		Model:    "voicecraft-48k",
		Speed:    1.0,
		Timeout:  5 * time.Second,
		UseCache: true,
	}
	return NewClient(cfg, slog.Default())
}

func validText() string {
	return strings.Repeat("This is the evening news from the red planet. ", 4)
}

func TestCacheKeyDeterministic(t *testing.T) {
	a := CacheKey("hello world", "voicecraft-48k", 1.0)
	b := CacheKey("hello world", "voicecraft-48k", 1.0)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	// Any input change produces a different key.
	assert.NotEqual(t, a, CacheKey("hello world!", "voicecraft-48k", 1.0))
	assert.NotEqual(t, a, CacheKey("hello world", "other-model", 1.0))
	assert.NotEqual(t, a, CacheKey("hello world", "voicecraft-48k", 1.25))
}

func TestSynthesize(t *testing.T) {
	audio := []byte("RIFF....WAVEfmt ")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/synthesize", r.URL.Path)

		var req synthesizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "voicecraft-48k", req.Model)
		assert.True(t, req.UseCache)

		json.NewEncoder(w).Encode(synthesizeResponse{
			AudioHex:    hex.EncodeToString(audio),
			DurationSec: 42.5,
			Model:       req.Model,
			Cached:      false,
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	res, err := c.Synthesize(context.Background(), validText())
	require.NoError(t, err)
	assert.Equal(t, audio, res.Audio)
	assert.InDelta(t, 42.5, res.DurationSec, 0.001)
	assert.False(t, res.Cached)
}

func TestSynthesizeTextBounds(t *testing.T) {
	c := newTestClient("http://unused")

	_, err := c.Synthesize(context.Background(), "too short")
	require.Error(t, err)
	assert.False(t, apperror.IsRetryable(err))

	_, err = c.Synthesize(context.Background(), strings.Repeat("x", MaxTextLength+1))
	require.Error(t, err)
	assert.False(t, apperror.IsRetryable(err))
}

func TestSynthesizeDisabled(t *testing.T) {
	cfg := &config.Config{}
	c := NewClient(cfg, slog.Default())

	assert.False(t, c.IsEnabled())
	_, err := c.Synthesize(context.Background(), validText())
	require.Error(t, err)
	assert.False(t, apperror.IsRetryable(err))
}

func TestSynthesizeBadResponses(t *testing.T) {
	t.Run("non-positive duration", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(synthesizeResponse{AudioHex: "00", DurationSec: 0})
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).Synthesize(context.Background(), validText())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "non-positive duration")
	})

	t.Run("invalid hex", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(synthesizeResponse{AudioHex: "zz", DurationSec: 1})
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).Synthesize(context.Background(), validText())
		require.Error(t, err)
	})

	t.Run("5xx retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "renderer overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).Synthesize(context.Background(), validText())
		require.Error(t, err)
		assert.True(t, apperror.IsRetryable(err))
	})
}
