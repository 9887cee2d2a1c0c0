package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radioforge/radioforge/internal/config"
	"github.com/radioforge/radioforge/pkg/apperror"
)

func testConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		BaseURL:           baseURL,
		Model:             "script-writer-large",
		Temperature:       0.8,
		Timeout:           5 * time.Second,
		RequestsPerMinute: 6000,
	}
}

func TestNoopClient(t *testing.T) {
	c := NewNoopClient()
	assert.False(t, c.IsEnabled())

	_, err := c.Complete(context.Background(), CompletionRequest{Prompt: "hello"})
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, apperror.IsRetryable(err))
}

func TestHTTPClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/complete", r.URL.Path)

		var req CompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// Defaults applied from config.
		assert.Equal(t, "script-writer-large", req.Model)
		assert.InDelta(t, 0.8, req.Temperature, 0.001)

		json.NewEncoder(w).Encode(CompletionResult{
			Text:         "Good evening, settlers of the Tharsis ridge.",
			Model:        req.Model,
			PromptTokens: 120,
			OutputTokens: 64,
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(testConfig(srv.URL), slog.Default())
	assert.True(t, c.IsEnabled())

	res, err := c.Complete(context.Background(), CompletionRequest{Prompt: "write an intro"})
	require.NoError(t, err)
	assert.Equal(t, "Good evening, settlers of the Tharsis ridge.", res.Text)
	assert.Equal(t, 64, res.OutputTokens)
}

func TestHTTPClientEmptyPrompt(t *testing.T) {
	c := NewHTTPClient(testConfig("http://unused"), slog.Default())
	_, err := c.Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)
	assert.False(t, apperror.IsRetryable(err))
}

func TestHTTPClientErrorClassification(t *testing.T) {
	t.Run("5xx retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "backend busy", http.StatusBadGateway)
		}))
		defer srv.Close()

		c := NewHTTPClient(testConfig(srv.URL), slog.Default())
		_, err := c.Complete(context.Background(), CompletionRequest{Prompt: "p"})
		require.Error(t, err)
		assert.True(t, apperror.IsRetryable(err))
	})

	t.Run("429 retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "slow down", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		c := NewHTTPClient(testConfig(srv.URL), slog.Default())
		_, err := c.Complete(context.Background(), CompletionRequest{Prompt: "p"})
		require.Error(t, err)
		assert.True(t, apperror.IsRetryable(err))
	})

	t.Run("4xx not retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "prompt rejected", http.StatusBadRequest)
		}))
		defer srv.Close()

		c := NewHTTPClient(testConfig(srv.URL), slog.Default())
		_, err := c.Complete(context.Background(), CompletionRequest{Prompt: "p"})
		require.Error(t, err)
		assert.False(t, apperror.IsRetryable(err))
	})

	t.Run("empty text is an upstream fault", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(CompletionResult{Text: ""})
		}))
		defer srv.Close()

		c := NewHTTPClient(testConfig(srv.URL), slog.Default())
		_, err := c.Complete(context.Background(), CompletionRequest{Prompt: "p"})
		require.Error(t, err)
		assert.True(t, apperror.IsRetryable(err))
	})
}
