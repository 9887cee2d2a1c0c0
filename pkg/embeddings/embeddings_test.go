package embeddings

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

func testConfig(baseURL string, dim int) config.EmbeddingsConfig {
	return config.EmbeddingsConfig{
		BaseURL:           baseURL,
		Model:             "bge-m3",
		Dimension:         dim,
		Timeout:           5 * time.Second,
		RequestsPerMinute: 6000,
	}
}

func TestNoopClient(t *testing.T) {
	c := NewNoopClient()

	vec, err := c.EmbedQuery(context.Background(), "anything")
	require.NoError(t, err)
	assert.Nil(t, vec)

	vecs, err := c.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Nil(t, vecs)
	assert.Equal(t, 0, c.Dimension())
}

func TestHTTPClientEmbedDocuments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "bge-m3", req.Model)

		out := make([][]float32, len(req.Texts))
		for i := range req.Texts {
			out[i] = []float32{0.1, 0.2, 0.3}
		}
		json.NewEncoder(w).Encode(embedResponse{Embeddings: out})
	}))
	defer srv.Close()

	c := NewHTTPClient(testConfig(srv.URL, 3), slog.Default())

	vecs, err := c.EmbedDocuments(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vecs[0])
}

func TestHTTPClientDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.1, 0.2}}})
	}))
	defer srv.Close()

	c := NewHTTPClient(testConfig(srv.URL, 1024), slog.Default())

	_, err := c.EmbedQuery(context.Background(), "query")
	require.Error(t, err)

	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "dimension_mismatch", appErr.Code)
	assert.Equal(t, apperror.KindValidation, appErr.Kind)
	assert.False(t, apperror.IsRetryable(err))
}

func TestHTTPClientUpstreamErrors(t *testing.T) {
	t.Run("5xx is retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c := NewHTTPClient(testConfig(srv.URL, 3), slog.Default())
		_, err := c.EmbedQuery(context.Background(), "query")
		require.Error(t, err)
		assert.True(t, apperror.IsRetryable(err))
	})

	t.Run("4xx is not retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "text too long", http.StatusBadRequest)
		}))
		defer srv.Close()

		c := NewHTTPClient(testConfig(srv.URL, 3), slog.Default())
		_, err := c.EmbedQuery(context.Background(), "query")
		require.Error(t, err)
		assert.False(t, apperror.IsRetryable(err))
	})

	t.Run("count mismatch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(embedResponse{Embeddings: nil})
		}))
		defer srv.Close()

		c := NewHTTPClient(testConfig(srv.URL, 3), slog.Default())
		_, err := c.EmbedDocuments(context.Background(), []string{"a"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "count mismatch")
	})
}

func TestHTTPClientEmptyBatch(t *testing.T) {
	c := NewHTTPClient(testConfig("http://unused", 3), slog.Default())
	vecs, err := c.EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}
