package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/radioforge/radioforge/internal/config"
	"github.com/radioforge/radioforge/pkg/apperror"
	"github.com/radioforge/radioforge/pkg/logger"
	"github.com/radioforge/radioforge/pkg/radiometrics"
)

// HTTPClient talks to the embedding sidecar over its JSON API.
// Endpoint: POST {base}/embed with {"texts": [...], "model": "..."};
// response: {"embeddings": [[...], ...]}.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
	dimension  int
	limiter    *rate.Limiter
	log        *slog.Logger
}

// NewHTTPClient creates a client for the embedding sidecar.
func NewHTTPClient(cfg config.EmbeddingsConfig, log *slog.Logger) *HTTPClient {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 300
	}

	return &HTTPClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		dimension:  cfg.Dimension,
		limiter:    rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm/10+1),
		log:        log.With(logger.Scope("embeddings")),
	}
}

// Dimension returns the configured vector width.
func (c *HTTPClient) Dimension() int {
	return c.dimension
}

// EmbedQuery generates an embedding for a single query string.
func (c *HTTPClient) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedDocuments generates embeddings for a batch of document texts.
func (c *HTTPClient) EmbedDocuments(ctx context.Context, documents []string) ([][]float32, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	return c.embed(ctx, documents)
}

type embedRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model,omitempty"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (c *HTTPClient) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperror.ErrUpstream.WithMessage("embedding rate limiter interrupted").WithInternal(err)
	}

	body, err := json.Marshal(embedRequest{Texts: texts, Model: c.model})
	if err != nil {
		return nil, apperror.ErrInternal.WithInternal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, apperror.ErrInternal.WithInternal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	radiometrics.AdapterLatency.WithLabelValues("embeddings").Observe(time.Since(started).Seconds())
	if err != nil {
		return nil, apperror.ErrUpstream.WithMessage("embedding sidecar unreachable").WithInternal(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.ErrUpstream.WithMessage("read embedding response").WithInternal(err)
	}

	if resp.StatusCode >= 400 {
		excerpt := string(raw)
		if len(excerpt) > 200 {
			excerpt = excerpt[:200]
		}
		appErr := apperror.ErrUpstream.WithMessage(
			fmt.Sprintf("embedding sidecar returned %d: %s", resp.StatusCode, excerpt))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			// Client errors will not heal on retry.
			return nil, apperror.NewKind(resp.StatusCode, "embedding_rejected", appErr.Message, apperror.KindValidation)
		}
		return nil, appErr
	}

	var parsed embedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, apperror.ErrUpstream.WithMessage("malformed embedding response").WithInternal(err)
	}

	if len(parsed.Embeddings) != len(texts) {
		return nil, apperror.ErrUpstream.WithMessage(
			fmt.Sprintf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(parsed.Embeddings)))
	}

	for i, vec := range parsed.Embeddings {
		if len(vec) != c.dimension {
			return nil, apperror.ErrDimensionMismatch.WithDetails(map[string]any{
				"index":    i,
				"expected": c.dimension,
				"actual":   len(vec),
			})
		}
	}

	c.log.Debug("embedded batch",
		slog.Int("texts", len(texts)),
		slog.Duration("duration", time.Since(started)))

	return parsed.Embeddings, nil
}
