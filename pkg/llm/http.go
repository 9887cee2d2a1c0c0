package llm

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

// ErrNotConfigured is returned by Complete when no backend is configured.
var ErrNotConfigured = apperror.NewKind(
	http.StatusServiceUnavailable, "llm_not_configured",
	"no script generation backend is configured", apperror.KindConfig)

// HTTPClient talks to the completion backend.
// Endpoint: POST {base}/v1/complete.
type HTTPClient struct {
	httpClient  *http.Client
	baseURL     string
	model       string
	temperature float64
	limiter     *rate.Limiter
	log         *slog.Logger
}

// NewHTTPClient creates a client for the completion backend.
func NewHTTPClient(cfg config.LLMConfig, log *slog.Logger) *HTTPClient {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}

	return &HTTPClient{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		limiter:     rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm/10+1),
		log:         log.With(logger.Scope("llm")),
	}
}

func (c *HTTPClient) IsEnabled() bool { return true }

// Complete runs one completion call against the backend. Defaults for
// model and temperature come from config when the request leaves them zero.
func (c *HTTPClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	if req.Prompt == "" {
		return nil, apperror.ErrValidation.WithMessage("completion prompt is empty")
	}
	if req.Model == "" {
		req.Model = c.model
	}
	if req.Temperature == 0 {
		req.Temperature = c.temperature
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperror.ErrUpstream.WithMessage("completion rate limiter interrupted").WithInternal(err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, apperror.ErrInternal.WithInternal(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/complete", bytes.NewReader(body))
	if err != nil {
		return nil, apperror.ErrInternal.WithInternal(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	radiometrics.AdapterLatency.WithLabelValues("llm").Observe(time.Since(started).Seconds())
	if err != nil {
		return nil, apperror.ErrUpstream.WithMessage("completion backend unreachable").WithInternal(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.ErrUpstream.WithMessage("read completion response").WithInternal(err)
	}

	if resp.StatusCode >= 400 {
		excerpt := string(raw)
		if len(excerpt) > 200 {
			excerpt = excerpt[:200]
		}
		msg := fmt.Sprintf("completion backend returned %d: %s", resp.StatusCode, excerpt)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, apperror.NewKind(resp.StatusCode, "completion_rejected", msg, apperror.KindValidation)
		}
		return nil, apperror.ErrUpstream.WithMessage(msg)
	}

	var result CompletionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, apperror.ErrUpstream.WithMessage("malformed completion response").WithInternal(err)
	}
	if result.Text == "" {
		return nil, apperror.ErrUpstream.WithMessage("completion backend returned empty text")
	}

	c.log.Debug("completion finished",
		slog.String("model", result.Model),
		slog.Int("output_tokens", result.OutputTokens),
		slog.Duration("duration", time.Since(started)))

	return &result, nil
}
