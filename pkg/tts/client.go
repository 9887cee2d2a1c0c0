// Package tts provides the HTTP client for the text-to-speech renderer.
//
// The renderer accepts plain text and returns PCM WAV audio hex-encoded in
// JSON. Synthesis is cached server-side keyed by SHA-256(text|model|speed);
// CacheKey computes the same key so assets can be content-addressed before
// the call.
package tts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.uber.org/fx"

	"github.com/radioforge/radioforge/internal/config"
	"github.com/radioforge/radioforge/pkg/apperror"
	"github.com/radioforge/radioforge/pkg/logger"
	"github.com/radioforge/radioforge/pkg/radiometrics"
)

const (
	// MinTextLength and MaxTextLength bound what the renderer accepts.
	MinTextLength = 48
	MaxTextLength = 10000
)

// Module provides the TTS client as an fx module
var Module = fx.Module("tts",
	fx.Provide(NewClient),
)

// SynthesisResult is the renderer's response. Audio is PCM WAV.
type SynthesisResult struct {
	Audio       []byte  `json:"-"`
	DurationSec float64 `json:"duration_sec"`
	Model       string  `json:"model"`
	Cached      bool    `json:"cached"`
}

// Client is an HTTP client for the text-to-speech renderer
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	speed      float64
	useCache   bool
	enabled    bool
	log        *slog.Logger
}

// NewClient creates a new TTS client
func NewClient(cfg *config.Config, log *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.TTS.Timeout},
		baseURL:    cfg.TTS.BaseURL,
		model:      cfg.TTS.Model,
		speed:      cfg.TTS.Speed,
		useCache:   cfg.TTS.UseCache,
		enabled:    cfg.TTS.IsEnabled(),
		log:        log.With(logger.Scope("tts")),
	}
}

// IsEnabled returns true if a renderer backend is configured
func (c *Client) IsEnabled() bool {
	return c.enabled
}

// Model returns the configured voice model name.
func (c *Client) Model() string { return c.model }

// Speed returns the configured playback speed.
func (c *Client) Speed() float64 { return c.speed }

// CacheKey returns the deterministic synthesis cache key for a text under
// the client's model and speed settings.
func (c *Client) CacheKey(text string) string {
	return CacheKey(text, c.model, c.speed)
}

// CacheKey computes SHA-256(text|model|speed) hex-encoded.
func CacheKey(text, model string, speed float64) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%g", text, model, speed))
	return hex.EncodeToString(sum[:])
}

type synthesizeRequest struct {
	Text     string  `json:"text"`
	Model    string  `json:"model"`
	Speed    float64 `json:"speed"`
	UseCache bool    `json:"use_cache"`
}

type synthesizeResponse struct {
	AudioHex    string  `json:"audio_hex"`
	DurationSec float64 `json:"duration_sec"`
	Model       string  `json:"model"`
	Cached      bool    `json:"cached"`
}

// Synthesize renders text to audio. The endpoint is POST /synthesize.
func (c *Client) Synthesize(ctx context.Context, text string) (*SynthesisResult, error) {
	if !c.enabled {
		return nil, apperror.NewKind(http.StatusServiceUnavailable, "tts_not_configured",
			"no text-to-speech backend is configured", apperror.KindConfig)
	}
	if n := len(text); n < MinTextLength || n > MaxTextLength {
		return nil, apperror.ErrValidation.WithMessage(
			fmt.Sprintf("synthesis text length %d is outside [%d, %d]", n, MinTextLength, MaxTextLength))
	}

	body, err := json.Marshal(synthesizeRequest{
		Text:     text,
		Model:    c.model,
		Speed:    c.speed,
		UseCache: c.useCache,
	})
	if err != nil {
		return nil, apperror.ErrInternal.WithInternal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, apperror.ErrInternal.WithInternal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	radiometrics.AdapterLatency.WithLabelValues("tts").Observe(time.Since(started).Seconds())
	if err != nil {
		return nil, apperror.ErrUpstream.WithMessage("tts renderer unreachable").WithInternal(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.ErrUpstream.WithMessage("read tts response").WithInternal(err)
	}

	if resp.StatusCode >= 400 {
		excerpt := string(raw)
		if len(excerpt) > 200 {
			excerpt = excerpt[:200]
		}
		msg := fmt.Sprintf("tts renderer returned %d: %s", resp.StatusCode, excerpt)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, apperror.NewKind(resp.StatusCode, "synthesis_rejected", msg, apperror.KindValidation)
		}
		return nil, apperror.ErrUpstream.WithMessage(msg)
	}

	var parsed synthesizeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, apperror.ErrUpstream.WithMessage("malformed tts response").WithInternal(err)
	}
	if parsed.DurationSec <= 0 {
		return nil, apperror.ErrUpstream.WithMessage("tts renderer reported non-positive duration")
	}

	audio, err := hex.DecodeString(parsed.AudioHex)
	if err != nil {
		return nil, apperror.ErrUpstream.WithMessage("tts audio payload is not valid hex").WithInternal(err)
	}
	if len(audio) == 0 {
		return nil, apperror.ErrUpstream.WithMessage("tts renderer returned empty audio")
	}

	c.log.Info("synthesis completed",
		slog.Int("text_length", len(text)),
		slog.Float64("duration_sec", parsed.DurationSec),
		slog.Bool("cached", parsed.Cached),
		slog.Duration("took", time.Since(started)))

	return &SynthesisResult{
		Audio:       audio,
		DurationSec: parsed.DurationSec,
		Model:       parsed.Model,
		Cached:      parsed.Cached,
	}, nil
}
