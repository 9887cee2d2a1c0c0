// Package timesvc maps between real time and the station's future
// calendar, and watches NTP skew so operators notice a drifting clock
// before job timing does.
package timesvc

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/beevik/ntp"

	"github.com/radioforge/radioforge/internal/config"
	"github.com/radioforge/radioforge/pkg/logger"
	"github.com/radioforge/radioforge/pkg/radiometrics"
)

// Service is the time authority. Job scheduling always runs on real time;
// the future offset only shifts display and prompt context.
type Service struct {
	cfg config.TimeConfig
	log *slog.Logger

	mu       sync.RWMutex
	skew     time.Duration
	sampled  bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewService creates a new time service
func NewService(cfg config.TimeConfig, log *slog.Logger) *Service {
	if cfg.YearOffset == 0 {
		cfg.YearOffset = 500
	}
	if cfg.MaxSkew <= 0 {
		cfg.MaxSkew = 250 * time.Millisecond
	}
	return &Service{
		cfg:    cfg,
		log:    log.With(logger.Scope("timesvc")),
		stopCh: make(chan struct{}),
	}
}

// NowReal returns the current UTC instant.
func (s *Service) NowReal() time.Time {
	return time.Now().UTC()
}

// NowFuture returns the current instant shifted into the station calendar.
func (s *Service) NowFuture() time.Time {
	return s.ToFuture(s.NowReal())
}

// ToFuture shifts a real instant into the station calendar. The shift is
// calendar-based: Feb 29 normalizes to Mar 1 when the target year is not a
// leap year, so leap-day instants do not round-trip through FromFuture.
// That is acceptable here because the mapping only feeds display and
// prompt context; job timing always runs on real time.
func (s *Service) ToFuture(t time.Time) time.Time {
	return t.AddDate(s.cfg.YearOffset, 0, 0)
}

// FromFuture shifts a station-calendar instant back to real time, with the
// same leap-day normalization as ToFuture.
func (s *Service) FromFuture(t time.Time) time.Time {
	return t.AddDate(-s.cfg.YearOffset, 0, 0)
}

// YearOffset returns the configured calendar shift in years.
func (s *Service) YearOffset() int {
	return s.cfg.YearOffset
}

// SkewMS returns the last measured NTP offset in milliseconds.
func (s *Service) SkewMS() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return float64(s.skew) / float64(time.Millisecond)
}

// Healthy reports whether the clock is within the allowed skew. Before the
// first sample (or with sampling disabled) the clock is assumed healthy.
func (s *Service) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.sampled {
		return true
	}
	skew := s.skew
	if skew < 0 {
		skew = -skew
	}
	return skew <= s.cfg.MaxSkew
}

// Start launches the NTP sampling loop. A zero interval disables sampling.
func (s *Service) Start(ctx context.Context) error {
	if s.cfg.NTPInterval <= 0 || s.cfg.NTPServer == "" {
		s.log.Info("ntp sampling disabled")
		return nil
	}

	go s.sampleLoop()
	return nil
}

// Stop ends the sampling loop
func (s *Service) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	return nil
}

func (s *Service) sampleLoop() {
	// Sample once right away so /time reports a real value early.
	s.sample()

	ticker := time.NewTicker(s.cfg.NTPInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

func (s *Service) sample() {
	resp, err := ntp.Query(s.cfg.NTPServer)
	if err != nil {
		s.log.Warn("ntp query failed", slog.String("server", s.cfg.NTPServer), logger.Error(err))
		return
	}
	if err := resp.Validate(); err != nil {
		s.log.Warn("ntp response rejected", logger.Error(err))
		return
	}

	s.mu.Lock()
	s.skew = resp.ClockOffset
	s.sampled = true
	s.mu.Unlock()

	radiometrics.NTPSkew.Set(float64(resp.ClockOffset) / float64(time.Millisecond))

	if !s.Healthy() {
		s.log.Warn("clock skew above threshold",
			slog.Duration("skew", resp.ClockOffset),
			slog.Duration("max", s.cfg.MaxSkew))
	}
}
