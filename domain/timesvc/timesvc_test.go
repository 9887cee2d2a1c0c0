package timesvc

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/radioforge/radioforge/internal/config"
)

func newTestService(yearOffset int, maxSkew time.Duration) *Service {
	return NewService(config.TimeConfig{
		YearOffset: yearOffset,
		MaxSkew:    maxSkew,
	}, slog.Default())
}

func TestFutureMappingRoundTrip(t *testing.T) {
	svc := newTestService(500, 250*time.Millisecond)

	real := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	future := svc.ToFuture(real)

	assert.Equal(t, 2526, future.Year())
	assert.Equal(t, real.Month(), future.Month())
	assert.Equal(t, real.Day(), future.Day())
	assert.Equal(t, real, svc.FromFuture(future))
}

func TestFutureMappingLeapDayNormalizes(t *testing.T) {
	svc := newTestService(500, 250*time.Millisecond)

	// 2000 is a leap year but 2500 is not, so Feb 29 normalizes to Mar 1
	// and the round trip lands a day off. Display-only behavior: scheduling
	// never goes through the future mapping.
	leapDay := time.Date(2000, 2, 29, 8, 30, 0, 0, time.UTC)
	future := svc.ToFuture(leapDay)

	assert.Equal(t, 2500, future.Year())
	assert.Equal(t, time.March, future.Month())
	assert.Equal(t, 1, future.Day())
	assert.Equal(t, time.Date(2000, 3, 1, 8, 30, 0, 0, time.UTC), svc.FromFuture(future))
}

func TestDefaultYearOffset(t *testing.T) {
	svc := newTestService(0, 0)
	assert.Equal(t, 500, svc.YearOffset())
}

func TestHealthyBeforeFirstSample(t *testing.T) {
	svc := newTestService(500, 250*time.Millisecond)
	assert.True(t, svc.Healthy())
	assert.Equal(t, 0.0, svc.SkewMS())
}

func TestHealthySkewThreshold(t *testing.T) {
	svc := newTestService(500, 250*time.Millisecond)

	svc.mu.Lock()
	svc.skew = 200 * time.Millisecond
	svc.sampled = true
	svc.mu.Unlock()
	assert.True(t, svc.Healthy())
	assert.Equal(t, 200.0, svc.SkewMS())

	// Skew is symmetric; a fast clock is as bad as a slow one.
	svc.mu.Lock()
	svc.skew = -300 * time.Millisecond
	svc.mu.Unlock()
	assert.False(t, svc.Healthy())
}

func TestNowFutureTracksNowReal(t *testing.T) {
	svc := newTestService(500, 250*time.Millisecond)
	diff := svc.NowFuture().Sub(svc.ToFuture(svc.NowReal()))
	assert.Less(t, diff.Abs(), time.Second)
}
