package worker

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radioforge/radioforge/internal/config"
	"github.com/radioforge/radioforge/internal/jobs"
)

func TestPoisonTrackerTripsAfterThreshold(t *testing.T) {
	p := newPoisonTracker(3, time.Minute)

	assert.False(t, p.recordFailure(jobs.TypeSegmentMake))
	assert.False(t, p.recordFailure(jobs.TypeSegmentMake))
	assert.False(t, p.paused(jobs.TypeSegmentMake))

	assert.True(t, p.recordFailure(jobs.TypeSegmentMake))
	assert.True(t, p.paused(jobs.TypeSegmentMake))

	// Other types are unaffected.
	assert.False(t, p.paused(jobs.TypeKBIndex))
}

func TestPoisonTrackerResetOnSuccess(t *testing.T) {
	p := newPoisonTracker(2, time.Minute)

	assert.False(t, p.recordFailure(jobs.TypeChunkEmbed))
	p.reset(jobs.TypeChunkEmbed)

	// Streak starts over after a success.
	assert.False(t, p.recordFailure(jobs.TypeChunkEmbed))
	assert.True(t, p.recordFailure(jobs.TypeChunkEmbed))
}

func TestPoisonTrackerCooldownExpires(t *testing.T) {
	p := newPoisonTracker(1, 10*time.Millisecond)

	assert.True(t, p.recordFailure(jobs.TypeSegmentRender))
	assert.True(t, p.paused(jobs.TypeSegmentRender))

	time.Sleep(20 * time.Millisecond)
	assert.False(t, p.paused(jobs.TypeSegmentRender))
}

func TestPoisonTrackerDefaults(t *testing.T) {
	p := newPoisonTracker(0, 0)
	assert.Equal(t, 5, p.threshold)
	assert.Equal(t, 5*time.Minute, p.cooldown)
}

func TestHandlerFunc(t *testing.T) {
	called := false
	h := HandlerFunc{
		JobType: jobs.TypeScheduleHour,
		Fn: func(ctx context.Context, job *jobs.Job) error {
			called = true
			return nil
		},
	}

	assert.Equal(t, jobs.TypeScheduleHour, h.Type())
	require.NoError(t, h.Handle(context.Background(), &jobs.Job{}))
	assert.True(t, called)
}

func TestRegisterDuplicatePanics(t *testing.T) {
	rt := &Runtime{handlers: make(map[jobs.Type]Handler)}
	h := HandlerFunc{JobType: jobs.TypeKBIndex, Fn: func(ctx context.Context, job *jobs.Job) error { return nil }}

	rt.Register(h)
	assert.Panics(t, func() { rt.Register(h) })
}

func TestClaimableTypesSkipsPaused(t *testing.T) {
	rt := &Runtime{
		handlers: make(map[jobs.Type]Handler),
		poison:   newPoisonTracker(1, time.Minute),
	}
	rt.Register(HandlerFunc{JobType: jobs.TypeKBIndex, Fn: func(ctx context.Context, job *jobs.Job) error { return nil }})
	rt.Register(HandlerFunc{JobType: jobs.TypeSegmentMake, Fn: func(ctx context.Context, job *jobs.Job) error { return nil }})

	assert.Len(t, rt.claimableTypes(), 2)

	rt.poison.recordFailure(jobs.TypeSegmentMake)
	types := rt.claimableTypes()
	require.Len(t, types, 1)
	assert.Equal(t, jobs.TypeKBIndex, types[0])
}

// drainingRuntime builds a runtime in the started state without launching
// any loops, so Stop's drain behavior can be observed directly.
func drainingRuntime(drain time.Duration) *Runtime {
	return &Runtime{
		config:    config.WorkerConfig{DrainTimeout: drain},
		log:       slog.Default(),
		running:   true,
		stopCh:    make(chan struct{}),
		abortCh:   make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func TestStopLetsInFlightHandlersFinish(t *testing.T) {
	rt := drainingRuntime(3 * time.Second)

	ctx, cancel := rt.handlerContext()
	defer cancel()

	errAtFinish := make(chan error, 1)
	rt.inflight.Add(1)
	go func() {
		defer rt.inflight.Done()
		time.Sleep(100 * time.Millisecond) // simulated handler work
		errAtFinish <- ctx.Err()
	}()

	started := time.Now()
	require.NoError(t, rt.Stop(context.Background()))

	// The handler ran to completion inside the drain window without ever
	// seeing a cancelled context, and Stop returned as soon as it finished.
	assert.NoError(t, <-errAtFinish)
	assert.Less(t, time.Since(started), time.Second)
}

func TestStopCancelsHandlersAfterDrainTimeout(t *testing.T) {
	rt := drainingRuntime(100 * time.Millisecond)

	ctx, cancel := rt.handlerContext()
	defer cancel()

	errSeen := make(chan error, 1)
	rt.inflight.Add(1)
	go func() {
		defer rt.inflight.Done()
		<-ctx.Done() // handler stuck until cancelled
		errSeen <- ctx.Err()
	}()

	started := time.Now()
	require.NoError(t, rt.Stop(context.Background()))

	assert.ErrorIs(t, <-errSeen, context.Canceled)
	// Cancellation arrived only after the full drain window elapsed.
	assert.GreaterOrEqual(t, time.Since(started), 100*time.Millisecond)
}

func TestRunHandlerRecoversPanic(t *testing.T) {
	rt := &Runtime{}
	h := HandlerFunc{
		JobType: jobs.TypeSegmentMake,
		Fn: func(ctx context.Context, job *jobs.Job) error {
			panic("bad payload")
		},
	}

	err := rt.runHandler(context.Background(), h, &jobs.Job{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler panicked")
}
