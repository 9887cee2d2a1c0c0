package jobs

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateError(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want string
	}{
		{"short message", "short error", "short error"},
		{"exactly 500 characters", strings.Repeat("a", 500), strings.Repeat("a", 500)},
		{"501 characters truncated to 500", strings.Repeat("a", 501), strings.Repeat("a", 500)},
		{"empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateError(tt.msg)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), 500)
		})
	}
}

func TestDefaultQueueConfig(t *testing.T) {
	config := DefaultQueueConfig()

	assert.Equal(t, 30, config.BaseRetryDelaySec)
	assert.Equal(t, 3600, config.MaxRetryDelaySec)
	assert.Equal(t, 5, config.DefaultMaxAttempts)
	assert.Equal(t, 24*time.Hour, config.IdempotencyWindow)
}

func TestBackoffDelayDoubling(t *testing.T) {
	// jitter neutral at rnd=0.5
	tests := []struct {
		attempts int
		wantSec  float64
	}{
		{1, 30},
		{2, 60},
		{3, 120},
		{4, 240},
		{10, 3600}, // capped
	}

	for _, tt := range tests {
		got := BackoffDelay(30, 3600, tt.attempts, 0.5)
		assert.InDelta(t, tt.wantSec, got.Seconds(), 0.001, "attempts=%d", tt.attempts)
	}
}

func TestBackoffDelayJitterBounds(t *testing.T) {
	// With 30s base at attempt 1, jitter must stay within ±20%.
	low := BackoffDelay(30, 3600, 1, 0.0)
	high := BackoffDelay(30, 3600, 1, 0.999999)

	assert.InDelta(t, 24.0, low.Seconds(), 0.001)
	assert.Less(t, high.Seconds(), 36.0)
	assert.Greater(t, high.Seconds(), 35.9)
}

func TestBackoffDelayZeroAttemptsTreatedAsFirst(t *testing.T) {
	assert.Equal(t, BackoffDelay(30, 3600, 1, 0.5), BackoffDelay(30, 3600, 0, 0.5))
}

func TestJobTypeConstants(t *testing.T) {
	assert.Equal(t, Type("kb_index"), TypeKBIndex)
	assert.Equal(t, Type("chunk_embed"), TypeChunkEmbed)
	assert.Equal(t, Type("segment_make"), TypeSegmentMake)
	assert.Equal(t, Type("segment_render"), TypeSegmentRender)
	assert.Equal(t, Type("segment_master"), TypeSegmentMaster)
	assert.Equal(t, Type("schedule_hour"), TypeScheduleHour)
}

func TestJobStatusConstants(t *testing.T) {
	assert.Equal(t, Status("pending"), StatusPending)
	assert.Equal(t, Status("processing"), StatusProcessing)
	assert.Equal(t, Status("completed"), StatusCompleted)
	assert.Equal(t, Status("failed"), StatusFailed)
}

func TestPayloadRoundTrips(t *testing.T) {
	segID := uuid.New()

	t.Run("segment payload", func(t *testing.T) {
		raw, err := json.Marshal(SegmentPayload{SegmentID: segID})
		require.NoError(t, err)
		assert.JSONEq(t, `{"segment_id":"`+segID.String()+`"}`, string(raw))
	})

	t.Run("kb index payload", func(t *testing.T) {
		srcID := uuid.New()
		raw, err := json.Marshal(KBIndexPayload{SourceID: srcID, SourceType: "universe_doc"})
		require.NoError(t, err)

		var got KBIndexPayload
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, srcID, got.SourceID)
		assert.Equal(t, "universe_doc", got.SourceType)
	})
}

func TestClaimQueryRefusesExhaustedAttempts(t *testing.T) {
	// The lease sweep re-pends crashed jobs with their attempt count intact.
	// Claiming must stop once the budget is spent, or a crash-looping job
	// runs forever.
	assert.Contains(t, claimQuery, "attempts < max_attempts")
	assert.Contains(t, claimQuery, "FOR UPDATE SKIP LOCKED")
	assert.Contains(t, claimQuery, "ORDER BY priority DESC, scheduled_for ASC, created_at ASC")
}

func TestSweepExhaustedDeadLettersInOneStatement(t *testing.T) {
	// Exhausted re-pended jobs go to the DLQ and out of pending atomically.
	assert.Contains(t, sweepExhaustedQuery, "attempts >= max_attempts")
	assert.Contains(t, sweepExhaustedQuery, "status = 'pending'")
	assert.Contains(t, sweepExhaustedQuery, "INSERT INTO radio.dead_letter_queue")
	assert.Contains(t, sweepExhaustedQuery, "status = 'failed'")
}

func TestIsIdempotencyConflict(t *testing.T) {
	uniqueErr := errors.New(`ERROR: duplicate key value violates unique constraint "jobs_idempotency_key_idx" (SQLSTATE 23505)`)

	// Losing the insert race on a keyed enqueue resolves to the existing
	// job instead of surfacing an error.
	assert.True(t, isIdempotencyConflict(uniqueErr, "segment_make:abc"))

	// Without a key the same violation is a real database error.
	assert.False(t, isIdempotencyConflict(uniqueErr, ""))
	assert.False(t, isIdempotencyConflict(errors.New("connection refused"), "segment_make:abc"))
	assert.False(t, isIdempotencyConflict(nil, "segment_make:abc"))
}

func TestPgStringArray(t *testing.T) {
	assert.Equal(t, "{}", pgStringArray(nil))
	assert.Equal(t, "{segment_make}", pgStringArray([]string{"segment_make"}))
	assert.Equal(t, "{kb_index,chunk_embed}", pgStringArray([]string{"kb_index", "chunk_embed"}))
}
