package segments

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/radioforge/radioforge/pkg/apperror"
	"github.com/radioforge/radioforge/pkg/logger"
	"github.com/radioforge/radioforge/pkg/radiometrics"
)

// Service is the segment state machine. Every state change goes through
// Advance or Fail so the transition table, the audit log and the metrics
// stay consistent.
type Service struct {
	repo *Repository
	log  *slog.Logger
}

// NewService creates a new segments service
func NewService(repo *Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With(logger.Scope("segments.service")),
	}
}

// Create inserts a segment; duplicate idempotency keys are ignored and
// reported as created=false.
func (s *Service) Create(ctx context.Context, segment *Segment) (bool, error) {
	if segment.ID == uuid.Nil {
		segment.ID = uuid.New()
	}
	if segment.State == "" {
		segment.State = StateQueued
	}
	return s.repo.Insert(ctx, segment)
}

// Get loads one segment.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Segment, error) {
	return s.repo.Get(ctx, id)
}

// AdvanceOption attaches payload writes to a transition.
type AdvanceOption func(*advanceOpts)

type advanceOpts struct {
	note      *string
	mutations []mutation
}

// WithScript persists the script alongside the transition. The write is
// keyed by segment id, so re-running the same job overwrites with the same
// content instead of duplicating.
func WithScript(script string) AdvanceOption {
	return func(o *advanceOpts) {
		o.mutations = append(o.mutations, func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.Set("script_md = ?", script)
		})
	}
}

// WithCitations persists the full citation set. Citations are written once
// and never modified afterwards.
func WithCitations(citations []Citation) AdvanceOption {
	return func(o *advanceOpts) {
		o.mutations = append(o.mutations, func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.Set("citations = ?", citations)
		})
	}
}

// WithMetrics persists generation metrics.
func WithMetrics(m *GenerationMetrics) AdvanceOption {
	return func(o *advanceOpts) {
		o.mutations = append(o.mutations, func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.Set("generation_metrics = ?", m)
		})
	}
}

// WithAsset attaches the rendered audio asset and its measured duration.
func WithAsset(assetID uuid.UUID, durationSec float64) AdvanceOption {
	return func(o *advanceOpts) {
		o.mutations = append(o.mutations, func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.Set("asset_id = ?", assetID).Set("duration_sec = ?", durationSec)
		})
	}
}

// WithCacheKey records the TTS cache key used for the render.
func WithCacheKey(key string) AdvanceOption {
	return func(o *advanceOpts) {
		o.mutations = append(o.mutations, func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.Set("cache_key = ?", key)
		})
	}
}

// WithAiredAt stamps the air time.
func WithAiredAt(t time.Time) AdvanceOption {
	return func(o *advanceOpts) {
		o.mutations = append(o.mutations, func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.Set("aired_at = ?", t)
		})
	}
}

// WithNote attaches a note to the transition log row.
func WithNote(note string) AdvanceOption {
	return func(o *advanceOpts) { o.note = &note }
}

// Advance moves a segment to the next state. The caller passes the segment
// as it last read it; a concurrent writer makes this fail with a state
// conflict and no side effects.
func (s *Service) Advance(ctx context.Context, seg *Segment, to State, actor string, opts ...AdvanceOption) (*Segment, error) {
	if !CanTransition(seg.State, to) {
		return nil, apperror.ErrStateConflict.WithMessage(
			"illegal transition " + string(seg.State) + " -> " + string(to))
	}

	var o advanceOpts
	for _, opt := range opts {
		opt(&o)
	}

	updated, err := s.repo.transition(ctx, seg, to, actor, o.note, o.mutations...)
	if err != nil {
		return nil, err
	}

	radiometrics.SegmentTransitions.WithLabelValues(string(seg.State), string(to)).Inc()
	s.log.Info("segment advanced",
		slog.String("segment_id", seg.ID.String()),
		slog.String("from", string(seg.State)),
		slog.String("to", string(to)),
		slog.String("actor", actor))
	return updated, nil
}

// Fail moves a segment to failed with a reason. Only generating, rendering
// and normalizing (and the pre-flight states) may fail.
func (s *Service) Fail(ctx context.Context, seg *Segment, reason, actor string, opts ...AdvanceOption) (*Segment, error) {
	opts = append(opts, func(o *advanceOpts) {
		o.mutations = append(o.mutations, func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.Set("last_error = ?", reason)
		})
	})

	updated, err := s.Advance(ctx, seg, StateFailed, actor, opts...)
	if err != nil {
		return nil, err
	}
	radiometrics.SegmentsFailed.WithLabelValues(reason).Inc()
	return updated, nil
}

// RetryOrFail handles a transient in-state failure: bump retry_count and
// keep going, or fail the segment once retries are exhausted. The second
// return value reports whether another attempt is allowed.
func (s *Service) RetryOrFail(ctx context.Context, seg *Segment, actor string) (*Segment, bool, error) {
	if seg.RetryCount+1 >= seg.MaxRetries {
		failed, err := s.Fail(ctx, seg, ReasonRetriesExhausted, actor)
		return failed, false, err
	}
	updated, err := s.repo.IncrementRetry(ctx, seg)
	if err != nil {
		return nil, false, err
	}
	return updated, true, nil
}

// Requeue is the operator path out of failed: back to queued with error
// and retry counters cleared.
func (s *Service) Requeue(ctx context.Context, id uuid.UUID, actor string) (*Segment, error) {
	seg, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if seg.State != StateFailed {
		return nil, apperror.ErrStateConflict.WithMessage("only failed segments can be requeued")
	}

	reset := func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("last_error = NULL").Set("retry_count = 0")
	}
	return s.Advance(ctx, seg, StateQueued, actor, func(o *advanceOpts) {
		o.mutations = append(o.mutations, reset)
	})
}

// Transitions returns the audit log for a segment.
func (s *Service) Transitions(ctx context.Context, id uuid.UUID) ([]*Transition, error) {
	return s.repo.Transitions(ctx, id)
}

// PlayoutFeed returns ready segments in a window, ordered by start time.
func (s *Service) PlayoutFeed(ctx context.Context, from, to time.Time) ([]PlayoutItem, error) {
	return s.repo.PlayoutFeed(ctx, from, to)
}

// ListByState returns segments in a state, soonest first.
func (s *Service) ListByState(ctx context.Context, state State, limit int) ([]*Segment, error) {
	return s.repo.ListByState(ctx, state, limit)
}

// ListForProgram returns a program's segments in a window.
func (s *Service) ListForProgram(ctx context.Context, programID uuid.UUID, from, to time.Time) ([]*Segment, error) {
	return s.repo.ListForProgram(ctx, programID, from, to)
}

// ListCancellable returns the given programs' future segments that have
// not reached rendering yet, the pool a schedule change may cancel.
func (s *Service) ListCancellable(ctx context.Context, programIDs []uuid.UUID, after time.Time) ([]*Segment, error) {
	return s.repo.CancellableForPrograms(ctx, programIDs, after)
}

// CancelSegments fails the given segments with a schedule-cancelled reason.
// Used when the schedule entries that materialized them are deactivated.
func (s *Service) CancelSegments(ctx context.Context, segs []*Segment, actor string) ([]uuid.UUID, error) {
	var cancelled []uuid.UUID
	for _, seg := range segs {
		if _, err := s.Fail(ctx, seg, ReasonScheduleCancelled, actor); err != nil {
			// Lost the race to a worker mid-transition; that segment gets
			// caught by the next sweep.
			if apperror.KindOf(err) == apperror.KindConsistency {
				continue
			}
			return cancelled, err
		}
		cancelled = append(cancelled, seg.ID)
	}
	return cancelled, nil
}
