package segments

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/radioforge/radioforge/pkg/apperror"
	"github.com/radioforge/radioforge/pkg/logger"
)

// Repository handles database operations for segments
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new segments repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("segments.repo")),
	}
}

// Insert creates a segment if its idempotency key is new. Returns false
// when the key already exists (the scheduler re-materializing an hour).
func (r *Repository) Insert(ctx context.Context, segment *Segment) (bool, error) {
	res, err := r.db.NewInsert().
		Model(segment).
		On("CONFLICT (idempotency_key) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// Get loads one segment.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Segment, error) {
	segment := &Segment{}
	err := r.db.NewSelect().Model(segment).Where("s.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("segment", id.String())
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return segment, nil
}

// mutation is applied to the transition's UPDATE before it runs.
type mutation func(q *bun.UpdateQuery) *bun.UpdateQuery

// transition advances a segment under optimistic concurrency: the UPDATE
// only matches if the row still carries the state and updated_at the caller
// read. Zero rows means another worker won; the caller aborts without side
// effects. The transition log row is written in the same transaction.
func (r *Repository) transition(ctx context.Context, seg *Segment, to State, actor string, note *string, mutations ...mutation) (*Segment, error) {
	now := time.Now()
	var updated Segment

	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewUpdate().
			Model((*Segment)(nil)).
			Set("state = ?", to).
			Set("updated_at = ?", now).
			Where("id = ?", seg.ID).
			Where("state = ?", seg.State).
			Where("updated_at = ?", seg.UpdatedAt)
		for _, m := range mutations {
			q = m(q)
		}
		res, err := q.Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperror.ErrStateConflict.WithDetails(map[string]any{
				"segment_id": seg.ID.String(),
				"from":       string(seg.State),
				"to":         string(to),
			})
		}

		record := &Transition{
			ID:        uuid.New(),
			SegmentID: seg.ID,
			FromState: seg.State,
			ToState:   to,
			Actor:     actor,
			Note:      note,
			CreatedAt: now,
		}
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return err
		}

		return tx.NewSelect().Model(&updated).Where("s.id = ?", seg.ID).Scan(ctx)
	})
	if err != nil {
		var appErr *apperror.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &updated, nil
}

// IncrementRetry bumps retry_count without changing state, still under the
// optimistic concurrency check.
func (r *Repository) IncrementRetry(ctx context.Context, seg *Segment) (*Segment, error) {
	now := time.Now()
	res, err := r.db.NewUpdate().
		Model((*Segment)(nil)).
		Set("retry_count = retry_count + 1").
		Set("updated_at = ?", now).
		Where("id = ?", seg.ID).
		Where("state = ?", seg.State).
		Where("updated_at = ?", seg.UpdatedAt).
		Exec(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperror.ErrStateConflict
	}
	return r.Get(ctx, seg.ID)
}

// ListByState returns segments in a state ordered by scheduled start.
func (r *Repository) ListByState(ctx context.Context, state State, limit int) ([]*Segment, error) {
	var list []*Segment
	err := r.db.NewSelect().Model(&list).
		Where("s.state = ?", state).
		Order("scheduled_start_ts ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return list, nil
}

// ListForProgram returns a program's segments in a time window.
func (r *Repository) ListForProgram(ctx context.Context, programID uuid.UUID, from, to time.Time) ([]*Segment, error) {
	var list []*Segment
	err := r.db.NewSelect().Model(&list).
		Where("s.program_id = ?", programID).
		Where("s.scheduled_start_ts >= ?", from).
		Where("s.scheduled_start_ts < ?", to).
		Order("scheduled_start_ts ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return list, nil
}

// Transitions returns the audit log for one segment, oldest first.
func (r *Repository) Transitions(ctx context.Context, segmentID uuid.UUID) ([]*Transition, error) {
	var list []*Transition
	err := r.db.NewSelect().Model(&list).
		Where("st.segment_id = ?", segmentID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return list, nil
}

// PlayoutFeed returns ready segments with their audio, ordered by start.
func (r *Repository) PlayoutFeed(ctx context.Context, from, to time.Time) ([]PlayoutItem, error) {
	var items []PlayoutItem
	err := r.db.NewRaw(`
		SELECT s.id AS segment_id, s.program_id, s.slot_type,
		       s.scheduled_start_ts, s.asset_id, a.duration_sec
		FROM radio.segments s
		JOIN radio.assets a ON a.id = s.asset_id
		WHERE s.state = 'ready'
		  AND s.scheduled_start_ts >= ?
		  AND s.scheduled_start_ts < ?
		ORDER BY s.scheduled_start_ts ASC`, from, to).
		Scan(ctx, &items)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return items, nil
}

// CancellableForPrograms returns future segments of the given programs that
// have not reached rendering yet.
func (r *Repository) CancellableForPrograms(ctx context.Context, programIDs []uuid.UUID, after time.Time) ([]*Segment, error) {
	if len(programIDs) == 0 {
		return nil, nil
	}
	var list []*Segment
	err := r.db.NewSelect().Model(&list).
		Where("s.program_id IN (?)", bun.In(programIDs)).
		Where("s.scheduled_start_ts > ?", after).
		Where("s.state IN (?)", bun.In([]State{StateQueued, StateRetrieving, StateGenerating})).
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return list, nil
}
