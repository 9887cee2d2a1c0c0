package programming

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/radioforge/radioforge/pkg/apperror"
	"github.com/radioforge/radioforge/pkg/logger"
)

// Repository handles database operations for station configuration
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new programming repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("programming.repo")),
	}
}

// Voices

func (r *Repository) CreateVoice(ctx context.Context, voice *Voice) error {
	if _, err := r.db.NewInsert().Model(voice).Exec(ctx); err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

func (r *Repository) ListVoices(ctx context.Context) ([]*Voice, error) {
	var voices []*Voice
	if err := r.db.NewSelect().Model(&voices).Order("name ASC").Scan(ctx); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return voices, nil
}

func (r *Repository) GetVoice(ctx context.Context, id uuid.UUID) (*Voice, error) {
	voice := &Voice{}
	err := r.db.NewSelect().Model(voice).Where("v.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("voice", id.String())
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return voice, nil
}

// DJs

func (r *Repository) CreateDJ(ctx context.Context, dj *DJ) error {
	if _, err := r.db.NewInsert().Model(dj).Exec(ctx); err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

func (r *Repository) ListDJs(ctx context.Context) ([]*DJ, error) {
	var djs []*DJ
	if err := r.db.NewSelect().Model(&djs).Order("name ASC").Scan(ctx); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return djs, nil
}

func (r *Repository) GetDJ(ctx context.Context, id uuid.UUID) (*DJ, error) {
	dj := &DJ{}
	err := r.db.NewSelect().Model(dj).Where("dj.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("dj", id.String())
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return dj, nil
}

// Format clocks

// CreateClock inserts the clock and its slots in one transaction.
func (r *Repository) CreateClock(ctx context.Context, clock *FormatClock) error {
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(clock).Exec(ctx); err != nil {
			return err
		}
		for _, slot := range clock.Slots {
			slot.ClockID = clock.ID
		}
		if len(clock.Slots) > 0 {
			if _, err := tx.NewInsert().Model(&clock.Slots).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// GetClock loads a clock with its slots ordered by position.
func (r *Repository) GetClock(ctx context.Context, id uuid.UUID) (*FormatClock, error) {
	clock := &FormatClock{}
	err := r.db.NewSelect().Model(clock).
		Relation("Slots", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("order_index ASC")
		}).
		Where("fc.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("format clock", id.String())
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return clock, nil
}

func (r *Repository) ListClocks(ctx context.Context) ([]*FormatClock, error) {
	var clocks []*FormatClock
	err := r.db.NewSelect().Model(&clocks).
		Relation("Slots", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("order_index ASC")
		}).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return clocks, nil
}

// Programs

// CreateProgram inserts the program and its DJ lineup in one transaction.
func (r *Repository) CreateProgram(ctx context.Context, program *Program, djIDs []uuid.UUID) error {
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(program).Exec(ctx); err != nil {
			return err
		}
		links := make([]*ProgramDJ, len(djIDs))
		for i, djID := range djIDs {
			links[i] = &ProgramDJ{ProgramID: program.ID, DJID: djID, Position: i}
		}
		if len(links) > 0 {
			if _, err := tx.NewInsert().Model(&links).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// GetProgram loads a program with its clock, slots and ordered DJ lineup.
func (r *Repository) GetProgram(ctx context.Context, id uuid.UUID) (*Program, error) {
	program := &Program{}
	err := r.db.NewSelect().Model(program).
		Relation("Clock").
		Relation("Clock.Slots", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("order_index ASC")
		}).
		Where("p.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("program", id.String())
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	djs, err := r.programDJs(ctx, id)
	if err != nil {
		return nil, err
	}
	program.DJs = djs
	return program, nil
}

func (r *Repository) ListPrograms(ctx context.Context, activeOnly bool) ([]*Program, error) {
	var programs []*Program
	q := r.db.NewSelect().Model(&programs).Order("name ASC")
	if activeOnly {
		q = q.Where("p.active")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return programs, nil
}

// SetProgramActive flips the active flag.
func (r *Repository) SetProgramActive(ctx context.Context, id uuid.UUID, active bool) error {
	res, err := r.db.NewUpdate().
		Model((*Program)(nil)).
		Set("active = ?", active).
		Set("updated_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NewNotFound("program", id.String())
	}
	return nil
}

// programDJs returns the lineup ordered by position.
func (r *Repository) programDJs(ctx context.Context, programID uuid.UUID) ([]*DJ, error) {
	var djs []*DJ
	err := r.db.NewSelect().Model(&djs).
		Join("JOIN radio.program_djs pd ON pd.dj_id = dj.id").
		Where("pd.program_id = ?", programID).
		Order("pd.position ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return djs, nil
}

// Broadcast schedule

func (r *Repository) CreateScheduleEntry(ctx context.Context, entry *ScheduleEntry) error {
	if _, err := r.db.NewInsert().Model(entry).Exec(ctx); err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

func (r *Repository) ListScheduleEntries(ctx context.Context, activeOnly bool) ([]*ScheduleEntry, error) {
	var entries []*ScheduleEntry
	q := r.db.NewSelect().Model(&entries).
		Order("day_of_week ASC NULLS FIRST", "start_time ASC", "priority DESC")
	if activeOnly {
		q = q.Where("bs.active")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return entries, nil
}

// SetScheduleEntryActive flips the active flag; the scheduler's next sweep
// cancels future segments of deactivated entries.
func (r *Repository) SetScheduleEntryActive(ctx context.Context, id uuid.UUID, active bool) error {
	res, err := r.db.NewUpdate().
		Model((*ScheduleEntry)(nil)).
		Set("active = ?", active).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NewNotFound("schedule entry", id.String())
	}
	return nil
}
