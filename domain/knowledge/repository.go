package knowledge

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
	"github.com/radioforge/radioforge/pkg/mathutil"
)

// Repository handles database operations for universe docs and events
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new knowledge repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("knowledge.repo")),
	}
}

// CreateDoc inserts a new universe doc
func (r *Repository) CreateDoc(ctx context.Context, doc *UniverseDoc) error {
	if _, err := r.db.NewInsert().Model(doc).Returning("*").Exec(ctx); err != nil {
		r.log.Error("failed to create universe doc", logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// GetDoc retrieves a universe doc by ID
func (r *Repository) GetDoc(ctx context.Context, id uuid.UUID) (*UniverseDoc, error) {
	doc := &UniverseDoc{}
	err := r.db.NewSelect().Model(doc).Where("ud.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("universe doc", id.String())
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return doc, nil
}

// ListDocs returns universe docs ordered by update time
func (r *Repository) ListDocs(ctx context.Context, status string, limit, offset int) ([]*UniverseDoc, int, error) {
	limit = mathutil.ClampLimit(limit, 50, 200)

	var docs []*UniverseDoc
	q := r.db.NewSelect().Model(&docs)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	total, err := q.Order("updated_at DESC").Limit(limit).Offset(offset).ScanAndCount(ctx)
	if err != nil {
		return nil, 0, apperror.ErrDatabase.WithInternal(err)
	}
	return docs, total, nil
}

// UpdateDoc persists changes to a universe doc
func (r *Repository) UpdateDoc(ctx context.Context, doc *UniverseDoc) error {
	doc.UpdatedAt = time.Now()
	res, err := r.db.NewUpdate().
		Model(doc).
		Column("title", "content", "status", "tags", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return apperror.NewNotFound("universe doc", doc.ID.String())
	}
	return nil
}

// DeleteDoc removes a universe doc and its chunks
func (r *Repository) DeleteDoc(ctx context.Context, id uuid.UUID) error {
	return r.deleteSource(ctx, (*UniverseDoc)(nil), id, "universe doc")
}

// CreateEvent inserts a new event
func (r *Repository) CreateEvent(ctx context.Context, ev *Event) error {
	if _, err := r.db.NewInsert().Model(ev).Returning("*").Exec(ctx); err != nil {
		r.log.Error("failed to create event", logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// GetEvent retrieves an event by ID
func (r *Repository) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	ev := &Event{}
	err := r.db.NewSelect().Model(ev).Where("ev.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("event", id.String())
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return ev, nil
}

// ListEvents returns events ordered by event time descending
func (r *Repository) ListEvents(ctx context.Context, limit, offset int) ([]*Event, int, error) {
	limit = mathutil.ClampLimit(limit, 50, 200)

	var events []*Event
	total, err := r.db.NewSelect().
		Model(&events).
		Order("event_time DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, apperror.ErrDatabase.WithInternal(err)
	}
	return events, total, nil
}

// UpdateEvent persists changes to an event
func (r *Repository) UpdateEvent(ctx context.Context, ev *Event) error {
	ev.UpdatedAt = time.Now()
	res, err := r.db.NewUpdate().
		Model(ev).
		Column("title", "content", "event_time", "importance", "tags", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return apperror.NewNotFound("event", ev.ID.String())
	}
	return nil
}

// DeleteEvent removes an event and its chunks
func (r *Repository) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	return r.deleteSource(ctx, (*Event)(nil), id, "event")
}

// deleteSource deletes the source row plus its chunks in one transaction.
// Embedding cache rows are left in place: they are keyed by content hash
// and harmless without chunks referencing them.
func (r *Repository) deleteSource(ctx context.Context, model any, id uuid.UUID, kind string) error {
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().Model(model).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return apperror.NewNotFound(kind, id.String())
		}

		if _, err := tx.NewRaw(
			"DELETE FROM radio.kb_chunks WHERE source_id = ?", id,
		).Exec(ctx); err != nil {
			return err
		}
		_, err = tx.NewRaw(
			"DELETE FROM radio.kb_index_status WHERE source_id = ?", id,
		).Exec(ctx)
		return err
	})
	if err != nil {
		var appErr *apperror.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}
