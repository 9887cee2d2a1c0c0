package indexer

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/radioforge/radioforge/domain/knowledge"
	"github.com/radioforge/radioforge/pkg/apperror"
	"github.com/radioforge/radioforge/pkg/logger"
)

// Repository handles database operations for the indexer
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new indexer repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("indexer.repo")),
	}
}

// LoadSource fetches the text of a universe doc or event. Unpublished
// docs return not-found so their chunks are swept on the next index run.
func (r *Repository) LoadSource(ctx context.Context, sourceID uuid.UUID, sourceType string) (*sourceText, error) {
	switch sourceType {
	case knowledge.SourceTypeUniverseDoc:
		doc := &knowledge.UniverseDoc{}
		err := r.db.NewSelect().Model(doc).
			Where("ud.id = ?", sourceID).
			Where("ud.status = ?", knowledge.DocStatusPublished).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NewNotFound("published universe doc", sourceID.String())
		}
		if err != nil {
			return nil, apperror.ErrDatabase.WithInternal(err)
		}
		return &sourceText{Title: doc.Title, Body: doc.Content, Language: doc.Language}, nil

	case knowledge.SourceTypeEvent:
		ev := &knowledge.Event{}
		err := r.db.NewSelect().Model(ev).Where("ev.id = ?", sourceID).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NewNotFound("event", sourceID.String())
		}
		if err != nil {
			return nil, apperror.ErrDatabase.WithInternal(err)
		}
		return &sourceText{Title: ev.Title, Body: ev.Content, Language: ev.Language}, nil

	default:
		return nil, apperror.ErrValidation.WithMessage("unknown source type: " + sourceType)
	}
}

// ExistingHashes returns the content hashes currently stored for a source.
func (r *Repository) ExistingHashes(ctx context.Context, sourceID uuid.UUID) (map[string]bool, error) {
	var hashes []string
	err := r.db.NewSelect().
		Model((*Chunk)(nil)).
		Column("content_hash").
		Where("source_id = ?", sourceID).
		Scan(ctx, &hashes)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	set := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		set[h] = true
	}
	return set, nil
}

// CachedHashes returns which of the given content hashes already have an
// embedding row.
func (r *Repository) CachedHashes(ctx context.Context, hashes []string) (map[string]bool, error) {
	if len(hashes) == 0 {
		return map[string]bool{}, nil
	}

	var found []string
	err := r.db.NewSelect().
		Model((*Embedding)(nil)).
		Column("content_hash").
		Where("content_hash IN (?)", bun.In(hashes)).
		Scan(ctx, &found)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	set := make(map[string]bool, len(found))
	for _, h := range found {
		set[h] = true
	}
	return set, nil
}

// InsertEmbeddings stores vectors with insert-if-absent semantics: a
// concurrent indexer computing the same hash is wasteful, never wrong.
func (r *Repository) InsertEmbeddings(ctx context.Context, embeddings []*Embedding) (int, error) {
	if len(embeddings) == 0 {
		return 0, nil
	}

	res, err := r.db.NewInsert().
		Model(&embeddings).
		On("CONFLICT (content_hash) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// SwapChunks atomically replaces a source's chunk set: stale rows (hashes
// absent from the new generation) are deleted, new rows inserted. Rows
// whose hash is unchanged stay untouched, so reindexing unchanged content
// writes nothing.
func (r *Repository) SwapChunks(ctx context.Context, sourceID uuid.UUID, newChunks []*Chunk, keepHashes []string) (inserted int, deleted int, err error) {
	err = r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		del := tx.NewDelete().
			Model((*Chunk)(nil)).
			Where("source_id = ?", sourceID)
		if len(keepHashes) > 0 {
			del = del.Where("content_hash NOT IN (?)", bun.In(keepHashes))
		}
		res, err := del.Exec(ctx)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		deleted = int(n)

		if len(newChunks) > 0 {
			if _, err := tx.NewInsert().Model(&newChunks).Exec(ctx); err != nil {
				return err
			}
			inserted = len(newChunks)
		}
		return nil
	})
	if err != nil {
		return 0, 0, apperror.ErrDatabase.WithInternal(err)
	}
	return inserted, deleted, nil
}

// GetChunk loads one chunk by id.
func (r *Repository) GetChunk(ctx context.Context, chunkID uuid.UUID) (*Chunk, error) {
	chunk := &Chunk{}
	err := r.db.NewSelect().Model(chunk).Where("c.id = ?", chunkID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("chunk", chunkID.String())
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return chunk, nil
}

// MarkProcessing upserts the index status row to processing.
func (r *Repository) MarkProcessing(ctx context.Context, sourceID uuid.UUID, sourceType string) error {
	status := &IndexStatus{
		SourceID:   sourceID,
		SourceType: sourceType,
		Status:     IndexStatusProcessing,
		UpdatedAt:  time.Now(),
	}
	_, err := r.db.NewInsert().
		Model(status).
		On("CONFLICT (source_id) DO UPDATE").
		Set("status = 'processing'").
		Set("last_error = NULL").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// MarkComplete records a successful index run with its counters.
func (r *Repository) MarkComplete(ctx context.Context, sourceID uuid.UUID, chunkCount, embeddedCount int) error {
	now := time.Now()
	_, err := r.db.NewUpdate().
		Model((*IndexStatus)(nil)).
		Set("status = 'complete'").
		Set("chunk_count = ?", chunkCount).
		Set("embedded_count = ?", embeddedCount).
		Set("last_indexed_at = ?", now).
		Set("last_error = NULL").
		Set("updated_at = ?", now).
		Where("source_id = ?", sourceID).
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// MarkFailed records a failed index run.
func (r *Repository) MarkFailed(ctx context.Context, sourceID uuid.UUID, msg string) error {
	_, err := r.db.NewUpdate().
		Model((*IndexStatus)(nil)).
		Set("status = 'failed'").
		Set("last_error = ?", msg).
		Set("updated_at = now()").
		Where("source_id = ?", sourceID).
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// GetStatus returns the index status for a source.
func (r *Repository) GetStatus(ctx context.Context, sourceID uuid.UUID) (*IndexStatus, error) {
	status := &IndexStatus{}
	err := r.db.NewSelect().Model(status).Where("ks.source_id = ?", sourceID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("index status", sourceID.String())
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return status, nil
}
