package retrieval

import (
	"context"
	"log/slog"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/radioforge/radioforge/pkg/apperror"
	"github.com/radioforge/radioforge/pkg/logger"
)

// Repository runs the two candidate queries. Both return the same row shape
// so the service can fuse them by chunk id.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new retrieval repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("retrieval.repo")),
	}
}

const candidateColumns = `
	c.id AS chunk_id,
	c.source_id,
	c.source_type,
	c.chunk_index,
	c.chunk_text,
	c.created_at,
	COALESCE(ud.title, ev.title, '') AS title,
	COALESCE(ev.importance, 0) AS importance,
	ev.event_time`

const candidateJoins = `
	FROM radio.kb_chunks c
	LEFT JOIN radio.universe_docs ud ON c.source_type = 'universe_doc' AND ud.id = c.source_id
	LEFT JOIN radio.events ev ON c.source_type = 'event' AND ev.id = c.source_id`

// regconfigFor maps a query language code to the text search configuration
// used for stemming and ranking. Unknown codes fall back to english.
func regconfigFor(lang string) string {
	switch strings.ToLower(lang) {
	case "", "en", "english":
		return "english"
	case "no", "nb", "nn", "norwegian":
		return "norwegian"
	case "de", "german":
		return "german"
	case "fr", "french":
		return "french"
	case "es", "spanish":
		return "spanish"
	case "sv", "swedish":
		return "swedish"
	case "da", "danish":
		return "danish"
	default:
		return "english"
	}
}

// LexicalCandidates returns the best full-text matches with their raw
// ts_rank. The service normalizes ranks against the candidate maximum.
func (r *Repository) LexicalCandidates(ctx context.Context, text, lang string, filters Filters, limit int) ([]candidate, error) {
	config := regconfigFor(lang)
	query := `SELECT` + candidateColumns + `,
	0::float8 AS vector_score,
	ts_rank(c.tsv, plainto_tsquery(?::regconfig, ?)) AS lexical_rank` +
		candidateJoins + `
	WHERE c.tsv @@ plainto_tsquery(?::regconfig, ?)`
	args := []any{config, text, config, text}

	query, args = appendFilters(query, args, filters)
	query += `
	ORDER BY lexical_rank DESC, c.id ASC
	LIMIT ?`
	args = append(args, limit)

	var rows []candidate
	if err := r.db.NewRaw(query, args...).Scan(ctx, &rows); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return rows, nil
}

// VectorCandidates returns the nearest chunks by cosine distance against
// the already-embedded query vector (pgvector text format).
func (r *Repository) VectorCandidates(ctx context.Context, queryVector string, filters Filters, limit int) ([]candidate, error) {
	query := `SELECT` + candidateColumns + `,
	1 - (e.vector <=> ?::vector) AS vector_score,
	0::float8 AS lexical_rank` +
		candidateJoins + `
	JOIN radio.kb_embeddings e ON e.content_hash = c.content_hash
	WHERE true`
	args := []any{queryVector}

	query, args = appendFilters(query, args, filters)
	query += `
	ORDER BY e.vector <=> ?::vector ASC, c.id ASC
	LIMIT ?`
	args = append(args, queryVector, limit)

	var rows []candidate
	if err := r.db.NewRaw(query, args...).Scan(ctx, &rows); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return rows, nil
}

func appendFilters(query string, args []any, filters Filters) (string, []any) {
	if len(filters.SourceTypes) > 0 {
		query += `
	AND c.source_type IN (?)`
		args = append(args, bun.In(filters.SourceTypes))
	}
	if len(filters.Tags) > 0 {
		query += `
	AND (ud.tags && ? OR ev.tags && ?)`
		args = append(args, pgdialect.Array(filters.Tags), pgdialect.Array(filters.Tags))
	}
	return query, args
}
