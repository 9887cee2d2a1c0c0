package indexer

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/radioforge/radioforge/pkg/apperror"
	"github.com/radioforge/radioforge/pkg/chunker"
	"github.com/radioforge/radioforge/pkg/embeddings"
	"github.com/radioforge/radioforge/pkg/logger"
	"github.com/radioforge/radioforge/pkg/pgutils"
)

// Service implements the indexing pipeline: chunk, embed through the
// content-hash cache, swap the chunk generation.
type Service struct {
	repo     *Repository
	embedder embeddings.Client
	splitter chunker.Config
	model    string
	log      *slog.Logger
}

// NewService creates a new indexer service
func NewService(repo *Repository, embedder embeddings.Client, model string, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		embedder: embedder,
		splitter: chunker.DefaultConfig(),
		model:    model,
		log:      log.With(logger.Scope("indexer.service")),
	}
}

// IndexResult summarizes one index run.
type IndexResult struct {
	SourceID          uuid.UUID
	ChunksCreated     int
	ChunksDeleted     int
	EmbeddingsCreated int
	Unchanged         bool
}

// IndexSource runs the full pipeline for one source. Re-running on
// unchanged content is a no-op after cache hits.
func (s *Service) IndexSource(ctx context.Context, sourceID uuid.UUID, sourceType string) (*IndexResult, error) {
	if err := s.repo.MarkProcessing(ctx, sourceID, sourceType); err != nil {
		return nil, err
	}

	result, err := s.indexSource(ctx, sourceID, sourceType)
	if err != nil {
		if !apperror.IsRetryable(err) {
			// Terminal failures are recorded on the status row; transient
			// ones leave it processing for the retry.
			if merr := s.repo.MarkFailed(ctx, sourceID, err.Error()); merr != nil {
				s.log.Warn("failed to record index failure", logger.Error(merr))
			}
		}
		return nil, err
	}
	return result, nil
}

func (s *Service) indexSource(ctx context.Context, sourceID uuid.UUID, sourceType string) (*IndexResult, error) {
	src, err := s.repo.LoadSource(ctx, sourceID, sourceType)
	if err != nil {
		return nil, err
	}

	pieces := chunker.Split(src.Title+"\n\n"+src.Body, s.splitter)

	existing, err := s.repo.ExistingHashes(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	newHashes := make(map[string]bool, len(pieces))
	for _, p := range pieces {
		newHashes[p.ContentHash] = true
	}

	embedded, err := s.ensureEmbeddings(ctx, pieces)
	if err != nil {
		return nil, err
	}

	if hashSetsEqual(existing, newHashes) {
		// Unchanged content: no chunk writes at all.
		if err := s.repo.MarkComplete(ctx, sourceID, len(existing), embedded.totalAvailable); err != nil {
			return nil, err
		}
		return &IndexResult{SourceID: sourceID, Unchanged: true, EmbeddingsCreated: embedded.created}, nil
	}

	// Changed content: replace the whole generation so chunk indices stay
	// consistent with the new split.
	rows := make([]*Chunk, len(pieces))
	for i, p := range pieces {
		rows[i] = &Chunk{
			ID:          uuid.New(),
			SourceID:    sourceID,
			SourceType:  sourceType,
			ChunkIndex:  p.Index,
			ChunkText:   p.Text,
			TokenCount:  p.TokenCount,
			Language:    src.Language,
			ContentHash: p.ContentHash,
		}
	}

	inserted, deleted, err := s.repo.SwapChunks(ctx, sourceID, rows, nil)
	if err != nil {
		return nil, err
	}

	if err := s.repo.MarkComplete(ctx, sourceID, inserted, embedded.totalAvailable); err != nil {
		return nil, err
	}

	s.log.Info("source indexed",
		slog.String("source_id", sourceID.String()),
		slog.String("source_type", sourceType),
		slog.Int("chunks", inserted),
		slog.Int("deleted", deleted),
		slog.Int("embeddings_created", embedded.created))

	return &IndexResult{
		SourceID:          sourceID,
		ChunksCreated:     inserted,
		ChunksDeleted:     deleted,
		EmbeddingsCreated: embedded.created,
	}, nil
}

type embedOutcome struct {
	created        int
	totalAvailable int
}

// ensureEmbeddings fills the content-hash cache for every chunk in the new
// generation. Cache hits cost one lookup; only misses reach the sidecar.
func (s *Service) ensureEmbeddings(ctx context.Context, pieces []chunker.Chunk) (*embedOutcome, error) {
	if s.embedder.Dimension() == 0 {
		// Embeddings disabled: retrieval runs lexical-only.
		return &embedOutcome{}, nil
	}

	hashes := make([]string, 0, len(pieces))
	textByHash := make(map[string]string, len(pieces))
	for _, p := range pieces {
		if _, seen := textByHash[p.ContentHash]; !seen {
			hashes = append(hashes, p.ContentHash)
			textByHash[p.ContentHash] = p.Text
		}
	}

	cached, err := s.repo.CachedHashes(ctx, hashes)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, h := range hashes {
		if !cached[h] {
			missing = append(missing, h)
		}
	}
	if len(missing) == 0 {
		return &embedOutcome{totalAvailable: len(hashes)}, nil
	}

	texts := make([]string, len(missing))
	for i, h := range missing {
		texts[i] = textByHash[h]
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, apperror.ErrUpstream.WithMessage("embedding batch returned wrong vector count")
	}

	rows := make([]*Embedding, len(missing))
	for i, h := range missing {
		rows[i] = &Embedding{
			ContentHash: h,
			Model:       s.model,
			Vector:      pgutils.FormatVector(vectors[i]),
		}
	}

	created, err := s.repo.InsertEmbeddings(ctx, rows)
	if err != nil {
		return nil, err
	}

	return &embedOutcome{created: created, totalAvailable: len(hashes)}, nil
}

// EmbedChunk re-embeds a single stored chunk (targeted repair path).
func (s *Service) EmbedChunk(ctx context.Context, chunkID uuid.UUID) error {
	if s.embedder.Dimension() == 0 {
		return nil
	}

	chunk, err := s.repo.GetChunk(ctx, chunkID)
	if err != nil {
		return err
	}

	vector, err := s.embedder.EmbedQuery(ctx, chunk.ChunkText)
	if err != nil {
		return err
	}

	_, err = s.repo.InsertEmbeddings(ctx, []*Embedding{{
		ContentHash: chunk.ContentHash,
		Model:       s.model,
		Vector:      pgutils.FormatVector(vector),
	}})
	return err
}

// Status returns the index status for a source.
func (s *Service) Status(ctx context.Context, sourceID uuid.UUID) (*IndexStatus, error) {
	return s.repo.GetStatus(ctx, sourceID)
}

func hashSetsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for h := range a {
		if !b[h] {
			return false
		}
	}
	return true
}
