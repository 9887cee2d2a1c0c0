package indexer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/radioforge/radioforge/internal/jobs"
	"github.com/radioforge/radioforge/pkg/apperror"
	"github.com/radioforge/radioforge/pkg/logger"
)

// IndexHandler runs kb_index jobs: a full (re)index of one source.
type IndexHandler struct {
	service *Service
	log     *slog.Logger
}

// NewIndexHandler creates the kb_index job handler
func NewIndexHandler(service *Service, log *slog.Logger) *IndexHandler {
	return &IndexHandler{
		service: service,
		log:     log.With(logger.Scope("indexer.worker")),
	}
}

func (h *IndexHandler) Type() jobs.Type { return jobs.TypeKBIndex }

func (h *IndexHandler) Handle(ctx context.Context, job *jobs.Job) error {
	var payload jobs.KBIndexPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return apperror.ErrValidation.WithMessage("malformed kb_index payload").WithInternal(err)
	}

	result, err := h.service.IndexSource(ctx, payload.SourceID, payload.SourceType)
	if apperror.IsNotFound(err) {
		// Source deleted or unpublished between enqueue and run: sweep its
		// chunks and complete the job, nothing left to index.
		if _, _, serr := h.service.repo.SwapChunks(ctx, payload.SourceID, nil, nil); serr != nil {
			return serr
		}
		if merr := h.service.repo.MarkComplete(ctx, payload.SourceID, 0, 0); merr != nil {
			return merr
		}
		h.log.Info("source gone, chunks swept",
			slog.String("source_id", payload.SourceID.String()),
			slog.String("source_type", payload.SourceType))
		return nil
	}
	if err != nil {
		return err
	}

	if result.Unchanged {
		h.log.Debug("source unchanged, index is a no-op",
			slog.String("source_id", payload.SourceID.String()))
	}
	return nil
}

// EmbedHandler runs chunk_embed jobs: a targeted re-embed of one chunk.
type EmbedHandler struct {
	service *Service
	log     *slog.Logger
}

// NewEmbedHandler creates the chunk_embed job handler
func NewEmbedHandler(service *Service, log *slog.Logger) *EmbedHandler {
	return &EmbedHandler{
		service: service,
		log:     log.With(logger.Scope("indexer.worker")),
	}
}

func (h *EmbedHandler) Type() jobs.Type { return jobs.TypeChunkEmbed }

func (h *EmbedHandler) Handle(ctx context.Context, job *jobs.Job) error {
	var payload jobs.ChunkEmbedPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return apperror.ErrValidation.WithMessage("malformed chunk_embed payload").WithInternal(err)
	}

	err := h.service.EmbedChunk(ctx, payload.ChunkID)
	if apperror.IsNotFound(err) {
		// The chunk was replaced by a newer generation; nothing to repair.
		h.log.Debug("chunk gone, skipping re-embed", slog.String("chunk_id", payload.ChunkID.String()))
		return nil
	}
	return err
}
