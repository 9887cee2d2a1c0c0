package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/radioforge/radioforge/internal/jobs"
	"github.com/radioforge/radioforge/pkg/apperror"
	"github.com/radioforge/radioforge/pkg/logger"
)

// Service implements knowledge base business logic: validation, CRUD and
// keeping the retrieval corpus in sync by enqueueing kb_index jobs.
type Service struct {
	repo  *Repository
	queue *jobs.Queue
	log   *slog.Logger
}

// NewService creates a new knowledge service
func NewService(repo *Repository, queue *jobs.Queue, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		queue: queue,
		log:   log.With(logger.Scope("knowledge.service")),
	}
}

// CreateDoc validates and stores a universe doc. Published docs are
// queued for indexing immediately.
func (s *Service) CreateDoc(ctx context.Context, req CreateDocRequest) (*UniverseDoc, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, apperror.ErrValidation.WithMessage("title is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperror.ErrValidation.WithMessage("content is required")
	}

	status := req.Status
	if status == "" {
		status = DocStatusDraft
	}
	if err := validateDocStatus(status); err != nil {
		return nil, err
	}

	doc := &UniverseDoc{
		ID:       uuid.New(),
		Title:    req.Title,
		Content:  req.Content,
		Status:   status,
		Language: defaultLang(req.Language),
		Tags:     normalizeTags(req.Tags),
	}
	if err := s.repo.CreateDoc(ctx, doc); err != nil {
		return nil, err
	}

	if doc.Status == DocStatusPublished {
		s.enqueueIndex(ctx, doc.ID, SourceTypeUniverseDoc)
	}
	return doc, nil
}

// UpdateDoc applies a partial update and re-queues indexing when the
// content or publication status changed.
func (s *Service) UpdateDoc(ctx context.Context, id uuid.UUID, req UpdateDocRequest) (*UniverseDoc, error) {
	doc, err := s.repo.GetDoc(ctx, id)
	if err != nil {
		return nil, err
	}

	contentChanged := false
	if req.Title != nil {
		doc.Title = *req.Title
	}
	if req.Content != nil && *req.Content != doc.Content {
		doc.Content = *req.Content
		contentChanged = true
	}
	if req.Status != nil && *req.Status != doc.Status {
		if err := validateDocStatus(*req.Status); err != nil {
			return nil, err
		}
		doc.Status = *req.Status
		contentChanged = true
	}
	if req.Tags != nil {
		doc.Tags = normalizeTags(*req.Tags)
	}

	if err := s.repo.UpdateDoc(ctx, doc); err != nil {
		return nil, err
	}

	if contentChanged && doc.Status == DocStatusPublished {
		s.enqueueIndex(ctx, doc.ID, SourceTypeUniverseDoc)
	}
	return doc, nil
}

// GetDoc returns one universe doc
func (s *Service) GetDoc(ctx context.Context, id uuid.UUID) (*UniverseDoc, error) {
	return s.repo.GetDoc(ctx, id)
}

// ListDocs returns universe docs with an optional status filter
func (s *Service) ListDocs(ctx context.Context, status string, limit, offset int) (*ListDocsResponse, error) {
	if status != "" {
		if err := validateDocStatus(status); err != nil {
			return nil, err
		}
	}
	docs, total, err := s.repo.ListDocs(ctx, status, limit, offset)
	if err != nil {
		return nil, err
	}
	return &ListDocsResponse{Data: docs, TotalCount: total}, nil
}

// DeleteDoc removes a doc and its indexed chunks
func (s *Service) DeleteDoc(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteDoc(ctx, id)
}

// CreateEvent validates and stores an event, then queues it for indexing.
func (s *Service) CreateEvent(ctx context.Context, req CreateEventRequest) (*Event, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, apperror.ErrValidation.WithMessage("title is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperror.ErrValidation.WithMessage("content is required")
	}
	if req.EventTime.IsZero() {
		return nil, apperror.ErrValidation.WithMessage("eventTime is required")
	}

	importance := req.Importance
	if importance == 0 {
		importance = 5
	}
	if importance < 1 || importance > 10 {
		return nil, apperror.ErrValidation.WithMessage("importance must be between 1 and 10")
	}

	ev := &Event{
		ID:         uuid.New(),
		Title:      req.Title,
		Content:    req.Content,
		EventTime:  req.EventTime,
		Importance: importance,
		Language:   defaultLang(req.Language),
		Tags:       normalizeTags(req.Tags),
	}
	if err := s.repo.CreateEvent(ctx, ev); err != nil {
		return nil, err
	}

	s.enqueueIndex(ctx, ev.ID, SourceTypeEvent)
	return ev, nil
}

// UpdateEvent applies a partial update and re-queues indexing when the
// content changed.
func (s *Service) UpdateEvent(ctx context.Context, id uuid.UUID, req UpdateEventRequest) (*Event, error) {
	ev, err := s.repo.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	contentChanged := false
	if req.Title != nil {
		ev.Title = *req.Title
	}
	if req.Content != nil && *req.Content != ev.Content {
		ev.Content = *req.Content
		contentChanged = true
	}
	if req.EventTime != nil {
		ev.EventTime = *req.EventTime
	}
	if req.Importance != nil {
		if *req.Importance < 1 || *req.Importance > 10 {
			return nil, apperror.ErrValidation.WithMessage("importance must be between 1 and 10")
		}
		ev.Importance = *req.Importance
	}
	if req.Tags != nil {
		ev.Tags = normalizeTags(*req.Tags)
	}

	if err := s.repo.UpdateEvent(ctx, ev); err != nil {
		return nil, err
	}

	if contentChanged {
		s.enqueueIndex(ctx, ev.ID, SourceTypeEvent)
	}
	return ev, nil
}

// GetEvent returns one event
func (s *Service) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	return s.repo.GetEvent(ctx, id)
}

// ListEvents returns events newest-first
func (s *Service) ListEvents(ctx context.Context, limit, offset int) (*ListEventsResponse, error) {
	events, total, err := s.repo.ListEvents(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return &ListEventsResponse{Data: events, TotalCount: total}, nil
}

// DeleteEvent removes an event and its indexed chunks
func (s *Service) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteEvent(ctx, id)
}

// Reindex force-enqueues a kb_index job for any source.
func (s *Service) Reindex(ctx context.Context, sourceID uuid.UUID, sourceType string) (*ReindexResponse, error) {
	switch sourceType {
	case SourceTypeUniverseDoc:
		if _, err := s.repo.GetDoc(ctx, sourceID); err != nil {
			return nil, err
		}
	case SourceTypeEvent:
		if _, err := s.repo.GetEvent(ctx, sourceID); err != nil {
			return nil, err
		}
	default:
		return nil, apperror.ErrValidation.WithMessage("sourceType must be universe_doc or event")
	}

	jobID, err := s.queue.Enqueue(ctx, jobs.EnqueueOptions{
		Type:           jobs.TypeKBIndex,
		Payload:        jobs.KBIndexPayload{SourceID: sourceID, SourceType: sourceType},
		IdempotencyKey: indexIdempotencyKey(sourceID),
	})
	if err != nil {
		return nil, err
	}

	return &ReindexResponse{JobID: jobID, SourceID: sourceID, SourceType: sourceType}, nil
}

// enqueueIndex is best-effort: a failed enqueue is logged, not surfaced,
// because the source row itself committed. Operators can POST /reindex.
func (s *Service) enqueueIndex(ctx context.Context, sourceID uuid.UUID, sourceType string) {
	_, err := s.queue.Enqueue(ctx, jobs.EnqueueOptions{
		Type:           jobs.TypeKBIndex,
		Payload:        jobs.KBIndexPayload{SourceID: sourceID, SourceType: sourceType},
		IdempotencyKey: indexIdempotencyKey(sourceID),
	})
	if err != nil {
		s.log.Warn("failed to enqueue index job",
			slog.String("source_id", sourceID.String()),
			slog.String("source_type", sourceType),
			logger.Error(err))
	}
}

// indexIdempotencyKey collapses repeated writes to one open index job per
// source.
func indexIdempotencyKey(sourceID uuid.UUID) string {
	return fmt.Sprintf("kb_index:%s", sourceID)
}

func validateDocStatus(status string) error {
	switch status {
	case DocStatusDraft, DocStatusPublished, DocStatusArchived:
		return nil
	default:
		return apperror.ErrValidation.WithMessage("status must be draft, published or archived")
	}
}

func defaultLang(lang string) string {
	if lang == "" {
		return "en"
	}
	return lang
}

// normalizeTags trims and drops empty tags, preserving order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
