package generation

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/radioforge/radioforge/domain/programming"
	"github.com/radioforge/radioforge/domain/retrieval"
	"github.com/radioforge/radioforge/domain/segments"
	"github.com/radioforge/radioforge/domain/timesvc"
	"github.com/radioforge/radioforge/internal/config"
	"github.com/radioforge/radioforge/internal/jobs"
	"github.com/radioforge/radioforge/pkg/apperror"
	"github.com/radioforge/radioforge/pkg/llm"
	"github.com/radioforge/radioforge/pkg/logger"
)

// maxResumeSteps bounds the state-walk per job run; a healthy run needs
// three transitions.
const maxResumeSteps = 6

// MakeHandler runs segment_make jobs: queued → retrieving → generating →
// rendering, with the retrieval and LLM calls in between.
type MakeHandler struct {
	segments  *segments.Service
	programs  *programming.Repository
	retrieval *retrieval.Service
	llm       llm.Client
	timesvc   *timesvc.Service
	queue     *jobs.Queue
	llmCfg    config.LLMConfig
	log       *slog.Logger
}

// NewMakeHandler creates the segment_make job handler
func NewMakeHandler(
	segs *segments.Service,
	programs *programming.Repository,
	retr *retrieval.Service,
	llmClient llm.Client,
	tsvc *timesvc.Service,
	queue *jobs.Queue,
	cfg *config.Config,
	log *slog.Logger,
) *MakeHandler {
	return &MakeHandler{
		segments:  segs,
		programs:  programs,
		retrieval: retr,
		llm:       llmClient,
		timesvc:   tsvc,
		queue:     queue,
		llmCfg:    cfg.LLM,
		log:       log.With(logger.Scope("generation.worker")),
	}
}

func (h *MakeHandler) Type() jobs.Type { return jobs.TypeSegmentMake }

// Handle is a resumable state walk. A replayed or retried job picks the
// segment up wherever a previous run left it; a segment already past
// rendering makes the job a no-op.
func (h *MakeHandler) Handle(ctx context.Context, job *jobs.Job) error {
	var payload jobs.SegmentPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return apperror.ErrValidation.WithMessage("malformed segment_make payload").WithInternal(err)
	}

	actor := h.actor(job)

	for step := 0; step < maxResumeSteps; step++ {
		seg, err := h.segments.Get(ctx, payload.SegmentID)
		if err != nil {
			return err
		}

		switch seg.State {
		case segments.StateQueued:
			_, err = h.segments.Advance(ctx, seg, segments.StateRetrieving, actor)

		case segments.StateRetrieving:
			err = h.retrieve(ctx, seg, actor)

		case segments.StateGenerating:
			return h.generate(ctx, seg, actor)

		default:
			// rendering or beyond: a previous run already finished this
			// job's portion of the pipeline.
			h.log.Debug("segment already past generation",
				slog.String("segment_id", seg.ID.String()),
				slog.String("state", string(seg.State)))
			return nil
		}

		// A state conflict means another worker advanced the segment
		// between our read and write; re-read and fall through to
		// whatever state it is in now.
		if err != nil && apperror.KindOf(err) == apperror.KindConsistency {
			h.log.Info("lost transition race, re-reading segment",
				slog.String("segment_id", seg.ID.String()))
			continue
		}
		if err != nil {
			return err
		}
	}
	return apperror.ErrStateConflict.WithMessage("segment kept moving under the handler")
}

// retrieve runs the hybrid query and persists the full citation set on the
// transition into generating.
func (h *MakeHandler) retrieve(ctx context.Context, seg *segments.Segment, actor string) error {
	program, err := h.programs.GetProgram(ctx, seg.ProgramID)
	if err != nil {
		return err
	}

	futureRef := h.timesvc.ToFuture(seg.ScheduledStartTS)
	queryText := BuildQueryText(seg.SlotType, futureRef, program)

	started := time.Now()
	result, err := h.retrieval.Retrieve(ctx, retrieval.Query{
		Text:          queryText,
		Language:      seg.Language,
		ReferenceTime: &futureRef,
	})
	if err != nil {
		return err
	}

	citations := make([]segments.Citation, len(result.Chunks))
	for i, chunk := range result.Chunks {
		citations[i] = segments.Citation{
			SourceID:       chunk.SourceID,
			ChunkID:        chunk.ChunkID,
			Title:          chunk.Title,
			RelevanceScore: clamp01(chunk.FinalScore),
		}
	}

	metrics := &segments.GenerationMetrics{
		RetrievalDegraded: result.Degraded,
		RetrievalTimeMS:   time.Since(started).Milliseconds(),
		RetrievedChunks:   len(result.Chunks),
	}

	_, err = h.segments.Advance(ctx, seg, segments.StateGenerating, actor,
		segments.WithCitations(citations),
		segments.WithMetrics(metrics))
	return err
}

// generate writes the script, persists it, enqueues the render job and
// moves the segment to rendering.
func (h *MakeHandler) generate(ctx context.Context, seg *segments.Segment, actor string) error {
	program, err := h.programs.GetProgram(ctx, seg.ProgramID)
	if err != nil {
		return err
	}

	futureRef := h.timesvc.ToFuture(seg.ScheduledStartTS)
	contextChunks, err := h.contextChunks(ctx, seg, program, futureRef)
	if err != nil {
		return err
	}

	script, metrics, err := h.writeScript(ctx, seg, program, futureRef, contextChunks)
	if err != nil {
		if apperror.IsRetryable(err) {
			// Transient LLM fault: spend a segment retry and let the job
			// back off, or fail the segment when retries are exhausted.
			if _, again, rerr := h.segments.RetryOrFail(ctx, seg, actor); rerr == nil && !again {
				return err
			}
			return err
		}
		if _, ferr := h.segments.Fail(ctx, seg, segments.ReasonScriptOutOfBounds, actor); ferr != nil {
			h.log.Warn("failed to mark segment failed", logger.Error(ferr))
		}
		return err
	}

	if seg.Metrics != nil {
		metrics.RetrievalDegraded = seg.Metrics.RetrievalDegraded
		metrics.RetrievalTimeMS = seg.Metrics.RetrievalTimeMS
		metrics.RetrievedChunks = seg.Metrics.RetrievedChunks
	}
	metrics.PromptContextCount = len(contextChunks)

	if _, err := h.queue.Enqueue(ctx, jobs.EnqueueOptions{
		Type:           jobs.TypeSegmentRender,
		Payload:        jobs.SegmentPayload{SegmentID: seg.ID},
		IdempotencyKey: "segment_render:" + seg.ID.String(),
	}); err != nil {
		return err
	}

	_, err = h.segments.Advance(ctx, seg, segments.StateRendering, actor,
		segments.WithScript(script),
		segments.WithMetrics(metrics))
	return err
}

// contextChunks re-derives the prompt context from the persisted citations:
// the top chunks by relevance, loaded fresh so the text is available.
func (h *MakeHandler) contextChunks(ctx context.Context, seg *segments.Segment, program *programming.Program, futureRef time.Time) ([]retrieval.ScoredChunk, error) {
	queryText := BuildQueryText(seg.SlotType, futureRef, program)
	topK := PromptContextCount
	result, err := h.retrieval.Retrieve(ctx, retrieval.Query{
		Text:          queryText,
		Language:      seg.Language,
		TopK:          topK,
		ReferenceTime: &futureRef,
	})
	if err != nil {
		return nil, err
	}
	return result.Chunks, nil
}

// writeScript calls the LLM with up to two corrective retries on length,
// falling back to the deterministic template when no backend is configured.
func (h *MakeHandler) writeScript(ctx context.Context, seg *segments.Segment, program *programming.Program, futureRef time.Time, contextChunks []retrieval.ScoredChunk) (string, *segments.GenerationMetrics, error) {
	if !h.llm.IsEnabled() {
		script := FallbackScript(program, seg.SlotType, futureRef, contextChunks)
		return script, &segments.GenerationMetrics{Model: "template"}, nil
	}

	system := BuildSystemPrompt(program, seg.SlotType, futureRef)
	prompt := BuildUserPrompt(BuildQueryText(seg.SlotType, futureRef, program), contextChunks)

	started := time.Now()
	var lastLen int
	for attempt := 0; attempt < MaxScriptAttempts; attempt++ {
		attemptPrompt := prompt
		if attempt > 0 {
			attemptPrompt += CorrectiveInstruction(lastLen)
		}

		result, err := h.llm.Complete(ctx, llm.CompletionRequest{
			System:      system,
			Prompt:      attemptPrompt,
			Model:       h.llmCfg.Model,
			Temperature: h.llmCfg.Temperature,
		})
		if err != nil {
			return "", nil, err
		}

		if ScriptInBounds(result.Text) {
			return result.Text, &segments.GenerationMetrics{
				Model:         result.Model,
				Temperature:   h.llmCfg.Temperature,
				PromptTokens:  result.PromptTokens,
				OutputTokens:  result.OutputTokens,
				LatencyMS:     time.Since(started).Milliseconds(),
				ScriptRetries: attempt,
			}, nil
		}
		lastLen = len(result.Text)
		h.log.Warn("script out of bounds, retrying with corrective instruction",
			slog.String("segment_id", seg.ID.String()),
			slog.Int("length", lastLen),
			slog.Int("attempt", attempt+1))
	}

	return "", nil, apperror.ErrScriptOutOfBounds.WithDetails(map[string]any{
		"length":    lastLen,
		"min_chars": MinScriptChars,
		"max_chars": MaxScriptChars,
	})
}

func (h *MakeHandler) actor(job *jobs.Job) string {
	if job.LockedBy != nil && *job.LockedBy != "" {
		return *job.LockedBy
	}
	return "worker"
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

