package rendering

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"time"

	"github.com/radioforge/radioforge/domain/segments"
	"github.com/radioforge/radioforge/internal/config"
	"github.com/radioforge/radioforge/internal/jobs"
	"github.com/radioforge/radioforge/pkg/apperror"
	"github.com/radioforge/radioforge/pkg/logger"
	"github.com/radioforge/radioforge/pkg/tts"
)

// errSegmentNotReady means a render/master job arrived before the segment
// reached its state; transient, the retry backoff absorbs the race.
var errSegmentNotReady = apperror.NewKind(409, "segment_not_ready",
	"segment has not reached the state this job operates on", apperror.KindTransient)

// RenderHandler runs segment_render jobs: synthesize the script, store the
// audio, move the segment to normalizing and hand it to mastering.
type RenderHandler struct {
	segments *segments.Service
	assets   *AssetStore
	tts      *tts.Client
	queue    *jobs.Queue
	log      *slog.Logger
}

// NewRenderHandler creates the segment_render job handler
func NewRenderHandler(segs *segments.Service, assets *AssetStore, ttsClient *tts.Client, queue *jobs.Queue, log *slog.Logger) *RenderHandler {
	return &RenderHandler{
		segments: segs,
		assets:   assets,
		tts:      ttsClient,
		queue:    queue,
		log:      log.With(logger.Scope("rendering.worker")),
	}
}

func (h *RenderHandler) Type() jobs.Type { return jobs.TypeSegmentRender }

func (h *RenderHandler) Handle(ctx context.Context, job *jobs.Job) error {
	var payload jobs.SegmentPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return apperror.ErrValidation.WithMessage("malformed segment_render payload").WithInternal(err)
	}

	seg, err := h.segments.Get(ctx, payload.SegmentID)
	if err != nil {
		return err
	}

	switch seg.State {
	case segments.StateRendering:
		// proceed
	case segments.StateQueued, segments.StateRetrieving, segments.StateGenerating:
		// The render job beat the generating→rendering transition; back
		// off and try again.
		return errSegmentNotReady.WithDetails(map[string]any{"state": string(seg.State)})
	default:
		h.log.Debug("segment already past rendering",
			slog.String("segment_id", seg.ID.String()),
			slog.String("state", string(seg.State)))
		return nil
	}

	if seg.ScriptMD == nil || *seg.ScriptMD == "" {
		return apperror.ErrValidation.WithMessage("segment reached rendering without a script")
	}
	script := *seg.ScriptMD

	audio, durationSec, mimeType, err := h.synthesize(ctx, seg, script)
	if err != nil {
		return err
	}

	asset, err := h.assets.Put(ctx, audio, KindSegmentAudio, mimeType, durationSec)
	if err != nil {
		return err
	}

	if _, err := h.queue.Enqueue(ctx, jobs.EnqueueOptions{
		Type:           jobs.TypeSegmentMaster,
		Payload:        jobs.SegmentPayload{SegmentID: seg.ID},
		IdempotencyKey: "segment_master:" + seg.ID.String(),
	}); err != nil {
		return err
	}

	_, err = h.segments.Advance(ctx, seg, segments.StateNormalizing, h.actor(job),
		segments.WithAsset(asset.ID, durationSec),
		segments.WithCacheKey(h.tts.CacheKey(script)))
	return err
}

// synthesize calls the TTS backend. Without one configured, a text/plain
// placeholder asset at the slot's nominal duration keeps local pipelines
// flowing end to end.
func (h *RenderHandler) synthesize(ctx context.Context, seg *segments.Segment, script string) ([]byte, float64, string, error) {
	if !h.tts.IsEnabled() {
		h.log.Info("tts disabled, storing placeholder asset",
			slog.String("segment_id", seg.ID.String()))
		return []byte(script), float64(seg.SlotDurationSec), "text/plain", nil
	}

	started := time.Now()
	result, err := h.tts.Synthesize(ctx, script)
	if err != nil {
		return nil, 0, "", err
	}
	h.log.Info("segment synthesized",
		slog.String("segment_id", seg.ID.String()),
		slog.Float64("duration_sec", result.DurationSec),
		slog.Bool("cached", result.Cached),
		slog.Duration("latency", time.Since(started)))
	return result.Audio, result.DurationSec, "audio/wav", nil
}

func (h *RenderHandler) actor(job *jobs.Job) string {
	if job.LockedBy != nil && *job.LockedBy != "" {
		return *job.LockedBy
	}
	return "worker"
}

// MasterHandler runs segment_master jobs: validate the rendered duration
// against the slot bounds and mark the segment ready for playout.
type MasterHandler struct {
	segments  *segments.Service
	tolerance time.Duration
	log       *slog.Logger
}

// NewMasterHandler creates the segment_master job handler
func NewMasterHandler(segs *segments.Service, cfg *config.Config, log *slog.Logger) *MasterHandler {
	tolerance := cfg.Assets.DurationTolerance
	if tolerance <= 0 {
		tolerance = 5 * time.Second
	}
	return &MasterHandler{
		segments:  segs,
		tolerance: tolerance,
		log:       log.With(logger.Scope("rendering.master")),
	}
}

func (h *MasterHandler) Type() jobs.Type { return jobs.TypeSegmentMaster }

func (h *MasterHandler) Handle(ctx context.Context, job *jobs.Job) error {
	var payload jobs.SegmentPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return apperror.ErrValidation.WithMessage("malformed segment_master payload").WithInternal(err)
	}

	seg, err := h.segments.Get(ctx, payload.SegmentID)
	if err != nil {
		return err
	}

	switch seg.State {
	case segments.StateNormalizing:
		// proceed
	case segments.StateRendering:
		return errSegmentNotReady.WithDetails(map[string]any{"state": string(seg.State)})
	default:
		h.log.Debug("segment already past mastering",
			slog.String("segment_id", seg.ID.String()),
			slog.String("state", string(seg.State)))
		return nil
	}

	if seg.DurationSec == nil {
		return apperror.ErrValidation.WithMessage("segment reached mastering without a duration")
	}

	if !DurationWithinBounds(*seg.DurationSec, seg.SlotDurationSec, h.tolerance) {
		if _, ferr := h.segments.Fail(ctx, seg, segments.ReasonDurationOutOfRange, h.actor(job)); ferr != nil {
			h.log.Warn("failed to mark segment failed", logger.Error(ferr))
		}
		return apperror.ErrDurationOutOfRange.WithDetails(map[string]any{
			"duration_sec":  *seg.DurationSec,
			"slot_sec":      seg.SlotDurationSec,
			"tolerance_sec": h.tolerance.Seconds(),
		})
	}

	_, err = h.segments.Advance(ctx, seg, segments.StateReady, h.actor(job))
	return err
}

func (h *MasterHandler) actor(job *jobs.Job) string {
	if job.LockedBy != nil && *job.LockedBy != "" {
		return *job.LockedBy
	}
	return "worker"
}

// DurationWithinBounds checks |duration − slot| ≤ tolerance. A zero slot
// duration (legacy rows) accepts anything.
func DurationWithinBounds(durationSec float64, slotSec int, tolerance time.Duration) bool {
	if slotSec <= 0 {
		return true
	}
	return math.Abs(durationSec-float64(slotSec)) <= tolerance.Seconds()
}
