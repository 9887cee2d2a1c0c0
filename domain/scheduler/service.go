// Package scheduler materializes segments: every tick it walks the
// broadcast window hour by hour, resolves which program airs, expands its
// format clock into segments and enqueues their generation jobs.
package scheduler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/radioforge/radioforge/domain/programming"
	"github.com/radioforge/radioforge/domain/segments"
	"github.com/radioforge/radioforge/internal/config"
	"github.com/radioforge/radioforge/internal/jobs"
	"github.com/radioforge/radioforge/pkg/logger"
)

// Actor recorded on scheduler-driven segment transitions.
const Actor = "scheduler"

// Service drives segment materialization.
type Service struct {
	programs *programming.Repository
	segments *segments.Service
	queue    *jobs.Queue
	cfg      config.SchedulerConfig
	log      *slog.Logger
}

// NewService creates a new scheduler service
func NewService(programs *programming.Repository, segs *segments.Service, queue *jobs.Queue, cfg config.SchedulerConfig, log *slog.Logger) *Service {
	if cfg.Horizon <= 0 {
		cfg.Horizon = 24 * time.Hour
	}
	if cfg.LeadTime <= 0 {
		cfg.LeadTime = 30 * time.Minute
	}
	if cfg.SegmentMaxRetries <= 0 {
		cfg.SegmentMaxRetries = 3
	}
	return &Service{
		programs: programs,
		segments: segs,
		queue:    queue,
		cfg:      cfg,
		log:      log.With(logger.Scope("scheduler.service")),
	}
}

// TickResult summarizes one materialization pass.
type TickResult struct {
	HoursScanned      int `json:"hoursScanned"`
	SegmentsCreated   int `json:"segmentsCreated"`
	JobsEnqueued      int `json:"jobsEnqueued"`
	SegmentsCancelled int `json:"segmentsCancelled"`
}

// Tick runs one full pass: materialize the horizon, then sweep segments
// whose schedule entries were deactivated.
func (s *Service) Tick(ctx context.Context, now time.Time) (*TickResult, error) {
	result := &TickResult{}

	entries, err := s.programs.ListScheduleEntries(ctx, true)
	if err != nil {
		return nil, err
	}

	programCache := make(map[uuid.UUID]*programming.Program)
	for hour := now.UTC().Truncate(time.Hour); hour.Before(now.Add(s.cfg.Horizon)); hour = hour.Add(time.Hour) {
		result.HoursScanned++

		winner := PickWinner(EntriesCovering(entries, hour), func(shadowed *programming.ScheduleEntry) {
			s.log.Info("schedule entry shadowed by higher priority",
				slog.String("entry_id", shadowed.ID.String()),
				slog.String("program_id", shadowed.ProgramID.String()),
				slog.Time("hour", hour))
		})
		if winner == nil {
			continue
		}

		program, err := s.loadProgram(ctx, programCache, winner.ProgramID)
		if err != nil {
			s.log.Warn("skipping hour, program load failed",
				slog.String("program_id", winner.ProgramID.String()), logger.Error(err))
			continue
		}
		if program == nil {
			continue
		}

		created, enqueued, err := s.materializeHour(ctx, program, hour, now)
		if err != nil {
			return result, err
		}
		result.SegmentsCreated += created
		result.JobsEnqueued += enqueued
	}

	cancelled, err := s.sweepCancelled(ctx, now)
	if err != nil {
		s.log.Warn("cancellation sweep failed", logger.Error(err))
	}
	result.SegmentsCancelled = cancelled

	s.log.Info("scheduler tick finished",
		slog.Int("hours", result.HoursScanned),
		slog.Int("segments_created", result.SegmentsCreated),
		slog.Int("jobs_enqueued", result.JobsEnqueued),
		slog.Int("segments_cancelled", result.SegmentsCancelled))
	return result, nil
}

// MaterializeHour materializes one specific hour on demand (schedule_hour
// jobs use this).
func (s *Service) MaterializeHour(ctx context.Context, hour time.Time) (int, error) {
	entries, err := s.programs.ListScheduleEntries(ctx, true)
	if err != nil {
		return 0, err
	}
	winner := PickWinner(EntriesCovering(entries, hour.UTC().Truncate(time.Hour)), nil)
	if winner == nil {
		return 0, nil
	}
	program, err := s.loadProgram(ctx, map[uuid.UUID]*programming.Program{}, winner.ProgramID)
	if err != nil || program == nil {
		return 0, err
	}
	created, _, err := s.materializeHour(ctx, program, hour.UTC().Truncate(time.Hour), time.Now())
	return created, err
}

// loadProgram fetches a program with its clock and validates the clock. A
// misconfigured clock is fatal for scheduling: logged and skipped, never
// materialized.
func (s *Service) loadProgram(ctx context.Context, cache map[uuid.UUID]*programming.Program, id uuid.UUID) (*programming.Program, error) {
	if program, ok := cache[id]; ok {
		return program, nil
	}

	program, err := s.programs.GetProgram(ctx, id)
	if err != nil {
		return nil, err
	}
	if !program.Active {
		cache[id] = nil
		return nil, nil
	}
	if program.Clock == nil || clockSum(program.Clock) != programming.SecondsPerHour {
		s.log.Error("format clock does not sum to one hour, program not scheduled",
			slog.String("program_id", program.ID.String()),
			slog.String("clock_id", program.FormatClockID.String()),
			slog.Int("sum_sec", clockSum(program.Clock)))
		cache[id] = nil
		return nil, nil
	}

	cache[id] = program
	return program, nil
}

func clockSum(clock *programming.FormatClock) int {
	if clock == nil {
		return 0
	}
	sum := 0
	for _, slot := range clock.Slots {
		sum += slot.DurationSec
	}
	return sum
}

// materializeHour expands the program's format clock into segments for one
// hour and enqueues generation jobs for the newly created ones. Upserts by
// idempotency key make re-materializing an hour a no-op.
func (s *Service) materializeHour(ctx context.Context, program *programming.Program, hour, now time.Time) (created int, enqueued int, err error) {
	offsets := SlotOffsets(program.Clock.Slots)

	for i, slot := range program.Clock.Slots {
		start := hour.Add(offsets[i])
		key := IdempotencyKey(program.ID, hour, i)

		segment := &segments.Segment{
			ID:               uuid.New(),
			ProgramID:        program.ID,
			SlotType:         slot.SlotType,
			SlotIndex:        i,
			SlotDurationSec:  slot.DurationSec,
			State:            segments.StateQueued,
			Language:         program.Language,
			ScheduledStartTS: start,
			MaxRetries:       s.cfg.SegmentMaxRetries,
			IdempotencyKey:   &key,
		}

		inserted, err := s.segments.Create(ctx, segment)
		if err != nil {
			return created, enqueued, err
		}
		if !inserted {
			continue
		}
		created++

		delay := time.Until(start.Add(-s.cfg.LeadTime))
		if delay < 0 {
			delay = 0
		}
		_, err = s.queue.Enqueue(ctx, jobs.EnqueueOptions{
			Type:           jobs.TypeSegmentMake,
			Payload:        jobs.SegmentPayload{SegmentID: segment.ID},
			Delay:          delay,
			IdempotencyKey: "segment_make:" + segment.ID.String(),
		})
		if err != nil {
			return created, enqueued, err
		}
		enqueued++
	}
	return created, enqueued, nil
}

// sweepCancelled fails future segments whose scheduled hour no active
// schedule entry of their program covers any more, and drops their pending
// generation jobs. Deactivating one of several entries only takes that
// entry's hours with it; the program's other windows keep their segments.
func (s *Service) sweepCancelled(ctx context.Context, now time.Time) (int, error) {
	all, err := s.programs.ListScheduleEntries(ctx, false)
	if err != nil {
		return 0, err
	}

	byProgram := make(map[uuid.UUID][]*programming.ScheduleEntry)
	for _, entry := range all {
		byProgram[entry.ProgramID] = append(byProgram[entry.ProgramID], entry)
	}
	programIDs := make([]uuid.UUID, 0, len(byProgram))
	for id := range byProgram {
		programIDs = append(programIDs, id)
	}
	if len(programIDs) == 0 {
		return 0, nil
	}

	candidates, err := s.segments.ListCancellable(ctx, programIDs, now)
	if err != nil {
		return 0, err
	}

	orphaned := UncoveredSegments(candidates, byProgram)
	if len(orphaned) == 0 {
		return 0, nil
	}

	cancelled, err := s.segments.CancelSegments(ctx, orphaned, Actor)
	if err != nil {
		return len(cancelled), err
	}
	if len(cancelled) > 0 {
		if removed, err := s.queue.DeletePendingForSegments(ctx, cancelled); err != nil {
			s.log.Warn("failed to drop pending jobs for cancelled segments", logger.Error(err))
		} else {
			s.log.Info("cancelled segments swept",
				slog.Int("segments", len(cancelled)),
				slog.Int("jobs_removed", removed))
		}
	}
	return len(cancelled), nil
}

// UncoveredSegments filters segments to those whose scheduled hour is not
// covered by any active entry of their program. Slot offsets stay inside
// the hour, so truncating the start identifies the materialized hour.
func UncoveredSegments(segs []*segments.Segment, entriesByProgram map[uuid.UUID][]*programming.ScheduleEntry) []*segments.Segment {
	var uncovered []*segments.Segment
	for _, seg := range segs {
		hour := seg.ScheduledStartTS.UTC().Truncate(time.Hour)
		if len(EntriesCovering(entriesByProgram[seg.ProgramID], hour)) == 0 {
			uncovered = append(uncovered, seg)
		}
	}
	return uncovered
}

// EntriesCovering filters schedule entries to those active at the given
// hour: matching day of week (nil matches every day) and wall-clock window.
func EntriesCovering(entries []*programming.ScheduleEntry, hour time.Time) []*programming.ScheduleEntry {
	wall := hour.Format("15:04:05")
	day := int(hour.Weekday())

	var covering []*programming.ScheduleEntry
	for _, entry := range entries {
		if !entry.Active {
			continue
		}
		if entry.DayOfWeek != nil && *entry.DayOfWeek != day {
			continue
		}
		if entry.StartTime <= wall && wall < entry.EndTime {
			covering = append(covering, entry)
		}
	}
	return covering
}

// PickWinner resolves overlapping entries: highest priority wins; equal
// priorities go to the earlier-created entry, then program id for
// determinism. Losers are reported through onShadowed.
func PickWinner(entries []*programming.ScheduleEntry, onShadowed func(*programming.ScheduleEntry)) *programming.ScheduleEntry {
	if len(entries) == 0 {
		return nil
	}

	winner := entries[0]
	for _, entry := range entries[1:] {
		if beats(entry, winner) {
			if onShadowed != nil {
				onShadowed(winner)
			}
			winner = entry
		} else if onShadowed != nil {
			onShadowed(entry)
		}
	}
	return winner
}

func beats(a, b *programming.ScheduleEntry) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ProgramID.String() < b.ProgramID.String()
}

// SlotOffsets returns each slot's offset from the top of the hour: the
// cumulative duration of everything before it.
func SlotOffsets(slots []*programming.FormatSlot) []time.Duration {
	offsets := make([]time.Duration, len(slots))
	var cum time.Duration
	for i, slot := range slots {
		offsets[i] = cum
		cum += time.Duration(slot.DurationSec) * time.Second
	}
	return offsets
}

// IdempotencyKey derives the stable key for one (program, hour, slot)
// materialization.
func IdempotencyKey(programID uuid.UUID, hour time.Time, slotIndex int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d",
		programID, hour.UTC().Format(time.RFC3339), slotIndex)))
	return hex.EncodeToString(sum[:])
}
