package programming

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/radioforge/radioforge/pkg/apperror"
	"github.com/radioforge/radioforge/pkg/logger"
)

// Service validates and persists station configuration. Misconfiguration
// is rejected here so the scheduler never sees an invalid clock or lineup.
type Service struct {
	repo *Repository
	log  *slog.Logger
}

// NewService creates a new programming service
func NewService(repo *Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With(logger.Scope("programming.service")),
	}
}

// Voices

func (s *Service) CreateVoice(ctx context.Context, req CreateVoiceRequest) (*Voice, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperror.ErrValidation.WithMessage("voice name is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, apperror.ErrValidation.WithMessage("voice model is required")
	}
	speed := req.Speed
	if speed == 0 {
		speed = 1.0
	}
	if speed < 0.5 || speed > 2.0 {
		return nil, apperror.ErrValidation.WithMessage("voice speed must be between 0.5 and 2.0")
	}

	voice := &Voice{
		ID:       uuid.New(),
		Name:     strings.TrimSpace(req.Name),
		Model:    strings.TrimSpace(req.Model),
		Speed:    speed,
		Language: defaultLang(req.Language),
	}
	if err := s.repo.CreateVoice(ctx, voice); err != nil {
		return nil, err
	}
	return voice, nil
}

func (s *Service) ListVoices(ctx context.Context) ([]*Voice, error) {
	return s.repo.ListVoices(ctx)
}

// DJs

func (s *Service) CreateDJ(ctx context.Context, req CreateDJRequest) (*DJ, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperror.ErrValidation.WithMessage("dj name is required")
	}
	if req.VoiceID != nil {
		if _, err := s.repo.GetVoice(ctx, *req.VoiceID); err != nil {
			return nil, err
		}
	}

	personality := make([]string, 0, len(req.Personality))
	for _, trait := range req.Personality {
		if t := strings.TrimSpace(trait); t != "" {
			personality = append(personality, t)
		}
	}

	dj := &DJ{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(req.Name),
		VoiceID:     req.VoiceID,
		Language:    defaultLang(req.Language),
		Personality: personality,
		Bio:         req.Bio,
		Active:      true,
	}
	if err := s.repo.CreateDJ(ctx, dj); err != nil {
		return nil, err
	}
	return dj, nil
}

func (s *Service) ListDJs(ctx context.Context) ([]*DJ, error) {
	return s.repo.ListDJs(ctx)
}

// Format clocks

// CreateClock validates the hour template. Slot durations must sum to
// exactly one hour; anything else is rejected before it can reach the
// scheduler.
func (s *Service) CreateClock(ctx context.Context, req CreateClockRequest) (*FormatClock, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperror.ErrValidation.WithMessage("clock name is required")
	}
	if len(req.Slots) == 0 {
		return nil, apperror.ErrValidation.WithMessage("a format clock needs at least one slot")
	}
	if err := ValidateSlotSum(req.Slots); err != nil {
		return nil, err
	}

	clock := &FormatClock{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Slots:       make([]*FormatSlot, len(req.Slots)),
	}
	for i, slot := range req.Slots {
		required := slot.Required == nil || *slot.Required
		clock.Slots[i] = &FormatSlot{
			ID:          uuid.New(),
			ClockID:     clock.ID,
			SlotType:    strings.TrimSpace(slot.SlotType),
			DurationSec: slot.DurationSec,
			OrderIndex:  i,
			Required:    required,
		}
	}
	if err := s.repo.CreateClock(ctx, clock); err != nil {
		return nil, err
	}
	return clock, nil
}

func (s *Service) GetClock(ctx context.Context, id uuid.UUID) (*FormatClock, error) {
	return s.repo.GetClock(ctx, id)
}

func (s *Service) ListClocks(ctx context.Context) ([]*FormatClock, error) {
	return s.repo.ListClocks(ctx)
}

// ValidateSlotSum checks the one-hour invariant on a slot list.
func ValidateSlotSum(slots []SlotRequest) error {
	sum := 0
	for i, slot := range slots {
		if strings.TrimSpace(slot.SlotType) == "" {
			return apperror.ErrValidation.WithMessage(fmt.Sprintf("slot %d is missing a slot type", i))
		}
		if slot.DurationSec <= 0 {
			return apperror.ErrValidation.WithMessage(fmt.Sprintf("slot %d has a non-positive duration", i))
		}
		sum += slot.DurationSec
	}
	if sum != SecondsPerHour {
		return apperror.ErrSlotSumMismatch.WithDetails(map[string]any{
			"sum_sec":      sum,
			"expected_sec": SecondsPerHour,
		})
	}
	return nil
}

// Programs

func (s *Service) CreateProgram(ctx context.Context, req CreateProgramRequest) (*Program, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperror.ErrValidation.WithMessage("program name is required")
	}
	if len(req.DJIDs) == 0 {
		return nil, apperror.ErrValidation.WithMessage("a program needs at least one dj")
	}
	if err := validateConversationFormat(req.ConversationFormat, len(req.DJIDs)); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetClock(ctx, req.FormatClockID); err != nil {
		return nil, err
	}
	for _, djID := range req.DJIDs {
		if _, err := s.repo.GetDJ(ctx, djID); err != nil {
			return nil, err
		}
	}

	program := &Program{
		ID:            uuid.New(),
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		FormatClockID: req.FormatClockID,
		Genre:         req.Genre,
		Language:      defaultLang(req.Language),
		Active:        true,
	}
	if req.ConversationFormat != "" {
		format := req.ConversationFormat
		program.ConversationFormat = &format
	}
	if err := s.repo.CreateProgram(ctx, program, req.DJIDs); err != nil {
		return nil, err
	}
	return s.repo.GetProgram(ctx, program.ID)
}

func (s *Service) GetProgram(ctx context.Context, id uuid.UUID) (*Program, error) {
	return s.repo.GetProgram(ctx, id)
}

func (s *Service) ListPrograms(ctx context.Context, activeOnly bool) ([]*Program, error) {
	return s.repo.ListPrograms(ctx, activeOnly)
}

func (s *Service) SetProgramActive(ctx context.Context, id uuid.UUID, active bool) error {
	return s.repo.SetProgramActive(ctx, id, active)
}

func validateConversationFormat(format string, djCount int) error {
	if format == "" {
		if djCount >= 2 {
			return apperror.ErrValidation.WithMessage("conversation format is required for programs with two or more djs")
		}
		return nil
	}
	switch format {
	case FormatInterview, FormatPanel, FormatDialogue, FormatDebate:
		return nil
	default:
		return apperror.ErrValidation.WithMessage("unknown conversation format: " + format)
	}
}

// Broadcast schedule

func (s *Service) CreateScheduleEntry(ctx context.Context, req CreateScheduleRequest) (*ScheduleEntry, error) {
	if req.DayOfWeek != nil && (*req.DayOfWeek < 0 || *req.DayOfWeek > 6) {
		return nil, apperror.ErrValidation.WithMessage("day of week must be 0 (Sunday) through 6")
	}
	start, err := ParseWallClock(req.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := ParseWallClock(req.EndTime)
	if err != nil {
		return nil, err
	}
	if !start.Before(end) {
		return nil, apperror.ErrValidation.WithMessage("start time must be before end time")
	}
	program, err := s.repo.GetProgram(ctx, req.ProgramID)
	if err != nil {
		return nil, err
	}
	if !program.Active {
		return nil, apperror.ErrValidation.WithMessage("cannot schedule an inactive program")
	}

	entry := &ScheduleEntry{
		ID:        uuid.New(),
		ProgramID: req.ProgramID,
		DayOfWeek: req.DayOfWeek,
		StartTime: start.Format("15:04:05"),
		EndTime:   end.Format("15:04:05"),
		Priority:  req.Priority,
		Active:    true,
	}
	if err := s.repo.CreateScheduleEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) ListScheduleEntries(ctx context.Context, activeOnly bool) ([]*ScheduleEntry, error) {
	return s.repo.ListScheduleEntries(ctx, activeOnly)
}

// DeactivateScheduleEntry stops future materialization. Already-created
// segments are cancelled by the scheduler's next sweep.
func (s *Service) DeactivateScheduleEntry(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetScheduleEntryActive(ctx, id, false); err != nil {
		return err
	}
	s.log.Info("schedule entry deactivated", slog.String("entry_id", id.String()))
	return nil
}

// ParseWallClock parses "HH:MM" or "HH:MM:SS".
func ParseWallClock(value string) (time.Time, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperror.ErrValidation.WithMessage("invalid wall-clock time: " + value)
}

func defaultLang(lang string) string {
	if lang == "" {
		return "en"
	}
	return lang
}
