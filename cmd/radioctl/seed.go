package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/radioforge/radioforge/domain/knowledge"
	"github.com/radioforge/radioforge/domain/programming"
	"github.com/radioforge/radioforge/internal/config"
	"github.com/radioforge/radioforge/internal/jobs"
)

// SeedFile is the YAML fixture format. Entities reference each other by
// name, so fixtures stay readable and survive re-runs: anything that
// already exists under the same name is skipped.
type SeedFile struct {
	Voices   []SeedVoice    `yaml:"voices"`
	DJs      []SeedDJ       `yaml:"djs"`
	Clocks   []SeedClock    `yaml:"clocks"`
	Programs []SeedProgram  `yaml:"programs"`
	Schedule []SeedSchedule `yaml:"schedule"`
	Docs     []SeedDoc      `yaml:"docs"`
	Events   []SeedEvent    `yaml:"events"`
}

type SeedVoice struct {
	Name     string  `yaml:"name"`
	Model    string  `yaml:"model"`
	Speed    float64 `yaml:"speed"`
	Language string  `yaml:"language"`
}

type SeedDJ struct {
	Name        string   `yaml:"name"`
	Voice       string   `yaml:"voice"`
	Language    string   `yaml:"language"`
	Personality []string `yaml:"personality"`
	Bio         string   `yaml:"bio"`
}

type SeedSlot struct {
	Type        string `yaml:"type"`
	DurationSec int    `yaml:"duration_sec"`
}

type SeedClock struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Slots       []SeedSlot `yaml:"slots"`
}

type SeedProgram struct {
	Name               string   `yaml:"name"`
	Description        string   `yaml:"description"`
	Clock              string   `yaml:"clock"`
	DJs                []string `yaml:"djs"`
	ConversationFormat string   `yaml:"conversation_format"`
	Genre              string   `yaml:"genre"`
	Language           string   `yaml:"language"`
}

type SeedSchedule struct {
	Program   string `yaml:"program"`
	DayOfWeek *int   `yaml:"day_of_week"`
	StartTime string `yaml:"start_time"`
	EndTime   string `yaml:"end_time"`
	Priority  int    `yaml:"priority"`
}

type SeedDoc struct {
	Title    string   `yaml:"title"`
	Content  string   `yaml:"content"`
	Status   string   `yaml:"status"`
	Language string   `yaml:"language"`
	Tags     []string `yaml:"tags"`
}

type SeedEvent struct {
	Title      string    `yaml:"title"`
	Content    string    `yaml:"content"`
	EventTime  time.Time `yaml:"event_time"`
	Importance int       `yaml:"importance"`
	Language   string    `yaml:"language"`
	Tags       []string  `yaml:"tags"`
}

// ParseSeedFile decodes and minimally validates a fixture file.
func ParseSeedFile(data []byte) (*SeedFile, error) {
	seed := &SeedFile{}
	if err := yaml.Unmarshal(data, seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i, entry := range seed.Schedule {
		if entry.Program == "" {
			return nil, fmt.Errorf("schedule[%d]: program name is required", i)
		}
	}
	for i, prog := range seed.Programs {
		if prog.Clock == "" {
			return nil, fmt.Errorf("programs[%d] (%s): clock name is required", i, prog.Name)
		}
		if len(prog.DJs) == 0 {
			return nil, fmt.Errorf("programs[%d] (%s): at least one dj is required", i, prog.Name)
		}
	}
	return seed, nil
}

func runSeed(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	file := fs.String("file", "seed.yaml", "Path to the YAML fixture file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	seed, err := ParseSeedFile(data)
	if err != nil {
		return err
	}

	db := openDB(cfg)
	defer db.Close()

	log := newLogger()
	queue := jobs.NewQueue(db, jobs.DefaultQueueConfig(), log)
	programmingSvc := programming.NewService(programming.NewRepository(db, log), log)
	knowledgeSvc := knowledge.NewService(knowledge.NewRepository(db, log), queue, log)

	s := &seeder{
		programming: programmingSvc,
		knowledge:   knowledgeSvc,
	}
	return s.Run(context.Background(), seed)
}

type seeder struct {
	programming *programming.Service
	knowledge   *knowledge.Service

	created int
	skipped int
}

func (s *seeder) Run(ctx context.Context, seed *SeedFile) error {
	voiceIDs, err := s.seedVoices(ctx, seed.Voices)
	if err != nil {
		return err
	}
	djIDs, err := s.seedDJs(ctx, seed.DJs, voiceIDs)
	if err != nil {
		return err
	}
	clockIDs, err := s.seedClocks(ctx, seed.Clocks)
	if err != nil {
		return err
	}
	programIDs, err := s.seedPrograms(ctx, seed.Programs, clockIDs, djIDs)
	if err != nil {
		return err
	}
	if err := s.seedSchedule(ctx, seed.Schedule, programIDs); err != nil {
		return err
	}
	if err := s.seedKnowledge(ctx, seed.Docs, seed.Events); err != nil {
		return err
	}

	fmt.Printf("Seed complete: %d created, %d already present\n", s.created, s.skipped)
	return nil
}

func (s *seeder) seedVoices(ctx context.Context, fixtures []SeedVoice) (map[string]uuid.UUID, error) {
	existing, err := s.programming.ListVoices(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]uuid.UUID, len(existing))
	for _, v := range existing {
		ids[v.Name] = v.ID
	}

	for _, f := range fixtures {
		if _, ok := ids[f.Name]; ok {
			s.skipped++
			continue
		}
		voice, err := s.programming.CreateVoice(ctx, programming.CreateVoiceRequest{
			Name:     f.Name,
			Model:    f.Model,
			Speed:    f.Speed,
			Language: f.Language,
		})
		if err != nil {
			return nil, fmt.Errorf("voice %q: %w", f.Name, err)
		}
		ids[voice.Name] = voice.ID
		s.created++
	}
	return ids, nil
}

func (s *seeder) seedDJs(ctx context.Context, fixtures []SeedDJ, voiceIDs map[string]uuid.UUID) (map[string]uuid.UUID, error) {
	existing, err := s.programming.ListDJs(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]uuid.UUID, len(existing))
	for _, dj := range existing {
		ids[dj.Name] = dj.ID
	}

	for _, f := range fixtures {
		if _, ok := ids[f.Name]; ok {
			s.skipped++
			continue
		}
		req := programming.CreateDJRequest{
			Name:        f.Name,
			Language:    f.Language,
			Personality: f.Personality,
			Bio:         f.Bio,
		}
		if f.Voice != "" {
			voiceID, ok := voiceIDs[f.Voice]
			if !ok {
				return nil, fmt.Errorf("dj %q references unknown voice %q", f.Name, f.Voice)
			}
			req.VoiceID = &voiceID
		}
		dj, err := s.programming.CreateDJ(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("dj %q: %w", f.Name, err)
		}
		ids[dj.Name] = dj.ID
		s.created++
	}
	return ids, nil
}

func (s *seeder) seedClocks(ctx context.Context, fixtures []SeedClock) (map[string]uuid.UUID, error) {
	existing, err := s.programming.ListClocks(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]uuid.UUID, len(existing))
	for _, c := range existing {
		ids[c.Name] = c.ID
	}

	for _, f := range fixtures {
		if _, ok := ids[f.Name]; ok {
			s.skipped++
			continue
		}
		slots := make([]programming.SlotRequest, len(f.Slots))
		for i, slot := range f.Slots {
			slots[i] = programming.SlotRequest{
				SlotType:    slot.Type,
				DurationSec: slot.DurationSec,
			}
		}
		clock, err := s.programming.CreateClock(ctx, programming.CreateClockRequest{
			Name:        f.Name,
			Description: f.Description,
			Slots:       slots,
		})
		if err != nil {
			return nil, fmt.Errorf("clock %q: %w", f.Name, err)
		}
		ids[clock.Name] = clock.ID
		s.created++
	}
	return ids, nil
}

func (s *seeder) seedPrograms(ctx context.Context, fixtures []SeedProgram, clockIDs, djIDs map[string]uuid.UUID) (map[string]uuid.UUID, error) {
	existing, err := s.programming.ListPrograms(ctx, false)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]uuid.UUID, len(existing))
	for _, p := range existing {
		ids[p.Name] = p.ID
	}

	for _, f := range fixtures {
		if _, ok := ids[f.Name]; ok {
			s.skipped++
			continue
		}
		clockID, ok := clockIDs[f.Clock]
		if !ok {
			return nil, fmt.Errorf("program %q references unknown clock %q", f.Name, f.Clock)
		}
		djs := make([]uuid.UUID, len(f.DJs))
		for i, name := range f.DJs {
			id, ok := djIDs[name]
			if !ok {
				return nil, fmt.Errorf("program %q references unknown dj %q", f.Name, name)
			}
			djs[i] = id
		}
		program, err := s.programming.CreateProgram(ctx, programming.CreateProgramRequest{
			Name:               f.Name,
			Description:        f.Description,
			FormatClockID:      clockID,
			DJIDs:              djs,
			ConversationFormat: f.ConversationFormat,
			Genre:              f.Genre,
			Language:           f.Language,
		})
		if err != nil {
			return nil, fmt.Errorf("program %q: %w", f.Name, err)
		}
		ids[program.Name] = program.ID
		s.created++
	}
	return ids, nil
}

func (s *seeder) seedSchedule(ctx context.Context, fixtures []SeedSchedule, programIDs map[string]uuid.UUID) error {
	existing, err := s.programming.ListScheduleEntries(ctx, false)
	if err != nil {
		return err
	}

	for _, f := range fixtures {
		programID, ok := programIDs[f.Program]
		if !ok {
			return fmt.Errorf("schedule entry references unknown program %q", f.Program)
		}

		duplicate := false
		for _, entry := range existing {
			if entry.ProgramID == programID &&
				entry.StartTime == normalizeWallClock(f.StartTime) &&
				sameDay(entry.DayOfWeek, f.DayOfWeek) {
				duplicate = true
				break
			}
		}
		if duplicate {
			s.skipped++
			continue
		}

		if _, err := s.programming.CreateScheduleEntry(ctx, programming.CreateScheduleRequest{
			ProgramID: programID,
			DayOfWeek: f.DayOfWeek,
			StartTime: f.StartTime,
			EndTime:   f.EndTime,
			Priority:  f.Priority,
		}); err != nil {
			return fmt.Errorf("schedule entry for %q: %w", f.Program, err)
		}
		s.created++
	}
	return nil
}

func (s *seeder) seedKnowledge(ctx context.Context, docs []SeedDoc, events []SeedEvent) error {
	for _, f := range docs {
		if _, err := s.knowledge.CreateDoc(ctx, knowledge.CreateDocRequest{
			Title:    f.Title,
			Content:  f.Content,
			Status:   f.Status,
			Language: f.Language,
			Tags:     f.Tags,
		}); err != nil {
			return fmt.Errorf("doc %q: %w", f.Title, err)
		}
		s.created++
	}
	for _, f := range events {
		if _, err := s.knowledge.CreateEvent(ctx, knowledge.CreateEventRequest{
			Title:      f.Title,
			Content:    f.Content,
			EventTime:  f.EventTime,
			Importance: f.Importance,
			Language:   f.Language,
			Tags:       f.Tags,
		}); err != nil {
			return fmt.Errorf("event %q: %w", f.Title, err)
		}
		s.created++
	}
	return nil
}

// normalizeWallClock pads "HH:MM" to the stored "HH:MM:SS" form so duplicate
// detection compares like with like.
func normalizeWallClock(value string) string {
	if len(value) == 5 {
		return value + ":00"
	}
	return value
}

func sameDay(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
