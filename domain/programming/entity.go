// Package programming owns the station configuration: voices, DJs, format
// clocks with their slots, programs and the broadcast schedule grid.
package programming

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SecondsPerHour is the required sum of slot durations in a format clock.
const SecondsPerHour = 3600

// Conversation formats for multi-DJ programs.
const (
	FormatInterview = "interview"
	FormatPanel     = "panel"
	FormatDialogue  = "dialogue"
	FormatDebate    = "debate"
)

// Voice is a row in radio.voices: a named TTS voice preset.
type Voice struct {
	bun.BaseModel `bun:"table:radio.voices,alias:v"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Model     string    `bun:"model,notnull" json:"model"`
	Speed     float64   `bun:"speed,notnull,default:1.0" json:"speed"`
	Language  string    `bun:"language,notnull,default:'en'" json:"language"`
	CreatedAt time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
}

// DJ is a row in radio.djs: an on-air persona consumed by the generation
// worker as prompt context.
type DJ struct {
	bun.BaseModel `bun:"table:radio.djs,alias:dj"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Name        string     `bun:"name,notnull" json:"name"`
	VoiceID     *uuid.UUID `bun:"voice_id,type:uuid" json:"voiceId,omitempty"`
	Language    string     `bun:"language,notnull,default:'en'" json:"language"`
	Personality []string   `bun:"personality,array" json:"personality"`
	Bio         string     `bun:"bio,notnull,default:''" json:"bio"`
	Active      bool       `bun:"active,notnull,default:true" json:"active"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
}

// FormatClock is a row in radio.format_clocks: an hour template whose slot
// durations always sum to exactly one hour.
type FormatClock struct {
	bun.BaseModel `bun:"table:radio.format_clocks,alias:fc"`

	ID          uuid.UUID     `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Name        string        `bun:"name,notnull" json:"name"`
	Description string        `bun:"description,notnull,default:''" json:"description"`
	CreatedAt   time.Time     `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt   time.Time     `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
	Slots       []*FormatSlot `bun:"rel:has-many,join:id=clock_id" json:"slots,omitempty"`
}

// FormatSlot is a row in radio.format_slots, ordered by order_index.
type FormatSlot struct {
	bun.BaseModel `bun:"table:radio.format_slots,alias:fs"`

	ID          uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	ClockID     uuid.UUID `bun:"clock_id,type:uuid,notnull" json:"clockId"`
	SlotType    string    `bun:"slot_type,notnull" json:"slotType"`
	DurationSec int       `bun:"duration_sec,notnull" json:"durationSec"`
	OrderIndex  int       `bun:"order_index,notnull" json:"orderIndex"`
	Required    bool      `bun:"required,notnull,default:true" json:"required"`
}

// Program is a row in radio.programs. DJs are loaded via program_djs
// ordered by position; the first is the primary DJ.
type Program struct {
	bun.BaseModel `bun:"table:radio.programs,alias:p"`

	ID                 uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Name               string    `bun:"name,notnull" json:"name"`
	Description        string    `bun:"description,notnull,default:''" json:"description"`
	FormatClockID      uuid.UUID `bun:"format_clock_id,type:uuid,notnull" json:"formatClockId"`
	ConversationFormat *string   `bun:"conversation_format" json:"conversationFormat,omitempty"`
	Genre              string    `bun:"genre,notnull,default:''" json:"genre"`
	Language           string    `bun:"language,notnull,default:'en'" json:"language"`
	Active             bool      `bun:"active,notnull,default:true" json:"active"`
	CreatedAt          time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt          time.Time `bun:"updated_at,notnull,default:now()" json:"updatedAt"`

	Clock *FormatClock `bun:"rel:belongs-to,join:format_clock_id=id" json:"clock,omitempty"`
	DJs   []*DJ        `bun:"-" json:"djs,omitempty"`
}

// ProgramDJ is a row in radio.program_djs linking a program to its lineup.
type ProgramDJ struct {
	bun.BaseModel `bun:"table:radio.program_djs,alias:pd"`

	ProgramID uuid.UUID `bun:"program_id,pk,type:uuid" json:"programId"`
	DJID      uuid.UUID `bun:"dj_id,pk,type:uuid" json:"djId"`
	Position  int       `bun:"position,notnull,default:0" json:"position"`
}

// ScheduleEntry is a row in radio.broadcast_schedule. A nil DayOfWeek
// means the entry applies every day. Times are wall-clock "HH:MM:SS".
type ScheduleEntry struct {
	bun.BaseModel `bun:"table:radio.broadcast_schedule,alias:bs"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	ProgramID uuid.UUID `bun:"program_id,type:uuid,notnull" json:"programId"`
	DayOfWeek *int      `bun:"day_of_week" json:"dayOfWeek,omitempty"`
	StartTime string    `bun:"start_time" json:"startTime"`
	EndTime   string    `bun:"end_time" json:"endTime"`
	Priority  int       `bun:"priority,notnull,default:0" json:"priority"`
	Active    bool      `bun:"active,notnull,default:true" json:"active"`
	CreatedAt time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
}

// Request DTOs.

type CreateVoiceRequest struct {
	Name     string  `json:"name"`
	Model    string  `json:"model"`
	Speed    float64 `json:"speed"`
	Language string  `json:"language"`
}

type CreateDJRequest struct {
	Name        string     `json:"name"`
	VoiceID     *uuid.UUID `json:"voiceId,omitempty"`
	Language    string     `json:"language"`
	Personality []string   `json:"personality"`
	Bio         string     `json:"bio"`
}

type SlotRequest struct {
	SlotType    string `json:"slotType"`
	DurationSec int    `json:"durationSec"`
	Required    *bool  `json:"required,omitempty"`
}

type CreateClockRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Slots       []SlotRequest `json:"slots"`
}

type CreateProgramRequest struct {
	Name               string      `json:"name"`
	Description        string      `json:"description"`
	FormatClockID      uuid.UUID   `json:"formatClockId"`
	DJIDs              []uuid.UUID `json:"djIds"`
	ConversationFormat string      `json:"conversationFormat"`
	Genre              string      `json:"genre"`
	Language           string      `json:"language"`
}

type CreateScheduleRequest struct {
	ProgramID uuid.UUID `json:"programId"`
	DayOfWeek *int      `json:"dayOfWeek,omitempty"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	Priority  int       `json:"priority"`
}
