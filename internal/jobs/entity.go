package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Type identifies what a job does and which handler runs it.
type Type string

const (
	TypeKBIndex       Type = "kb_index"
	TypeChunkEmbed    Type = "chunk_embed"
	TypeSegmentMake   Type = "segment_make"
	TypeSegmentRender Type = "segment_render"
	TypeSegmentMaster Type = "segment_master"
	TypeScheduleHour  Type = "schedule_hour"
)

// Status represents the state of a job
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job is a row in radio.jobs. Rows are claimed under a lease
// (locked_by/locked_until) and recovered by the janitor when the lease
// expires.
type Job struct {
	bun.BaseModel `bun:"table:radio.jobs,alias:j"`

	ID             uuid.UUID       `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Type           Type            `bun:"job_type,notnull" json:"jobType"`
	Payload        json.RawMessage `bun:"payload,type:jsonb,notnull" json:"payload"`
	Status         Status          `bun:"status,notnull,default:'pending'" json:"status"`
	Priority       int             `bun:"priority,notnull,default:5" json:"priority"`
	ScheduledFor   time.Time       `bun:"scheduled_for,notnull,default:now()" json:"scheduledFor"`
	Attempts       int             `bun:"attempts,notnull,default:0" json:"attempts"`
	MaxAttempts    int             `bun:"max_attempts,notnull,default:5" json:"maxAttempts"`
	LockedUntil    *time.Time      `bun:"locked_until" json:"lockedUntil,omitempty"`
	LockedBy       *string         `bun:"locked_by" json:"lockedBy,omitempty"`
	IdempotencyKey *string         `bun:"idempotency_key" json:"idempotencyKey,omitempty"`
	LastError      *string         `bun:"last_error" json:"lastError,omitempty"`
	ErrorDetails   map[string]any  `bun:"error_details,type:jsonb" json:"errorDetails,omitempty"`
	StartedAt      *time.Time      `bun:"started_at" json:"startedAt,omitempty"`
	CompletedAt    *time.Time      `bun:"completed_at" json:"completedAt,omitempty"`
	CreatedAt      time.Time       `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt      time.Time       `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
}

// DeadLetterJob is a frozen copy of a job that exhausted its retries or
// failed validation. No automatic retries happen from here.
type DeadLetterJob struct {
	bun.BaseModel `bun:"table:radio.dead_letter_queue,alias:dlq"`

	ID           uuid.UUID       `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	JobID        uuid.UUID       `bun:"job_id,type:uuid,notnull" json:"jobId"`
	JobType      Type            `bun:"job_type,notnull" json:"jobType"`
	Payload      json.RawMessage `bun:"payload,type:jsonb,notnull" json:"payload"`
	LastError    string          `bun:"last_error,notnull" json:"lastError"`
	ErrorKind    string          `bun:"error_kind,notnull" json:"errorKind"`
	FailureCount int             `bun:"failure_count,notnull" json:"failureCount"`
	CreatedAt    time.Time       `bun:"created_at,notnull,default:now()" json:"createdAt"`
}

// Typed payloads. Workers unmarshal the job payload into one of these.

// KBIndexPayload triggers a full (re)index of one source.
type KBIndexPayload struct {
	SourceID   uuid.UUID `json:"source_id"`
	SourceType string    `json:"source_type"`
}

// ChunkEmbedPayload triggers a targeted re-embed of a single chunk.
type ChunkEmbedPayload struct {
	ChunkID   uuid.UUID `json:"chunk_id"`
	ChunkText string    `json:"chunk_text"`
}

// SegmentPayload drives segment_make, segment_render and segment_master.
type SegmentPayload struct {
	SegmentID uuid.UUID `json:"segment_id"`
}

// ScheduleHourPayload asks the scheduler to materialize one specific hour.
type ScheduleHourPayload struct {
	HourStart time.Time `json:"hour_start_ts"`
}
