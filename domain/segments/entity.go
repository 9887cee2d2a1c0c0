// Package segments owns the segment lifecycle: the typed state machine,
// its transition log, and the playout feed of ready segments.
package segments

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// State is a segment lifecycle state.
type State string

const (
	StateQueued      State = "queued"
	StateRetrieving  State = "retrieving"
	StateGenerating  State = "generating"
	StateRendering   State = "rendering"
	StateNormalizing State = "normalizing"
	StateReady       State = "ready"
	StateAiring      State = "airing"
	StateAired       State = "aired"
	StateArchived    State = "archived"
	StateFailed      State = "failed"
)

// Failure reasons recorded in last_error.
const (
	ReasonScriptOutOfBounds  = "ScriptOutOfBounds"
	ReasonDurationOutOfRange = "DurationOutOfRange"
	ReasonScheduleCancelled  = "ScheduleCancelled"
	ReasonRetriesExhausted   = "RetriesExhausted"
)

// transitions is the full allowed-transition table. failed is terminal for
// workers; only the operator requeue path leaves it.
var transitions = map[State][]State{
	StateQueued:      {StateRetrieving, StateFailed},
	StateRetrieving:  {StateGenerating, StateQueued, StateFailed},
	StateGenerating:  {StateRendering, StateFailed},
	StateRendering:   {StateNormalizing, StateFailed},
	StateNormalizing: {StateReady, StateFailed},
	StateReady:       {StateAiring, StateFailed},
	StateAiring:      {StateAired},
	StateAired:       {StateArchived},
	StateArchived:    {},
	StateFailed:      {StateQueued}, // operator requeue only
}

// CanTransition reports whether from → to is in the allowed table.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a state has no outgoing worker transitions.
func Terminal(s State) bool {
	return s == StateArchived
}

// Citation records one retrieval hit that informed a script. Citations are
// immutable once written.
type Citation struct {
	SourceID       uuid.UUID `json:"source_id"`
	ChunkID        uuid.UUID `json:"chunk_id"`
	Title          string    `json:"title"`
	RelevanceScore float64   `json:"relevance_score"`
}

// GenerationMetrics captures how a script was produced.
type GenerationMetrics struct {
	Model              string  `json:"model"`
	Temperature        float64 `json:"temperature"`
	PromptTokens       int     `json:"prompt_tokens"`
	OutputTokens       int     `json:"output_tokens"`
	LatencyMS          int64   `json:"latency_ms"`
	ScriptRetries      int     `json:"script_retries"`
	RetrievalDegraded  bool    `json:"retrieval_degraded"`
	RetrievalTimeMS    int64   `json:"retrieval_time_ms"`
	RetrievedChunks    int     `json:"retrieved_chunks"`
	PromptContextCount int     `json:"prompt_context_count"`
}

// Segment is a row in radio.segments.
type Segment struct {
	bun.BaseModel `bun:"table:radio.segments,alias:s"`

	ID               uuid.UUID          `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	ProgramID        uuid.UUID          `bun:"program_id,type:uuid,notnull" json:"programId"`
	SlotType         string             `bun:"slot_type,notnull" json:"slotType"`
	SlotIndex        int                `bun:"slot_index,notnull,default:0" json:"slotIndex"`
	SlotDurationSec  int                `bun:"slot_duration_sec,notnull,default:0" json:"slotDurationSec"`
	State            State              `bun:"state,notnull,default:'queued'" json:"state"`
	Language         string             `bun:"language,notnull,default:'en'" json:"language"`
	ScriptMD         *string            `bun:"script_md" json:"scriptMd,omitempty"`
	AssetID          *uuid.UUID         `bun:"asset_id,type:uuid" json:"assetId,omitempty"`
	DurationSec      *float64           `bun:"duration_sec" json:"durationSec,omitempty"`
	ScheduledStartTS time.Time          `bun:"scheduled_start_ts,notnull" json:"scheduledStartTs"`
	AiredAt          *time.Time         `bun:"aired_at" json:"airedAt,omitempty"`
	RetryCount       int                `bun:"retry_count,notnull,default:0" json:"retryCount"`
	MaxRetries       int                `bun:"max_retries,notnull,default:3" json:"maxRetries"`
	LastError        *string            `bun:"last_error" json:"lastError,omitempty"`
	Citations        []Citation         `bun:"citations,type:jsonb" json:"citations,omitempty"`
	CacheKey         *string            `bun:"cache_key" json:"cacheKey,omitempty"`
	ParentSegmentID  *uuid.UUID         `bun:"parent_segment_id,type:uuid" json:"parentSegmentId,omitempty"`
	Metrics          *GenerationMetrics `bun:"generation_metrics,type:jsonb" json:"generationMetrics,omitempty"`
	IdempotencyKey   *string            `bun:"idempotency_key" json:"idempotencyKey,omitempty"`
	CreatedAt        time.Time          `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt        time.Time          `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
}

// Transition is a row in radio.segment_transitions: the audit log of every
// state change with its actor.
type Transition struct {
	bun.BaseModel `bun:"table:radio.segment_transitions,alias:st"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	SegmentID uuid.UUID `bun:"segment_id,type:uuid,notnull" json:"segmentId"`
	FromState State     `bun:"from_state,notnull" json:"fromState"`
	ToState   State     `bun:"to_state,notnull" json:"toState"`
	Actor     string    `bun:"actor,notnull,default:''" json:"actor"`
	Note      *string   `bun:"note" json:"note,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
}

// PlayoutItem is one entry of the playout feed: a ready segment with just
// the fields the player needs.
type PlayoutItem struct {
	SegmentID        uuid.UUID `json:"segmentId"`
	ProgramID        uuid.UUID `json:"programId"`
	SlotType         string    `json:"slotType"`
	ScheduledStartTS time.Time `json:"scheduledStartTs"`
	AssetID          uuid.UUID `json:"assetId"`
	DurationSec      float64   `json:"durationSec"`
}
