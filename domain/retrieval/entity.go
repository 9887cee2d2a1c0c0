// Package retrieval implements hybrid search over the knowledge corpus:
// vector similarity fused with lexical rank, optionally boosted by event
// recency relative to a reference time.
package retrieval

import (
	"time"

	"github.com/google/uuid"
)

// DefaultTopK is the number of chunks returned when the query does not ask
// for a specific count.
const DefaultTopK = 12

// MaxTopK caps how many chunks one query may request.
const MaxTopK = 50

// Filters narrows the candidate set before scoring.
type Filters struct {
	SourceTypes []string `json:"source_types,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Query is the request body of POST /rag/query.
type Query struct {
	Text          string     `json:"text"`
	Language      string     `json:"lang,omitempty"`
	Filters       Filters    `json:"filters"`
	TopK          int        `json:"top_k,omitempty"`
	RecencyBoost  *bool      `json:"recency_boost,omitempty"`
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
	AllowDegraded *bool      `json:"allow_degraded,omitempty"`
}

// ScoredChunk is one retrieval hit with every sub-score exposed, so callers
// can audit why a chunk ranked where it did.
type ScoredChunk struct {
	ChunkID      uuid.UUID  `json:"chunkId"`
	SourceID     uuid.UUID  `json:"sourceId"`
	SourceType   string     `json:"sourceType"`
	ChunkIndex   int        `json:"chunkIndex"`
	Title        string     `json:"title"`
	ChunkText    string     `json:"chunkText"`
	Importance   int        `json:"importance"`
	EventTime    *time.Time `json:"eventTime,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	VectorScore  float64    `json:"vectorScore"`
	LexicalScore float64    `json:"lexicalScore"`
	RecencyScore float64    `json:"recencyScore"`
	FinalScore   float64    `json:"finalScore"`
}

// Result is the response body of POST /rag/query.
type Result struct {
	Chunks       []ScoredChunk `json:"chunks"`
	TotalResults int           `json:"totalResults"`
	QueryTimeMS  int64         `json:"queryTimeMs"`
	Degraded     bool          `json:"degraded"`
}

// candidate is one row from either candidate query, before fusion.
type candidate struct {
	ChunkID     uuid.UUID  `bun:"chunk_id"`
	SourceID    uuid.UUID  `bun:"source_id"`
	SourceType  string     `bun:"source_type"`
	ChunkIndex  int        `bun:"chunk_index"`
	ChunkText   string     `bun:"chunk_text"`
	Title       string     `bun:"title"`
	Importance  int        `bun:"importance"`
	EventTime   *time.Time `bun:"event_time"`
	CreatedAt   time.Time  `bun:"created_at"`
	VectorScore float64    `bun:"vector_score"`
	LexicalRank float64    `bun:"lexical_rank"`
}
