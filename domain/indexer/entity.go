// Package indexer keeps the retrieval corpus consistent with source
// content: it chunks sources, embeds new chunks through the content-hash
// cache and atomically swaps chunk generations per source.
package indexer

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Chunk is a row in radio.kb_chunks. Chunks never mutate after creation;
// a reindex inserts the new generation and deletes stale rows in one
// transaction.
type Chunk struct {
	bun.BaseModel `bun:"table:radio.kb_chunks,alias:c"`

	ID          uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	SourceID    uuid.UUID `bun:"source_id,type:uuid,notnull" json:"sourceId"`
	SourceType  string    `bun:"source_type,notnull" json:"sourceType"`
	ChunkIndex  int       `bun:"chunk_index,notnull" json:"chunkIndex"`
	ChunkText   string    `bun:"chunk_text,notnull" json:"chunkText"`
	TokenCount  int       `bun:"token_count,notnull" json:"tokenCount"`
	Language    string    `bun:"language,notnull,default:'en'" json:"language"`
	ContentHash string    `bun:"content_hash,notnull" json:"contentHash"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
}

// Embedding is a row in radio.kb_embeddings: one vector per content hash,
// shared across chunks with identical text. Insert-if-absent semantics.
type Embedding struct {
	bun.BaseModel `bun:"table:radio.kb_embeddings,alias:e"`

	ContentHash string    `bun:"content_hash,pk" json:"contentHash"`
	Model       string    `bun:"model,notnull" json:"model"`
	Vector      string    `bun:"vector,type:vector(1024)" json:"-"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
}

// Index status values.
const (
	IndexStatusPending    = "pending"
	IndexStatusProcessing = "processing"
	IndexStatusComplete   = "complete"
	IndexStatusFailed     = "failed"
)

// IndexStatus is a row in radio.kb_index_status, one per source.
type IndexStatus struct {
	bun.BaseModel `bun:"table:radio.kb_index_status,alias:ks"`

	SourceID      uuid.UUID  `bun:"source_id,pk,type:uuid" json:"sourceId"`
	SourceType    string     `bun:"source_type,notnull" json:"sourceType"`
	Status        string     `bun:"status,notnull,default:'pending'" json:"status"`
	ChunkCount    int        `bun:"chunk_count,notnull,default:0" json:"chunkCount"`
	EmbeddedCount int        `bun:"embedded_count,notnull,default:0" json:"embeddedCount"`
	LastIndexedAt *time.Time `bun:"last_indexed_at" json:"lastIndexedAt,omitempty"`
	LastError     *string    `bun:"last_error" json:"lastError,omitempty"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
}

// sourceText is the loaded text of a universe doc or event.
type sourceText struct {
	Title    string
	Body     string
	Language string
}
