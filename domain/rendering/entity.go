// Package rendering turns scripts into audio: the segment_render worker
// synthesizes speech into the content-addressed asset store, and the
// segment_master worker validates duration and marks segments ready.
package rendering

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Asset kinds.
const (
	KindSegmentAudio = "segment_audio"
)

// Asset is a row in radio.assets. Assets are content-addressed: the same
// audio bytes always map to the same row, so replayed renders are free.
type Asset struct {
	bun.BaseModel `bun:"table:radio.assets,alias:a"`

	ID          uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	ContentHash string    `bun:"content_hash,notnull" json:"contentHash"`
	Kind        string    `bun:"kind,notnull" json:"kind"`
	MimeType    string    `bun:"mime_type,notnull,default:'audio/wav'" json:"mimeType"`
	SizeBytes   int64     `bun:"size_bytes,notnull" json:"sizeBytes"`
	DurationSec *float64  `bun:"duration_sec" json:"durationSec,omitempty"`
	StoragePath string    `bun:"storage_path,notnull" json:"storagePath"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
}
