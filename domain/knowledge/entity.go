// Package knowledge owns the source content of the station's knowledge
// base: timeless universe docs and dated events. Writes enqueue kb_index
// jobs so the retrieval corpus follows the sources.
package knowledge

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Source types referenced by chunks and index jobs.
const (
	SourceTypeUniverseDoc = "universe_doc"
	SourceTypeEvent       = "event"
)

// Universe doc statuses. Only published docs are indexed.
const (
	DocStatusDraft     = "draft"
	DocStatusPublished = "published"
	DocStatusArchived  = "archived"
)

// UniverseDoc is a row in radio.universe_docs: timeless worldbuilding text.
type UniverseDoc struct {
	bun.BaseModel `bun:"table:radio.universe_docs,alias:ud"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Title     string    `bun:"title,notnull" json:"title"`
	Content   string    `bun:"content,notnull" json:"content"`
	Status    string    `bun:"status,notnull,default:'draft'" json:"status"`
	Language  string    `bun:"language,notnull,default:'en'" json:"language"`
	Tags      []string  `bun:"tags,array" json:"tags"`
	CreatedAt time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
}

// Event is a row in radio.events: dated content whose chunks get the
// recency boost in retrieval. EventTime is in the station's future
// calendar.
type Event struct {
	bun.BaseModel `bun:"table:radio.events,alias:ev"`

	ID         uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Title      string    `bun:"title,notnull" json:"title"`
	Content    string    `bun:"content,notnull" json:"content"`
	EventTime  time.Time `bun:"event_time,notnull" json:"eventTime"`
	Importance int       `bun:"importance,notnull,default:5" json:"importance"`
	Language   string    `bun:"language,notnull,default:'en'" json:"language"`
	Tags       []string  `bun:"tags,array" json:"tags"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
}

// CreateDocRequest is the request for creating a universe doc
type CreateDocRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Status   string   `json:"status,omitempty"`
	Language string   `json:"language,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// UpdateDocRequest is the request for updating a universe doc
type UpdateDocRequest struct {
	Title   *string   `json:"title,omitempty"`
	Content *string   `json:"content,omitempty"`
	Status  *string   `json:"status,omitempty"`
	Tags    *[]string `json:"tags,omitempty"`
}

// CreateEventRequest is the request for creating an event
type CreateEventRequest struct {
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	EventTime  time.Time `json:"eventTime"`
	Importance int       `json:"importance,omitempty"`
	Language   string    `json:"language,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
}

// UpdateEventRequest is the request for updating an event
type UpdateEventRequest struct {
	Title      *string    `json:"title,omitempty"`
	Content    *string    `json:"content,omitempty"`
	EventTime  *time.Time `json:"eventTime,omitempty"`
	Importance *int       `json:"importance,omitempty"`
	Tags       *[]string  `json:"tags,omitempty"`
}

// ListDocsResponse is the response for listing universe docs
type ListDocsResponse struct {
	Data       []*UniverseDoc `json:"data"`
	TotalCount int            `json:"totalCount"`
}

// ListEventsResponse is the response for listing events
type ListEventsResponse struct {
	Data       []*Event `json:"data"`
	TotalCount int      `json:"totalCount"`
}

// ReindexResponse reports the enqueued index job.
type ReindexResponse struct {
	JobID      uuid.UUID `json:"jobId"`
	SourceID   uuid.UUID `json:"sourceId"`
	SourceType string    `json:"sourceType"`
}
