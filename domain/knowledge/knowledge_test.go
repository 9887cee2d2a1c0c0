package knowledge

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radioforge/radioforge/pkg/apperror"
)

func newValidationService() *Service {
	// Validation happens before any repository or queue access, so a
	// zero-dependency service is enough for these paths.
	return NewService(nil, nil, slog.Default())
}

func TestCreateDocValidation(t *testing.T) {
	svc := newValidationService()
	ctx := context.Background()

	tests := []struct {
		name string
		req  CreateDocRequest
	}{
		{"missing title", CreateDocRequest{Content: "body"}},
		{"missing content", CreateDocRequest{Title: "t"}},
		{"blank title", CreateDocRequest{Title: "   ", Content: "body"}},
		{"unknown status", CreateDocRequest{Title: "t", Content: "body", Status: "live"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateDoc(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
		})
	}
}

func TestCreateEventValidation(t *testing.T) {
	svc := newValidationService()
	ctx := context.Background()
	now := time.Now()

	tests := []struct {
		name string
		req  CreateEventRequest
	}{
		{"missing title", CreateEventRequest{Content: "body", EventTime: now}},
		{"missing event time", CreateEventRequest{Title: "t", Content: "body"}},
		{"importance too low", CreateEventRequest{Title: "t", Content: "body", EventTime: now, Importance: -1}},
		{"importance too high", CreateEventRequest{Title: "t", Content: "body", EventTime: now, Importance: 11}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateEvent(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
		})
	}
}

func TestReindexRejectsUnknownSourceType(t *testing.T) {
	svc := newValidationService()

	_, err := svc.Reindex(context.Background(), uuid.New(), "playlist")
	require.Error(t, err)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"mars", "politics"}, normalizeTags([]string{" mars ", "", "politics", "   "}))
	assert.Empty(t, normalizeTags(nil))
}

func TestValidateDocStatus(t *testing.T) {
	for _, s := range []string{DocStatusDraft, DocStatusPublished, DocStatusArchived} {
		assert.NoError(t, validateDocStatus(s))
	}
	assert.Error(t, validateDocStatus("deleted"))
}

func TestIndexIdempotencyKey(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "kb_index:"+id.String(), indexIdempotencyKey(id))
	// Same source always yields the same key.
	assert.Equal(t, indexIdempotencyKey(id), indexIdempotencyKey(id))
}

func TestDefaultLang(t *testing.T) {
	assert.Equal(t, "en", defaultLang(""))
	assert.Equal(t, "no", defaultLang("no"))
}
