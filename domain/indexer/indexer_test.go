package indexer

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radioforge/radioforge/internal/jobs"
	"github.com/radioforge/radioforge/pkg/apperror"
	"github.com/radioforge/radioforge/pkg/chunker"
)

func TestHashSetsEqual(t *testing.T) {
	a := map[string]bool{"h1": true, "h2": true}
	b := map[string]bool{"h2": true, "h1": true}
	assert.True(t, hashSetsEqual(a, b))

	assert.True(t, hashSetsEqual(map[string]bool{}, map[string]bool{}))
	assert.False(t, hashSetsEqual(a, map[string]bool{"h1": true}))
	assert.False(t, hashSetsEqual(a, map[string]bool{"h1": true, "h3": true}))
}

func TestUnchangedContentProducesIdenticalHashes(t *testing.T) {
	// The unchanged-detection rests on the chunker being deterministic:
	// same source text, same hash set, no writes.
	text := "The Mars colony celebrated its tenth founding day.\n\nThe governor announced a new dome district."
	cfg := chunker.DefaultConfig()

	first := chunker.Split(text, cfg)
	second := chunker.Split(text, cfg)
	require.Equal(t, len(first), len(second))

	a := make(map[string]bool, len(first))
	for _, c := range first {
		a[c.ContentHash] = true
	}
	b := make(map[string]bool, len(second))
	for _, c := range second {
		b[c.ContentHash] = true
	}
	assert.True(t, hashSetsEqual(a, b))
}

func TestEditedContentChangesHashSet(t *testing.T) {
	cfg := chunker.DefaultConfig()
	before := chunker.Split("The shuttle departs at dawn.", cfg)
	after := chunker.Split("The shuttle departs at dusk.", cfg)
	require.NotEmpty(t, before)
	require.NotEmpty(t, after)
	assert.NotEqual(t, before[0].ContentHash, after[0].ContentHash)
}

func TestIndexHandlerRejectsMalformedPayload(t *testing.T) {
	h := NewIndexHandler(nil, slog.Default())
	assert.Equal(t, jobs.TypeKBIndex, h.Type())

	err := h.Handle(context.Background(), &jobs.Job{Payload: json.RawMessage(`{`)})
	require.Error(t, err)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	assert.False(t, apperror.IsRetryable(err))
}

func TestEmbedHandlerRejectsMalformedPayload(t *testing.T) {
	h := NewEmbedHandler(nil, slog.Default())
	assert.Equal(t, jobs.TypeChunkEmbed, h.Type())

	err := h.Handle(context.Background(), &jobs.Job{Payload: json.RawMessage(`not json`)})
	require.Error(t, err)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}
