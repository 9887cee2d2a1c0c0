package retrieval

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecencyScore(t *testing.T) {
	ref := time.Date(2525, 6, 1, 12, 0, 0, 0, time.UTC)
	daysAgo := func(d float64) time.Time {
		return ref.Add(-time.Duration(d * 24 * float64(time.Hour)))
	}

	tests := []struct {
		name string
		days float64
		want float64
	}{
		{"same day", 0, 1.0},
		{"within a week", 5, 1.0},
		{"week boundary", 7, 1.0},
		{"mid first ramp", 17.5, 0.8},
		{"four week boundary", 28, 0.6},
		{"two months old", 60, 0.6 - (60-28)/62.0*0.4},
		{"ninety day boundary", 90, 0.2},
		{"ancient history", 120, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, recencyScore(daysAgo(tt.days), ref), 1e-9)
		})
	}
}

func TestRecencyScoreUpcomingEvent(t *testing.T) {
	ref := time.Date(2525, 6, 1, 0, 0, 0, 0, time.UTC)
	upcoming := ref.Add(72 * time.Hour)
	assert.Equal(t, 1.0, recencyScore(upcoming, ref))
}

func TestFuseWeights(t *testing.T) {
	ref := time.Now()
	id := uuid.New()
	lexical := []candidate{{ChunkID: id, SourceType: "universe_doc", LexicalRank: 0.06}}
	vector := []candidate{{ChunkID: id, SourceType: "universe_doc", VectorScore: 0.8}}

	chunks := fuse(lexical, vector, true, ref)
	require.Len(t, chunks, 1)

	// Single lexical candidate normalizes to 1.0, so the final score is
	// 0.7·0.8 + 0.3·1.0. Doc chunks get no recency term.
	assert.InDelta(t, 0.8, chunks[0].VectorScore, 1e-9)
	assert.InDelta(t, 1.0, chunks[0].LexicalScore, 1e-9)
	assert.Equal(t, 0.0, chunks[0].RecencyScore)
	assert.InDelta(t, 0.7*0.8+0.3*1.0, chunks[0].FinalScore, 1e-9)
}

func TestFuseLexicalNormalization(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	lexical := []candidate{
		{ChunkID: a, SourceType: "universe_doc", LexicalRank: 0.10},
		{ChunkID: b, SourceType: "universe_doc", LexicalRank: 0.05},
	}

	chunks := fuse(lexical, nil, true, time.Now())
	require.Len(t, chunks, 2)

	byID := map[uuid.UUID]ScoredChunk{}
	for _, c := range chunks {
		byID[c.ChunkID] = c
	}
	assert.InDelta(t, 1.0, byID[a].LexicalScore, 1e-9)
	assert.InDelta(t, 0.5, byID[b].LexicalScore, 1e-9)
}

func TestFuseRecencyBoostOnEventChunks(t *testing.T) {
	ref := time.Date(2525, 6, 1, 0, 0, 0, 0, time.UTC)
	recent := ref.Add(-5 * 24 * time.Hour)
	id := uuid.New()

	vector := []candidate{{ChunkID: id, SourceType: "event", EventTime: &recent, VectorScore: 0.8}}

	boosted := fuse(nil, vector, true, ref)
	require.Len(t, boosted, 1)
	assert.InDelta(t, 1.0, boosted[0].RecencyScore, 1e-9)
	assert.InDelta(t, 0.7*0.8+0.3*1.0, boosted[0].FinalScore, 1e-9)

	unboosted := fuse(nil, vector, false, ref)
	require.Len(t, unboosted, 1)
	// The sub-score is still reported, it just does not enter the total.
	assert.InDelta(t, 1.0, unboosted[0].RecencyScore, 1e-9)
	assert.InDelta(t, 0.7*0.8, unboosted[0].FinalScore, 1e-9)
}

func TestFuseMergesDuplicateChunks(t *testing.T) {
	shared, lexOnly, vecOnly := uuid.New(), uuid.New(), uuid.New()
	lexical := []candidate{
		{ChunkID: shared, SourceType: "universe_doc", LexicalRank: 0.08},
		{ChunkID: lexOnly, SourceType: "universe_doc", LexicalRank: 0.04},
	}
	vector := []candidate{
		{ChunkID: shared, SourceType: "universe_doc", VectorScore: 0.9},
		{ChunkID: vecOnly, SourceType: "universe_doc", VectorScore: 0.7},
	}

	chunks := fuse(lexical, vector, true, time.Now())
	assert.Len(t, chunks, 3)

	byID := map[uuid.UUID]ScoredChunk{}
	for _, c := range chunks {
		byID[c.ChunkID] = c
	}
	assert.InDelta(t, 0.9, byID[shared].VectorScore, 1e-9)
	assert.InDelta(t, 1.0, byID[shared].LexicalScore, 1e-9)
	assert.Zero(t, byID[lexOnly].VectorScore)
	assert.Zero(t, byID[vecOnly].LexicalScore)
}

func TestSortChunksTieBreakers(t *testing.T) {
	older := time.Date(2525, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)
	idA := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	idB := uuid.MustParse("00000000-0000-0000-0000-00000000000b")

	chunks := []ScoredChunk{
		{ChunkID: idB, FinalScore: 0.5, Importance: 5, CreatedAt: older},
		{ChunkID: idA, FinalScore: 0.5, Importance: 5, CreatedAt: older},
		{ChunkID: uuid.New(), FinalScore: 0.5, Importance: 5, CreatedAt: newer},
		{ChunkID: uuid.New(), FinalScore: 0.5, Importance: 9, CreatedAt: older},
		{ChunkID: uuid.New(), FinalScore: 0.9, Importance: 1, CreatedAt: older},
	}
	sortChunks(chunks)

	assert.InDelta(t, 0.9, chunks[0].FinalScore, 1e-9)   // score first
	assert.Equal(t, 9, chunks[1].Importance)             // then importance
	assert.Equal(t, newer, chunks[2].CreatedAt)          // then newer
	assert.Equal(t, idA, chunks[3].ChunkID)              // then id for stability
	assert.Equal(t, idB, chunks[4].ChunkID)
}

func TestRegconfigFor(t *testing.T) {
	tests := []struct {
		lang string
		want string
	}{
		{"", "english"},
		{"en", "english"},
		{"EN", "english"},
		{"no", "norwegian"},
		{"nb", "norwegian"},
		{"de", "german"},
		{"fr", "french"},
		{"es", "spanish"},
		{"sv", "swedish"},
		{"da", "danish"},
		{"klingon", "english"}, // unknown codes fall back
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, regconfigFor(tt.lang), "lang=%q", tt.lang)
	}
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-0.2))
	assert.Equal(t, 0.55, clamp01(0.55))
	assert.Equal(t, 1.0, clamp01(1.3))
}
