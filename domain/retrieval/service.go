package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/radioforge/radioforge/pkg/apperror"
	"github.com/radioforge/radioforge/pkg/embeddings"
	"github.com/radioforge/radioforge/pkg/logger"
	"github.com/radioforge/radioforge/pkg/pgutils"
	"github.com/radioforge/radioforge/pkg/radiometrics"
)

// Fusion weights. Vector similarity dominates; the recency term only
// applies to event chunks and only when the boost is on.
const (
	vectorWeight  = 0.7
	lexicalWeight = 0.3
	recencyWeight = 0.3
)

// candidateMultiplier sizes the candidate pool relative to top_k so fusion
// has enough overlap between the two rankings to work with.
const candidateMultiplier = 4

// Service is the hybrid retrieval engine.
type Service struct {
	repo     *Repository
	embedder embeddings.Client
	log      *slog.Logger
}

// NewService creates a new retrieval service
func NewService(repo *Repository, embedder embeddings.Client, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		embedder: embedder,
		log:      log.With(logger.Scope("retrieval.service")),
	}
}

// Retrieve runs one hybrid query. Identical inputs against an unchanged
// corpus return identical results.
func (s *Service) Retrieve(ctx context.Context, q Query) (*Result, error) {
	started := time.Now()

	if strings.TrimSpace(q.Text) == "" {
		return nil, apperror.ErrValidation.WithMessage("query text is required")
	}

	topK := q.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	boost := q.RecencyBoost == nil || *q.RecencyBoost
	allowDegraded := q.AllowDegraded == nil || *q.AllowDegraded
	refTime := time.Now()
	if q.ReferenceTime != nil {
		refTime = *q.ReferenceTime
	}

	candidateLimit := topK * candidateMultiplier

	lexical, err := s.repo.LexicalCandidates(ctx, q.Text, q.Language, q.Filters, candidateLimit)
	if err != nil {
		return nil, err
	}

	vector, degraded := s.vectorCandidates(ctx, q.Text, q.Filters, candidateLimit)
	if degraded && !allowDegraded {
		return nil, apperror.ErrRetrievalDegraded
	}

	chunks := fuse(lexical, vector, boost, refTime)
	sortChunks(chunks)
	if len(chunks) > topK {
		chunks = chunks[:topK]
	}

	mode := "hybrid"
	if degraded {
		mode = "degraded"
	}
	radiometrics.RetrievalQueries.WithLabelValues(mode).Inc()

	return &Result{
		Chunks:       chunks,
		TotalResults: len(chunks),
		QueryTimeMS:  time.Since(started).Milliseconds(),
		Degraded:     degraded,
	}, nil
}

// vectorCandidates embeds the query and fetches nearest chunks. Any failure
// on this path degrades the query to lexical-only instead of failing it.
func (s *Service) vectorCandidates(ctx context.Context, text string, filters Filters, limit int) ([]candidate, bool) {
	if s.embedder.Dimension() == 0 {
		return nil, true
	}

	queryVector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		s.log.Warn("query embedding failed, degrading to lexical-only", logger.Error(err))
		return nil, true
	}

	rows, err := s.repo.VectorCandidates(ctx, pgutils.FormatVector(queryVector), filters, limit)
	if err != nil {
		s.log.Warn("vector search failed, degrading to lexical-only", logger.Error(err))
		return nil, true
	}
	return rows, false
}

// fuse merges the two candidate lists by chunk id and computes the final
// score: 0.7·vector + 0.3·lexical (+ 0.3·recency for boosted event chunks).
// Lexical ranks are normalized against the candidate maximum.
func fuse(lexical, vector []candidate, boost bool, refTime time.Time) []ScoredChunk {
	maxRank := 0.0
	for _, c := range lexical {
		if c.LexicalRank > maxRank {
			maxRank = c.LexicalRank
		}
	}

	merged := make(map[uuid.UUID]*ScoredChunk, len(lexical)+len(vector))
	for _, c := range vector {
		merged[c.ChunkID] = newScoredChunk(c)
	}
	for _, c := range lexical {
		sc, ok := merged[c.ChunkID]
		if !ok {
			sc = newScoredChunk(c)
			merged[c.ChunkID] = sc
		}
		if maxRank > 0 {
			sc.LexicalScore = c.LexicalRank / maxRank
		}
	}

	chunks := make([]ScoredChunk, 0, len(merged))
	for _, sc := range merged {
		if sc.SourceType == "event" && sc.EventTime != nil {
			sc.RecencyScore = recencyScore(*sc.EventTime, refTime)
		}
		sc.FinalScore = vectorWeight*sc.VectorScore + lexicalWeight*sc.LexicalScore
		if boost {
			sc.FinalScore += recencyWeight * sc.RecencyScore
		}
		chunks = append(chunks, *sc)
	}
	return chunks
}

func newScoredChunk(c candidate) *ScoredChunk {
	return &ScoredChunk{
		ChunkID:     c.ChunkID,
		SourceID:    c.SourceID,
		SourceType:  c.SourceType,
		ChunkIndex:  c.ChunkIndex,
		Title:       c.Title,
		ChunkText:   c.ChunkText,
		Importance:  c.Importance,
		EventTime:   c.EventTime,
		CreatedAt:   c.CreatedAt,
		VectorScore: clamp01(c.VectorScore),
	}
}

// recencyScore is the piecewise decay for event chunks: full weight inside
// a week, then two linear ramps, zero past ninety days. Future events score
// full weight, they are what the station talks about next.
func recencyScore(eventTime, refTime time.Time) float64 {
	days := refTime.Sub(eventTime).Hours() / 24
	switch {
	case days <= 7:
		return 1.0
	case days <= 28:
		return 1.0 - (days-7)/21*0.4
	case days <= 90:
		return 0.6 - (days-28)/62*0.4
	default:
		return 0.0
	}
}

// sortChunks orders by final score, then source event importance, then
// newer chunks, then chunk id so equal-scored results are stable.
func sortChunks(chunks []ScoredChunk) {
	sort.Slice(chunks, func(i, j int) bool {
		a, b := chunks[i], chunks[j]
		if a.FinalScore != b.FinalScore {
			return a.FinalScore > b.FinalScore
		}
		if a.Importance != b.Importance {
			return a.Importance > b.Importance
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ChunkID.String() < b.ChunkID.String()
	})
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
