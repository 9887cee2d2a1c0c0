package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"one char rounds up", "a", 1},
		{"four chars", "abcd", 1},
		{"five chars", "abcde", 2},
		{"unicode counted as runes", "日本語のテキスト", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateTokens(tt.text))
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "collapses runs of spaces and tabs",
			in:   "one    two\t\tthree",
			want: "one two three",
		},
		{
			name: "unifies line endings",
			in:   "a\r\nb\rc",
			want: "a\nb\nc",
		},
		{
			name: "strips control characters",
			in:   "he\x00ll\x07o",
			want: "hello",
		},
		{
			name: "keeps markdown headings on their own lines",
			in:   "# Title\n\n\n\nBody   text.",
			want: "# Title\n\nBody text.",
		},
		{
			name: "trims outer whitespace",
			in:   "  \n padded \n ",
			want: "padded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "basic english",
			in:   "First sentence. Second one! Third?",
			want: []string{"First sentence.", "Second one!", "Third?"},
		},
		{
			name: "decimal points do not split",
			in:   "Version 2.5 shipped today. It works.",
			want: []string{"Version 2.5 shipped today.", "It works."},
		},
		{
			name: "cjk terminators split without trailing space",
			in:   "運河は覆われている。水は流れる。",
			want: []string{"運河は覆われている。", "水は流れる。"},
		},
		{
			name: "newline ends a sentence",
			in:   "# Heading\nBody starts here.",
			want: []string{"# Heading", "Body starts here."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.in))
		})
	}
}

func TestSplitSingleChunk(t *testing.T) {
	// ~200-word doc from the seed corpus: one sentence repeated 40 times.
	// Repetition dedupes to distinct chunk text only once packing is done,
	// so the whole body still lands in a single chunk.
	body := strings.TrimSpace(strings.Repeat("The Martian Canals are enclosed aqueducts. ", 40))

	chunks := Split(body, DefaultConfig())
	require.Len(t, chunks, 1)

	c := chunks[0]
	assert.Equal(t, 0, c.Index)
	assert.Equal(t, EstimateTokens(c.Text), c.TokenCount)
	assert.GreaterOrEqual(t, c.TokenCount, DefaultConfig().MinTokens)
	assert.LessOrEqual(t, c.TokenCount, DefaultConfig().MaxTokens)

	sum := sha256.Sum256([]byte(c.Text))
	assert.Equal(t, hex.EncodeToString(sum[:]), c.ContentHash)
}

func TestSplitDeterministic(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 120; i++ {
		b.WriteString("Sentence number ")
		b.WriteString(strings.Repeat("x", i%17))
		b.WriteString(" describes a fact about the canals. ")
	}

	first := Split(b.String(), DefaultConfig())
	second := Split(b.String(), DefaultConfig())

	require.Equal(t, len(first), len(second))
	require.Greater(t, len(first), 1)
	for i := range first {
		assert.Equal(t, first[i], second[i])
	}
}

func TestSplitOverlap(t *testing.T) {
	cfg := Config{MinTokens: 10, MaxTokens: 40, OverlapTokens: 8}

	var b strings.Builder
	for i := 0; i < 12; i++ {
		b.WriteString("Alpha beta gamma delta epsilon sentence ends here. ")
	}

	chunks := Split(b.String(), cfg)
	require.Greater(t, len(chunks), 1)

	// Each chunk after the first must start with the tail of its
	// predecessor.
	for i := 1; i < len(chunks); i++ {
		firstSentence := SplitSentences(chunks[i].Text)[0]
		assert.True(t, strings.HasSuffix(chunks[i-1].Text, firstSentence),
			"chunk %d does not overlap its predecessor", i)
	}
}

func TestSplitDropsShortTail(t *testing.T) {
	cfg := Config{MinTokens: 20, MaxTokens: 30, OverlapTokens: 0}

	// Two full chunks worth of text plus a tiny trailing sentence.
	text := strings.Repeat("This sentence carries about ten tokens of content. ", 4) + "Tiny tail."

	chunks := Split(text, cfg)
	require.NotEmpty(t, chunks)
	last := chunks[len(chunks)-1]
	assert.GreaterOrEqual(t, last.TokenCount, cfg.MinTokens)
}

func TestSplitShortInputKeptWhenOnlyChunk(t *testing.T) {
	chunks := Split("One short sentence.", DefaultConfig())
	require.Len(t, chunks, 1)
	assert.Less(t, chunks[0].TokenCount, DefaultConfig().MinTokens)
}

func TestSplitDedupesIdenticalChunks(t *testing.T) {
	cfg := Config{MinTokens: 1, MaxTokens: 12, OverlapTokens: 0}

	// Same sentence over and over packs into identical chunk texts, which
	// hash identically and collapse to one.
	text := strings.Repeat("Repeated fact about canals stays once. ", 6)

	chunks := Split(text, cfg)
	seen := map[string]bool{}
	for _, c := range chunks {
		assert.False(t, seen[c.ContentHash], "duplicate hash %s", c.ContentHash)
		seen[c.ContentHash] = true
	}
}

func TestSplitEmpty(t *testing.T) {
	assert.Nil(t, Split("", DefaultConfig()))
	assert.Nil(t, Split("   \n\t ", DefaultConfig()))
}
