// Package chunker splits source text into token-bounded, content-hashed
// chunks used as retrieval units. The same input always produces the same
// chunk sequence and hashes regardless of host.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

type Config struct {
	// MinTokens is the smallest chunk emitted (a trailing fragment below
	// this is dropped unless it is the only chunk).
	MinTokens int
	// MaxTokens bounds chunk size.
	MaxTokens int
	// OverlapTokens is the amount of trailing text re-emitted at the head
	// of the next chunk so facts spanning a boundary stay retrievable.
	OverlapTokens int
}

func DefaultConfig() Config {
	return Config{
		MinTokens:     100,
		MaxTokens:     800,
		OverlapTokens: 50,
	}
}

// Chunk is one token-bounded slice of normalized source text.
type Chunk struct {
	Text        string
	Index       int
	TokenCount  int
	ContentHash string
}

// EstimateTokens approximates the token count of text at ~4 characters per
// token. Every component must use this same estimator so chunk boundaries
// are reproducible.
func EstimateTokens(text string) int {
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// Hash returns the lowercase hex SHA-256 of text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Normalize prepares raw source text for chunking: line endings unified,
// control characters stripped, horizontal whitespace collapsed, blank-line
// runs reduced. Markdown heading lines survive intact.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			b.WriteRune(r)
		}
	}
	text = b.String()

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}

// sentence terminators; ASCII ones require trailing whitespace, the
// full-width ones terminate on their own.
var (
	asciiTerminators = map[rune]bool{'.': true, '!': true, '?': true}
	cjkTerminators   = map[rune]bool{'。': true, '！': true, '？': true, '…': true}
)

// SplitSentences splits normalized text on sentence boundaries. ASCII
// terminators end a sentence when followed by whitespace; full-width
// terminators end one unconditionally. Newlines always end a sentence, which
// keeps markdown headings as their own unit.
func SplitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)

	start := 0
	flush := func(end int) {
		s := strings.TrimSpace(string(runes[start:end]))
		if s != "" {
			sentences = append(sentences, s)
		}
		start = end
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\n':
			flush(i + 1)
		case cjkTerminators[r]:
			flush(i + 1)
		case asciiTerminators[r]:
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				flush(i + 1)
			}
		}
	}
	flush(len(runes))

	return sentences
}

// Split normalizes text and greedily packs its sentences into chunks that
// respect the configured token bounds, re-emitting trailing sentences as
// overlap. Duplicate chunks (identical content hash) within the same input
// are skipped.
func Split(text string, cfg Config) []Chunk {
	if cfg.MinTokens <= 0 || cfg.MaxTokens <= 0 || cfg.MinTokens > cfg.MaxTokens {
		cfg = DefaultConfig()
	}
	if cfg.OverlapTokens < 0 {
		cfg.OverlapTokens = 0
	}

	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}

	sentences := SplitSentences(normalized)
	if len(sentences) == 0 {
		return nil
	}

	type packed struct {
		sentences []string
		tokens    int
	}

	var groups []packed
	cur := packed{}

	appendSentence := func(s string) {
		cur.sentences = append(cur.sentences, s)
		cur.tokens += EstimateTokens(s)
	}

	for _, s := range sentences {
		st := EstimateTokens(s)
		if cur.tokens > 0 && cur.tokens+st > cfg.MaxTokens {
			groups = append(groups, cur)

			// Seed the next chunk with trailing sentences covering at
			// least OverlapTokens.
			var overlap []string
			covered := 0
			for i := len(cur.sentences) - 1; i >= 0 && covered < cfg.OverlapTokens; i-- {
				overlap = append([]string{cur.sentences[i]}, overlap...)
				covered += EstimateTokens(cur.sentences[i])
			}
			cur = packed{}
			for _, o := range overlap {
				appendSentence(o)
			}
		}
		appendSentence(s)
	}
	if cur.tokens > 0 {
		groups = append(groups, cur)
	}

	// Drop a trailing fragment below the minimum unless it is all we have.
	if len(groups) > 1 && groups[len(groups)-1].tokens < cfg.MinTokens {
		groups = groups[:len(groups)-1]
	}

	seen := make(map[string]bool, len(groups))
	chunks := make([]Chunk, 0, len(groups))
	for _, g := range groups {
		chunkText := strings.Join(g.sentences, " ")
		hash := Hash(chunkText)
		if seen[hash] {
			continue
		}
		seen[hash] = true
		chunks = append(chunks, Chunk{
			Text:        chunkText,
			Index:       len(chunks),
			TokenCount:  EstimateTokens(chunkText),
			ContentHash: hash,
		})
	}

	return chunks
}
