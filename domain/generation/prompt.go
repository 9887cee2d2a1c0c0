// Package generation runs segment_make jobs: retrieve context, write the
// script through the LLM adapter, and hand the segment to rendering.
package generation

import (
	"fmt"
	"strings"
	"time"

	"github.com/radioforge/radioforge/domain/programming"
	"github.com/radioforge/radioforge/domain/retrieval"
)

// Script length bounds in characters. Out-of-bounds scripts get corrective
// retries before the segment fails.
const (
	MinScriptChars     = 50
	MaxScriptChars     = 5000
	MaxScriptAttempts  = 3 // initial try plus two corrective retries
	PromptContextCount = 5
)

// BuildQueryText composes the deterministic retrieval query for a slot:
// same segment, same query, same corpus, same retrieval.
func BuildQueryText(slotType string, futureDate time.Time, program *programming.Program) string {
	var b strings.Builder
	fmt.Fprintf(&b, "What %s content is relevant around %s?",
		slotType, futureDate.Format("January 2, 2006"))
	if program.Genre != "" {
		fmt.Fprintf(&b, " The show is a %s program.", program.Genre)
	}
	if program.Description != "" {
		b.WriteString(" ")
		b.WriteString(program.Description)
	}
	return b.String()
}

// BuildSystemPrompt describes the show and its hosts to the script model.
func BuildSystemPrompt(program *programming.Program, slotType string, futureDate time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You write radio scripts for %q, a", program.Name)
	if program.Genre != "" {
		fmt.Fprintf(&b, " %s", program.Genre)
	}
	fmt.Fprintf(&b, " radio program. Today's date is %s.\n", futureDate.Format("January 2, 2006"))
	fmt.Fprintf(&b, "Write a %s segment in %s.\n", slotType, languageName(program.Language))

	switch {
	case len(program.DJs) == 0:
		// Seed data may not have DJs yet; the model writes a neutral voice.
	case len(program.DJs) == 1:
		b.WriteString(describeDJ(program.DJs[0], "The host"))
	default:
		format := "dialogue"
		if program.ConversationFormat != nil {
			format = *program.ConversationFormat
		}
		fmt.Fprintf(&b, "The segment is a %s between %d hosts.\n", format, len(program.DJs))
		b.WriteString(describeDJ(program.DJs[0], "The primary host"))
		for _, dj := range program.DJs[1:] {
			b.WriteString(describeDJ(dj, "Co-host"))
		}
	}

	fmt.Fprintf(&b, "The script must be between %d and %d characters of spoken text, markdown formatted, with no sound-effect directions.",
		MinScriptChars, MaxScriptChars)
	return b.String()
}

func describeDJ(dj *programming.DJ, role string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is %s", role, dj.Name)
	if len(dj.Personality) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(dj.Personality, ", "))
	}
	if dj.Bio != "" {
		fmt.Fprintf(&b, ": %s", dj.Bio)
	}
	b.WriteString("\n")
	return b.String()
}

// BuildUserPrompt assembles the retrieval context block.
func BuildUserPrompt(queryText string, context []retrieval.ScoredChunk) string {
	var b strings.Builder
	b.WriteString(queryText)
	if len(context) > 0 {
		b.WriteString("\n\nUse the following source material:\n")
		for _, chunk := range context {
			title := chunk.Title
			if title == "" {
				title = "untitled"
			}
			fmt.Fprintf(&b, "\n[%s]\n%s\n", title, chunk.ChunkText)
		}
	}
	return b.String()
}

// CorrectiveInstruction is appended when a draft misses the length bounds.
func CorrectiveInstruction(scriptLen int) string {
	if scriptLen < MinScriptChars {
		return fmt.Sprintf("\n\nYour previous draft was %d characters, which is too short. Write at least %d characters.",
			scriptLen, MinScriptChars)
	}
	return fmt.Sprintf("\n\nYour previous draft was %d characters, which is too long. Stay under %d characters.",
		scriptLen, MaxScriptChars)
}

// FallbackScript is the deterministic template used when no LLM backend is
// configured, so the pipeline still produces airable segments in dev.
func FallbackScript(program *programming.Program, slotType string, futureDate time.Time, context []retrieval.ScoredChunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s - %s\n\n", program.Name, titleCase(slotType))
	fmt.Fprintf(&b, "It is %s and you are listening to %s.\n\n",
		futureDate.Format("Monday, January 2, 2006"), program.Name)
	for _, chunk := range context {
		if chunk.Title != "" {
			fmt.Fprintf(&b, "In the news: %s.\n", chunk.Title)
		}
	}
	b.WriteString("\nStay tuned for more after this.")
	return b.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func languageName(code string) string {
	switch code {
	case "en", "":
		return "English"
	case "no":
		return "Norwegian"
	case "de":
		return "German"
	case "fr":
		return "French"
	case "es":
		return "Spanish"
	default:
		return code
	}
}

// ScriptInBounds checks the length contract.
func ScriptInBounds(script string) bool {
	n := len(script)
	return n >= MinScriptChars && n <= MaxScriptChars
}
