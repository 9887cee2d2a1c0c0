package generation

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radioforge/radioforge/domain/programming"
	"github.com/radioforge/radioforge/domain/retrieval"
)

func testProgram(djs ...*programming.DJ) *programming.Program {
	return &programming.Program{
		ID:          uuid.New(),
		Name:        "Mars Morning Drive",
		Description: "Morning news and culture from the dome districts.",
		Genre:       "news",
		Language:    "en",
		DJs:         djs,
	}
}

func TestBuildQueryTextIsDeterministic(t *testing.T) {
	program := testProgram()
	date := time.Date(2526, 3, 14, 7, 0, 0, 0, time.UTC)

	first := BuildQueryText("news", date, program)
	second := BuildQueryText("news", date, program)
	assert.Equal(t, first, second)

	assert.Contains(t, first, "What news content is relevant around March 14, 2526?")
	assert.Contains(t, first, "news program")
	assert.Contains(t, first, program.Description)
}

func TestBuildSystemPromptSoloHost(t *testing.T) {
	dj := &programming.DJ{Name: "Vera Okafor", Personality: []string{"dry", "curious"}, Bio: "A veteran of the orbital desk."}
	prompt := BuildSystemPrompt(testProgram(dj), "news", time.Date(2526, 3, 14, 0, 0, 0, 0, time.UTC))

	assert.Contains(t, prompt, "Mars Morning Drive")
	assert.Contains(t, prompt, "The host is Vera Okafor (dry, curious)")
	assert.Contains(t, prompt, "between 50 and 5000 characters")
	assert.NotContains(t, prompt, "Co-host")
}

func TestBuildSystemPromptDuoUsesConversationFormat(t *testing.T) {
	format := programming.FormatDebate
	program := testProgram(
		&programming.DJ{Name: "Vera Okafor"},
		&programming.DJ{Name: "Juno Reyes"},
	)
	program.ConversationFormat = &format

	prompt := BuildSystemPrompt(program, "culture", time.Date(2526, 3, 14, 0, 0, 0, 0, time.UTC))
	assert.Contains(t, prompt, "a debate between 2 hosts")
	assert.Contains(t, prompt, "The primary host is Vera Okafor")
	assert.Contains(t, prompt, "Co-host is Juno Reyes")
}

func TestBuildUserPromptIncludesContext(t *testing.T) {
	chunks := []retrieval.ScoredChunk{
		{Title: "Dome District Expansion", ChunkText: "The governor announced a new district."},
		{Title: "", ChunkText: "Unattributed fragment."},
	}
	prompt := BuildUserPrompt("What news content is relevant?", chunks)

	assert.True(t, strings.HasPrefix(prompt, "What news content is relevant?"))
	assert.Contains(t, prompt, "[Dome District Expansion]")
	assert.Contains(t, prompt, "[untitled]")
	assert.Contains(t, prompt, "Unattributed fragment.")
}

func TestScriptInBounds(t *testing.T) {
	assert.False(t, ScriptInBounds(strings.Repeat("a", MinScriptChars-1)))
	assert.True(t, ScriptInBounds(strings.Repeat("a", MinScriptChars)))
	assert.True(t, ScriptInBounds(strings.Repeat("a", MaxScriptChars)))
	assert.False(t, ScriptInBounds(strings.Repeat("a", MaxScriptChars+1)))
}

func TestCorrectiveInstruction(t *testing.T) {
	short := CorrectiveInstruction(10)
	assert.Contains(t, short, "too short")
	assert.Contains(t, short, "at least 50")

	long := CorrectiveInstruction(9000)
	assert.Contains(t, long, "too long")
	assert.Contains(t, long, "under 5000")
}

func TestFallbackScriptMentionsContextTitles(t *testing.T) {
	program := testProgram()
	date := time.Date(2526, 3, 14, 7, 0, 0, 0, time.UTC)
	chunks := []retrieval.ScoredChunk{
		{Title: "Dome District Expansion"},
		{Title: "Shuttle Strike Ends"},
	}

	script := FallbackScript(program, "news", date, chunks)
	require.NotEmpty(t, script)
	assert.Contains(t, script, "Mars Morning Drive")
	assert.Contains(t, script, "Dome District Expansion")
	assert.Contains(t, script, "Shuttle Strike Ends")

	// The template output itself respects the script bounds.
	assert.True(t, ScriptInBounds(script))
}
