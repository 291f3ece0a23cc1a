package task

import (
	"strings"
	"testing"

	"github.com/pressdesk/pressdesk/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_ReplacesEveryOccurrence(t *testing.T) {
	template := "Summarize: {{input_text}}\n\nAgain: {{input_text}}"
	got := Compile(template, "Hello world")

	assert.Equal(t, "Summarize: Hello world\n\nAgain: Hello world", got)
	assert.NotContains(t, got, PlaceholderToken)
}

func TestCompile_TokenAbsent_TemplateUnchanged(t *testing.T) {
	template := "Translate this to French."
	got := Compile(template, "some input that must not appear")

	// No auto-append: a template without the token yields a prompt with no
	// injected content.
	assert.Equal(t, template, got)
	assert.NotContains(t, got, "some input")
}

func TestCompile_InputContainingToken(t *testing.T) {
	got := Compile("X: {{input_text}}", "literal {{input_text}} inside")
	assert.Equal(t, "X: literal {{input_text}} inside", got)
}

func TestBuildMessages_NoAttachments(t *testing.T) {
	messages := BuildMessages("sys", "user prompt", nil)

	require.Len(t, messages, 2)
	assert.Equal(t, llm.RoleSystem, messages[0].Role)
	assert.Equal(t, "sys", messages[0].Content)
	assert.Equal(t, llm.RoleUser, messages[1].Role)
	assert.Equal(t, "user prompt", messages[1].Content)
	assert.Empty(t, messages[1].Parts)
}

func TestBuildMessages_AttachmentsPreserveOrder(t *testing.T) {
	messages := BuildMessages("sys", "the prompt", []string{"f1", "f2"})

	require.Len(t, messages, 2)
	parts := messages[1].Parts
	require.Len(t, parts, 3)
	assert.Equal(t, llm.PartTypeText, parts[0].Type)
	assert.Equal(t, "the prompt", parts[0].Text)
	assert.Equal(t, llm.PartTypeFile, parts[1].Type)
	assert.Equal(t, "f1", parts[1].FileID)
	assert.Equal(t, "f2", parts[2].FileID)
}

func TestBuildRefinementMessages(t *testing.T) {
	messages := BuildRefinementMessages("prior output", "make shorter")

	require.Len(t, messages, 2)
	assert.Equal(t, llm.RoleSystem, messages[0].Role)

	user := messages[1]
	assert.Equal(t, llm.RoleUser, user.Role)
	assert.Contains(t, user.Content, "prior output")
	assert.Contains(t, user.Content, "make shorter")
	// Refinement never re-attaches files.
	assert.Empty(t, user.Parts)
}

func TestDefaultSystemPrompt_PinsHTMLContract(t *testing.T) {
	assert.True(t, strings.Contains(DefaultSystemPrompt, "HTML"))
}
