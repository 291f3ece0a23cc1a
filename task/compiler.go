package task

import (
	"fmt"
	"strings"

	"github.com/pressdesk/pressdesk/llm"
)

// PlaceholderToken is the single substitution marker in prompt templates.
const PlaceholderToken = "{{input_text}}"

// DefaultSystemPrompt is the persona sent with every initial execution. It
// pins the output contract: valid HTML, no markdown code fences.
const DefaultSystemPrompt = "You are an assistant specialized for journalists and fact-checkers. " +
	"Always respond in valid HTML without using markdown code blocks."

// refinementSystemPrompt is the fixed instruction for refinement requests.
const refinementSystemPrompt = "You are an assistant specialized for journalists and fact-checkers. " +
	"Modify the previous content according to the user's request. Respond in valid HTML " +
	"without using markdown code blocks."

// Compile replaces every occurrence of the placeholder token with inputText.
// A template without the token is returned unchanged: placeholder insertion
// is the task-authoring surface's job, never the compiler's.
func Compile(template, inputText string) string {
	return strings.ReplaceAll(template, PlaceholderToken, inputText)
}

// BuildMessages composes the system/user sequence for an initial execution.
// With attachments, the user content becomes a segment list: the full prompt
// first, then one file reference per attachment id in order.
func BuildMessages(systemPrompt, userPrompt string, attachmentIDs []string) []llm.Message {
	if len(attachmentIDs) == 0 {
		return []llm.Message{
			llm.SystemMessage(systemPrompt),
			llm.UserMessage(userPrompt),
		}
	}

	parts := make([]llm.ContentPart, 0, len(attachmentIDs)+1)
	parts = append(parts, llm.TextPart(userPrompt))
	for _, id := range attachmentIDs {
		parts = append(parts, llm.FilePart(id))
	}

	return []llm.Message{
		llm.SystemMessage(systemPrompt),
		llm.UserMessageWithParts(parts...),
	}
}

// BuildRefinementMessages composes the sequence for a refinement pass: the
// fixed refinement instruction plus a single user message embedding the
// prior output and the request as literal text. Refinement never re-attaches
// files.
func BuildRefinementMessages(priorOutput, refinementRequest string) []llm.Message {
	return []llm.Message{
		llm.SystemMessage(refinementSystemPrompt),
		llm.UserMessage(fmt.Sprintf("Previous content:\n%s\n\nRequested change: %s",
			priorOutput, refinementRequest)),
	}
}
