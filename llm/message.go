package llm

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Content part types for structured user content.
const (
	PartTypeText = "text"
	PartTypeFile = "file"
)

// ContentPart is one segment of structured message content: either literal
// text or a reference to a previously uploaded file.
type ContentPart struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	FileID string `json:"file_id,omitempty"`
}

// TextPart creates a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartTypeText, Text: text}
}

// FilePart creates a file-reference content part.
func FilePart(fileID string) ContentPart {
	return ContentPart{Type: PartTypeFile, FileID: fileID}
}

// Message represents a chat message. When Parts is non-empty it takes
// precedence over Content and the provider serializes the content as a
// segment list; otherwise Content is sent as a plain string.
type Message struct {
	Role    string
	Content string
	Parts   []ContentPart
}

// SystemMessage creates a plain system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage creates a plain user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// UserMessageWithParts creates a user message with structured content.
func UserMessageWithParts(parts ...ContentPart) Message {
	return Message{Role: RoleUser, Parts: parts}
}
