// Package providers registers completion provider implementations via init().
package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pressdesk/pressdesk/llm"
)

// OpenAIProvider implements the OpenAI chat-completions and files APIs,
// including structured content segments for file attachments.
type OpenAIProvider struct{}

func init() {
	llm.RegisterProvider(&OpenAIProvider{})
}

// Name returns the provider identifier.
func (o *OpenAIProvider) Name() string {
	return "openai"
}

// CompletionURL constructs the chat completions endpoint.
func (o *OpenAIProvider) CompletionURL(baseURL string) string {
	return apiURL(baseURL, "/chat/completions")
}

// FileUploadURL constructs the file upload endpoint.
func (o *OpenAIProvider) FileUploadURL(baseURL string) string {
	return apiURL(baseURL, "/files")
}

func apiURL(baseURL, path string) string {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	if strings.HasSuffix(baseURL, path) {
		return baseURL
	}

	return baseURL + path
}

// SetHeaders adds OpenAI-specific headers. Authentication is handled by the
// client.
func (o *OpenAIProvider) SetHeaders(_ *http.Request) {}

// openAIRequest is the chat-completions request format.
type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
}

// openAIMessage carries either a plain string or a segment list as content.
type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIContentPart struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	FileID string `json:"file_id,omitempty"`
}

// BuildRequestBody creates the chat-completions request body. Messages with
// content parts serialize as a segment list, preserving part order.
func (o *OpenAIProvider) BuildRequestBody(model string, messages []llm.Message, temperature *float64, maxTokens int) ([]byte, error) {
	apiMessages := make([]openAIMessage, len(messages))
	for i, msg := range messages {
		apiMessages[i] = openAIMessage{
			Role:    msg.Role,
			Content: contentValue(msg),
		}
	}

	req := openAIRequest{
		Model:       model,
		Messages:    apiMessages,
		Temperature: temperature,
	}

	// Only set max_tokens if explicitly provided
	if maxTokens > 0 {
		req.MaxTokens = &maxTokens
	}

	return json.Marshal(req)
}

func contentValue(msg llm.Message) any {
	if len(msg.Parts) == 0 {
		return msg.Content
	}
	parts := make([]openAIContentPart, len(msg.Parts))
	for i, p := range msg.Parts {
		parts[i] = openAIContentPart{Type: p.Type, Text: p.Text, FileID: p.FileID}
	}
	return parts
}

// openAIResponse is the chat-completions response format.
type openAIResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// ParseResponse extracts the first choice's content. A 2xx response with no
// choices, or a choice with empty content, yields empty content rather than
// an error; callers substitute placeholder text.
func (o *OpenAIProvider) ParseResponse(body []byte, model string) (*llm.Response, error) {
	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse openai response: %w", err)
	}

	responseModel := resp.Model
	if responseModel == "" {
		responseModel = model
	}

	out := &llm.Response{
		Model: responseModel,
		Usage: llm.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
		out.FinishReason = resp.Choices[0].FinishReason
	}
	return out, nil
}

// openAIError is the error envelope on non-2xx responses.
type openAIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// ParseErrorMessage extracts the upstream error message, or "" if the body
// doesn't carry one.
func (o *OpenAIProvider) ParseErrorMessage(body []byte) string {
	var apiErr openAIError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return ""
	}
	return apiErr.Error.Message
}
