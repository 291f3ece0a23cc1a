// Package llm provides the single-attempt completion client and attachment
// uploader for an OpenAI-compatible provider.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxResponseSize limits the provider response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// uploadPurpose tags uploaded files for later prompt use.
const uploadPurpose = "assistants"

// Client issues authenticated requests to a completion provider. Every call
// is a single attempt: a failure is surfaced to the caller, never retried.
type Client struct {
	provider    Provider
	baseURL     string
	model       string
	httpClient  *http.Client
	credentials CredentialSource
	logger      *slog.Logger
}

// Request defines a completion request.
type Request struct {
	// Messages is the message sequence to send to the provider.
	Messages []Message

	// Temperature controls randomness. nil uses the provider default.
	Temperature *float64

	// MaxTokens limits response length. 0 uses the provider default.
	MaxTokens int
}

// TokenUsage represents token consumption details for a completion call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response contains the completion result.
type Response struct {
	// RequestID uniquely identifies this call for log correlation.
	RequestID string

	// Content is the generated text. Empty when the provider returned a
	// choice with no message content.
	Content string

	// Model is the model that produced the response.
	Model string

	// Usage contains token consumption metrics.
	Usage TokenUsage

	// FinishReason indicates why generation stopped.
	FinishReason string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the transport timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		client.httpClient.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient creates a completion client for the named provider.
func NewClient(providerName, baseURL, model string, credentials CredentialSource, opts ...ClientOption) (*Client, error) {
	provider := GetProvider(providerName)
	if provider == nil {
		return nil, fmt.Errorf("unknown provider %q (registered: %s)",
			providerName, strings.Join(ListProviders(), ", "))
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	c := &Client{
		provider:    provider,
		baseURL:     baseURL,
		model:       model,
		credentials: credentials,
		httpClient: &http.Client{
			Timeout: 180 * time.Second, // Allow time for model responses
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Complete sends one completion request. It fails with MissingCredentialError
// when no credential is configured and ProviderError on a non-2xx response.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	credential, err := c.resolveCredential(ctx)
	if err != nil {
		return nil, err
	}

	requestID := uuid.New().String()

	body, err := c.provider.BuildRequestBody(c.model, req.Messages, req.Temperature, req.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("build request body: %w", err)
	}

	url := c.provider.CompletionURL(c.baseURL)
	c.logger.Debug("Sending completion request",
		"request_id", requestID,
		"provider", c.provider.Name(),
		"model", c.model,
		"messages", len(req.Messages))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+credential)
	c.provider.SetHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, &ProviderError{Message: fmt.Sprintf("read response body: %v", err)}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &ProviderError{
			StatusCode: httpResp.StatusCode,
			Message:    c.upstreamMessage(httpResp, respBody),
		}
	}

	resp, err := c.provider.ParseResponse(respBody, c.model)
	if err != nil {
		return nil, &ProviderError{Message: fmt.Sprintf("parse response: %v", err)}
	}

	resp.RequestID = requestID
	return resp, nil
}

// UploadFile uploads raw file bytes and returns the provider's opaque file
// handle. A failure is an UploadError; the caller decides whether to resubmit.
func (c *Client) UploadFile(ctx context.Context, data []byte, fileName, mimeType string) (string, error) {
	credential, err := c.resolveCredential(ctx)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if err := writer.WriteField("purpose", uploadPurpose); err != nil {
		return "", fmt.Errorf("write purpose field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	url := c.provider.FileUploadURL(c.baseURL)
	c.logger.Debug("Uploading attachment",
		"provider", c.provider.Name(),
		"file_name", fileName,
		"mime_type", mimeType,
		"bytes", len(data))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", fmt.Errorf("create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+credential)
	c.provider.SetHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &UploadError{Message: fmt.Sprintf("upload failed: %v", err)}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return "", &UploadError{Message: fmt.Sprintf("read upload response: %v", err)}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return "", &UploadError{
			StatusCode: httpResp.StatusCode,
			Message:    c.upstreamMessage(httpResp, respBody),
		}
	}

	var uploaded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &uploaded); err != nil {
		return "", &UploadError{Message: fmt.Sprintf("parse upload response: %v", err)}
	}
	if uploaded.ID == "" {
		return "", &UploadError{Message: "upload response missing file id"}
	}

	return uploaded.ID, nil
}

func (c *Client) resolveCredential(ctx context.Context) (string, error) {
	credential, err := c.credentials.Credential(ctx)
	if err != nil {
		return "", err
	}
	if credential == "" {
		return "", &MissingCredentialError{}
	}
	return credential, nil
}

// upstreamMessage extracts the provider's error message from a non-2xx body,
// falling back to a status-based message.
func (c *Client) upstreamMessage(resp *http.Response, body []byte) string {
	if msg := c.provider.ParseErrorMessage(body); msg != "" {
		return msg
	}
	return fmt.Sprintf("error %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}
