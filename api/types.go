package api

import (
	"errors"
	"net/http"

	"github.com/pressdesk/pressdesk/execution"
	"github.com/pressdesk/pressdesk/llm"
	"github.com/pressdesk/pressdesk/task"
)

// Request and response bodies, one type per command. Keeping the set closed
// and typed replaces the original string-keyed action dispatch.

// CreateExecutionRequest creates a new execution.
type CreateExecutionRequest struct {
	TaskID        string   `json:"task_id"`
	Title         string   `json:"title"`
	InputText     string   `json:"input_text"`
	AttachmentIDs []string `json:"attachment_ids,omitempty"`
}

// RefineRequest asks for a revision of an execution's output.
type RefineRequest struct {
	RefinementRequest string `json:"refinement_request"`
}

// UploadResponse carries the provider's opaque file handle.
type UploadResponse struct {
	FileID string `json:"file_id"`
}

// CreateTaskRequest authors a new task definition.
type CreateTaskRequest struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	PromptTemplate  string `json:"prompt"`
	UsesAttachments bool   `json:"uses_attachments"`
	Order           int    `json:"order"`
}

// UpdateTaskRequest patches named fields of an existing task. Only fields
// present in the body are applied.
type UpdateTaskRequest struct {
	Name            *string `json:"name,omitempty"`
	Description     *string `json:"description,omitempty"`
	PromptTemplate  *string `json:"prompt,omitempty"`
	UsesAttachments *bool   `json:"uses_attachments,omitempty"`
	IsActive        *bool   `json:"is_active,omitempty"`
	Order           *int    `json:"order,omitempty"`
}

// CredentialRequest sets the provider credential.
type CredentialRequest struct {
	APIKey string `json:"api_key"`
}

// CredentialStatus reports whether a credential is configured. The key
// itself is never echoed back.
type CredentialStatus struct {
	Configured bool `json:"configured"`
}

// FetchContentRequest fetches and extracts a document.
type FetchContentRequest struct {
	URL string `json:"url"`
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the structured error kind plus the message, so
// clients branch on kind rather than matching message substrings.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Error kinds exposed on the wire.
const (
	KindNotFound          = "not_found"
	KindTaskNotFound      = "task_not_found"
	KindInvalidState      = "invalid_state"
	KindMissingCredential = "missing_credential"
	KindProviderError     = "provider_error"
	KindUploadError       = "upload_error"
	KindBadRequest        = "bad_request"
	KindInternal          = "internal"
)

// classify maps an error to its wire kind and HTTP status.
func classify(err error) (string, int) {
	switch {
	case errors.Is(err, execution.ErrTaskNotFound), errors.Is(err, task.ErrNotFound):
		return KindTaskNotFound, http.StatusNotFound
	case errors.Is(err, execution.ErrNotFound):
		return KindNotFound, http.StatusNotFound
	case errors.Is(err, execution.ErrInvalidState):
		return KindInvalidState, http.StatusConflict
	case llm.IsMissingCredential(err):
		return KindMissingCredential, http.StatusUnauthorized
	case llm.IsProviderError(err):
		return KindProviderError, http.StatusBadGateway
	case llm.IsUploadError(err):
		return KindUploadError, http.StatusBadGateway
	default:
		return KindInternal, http.StatusInternalServerError
	}
}
