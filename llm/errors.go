package llm

import (
	"errors"
	"fmt"
)

// Error types for the provider boundary. Each carries a structured kind so
// callers can branch with errors.As instead of matching message substrings;
// Message still holds the upstream text verbatim for provider-specific detail.

// MissingCredentialError indicates no API credential is configured.
type MissingCredentialError struct{}

func (e *MissingCredentialError) Error() string {
	return "no API credential configured"
}

// ProviderError indicates the completion endpoint returned a non-2xx
// response or a malformed body.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("provider error (status %d)", e.StatusCode)
}

// UploadError indicates a file upload was rejected or failed.
type UploadError struct {
	StatusCode int
	Message    string
}

func (e *UploadError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("upload error (status %d)", e.StatusCode)
}

// IsMissingCredential returns true if err is a MissingCredentialError.
func IsMissingCredential(err error) bool {
	var mc *MissingCredentialError
	return errors.As(err, &mc)
}

// IsProviderError returns true if err is a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// IsUploadError returns true if err is an UploadError.
func IsUploadError(err error) bool {
	var ue *UploadError
	return errors.As(err, &ue)
}
