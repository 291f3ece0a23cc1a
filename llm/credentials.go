package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pressdesk/pressdesk/storage"
)

// DefaultCredentialEnv is the environment variable consulted when the
// store holds no credential.
const DefaultCredentialEnv = "OPENAI_API_KEY"

// CredentialSource resolves the provider API credential for a request.
// An empty string with a nil error means no credential is configured.
type CredentialSource interface {
	Credential(ctx context.Context) (string, error)
}

// StoredCredentials resolves the credential from the KV store with an
// environment variable fallback, and supports updating it.
type StoredCredentials struct {
	kv     storage.KV
	envVar string
}

// NewStoredCredentials creates a credential source over kv. envVar may be
// empty to disable the environment fallback.
func NewStoredCredentials(kv storage.KV, envVar string) *StoredCredentials {
	return &StoredCredentials{kv: kv, envVar: envVar}
}

// Credential returns the stored credential, falling back to the
// environment variable when the store holds none.
func (s *StoredCredentials) Credential(ctx context.Context) (string, error) {
	value, err := s.kv.Get(ctx, storage.KeyCredential)
	if err == nil {
		return strings.TrimSpace(string(value)), nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("read credential: %w", err)
	}
	if s.envVar != "" {
		return strings.TrimSpace(os.Getenv(s.envVar)), nil
	}
	return "", nil
}

// Set stores a new credential.
func (s *StoredCredentials) Set(ctx context.Context, credential string) error {
	if err := s.kv.Put(ctx, storage.KeyCredential, []byte(strings.TrimSpace(credential))); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

// Clear removes the stored credential. The environment fallback, if any,
// remains in effect.
func (s *StoredCredentials) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, storage.KeyCredential); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

// Configured reports whether a credential would be resolved.
func (s *StoredCredentials) Configured(ctx context.Context) (bool, error) {
	credential, err := s.Credential(ctx)
	if err != nil {
		return false, err
	}
	return credential != "", nil
}

// StaticCredential is a fixed credential, used in tests.
type StaticCredential string

// Credential returns the fixed credential.
func (s StaticCredential) Credential(_ context.Context) (string, error) {
	return string(s), nil
}
