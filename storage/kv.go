// Package storage provides the flat key/value persistence boundary used for
// the task collection and the provider credential.
package storage

import (
	"context"
	"errors"
)

// Well-known keys in the state bucket.
const (
	// KeyTasks holds the serialized task collection as a single value.
	// Writers replace the whole collection so readers never observe a
	// partially written one.
	KeyTasks = "tasks"

	// KeyCredential holds the provider API credential.
	KeyCredential = "api_key"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("key not found")

// KV is a flat key/value store. Put replaces the whole value for a key
// atomically.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
