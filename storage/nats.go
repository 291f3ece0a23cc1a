package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// BucketState is the KV bucket holding all persisted service state.
const BucketState = "PRESSDESK_STATE"

// NATS is a KV implementation backed by a NATS JetStream KV bucket.
// A Put replaces the whole value in a single revision, which gives the
// atomic-swap semantics the task collection requires.
type NATS struct {
	bucket jetstream.KeyValue
}

// NewNATS creates a NATS-backed store, creating the state bucket if it
// doesn't exist.
func NewNATS(ctx context.Context, js jetstream.JetStream) (*NATS, error) {
	bucket, err := getOrCreateBucket(ctx, js, BucketState)
	if err != nil {
		return nil, fmt.Errorf("create state bucket: %w", err)
	}
	return &NATS{bucket: bucket}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "Pressdesk service state",
		History:     5, // Keep last 5 revisions
	})
}

// Get returns the value for key, or ErrNotFound.
func (n *NATS) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := n.bucket.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return entry.Value(), nil
}

// Put replaces the value for key.
func (n *NATS) Put(ctx context.Context, key string, value []byte) error {
	if _, err := n.bucket.Put(ctx, key, value); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Delete removes the value for key.
func (n *NATS) Delete(ctx context.Context, key string) error {
	if err := n.bucket.Delete(ctx, key); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
