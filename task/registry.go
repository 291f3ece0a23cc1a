package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/pressdesk/pressdesk/storage"
)

// Registry owns the persisted task collection. Every mutation persists the
// full collection in one write, so readers never observe a partial one.
type Registry struct {
	kv     storage.KV
	logger *slog.Logger

	// mu serializes read-modify-write cycles against the backing store.
	mu sync.Mutex
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates a registry over the given store.
func NewRegistry(kv storage.KV, opts ...RegistryOption) *Registry {
	r := &Registry{
		kv:     kv,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// load reads the stored collection, seeding the embedded defaults on first
// use.
func (r *Registry) load(ctx context.Context) ([]Definition, error) {
	data, err := r.kv.Get(ctx, storage.KeyTasks)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return r.seedDefaults(ctx)
		}
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	var defs []Definition
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("unmarshal tasks: %w", err)
	}
	return defs, nil
}

func (r *Registry) seedDefaults(ctx context.Context) ([]Definition, error) {
	defs, err := DefaultDefinitions()
	if err != nil {
		return nil, fmt.Errorf("load default tasks: %w", err)
	}
	if err := r.save(ctx, defs); err != nil {
		return nil, err
	}
	r.logger.Info("Seeded default task collection", "tasks", len(defs))
	return defs, nil
}

func (r *Registry) save(ctx context.Context, defs []Definition) error {
	data, err := json.Marshal(defs)
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}
	if err := r.kv.Put(ctx, storage.KeyTasks, data); err != nil {
		return fmt.Errorf("persist tasks: %w", err)
	}
	return nil
}

// List returns the active tasks sorted by order, ties broken by
// case-insensitive name.
func (r *Registry) List(ctx context.Context) ([]Definition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	defs, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]Definition, 0, len(defs))
	for _, d := range defs {
		if d.IsActive {
			active = append(active, d)
		}
	}
	sortDefinitions(active)
	return active, nil
}

// All returns every stored task, active or not, sorted.
func (r *Registry) All(ctx context.Context) ([]Definition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	defs, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	sortDefinitions(defs)
	return defs, nil
}

// Get returns the task with the given id, or ErrNotFound.
func (r *Registry) Get(ctx context.Context, id string) (Definition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	defs, err := r.load(ctx)
	if err != nil {
		return Definition{}, err
	}
	for _, d := range defs {
		if d.ID == id {
			return d, nil
		}
	}
	return Definition{}, ErrNotFound
}

// Create adds a new task, assigning an id when the definition has none, and
// persists the full collection.
func (r *Registry) Create(ctx context.Context, def Definition) (Definition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	defs, err := r.load(ctx)
	if err != nil {
		return Definition{}, err
	}

	if def.ID == "" {
		def.ID = uuid.New().String()
	}

	defs = append(defs, def)
	if err := r.save(ctx, defs); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// Upsert replaces the task with def's id, failing with ErrNotFound when the
// id is unknown.
func (r *Registry) Upsert(ctx context.Context, def Definition) (Definition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	defs, err := r.load(ctx)
	if err != nil {
		return Definition{}, err
	}

	for i, d := range defs {
		if d.ID == def.ID {
			defs[i] = def
			if err := r.save(ctx, defs); err != nil {
				return Definition{}, err
			}
			return def, nil
		}
	}
	return Definition{}, ErrNotFound
}

// ReplaceAll replaces the whole collection.
func (r *Registry) ReplaceAll(ctx context.Context, defs []Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(ctx, defs)
}

// Delete removes the task with the given id. The storage layer has no
// partial-delete primitive, so this persists the collection minus the id.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	defs, err := r.load(ctx)
	if err != nil {
		return err
	}

	kept := make([]Definition, 0, len(defs))
	for _, d := range defs {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	if len(kept) == len(defs) {
		return ErrNotFound
	}
	return r.save(ctx, kept)
}
