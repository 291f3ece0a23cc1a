package task

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pressdesk/pressdesk/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeOverride(t *testing.T, path string, defs []Definition) {
	t.Helper()
	data, err := json.Marshal(defs)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestWatcher_AppliesFileAtStartup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := NewRegistry(storage.NewMemory())
	path := filepath.Join(t.TempDir(), "tasks.json")
	writeOverride(t, path, []Definition{
		{ID: "override-1", Name: "from file", PromptTemplate: "p {{input_text}}", IsActive: true},
	})

	w, err := NewWatcher(registry, path, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		defs, err := registry.List(ctx)
		return err == nil && len(defs) == 1 && defs[0].ID == "override-1"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestWatcher_AppliesChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := NewRegistry(storage.NewMemory())
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")
	writeOverride(t, path, []Definition{
		{ID: "v1", Name: "first", PromptTemplate: "p", IsActive: true},
	})

	w, err := NewWatcher(registry, path, nil)
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		defs, err := registry.List(ctx)
		return err == nil && len(defs) == 1 && defs[0].ID == "v1"
	}, 2*time.Second, 10*time.Millisecond)

	writeOverride(t, path, []Definition{
		{ID: "v2", Name: "second", PromptTemplate: "p", IsActive: true},
	})

	require.Eventually(t, func() bool {
		defs, err := registry.List(ctx)
		return err == nil && len(defs) == 1 && defs[0].ID == "v2"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestWatcher_InvalidJSONKeepsCollection(t *testing.T) {
	ctx := context.Background()

	registry := NewRegistry(storage.NewMemory())
	require.NoError(t, registry.ReplaceAll(ctx, []Definition{
		{ID: "keep", Name: "keep", PromptTemplate: "p", IsActive: true},
	}))

	path := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	w, err := NewWatcher(registry, path, nil)
	require.NoError(t, err)
	w.apply(ctx)
	require.NoError(t, w.watcher.Close())

	defs, err := registry.List(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "keep", defs[0].ID)
}
