package execution

import (
	"sync"
	"time"
)

// Store exclusively owns all executions for the lifetime of the process.
// Callers receive snapshots, never references; all writes go through the
// named mutations. Executions are a per-session cache by design and do not
// survive a restart.
type Store struct {
	mu         sync.RWMutex
	executions map[string]*Execution

	now func() time.Time
}

// NewStore creates an empty execution store.
func NewStore() *Store {
	return &Store{
		executions: make(map[string]*Execution),
		now:        time.Now,
	}
}

// Create constructs and tracks a new execution. It is purely in-memory:
// it never validates the task id and never touches the network.
func (s *Store) Create(taskID, title, inputText string, attachmentIDs []string) Execution {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	exec := &Execution{
		ID:            newExecutionID(now),
		TaskID:        taskID,
		Title:         title,
		InputText:     inputText,
		AttachmentIDs: append([]string(nil), attachmentIDs...),
		Status:        StatusCreated,
		CreatedAt:     now,
	}
	s.executions[exec.ID] = exec
	return exec.snapshot()
}

// Get returns a snapshot of the execution, or ErrNotFound.
func (s *Store) Get(id string) (Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exec, ok := s.executions[id]
	if !ok {
		return Execution{}, ErrNotFound
	}
	return exec.snapshot(), nil
}

// mutate applies fn to the stored execution under the write lock and
// returns the resulting snapshot.
func (s *Store) mutate(id string, fn func(*Execution) error) (Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec, ok := s.executions[id]
	if !ok {
		return Execution{}, ErrNotFound
	}
	if err := fn(exec); err != nil {
		return Execution{}, err
	}
	return exec.snapshot(), nil
}

func (s *Store) markRunning(id string) (Execution, error) {
	return s.mutate(id, func(e *Execution) error { return e.markRunning() })
}

func (s *Store) markCompleted(id, output string) (Execution, error) {
	return s.mutate(id, func(e *Execution) error { return e.markCompleted(output) })
}

func (s *Store) markFailed(id, detail string) (Execution, error) {
	return s.mutate(id, func(e *Execution) error { return e.markFailed(detail) })
}

func (s *Store) markRefined(id, output string) (Execution, error) {
	at := s.now().UTC()
	return s.mutate(id, func(e *Execution) error { return e.markRefined(output, at) })
}
