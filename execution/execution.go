// Package execution provides the in-memory execution store and the task
// execution state machine.
package execution

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Errors surfaced by the store and engine.
var (
	// ErrNotFound is returned when an execution id is unknown.
	ErrNotFound = errors.New("execution not found")

	// ErrTaskNotFound is returned when an execution references a task
	// that was deleted or never existed.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidState is returned when an operation is not permitted in
	// the execution's current state.
	ErrInvalidState = errors.New("invalid execution state")
)

// Status is an execution's position in the state machine.
type Status string

// Execution statuses. Transitions only move forward: created → running →
// completed or failed. Refinement re-enters work from completed but is
// observable only as completed.
const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Execution is one run of a task against specific input.
type Execution struct {
	ID            string     `json:"id"`
	TaskID        string     `json:"task_id"`
	Title         string     `json:"title"`
	InputText     string     `json:"input_text"`
	AttachmentIDs []string   `json:"attachment_ids,omitempty"`
	OutputText    *string    `json:"output_text"`
	HasOutput     bool       `json:"has_output"`
	Status        Status     `json:"status"`
	ErrorDetail   string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	RefinedAt     *time.Time `json:"refined_at,omitempty"`
}

// snapshot returns a copy the caller can hold without observing later
// mutations.
func (e *Execution) snapshot() Execution {
	out := *e
	if e.AttachmentIDs != nil {
		out.AttachmentIDs = append([]string(nil), e.AttachmentIDs...)
	}
	if e.OutputText != nil {
		text := *e.OutputText
		out.OutputText = &text
	}
	if e.RefinedAt != nil {
		at := *e.RefinedAt
		out.RefinedAt = &at
	}
	return out
}

// Named mutations are the only way execution state changes, so invalid
// combinations cannot be constructed.

func (e *Execution) markRunning() error {
	if e.Status != StatusCreated {
		return fmt.Errorf("%w: cannot run from %s", ErrInvalidState, e.Status)
	}
	e.Status = StatusRunning
	return nil
}

func (e *Execution) markCompleted(output string) error {
	if e.Status != StatusRunning {
		return fmt.Errorf("%w: cannot complete from %s", ErrInvalidState, e.Status)
	}
	e.Status = StatusCompleted
	e.OutputText = &output
	e.HasOutput = true
	e.ErrorDetail = ""
	return nil
}

func (e *Execution) markFailed(detail string) error {
	if e.Status == StatusCompleted || e.Status == StatusFailed {
		return fmt.Errorf("%w: cannot fail from %s", ErrInvalidState, e.Status)
	}
	e.Status = StatusFailed
	e.ErrorDetail = detail
	return nil
}

func (e *Execution) markRefined(output string, at time.Time) error {
	if e.Status != StatusCompleted || !e.HasOutput {
		return fmt.Errorf("%w: cannot refine from %s", ErrInvalidState, e.Status)
	}
	e.OutputText = &output
	e.RefinedAt = &at
	return nil
}

// newExecutionID generates a unique execution id: millisecond timestamp
// prefix plus a random suffix. Uniqueness is what matters here, not
// cryptographic strength.
func newExecutionID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix)
}
