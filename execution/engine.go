package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pressdesk/pressdesk/llm"
	"github.com/pressdesk/pressdesk/task"
)

// noResponsePlaceholder stands in for a completion whose choice carried no
// content.
const noResponsePlaceholder = "No response"

// TaskSource resolves task definitions at execute time.
type TaskSource interface {
	Get(ctx context.Context, id string) (task.Definition, error)
}

// Completer performs one completion request.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Engine drives executions through the state machine. Each call is a single
// attempt: failures surface to the caller and are never retried here; a
// retry is a brand-new execution.
type Engine struct {
	store  *Store
	tasks  TaskSource
	client Completer
	logger *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an engine over the given store, task source, and
// completion client.
func NewEngine(store *Store, tasks TaskSource, client Completer, opts ...EngineOption) *Engine {
	e := &Engine{
		store:  store,
		tasks:  tasks,
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create constructs a new execution. It always succeeds locally: the task id
// is validated lazily at execute time, not here.
func (e *Engine) Create(taskID, title, inputText string, attachmentIDs []string) Execution {
	exec := e.store.Create(taskID, title, inputText, attachmentIDs)
	e.logger.Debug("Created execution", "execution_id", exec.ID, "task_id", taskID)
	return exec
}

// Get returns a snapshot of the execution, or ErrNotFound.
func (e *Engine) Get(id string) (Execution, error) {
	return e.store.Get(id)
}

// Execute compiles the execution's prompt, performs one completion request,
// and commits the terminal state. On failure the stored execution is marked
// failed with the failure detail AND the error is returned: the caller must
// observe both.
func (e *Engine) Execute(ctx context.Context, id string) (Execution, error) {
	exec, err := e.store.Get(id)
	if err != nil {
		return Execution{}, err
	}

	def, err := e.tasks.Get(ctx, exec.TaskID)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			// The task was deleted after the execution was created.
			// Mark the execution failed rather than leaving it stuck.
			failed, markErr := e.store.markFailed(id, "task not found")
			if markErr != nil {
				return Execution{}, markErr
			}
			metricExecutions.WithLabelValues(outcomeTaskNotFound).Inc()
			return failed, fmt.Errorf("%w: %s", ErrTaskNotFound, exec.TaskID)
		}
		return Execution{}, fmt.Errorf("resolve task %s: %w", exec.TaskID, err)
	}

	if _, err := e.store.markRunning(id); err != nil {
		return Execution{}, err
	}

	prompt := task.Compile(def.PromptTemplate, exec.InputText)
	messages := task.BuildMessages(task.DefaultSystemPrompt, prompt, exec.AttachmentIDs)

	resp, err := e.client.Complete(ctx, llm.Request{Messages: messages})
	if err != nil {
		failed, markErr := e.store.markFailed(id, err.Error())
		if markErr != nil {
			return Execution{}, markErr
		}
		metricExecutions.WithLabelValues(outcomeFailed).Inc()
		e.logger.Warn("Execution failed",
			"execution_id", id,
			"task_id", exec.TaskID,
			"error", err)
		return failed, err
	}

	output := resp.Content
	if output == "" {
		output = noResponsePlaceholder
	}

	completed, err := e.store.markCompleted(id, output)
	if err != nil {
		return Execution{}, err
	}
	metricExecutions.WithLabelValues(outcomeCompleted).Inc()
	e.logger.Info("Execution completed",
		"execution_id", id,
		"task_id", exec.TaskID,
		"request_id", resp.RequestID,
		"tokens", resp.Usage.TotalTokens)
	return completed, nil
}

// Refine re-prompts with the execution's current output and the refinement
// request, overwriting the output in place. Unlike Execute, a failed
// refinement leaves the stored state untouched: the last good output is
// never discarded because an edit attempt failed.
func (e *Engine) Refine(ctx context.Context, id, refinementRequest string) (Execution, error) {
	exec, err := e.store.Get(id)
	if err != nil {
		return Execution{}, err
	}
	if !exec.HasOutput || exec.OutputText == nil {
		return Execution{}, fmt.Errorf("%w: no output to refine", ErrInvalidState)
	}

	messages := task.BuildRefinementMessages(*exec.OutputText, refinementRequest)

	resp, err := e.client.Complete(ctx, llm.Request{Messages: messages})
	if err != nil {
		metricRefinements.WithLabelValues(outcomeFailed).Inc()
		e.logger.Warn("Refinement failed, keeping previous output",
			"execution_id", id,
			"error", err)
		return Execution{}, err
	}

	// An empty refined choice keeps the prior output.
	output := resp.Content
	if output == "" {
		output = *exec.OutputText
	}

	refined, err := e.store.markRefined(id, output)
	if err != nil {
		return Execution{}, err
	}
	metricRefinements.WithLabelValues(outcomeCompleted).Inc()
	e.logger.Info("Execution refined",
		"execution_id", id,
		"request_id", resp.RequestID)
	return refined, nil
}
