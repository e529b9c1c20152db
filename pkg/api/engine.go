package api

import (
	"context"
	"time"
)

// Execution is the handle returned by Submit. Both futures resolve with the
// payload on success.
type Execution struct {
	ID       string
	ParentID string
	Graph    string
	Payload  any

	SubmittedAt time.Time

	// Result resolves when every non-detached branch has finished.
	Result *Future
	// Chain resolves when every branch has finished, including detached
	// branches and nested subgraph executions. It never resolves before
	// Result.
	Chain *Future
}

// ExecutionStatus is a snapshot of an in-flight execution.
type ExecutionStatus struct {
	ID          string    `json:"id" yaml:"id"`
	ParentID    string    `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	Graph       string    `json:"graph" yaml:"graph"`
	SubmittedAt time.Time `json:"submittedAt" yaml:"submittedAt"`
	ResultDone  bool      `json:"resultDone" yaml:"resultDone"`
}

// Reactor registers graphs and runs payloads through them.
type Reactor interface {
	ModelReader
	HistoryReader
	StatusReader

	// Register validates g and makes it the graph for its payload type.
	// Registering the same graph again is a no-op.
	Register(g *Graph) error

	// Graphs returns the registered graphs ordered by name.
	Graphs() []*Graph

	// Submit starts an execution for payload and returns immediately.
	Submit(ctx context.Context, payload any) (*Execution, error)

	// SubmitWithTimeout is Submit with a bound on the result future. On
	// expiry the result fails with ErrTimeout; branches keep running.
	SubmitWithTimeout(ctx context.Context, payload any, timeout time.Duration) (*Execution, error)
}

// ModelReader exposes serialized graph models.
type ModelReader interface {
	ListModels(ctx context.Context) ([]string, error)
	GetModel(ctx context.Context, name string) (GraphModel, error)
}

// HistoryReader exposes execution history.
type HistoryReader interface {
	ListEvents(ctx context.Context, executionID string) ([]ExecutionEvent, error)
}

// StatusReader exposes in-flight executions.
type StatusReader interface {
	Running() []ExecutionStatus
}

// Validator checks a built graph. Implementations return a *ValidationError.
type Validator interface {
	Name() string
	Validate(g *Graph) error
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc struct {
	ID string
	Fn func(g *Graph) error
}

func (v ValidatorFunc) Name() string            { return v.ID }
func (v ValidatorFunc) Validate(g *Graph) error { return v.Fn(g) }
