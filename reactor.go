package reactor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/petrijr/reactor/internal/engine"
	"github.com/petrijr/reactor/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Reactor           = api.Reactor
	Graph             = api.Graph
	Identity          = api.Identity
	MergeStatus       = api.MergeStatus
	Validator         = api.Validator
	ValidatorFunc     = api.ValidatorFunc
	GraphModel        = api.GraphModel
	ExecutionEvent    = api.ExecutionEvent
	ExecutionStatus   = api.ExecutionStatus
	Future            = api.Future
	Observer          = api.Observer
	LoggingObserver   = api.LoggingObserver
	CompositeObserver = api.CompositeObserver
	NoopObserver      = api.NoopObserver

	DefinitionError      = api.DefinitionError
	ValidationError      = api.ValidationError
	UnhandledStatusError = api.UnhandledStatusError
	HandlerError         = api.HandlerError
	MergerError          = api.MergerError

	// Config configures NewReactorWithConfig. Persistence is left zero by
	// callers outside this module; use NewSQLiteReactor for durable history.
	Config = engine.Config
)

// Re-export common helpers.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver

	ProcessorID  = api.ProcessorID
	SubgraphID   = api.SubgraphID
	MergePointID = api.MergePointID
)

// Re-export error sentinels for errors.Is.

var (
	ErrGraphDefinition      = api.ErrGraphDefinition
	ErrStructuralValidation = api.ErrStructuralValidation
	ErrUnhandledStatus      = api.ErrUnhandledStatus
	ErrTimeout              = api.ErrTimeout
	ErrGraphNotRegistered   = api.ErrGraphNotRegistered
	ErrNoCompletion         = api.ErrNoCompletion
	ErrHandler              = api.ErrHandler
	ErrMerger               = api.ErrMerger
)

// Reactor constructors
// These wrap the internal/engine package so external callers
// never need to import internal packages.

// NewInMemoryReactor returns a Reactor keeping models and history in memory.
func NewInMemoryReactor() Reactor {
	return engine.NewInMemoryReactor()
}

// NewInMemoryReactorWithObserver returns an in-memory Reactor with the given Observer.
func NewInMemoryReactorWithObserver(obs Observer) Reactor {
	return engine.NewInMemoryReactorWithObserver(obs)
}

// NewReactorWithConfig returns a Reactor built from cfg.
func NewReactorWithConfig(cfg Config) Reactor {
	return engine.New(cfg)
}

// NewSQLiteReactor returns a Reactor that stores graph models and execution
// history in a SQLite database.
func NewSQLiteReactor(db *sql.DB) (Reactor, error) {
	return engine.NewSQLiteReactor(db)
}

// NewSQLiteReactorWithConfig is NewSQLiteReactor with the observer, logger,
// validators and timeout taken from cfg.
func NewSQLiteReactorWithConfig(db *sql.DB, cfg Config) (Reactor, error) {
	p, err := engine.NewSQLitePersistence(db)
	if err != nil {
		return nil, err
	}
	cfg.Persistence = p
	return engine.New(cfg), nil
}

// Execution is a typed view of an execution started by Submit.
type Execution[P any] struct {
	*api.Execution
}

// Wait blocks until every non-detached branch has finished and returns the
// payload.
func (e *Execution[P]) Wait(ctx context.Context) (P, error) {
	return awaitPayload[P](ctx, e.Result)
}

// WaitChain blocks until every branch, detached ones included, has finished.
func (e *Execution[P]) WaitChain(ctx context.Context) (P, error) {
	return awaitPayload[P](ctx, e.Chain)
}

func awaitPayload[P any](ctx context.Context, f *api.Future) (P, error) {
	var zero P
	v, err := f.Wait(ctx)
	if err != nil {
		return zero, err
	}
	p, ok := v.(P)
	if !ok {
		return zero, fmt.Errorf("execution resolved with %T, want %T", v, zero)
	}
	return p, nil
}

// Submit runs payload through the graph registered for P.
//
//	exec, err := reactor.Submit(ctx, r, &Order{ID: 42})
//	order, err := exec.Wait(ctx)
func Submit[P any](ctx context.Context, r Reactor, payload P) (*Execution[P], error) {
	exec, err := r.Submit(ctx, payload)
	if err != nil {
		return nil, err
	}
	return &Execution[P]{Execution: exec}, nil
}

// SubmitWithTimeout is Submit with a bound on the result future.
func SubmitWithTimeout[P any](ctx context.Context, r Reactor, payload P, timeout time.Duration) (*Execution[P], error) {
	exec, err := r.SubmitWithTimeout(ctx, payload, timeout)
	if err != nil {
		return nil, err
	}
	return &Execution[P]{Execution: exec}, nil
}

// Register builds the graph and registers it with r.
func Register[P any](r Reactor, b *GraphBuilder[P]) (*Graph, error) {
	g, err := b.Build()
	if err != nil {
		return nil, err
	}
	if err := r.Register(g); err != nil {
		return nil, err
	}
	return g, nil
}
