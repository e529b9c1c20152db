package api

import (
	"context"
	"log/slog"
	"time"
)

// Observer receives callbacks from the reactor for logging and history.
//
// Callbacks run on the goroutine driving the branch. Implementations should
// be fast and non-blocking.
type Observer interface {
	// OnExecutionStart is called once per submission, before the start point
	// dispatches anything.
	OnExecutionStart(ctx context.Context, exec *Execution)

	// OnExecutionCompleted is called when the result future resolves with
	// the payload.
	OnExecutionCompleted(ctx context.Context, exec *Execution)

	// OnExecutionFailed is called when the result future resolves with an
	// error, including timeouts.
	OnExecutionFailed(ctx context.Context, exec *Execution, err error)

	// OnChainCompleted is called when the chain-completion future resolves.
	OnChainCompleted(ctx context.Context, exec *Execution, err error)

	OnHandlerStart(ctx context.Context, exec *Execution, item Identity)

	// OnHandlerCompleted is called for both successes and failures (err != nil).
	OnHandlerCompleted(ctx context.Context, exec *Execution, item Identity, err error, d time.Duration)

	// OnMergeCompleted is called after a merger returns. status is empty
	// when err != nil.
	OnMergeCompleted(ctx context.Context, exec *Execution, item Identity, status MergeStatus, err error, d time.Duration)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnExecutionStart(ctx context.Context, exec *Execution)                   {}
func (NoopObserver) OnExecutionCompleted(ctx context.Context, exec *Execution)               {}
func (NoopObserver) OnExecutionFailed(ctx context.Context, exec *Execution, err error)       {}
func (NoopObserver) OnChainCompleted(ctx context.Context, exec *Execution, err error)        {}
func (NoopObserver) OnHandlerStart(ctx context.Context, exec *Execution, item Identity)      {}
func (NoopObserver) OnHandlerCompleted(ctx context.Context, exec *Execution, item Identity, err error, d time.Duration) {
}
func (NoopObserver) OnMergeCompleted(ctx context.Context, exec *Execution, item Identity, status MergeStatus, err error, d time.Duration) {
}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnExecutionStart(ctx context.Context, exec *Execution) {
	for _, o := range c.observers {
		o.OnExecutionStart(ctx, exec)
	}
}

func (c *CompositeObserver) OnExecutionCompleted(ctx context.Context, exec *Execution) {
	for _, o := range c.observers {
		o.OnExecutionCompleted(ctx, exec)
	}
}

func (c *CompositeObserver) OnExecutionFailed(ctx context.Context, exec *Execution, err error) {
	for _, o := range c.observers {
		o.OnExecutionFailed(ctx, exec, err)
	}
}

func (c *CompositeObserver) OnChainCompleted(ctx context.Context, exec *Execution, err error) {
	for _, o := range c.observers {
		o.OnChainCompleted(ctx, exec, err)
	}
}

func (c *CompositeObserver) OnHandlerStart(ctx context.Context, exec *Execution, item Identity) {
	for _, o := range c.observers {
		o.OnHandlerStart(ctx, exec, item)
	}
}

func (c *CompositeObserver) OnHandlerCompleted(ctx context.Context, exec *Execution, item Identity, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnHandlerCompleted(ctx, exec, item, err, d)
	}
}

func (c *CompositeObserver) OnMergeCompleted(ctx context.Context, exec *Execution, item Identity, status MergeStatus, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnMergeCompleted(ctx, exec, item, status, err, d)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs execution, handler and
// merge events using the provided slog.Logger. If logger is nil,
// slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnExecutionStart(ctx context.Context, exec *Execution) {
	o.Logger.InfoContext(ctx, "execution_start",
		slog.String("graph", exec.Graph),
		slog.String("execution_id", exec.ID),
		slog.String("parent_id", exec.ParentID),
	)
}

func (o *LoggingObserver) OnExecutionCompleted(ctx context.Context, exec *Execution) {
	o.Logger.InfoContext(ctx, "execution_completed",
		slog.String("graph", exec.Graph),
		slog.String("execution_id", exec.ID),
		slog.Duration("elapsed", time.Since(exec.SubmittedAt)),
	)
}

func (o *LoggingObserver) OnExecutionFailed(ctx context.Context, exec *Execution, err error) {
	o.Logger.ErrorContext(ctx, "execution_failed",
		slog.String("graph", exec.Graph),
		slog.String("execution_id", exec.ID),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnChainCompleted(ctx context.Context, exec *Execution, err error) {
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
	}
	o.Logger.Log(ctx, level, "chain_completed",
		slog.String("graph", exec.Graph),
		slog.String("execution_id", exec.ID),
		slog.Duration("elapsed", time.Since(exec.SubmittedAt)),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnHandlerStart(ctx context.Context, exec *Execution, item Identity) {
	o.Logger.DebugContext(ctx, "handler_start",
		slog.String("graph", exec.Graph),
		slog.String("execution_id", exec.ID),
		slog.String("item", item.String()),
	)
}

func (o *LoggingObserver) OnHandlerCompleted(ctx context.Context, exec *Execution, item Identity, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "handler_completed",
		slog.String("graph", exec.Graph),
		slog.String("execution_id", exec.ID),
		slog.String("item", item.String()),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnMergeCompleted(ctx context.Context, exec *Execution, item Identity, status MergeStatus, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "merge_completed",
		slog.String("graph", exec.Graph),
		slog.String("execution_id", exec.ID),
		slog.String("item", item.String()),
		slog.String("status", string(status)),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}
