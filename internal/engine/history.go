package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/petrijr/reactor/internal/persistence"
	"github.com/petrijr/reactor/pkg/api"
)

// historyObserver appends execution events to an EventStore. Store failures
// are logged and never affect the execution.
type historyObserver struct {
	events persistence.EventStore
	logger *slog.Logger
}

var _ api.Observer = (*historyObserver)(nil)

func newHistoryObserver(events persistence.EventStore, logger *slog.Logger) *historyObserver {
	return &historyObserver{events: events, logger: logger}
}

func (h *historyObserver) append(ctx context.Context, exec *api.Execution, ev api.ExecutionEvent) {
	ev.ExecutionID = exec.ID
	ev.ParentID = exec.ParentID
	ev.Graph = exec.Graph
	ev.At = time.Now().UTC()
	// The submit context may be cancelled before the chain finishes.
	if err := h.events.AppendEvent(context.WithoutCancel(ctx), ev); err != nil {
		h.logger.Warn("history_append_failed",
			slog.String("execution_id", exec.ID),
			slog.String("type", string(ev.Type)),
			slog.Any("error", err),
		)
	}
}

func errDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (h *historyObserver) OnExecutionStart(ctx context.Context, exec *api.Execution) {
	h.append(ctx, exec, api.ExecutionEvent{Type: api.EventExecutionStarted})
}

func (h *historyObserver) OnExecutionCompleted(ctx context.Context, exec *api.Execution) {
	h.append(ctx, exec, api.ExecutionEvent{Type: api.EventExecutionCompleted})
}

func (h *historyObserver) OnExecutionFailed(ctx context.Context, exec *api.Execution, err error) {
	h.append(ctx, exec, api.ExecutionEvent{Type: api.EventExecutionFailed, Detail: errDetail(err)})
}

func (h *historyObserver) OnChainCompleted(ctx context.Context, exec *api.Execution, err error) {
	h.append(ctx, exec, api.ExecutionEvent{Type: api.EventChainCompleted, Detail: errDetail(err)})
}

func (h *historyObserver) OnHandlerStart(ctx context.Context, exec *api.Execution, item api.Identity) {
	h.append(ctx, exec, api.ExecutionEvent{Type: api.EventHandlerStarted, Item: item.String()})
}

func (h *historyObserver) OnHandlerCompleted(ctx context.Context, exec *api.Execution, item api.Identity, err error, d time.Duration) {
	ev := api.ExecutionEvent{Type: api.EventHandlerCompleted, Item: item.String()}
	if err != nil {
		ev.Type, ev.Detail = api.EventHandlerFailed, err.Error()
	}
	h.append(ctx, exec, ev)
}

func (h *historyObserver) OnMergeCompleted(ctx context.Context, exec *api.Execution, item api.Identity, status api.MergeStatus, err error, d time.Duration) {
	ev := api.ExecutionEvent{Type: api.EventMergeCompleted, Item: item.String(), Status: status}
	if err != nil {
		ev.Type, ev.Detail = api.EventMergeFailed, err.Error()
	}
	h.append(ctx, exec, ev)
}
