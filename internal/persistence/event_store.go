package persistence

import (
	"context"

	"github.com/petrijr/reactor/pkg/api"
)

// EventStore is an append-only history store for execution events.
type EventStore interface {
	AppendEvent(ctx context.Context, ev api.ExecutionEvent) error
	ListEvents(ctx context.Context, executionID string) ([]api.ExecutionEvent, error)
}

// NoopEventStore discards all events.
type NoopEventStore struct{}

func (NoopEventStore) AppendEvent(ctx context.Context, ev api.ExecutionEvent) error { return nil }
func (NoopEventStore) ListEvents(ctx context.Context, executionID string) ([]api.ExecutionEvent, error) {
	return nil, nil
}
