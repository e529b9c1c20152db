package api

import "time"

// EventType identifies an execution history event.
type EventType string

const (
	EventExecutionStarted   EventType = "execution.started"
	EventExecutionCompleted EventType = "execution.completed"
	EventExecutionFailed    EventType = "execution.failed"
	EventChainCompleted     EventType = "chain.completed"

	EventHandlerStarted   EventType = "handler.started"
	EventHandlerCompleted EventType = "handler.completed"
	EventHandlerFailed    EventType = "handler.failed"

	EventMergeCompleted EventType = "merge.completed"
	EventMergeFailed    EventType = "merge.failed"
)

// ExecutionEvent is a minimal append-only history record for audit/debugging.
type ExecutionEvent struct {
	ExecutionID string    `json:"executionId" yaml:"executionId"`
	ParentID    string    `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	At          time.Time `json:"at" yaml:"at"`
	Type        EventType `json:"type" yaml:"type"`

	Graph  string      `json:"graph" yaml:"graph"`
	Item   string      `json:"item,omitempty" yaml:"item,omitempty"`
	Status MergeStatus `json:"status,omitempty" yaml:"status,omitempty"`

	// Small, human-oriented details such as an error string. Payloads are
	// never recorded.
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}
