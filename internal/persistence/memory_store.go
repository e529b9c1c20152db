package persistence

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/petrijr/reactor/pkg/api"
)

// InMemoryStore is a simple, goroutine-safe implementation of ModelStore and
// EventStore backed by maps.
type InMemoryStore struct {
	mu     sync.RWMutex
	models map[string]api.GraphModel
	events map[string][]api.ExecutionEvent
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		models: make(map[string]api.GraphModel),
		events: make(map[string][]api.ExecutionEvent),
	}
}

// Ensure InMemoryStore implements the interfaces.
var _ ModelStore = (*InMemoryStore)(nil)

var _ EventStore = (*InMemoryStore)(nil)

func (s *InMemoryStore) SaveModel(ctx context.Context, m api.GraphModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.models[m.Name] = m
	return nil
}

func (s *InMemoryStore) GetModel(ctx context.Context, name string) (api.GraphModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.models[name]
	if !ok {
		return api.GraphModel{}, ErrModelNotFound
	}
	return m, nil
}

func (s *InMemoryStore) ListModels(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.models))
	for name := range s.models {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (s *InMemoryStore) DeleteModel(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.models, name)
	return nil
}

func (s *InMemoryStore) AppendEvent(ctx context.Context, ev api.ExecutionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[ev.ExecutionID] = append(s.events[ev.ExecutionID], ev)
	return nil
}

func (s *InMemoryStore) ListEvents(ctx context.Context, executionID string) ([]api.ExecutionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.events[executionID]), nil
}
