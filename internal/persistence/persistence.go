package persistence

// Persistence bundles the store interfaces so the reactor can depend on a
// single abstraction.
type Persistence struct {
	Models ModelStore
	Events EventStore
}

// NewInMemoryPersistence returns a Persistence whose stores share one
// InMemoryStore.
func NewInMemoryPersistence() Persistence {
	s := NewInMemoryStore()
	return Persistence{Models: s, Events: s}
}
