package engine

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/petrijr/reactor/pkg/api"
)

type registered struct {
	graph *api.Graph
	plan  *plan
}

// graphRegistry maps payload types to their compiled graphs. Names are kept
// unique so models can be looked up by name.
type graphRegistry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]registered
	byName map[string]reflect.Type
}

func newGraphRegistry() *graphRegistry {
	return &graphRegistry{
		byType: make(map[reflect.Type]registered),
		byName: make(map[string]reflect.Type),
	}
}

// Contains reports whether exactly g is registered.
func (r *graphRegistry) Contains(g *api.Graph) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cur, ok := r.byType[g.PayloadType()]
	return ok && cur.graph == g
}

// Register makes p the plan for its payload type and returns the graph it
// replaced, if any.
func (r *graphRegistry) Register(p *plan) (*api.Graph, error) {
	g := p.graph
	t := g.PayloadType()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkNameLocked(g); err != nil {
		return nil, err
	}

	prev, existed := r.byType[t]
	if existed && prev.graph.Name() != g.Name() {
		delete(r.byName, prev.graph.Name())
	}
	r.byType[t] = registered{graph: g, plan: p}
	r.byName[g.Name()] = t

	if existed {
		return prev.graph, nil
	}
	return nil, nil
}

// CheckName reports an error when g's name is taken by a graph for another
// payload type.
func (r *graphRegistry) CheckName(g *api.Graph) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.checkNameLocked(g)
}

func (r *graphRegistry) checkNameLocked(g *api.Graph) error {
	if other, taken := r.byName[g.Name()]; taken && other != g.PayloadType() {
		return fmt.Errorf("graph name %q already registered for payload type %s", g.Name(), api.TypeName(other))
	}
	return nil
}

func (r *graphRegistry) Get(t reflect.Type) (*plan, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cur, ok := r.byType[t]
	return cur.plan, ok
}

func (r *graphRegistry) Graphs() []*api.Graph {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*api.Graph, 0, len(r.byType))
	for _, e := range r.byType {
		out = append(out, e.graph)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
