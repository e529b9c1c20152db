package api

import "fmt"

// VertexKind distinguishes the two vertices an item can contribute to the
// execution dependency graph.
type VertexKind uint8

const (
	// VertexHandler runs the handler of a processor or subgraph.
	VertexHandler VertexKind = iota
	// VertexMerge runs a merger and fires transitions.
	VertexMerge
)

func (k VertexKind) String() string {
	if k == VertexHandler {
		return "handler"
	}
	return "merge"
}

// Vertex is one node of the execution dependency graph.
type Vertex struct {
	Kind VertexKind
	Item Identity

	// Detached is set on handler vertices of items without a merger.
	Detached bool

	// Handler is the handler vertex feeding a merge vertex, or -1.
	Handler int
	// Next is the merge vertex fed by a handler vertex, or -1.
	Next int

	// Flows counts incoming start and transition flows. It does not include
	// the flow from a merge vertex's own handler.
	Flows int

	Transitions []Transition
	// Targets holds the destination vertex per transition, -1 for complete.
	Targets []int
	// Held marks transitions released by the merge group barrier.
	Held []bool

	// Group is the merge group index of the item, or -1.
	Group int
	// Gates is the number of barrier signals a member merge vertex waits for
	// before merging.
	Gates int
}

// GroupTopology lists the vertices taking part in one merge group barrier.
type GroupTopology struct {
	Members       []int
	Handlers      []int
	IncludesStart bool
}

// Edge is a dependency between two vertices. Barrier edges come from merge
// groups rather than from declared flows.
type Edge struct {
	From, To int
	Barrier  bool
}

// Topology is the vertex view of a graph shared by the engine and the
// validators.
type Topology struct {
	Vertices []Vertex
	Start    []int
	Groups   []GroupTopology

	handlers map[Identity]int
	merges   map[Identity]int
}

// BuildTopology derives the execution dependency graph of g. It fails when a
// reference cannot be resolved.
func BuildTopology(g *Graph) (*Topology, error) {
	t := &Topology{
		handlers: make(map[Identity]int),
		merges:   make(map[Identity]int),
	}

	for _, it := range g.items {
		if !it.Identity.HasHandler() {
			continue
		}
		t.handlers[it.Identity] = t.add(Vertex{
			Kind:     VertexHandler,
			Item:     it.Identity,
			Detached: it.Merger == nil,
		})
	}
	for _, mp := range g.mergePoints {
		if _, dup := t.merges[mp.Owner]; dup {
			return nil, fmt.Errorf("%s: more than one merge point", mp.Owner)
		}
		if _, ok := g.byID[mp.Owner]; !ok {
			return nil, fmt.Errorf("%s: merge point owner not found", mp.Owner)
		}
		v := Vertex{
			Kind:        VertexMerge,
			Item:        mp.Owner,
			Transitions: mp.Transitions,
			Targets:     make([]int, len(mp.Transitions)),
			Held:        make([]bool, len(mp.Transitions)),
		}
		idx := t.add(v)
		t.merges[mp.Owner] = idx
		if h, ok := t.handlers[mp.Owner]; ok {
			t.Vertices[idx].Handler = h
			t.Vertices[h].Next = idx
		}
	}

	for _, id := range g.start.Items {
		v, err := t.flowTarget(id, ActionHandleBy)
		if err != nil {
			return nil, fmt.Errorf("start point: %w", err)
		}
		t.Start = append(t.Start, v)
		t.Vertices[v].Flows++
	}

	for i := range t.Vertices {
		v := &t.Vertices[i]
		for j, tr := range v.Transitions {
			if tr.IsComplete() {
				v.Targets[j] = -1
				continue
			}
			to, err := t.flowTarget(tr.Target, tr.Action)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", v.Item, err)
			}
			v.Targets[j] = to
			t.Vertices[to].Flows++
		}
	}

	for gi, grp := range g.groups {
		gt := GroupTopology{IncludesStart: g.IncludesStartPoint(grp)}
		for _, m := range grp.Members {
			mv, ok := t.merges[m]
			if !ok {
				return nil, fmt.Errorf("merge group %d: %s has no merge point", gi, m)
			}
			if t.Vertices[mv].Group >= 0 {
				return nil, fmt.Errorf("merge group %d: %s already belongs to merge group %d", gi, m, t.Vertices[mv].Group)
			}
			t.Vertices[mv].Group = gi
			gt.Members = append(gt.Members, mv)
			if h := t.Vertices[mv].Handler; h >= 0 {
				t.Vertices[h].Group = gi
				gt.Handlers = append(gt.Handlers, h)
			}
		}
		for _, mv := range gt.Members {
			v := &t.Vertices[mv]
			v.Gates = len(gt.Handlers)
			if v.Handler >= 0 {
				v.Gates--
			}
			for j, tr := range v.Transitions {
				internal := tr.Action == ActionMerge && v.Targets[j] >= 0 && t.Vertices[v.Targets[j]].Group == gi
				v.Held[j] = !internal
			}
		}
		t.Groups = append(t.Groups, gt)
	}
	return t, nil
}

func (t *Topology) add(v Vertex) int {
	v.Handler, v.Next, v.Group = -1, -1, -1
	if v.Kind == VertexMerge && v.Targets == nil {
		v.Targets = []int{}
	}
	t.Vertices = append(t.Vertices, v)
	return len(t.Vertices) - 1
}

func (t *Topology) flowTarget(id Identity, action TransitionAction) (int, error) {
	if action == ActionMerge || id.Kind == KindMergePoint {
		if v, ok := t.merges[id]; ok {
			return v, nil
		}
		return -1, fmt.Errorf("%s target %s has no merge point", action, id)
	}
	if v, ok := t.handlers[id]; ok {
		return v, nil
	}
	return -1, fmt.Errorf("%s target %s not found", action, id)
}

// HandlerVertex returns the handler vertex of an item.
func (t *Topology) HandlerVertex(id Identity) (int, bool) {
	v, ok := t.handlers[id]
	return v, ok
}

// MergeVertex returns the merge vertex of an item.
func (t *Topology) MergeVertex(id Identity) (int, bool) {
	v, ok := t.merges[id]
	return v, ok
}

// Edges returns every dependency between vertices, including barrier edges
// induced by merge groups.
func (t *Topology) Edges() []Edge {
	var out []Edge
	for i, v := range t.Vertices {
		if v.Next >= 0 {
			out = append(out, Edge{From: i, To: v.Next})
		}
		for _, to := range v.Targets {
			if to >= 0 {
				out = append(out, Edge{From: i, To: to})
			}
		}
	}
	for _, grp := range t.Groups {
		for _, h := range grp.Handlers {
			for _, m := range grp.Members {
				if t.Vertices[m].Handler != h {
					out = append(out, Edge{From: h, To: m, Barrier: true})
				}
			}
		}
		for _, src := range grp.Members {
			for _, m := range grp.Members {
				v := t.Vertices[m]
				for j, to := range v.Targets {
					if v.Held[j] && to >= 0 && m != src {
						out = append(out, Edge{From: src, To: to, Barrier: true})
					}
				}
			}
		}
	}
	return out
}

// Order returns the vertices in a dependency respecting order. When the
// dependency graph has a cycle it returns the vertices left on it.
func (t *Topology) Order() (order []int, cycle []int) {
	indeg := make([]int, len(t.Vertices))
	next := make([][]int, len(t.Vertices))
	for _, e := range t.Edges() {
		indeg[e.To]++
		next[e.From] = append(next[e.From], e.To)
	}
	queue := make([]int, 0, len(t.Vertices))
	for v, d := range indeg {
		if d == 0 {
			queue = append(queue, v)
		}
	}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		order = append(order, v)
		for _, to := range next[v] {
			indeg[to]--
			if indeg[to] == 0 {
				queue = append(queue, to)
			}
		}
	}
	for v, d := range indeg {
		if d > 0 {
			cycle = append(cycle, v)
		}
	}
	return order, cycle
}
