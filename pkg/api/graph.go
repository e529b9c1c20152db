package api

import (
	"context"
	"reflect"
	"slices"
)

// HandlerFunc is the erased form of a processor handler. It derives the
// handler arguments from the payload and returns the call that runs the
// handler on them. The engine invokes it with the payload locked, so it must
// not block, and runs the returned call without the lock.
type HandlerFunc func(payload any) (HandlerCall, error)

// HandlerCall is a handler bound to its arguments.
type HandlerCall func(ctx context.Context) (any, error)

// MergerFunc folds a handler result into the payload and returns the status
// that selects outgoing transitions. Detached merge points receive a nil
// result.
type MergerFunc func(payload any, result any) (MergeStatus, error)

// ChildArgFunc maps a parent payload to the payload of a subgraph. Like
// HandlerFunc it runs with the payload locked.
type ChildArgFunc func(payload any) (any, error)

// ArgBinding describes one handler argument.
type ArgBinding struct {
	Index int
	Type  string
	Copy  bool
}

// ProcessingItem is a graph node. Identity.Kind selects which fields apply:
// processors use Handler, subgraphs use ChildArg and ChildPayload, detached
// merge points only use Merger.
type ProcessingItem struct {
	Identity Identity

	Title string
	Docs  []string

	Args    []ArgBinding
	Handler HandlerFunc

	ChildPayload reflect.Type
	ChildArg     ChildArgFunc

	// Merger is nil for detached processors and subgraphs.
	Merger      MergerFunc
	MergerTitle string
	MergerDocs  []string

	Coordinates *Coordinates

	// Provenance is an optional opaque token supplied by the caller, e.g. a
	// source location. It is never used for execution.
	Provenance string
}

// HasMerger reports whether the item folds its result into the payload.
func (p ProcessingItem) HasMerger() bool { return p.Merger != nil }

// Detached reports whether the item's completion is excluded from the result
// future.
func (p ProcessingItem) Detached() bool {
	return p.Identity.HasHandler() && p.Merger == nil
}

func (p ProcessingItem) clone() ProcessingItem {
	p.Docs = slices.Clone(p.Docs)
	p.Args = slices.Clone(p.Args)
	p.MergerDocs = slices.Clone(p.MergerDocs)
	p.Coordinates = cloneCoords(p.Coordinates)
	return p
}

// TransitionAction is what a firing transition does.
type TransitionAction string

const (
	ActionMerge    TransitionAction = "merge"
	ActionHandleBy TransitionAction = "handleBy"
	ActionComplete TransitionAction = "complete"
)

// Transition is a status-conditioned edge out of a merge point.
type Transition struct {
	Statuses []MergeStatus
	OnAny    bool
	Action   TransitionAction
	// Target is zero for complete transitions.
	Target Identity

	CompleteCoordinates *Coordinates
}

// IsComplete reports whether the transition ends at the completion sink.
func (t Transition) IsComplete() bool { return t.Action == ActionComplete }

// Accepts reports whether the transition lists status explicitly.
func (t Transition) Accepts(status MergeStatus) bool {
	return slices.Contains(t.Statuses, status)
}

func (t Transition) clone() Transition {
	t.Statuses = slices.Clone(t.Statuses)
	t.CompleteCoordinates = cloneCoords(t.CompleteCoordinates)
	return t
}

// MergePoint is the join and decision node of an item with a merger.
type MergePoint struct {
	Owner       Identity
	Transitions []Transition
	Coordinates *Coordinates
}

func (m MergePoint) clone() MergePoint {
	ts := make([]Transition, len(m.Transitions))
	for i, t := range m.Transitions {
		ts[i] = t.clone()
	}
	m.Transitions = ts
	m.Coordinates = cloneCoords(m.Coordinates)
	return m
}

// MergeGroup is a barrier over the merge points of its members.
type MergeGroup struct {
	Members []Identity
}

// StartPoint lists, in order, the items that receive the payload first.
// Processors and subgraphs are handled, detached merge points are merged.
type StartPoint struct {
	Items       []Identity
	Coordinates *Coordinates
}

// GraphDraft is the mutable form of a graph used during construction.
type GraphDraft struct {
	Name        string
	PayloadType reflect.Type
	PayloadDocs []string
	Start       StartPoint
	Items       []ProcessingItem
	MergePoints []MergePoint
	MergeGroups []MergeGroup
}

// Graph is the immutable graph model. It is safe for concurrent use.
type Graph struct {
	name        string
	payloadType reflect.Type
	payloadDocs []string
	start       StartPoint
	items       []ProcessingItem
	byID        map[Identity]int
	mergePoints []MergePoint
	mpByOwner   map[Identity]int
	groups      []MergeGroup
}

// NewGraph freezes a draft. The draft may be reused or discarded afterwards.
// NewGraph does not validate; see the validation package.
func NewGraph(d GraphDraft) *Graph {
	g := &Graph{
		name:        d.Name,
		payloadType: d.PayloadType,
		payloadDocs: slices.Clone(d.PayloadDocs),
		start: StartPoint{
			Items:       slices.Clone(d.Start.Items),
			Coordinates: cloneCoords(d.Start.Coordinates),
		},
		byID:      make(map[Identity]int, len(d.Items)),
		mpByOwner: make(map[Identity]int, len(d.MergePoints)),
	}
	if g.name == "" && g.payloadType != nil {
		g.name = TypeName(g.payloadType)
	}
	for _, it := range d.Items {
		if _, dup := g.byID[it.Identity]; dup {
			continue
		}
		g.byID[it.Identity] = len(g.items)
		g.items = append(g.items, it.clone())
	}
	for _, mp := range d.MergePoints {
		g.mpByOwner[mp.Owner] = len(g.mergePoints)
		g.mergePoints = append(g.mergePoints, mp.clone())
	}
	for _, grp := range d.MergeGroups {
		g.groups = append(g.groups, MergeGroup{Members: slices.Clone(grp.Members)})
	}
	return g
}

// Name is the graph name, by default the payload type name.
func (g *Graph) Name() string { return g.name }

// PayloadType is the type of payload the graph accepts.
func (g *Graph) PayloadType() reflect.Type { return g.payloadType }

func (g *Graph) PayloadDocs() []string { return slices.Clone(g.payloadDocs) }

func (g *Graph) StartPoint() StartPoint {
	return StartPoint{Items: slices.Clone(g.start.Items), Coordinates: cloneCoords(g.start.Coordinates)}
}

// Items returns the processing items in declaration order.
func (g *Graph) Items() []ProcessingItem {
	out := make([]ProcessingItem, len(g.items))
	for i, it := range g.items {
		out[i] = it.clone()
	}
	return out
}

// Item looks up a processing item by identity.
func (g *Graph) Item(id Identity) (ProcessingItem, bool) {
	i, ok := g.byID[id]
	if !ok {
		return ProcessingItem{}, false
	}
	return g.items[i].clone(), true
}

// MergePoints returns the merge points in declaration order.
func (g *Graph) MergePoints() []MergePoint {
	out := make([]MergePoint, len(g.mergePoints))
	for i, mp := range g.mergePoints {
		out[i] = mp.clone()
	}
	return out
}

// MergePoint returns the merge point owned by the given item.
func (g *Graph) MergePoint(owner Identity) (MergePoint, bool) {
	i, ok := g.mpByOwner[owner]
	if !ok {
		return MergePoint{}, false
	}
	return g.mergePoints[i].clone(), true
}

func (g *Graph) MergeGroups() []MergeGroup {
	out := make([]MergeGroup, len(g.groups))
	for i, grp := range g.groups {
		out[i] = MergeGroup{Members: slices.Clone(grp.Members)}
	}
	return out
}

// IncludesStartPoint reports whether grp contains a detached merge point the
// start point merges into.
func (g *Graph) IncludesStartPoint(grp MergeGroup) bool {
	for _, m := range grp.Members {
		if m.Kind == KindMergePoint && slices.Contains(g.start.Items, m) {
			return true
		}
	}
	return false
}

// TypeName returns the short name of t, dereferencing pointers.
func TypeName(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

func cloneCoords(c *Coordinates) *Coordinates {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
