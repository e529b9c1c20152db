package reactor

import (
	"fmt"
	"slices"

	"github.com/petrijr/reactor/pkg/api"
	"github.com/petrijr/reactor/pkg/validation"
)

// GraphBuilder provides a fluent API for defining graphs over payload P:
//
//	graph, err := reactor.NewGraph[*Order]().
//	    HandleBy(fetchPrice).
//	    MergePoint(fetchPrice).
//	        On("OK").HandleBy(reserve).
//	        On("OUT_OF_STOCK").Complete().
//	    MergePoint(reserve).OnAny().Complete().
//	    Build()
//
// The first invalid declaration is latched: later calls do nothing, Err
// reports it and Build returns it.
type GraphBuilder[P any] struct {
	d          api.GraphDraft
	items      map[api.Identity]Item[P]
	itemIdx    map[api.Identity]int
	mpIdx      map[api.Identity]int
	grouped    map[api.Identity]bool
	validators []Validator
	err        error
}

// NewGraph starts the declaration of a graph over payload P. The graph is
// named after P unless Named is called.
func NewGraph[P any]() *GraphBuilder[P] {
	return &GraphBuilder[P]{
		d:       api.GraphDraft{PayloadType: typeOf[P]()},
		items:   make(map[api.Identity]Item[P]),
		itemIdx: make(map[api.Identity]int),
		mpIdx:   make(map[api.Identity]int),
		grouped: make(map[api.Identity]bool),
	}
}

func (b *GraphBuilder[P]) fail(item api.Identity, format string, args ...any) {
	if b.err == nil {
		b.err = &api.DefinitionError{Item: item, Msg: fmt.Sprintf(format, args...)}
	}
}

func (b *GraphBuilder[P]) Named(name string) *GraphBuilder[P] {
	if b.err == nil {
		b.d.Name = name
	}
	return b
}

// WithDocs documents the payload.
func (b *GraphBuilder[P]) WithDocs(docs ...string) *GraphBuilder[P] {
	if b.err == nil {
		b.d.PayloadDocs = append(b.d.PayloadDocs, docs...)
	}
	return b
}

// WithValidators adds validators run by Build after the default set.
func (b *GraphBuilder[P]) WithValidators(vs ...Validator) *GraphBuilder[P] {
	if b.err == nil {
		b.validators = append(b.validators, vs...)
	}
	return b
}

// declare adds it to the draft the first time it is used. Reusing an
// identity with a different item is an error.
func (b *GraphBuilder[P]) declare(it Item[P]) (api.ProcessingItem, bool) {
	if b.err != nil {
		return api.ProcessingItem{}, false
	}
	if isNil(it) {
		b.fail(api.Identity{}, "item is nil")
		return api.ProcessingItem{}, false
	}
	pi := it.processingItem()
	if prev, ok := b.items[pi.Identity]; ok {
		if prev != it {
			b.fail(pi.Identity, "identity already used by another item")
			return api.ProcessingItem{}, false
		}
		return pi, true
	}
	b.items[pi.Identity] = it
	b.itemIdx[pi.Identity] = len(b.d.Items)
	b.d.Items = append(b.d.Items, pi)
	return pi, true
}

func (b *GraphBuilder[P]) addStart(id api.Identity) {
	if slices.Contains(b.d.Start.Items, id) {
		b.fail(id, "listed twice at the start point")
		return
	}
	b.d.Start.Items = append(b.d.Start.Items, id)
}

// HandleBy makes the start point hand the payload to a processor or subgraph.
func (b *GraphBuilder[P]) HandleBy(item Item[P]) *GraphBuilder[P] {
	pi, ok := b.declare(item)
	if !ok {
		return b
	}
	if !pi.Identity.HasHandler() {
		b.fail(pi.Identity, "a detached merge point has no handler; use Merge")
		return b
	}
	b.addStart(pi.Identity)
	return b
}

// Merge makes the start point run a detached merge point directly.
func (b *GraphBuilder[P]) Merge(mp *MergePoint[P]) *GraphBuilder[P] {
	pi, ok := b.declare(mp)
	if !ok {
		return b
	}
	b.addStart(pi.Identity)
	return b
}

// MergePoint opens the declaration of the transitions leaving the merge
// point of item. The item must have a merger.
func (b *GraphBuilder[P]) MergePoint(item Item[P]) *MergePointTransitions[P] {
	t := &MergePointTransitions[P]{b: b}
	pi, ok := b.declare(item)
	if !ok {
		return t
	}
	if !pi.HasMerger() {
		b.fail(pi.Identity, "item has no merger and so no merge point")
		return t
	}
	t.owner = b.mergePoint(pi.Identity)
	return t
}

func (b *GraphBuilder[P]) mergePoint(owner api.Identity) int {
	if i, ok := b.mpIdx[owner]; ok {
		return i
	}
	b.mpIdx[owner] = len(b.d.MergePoints)
	b.d.MergePoints = append(b.d.MergePoints, api.MergePoint{Owner: owner})
	return b.mpIdx[owner]
}

// MergeGroup opens a merge group. Add at least two members with With.
func (b *GraphBuilder[P]) MergeGroup() *MergeGroupBuilder[P] {
	g := &MergeGroupBuilder[P]{b: b, idx: -1}
	if b.err == nil {
		g.idx = len(b.d.MergeGroups)
		b.d.MergeGroups = append(b.d.MergeGroups, api.MergeGroup{})
	}
	return g
}

// Coordinates opens the declaration of visualization coordinates. Items are
// looked up among those already declared.
func (b *GraphBuilder[P]) Coordinates() *CoordinatesBuilder[P] {
	return &CoordinatesBuilder[P]{b: b}
}

// Err returns the first declaration error, if any.
func (b *GraphBuilder[P]) Err() error { return b.err }

// Build freezes the declarations and runs the default validators followed
// by those added with WithValidators.
func (b *GraphBuilder[P]) Build() (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	for _, grp := range b.d.MergeGroups {
		if len(grp.Members) < 2 {
			return nil, &api.DefinitionError{Msg: fmt.Sprintf("merge group %v needs at least two members", grp.Members)}
		}
	}
	g := api.NewGraph(b.d)
	if err := validation.Run(g, append(validation.Default(), b.validators...)...); err != nil {
		return nil, err
	}
	return g, nil
}

// MustBuild is like Build but panics on error.
func (b *GraphBuilder[P]) MustBuild() *Graph {
	g, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("reactor: %v", err))
	}
	return g
}

// MergePointTransitions declares the transitions of one merge point. It
// also continues the graph declaration.
type MergePointTransitions[P any] struct {
	b     *GraphBuilder[P]
	owner int
}

// On opens a transition taken when the merger returns one of statuses.
func (t *MergePointTransitions[P]) On(statuses ...MergeStatus) *TransitionBuilder[P] {
	if len(statuses) == 0 && t.b.err == nil {
		t.b.fail(t.ownerID(), "On needs at least one status; use OnAny for a fallback")
	}
	return &TransitionBuilder[P]{mp: t, statuses: statuses}
}

// OnAny opens a transition taken when no On transition matches.
func (t *MergePointTransitions[P]) OnAny() *TransitionBuilder[P] {
	return &TransitionBuilder[P]{mp: t, onAny: true}
}

func (t *MergePointTransitions[P]) ownerID() api.Identity {
	if t.b.err != nil {
		return api.Identity{}
	}
	return t.b.d.MergePoints[t.owner].Owner
}

func (t *MergePointTransitions[P]) MergePoint(item Item[P]) *MergePointTransitions[P] {
	return t.b.MergePoint(item)
}

func (t *MergePointTransitions[P]) MergeGroup() *MergeGroupBuilder[P] { return t.b.MergeGroup() }

func (t *MergePointTransitions[P]) Coordinates() *CoordinatesBuilder[P] { return t.b.Coordinates() }

func (t *MergePointTransitions[P]) Err() error { return t.b.err }

func (t *MergePointTransitions[P]) Build() (*Graph, error) { return t.b.Build() }

func (t *MergePointTransitions[P]) MustBuild() *Graph { return t.b.MustBuild() }

// Graph returns the graph builder.
func (t *MergePointTransitions[P]) Graph() *GraphBuilder[P] { return t.b }

// TransitionBuilder completes one transition with its action.
type TransitionBuilder[P any] struct {
	mp       *MergePointTransitions[P]
	statuses []MergeStatus
	onAny    bool
}

// Merge delivers the payload to the merge point of target.
func (tb *TransitionBuilder[P]) Merge(target Item[P]) *MergePointTransitions[P] {
	b := tb.mp.b
	pi, ok := b.declare(target)
	if !ok {
		return tb.mp
	}
	if !pi.HasMerger() {
		b.fail(pi.Identity, "merge target has no merger")
		return tb.mp
	}
	b.mergePoint(pi.Identity)
	tb.add(api.ActionMerge, pi.Identity)
	return tb.mp
}

// HandleBy dispatches target's handler.
func (tb *TransitionBuilder[P]) HandleBy(target Item[P]) *MergePointTransitions[P] {
	b := tb.mp.b
	pi, ok := b.declare(target)
	if !ok {
		return tb.mp
	}
	if !pi.Identity.HasHandler() {
		b.fail(pi.Identity, "a detached merge point has no handler; use Merge")
		return tb.mp
	}
	tb.add(api.ActionHandleBy, pi.Identity)
	return tb.mp
}

// Complete ends the branch at the completion sink.
func (tb *TransitionBuilder[P]) Complete() *MergePointTransitions[P] {
	tb.add(api.ActionComplete, api.Identity{})
	return tb.mp
}

func (tb *TransitionBuilder[P]) add(action api.TransitionAction, target api.Identity) {
	b := tb.mp.b
	if b.err != nil {
		return
	}
	mp := &b.d.MergePoints[tb.mp.owner]
	for i, s := range tb.statuses {
		if slices.Contains(tb.statuses[:i], s) {
			b.fail(mp.Owner, "status %q listed twice", s)
			return
		}
		for _, t := range mp.Transitions {
			if t.Accepts(s) {
				b.fail(mp.Owner, "status %q already has a transition", s)
				return
			}
		}
	}
	mp.Transitions = append(mp.Transitions, api.Transition{
		Statuses: slices.Clone(tb.statuses),
		OnAny:    tb.onAny,
		Action:   action,
		Target:   target,
	})
}

// MergeGroupBuilder adds members to a merge group.
type MergeGroupBuilder[P any] struct {
	b   *GraphBuilder[P]
	idx int
}

// With adds the merge point of item to the group.
func (g *MergeGroupBuilder[P]) With(item Item[P]) *MergeGroupBuilder[P] {
	b := g.b
	pi, ok := b.declare(item)
	if !ok {
		return g
	}
	if !pi.HasMerger() {
		b.fail(pi.Identity, "merge group member has no merger")
		return g
	}
	grp := &b.d.MergeGroups[g.idx]
	switch {
	case slices.Contains(grp.Members, pi.Identity):
		b.fail(pi.Identity, "added twice to a merge group")
	case b.grouped[pi.Identity]:
		b.fail(pi.Identity, "already a member of another merge group")
	default:
		b.grouped[pi.Identity] = true
		b.mergePoint(pi.Identity)
		grp.Members = append(grp.Members, pi.Identity)
	}
	return g
}

func (g *MergeGroupBuilder[P]) MergePoint(item Item[P]) *MergePointTransitions[P] {
	return g.b.MergePoint(item)
}

func (g *MergeGroupBuilder[P]) MergeGroup() *MergeGroupBuilder[P] { return g.b.MergeGroup() }

func (g *MergeGroupBuilder[P]) Coordinates() *CoordinatesBuilder[P] { return g.b.Coordinates() }

func (g *MergeGroupBuilder[P]) Err() error { return g.b.err }

func (g *MergeGroupBuilder[P]) Build() (*Graph, error) { return g.b.Build() }

func (g *MergeGroupBuilder[P]) MustBuild() *Graph { return g.b.MustBuild() }

func (g *MergeGroupBuilder[P]) Graph() *GraphBuilder[P] { return g.b }

// CoordinatesBuilder places items for visualization. It has no effect on
// execution.
type CoordinatesBuilder[P any] struct {
	b *GraphBuilder[P]
}

func (c *CoordinatesBuilder[P]) Start(x, y int) *CoordinatesBuilder[P] {
	if c.b.err == nil {
		c.b.d.Start.Coordinates = &api.Coordinates{X: x, Y: y}
	}
	return c
}

// Proc places the processor or subgraph (typeName, id).
func (c *CoordinatesBuilder[P]) Proc(typeName string, id int, x, y int) *CoordinatesBuilder[P] {
	if item, ok := c.lookup(typeName, id); ok {
		c.b.d.Items[c.b.itemIdx[item]].Coordinates = &api.Coordinates{X: x, Y: y}
	}
	return c
}

// Merge places the merge point of the processor or subgraph (typeName, id).
func (c *CoordinatesBuilder[P]) Merge(typeName string, id int, x, y int) *CoordinatesBuilder[P] {
	if item, ok := c.lookup(typeName, id); ok {
		c.placeMergePoint(item, x, y)
	}
	return c
}

// MergeNamed places the detached merge point name.
func (c *CoordinatesBuilder[P]) MergeNamed(name string, x, y int) *CoordinatesBuilder[P] {
	if item, ok := c.lookupNamed(name); ok {
		c.b.d.Items[c.b.itemIdx[item]].Coordinates = &api.Coordinates{X: x, Y: y}
		c.placeMergePoint(item, x, y)
	}
	return c
}

// Complete places the completion sink of the complete transitions leaving
// the merge point of (typeName, id).
func (c *CoordinatesBuilder[P]) Complete(typeName string, id int, x, y int) *CoordinatesBuilder[P] {
	if item, ok := c.lookup(typeName, id); ok {
		c.placeComplete(item, x, y)
	}
	return c
}

// CompleteNamed is Complete for the detached merge point name.
func (c *CoordinatesBuilder[P]) CompleteNamed(name string, x, y int) *CoordinatesBuilder[P] {
	if item, ok := c.lookupNamed(name); ok {
		c.placeComplete(item, x, y)
	}
	return c
}

func (c *CoordinatesBuilder[P]) lookup(typeName string, id int) (api.Identity, bool) {
	b := c.b
	if b.err != nil {
		return api.Identity{}, false
	}
	var found []api.Identity
	for _, it := range b.d.Items {
		if it.Identity.Matches(typeName, id) {
			found = append(found, it.Identity)
		}
	}
	switch len(found) {
	case 0:
		b.fail(api.Identity{}, "no processor or subgraph %s@%d", typeName, id)
		return api.Identity{}, false
	case 1:
		return found[0], true
	}
	b.fail(found[0], "%s@%d is ambiguous: %v", typeName, id, found)
	return api.Identity{}, false
}

func (c *CoordinatesBuilder[P]) lookupNamed(name string) (api.Identity, bool) {
	b := c.b
	if b.err != nil {
		return api.Identity{}, false
	}
	id := api.MergePointID(name)
	if _, ok := b.itemIdx[id]; !ok {
		b.fail(id, "no such merge point")
		return api.Identity{}, false
	}
	return id, true
}

func (c *CoordinatesBuilder[P]) placeMergePoint(owner api.Identity, x, y int) {
	i, ok := c.b.mpIdx[owner]
	if !ok {
		c.b.fail(owner, "no merge point declared")
		return
	}
	c.b.d.MergePoints[i].Coordinates = &api.Coordinates{X: x, Y: y}
}

func (c *CoordinatesBuilder[P]) placeComplete(owner api.Identity, x, y int) {
	i, ok := c.b.mpIdx[owner]
	if !ok {
		c.b.fail(owner, "no merge point declared")
		return
	}
	placed := false
	for j := range c.b.d.MergePoints[i].Transitions {
		t := &c.b.d.MergePoints[i].Transitions[j]
		if t.IsComplete() {
			t.CompleteCoordinates = &api.Coordinates{X: x, Y: y}
			placed = true
		}
	}
	if !placed {
		c.b.fail(owner, "merge point has no complete transition")
	}
}

func (c *CoordinatesBuilder[P]) Err() error { return c.b.err }

func (c *CoordinatesBuilder[P]) Build() (*Graph, error) { return c.b.Build() }

func (c *CoordinatesBuilder[P]) MustBuild() *Graph { return c.b.MustBuild() }

func (c *CoordinatesBuilder[P]) Graph() *GraphBuilder[P] { return c.b }
