// Package validation provides the structural checks a graph must pass before
// it can be registered. Validators are independent; callers may add their
// own implementations of api.Validator.
package validation

import (
	"fmt"
	"slices"

	"github.com/petrijr/reactor/pkg/api"
)

// Default returns the standard validator set in the order it should run.
func Default() []api.Validator {
	return []api.Validator{
		StartPointNotEmpty(),
		TargetsExist(),
		ItemsReachable(),
		MergePointsHaveTransitions(),
		DistinctStatuses(),
		MergeTargetsHaveMergers(),
		MergeGroups(),
		CompletionReachable(),
		Acyclic(),
	}
}

// Run applies validators in order and returns the first failure.
func Run(g *api.Graph, validators ...api.Validator) error {
	if g == nil {
		return &api.ValidationError{Validator: "graph", Msg: "graph is nil"}
	}
	for _, v := range validators {
		if err := v.Validate(g); err != nil {
			return err
		}
	}
	return nil
}

func fail(validator string, item api.Identity, format string, args ...any) error {
	return &api.ValidationError{Validator: validator, Item: item, Msg: fmt.Sprintf(format, args...)}
}

// StartPointNotEmpty requires at least one item at the start point.
func StartPointNotEmpty() api.Validator {
	const name = "start-point"
	return api.ValidatorFunc{ID: name, Fn: func(g *api.Graph) error {
		if len(g.StartPoint().Items) == 0 {
			return fail(name, api.Identity{}, "start point does not hand the payload to any item")
		}
		return nil
	}}
}

// TargetsExist requires every referenced identity to be declared.
func TargetsExist() api.Validator {
	const name = "targets-exist"
	return api.ValidatorFunc{ID: name, Fn: func(g *api.Graph) error {
		known := func(id api.Identity) bool {
			_, ok := g.Item(id)
			return ok
		}
		for _, id := range g.StartPoint().Items {
			if !known(id) {
				return fail(name, id, "start point target is not declared in the graph")
			}
		}
		for _, mp := range g.MergePoints() {
			if !known(mp.Owner) {
				return fail(name, mp.Owner, "merge point owner is not declared in the graph")
			}
			for i, t := range mp.Transitions {
				if t.IsComplete() {
					continue
				}
				if !known(t.Target) {
					return fail(name, mp.Owner, "transition %d targets %s which is not declared in the graph", i, t.Target)
				}
			}
		}
		for _, grp := range g.MergeGroups() {
			for _, m := range grp.Members {
				if !known(m) {
					return fail(name, m, "merge group member is not declared in the graph")
				}
			}
		}
		return nil
	}}
}

// ItemsReachable requires every item to be listed at the start point or to
// be the target of a transition.
func ItemsReachable() api.Validator {
	const name = "items-reachable"
	return api.ValidatorFunc{ID: name, Fn: func(g *api.Graph) error {
		incoming := make(map[api.Identity]bool)
		for _, id := range g.StartPoint().Items {
			incoming[id] = true
		}
		for _, mp := range g.MergePoints() {
			for _, t := range mp.Transitions {
				if t.IsComplete() {
					continue
				}
				incoming[t.Target] = true
			}
		}
		for _, it := range g.Items() {
			if !incoming[it.Identity] {
				return fail(name, it.Identity, "item has no incoming transition and is not listed at the start point")
			}
		}
		return nil
	}}
}

// MergePointsHaveTransitions requires each item with a merger to own exactly
// one merge point with at least one transition, and merge points to belong to
// items with a merger.
func MergePointsHaveTransitions() api.Validator {
	const name = "merge-point-transitions"
	return api.ValidatorFunc{ID: name, Fn: func(g *api.Graph) error {
		seen := make(map[api.Identity]bool)
		for _, mp := range g.MergePoints() {
			if seen[mp.Owner] {
				return fail(name, mp.Owner, "item owns more than one merge point")
			}
			seen[mp.Owner] = true
			if it, ok := g.Item(mp.Owner); ok && !it.HasMerger() {
				return fail(name, mp.Owner, "merge point declared for an item without merger")
			}
			if len(mp.Transitions) == 0 {
				return fail(name, mp.Owner, "merge point has no transitions")
			}
		}
		for _, it := range g.Items() {
			if it.HasMerger() && !seen[it.Identity] {
				return fail(name, it.Identity, "item has a merger but no merge point transitions")
			}
		}
		return nil
	}}
}

// DistinctStatuses forbids two specific transitions of one merge point from
// claiming the same status.
func DistinctStatuses() api.Validator {
	const name = "distinct-statuses"
	return api.ValidatorFunc{ID: name, Fn: func(g *api.Graph) error {
		for _, mp := range g.MergePoints() {
			claimed := make(map[api.MergeStatus]int)
			for i, t := range mp.Transitions {
				if t.OnAny {
					continue
				}
				if len(t.Statuses) == 0 {
					return fail(name, mp.Owner, "transition %d declares no status and is not onAny", i)
				}
				for _, s := range t.Statuses {
					if prev, dup := claimed[s]; dup {
						return fail(name, mp.Owner, "status %q claimed by transitions %d and %d", s, prev, i)
					}
					claimed[s] = i
				}
			}
		}
		return nil
	}}
}

// MergeTargetsHaveMergers requires merge transitions to target items that
// own a merge point.
func MergeTargetsHaveMergers() api.Validator {
	const name = "merge-targets"
	return api.ValidatorFunc{ID: name, Fn: func(g *api.Graph) error {
		for _, mp := range g.MergePoints() {
			for _, t := range mp.Transitions {
				if t.Action != api.ActionMerge {
					continue
				}
				if it, ok := g.Item(t.Target); ok && !it.HasMerger() {
					return fail(name, mp.Owner, "merge target %s has no merger", t.Target)
				}
			}
		}
		return nil
	}}
}

// MergeGroups checks group membership rules.
func MergeGroups() api.Validator {
	const name = "merge-groups"
	return api.ValidatorFunc{ID: name, Fn: func(g *api.Graph) error {
		owner := make(map[api.Identity]int)
		startGroups := 0
		for gi, grp := range g.MergeGroups() {
			if len(grp.Members) < 2 {
				return fail(name, api.Identity{}, "merge group %d should contain at least two items", gi)
			}
			for i, m := range grp.Members {
				if slices.Contains(grp.Members[:i], m) {
					return fail(name, m, "duplicate member of merge group %d", gi)
				}
				if prev, ok := owner[m]; ok {
					return fail(name, m, "member of merge groups %d and %d", prev, gi)
				}
				owner[m] = gi
				if _, ok := g.MergePoint(m); !ok {
					return fail(name, m, "merge group %d member has no merge point", gi)
				}
			}
			if g.IncludesStartPoint(grp) {
				startGroups++
			}
		}
		if startGroups > 1 {
			return fail(name, api.Identity{}, "%d merge groups include the start point, at most one may", startGroups)
		}
		return nil
	}}
}

// CompletionReachable requires at least one complete transition.
func CompletionReachable() api.Validator {
	const name = "completion"
	return api.ValidatorFunc{ID: name, Fn: func(g *api.Graph) error {
		for _, mp := range g.MergePoints() {
			for _, t := range mp.Transitions {
				if t.IsComplete() {
					return nil
				}
			}
		}
		return fail(name, api.Identity{}, "graph has no complete transition")
	}}
}

// Acyclic rejects graphs whose execution dependencies, including merge group
// barriers, contain a cycle. Such graphs could never finish.
func Acyclic() api.Validator {
	const name = "acyclic"
	return api.ValidatorFunc{ID: name, Fn: func(g *api.Graph) error {
		topo, err := api.BuildTopology(g)
		if err != nil {
			return fail(name, api.Identity{}, "%v", err)
		}
		_, cycle := topo.Order()
		if len(cycle) == 0 {
			return nil
		}
		v := topo.Vertices[cycle[0]]
		return fail(name, v.Item, "%s vertex waits on a dependency cycle (%d vertices blocked)", v.Kind, len(cycle))
	}}
}
