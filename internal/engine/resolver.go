package engine

import "github.com/petrijr/reactor/pkg/api"

// resolveTransitions returns the indexes of the transitions fired by status.
// Transitions naming the status win; onAny transitions fire only when no
// specific transition matched. A status nothing accepts is an error.
func resolveTransitions(mp api.Identity, ts []api.Transition, status api.MergeStatus) ([]int, error) {
	var fired []int
	for i, t := range ts {
		if !t.OnAny && t.Accepts(status) {
			fired = append(fired, i)
		}
	}
	if len(fired) > 0 {
		return fired, nil
	}
	for i, t := range ts {
		if t.OnAny {
			fired = append(fired, i)
		}
	}
	if len(fired) == 0 {
		return nil, &api.UnhandledStatusError{MergePoint: mp, Status: status}
	}
	return fired, nil
}
