package engine

import (
	"context"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/reactor/pkg/api"
)

// trace records the order in which mergers touched the payload.
type trace struct {
	Route string
	Steps []int
}

func step(n int) api.Identity { return api.ProcessorID("Step", n) }

// call wraps a handler body that reads nothing from the payload.
func call(fn api.HandlerCall) api.HandlerFunc {
	return func(any) (api.HandlerCall, error) { return fn, nil }
}

// returning is a handler producing n.
func returning(n int) api.HandlerFunc {
	return call(func(ctx context.Context) (any, error) { return n, nil })
}

// recordResult appends the handler result to the trace.
func recordResult(p, r any) (api.MergeStatus, error) {
	t := p.(*trace)
	t.Steps = append(t.Steps, r.(int))
	return "OK", nil
}

// recordConst appends n to the trace; used by detached merge points.
func recordConst(n int) api.MergerFunc {
	return func(p, _ any) (api.MergeStatus, error) {
		t := p.(*trace)
		t.Steps = append(t.Steps, n)
		return "OK", nil
	}
}

func processor(n int) api.ProcessingItem {
	return api.ProcessingItem{Identity: step(n), Handler: returning(n), Merger: recordResult}
}

func detached(n int, h api.HandlerFunc) api.ProcessingItem {
	return api.ProcessingItem{Identity: step(n), Handler: h}
}

func merge(to api.Identity, statuses ...api.MergeStatus) api.Transition {
	return api.Transition{Statuses: statuses, OnAny: len(statuses) == 0, Action: api.ActionMerge, Target: to}
}

func handleBy(to api.Identity, statuses ...api.MergeStatus) api.Transition {
	return api.Transition{Statuses: statuses, OnAny: len(statuses) == 0, Action: api.ActionHandleBy, Target: to}
}

func complete(statuses ...api.MergeStatus) api.Transition {
	return api.Transition{Statuses: statuses, OnAny: len(statuses) == 0, Action: api.ActionComplete}
}

func mergePoint(owner api.Identity, ts ...api.Transition) api.MergePoint {
	return api.MergePoint{Owner: owner, Transitions: ts}
}

func draft(start ...api.Identity) api.GraphDraft {
	return api.GraphDraft{
		PayloadType: reflect.TypeOf(&trace{}),
		Start:       api.StartPoint{Items: start},
	}
}

func newTestReactor(t *testing.T, drafts ...api.GraphDraft) *Reactor {
	t.Helper()

	r := NewInMemoryReactor()
	for _, d := range drafts {
		require.NoError(t, r.Register(api.NewGraph(d)))
	}
	return r
}

func waitResult(t *testing.T, exec *api.Execution) (any, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := exec.Result.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "result future did not resolve")
	return v, err
}

func waitChain(t *testing.T, exec *api.Execution) error {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := exec.Chain.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "chain future did not resolve")
	return err
}

func execute(t *testing.T, r *Reactor, payload *trace) *trace {
	t.Helper()

	exec, err := r.Submit(context.Background(), payload)
	require.NoError(t, err)
	v, err := waitResult(t, exec)
	require.NoError(t, err)
	require.NoError(t, waitChain(t, exec))
	return v.(*trace)
}

// exclusive counts overlapping entries into sections that must not run
// concurrently.
type exclusive struct {
	inside   atomic.Int32
	overlaps atomic.Int32
}

func (e *exclusive) hold(d time.Duration) {
	if e.inside.Add(1) > 1 {
		e.overlaps.Add(1)
	}
	time.Sleep(d)
	e.inside.Add(-1)
}
