package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/petrijr/reactor/pkg/api"
)

type vertexState struct {
	remaining int
	// live is set when a start or transition flow arrived live.
	live bool
	// own is the outcome of a merge vertex's own handler.
	own    tokenState
	result any
	err    error
}

// run is one execution of a plan. Tokens flow between vertices; a vertex
// fires once all of its inputs have arrived, so every vertex resolves exactly
// once and dead branches propagate to the end of the graph.
type run struct {
	r    *Reactor
	plan *plan
	exec *api.Execution
	ctx  context.Context

	// payloadMu serializes mergers and argument binding. The root execution
	// creates it and every nested execution shares it.
	payloadMu *sync.Mutex

	mu        sync.Mutex
	vertices  []vertexState
	barriers  []*barrier
	attached  int
	completed bool
	resultErr error
	fatal     error
	branchErr error
	timer     *time.Timer

	// wg counts unresolved vertices and unfinished child chains.
	wg sync.WaitGroup
}

func (r *Reactor) start(ctx context.Context, p *plan, payload any, parentID string, payloadMu *sync.Mutex, timeout time.Duration) *run {
	exec := &api.Execution{
		ID:          xid.New().String(),
		ParentID:    parentID,
		Graph:       p.graph.Name(),
		Payload:     payload,
		SubmittedAt: time.Now().UTC(),
		Result:      api.NewFuture(),
		Chain:       api.NewFuture(),
	}
	x := &run{
		r:         r,
		plan:      p,
		exec:      exec,
		ctx:       ctx,
		payloadMu: payloadMu,
		vertices:  make([]vertexState, len(p.topo.Vertices)),
		barriers:  make([]*barrier, len(p.topo.Groups)),
		attached:  p.attached,
	}
	for i := range x.vertices {
		x.vertices[i].remaining = p.inputs[i]
		x.vertices[i].own = tokenDead
	}
	for i, grp := range p.topo.Groups {
		x.barriers[i] = newBarrier(len(grp.Members))
	}

	r.running.add(x)
	r.observer.OnExecutionStart(ctx, exec)

	if timeout > 0 {
		x.mu.Lock()
		x.timer = time.AfterFunc(timeout, func() {
			x.resolveResult(fmt.Errorf("%w: execution %s of graph %q after %s", api.ErrTimeout, exec.ID, exec.Graph, timeout))
		})
		x.mu.Unlock()
	}

	x.wg.Add(len(x.vertices))
	go func() {
		x.wg.Wait()
		x.finishChain()
	}()

	start := make([]delivery, 0, len(p.topo.Start))
	for _, v := range p.topo.Start {
		start = append(start, delivery{to: v, tok: token{state: tokenLive}})
	}
	go x.deliver(start)
	return x
}

func (x *run) logger() *slog.Logger {
	return x.r.logger.With(
		slog.String("graph", x.exec.Graph),
		slog.String("execution_id", x.exec.ID),
	)
}

// deliver processes deliveries until no vertex becomes ready on the calling
// goroutine. Handlers run on their own goroutines and continue delivering
// from there.
func (x *run) deliver(queue []delivery) {
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		if x.accept(d) {
			queue = append(queue, x.fire(d.to)...)
		}
	}
}

// accept records a token and reports whether its vertex is ready.
func (x *run) accept(d delivery) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	st := &x.vertices[d.to]
	switch d.tok.state {
	case tokenLive:
		if d.tok.own {
			st.own = tokenLive
			st.result = d.tok.value
		} else {
			st.live = true
		}
	case tokenFailed:
		if d.tok.own {
			st.own = tokenFailed
		}
		if st.err == nil {
			st.err = d.tok.err
		}
	}
	st.remaining--
	return st.remaining == 0
}

func (x *run) fire(v int) []delivery {
	x.mu.Lock()
	st := x.vertices[v]
	fatal := x.fatal
	x.mu.Unlock()

	if x.plan.topo.Vertices[v].Kind == api.VertexHandler {
		switch {
		case st.err != nil:
			return x.resolveHandler(v, token{state: tokenFailed, err: st.err})
		case !st.live || fatal != nil:
			return x.resolveHandler(v, token{state: tokenDead})
		}
		go x.runHandler(v)
		return nil
	}
	return x.fireMerge(v, st, fatal)
}

func (x *run) runHandler(v int) {
	item := x.plan.items[v]
	x.r.observer.OnHandlerStart(x.ctx, x.exec, item.Identity)
	begin := time.Now()

	var (
		out any
		err error
	)
	if item.Identity.Kind == api.KindSubgraph {
		out, err = x.runSubgraph(item)
	} else {
		out, err = callHandler(x.ctx, x.payloadMu, item, x.exec.Payload)
	}
	x.r.observer.OnHandlerCompleted(x.ctx, x.exec, item.Identity, err, time.Since(begin))

	tok := token{state: tokenLive, value: out}
	if err != nil {
		x.branchFailed(err)
		tok = token{state: tokenFailed, err: err}
	}
	x.deliver(x.resolveHandler(v, tok))
}

// callHandler binds the handler arguments under mu and runs the handler
// without it.
func callHandler(ctx context.Context, mu *sync.Mutex, item api.ProcessingItem, payload any) (out any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, &api.HandlerError{Item: item.Identity, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()
	call, err := withLock(mu, func() (api.HandlerCall, error) { return item.Handler(payload) })
	if err != nil {
		return nil, &api.HandlerError{Item: item.Identity, Err: err}
	}
	out, err = call(ctx)
	if err != nil {
		return nil, &api.HandlerError{Item: item.Identity, Err: err}
	}
	return out, nil
}

func (x *run) resolveHandler(v int, tok token) []delivery {
	vert := x.plan.topo.Vertices[v]
	out := make([]delivery, 0, 1+len(x.plan.gates[v]))
	if vert.Next >= 0 {
		tok.own = true
		out = append(out, delivery{to: vert.Next, tok: tok})
	}
	for _, m := range x.plan.gates[v] {
		out = append(out, delivery{to: m, tok: token{state: tokenGate}})
	}
	x.mu.Lock()
	last := x.resolvedLocked(v)
	x.mu.Unlock()
	if last {
		x.finishResult()
	}
	x.wg.Done()
	return out
}

func (x *run) fireMerge(v int, st vertexState, fatal error) []delivery {
	vert := x.plan.topo.Vertices[v]
	item := x.plan.items[v]

	outcome := token{state: tokenDead}
	var fired []int
	switch {
	case st.err != nil:
		outcome = token{state: tokenFailed, err: st.err}
	case fatal != nil:
	case vert.Handler >= 0 && st.own != tokenLive:
	case vert.Flows > 0 && !st.live:
	default:
		status, err := x.merge(item, st.result)
		if err != nil {
			x.branchFailed(err)
			outcome = token{state: tokenFailed, err: err}
			break
		}
		fired, err = resolveTransitions(item.Identity, vert.Transitions, status)
		if err != nil {
			x.failFatal(err)
			break
		}
		outcome = token{state: tokenLive}
	}

	ds := make([]delivery, len(vert.Transitions))
	for i, to := range vert.Targets {
		tok := outcome
		if tok.state == tokenLive && !slices.Contains(fired, i) {
			tok = token{state: tokenDead}
		}
		ds[i] = delivery{to: to, tok: tok}
	}

	x.mu.Lock()
	now := ds
	if vert.Group >= 0 {
		b := x.barriers[vert.Group]
		now = now[:0:0]
		for i, d := range ds {
			if vert.Held[i] {
				b.hold(x.plan.member[v], d)
			} else {
				now = append(now, d)
			}
		}
		now = append(now, b.arrive()...)
	}
	rest := make([]delivery, 0, len(now))
	for _, d := range now {
		if d.to == sinkComplete {
			x.completeLocked(d.tok)
			continue
		}
		rest = append(rest, d)
	}
	last := x.resolvedLocked(v)
	x.mu.Unlock()

	if last {
		x.finishResult()
	}
	x.wg.Done()
	return rest
}

// merge runs the merger of item under the payload lock.
func (x *run) merge(item api.ProcessingItem, result any) (status api.MergeStatus, err error) {
	begin := time.Now()
	x.payloadMu.Lock()
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				status, err = "", fmt.Errorf("panic: %v", rec)
			}
		}()
		status, err = item.Merger(x.exec.Payload, result)
	}()
	x.payloadMu.Unlock()

	if err != nil {
		status, err = "", &api.MergerError{Item: item.Identity, Err: err}
	}
	x.r.observer.OnMergeCompleted(x.ctx, x.exec, item.Identity, status, err, time.Since(begin))
	return status, err
}

// runSubgraph executes the child graph registered for the payload the
// subgraph derives, and returns the child payload once the child's result
// resolves. The child's detached branches extend this execution's chain.
func (x *run) runSubgraph(item api.ProcessingItem) (any, error) {
	child, err := callChildArg(x.payloadMu, item, x.exec.Payload)
	if err != nil {
		return nil, err
	}
	if child == nil {
		return nil, &api.HandlerError{Item: item.Identity, Err: errors.New("subgraph argument is nil")}
	}
	p, ok := x.r.registry.Get(reflect.TypeOf(child))
	if !ok {
		err := fmt.Errorf("subgraph %s: %w for payload type %s", item.Identity, api.ErrGraphNotRegistered, api.TypeName(reflect.TypeOf(child)))
		x.failFatal(err)
		return nil, err
	}

	// The child may share state with this payload, so the whole execution
	// tree merges under one lock.
	sub := x.r.start(x.ctx, p, child, x.exec.ID, x.payloadMu, 0)

	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		if _, err := sub.exec.Chain.Wait(context.Background()); err != nil {
			x.branchFailed(err)
		}
	}()

	if _, err := sub.exec.Result.Wait(context.Background()); err != nil {
		return nil, &api.HandlerError{Item: item.Identity, Err: err}
	}
	return child, nil
}

func callChildArg(mu *sync.Mutex, item api.ProcessingItem, payload any) (child any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			child, err = nil, &api.HandlerError{Item: item.Identity, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()
	child, err = withLock(mu, func() (any, error) { return item.ChildArg(payload) })
	if err != nil {
		return nil, &api.HandlerError{Item: item.Identity, Err: err}
	}
	return child, nil
}

func withLock[T any](mu *sync.Mutex, fn func() (T, error)) (T, error) {
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

func (x *run) completeLocked(tok token) {
	switch tok.state {
	case tokenLive:
		x.completed = true
	case tokenFailed:
		if x.resultErr == nil {
			x.resultErr = tok.err
		}
	}
}

// resolvedLocked marks vertex v resolved and reports whether it was the last
// vertex the result waits for.
func (x *run) resolvedLocked(v int) bool {
	if x.plan.topo.Vertices[v].Detached {
		return false
	}
	x.attached--
	return x.attached == 0
}

func (x *run) branchFailed(err error) {
	x.mu.Lock()
	if x.branchErr == nil {
		x.branchErr = err
	}
	x.mu.Unlock()
}

// failFatal stops dispatching handlers and fails the result immediately.
func (x *run) failFatal(err error) {
	x.mu.Lock()
	if x.fatal == nil {
		x.fatal = err
	}
	if x.branchErr == nil {
		x.branchErr = err
	}
	x.mu.Unlock()

	x.logger().Error("execution_fatal", slog.Any("error", err))
	x.resolveResult(err)
}

func (x *run) finishResult() {
	x.mu.Lock()
	completed, resultErr, fatal := x.completed, x.resultErr, x.fatal
	x.mu.Unlock()

	var err error
	switch {
	case fatal != nil:
		err = fatal
	case resultErr != nil:
		err = resultErr
	case !completed:
		err = fmt.Errorf("%w: graph %q", api.ErrNoCompletion, x.exec.Graph)
	}
	x.resolveResult(err)
}

func (x *run) resolveResult(err error) {
	var first bool
	if err != nil {
		first = x.exec.Result.Resolve(nil, err)
	} else {
		first = x.exec.Result.Resolve(x.exec.Payload, nil)
	}
	if !first {
		return
	}

	x.mu.Lock()
	if x.timer != nil {
		x.timer.Stop()
	}
	x.mu.Unlock()

	if err != nil {
		x.r.observer.OnExecutionFailed(x.ctx, x.exec, err)
		return
	}
	x.r.observer.OnExecutionCompleted(x.ctx, x.exec)
}

func (x *run) finishChain() {
	x.mu.Lock()
	err := x.branchErr
	if err == nil {
		err = x.resultErr
	}
	x.mu.Unlock()

	x.r.observer.OnChainCompleted(x.ctx, x.exec, err)
	x.r.running.remove(x.exec.ID)
	if err != nil {
		x.exec.Chain.Resolve(nil, err)
	} else {
		x.exec.Chain.Resolve(x.exec.Payload, nil)
	}
}
