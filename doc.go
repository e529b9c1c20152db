// Package reactor runs business logic described as a graph of asynchronous
// steps over a mutable payload.
//
// A graph is declared once, validated and registered with a Reactor. Every
// submitted payload then flows through it concurrently: handlers run in
// parallel, mergers fold their results into the payload one at a time, and
// the status each merger returns selects the transitions that fire next.
//
// # Core Concepts
//
//  1. Processor
//  2. Subgraph
//  3. MergePoint
//  4. GraphBuilder
//  5. Reactor
//
// # Processor
//
// A Processor has a handler, built with Handler0..Handler5 from arguments
// derived from the payload (PassArg or CopyArg), and usually a merger:
//
//	price := reactor.NewProcessor[*Order, Price]("FetchPrice", 1).
//	    WithHandler(reactor.Handler1(reactor.PassArg(func(o *Order) string { return o.SKU }), fetchPrice)).
//	    WithMerger(func(o *Order, p Price) (reactor.MergeStatus, error) {
//	        o.Price = p
//	        return "OK", nil
//	    }).
//	    MustBuild()
//
// A processor declared WithoutMerger is detached: the result future does not
// wait for it, only the chain future does.
//
// # Subgraph
//
// A Subgraph runs the graph registered for another payload type as if it
// were a handler, and merges the finished child payload back.
//
// # MergePoint
//
// Every item with a merger owns a merge point. NewMergePoint declares a
// detached one: a merger with no handler, used to join branches or to act
// on the payload directly from the start point.
//
// # GraphBuilder
//
// NewGraph declares the start point, the transitions leaving each merge
// point and the merge groups:
//
//	graph := reactor.NewGraph[*Order]().
//	    HandleBy(price).
//	    HandleBy(stock).
//	    MergePoint(price).OnAny().Merge(stock).
//	    MergePoint(stock).
//	        On("IN_STOCK").HandleBy(reserve).
//	        On("SOLD_OUT").Complete().
//	    MergePoint(reserve).OnAny().Complete().
//	    MustBuild()
//
// Build runs the structural validators in pkg/validation. Declaration
// errors match ErrGraphDefinition and validation errors match
// ErrStructuralValidation.
//
// # Reactor
//
// A Reactor keeps one graph per payload type and runs submissions:
//
//	r := reactor.NewInMemoryReactor()
//	_ = r.Register(graph)
//	exec, _ := reactor.Submit(ctx, r, &Order{SKU: "A-1"})
//	order, err := exec.Wait(ctx)
//
// Execution.Result resolves once every non-detached branch has finished;
// Execution.Chain resolves once every branch, detached and nested ones
// included, has. Graph models and execution history are kept in memory or
// in SQLite (NewSQLiteReactor, NewFromConfig).
package reactor
