// Package api contains the core building blocks used by the reactor graph
// engine. It provides the graph model, its serialized form, the error
// taxonomy, futures and executions, and the observer hooks.
//
// Most users interact with the higher-level reactor package, which re-exports
// selected types from this package and adds typed builders. The api package
// is intended for custom integrations, validators and tooling.
//
// # Graph Model
//
// A graph is made of processing items, each identified by an Identity:
//
//   - Processors run a handler and optionally fold its result into the
//     payload with a merger.
//   - Subgraphs run the graph registered for a child payload type as if it
//     were a handler.
//   - Detached merge points run a merger against the payload with no
//     handler.
//
// Every item with a merger owns a MergePoint whose Transitions select, by
// merge status, what happens next: merge into another merge point, hand the
// payload to another item, or complete. MergeGroups form barriers across
// merge points.
//
// Graphs are built from a mutable GraphDraft and frozen with NewGraph.
// A frozen Graph is immutable and safe to share between executions.
//
// # Topology
//
// BuildTopology derives the execution dependency graph: one handler vertex
// per processor or subgraph, one merge vertex per merge point, with the flows
// and barrier edges between them. The engine schedules over it and the
// validators check it.
//
// # Serialized Model
//
// Graph.Model returns a GraphModel, a read-only tree suitable for JSON or
// YAML that describes the topology and documentation of a graph without any
// executable state.
//
// # Observability
//
// The Observer interface reports execution, handler and merge events.
// LoggingObserver writes them with log/slog; CompositeObserver fans out to
// several observers.
package api
