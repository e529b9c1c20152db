package api

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the variant tag of a processing item.
type Kind string

const (
	KindProcessor  Kind = "Processor"
	KindSubgraph   Kind = "Subgraph"
	KindMergePoint Kind = "MergePoint"
)

// Identity uniquely names a processing item within a graph.
//
// Processors and subgraphs are identified by a declared type name and an
// integer id. Detached merge points are identified by name only.
type Identity struct {
	Kind Kind
	Type string
	ID   int
	Name string
}

// ProcessorID returns the identity of a processor.
func ProcessorID(typeName string, id int) Identity {
	return Identity{Kind: KindProcessor, Type: typeName, ID: id}
}

// SubgraphID returns the identity of a subgraph running the graph registered
// for the child payload type childType.
func SubgraphID(childType string, id int) Identity {
	return Identity{Kind: KindSubgraph, Type: childType, ID: id}
}

// MergePointID returns the identity of a detached merge point.
func MergePointID(name string) Identity {
	return Identity{Kind: KindMergePoint, Name: name}
}

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool {
	return id == Identity{}
}

// HasHandler reports whether items with this identity run a handler.
func (id Identity) HasHandler() bool {
	return id.Kind == KindProcessor || id.Kind == KindSubgraph
}

// Matches reports whether the identity is a processor or subgraph declared
// as typeName with the given id.
func (id Identity) Matches(typeName string, n int) bool {
	return id.HasHandler() && id.Type == typeName && id.ID == n
}

// String renders the identity as "Kind:Type@ID" or "MergePoint:Name".
func (id Identity) String() string {
	if id.Kind == KindMergePoint {
		return string(id.Kind) + ":" + id.Name
	}
	return fmt.Sprintf("%s:%s@%d", id.Kind, id.Type, id.ID)
}

// ParseIdentity is the inverse of Identity.String.
func ParseIdentity(s string) (Identity, error) {
	kind, rest, ok := strings.Cut(s, ":")
	if !ok || rest == "" {
		return Identity{}, fmt.Errorf("invalid identity %q", s)
	}
	switch Kind(kind) {
	case KindMergePoint:
		return MergePointID(rest), nil
	case KindProcessor, KindSubgraph:
		at := strings.LastIndex(rest, "@")
		if at <= 0 {
			return Identity{}, fmt.Errorf("invalid identity %q: missing @id", s)
		}
		n, err := strconv.Atoi(rest[at+1:])
		if err != nil {
			return Identity{}, fmt.Errorf("invalid identity %q: %w", s, err)
		}
		return Identity{Kind: Kind(kind), Type: rest[:at], ID: n}, nil
	default:
		return Identity{}, fmt.Errorf("invalid identity %q: unknown kind %q", s, kind)
	}
}

// MergeStatus is the value a merger returns to select outgoing transitions.
// Applications declare their own constants of this type.
type MergeStatus string

// Coordinates position an item in a rendered graph. They carry no
// execution semantics.
type Coordinates struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}
