package reactor

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/petrijr/reactor/internal/codec"
	"github.com/petrijr/reactor/pkg/api"
)

// Item is a processing item usable in a graph over payload P: a Processor,
// a Subgraph or a MergePoint.
type Item[P any] interface {
	Identity() Identity
	processingItem() api.ProcessingItem
}

// Processor runs an asynchronous handler and optionally merges its result
// into the payload.
type Processor[P any] struct {
	it api.ProcessingItem
}

func (p *Processor[P]) Identity() Identity                 { return p.it.Identity }
func (p *Processor[P]) Title() string                      { return p.it.Title }
func (p *Processor[P]) processingItem() api.ProcessingItem { return p.it }

// Subgraph runs the graph registered for payload type C on a payload derived
// from P.
type Subgraph[P any] struct {
	it api.ProcessingItem
}

func (s *Subgraph[P]) Identity() Identity                 { return s.it.Identity }
func (s *Subgraph[P]) Title() string                      { return s.it.Title }
func (s *Subgraph[P]) processingItem() api.ProcessingItem { return s.it }

// MergePoint is a detached merge point: a merger with no handler in front of
// it, used to join branches.
type MergePoint[P any] struct {
	it api.ProcessingItem
}

func (m *MergePoint[P]) Identity() Identity                 { return m.it.Identity }
func (m *MergePoint[P]) Title() string                      { return m.it.Title }
func (m *MergePoint[P]) processingItem() api.ProcessingItem { return m.it }

// itemBuilder holds what every item builder shares.
type itemBuilder struct {
	it        api.ProcessingItem
	mergerSet bool
	noMerger  bool
	err       error
}

func (b *itemBuilder) fail(format string, args ...any) {
	if b.err == nil {
		b.err = &api.DefinitionError{Item: b.it.Identity, Msg: fmt.Sprintf(format, args...)}
	}
}

func (b *itemBuilder) setMerger(m api.MergerFunc) {
	switch {
	case b.noMerger:
		b.fail("WithMerger after WithoutMerger")
	case b.mergerSet:
		b.fail("merger declared twice")
	default:
		b.it.Merger = m
		b.mergerSet = true
	}
}

func (b *itemBuilder) setNoMerger() {
	if b.mergerSet {
		b.fail("WithoutMerger after WithMerger")
		return
	}
	b.noMerger = true
}

func (b *itemBuilder) check() error {
	if b.err != nil {
		return b.err
	}
	if !b.mergerSet && !b.noMerger {
		return &api.DefinitionError{Item: b.it.Identity, Msg: "declare WithMerger or WithoutMerger"}
	}
	return nil
}

// ProcessorBuilder declares a Processor. Its identity is fixed at
// construction:
//
//	fetch := reactor.NewProcessor[*Order, Price]("FetchPrice", 1).
//	    WithHandler(reactor.Handler1(reactor.PassArg(func(o *Order) string { return o.SKU }), prices.Fetch)).
//	    WithMerger(func(o *Order, p Price) (reactor.MergeStatus, error) {
//	        o.Price = p
//	        return "OK", nil
//	    }).
//	    MustBuild()
type ProcessorBuilder[P, R any] struct {
	itemBuilder
	handlerSet bool
}

// NewProcessor starts the declaration of processor (typeName, id).
func NewProcessor[P, R any](typeName string, id int) *ProcessorBuilder[P, R] {
	b := &ProcessorBuilder[P, R]{}
	b.it.Identity = api.ProcessorID(typeName, id)
	if typeName == "" {
		b.fail("processor type name must not be empty")
	}
	return b
}

func (b *ProcessorBuilder[P, R]) WithTitle(title string) *ProcessorBuilder[P, R] {
	b.it.Title = title
	return b
}

func (b *ProcessorBuilder[P, R]) WithDocs(docs ...string) *ProcessorBuilder[P, R] {
	b.it.Docs = append(b.it.Docs, docs...)
	return b
}

// WithProvenance attaches an opaque token, such as a source location, that is
// carried into the graph model.
func (b *ProcessorBuilder[P, R]) WithProvenance(token string) *ProcessorBuilder[P, R] {
	b.it.Provenance = token
	return b
}

func (b *ProcessorBuilder[P, R]) WithHandler(h Handler[P, R]) *ProcessorBuilder[P, R] {
	switch {
	case h.err != nil:
		b.fail("handler: %v", h.err)
	case h.bind == nil:
		b.fail("handler is empty; use Handler0..Handler5")
	case b.handlerSet:
		b.fail("handler declared twice")
	default:
		b.it.Handler = h.erase()
		b.it.Args = h.args
		b.handlerSet = true
	}
	return b
}

// WithMerger sets the function folding the handler result into the payload.
func (b *ProcessorBuilder[P, R]) WithMerger(fn func(payload P, result R) (MergeStatus, error)) *ProcessorBuilder[P, R] {
	if fn == nil {
		b.fail("merger is nil")
		return b
	}
	b.setMerger(func(payload, result any) (api.MergeStatus, error) {
		return fn(payload.(P), as[R](result))
	})
	return b
}

// WithoutMerger makes the processor detached: its result is discarded and
// the result future does not wait for it.
func (b *ProcessorBuilder[P, R]) WithoutMerger() *ProcessorBuilder[P, R] {
	b.setNoMerger()
	return b
}

func (b *ProcessorBuilder[P, R]) WithMergerDocs(title string, docs ...string) *ProcessorBuilder[P, R] {
	b.it.MergerTitle = title
	b.it.MergerDocs = append(b.it.MergerDocs, docs...)
	return b
}

func (b *ProcessorBuilder[P, R]) Build() (*Processor[P], error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	if !b.handlerSet {
		return nil, &api.DefinitionError{Item: b.it.Identity, Msg: "processor has no handler"}
	}
	return &Processor[P]{it: b.it}, nil
}

// MustBuild is like Build but panics on error.
func (b *ProcessorBuilder[P, R]) MustBuild() *Processor[P] {
	p, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("reactor: %v", err))
	}
	return p
}

// SubgraphBuilder declares a Subgraph running the graph registered for
// payload type C.
type SubgraphBuilder[P, C any] struct {
	itemBuilder
	argSet bool
}

// NewSubgraph starts the declaration of subgraph id over child payload C.
func NewSubgraph[P, C any](id int) *SubgraphBuilder[P, C] {
	b := &SubgraphBuilder[P, C]{}
	child := typeOf[C]()
	b.it.Identity = api.SubgraphID(api.TypeName(child), id)
	b.it.ChildPayload = child
	return b
}

func (b *SubgraphBuilder[P, C]) WithTitle(title string) *SubgraphBuilder[P, C] {
	b.it.Title = title
	return b
}

func (b *SubgraphBuilder[P, C]) WithDocs(docs ...string) *SubgraphBuilder[P, C] {
	b.it.Docs = append(b.it.Docs, docs...)
	return b
}

func (b *SubgraphBuilder[P, C]) WithProvenance(token string) *SubgraphBuilder[P, C] {
	b.it.Provenance = token
	return b
}

// PassArg runs the child graph on the value returned by fn, without copying
// it. Child mergers must not touch parts of it the parent mutates.
func (b *SubgraphBuilder[P, C]) PassArg(fn func(P) C) *SubgraphBuilder[P, C] {
	return b.childArg(fn, false)
}

// CopyArg runs the child graph on a deep copy of the value returned by fn.
func (b *SubgraphBuilder[P, C]) CopyArg(fn func(P) C) *SubgraphBuilder[P, C] {
	return b.childArg(fn, true)
}

func (b *SubgraphBuilder[P, C]) childArg(fn func(P) C, copied bool) *SubgraphBuilder[P, C] {
	switch {
	case fn == nil:
		b.fail("subgraph argument accessor is nil")
		return b
	case b.argSet:
		b.fail("subgraph argument declared twice")
		return b
	}
	b.argSet = true
	b.it.Args = []api.ArgBinding{{Index: 0, Type: b.it.ChildPayload.String(), Copy: copied}}
	b.it.ChildArg = func(payload any) (any, error) {
		v := fn(payload.(P))
		if copied {
			cp, err := codec.Clone(v)
			if err != nil {
				return nil, err
			}
			v = cp
		}
		if isNil(v) {
			return nil, errors.New("subgraph argument is nil")
		}
		return v, nil
	}
	return b
}

// WithMerger sets the function folding the finished child payload into the
// parent payload.
func (b *SubgraphBuilder[P, C]) WithMerger(fn func(payload P, child C) (MergeStatus, error)) *SubgraphBuilder[P, C] {
	if fn == nil {
		b.fail("merger is nil")
		return b
	}
	b.setMerger(func(payload, child any) (api.MergeStatus, error) {
		return fn(payload.(P), as[C](child))
	})
	return b
}

func (b *SubgraphBuilder[P, C]) WithoutMerger() *SubgraphBuilder[P, C] {
	b.setNoMerger()
	return b
}

func (b *SubgraphBuilder[P, C]) WithMergerDocs(title string, docs ...string) *SubgraphBuilder[P, C] {
	b.it.MergerTitle = title
	b.it.MergerDocs = append(b.it.MergerDocs, docs...)
	return b
}

func (b *SubgraphBuilder[P, C]) Build() (*Subgraph[P], error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	if !b.argSet {
		return nil, &api.DefinitionError{Item: b.it.Identity, Msg: "subgraph has no argument; use PassArg or CopyArg"}
	}
	return &Subgraph[P]{it: b.it}, nil
}

func (b *SubgraphBuilder[P, C]) MustBuild() *Subgraph[P] {
	s, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("reactor: %v", err))
	}
	return s
}

// MergePointBuilder declares a detached MergePoint.
type MergePointBuilder[P any] struct {
	itemBuilder
}

// NewMergePoint starts the declaration of the detached merge point name.
func NewMergePoint[P any](name string) *MergePointBuilder[P] {
	b := &MergePointBuilder[P]{}
	b.it.Identity = api.MergePointID(name)
	if name == "" {
		b.fail("merge point name must not be empty")
	}
	return b
}

func (b *MergePointBuilder[P]) WithTitle(title string) *MergePointBuilder[P] {
	b.it.Title = title
	b.it.MergerTitle = title
	return b
}

func (b *MergePointBuilder[P]) WithDocs(docs ...string) *MergePointBuilder[P] {
	b.it.Docs = append(b.it.Docs, docs...)
	b.it.MergerDocs = append(b.it.MergerDocs, docs...)
	return b
}

func (b *MergePointBuilder[P]) WithProvenance(token string) *MergePointBuilder[P] {
	b.it.Provenance = token
	return b
}

// WithMerger sets the function run when the merge point is reached.
func (b *MergePointBuilder[P]) WithMerger(fn func(payload P) (MergeStatus, error)) *MergePointBuilder[P] {
	if fn == nil {
		b.fail("merger is nil")
		return b
	}
	b.setMerger(func(payload, _ any) (api.MergeStatus, error) {
		return fn(payload.(P))
	})
	return b
}

func (b *MergePointBuilder[P]) Build() (*MergePoint[P], error) {
	if b.err != nil {
		return nil, b.err
	}
	if !b.mergerSet {
		return nil, &api.DefinitionError{Item: b.it.Identity, Msg: "merge point has no merger"}
	}
	return &MergePoint[P]{it: b.it}, nil
}

func (b *MergePointBuilder[P]) MustBuild() *MergePoint[P] {
	m, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("reactor: %v", err))
	}
	return m
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func:
		return rv.IsNil()
	}
	return false
}
