package reactor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/reactor/pkg/api"
)

type order struct {
	SKU   string
	Qty   int
	Price int

	mu     sync.Mutex
	Events []string
}

func (o *order) record(event string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Events = append(o.Events, event)
}

// proc declares a processor whose merger records its name and returns status.
func proc(typeName string, id int, status MergeStatus) *Processor[*order] {
	name := ProcessorID(typeName, id).String()
	return NewProcessor[*order, string](typeName, id).
		WithHandler(Handler0[*order](func(ctx context.Context) (string, error) { return name, nil })).
		WithMerger(func(o *order, r string) (MergeStatus, error) {
			o.record(r)
			return status, nil
		}).
		MustBuild()
}

func joinPoint(name string) *MergePoint[*order] {
	return NewMergePoint[*order](name).
		WithMerger(func(o *order) (MergeStatus, error) {
			o.record(name)
			return "OK", nil
		}).
		MustBuild()
}

func requireDefinitionError(t *testing.T, err error, item api.Identity) {
	t.Helper()

	require.Error(t, err)
	require.True(t, errors.Is(err, ErrGraphDefinition), "expected a definition error, got %v", err)
	var de *DefinitionError
	require.ErrorAs(t, err, &de)
	require.Equal(t, item, de.Item)
}

func TestGraphBuilder_Build(t *testing.T) {
	t.Parallel()

	a := proc("A", 1, "OK")
	b := proc("B", 1, "OK")
	mp := joinPoint("join")

	g, err := NewGraph[*order]().
		WithDocs("an order being checked out").
		HandleBy(a).
		HandleBy(b).
		MergePoint(a).OnAny().Merge(mp).
		MergePoint(b).OnAny().Merge(mp).
		MergePoint(mp).OnAny().Complete().
		Coordinates().Start(10, 20).Proc("A", 1, 30, 40).MergeNamed("join", 50, 60).CompleteNamed("join", 70, 80).
		Build()
	require.NoError(t, err)

	require.Equal(t, "order", g.Name())
	require.Equal(t, typeOf[*order](), g.PayloadType())
	require.Equal(t, []string{"an order being checked out"}, g.PayloadDocs())
	require.Equal(t, []Identity{a.Identity(), b.Identity()}, g.StartPoint().Items)
	require.Equal(t, &api.Coordinates{X: 10, Y: 20}, g.StartPoint().Coordinates)
	require.Len(t, g.Items(), 3)

	it, ok := g.Item(a.Identity())
	require.True(t, ok)
	require.Equal(t, &api.Coordinates{X: 30, Y: 40}, it.Coordinates)

	join, ok := g.MergePoint(mp.Identity())
	require.True(t, ok)
	require.Equal(t, &api.Coordinates{X: 50, Y: 60}, join.Coordinates)
	require.Len(t, join.Transitions, 1)
	require.True(t, join.Transitions[0].IsComplete())
	require.Equal(t, &api.Coordinates{X: 70, Y: 80}, join.Transitions[0].CompleteCoordinates)
}

func TestGraphBuilder_Named(t *testing.T) {
	t.Parallel()

	a := proc("A", 1, "OK")
	g := NewGraph[*order]().Named("checkout").
		HandleBy(a).
		MergePoint(a).OnAny().Complete().
		MustBuild()
	require.Equal(t, "checkout", g.Name())
}

func TestGraphBuilder_TransitionOrderIsKept(t *testing.T) {
	t.Parallel()

	a := proc("A", 1, "OK")
	b := proc("B", 1, "OK")
	c := proc("C", 1, "OK")

	g := NewGraph[*order]().
		HandleBy(a).
		MergePoint(a).
		On("OK").HandleBy(c).
		On("RETRY", "SKIP").HandleBy(b).
		OnAny().Complete().
		MergePoint(b).OnAny().Complete().
		MergePoint(c).OnAny().Complete().
		MustBuild()

	mp, ok := g.MergePoint(a.Identity())
	require.True(t, ok)
	require.Len(t, mp.Transitions, 3)
	require.Equal(t, []MergeStatus{"OK"}, mp.Transitions[0].Statuses)
	require.Equal(t, c.Identity(), mp.Transitions[0].Target)
	require.Equal(t, []MergeStatus{"RETRY", "SKIP"}, mp.Transitions[1].Statuses)
	require.Equal(t, api.ActionHandleBy, mp.Transitions[1].Action)
	require.True(t, mp.Transitions[2].OnAny)
}

func TestGraphBuilder_DuplicateIdentity(t *testing.T) {
	t.Parallel()

	a := proc("A", 1, "OK")
	twin := proc("A", 1, "OK")

	b := NewGraph[*order]().HandleBy(a).HandleBy(twin)
	requireDefinitionError(t, b.Err(), a.Identity())

	_, err := b.MergePoint(a).OnAny().Complete().Build()
	requireDefinitionError(t, err, a.Identity())
}

func TestGraphBuilder_SameItemTwiceIsOneItem(t *testing.T) {
	t.Parallel()

	a := proc("A", 1, "OK")
	mp := joinPoint("join")

	g := NewGraph[*order]().
		HandleBy(a).
		MergePoint(a).On("OK").Merge(mp).OnAny().Merge(mp).
		MergePoint(mp).OnAny().Complete().
		MustBuild()
	require.Len(t, g.Items(), 2)
}

func TestGraphBuilder_DefinitionErrors(t *testing.T) {
	t.Parallel()

	a := proc("A", 1, "OK")
	b := proc("B", 1, "OK")
	mp := joinPoint("join")
	detached := NewProcessor[*order, string]("Audit", 1).
		WithHandler(Handler0[*order](func(ctx context.Context) (string, error) { return "", nil })).
		WithoutMerger().
		MustBuild()

	cases := map[string]struct {
		build func() error
		item  Identity
	}{
		"nil item": {
			build: func() error {
				var p *Processor[*order]
				return NewGraph[*order]().HandleBy(p).Err()
			},
		},
		"overlapping statuses": {
			build: func() error {
				return NewGraph[*order]().HandleBy(a).
					MergePoint(a).On("OK", "RETRY").Complete().On("RETRY").HandleBy(b).
					Err()
			},
			item: a.Identity(),
		},
		"status listed twice": {
			build: func() error {
				return NewGraph[*order]().HandleBy(a).MergePoint(a).On("OK", "OK").Complete().Err()
			},
			item: a.Identity(),
		},
		"empty On": {
			build: func() error {
				return NewGraph[*order]().HandleBy(a).MergePoint(a).On().Complete().Err()
			},
			item: a.Identity(),
		},
		"merge point of detached processor": {
			build: func() error {
				return NewGraph[*order]().HandleBy(detached).MergePoint(detached).Err()
			},
			item: detached.Identity(),
		},
		"merge into detached processor": {
			build: func() error {
				return NewGraph[*order]().HandleBy(a).MergePoint(a).OnAny().Merge(detached).Err()
			},
			item: detached.Identity(),
		},
		"handle by detached merge point at start": {
			build: func() error {
				return NewGraph[*order]().HandleBy(mp).Err()
			},
			item: mp.Identity(),
		},
		"handle by detached merge point in transition": {
			build: func() error {
				return NewGraph[*order]().HandleBy(a).MergePoint(a).OnAny().HandleBy(mp).Err()
			},
			item: mp.Identity(),
		},
		"listed twice at start": {
			build: func() error {
				return NewGraph[*order]().HandleBy(a).HandleBy(a).Err()
			},
			item: a.Identity(),
		},
		"duplicate group member": {
			build: func() error {
				return NewGraph[*order]().HandleBy(a).MergeGroup().With(a).With(a).Err()
			},
			item: a.Identity(),
		},
		"member of two groups": {
			build: func() error {
				return NewGraph[*order]().HandleBy(a).HandleBy(b).
					MergeGroup().With(a).With(b).
					MergeGroup().With(a).Err()
			},
			item: a.Identity(),
		},
		"group of one": {
			build: func() error {
				_, err := NewGraph[*order]().HandleBy(a).
					MergePoint(a).OnAny().Complete().
					MergeGroup().With(a).
					Build()
				return err
			},
		},
		"absent coordinates target": {
			build: func() error {
				return NewGraph[*order]().HandleBy(a).Coordinates().Proc("Missing", 1, 0, 0).Err()
			},
		},
		"absent named merge point": {
			build: func() error {
				return NewGraph[*order]().HandleBy(a).Coordinates().MergeNamed("missing", 0, 0).Err()
			},
			item: MergePointID("missing"),
		},
		"complete coordinates without complete transition": {
			build: func() error {
				return NewGraph[*order]().HandleBy(a).
					MergePoint(a).OnAny().HandleBy(b).
					Coordinates().Complete("A", 1, 0, 0).Err()
			},
			item: a.Identity(),
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			requireDefinitionError(t, tc.build(), tc.item)
		})
	}
}

func TestGraphBuilder_AmbiguousCoordinates(t *testing.T) {
	t.Parallel()

	type line struct{ SKU string }

	a := proc("line", 1, "OK")
	sub := NewSubgraph[*order, *line](1).
		PassArg(func(o *order) *line { return &line{SKU: o.SKU} }).
		WithoutMerger().
		MustBuild()

	err := NewGraph[*order]().HandleBy(a).HandleBy(sub).Coordinates().Proc("line", 1, 0, 0).Err()
	requireDefinitionError(t, err, a.Identity())
	require.Contains(t, err.Error(), "ambiguous")
}

func TestGraphBuilder_FirstErrorIsLatched(t *testing.T) {
	t.Parallel()

	a := proc("A", 1, "OK")
	b := NewGraph[*order]().
		HandleBy(a).
		MergePoint(a).On().Complete().
		MergePoint(a).OnAny().HandleBy(proc("A", 1, "OK"))

	require.Contains(t, b.Err().Error(), "at least one status")
}

func TestGraphBuilder_ValidationErrors(t *testing.T) {
	t.Parallel()

	a := proc("A", 1, "OK")
	orphan := proc("Orphan", 1, "OK")

	_, err := NewGraph[*order]().
		HandleBy(a).
		MergePoint(a).OnAny().Complete().
		MergePoint(orphan).OnAny().Complete().
		Build()
	require.ErrorIs(t, err, ErrStructuralValidation)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, orphan.Identity(), ve.Item)
}

func TestGraphBuilder_WithValidators(t *testing.T) {
	t.Parallel()

	a := proc("A", 1, "OK")
	noDocs := ValidatorFunc{ID: "PayloadDocumented", Fn: func(g *Graph) error {
		if len(g.PayloadDocs()) == 0 {
			return &ValidationError{Validator: "PayloadDocumented", Msg: "payload has no docs"}
		}
		return nil
	}}

	_, err := NewGraph[*order]().
		WithValidators(noDocs).
		HandleBy(a).
		MergePoint(a).OnAny().Complete().
		Build()
	require.ErrorIs(t, err, ErrStructuralValidation)
	require.Contains(t, err.Error(), "PayloadDocumented")
}

func TestGraphBuilder_MustBuildPanics(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		NewGraph[*order]().MustBuild()
	})
}

func TestItemBuilders_Errors(t *testing.T) {
	t.Parallel()

	handler := Handler0[*order](func(ctx context.Context) (int, error) { return 1, nil })
	merger := func(o *order, n int) (MergeStatus, error) { return "OK", nil }

	_, err := NewProcessor[*order, int]("P", 1).WithHandler(handler).Build()
	require.ErrorIs(t, err, ErrGraphDefinition, "merger must be declared")

	_, err = NewProcessor[*order, int]("P", 1).WithMerger(merger).Build()
	require.ErrorIs(t, err, ErrGraphDefinition, "handler must be declared")

	_, err = NewProcessor[*order, int]("P", 1).WithHandler(handler).WithMerger(merger).WithoutMerger().Build()
	require.ErrorIs(t, err, ErrGraphDefinition)

	_, err = NewProcessor[*order, int]("", 1).WithHandler(handler).WithoutMerger().Build()
	require.ErrorIs(t, err, ErrGraphDefinition)

	_, err = NewProcessor[*order, int]("P", 1).
		WithHandler(Handler1[*order, int, string](PassArg[*order, string](nil), nil)).
		WithoutMerger().
		Build()
	require.ErrorIs(t, err, ErrGraphDefinition)

	_, err = NewSubgraph[*order, *order](1).WithoutMerger().Build()
	require.ErrorIs(t, err, ErrGraphDefinition, "subgraph argument must be declared")

	_, err = NewMergePoint[*order]("m").Build()
	require.ErrorIs(t, err, ErrGraphDefinition, "merge point merger must be declared")
}

func TestProcessor_Metadata(t *testing.T) {
	t.Parallel()

	p := NewProcessor[*order, int]("Price", 3).
		WithTitle("Fetch price").
		WithDocs("Asks the pricing service.").
		WithProvenance("checkout.go:42").
		WithHandler(Handler2(
			PassArg(func(o *order) string { return o.SKU }),
			CopyArg(func(o *order) []string { return o.Events }),
			func(ctx context.Context, sku string, events []string) (int, error) { return 0, nil },
		)).
		WithMerger(func(o *order, price int) (MergeStatus, error) { return "OK", nil }).
		WithMergerDocs("Store price").
		MustBuild()

	require.Equal(t, ProcessorID("Price", 3), p.Identity())
	require.Equal(t, "Fetch price", p.Title())

	it := p.processingItem()
	require.Equal(t, []api.ArgBinding{
		{Index: 0, Type: "string", Copy: false},
		{Index: 1, Type: "[]string", Copy: true},
	}, it.Args)
	require.Equal(t, "checkout.go:42", it.Provenance)
	require.Equal(t, "Store price", it.MergerTitle)
}
