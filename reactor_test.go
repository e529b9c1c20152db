package reactor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/reactor/pkg/config"
)

type quote struct {
	SKU   string
	Price int
	Steps []string
}

func quoteGraph() *GraphBuilder[*quote] {
	lookup := NewProcessor[*quote, int]("Lookup", 1).
		WithHandler(Handler1(PassArg(func(q *quote) string { return q.SKU }), func(ctx context.Context, sku string) (int, error) {
			return 10 * len(sku), nil
		})).
		WithMerger(func(q *quote, price int) (MergeStatus, error) {
			q.Price = price
			q.Steps = append(q.Steps, "lookup")
			return "OK", nil
		}).
		MustBuild()
	discount := NewProcessor[*quote, int]("Discount", 1).
		WithHandler(Handler1(PassArg(func(q *quote) int { return q.Price }), func(ctx context.Context, price int) (int, error) {
			return price - 5, nil
		})).
		WithMerger(func(q *quote, price int) (MergeStatus, error) {
			q.Price = price
			q.Steps = append(q.Steps, "discount")
			return "OK", nil
		}).
		MustBuild()

	return NewGraph[*quote]().
		HandleBy(lookup).
		MergePoint(lookup).OnAny().HandleBy(discount).
		MergePoint(discount).OnAny().Complete().
		Graph()
}

func newTestReactor(t *testing.T) Reactor {
	t.Helper()

	r, closeFn, err := NewFromConfig(config.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })
	return r
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSubmit_Typed(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	r := newTestReactor(t)

	a := proc("A", 1, "OK")
	b := proc("B", 1, "OK")
	_, err := Register(r, NewGraph[*order]().
		HandleBy(a).
		MergePoint(a).OnAny().HandleBy(b).
		MergePoint(b).OnAny().Complete().
		Graph())
	require.NoError(t, err)

	in := &order{SKU: "A-1"}
	exec, err := Submit(ctx, r, in)
	require.NoError(t, err)
	require.NotEmpty(t, exec.ID)
	require.Equal(t, "order", exec.Graph)

	out, err := exec.Wait(ctx)
	require.NoError(t, err)
	require.Same(t, in, out)
	require.Equal(t, []string{"Processor:A@1", "Processor:B@1"}, out.Events)

	out, err = exec.WaitChain(ctx)
	require.NoError(t, err)
	require.Same(t, in, out)
}

func TestSubmit_SubgraphWithCopiedArgument(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	r := newTestReactor(t)

	_, err := Register(r, quoteGraph())
	require.NoError(t, err)

	var sent *quote
	sub := NewSubgraph[*order, *quote](1).
		CopyArg(func(o *order) *quote {
			sent = &quote{SKU: o.SKU}
			return sent
		}).
		WithMerger(func(o *order, q *quote) (MergeStatus, error) {
			o.Price = q.Price
			o.record("quoted:" + q.Steps[0] + "," + q.Steps[1])
			return "OK", nil
		}).
		MustBuild()
	_, err = Register(r, NewGraph[*order]().
		HandleBy(sub).
		MergePoint(sub).OnAny().Complete().
		Graph())
	require.NoError(t, err)

	out, err := mustSubmit(t, r, &order{SKU: "ABCD"}).Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, 35, out.Price)
	require.Equal(t, []string{"quoted:lookup,discount"}, out.Events)

	// The child ran on a copy.
	require.Zero(t, sent.Price)
	require.Empty(t, sent.Steps)
}

func TestSubmit_CopyArgIsolatesHandler(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	r := newTestReactor(t)

	p := NewProcessor[*order, int]("Mutate", 1).
		WithHandler(Handler1(CopyArg(func(o *order) []string { return o.Events }), func(ctx context.Context, events []string) (int, error) {
			events[0] = "changed"
			return len(events), nil
		})).
		WithMerger(func(o *order, n int) (MergeStatus, error) {
			o.Qty = n
			return "OK", nil
		}).
		MustBuild()
	_, err := Register(r, NewGraph[*order]().
		HandleBy(p).
		MergePoint(p).OnAny().Complete().
		Graph())
	require.NoError(t, err)

	out, err := mustSubmit(t, r, &order{Events: []string{"untouched"}}).Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, out.Qty)
	require.Equal(t, []string{"untouched"}, out.Events)
}

func TestSubmit_FiveArgumentHandler(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	r := newTestReactor(t)

	total := NewProcessor[*order, int]("Total", 1).
		WithHandler(Handler5(
			PassArg(func(o *order) string { return o.SKU }),
			PassArg(func(o *order) int { return o.Qty }),
			PassArg(func(o *order) int { return o.Price }),
			CopyArg(func(o *order) []string { return o.Events }),
			PassArg(func(o *order) int { return len(o.Events) }),
			func(ctx context.Context, sku string, qty, price int, events []string, n int) (int, error) {
				events[0] = sku
				return qty*price + n, nil
			},
		)).
		WithMerger(func(o *order, total int) (MergeStatus, error) {
			o.Price = total
			return "OK", nil
		}).
		MustBuild()
	_, err := Register(r, NewGraph[*order]().
		HandleBy(total).
		MergePoint(total).OnAny().Complete().
		Graph())
	require.NoError(t, err)

	out, err := mustSubmit(t, r, &order{SKU: "A-1", Qty: 3, Price: 7, Events: []string{"created"}}).Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, 22, out.Price)
	require.Equal(t, []string{"created"}, out.Events)
	require.Len(t, total.processingItem().Args, 5)
}

func TestSubmit_DetachedBranch(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	r := newTestReactor(t)

	release := make(chan struct{})
	audit := NewProcessor[*order, struct{}]("Audit", 1).
		WithHandler(Handler0[*order](func(ctx context.Context) (struct{}, error) {
			<-release
			return struct{}{}, nil
		})).
		WithoutMerger().
		MustBuild()
	a := proc("A", 1, "OK")
	_, err := Register(r, NewGraph[*order]().
		HandleBy(a).
		HandleBy(audit).
		MergePoint(a).OnAny().Complete().
		Graph())
	require.NoError(t, err)

	exec := mustSubmit(t, r, &order{})
	_, err = exec.Wait(ctx)
	require.NoError(t, err)
	require.False(t, exec.Chain.IsDone())

	close(release)
	_, err = exec.WaitChain(ctx)
	require.NoError(t, err)
}

func TestSubmit_HandlerError(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	r := newTestReactor(t)

	boom := errors.New("boom")
	p := NewProcessor[*order, int]("Fail", 1).
		WithHandler(Handler0[*order](func(ctx context.Context) (int, error) { return 0, boom })).
		WithMerger(func(o *order, n int) (MergeStatus, error) { return "OK", nil }).
		MustBuild()
	_, err := Register(r, NewGraph[*order]().
		HandleBy(p).
		MergePoint(p).OnAny().Complete().
		Graph())
	require.NoError(t, err)

	_, err = mustSubmit(t, r, &order{}).Wait(ctx)
	require.ErrorIs(t, err, ErrHandler)
	require.ErrorIs(t, err, boom)
	var he *HandlerError
	require.ErrorAs(t, err, &he)
	require.Equal(t, p.Identity(), he.Item)
}

func TestSubmitWithTimeout(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	r := newTestReactor(t)

	release := make(chan struct{})
	slow := NewProcessor[*order, int]("Slow", 1).
		WithHandler(Handler0[*order](func(ctx context.Context) (int, error) {
			<-release
			return 1, nil
		})).
		WithMerger(func(o *order, n int) (MergeStatus, error) { return "OK", nil }).
		MustBuild()
	_, err := Register(r, NewGraph[*order]().
		HandleBy(slow).
		MergePoint(slow).OnAny().Complete().
		Graph())
	require.NoError(t, err)

	exec, err := SubmitWithTimeout(ctx, r, &order{}, 20*time.Millisecond)
	require.NoError(t, err)
	_, err = exec.Wait(ctx)
	require.ErrorIs(t, err, ErrTimeout)

	// The branch keeps running and still completes the chain.
	close(release)
	out, err := exec.WaitChain(ctx)
	require.NoError(t, err)
	require.NotNil(t, out)
}

func TestSubmit_NotRegistered(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	r := newTestReactor(t)

	_, err := Submit(ctx, r, &quote{})
	require.ErrorIs(t, err, ErrGraphNotRegistered)
}

func TestRegister_BuildError(t *testing.T) {
	t.Parallel()
	r := newTestReactor(t)

	_, err := Register(r, NewGraph[*order]())
	require.ErrorIs(t, err, ErrStructuralValidation)
	require.Empty(t, r.Graphs())
}

func TestRegister_SameGraphTwice(t *testing.T) {
	t.Parallel()
	r := newTestReactor(t)

	g := quoteGraph().MustBuild()
	require.NoError(t, r.Register(g))
	before := g.Model()
	require.NoError(t, r.Register(g))
	require.Equal(t, before, g.Model())
	require.Equal(t, []*Graph{g}, r.Graphs())
}

func TestNewFromConfig_Invalid(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.History.Driver = "mongo"
	_, _, err := NewFromConfig(cfg)
	require.Error(t, err)
}

func TestNewFromConfig_MySQLUnreachable(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.History = config.History{Driver: config.HistoryMySQL, DSN: "reactor:secret@tcp(127.0.0.1:1)/reactor?timeout=1s"}
	_, _, err := NewFromConfig(cfg)
	require.ErrorContains(t, err, "open mysql")
}

func mustSubmit[P any](t *testing.T, r Reactor, payload P) *Execution[P] {
	t.Helper()

	exec, err := Submit(context.Background(), r, payload)
	require.NoError(t, err)
	return exec
}
