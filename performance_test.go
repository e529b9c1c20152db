package reactor

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type counter struct {
	N int
}

// chain declares n processors run one after the other, each adding one.
func chain(n int) *GraphBuilder[*counter] {
	procs := make([]*Processor[*counter], n)
	for i := range procs {
		procs[i] = NewProcessor[*counter, int]("Inc", i).
			WithHandler(Handler0[*counter](func(ctx context.Context) (int, error) { return 1, nil })).
			WithMerger(func(c *counter, d int) (MergeStatus, error) {
				c.N += d
				return "OK", nil
			}).
			MustBuild()
	}

	b := NewGraph[*counter]().HandleBy(procs[0])
	for i := 0; i < n-1; i++ {
		b.MergePoint(procs[i]).OnAny().HandleBy(procs[i+1])
	}
	b.MergePoint(procs[n-1]).OnAny().Complete()
	return b
}

// TestStepOverheadUnder1ms checks that scheduling one processor, excluding
// user logic, costs well under a millisecond.
func TestStepOverheadUnder1ms(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := NewInMemoryReactorWithObserver(nil)

	const N = 500
	_, err := Register(r, chain(N))
	require.NoError(t, err)

	// Warm-up run to avoid measuring one-time costs.
	exec, err := Submit(ctx, r, &counter{})
	require.NoError(t, err)
	_, err = exec.WaitChain(ctx)
	require.NoError(t, err)

	start := time.Now()
	exec, err = Submit(ctx, r, &counter{})
	require.NoError(t, err)
	c, err := exec.Wait(ctx)
	require.NoError(t, err)
	total := time.Since(start)

	require.Equal(t, N, c.N)
	avgPerStep := total / N
	if avgPerStep >= time.Millisecond {
		t.Fatalf("average engine overhead per step too high: %v (total %v for %d steps)", avgPerStep, total, N)
	}
}

// TestConcurrentSubmissionsAreIsolated runs many payloads through one graph
// at once; each must see exactly its own mutations.
func TestConcurrentSubmissionsAreIsolated(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := NewInMemoryReactor()
	_, err := Register(r, chain(10))
	require.NoError(t, err)

	workers := 4 * runtime.GOMAXPROCS(0)
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			exec, err := Submit(ctx, r, &counter{})
			if err != nil {
				errs <- err
				return
			}
			c, err := exec.Wait(ctx)
			if err != nil {
				errs <- err
				return
			}
			if c.N != 10 {
				errs <- fmt.Errorf("counter = %d, want 10", c.N)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return len(r.Running()) == 0 }, 5*time.Second, 5*time.Millisecond)
}

func BenchmarkSubmit_Chain10(b *testing.B) {
	ctx := context.Background()
	r := NewInMemoryReactorWithObserver(nil)
	if _, err := Register(r, chain(10)); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		exec, err := Submit(ctx, r, &counter{})
		if err != nil {
			b.Fatal(err)
		}
		if _, err := exec.WaitChain(ctx); err != nil {
			b.Fatal(err)
		}
	}
}
