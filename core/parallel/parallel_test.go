package parallel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/YuminosukeSato/coelurus/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPreservesOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}

	results := Map(context.Background(), items, 3, "square", func(_ context.Context, _ int, v int) (int, error) {
		// later items finish first
		time.Sleep(time.Duration(v) * time.Millisecond)
		return v * v, nil
	})

	require.Len(t, results, len(items))
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.NoError(t, r.Err)
		assert.Equal(t, items[i]*items[i], r.Value)
	}
	assert.Nil(t, Errors(results))
}

func TestMapBoundsConcurrency(t *testing.T) {
	var current, peak int32
	items := make([]int, 20)

	Map(context.Background(), items, 2, "bounded", func(_ context.Context, _ int, _ int) (struct{}, error) {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&current, -1)
		return struct{}{}, nil
	})

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestMapIsolatesFailures(t *testing.T) {
	items := []string{"A", "B", "C"}

	results := Map(context.Background(), items, 0, "replicate", func(_ context.Context, _ int, s string) (string, error) {
		switch s {
		case "B":
			return "", fmt.Errorf("replicate %s failed", s)
		case "C":
			panic("boom")
		}
		return s + "!", nil
	})

	assert.Equal(t, "A!", results[0].Value)
	assert.NoError(t, results[0].Err)
	assert.EqualError(t, results[1].Err, "replicate B failed")

	var panicErr *errors.PanicError
	require.True(t, errors.As(results[2].Err, &panicErr))
	assert.Equal(t, "replicate[2]", panicErr.Operation)

	failed := Errors(results)
	assert.Len(t, failed, 2)
	assert.Contains(t, failed, 1)
	assert.Contains(t, failed, 2)
}

func TestMapCancelledBeforeSubmission(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	results := Map(ctx, []int{1, 2, 3}, 1, "cancelled", func(_ context.Context, _ int, v int) (int, error) {
		atomic.AddInt32(&calls, 1)
		return v, nil
	})

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestMapEmpty(t *testing.T) {
	results := Map(context.Background(), []int{}, 4, "empty", func(_ context.Context, _ int, v int) (int, error) {
		return v, nil
	})
	assert.Empty(t, results)
}

func TestParallelizeCoversAllItems(t *testing.T) {
	const n = 1000
	seen := make([]int32, n)

	ParallelizeWithThreshold(n, 10, 0, func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
	})

	for i := range seen {
		assert.Equal(t, int32(1), seen[i], "item %d", i)
	}
}

func TestParallelizeRespectsWorkerCount(t *testing.T) {
	var active, peak int32
	ranges := 0
	var mu sync.Mutex

	Parallelize(100, 3, func(start, end int) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)

		mu.Lock()
		ranges++
		mu.Unlock()
	})

	assert.Equal(t, 3, ranges)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestWorkers(t *testing.T) {
	assert.Equal(t, 3, Workers(3))
	assert.Greater(t, Workers(0), 0)
}
