// Package parallel provides the worker-pool primitives used to fan pipeline
// stages out across replicates and profiles.
package parallel

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/YuminosukeSato/coelurus/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one item of Map, stored at the item's submission
// index.
type Result[U any] struct {
	Index int
	Value U
	Err   error
}

// Workers resolves a configured pool size: values <= 0 mean runtime.NumCPU().
func Workers(poolSize int) int {
	if poolSize <= 0 {
		return runtime.NumCPU()
	}
	return poolSize
}

// Map applies fn to every item using at most poolSize concurrent workers and
// returns one Result per item in input order, regardless of completion order.
//
// A failing or panicking item only affects its own slot. Once ctx is done no
// further items are submitted; their slots carry ctx.Err() while in-flight
// items run to completion. Map returns only after every worker has exited.
func Map[T, U any](ctx context.Context, items []T, poolSize int, op string, fn func(ctx context.Context, index int, item T) (U, error)) []Result[U] {
	results := make([]Result[U], len(items))
	if len(items) == 0 {
		return results
	}

	// errgroup.WithContext is not used: one item's failure must not cancel the rest.
	var g errgroup.Group
	g.SetLimit(Workers(poolSize))

	for i, item := range items {
		results[i].Index = i
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		i, item := i, item
		g.Go(func() error {
			v, err := errors.SafeCall(fmt.Sprintf("%s[%d]", op, i), func() (U, error) {
				return fn(ctx, i, item)
			})
			results[i].Value = v
			results[i].Err = err
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Errors returns the failed slots of results keyed by index, or nil when every
// item succeeded.
func Errors[U any](results []Result[U]) map[int]error {
	var failed map[int]error
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		if failed == nil {
			failed = make(map[int]error)
		}
		failed[r.Index] = r.Err
	}
	return failed
}

// Parallelize divides items into contiguous ranges, one per worker, and
// runs fn on each range concurrently. workers <= 0 means one per CPU core.
func Parallelize(items, workers int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	numWorkers := Workers(workers)
	if numWorkers > items {
		numWorkers = items
	}

	// ceiling division
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn sequentially when items <= threshold and
// falls back to Parallelize otherwise.
func ParallelizeWithThreshold(items, threshold, workers int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, workers, fn)
}
