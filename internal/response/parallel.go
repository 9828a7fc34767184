package response

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// partitionsPerWorker oversubscribes partitions for load balance.
const partitionsPerWorker = 4

type partitionJob struct {
	idx, lo, hi int
}

type partitionResult[T any] struct {
	idx  int
	vals []T
	err  error
}

// ParallelMap evaluates fn over [0, n) split into contiguous partitions and
// returns the concatenated results in index order. Each call of fn owns its
// [lo, hi) range and must return exactly hi-lo values; workers share
// nothing. All workers finish before results are gathered. On failure the
// remaining work is cancelled and the error of the lowest failing partition
// is returned. workers <= 0 means GOMAXPROCS.
func ParallelMap[T any](ctx context.Context, n, workers int, fn func(ctx context.Context, lo, hi int) ([]T, error)) ([]T, error) {
	if n <= 0 {
		return nil, ctx.Err()
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	parts := workers * partitionsPerWorker
	if parts > n {
		parts = n
	}
	if workers > parts {
		workers = parts
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan partitionJob, parts)
	results := make(chan partitionResult[T], parts)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if err := ctx.Err(); err != nil {
					results <- partitionResult[T]{idx: job.idx, err: err}
					continue
				}
				vals, err := fn(ctx, job.lo, job.hi)
				if err == nil && len(vals) != job.hi-job.lo {
					err = fmt.Errorf("partition [%d, %d) returned %d values", job.lo, job.hi, len(vals))
				}
				if err != nil {
					cancel()
				}
				results <- partitionResult[T]{idx: job.idx, vals: vals, err: err}
			}
		}()
	}

	for p := 0; p < parts; p++ {
		jobs <- partitionJob{idx: p, lo: p * n / parts, hi: (p + 1) * n / parts}
	}
	close(jobs)

	wg.Wait()
	close(results)

	gathered := make([][]T, parts)
	errs := make([]error, parts)
	for r := range results {
		gathered[r.idx] = r.vals
		errs[r.idx] = r.err
	}
	var firstErr error
	for _, err := range errs {
		if err == nil {
			continue
		}
		// A cancellation caused by another partition's failure is not the
		// root cause.
		if firstErr == nil || (errors.Is(firstErr, context.Canceled) && !errors.Is(err, context.Canceled)) {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}

	out := make([]T, 0, n)
	for _, vals := range gathered {
		out = append(out, vals...)
	}
	return out, nil
}
