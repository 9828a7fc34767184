package response

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
)

func TestParallelMapPreservesOrder(t *testing.T) {
	for _, workers := range []int{0, 1, 3, 16} {
		got, err := ParallelMap(context.Background(), 1001, workers, func(ctx context.Context, lo, hi int) ([]int, error) {
			out := make([]int, 0, hi-lo)
			for i := lo; i < hi; i++ {
				out = append(out, i*i)
			}
			return out, nil
		})
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		if len(got) != 1001 {
			t.Fatalf("workers=%d: len = %d", workers, len(got))
		}
		for i, v := range got {
			if v != i*i {
				t.Fatalf("workers=%d: got[%d] = %d, want %d", workers, i, v, i*i)
			}
		}
	}
}

func TestParallelMapEmpty(t *testing.T) {
	got, err := ParallelMap(context.Background(), 0, 4, func(ctx context.Context, lo, hi int) ([]float64, error) {
		t.Fatalf("fn called for empty range")
		return nil, nil
	})
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestParallelMapReturnsFailure(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32
	_, err := ParallelMap(context.Background(), 100, 4, func(ctx context.Context, lo, hi int) ([]int, error) {
		calls.Add(1)
		if lo <= 50 && 50 < hi {
			return nil, boom
		}
		return make([]int, hi-lo), nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestParallelMapChecksPartitionLength(t *testing.T) {
	_, err := ParallelMap(context.Background(), 10, 2, func(ctx context.Context, lo, hi int) ([]int, error) {
		return []int{1}, nil
	})
	if err == nil || !strings.Contains(err.Error(), "returned 1 values") {
		t.Fatalf("err = %v, want length mismatch", err)
	}
}

func TestParallelMapCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ParallelMap(ctx, 10, 2, func(ctx context.Context, lo, hi int) ([]int, error) {
		return make([]int, hi-lo), nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
