package kb

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/signalsfoundry/gbm-background/model"
)

func grids() (model.EnergyGrid, model.EnergyGrid) {
	return model.MustEnergyGrid([]float64{10, 20, 40}), model.MustEnergyGrid([]float64{10, 50})
}

func TestPutAndGet(t *testing.T) {
	in, out := grids()
	store := NewResponseStore(in, out, 2)
	m := mat.NewDense(2, 1, []float64{1, 2})
	if err := store.Put("n0", 0, m); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	got, ok := store.Get("n0", 0)
	if !ok || got.At(1, 0) != 2 {
		t.Fatalf("Get returned %v, %v", got, ok)
	}
	if _, ok := store.Get("n0", 1); ok {
		t.Fatalf("Get(n0, 1) should miss")
	}
	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1", store.Len())
	}
}

func TestPutValidation(t *testing.T) {
	in, out := grids()
	store := NewResponseStore(in, out, 2)
	if err := store.Put("n0", 2, mat.NewDense(2, 1, nil)); !errors.Is(err, model.ErrOutOfRange) {
		t.Fatalf("out of range index err = %v", err)
	}
	if err := store.Put("n0", 0, mat.NewDense(3, 1, nil)); !errors.Is(err, model.ErrInconsistentGrid) {
		t.Fatalf("wrong shape err = %v", err)
	}
	if err := store.Put("n0", 0, mat.NewDense(2, 1, []float64{1, 1})); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put("n0", 0, mat.NewDense(2, 1, []float64{1, 1})); err != nil {
		t.Fatalf("identical re-Put should succeed, got %v", err)
	}
	if err := store.Put("n0", 0, mat.NewDense(2, 1, []float64{1, 3})); !errors.Is(err, ErrDuplicateResponse) {
		t.Fatalf("conflicting re-Put err = %v, want ErrDuplicateResponse", err)
	}
}

func TestRequire(t *testing.T) {
	in, out := grids()
	store := NewResponseStore(in, out, 1)
	if err := store.Require(in, out); err != nil {
		t.Fatalf("Require same grids: %v", err)
	}
	other := model.MustEnergyGrid([]float64{10, 60})
	if err := store.Require(in, other); !errors.Is(err, model.ErrInconsistentGrid) {
		t.Fatalf("Require other grid err = %v, want ErrInconsistentGrid", err)
	}
}

func TestCompleteAndSubscribe(t *testing.T) {
	in, out := grids()
	store := NewResponseStore(in, out, 3)

	var mu sync.Mutex
	var stored, complete int
	unsub := store.Subscribe(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		switch ev.Type {
		case EventResponseStored:
			stored++
		case EventDetectorComplete:
			complete++
			if ev.Key.Detector != "b0" {
				t.Errorf("complete event for %q", ev.Key.Detector)
			}
		}
	})

	for i := 0; i < 3; i++ {
		if err := store.Put("b0", i, mat.NewDense(2, 1, nil)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if !store.Complete("b0") || store.Complete("n0") {
		t.Fatalf("Complete flags wrong")
	}
	if len(store.Missing("b0")) != 0 || len(store.Missing("n0")) != 3 {
		t.Fatalf("Missing wrong: %v / %v", store.Missing("b0"), store.Missing("n0"))
	}

	unsub()
	if err := store.Put("n0", 0, mat.NewDense(2, 1, nil)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if stored != 3 || complete != 1 {
		t.Fatalf("events stored=%d complete=%d, want 3 and 1", stored, complete)
	}
}

func TestConcurrentPuts(t *testing.T) {
	in, out := grids()
	const n = 64
	store := NewResponseStore(in, out, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for _, det := range []string{"n0", "n1"} {
				if err := store.Put(det, i, mat.NewDense(2, 1, []float64{float64(i), 0})); err != nil {
					t.Errorf("Put(%s, %d): %v", det, i, err)
				}
			}
		}(i)
	}
	wg.Wait()

	if store.Len() != 2*n {
		t.Fatalf("Len = %d, want %d", store.Len(), 2*n)
	}
	if got := fmt.Sprint(store.Detectors()); got != "[n0 n1]" {
		t.Fatalf("Detectors = %s", got)
	}
}
