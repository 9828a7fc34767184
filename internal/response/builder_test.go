package response

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gonum.org/v1/gonum/mat"

	"github.com/signalsfoundry/gbm-background/core"
	"github.com/signalsfoundry/gbm-background/internal/observability"
	"github.com/signalsfoundry/gbm-background/model"
)

// countingDRM returns the direction's y component on the diagonal.
type countingDRM struct {
	calls atomic.Int64
	fail  bool
}

func (c *countingDRM) Response(ctx context.Context, dir core.Vec3, det model.Detector, in, out model.EnergyGrid) (*mat.Dense, error) {
	c.calls.Add(1)
	if c.fail {
		return nil, errors.New("drm unavailable")
	}
	m := mat.NewDense(in.NumBins(), out.NumBins(), nil)
	for i := 0; i < in.NumBins() && i < out.NumBins(); i++ {
		m.Set(i, i, dir.Y)
	}
	return m, nil
}

func testGrids() (model.EnergyGrid, model.EnergyGrid) {
	return model.MustEnergyGrid([]float64{10, 20, 40}), model.MustEnergyGrid([]float64{10, 20, 40})
}

func TestBuilderBuildGridMemoizes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewResponseCollector(reg)
	if err != nil {
		t.Fatalf("NewResponseCollector: %v", err)
	}
	drm := &countingDRM{}
	b := NewBuilder(drm, WithWorkers(3), WithMetrics(metrics))
	grid, _ := GenerateDirectionGrid(50)
	in, out := testGrids()
	det := model.Detectors["n0"]

	first, err := b.BuildGrid(context.Background(), grid, det, in, out)
	if err != nil {
		t.Fatalf("BuildGrid: %v", err)
	}
	if first.Len() != 50 || drm.calls.Load() != 50 {
		t.Fatalf("Len = %d, calls = %d, want 50 and 50", first.Len(), drm.calls.Load())
	}
	for i := 0; i < grid.Len(); i++ {
		if first.Matrix(i).At(1, 1) != grid.Point(i).Y {
			t.Fatalf("matrix %d does not belong to point %d", i, i)
		}
	}

	second, err := b.BuildGrid(context.Background(), grid, det, in, out)
	if err != nil {
		t.Fatalf("second BuildGrid: %v", err)
	}
	if drm.calls.Load() != 50 {
		t.Fatalf("cached build called DRM again: calls = %d", drm.calls.Load())
	}
	if second.Matrix(7) != first.Matrix(7) {
		t.Fatalf("cached build returned a different matrix")
	}
	if got := testutil.ToFloat64(metrics.CacheHits); got != 50 {
		t.Fatalf("response_cache_hits_total = %v, want 50", got)
	}
	if got := testutil.ToFloat64(metrics.MatricesComputed); got != 50 {
		t.Fatalf("response_matrices_computed_total = %v, want 50", got)
	}
	// Only the first build completes the detector.
	if got := testutil.ToFloat64(metrics.DetectorsReady); got != 1 {
		t.Fatalf("response_detectors_complete_total = %v, want 1", got)
	}
}

func TestBuilderSeparatesGridPairs(t *testing.T) {
	drm := &countingDRM{}
	b := NewBuilder(drm)
	grid, _ := GenerateDirectionGrid(10)
	in, out := testGrids()
	other := model.MustEnergyGrid([]float64{10, 40})
	det := model.Detectors["n1"]

	if _, err := b.BuildGrid(context.Background(), grid, det, in, out); err != nil {
		t.Fatalf("BuildGrid: %v", err)
	}
	gr, err := b.BuildGrid(context.Background(), grid, det, in, other)
	if err != nil {
		t.Fatalf("BuildGrid other: %v", err)
	}
	if drm.calls.Load() != 20 {
		t.Fatalf("calls = %d, want 20", drm.calls.Load())
	}
	if err := gr.Require(in, other); err != nil {
		t.Fatalf("Require: %v", err)
	}
	if err := gr.Require(in, out); !errors.Is(err, model.ErrInconsistentGrid) {
		t.Fatalf("Require mismatched err = %v, want ErrInconsistentGrid", err)
	}
}

func TestBuilderPropagatesDRMError(t *testing.T) {
	b := NewBuilder(&countingDRM{fail: true})
	grid, _ := GenerateDirectionGrid(8)
	in, out := testGrids()
	if _, err := b.BuildGrid(context.Background(), grid, model.Detectors["n2"], in, out); err == nil {
		t.Fatalf("expected DRM error")
	}
	if _, err := b.BuildDirections(context.Background(), []core.Vec3{{X: 1}}, model.Detectors["n2"], in, out); err == nil {
		t.Fatalf("expected DRM error from BuildDirections")
	}
}

func TestBuilderBuildDirectionsOrder(t *testing.T) {
	b := NewBuilder(&countingDRM{}, WithWorkers(4))
	in, out := testGrids()
	dirs := make([]core.Vec3, 30)
	for i := range dirs {
		dirs[i] = core.Vec3{Y: float64(i)}
	}
	ms, err := b.BuildDirections(context.Background(), dirs, model.Detectors["n3"], in, out)
	if err != nil {
		t.Fatalf("BuildDirections: %v", err)
	}
	for i, m := range ms {
		if m.At(0, 0) != float64(i) {
			t.Fatalf("matrix %d = %v, want %d", i, m.At(0, 0), i)
		}
	}
}

func TestNewGridResponsesValidates(t *testing.T) {
	grid, _ := GenerateDirectionGrid(2)
	in, out := testGrids()
	if _, err := NewGridResponses(grid, "n0", in, out, []*mat.Dense{mat.NewDense(2, 2, nil)}); !errors.Is(err, model.ErrMissingResponse) {
		t.Fatalf("short matrices err = %v, want ErrMissingResponse", err)
	}
	if _, err := NewGridResponses(grid, "n0", in, out, []*mat.Dense{mat.NewDense(2, 2, nil), mat.NewDense(3, 2, nil)}); !errors.Is(err, model.ErrInconsistentGrid) {
		t.Fatalf("wrong shape err = %v, want ErrInconsistentGrid", err)
	}
}
