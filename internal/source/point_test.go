package source

import (
	"context"
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/signalsfoundry/gbm-background/core"
	"github.com/signalsfoundry/gbm-background/internal/response"
	"github.com/signalsfoundry/gbm-background/model"
)

// unitDRM is the identity for every direction.
type unitDRM struct{}

func (unitDRM) Response(ctx context.Context, dir core.Vec3, det model.Detector, in, out model.EnergyGrid) (*mat.Dense, error) {
	m := mat.NewDense(in.NumBins(), out.NumBins(), nil)
	for i := 0; i < in.NumBins() && i < out.NumBins(); i++ {
		m.Set(i, i, 1)
	}
	return m, nil
}

func pointConfig(raDeg float64) PointConfig {
	layout := model.Layout{Detectors: []string{"n0", "b0"}, Energy: model.MustEnergyGrid([]float64{10, 20, 40})}
	return PointConfig{
		Name:      "crab",
		Layout:    layout,
		Geometry:  staticGeometry(core.Vec3{X: -7000}, 0, 100),
		Incoming:  layout.Energy,
		Direction: FixedDirection(raDeg, 0),
		Builder:   response.NewBuilder(unitDRM{}),
		Spectrum:  flat,
	}
}

func TestPointSourceEarthGate(t *testing.T) {
	bins, _ := model.ContiguousTimeBins(0, 100, 1)

	// Earth centre is along +x; RA 0 sits on it.
	hidden, err := NewPointSource(context.Background(), pointConfig(0))
	if err != nil {
		t.Fatalf("NewPointSource: %v", err)
	}
	got, err := hidden.Predict(bins, []float64{1})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	for i, v := range got.Data {
		if v != 0 {
			t.Fatalf("gated Data[%d] = %v, want 0", i, v)
		}
	}

	visible, err := NewPointSource(context.Background(), pointConfig(180))
	if err != nil {
		t.Fatalf("NewPointSource: %v", err)
	}
	got, err = visible.Predict(bins, []float64{1})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if v := got.At(0, 1, 1); math.Abs(v-2000) > 1e-9 {
		t.Fatalf("At(0,1,1) = %v, want 20 keV * 100 s", v)
	}
	if visible.Kind() != KindPoint {
		t.Fatalf("Kind = %v", visible.Kind())
	}
}

func TestPointSourceGateAngle(t *testing.T) {
	bins, _ := model.ContiguousTimeBins(0, 100, 1)
	// 60° from the Earth centre: hidden at the default gate, visible at 50°.
	cfg := pointConfig(60)
	src, _ := NewPointSource(context.Background(), cfg)
	got, _ := src.Predict(bins, []float64{1})
	if got.At(0, 0, 0) != 0 {
		t.Fatalf("default gate At = %v, want 0", got.At(0, 0, 0))
	}
	cfg.GateAngle = 50
	src, _ = NewPointSource(context.Background(), cfg)
	got, _ = src.Predict(bins, []float64{1})
	if got.At(0, 0, 0) <= 0 {
		t.Fatalf("50° gate At = %v, want > 0", got.At(0, 0, 0))
	}
}

func TestPointSourceRequiresInputs(t *testing.T) {
	cfg := pointConfig(0)
	cfg.Builder = nil
	if _, err := NewPointSource(context.Background(), cfg); !errors.Is(err, model.ErrMissingResponse) {
		t.Fatalf("no builder err = %v, want ErrMissingResponse", err)
	}
	cfg = pointConfig(0)
	cfg.Direction = nil
	if _, err := NewPointSource(context.Background(), cfg); !errors.Is(err, model.ErrMissingGeometry) {
		t.Fatalf("no direction err = %v, want ErrMissingGeometry", err)
	}
}
