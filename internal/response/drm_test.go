package response

import (
	"context"
	"math"
	"testing"

	"github.com/signalsfoundry/gbm-background/core"
	"github.com/signalsfoundry/gbm-background/model"
)

func TestDetectorNormal(t *testing.T) {
	b0 := DetectorNormal(model.Detectors["b0"])
	if b0.Sub(core.Vec3{X: 1}).Norm() > 1e-12 {
		t.Fatalf("b0 normal = %v, want +x", b0)
	}
	b1 := DetectorNormal(model.Detectors["b1"])
	if b1.Sub(core.Vec3{X: -1}).Norm() > 1e-12 {
		t.Fatalf("b1 normal = %v, want -x", b1)
	}
}

func TestCosineDRMPhotopeak(t *testing.T) {
	in := model.MustEnergyGrid([]float64{10, 20, 40, 80})
	out := model.MustEnergyGrid([]float64{10, 30, 100})
	det := model.Detectors["n0"]
	normal := DetectorNormal(det)
	drm := CosineDRM{Area: 100}

	m, err := drm.Response(context.Background(), normal, det, in, out)
	if err != nil {
		t.Fatalf("Response: %v", err)
	}
	// Centres 15, 30, 60 land in detected bins 0, 1, 1.
	want := [][]float64{{100, 0}, {0, 100}, {0, 100}}
	for i := range want {
		for j := range want[i] {
			if math.Abs(m.At(i, j)-want[i][j]) > 1e-9 {
				t.Fatalf("m[%d][%d] = %v, want %v", i, j, m.At(i, j), want[i][j])
			}
		}
	}

	behind, err := drm.Response(context.Background(), normal.Scale(-1), det, in, out)
	if err != nil {
		t.Fatalf("Response: %v", err)
	}
	r, c := behind.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if behind.At(i, j) != 0 {
				t.Fatalf("NaI should be blind from behind, got %v at %d,%d", behind.At(i, j), i, j)
			}
		}
	}
}

func TestCosineDRMResolutionConservesArea(t *testing.T) {
	in := model.MustEnergyGrid([]float64{90, 110})
	out, err := model.LogSpaceEnergyGrid(0, 4, 400)
	if err != nil {
		t.Fatalf("LogSpaceEnergyGrid: %v", err)
	}
	det := model.Detectors["b0"]
	m, err := DefaultCosineDRM().Response(context.Background(), DetectorNormal(det), det, in, out)
	if err != nil {
		t.Fatalf("Response: %v", err)
	}
	var total float64
	for j := 0; j < out.NumBins(); j++ {
		total += m.At(0, j)
	}
	if math.Abs(total-126) > 1e-6 {
		t.Fatalf("redistributed area = %v, want 126", total)
	}
}
