package spectrum

import (
	"errors"
	"math"
	"testing"

	"github.com/signalsfoundry/gbm-background/model"
)

func TestIntegrateFlatPowerLawIsExact(t *testing.T) {
	edges := []float64{3.1, 7.7, 19.3, 101.9, 999.5}
	for _, c := range []float64{1, 2.5, 1e-3} {
		got := Scale(IntegrateEdges(PowerLaw{Index: 0}, edges), c)
		for i := range got {
			want := c * (edges[i+1] - edges[i])
			if got[i] != want {
				t.Fatalf("bin %d = %v, want exactly %v", i, got[i], want)
			}
		}
	}
}

func TestIntegratePowerLawMatchesAnalytic(t *testing.T) {
	grid, err := model.LogSpaceEnergyGrid(1, 3, 201)
	if err != nil {
		t.Fatalf("LogSpaceEnergyGrid: %v", err)
	}
	got := Integrate(PowerLaw{Index: 2}, grid)
	lo, hi := grid.Lower(), grid.Upper()
	for i := range got {
		want := 1/lo[i] - 1/hi[i]
		if math.Abs(got[i]-want)/want > 1e-5 {
			t.Fatalf("bin %d = %v, want %v", i, got[i], want)
		}
	}
}

func TestIntegrateGaussianUnitArea(t *testing.T) {
	edges := make([]float64, 2001)
	for i := range edges {
		edges[i] = 500 + float64(i)*0.011
	}
	var total float64
	for _, v := range IntegrateEdges(Positron511(), edges) {
		total += v
	}
	if math.Abs(total-1) > 1e-6 {
		t.Fatalf("511 line area = %v, want 1", total)
	}
}

func TestBrokenPowerLawAsymptotes(t *testing.T) {
	b := CGB()
	lowRatio := b.Differential(0.02) / b.Differential(0.01)
	if want := math.Pow(2, -b.Index1); math.Abs(lowRatio-want)/want > 1e-3 {
		t.Fatalf("low-energy slope ratio = %v, want %v", lowRatio, want)
	}
	highRatio := b.Differential(2e5) / b.Differential(1e5)
	if want := math.Pow(2, -b.Index2); math.Abs(highRatio-want)/want > 1e-3 {
		t.Fatalf("high-energy slope ratio = %v, want %v", highRatio, want)
	}
	if got := b.Differential(b.Break); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("value at break = %v, want 0.5", got)
	}
}

func TestScaleIsLinear(t *testing.T) {
	base := Integrate(EarthAlbedo(), model.DefaultIncomingGrid())
	scaled := Scale(base, 3)
	for i := range base {
		if scaled[i] != 3*base[i] {
			t.Fatalf("bin %d scaled = %v, want %v", i, scaled[i], 3*base[i])
		}
	}
}

func TestGalacticCenterContinuumPositive(t *testing.T) {
	gc := GalacticCenterContinuum()
	prev := math.Inf(1)
	for _, e := range []float64{20, 50, 100, 300, 1000} {
		v := gc.Differential(e)
		if !(v > 0) || v >= prev {
			t.Fatalf("GC continuum at %v keV = %v (prev %v), want positive and falling", e, v, prev)
		}
		prev = v
	}
	// At 100 keV the power-law terms sit at their pivots.
	want := 1.1e-4 + 2e-4*math.Exp((50.0-100)/8) + 4e-4
	if got := gc.Differential(100); math.Abs(got-want) > 1e-15 {
		t.Fatalf("GC continuum at 100 keV = %v, want %v", got, want)
	}
}

func TestSumWeights(t *testing.T) {
	s := Sum{Shapes: []Shape{PowerLaw{Index: 0}, PowerLaw{Index: 1}}, Weights: []float64{3}}
	// Second weight defaults to 1.
	if got := s.Differential(2); got != 3.5 {
		t.Fatalf("Sum.Differential(2) = %v, want 3.5", got)
	}
}

func TestFamilies(t *testing.T) {
	f, err := LookupFamily("bpl")
	if err != nil {
		t.Fatalf("LookupFamily: %v", err)
	}
	if f.NumParameters() != 3 {
		t.Fatalf("bpl params = %d", f.NumParameters())
	}
	if _, err := f.New([]float64{1, 2}); !errors.Is(err, model.ErrInvalidParameters) {
		t.Fatalf("short params err = %v", err)
	}
	if _, err := f.New([]float64{1, 2, -1}); !errors.Is(err, model.ErrInvalidParameters) {
		t.Fatalf("negative break err = %v", err)
	}
	if _, err := f.New([]float64{1, math.NaN(), 30}); !errors.Is(err, model.ErrInvalidParameters) {
		t.Fatalf("NaN param err = %v", err)
	}
	s, err := f.New([]float64{1.32, 2.88, 29.99})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.(BrokenPowerLaw) != CGB() {
		t.Fatalf("built %v, want %v", s, CGB())
	}
	if _, err := LookupFamily("band"); !errors.Is(err, model.ErrInvalidParameters) {
		t.Fatalf("unknown family err = %v", err)
	}
}
