package source

import (
	"context"
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/signalsfoundry/gbm-background/core"
	"github.com/signalsfoundry/gbm-background/internal/response"
	"github.com/signalsfoundry/gbm-background/internal/spectrum"
	"github.com/signalsfoundry/gbm-background/model"
)

var identityQuaternion = core.Quaternion{0, 0, 0, 1}

// staticGeometry holds the spacecraft at pos with sky and satellite frames
// aligned.
func staticGeometry(pos core.Vec3, times ...float64) core.GeometrySamples {
	g := core.GeometrySamples{Times: times, Samples: make([]core.AttitudeSample, len(times))}
	for i, t := range times {
		g.Samples[i] = core.AttitudeSample{Time: t, Quaternion: identityQuaternion, Position: pos}
	}
	return g
}

func identityResponses(t *testing.T, n int, dets []string, grid model.EnergyGrid) []*response.GridResponses {
	t.Helper()
	dg, err := response.GenerateDirectionGrid(n)
	if err != nil {
		t.Fatalf("GenerateDirectionGrid: %v", err)
	}
	out := make([]*response.GridResponses, 0, len(dets))
	for _, d := range dets {
		ms := make([]*mat.Dense, n)
		for p := range ms {
			ms[p] = mat.NewDense(grid.NumBins(), grid.NumBins(), nil)
			for i := 0; i < grid.NumBins(); i++ {
				ms[p].Set(i, i, 1)
			}
		}
		gr, err := response.NewGridResponses(dg, d, grid, grid, ms)
		if err != nil {
			t.Fatalf("NewGridResponses: %v", err)
		}
		out = append(out, gr)
	}
	return out
}

func singlePointInputs(t *testing.T) GridInputs {
	layout := model.Layout{Detectors: []string{"n0", "n1"}, Energy: model.MustEnergyGrid([]float64{10, 20, 40})}
	// The single grid point of an n=1 grid is +x; a spacecraft on the -x
	// axis sees it on the Earth disk.
	return GridInputs{
		Layout:    layout,
		Geometry:  staticGeometry(core.Vec3{X: -7000}, 0, 100, 200),
		Incoming:  layout.Energy,
		Responses: identityResponses(t, 1, layout.Detectors, layout.Energy),
	}
}

var flat = FixedSpectrum(spectrum.PowerLaw{Index: 0})

func TestGridSourceFullOcclusionIsZero(t *testing.T) {
	in := singlePointInputs(t)
	cgb, err := NewCGB(context.Background(), in, flat)
	if err != nil {
		t.Fatalf("NewCGB: %v", err)
	}
	bins, _ := model.ContiguousTimeBins(0, 50, 4)
	got, err := cgb.Predict(bins, []float64{1})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	for i, v := range got.Data {
		if v != 0 {
			t.Fatalf("Data[%d] = %v, want exactly 0 under full occultation", i, v)
		}
	}
}

func TestGridSourceEarthAlbedoSeesDisk(t *testing.T) {
	in := singlePointInputs(t)
	albedo, err := NewEarthAlbedo(context.Background(), in, flat)
	if err != nil {
		t.Fatalf("NewEarthAlbedo: %v", err)
	}
	if albedo.State() != StateInterpolated {
		t.Fatalf("State = %v, want interpolated", albedo.State())
	}
	bins := model.MustTimeBinGrid([]model.TimeBin{{Start: 10, Stop: 60}, {Start: 120, Stop: 200}})
	got, err := albedo.Predict(bins, []float64{2})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	// rate = norm * 4π * bin width in keV (flat spectrum, identity response).
	for tb, w := range []float64{50, 80} {
		for d := 0; d < 2; d++ {
			for e, keV := range []float64{10, 20} {
				want := 2 * 4 * math.Pi * keV * w
				if v := got.At(tb, d, e); math.Abs(v-want) > 1e-9*want {
					t.Fatalf("At(%d,%d,%d) = %v, want %v", tb, d, e, v, want)
				}
			}
		}
	}
}

func TestGridSourceFreeMatchesFixed(t *testing.T) {
	in := singlePointInputs(t)
	fixed, err := NewEarthAlbedo(context.Background(), in, FixedSpectrum(spectrum.PowerLaw{Index: 1.5}))
	if err != nil {
		t.Fatalf("fixed: %v", err)
	}
	free, err := NewEarthAlbedo(context.Background(), in, FreeSpectrum(spectrum.PowerLawFamily()))
	if err != nil {
		t.Fatalf("free: %v", err)
	}
	if free.State() != StateResponsePrecomputed {
		t.Fatalf("free State = %v", free.State())
	}
	if names := free.ParameterNames(); len(names) != 2 || names[1] != "index" {
		t.Fatalf("free ParameterNames = %v", names)
	}
	bins, _ := model.ContiguousTimeBins(0, 40, 5)
	a, err := fixed.Predict(bins, []float64{3})
	if err != nil {
		t.Fatalf("fixed Predict: %v", err)
	}
	b, err := free.Predict(bins, []float64{3, 1.5})
	if err != nil {
		t.Fatalf("free Predict: %v", err)
	}
	for i := range a.Data {
		if math.Abs(a.Data[i]-b.Data[i]) > 1e-9*math.Abs(a.Data[i]) {
			t.Fatalf("Data[%d]: fixed %v, free %v", i, a.Data[i], b.Data[i])
		}
	}
}

func TestGridSourceConstructionFailures(t *testing.T) {
	ctx := context.Background()
	in := singlePointInputs(t)

	short := in
	short.Geometry = staticGeometry(core.Vec3{X: -7000}, 0)
	if _, err := NewCGB(ctx, short, flat); !errors.Is(err, model.ErrMissingGeometry) {
		t.Fatalf("one sample err = %v, want ErrMissingGeometry", err)
	}

	missing := in
	missing.Responses = in.Responses[:1]
	if _, err := NewCGB(ctx, missing, flat); !errors.Is(err, model.ErrMissingResponse) {
		t.Fatalf("missing detector err = %v, want ErrMissingResponse", err)
	}

	other := in
	other.Incoming = model.MustEnergyGrid([]float64{10, 15, 40})
	if _, err := NewCGB(ctx, other, flat); !errors.Is(err, model.ErrInconsistentGrid) {
		t.Fatalf("grid mismatch err = %v, want ErrInconsistentGrid", err)
	}

	if _, err := NewCGB(ctx, in, Spectrum{}); !errors.Is(err, model.ErrInvalidParameters) {
		t.Fatalf("no spectrum err = %v, want ErrInvalidParameters", err)
	}
}

func TestPredictOutsideGeometryIsOutOfRange(t *testing.T) {
	albedo, err := NewEarthAlbedo(context.Background(), singlePointInputs(t), flat)
	if err != nil {
		t.Fatalf("NewEarthAlbedo: %v", err)
	}
	bins := model.MustTimeBinGrid([]model.TimeBin{{Start: 150, Stop: 250}})
	if _, err := albedo.Predict(bins, []float64{1}); !errors.Is(err, model.ErrOutOfRange) {
		t.Fatalf("err = %v, want ErrOutOfRange", err)
	}
}

func TestResponseSourceIntegratesLinearRate(t *testing.T) {
	layout := model.Layout{Detectors: []string{"n0"}, Energy: model.MustEnergyGrid([]float64{10, 11})}
	// Unit flux, rate 1, 2, 3 at t = 0, 100, 200.
	eff := []*mat.Dense{mat.NewDense(3, 1, []float64{1, 2, 3})}
	s, err := newResponseSource("ramp", KindGrid, layout, layout.Energy, []float64{0, 100, 200}, eff, flat, Linear)
	if err != nil {
		t.Fatalf("newResponseSource: %v", err)
	}
	bins := model.MustTimeBinGrid([]model.TimeBin{{Start: 50, Stop: 150}, {Start: 150, Stop: 200}})
	got, err := s.Predict(bins, []float64{1})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if v := got.At(0, 0, 0); math.Abs(v-200) > 1e-9 {
		t.Fatalf("bin 0 = %v, want 200", v)
	}
	if v := got.At(1, 0, 0); math.Abs(v-137.5) > 1e-9 {
		t.Fatalf("bin 1 = %v, want 137.5", v)
	}

	rates, err := s.SampleRates([]float64{2})
	if err != nil {
		t.Fatalf("SampleRates: %v", err)
	}
	if rates.At(2, 0, 0) != 6 {
		t.Fatalf("SampleRates[2] = %v, want 6", rates.At(2, 0, 0))
	}
}
