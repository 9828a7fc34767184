package source

import (
	"errors"
	"math"
	"testing"

	"github.com/signalsfoundry/gbm-background/model"
)

func twoDetectorLayout() model.Layout {
	return model.Layout{
		Detectors: []string{"n0", "n1"},
		Energy:    model.MustEnergyGrid([]float64{10, 20, 40}),
		Echans:    []int{0},
	}
}

func TestSAAPredictWorkedValues(t *testing.T) {
	layout := twoDetectorLayout()
	saa, err := NewSAASource("saa_0", layout, 1000)
	if err != nil {
		t.Fatalf("NewSAASource: %v", err)
	}
	bins := model.MustTimeBinGrid([]model.TimeBin{{Start: 900, Stop: 950}, {Start: 1000, Stop: 1050}, {Start: 1050, Stop: 1100}})
	params := []float64{10, 10, 0.01, 0.01}

	got, err := saa.Predict(bins, params)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	want := []float64{0, 393.4693402873666, 238.65121854119107}
	for tb := range want {
		for d := 0; d < 2; d++ {
			if v := got.At(tb, d, 0); math.Abs(v-want[tb]) > 1e-9 {
				t.Fatalf("bin %d det %d = %v, want %v", tb, d, v, want[tb])
			}
		}
	}
	if got.At(0, 0, 0) != 0 {
		t.Fatalf("bin before exit = %v, want exactly 0", got.At(0, 0, 0))
	}
}

func TestSAADecaysMonotonically(t *testing.T) {
	saa, _ := NewSAASource("saa", twoDetectorLayout(), 0)
	bins, _ := model.ContiguousTimeBins(0, 10, 20)
	got, err := saa.Predict(bins, []float64{5, 5, 0.02, 0.02})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	for i := 1; i < bins.Len(); i++ {
		if !(got.At(i, 0, 0) < got.At(i-1, 0, 0)) || got.At(i, 0, 0) <= 0 {
			t.Fatalf("bin %d = %v not below bin %d = %v", i, got.At(i, 0, 0), i-1, got.At(i-1, 0, 0))
		}
	}
}

func TestSAARejectsBadParameters(t *testing.T) {
	saa, _ := NewSAASource("saa", twoDetectorLayout(), 0)
	bins, _ := model.ContiguousTimeBins(0, 10, 2)
	if _, err := saa.Predict(bins, []float64{1, 1, 0, 0.1}); !errors.Is(err, model.ErrInvalidParameters) {
		t.Fatalf("zero decay err = %v, want ErrInvalidParameters", err)
	}
	if _, err := saa.Predict(bins, []float64{1, 1}); !errors.Is(err, model.ErrInvalidParameters) {
		t.Fatalf("short params err = %v, want ErrInvalidParameters", err)
	}
	names := saa.ParameterNames()
	if len(names) != 4 || names[0] != "norm_n0_e0" || names[3] != "decay_n1_e0" {
		t.Fatalf("ParameterNames = %v", names)
	}
}

func TestDetectSAAExits(t *testing.T) {
	bins, _ := model.ContiguousTimeBins(0, 1, 10)
	counts := []float64{0, 0, 5, 6, 0, 0, 0, 7, 0, 0}

	exits, err := DetectSAAExits(bins, counts)
	if err != nil {
		t.Fatalf("DetectSAAExits: %v", err)
	}
	if len(exits) != 2 {
		t.Fatalf("exits = %+v, want 2 (trailing run is end of data)", exits)
	}
	if exits[0].Index != 1 || exits[0].Stop != 2 {
		t.Fatalf("first exit = %+v, want index 1 stop 2", exits[0])
	}
	if exits[1].Index != 6 || exits[1].Stop != 7 {
		t.Fatalf("second exit = %+v, want index 6 stop 7", exits[1])
	}

	sources, err := NewSAASources("saa", twoDetectorLayout(), exits)
	if err != nil {
		t.Fatalf("NewSAASources: %v", err)
	}
	if len(sources) != 2 || sources[1].Name() != "saa_1" || sources[1].Exit() != 7 {
		t.Fatalf("sources = %v", sources)
	}

	if _, err := DetectSAAExits(bins, counts[:3]); !errors.Is(err, model.ErrInconsistentGrid) {
		t.Fatalf("length mismatch err = %v, want ErrInconsistentGrid", err)
	}
}
