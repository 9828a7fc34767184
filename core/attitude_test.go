package core

import (
	"errors"
	"math"
	"testing"

	"github.com/signalsfoundry/gbm-background/model"
)

func twoSampleHistory(t *testing.T) *AttitudeHistory {
	t.Helper()
	h, err := NewAttitudeHistory([]AttitudeSample{
		{Time: 100, Quaternion: Quaternion{0, 0, 0, 1}, Position: Vec3{X: 7000}},
		{Time: 0, Quaternion: Quaternion{0, 0, 0, 1}, Position: Vec3{Y: 7000}},
	})
	if err != nil {
		t.Fatalf("NewAttitudeHistory: %v", err)
	}
	return h
}

func TestAttitudeHistory_SortsAndInterpolates(t *testing.T) {
	h := twoSampleHistory(t)
	start, stop := h.Span()
	if start != 0 || stop != 100 {
		t.Fatalf("Span = (%v, %v), want (0, 100)", start, stop)
	}
	s, err := h.At(25)
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	want := Vec3{X: 1750, Y: 5250}
	if s.Position.Sub(want).Norm() > 1e-9 {
		t.Fatalf("Position = %v, want %v", s.Position, want)
	}
}

func TestAttitudeHistory_OutOfRange(t *testing.T) {
	h := twoSampleHistory(t)
	for _, ts := range []float64{-1, 100.5, math.NaN()} {
		if _, err := h.At(ts); !errors.Is(err, model.ErrOutOfRange) {
			t.Fatalf("At(%v) err = %v, want ErrOutOfRange", ts, err)
		}
	}
	s := h.AtClamped(150)
	if s.Position != (Vec3{X: 7000}) || s.Time != 150 {
		t.Fatalf("AtClamped(150) = %+v", s)
	}
}

func TestAttitudeHistory_QuaternionSignAlignment(t *testing.T) {
	q := Quaternion{0, 0, math.Sin(0.1), math.Cos(0.1)}
	neg := Quaternion{-q[0], -q[1], -q[2], -q[3]}
	h, err := NewAttitudeHistory([]AttitudeSample{
		{Time: 0, Quaternion: q, Position: Vec3{X: 7000}},
		{Time: 10, Quaternion: neg, Position: Vec3{X: 7000}},
	})
	if err != nil {
		t.Fatalf("NewAttitudeHistory: %v", err)
	}
	s, err := h.At(5)
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	for k := range q {
		if math.Abs(s.Quaternion[k]-q[k]) > 1e-12 {
			t.Fatalf("interpolated quaternion = %v, want %v", s.Quaternion, q)
		}
	}
}

func TestNewAttitudeHistory_Rejects(t *testing.T) {
	cases := map[string][]AttitudeSample{
		"single":    {{Time: 0, Quaternion: Quaternion{0, 0, 0, 1}}},
		"duplicate": {{Time: 0, Quaternion: Quaternion{0, 0, 0, 1}}, {Time: 0, Quaternion: Quaternion{0, 0, 0, 1}}},
		"zero quat": {{Time: 0, Quaternion: Quaternion{0, 0, 0, 1}}, {Time: 1}},
	}
	for name, samples := range cases {
		if _, err := NewAttitudeHistory(samples); !errors.Is(err, model.ErrMissingGeometry) {
			t.Fatalf("%s: err = %v, want ErrMissingGeometry", name, err)
		}
	}
}

func TestAttitudeHistory_Sample(t *testing.T) {
	h := twoSampleHistory(t)
	g, err := h.Sample([]float64{0, 50, 100})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if g.Len() != 3 || !g.Covers(0, 100) || g.Covers(-1, 100) {
		t.Fatalf("unexpected samples %+v", g.Times)
	}
	if _, err := h.Sample([]float64{0, 200}); !errors.Is(err, model.ErrOutOfRange) {
		t.Fatalf("Sample beyond history err = %v, want ErrOutOfRange", err)
	}
	if _, err := h.Sample([]float64{50, 10}); !errors.Is(err, model.ErrInvalidTimeBins) {
		t.Fatalf("Sample unordered err = %v, want ErrInvalidTimeBins", err)
	}
}

func TestAttitudeHistory_IsOcculted(t *testing.T) {
	h := twoSampleHistory(t)
	got, err := h.IsOcculted(0, Direction{Frame: FrameSky, Vec: Vec3{Y: -1}})
	if err != nil {
		t.Fatalf("IsOcculted: %v", err)
	}
	if !got {
		t.Fatalf("nadir should be occulted")
	}
	if _, err := h.IsOcculted(500, Direction{Frame: FrameSky, Vec: Vec3{Y: -1}}); !errors.Is(err, model.ErrOutOfRange) {
		t.Fatalf("err = %v, want ErrOutOfRange", err)
	}
}
