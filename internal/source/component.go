// Package source implements the background source components. Every
// component predicts expected counts per time bin on a fixed
// (detector, echan) layout as a pure function of its own parameter vector.
package source

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/gbm-background/model"
)

// Kind classifies a component for logging and metrics.
type Kind string

const (
	KindGrid      Kind = "grid"
	KindPoint     Kind = "point"
	KindContinuum Kind = "continuum"
	KindSAA       Kind = "saa"
)

// State is the precomputation stage a component has reached.
type State int

const (
	// StateUninitialized is never observable on a constructed component.
	StateUninitialized State = iota
	// StateResponsePrecomputed holds effective responses per sample time;
	// rates are folded with the spectrum on every Predict.
	StateResponsePrecomputed
	// StateRateComputed holds rates per sample time for a fixed spectrum.
	StateRateComputed
	// StateInterpolated holds continuous-time interpolants of the rates.
	StateInterpolated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateResponsePrecomputed:
		return "response_precomputed"
	case StateRateComputed:
		return "rate_computed"
	case StateInterpolated:
		return "interpolated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Component is one additive term of the background model. Predict must be
// pure in params and safe for concurrent use.
type Component interface {
	Name() string
	Kind() Kind
	Layout() model.Layout
	ParameterNames() []string
	NumParameters() int
	State() State
	Predict(bins model.TimeBinGrid, params []float64) (*model.RateTensor, error)
}

func checkParams(name string, params []float64, want int) error {
	if len(params) != want {
		return fmt.Errorf("%w: %s wants %d parameters, got %d", model.ErrInvalidParameters, name, want, len(params))
	}
	for i, p := range params {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: %s parameter %d is %v", model.ErrInvalidParameters, name, i, p)
		}
	}
	return nil
}

func checkBins(name string, bins model.TimeBinGrid) error {
	if bins.Len() == 0 {
		return fmt.Errorf("%w: %s asked to predict no bins", model.ErrInvalidTimeBins, name)
	}
	return nil
}

// channelNames returns "<det>_e<ch>" for every layout cell in tensor order.
func channelNames(layout model.Layout, prefix string) []string {
	chans := layout.Channels()
	out := make([]string, 0, layout.NumDetectors()*len(chans))
	for _, d := range layout.Detectors {
		for _, ch := range chans {
			out = append(out, fmt.Sprintf("%s_%s_e%d", prefix, d, ch))
		}
	}
	return out
}
