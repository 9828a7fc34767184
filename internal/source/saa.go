package source

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/gbm-background/model"
)

// SAAExit marks the bin in which the detectors came back on after an SAA
// passage. Stop is used as the decay epoch.
type SAAExit struct {
	Index int
	Start float64
	Stop  float64
}

// DetectSAAExits finds SAA exits from total counts per bin: the last bin of
// every run of zero-count bins. A run reaching the final bin is the end of
// the data, not an exit.
func DetectSAAExits(bins model.TimeBinGrid, counts []float64) ([]SAAExit, error) {
	if len(counts) != bins.Len() {
		return nil, fmt.Errorf("%w: %d counts for %d bins", model.ErrInconsistentGrid, len(counts), bins.Len())
	}
	var exits []SAAExit
	for i := 0; i < len(counts); i++ {
		if counts[i] != 0 {
			continue
		}
		end := i
		for end+1 < len(counts) && counts[end+1] == 0 {
			end++
		}
		if end < len(counts)-1 {
			b := bins.Bin(end)
			exits = append(exits, SAAExit{Index: end, Start: b.Start, Stop: b.Stop})
		}
		i = end
	}
	return exits, nil
}

// SAASource is the exponential decay after one SAA exit, with a norm and a
// decay constant per detector and echan. Parameters are every norm in
// layout order followed by every decay.
type SAASource struct {
	name   string
	layout model.Layout
	exit   float64
	params []string
}

// NewSAASource anchors a decay at the exit epoch (MET seconds).
func NewSAASource(name string, layout model.Layout, exit float64) (*SAASource, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: component needs a name", model.ErrInvalidParameters)
	}
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if math.IsNaN(exit) || math.IsInf(exit, 0) {
		return nil, fmt.Errorf("%w: %s exit epoch %v", model.ErrMissingGeometry, name, exit)
	}
	params := append(channelNames(layout, "norm"), channelNames(layout, "decay")...)
	return &SAASource{name: name, layout: layout, exit: exit, params: params}, nil
}

// NewSAASources builds one source per exit, named "<prefix>_<n>".
func NewSAASources(prefix string, layout model.Layout, exits []SAAExit) ([]*SAASource, error) {
	out := make([]*SAASource, 0, len(exits))
	for i, ex := range exits {
		s, err := NewSAASource(fmt.Sprintf("%s_%d", prefix, i), layout, ex.Stop)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Exit returns the decay epoch.
func (s *SAASource) Exit() float64 { return s.exit }

// Name implements Component.
func (s *SAASource) Name() string { return s.name }

// Kind implements Component.
func (s *SAASource) Kind() Kind { return KindSAA }

// Layout implements Component.
func (s *SAASource) Layout() model.Layout { return s.layout }

// ParameterNames implements Component.
func (s *SAASource) ParameterNames() []string { return append([]string(nil), s.params...) }

// NumParameters implements Component.
func (s *SAASource) NumParameters() int { return len(s.params) }

// State implements Component.
func (s *SAASource) State() State { return StateInterpolated }

// Predict implements Component. Bins wholly before the exit are exactly 0.
func (s *SAASource) Predict(bins model.TimeBinGrid, params []float64) (*model.RateTensor, error) {
	if err := checkParams(s.name, params, len(s.params)); err != nil {
		return nil, err
	}
	if err := checkBins(s.name, bins); err != nil {
		return nil, err
	}
	half := len(s.params) / 2
	norms, decays := params[:half], params[half:]
	for i, k := range decays {
		if k <= 0 {
			return nil, fmt.Errorf("%w: %s %s must be positive, got %v", model.ErrInvalidParameters, s.name, s.params[half+i], k)
		}
	}

	out := model.NewRateTensorFor(bins, s.layout)
	nD, nE := s.layout.NumDetectors(), s.layout.NumEchans()
	for t, b := range bins.Bins() {
		t0 := math.Max(b.Start-s.exit, 0)
		t1 := math.Max(b.Stop-s.exit, 0)
		if t1 == 0 {
			continue
		}
		for d := 0; d < nD; d++ {
			for e := 0; e < nE; e++ {
				i := d*nE + e
				k := decays[i]
				out.Set(t, d, e, norms[i]/k*(math.Exp(-k*t0)-math.Exp(-k*t1)))
			}
		}
	}
	return out, nil
}
