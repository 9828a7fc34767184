package source

import (
	"fmt"

	"github.com/signalsfoundry/gbm-background/internal/spectrum"
	"github.com/signalsfoundry/gbm-background/model"
)

// Spectrum binds a component to either a fixed shape or a free family.
// The first parameter is always the normalization.
type Spectrum struct {
	shape  spectrum.Shape
	family *spectrum.Family
}

// FixedSpectrum keeps the shape constant; only the norm is fitted.
func FixedSpectrum(s spectrum.Shape) Spectrum { return Spectrum{shape: s} }

// FreeSpectrum fits the norm plus every family parameter.
func FreeSpectrum(f spectrum.Family) Spectrum { return Spectrum{family: &f} }

// IsFixed reports whether the spectral shape is fixed.
func (s Spectrum) IsFixed() bool { return s.family == nil }

func (s Spectrum) valid() bool { return s.shape != nil || s.family != nil }

// ParameterNames returns "norm" followed by the family parameters.
func (s Spectrum) ParameterNames() []string {
	names := []string{"norm"}
	if s.family != nil {
		names = append(names, s.family.ParamNames...)
	}
	return names
}

// flux integrates the shape selected by params[1:] over in.
func (s Spectrum) flux(in model.EnergyGrid, params []float64) ([]float64, error) {
	if s.family == nil {
		return spectrum.Integrate(s.shape, in), nil
	}
	shape, err := s.family.New(params[1:])
	if err != nil {
		return nil, err
	}
	return spectrum.Integrate(shape, in), nil
}

func (s Spectrum) String() string {
	if s.family != nil {
		return fmt.Sprintf("free(%s)", s.family.Name)
	}
	return fmt.Sprintf("fixed(%T)", s.shape)
}
