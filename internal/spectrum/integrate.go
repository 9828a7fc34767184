package spectrum

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/signalsfoundry/gbm-background/model"
)

// IntegrateEdges integrates shape over each bin of edges with the 3-point
// Simpson rule (e2-e1)*((f(e1)+4f(em)+f(e2))/6). The result is the photon
// flux per bin for unit normalization.
func IntegrateEdges(shape Shape, edges []float64) []float64 {
	if len(edges) < 2 {
		return nil
	}
	out := make([]float64, len(edges)-1)
	f1 := shape.Differential(edges[0])
	for i := range out {
		e1, e2 := edges[i], edges[i+1]
		fm := shape.Differential(0.5 * (e1 + e2))
		f2 := shape.Differential(e2)
		out[i] = (e2 - e1) * ((f1 + 4*fm + f2) / 6)
		f1 = f2
	}
	return out
}

// Integrate integrates shape over the bins of grid.
func Integrate(shape Shape, grid model.EnergyGrid) []float64 {
	return IntegrateEdges(shape, grid.Edges())
}

// Scale returns flux multiplied by norm. Normalization is applied after
// integration so a norm change costs one pass over the bins.
func Scale(flux []float64, norm float64) []float64 {
	out := make([]float64, len(flux))
	floats.ScaleTo(out, norm, flux)
	return out
}

// Family builds a Shape from a free parameter vector.
type Family struct {
	Name       string
	ParamNames []string
	Build      func(params []float64) (Shape, error)
}

// NumParameters returns the parameter count.
func (f Family) NumParameters() int { return len(f.ParamNames) }

// New validates the parameter count and builds the shape.
func (f Family) New(params []float64) (Shape, error) {
	if len(params) != len(f.ParamNames) {
		return nil, fmt.Errorf("%w: %s wants %d parameters %v, got %d",
			model.ErrInvalidParameters, f.Name, len(f.ParamNames), f.ParamNames, len(params))
	}
	for i, p := range params {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("%w: %s.%s is %v", model.ErrInvalidParameters, f.Name, f.ParamNames[i], p)
		}
	}
	return f.Build(params)
}

var errNonPositive = errors.New("must be positive")

func positive(family, name string, v float64) error {
	if v <= 0 {
		return fmt.Errorf("%w: %s.%s %v %v", model.ErrInvalidParameters, family, name, v, errNonPositive)
	}
	return nil
}

// PowerLawFamily has one parameter, the photon index.
func PowerLawFamily() Family {
	return Family{
		Name:       "powerlaw",
		ParamNames: []string{"index"},
		Build: func(p []float64) (Shape, error) {
			return PowerLaw{Index: p[0]}, nil
		},
	}
}

// CutoffPowerLawFamily has the photon index and the cutoff energy (keV).
func CutoffPowerLawFamily() Family {
	return Family{
		Name:       "cpl",
		ParamNames: []string{"index", "cutoff"},
		Build: func(p []float64) (Shape, error) {
			if err := positive("cpl", "cutoff", p[1]); err != nil {
				return nil, err
			}
			return CutoffPowerLaw{Index: p[0], Cutoff: p[1]}, nil
		},
	}
}

// BlackbodyFamily has the temperature kT (keV).
func BlackbodyFamily() Family {
	return Family{
		Name:       "blackbody",
		ParamNames: []string{"kt"},
		Build: func(p []float64) (Shape, error) {
			if err := positive("blackbody", "kt", p[0]); err != nil {
				return nil, err
			}
			return Blackbody{KT: p[0]}, nil
		},
	}
}

// BrokenPowerLawFamily has both indices and the break energy; smoothness
// is fixed at construction.
func BrokenPowerLawFamily(smoothness float64) Family {
	return Family{
		Name:       "bpl",
		ParamNames: []string{"index1", "index2", "break"},
		Build: func(p []float64) (Shape, error) {
			if err := positive("bpl", "break", p[2]); err != nil {
				return nil, err
			}
			return BrokenPowerLaw{Index1: p[0], Index2: p[1], Break: p[2], Smoothness: smoothness}, nil
		},
	}
}

// LookupFamily returns a family by name.
func LookupFamily(name string) (Family, error) {
	switch name {
	case "powerlaw", "pl":
		return PowerLawFamily(), nil
	case "cpl":
		return CutoffPowerLawFamily(), nil
	case "blackbody", "bb":
		return BlackbodyFamily(), nil
	case "bpl":
		return BrokenPowerLawFamily(1), nil
	}
	return Family{}, fmt.Errorf("%w: unknown spectral family %q", model.ErrInvalidParameters, name)
}
