// Package spectrum holds differential photon spectra and their integration
// over incoming energy bins.
//
// Every Shape is normalization-free: the physical flux in a bin is
// norm * Integrate(shape)[bin], so changing the norm never re-integrates.
package spectrum

import (
	"math"
)

// Shape is a differential photon spectrum dN/dE (arbitrary units, keV).
type Shape interface {
	Differential(e float64) float64
}

// PowerLaw is (E/Pivot)^-Index. A zero Pivot means 1 keV.
type PowerLaw struct {
	Index float64
	Pivot float64
}

// Differential implements Shape.
func (p PowerLaw) Differential(e float64) float64 {
	pivot := p.Pivot
	if pivot == 0 {
		pivot = 1
	}
	return math.Pow(e/pivot, -p.Index)
}

// CutoffPowerLaw is E^-Index * exp(-E/Cutoff).
type CutoffPowerLaw struct {
	Index  float64
	Cutoff float64
}

// Differential implements Shape.
func (c CutoffPowerLaw) Differential(e float64) float64 {
	return math.Pow(e, -c.Index) * math.Exp(-e/c.Cutoff)
}

// Blackbody is E^2 / (exp(E/KT) - 1).
type Blackbody struct {
	KT float64
}

// Differential implements Shape.
func (b Blackbody) Differential(e float64) float64 {
	return e * e / math.Expm1(e/b.KT)
}

// BrokenPowerLaw is the smoothly broken power law
//
//	((E/Break)^(n*Index1) + (E/Break)^(n*Index2))^(-1/n)
//
// with n = Smoothness (1 when unset). Below the break it falls as
// E^-Index1, above it as E^-Index2.
type BrokenPowerLaw struct {
	Index1     float64
	Index2     float64
	Break      float64
	Smoothness float64
}

// Differential implements Shape.
func (b BrokenPowerLaw) Differential(e float64) float64 {
	n := b.Smoothness
	if n <= 0 {
		n = 1
	}
	x := e / b.Break
	return math.Pow(math.Pow(x, n*b.Index1)+math.Pow(x, n*b.Index2), -1/n)
}

// Gaussian is a unit-area normal line profile.
type Gaussian struct {
	Mean  float64
	Sigma float64
}

// Differential implements Shape.
func (g Gaussian) Differential(e float64) float64 {
	z := (e - g.Mean) / g.Sigma
	return math.Exp(-0.5*z*z) / (g.Sigma * math.Sqrt(2*math.Pi))
}

// GalacticCenterContinuum returns the three-component Galactic-ridge
// continuum (inverse Compton, magnetic white dwarfs and point sources)
// measured by INTEGRAL/SPI (Bouchet et al. 2011), in ph/(cm² s keV sr).
func GalacticCenterContinuum() Sum {
	return Sum{
		Shapes: []Shape{
			PowerLaw{Index: 1.45, Pivot: 100},
			CutoffPowerLaw{Index: 0, Cutoff: 8},
			PowerLaw{Index: 2.9, Pivot: 100},
		},
		Weights: []float64{1.1e-4, 2e-4 * math.Exp(50.0/8), 4e-4},
	}
}

// Sum adds shapes with relative weights. A missing weight is 1.
type Sum struct {
	Shapes  []Shape
	Weights []float64
}

// Differential implements Shape.
func (s Sum) Differential(e float64) float64 {
	var total float64
	for i, sh := range s.Shapes {
		w := 1.0
		if i < len(s.Weights) {
			w = s.Weights[i]
		}
		total += w * sh.Differential(e)
	}
	return total
}

// CGB returns the cosmic gamma-ray background shape (Ajello et al. 2008).
func CGB() BrokenPowerLaw {
	return BrokenPowerLaw{Index1: 1.32, Index2: 2.88, Break: 29.99, Smoothness: 1}
}

// EarthAlbedo returns the Earth albedo shape (Ajello et al. 2008).
func EarthAlbedo() BrokenPowerLaw {
	return BrokenPowerLaw{Index1: -5, Index2: 1.72, Break: 33.7, Smoothness: 1}
}

// Positron511 returns the 511 keV annihilation line.
func Positron511() Gaussian {
	return Gaussian{Mean: 511, Sigma: 1}
}
