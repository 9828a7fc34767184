package model

import (
	"fmt"
	"math"
)

// EnergyGrid holds strictly increasing bin edges in keV. The same type
// describes incoming photon bins and detected channels; the two must never
// be mixed between model parts built for different grids.
type EnergyGrid struct {
	edges []float64
}

// NewEnergyGrid validates and copies edges.
func NewEnergyGrid(edges []float64) (EnergyGrid, error) {
	if len(edges) < 2 {
		return EnergyGrid{}, fmt.Errorf("%w: need at least 2 edges, got %d", ErrInvalidEnergyGrid, len(edges))
	}
	for i, e := range edges {
		if math.IsNaN(e) || math.IsInf(e, 0) || e < 0 {
			return EnergyGrid{}, fmt.Errorf("%w: edge %d = %v", ErrInvalidEnergyGrid, i, e)
		}
		if i > 0 && !(e > edges[i-1]) {
			return EnergyGrid{}, fmt.Errorf("%w: edges not increasing at %d", ErrInvalidEnergyGrid, i)
		}
	}
	out := make([]float64, len(edges))
	copy(out, edges)
	return EnergyGrid{edges: out}, nil
}

// MustEnergyGrid is NewEnergyGrid for static inputs; it panics on error.
func MustEnergyGrid(edges []float64) EnergyGrid {
	g, err := NewEnergyGrid(edges)
	if err != nil {
		panic(err)
	}
	return g
}

// LogSpaceEnergyGrid returns n edges spaced evenly in log10 between
// 10^loExp and 10^hiExp keV.
func LogSpaceEnergyGrid(loExp, hiExp float64, n int) (EnergyGrid, error) {
	if n < 2 || !(hiExp > loExp) {
		return EnergyGrid{}, fmt.Errorf("%w: logspace(%v, %v, %d)", ErrInvalidEnergyGrid, loExp, hiExp, n)
	}
	edges := make([]float64, n)
	step := (hiExp - loExp) / float64(n-1)
	for i := range edges {
		edges[i] = math.Pow(10, loExp+float64(i)*step)
	}
	return NewEnergyGrid(edges)
}

// DefaultIncomingGrid is the 300-bin incoming photon grid from ~3 keV to
// ~5 MeV.
func DefaultIncomingGrid() EnergyGrid {
	g, _ := LogSpaceEnergyGrid(0.5, 3.7, 301)
	return g
}

// NumBins returns the number of bins (edges - 1).
func (g EnergyGrid) NumBins() int {
	if len(g.edges) == 0 {
		return 0
	}
	return len(g.edges) - 1
}

// Edges returns a copy of the edges.
func (g EnergyGrid) Edges() []float64 {
	out := make([]float64, len(g.edges))
	copy(out, g.edges)
	return out
}

// Lower returns the lower edge of every bin.
func (g EnergyGrid) Lower() []float64 {
	if len(g.edges) == 0 {
		return nil
	}
	out := make([]float64, len(g.edges)-1)
	copy(out, g.edges[:len(g.edges)-1])
	return out
}

// Upper returns the upper edge of every bin.
func (g EnergyGrid) Upper() []float64 {
	if len(g.edges) == 0 {
		return nil
	}
	out := make([]float64, len(g.edges)-1)
	copy(out, g.edges[1:])
	return out
}

// Centers returns the arithmetic bin centres.
func (g EnergyGrid) Centers() []float64 {
	n := g.NumBins()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = 0.5 * (g.edges[i] + g.edges[i+1])
	}
	return out
}

// Equal reports whether both grids have bit-identical edges.
func (g EnergyGrid) Equal(other EnergyGrid) bool {
	if len(g.edges) != len(other.edges) {
		return false
	}
	for i := range g.edges {
		if g.edges[i] != other.edges[i] {
			return false
		}
	}
	return true
}

func (g EnergyGrid) String() string {
	if len(g.edges) == 0 {
		return "EnergyGrid{}"
	}
	return fmt.Sprintf("EnergyGrid{%d bins, %.4g-%.4g keV}", g.NumBins(), g.edges[0], g.edges[len(g.edges)-1])
}
