package source

import (
	"context"

	"github.com/signalsfoundry/gbm-background/core"
	"github.com/signalsfoundry/gbm-background/internal/response"
	"github.com/signalsfoundry/gbm-background/internal/spectrum"
	"github.com/signalsfoundry/gbm-background/model"
)

// Conventional component names.
const (
	NameEarthAlbedo = "earth_albedo"
	NameCGB         = "cgb"
	NameGC          = "gc"
	NameGC511       = "gc_511"
	NameSun         = "sun"
)

// GridInputs are shared by every grid-folded diffuse source of a model.
type GridInputs struct {
	Layout        model.Layout
	Geometry      core.GeometrySamples
	Incoming      model.EnergyGrid
	Responses     []*response.GridResponses
	Interpolation Interpolation
	Workers       int
}

func (in GridInputs) config(name string, mode OcclusionMode, k Kernel, spec Spectrum) GridConfig {
	return GridConfig{
		Name:          name,
		Layout:        in.Layout,
		Geometry:      in.Geometry,
		Incoming:      in.Incoming,
		Responses:     in.Responses,
		Occlusion:     mode,
		Kernel:        k,
		Spectrum:      spec,
		Interpolation: in.Interpolation,
		Workers:       in.Workers,
	}
}

// NewEarthAlbedo sees only grid points on the Earth disk.
func NewEarthAlbedo(ctx context.Context, in GridInputs, spec Spectrum) (*ResponseSource, error) {
	return NewGridSource(ctx, in.config(NameEarthAlbedo, EarthDisk, UniformKernel{}, spec))
}

// NewCGB sees only grid points not blocked by the Earth.
func NewCGB(ctx context.Context, in GridInputs, spec Spectrum) (*ResponseSource, error) {
	return NewGridSource(ctx, in.config(NameCGB, VisibleSky, UniformKernel{}, spec))
}

// NewGalacticCenter is the Galactic-ridge continuum with a fixed spectrum.
func NewGalacticCenter(ctx context.Context, in GridInputs) (*ResponseSource, error) {
	return NewGridSource(ctx, in.config(NameGC, VisibleSky, GalacticCenterKernel(),
		FixedSpectrum(spectrum.GalacticCenterContinuum())))
}

// NewGalactic511 is the bulge positron-annihilation line.
func NewGalactic511(ctx context.Context, in GridInputs) (*ResponseSource, error) {
	return NewGridSource(ctx, in.config(NameGC511, VisibleSky, Positron511Kernel(),
		FixedSpectrum(spectrum.Positron511())))
}

// SunDirection tracks the apparent Sun.
func SunDirection() DirectionFunc { return core.SunDirection }

// NewSunSource is a point source following the Sun.
func NewSunSource(ctx context.Context, in GridInputs, b *response.Builder, spec Spectrum) (*ResponseSource, error) {
	return NewPointSource(ctx, PointConfig{
		Name:          NameSun,
		Layout:        in.Layout,
		Geometry:      in.Geometry,
		Incoming:      in.Incoming,
		Direction:     SunDirection(),
		Builder:       b,
		Spectrum:      spec,
		Interpolation: in.Interpolation,
	})
}
