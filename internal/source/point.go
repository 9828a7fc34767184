package source

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/gbm-background/core"
	"github.com/signalsfoundry/gbm-background/internal/response"
	"github.com/signalsfoundry/gbm-background/model"
)

// DefaultGateAngle is the Earth-centre separation (degrees) below which a
// point source contributes nothing.
const DefaultGateAngle = 67.0

// DirectionFunc returns a sky-frame source direction at a MET.
type DirectionFunc func(met float64) core.Direction

// FixedDirection is a constant RA/Dec (degrees, J2000).
func FixedDirection(raDeg, decDeg float64) DirectionFunc {
	d := core.DirectionFromAngles(core.FrameSky, raDeg, decDeg)
	return func(float64) core.Direction { return d }
}

// PointConfig describes a point source whose DRM is evaluated at the
// source direction for every geometry sample.
type PointConfig struct {
	Name          string
	Layout        model.Layout
	Geometry      core.GeometrySamples
	Incoming      model.EnergyGrid
	Direction     DirectionFunc
	Builder       *response.Builder
	Spectrum      Spectrum
	Interpolation Interpolation
	// GateAngle defaults to DefaultGateAngle when zero.
	GateAngle float64
}

// NewPointSource precomputes the per-sample effective responses of a
// point source. The source is visible only while its separation from the
// Earth centre is at least GateAngle; this binary gate stands in for the
// true horizon.
func NewPointSource(ctx context.Context, cfg PointConfig) (*ResponseSource, error) {
	if err := validateCommon(cfg.Name, cfg.Layout, cfg.Geometry, cfg.Incoming, cfg.Spectrum); err != nil {
		return nil, err
	}
	if cfg.Direction == nil {
		return nil, fmt.Errorf("%w: %s has no direction", model.ErrMissingGeometry, cfg.Name)
	}
	if cfg.Builder == nil {
		return nil, fmt.Errorf("%w: %s has no response builder", model.ErrMissingResponse, cfg.Name)
	}
	gate := cfg.GateAngle
	if gate == 0 {
		gate = DefaultGateAngle
	}

	nK := cfg.Geometry.Len()
	satDirs := make([]core.Vec3, nK)
	visible := make([]float64, nK)
	for k, att := range cfg.Geometry.Samples {
		sky := cfg.Direction(cfg.Geometry.Times[k])
		sat, err := core.ToSatelliteFrame(sky, att)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Name, err)
		}
		satDirs[k] = sat.Vec
		sep, err := sat.Separation(core.EarthDirection(att))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Name, err)
		}
		if sep >= gate {
			visible[k] = 1
		}
	}

	chans := cfg.Layout.Channels()
	nD, nE, nI := cfg.Layout.NumDetectors(), len(chans), cfg.Incoming.NumBins()
	blocks := make([][]float64, nK)
	for k := range blocks {
		blocks[k] = make([]float64, nD*nE*nI)
	}
	for d, name := range cfg.Layout.Detectors {
		det, err := model.LookupDetector(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Name, err)
		}
		ms, err := cfg.Builder.BuildDirections(ctx, satDirs, det, cfg.Incoming, cfg.Layout.Energy)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", model.ErrMissingResponse, cfg.Name, err)
		}
		for k, m := range ms {
			if visible[k] == 0 {
				continue
			}
			dst := blocks[k][d*nE*nI : (d+1)*nE*nI]
			for i := 0; i < nI; i++ {
				row := m.RawRowView(i)
				for e, ch := range chans {
					dst[e*nI+i] = row[ch]
				}
			}
		}
	}

	return newResponseSource(cfg.Name, KindPoint, cfg.Layout, cfg.Incoming, cfg.Geometry.Times,
		assembleEffective(blocks, nD, nE, nI), cfg.Spectrum, cfg.Interpolation)
}
