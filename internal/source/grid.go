package source

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/signalsfoundry/gbm-background/core"
	"github.com/signalsfoundry/gbm-background/internal/response"
	"github.com/signalsfoundry/gbm-background/model"
)

// OcclusionMode selects which grid points a diffuse source sees.
type OcclusionMode int

const (
	// VisibleSky keeps points not blocked by the Earth (CGB, Galactic
	// emission).
	VisibleSky OcclusionMode = iota
	// EarthDisk keeps only points on the Earth disk (albedo).
	EarthDisk
)

// GridConfig describes a diffuse source folded over a direction grid.
type GridConfig struct {
	Name          string
	Layout        model.Layout
	Geometry      core.GeometrySamples
	Incoming      model.EnergyGrid
	Responses     []*response.GridResponses
	Occlusion     OcclusionMode
	Kernel        Kernel
	Spectrum      Spectrum
	Interpolation Interpolation
	Workers       int
}

func validateCommon(name string, layout model.Layout, geom core.GeometrySamples, in model.EnergyGrid, spec Spectrum) error {
	if name == "" {
		return fmt.Errorf("%w: component needs a name", model.ErrInvalidParameters)
	}
	if err := layout.Validate(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if geom.Len() < 2 {
		return fmt.Errorf("%w: %s needs at least 2 geometry samples, got %d", model.ErrMissingGeometry, name, geom.Len())
	}
	if in.NumBins() == 0 {
		return fmt.Errorf("%w: %s has no incoming energy grid", model.ErrInvalidEnergyGrid, name)
	}
	if !spec.valid() {
		return fmt.Errorf("%w: %s has no spectrum", model.ErrInvalidParameters, name)
	}
	return nil
}

// orderResponses matches responses to the layout detector order.
func orderResponses(name string, layout model.Layout, in model.EnergyGrid, rs []*response.GridResponses) ([]*response.GridResponses, error) {
	byDet := make(map[string]*response.GridResponses, len(rs))
	for _, r := range rs {
		if r != nil {
			byDet[r.Detector] = r
		}
	}
	ordered := make([]*response.GridResponses, len(layout.Detectors))
	for i, det := range layout.Detectors {
		r, ok := byDet[det]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no grid responses for %s", model.ErrMissingResponse, name, det)
		}
		if err := r.Require(in, layout.Energy); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if i > 0 && r.Len() != ordered[0].Len() {
			return nil, fmt.Errorf("%w: %s grid sizes differ (%d vs %d)", model.ErrInconsistentGrid, name, r.Len(), ordered[0].Len())
		}
		ordered[i] = r
	}
	return ordered, nil
}

// NewGridSource precomputes effective responses of a diffuse source at
// every geometry sample. A grid point's weight is kernel × 4π/N, and zero
// when the occlusion mode excludes it; when every point is excluded the
// rate is exactly zero.
func NewGridSource(ctx context.Context, cfg GridConfig) (*ResponseSource, error) {
	if err := validateCommon(cfg.Name, cfg.Layout, cfg.Geometry, cfg.Incoming, cfg.Spectrum); err != nil {
		return nil, err
	}
	ordered, err := orderResponses(cfg.Name, cfg.Layout, cfg.Incoming, cfg.Responses)
	if err != nil {
		return nil, err
	}
	kernel := cfg.Kernel
	if kernel == nil {
		kernel = UniformKernel{}
	}

	grid := ordered[0].Grid
	points := grid.Points()
	omega := grid.SolidAngle()
	chans := cfg.Layout.Channels()
	nD, nE, nI := len(ordered), len(chans), cfg.Incoming.NumBins()
	nK := cfg.Geometry.Len()

	blocks, err := response.ParallelMap(ctx, nK, cfg.Workers, func(ctx context.Context, lo, hi int) ([][]float64, error) {
		local := make([][]float64, 0, hi-lo)
		weights := make([]float64, len(points))
		for k := lo; k < hi; k++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			att := cfg.Geometry.Samples[k]
			rot := att.Rotation()
			mask := core.OccultationMask(att, points)
			for p, pt := range points {
				keep := !mask[p]
				if cfg.Occlusion == EarthDisk {
					keep = mask[p]
				}
				weights[p] = 0
				if keep {
					weights[p] = kernel.Weight(rot.ApplyTranspose(pt)) * omega
				}
			}
			block := make([]float64, nD*nE*nI)
			for d, gr := range ordered {
				foldWeighted(block[d*nE*nI:(d+1)*nE*nI], weights, gr, chans, nI)
			}
			local = append(local, block)
		}
		return local, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Name, err)
	}

	return newResponseSource(cfg.Name, KindGrid, cfg.Layout, cfg.Incoming, cfg.Geometry.Times,
		assembleEffective(blocks, nD, nE, nI), cfg.Spectrum, cfg.Interpolation)
}

// foldWeighted accumulates Σ_p w_p·M_p[i][chan] into dst[e*nI+i].
func foldWeighted(dst, weights []float64, gr *response.GridResponses, chans []int, nI int) {
	for p, w := range weights {
		if w == 0 {
			continue
		}
		m := gr.Matrix(p)
		for i := 0; i < nI; i++ {
			row := m.RawRowView(i)
			for e, ch := range chans {
				dst[e*nI+i] += w * row[ch]
			}
		}
	}
}

// assembleEffective turns per-sample blocks, laid out [d][e][i], into one
// (sample*E+e) × I matrix per detector.
func assembleEffective(blocks [][]float64, nD, nE, nI int) []*mat.Dense {
	nK := len(blocks)
	eff := make([]*mat.Dense, nD)
	for d := 0; d < nD; d++ {
		data := make([]float64, nK*nE*nI)
		for k, block := range blocks {
			copy(data[k*nE*nI:(k+1)*nE*nI], block[d*nE*nI:(d+1)*nE*nI])
		}
		eff[d] = mat.NewDense(nK*nE, nI, data)
	}
	return eff
}
