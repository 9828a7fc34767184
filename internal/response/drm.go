package response

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/signalsfoundry/gbm-background/core"
	"github.com/signalsfoundry/gbm-background/model"
)

// DRM computes a detector response matrix for photons arriving from dir
// (satellite frame, unit vector). Rows index incoming bins and columns
// detected bins; entries are effective areas in cm². Implementations must
// be safe for concurrent use.
type DRM interface {
	Response(ctx context.Context, dir core.Vec3, det model.Detector, in, out model.EnergyGrid) (*mat.Dense, error)
}

// DetectorNormal returns the detector boresight in the satellite frame.
func DetectorNormal(det model.Detector) core.Vec3 {
	az := det.Azimuth * math.Pi / 180
	zen := det.Zenith * math.Pi / 180
	return core.Vec3{
		X: math.Sin(zen) * math.Cos(az),
		Y: math.Sin(zen) * math.Sin(az),
		Z: math.Cos(zen),
	}
}

// CosineDRM is an analytic response: on-axis area scaled by the cosine of
// the off-axis angle, with Gaussian energy redistribution. NaI detectors
// are blind from behind; BGO detectors see both hemispheres.
type CosineDRM struct {
	// Area is the on-axis effective area (cm²).
	Area float64
	// Resolution is the fractional 1σ energy resolution. Zero puts every
	// photon in the detected bin containing its incoming bin centre.
	Resolution float64
}

// DefaultCosineDRM has NaI-like area and resolution.
func DefaultCosineDRM() CosineDRM {
	return CosineDRM{Area: 126, Resolution: 0.08}
}

// Response implements DRM.
func (c CosineDRM) Response(ctx context.Context, dir core.Vec3, det model.Detector, in, out model.EnergyGrid) (*mat.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if in.NumBins() == 0 || out.NumBins() == 0 {
		return nil, fmt.Errorf("%w: empty energy grid", model.ErrInvalidEnergyGrid)
	}
	cos := dir.Unit().Dot(DetectorNormal(det))
	var angular float64
	if det.IsBGO() {
		angular = 0.5 * (1 + math.Abs(cos))
	} else if cos > 0 {
		angular = cos
	}

	m := mat.NewDense(in.NumBins(), out.NumBins(), nil)
	if angular == 0 {
		return m, nil
	}
	edges := out.Edges()
	for i, e := range in.Centers() {
		area := c.Area * angular
		if c.Resolution <= 0 {
			k := sort.SearchFloat64s(edges, e)
			if k < len(edges) && edges[k] == e {
				k++
			}
			if j := k - 1; j >= 0 && j < out.NumBins() {
				m.Set(i, j, area)
			}
			continue
		}
		line := distuv.Normal{Mu: e, Sigma: c.Resolution * e}
		prev := line.CDF(edges[0])
		for j := 0; j < out.NumBins(); j++ {
			next := line.CDF(edges[j+1])
			m.Set(i, j, area*(next-prev))
			prev = next
		}
	}
	return m, nil
}
