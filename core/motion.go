package core

import (
	"context"
	"errors"
	"fmt"
	"math"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/gbm-background/model"
)

// DefaultOrbitStep is the spacing of propagated samples (seconds).
const DefaultOrbitStep = 30.0

// ErrPropagation is returned when SGP4 yields no usable state.
var ErrPropagation = errors.New("orbit propagation failed")

// FixedAttitudeProvider reports the same attitude and position for any
// window.
type FixedAttitudeProvider struct {
	Quaternion Quaternion
	Position   Vec3
}

// History returns a two-sample history spanning [start, stop].
func (p *FixedAttitudeProvider) History(ctx context.Context, start, stop float64) (*AttitudeHistory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !(stop > start) {
		return nil, fmt.Errorf("%w: empty window [%g, %g]", model.ErrInvalidTimeBins, start, stop)
	}
	return NewAttitudeHistory([]AttitudeSample{
		{Time: start, Quaternion: p.Quaternion, Position: p.Position},
		{Time: stop, Quaternion: p.Quaternion, Position: p.Position},
	})
}

// OrbitalAttitudeProvider propagates a TLE with SGP4 and derives a
// zenith-pointing attitude: +z away from the Earth, +x along the velocity
// component perpendicular to +z.
type OrbitalAttitudeProvider struct {
	sat  satellite.Satellite
	step float64
}

// NewOrbitalAttitudeProvider constructs a provider from TLE lines. step <= 0
// selects DefaultOrbitStep.
func NewOrbitalAttitudeProvider(line1, line2 string, step float64) *OrbitalAttitudeProvider {
	if step <= 0 {
		step = DefaultOrbitStep
	}
	return &OrbitalAttitudeProvider{
		sat:  satellite.TLEToSat(line1, line2, satellite.GravityWGS72),
		step: step,
	}
}

// History propagates the orbit over [start, stop] MET, always including both
// ends.
func (p *OrbitalAttitudeProvider) History(ctx context.Context, start, stop float64) (*AttitudeHistory, error) {
	if !(stop > start) {
		return nil, fmt.Errorf("%w: empty window [%g, %g]", model.ErrInvalidTimeBins, start, stop)
	}
	n := int(math.Ceil((stop-start)/p.step)) + 1
	samples := make([]AttitudeSample, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t := start + float64(i)*p.step
		if t > stop || i == n-1 {
			t = stop
		}
		s, err := p.StateAt(t)
		if err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return NewAttitudeHistory(samples)
}

// StateAt propagates to a single MET. TEME output is used directly as the
// sky frame.
func (p *OrbitalAttitudeProvider) StateAt(met float64) (AttitudeSample, error) {
	ts := METToTime(met)
	year, month, day := ts.Date()
	hour, min, sec := ts.Clock()

	pos, vel := satellite.Propagate(p.sat, year, int(month), day, hour, min, sec)
	r := Vec3{X: pos.X, Y: pos.Y, Z: pos.Z}
	v := Vec3{X: vel.X, Y: vel.Y, Z: vel.Z}
	if r.Norm() == 0 || math.IsNaN(r.Norm()) || math.IsNaN(v.Norm()) {
		return AttitudeSample{}, fmt.Errorf("%w: no state at MET %g", ErrPropagation, met)
	}

	z := r.Unit()
	x := v.Sub(z.Scale(v.Dot(z))).Unit()
	y := z.Cross(x)
	q, err := QuaternionFromAxes(x, y, z)
	if err != nil {
		return AttitudeSample{}, fmt.Errorf("%w: %v", ErrPropagation, err)
	}
	return AttitudeSample{Time: met, Quaternion: q, Position: r}, nil
}
