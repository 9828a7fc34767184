package source

import (
	"math"

	"github.com/signalsfoundry/gbm-background/core"
)

// Kernel weights sky directions (unit vectors, sky frame) for extended
// sources.
type Kernel interface {
	Weight(sky core.Vec3) float64
}

// UniformKernel weights every direction 1.
type UniformKernel struct{}

// Weight implements Kernel.
func (UniformKernel) Weight(core.Vec3) float64 { return 1 }

// galactic returns longitude in (-π, π] and latitude of a sky vector.
func galactic(sky core.Vec3) (l, b float64) {
	g := core.GalacticRotation().Apply(sky)
	z := g.Z
	if z > 1 {
		z = 1
	} else if z < -1 {
		z = -1
	}
	return math.Atan2(g.Y, g.X), math.Asin(z)
}

func wrapPi(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// LorentzianKernel is a product of Lorentzians in galactic longitude and
// latitude. Angles in radians.
type LorentzianKernel struct {
	L0, B0       float64
	FWHML, FWHMB float64
	Norm         float64
}

// GalacticCenterKernel is the Galactic-ridge template: FWHM 21° in
// longitude and 1.2° in latitude, centred at b = -0.15°, normalized to unit
// integral over the sphere.
func GalacticCenterKernel() LorentzianKernel {
	return LorentzianKernel{
		L0:    0,
		B0:    -math.Pi / 1200,
		FWHML: math.Pi * 7 / 60,
		FWHMB: math.Pi / 150,
		Norm:  1 / 0.0180403,
	}
}

// Weight implements Kernel.
func (k LorentzianKernel) Weight(sky core.Vec3) float64 {
	l, b := galactic(sky)
	gl := k.FWHML / 2
	gb := k.FWHMB / 2
	dl := wrapPi(l - k.L0)
	db := b - k.B0
	return k.Norm * (gl * gl / (dl*dl + gl*gl)) * (gb * gb / (db*db + gb*gb))
}

// AsymmetricGaussianKernel is an elliptical Gaussian in galactic
// coordinates with semi-axes in degrees, divided by Norm.
type AsymmetricGaussianKernel struct {
	Lon0, Lat0 float64
	SemiMajor  float64
	SemiMinor  float64
	Norm       float64
}

// Positron511Kernel is the 511 keV bulge template (8.1° × 7.2°).
func Positron511Kernel() AsymmetricGaussianKernel {
	return AsymmetricGaussianKernel{SemiMajor: 8.1, SemiMinor: 7.2, Norm: 3282.806350011743}
}

// Weight implements Kernel.
func (k AsymmetricGaussianKernel) Weight(sky core.Vec3) float64 {
	l, b := galactic(sky)
	dl := wrapPi(l-k.Lon0*math.Pi/180) * 180 / math.Pi
	db := b*180/math.Pi - k.Lat0
	x := dl / k.SemiMajor
	y := db / k.SemiMinor
	return math.Exp(-0.5*(x*x+y*y)) / k.Norm
}
