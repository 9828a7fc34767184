package core

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius (kilometres).
const EarthRadiusKm = 6371.0

// AtmosphereKm is the absorbing atmosphere thickness added to the Earth
// radius for occultation. The troposphere still absorbs gamma rays.
const AtmosphereKm = 12.0

// EarthEffectiveRadiusKm is the radius of the occulting sphere.
const EarthEffectiveRadiusKm = EarthRadiusKm + AtmosphereKm

// ErrFrameMismatch indicates a direction handed to a transform expecting
// another frame.
var ErrFrameMismatch = errors.New("direction frame mismatch")

// Vec3 is a Cartesian vector, kilometres for positions and unitless for
// directions.
type Vec3 struct {
	X, Y, Z float64
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Scale returns k*v.
func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{X: k * v.X, Y: k * v.Y, Z: k * v.Z}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross returns v × other.
func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		X: v.Y*other.Z - v.Z*other.Y,
		Y: v.Z*other.X - v.X*other.Z,
		Z: v.X*other.Y - v.Y*other.X,
	}
}

// Unit returns v scaled to unit length. The zero vector yields NaNs.
func (v Vec3) Unit() Vec3 {
	return v.Scale(1 / v.Norm())
}

// AngleTo returns the angle between v and other in radians. The cosine is
// clamped to [-1, 1] so rounding never produces NaN for parallel vectors.
func (v Vec3) AngleTo(other Vec3) float64 {
	c := v.Dot(other) / (v.Norm() * other.Norm())
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	return math.Acos(c)
}

// Frame names the reference frame of a direction.
type Frame int

const (
	// FrameSatellite is the spacecraft body frame.
	FrameSatellite Frame = iota
	// FrameSky is the equatorial J2000 / ICRS frame.
	FrameSky
	// FrameGalactic is the galactic frame.
	FrameGalactic
)

func (f Frame) String() string {
	switch f {
	case FrameSatellite:
		return "satellite"
	case FrameSky:
		return "sky"
	case FrameGalactic:
		return "galactic"
	default:
		return fmt.Sprintf("Frame(%d)", int(f))
	}
}

// Direction is a unit vector tagged with its frame.
type Direction struct {
	Frame Frame
	Vec   Vec3
}

// NewDirection normalizes v and tags it with frame.
func NewDirection(frame Frame, v Vec3) Direction {
	return Direction{Frame: frame, Vec: v.Unit()}
}

// DirectionFromAngles builds a direction from longitude-like and
// latitude-like angles in degrees (az/el, ra/dec or l/b).
func DirectionFromAngles(frame Frame, lonDeg, latDeg float64) Direction {
	lon := lonDeg * math.Pi / 180
	lat := latDeg * math.Pi / 180
	return Direction{Frame: frame, Vec: Vec3{
		X: math.Cos(lat) * math.Cos(lon),
		Y: math.Cos(lat) * math.Sin(lon),
		Z: math.Sin(lat),
	}}
}

// Angles returns longitude in [0, 360) and latitude in [-90, 90] degrees.
//
// Longitude follows the legacy convention atan2(-y, -x) + 180°, which is
// atan2(y, x) shifted into [0, 360). It is kept for compatibility with the
// existing calibration products.
func (d Direction) Angles() (lonDeg, latDeg float64) {
	v := d.Vec
	lonDeg = math.Atan2(-v.Y, -v.X)*180/math.Pi + 180
	if lonDeg >= 360 {
		lonDeg -= 360
	}
	r := math.Hypot(v.X, v.Y)
	latDeg = math.Atan2(v.Z, r) * 180 / math.Pi
	return lonDeg, latDeg
}

// Separation returns the angle between two directions of the same frame in
// degrees.
func (d Direction) Separation(other Direction) (float64, error) {
	if d.Frame != other.Frame {
		return 0, fmt.Errorf("%w: %s vs %s", ErrFrameMismatch, d.Frame, other.Frame)
	}
	return d.Vec.AngleTo(other.Vec) * 180 / math.Pi, nil
}

// EarthHalfAngle returns the angular radius of the occulting Earth disk, in
// radians, seen from pos (kilometres, geocentric). Positions at or below the
// effective radius see a full hemisphere or more and return π/2.
func EarthHalfAngle(pos Vec3) float64 {
	r := pos.Norm()
	if r <= EarthEffectiveRadiusKm {
		return math.Pi / 2
	}
	return math.Asin(EarthEffectiveRadiusKm / r)
}

// occultedFrom reports whether a sky-frame direction lies within the Earth
// disk seen from pos. A direction exactly on the limb counts as occulted.
func occultedFrom(pos, skyDir Vec3) bool {
	nadir := pos.Scale(-1)
	return skyDir.AngleTo(nadir) <= EarthHalfAngle(pos)
}
