package core

import (
	"fmt"
	"math"
)

// Quaternion is a spacecraft attitude quaternion (q1, q2, q3 vector part,
// q4 scalar part) rotating the sky frame into the satellite frame.
type Quaternion [4]float64

// Norm returns the quaternion magnitude.
func (q Quaternion) Norm() float64 {
	return math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
}

// Normalize returns q scaled to unit norm. A zero quaternion yields NaNs.
func (q Quaternion) Normalize() Quaternion {
	n := q.Norm()
	return Quaternion{q[0] / n, q[1] / n, q[2] / n, q[3] / n}
}

// Rotation is a 3x3 rotation matrix. Rows are the satellite body axes
// expressed in the sky frame, so R·v_sky = v_sat.
type Rotation [3][3]float64

// QuaternionToFrameAxes returns the satellite x, y and z axes in the sky
// frame. The quaternion is normalized first; non-finite input propagates as
// NaN axes rather than panicking.
func QuaternionToFrameAxes(q Quaternion) (x, y, z Vec3) {
	q = q.Normalize()
	q1, q2, q3, q4 := q[0], q[1], q[2], q[3]

	x = Vec3{
		X: q1*q1 - q2*q2 - q3*q3 + q4*q4,
		Y: 2 * (q1*q2 + q4*q3),
		Z: 2 * (q1*q3 - q4*q2),
	}
	y = Vec3{
		X: 2 * (q1*q2 - q4*q3),
		Y: -q1*q1 + q2*q2 - q3*q3 + q4*q4,
		Z: 2 * (q2*q3 + q4*q1),
	}
	z = Vec3{
		X: 2 * (q1*q3 + q4*q2),
		Y: 2 * (q2*q3 - q4*q1),
		Z: -q1*q1 - q2*q2 + q3*q3 + q4*q4,
	}
	return x, y, z
}

// RotationFromQuaternion builds the sky->satellite rotation matrix.
func RotationFromQuaternion(q Quaternion) Rotation {
	x, y, z := QuaternionToFrameAxes(q)
	return Rotation{
		{x.X, x.Y, x.Z},
		{y.X, y.Y, y.Z},
		{z.X, z.Y, z.Z},
	}
}

// Apply returns R·v.
func (r Rotation) Apply(v Vec3) Vec3 {
	return Vec3{
		X: r[0][0]*v.X + r[0][1]*v.Y + r[0][2]*v.Z,
		Y: r[1][0]*v.X + r[1][1]*v.Y + r[1][2]*v.Z,
		Z: r[2][0]*v.X + r[2][1]*v.Y + r[2][2]*v.Z,
	}
}

// ApplyTranspose returns Rᵀ·v, the inverse rotation.
func (r Rotation) ApplyTranspose(v Vec3) Vec3 {
	return Vec3{
		X: r[0][0]*v.X + r[1][0]*v.Y + r[2][0]*v.Z,
		Y: r[0][1]*v.X + r[1][1]*v.Y + r[2][1]*v.Z,
		Z: r[0][2]*v.X + r[1][2]*v.Y + r[2][2]*v.Z,
	}
}

// Transpose returns Rᵀ.
func (r Rotation) Transpose() Rotation {
	var t Rotation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[i][j] = r[j][i]
		}
	}
	return t
}

// Mul returns r·other.
func (r Rotation) Mul(other Rotation) Rotation {
	var m Rotation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				m[i][j] += r[i][k] * other[k][j]
			}
		}
	}
	return m
}

// QuaternionFromAxes is the inverse of QuaternionToFrameAxes for an
// orthonormal right-handed triad. It branches on the largest diagonal term
// so the result stays accurate near 180° rotations. The sign is fixed so
// that q4 >= 0.
func QuaternionFromAxes(x, y, z Vec3) (Quaternion, error) {
	a := Rotation{
		{x.X, x.Y, x.Z},
		{y.X, y.Y, y.Z},
		{z.X, z.Y, z.Z},
	}
	if d := x.Cross(y).Sub(z).Norm(); d > 1e-6 || math.IsNaN(d) {
		return Quaternion{}, fmt.Errorf("axes are not a right-handed orthonormal triad (residual %g)", d)
	}

	var q Quaternion
	tr := a[0][0] + a[1][1] + a[2][2]
	switch {
	case tr > 0:
		q4 := 0.5 * math.Sqrt(1+tr)
		q = Quaternion{(a[1][2] - a[2][1]) / (4 * q4), (a[2][0] - a[0][2]) / (4 * q4), (a[0][1] - a[1][0]) / (4 * q4), q4}
	case a[0][0] >= a[1][1] && a[0][0] >= a[2][2]:
		q1 := 0.5 * math.Sqrt(1+a[0][0]-a[1][1]-a[2][2])
		q = Quaternion{q1, (a[0][1] + a[1][0]) / (4 * q1), (a[0][2] + a[2][0]) / (4 * q1), (a[1][2] - a[2][1]) / (4 * q1)}
	case a[1][1] >= a[2][2]:
		q2 := 0.5 * math.Sqrt(1-a[0][0]+a[1][1]-a[2][2])
		q = Quaternion{(a[0][1] + a[1][0]) / (4 * q2), q2, (a[1][2] + a[2][1]) / (4 * q2), (a[2][0] - a[0][2]) / (4 * q2)}
	default:
		q3 := 0.5 * math.Sqrt(1-a[0][0]-a[1][1]+a[2][2])
		q = Quaternion{(a[0][2] + a[2][0]) / (4 * q3), (a[1][2] + a[2][1]) / (4 * q3), q3, (a[0][1] - a[1][0]) / (4 * q3)}
	}
	if q[3] < 0 {
		q = Quaternion{-q[0], -q[1], -q[2], -q[3]}
	}
	return q.Normalize(), nil
}
