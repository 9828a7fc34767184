// Package response evaluates detector response matrices over sets of
// directions and caches them per detector and energy-grid pair.
package response

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/gbm-background/core"
	"github.com/signalsfoundry/gbm-background/model"
)

// DefaultGridPoints is the number of directions used when none is
// configured.
const DefaultGridPoints = 4000

// DirectionGrid is a quasi-uniform set of unit vectors on the sphere in the
// satellite frame. It is fully determined by its size.
type DirectionGrid struct {
	points []core.Vec3
}

// GenerateDirectionGrid returns n points on a Fibonacci sphere:
//
//	y_i = i*(2/n) - 1 + 1/n, r_i = sqrt(1 - y_i^2)
//	phi_i = ((i+1) mod n) * pi*(3 - sqrt(5))
//	p_i = (cos(phi_i)*r_i, y_i, sin(phi_i)*r_i)
func GenerateDirectionGrid(n int) (DirectionGrid, error) {
	if n < 1 {
		return DirectionGrid{}, fmt.Errorf("%w: direction grid needs at least one point, got %d", model.ErrInvalidParameters, n)
	}
	offset := 2 / float64(n)
	increment := math.Pi * (3 - math.Sqrt(5))
	points := make([]core.Vec3, n)
	for i := range points {
		y := float64(i)*offset - 1 + offset/2
		r := math.Sqrt(1 - y*y)
		phi := float64((i+1)%n) * increment
		points[i] = core.Vec3{X: math.Cos(phi) * r, Y: y, Z: math.Sin(phi) * r}
	}
	return DirectionGrid{points: points}, nil
}

// Len returns the number of points.
func (g DirectionGrid) Len() int { return len(g.points) }

// Point returns the i-th direction.
func (g DirectionGrid) Point(i int) core.Vec3 { return g.points[i] }

// Points returns a copy of all directions.
func (g DirectionGrid) Points() []core.Vec3 {
	out := make([]core.Vec3, len(g.points))
	copy(out, g.points)
	return out
}

// SolidAngle is the solid angle represented by one point, 4π/N sr.
func (g DirectionGrid) SolidAngle() float64 {
	return 4 * math.Pi / float64(len(g.points))
}
