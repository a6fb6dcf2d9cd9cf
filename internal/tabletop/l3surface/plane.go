package l3surface

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
)

// MinModelPoints is the number of points needed to define a plane.
const MinModelPoints = 3

// ErrInsufficientData is returned when the cloud has fewer than
// MinModelPoints points.
var ErrInsufficientData = errors.New("insufficient points for plane model")

// degenerateNorm rejects samples whose cross product is too small to give
// a reliable normal.
const degenerateNorm = 1e-12

// PlaneModel is the plane Normal·p + Offset = 0 with a unit Normal whose Z
// component is non-negative (ties broken on Y, then X).
type PlaneModel struct {
	Normal r3.Vector
	Offset float64
}

// Distance returns the unsigned perpendicular distance from p to the plane.
func (m PlaneModel) Distance(p l1cloud.Point) float64 {
	return math.Abs(m.Normal.Dot(r3.Vector{X: p.X, Y: p.Y, Z: p.Z}) + m.Offset)
}

// Coefficients returns [a, b, c, d] for ax + by + cz + d = 0.
func (m PlaneModel) Coefficients() [4]float64 {
	return [4]float64{m.Normal.X, m.Normal.Y, m.Normal.Z, m.Offset}
}

func (m PlaneModel) String() string {
	return fmt.Sprintf("%.4fx%+.4fy%+.4fz%+.4f=0", m.Normal.X, m.Normal.Y, m.Normal.Z, m.Offset)
}

// planeThrough fits the plane through three points. ok is false when the
// points are (nearly) collinear.
func planeThrough(a, b, c r3.Vector) (PlaneModel, bool) {
	n := b.Sub(a).Cross(c.Sub(a))
	norm := n.Norm()
	if norm < degenerateNorm || math.IsNaN(norm) {
		return PlaneModel{}, false
	}
	n = n.Mul(1 / norm)
	if n.Z < 0 || (n.Z == 0 && (n.Y < 0 || (n.Y == 0 && n.X < 0))) {
		n = n.Mul(-1)
	}
	return PlaneModel{Normal: n, Offset: -n.Dot(a)}, true
}
