package l1cloud

import (
	"math"
	"sort"
	"time"
)

// Point is a single sensor return in the world frame. Color channels are
// zero when the source cloud carries no color.
type Point struct {
	X, Y, Z float64
	R, G, B uint8
}

// Finite reports whether all three coordinates are finite numbers.
func (p Point) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsNaN(p.Z) &&
		!math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0) && !math.IsInf(p.Z, 0)
}

// Axis selects one coordinate of a Point.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// ParseAxis maps "x", "y" or "z" to an Axis.
func ParseAxis(s string) (Axis, bool) {
	switch s {
	case "x", "X":
		return AxisX, true
	case "y", "Y":
		return AxisY, true
	case "z", "Z":
		return AxisZ, true
	}
	return 0, false
}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return "?"
}

// Coord returns the coordinate of p on axis a.
func (p Point) Coord(a Axis) float64 {
	switch a {
	case AxisX:
		return p.X
	case AxisY:
		return p.Y
	default:
		return p.Z
	}
}

// Cloud is an ordered sequence of points. Stages never mutate a cloud they
// were handed; each returns a freshly allocated one.
type Cloud []Point

// Len returns the number of points.
func (c Cloud) Len() int { return len(c) }

// Clone returns a copy that shares no storage with c.
func (c Cloud) Clone() Cloud {
	if c == nil {
		return nil
	}
	out := make(Cloud, len(c))
	copy(out, c)
	return out
}

// Extract returns the points at indices (negative=false) or every point not
// listed in indices (negative=true). Output order follows the input cloud's
// order in both modes; indices out of range are ignored.
func (c Cloud) Extract(indices []int, negative bool) Cloud {
	mask := make([]bool, len(c))
	selected := 0
	for _, i := range indices {
		if i >= 0 && i < len(c) && !mask[i] {
			mask[i] = true
			selected++
		}
	}
	size := selected
	if negative {
		size = len(c) - selected
	}
	out := make(Cloud, 0, size)
	for i, p := range c {
		if mask[i] != negative {
			out = append(out, p)
		}
	}
	return out
}

// Select returns the points at indices in the order given.
func (c Cloud) Select(indices []int) Cloud {
	out := make(Cloud, 0, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(c) {
			out = append(out, c[i])
		}
	}
	return out
}

// StripColor returns a geometry-only copy of c.
func (c Cloud) StripColor() Cloud {
	out := make(Cloud, len(c))
	for i, p := range c {
		out[i] = Point{X: p.X, Y: p.Y, Z: p.Z}
	}
	return out
}

// Paint returns a copy of c with every point set to one color.
func (c Cloud) Paint(r, g, b uint8) Cloud {
	out := make(Cloud, len(c))
	for i, p := range c {
		out[i] = Point{X: p.X, Y: p.Y, Z: p.Z, R: r, G: g, B: b}
	}
	return out
}

// Bounds returns the axis-aligned min and max corners of c. ok is false for
// an empty cloud.
func (c Cloud) Bounds() (min, max Point, ok bool) {
	if len(c) == 0 {
		return Point{}, Point{}, false
	}
	min, max = c[0], c[0]
	for _, p := range c[1:] {
		min.X = math.Min(min.X, p.X)
		min.Y = math.Min(min.Y, p.Y)
		min.Z = math.Min(min.Z, p.Z)
		max.X = math.Max(max.X, p.X)
		max.Y = math.Max(max.Y, p.Y)
		max.Z = math.Max(max.Z, p.Z)
	}
	return min, max, true
}

// SortedIndices returns a sorted copy of idx.
func SortedIndices(idx []int) []int {
	out := make([]int, len(idx))
	copy(out, idx)
	sort.Ints(out)
	return out
}

// Frame is one sensor capture handed to the pipeline.
type Frame struct {
	ID       string
	Seq      uint64
	Received time.Time
	Cloud    Cloud
}
