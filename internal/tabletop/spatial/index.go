package spatial

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
)

// Neighbor is one query hit: the index into the indexed cloud and the
// Euclidean distance from the query point.
type Neighbor struct {
	Index int
	Dist  float64
}

// Index is an immutable 3-D k-d tree over a cloud.
type Index struct {
	tree *kdtree.Tree
	n    int
}

// NewIndex builds an index over c. c itself is not reordered.
func NewIndex(c l1cloud.Cloud) *Index {
	pts := make(cloudPoints, len(c))
	for i, p := range c {
		pts[i] = cloudPoint{pos: [3]float64{p.X, p.Y, p.Z}, idx: i}
	}
	return &Index{tree: kdtree.New(pts, false), n: len(c)}
}

// Len returns the number of indexed points.
func (ix *Index) Len() int { return ix.n }

// Radius returns every indexed point within r of p, inclusive, ordered by
// distance then index.
func (ix *Index) Radius(p l1cloud.Point, r float64) []Neighbor {
	if ix.n == 0 || r < 0 {
		return nil
	}
	keep := kdtree.NewDistKeeper(r * r)
	ix.tree.NearestSet(keep, query(p))
	return collect(keep.Heap)
}

// Nearest returns up to k indexed points closest to p, ordered by distance
// then index.
func (ix *Index) Nearest(p l1cloud.Point, k int) []Neighbor {
	if ix.n == 0 || k <= 0 {
		return nil
	}
	keep := kdtree.NewNKeeper(k)
	ix.tree.NearestSet(keep, query(p))
	return collect(keep.Heap)
}

func query(p l1cloud.Point) cloudPoint {
	return cloudPoint{pos: [3]float64{p.X, p.Y, p.Z}, idx: -1}
}

// collect drops the keeper sentinel and converts squared distances.
func collect(h kdtree.Heap) []Neighbor {
	out := make([]Neighbor, 0, len(h))
	for _, cd := range h {
		if cd.Comparable == nil {
			continue
		}
		out = append(out, Neighbor{Index: cd.Comparable.(cloudPoint).idx, Dist: math.Sqrt(cd.Dist)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Dist != out[j].Dist {
			return out[i].Dist < out[j].Dist
		}
		return out[i].Index < out[j].Index
	})
	return out
}

// cloudPoint is a kdtree.Comparable carrying its position in the source cloud.
type cloudPoint struct {
	pos [3]float64
	idx int
}

func (p cloudPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.pos[d] - c.(cloudPoint).pos[d]
}

func (p cloudPoint) Dims() int { return 3 }

// Distance is squared Euclidean, as the kdtree keepers expect.
func (p cloudPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(cloudPoint)
	dx := p.pos[0] - q.pos[0]
	dy := p.pos[1] - q.pos[1]
	dz := p.pos[2] - q.pos[2]
	return dx*dx + dy*dy + dz*dz
}

type cloudPoints []cloudPoint

func (p cloudPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p cloudPoints) Len() int                      { return len(p) }
func (p cloudPoints) Pivot(d kdtree.Dim) int {
	return pointPlane{dim: d, points: p}.Pivot()
}
func (p cloudPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// pointPlane sorts points along one dimension for median selection.
type pointPlane struct {
	dim    kdtree.Dim
	points cloudPoints
}

func (p pointPlane) Len() int { return len(p.points) }
func (p pointPlane) Less(i, j int) bool {
	return p.points[i].pos[p.dim] < p.points[j].pos[p.dim]
}
func (p pointPlane) Swap(i, j int) { p.points[i], p.points[j] = p.points[j], p.points[i] }
func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}
func (p pointPlane) Pivot() int {
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}
