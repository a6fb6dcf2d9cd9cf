package l3surface

import (
	"math/rand"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
)

// RANSAC fits the dominant plane of a cloud by random sample consensus.
//
// Every run draws the same sample sequence for a given Seed and cloud, and
// evaluates all MaxIterations candidates unless one already covers every
// point. A candidate replaces the incumbent only with strictly more
// inliers, so the first best candidate wins ties. Together these make the
// inlier count non-decreasing in DistanceThreshold.
type RANSAC struct {
	DistanceThreshold float64
	MaxIterations     int
	Seed              int64
}

// Segmentation is the result of one plane fit. Inliers and Outliers are
// ascending indices into the input cloud and together cover it exactly.
type Segmentation struct {
	Model      PlaneModel
	Found      bool
	Inliers    []int
	Outliers   []int
	Iterations int
}

// Segment fits a plane to c. When every sample is degenerate, Found is
// false and every point is reported as an outlier.
func (r RANSAC) Segment(c l1cloud.Cloud) (*Segmentation, error) {
	n := len(c)
	if n < MinModelPoints {
		return nil, ErrInsufficientData
	}
	iterations := r.MaxIterations
	if iterations <= 0 {
		iterations = 1
	}

	pts := make([]r3.Vector, n)
	for i, p := range c {
		pts[i] = r3.Vector{X: p.X, Y: p.Y, Z: p.Z}
	}

	rng := rand.New(rand.NewSource(r.Seed))
	var best PlaneModel
	bestCount := -1
	found := false
	ran := 0

	for ran < iterations {
		ran++
		i, j, k := sampleDistinct(rng, n)
		model, ok := planeThrough(pts[i], pts[j], pts[k])
		if !ok {
			continue
		}
		count := r.countInliers(model, pts)
		if count > bestCount {
			best, bestCount, found = model, count, true
		}
		if bestCount == n {
			break
		}
	}

	seg := &Segmentation{Model: best, Found: found, Iterations: ran}
	if !found {
		seg.Outliers = make([]int, n)
		for i := range seg.Outliers {
			seg.Outliers[i] = i
		}
		return seg, nil
	}

	seg.Inliers = make([]int, 0, bestCount)
	seg.Outliers = make([]int, 0, n-bestCount)
	for i, p := range pts {
		if planeDistance(best, p) <= r.DistanceThreshold {
			seg.Inliers = append(seg.Inliers, i)
		} else {
			seg.Outliers = append(seg.Outliers, i)
		}
	}
	return seg, nil
}

func (r RANSAC) countInliers(m PlaneModel, pts []r3.Vector) int {
	count := 0
	for _, p := range pts {
		if planeDistance(m, p) <= r.DistanceThreshold {
			count++
		}
	}
	return count
}

func planeDistance(m PlaneModel, p r3.Vector) float64 {
	d := m.Normal.Dot(p) + m.Offset
	if d < 0 {
		return -d
	}
	return d
}

// sampleDistinct draws three different indices in [0, n).
func sampleDistinct(rng *rand.Rand, n int) (int, int, int) {
	i := rng.Intn(n)
	j := rng.Intn(n - 1)
	if j >= i {
		j++
	}
	lo, hi := i, j
	if lo > hi {
		lo, hi = hi, lo
	}
	k := rng.Intn(n - 2)
	if k >= lo {
		k++
	}
	if k >= hi {
		k++
	}
	return i, j, k
}
