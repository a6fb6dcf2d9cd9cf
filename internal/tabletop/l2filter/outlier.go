package l2filter

import (
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
	"github.com/banshee-data/pickplace/internal/tabletop/spatial"
)

// StatisticalOutlier drops points whose mean distance to their MeanK
// nearest neighbours exceeds mean + StdDevMul*stddev, where the mean and
// sample standard deviation are taken over every point's mean distance.
// The point itself is not counted as its own neighbour.
type StatisticalOutlier struct {
	MeanK     int
	StdDevMul float64
}

func (f StatisticalOutlier) Name() string { return StageOutlier }

func (f StatisticalOutlier) Apply(c l1cloud.Cloud) l1cloud.Cloud {
	if f.MeanK <= 0 || len(c) < 2 {
		return c.Clone()
	}

	ix := spatial.NewIndex(c)
	means := make([]float64, len(c))
	for i, p := range c {
		means[i] = meanNeighbourDistance(ix, p, i, f.MeanK)
	}

	mean, std := stat.MeanStdDev(means, nil)
	threshold := mean + f.StdDevMul*std

	out := make(l1cloud.Cloud, 0, len(c))
	for i, p := range c {
		if means[i] <= threshold {
			out = append(out, p)
		}
	}
	return out
}

func meanNeighbourDistance(ix *spatial.Index, p l1cloud.Point, self, k int) float64 {
	hits := ix.Nearest(p, k+1)
	var sum float64
	n := 0
	for _, h := range hits {
		if h.Index == self {
			continue
		}
		if n == k {
			break
		}
		sum += h.Dist
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
