package l5recognition

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
	"github.com/banshee-data/pickplace/internal/tabletop/spatial"
)

// NormalEstimator returns one surface normal per input point, in input
// order. A zero vector marks a point whose normal could not be estimated.
type NormalEstimator interface {
	EstimateNormals(ctx context.Context, c l1cloud.Cloud) ([]r3.Vector, error)
}

// PCANormals estimates each normal as the eigenvector of the smallest
// eigenvalue of the covariance of the point's K nearest neighbours,
// flipped to face Viewpoint.
type PCANormals struct {
	K         int
	Viewpoint r3.Vector
}

func (e PCANormals) EstimateNormals(ctx context.Context, c l1cloud.Cloud) ([]r3.Vector, error) {
	k := e.K
	if k < 3 {
		k = 3
	}
	ix := spatial.NewIndex(c)
	out := make([]r3.Vector, len(c))
	for i, p := range c {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		hits := ix.Nearest(p, k)
		if len(hits) < 3 {
			continue
		}
		n, ok := fitNormal(c, hits)
		if !ok {
			continue
		}
		toView := e.Viewpoint.Sub(r3.Vector{X: p.X, Y: p.Y, Z: p.Z})
		if n.Dot(toView) < 0 {
			n = n.Mul(-1)
		}
		out[i] = n
	}
	return out, nil
}

func fitNormal(c l1cloud.Cloud, hits []spatial.Neighbor) (r3.Vector, bool) {
	var mean r3.Vector
	for _, h := range hits {
		p := c[h.Index]
		mean = mean.Add(r3.Vector{X: p.X, Y: p.Y, Z: p.Z})
	}
	mean = mean.Mul(1 / float64(len(hits)))

	var cov [6]float64 // xx, xy, xz, yy, yz, zz
	for _, h := range hits {
		p := c[h.Index]
		dx, dy, dz := p.X-mean.X, p.Y-mean.Y, p.Z-mean.Z
		cov[0] += dx * dx
		cov[1] += dx * dy
		cov[2] += dx * dz
		cov[3] += dy * dy
		cov[4] += dy * dz
		cov[5] += dz * dz
	}
	sym := mat.NewSymDense(3, []float64{
		cov[0], cov[1], cov[2],
		cov[1], cov[3], cov[4],
		cov[2], cov[4], cov[5],
	})

	var es mat.EigenSym
	if !es.Factorize(sym, true) {
		return r3.Vector{}, false
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	minCol := 0
	for j := 1; j < len(vals); j++ {
		if vals[j] < vals[minCol] {
			minCol = j
		}
	}
	n := r3.Vector{X: vecs.At(0, minCol), Y: vecs.At(1, minCol), Z: vecs.At(2, minCol)}
	norm := n.Norm()
	if norm == 0 || math.IsNaN(norm) {
		return r3.Vector{}, false
	}
	return n.Mul(1 / norm), true
}
