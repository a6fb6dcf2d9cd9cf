package l4cluster

import (
	"sort"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
	"github.com/banshee-data/pickplace/internal/tabletop/spatial"
)

// Params controls Euclidean cluster extraction.
type Params struct {
	// Tolerance is the maximum distance between two points of the same
	// cluster, inclusive.
	Tolerance float64
	MinSize   int
	MaxSize   int
}

// Cluster is one accepted component: ascending indices into the clustered
// cloud.
type Cluster struct {
	Indices []int
}

// Size returns the number of points in the cluster.
func (c Cluster) Size() int { return len(c.Indices) }

// Result holds the accepted clusters in discovery order and a count of the
// components rejected by the size bounds.
type Result struct {
	Clusters   []Cluster
	TooSmall   int
	TooLarge   int
	Components int
}

// Extract partitions c into clusters. Components are discovered by
// flood-filling from the lowest unvisited index, so order depends only on
// the input order. Rejected components are counted, not returned. Colour
// is ignored.
func Extract(c l1cloud.Cloud, p Params) Result {
	var res Result
	if len(c) == 0 {
		return res
	}
	ix := spatial.NewIndex(c)
	visited := make([]bool, len(c))
	queue := make([]int, 0, 64)

	for seed := range c {
		if visited[seed] {
			continue
		}
		visited[seed] = true
		queue = append(queue[:0], seed)
		for head := 0; head < len(queue); head++ {
			for _, nb := range ix.Radius(c[queue[head]], p.Tolerance) {
				if !visited[nb.Index] {
					visited[nb.Index] = true
					queue = append(queue, nb.Index)
				}
			}
		}

		res.Components++
		switch {
		case len(queue) < p.MinSize:
			res.TooSmall++
		case p.MaxSize > 0 && len(queue) > p.MaxSize:
			res.TooLarge++
		default:
			idx := make([]int, len(queue))
			copy(idx, queue)
			sort.Ints(idx)
			res.Clusters = append(res.Clusters, Cluster{Indices: idx})
		}
	}
	return res
}
