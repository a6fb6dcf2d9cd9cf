package l2filter

import (
	"math"
	"sort"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
)

// VoxelGrid collapses every occupied cubic cell of edge LeafSize to the
// centroid of its points, color included. Output is ordered by cell
// (z, then y, then x), so identical input always gives identical output.
// Non-finite points are discarded. A non-positive LeafSize disables the
// filter.
type VoxelGrid struct {
	LeafSize float64
}

func (v VoxelGrid) Name() string { return StageVoxel }

type voxelKey struct {
	x, y, z int64
}

type voxelAccum struct {
	sx, sy, sz float64
	sr, sg, sb uint64
	n          int
}

func (v VoxelGrid) Apply(c l1cloud.Cloud) l1cloud.Cloud {
	if v.LeafSize <= 0 {
		return c.Clone()
	}
	if len(c) == 0 {
		return l1cloud.Cloud{}
	}

	inv := 1.0 / v.LeafSize
	cells := make(map[voxelKey]*voxelAccum, len(c)/4+1)
	for _, p := range c {
		if !p.Finite() {
			continue
		}
		k := voxelKey{
			x: int64(math.Floor(p.X * inv)),
			y: int64(math.Floor(p.Y * inv)),
			z: int64(math.Floor(p.Z * inv)),
		}
		a := cells[k]
		if a == nil {
			a = &voxelAccum{}
			cells[k] = a
		}
		a.sx += p.X
		a.sy += p.Y
		a.sz += p.Z
		a.sr += uint64(p.R)
		a.sg += uint64(p.G)
		a.sb += uint64(p.B)
		a.n++
	}

	keys := make([]voxelKey, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.z != b.z {
			return a.z < b.z
		}
		if a.y != b.y {
			return a.y < b.y
		}
		return a.x < b.x
	})

	out := make(l1cloud.Cloud, len(keys))
	for i, k := range keys {
		a := cells[k]
		n := float64(a.n)
		out[i] = l1cloud.Point{
			X: a.sx / n,
			Y: a.sy / n,
			Z: a.sz / n,
			R: meanChannel(a.sr, a.n),
			G: meanChannel(a.sg, a.n),
			B: meanChannel(a.sb, a.n),
		}
	}
	return out
}

func meanChannel(sum uint64, n int) uint8 {
	return uint8((sum + uint64(n)/2) / uint64(n))
}
