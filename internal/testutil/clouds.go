package testutil

import (
	"math/rand"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
)

// GridCube returns an n×n×n lattice with the given spacing whose lowest
// corner sits at origin.
func GridCube(origin l1cloud.Point, n int, spacing float64) l1cloud.Cloud {
	c := make(l1cloud.Cloud, 0, n*n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				c = append(c, l1cloud.Point{
					X: origin.X + float64(i)*spacing,
					Y: origin.Y + float64(j)*spacing,
					Z: origin.Z + float64(k)*spacing,
					R: origin.R, G: origin.G, B: origin.B,
				})
			}
		}
	}
	return c
}

// Blob returns count lattice points, spacing apart, filling a cube centred
// on center. Points are emitted row by row so the first count lattice
// sites are used.
func Blob(center l1cloud.Point, count int, spacing float64) l1cloud.Cloud {
	side := 1
	for side*side*side < count {
		side++
	}
	half := float64(side-1) * spacing / 2
	origin := l1cloud.Point{
		X: center.X - half, Y: center.Y - half, Z: center.Z - half,
		R: center.R, G: center.G, B: center.B,
	}
	return GridCube(origin, side, spacing)[:count]
}

// NoisyCube returns n points drawn uniformly from an axis-aligned cube of
// edge size centred on center, with random colors. The seed makes the
// cloud reproducible.
func NoisyCube(center l1cloud.Point, size float64, n int, seed int64) l1cloud.Cloud {
	rng := rand.New(rand.NewSource(seed))
	c := make(l1cloud.Cloud, n)
	for i := range c {
		c[i] = l1cloud.Point{
			X: center.X + (rng.Float64()-0.5)*size,
			Y: center.Y + (rng.Float64()-0.5)*size,
			Z: center.Z + (rng.Float64()-0.5)*size,
			R: uint8(rng.Intn(256)),
			G: uint8(rng.Intn(256)),
			B: uint8(rng.Intn(256)),
		}
	}
	return c
}

// TablePlane returns a flat square of side points per edge at height z,
// spacing apart, centred on (cx, cy), with small vertical jitter bounded
// by jitter.
func TablePlane(cx, cy, z float64, side int, spacing, jitter float64, seed int64) l1cloud.Cloud {
	rng := rand.New(rand.NewSource(seed))
	half := float64(side-1) * spacing / 2
	c := make(l1cloud.Cloud, 0, side*side)
	for i := 0; i < side; i++ {
		for j := 0; j < side; j++ {
			c = append(c, l1cloud.Point{
				X: cx - half + float64(i)*spacing,
				Y: cy - half + float64(j)*spacing,
				Z: z + (rng.Float64()*2-1)*jitter,
				R: 120, G: 90, B: 60,
			})
		}
	}
	return c
}

// TabletopScene returns a table plane at height 0.7 plus one colored blob
// resting on it per entry of colors, spaced along y.
func TabletopScene(colors []l1cloud.Point) l1cloud.Cloud {
	scene := TablePlane(0.5, 0, 0.7, 60, 0.01, 0.001, 1)
	for i, col := range colors {
		center := l1cloud.Point{
			X: 0.5,
			Y: -0.2 + float64(i)*0.2,
			Z: 0.76,
			R: col.R, G: col.G, B: col.B,
		}
		scene = append(scene, Blob(center, 200, 0.01)...)
	}
	return scene
}
