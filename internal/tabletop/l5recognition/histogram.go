package l5recognition

import (
	"github.com/golang/geo/r3"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
)

// ColorHistogram bins every point's hue, saturation and value into bins
// buckets per channel over [0, 1] (hue is divided by 360), concatenates
// the three histograms and L1-normalises the result. An empty cloud gives
// an all-zero vector.
func ColorHistogram(c l1cloud.Cloud, bins int) []float64 {
	hist := make([]float64, 3*bins)
	if bins <= 0 {
		return hist
	}
	for _, p := range c {
		h, s, v := colorful.Color{
			R: float64(p.R) / 255,
			G: float64(p.G) / 255,
			B: float64(p.B) / 255,
		}.Hsv()
		hist[binOf(h/360, bins)]++
		hist[bins+binOf(s, bins)]++
		hist[2*bins+binOf(v, bins)]++
	}
	return normalizeL1(hist)
}

// NormalHistogram bins the x, y and z components of unit normals over
// [-1, 1]. Zero-length normals are skipped.
func NormalHistogram(normals []r3.Vector, bins int) []float64 {
	hist := make([]float64, 3*bins)
	if bins <= 0 {
		return hist
	}
	for _, n := range normals {
		if n.Norm2() == 0 {
			continue
		}
		hist[binOf((n.X+1)/2, bins)]++
		hist[bins+binOf((n.Y+1)/2, bins)]++
		hist[2*bins+binOf((n.Z+1)/2, bins)]++
	}
	return normalizeL1(hist)
}

// binOf maps v in [0, 1] to a bucket, clamping out-of-range values.
func binOf(v float64, bins int) int {
	if v != v || v <= 0 {
		return 0
	}
	b := int(v * float64(bins))
	if b >= bins {
		return bins - 1
	}
	return b
}

func normalizeL1(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	if sum == 0 {
		return v
	}
	for i := range v {
		v[i] /= sum
	}
	return v
}
