package pipeline

import (
	"math"
	"sync"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
	"github.com/banshee-data/pickplace/internal/tabletop/l4cluster"
)

// goldenAngle spreads successive hues so neighbouring indices differ.
const goldenAngle = 137.50776405003785

// RGB is an 8-bit colour.
type RGB struct {
	R, G, B uint8
}

// Palette hands out a stable colour per cluster index. Colours are
// generated on first use and cached, so index i is the same colour in
// every frame.
type Palette struct {
	mu     sync.Mutex
	colors []RGB
}

// NewPalette returns an empty palette.
func NewPalette() *Palette {
	return &Palette{}
}

// Color returns the colour for cluster index i.
func (p *Palette) Color(i int) RGB {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.colors) <= i {
		n := len(p.colors)
		hue := math.Mod(float64(n)*goldenAngle, 360)
		// Alternate value so hues that wrap close together stay apart.
		val := 0.95
		if n%2 == 1 {
			val = 0.75
		}
		r, g, b := colorful.Hsv(hue, 0.85, val).Clamped().RGB255()
		p.colors = append(p.colors, RGB{R: r, G: g, B: b})
	}
	return p.colors[i]
}

// Len returns the number of colours generated so far.
func (p *Palette) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.colors)
}

// Colorize builds the cluster visualisation cloud: every cluster of
// geometry painted in its palette colour, concatenated in cluster order.
func (p *Palette) Colorize(geometry l1cloud.Cloud, clusters []l4cluster.Cluster) l1cloud.Cloud {
	total := 0
	for _, c := range clusters {
		total += c.Size()
	}
	out := make(l1cloud.Cloud, 0, total)
	for i, c := range clusters {
		col := p.Color(i)
		out = append(out, geometry.Select(c.Indices).Paint(col.R, col.G, col.B)...)
	}
	return out
}
