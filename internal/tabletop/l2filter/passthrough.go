package l2filter

import (
	"fmt"
	"math"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
)

// PassThrough keeps points whose coordinate on Axis lies in [Min, Max].
// Points outside the interval, and NaN coordinates, are dropped.
type PassThrough struct {
	Axis     l1cloud.Axis
	Min, Max float64
}

func (f PassThrough) Name() string { return fmt.Sprintf("passthrough_%s", f.Axis) }

func (f PassThrough) Apply(c l1cloud.Cloud) l1cloud.Cloud {
	out := make(l1cloud.Cloud, 0, len(c))
	for _, p := range c {
		v := p.Coord(f.Axis)
		if math.IsNaN(v) {
			continue
		}
		if v >= f.Min && v <= f.Max {
			out = append(out, p)
		}
	}
	return out
}
