package l3surface

import (
	"github.com/golang/geo/r3"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
)

func vec(p l1cloud.Point) r3.Vector { return r3.Vector{X: p.X, Y: p.Y, Z: p.Z} }
