package l2filter

import (
	"fmt"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
)

// Filter reduces a cloud to a subset or summary of its points.
type Filter interface {
	Name() string
	Apply(c l1cloud.Cloud) l1cloud.Cloud
}

// Stage names accepted by NewChain.
const (
	StageVoxel        = "voxel"
	StagePassThroughX = "passthrough_x"
	StagePassThroughY = "passthrough_y"
	StagePassThroughZ = "passthrough_z"
	StageOutlier      = "outlier"
)

// Range is a closed interval.
type Range struct {
	Min, Max float64
}

// Params carries the tunables for every stage a chain may contain.
type Params struct {
	LeafSize  float64
	CropX     Range
	CropY     Range
	CropZ     Range
	MeanK     int
	StdDevMul float64
}

// Chain applies its filters in order.
type Chain []Filter

// NewChain builds a chain from stage names in the order given. A stage
// may appear more than once.
func NewChain(order []string, p Params) (Chain, error) {
	ch := make(Chain, 0, len(order))
	for _, name := range order {
		f, err := newStage(name, p)
		if err != nil {
			return nil, err
		}
		ch = append(ch, f)
	}
	return ch, nil
}

// KnownStage reports whether name is a stage NewChain accepts.
func KnownStage(name string) bool {
	_, err := newStage(name, Params{})
	return err == nil
}

func newStage(name string, p Params) (Filter, error) {
	switch name {
	case StageVoxel:
		return VoxelGrid{LeafSize: p.LeafSize}, nil
	case StagePassThroughX:
		return PassThrough{Axis: l1cloud.AxisX, Min: p.CropX.Min, Max: p.CropX.Max}, nil
	case StagePassThroughY:
		return PassThrough{Axis: l1cloud.AxisY, Min: p.CropY.Min, Max: p.CropY.Max}, nil
	case StagePassThroughZ:
		return PassThrough{Axis: l1cloud.AxisZ, Min: p.CropZ.Min, Max: p.CropZ.Max}, nil
	case StageOutlier:
		return StatisticalOutlier{MeanK: p.MeanK, StdDevMul: p.StdDevMul}, nil
	}
	return nil, fmt.Errorf("unknown filter stage %q", name)
}

// Apply runs every filter in order.
func (ch Chain) Apply(c l1cloud.Cloud) l1cloud.Cloud {
	if len(ch) == 0 {
		return c.Clone()
	}
	out := c
	for _, f := range ch {
		out = f.Apply(out)
	}
	return out
}

// Names lists the stage names in order.
func (ch Chain) Names() []string {
	names := make([]string, len(ch))
	for i, f := range ch {
		names[i] = f.Name()
	}
	return names
}
