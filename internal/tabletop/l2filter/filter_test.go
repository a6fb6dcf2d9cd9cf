package l2filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
)

func TestNewChain_Order(t *testing.T) {
	p := Params{
		LeafSize: 0.01,
		CropZ:    Range{0.6, 1.1},
		CropY:    Range{-0.45, 0.45},
		MeanK:    50, StdDevMul: 1,
	}
	order := []string{StageOutlier, StageVoxel, StagePassThroughZ, StagePassThroughY}
	ch, err := NewChain(order, p)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	if diff := cmp.Diff(order, ch.Names()); diff != "" {
		t.Errorf("stage order mismatch (-want +got):\n%s", diff)
	}
}

func TestNewChain_UnknownStage(t *testing.T) {
	if _, err := NewChain([]string{"voxel", "median"}, Params{}); err == nil {
		t.Error("expected error for unknown stage")
	}
}

func TestChain_OrderMatters(t *testing.T) {
	// Both points share one 1m cell. Voxel first yields a centroid at 0.55
	// which the crop then drops; crop first keeps the upper point alone.
	in := l1cloud.Cloud{{Z: 0.2}, {Z: 0.9}}
	p := Params{LeafSize: 1.0, CropZ: Range{0.6, 1.1}}

	cropFirst, _ := NewChain([]string{StagePassThroughZ, StageVoxel}, p)
	voxelFirst, _ := NewChain([]string{StageVoxel, StagePassThroughZ}, p)

	a := cropFirst.Apply(in)
	b := voxelFirst.Apply(in)
	if len(a) != 1 || a[0].Z != 0.9 {
		t.Errorf("crop-then-voxel = %v, want one point at 0.9", a)
	}
	if len(b) != 0 {
		t.Errorf("voxel-then-crop = %v, want empty", b)
	}
}

func TestChain_EmptyReturnsCopy(t *testing.T) {
	in := l1cloud.Cloud{{X: 1}}
	out := Chain(nil).Apply(in)
	out[0].X = 2
	if in[0].X != 1 {
		t.Error("empty chain aliased input")
	}
}

func TestKnownStage(t *testing.T) {
	for _, s := range []string{StageVoxel, StagePassThroughX, StagePassThroughY, StagePassThroughZ, StageOutlier} {
		if !KnownStage(s) {
			t.Errorf("KnownStage(%q) = false", s)
		}
	}
	if KnownStage("median") {
		t.Error("KnownStage(median) = true")
	}
}
