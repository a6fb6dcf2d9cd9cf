package l1cloud

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCloud_Extract(t *testing.T) {
	c := Cloud{{X: 0}, {X: 1}, {X: 2}, {X: 3}, {X: 4}}

	tests := []struct {
		name     string
		indices  []int
		negative bool
		want     []float64
	}{
		{"positive keeps cloud order", []int{3, 1}, false, []float64{1, 3}},
		{"negative drops listed", []int{3, 1}, true, []float64{0, 2, 4}},
		{"duplicates counted once", []int{2, 2, 2}, true, []float64{0, 1, 3, 4}},
		{"out of range ignored", []int{-1, 9, 0}, false, []float64{0}},
		{"empty negative is everything", nil, true, []float64{0, 1, 2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Extract(tt.indices, tt.negative)
			xs := make([]float64, len(got))
			for i, p := range got {
				xs[i] = p.X
			}
			if diff := cmp.Diff(tt.want, xs); diff != "" {
				t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCloud_ExtractPartitions(t *testing.T) {
	c := Cloud{{X: 0}, {X: 1}, {X: 2}, {X: 3}}
	idx := []int{0, 2}
	in := c.Extract(idx, false)
	out := c.Extract(idx, true)
	if len(in)+len(out) != len(c) {
		t.Fatalf("partition sizes %d+%d != %d", len(in), len(out), len(c))
	}
}

func TestCloud_StripColorDoesNotAlias(t *testing.T) {
	c := Cloud{{X: 1, Y: 2, Z: 3, R: 10, G: 20, B: 30}}
	s := c.StripColor()
	if s[0].R != 0 || s[0].G != 0 || s[0].B != 0 {
		t.Errorf("color not stripped: %+v", s[0])
	}
	s[0].X = 99
	if c[0].X != 1 {
		t.Errorf("StripColor aliased the input cloud")
	}
	if c[0].R != 10 {
		t.Errorf("input color modified")
	}
}

func TestPoint_Finite(t *testing.T) {
	if !(Point{X: 1, Y: 2, Z: 3}).Finite() {
		t.Error("expected finite point")
	}
	if (Point{X: math.NaN()}).Finite() {
		t.Error("NaN point reported finite")
	}
	if (Point{Z: math.Inf(1)}).Finite() {
		t.Error("Inf point reported finite")
	}
}

func TestParseAxis(t *testing.T) {
	for in, want := range map[string]Axis{"x": AxisX, "Y": AxisY, "z": AxisZ} {
		got, ok := ParseAxis(in)
		if !ok || got != want {
			t.Errorf("ParseAxis(%q) = %v, %v; want %v", in, got, ok, want)
		}
	}
	if _, ok := ParseAxis("w"); ok {
		t.Error("ParseAxis(w) should fail")
	}
}

func TestCloud_Bounds(t *testing.T) {
	if _, _, ok := (Cloud{}).Bounds(); ok {
		t.Error("empty cloud should have no bounds")
	}
	min, max, ok := Cloud{{X: 1, Y: -2, Z: 0}, {X: -1, Y: 3, Z: 5}}.Bounds()
	if !ok {
		t.Fatal("expected bounds")
	}
	if min != (Point{X: -1, Y: -2, Z: 0}) || max != (Point{X: 1, Y: 3, Z: 5}) {
		t.Errorf("Bounds() = %+v, %+v", min, max)
	}
}
