package l2filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
	"github.com/banshee-data/pickplace/internal/testutil"
)

func TestStatisticalOutlier_RemovesIsolatedPoints(t *testing.T) {
	in := testutil.GridCube(l1cloud.Point{}, 5, 0.01)
	stray := []l1cloud.Point{{X: 1, Y: 1, Z: 1}, {X: -1, Y: 0.5, Z: 2}}
	in = append(in, stray...)

	got := StatisticalOutlier{MeanK: 8, StdDevMul: 1.0}.Apply(in)

	require.Equal(t, len(in)-len(stray), len(got))
	for _, p := range got {
		for _, s := range stray {
			assert.NotEqual(t, s, p, "stray point survived")
		}
	}
}

func TestStatisticalOutlier_Disabled(t *testing.T) {
	in := l1cloud.Cloud{{X: 0}, {X: 100}}
	got := StatisticalOutlier{MeanK: 0, StdDevMul: 1}.Apply(in)
	assert.Len(t, got, 2)
}

func TestStatisticalOutlier_TinyCloud(t *testing.T) {
	in := l1cloud.Cloud{{X: 0}}
	got := StatisticalOutlier{MeanK: 50, StdDevMul: 1}.Apply(in)
	assert.Len(t, got, 1)
}

func TestStatisticalOutlier_UniformCloudKeepsAll(t *testing.T) {
	// A regular lattice with k=6 gives identical interior statistics; a
	// generous multiplier must not drop anything.
	in := testutil.GridCube(l1cloud.Point{}, 4, 0.01)
	got := StatisticalOutlier{MeanK: 6, StdDevMul: 3.0}.Apply(in)
	assert.Len(t, got, len(in))
}
