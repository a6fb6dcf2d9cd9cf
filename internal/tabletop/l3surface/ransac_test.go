package l3surface

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
	"github.com/banshee-data/pickplace/internal/testutil"
)

func TestRANSAC_InsufficientData(t *testing.T) {
	r := RANSAC{DistanceThreshold: 0.01, MaxIterations: 10}
	for _, c := range []l1cloud.Cloud{nil, {{X: 1}}, {{X: 1}, {X: 2}}} {
		_, err := r.Segment(c)
		if !errors.Is(err, ErrInsufficientData) {
			t.Errorf("Segment(%d points) err = %v, want ErrInsufficientData", len(c), err)
		}
	}
}

func TestRANSAC_SeparatesTableFromObjects(t *testing.T) {
	table := testutil.TablePlane(0.5, 0, 0.7, 40, 0.01, 0.002, 1)
	blob := testutil.Blob(l1cloud.Point{X: 0.5, Y: 0, Z: 0.8}, 125, 0.01)
	cloud := append(table.Clone(), blob...)

	seg, err := RANSAC{DistanceThreshold: 0.01, MaxIterations: 500, Seed: 1}.Segment(cloud)
	require.NoError(t, err)
	require.True(t, seg.Found)

	assert.Len(t, seg.Inliers, len(table))
	assert.Len(t, seg.Outliers, len(blob))
	for _, i := range seg.Inliers {
		assert.Less(t, i, len(table), "blob point %d classified as table", i)
	}
	assert.InDelta(t, 1.0, seg.Model.Normal.Z, 0.01)
	assert.InDelta(t, -0.7, seg.Model.Offset, 0.01)
}

func TestRANSAC_PartitionCoversCloud(t *testing.T) {
	cloud := testutil.NoisyCube(l1cloud.Point{Z: 1}, 0.5, 300, 5)
	seg, err := RANSAC{DistanceThreshold: 0.02, MaxIterations: 100, Seed: 3}.Segment(cloud)
	require.NoError(t, err)

	seen := make([]int, len(cloud))
	for _, i := range seg.Inliers {
		seen[i]++
	}
	for _, i := range seg.Outliers {
		seen[i]++
	}
	for i, n := range seen {
		assert.Equal(t, 1, n, "index %d seen %d times", i, n)
	}
}

func TestRANSAC_Deterministic(t *testing.T) {
	cloud := testutil.NoisyCube(l1cloud.Point{Z: 1}, 0.5, 300, 9)
	r := RANSAC{DistanceThreshold: 0.02, MaxIterations: 200, Seed: 42}
	a, err := r.Segment(cloud)
	require.NoError(t, err)
	b, err := r.Segment(cloud)
	require.NoError(t, err)
	assert.Equal(t, a.Model, b.Model)
	assert.Equal(t, a.Inliers, b.Inliers)
}

func TestRANSAC_InlierCountMonotonicInThreshold(t *testing.T) {
	table := testutil.TablePlane(0, 0, 0.7, 30, 0.01, 0.004, 2)
	noise := testutil.NoisyCube(l1cloud.Point{Z: 0.75}, 0.3, 200, 4)
	cloud := append(table, noise...)

	prev := -1
	for _, th := range []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.5} {
		seg, err := RANSAC{DistanceThreshold: th, MaxIterations: 300, Seed: 7}.Segment(cloud)
		require.NoError(t, err)
		n := len(seg.Inliers)
		if n < prev {
			t.Errorf("threshold %v: inliers %d < previous %d", th, n, prev)
		}
		prev = n
	}
}

func TestRANSAC_CollinearCloudHasNoPlane(t *testing.T) {
	line := l1cloud.Cloud{{X: 0}, {X: 1}, {X: 2}, {X: 3}}
	seg, err := RANSAC{DistanceThreshold: 0.01, MaxIterations: 20}.Segment(line)
	require.NoError(t, err)
	assert.False(t, seg.Found)
	assert.Empty(t, seg.Inliers)
	assert.Equal(t, []int{0, 1, 2, 3}, seg.Outliers)
}

func TestRANSAC_StopsWhenAllPointsFit(t *testing.T) {
	flat := testutil.TablePlane(0, 0, 1, 5, 0.1, 0, 1)
	seg, err := RANSAC{DistanceThreshold: 0.001, MaxIterations: 1000}.Segment(flat)
	require.NoError(t, err)
	assert.Len(t, seg.Inliers, len(flat))
	assert.Less(t, seg.Iterations, 1000)
}

func TestPlaneThrough_CanonicalNormal(t *testing.T) {
	down := [3]l1cloud.Point{{X: 0, Y: 0, Z: 2}, {X: 0, Y: 1, Z: 2}, {X: 1, Y: 0, Z: 2}}
	m, ok := planeThrough(vec(down[0]), vec(down[1]), vec(down[2]))
	require.True(t, ok)
	assert.InDelta(t, 1.0, m.Normal.Z, 1e-12)
	assert.InDelta(t, -2.0, m.Offset, 1e-12)
	assert.InDelta(t, 0.5, m.Distance(l1cloud.Point{Z: 2.5}), 1e-12)
	assert.False(t, math.IsNaN(m.Normal.Norm()))
}
