package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pickplace/internal/db"
	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
	"github.com/banshee-data/pickplace/internal/tabletop/l3surface"
	"github.com/banshee-data/pickplace/internal/tabletop/l4cluster"
	"github.com/banshee-data/pickplace/internal/tabletop/l6picks"
	"github.com/banshee-data/pickplace/internal/tabletop/pipeline"
)

func setupTestStore(t *testing.T) *FrameStore {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "frames.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewFrameStore(database.DB)
}

func okOutcome(id string, seq uint64) pipeline.Outcome {
	cloud := l1cloud.Cloud{{X: 0.5, Y: 0.1, Z: 0.7}, {X: 0.5, Y: 0.1, Z: 0.72}}
	soap := l6picks.NewDetectedObject("soap", cloud)
	return pipeline.Outcome{
		Frame: l1cloud.Frame{ID: id, Seq: seq, Received: time.Unix(100, 0), Cloud: make(l1cloud.Cloud, 10)},
		Result: &pipeline.FrameResult{
			FrameID:    id,
			Filtered:   make(l1cloud.Cloud, 8),
			Table:      make(l1cloud.Cloud, 6),
			Objects:    cloud,
			Plane:      l3surface.PlaneModel{Normal: r3.Vector{Z: 1}, Offset: -0.7},
			Clusters:   []l4cluster.Cluster{{Indices: []int{0, 1}}},
			TooSmall:   1,
			Classified: true,
			Detections: []l6picks.DetectedObject{soap},
			Requests: []l6picks.PickPlaceRequest{{
				SceneID: 1, ArmName: "left", ObjectName: "soap",
				PickPose:  l6picks.Pose{Position: soap.Centroid, Orientation: l6picks.Identity},
				PlacePose: l6picks.Pose{Position: r3.Vector{Y: 0.71, Z: 0.605}, Orientation: l6picks.Identity},
			}},
			Duration: 3 * time.Millisecond,
		},
	}
}

func TestFrameStore_RecordSuccess(t *testing.T) {
	s := setupTestStore(t)
	require.NoError(t, s.Record(okOutcome("frame-1", 1)))

	f, err := s.Get("frame-1")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, f.Status)
	assert.Equal(t, uint64(1), f.Seq)
	assert.Equal(t, time.Unix(100, 0).UnixNano(), f.ReceivedAt)
	assert.Equal(t, 10, f.InputPoints)
	assert.Equal(t, 8, f.FilteredPoints)
	assert.Equal(t, 6, f.TablePoints)
	assert.Equal(t, 2, f.ObjectPoints)
	assert.Equal(t, 1, f.ClusterCount)
	assert.Equal(t, 1, f.TooSmall)
	assert.True(t, f.Classified)
	require.NotNil(t, f.Plane)
	assert.Equal(t, [4]float64{0, 0, 1, -0.7}, *f.Plane)
	assert.Equal(t, (3 * time.Millisecond).Nanoseconds(), f.DurationNanos)

	dets, err := s.Detections("frame-1")
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, "soap", dets[0].Label)
	assert.Equal(t, 2, dets[0].PointCount)
	assert.InDelta(t, 0.71, dets[0].CentroidZ, 1e-12)

	reqs, err := s.Requests("frame-1")
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "left", reqs[0].ArmName)
	assert.Equal(t, 0.71, reqs[0].PlaceY)
}

func TestFrameStore_RecordFailure(t *testing.T) {
	s := setupTestStore(t)
	o := pipeline.Outcome{
		Frame: l1cloud.Frame{ID: "bad", Seq: 2},
		Err: &pipeline.StageError{FrameID: "bad", Stage: pipeline.StageSegment,
			Err: fmt.Errorf("%w: no plane", pipeline.ErrInsufficientData)},
	}
	require.NoError(t, s.Record(o))

	f, err := s.Get("bad")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, f.Status)
	assert.Equal(t, pipeline.StageSegment, f.Stage)
	assert.Equal(t, "insufficient data: no plane", f.Error)
	assert.Nil(t, f.Plane)
	assert.NotZero(t, f.ReceivedAt)

	dets, err := s.Detections("bad")
	require.NoError(t, err)
	assert.Empty(t, dets)
}

func TestFrameStore_ListRecent(t *testing.T) {
	s := setupTestStore(t)
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		s.now = func() time.Time { return at }
		require.NoError(t, s.Record(okOutcome(fmt.Sprintf("f%d", i), uint64(i))))
	}

	frames, err := s.ListRecent(3)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, []string{"f5", "f4", "f3"}, []string{frames[0].FrameID, frames[1].FrameID, frames[2].FrameID})
}

func TestFrameStore_PruneCascades(t *testing.T) {
	s := setupTestStore(t)
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return old }
	require.NoError(t, s.Record(okOutcome("old", 1)))
	s.now = func() time.Time { return old.Add(time.Hour) }
	require.NoError(t, s.Record(okOutcome("new", 2)))

	n, err := s.Prune(old.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Get("old")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	reqs, err := s.Requests("old")
	require.NoError(t, err)
	assert.Empty(t, reqs)

	_, err = s.Get("new")
	assert.NoError(t, err)
}

func TestFrameStore_DuplicateFrameRejected(t *testing.T) {
	s := setupTestStore(t)
	require.NoError(t, s.Record(okOutcome("dup", 1)))
	assert.Error(t, s.Record(okOutcome("dup", 1)))

	// The failed transaction must not leave partial rows behind.
	dets, err := s.Detections("dup")
	require.NoError(t, err)
	assert.Len(t, dets, 1)
}

func TestIsBusy(t *testing.T) {
	assert.True(t, isBusy(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.False(t, isBusy(errors.New("constraint failed")))

	calls := 0
	err := retryOnBusy(func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}
