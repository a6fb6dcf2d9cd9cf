package visualiser

import (
	"errors"
	"time"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
	"github.com/banshee-data/pickplace/internal/tabletop/l3surface"
	"github.com/banshee-data/pickplace/internal/tabletop/l4cluster"
	"github.com/banshee-data/pickplace/internal/tabletop/l6picks"
	"github.com/banshee-data/pickplace/internal/tabletop/pipeline"
	"github.com/banshee-data/pickplace/internal/testutil"
)

var received = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

// sampleOutcome is a classified frame with two clusters: a red book of
// eight points and a green soap of twenty-seven.
func sampleOutcome() pipeline.Outcome {
	book := testutil.GridCube(l1cloud.Point{X: 0.5, Y: 0.2, Z: 0.8, R: 255}, 2, 0.01)
	soap := testutil.GridCube(l1cloud.Point{X: 0.6, Y: -0.2, Z: 0.8, G: 255}, 3, 0.01)
	clusterCloud := append(book.Clone(), soap...)

	res := &pipeline.FrameResult{
		FrameID:     "frame-1",
		Seq:         7,
		Received:    received,
		InputPoints: 500,
		Filtered:    make(l1cloud.Cloud, 300),
		Plane:       l3surface.PlaneModel{Normal: r3.Vector{Z: 1}, Offset: -0.75},
		Table:       testutil.TablePlane(0.5, 0, 0.75, 10, 0.05, 0, 1),
		Objects:     clusterCloud,
		Clusters: []l4cluster.Cluster{
			{Indices: []int{0, 1, 2, 3, 4, 5, 6, 7}},
			{Indices: seq(8, 35)},
		},
		ClusterCloud: clusterCloud,
		Classified:   true,
		Markers: []pipeline.Marker{
			{ID: 0, Label: "book", Position: r3.Vector{X: 0.5, Y: 0.2, Z: 1.2}},
			{ID: 1, Label: "soap", Position: r3.Vector{X: 0.6, Y: -0.2, Z: 1.2}},
		},
		Requests: []l6picks.PickPlaceRequest{{
			SceneID:    1,
			ArmName:    "left",
			ObjectName: "book",
			PickPose:   l6picks.Pose{Position: r3.Vector{X: 0.5, Y: 0.2, Z: 0.8}, Orientation: l6picks.Identity},
			PlacePose:  l6picks.Pose{Position: r3.Vector{Y: 0.71, Z: 0.605}, Orientation: l6picks.Identity},
		}},
		Unrequested: 1,
		Duration:    12 * time.Millisecond,
	}
	return pipeline.Outcome{
		Frame:  l1cloud.Frame{ID: "frame-1", Seq: 7, Received: received},
		Result: res,
	}
}

func failedOutcome() pipeline.Outcome {
	err := &pipeline.StageError{FrameID: "frame-2", Stage: pipeline.StageSegment, Err: errors.New("no plane")}
	return pipeline.Outcome{Frame: l1cloud.Frame{ID: "frame-2", Seq: 8, Received: received}, Err: err}
}

func seq(lo, hi int) []int {
	out := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, i)
	}
	return out
}
