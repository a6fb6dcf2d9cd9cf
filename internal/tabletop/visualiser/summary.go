package visualiser

import (
	"errors"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/pickplace/internal/tabletop/pipeline"
)

// DefaultMaxPoints caps the cluster cloud included in a summary.
const DefaultMaxPoints = 5000

// StreamOptions are the fields a client may set on its stream request.
type StreamOptions struct {
	// IncludePoints adds the colourised cluster cloud as a flat
	// [x, y, z, r, g, b, ...] list.
	IncludePoints bool
	MaxPoints     int
}

// ParseStreamOptions reads include_points and max_points from req.
// Missing or mistyped fields keep their defaults.
func ParseStreamOptions(req *structpb.Struct) StreamOptions {
	o := StreamOptions{MaxPoints: DefaultMaxPoints}
	if req == nil {
		return o
	}
	f := req.GetFields()
	if v, ok := f["include_points"]; ok {
		o.IncludePoints = v.GetBoolValue()
	}
	if v, ok := f["max_points"]; ok {
		if n := int(v.GetNumberValue()); n > 0 {
			o.MaxPoints = n
		}
	}
	return o
}

// Summary describes one frame outcome.
func Summary(o pipeline.Outcome, opts StreamOptions) (*structpb.Struct, error) {
	m := map[string]interface{}{
		"frame_id": o.Frame.ID,
		"seq":      float64(o.Frame.Seq),
		"received": o.Frame.Received.UTC().Format(time.RFC3339Nano),
	}
	if !o.OK() {
		m["status"] = "failed"
		if o.Err != nil {
			m["error"] = o.Err.Error()
		}
		var se *pipeline.StageError
		if errors.As(o.Err, &se) {
			m["stage"] = se.Stage
		}
		return structpb.NewStruct(m)
	}

	r := o.Result
	m["status"] = "ok"
	m["input_points"] = r.InputPoints
	m["filtered_points"] = len(r.Filtered)
	m["table_points"] = len(r.Table)
	m["object_points"] = len(r.Objects)
	m["clusters"] = len(r.Clusters)
	m["too_small"] = r.TooSmall
	m["too_large"] = r.TooLarge
	m["classified"] = r.Classified
	m["shape_degraded"] = r.ShapeDegraded
	m["unrequested"] = r.Unrequested
	m["mismatches"] = len(r.Mismatches)
	m["duration_ms"] = float64(r.Duration) / float64(time.Millisecond)

	coef := r.Plane.Coefficients()
	m["plane"] = []interface{}{coef[0], coef[1], coef[2], coef[3]}

	labels := make([]interface{}, 0, len(r.Markers))
	markers := make([]interface{}, 0, len(r.Markers))
	for _, mk := range r.Markers {
		labels = append(labels, mk.Label)
		markers = append(markers, map[string]interface{}{
			"id":    mk.ID,
			"label": mk.Label,
			"x":     mk.Position.X,
			"y":     mk.Position.Y,
			"z":     mk.Position.Z,
		})
	}
	m["labels"] = labels
	m["markers"] = markers

	requests := make([]interface{}, 0, len(r.Requests))
	for _, req := range r.Requests {
		pick, place := req.PickPose.Position, req.PlacePose.Position
		requests = append(requests, map[string]interface{}{
			"object": req.ObjectName,
			"arm":    req.ArmName,
			"pick":   []interface{}{pick.X, pick.Y, pick.Z},
			"place":  []interface{}{place.X, place.Y, place.Z},
		})
	}
	m["requests"] = requests

	if opts.IncludePoints {
		n := len(r.ClusterCloud)
		if opts.MaxPoints > 0 && n > opts.MaxPoints {
			n = opts.MaxPoints
		}
		flat := make([]interface{}, 0, n*6)
		for _, p := range r.ClusterCloud[:n] {
			flat = append(flat, p.X, p.Y, p.Z, int(p.R), int(p.G), int(p.B))
		}
		m["cluster_cloud"] = flat
		m["cluster_cloud_truncated"] = n < len(r.ClusterCloud)
	}
	return structpb.NewStruct(m)
}
