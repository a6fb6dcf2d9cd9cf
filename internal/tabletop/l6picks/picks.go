package l6picks

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
)

// ErrConfigurationMismatch marks a scene object that cannot be turned into
// a request because its group has no dropbox.
var ErrConfigurationMismatch = errors.New("configuration mismatch")

// Quaternion is an orientation as (x, y, z, w).
type Quaternion struct {
	X, Y, Z, W float64
}

// Identity is the orientation every synthesized pose carries.
var Identity = Quaternion{W: 1}

// Pose is a position and orientation.
type Pose struct {
	Position    r3.Vector
	Orientation Quaternion
}

// DetectedObject is a classified cluster.
type DetectedObject struct {
	Label    string
	Cloud    l1cloud.Cloud
	Centroid r3.Vector
}

// NewDetectedObject labels cloud and computes its centroid.
func NewDetectedObject(label string, cloud l1cloud.Cloud) DetectedObject {
	return DetectedObject{Label: label, Cloud: cloud, Centroid: Centroid(cloud)}
}

// PickPlaceRequest is one request sent to the arm planner.
type PickPlaceRequest struct {
	SceneID    int
	ArmName    string
	ObjectName string
	PickPose   Pose
	PlacePose  Pose
}

// Centroid is the arithmetic mean of the cloud's coordinates. An empty
// cloud has the zero centroid.
func Centroid(c l1cloud.Cloud) r3.Vector {
	if len(c) == 0 {
		return r3.Vector{}
	}
	var sx, sy, sz float64
	for _, p := range c {
		sx += p.X
		sy += p.Y
		sz += p.Z
	}
	n := float64(len(c))
	return r3.Vector{X: sx / n, Y: sy / n, Z: sz / n}
}

// BuildRequest builds the request for a single detection. ok is false
// when the scene does not ask for this label. A label that is asked for
// but whose group has no dropbox returns ErrConfigurationMismatch.
func BuildRequest(obj DetectedObject, scene SceneConfig) (req PickPlaceRequest, ok bool, err error) {
	for _, so := range scene.Objects {
		if so.Name != obj.Label {
			continue
		}
		return requestFor(so, obj, scene)
	}
	return PickPlaceRequest{}, false, nil
}

func requestFor(so SceneObject, obj DetectedObject, scene SceneConfig) (PickPlaceRequest, bool, error) {
	box, found := scene.DropboxFor(so.Group)
	if !found {
		return PickPlaceRequest{}, false, fmt.Errorf("%w: object %q wants group %q which has no dropbox",
			ErrConfigurationMismatch, so.Name, so.Group)
	}
	return PickPlaceRequest{
		SceneID:    scene.SceneID,
		ArmName:    box.Arm,
		ObjectName: so.Name,
		PickPose:   Pose{Position: obj.Centroid, Orientation: Identity},
		PlacePose:  Pose{Position: box.Position, Orientation: Identity},
	}, true, nil
}

// Result is the outcome of Synthesize.
type Result struct {
	Requests []PickPlaceRequest
	// Mismatches holds one ErrConfigurationMismatch per skipped scene
	// object.
	Mismatches []error
	// Unrequested counts detections whose label the scene does not ask for.
	Unrequested int
}

// Synthesize emits one request per scene object that has a detection with
// the same label, in scene order. When several detections share a label
// the first in objects order is used.
func Synthesize(objects []DetectedObject, scene SceneConfig) Result {
	byLabel := make(map[string]int, len(objects))
	for i, o := range objects {
		if _, dup := byLabel[o.Label]; !dup {
			byLabel[o.Label] = i
		}
	}

	var res Result
	wanted := make(map[string]bool, len(scene.Objects))
	for _, so := range scene.Objects {
		wanted[so.Name] = true
		i, ok := byLabel[so.Name]
		if !ok {
			continue
		}
		req, ok, err := requestFor(so, objects[i], scene)
		if err != nil {
			res.Mismatches = append(res.Mismatches, err)
			continue
		}
		if ok {
			res.Requests = append(res.Requests, req)
		}
	}
	for _, o := range objects {
		if !wanted[o.Label] {
			res.Unrequested++
		}
	}
	return res
}
