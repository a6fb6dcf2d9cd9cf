// Package output writes the pick-list result record.
package output

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/pickplace/internal/tabletop/l6picks"
)

// Record is the persisted result document. Keys within each entry are in
// alphabetical order, matching the layout downstream graders expect.
type Record struct {
	ObjectList []Entry `yaml:"object_list"`
}

// Entry is one pick-and-place request.
type Entry struct {
	ArmName      string `yaml:"arm_name"`
	ObjectName   string `yaml:"object_name"`
	PickPose     Pose   `yaml:"pick_pose"`
	PlacePose    Pose   `yaml:"place_pose"`
	TestSceneNum int    `yaml:"test_scene_num"`
}

// Pose mirrors a geometry pose message.
type Pose struct {
	Orientation Orientation `yaml:"orientation"`
	Position    Position    `yaml:"position"`
}

// Orientation is a quaternion.
type Orientation struct {
	W float64 `yaml:"w"`
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// Position is a point.
type Position struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

func toPose(p l6picks.Pose) Pose {
	return Pose{
		Orientation: Orientation{W: p.Orientation.W, X: p.Orientation.X, Y: p.Orientation.Y, Z: p.Orientation.Z},
		Position:    Position{X: p.Position.X, Y: p.Position.Y, Z: p.Position.Z},
	}
}

// NewRecord converts requests into a Record, preserving order.
func NewRecord(reqs []l6picks.PickPlaceRequest) Record {
	rec := Record{ObjectList: make([]Entry, 0, len(reqs))}
	for _, r := range reqs {
		rec.ObjectList = append(rec.ObjectList, Entry{
			ArmName:      r.ArmName,
			ObjectName:   r.ObjectName,
			PickPose:     toPose(r.PickPose),
			PlacePose:    toPose(r.PlacePose),
			TestSceneNum: r.SceneID,
		})
	}
	return rec
}

// Marshal renders requests as a YAML record.
func Marshal(reqs []l6picks.PickPlaceRequest) ([]byte, error) {
	data, err := yaml.Marshal(NewRecord(reqs))
	if err != nil {
		return nil, fmt.Errorf("marshal result record: %w", err)
	}
	return data, nil
}

// DefaultPath is the conventional result file name for a scene.
func DefaultPath(sceneID int) string {
	return fmt.Sprintf("output_%d.yaml", sceneID)
}
