package l6picks

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// Arm names accepted in a dropbox entry.
const (
	ArmLeft  = "left"
	ArmRight = "right"
)

// SceneObject asks for the object named Name to be placed in the bin of Group.
type SceneObject struct {
	Name  string
	Group string
}

// Dropbox is a bin assigned to one arm.
type Dropbox struct {
	Name     string
	Group    string
	Arm      string
	Position r3.Vector
}

// SceneConfig is the static request plan for one test scene. Objects is
// ordered and that order fixes the order of emitted requests.
type SceneConfig struct {
	SceneID   int
	Objects   []SceneObject
	Dropboxes []Dropbox
}

// Validate reports structural problems that make the scene unusable.
// Objects whose group has no dropbox are not errors here; they surface as
// per-object mismatches during synthesis.
func (s SceneConfig) Validate() error {
	seenGroup := make(map[string]bool, len(s.Dropboxes))
	for i, d := range s.Dropboxes {
		if d.Group == "" {
			return fmt.Errorf("dropbox %d: empty group", i)
		}
		if d.Arm != ArmLeft && d.Arm != ArmRight {
			return fmt.Errorf("dropbox %d (%s): arm must be %q or %q, got %q", i, d.Group, ArmLeft, ArmRight, d.Arm)
		}
		if seenGroup[d.Group] {
			return fmt.Errorf("dropbox %d: duplicate group %q", i, d.Group)
		}
		seenGroup[d.Group] = true
	}
	for i, o := range s.Objects {
		if o.Name == "" {
			return fmt.Errorf("object %d: empty name", i)
		}
		if o.Group == "" {
			return fmt.Errorf("object %d (%s): empty group", i, o.Name)
		}
	}
	return nil
}

// DropboxFor returns the dropbox serving group.
func (s SceneConfig) DropboxFor(group string) (Dropbox, bool) {
	for _, d := range s.Dropboxes {
		if d.Group == group {
			return d, true
		}
	}
	return Dropbox{}, false
}
