package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/geo/r3"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/pickplace/internal/tabletop/l6picks"
)

// sceneFile mirrors the pick-list parameter layout: an ordered
// object_list and a dropbox list. A dropbox without an explicit arm uses
// its name as the arm, which is how the left and right bins are named.
type sceneFile struct {
	TestSceneNum int `yaml:"test_scene_num"`
	ObjectList   []struct {
		Name  string `yaml:"name"`
		Group string `yaml:"group"`
	} `yaml:"object_list"`
	Dropbox []struct {
		Name     string    `yaml:"name"`
		Group    string    `yaml:"group"`
		Arm      string    `yaml:"arm"`
		Position []float64 `yaml:"position"`
	} `yaml:"dropbox"`
}

// LoadSceneConfig reads and validates a scene YAML file.
func LoadSceneConfig(path string) (l6picks.SceneConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return l6picks.SceneConfig{}, fmt.Errorf("scene file must have .yaml extension, got %q", ext)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return l6picks.SceneConfig{}, fmt.Errorf("failed to read scene file: %w", err)
	}
	return ParseSceneConfig(data)
}

// ParseSceneConfig decodes and validates scene YAML.
func ParseSceneConfig(data []byte) (l6picks.SceneConfig, error) {
	var f sceneFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return l6picks.SceneConfig{}, fmt.Errorf("failed to parse scene YAML: %w", err)
	}

	scene := l6picks.SceneConfig{SceneID: f.TestSceneNum}
	for _, o := range f.ObjectList {
		scene.Objects = append(scene.Objects, l6picks.SceneObject{Name: o.Name, Group: o.Group})
	}
	for i, d := range f.Dropbox {
		if len(d.Position) != 3 {
			return l6picks.SceneConfig{}, fmt.Errorf("dropbox %d (%s): position needs 3 values, got %d", i, d.Group, len(d.Position))
		}
		arm := d.Arm
		if arm == "" {
			arm = d.Name
		}
		scene.Dropboxes = append(scene.Dropboxes, l6picks.Dropbox{
			Name:     d.Name,
			Group:    d.Group,
			Arm:      arm,
			Position: r3.Vector{X: d.Position[0], Y: d.Position[1], Z: d.Position[2]},
		})
	}
	if err := scene.Validate(); err != nil {
		return l6picks.SceneConfig{}, fmt.Errorf("invalid scene: %w", err)
	}
	return scene, nil
}
