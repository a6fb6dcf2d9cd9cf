package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/pickplace/internal/tabletop/l6picks"
)

const testScene = `
test_scene_num: 2
object_list:
  - name: biscuits
    group: green
  - name: soap
    group: green
  - name: book
    group: red
dropbox:
  - name: left
    group: red
    position: [0, 0.71, 0.605]
  - name: right
    group: green
    position: [0, -0.71, 0.605]
`

func TestParseSceneConfig(t *testing.T) {
	scene, err := ParseSceneConfig([]byte(testScene))
	if err != nil {
		t.Fatalf("ParseSceneConfig: %v", err)
	}
	want := l6picks.SceneConfig{
		SceneID: 2,
		Objects: []l6picks.SceneObject{
			{Name: "biscuits", Group: "green"},
			{Name: "soap", Group: "green"},
			{Name: "book", Group: "red"},
		},
		Dropboxes: []l6picks.Dropbox{
			{Name: "left", Group: "red", Arm: "left", Position: r3.Vector{Y: 0.71, Z: 0.605}},
			{Name: "right", Group: "green", Arm: "right", Position: r3.Vector{Y: -0.71, Z: 0.605}},
		},
	}
	if diff := cmp.Diff(want, scene); diff != "" {
		t.Errorf("scene mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSceneConfig_ExplicitArm(t *testing.T) {
	scene, err := ParseSceneConfig([]byte(`
dropbox:
  - name: bin_a
    group: green
    arm: left
    position: [0, 0.71, 0.605]
`))
	if err != nil {
		t.Fatalf("ParseSceneConfig: %v", err)
	}
	if got := scene.Dropboxes[0].Arm; got != "left" {
		t.Errorf("Arm = %q, want left", got)
	}
}

func TestParseSceneConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":        "object_list: [",
		"short position":  "dropbox:\n  - {name: left, group: red, position: [0, 1]}\n",
		"unknown arm":     "dropbox:\n  - {name: middle, group: red, position: [0, 1, 2]}\n",
		"duplicate group": "dropbox:\n  - {name: left, group: red, position: [0, 1, 2]}\n  - {name: right, group: red, position: [0, 1, 2]}\n",
		"object no group": "object_list:\n  - {name: soap}\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseSceneConfig([]byte(doc)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadSceneConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pick_list_2.yaml")
	if err := os.WriteFile(path, []byte(testScene), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	scene, err := LoadSceneConfig(path)
	if err != nil {
		t.Fatalf("LoadSceneConfig: %v", err)
	}
	if len(scene.Objects) != 3 {
		t.Errorf("objects = %d, want 3", len(scene.Objects))
	}

	if _, err := LoadSceneConfig(filepath.Join(dir, "scene.json")); err == nil {
		t.Error("expected extension error")
	}
	if _, err := LoadSceneConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected missing-file error")
	}
}

func TestLoadExampleScenes(t *testing.T) {
	for _, name := range []string{"pick_list_1.yaml", "pick_list_2.yaml", "pick_list_3.yaml"} {
		scene, err := LoadSceneConfig(filepath.Join("../../config/scenes", name))
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if len(scene.Objects) == 0 || len(scene.Dropboxes) != 2 {
			t.Errorf("%s: %d objects, %d dropboxes", name, len(scene.Objects), len(scene.Dropboxes))
		}
	}
}
