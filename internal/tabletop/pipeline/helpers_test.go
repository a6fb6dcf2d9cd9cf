package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pickplace/internal/config"
	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
	"github.com/banshee-data/pickplace/internal/tabletop/l5recognition"
	"github.com/banshee-data/pickplace/internal/tabletop/l6picks"
	"github.com/banshee-data/pickplace/internal/testutil"
)

var (
	red   = l1cloud.Point{R: 255}
	green = l1cloud.Point{G: 255}
	blue  = l1cloud.Point{B: 255}
)

// hueModel labels red, green and blue clusters by their dominant hue bin.
const hueModel = `{
  "version": "hue-test",
  "classes": ["soap", "biscuits", "book"],
  "features": {"color_bins": 4, "normal_bins": 0},
  "scaler": {"mean": [0,0,0,0,0,0,0,0,0,0,0,0], "scale": [1,1,1,1,1,1,1,1,1,1,1,1]},
  "classifier": {"kind": "linear",
    "coef": [[1,0,0,0, 0,0,0,0, 0,0,0,0],
             [0,1,0,0, 0,0,0,0, 0,0,0,0],
             [0,0,1,0, 0,0,0,0, 0,0,0,0]],
    "intercept": [0,0,0]}
}`

func testClassifier(t *testing.T) *l5recognition.Classifier {
	t.Helper()
	m, err := l5recognition.ParseModel([]byte(hueModel))
	require.NoError(t, err)
	return &l5recognition.Classifier{Model: m}
}

func testScene() l6picks.SceneConfig {
	return l6picks.SceneConfig{
		SceneID: 1,
		Objects: []l6picks.SceneObject{
			{Name: "book", Group: "red"},
			{Name: "soap", Group: "green"},
			{Name: "eraser", Group: "red"},
		},
		Dropboxes: []l6picks.Dropbox{
			{Name: "left", Group: "red", Arm: l6picks.ArmLeft, Position: r3.Vector{Y: 0.71, Z: 0.605}},
			{Name: "right", Group: "green", Arm: l6picks.ArmRight, Position: r3.Vector{Y: -0.71, Z: 0.605}},
		},
	}
}

func testConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

func newTestProcessor(t *testing.T, classifier *l5recognition.Classifier) *Processor {
	t.Helper()
	p, err := NewProcessor(testConfig(), classifier, testScene())
	require.NoError(t, err)
	return p
}

func rgbScene() l1cloud.Cloud {
	return testutil.TabletopScene([]l1cloud.Point{red, green, blue})
}

type recordingSink struct {
	mu       sync.Mutex
	outcomes []Outcome
	notify   chan struct{}
	err      error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{notify: make(chan struct{}, 16)}
}

func (s *recordingSink) Consume(_ context.Context, o Outcome) error {
	s.mu.Lock()
	s.outcomes = append(s.outcomes, o)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return s.err
}

func (s *recordingSink) all() []Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Outcome, len(s.outcomes))
	copy(out, s.outcomes)
	return out
}
