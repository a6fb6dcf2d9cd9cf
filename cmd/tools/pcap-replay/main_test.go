package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pickplace/internal/config"
	"github.com/banshee-data/pickplace/internal/fsutil"
	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
	"github.com/banshee-data/pickplace/internal/tabletop/l5recognition"
	"github.com/banshee-data/pickplace/internal/tabletop/output"
	"github.com/banshee-data/pickplace/internal/tabletop/pipeline"
	"github.com/banshee-data/pickplace/internal/tabletop/transport"
	"github.com/banshee-data/pickplace/internal/testutil"
)

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

const sceneYAML = `
test_scene_num: 3
object_list:
  - name: book
    group: red
  - name: soap
    group: green
dropbox:
  - name: left
    group: red
    position: [0, 0.71, 0.605]
  - name: right
    group: green
    position: [0, -0.71, 0.605]
`

func testProcessor(t *testing.T) *pipeline.Processor {
	t.Helper()
	model, err := l5recognition.ParseModel([]byte(hueModel))
	require.NoError(t, err)
	scene, err := config.ParseSceneConfig([]byte(sceneYAML))
	require.NoError(t, err)
	proc, err := pipeline.NewProcessor(
		pipeline.ConfigFromTuning(config.EmptyTuningConfig()),
		&l5recognition.Classifier{Model: model},
		scene)
	require.NoError(t, err)
	return proc
}

func rgbScene() l1cloud.Cloud {
	return testutil.TabletopScene([]l1cloud.Point{{R: 255}, {G: 255}, {B: 255}})
}

func captureOf(t *testing.T, cfg Config, clouds ...l1cloud.Cloud) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, writeCapture(&buf, clouds, cfg))
	return &buf
}

func TestReplay_ProcessesEveryFrame(t *testing.T) {
	cfg := Config{UDPPort: transport.DefaultUDPPort, Interval: 100 * time.Millisecond}
	capture := captureOf(t, cfg, rgbScene(), rgbScene())

	fsys := fsutil.NewMemoryFileSystem()
	writer := output.NewResultWriter(fsys, "output_3.yaml", nil)

	summary, err := replay(context.Background(), capture, cfg, testProcessor(t), writer)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Frames)
	assert.Equal(t, 2, summary.Processed)
	assert.Zero(t, summary.Failed)
	assert.Nil(t, summary.FailedStages)
	assert.Equal(t, map[string]int{"soap": 2, "biscuits": 2, "book": 2}, summary.Labels)
	assert.Equal(t, 4, summary.Requests)
	assert.Equal(t, summary.Packets, summary.Matched)

	assert.True(t, writer.Guard().Done())
	data, err := fsys.ReadFile("output_3.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "object_name: book")
}

func TestReplay_CountsFailedFrames(t *testing.T) {
	cfg := Config{UDPPort: transport.DefaultUDPPort}
	tiny := l1cloud.Cloud{{X: 0.5, Z: 0.7}, {X: 0.51, Z: 0.7}}
	capture := captureOf(t, cfg, tiny, rgbScene())

	summary, err := replay(context.Background(), capture, cfg, testProcessor(t))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, map[string]int{pipeline.StageFilter: 1}, summary.FailedStages)
}

func TestReplay_PortFilter(t *testing.T) {
	capture := captureOf(t, Config{UDPPort: 6000}, rgbScene())

	summary, err := replay(context.Background(), capture, Config{UDPPort: transport.DefaultUDPPort}, testProcessor(t))
	require.NoError(t, err)
	assert.Positive(t, summary.Packets)
	assert.Zero(t, summary.Matched)
	assert.Zero(t, summary.Frames)
}

func TestRecord_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cloudPath := filepath.Join(dir, "scene.bin")
	require.NoError(t, os.WriteFile(cloudPath, l1cloud.EncodeCloud(rgbScene()), 0o644))

	cfg := Config{
		RecordFile: filepath.Join(dir, "frames.pcap"),
		CloudFiles: []string{cloudPath, cloudPath, cloudPath},
		Interval:   50 * time.Millisecond,
	}
	require.NoError(t, record(cfg))

	f, err := os.Open(cfg.RecordFile)
	require.NoError(t, err)
	defer f.Close()

	var frames []l1cloud.Cloud
	stats, err := transport.Replay(context.Background(), f, transport.ReplayConfig{Port: transport.DefaultUDPPort},
		func(c l1cloud.Cloud) { frames = append(frames, c) })
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Frames)
	require.Len(t, frames, 3)
	assert.Len(t, frames[2], len(rgbScene()))
}

func TestRecord_Errors(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, record(Config{RecordFile: filepath.Join(dir, "empty.pcap")}))

	junk := filepath.Join(dir, "junk.bin")
	require.NoError(t, os.WriteFile(junk, []byte("not a cloud"), 0o644))
	assert.Error(t, record(Config{RecordFile: filepath.Join(dir, "junk.pcap"), CloudFiles: []string{junk}}))
}

func TestPrintSummary(t *testing.T) {
	s := &ReplaySummary{
		PCAPFile:  "frames.pcap",
		Packets:   10,
		Matched:   9,
		Frames:    3,
		Processed: 3,
		Requests:  6,
		Labels:    map[string]int{"soap": 3, "book": 3},
	}

	var text bytes.Buffer
	require.NoError(t, printSummary(&text, s, false))
	out := text.String()
	assert.Contains(t, out, "10 (9 matched, 0 rejected)")
	assert.Less(t, strings.Index(out, "book"), strings.Index(out, "soap"))

	var js bytes.Buffer
	require.NoError(t, printSummary(&js, s, true))
	var decoded ReplaySummary
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, s.Labels, decoded.Labels)
}
