package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/pickplace/internal/config"
	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
	"github.com/banshee-data/pickplace/internal/tabletop/l2filter"
	"github.com/banshee-data/pickplace/internal/tabletop/l3surface"
	"github.com/banshee-data/pickplace/internal/tabletop/l4cluster"
	"github.com/banshee-data/pickplace/internal/tabletop/l5recognition"
	"github.com/banshee-data/pickplace/internal/tabletop/l6picks"
	"github.com/banshee-data/pickplace/internal/timeutil"
)

// Config holds the per-frame processing parameters.
type Config struct {
	FilterStages   []string
	Filter         l2filter.Params
	MinFramePoints int
	Segmenter      l3surface.RANSAC
	Cluster        l4cluster.Params
	// LabelOffsetZ raises each label marker above its cluster's first
	// point.
	LabelOffsetZ float64
}

// ConfigFromTuning maps a tuning file onto a Config.
func ConfigFromTuning(t *config.TuningConfig) Config {
	return Config{
		FilterStages:   t.GetFilterStages(),
		Filter:         t.FilterParams(),
		MinFramePoints: t.GetMinFramePoints(),
		Segmenter: l3surface.RANSAC{
			DistanceThreshold: t.GetRansacDistance(),
			MaxIterations:     t.GetRansacIterations(),
			Seed:              t.GetRansacSeed(),
		},
		Cluster: l4cluster.Params{
			Tolerance: t.GetClusterTolerance(),
			MinSize:   t.GetClusterMinSize(),
			MaxSize:   t.GetClusterMaxSize(),
		},
		LabelOffsetZ: t.GetLabelOffsetZ(),
	}
}

// Marker is a text label anchored above a detected object.
type Marker struct {
	ID       int
	Label    string
	Position r3.Vector
}

// FrameResult is everything one frame produces.
type FrameResult struct {
	FrameID  string
	Seq      uint64
	Received time.Time

	InputPoints int
	Filtered    l1cloud.Cloud
	Plane       l3surface.PlaneModel
	Table       l1cloud.Cloud
	Objects     l1cloud.Cloud

	Clusters     []l4cluster.Cluster
	TooSmall     int
	TooLarge     int
	ClusterCloud l1cloud.Cloud

	// Classified is false when no model is loaded; the frame then carries
	// geometry only and no detections, markers or requests.
	Classified    bool
	ShapeDegraded int
	Markers       []Marker
	Detections    []l6picks.DetectedObject
	Requests      []l6picks.PickPlaceRequest
	Mismatches    []error
	Unrequested   int

	Duration time.Duration
}

// Processor runs one frame through every stage. It holds no per-frame
// state and is safe to reuse across frames.
type Processor struct {
	cfg        Config
	chain      l2filter.Chain
	classifier *l5recognition.Classifier
	scene      l6picks.SceneConfig
	palette    *Palette
	clock      timeutil.Clock
}

// NewProcessor validates cfg and builds the filter chain. classifier may
// be nil, in which case frames are processed geometry-only.
func NewProcessor(cfg Config, classifier *l5recognition.Classifier, scene l6picks.SceneConfig) (*Processor, error) {
	chain, err := l2filter.NewChain(cfg.FilterStages, cfg.Filter)
	if err != nil {
		return nil, fmt.Errorf("build filter chain: %w", err)
	}
	if err := scene.Validate(); err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	diagf("processor: stages=%v ransac=%.3f/%d cluster=%.3f[%d,%d] classifier=%t",
		chain.Names(), cfg.Segmenter.DistanceThreshold, cfg.Segmenter.MaxIterations,
		cfg.Cluster.Tolerance, cfg.Cluster.MinSize, cfg.Cluster.MaxSize, classifier.Available())
	return &Processor{
		cfg:        cfg,
		chain:      chain,
		classifier: classifier,
		scene:      scene,
		palette:    NewPalette(),
		clock:      timeutil.RealClock{},
	}, nil
}

// SetClock replaces the clock used for durations.
func (p *Processor) SetClock(c timeutil.Clock) { p.clock = c }

// Palette returns the palette used for cluster colours.
func (p *Processor) Palette() *Palette { return p.palette }

// Scene returns the scene the processor synthesizes requests for.
func (p *Processor) Scene() l6picks.SceneConfig { return p.scene }

// ProcessFrame runs every stage on frame. Any stage failure aborts the
// frame with a *StageError; the caller moves on to the next frame.
func (p *Processor) ProcessFrame(ctx context.Context, frame l1cloud.Frame) (*FrameResult, error) {
	start := p.clock.Now()
	res := &FrameResult{
		FrameID:     frame.ID,
		Seq:         frame.Seq,
		Received:    frame.Received,
		InputPoints: len(frame.Cloud),
	}

	res.Filtered = p.chain.Apply(frame.Cloud)
	tracef("frame %s: filter %d -> %d points", frame.ID, len(frame.Cloud), len(res.Filtered))
	minPoints := p.cfg.MinFramePoints
	if minPoints < l3surface.MinModelPoints {
		minPoints = l3surface.MinModelPoints
	}
	if len(res.Filtered) < minPoints {
		return nil, stageErr(frame.ID, StageFilter,
			fmt.Errorf("%w: %d points after filtering, need %d", ErrInsufficientData, len(res.Filtered), minPoints))
	}
	if err := ctx.Err(); err != nil {
		return nil, stageErr(frame.ID, StageFilter, err)
	}

	seg, err := p.cfg.Segmenter.Segment(res.Filtered)
	if err != nil {
		if errors.Is(err, l3surface.ErrInsufficientData) {
			err = fmt.Errorf("%w: %v", ErrInsufficientData, err)
		}
		return nil, stageErr(frame.ID, StageSegment, err)
	}
	if !seg.Found {
		return nil, stageErr(frame.ID, StageSegment,
			fmt.Errorf("%w: no plane after %d samples", ErrInsufficientData, seg.Iterations))
	}
	res.Plane = seg.Model
	res.Table = res.Filtered.Extract(seg.Inliers, false)
	res.Objects = res.Filtered.Extract(seg.Inliers, true)
	tracef("frame %s: plane %s table=%d objects=%d", frame.ID, seg.Model, len(res.Table), len(res.Objects))
	if err := ctx.Err(); err != nil {
		return nil, stageErr(frame.ID, StageSegment, err)
	}

	geometry := res.Objects.StripColor()
	clusters := l4cluster.Extract(geometry, p.cfg.Cluster)
	res.Clusters = clusters.Clusters
	res.TooSmall = clusters.TooSmall
	res.TooLarge = clusters.TooLarge
	res.ClusterCloud = p.palette.Colorize(geometry, clusters.Clusters)
	tracef("frame %s: %d clusters (%d too small, %d too large)", frame.ID,
		len(clusters.Clusters), clusters.TooSmall, clusters.TooLarge)

	if !p.classifier.Available() {
		res.Duration = p.clock.Since(start)
		return res, nil
	}
	res.Classified = true

	for i, c := range clusters.Clusters {
		if err := ctx.Err(); err != nil {
			return nil, stageErr(frame.ID, StageClassify, err)
		}
		cloud := res.Objects.Select(c.Indices)
		pred, err := p.classifier.Classify(ctx, cloud)
		if err != nil {
			return nil, stageErr(frame.ID, StageClassify, fmt.Errorf("cluster %d: %w", i, err))
		}
		if pred.Descriptor.ShapeDegraded {
			res.ShapeDegraded++
			if pred.Descriptor.ShapeErr != nil {
				tracef("frame %s: cluster %d normals unavailable: %v", frame.ID, i, pred.Descriptor.ShapeErr)
			}
		}
		anchor := geometry[c.Indices[0]]
		res.Markers = append(res.Markers, Marker{
			ID:       i,
			Label:    pred.Label,
			Position: r3.Vector{X: anchor.X, Y: anchor.Y, Z: anchor.Z + p.cfg.LabelOffsetZ},
		})
		res.Detections = append(res.Detections, l6picks.NewDetectedObject(pred.Label, cloud))
	}

	picks := l6picks.Synthesize(res.Detections, p.scene)
	res.Requests = picks.Requests
	res.Mismatches = picks.Mismatches
	res.Unrequested = picks.Unrequested
	for _, m := range picks.Mismatches {
		opsf("frame %s: stage %s: %v", frame.ID, StagePicks, m)
	}

	res.Duration = p.clock.Since(start)
	return res, nil
}

// Labels returns the detected labels in cluster order.
func (r *FrameResult) Labels() []string {
	out := make([]string, len(r.Detections))
	for i, d := range r.Detections {
		out[i] = d.Label
	}
	return out
}
