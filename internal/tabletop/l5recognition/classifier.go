package l5recognition

import (
	"context"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
)

// Descriptor is the feature vector of one cluster.
type Descriptor struct {
	Features []float64
	// ShapeDegraded is set when the layout asks for normals but none could
	// be estimated; the normal histogram is then all zeros.
	ShapeDegraded bool
	ShapeErr      error
}

// Prediction is the outcome of classifying one cluster.
type Prediction struct {
	Label      string
	ClassIndex int
	Score      float64
	Descriptor Descriptor
}

// Classifier labels cluster clouds with a loaded Model. A nil Model makes
// every call return ErrClassificationUnavailable.
type Classifier struct {
	Model   *Model
	Normals NormalEstimator
}

// Available reports whether a model is loaded.
func (c *Classifier) Available() bool { return c != nil && c.Model != nil }

// Describe computes the descriptor for one cluster under layout.
func Describe(ctx context.Context, cloud l1cloud.Cloud, layout FeatureLayout, normals NormalEstimator) Descriptor {
	features := ColorHistogram(cloud, layout.ColorBins)
	if layout.NormalBins == 0 {
		return Descriptor{Features: features}
	}

	d := Descriptor{}
	var ns []r3.Vector
	if normals == nil {
		d.ShapeDegraded = true
	} else if est, err := normals.EstimateNormals(ctx, cloud); err != nil {
		d.ShapeDegraded = true
		d.ShapeErr = err
	} else {
		ns = est
	}
	d.Features = append(features, NormalHistogram(ns, layout.NormalBins)...)
	return d
}

// Classify labels one cluster cloud.
func (c *Classifier) Classify(ctx context.Context, cloud l1cloud.Cloud) (Prediction, error) {
	if !c.Available() {
		return Prediction{}, ErrClassificationUnavailable
	}
	desc := Describe(ctx, cloud, c.Model.Features, c.Normals)
	idx, score := c.Model.Predict(c.Model.Standardize(desc.Features))
	return Prediction{
		Label:      c.Model.Classes[idx],
		ClassIndex: idx,
		Score:      score,
		Descriptor: desc,
	}, nil
}
