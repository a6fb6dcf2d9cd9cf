// Package l5recognition owns Layer 5 (Recognition) of the tabletop pipeline.
//
// Responsibilities: per-cluster appearance descriptors (HSV color
// histograms and optional surface-normal histograms), surface normal
// estimation, and label inference with a pre-trained linear model.
// Key types: Descriptor, Model, Classifier, NormalEstimator.
//
// The model is loaded once at startup and is read-only afterwards; this
// package never trains.
package l5recognition
