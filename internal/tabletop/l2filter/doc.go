// Package l2filter owns Layer 2 (Preprocessing) of the tabletop pipeline.
//
// Responsibilities: voxel downsampling, axis-aligned passthrough cropping
// and statistical outlier removal, composed into an explicitly ordered
// chain. Every filter returns a new cloud and leaves its input untouched.
// Key types: Filter, Chain, VoxelGrid, PassThrough, StatisticalOutlier.
package l2filter
