// Package l4cluster owns Layer 4 (Clustering) of the tabletop pipeline.
//
// Responsibilities: partitioning the residual object cloud into connected
// components under a Euclidean distance tolerance, and rejecting components
// outside the configured size bounds.
// Key types: Params, Cluster.
//
// Dependency rule: L4 may depend on L1-L3 and spatial, never on L5+.
package l4cluster
