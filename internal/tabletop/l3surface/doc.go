// Package l3surface owns Layer 3 (Surface) of the tabletop pipeline: RANSAC
// plane fitting that splits a filtered cloud into the supporting surface
// and the residual object points.
package l3surface
