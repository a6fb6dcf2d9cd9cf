// Package sqlite contains SQLite repository implementations for tabletop
// frame history.
//
// All database reads and writes for frames, detections and pick requests
// live here rather than in the layer packages, which keeps l1-l6 free of
// SQL.
package sqlite
