// Package pipeline orchestrates the tabletop perception layers.
//
// Processor.ProcessFrame is a pure per-frame function: a raw cloud goes
// in, visual outputs and pick requests come out. Runner feeds it from a
// single-slot inbox and hands each outcome to adapter sinks (publish,
// persistence, result file). The pipeline owns no domain logic; it
// delegates to the l2-l6 packages.
package pipeline
