package pipeline

import (
	"errors"
	"fmt"
)

// Stage names used in StageError and logs.
const (
	StageFilter   = "filter"
	StageSegment  = "segment"
	StageCluster  = "cluster"
	StageClassify = "classify"
	StagePicks    = "picks"
)

// ErrInsufficientData is returned when the filtered cloud is too small or
// no supporting plane can be found.
var ErrInsufficientData = errors.New("insufficient data")

// StageError reports which stage aborted which frame.
type StageError struct {
	FrameID string
	Stage   string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("frame %s: stage %s: %v", e.FrameID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(frameID, stage string, err error) error {
	return &StageError{FrameID: frameID, Stage: stage, Err: err}
}
