package monitor

import (
	"context"
	"sync"

	"github.com/banshee-data/pickplace/internal/tabletop/pipeline"
)

// LatestFrame is a pipeline sink that remembers the most recent outcome
// and the most recent completed one.
type LatestFrame struct {
	mu        sync.RWMutex
	last      *pipeline.Outcome
	completed *pipeline.Outcome
}

// Consume records o.
func (l *LatestFrame) Consume(_ context.Context, o pipeline.Outcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = &o
	if o.OK() {
		l.completed = &o
	}
	return nil
}

// Last returns the most recent outcome, if any.
func (l *LatestFrame) Last() (pipeline.Outcome, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.last == nil {
		return pipeline.Outcome{}, false
	}
	return *l.last, true
}

// Completed returns the most recent completed frame, if any.
func (l *LatestFrame) Completed() (*pipeline.FrameResult, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.completed == nil {
		return nil, false
	}
	return l.completed.Result, true
}
