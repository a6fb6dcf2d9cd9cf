package output

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/banshee-data/pickplace/internal/fsutil"
	"github.com/banshee-data/pickplace/internal/monitoring"
	"github.com/banshee-data/pickplace/internal/tabletop/l6picks"
	"github.com/banshee-data/pickplace/internal/tabletop/pipeline"
)

// OnceGuard is the explicit "already written" switch for a run. The
// caller decides its initial state, typically from whether the result
// file already exists.
type OnceGuard struct {
	mu   sync.Mutex
	done bool
}

// NewOnceGuard returns a guard, already tripped when written is true.
func NewOnceGuard(written bool) *OnceGuard {
	return &OnceGuard{done: written}
}

// Done reports whether the record has been written.
func (g *OnceGuard) Done() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.done
}

// claim trips the guard and reports whether this caller won it.
func (g *OnceGuard) claim() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return false
	}
	g.done = true
	return true
}

func (g *OnceGuard) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.done = false
}

// ResultWriter persists the request list of the first successful frame
// that produced at least one request. Later frames never overwrite it.
type ResultWriter struct {
	fs    fsutil.FileSystem
	path  string
	guard *OnceGuard
}

// NewResultWriter returns a writer for path. A nil guard starts untripped.
func NewResultWriter(fsys fsutil.FileSystem, path string, guard *OnceGuard) *ResultWriter {
	if guard == nil {
		guard = NewOnceGuard(false)
	}
	return &ResultWriter{fs: fsys, path: path, guard: guard}
}

// Guard returns the writer's guard.
func (w *ResultWriter) Guard() *OnceGuard { return w.guard }

// Write stores reqs unless the guard has already tripped. It reports
// whether the file was written. An existing file trips the guard without
// being touched.
func (w *ResultWriter) Write(reqs []l6picks.PickPlaceRequest) (bool, error) {
	if len(reqs) == 0 || !w.guard.claim() {
		return false, nil
	}
	data, err := Marshal(reqs)
	if err != nil {
		w.guard.release()
		return false, err
	}
	if dir := filepath.Dir(w.path); dir != "." {
		if err := w.fs.MkdirAll(dir, 0o755); err != nil {
			w.guard.release()
			return false, err
		}
	}
	if err := w.fs.WriteFileExclusive(w.path, data, 0o644); err != nil {
		if errors.Is(err, fs.ErrExist) {
			monitoring.Logf("result file %s already exists; leaving it untouched", w.path)
			return false, nil
		}
		w.guard.release()
		return false, err
	}
	monitoring.Logf("wrote %d pick requests to %s", len(reqs), w.path)
	return true, nil
}

// Consume implements pipeline.Sink.
func (w *ResultWriter) Consume(_ context.Context, o pipeline.Outcome) error {
	if !o.OK() {
		return nil
	}
	_, err := w.Write(o.Result.Requests)
	return err
}
