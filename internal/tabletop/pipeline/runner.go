package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
	"github.com/banshee-data/pickplace/internal/timeutil"
)

// Outcome is what a sink sees for each frame: a result on success, or the
// error that aborted the frame.
type Outcome struct {
	Frame  l1cloud.Frame
	Result *FrameResult
	Err    error
}

// OK reports whether the frame completed.
func (o Outcome) OK() bool { return o.Err == nil && o.Result != nil }

// Sink consumes frame outcomes. Sink errors are logged and never abort
// the loop.
type Sink interface {
	Consume(ctx context.Context, o Outcome) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, o Outcome) error

func (f SinkFunc) Consume(ctx context.Context, o Outcome) error { return f(ctx, o) }

// Stats counts frames seen by a Runner.
type Stats struct {
	Offered   uint64
	Dropped   uint64
	Processed uint64
	Failed    uint64
}

// Runner processes frames one at a time. Its inbox holds a single frame:
// offering a frame while one is already waiting replaces the waiting one,
// so the pipeline always works on the freshest scene and never builds a
// backlog.
type Runner struct {
	proc  *Processor
	sinks []Sink
	clock timeutil.Clock

	mu    sync.Mutex
	inbox chan l1cloud.Frame
	seq   uint64

	offered   atomic.Uint64
	dropped   atomic.Uint64
	processed atomic.Uint64
	failed    atomic.Uint64
}

// NewRunner returns a Runner that sends every outcome to sinks in order.
func NewRunner(proc *Processor, sinks ...Sink) *Runner {
	return &Runner{
		proc:  proc,
		sinks: sinks,
		clock: timeutil.RealClock{},
		inbox: make(chan l1cloud.Frame, 1),
	}
}

// AddSink appends a sink. It must be called before Run.
func (r *Runner) AddSink(s Sink) { r.sinks = append(r.sinks, s) }

// SetClock replaces the clock used to stamp received frames.
func (r *Runner) SetClock(c timeutil.Clock) { r.clock = c }

// Offer hands a cloud to the runner without blocking. It returns false
// when an older waiting frame was displaced.
func (r *Runner) Offer(cloud l1cloud.Cloud) bool {
	return r.OfferFrame(l1cloud.Frame{Cloud: cloud})
}

// OfferFrame is Offer for a pre-built frame. Missing ID, sequence and
// receive time are filled in.
func (r *Runner) OfferFrame(f l1cloud.Frame) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	if f.Seq == 0 {
		f.Seq = r.seq
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Received.IsZero() {
		f.Received = r.clock.Now()
	}
	r.offered.Add(1)

	fresh := true
	select {
	case old := <-r.inbox:
		r.dropped.Add(1)
		fresh = false
		opsf("frame %s (seq %d) dropped: superseded by %s", old.ID, old.Seq, f.ID)
	default:
	}
	r.inbox <- f
	return fresh
}

// Run processes frames until ctx is done. It returns ctx.Err().
func (r *Runner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-r.inbox:
			r.handle(ctx, f)
		}
	}
}

// Drain processes the frame currently waiting, if any. It reports whether
// a frame was processed. Replay tools use it to run synchronously.
func (r *Runner) Drain(ctx context.Context) bool {
	select {
	case f := <-r.inbox:
		r.handle(ctx, f)
		return true
	default:
		return false
	}
}

func (r *Runner) handle(ctx context.Context, f l1cloud.Frame) {
	res, err := r.proc.ProcessFrame(ctx, f)
	if err != nil {
		r.failed.Add(1)
		var se *StageError
		if errors.As(err, &se) {
			opsf("frame %s skipped at %s: %v", se.FrameID, se.Stage, se.Err)
		} else {
			opsf("frame %s skipped: %v", f.ID, err)
		}
	} else {
		r.processed.Add(1)
		diagf("frame %s: %d in, %d filtered, %d table, %d clusters, labels=%v, %d requests in %v",
			res.FrameID, res.InputPoints, len(res.Filtered), len(res.Table), len(res.Clusters),
			res.Labels(), len(res.Requests), res.Duration)
	}

	o := Outcome{Frame: f, Result: res, Err: err}
	for _, s := range r.sinks {
		if serr := s.Consume(ctx, o); serr != nil {
			opsf("frame %s: sink %T: %v", f.ID, s, serr)
		}
	}
}

// Stats returns a snapshot of the frame counters.
func (r *Runner) Stats() Stats {
	return Stats{
		Offered:   r.offered.Load(),
		Dropped:   r.dropped.Load(),
		Processed: r.processed.Load(),
		Failed:    r.failed.Load(),
	}
}
