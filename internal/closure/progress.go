package closure

import (
	"sync"
	"sync/atomic"
	"time"
)

// ewmaDecay is the smoothing factor for the milliseconds-per-application
// moving average: estimate = decay*observed + (1-decay)*previous. The
// first completed pass seeds the estimate directly. 0.3 weights recent
// passes heavily while still damping single-pass jitter.
const ewmaDecay = 0.3

// Report is the per-pass progress snapshot pushed to a Sink.
type Report struct {
	// Pass is the zero-based index of the completed pass.
	Pass int

	// Found is the number of elements discovered by this pass.
	Found int64

	// Size is the discovered-set cardinality after the merge.
	Size int64

	// Applications is the number of operation applications performed
	// during this pass.
	Applications uint64

	// TotalApplications is the cumulative application count for the run.
	TotalApplications uint64

	// Elapsed is the wall-clock duration of this pass.
	Elapsed time.Duration

	// Remaining estimates the time the next pass will take, from the
	// smoothed per-application cost and the next pass's tuple count.
	// Zero when the run is about to terminate.
	Remaining time.Duration
}

// Sink receives one Report per completed pass. Reports are pushed from
// the engine goroutine between passes, never mid-pass, so a slow sink
// delays pass turnover but never individual applications.
type Sink interface {
	PassComplete(Report)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Report)

// PassComplete implements Sink.
func (f SinkFunc) PassComplete(r Report) { f(r) }

// Tracker accumulates application counters and maintains the moving
// per-application cost estimate.
//
// Thread-safety: Record is called concurrently by workers (atomic
// counter); BeginPass and EndPass are called only from the engine
// goroutine between passes. EstimatedRemaining may be read from any
// goroutine.
type Tracker struct {
	done atomic.Uint64 // applications completed, whole run

	mu           sync.Mutex
	passStart    time.Time
	passBase     uint64 // done at pass start
	passNeeded   uint64 // applications this pass will perform
	msPerApp     float64
	haveMsPerApp bool
}

// NewTracker creates a tracker with no history.
func NewTracker() *Tracker {
	return &Tracker{}
}

// BeginPass records the pass's application budget and start time.
func (t *Tracker) BeginPass(needed uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.passStart = time.Now()
	t.passBase = t.done.Load()
	t.passNeeded = needed
}

// Record adds n completed applications. Safe for concurrent use.
func (t *Tracker) Record(n uint64) {
	t.done.Add(n)
}

// Done returns the cumulative application count.
func (t *Tracker) Done() uint64 {
	return t.done.Load()
}

// EstimatedRemaining projects the time to finish the current pass from
// the applications still outstanding and the smoothed per-application
// cost. Returns zero before the first pass completes (no estimate yet).
func (t *Tracker) EstimatedRemaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.haveMsPerApp {
		return 0
	}
	doneThisPass := t.done.Load() - t.passBase
	if doneThisPass >= t.passNeeded {
		return 0
	}
	left := t.passNeeded - doneThisPass
	return time.Duration(float64(left) * t.msPerApp * float64(time.Millisecond))
}

// EndPass folds the pass's observed cost into the moving average and
// builds the pass Report. nextNeeded is the projected application count
// of the following pass (zero when the run terminates).
func (t *Tracker) EndPass(pass int, found, size int64, nextNeeded uint64) Report {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.passStart)
	total := t.done.Load()
	apps := total - t.passBase

	if apps > 0 {
		observed := float64(elapsed.Milliseconds()) / float64(apps)
		if t.haveMsPerApp {
			t.msPerApp = ewmaDecay*observed + (1-ewmaDecay)*t.msPerApp
		} else {
			t.msPerApp = observed
			t.haveMsPerApp = true
		}
	}

	var remaining time.Duration
	if t.haveMsPerApp && nextNeeded > 0 {
		remaining = time.Duration(float64(nextNeeded) * t.msPerApp * float64(time.Millisecond))
	}

	return Report{
		Pass:              pass,
		Found:             found,
		Size:              size,
		Applications:      apps,
		TotalApplications: total,
		Elapsed:           elapsed,
		Remaining:         remaining,
	}
}
