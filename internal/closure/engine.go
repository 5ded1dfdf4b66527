package closure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/jamiewannenburg/uacalcsrc-sub002/internal/op"
)

// DefaultMaxElements is the default discovered-set ceiling. Two million
// int64 elements is roughly 16 MiB of raw index data plus map overhead,
// a safe bound for interactive use; callers computing larger closures
// raise it explicitly.
const DefaultMaxElements = 2_000_000

// DefaultCheckpoint is the number of applications a worker performs
// between cancellation checks and counter flushes.
const DefaultCheckpoint = 4096

// Engine drives one closure run. Each run owns an independent engine
// instance; engines share no global state, so multiple closures can run
// concurrently in one process.
//
// INVARIANTS:
//   - The operation list order never changes after construction.
//   - Elements are inserted into the discovered set only by the merge
//     step between passes, never removed.
//   - Workers read a frozen snapshot; pass N+1 starts only after pass
//     N's merge completed.
type Engine struct {
	universe   int64
	operations []op.Operation
	seed       []int64

	maxElements int64
	workers     int
	checkpoint  int64
	sink        Sink

	tracker *Tracker
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxElements sets the discovered-set cardinality ceiling.
// The run terminates with ReasonMemoryLimit once a merge leaves the set
// at or above this bound (overshoot is limited to one pass).
func WithMaxElements(n int64) Option {
	return func(e *Engine) {
		e.maxElements = n
	}
}

// WithWorkers sets the worker pool size. Defaults to runtime.NumCPU().
// One worker gives fully serial execution; results are identical either
// way.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithSink sets the progress sink receiving one Report per pass.
func WithSink(s Sink) Option {
	return func(e *Engine) {
		e.sink = s
	}
}

// WithCheckpointInterval sets how many applications a worker performs
// between cancellation checks. Lower values reduce cancellation latency
// at the cost of more atomic traffic.
func WithCheckpointInterval(n int64) Option {
	return func(e *Engine) {
		e.checkpoint = n
	}
}

// sized is implemented by operations that declare their universe
// cardinality (op.Table, op.Func, op.Product).
type sized interface {
	Size() int64
}

// New creates an engine for a universe of the given cardinality, an
// ordered operation list, and a generating set of element indices.
//
// Configuration errors (empty universe, out-of-range generators,
// operations sized for a different universe) are reported here, before
// any pass runs.
func New(universe int64, operations []op.Operation, generators []int64, opts ...Option) (*Engine, error) {
	if universe <= 0 {
		return nil, fmt.Errorf("universe size must be positive, got %d", universe)
	}
	for i, g := range generators {
		if g < 0 || g >= universe {
			return nil, fmt.Errorf("generator %d is %d, outside [0, %d)", i, g, universe)
		}
	}
	for _, o := range operations {
		if o.Arity() < 0 {
			return nil, fmt.Errorf("operation %q has negative arity", o.Symbol())
		}
		if s, ok := o.(sized); ok && s.Size() != universe {
			return nil, fmt.Errorf("operation %q acts on %d elements, universe has %d",
				o.Symbol(), s.Size(), universe)
		}
	}

	e := &Engine{
		universe:    universe,
		operations:  append([]op.Operation(nil), operations...),
		seed:        append([]int64(nil), generators...),
		maxElements: DefaultMaxElements,
		workers:     runtime.NumCPU(),
		checkpoint:  DefaultCheckpoint,
		tracker:     NewTracker(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = 1
	}
	if e.checkpoint < 1 {
		e.checkpoint = 1
	}
	if e.maxElements < 1 {
		e.maxElements = 1
	}
	return e, nil
}

// Tracker returns the engine's progress tracker. Useful for reading a
// live estimate while Run executes on another goroutine.
func (e *Engine) Tracker() *Tracker {
	return e.tracker
}

// Run computes the closure. It blocks until the run reaches a terminal
// state or an operation reports a contract violation.
//
// On any of the three normal terminations the returned Result carries
// the discovered set and the reason. On an operation error the run
// aborts without merging the failed pass's staged discoveries and
// returns the error instead.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	elems := make([]int64, 0, len(e.seed))
	members := make(map[int64]struct{}, len(e.seed))
	for _, g := range e.seed {
		if _, ok := members[g]; !ok {
			members[g] = struct{}{}
			elems = append(elems, g)
		}
	}

	// Constants contribute their value once, before the first pass.
	for _, o := range e.operations {
		if o.Arity() != 0 {
			continue
		}
		v, err := o.Apply(nil)
		if err != nil {
			return nil, fmt.Errorf("apply constant %q: %w", o.Symbol(), err)
		}
		if v < 0 || v >= e.universe {
			return nil, fmt.Errorf("apply constant %q: %w", o.Symbol(), &op.OpError{
				Code:   op.CodeIndexOutOfRange,
				Symbol: o.Symbol(),
				Got:    v,
				Limit:  e.universe,
			})
		}
		e.tracker.Record(1)
		if _, ok := members[v]; !ok {
			members[v] = struct{}{}
			elems = append(elems, v)
		}
	}

	old := 0
	pass := 0
	for {
		if err := ctx.Err(); err != nil {
			return e.finish(elems, ReasonCancelled, pass, start), nil
		}
		if len(elems) == old {
			// Nothing new to try: empty seed or an immediate fixpoint.
			return e.finish(elems, ReasonFixpoint, pass, start), nil
		}

		tasks, needed, err := e.planPass(elems, old)
		if err != nil {
			return nil, err
		}

		slog.Debug("pass starting",
			"pass", pass,
			"size", len(elems),
			"new", len(elems)-old,
			"applications", needed,
		)

		e.tracker.BeginPass(needed)
		st := passState{elems: elems, old: old, members: members, universe: e.universe}
		results, err := runPass(ctx, st, tasks, e.workers, e.checkpoint, e.tracker)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				// Staged discoveries of the aborted pass are dropped;
				// the set stays as of the last completed merge.
				return e.finish(elems, ReasonCancelled, pass, start), nil
			}
			return nil, fmt.Errorf("pass %d: %w", pass, err)
		}

		// Single synchronized merge step, in task order.
		before := len(elems)
		for _, buf := range results {
			for _, v := range buf {
				if _, ok := members[v]; !ok {
					members[v] = struct{}{}
					elems = append(elems, v)
				}
			}
		}
		found := int64(len(elems) - before)

		nextNeeded := e.projectNext(len(elems), before, found)
		report := e.tracker.EndPass(pass, found, int64(len(elems)), nextNeeded)
		if e.sink != nil {
			e.sink.PassComplete(report)
		}

		slog.Debug("pass merged",
			"pass", pass,
			"found", found,
			"size", len(elems),
			"elapsed", report.Elapsed,
		)

		old = before
		pass++

		if found == 0 {
			return e.finish(elems, ReasonFixpoint, pass, start), nil
		}
		if int64(len(elems)) >= e.maxElements {
			return e.finish(elems, ReasonMemoryLimit, pass, start), nil
		}
	}
}

// planPass builds the pass's task list: for every operation of arity
// >= 1, the eligible tuple count is computed up front and split into
// near-even contiguous slices, one batch per worker. Static
// partitioning suffices because counts are exact before the pass runs.
func (e *Engine) planPass(elems []int64, old int) ([]task, uint64, error) {
	var tasks []task
	var needed uint64
	for _, o := range e.operations {
		a := o.Arity()
		if a == 0 {
			continue
		}
		n, err := TupleCount(len(elems), old, a)
		if err != nil {
			return nil, 0, fmt.Errorf("operation %q: %w", o.Symbol(), err)
		}
		if n == 0 {
			continue
		}
		needed += uint64(n)

		chunks := int64(e.workers)
		if chunks > n {
			chunks = n
		}
		per := n / chunks
		rem := n % chunks
		start := int64(0)
		for c := int64(0); c < chunks; c++ {
			count := per
			if c < rem {
				count++
			}
			tasks = append(tasks, task{operation: o, start: start, count: count})
			start += count
		}
	}
	return tasks, needed, nil
}

// projectNext estimates the next pass's application count from the
// merge outcome. Saturates instead of failing on overflow; the estimate
// only feeds the progress report.
func (e *Engine) projectNext(size, old int, found int64) uint64 {
	if found == 0 || int64(size) >= e.maxElements {
		return 0
	}
	var needed uint64
	for _, o := range e.operations {
		if o.Arity() == 0 {
			continue
		}
		n, err := TupleCount(size, old, o.Arity())
		if err != nil {
			return ^uint64(0)
		}
		needed += uint64(n)
	}
	return needed
}

// finish freezes the discovered set into a Result.
func (e *Engine) finish(elems []int64, reason Reason, passes int, start time.Time) *Result {
	sorted := append([]int64(nil), elems...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	r := &Result{
		Elements:     sorted,
		Reason:       reason,
		Passes:       passes,
		Applications: e.tracker.Done(),
		Elapsed:      time.Since(start),
	}

	slog.Info("closure run finished",
		"reason", reason,
		"elements", len(sorted),
		"passes", passes,
		"applications", r.Applications,
		"elapsed", r.Elapsed,
	)
	return r
}
