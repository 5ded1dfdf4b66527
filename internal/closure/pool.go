package closure

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/jamiewannenburg/uacalcsrc-sub002/internal/op"
)

// task is one contiguous slice of a pass's tuple space for one
// operation. Tasks are disjoint and together cover every eligible
// tuple of the pass exactly once.
type task struct {
	operation op.Operation
	start     int64 // first rank in the enumeration order
	count     int64 // number of tuples
}

// passState is the frozen view workers read during one pass. The
// members map is never mutated while workers run.
type passState struct {
	elems    []int64
	old      int
	members  map[int64]struct{}
	universe int64
}

// runPass applies all tasks across the worker pool and returns one
// discovery buffer per task, in task order. Workers accumulate
// discoveries privately and never touch shared state, so merging the
// buffers in task order is the engine's only synchronized step.
//
// Cancellation is observed every checkpoint applications. The first
// operation error cancels the remaining work via the errgroup context.
func runPass(ctx context.Context, st passState, tasks []task, workers int, checkpoint int64, tracker *Tracker) ([][]int64, error) {
	results := make([][]int64, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, tk := range tasks {
		i, tk := i, tk
		g.Go(func() error {
			buf, err := applyTask(gctx, st, tk, checkpoint, tracker)
			if err != nil {
				return err
			}
			results[i] = buf
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// applyTask runs one task: enumerate the task's tuple slice, apply the
// operation, and collect results not already in the pass snapshot.
func applyTask(ctx context.Context, st passState, tk task, checkpoint int64, tracker *Tracker) ([]int64, error) {
	en, err := NewEnumerator(st.elems, st.old, tk.operation.Arity())
	if err != nil {
		return nil, err
	}
	if err := en.Seek(tk.start); err != nil {
		return nil, err
	}

	var buf []int64
	local := make(map[int64]struct{})
	var sinceCheck int64

	for n := int64(0); n < tk.count; n++ {
		tuple, ok := en.Next()
		if !ok {
			break // task sized from Count; should not happen
		}
		res, err := tk.operation.Apply(tuple)
		if err != nil {
			return nil, err
		}
		// Operations sized for a larger universe pass their own range
		// check but would corrupt the discovered set here.
		if res < 0 || res >= st.universe {
			return nil, &op.OpError{
				Code:   op.CodeIndexOutOfRange,
				Symbol: tk.operation.Symbol(),
				Got:    res,
				Limit:  st.universe,
			}
		}
		if _, seen := st.members[res]; !seen {
			if _, seen := local[res]; !seen {
				local[res] = struct{}{}
				buf = append(buf, res)
			}
		}

		sinceCheck++
		if sinceCheck >= checkpoint {
			tracker.Record(uint64(sinceCheck))
			sinceCheck = 0
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}
	}
	if sinceCheck > 0 {
		tracker.Record(uint64(sinceCheck))
	}
	return buf, nil
}
