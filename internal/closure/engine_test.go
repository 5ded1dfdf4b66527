package closure

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamiewannenburg/uacalcsrc-sub002/internal/coding"
	"github.com/jamiewannenburg/uacalcsrc-sub002/internal/op"
)

// succMod builds the unary successor operation on Z_n.
func succMod(t *testing.T, n int64) op.Operation {
	t.Helper()
	succ, err := op.NewFunc("succ", 1, n, func(args []int64) int64 {
		return (args[0] + 1) % n
	})
	require.NoError(t, err)
	return succ
}

// TestEngine_SuccMod3 is the first example scenario: FactorSizes [3],
// succ(x) = (x+1) mod 3, generator {0}. Closure is {0,1,2} at a
// fixpoint, reached in three passes.
func TestEngine_SuccMod3(t *testing.T) {
	e, err := New(3, []op.Operation{succMod(t, 3)}, []int64{0})
	require.NoError(t, err)

	res, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int64{0, 1, 2}, res.Elements)
	assert.Equal(t, ReasonFixpoint, res.Reason)
	assert.Equal(t, 3, res.Passes)
	assert.Positive(t, res.Applications)
}

// TestEngine_XorOn2x2 is the second example scenario: FactorSizes
// [2,2], coordinatewise XOR, generators (1,0) and (0,1). The closure is
// the whole 4-element universe.
func TestEngine_XorOn2x2(t *testing.T) {
	coder, err := coding.NewCoder(coding.Factors{2, 2})
	require.NoError(t, err)

	xor, err := op.NewFunc("xor", 2, 4, func(args []int64) int64 {
		return args[0] ^ args[1]
	})
	require.NoError(t, err)

	g1, err := coder.Encode([]int{1, 0})
	require.NoError(t, err)
	g2, err := coder.Encode([]int{0, 1})
	require.NoError(t, err)

	e, err := New(coder.Size(), []op.Operation{xor}, []int64{g1, g2})
	require.NoError(t, err)

	res, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int64{0, 1, 2, 3}, res.Elements)
	assert.Equal(t, ReasonFixpoint, res.Reason)
}

// TestEngine_MatchesBruteForce checks the closure of one generator of
// Z2 x Z3 under coordinatewise addition against a brute-force
// fixed-point computation.
func TestEngine_MatchesBruteForce(t *testing.T) {
	coder, err := coding.NewCoder(coding.Factors{2, 3})
	require.NoError(t, err)

	add2, err := op.NewFunc("+", 2, 2, func(a []int64) int64 { return (a[0] + a[1]) % 2 })
	require.NoError(t, err)
	add3, err := op.NewFunc("+", 2, 3, func(a []int64) int64 { return (a[0] + a[1]) % 3 })
	require.NoError(t, err)
	add, err := op.NewProduct("+", coder, []op.Operation{add2, add3})
	require.NoError(t, err)

	gen, err := coder.Encode([]int{1, 1})
	require.NoError(t, err)

	e, err := New(coder.Size(), []op.Operation{add}, []int64{gen})
	require.NoError(t, err)
	res, err := e.Run(context.Background())
	require.NoError(t, err)

	// Brute force: repeatedly apply + to all pairs until stable.
	closed := map[int64]bool{gen: true}
	for {
		grew := false
		var members []int64
		for m := range closed {
			members = append(members, m)
		}
		for _, x := range members {
			for _, y := range members {
				r, err := add.Apply([]int64{x, y})
				require.NoError(t, err)
				if !closed[r] {
					closed[r] = true
					grew = true
				}
			}
		}
		if !grew {
			break
		}
	}

	assert.Len(t, res.Elements, len(closed))
	for _, v := range res.Elements {
		assert.True(t, closed[v], "engine found %d, brute force did not", v)
	}
	// (1,1) generates all of Z2 x Z3.
	assert.Len(t, res.Elements, 6)
}

// TestEngine_DeterministicAcrossWorkerCounts checks that the final set
// does not depend on the worker-pool size.
func TestEngine_DeterministicAcrossWorkerCounts(t *testing.T) {
	coder, err := coding.NewCoder(coding.Factors{5, 5})
	require.NoError(t, err)

	mul, err := op.NewFunc("*", 2, coder.Size(), func(args []int64) int64 {
		return (args[0] * args[1]) % coder.Size()
	})
	require.NoError(t, err)
	succ := succMod(t, coder.Size())

	var runs []*Result
	for _, workers := range []int{1, 2, 8} {
		e, err := New(coder.Size(), []op.Operation{mul, succ}, []int64{2}, WithWorkers(workers))
		require.NoError(t, err)
		res, err := e.Run(context.Background())
		require.NoError(t, err)
		runs = append(runs, res)
	}

	for i := 1; i < len(runs); i++ {
		assert.Equal(t, runs[0].Elements, runs[i].Elements)
		assert.Equal(t, runs[0].Passes, runs[i].Passes)
		assert.Equal(t, runs[0].Applications, runs[i].Applications)
	}
}

// TestEngine_MonotoneGrowth checks via pass reports that the set size
// never shrinks and grows strictly until the fixpoint pass.
func TestEngine_MonotoneGrowth(t *testing.T) {
	var reports []Report
	sink := SinkFunc(func(r Report) { reports = append(reports, r) })

	e, err := New(50, []op.Operation{succMod(t, 50)}, []int64{0}, WithSink(sink))
	require.NoError(t, err)
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, ReasonFixpoint, res.Reason)
	require.NotEmpty(t, reports)

	prev := int64(0)
	for i, r := range reports {
		assert.GreaterOrEqual(t, r.Size, prev, "pass %d shrank", i)
		if i < len(reports)-1 {
			assert.Positive(t, r.Found, "pass %d found nothing before fixpoint", i)
		} else {
			assert.Zero(t, r.Found, "final pass must find nothing")
		}
		prev = r.Size
	}
	assert.Equal(t, len(reports), res.Passes)
}

// TestEngine_MemoryLimit checks that a ceiling below the true closure
// size terminates with ReasonMemoryLimit and bounded overshoot.
func TestEngine_MemoryLimit(t *testing.T) {
	e, err := New(100, []op.Operation{succMod(t, 100)}, []int64{0}, WithMaxElements(10))
	require.NoError(t, err)

	res, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ReasonMemoryLimit, res.Reason)
	assert.GreaterOrEqual(t, len(res.Elements), 10)
	// succ discovers one element per pass, so overshoot is at most one.
	assert.LessOrEqual(t, len(res.Elements), 11)
}

// TestEngine_CancelledBeforeStart checks a pre-cancelled context.
func TestEngine_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, err := New(100, []op.Operation{succMod(t, 100)}, []int64{0})
	require.NoError(t, err)

	res, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReasonCancelled, res.Reason)
	assert.Equal(t, 0, res.Passes)
	assert.Equal(t, []int64{0}, res.Elements, "seed survives cancellation")
}

// TestEngine_CancelledMidRun cancels from the progress sink after the
// first pass; the run must stop at the next pass boundary with the set
// as of the last completed merge.
func TestEngine_CancelledMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sizeAtCancel int64
	sink := SinkFunc(func(r Report) {
		if r.Pass == 0 {
			sizeAtCancel = r.Size
			cancel()
		}
	})

	e, err := New(1000, []op.Operation{succMod(t, 1000)}, []int64{0}, WithSink(sink))
	require.NoError(t, err)

	res, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReasonCancelled, res.Reason)
	assert.EqualValues(t, sizeAtCancel, len(res.Elements))
}

// TestEngine_OperationErrorAborts checks that a contract violation in
// an operation aborts the run with an error, not a Result.
func TestEngine_OperationErrorAborts(t *testing.T) {
	// The function leaks index 5, outside the declared universe of 3.
	bad, err := op.NewFunc("bad", 1, 3, func(args []int64) int64 { return 5 })
	require.NoError(t, err)

	e, err := New(3, []op.Operation{bad}, []int64{0})
	require.NoError(t, err)

	res, err := e.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, op.IsIndexOutOfRange(err))
}

// TestEngine_CancelledAtCheckpoint cancels in the middle of one large
// pass; the sub-pass checkpoint must observe it, abort without merging,
// and leave the set as of the last completed merge (here, the seed).
func TestEngine_CancelledAtCheckpoint(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel from inside the tenth application, mid-pass.
	var applied atomic.Int64
	add, err := op.NewFunc("add", 2, 10_000, func(args []int64) int64 {
		if applied.Add(1) == 10 {
			cancel()
		}
		return (args[0] + args[1]) % 10_000
	})
	require.NoError(t, err)

	seed := make([]int64, 100)
	for i := range seed {
		seed[i] = int64(i)
	}

	// One pass of 100^2 applications; checkpoint after every one.
	e, err := New(10_000, []op.Operation{add}, seed,
		WithWorkers(1), WithCheckpointInterval(1))
	require.NoError(t, err)

	res, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReasonCancelled, res.Reason)
	assert.Equal(t, 0, res.Passes)
	assert.Equal(t, seed, res.Elements, "staged discoveries are dropped")
	assert.Less(t, applied.Load(), int64(100*100), "cancellation observed mid-pass")
}

// mislabeledOp reports a universe it does not respect: Apply leaks a
// fixed out-of-universe index. It deliberately lacks a Size method, so
// only the engine's own result guard can catch it.
type mislabeledOp struct{ leak int64 }

func (o mislabeledOp) Symbol() string { return "leak" }
func (o mislabeledOp) Arity() int     { return 1 }
func (o mislabeledOp) Apply(args []int64) (int64, error) {
	return o.leak, nil
}

// TestEngine_RejectsMisSizedOperation checks that an operation declared
// over a different universe is a configuration error, caught before any
// pass runs.
func TestEngine_RejectsMisSizedOperation(t *testing.T) {
	succ5 := succMod(t, 5)

	_, err := New(3, []op.Operation{succ5}, []int64{0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acts on 5 elements")
}

// TestEngine_OutOfUniverseResultAborts checks that a result index
// outside the engine's universe aborts the run even when the operation
// does not declare a size, so no out-of-universe index can ever reach
// the discovered set.
func TestEngine_OutOfUniverseResultAborts(t *testing.T) {
	e, err := New(3, []op.Operation{mislabeledOp{leak: 7}}, []int64{0})
	require.NoError(t, err)

	res, err := e.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, op.IsIndexOutOfRange(err))
}

// nullaryLeak is a constant whose value lies outside the universe.
type nullaryLeak struct{ v int64 }

func (o nullaryLeak) Symbol() string { return "c" }
func (o nullaryLeak) Arity() int     { return 0 }

func (o nullaryLeak) Apply(args []int64) (int64, error) { return o.v, nil }

// TestEngine_OutOfUniverseConstantAborts checks the same guard on the
// seed-time constant path.
func TestEngine_OutOfUniverseConstantAborts(t *testing.T) {
	e, err := New(3, []op.Operation{nullaryLeak{v: 9}}, []int64{0})
	require.NoError(t, err)

	res, err := e.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, op.IsIndexOutOfRange(err))
}

// TestEngine_NullaryOperationSeedsConstant checks that constants enter
// the set before the first pass, even with an empty generating set.
func TestEngine_NullaryOperationSeedsConstant(t *testing.T) {
	c, err := op.NewTable("e", 0, 5, []int64{2})
	require.NoError(t, err)

	e, err := New(5, []op.Operation{c, succMod(t, 5)}, nil)
	require.NoError(t, err)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2, 3, 4}, res.Elements)
	assert.Equal(t, ReasonFixpoint, res.Reason)
}

// TestEngine_EmptySeedNoConstants checks the degenerate empty closure.
func TestEngine_EmptySeedNoConstants(t *testing.T) {
	e, err := New(5, []op.Operation{succMod(t, 5)}, nil)
	require.NoError(t, err)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Elements)
	assert.Equal(t, ReasonFixpoint, res.Reason)
	assert.Equal(t, 0, res.Passes)
}

// TestEngine_DuplicateGenerators checks seed deduplication.
func TestEngine_DuplicateGenerators(t *testing.T) {
	e, err := New(3, nil, []int64{1, 1, 1})
	require.NoError(t, err)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, res.Elements)
	assert.Equal(t, ReasonFixpoint, res.Reason)
}

// TestEngine_ConfigurationErrors checks pre-run validation.
func TestEngine_ConfigurationErrors(t *testing.T) {
	_, err := New(0, nil, nil)
	assert.Error(t, err, "empty universe")

	_, err = New(3, nil, []int64{3})
	assert.Error(t, err, "generator out of range")

	_, err = New(3, nil, []int64{-1})
	assert.Error(t, err, "negative generator")
}

// TestEngine_IdempotentReruns checks that a fresh engine over the same
// input reproduces the same result.
func TestEngine_IdempotentReruns(t *testing.T) {
	build := func() *Engine {
		e, err := New(30, []op.Operation{succMod(t, 30)}, []int64{7})
		require.NoError(t, err)
		return e
	}

	r1, err := build().Run(context.Background())
	require.NoError(t, err)
	r2, err := build().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, r1.Elements, r2.Elements)
	assert.Equal(t, r1.Passes, r2.Passes)
	assert.Equal(t, r1.Applications, r2.Applications)
}

// TestResult_Contains checks binary-search membership.
func TestResult_Contains(t *testing.T) {
	r := &Result{Elements: []int64{1, 3, 5, 9}}
	assert.True(t, r.Contains(1))
	assert.True(t, r.Contains(5))
	assert.True(t, r.Contains(9))
	assert.False(t, r.Contains(0))
	assert.False(t, r.Contains(4))
	assert.False(t, r.Contains(10))
}
