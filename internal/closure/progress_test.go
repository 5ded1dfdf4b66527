package closure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTracker_CountersAndReport checks the basic counter flow across a
// pass.
func TestTracker_CountersAndReport(t *testing.T) {
	tr := NewTracker()
	assert.Zero(t, tr.Done())

	tr.BeginPass(100)
	tr.Record(40)
	tr.Record(60)
	assert.EqualValues(t, 100, tr.Done())

	r := tr.EndPass(0, 7, 12, 0)
	assert.Equal(t, 0, r.Pass)
	assert.EqualValues(t, 7, r.Found)
	assert.EqualValues(t, 12, r.Size)
	assert.EqualValues(t, 100, r.Applications)
	assert.EqualValues(t, 100, r.TotalApplications)
	assert.GreaterOrEqual(t, r.Elapsed, time.Duration(0))
	assert.Zero(t, r.Remaining, "no next pass projected")
}

// TestTracker_SecondPassAccumulates checks cumulative totals.
func TestTracker_SecondPassAccumulates(t *testing.T) {
	tr := NewTracker()

	tr.BeginPass(10)
	tr.Record(10)
	tr.EndPass(0, 1, 2, 20)

	tr.BeginPass(20)
	tr.Record(20)
	r := tr.EndPass(1, 2, 4, 0)

	assert.EqualValues(t, 20, r.Applications)
	assert.EqualValues(t, 30, r.TotalApplications)
}

// TestTracker_EstimatedRemaining checks the mid-pass projection: no
// estimate before any pass completes, a proportional one afterwards.
func TestTracker_EstimatedRemaining(t *testing.T) {
	tr := NewTracker()
	assert.Zero(t, tr.EstimatedRemaining())

	tr.BeginPass(50)
	tr.Record(50)
	time.Sleep(2 * time.Millisecond) // give the pass a measurable cost
	tr.EndPass(0, 5, 10, 100)

	tr.BeginPass(100)
	tr.Record(25)
	remaining := tr.EstimatedRemaining()
	assert.GreaterOrEqual(t, remaining, time.Duration(0))

	tr.Record(75)
	assert.Zero(t, tr.EstimatedRemaining(), "pass budget consumed")
}

// TestTracker_RemainingUsesNextPassProjection checks that the pass
// report projects the following pass from the smoothed cost.
func TestTracker_RemainingUsesNextPassProjection(t *testing.T) {
	tr := NewTracker()

	tr.BeginPass(10)
	tr.Record(10)
	time.Sleep(2 * time.Millisecond)
	r := tr.EndPass(0, 1, 2, 1000)

	require.Positive(t, r.Applications)
	// With a measurable per-application cost, a 1000-application next
	// pass must project a positive remaining duration.
	if r.Elapsed >= time.Millisecond {
		assert.Positive(t, r.Remaining)
	}
}

// TestSinkFunc adapts a function to the Sink interface.
func TestSinkFunc(t *testing.T) {
	var got Report
	s := SinkFunc(func(r Report) { got = r })
	s.PassComplete(Report{Pass: 3, Found: 1})
	assert.Equal(t, 3, got.Pass)
	assert.EqualValues(t, 1, got.Found)
}
