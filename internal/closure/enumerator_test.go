package closure

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bruteTuples builds the expected tuple set: every arity-length tuple
// over elems with at least one coordinate from the new suffix.
func bruteTuples(elems []int64, old, arity int) map[string]bool {
	want := make(map[string]bool)
	tuple := make([]int64, arity)
	var rec func(pos int, hasNew bool)
	rec = func(pos int, hasNew bool) {
		if pos == arity {
			if hasNew {
				want[fmt.Sprint(tuple)] = true
			}
			return
		}
		for i, v := range elems {
			tuple[pos] = v
			rec(pos+1, hasNew || i >= old)
		}
	}
	rec(0, false)
	return want
}

// TestEnumerator_CoversEligibleTuplesOnce checks that every tuple with
// a new coordinate is yielded exactly once, for a range of shapes.
func TestEnumerator_CoversEligibleTuplesOnce(t *testing.T) {
	cases := []struct {
		elems []int64
		old   int
		arity int
	}{
		{[]int64{7}, 0, 1},
		{[]int64{7, 8, 9}, 0, 2},
		{[]int64{7, 8, 9}, 1, 2},
		{[]int64{7, 8, 9}, 2, 2},
		{[]int64{7, 8, 9, 10}, 2, 3},
		{[]int64{5, 6}, 1, 1},
		{[]int64{5, 6, 7, 8, 9}, 3, 2},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("total=%d_old=%d_arity=%d", len(tc.elems), tc.old, tc.arity), func(t *testing.T) {
			en, err := NewEnumerator(tc.elems, tc.old, tc.arity)
			require.NoError(t, err)

			count, err := en.Count()
			require.NoError(t, err)

			want := bruteTuples(tc.elems, tc.old, tc.arity)
			require.EqualValues(t, len(want), count)

			got := make(map[string]bool)
			n := int64(0)
			for {
				tuple, ok := en.Next()
				if !ok {
					break
				}
				key := fmt.Sprint(tuple)
				assert.False(t, got[key], "tuple %s yielded twice", key)
				got[key] = true
				n++
			}
			assert.Equal(t, count, n)
			assert.Equal(t, want, got)
		})
	}
}

// TestEnumerator_DeterministicOrder checks that two enumerators over
// the same snapshot yield the identical sequence.
func TestEnumerator_DeterministicOrder(t *testing.T) {
	elems := []int64{3, 1, 4, 1, 5}
	a, err := NewEnumerator(elems, 2, 2)
	require.NoError(t, err)
	b, err := NewEnumerator(elems, 2, 2)
	require.NoError(t, err)

	for {
		ta, oka := a.Next()
		tb, okb := b.Next()
		require.Equal(t, oka, okb)
		if !oka {
			break
		}
		assert.Equal(t, ta, tb)
	}
}

// TestEnumerator_SeekMatchesSequential checks that seeking to rank k
// continues the sequence exactly where a sequential walk would be.
func TestEnumerator_SeekMatchesSequential(t *testing.T) {
	elems := []int64{10, 20, 30, 40}
	const old, arity = 2, 2

	full, err := NewEnumerator(elems, old, arity)
	require.NoError(t, err)
	count, err := full.Count()
	require.NoError(t, err)

	var sequence [][]int64
	for {
		tuple, ok := full.Next()
		if !ok {
			break
		}
		sequence = append(sequence, append([]int64(nil), tuple...))
	}
	require.Len(t, sequence, int(count))

	for k := int64(0); k <= count; k++ {
		en, err := NewEnumerator(elems, old, arity)
		require.NoError(t, err)
		require.NoError(t, en.Seek(k))

		for i := k; i < count; i++ {
			tuple, ok := en.Next()
			require.True(t, ok, "seek(%d): exhausted at %d", k, i)
			assert.Equal(t, sequence[i], tuple, "seek(%d) rank %d", k, i)
		}
		_, ok := en.Next()
		assert.False(t, ok, "seek(%d): should be exhausted", k)
	}
}

// TestEnumerator_SeekErrors checks rank bounds.
func TestEnumerator_SeekErrors(t *testing.T) {
	en, err := NewEnumerator([]int64{1, 2}, 1, 1)
	require.NoError(t, err)

	assert.Error(t, en.Seek(-1))
	assert.Error(t, en.Seek(2)) // count is 1
	assert.NoError(t, en.Seek(1))
	_, ok := en.Next()
	assert.False(t, ok)
}

// TestEnumerator_NoNewElements checks that an all-old snapshot yields
// nothing.
func TestEnumerator_NoNewElements(t *testing.T) {
	en, err := NewEnumerator([]int64{1, 2, 3}, 3, 2)
	require.NoError(t, err)

	count, err := en.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	_, ok := en.Next()
	assert.False(t, ok)
}

// TestEnumerator_NullaryYieldsNothing checks the arity-0 convention:
// constants are applied at seed time, not enumerated in passes.
func TestEnumerator_NullaryYieldsNothing(t *testing.T) {
	en, err := NewEnumerator([]int64{1, 2}, 0, 0)
	require.NoError(t, err)

	count, err := en.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	_, ok := en.Next()
	assert.False(t, ok)
}

// TestTupleCount checks the total^a - old^a formula and overflow guard.
func TestTupleCount(t *testing.T) {
	n, err := TupleCount(3, 2, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n) // 9 - 4

	n, err = TupleCount(10, 0, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, n)

	_, err = TupleCount(1 << 31, 0, 3)
	require.Error(t, err)
	assert.True(t, IsTooManyTuples(err))
}

// TestEnumerator_ConstructorErrors checks argument validation.
func TestEnumerator_ConstructorErrors(t *testing.T) {
	_, err := NewEnumerator([]int64{1}, 2, 1)
	assert.Error(t, err)

	_, err = NewEnumerator([]int64{1}, -1, 1)
	assert.Error(t, err)

	_, err = NewEnumerator([]int64{1}, 0, -1)
	assert.Error(t, err)
}
