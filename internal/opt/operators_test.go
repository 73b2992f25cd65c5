package opt

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOperatorsPreservePermutation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ops, err := LookupOperators(OperatorNames())
	require.NoError(t, err)
	for _, op := range ops {
		t.Run(op.Name, func(t *testing.T) {
			for n := 2; n < 30; n++ {
				for trial := 0; trial < 20; trial++ {
					order := rng.Perm(n)
					before := slices.Clone(order)
					out := op.Apply(order, rng)
					require.NoError(t, ValidatePermutation(out, n))
					require.Equal(t, before, order, "input must not be modified")
				}
			}
		})
	}
}

func TestMirrorSwap(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 50; trial++ {
		order := rng.Perm(9)
		out := mirrorSwap(order, rng)
		var diff []int
		for i := range order {
			if order[i] != out[i] {
				diff = append(diff, i)
			}
		}
		require.Len(t, diff, 2)
		require.Equal(t, len(order)-1, diff[0]+diff[1])
		require.Less(t, diff[0], len(order)/2)
	}
}

func TestCrossHalfSwap(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for trial := 0; trial < 50; trial++ {
		order := rng.Perm(10)
		out := crossHalfSwap(order, rng)
		var diff []int
		for i := range order {
			if order[i] != out[i] {
				diff = append(diff, i)
			}
		}
		require.Len(t, diff, 2)
		require.Less(t, diff[0], 5)
		require.GreaterOrEqual(t, diff[1], 5)
	}
}

func TestMoveToEnd(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 50; trial++ {
		order := rng.Perm(11)
		out := moveToEnd(order, rng)
		moved := out[len(out)-1]
		i := slices.Index(order, moved)
		require.Less(t, i, len(order)/2)
		require.Equal(t, slices.Delete(slices.Clone(order), i, i+1), out[:len(out)-1])
	}
}

func TestMoveToStart(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	for _, n := range []int{2, 3, 8, 11} {
		for trial := 0; trial < 50; trial++ {
			order := rng.Perm(n)
			out := moveToStart(order, rng)
			half := n / 2
			moved := out[half-1]
			i := slices.Index(order, moved)
			require.GreaterOrEqual(t, i, half)
			require.Equal(t,
				slices.Delete(slices.Clone(order), i, i+1),
				slices.Delete(slices.Clone(out), half-1, half))
		}
	}
}

func TestSegmentReverse(t *testing.T) {
	require.Equal(t, []int{0, 3, 2, 1, 4}, reverseSegment([]int{0, 1, 2, 3, 4}, 1, 3))
	require.Equal(t, []int{0, 1, 2}, reverseSegment([]int{0, 1, 2}, 1, 1))
}

func TestOperatorDrawCounts(t *testing.T) {
	// the number of draws per operator pins the replay sequence
	counts := map[string]int{MirrorSwap: 1, CrossHalfSwap: 2, MoveToEnd: 1, MoveToStart: 1, SegmentReverse: 2}
	for name, draws := range counts {
		a := rand.New(rand.NewSource(9))
		b := rand.New(rand.NewSource(9))
		ops, err := LookupOperators([]string{name})
		require.NoError(t, err)
		ops[0].Apply([]int{0, 1, 2, 3, 4, 5}, a)
		for i := 0; i < draws; i++ {
			b.Int63()
		}
		require.Equal(t, b.Int63(), a.Int63(), name)
	}
}

func TestLookupOperators(t *testing.T) {
	ops, err := LookupOperators(nil)
	require.NoError(t, err)
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.Name
	}
	require.Equal(t, DefaultOperatorNames, names)

	ops, err = LookupOperators([]string{" Full-Shuffle ", "mirror-swap"})
	require.NoError(t, err)
	require.Equal(t, FullShuffle, ops[0].Name)

	_, err = LookupOperators([]string{"two-opt-star"})
	require.ErrorIs(t, err, ErrUnknownOperator)
}
