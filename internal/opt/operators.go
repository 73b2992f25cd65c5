package opt

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
)

var (
	ErrUnknownOperator = errors.New("unknown operator")
	ErrNoOperators     = errors.New("no operators enabled")
)

// Operator produces a perturbed ordering from an existing one. Apply must not
// modify its input and must return a permutation of it. The result still has
// to go through Construct to become a candidate Tour.
type Operator struct {
	Name  string
	Apply func(order []int, rng *rand.Rand) []int
}

// Operator names.
const (
	MirrorSwap     = "mirror-swap"
	CrossHalfSwap  = "cross-half-swap"
	MoveToEnd      = "move-to-end"
	MoveToStart    = "move-to-start"
	FullShuffle    = "full-shuffle"
	SegmentReverse = "segment-reverse"
)

// DefaultOperatorNames is the canonical operator set in evaluation order.
// Changing the order changes the random draw sequence of an iteration.
var DefaultOperatorNames = []string{MirrorSwap, CrossHalfSwap, MoveToEnd, MoveToStart, FullShuffle}

var operators = map[string]Operator{
	MirrorSwap:     {Name: MirrorSwap, Apply: mirrorSwap},
	CrossHalfSwap:  {Name: CrossHalfSwap, Apply: crossHalfSwap},
	MoveToEnd:      {Name: MoveToEnd, Apply: moveToEnd},
	MoveToStart:    {Name: MoveToStart, Apply: moveToStart},
	FullShuffle:    {Name: FullShuffle, Apply: fullShuffle},
	SegmentReverse: {Name: SegmentReverse, Apply: segmentReverse},
}

// OperatorNames lists every registered operator, canonical set first.
func OperatorNames() []string {
	return append(append([]string(nil), DefaultOperatorNames...), SegmentReverse)
}

// LookupOperators resolves names in the given order. Empty names selects the
// canonical set.
func LookupOperators(names []string) ([]Operator, error) {
	if len(names) == 0 {
		names = DefaultOperatorNames
	}
	out := make([]Operator, 0, len(names))
	for _, n := range names {
		op, ok := operators[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, fmt.Errorf("%q: %w", n, ErrUnknownOperator)
		}
		out = append(out, op)
	}
	if len(out) == 0 {
		return nil, ErrNoOperators
	}
	return out, nil
}

// mirrorSwap swaps i in [0,n/2) with its mirror n-1-i.
func mirrorSwap(order []int, rng *rand.Rand) []int {
	out := append([]int(nil), order...)
	n := len(out)
	i := rng.Intn(n / 2)
	j := n - 1 - i
	out[i], out[j] = out[j], out[i]
	return out
}

// crossHalfSwap swaps a random city of the first half with one of the second.
func crossHalfSwap(order []int, rng *rand.Rand) []int {
	out := append([]int(nil), order...)
	n := len(out)
	half := n / 2
	i := rng.Intn(half)
	j := half + rng.Intn(n-half)
	out[i], out[j] = out[j], out[i]
	return out
}

// moveToEnd removes a city of the first half and appends it.
func moveToEnd(order []int, rng *rand.Rand) []int {
	n := len(order)
	i := rng.Intn(n / 2)
	out := make([]int, 0, n)
	out = append(out, order[:i]...)
	out = append(out, order[i+1:]...)
	return append(out, order[i])
}

// moveToStart removes a city of the second half and inserts it just before
// the midpoint, at n/2-1.
func moveToStart(order []int, rng *rand.Rand) []int {
	n := len(order)
	half := n / 2
	i := half + rng.Intn(n-half)
	moved := order[i]
	rest := make([]int, 0, n-1)
	rest = append(rest, order[:i]...)
	rest = append(rest, order[i+1:]...)
	pos := half - 1
	out := make([]int, 0, n)
	out = append(out, rest[:pos]...)
	out = append(out, moved)
	return append(out, rest[pos:]...)
}

// fullShuffle is the restart operator: a uniform permutation.
func fullShuffle(order []int, rng *rand.Rand) []int {
	out := append([]int(nil), order...)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// segmentReverse reverses order[i..k] for two random positions (a 2-opt move).
func segmentReverse(order []int, rng *rand.Rand) []int {
	n := len(order)
	i, k := rng.Intn(n), rng.Intn(n)
	if i > k {
		i, k = k, i
	}
	return reverseSegment(order, i, k)
}

func reverseSegment(ord []int, i, k int) []int {
	out := make([]int, len(ord))
	copy(out, ord[:i])
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = ord[j]
		pos++
	}
	copy(out[pos:], ord[k+1:])
	return out
}
