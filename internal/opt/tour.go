package opt

import (
	"errors"
	"fmt"
)

var ErrNotPermutation = errors.New("order is not a permutation of the city set")

// Tour is a closed cycle over every city. Order holds indices into Cities.
// Distance is always derived from Order by NewTour.
type Tour struct {
	Order    []int
	Distance float64
}

// NewTour takes ownership of order and computes its closed-cycle distance.
func NewTour(cities Cities, order []int) Tour {
	return Tour{Order: order, Distance: cycleDistance(cities, order)}
}

// cycleDistance sums consecutive edges plus the wrap-around edge.
func cycleDistance(cities Cities, order []int) float64 {
	n := len(order)
	if n < 2 {
		return 0
	}
	total := Distance(cities[order[n-1]], cities[order[0]])
	for i := 0; i < n-1; i++ {
		total += Distance(cities[order[i]], cities[order[i+1]])
	}
	return total
}

// Cities resolves the tour into the cities it visits, in order.
func (t Tour) Cities(cities Cities) []City {
	out := make([]City, len(t.Order))
	for i, idx := range t.Order {
		out[i] = cities[idx]
	}
	return out
}

// Names returns the city names in tour order.
func (t Tour) Names(cities Cities) []string {
	out := make([]string, len(t.Order))
	for i, idx := range t.Order {
		out[i] = cities[idx].Name
	}
	return out
}

// Clone returns a tour with its own copy of Order.
func (t Tour) Clone() Tour {
	return Tour{Order: append([]int(nil), t.Order...), Distance: t.Distance}
}

// ValidatePermutation reports whether order visits each of 0..n-1 exactly once.
func ValidatePermutation(order []int, n int) error {
	if len(order) != n {
		return fmt.Errorf("length %d, want %d: %w", len(order), n, ErrNotPermutation)
	}
	seen := make([]bool, n)
	for _, v := range order {
		if v < 0 || v >= n || seen[v] {
			return fmt.Errorf("index %d: %w", v, ErrNotPermutation)
		}
		seen[v] = true
	}
	return nil
}
