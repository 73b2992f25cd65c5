package opt

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// HalfOrder selects how the second half is arranged relative to the last city
// of the first half.
type HalfOrder int

const (
	// NearestFirst sorts the second half by ascending distance, so it starts
	// next to where the first half ends.
	NearestFirst HalfOrder = iota
	// FarthestFirst sorts the second half by descending distance.
	FarthestFirst
)

func (h HalfOrder) String() string {
	switch h {
	case FarthestFirst:
		return "farthest-first"
	default:
		return "nearest-first"
	}
}

// ParseHalfOrder accepts the names produced by String. Empty means NearestFirst.
func ParseHalfOrder(s string) (HalfOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nearest-first", "nearest", "asc":
		return NearestFirst, nil
	case "farthest-first", "farthest", "desc":
		return FarthestFirst, nil
	}
	return NearestFirst, fmt.Errorf("unknown half order %q", s)
}

func (h HalfOrder) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *HalfOrder) UnmarshalText(b []byte) error {
	v, err := ParseHalfOrder(string(b))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// Construct turns an arbitrary ordering into a Tour with the split-sort
// heuristic: the first half is sorted by distance to order[0], the second half
// by distance to the last city of the sorted first half. Both sorts are stable.
// order is not modified.
func Construct(cities Cities, order []int, how HalfOrder) Tour {
	out := append([]int(nil), order...)
	n := len(out)
	half := n / 2
	if half == 0 {
		return NewTour(cities, out)
	}
	h1, h2 := out[:half], out[half:]

	sortByDistance(cities, h1, cities[out[0]], false)
	sortByDistance(cities, h2, cities[h1[half-1]], how == FarthestFirst)

	return NewTour(cities, out)
}

type keyed struct {
	idx int
	d   float64
}

// sortByDistance stable-sorts part by distance to anchor. Keys are computed
// once per element.
func sortByDistance(cities Cities, part []int, anchor City, desc bool) {
	ks := make([]keyed, len(part))
	for i, idx := range part {
		ks[i] = keyed{idx: idx, d: Distance(cities[idx], anchor)}
	}
	slices.SortStableFunc(ks, func(a, b keyed) int {
		if desc {
			return cmp.Compare(b.d, a.d)
		}
		return cmp.Compare(a.d, b.d)
	})
	for i, k := range ks {
		part[i] = k.idx
	}
}
