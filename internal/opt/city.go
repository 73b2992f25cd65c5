package opt

import (
	"errors"
	"fmt"
	"math"
)

// MinCities is the smallest city set the engine accepts. Below it the
// half-split operators have no index to draw from.
const MinCities = 2

var (
	ErrNonFiniteCoordinate = errors.New("coordinate must be finite")
	ErrTooFewCities        = fmt.Errorf("need at least %d cities", MinCities)
)

// City is an immutable point of the problem. Name is only carried for I/O.
type City struct {
	Name string
	X, Y float64
}

// NewCity builds a City, rejecting NaN and infinite coordinates.
func NewCity(name string, x, y float64) (City, error) {
	if !finite(x) || !finite(y) {
		return City{}, fmt.Errorf("city %q (%v, %v): %w", name, x, y, ErrNonFiniteCoordinate)
	}
	return City{Name: name, X: x, Y: y}, nil
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b City) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Cities is the process-wide city set. Tours refer to it by index.
type Cities []City

// Validate checks the set is large enough and every coordinate is finite.
func (cs Cities) Validate() error {
	if len(cs) < MinCities {
		return fmt.Errorf("got %d: %w", len(cs), ErrTooFewCities)
	}
	for i, c := range cs {
		if !finite(c.X) || !finite(c.Y) {
			return fmt.Errorf("city %d %q: %w", i, c.Name, ErrNonFiniteCoordinate)
		}
	}
	return nil
}

// Indices returns the identity ordering 0..n-1.
func (cs Cities) Indices() []int {
	out := make([]int, len(cs))
	for i := range out {
		out[i] = i
	}
	return out
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
