package opt

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConstructKeepsPermutationAndInput(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for n := 2; n < 50; n++ {
		cs := randomCities(rng, n)
		order := rng.Perm(n)
		before := slices.Clone(order)
		for _, how := range []HalfOrder{NearestFirst, FarthestFirst} {
			tour := Construct(cs, order, how)
			require.NoError(t, ValidatePermutation(tour.Order, n))
			require.Equal(t, before, order, "input must not be reordered")
			require.InDelta(t, NewTour(cs, slices.Clone(tour.Order)).Distance, tour.Distance, 1e-9)
		}
	}
}

func TestConstructSortsHalves(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	cs := randomCities(rng, 21)
	order := rng.Perm(len(cs))
	half := len(order) / 2

	tour := Construct(cs, order, NearestFirst)
	h1, h2 := tour.Order[:half], tour.Order[half:]

	require.Equal(t, order[0], h1[0], "anchor stays first")
	require.ElementsMatch(t, order[:half], h1)
	require.ElementsMatch(t, order[half:], h2)

	anchor := cs[order[0]]
	for i := 1; i < len(h1); i++ {
		require.LessOrEqual(t, Distance(cs[h1[i-1]], anchor), Distance(cs[h1[i]], anchor))
	}
	anchor2 := cs[h1[len(h1)-1]]
	for i := 1; i < len(h2); i++ {
		require.LessOrEqual(t, Distance(cs[h2[i-1]], anchor2), Distance(cs[h2[i]], anchor2))
	}

	far := Construct(cs, order, FarthestFirst)
	fh2 := far.Order[half:]
	for i := 1; i < len(fh2); i++ {
		require.GreaterOrEqual(t, Distance(cs[fh2[i-1]], anchor2), Distance(cs[fh2[i]], anchor2))
	}
}

func TestConstructStableOnTies(t *testing.T) {
	// b, c, d are all at distance 1 from a; their relative order must survive.
	cs := Cities{{Name: "a"}, {Name: "b", X: 1}, {Name: "c", Y: 1}, {Name: "d", X: -1}, {Name: "e", Y: -1}, {Name: "f", X: 1, Y: 1}}
	tour := Construct(cs, []int{0, 3, 1, 2, 4, 5}, NearestFirst)
	require.Equal(t, []int{0, 3, 1}, tour.Order[:3])
}

func TestConstructUnitSquare(t *testing.T) {
	cs := unitSquare()
	// adjacent first half closes into the square
	require.Equal(t, 4.0, Construct(cs, []int{0, 1, 3, 2}, NearestFirst).Distance)
	require.Equal(t, []int{0, 1, 2, 3}, Construct(cs, []int{0, 1, 3, 2}, NearestFirst).Order)
	// farthest-first walks a diagonal after the first half
	require.Greater(t, Construct(cs, []int{0, 1, 3, 2}, FarthestFirst).Distance, 4.0)
}

func TestParseHalfOrder(t *testing.T) {
	h, err := ParseHalfOrder("")
	require.NoError(t, err)
	require.Equal(t, NearestFirst, h)
	h, err = ParseHalfOrder("Farthest-First")
	require.NoError(t, err)
	require.Equal(t, FarthestFirst, h)
	_, err = ParseHalfOrder("sideways")
	require.Error(t, err)

	var v HalfOrder
	require.NoError(t, v.UnmarshalText([]byte("desc")))
	require.Equal(t, "farthest-first", v.String())
}
