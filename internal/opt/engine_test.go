package opt

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func seeded(pop int, seed int64) Config {
	cfg := DefaultConfig()
	cfg.PopulationSize = pop
	cfg.Seed = seed
	return cfg
}

func TestNewRejectsInvalidPopulation(t *testing.T) {
	cs := unitSquare()
	for _, n := range []int{0, -1, -100} {
		e, err := New(cs, seeded(n, 1))
		require.ErrorIs(t, err, ErrInvalidPopulation)
		require.Nil(t, e)
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(Cities{{Name: "lonely"}}, seeded(1, 1))
	require.ErrorIs(t, err, ErrTooFewCities)

	cfg := seeded(1, 1)
	cfg.Operators = []string{"nope"}
	_, err = New(unitSquare(), cfg)
	require.ErrorIs(t, err, ErrUnknownOperator)

	cfg = seeded(1, 1)
	cfg.MaxIterations = -1
	_, err = New(unitSquare(), cfg)
	require.Error(t, err)
}

func TestInitialPopulation(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	cs := randomCities(rng, 25)
	e, err := New(cs, seeded(12, 99))
	require.NoError(t, err)

	pop := e.Population()
	require.Len(t, pop, 12)
	min := pop[0].Distance
	for _, tour := range pop {
		require.NoError(t, ValidatePermutation(tour.Order, len(cs)))
		require.InDelta(t, NewTour(cs, tour.Order).Distance, tour.Distance, 1e-9)
		if tour.Distance < min {
			min = tour.Distance
		}
	}
	require.Equal(t, min, e.Best().Distance)
	require.Equal(t, int64(99), e.Config().Seed)
}

func TestStepNeverWorsensSampledMember(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	cs := randomCities(rng, 40)
	e, err := New(cs, seeded(8, 5))
	require.NoError(t, err)

	for i := 0; i < 500; i++ {
		before := e.Population()
		res := e.Step()
		after := e.Population()

		require.Equal(t, before[res.Index].Distance, res.Previous)
		require.LessOrEqual(t, after[res.Index].Distance, before[res.Index].Distance)
		require.Equal(t, res.Replaced, res.Candidate.Distance < res.Previous)
		for j := range after {
			if j != res.Index {
				require.Equal(t, before[j].Distance, after[j].Distance)
			}
		}
		require.NoError(t, ValidatePermutation(after[res.Index].Order, len(cs)))
	}
	m := e.Metrics()
	require.Equal(t, 500, m.Iterations)
	wins := 0
	for _, w := range m.OperatorWins {
		wins += w
	}
	require.Equal(t, m.Replacements, wins)
}

func TestRunReportsNonIncreasingBest(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	cs := randomCities(rng, 60)
	cfg := seeded(10, 21)
	cfg.MaxIterations = 3000
	e, err := New(cs, cfg)
	require.NoError(t, err)
	initial := e.Best().Distance

	var events []Improvement
	res := e.Run(context.Background(), ReporterFunc(func(imp Improvement) { events = append(events, imp) }))

	require.Equal(t, StopMaxIterations, res.Reason)
	require.Equal(t, 3000, res.Iterations)
	require.Len(t, events, res.Improvements)
	prev := initial
	var prevElapsed time.Duration
	for _, ev := range events {
		require.Less(t, ev.Distance, prev)
		require.GreaterOrEqual(t, ev.Elapsed, prevElapsed)
		require.Equal(t, ev.Distance, ev.Tour.Distance)
		prev, prevElapsed = ev.Distance, ev.Elapsed
	}
	require.Equal(t, prev, res.Best.Distance)
}

func TestUnitSquareConverges(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		cfg := seeded(1, seed)
		cfg.StallIterations = 200
		e, err := New(unitSquare(), cfg)
		require.NoError(t, err)
		res := e.Run(context.Background(), ReporterFunc(func(imp Improvement) {
			require.GreaterOrEqual(t, imp.Distance, 4.0)
		}))
		require.Equal(t, 4.0, res.Best.Distance, "seed %d", seed)
		require.GreaterOrEqual(t, res.Best.Distance, 4.0)
	}
}

func TestUnitSquareFarthestFirstCannotClose(t *testing.T) {
	cfg := seeded(1, 3)
	cfg.HalfOrder = FarthestFirst
	cfg.MaxIterations = 300
	res, err := Solve(context.Background(), unitSquare(), cfg, nil)
	require.NoError(t, err)
	require.Greater(t, res.Best.Distance, 4.5)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Solve(ctx, unitSquare(), seeded(3, 1), nil)
	require.NoError(t, err)
	require.Equal(t, StopCancelled, res.Reason)
	require.Zero(t, res.Iterations)
	require.NoError(t, ValidatePermutation(res.Best.Order, 4))
}

func TestRunStopsOnCancelMidway(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	cs := randomCities(rng, 30)
	ctx, cancel := context.WithCancel(context.Background())
	e, err := New(cs, seeded(4, 2))
	require.NoError(t, err)
	e.Observer = observerFunc(func(r StepResult) {
		if r.Iteration == 250 {
			cancel()
		}
	})
	res := e.Run(ctx, nil)
	require.Equal(t, StopCancelled, res.Reason)
	require.Equal(t, 250, res.Iterations)
}

func TestRunTimeBudget(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	cfg := seeded(4, 2)
	cfg.TimeBudget = 30 * time.Millisecond
	res, err := Solve(context.Background(), randomCities(rng, 20), cfg, nil)
	require.NoError(t, err)
	require.Equal(t, StopTimeBudget, res.Reason)
	require.GreaterOrEqual(t, res.Elapsed, 30*time.Millisecond)
}

func TestRunStalls(t *testing.T) {
	cfg := seeded(1, 7)
	cfg.StallIterations = 50
	res, err := Solve(context.Background(), Cities{{X: 0}, {X: 1}}, cfg, nil)
	require.NoError(t, err)
	require.Equal(t, StopStalled, res.Reason)
	require.Equal(t, 50, res.Iterations)
	require.Equal(t, 2.0, res.Best.Distance)
}

func TestDeterministicReplay(t *testing.T) {
	rng := rand.New(rand.NewSource(77))
	cs := randomCities(rng, 35)
	for _, parallel := range []bool{false, true} {
		run := func() ([]float64, Result) {
			cfg := seeded(6, 1234)
			cfg.MaxIterations = 800
			cfg.Parallel = parallel
			var ds []float64
			res, err := Solve(context.Background(), cs, cfg, ReporterFunc(func(imp Improvement) {
				ds = append(ds, imp.Distance)
			}))
			require.NoError(t, err)
			return ds, res
		}
		d1, r1 := run()
		d2, r2 := run()
		require.Equal(t, d1, d2, "parallel=%v", parallel)
		require.Equal(t, r1.Best.Order, r2.Best.Order, "parallel=%v", parallel)
	}
}

func TestParallelKeepsInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	cs := randomCities(rng, 45)
	cfg := seeded(5, 9)
	cfg.Parallel = true
	cfg.Operators = OperatorNames()
	e, err := New(cs, cfg)
	require.NoError(t, err)
	for i := 0; i < 300; i++ {
		prev := e.Population()
		res := e.Step()
		cur := e.Population()
		require.LessOrEqual(t, cur[res.Index].Distance, prev[res.Index].Distance)
		require.NoError(t, ValidatePermutation(cur[res.Index].Order, len(cs)))
	}
}

func TestStats(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	e, err := New(randomCities(rng, 15), seeded(9, 4))
	require.NoError(t, err)
	s := e.Stats()
	require.Equal(t, 9, s.Size)
	require.LessOrEqual(t, s.Min, s.Mean)
	require.LessOrEqual(t, s.Mean, s.Max)
	require.Equal(t, e.Best().Distance, s.Min)

	one, err := New(unitSquare(), seeded(1, 4))
	require.NoError(t, err)
	require.Zero(t, one.Stats().StdDev)
}

func TestMetricsStore(t *testing.T) {
	RecordMetrics("run-1", Metrics{Iterations: 3, OperatorWins: map[string]int{MirrorSwap: 1}})
	m, ok := GetMetrics("run-1")
	require.True(t, ok)
	require.Equal(t, 3, m.Iterations)
	m.OperatorWins[MirrorSwap] = 10
	again, _ := GetMetrics("run-1")
	require.Equal(t, 1, again.OperatorWins[MirrorSwap])
	DropMetrics("run-1")
	_, ok = GetMetrics("run-1")
	require.False(t, ok)
}

type observerFunc func(StepResult)

func (f observerFunc) Iteration(r StepResult) { f(r) }
