package opt

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"
)

var ErrInvalidPopulation = errors.New("population size must be > 0")

// DefaultPopulationSize is used when no size is configured.
const DefaultPopulationSize = 100

// Config selects the operator set, construction strategy and stopping policy.
// Zero budgets mean unlimited; with all of them zero Run only returns when
// its context is cancelled.
type Config struct {
	PopulationSize  int           `yaml:"populationSize"`
	Operators       []string      `yaml:"operators"`
	HalfOrder       HalfOrder     `yaml:"halfOrder"`
	Seed            int64         `yaml:"seed"` // 0 picks a time-based seed
	MaxIterations   int           `yaml:"maxIterations"`
	TimeBudget      time.Duration `yaml:"timeBudget"`
	StallIterations int           `yaml:"stallIterations"` // stop after this many iterations without a new best
	Parallel        bool          `yaml:"parallel"`        // evaluate operators concurrently
}

// DefaultConfig returns the canonical configuration: population 100, the five
// canonical operators, nearest-first construction, no budgets.
func DefaultConfig() Config {
	return Config{
		PopulationSize: DefaultPopulationSize,
		Operators:      append([]string(nil), DefaultOperatorNames...),
	}
}

// Validate checks the preconditions New enforces.
func (c Config) Validate() error {
	if c.PopulationSize <= 0 {
		return fmt.Errorf("got %d: %w", c.PopulationSize, ErrInvalidPopulation)
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("maxIterations must be >= 0")
	}
	if c.TimeBudget < 0 {
		return fmt.Errorf("timeBudget must be >= 0")
	}
	if c.StallIterations < 0 {
		return fmt.Errorf("stallIterations must be >= 0")
	}
	_, err := LookupOperators(c.Operators)
	return err
}

// Improvement is emitted each time the best-known distance drops.
type Improvement struct {
	Distance  float64
	Elapsed   time.Duration
	Iteration int
	Operator  string
	Tour      Tour
}

// Reporter receives improvement events from Run, on Run's goroutine.
type Reporter interface {
	Improved(Improvement)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Improvement)

func (f ReporterFunc) Improved(imp Improvement) { f(imp) }

// Observer sees every iteration. It runs on the engine goroutine and may call
// the engine's read accessors.
type Observer interface {
	Iteration(StepResult)
}

// StepResult describes one steady-state iteration.
type StepResult struct {
	Iteration int
	Index     int     // population slot that was sampled
	Previous  float64 // its distance before the iteration
	Candidate Tour    // best candidate of the iteration
	Operator  string  // operator that produced Candidate
	Replaced  bool
	Improved  bool // Candidate became the new best-known tour
}

// StopReason says why Run returned.
type StopReason string

const (
	StopCancelled     StopReason = "cancelled"
	StopMaxIterations StopReason = "max-iterations"
	StopTimeBudget    StopReason = "time-budget"
	StopStalled       StopReason = "stalled"
)

// Result is the outcome of Run. Best is always set.
type Result struct {
	Best         Tour
	Iterations   int
	Improvements int
	Elapsed      time.Duration
	Reason       StopReason
	Seed         int64
}

// Engine is a population hill climber. It is not safe for concurrent use;
// Run and Step must be called from one goroutine.
type Engine struct {
	cities Cities
	cfg    Config
	ops    []Operator
	rng    *rand.Rand

	pop          []Tour
	best         Tour
	iter         int
	lastImproved int
	metrics      Metrics

	// per-operator streams for parallel evaluation, reseeded every iteration
	workerRng []*rand.Rand

	Observer Observer
}

// New validates cities and cfg and builds the initial population: each member
// is a uniformly shuffled ordering passed through Construct.
func New(cities Cities, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cities.Validate(); err != nil {
		return nil, err
	}
	ops, err := LookupOperators(cfg.Operators)
	if err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	e := &Engine{
		cities:  cities,
		cfg:     cfg,
		ops:     ops,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		pop:     make([]Tour, cfg.PopulationSize),
		metrics: Metrics{OperatorWins: map[string]int{}},
	}
	if cfg.Parallel {
		e.workerRng = make([]*rand.Rand, len(ops))
		for i := range e.workerRng {
			e.workerRng[i] = rand.New(rand.NewSource(1))
		}
	}

	base := cities.Indices()
	for i := range e.pop {
		e.rng.Shuffle(len(base), func(a, b int) { base[a], base[b] = base[b], base[a] })
		e.pop[i] = Construct(cities, base, cfg.HalfOrder)
		if i == 0 || e.pop[i].Distance < e.best.Distance {
			e.best = e.pop[i]
		}
	}
	e.metrics.InitialBest = e.best.Distance
	e.metrics.BestDistance = e.best.Distance
	return e, nil
}

// Config returns the effective configuration, including the resolved seed.
func (e *Engine) Config() Config { return e.cfg }

// Cities returns the city set the engine optimizes over.
func (e *Engine) Cities() Cities { return e.cities }

// Best returns a copy of the best tour seen so far.
func (e *Engine) Best() Tour { return e.best.Clone() }

// Population returns a copy of the current population.
func (e *Engine) Population() []Tour {
	out := make([]Tour, len(e.pop))
	for i, t := range e.pop {
		out[i] = t.Clone()
	}
	return out
}

// Iterations returns the number of completed steady-state iterations.
func (e *Engine) Iterations() int { return e.iter }

// Step runs one steady-state iteration: sample a member, build one candidate
// per operator, keep the best candidate only if it is strictly shorter.
func (e *Engine) Step() StepResult {
	k := e.rng.Intn(len(e.pop))
	cur := e.pop[k]

	var cands []Tour
	if e.cfg.Parallel {
		cands = e.candidatesParallel(cur)
	} else {
		cands = make([]Tour, len(e.ops))
		for i, op := range e.ops {
			cands[i] = Construct(e.cities, op.Apply(cur.Order, e.rng), e.cfg.HalfOrder)
		}
	}

	bi := 0
	for i := 1; i < len(cands); i++ {
		if cands[i].Distance < cands[bi].Distance {
			bi = i
		}
	}
	best := cands[bi]

	e.iter++
	res := StepResult{Iteration: e.iter, Index: k, Previous: cur.Distance, Candidate: best, Operator: e.ops[bi].Name}
	if best.Distance < cur.Distance {
		e.pop[k] = best
		res.Replaced = true
		e.metrics.Replacements++
		e.metrics.OperatorWins[res.Operator]++
	}
	if best.Distance < e.best.Distance {
		e.best = best
		e.lastImproved = e.iter
		res.Improved = true
		e.metrics.Improvements++
		e.metrics.BestDistance = best.Distance
	}
	e.metrics.Iterations = e.iter
	return res
}

// candidatesParallel evaluates each operator on its own goroutine. The master
// rng draws one seed per operator, in operator order, so results stay
// reproducible for a fixed Config.Seed.
func (e *Engine) candidatesParallel(cur Tour) []Tour {
	for i := range e.workerRng {
		e.workerRng[i].Seed(e.rng.Int63())
	}
	cands := make([]Tour, len(e.ops))
	var g errgroup.Group
	for i, op := range e.ops {
		g.Go(func() error {
			cands[i] = Construct(e.cities, op.Apply(cur.Order, e.workerRng[i]), e.cfg.HalfOrder)
			return nil
		})
	}
	_ = g.Wait()
	return cands
}

// Run iterates until the stopping policy or ctx ends it, reporting each new
// best-known distance to rep (which may be nil). Cancellation is a normal
// stop: the best tour found so far is returned.
func (e *Engine) Run(ctx context.Context, rep Reporter) Result {
	start := time.Now()
	firstIter := e.iter
	e.lastImproved = e.iter
	var reason StopReason
	for {
		if reason = e.shouldStop(ctx, start, firstIter); reason != "" {
			break
		}
		res := e.Step()
		if e.Observer != nil {
			e.Observer.Iteration(res)
		}
		if res.Improved && rep != nil {
			rep.Improved(Improvement{
				Distance:  res.Candidate.Distance,
				Elapsed:   time.Since(start),
				Iteration: res.Iteration,
				Operator:  res.Operator,
				Tour:      res.Candidate.Clone(),
			})
		}
	}
	return Result{
		Best:         e.Best(),
		Iterations:   e.iter,
		Improvements: e.metrics.Improvements,
		Elapsed:      time.Since(start),
		Reason:       reason,
		Seed:         e.cfg.Seed,
	}
}

func (e *Engine) shouldStop(ctx context.Context, start time.Time, firstIter int) StopReason {
	if ctx.Err() != nil {
		return StopCancelled
	}
	if e.cfg.MaxIterations > 0 && e.iter-firstIter >= e.cfg.MaxIterations {
		return StopMaxIterations
	}
	if e.cfg.TimeBudget > 0 && time.Since(start) >= e.cfg.TimeBudget {
		return StopTimeBudget
	}
	if e.cfg.StallIterations > 0 && e.iter-e.lastImproved >= e.cfg.StallIterations {
		return StopStalled
	}
	return ""
}
