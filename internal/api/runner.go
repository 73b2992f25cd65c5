package api

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kayky-cas/romaria-da-vovo/internal/metrics"
	"github.com/kayky-cas/romaria-da-vovo/internal/model"
	"github.com/kayky-cas/romaria-da-vovo/internal/opt"
	"github.com/kayky-cas/romaria-da-vovo/internal/store"
	"github.com/kayky-cas/romaria-da-vovo/internal/webhooks"
)

var (
	ErrTooManyRuns   = errors.New("too many active runs")
	ErrRunNotActive  = errors.New("run is not active")
	errShuttingDown  = errors.New("runner is shutting down")
	defaultRunBudget = 5 * time.Minute
)

// RunManager executes optimizer runs in background goroutines, one engine
// per run. Everything a handler reads is copied out under mu.
type RunManager struct {
	Store  store.Store
	Broker EventBroker
	Pub    *webhooks.Publisher
	// MaxActive caps concurrently executing runs; 0 means unlimited.
	MaxActive int
	// DefaultBudget applies to runs with no stopping budget of their own so
	// the service never runs an engine forever by accident.
	DefaultBudget time.Duration
	// KeepFinished bounds how many ended runs keep their stats and engine
	// metrics in memory; older ones only have the stored record.
	KeepFinished int

	mu       sync.Mutex
	active   map[string]*activeRun
	finished map[string]opt.PopulationStats // final population stats by run id
	order    []string                       // finished ids, oldest first
	closed   bool
	wg       sync.WaitGroup
	persist  time.Duration // minimum gap between best-tour writes to the store
}

type activeRun struct {
	cancel     context.CancelFunc
	cancelled  atomic.Bool
	iterations atomic.Int64

	mu    sync.Mutex
	stats opt.PopulationStats
}

func NewRunManager(s store.Store, b EventBroker, pub *webhooks.Publisher) *RunManager {
	return &RunManager{
		Store:         s,
		Broker:        b,
		Pub:           pub,
		DefaultBudget: defaultRunBudget,
		KeepFinished:  1000,
		active:        map[string]*activeRun{},
		finished:      map[string]opt.PopulationStats{},
		persist:       250 * time.Millisecond,
	}
}

// Start persists a new run record and launches its engine. The returned run
// carries the resolved seed so the caller can replay it.
func (m *RunManager) Start(ctx context.Context, name string, cities opt.Cities, cfg opt.Config, skipped int) (model.Run, error) {
	if cfg.MaxIterations == 0 && cfg.TimeBudget == 0 && cfg.StallIterations == 0 {
		cfg.TimeBudget = m.DefaultBudget
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return model.Run{}, errShuttingDown
	}
	if m.MaxActive > 0 && len(m.active) >= m.MaxActive {
		m.mu.Unlock()
		return model.Run{}, ErrTooManyRuns
	}
	// reserve the slot before the engine exists
	id := uuid.New().String()
	ar := &activeRun{}
	m.active[id] = ar
	m.wg.Add(1)
	m.mu.Unlock()

	eng, err := opt.New(cities, cfg)
	if err != nil {
		m.release(id)
		m.wg.Done()
		return model.Run{}, err
	}
	best := eng.Best()
	run := model.Run{
		ID:           id,
		Name:         name,
		Status:       model.RunRunning,
		CityCount:    len(cities),
		Skipped:      skipped,
		Config:       runConfigOf(eng.Config()),
		Seed:         eng.Config().Seed,
		BestDistance: best.Distance,
		BestTour:     best.Names(cities),
		CreatedAt:    time.Now().UTC(),
	}
	if run, err = m.Store.CreateRun(ctx, run); err != nil {
		m.release(id)
		m.wg.Done()
		return model.Run{}, err
	}
	stats := eng.Stats()
	ar.mu.Lock()
	ar.stats = stats
	ar.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	ar.cancel = cancel
	if m.closed {
		ar.cancelled.Store(true)
		cancel()
	}
	m.mu.Unlock()
	metrics.ActiveRuns.Inc()
	go m.execute(runCtx, eng, run, ar)
	log.Printf("run %s started: %d cities, population %d, seed %d", run.ID, run.CityCount, run.Config.PopulationSize, run.Seed)
	return run, nil
}

func (m *RunManager) release(id string) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
}

type iterationObserver struct {
	metrics.RunObserver
	ar *activeRun
}

func (o iterationObserver) Iteration(res opt.StepResult) {
	o.RunObserver.Iteration(res)
	o.ar.iterations.Store(int64(res.Iteration))
}

func (m *RunManager) execute(ctx context.Context, eng *opt.Engine, run model.Run, ar *activeRun) {
	defer m.wg.Done()
	defer metrics.ActiveRuns.Dec()

	obs := iterationObserver{RunObserver: metrics.RunObserver{RunID: run.ID}, ar: ar}
	eng.Observer = obs
	defer obs.Forget()
	cities := eng.Cities()
	seq := 0
	var lastWrite time.Time

	res := eng.Run(ctx, opt.ReporterFunc(func(imp opt.Improvement) {
		seq++
		bg := context.Background()
		rec := model.Improvement{
			RunID:     run.ID,
			Seq:       seq,
			Distance:  imp.Distance,
			ElapsedMs: imp.Elapsed.Milliseconds(),
			Iteration: imp.Iteration,
			Operator:  imp.Operator,
			At:        time.Now().UTC(),
		}
		if err := m.Store.AppendImprovement(bg, rec); err != nil {
			log.Printf("run %s: append improvement: %v", run.ID, err)
		}
		stats := eng.Stats()
		ar.mu.Lock()
		ar.stats = stats
		ar.mu.Unlock()

		run.BestDistance = imp.Distance
		run.BestTour = imp.Tour.Names(cities)
		run.Iterations = imp.Iteration
		run.Improvements = seq
		if time.Since(lastWrite) >= m.persist {
			lastWrite = time.Now()
			if err := m.Store.UpdateRun(bg, run); err != nil {
				log.Printf("run %s: update: %v", run.ID, err)
			}
		}
		opt.RecordMetrics(run.ID, eng.Metrics())

		data := map[string]any{
			"runId":     run.ID,
			"seq":       seq,
			"distance":  imp.Distance,
			"elapsedMs": rec.ElapsedMs,
			"iteration": imp.Iteration,
			"operator":  imp.Operator,
		}
		m.Broker.Publish(run.ID, Event{Type: model.EventRunImproved, Data: data})
		if m.Pub != nil {
			m.Pub.Emit(bg, model.EventRunImproved, data)
		}
	}))

	finished := time.Now().UTC()
	run.Status = model.RunFinished
	if ar.cancelled.Load() {
		run.Status = model.RunCancelled
	}
	run.BestDistance = res.Best.Distance
	run.BestTour = res.Best.Names(cities)
	run.Iterations = res.Iterations
	run.Improvements = res.Improvements
	run.StopReason = string(res.Reason)
	run.FinishedAt = &finished
	final := eng.Stats()
	ar.mu.Lock()
	ar.stats = final
	ar.mu.Unlock()

	bg := context.Background()
	if err := m.Store.UpdateRun(bg, run); err != nil {
		log.Printf("run %s: final update: %v", run.ID, err)
	}
	opt.RecordMetrics(run.ID, eng.Metrics())
	m.mu.Lock()
	delete(m.active, run.ID)
	m.finished[run.ID] = final
	m.order = append(m.order, run.ID)
	for m.KeepFinished > 0 && len(m.order) > m.KeepFinished {
		old := m.order[0]
		m.order = m.order[1:]
		delete(m.finished, old)
		opt.DropMetrics(old)
	}
	m.mu.Unlock()
	ar.cancel()

	data := map[string]any{
		"runId":        run.ID,
		"status":       run.Status,
		"stopReason":   run.StopReason,
		"distance":     run.BestDistance,
		"iterations":   run.Iterations,
		"improvements": run.Improvements,
		"elapsedMs":    res.Elapsed.Milliseconds(),
	}
	m.Broker.Publish(run.ID, Event{Type: model.EventRunFinished, Data: data})
	if m.Pub != nil {
		m.Pub.Emit(bg, model.EventRunFinished, data)
	}
	log.Printf("run %s %s (%s): best %v after %d iterations in %v", run.ID, run.Status, run.StopReason, run.BestDistance, run.Iterations, res.Elapsed)
}

// Cancel stops an active run. The engine returns its best tour and the run
// is recorded as cancelled.
func (m *RunManager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ar, ok := m.active[id]
	if !ok || ar.cancel == nil {
		return ErrRunNotActive
	}
	ar.cancelled.Store(true)
	ar.cancel()
	return nil
}

// Snapshot returns the live iteration count and population statistics of a
// run this process executed. active is false once the run has ended; then
// only stats is meaningful.
func (m *RunManager) Snapshot(id string) (iterations int, stats opt.PopulationStats, active, ok bool) {
	m.mu.Lock()
	ar, isActive := m.active[id]
	final, isDone := m.finished[id]
	m.mu.Unlock()
	switch {
	case isActive:
		ar.mu.Lock()
		defer ar.mu.Unlock()
		return int(ar.iterations.Load()), ar.stats, true, true
	case isDone:
		return 0, final, false, true
	}
	return 0, opt.PopulationStats{}, false, false
}

// Active returns the number of executing runs.
func (m *RunManager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Shutdown cancels every run and waits for them to be recorded or for ctx
// to expire.
func (m *RunManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	for _, ar := range m.active {
		if ar.cancel != nil {
			ar.cancelled.Store(true)
			ar.cancel()
		}
	}
	m.mu.Unlock()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
