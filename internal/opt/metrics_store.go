package opt

import (
	"maps"
	"sync"
)

// Metrics are per-engine counters. OperatorWins counts, per operator, the
// iterations whose winning candidate replaced a population member.
type Metrics struct {
	Iterations   int            `json:"iterations"`
	Improvements int            `json:"improvements"`
	Replacements int            `json:"replacements"`
	InitialBest  float64        `json:"initialBest"`
	BestDistance float64        `json:"bestDistance"`
	OperatorWins map[string]int `json:"operatorWins"`
}

// Metrics returns a copy of the engine counters.
func (e *Engine) Metrics() Metrics {
	m := e.metrics
	m.OperatorWins = maps.Clone(e.metrics.OperatorWins)
	return m
}

var (
	mu    sync.Mutex
	store = map[string]Metrics{}
)

// RecordMetrics stores the latest metrics snapshot for a run.
func RecordMetrics(runID string, m Metrics) {
	m.OperatorWins = maps.Clone(m.OperatorWins)
	mu.Lock()
	store[runID] = m
	mu.Unlock()
}

// GetMetrics returns the last snapshot recorded for a run.
func GetMetrics(runID string) (Metrics, bool) {
	mu.Lock()
	defer mu.Unlock()
	m, ok := store[runID]
	if ok {
		m.OperatorWins = maps.Clone(m.OperatorWins)
	}
	return m, ok
}

// DropMetrics forgets a run.
func DropMetrics(runID string) {
	mu.Lock()
	delete(store, runID)
	mu.Unlock()
}
