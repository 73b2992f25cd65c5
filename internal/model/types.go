package model

import "time"

// Run statuses.
const (
	RunRunning   = "running"
	RunFinished  = "finished"
	RunCancelled = "cancelled"
	RunFailed    = "failed"
)

// Webhook / stream event types.
const (
	EventRunImproved = "run.improved"
	EventRunFinished = "run.finished"
)

type CityIn struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// RunConfig is the JSON face of opt.Config. Zero fields fall back to the
// server defaults.
type RunConfig struct {
	PopulationSize  int      `json:"populationSize,omitempty"`
	Operators       []string `json:"operators,omitempty"`
	HalfOrder       string   `json:"halfOrder,omitempty"`
	Seed            int64    `json:"seed,omitempty"`
	MaxIterations   int      `json:"maxIterations,omitempty"`
	TimeBudgetMs    int64    `json:"timeBudgetMs,omitempty"`
	StallIterations int      `json:"stallIterations,omitempty"`
	Parallel        bool     `json:"parallel,omitempty"`
}

// RunRequest starts a run. Cities may be given as JSON or as Text in the
// line format read by the CLI (header line, then "<x> <y> <name>").
type RunRequest struct {
	Name   string     `json:"name,omitempty"`
	Cities []CityIn   `json:"cities,omitempty"`
	Text   string     `json:"text,omitempty"`
	Config *RunConfig `json:"config,omitempty"`
}

type Run struct {
	ID           string     `json:"id"`
	Name         string     `json:"name,omitempty"`
	Status       string     `json:"status"`
	CityCount    int        `json:"cityCount"`
	Skipped      int        `json:"skipped,omitempty"`
	Config       RunConfig  `json:"config"`
	Seed         int64      `json:"seed"`
	BestDistance float64    `json:"bestDistance"`
	BestTour     []string   `json:"bestTour,omitempty"`
	Iterations   int        `json:"iterations"`
	Improvements int        `json:"improvements"`
	StopReason   string     `json:"stopReason,omitempty"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}

// Improvement is one drop of a run's best-known distance.
type Improvement struct {
	RunID     string    `json:"runId"`
	Seq       int       `json:"seq"`
	Distance  float64   `json:"distance"`
	ElapsedMs int64     `json:"elapsedMs"`
	Iteration int       `json:"iteration"`
	Operator  string    `json:"operator,omitempty"`
	At        time.Time `json:"at"`
}

type SubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

type Subscription struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}
