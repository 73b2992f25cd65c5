package metrics

import "github.com/kayky-cas/romaria-da-vovo/internal/opt"

// RunObserver feeds optimizer iterations of one run into the collectors.
// Install it as opt.Engine.Observer.
type RunObserver struct {
	RunID string
}

var _ opt.Observer = RunObserver{}

func (o RunObserver) Iteration(res opt.StepResult) {
	Iterations.Inc()
	if res.Replaced {
		OperatorWins.WithLabelValues(res.Operator).Inc()
	}
	if res.Improved {
		Improvements.Inc()
		BestDistance.WithLabelValues(o.RunID).Set(res.Candidate.Distance)
	}
}

// Forget drops the per-run series.
func (o RunObserver) Forget() {
	BestDistance.DeleteLabelValues(o.RunID)
}
