package opt

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PopulationStats summarizes the distances of the current population.
type PopulationStats struct {
	Size   int     `json:"size"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
}

// Stats computes PopulationStats. A zero StdDev with Size > 1 means the
// population has collapsed onto tours of equal length.
func (e *Engine) Stats() PopulationStats {
	d := make([]float64, len(e.pop))
	for i, t := range e.pop {
		d[i] = t.Distance
	}
	s := PopulationStats{Size: len(d)}
	if len(d) == 0 {
		return s
	}
	s.Min, s.Max = floats.Min(d), floats.Max(d)
	if len(d) == 1 {
		s.Mean = d[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(d, nil)
	return s
}
