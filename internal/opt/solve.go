// Package opt implements the tour optimizer: split-sort construction, the
// mutation operator set and a population hill climber that only accepts
// strictly shorter tours.
package opt

import "context"

// Solve builds an engine and runs it until cfg's budgets or ctx stop it.
func Solve(ctx context.Context, cities Cities, cfg Config, rep Reporter) (Result, error) {
	e, err := New(cities, cfg)
	if err != nil {
		return Result{}, err
	}
	return e.Run(ctx, rep), nil
}
