package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-logr/logr"
	"github.com/piwi3910/CoilCut/internal/milp"
	"github.com/piwi3910/CoilCut/internal/model"
)

// solveOutcome is a solver result the extractor can use.
type solveOutcome struct {
	x             []float64
	provenOptimal bool
	nodes         int
	elapsed       time.Duration
}

// solve runs the MILP under the configured wall-clock budget and maps the
// termination status onto engine errors. Only optimal or time-limited
// feasible outcomes are returned without error.
func (o *Optimizer) solve(ctx context.Context, prob *milp.Problem, lay *layout) (*solveOutcome, error) {
	start := time.Now()
	deadline := start.Add(o.params.TimeLimit())

	if o.params.Objective == model.ObjectiveLexicographic {
		return o.solveLexicographic(ctx, prob, lay, deadline)
	}

	sol, err := milp.Solve(ctx, prob, o.solverOptions(time.Until(deadline)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSolver, err)
	}
	if err := statusError(sol); err != nil {
		return nil, err
	}
	return &solveOutcome{
		x:             sol.X,
		provenOptimal: sol.ProvenOptimal(),
		nodes:         sol.Nodes,
		elapsed:       time.Since(start),
	}, nil
}

// solveLexicographic minimises the number of setups first, then, with the
// setup count capped at that optimum, the production and waste terms.
func (o *Optimizer) solveLexicographic(ctx context.Context, prob *milp.Problem, lay *layout, deadline time.Time) (*solveOutcome, error) {
	start := time.Now()

	stage1 := prob.Clone()
	stage1.ClearObjective()
	setSetupObjective(stage1, lay)
	first, err := milp.Solve(ctx, stage1, o.solverOptions(time.Until(deadline)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSolver, err)
	}
	if err := statusError(first); err != nil {
		return nil, err
	}
	setups := math.Round(first.Objective / setupWeight)
	o.log.V(1).Info("Setup count fixed", "setups", setups, "proven", first.ProvenOptimal())

	outcome := &solveOutcome{x: first.X, provenOptimal: false, nodes: first.Nodes}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		outcome.elapsed = time.Since(start)
		return outcome, nil
	}

	stage2 := prob.Clone()
	stage2.ClearObjective()
	setProductionObjective(stage2, lay, o.params)
	terms := make([]milp.Term, len(lay.use))
	for i, u := range lay.use {
		terms[i] = milp.T(u, 1)
	}
	stage2.AddConstraint("setup_cap", milp.LessEq, setups, terms...)

	second, err := milp.Solve(ctx, stage2, o.solverOptions(remaining))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSolver, err)
	}
	outcome.nodes += second.Nodes
	outcome.elapsed = time.Since(start)
	switch second.Status {
	case milp.Optimal, milp.Feasible:
		outcome.x = second.X
		outcome.provenOptimal = first.ProvenOptimal() && second.ProvenOptimal()
	default:
		// Stage one's incumbent satisfies every hard constraint.
		o.log.Info("Second lexicographic stage produced no solution, keeping setup-optimal incumbent",
			"status", second.Status.String())
	}
	return outcome, nil
}

func (o *Optimizer) solverOptions(limit time.Duration) milp.Options {
	opts := milp.DefaultOptions()
	opts.TimeLimit = limit
	if opts.TimeLimit <= 0 {
		opts.TimeLimit = time.Millisecond
	}
	opts.Threads = o.params.Threads
	opts.SolutionLimit = o.solutionLimit
	opts.Logger = logr.Discard()
	if o.params.Verbose {
		opts.Logger = o.log.WithName("milp")
	}
	return opts
}

// statusError maps non-successful solver statuses to engine sentinels.
func statusError(sol *milp.Solution) error {
	switch sol.Status {
	case milp.Optimal, milp.Feasible:
		return nil
	case milp.Infeasible:
		return ErrInfeasible
	case milp.Unbounded:
		return ErrUnbounded
	default:
		if sol.NumericFailures > 0 {
			return fmt.Errorf("%w: %d relaxations failed numerically", ErrSolver, sol.NumericFailures)
		}
		return ErrTimeLimit
	}
}
