// Package tuning helps operators choose engine parameters: side-by-side
// what-if comparisons, grid searches and data-driven starting values.
package tuning

import (
	"context"
	"fmt"
	"math"

	"github.com/piwi3910/CoilCut/internal/engine"
	"github.com/piwi3910/CoilCut/internal/model"
)

// Scenario is a named set of parameters to compare.
type Scenario struct {
	Name   string
	Params model.Params
}

// ComparisonResult holds the engine outcome and summary statistics for a
// single scenario. Report is nil and Err is set when the scenario has no
// solution.
type ComparisonResult struct {
	Scenario      Scenario
	Report        *model.SolutionReport
	Err           error
	Rolls         int
	Setups        int
	WasteMM       float64
	MinCoverage   float64
	ProvenOptimal bool
}

// Feasible reports whether the scenario produced a plan.
func (r ComparisonResult) Feasible() bool {
	return r.Report != nil
}

// Outcome is a short human-readable status.
func (r ComparisonResult) Outcome() string {
	switch {
	case r.Report == nil && r.Err != nil:
		return r.Err.Error()
	case r.Report == nil:
		return "no solution"
	case r.ProvenOptimal:
		return "optimal"
	default:
		return "feasible (time limit)"
	}
}

// CompareScenarios runs the engine for each scenario and returns the results
// in scenario order. A scenario without a solution yields a result carrying
// the error instead of aborting the comparison.
func CompareScenarios(ctx context.Context, scenarios []Scenario, stocks []model.StockRoll, orders []model.Order, opts ...engine.Option) []ComparisonResult {
	results := make([]ComparisonResult, 0, len(scenarios))

	for _, scenario := range scenarios {
		res := ComparisonResult{Scenario: scenario}
		reports, err := engine.New(scenario.Params, opts...).Optimize(ctx, stocks, orders)
		if err != nil {
			res.Err = err
			results = append(results, res)
			continue
		}

		report := reports[0]
		res.Report = &report
		res.Rolls = report.NumRolls
		res.Setups = report.NumDistinctSetups
		res.WasteMM = report.TotalWasteMM
		res.MinCoverage = report.MinCoveragePercent()
		res.ProvenOptimal = report.ProvenOptimal
		results = append(results, res)
	}

	return results
}

// BuildDefaultScenarios generates a set of comparison scenarios based on
// the current parameters, loosening one constraint at a time the way an
// operator would retry an infeasible plan.
func BuildDefaultScenarios(base model.Params) []Scenario {
	scenarios := []Scenario{
		{
			Name:   "Current Parameters",
			Params: base,
		},
	}

	if base.CoverageMargin > 0.80 {
		looser := base
		looser.CoverageMargin = math.Max(0.80, base.CoverageMargin-0.05)
		scenarios = append(scenarios, Scenario{
			Name:   fmt.Sprintf("Coverage %.0f%%", looser.CoverageMargin*100),
			Params: looser,
		})
	}

	wider := base
	wider.ExcessMarginFactor = base.ExcessMarginFactor + 0.15
	scenarios = append(scenarios, Scenario{
		Name:   fmt.Sprintf("Excess %.0f%%", (wider.ExcessMarginFactor-1)*100),
		Params: wider,
	})

	if base.EdgeWasteMaxMM < 100 {
		window := base
		window.EdgeWasteMaxMM = math.Min(100, base.EdgeWasteMaxMM+20)
		scenarios = append(scenarios, Scenario{
			Name:   fmt.Sprintf("Edge waste %.0f-%.0fmm", window.EdgeWasteMinMM, window.EdgeWasteMaxMM),
			Params: window,
		})
	}

	if base.MinRemainderM > 0 {
		noRemainder := base
		noRemainder.MinRemainderM = 0
		scenarios = append(scenarios, Scenario{
			Name:   "No Remainder Rule",
			Params: noRemainder,
		})
	}

	alt := base
	if base.Objective == model.ObjectiveLexicographic {
		alt.Objective = model.ObjectiveWeighted
		scenarios = append(scenarios, Scenario{Name: "Weighted Objective", Params: alt})
	} else {
		alt.Objective = model.ObjectiveLexicographic
		scenarios = append(scenarios, Scenario{Name: "Lexicographic Objective", Params: alt})
	}

	return scenarios
}
