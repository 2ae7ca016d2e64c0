// Package engine assigns cut-width orders to master coils.
//
// One call to Optimize runs the whole pipeline:
//
//  1. Compatibility: each order is matched to the stock rolls of the same
//     thickness, alloy and temper that are at least as wide.
//  2. Pattern generation: for every stock roll, all slitting layouts of one
//     to max_orders_per_pattern compatible orders whose edge waste lies in
//     the configured window, deduplicated by content.
//  3. Model building: a mixed-integer program choosing which patterns to set
//     up and how many meters to run on each produced roll.
//  4. Solving: branch-and-bound under a wall-clock budget.
//  5. Extraction: produced rolls, per-order weight attribution, setup count
//     and coverage report.
//
// An Optimizer holds only per-call configuration and keeps no state between
// calls.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"strings"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/piwi3910/CoilCut/internal/metrics"
	"github.com/piwi3910/CoilCut/internal/model"
)

// Optimizer runs the coil slitting pipeline.
type Optimizer struct {
	params  model.Params
	log     logr.Logger
	metrics *metrics.Recorder

	solutionLimit int
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithLogger sets the logger. Solver diagnostics are only emitted when
// Params.Verbose is set.
func WithLogger(log logr.Logger) Option {
	return func(o *Optimizer) { o.log = log }
}

// WithMetrics records run metrics into r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(o *Optimizer) { o.metrics = r }
}

// WithSolutionLimit ends each solve after n improving plans have been found.
// A plan returned this way is not proven optimal. Zero means no limit.
func WithSolutionLimit(n int) Option {
	return func(o *Optimizer) { o.solutionLimit = n }
}

// New returns an Optimizer for params. The parameters are validated on every
// call to Optimize, not here.
func New(params model.Params, opts ...Option) *Optimizer {
	o := &Optimizer{params: params, log: logr.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Optimize is a one-shot helper around New(params).Optimize.
func Optimize(ctx context.Context, stocks []model.StockRoll, orders []model.Order, params model.Params, opts ...Option) ([]model.SolutionReport, error) {
	return New(params, opts...).Optimize(ctx, stocks, orders)
}

// Optimize returns a single-element list holding the solution report, or an
// empty list and an *OptimizeError. The error unwraps to ErrInvalidParams,
// ErrInvalidInput, ErrInfeasible, ErrTimeLimit, ErrUnbounded or ErrSolver.
// A report returned after the time budget ran out has ProvenOptimal=false.
func (o *Optimizer) Optimize(ctx context.Context, stocks []model.StockRoll, orders []model.Order) ([]model.SolutionReport, error) {
	reports, err := o.optimize(ctx, stocks, orders)
	o.metrics.ObserveRun(outcomeLabel(reports, err))
	if err != nil {
		o.log.Info("No solution", "reason", err.Error())
		return []model.SolutionReport{}, err
	}
	return reports, nil
}

func (o *Optimizer) optimize(ctx context.Context, stocks []model.StockRoll, orders []model.Order) ([]model.SolutionReport, error) {
	if err := o.params.Validate(); err != nil {
		return nil, &OptimizeError{Err: ErrInvalidParams, Detail: err.Error()}
	}
	if err := validateInput(stocks, orders); err != nil {
		return nil, &OptimizeError{Err: ErrInvalidInput, Detail: err.Error()}
	}
	stocks = append([]model.StockRoll(nil), stocks...)
	orders = append([]model.Order(nil), orders...)

	compat, unmatched := compatibleOrders(stocks, orders)
	if len(unmatched) > 0 {
		o.log.Info("Orders without a compatible stock roll", "orders", unmatched)
	}

	patterns, err := generatePatterns(ctx, o.params, stocks, orders, compat, o.workers())
	if err != nil {
		return nil, &OptimizeError{Err: ErrSolver, Detail: fmt.Sprintf("pattern generation: %v", err), UnmatchedOrders: unmatched}
	}
	o.metrics.ObservePatterns(len(patterns))
	o.log.V(1).Info("Patterns generated", "patterns", len(patterns), "stocks", len(stocks), "orders", len(orders))
	if len(patterns) == 0 {
		return nil, &OptimizeError{Err: ErrInfeasible, Detail: "no cutting pattern fits the edge waste window", UnmatchedOrders: unmatched}
	}

	prob, lay := buildModel(o.params, stocks, orders, patterns)
	o.metrics.ObserveModel(prob.NumVars(), prob.NumConstraints())
	o.log.V(1).Info("Model built",
		"variables", prob.NumVars(),
		"binaries", prob.NumBinaries(),
		"constraints", prob.NumConstraints(),
		"slots", len(lay.slotPattern))

	out, err := o.solve(ctx, prob, lay)
	if err != nil {
		return nil, &OptimizeError{Err: rootCause(err), Detail: detail(err), UnmatchedOrders: unmatched, Patterns: len(patterns)}
	}
	o.metrics.ObserveSolve(out.elapsed.Seconds(), out.nodes)

	report := extract(stocks, orders, lay, out.x)
	report.RunID = uuid.New().String()
	report.ProvenOptimal = out.provenOptimal
	report.Status = model.StatusFeasible
	if out.provenOptimal {
		report.Status = model.StatusOptimal
	}
	report.Objective = weightedObjective(lay, o.params, out.x)
	report.SolveTimeS = out.elapsed.Seconds()
	o.metrics.ObserveRolls(report.NumRolls)

	o.log.Info("Solution found",
		"status", report.Status,
		"rolls", report.NumRolls,
		"setups", report.NumDistinctSetups,
		"patterns", report.NumLogicalPatterns,
		"wasteMM", report.TotalWasteMM,
		"valid", report.IsFullyValid,
		"seconds", report.SolveTimeS)
	return []model.SolutionReport{report}, nil
}

func (o *Optimizer) workers() int {
	if o.params.GenerationWorkers > 0 {
		return o.params.GenerationWorkers
	}
	return runtime.GOMAXPROCS(0)
}

// validateInput rejects records the upstream cleaning step should have
// filtered, and duplicate order IDs, which would merge coverage.
func validateInput(stocks []model.StockRoll, orders []model.Order) error {
	if len(stocks) == 0 {
		return errors.New("no stock rolls")
	}
	if len(orders) == 0 {
		return errors.New("no orders")
	}
	for _, s := range stocks {
		if !positive(s.WidthMM, s.ThicknessMM, s.AvailableKg) {
			return fmt.Errorf("stock roll %q has a non-positive width, thickness or weight", s.ID)
		}
	}
	seen := make(map[string]bool, len(orders))
	for _, o := range orders {
		if !positive(o.WidthMM, o.ThicknessMM, o.RequestedKg) {
			return fmt.Errorf("order %q has a non-positive width, thickness or weight", o.ID)
		}
		if o.MinRunLengthM < 0 {
			return fmt.Errorf("order %q has a negative minimum run length", o.ID)
		}
		if seen[o.ID] {
			return fmt.Errorf("duplicate order id %q", o.ID)
		}
		seen[o.ID] = true
	}
	return nil
}

func positive(vals ...float64) bool {
	for _, v := range vals {
		if !(v > 0) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// rootCause returns the engine sentinel err wraps.
func rootCause(err error) error {
	for _, s := range []error{ErrInfeasible, ErrTimeLimit, ErrUnbounded, ErrSolver} {
		if errors.Is(err, s) {
			return s
		}
	}
	return ErrSolver
}

func detail(err error) string {
	root := rootCause(err)
	if root == err {
		return ""
	}
	return strings.TrimPrefix(err.Error(), root.Error()+": ")
}

func outcomeLabel(reports []model.SolutionReport, err error) string {
	switch {
	case err == nil && len(reports) > 0 && reports[0].ProvenOptimal:
		return metrics.OutcomeOptimal
	case err == nil:
		return metrics.OutcomeFeasible
	case errors.Is(err, ErrInfeasible):
		return metrics.OutcomeInfeasible
	case errors.Is(err, ErrTimeLimit):
		return metrics.OutcomeTimeLimit
	case errors.Is(err, ErrInvalidParams), errors.Is(err, ErrInvalidInput):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}
