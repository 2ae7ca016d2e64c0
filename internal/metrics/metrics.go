// Package metrics collects Prometheus metrics about optimizer runs.
//
// A Recorder owns its own registry so that a CLI invocation can dump the
// metrics of its runs to a node-exporter textfile without touching the
// global default registry. All Recorder methods are safe on a nil receiver,
// which disables recording.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "coilcut"

// Outcome labels.
const (
	OutcomeOptimal    = "optimal"
	OutcomeFeasible   = "feasible"
	OutcomeInfeasible = "infeasible"
	OutcomeTimeLimit  = "time_limit"
	OutcomeInvalid    = "invalid"
	OutcomeError      = "error"
)

// Recorder holds the collectors of one process.
type Recorder struct {
	registry *prometheus.Registry

	runs         *prometheus.CounterVec
	patterns     prometheus.Histogram
	modelVars    prometheus.Gauge
	modelRows    prometheus.Gauge
	solveSeconds prometheus.Histogram
	nodes        prometheus.Counter
	rolls        prometheus.Histogram
}

// NewRecorder creates a Recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Optimizer invocations by outcome.",
		}, []string{"outcome"}),
		patterns: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "patterns_generated",
			Help:      "Candidate cutting patterns generated per run.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		modelVars: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_variables",
			Help:      "Variables in the most recent integer program.",
		}),
		modelRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_constraints",
			Help:      "Constraints in the most recent integer program.",
		}),
		solveSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_duration_seconds",
			Help:      "Wall-clock time spent in the solver.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		nodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bnb_nodes_total",
			Help:      "Branch-and-bound nodes explored.",
		}),
		rolls: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rolls_per_solution",
			Help:      "Produced rolls per returned solution.",
			Buckets:   prometheus.LinearBuckets(0, 5, 10),
		}),
	}
	r.registry.MustRegister(r.runs, r.patterns, r.modelVars, r.modelRows, r.solveSeconds, r.nodes, r.rolls)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveRun counts one invocation with the given outcome label.
func (r *Recorder) ObserveRun(outcome string) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ObservePatterns(n int) {
	if r == nil {
		return
	}
	r.patterns.Observe(float64(n))
}

func (r *Recorder) ObserveModel(vars, rows int) {
	if r == nil {
		return
	}
	r.modelVars.Set(float64(vars))
	r.modelRows.Set(float64(rows))
}

func (r *Recorder) ObserveSolve(seconds float64, nodes int) {
	if r == nil {
		return
	}
	r.solveSeconds.Observe(seconds)
	r.nodes.Add(float64(nodes))
}

func (r *Recorder) ObserveRolls(n int) {
	if r == nil {
		return
	}
	r.rolls.Observe(float64(n))
}

// WriteTextfile writes all metrics in the text exposition format, for the
// node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
