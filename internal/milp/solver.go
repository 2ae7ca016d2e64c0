package milp

import (
	"context"
	"errors"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// Status is the termination status of Solve.
type Status int

const (
	NotSolved  Status = iota // stopped by a limit before any feasible point was found
	Optimal                  // incumbent proven optimal
	Feasible                 // incumbent found, search stopped by a limit
	Infeasible               // no feasible point exists
	Unbounded                // objective unbounded below
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Feasible:
		return "feasible"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	default:
		return "not_solved"
	}
}

// ErrInvalidProblem is returned for malformed problems.
var ErrInvalidProblem = errors.New("milp: invalid problem")

// Options configures the branch-and-bound search.
type Options struct {
	TimeLimit     time.Duration // 0 = no limit
	NodeLimit     int           // 0 = no limit
	SolutionLimit int           // stop after this many improving solutions, 0 = no limit
	Threads       int           // node workers, <= 0 means GOMAXPROCS
	IntTolerance  float64       // distance from 0/1 accepted as integral
	AbsGap        float64       // nodes whose bound is within AbsGap of the incumbent are pruned
	Logger        logr.Logger
}

// DefaultOptions returns single-threaded options without limits.
func DefaultOptions() Options {
	return Options{
		Threads:      1,
		IntTolerance: 1e-6,
		AbsGap:       1e-6,
		Logger:       logr.Discard(),
	}
}

// Solution is the outcome of Solve.
type Solution struct {
	Status          Status
	X               []float64
	Objective       float64
	Bound           float64 // best lower bound known when the search ended
	Nodes           int
	LPIterations    int
	NumericFailures int // nodes whose relaxation could not be solved at all
	Elapsed         time.Duration
}

// ProvenOptimal reports whether the incumbent is proven optimal.
func (s *Solution) ProvenOptimal() bool {
	return s.Status == Optimal
}

type node struct {
	fixed []int8
	bound float64
	depth int
	warm  *basis // parent's optimal basis
}

type search struct {
	p        *Problem
	form     *lpForm
	opts     Options
	log      logr.Logger
	ctx      context.Context
	deadline time.Time

	mu        sync.Mutex
	cond      *sync.Cond
	stack     []*node
	busy      int
	done      bool
	stopped   bool
	unbounded bool
	inexact   bool // some bound came from a perturbed or skipped relaxation
	incumbent []float64
	incObj    float64
	solutions int
	nodes     int
	lpIters   int
	failures  int
}

// Solve minimises p. An error is returned only for malformed problems; every
// other outcome is reported through Solution.Status. When the time limit,
// node limit, solution limit or ctx stops the search, the best incumbent is
// returned with status Feasible, or NotSolved when there is none. The limits
// are also checked inside each LP solve, so a single long relaxation does not
// overrun them.
func Solve(ctx context.Context, p *Problem, opts Options) (*Solution, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	opts = withDefaults(opts)
	start := time.Now()

	s := &search{
		p:      p,
		form:   newLPForm(p),
		opts:   opts,
		log:    opts.Logger,
		ctx:    ctx,
		incObj: math.Inf(1),
	}
	s.cond = sync.NewCond(&s.mu)
	if opts.TimeLimit > 0 {
		s.deadline = start.Add(opts.TimeLimit)
	}
	s.log.V(1).Info("Starting branch-and-bound",
		"vars", p.NumVars(), "binaries", p.NumBinaries(),
		"rows", s.form.m, "presolvedRows", s.form.dropped, "threads", opts.Threads)

	root := make([]int8, len(p.vars))
	for j := range root {
		root[j] = free
	}
	s.stack = append(s.stack, &node{fixed: root, bound: math.Inf(-1)})

	var wg sync.WaitGroup
	for w := 0; w < opts.Threads; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.work()
		}()
	}
	wg.Wait()

	sol := &Solution{
		Nodes:           s.nodes,
		LPIterations:    s.lpIters,
		NumericFailures: s.failures,
		Elapsed:         time.Since(start),
		Objective:       math.NaN(),
		Bound:           math.Inf(-1),
	}
	incomplete := s.stopped || s.failures > 0
	switch {
	case s.unbounded:
		sol.Status = Unbounded
	case s.incumbent == nil && incomplete:
		sol.Status = NotSolved
	case s.incumbent == nil:
		sol.Status = Infeasible
	default:
		sol.X = s.incumbent
		sol.Objective = s.incObj
		sol.Bound = s.incObj
		if incomplete || s.inexact {
			sol.Status = Feasible
			for _, nd := range s.stack {
				if nd.bound < sol.Bound {
					sol.Bound = nd.bound
				}
			}
		} else {
			sol.Status = Optimal
		}
	}

	s.log.V(1).Info("Branch-and-bound finished",
		"status", sol.Status.String(),
		"objective", sol.Objective,
		"bound", sol.Bound,
		"nodes", sol.Nodes,
		"lpIterations", sol.LPIterations,
		"numericFailures", sol.NumericFailures,
		"elapsed", sol.Elapsed)
	return sol, nil
}

func withDefaults(opts Options) Options {
	d := DefaultOptions()
	if opts.Threads <= 0 {
		opts.Threads = runtime.GOMAXPROCS(0)
	}
	if opts.IntTolerance <= 0 {
		opts.IntTolerance = d.IntTolerance
	}
	if opts.AbsGap <= 0 {
		opts.AbsGap = d.AbsGap
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = d.Logger
	}
	return opts
}

func (s *search) work() {
	for {
		nd := s.next()
		if nd == nil {
			return
		}
		children, ok := s.process(nd)
		if !ok {
			s.halt(nd)
			continue
		}
		s.finish(children)
	}
}

// next pops the most recently pushed node, waiting while other workers may
// still push children. It returns nil when the search is over.
func (s *search) next() *node {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.stack) == 0 && s.busy > 0 && !s.done {
		s.cond.Wait()
	}
	if s.done || len(s.stack) == 0 {
		s.done = true
		s.cond.Broadcast()
		return nil
	}
	if s.limitReached() || (s.opts.NodeLimit > 0 && s.nodes >= s.opts.NodeLimit) {
		s.stopped = true
		s.done = true
		s.cond.Broadcast()
		return nil
	}
	nd := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	s.busy++
	s.nodes++
	return nd
}

// limitReached reports whether the context or the deadline ends the search.
// It is also polled from inside the simplex.
func (s *search) limitReached() bool {
	if s.ctx.Err() != nil {
		return true
	}
	return !s.deadline.IsZero() && time.Now().After(s.deadline)
}

// halt puts back a node whose relaxation was interrupted and stops the
// search; the node's bound still counts towards the final bound.
func (s *search) halt(nd *node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stack = append(s.stack, nd)
	s.busy--
	s.stopped = true
	s.done = true
	s.cond.Broadcast()
}

func (s *search) finish(children []*node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Push in reverse so the preferred child is explored first.
	for i := len(children) - 1; i >= 0; i-- {
		s.stack = append(s.stack, children[i])
	}
	s.busy--
	s.cond.Broadcast()
}

func (s *search) cutoff() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incObj - s.opts.AbsGap
}

// relax solves a node relaxation, falling back from the warm start to a cold
// start and then to perturbed costs when the simplex gets into numerical
// trouble.
func (s *search) relax(fixed []int8, warm *basis) lpResult {
	attempts := []relaxOptions{
		{warm: warm, stop: s.limitReached},
		{stop: s.limitReached},
		{perturb: true, stop: s.limitReached},
	}
	if warm == nil {
		attempts = attempts[1:]
	}
	var res lpResult
	for i, a := range attempts {
		res = s.form.solveRelaxation(fixed, a)
		s.mu.Lock()
		s.lpIters += res.iters
		s.mu.Unlock()
		if res.status != lpFailed {
			return res
		}
		s.log.V(1).Info("LP relaxation failed, retrying", "attempt", i+1, "iterations", res.iters)
	}
	return res
}

// process solves the relaxation of one node and returns its children. ok is
// false when a limit interrupted the relaxation.
func (s *search) process(nd *node) ([]*node, bool) {
	if nd.bound >= s.cutoff() {
		return nil, true
	}
	res := s.relax(nd.fixed, nd.warm)
	switch res.status {
	case lpStopped:
		return nil, false
	case lpInfeasible:
		return nil, true
	case lpUnbounded:
		s.mu.Lock()
		s.unbounded = true
		s.done = true
		s.mu.Unlock()
		return nil, true
	case lpFailed:
		return s.branchBlind(nd), true
	}
	if res.inexact {
		s.mu.Lock()
		s.inexact = true
		s.mu.Unlock()
	}
	if res.obj >= s.cutoff() {
		return nil, true
	}

	branch := s.pickBranch(res.x, nd.fixed)
	if branch < 0 {
		if !s.tryIncumbent(res, nd.fixed) {
			return nil, false
		}
		return nil, true
	}

	down := &node{fixed: cloneFixed(nd.fixed), bound: res.obj, depth: nd.depth + 1, warm: res.basis}
	down.fixed[branch] = 0
	up := &node{fixed: cloneFixed(nd.fixed), bound: res.obj, depth: nd.depth + 1, warm: res.basis}
	up.fixed[branch] = 1
	if res.x[branch] >= 0.5 {
		return []*node{up, down}, true
	}
	return []*node{down, up}, true
}

// branchBlind splits a node whose relaxation could not be solved on its
// first free binary, keeping the parent's bound. A node without free
// binaries is given up and counted as a numeric failure.
func (s *search) branchBlind(nd *node) []*node {
	s.mu.Lock()
	s.inexact = true
	s.mu.Unlock()
	branch := -1
	bestPrio := 0
	for j, v := range s.p.vars {
		if v.Kind == Binary && nd.fixed[j] == free && (branch < 0 || v.Priority > bestPrio) {
			branch, bestPrio = j, v.Priority
		}
	}
	if branch < 0 {
		s.mu.Lock()
		s.failures++
		s.mu.Unlock()
		s.log.V(1).Info("LP relaxation failed on a leaf, dropping node", "depth", nd.depth)
		return nil
	}
	s.log.V(1).Info("LP relaxation failed, branching without a bound", "depth", nd.depth)
	children := make([]*node, 0, 2)
	for _, v := range []int8{1, 0} {
		c := &node{fixed: cloneFixed(nd.fixed), bound: nd.bound, depth: nd.depth + 1}
		c.fixed[branch] = v
		children = append(children, c)
	}
	return children
}

// pickBranch selects the free fractional binary with the highest priority,
// then the one closest to 0.5, then the lowest index. Returns -1 when the
// relaxation is integral.
func (s *search) pickBranch(x []float64, fixed []int8) int {
	best := -1
	bestPrio := 0
	bestDist := 0.0
	for j, v := range s.p.vars {
		if v.Kind != Binary || fixed[j] != free {
			continue
		}
		frac := x[j] - math.Floor(x[j])
		if frac <= s.opts.IntTolerance || frac >= 1-s.opts.IntTolerance {
			continue
		}
		dist := math.Abs(frac - 0.5)
		if best < 0 || v.Priority > bestPrio || (v.Priority == bestPrio && dist < bestDist) {
			best, bestPrio, bestDist = j, v.Priority, dist
		}
	}
	return best
}

// tryIncumbent rounds the binaries of an integral relaxation, re-solves the
// continuous part with them fixed and records the result if it improves.
// Returns false when a limit interrupted the re-solve.
func (s *search) tryIncumbent(res lpResult, fixed []int8) bool {
	pinned := cloneFixed(fixed)
	for j, v := range s.p.vars {
		if v.Kind == Binary {
			pinned[j] = int8(math.Round(res.x[j]))
		}
	}
	polished := s.form.solveRelaxation(pinned, relaxOptions{warm: res.basis, stop: s.limitReached})
	if polished.status == lpStopped {
		return false
	}
	x, obj := polished.x, polished.obj
	if polished.status != lpOptimal {
		x = append([]float64(nil), res.x...)
		for j, v := range s.p.vars {
			if v.Kind == Binary {
				x[j] = math.Round(x[j])
			}
		}
		obj = s.p.Objective(x)
	}
	if err := s.p.Check(x, 1e-6); err != nil {
		s.log.V(1).Info("Rejected integral point", "reason", err.Error())
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if obj < s.incObj {
		s.incObj = obj
		s.incumbent = x
		s.solutions++
		s.log.V(1).Info("New incumbent", "objective", obj, "nodes", s.nodes)
		if s.opts.SolutionLimit > 0 && s.solutions >= s.opts.SolutionLimit && (len(s.stack) > 0 || s.busy > 1) {
			s.stopped = true
			s.done = true
			s.cond.Broadcast()
		}
	}
	return true
}

func cloneFixed(f []int8) []int8 {
	return append([]int8(nil), f...)
}
