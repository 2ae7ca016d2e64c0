package milp

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

type lpStatus int

const (
	lpOptimal lpStatus = iota
	lpInfeasible
	lpUnbounded
	lpFailed
	lpStopped
)

func (s lpStatus) String() string {
	switch s {
	case lpOptimal:
		return "optimal"
	case lpInfeasible:
		return "infeasible"
	case lpUnbounded:
		return "unbounded"
	case lpStopped:
		return "stopped"
	default:
		return "failed"
	}
}

type lpResult struct {
	status  lpStatus
	obj     float64
	x       []float64 // structural values
	basis   *basis    // final basis, for warm starts
	iters   int
	inexact bool // objective is not a proven bound (solved with perturbed costs)
}

// basis is a simplex basis: the basic variable of each row and, for
// nonbasic variables, the bound they sit at. Variables 0..n-1 are the
// structural columns, n+i is the logical of row i. A basis is immutable once
// returned and may be shared by several child nodes.
type basis struct {
	head    []int
	atUpper []bool
}

// eta is one factor of the product-form basis inverse. It replaces row r of
// the identity with the entering column alpha: row r is scaled by 1/piv and
// alpha's other entries are eliminated.
type eta struct {
	r   int
	piv float64
	idx []int
	val []float64
}

const (
	pivotTol      = 1e-9
	optTol        = 1e-9
	refactorEvery = 100
	stopEvery     = 16
	blandAfter    = 50
)

// simplex is a bounded-variable revised primal simplex over an lpForm. The
// constraints are written as A x - r = 0 with one logical r_i per row bounded
// by [rowLo_i, rowHi_i], so the logical columns are -e_i and the slack basis
// is -I. Upper bounds are handled by the ratio test and bound flips, never as
// rows. The basis inverse is kept in product form and rebuilt from scratch
// every refactorEvery pivots; the rebuild skips columns that have become
// numerically dependent.
type simplex struct {
	f      *lpForm
	n, m   int
	lo, hi []float64 // n+m
	cost   []float64 // n+m, logicals cost nothing
	x      []float64 // n+m

	head    []int
	pos     []int // row of a basic variable, -1 when nonbasic
	atUpper []bool

	etas []eta
	stop func() bool

	iters     int
	maxIters  int
	sinceInv  int
	bland     bool
	degenRuns int

	col, y []float64 // scratch
}

func newSimplex(f *lpForm, colLo, colHi, cost []float64, stop func() bool) *simplex {
	n, m := f.n, f.m
	s := &simplex{
		f:        f,
		n:        n,
		m:        m,
		lo:       make([]float64, n+m),
		hi:       make([]float64, n+m),
		cost:     make([]float64, n+m),
		x:        make([]float64, n+m),
		head:     make([]int, m),
		pos:      make([]int, n+m),
		atUpper:  make([]bool, n+m),
		stop:     stop,
		maxIters: 50*(n+m) + 1000,
		col:      make([]float64, m),
		y:        make([]float64, m),
	}
	copy(s.lo, colLo)
	copy(s.hi, colHi)
	copy(s.lo[n:], f.rowLo)
	copy(s.hi[n:], f.rowHi)
	copy(s.cost, cost)
	if s.stop == nil {
		s.stop = func() bool { return false }
	}
	return s
}

// run solves the LP, starting from warm when it fits the problem.
func (s *simplex) run(warm *basis) lpResult {
	if warm != nil && len(warm.head) == s.m && len(warm.atUpper) == s.n+s.m {
		copy(s.head, warm.head)
		copy(s.atUpper, warm.atUpper)
	} else {
		for i := range s.head {
			s.head[i] = s.n + i
		}
	}
	for j := range s.pos {
		s.pos[j] = -1
	}
	for r, j := range s.head {
		s.pos[j] = r
	}
	for j := 0; j < s.n+s.m; j++ {
		if s.pos[j] < 0 {
			s.placeNonbasic(j)
		}
	}

	if warm != nil {
		if !s.invert() {
			return lpResult{status: lpStopped, iters: s.iters}
		}
	} else {
		s.computeBasics()
	}
	status := s.iterate()
	res := lpResult{status: status, iters: s.iters}
	if status != lpOptimal {
		return res
	}

	res.x = make([]float64, s.n)
	for j := 0; j < s.n; j++ {
		res.x[j] = math.Min(math.Max(s.x[j], s.lo[j]), s.hi[j])
	}
	res.obj = floats.Dot(s.f.cost, res.x)
	res.basis = &basis{
		head:    append([]int(nil), s.head...),
		atUpper: append([]bool(nil), s.atUpper...),
	}
	return res
}

// placeNonbasic puts a nonbasic variable on a finite bound, keeping the
// upper bound when it was recorded there.
func (s *simplex) placeNonbasic(j int) {
	switch {
	case s.atUpper[j] && !math.IsInf(s.hi[j], 1):
		s.x[j] = s.hi[j]
	case !math.IsInf(s.lo[j], -1):
		s.x[j] = s.lo[j]
		s.atUpper[j] = false
	default:
		s.x[j] = s.hi[j]
		s.atUpper[j] = true
	}
}

// column writes the dense column of variable j into out.
func (s *simplex) column(j int, out []float64) {
	for i := range out {
		out[i] = 0
	}
	if j < s.n {
		for _, e := range s.f.cols[j] {
			out[e.row] = e.val
		}
		return
	}
	out[j-s.n] = -1
}

// ftran overwrites v with B⁻¹v.
func (s *simplex) ftran(v []float64) {
	floats.Scale(-1, v)
	for k := range s.etas {
		e := &s.etas[k]
		t := v[e.r]
		if t == 0 {
			continue
		}
		t /= e.piv
		for i, row := range e.idx {
			v[row] -= e.val[i] * t
		}
		v[e.r] = t
	}
}

// btran overwrites v with (vᵀB⁻¹)ᵀ.
func (s *simplex) btran(v []float64) {
	for k := len(s.etas) - 1; k >= 0; k-- {
		e := &s.etas[k]
		sum := v[e.r]
		for i, row := range e.idx {
			sum -= v[row] * e.val[i]
		}
		v[e.r] = sum / e.piv
	}
	floats.Scale(-1, v)
}

func (s *simplex) addEta(r int, alpha []float64) {
	e := eta{r: r, piv: alpha[r]}
	for i, a := range alpha {
		if i != r && math.Abs(a) > zeroCoef {
			e.idx = append(e.idx, i)
			e.val = append(e.val, a)
		}
	}
	s.etas = append(s.etas, e)
}

// invert rebuilds the product form for the current basis, starting from the
// slack basis and pivoting each basic structural column into the row where
// it is largest. A column that no longer has a usable pivot is made
// nonbasic and the row keeps its logical. Returns false when stopped.
func (s *simplex) invert() bool {
	want := make([]bool, s.n+s.m)
	var structurals []int
	for _, j := range s.head {
		want[j] = true
		if j < s.n {
			structurals = append(structurals, j)
		}
	}

	s.etas = s.etas[:0]
	for i := range s.head {
		s.head[i] = s.n + i
	}
	for j := range s.pos {
		s.pos[j] = -1
	}
	for i := range s.head {
		s.pos[s.n+i] = i
	}

	alpha := s.col
	for k, q := range structurals {
		if k%64 == 63 && s.stop() {
			return false
		}
		s.column(q, alpha)
		s.ftran(alpha)
		best, bestAbs, maxAbs := -1, 0.0, 0.0
		for r, a := range alpha {
			abs := math.Abs(a)
			maxAbs = math.Max(maxAbs, abs)
			if h := s.head[r]; h >= s.n && !want[h] && abs > bestAbs {
				best, bestAbs = r, abs
			}
		}
		if best < 0 || bestAbs <= pivotTol*math.Max(1, maxAbs) {
			s.placeNonbasic(q)
			continue
		}
		s.addEta(best, alpha)
		s.pos[s.head[best]] = -1
		s.head[best] = q
		s.pos[q] = best
	}
	for j := s.n; j < s.n+s.m; j++ {
		if s.pos[j] < 0 {
			s.placeNonbasic(j)
		}
	}
	s.computeBasics()
	s.sinceInv = 0
	return true
}

// computeBasics solves B x_B = -N x_N.
func (s *simplex) computeBasics() {
	w := s.col
	for i := range w {
		w[i] = 0
	}
	for j := 0; j < s.n; j++ {
		if s.pos[j] >= 0 || s.x[j] == 0 {
			continue
		}
		for _, e := range s.f.cols[j] {
			w[e.row] -= e.val * s.x[j]
		}
	}
	for i := 0; i < s.m; i++ {
		if j := s.n + i; s.pos[j] < 0 {
			w[i] += s.x[j]
		}
	}
	s.ftran(w)
	for r, j := range s.head {
		s.x[j] = w[r]
	}
}

func boundTol(v float64) float64 {
	return feasTol * math.Max(1, math.Abs(v))
}

// phaseOneCosts fills y with the basic costs of the infeasibility objective
// and reports whether any basic variable is out of bounds.
func (s *simplex) phaseOneCosts(y []float64) bool {
	infeasible := false
	for r, j := range s.head {
		switch {
		case s.x[j] < s.lo[j]-boundTol(s.lo[j]):
			y[r] = -1
			infeasible = true
		case s.x[j] > s.hi[j]+boundTol(s.hi[j]):
			y[r] = 1
			infeasible = true
		default:
			y[r] = 0
		}
	}
	return infeasible
}

func (s *simplex) iterate() lpStatus {
	costScale := 1.0
	for _, c := range s.cost {
		costScale = math.Max(costScale, math.Abs(c))
	}

	for {
		if s.iters%stopEvery == 0 && s.stop() {
			return lpStopped
		}
		if s.iters > s.maxIters {
			return lpFailed
		}
		if s.sinceInv >= refactorEvery {
			if !s.invert() {
				return lpStopped
			}
		}

		y := s.y
		phase1 := s.phaseOneCosts(y)
		if !phase1 {
			for r, j := range s.head {
				y[r] = s.cost[j]
			}
		}
		s.btran(y)

		tol := optTol
		if !phase1 {
			tol = optTol * costScale
		}
		q, dir := s.price(y, phase1, tol)
		if q < 0 {
			if s.sinceInv > 0 {
				// Confirm on a fresh factorisation before concluding.
				if !s.invert() {
					return lpStopped
				}
				continue
			}
			if phase1 {
				return lpInfeasible
			}
			return lpOptimal
		}

		alpha := s.col
		s.column(q, alpha)
		s.ftran(alpha)

		r, theta, leaveUpper, flip := s.ratioTest(q, dir, alpha)
		if r < 0 && !flip {
			if phase1 || s.sinceInv > 0 {
				if s.sinceInv == 0 {
					return lpFailed
				}
				if !s.invert() {
					return lpStopped
				}
				continue
			}
			return lpUnbounded
		}

		s.step(q, dir, theta, alpha)
		if flip {
			s.atUpper[q] = dir > 0
			if dir > 0 {
				s.x[q] = s.hi[q]
			} else {
				s.x[q] = s.lo[q]
			}
		} else {
			leaving := s.head[r]
			if leaveUpper {
				s.x[leaving] = s.hi[leaving]
			} else {
				s.x[leaving] = s.lo[leaving]
			}
			s.atUpper[leaving] = leaveUpper
			s.pos[leaving] = -1
			s.head[r] = q
			s.pos[q] = r
			s.atUpper[q] = false
			s.addEta(r, alpha)
			s.sinceInv++
		}

		if theta <= zeroCoef {
			s.degenRuns++
			if s.degenRuns > blandAfter {
				s.bland = true
			}
		} else {
			s.degenRuns = 0
			s.bland = false
		}
		s.iters++
	}
}

// price picks the entering variable: the largest reduced cost violation, or
// the lowest index while anti-cycling. dir is +1 when it increases.
func (s *simplex) price(y []float64, phase1 bool, tol float64) (int, float64) {
	best, bestDir, bestAbs := -1, 0.0, 0.0
	for j := 0; j < s.n+s.m; j++ {
		if s.pos[j] >= 0 || s.hi[j]-s.lo[j] <= zeroCoef {
			continue
		}
		var dj float64
		if j < s.n {
			if !phase1 {
				dj = s.cost[j]
			}
			for _, e := range s.f.cols[j] {
				dj -= y[e.row] * e.val
			}
		} else {
			dj = y[j-s.n]
		}

		var dir float64
		switch {
		case !s.atUpper[j] && dj < -tol:
			dir = 1
		case s.atUpper[j] && dj > tol:
			dir = -1
		default:
			continue
		}
		if s.bland {
			return j, dir
		}
		if abs := math.Abs(dj); abs > bestAbs {
			best, bestDir, bestAbs = j, dir, abs
		}
	}
	return best, bestDir
}

// ratioTest is a two-pass Harris test over bounded basic variables. Basic
// variables already outside their bounds may move until they reach the bound
// they violate. It returns the leaving row (-1 for none), the step length,
// whether the leaving variable ends at its upper bound and whether the
// entering variable just flips to its opposite bound.
func (s *simplex) ratioTest(q int, dir float64, alpha []float64) (int, float64, bool, bool) {
	type candidate struct {
		r     int
		ratio float64
		upper bool
		abs   float64
	}
	var cands []candidate
	thetaMax := math.Inf(1)

	for r, a := range alpha {
		if math.Abs(a) <= pivotTol {
			continue
		}
		j := s.head[r]
		rate := -a * dir
		xj := s.x[j]
		var bound float64
		var upper bool
		if rate < 0 {
			switch {
			case xj > s.hi[j]+boundTol(s.hi[j]):
				bound, upper = s.hi[j], true
			case xj < s.lo[j]-boundTol(s.lo[j]) || math.IsInf(s.lo[j], -1):
				continue
			default:
				bound = s.lo[j]
			}
		} else {
			switch {
			case xj < s.lo[j]-boundTol(s.lo[j]):
				bound = s.lo[j]
			case xj > s.hi[j]+boundTol(s.hi[j]) || math.IsInf(s.hi[j], 1):
				continue
			default:
				bound, upper = s.hi[j], true
			}
		}
		dist := math.Abs(xj - bound)
		if (rate < 0 && xj < bound) || (rate > 0 && xj > bound) {
			dist = 0
		}
		ratio := dist / math.Abs(rate)
		relaxed := (dist + boundTol(bound)) / math.Abs(rate)
		thetaMax = math.Min(thetaMax, relaxed)
		cands = append(cands, candidate{r: r, ratio: ratio, upper: upper, abs: math.Abs(a)})
	}

	span := s.hi[q] - s.lo[q]
	best := -1
	for i, c := range cands {
		if c.ratio > thetaMax {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		b := cands[best]
		if s.bland {
			if s.head[c.r] < s.head[b.r] {
				best = i
			}
		} else if c.abs > b.abs {
			best = i
		}
	}
	if best < 0 {
		if !math.IsInf(span, 1) {
			return -1, span, false, true
		}
		return -1, 0, false, false
	}
	c := cands[best]
	if span <= c.ratio {
		return -1, span, false, true
	}
	return c.r, c.ratio, c.upper, false
}

// step moves the entering variable by dir·theta and updates the basics.
func (s *simplex) step(q int, dir, theta float64, alpha []float64) {
	if theta == 0 {
		return
	}
	s.x[q] += dir * theta
	for r, a := range alpha {
		if a != 0 {
			s.x[s.head[r]] -= a * dir * theta
		}
	}
}
