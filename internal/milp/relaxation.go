package milp

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
)

const (
	zeroCoef = 1e-12
	feasTol  = 1e-7
)

// free marks an unfixed binary in a fixing vector.
const free int8 = -1

type entry struct {
	row int
	val float64
}

// lpForm is the relaxation of a Problem in bounded form:
//
//	minimise cost·x  subject to  rowLo <= A x <= rowHi,  colLo <= x <= colHi
//
// A is stored by column. Building it presolves the rows: rows without terms
// are checked and dropped, rows with a single term become variable bounds and
// rows with identical terms are merged into one ranged row.
type lpForm struct {
	n, m         int
	cols         [][]entry
	cost         []float64
	colLo, colHi []float64
	rowLo, rowHi []float64
	binary       []bool

	// infeasible is set when presolve finds a row or bound that cannot hold.
	infeasible bool
	dropped    int // rows removed by presolve
}

func newLPForm(p *Problem) *lpForm {
	n := len(p.vars)
	f := &lpForm{
		n:      n,
		cols:   make([][]entry, n),
		cost:   append([]float64(nil), p.obj...),
		colLo:  make([]float64, n),
		colHi:  make([]float64, n),
		binary: make([]bool, n),
	}
	for j, v := range p.vars {
		f.colHi[j] = v.Upper
		f.binary[j] = v.Kind == Binary
	}

	var rows [][]Term
	byHash := make(map[uint64][]int)
	acc := make(map[int]float64)

	for _, c := range p.cons {
		for k := range acc {
			delete(acc, k)
		}
		for _, t := range c.Terms {
			acc[t.Var] += t.Coef
		}
		terms := make([]Term, 0, len(acc))
		for v, coef := range acc {
			if math.Abs(coef) > zeroCoef {
				terms = append(terms, Term{Var: v, Coef: coef})
			}
		}
		sort.Slice(terms, func(a, b int) bool { return terms[a].Var < terms[b].Var })
		lo, hi := senseBounds(c.Sense, c.RHS)

		switch len(terms) {
		case 0:
			if lo > feasTol*math.Max(1, math.Abs(lo)) || hi < -feasTol*math.Max(1, math.Abs(hi)) {
				f.infeasible = true
			}
			f.dropped++
			continue
		case 1:
			f.tightenColumn(terms[0], lo, hi)
			f.dropped++
			continue
		}

		h := hashTerms(terms)
		merged := false
		for _, i := range byHash[h] {
			if sameTerms(rows[i], terms) {
				f.rowLo[i] = math.Max(f.rowLo[i], lo)
				f.rowHi[i] = math.Min(f.rowHi[i], hi)
				merged = true
				break
			}
		}
		if merged {
			f.dropped++
			continue
		}
		byHash[h] = append(byHash[h], len(rows))
		rows = append(rows, terms)
		f.rowLo = append(f.rowLo, lo)
		f.rowHi = append(f.rowHi, hi)
	}

	f.m = len(rows)
	for i, terms := range rows {
		if f.rowLo[i] > f.rowHi[i]+feasTol*math.Max(1, math.Abs(f.rowHi[i])) {
			f.infeasible = true
		}
		for _, t := range terms {
			f.cols[t.Var] = append(f.cols[t.Var], entry{row: i, val: t.Coef})
		}
	}
	for j := 0; j < n; j++ {
		if f.colLo[j] > f.colHi[j]+feasTol*math.Max(1, math.Abs(f.colHi[j])) {
			f.infeasible = true
		}
	}
	return f
}

func senseBounds(s Sense, rhs float64) (float64, float64) {
	switch s {
	case GreaterEq:
		return rhs, math.Inf(1)
	case Equal:
		return rhs, rhs
	default:
		return math.Inf(-1), rhs
	}
}

// tightenColumn turns lo <= coef·x <= hi into bounds on x.
func (f *lpForm) tightenColumn(t Term, lo, hi float64) {
	l, h := lo/t.Coef, hi/t.Coef
	if t.Coef < 0 {
		l, h = h, l
	}
	j := t.Var
	if f.binary[j] {
		l = math.Ceil(l - feasTol)
		h = math.Floor(h + feasTol)
	}
	f.colLo[j] = math.Max(f.colLo[j], l)
	f.colHi[j] = math.Min(f.colHi[j], h)
}

func hashTerms(terms []Term) uint64 {
	d := xxhash.New()
	var buf [16]byte
	for _, t := range terms {
		binary.LittleEndian.PutUint64(buf[:8], uint64(t.Var))
		binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(t.Coef))
		d.Write(buf[:])
	}
	return d.Sum64()
}

func sameTerms(a, b []Term) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// nodeBounds returns the column bounds of a node: the presolved bounds with
// the fixed binaries pinned. ok is false when a fixing contradicts them.
func (f *lpForm) nodeBounds(fixed []int8) (lo, hi []float64, ok bool) {
	lo = append([]float64(nil), f.colLo...)
	hi = append([]float64(nil), f.colHi...)
	for j, v := range fixed {
		if v == free {
			continue
		}
		fv := float64(v)
		if fv < lo[j]-feasTol || fv > hi[j]+feasTol {
			return nil, nil, false
		}
		lo[j], hi[j] = fv, fv
	}
	return lo, hi, true
}

// relaxation options for one LP solve.
type relaxOptions struct {
	warm    *basis
	perturb bool
	stop    func() bool
}

// solveRelaxation solves the LP relaxation of the node given by fixed.
func (f *lpForm) solveRelaxation(fixed []int8, opts relaxOptions) lpResult {
	if f.infeasible {
		return lpResult{status: lpInfeasible}
	}
	lo, hi, ok := f.nodeBounds(fixed)
	if !ok {
		return lpResult{status: lpInfeasible}
	}
	cost := f.cost
	if opts.perturb {
		cost = perturbed(f.cost)
	}
	s := newSimplex(f, lo, hi, cost, opts.stop)
	res := s.run(opts.warm)
	if res.status == lpOptimal && opts.perturb {
		res.obj = 0
		for j := 0; j < f.n; j++ {
			res.obj += f.cost[j] * res.x[j]
		}
		res.inexact = true
	}
	return res
}

// perturbed shifts every cost by a tiny deterministic amount to break ties
// that stall the simplex.
func perturbed(cost []float64) []float64 {
	out := make([]float64, len(cost))
	for j, c := range cost {
		out[j] = c + 1e-7*(1+math.Abs(c))*float64((j*7919)%97+1)/97
	}
	return out
}
