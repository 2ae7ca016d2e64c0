package milp

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

func TestNewLPForm_Presolve(t *testing.T) {
	p := NewProblem()
	a := p.AddContinuous("a", math.Inf(1))
	b := p.AddContinuous("b", math.Inf(1))
	u := p.AddBinary("u", 0)
	p.AddConstraint("floor", GreaterEq, 20, T(a, 1))
	p.AddConstraint("ceiling", LessEq, 120, T(a, 2))
	p.AddConstraint("switch", GreaterEq, 0.4, T(u, 1))
	p.AddConstraint("cover min", GreaterEq, 50, T(a, 1), T(b, 1))
	p.AddConstraint("cover max", LessEq, 150, T(b, 1), T(a, 1))
	p.AddConstraint("split", Equal, 0, T(a, 1), T(b, -0.5), T(b, -0.5))
	p.AddConstraint("nothing", LessEq, 3)

	f := newLPForm(p)
	require.False(t, f.infeasible)
	assert.Equal(t, 2, f.m, "the two cover rows merge and singletons become bounds")
	assert.Equal(t, 5, f.dropped)
	assert.Equal(t, []float64{20, 0, 1}, f.colLo)
	assert.Equal(t, []float64{60, math.Inf(1), 1}, f.colHi)

	var cover int
	for _, e := range f.cols[b] {
		if f.rowLo[e.row] == 50 {
			cover = e.row
		}
	}
	assert.Equal(t, 150.0, f.rowHi[cover])
	assert.Len(t, f.cols[u], 0)
}

func TestNewLPForm_ContradictoryBounds(t *testing.T) {
	p := NewProblem()
	x := p.AddBinary("x", 0)
	y := p.AddContinuous("y", 10)
	p.AddConstraint("x low", GreaterEq, 0.2, T(x, 1))
	p.AddConstraint("x high", LessEq, 0.8, T(x, 1))
	p.AddConstraint("row", GreaterEq, 1, T(x, 1), T(y, 1))

	f := newLPForm(p)
	assert.True(t, f.infeasible, "no integer lies in [0.2, 0.8]")
	assert.Equal(t, lpInfeasible, f.solveRelaxation([]int8{free, free}, relaxOptions{}).status)
}

// randomStandardLP returns min c·x subject to A x = b, x >= 0 with an
// identity block, so the rows have full rank and the origin of the slack
// block is feasible. Every structural column has an entry, which keeps the
// problem bounded.
func randomStandardLP(rng *rand.Rand, m, n int) (c []float64, A *mat.Dense, b []float64) {
	cols := n + m
	A = mat.NewDense(m, cols, nil)
	b = make([]float64, m)
	c = make([]float64, cols)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			if rng.Float64() < 0.7 || i == j%m {
				A.Set(i, j, 1+rng.Float64()*9)
			}
		}
		A.Set(i, n+i, 1)
		b[i] = 10 + rng.Float64()*90
	}
	for j := 0; j < n; j++ {
		c[j] = -1 - rng.Float64()*9
	}
	return c, A, b
}

func TestSolveRelaxation_MatchesDenseSimplex(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		m, n := 2+trial%4, 3+trial%5
		c, A, b := randomStandardLP(rng, m, n)

		want, _, err := lp.Simplex(c, A, b, 0, nil)
		require.NoError(t, err, "trial %d", trial)

		p := NewProblem()
		for j := range c {
			v := p.AddContinuous("x", math.Inf(1))
			p.SetObjective(v, c[j])
		}
		for i := 0; i < m; i++ {
			var terms []Term
			for j := range c {
				if a := A.At(i, j); a != 0 {
					terms = append(terms, T(j, a))
				}
			}
			p.AddConstraint("row", Equal, b[i], terms...)
		}

		fixed := make([]int8, len(c))
		for j := range fixed {
			fixed[j] = free
		}
		res := newLPForm(p).solveRelaxation(fixed, relaxOptions{})
		require.Equal(t, lpOptimal, res.status, "trial %d", trial)
		assert.InDelta(t, want, res.obj, 1e-6*math.Max(1, math.Abs(want)), "trial %d", trial)
		assert.NoError(t, p.Check(res.x, 1e-6), "trial %d", trial)
	}
}

func TestSolveRelaxation_WarmStartAfterBranching(t *testing.T) {
	p, vars := knapsack()
	f := newLPForm(p)
	fixed := []int8{free, free, free}

	root := f.solveRelaxation(fixed, relaxOptions{})
	require.Equal(t, lpOptimal, root.status)
	require.NotNil(t, root.basis)

	fixed[vars[1]] = 1
	warm := f.solveRelaxation(fixed, relaxOptions{warm: root.basis})
	cold := f.solveRelaxation(fixed, relaxOptions{})
	require.Equal(t, lpOptimal, warm.status)
	require.Equal(t, lpOptimal, cold.status)
	assert.InDelta(t, cold.obj, warm.obj, 1e-9)
	assert.InDelta(t, 1, warm.x[vars[1]], 1e-9)
}

func TestSolveRelaxation_Perturbed(t *testing.T) {
	p, _ := knapsack()
	f := newLPForm(p)

	exact := f.solveRelaxation([]int8{free, free, free}, relaxOptions{})
	shaken := f.solveRelaxation([]int8{free, free, free}, relaxOptions{perturb: true})
	require.Equal(t, lpOptimal, shaken.status)
	assert.True(t, shaken.inexact)
	assert.False(t, exact.inexact)
	assert.InDelta(t, exact.obj, shaken.obj, 1e-4)
}

func TestSolveRelaxation_Stop(t *testing.T) {
	p, _ := knapsack()
	f := newLPForm(p)

	res := f.solveRelaxation([]int8{free, free, free}, relaxOptions{stop: func() bool { return true }})
	assert.Equal(t, lpStopped, res.status)
	assert.Nil(t, res.x)
}

func TestLPStatusString(t *testing.T) {
	assert.Equal(t, "optimal", lpOptimal.String())
	assert.Equal(t, "stopped", lpStopped.String())
	assert.Equal(t, "failed", lpFailed.String())
}
