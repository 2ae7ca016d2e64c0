// Package milp solves mixed-integer linear programs with binary and bounded
// continuous variables.
//
// A Problem is built incrementally (variables, linear rows, objective) and
// handed to Solve, which runs a branch-and-bound search over LP relaxations.
// The relaxations are presolved once (single-term rows become bounds,
// repeated rows are merged) and solved with a sparse bounded-variable revised
// simplex that is warm-started from the parent node's basis. All variables
// are non-negative; every variable should be bounded above either explicitly
// or through the rows it appears in.
package milp

import (
	"fmt"
	"math"
)

// VarKind distinguishes continuous from binary variables.
type VarKind int

const (
	Continuous VarKind = iota
	Binary
)

// Var is a decision variable with lower bound 0.
type Var struct {
	Name     string
	Kind     VarKind
	Upper    float64 // +Inf when bounded only by constraints
	Priority int     // branching priority, higher first
}

// Sense is the relation of a linear row.
type Sense int

const (
	LessEq Sense = iota
	GreaterEq
	Equal
)

func (s Sense) String() string {
	switch s {
	case GreaterEq:
		return ">="
	case Equal:
		return "="
	default:
		return "<="
	}
}

// Term is one coefficient of a linear row.
type Term struct {
	Var  int
	Coef float64
}

// T is shorthand for a Term literal.
func T(v int, coef float64) Term {
	return Term{Var: v, Coef: coef}
}

// Constraint is the row Σ terms (sense) RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Problem is a minimisation MILP.
type Problem struct {
	vars []Var
	obj  []float64
	cons []Constraint
}

// NewProblem returns an empty problem with no variables, rows or objective.
func NewProblem() *Problem {
	return &Problem{}
}

// AddContinuous adds a continuous variable in [0, upper] and returns its index.
func (p *Problem) AddContinuous(name string, upper float64) int {
	return p.addVar(Var{Name: name, Kind: Continuous, Upper: upper})
}

// AddBinary adds a {0,1} variable and returns its index.
func (p *Problem) AddBinary(name string, priority int) int {
	return p.addVar(Var{Name: name, Kind: Binary, Upper: 1, Priority: priority})
}

func (p *Problem) addVar(v Var) int {
	p.vars = append(p.vars, v)
	p.obj = append(p.obj, 0)
	return len(p.vars) - 1
}

// SetObjective sets the objective coefficient of a variable.
func (p *Problem) SetObjective(v int, coef float64) {
	p.obj[v] = coef
}

// ClearObjective zeroes every objective coefficient.
func (p *Problem) ClearObjective() {
	for i := range p.obj {
		p.obj[i] = 0
	}
}

// AddConstraint appends a row. Terms referencing the same variable are summed.
func (p *Problem) AddConstraint(name string, sense Sense, rhs float64, terms ...Term) {
	p.cons = append(p.cons, Constraint{Name: name, Terms: terms, Sense: sense, RHS: rhs})
}

func (p *Problem) NumVars() int        { return len(p.vars) }
func (p *Problem) NumConstraints() int { return len(p.cons) }
func (p *Problem) Var(i int) Var       { return p.vars[i] }

// NumBinaries counts the binary variables.
func (p *Problem) NumBinaries() int {
	n := 0
	for _, v := range p.vars {
		if v.Kind == Binary {
			n++
		}
	}
	return n
}

// Clone returns a deep copy that can be extended independently.
func (p *Problem) Clone() *Problem {
	c := &Problem{
		vars: append([]Var(nil), p.vars...),
		obj:  append([]float64(nil), p.obj...),
		cons: make([]Constraint, len(p.cons)),
	}
	for i, con := range p.cons {
		con.Terms = append([]Term(nil), con.Terms...)
		c.cons[i] = con
	}
	return c
}

// Objective evaluates the objective at x.
func (p *Problem) Objective(x []float64) float64 {
	total := 0.0
	for j, c := range p.obj {
		total += c * x[j]
	}
	return total
}

// Check verifies that x satisfies bounds, integrality and every row within tol.
func (p *Problem) Check(x []float64, tol float64) error {
	if len(x) != len(p.vars) {
		return fmt.Errorf("solution has %d values, problem has %d variables", len(x), len(p.vars))
	}
	for j, v := range p.vars {
		if x[j] < -tol || x[j] > v.Upper+tol {
			return fmt.Errorf("variable %s = %g outside [0, %g]", v.Name, x[j], v.Upper)
		}
		if v.Kind == Binary && math.Abs(x[j]-math.Round(x[j])) > tol {
			return fmt.Errorf("binary %s = %g is fractional", v.Name, x[j])
		}
	}
	for _, c := range p.cons {
		lhs := 0.0
		for _, t := range c.Terms {
			lhs += t.Coef * x[t.Var]
		}
		scale := math.Max(1, math.Abs(c.RHS))
		var violated bool
		switch c.Sense {
		case LessEq:
			violated = lhs > c.RHS+tol*scale
		case GreaterEq:
			violated = lhs < c.RHS-tol*scale
		case Equal:
			violated = math.Abs(lhs-c.RHS) > tol*scale
		}
		if violated {
			return fmt.Errorf("constraint %s violated: %g %s %g", c.Name, lhs, c.Sense, c.RHS)
		}
	}
	return nil
}

func (p *Problem) validate() error {
	for j, v := range p.vars {
		if math.IsNaN(v.Upper) || v.Upper < 0 {
			return fmt.Errorf("%w: variable %d (%s) has upper bound %g", ErrInvalidProblem, j, v.Name, v.Upper)
		}
		if math.IsNaN(p.obj[j]) || math.IsInf(p.obj[j], 0) {
			return fmt.Errorf("%w: variable %d (%s) has objective %g", ErrInvalidProblem, j, v.Name, p.obj[j])
		}
	}
	for _, c := range p.cons {
		if math.IsNaN(c.RHS) || math.IsInf(c.RHS, 0) {
			return fmt.Errorf("%w: constraint %s has right-hand side %g", ErrInvalidProblem, c.Name, c.RHS)
		}
		for _, t := range c.Terms {
			if t.Var < 0 || t.Var >= len(p.vars) {
				return fmt.Errorf("%w: constraint %s references variable %d", ErrInvalidProblem, c.Name, t.Var)
			}
			if math.IsNaN(t.Coef) || math.IsInf(t.Coef, 0) {
				return fmt.Errorf("%w: constraint %s has coefficient %g", ErrInvalidProblem, c.Name, t.Coef)
			}
		}
	}
	return nil
}
