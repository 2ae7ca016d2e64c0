package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Outcome sentinels. Optimize wraps them in *OptimizeError; match with errors.Is.
var (
	ErrInvalidParams = errors.New("invalid parameters")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInfeasible    = errors.New("no assignment satisfies all hard constraints")
	ErrTimeLimit     = errors.New("time limit reached without a feasible solution")
	ErrUnbounded     = errors.New("model is unbounded")
	ErrSolver        = errors.New("solver failure")
)

// OptimizeError describes why Optimize returned no report.
type OptimizeError struct {
	Err             error
	Detail          string
	UnmatchedOrders []string // orders without any compatible stock roll
	Patterns        int      // candidate patterns generated before the failure
}

func (e *OptimizeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if len(e.UnmatchedOrders) > 0 {
		fmt.Fprintf(&b, " (orders without compatible stock: %s)", strings.Join(e.UnmatchedOrders, ", "))
	}
	return b.String()
}

func (e *OptimizeError) Unwrap() error {
	return e.Err
}
