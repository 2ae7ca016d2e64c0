package model

import (
	"fmt"
	"time"
)

// ObjectiveMode selects how the three objective goals are combined.
type ObjectiveMode string

const (
	ObjectiveWeighted      ObjectiveMode = "weighted"      // fixed weight separation in one solve
	ObjectiveLexicographic ObjectiveMode = "lexicographic" // minimise setups first, then the rest
)

// Params holds the engine configuration for one invocation.
type Params struct {
	EdgeWasteMinMM      float64 `json:"edge_waste_min_mm" yaml:"edge_waste_min_mm" mapstructure:"edge_waste_min_mm"`
	EdgeWasteMaxMM      float64 `json:"edge_waste_max_mm" yaml:"edge_waste_max_mm" mapstructure:"edge_waste_max_mm"`
	RollWeightMaxKg     float64 `json:"roll_weight_max_kg" yaml:"roll_weight_max_kg" mapstructure:"roll_weight_max_kg"`
	RollWeightMinKg     float64 `json:"roll_weight_min_kg" yaml:"roll_weight_min_kg" mapstructure:"roll_weight_min_kg"`
	MaxCutsPerOrder     int     `json:"max_cuts_per_order" yaml:"max_cuts_per_order" mapstructure:"max_cuts_per_order"`
	CoverageMargin      float64 `json:"coverage_margin" yaml:"coverage_margin" mapstructure:"coverage_margin"`
	ExcessMarginFactor  float64 `json:"excess_margin_factor" yaml:"excess_margin_factor" mapstructure:"excess_margin_factor"`
	MinRunRelaxationPct float64 `json:"min_run_relaxation_pct" yaml:"min_run_relaxation_pct" mapstructure:"min_run_relaxation_pct"`
	MinRemainderM       float64 `json:"min_remainder_m" yaml:"min_remainder_m" mapstructure:"min_remainder_m"` // 0 disables
	SolveTimeLimitS     int     `json:"solve_time_limit_s" yaml:"solve_time_limit_s" mapstructure:"solve_time_limit_s"`
	MaxOrdersPerPattern int     `json:"max_orders_per_pattern" yaml:"max_orders_per_pattern" mapstructure:"max_orders_per_pattern"`
	WastePenaltyFactor  float64 `json:"waste_penalty_factor" yaml:"waste_penalty_factor" mapstructure:"waste_penalty_factor"`

	MaxInstances      int           `json:"max_instances" yaml:"max_instances" mapstructure:"max_instances"`
	Threads           int           `json:"threads" yaml:"threads" mapstructure:"threads"`                                  // 0 = GOMAXPROCS
	GenerationWorkers int           `json:"generation_workers" yaml:"generation_workers" mapstructure:"generation_workers"` // 0 = GOMAXPROCS
	Objective         ObjectiveMode `json:"objective" yaml:"objective" mapstructure:"objective"`
	Verbose           bool          `json:"verbose" yaml:"verbose" mapstructure:"verbose"`
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		EdgeWasteMinMM:      0,
		EdgeWasteMaxMM:      40,
		RollWeightMaxKg:     7500,
		RollWeightMinKg:     200,
		MaxCutsPerOrder:     15,
		CoverageMargin:      0.95,
		ExcessMarginFactor:  1.15,
		MinRunRelaxationPct: 50,
		MinRemainderM:       0,
		SolveTimeLimitS:     300,
		MaxOrdersPerPattern: 6,
		WastePenaltyFactor:  0.01,
		MaxInstances:        20,
		Threads:             0,
		GenerationWorkers:   0,
		Objective:           ObjectiveWeighted,
	}
}

// TimeLimit returns the solve budget as a duration.
func (p Params) TimeLimit() time.Duration {
	return time.Duration(p.SolveTimeLimitS) * time.Second
}

// Validate checks the consistency the engine relies on. It accepts values
// outside the operator ranges of CheckRanges, for what-if runs and tests.
func (p Params) Validate() error {
	if p.EdgeWasteMinMM < 0 {
		return fmt.Errorf("edge_waste_min_mm must not be negative, got %g", p.EdgeWasteMinMM)
	}
	if p.EdgeWasteMaxMM < p.EdgeWasteMinMM {
		return fmt.Errorf("edge_waste_max_mm (%.1f) must not be below edge_waste_min_mm (%.1f)", p.EdgeWasteMaxMM, p.EdgeWasteMinMM)
	}
	if p.RollWeightMinKg < 0 {
		return fmt.Errorf("roll_weight_min_kg must not be negative, got %g", p.RollWeightMinKg)
	}
	if p.RollWeightMinKg >= p.RollWeightMaxKg {
		return fmt.Errorf("roll_weight_min_kg (%.0f) must be below roll_weight_max_kg (%.0f)", p.RollWeightMinKg, p.RollWeightMaxKg)
	}
	if p.MaxCutsPerOrder < 1 {
		return fmt.Errorf("max_cuts_per_order must be at least 1, got %d", p.MaxCutsPerOrder)
	}
	if !(p.CoverageMargin > 0 && p.CoverageMargin <= 1) {
		return fmt.Errorf("coverage_margin must be in (0, 1], got %g", p.CoverageMargin)
	}
	if p.ExcessMarginFactor < 1.0 {
		return fmt.Errorf("excess_margin_factor must be at least 1.0, got %.2f", p.ExcessMarginFactor)
	}
	if err := between("min_run_relaxation_pct", p.MinRunRelaxationPct, 0, 100); err != nil {
		return err
	}
	if p.MinRemainderM < 0 {
		return fmt.Errorf("min_remainder_m must not be negative, got %g", p.MinRemainderM)
	}
	if p.SolveTimeLimitS < 1 {
		return fmt.Errorf("solve_time_limit_s must be at least 1, got %d", p.SolveTimeLimitS)
	}
	if err := between("max_orders_per_pattern", float64(p.MaxOrdersPerPattern), 1, 6); err != nil {
		return err
	}
	if p.WastePenaltyFactor < 0 {
		return fmt.Errorf("waste_penalty_factor must not be negative, got %g", p.WastePenaltyFactor)
	}
	if p.MaxInstances < 1 {
		return fmt.Errorf("max_instances must be at least 1, got %d", p.MaxInstances)
	}
	if p.Threads < 0 || p.GenerationWorkers < 0 {
		return fmt.Errorf("threads and generation_workers must not be negative")
	}
	switch p.Objective {
	case ObjectiveWeighted, ObjectiveLexicographic:
	default:
		return fmt.Errorf("objective must be %q or %q, got %q", ObjectiveWeighted, ObjectiveLexicographic, p.Objective)
	}
	return nil
}

// CheckRanges validates p and enforces the ranges operators may configure.
func (p Params) CheckRanges() error {
	if err := p.Validate(); err != nil {
		return err
	}
	ranges := []struct {
		name   string
		v      float64
		lo, hi float64
	}{
		{"edge_waste_min_mm", p.EdgeWasteMinMM, 0, 50},
		{"edge_waste_max_mm", p.EdgeWasteMaxMM, 0, 100},
		{"roll_weight_max_kg", p.RollWeightMaxKg, 1000, 10000},
		{"roll_weight_min_kg", p.RollWeightMinKg, 50, 2000},
		{"max_cuts_per_order", float64(p.MaxCutsPerOrder), 5, 30},
		{"coverage_margin", p.CoverageMargin, 0.80, 1.00},
		{"min_remainder_m", p.MinRemainderM, 0, 1000},
		{"solve_time_limit_s", float64(p.SolveTimeLimitS), 30, 600},
		{"waste_penalty_factor", p.WastePenaltyFactor, 0, 0.1},
		{"max_instances", float64(p.MaxInstances), 1, 100},
	}
	for _, r := range ranges {
		if err := between(r.name, r.v, r.lo, r.hi); err != nil {
			return err
		}
	}
	return nil
}

func between(name string, v, lo, hi float64) error {
	if v < lo || v > hi {
		return fmt.Errorf("%s must be between %g and %g, got %g", name, lo, hi, v)
	}
	return nil
}
