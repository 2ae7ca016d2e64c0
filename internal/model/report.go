package model

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CoveredThreshold is the fraction of the requested weight an order needs to
// count as covered in a report. It is looser than the hard coverage margin
// and only used for reporting.
const CoveredThreshold = 0.95

// SolveStatus describes how the solver terminated for a reported solution.
type SolveStatus string

const (
	StatusOptimal  SolveStatus = "optimal"  // proven optimal within the time budget
	StatusFeasible SolveStatus = "feasible" // best incumbent when the budget ran out
)

// OrderCoverage summarises how much of an order a solution delivers.
type OrderCoverage struct {
	OrderID     string  `json:"order_id"`
	AllocatedKg float64 `json:"allocated_kg"`
	RequestedKg float64 `json:"requested_kg"`
	Percent     float64 `json:"percent"`
	Covered     bool    `json:"covered"`
}

// NewOrderCoverage derives percent and covered flag from the raw weights.
func NewOrderCoverage(orderID string, allocated, requested float64) OrderCoverage {
	c := OrderCoverage{
		OrderID:     orderID,
		AllocatedKg: allocated,
		RequestedKg: requested,
	}
	if requested > 0 {
		c.Percent = allocated / requested * 100
		c.Covered = allocated >= requested*CoveredThreshold
	}
	return c
}

// StockUsage is the consumption of one stock roll in a solution.
type StockUsage struct {
	StockID     string  `json:"stock_id"`
	Stock       string  `json:"stock"`
	AvailableKg float64 `json:"available_kg"`
	UsedKg      float64 `json:"used_kg"`
	UsedMeters  float64 `json:"used_meters"`
	RemainderKg float64 `json:"remainder_kg"`
	RemainderM  float64 `json:"remainder_m"`
}

// SolutionReport is the caller-facing result of one engine invocation.
type SolutionReport struct {
	RunID              string                   `json:"run_id"`
	Status             SolveStatus              `json:"status"`
	ProvenOptimal      bool                     `json:"proven_optimal"`
	Objective          float64                  `json:"objective"`
	NumRolls           int                      `json:"num_rolls"`
	NumDistinctSetups  int                      `json:"num_distinct_setups"`
	NumLogicalPatterns int                      `json:"num_logical_patterns"`
	TotalWasteMM       float64                  `json:"total_waste_mm"`
	TotalKg            float64                  `json:"total_kg"`
	TotalAllocatedKg   float64                  `json:"total_allocated_kg"`
	Coverage           map[string]OrderCoverage `json:"coverage"`
	IsFullyValid       bool                     `json:"is_fully_valid"`
	SolveTimeS         float64                  `json:"solve_time_s"`
	StockUsage         []StockUsage             `json:"stock_usage"`
	Rolls              []RollInstance           `json:"rolls"`
}

// MinCoveragePercent returns the lowest per-order coverage percentage, or 0
// when the report covers no orders.
func (r SolutionReport) MinCoveragePercent() float64 {
	if len(r.Coverage) == 0 {
		return 0
	}
	lowest := -1.0
	for _, c := range r.Coverage {
		if lowest < 0 || c.Percent < lowest {
			lowest = c.Percent
		}
	}
	return lowest
}

// OrderIDs returns the covered order IDs in sorted order.
func (r SolutionReport) OrderIDs() []string {
	ids := make([]string, 0, len(r.Coverage))
	for id := range r.Coverage {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RollRecord is one flat output line: one order on one produced roll.
type RollRecord struct {
	RollID       string  `json:"roll_id"`
	Stock        string  `json:"stock"`
	OrderID      string  `json:"order_id"`
	Cuts         int     `json:"cuts"`
	CutWidthMM   float64 `json:"cut_width_mm"`
	LinearMeters float64 `json:"linear_meters"`
	AllocatedKg  float64 `json:"allocated_kg"`
	GrossKg      float64 `json:"gross_kg"`
	StockWidthMM float64 `json:"stock_width_mm"`
	WasteWidthMM float64 `json:"waste_width_mm"`
}

// Rows flattens the report into one record per order per roll, with
// meters and weights rounded to two decimals.
func (r SolutionReport) Rows() []RollRecord {
	var rows []RollRecord
	for _, roll := range r.Rolls {
		for _, a := range roll.Allocations {
			rows = append(rows, RollRecord{
				RollID:       roll.ID,
				Stock:        roll.Stock,
				OrderID:      a.OrderID,
				Cuts:         a.Cuts,
				CutWidthMM:   a.CutWidthMM,
				LinearMeters: Round2(roll.LinearMeters),
				AllocatedKg:  Round2(a.AllocatedKg),
				GrossKg:      Round2(roll.GrossKg),
				StockWidthMM: roll.StockWidthMM,
				WasteWidthMM: roll.WasteWidthMM,
			})
		}
	}
	return rows
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
