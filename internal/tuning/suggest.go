package tuning

import (
	"errors"
	"fmt"
	"math"

	"github.com/piwi3910/CoilCut/internal/model"
)

// DataSummary describes the widths and weights of an input set.
type DataSummary struct {
	Stocks           int
	Orders           int
	MinStockWidthMM  float64
	MaxStockWidthMM  float64
	MinOrderWidthMM  float64
	MaxOrderWidthMM  float64
	TotalAvailableKg float64
	TotalRequestedKg float64
	MeanOrderKg      float64
	// DemandRatio is requested over available weight.
	DemandRatio float64
	// Suggested edge waste window: 5% of the narrowest order (at least 5 mm)
	// to 5% of the widest coil (at most 100 mm).
	SuggestedWasteMinMM float64
	SuggestedWasteMaxMM float64
}

// AnalyzeData summarises stocks and orders.
func AnalyzeData(stocks []model.StockRoll, orders []model.Order) (DataSummary, error) {
	if len(stocks) == 0 || len(orders) == 0 {
		return DataSummary{}, errors.New("analysis needs at least one stock roll and one order")
	}

	s := DataSummary{
		Stocks:          len(stocks),
		Orders:          len(orders),
		MinStockWidthMM: math.Inf(1),
		MinOrderWidthMM: math.Inf(1),
	}
	for _, st := range stocks {
		s.MinStockWidthMM = math.Min(s.MinStockWidthMM, st.WidthMM)
		s.MaxStockWidthMM = math.Max(s.MaxStockWidthMM, st.WidthMM)
		s.TotalAvailableKg += st.AvailableKg
	}
	for _, o := range orders {
		s.MinOrderWidthMM = math.Min(s.MinOrderWidthMM, o.WidthMM)
		s.MaxOrderWidthMM = math.Max(s.MaxOrderWidthMM, o.WidthMM)
		s.TotalRequestedKg += o.RequestedKg
	}
	s.MeanOrderKg = s.TotalRequestedKg / float64(len(orders))
	if s.TotalAvailableKg > 0 {
		s.DemandRatio = s.TotalRequestedKg / s.TotalAvailableKg
	}
	s.SuggestedWasteMinMM = math.Max(5, math.Floor(s.MinOrderWidthMM*0.05))
	s.SuggestedWasteMaxMM = math.Min(100, math.Floor(s.MaxStockWidthMM*0.05))
	return s, nil
}

// Reason explains one suggested value.
type Reason struct {
	Param string
	Why   string
}

// Suggestion is a starting parameter set derived from the data.
type Suggestion struct {
	Params  model.Params
	Summary DataSummary
	Reasons []Reason
}

// tightDemandRatio is the demand/supply ratio above which suggestions favour
// flexibility over remainder quality.
const tightDemandRatio = 0.9

// SuggestParams derives starting parameters from the data without running
// the engine. Parameters the heuristics do not cover are taken from base.
func SuggestParams(stocks []model.StockRoll, orders []model.Order, base model.Params) (Suggestion, error) {
	summary, err := AnalyzeData(stocks, orders)
	if err != nil {
		return Suggestion{}, err
	}

	p := base
	p.EdgeWasteMinMM = 8
	if summary.MinOrderWidthMM < 200 {
		p.EdgeWasteMinMM = 5
	}
	p.EdgeWasteMaxMM = math.Max(40, math.Min(80, math.Floor(summary.MaxStockWidthMM*0.05)))

	if summary.DemandRatio > tightDemandRatio {
		p.ExcessMarginFactor = 1.50
		p.MinRemainderM = 300
	} else {
		p.ExcessMarginFactor = 1.30
		p.MinRemainderM = 600
	}
	p.CoverageMargin = 0.90
	p.MinRunRelaxationPct = 50
	p.WastePenaltyFactor = 0.01
	p.RollWeightMaxKg = 7500
	p.RollWeightMinKg = 200
	p.MaxCutsPerOrder = 15

	return Suggestion{
		Params:  p,
		Summary: summary,
		Reasons: []Reason{
			{"edge waste", fmt.Sprintf("based on widths of %.0f-%.0fmm", summary.MinOrderWidthMM, summary.MaxStockWidthMM)},
			{"excess margin", fmt.Sprintf("demand/material ratio %.1f%%", summary.DemandRatio*100)},
			{"min remainder", "balance between flexibility and coil reuse"},
			{"coverage", "90% allows flexibility in fulfilment"},
			{"run relaxation", "50% balances run-length requirements with efficiency"},
		},
	}, nil
}
