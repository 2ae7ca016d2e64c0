package engine

import (
	"fmt"

	"github.com/piwi3910/CoilCut/internal/model"
)

// Slots below these values are solver noise, not produced rolls.
const (
	activeThreshold = 0.5
	noiseFloorM     = 10.0
)

// extract turns a solved variable assignment into the caller-facing report.
// Weight is attributed to the orders of a roll strictly in proportion to the
// width they occupy.
func extract(stocks []model.StockRoll, orders []model.Order, lay *layout, x []float64) model.SolutionReport {
	report := model.SolutionReport{
		Coverage: make(map[string]model.OrderCoverage, len(orders)),
	}

	allocated := make([]float64, len(orders))
	usedMeters := make([]float64, len(stocks))
	setups := make(map[string]struct{})
	logical := make(map[int]struct{})

	for i, p := range lay.patterns {
		stock := stocks[p.Stock]
		first, end := lay.slots(i)
		for s := first; s < end; s++ {
			meters := x[lay.ml[s]]
			if x[lay.active[s]] <= activeThreshold || meters <= noiseFloorM {
				continue
			}

			roll := model.RollInstance{
				ID:           fmt.Sprintf("R%03d", len(report.Rolls)+1),
				Pattern:      p.Index,
				PatternKey:   p.Key,
				SetupKey:     p.SetupKey,
				StockID:      stock.ID,
				Stock:        stock.Descriptor(),
				StockWidthMM: stock.WidthMM,
				LinearMeters: meters,
				GrossKg:      meters * stock.KgPerMeter(),
				UsedWidthMM:  p.UsedWidthMM,
				WasteWidthMM: p.WasteWidthMM,
			}
			for _, c := range p.Cuts {
				kg := meters * model.KgPerMeter(c.Width(), stock.ThicknessMM)
				roll.Allocations = append(roll.Allocations, model.Allocation{
					OrderID:     c.OrderID,
					Cuts:        c.Count,
					CutWidthMM:  c.WidthMM,
					AllocatedKg: kg,
				})
				allocated[c.Order] += kg
			}

			report.Rolls = append(report.Rolls, roll)
			report.TotalWasteMM += roll.WasteWidthMM
			report.TotalKg += roll.GrossKg
			report.TotalAllocatedKg += roll.AllocatedKg()
			usedMeters[p.Stock] += meters
			setups[p.SetupKey] = struct{}{}
			logical[p.Index] = struct{}{}
		}
	}

	report.NumRolls = len(report.Rolls)
	report.NumDistinctSetups = len(setups)
	report.NumLogicalPatterns = len(logical)

	report.IsFullyValid = len(orders) > 0
	for o, order := range orders {
		cov := model.NewOrderCoverage(order.ID, allocated[o], order.RequestedKg)
		report.Coverage[order.ID] = cov
		if !cov.Covered {
			report.IsFullyValid = false
		}
	}

	for si, stock := range stocks {
		usedKg := usedMeters[si] * stock.KgPerMeter()
		report.StockUsage = append(report.StockUsage, model.StockUsage{
			StockID:     stock.ID,
			Stock:       stock.Descriptor(),
			AvailableKg: stock.AvailableKg,
			UsedKg:      usedKg,
			UsedMeters:  usedMeters[si],
			RemainderKg: stock.AvailableKg - usedKg,
			RemainderM:  stock.BudgetMeters() - usedMeters[si],
		})
	}
	return report
}
