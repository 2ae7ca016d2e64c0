package engine

import (
	"testing"

	"github.com/piwi3910/CoilCut/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_ProportionalAttribution(t *testing.T) {
	params := scenarioParams()
	stocks := []model.StockRoll{testStock("S1", 1000, 5000)}
	orders := []model.Order{testOrder("A", 300, 700), testOrder("B", 200, 440)}

	p := newPattern(0, stocks[0], orders, []int{1, 0}, []int{2, 2})
	p.Key = shortHash(logicalKey(0, p.Cuts))
	p.SetupKey = shortHash(setupKey(stocks[0], p.Cuts))
	prob, lay := buildModel(params, stocks, orders, []model.Pattern{p})
	require.GreaterOrEqual(t, lay.numSlots[0], 3)

	x := make([]float64, prob.NumVars())
	x[lay.use[0]] = 1
	x[lay.active[0]] = 1
	x[lay.ml[0]] = 400
	x[lay.active[1]] = 1
	x[lay.ml[1]] = 5 // below the noise floor
	x[lay.active[2]] = 0.3
	x[lay.ml[2]] = 300

	report := extract(stocks, orders, lay, x)

	require.Len(t, report.Rolls, 1)
	roll := report.Rolls[0]
	assert.Equal(t, "R001", roll.ID)
	assert.Equal(t, "2×300+2×200", roll.Layout())
	assert.InDelta(t, 400*2.73, roll.GrossKg, 1e-9)
	require.Len(t, roll.Allocations, 2)
	assert.Equal(t, "A", roll.Allocations[0].OrderID)
	assert.InDelta(t, 400*2.73*0.6, roll.Allocations[0].AllocatedKg, 1e-9)
	assert.InDelta(t, 400*2.73*0.4, roll.Allocations[1].AllocatedKg, 1e-9)
	assert.InDelta(t, 1.5, roll.Allocations[0].AllocatedKg/roll.Allocations[1].AllocatedKg, 1e-12)
	assert.InDelta(t, roll.GrossKg, roll.AllocatedKg(), 1e-9, "no edge waste, so the whole roll is attributed")

	assert.Equal(t, 1, report.NumRolls)
	assert.Equal(t, 1, report.NumDistinctSetups)
	assert.Equal(t, 1, report.NumLogicalPatterns)
	assert.Equal(t, 0.0, report.TotalWasteMM)

	a, b := report.Coverage["A"], report.Coverage["B"]
	assert.False(t, a.Covered, "655 of 700 kg is below the reporting threshold")
	assert.True(t, b.Covered)
	assert.False(t, report.IsFullyValid)

	require.Len(t, report.StockUsage, 1)
	usage := report.StockUsage[0]
	assert.InDelta(t, 400, usage.UsedMeters, 1e-9)
	assert.InDelta(t, 5000-400*2.73, usage.RemainderKg, 1e-9)
	assert.InDelta(t, 5000/2.73-400, usage.RemainderM, 1e-9)
}

func TestExtract_WasteIsAttributedToNoOrder(t *testing.T) {
	params := scenarioParams()
	stocks := []model.StockRoll{testStock("S1", 1000, 5000)}
	orders := []model.Order{testOrder("A", 400, 1000)}
	p := newPattern(0, stocks[0], orders, []int{0}, []int{2})
	prob, lay := buildModel(params, stocks, orders, []model.Pattern{p})

	x := make([]float64, prob.NumVars())
	x[lay.use[0]] = 1
	x[lay.active[0]] = 1
	x[lay.ml[0]] = 500

	report := extract(stocks, orders, lay, x)

	require.Len(t, report.Rolls, 1)
	assert.InDelta(t, 0.8*report.Rolls[0].GrossKg, report.Rolls[0].AllocatedKg(), 1e-9)
	assert.InDelta(t, report.TotalKg-report.TotalAllocatedKg, 0.2*report.TotalKg, 1e-9)
	assert.Equal(t, 200.0, report.TotalWasteMM)
}

func TestExtract_NoRolls(t *testing.T) {
	params := scenarioParams()
	stocks := []model.StockRoll{testStock("S1", 1000, 5000)}
	orders := []model.Order{testOrder("A", 400, 1000)}
	p := newPattern(0, stocks[0], orders, []int{0}, []int{2})
	prob, lay := buildModel(params, stocks, orders, []model.Pattern{p})

	report := extract(stocks, orders, lay, make([]float64, prob.NumVars()))

	assert.Zero(t, report.NumRolls)
	assert.Zero(t, report.NumDistinctSetups)
	assert.False(t, report.IsFullyValid)
	assert.Equal(t, 0.0, report.Coverage["A"].AllocatedKg)
}
