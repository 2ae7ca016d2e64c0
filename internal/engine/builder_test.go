package engine

import (
	"testing"

	"github.com/piwi3910/CoilCut/internal/milp"
	"github.com/piwi3910/CoilCut/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFor(t *testing.T, params model.Params, stocks []model.StockRoll, orders []model.Order) (*milp.Problem, *layout) {
	t.Helper()
	patterns := generateFor(t, params, stocks, orders, 1)
	require.NotEmpty(t, patterns)
	return buildModel(params, stocks, orders, patterns)
}

func TestInstanceMaxMeters(t *testing.T) {
	params := scenarioParams()

	assert.InDelta(t, 4000/2.73, instanceMaxMeters(params, testStock("S1", 1000, 5000)), 1e-9,
		"the weight ceiling bounds a roll on a large coil")
	assert.InDelta(t, 3000/2.73, instanceMaxMeters(params, testStock("S1", 1000, 3000)), 1e-9,
		"a small coil bounds the roll by its own material")
	assert.InDelta(t, 4000/(2.73*2), instanceMaxMeters(params, testStock("S1", 2000, 9000)), 1e-9)
}

func TestBuildModel_ScenarioA(t *testing.T) {
	params := scenarioParams()
	stocks := []model.StockRoll{testStock("S1", 1000, 5000)}
	orders := []model.Order{testOrder("A", 400, 1000)}

	prob, lay := buildFor(t, params, stocks, orders)

	require.Len(t, lay.use, 1)
	// The 526.56 m the order can absorb fit into one 1465 m roll.
	assert.Equal(t, 1, lay.numSlots[0])
	assert.Len(t, lay.slotPattern, 1)
	assert.InDelta(t, 4000/2.73, lay.bigM[0], 1e-9)
	assert.Equal(t, 1+1*2, prob.NumVars())
	assert.Equal(t, 1+1, prob.NumBinaries())
	for s := range lay.slotPattern {
		assert.Equal(t, noSlotVar, lay.full[s])
		assert.Equal(t, milp.Continuous, prob.Var(lay.ml[s]).Kind)
		assert.InDelta(t, lay.bigM[0], prob.Var(lay.ml[s]).Upper, 1e-9)
	}
	assert.Equal(t, []int{noSlotVar}, lay.touched)
}

func TestBuildModel_SlotsCappedByMaxInstances(t *testing.T) {
	params := scenarioParams()
	params.MaxInstances = 3
	params.RollWeightMaxKg = 400
	_, lay := buildFor(t, params, []model.StockRoll{testStock("S1", 1000, 5000)}, []model.Order{testOrder("A", 400, 1000)})
	assert.Equal(t, 3, lay.numSlots[0])
}

func TestBuildModel_NoSlotsWhenCoilBelowWeightFloor(t *testing.T) {
	params := scenarioParams()
	stocks := []model.StockRoll{testStock("S1", 1000, 50)}
	orders := []model.Order{testOrder("A", 400, 1000)}

	prob, lay := buildFor(t, params, stocks, orders)

	assert.Equal(t, 0, lay.numSlots[0])
	sol, err := milp.Solve(t.Context(), prob, milp.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, milp.Infeasible, sol.Status)
}

func TestBuildModel_RemainderVariables(t *testing.T) {
	params, stocks, orders := remainderScenario()
	params.MinRemainderM = 600

	_, lay := buildFor(t, params, stocks, orders)

	require.Len(t, lay.touched, 1)
	assert.NotEqual(t, noSlotVar, lay.touched[0])
	assert.NotEqual(t, noSlotVar, lay.leaves[0])
	for s := range lay.slotPattern {
		assert.NotEqual(t, noSlotVar, lay.full[s])
	}
}

func TestBuildModel_FeasiblePointPassesCheck(t *testing.T) {
	params := scenarioParams()
	params.RollWeightMaxKg = 1000
	stocks := []model.StockRoll{testStock("S1", 1000, 5000)}
	orders := []model.Order{testOrder("A", 400, 1000)}
	prob, lay := buildFor(t, params, stocks, orders)
	require.Equal(t, 3, lay.numSlots[0])

	x := make([]float64, prob.NumVars())
	x[lay.use[0]] = 1
	x[lay.active[0]] = 1
	x[lay.active[1]] = 1
	x[lay.ml[0]] = 300
	x[lay.ml[1]] = 200 // 1092 kg for the order
	require.NoError(t, prob.Check(x, 1e-6))

	x[lay.ml[0]] = 400 // 1092 kg, above the 1000 kg roll ceiling
	x[lay.ml[1]] = 100
	assert.Error(t, prob.Check(x, 1e-6))

	x[lay.ml[0]] = 300
	x[lay.active[2]] = 1
	x[lay.ml[2]] = 100 // a third roll pushes the order past its excess bound
	assert.Error(t, prob.Check(x, 1e-6))
}

func TestBuildModel_UnmatchedOrderHasEmptyCoverage(t *testing.T) {
	params := scenarioParams()
	stocks := []model.StockRoll{testStock("S1", 1000, 5000)}
	other := testOrder("Z", 400, 500)
	other.Temper = "O"
	orders := []model.Order{testOrder("A", 400, 1000), other}

	prob, _ := buildFor(t, params, stocks, orders)

	sol, err := milp.Solve(t.Context(), prob, milp.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, milp.Infeasible, sol.Status)
}

func TestWeightedObjectiveMatchesProblem(t *testing.T) {
	params := scenarioParams()
	params.EdgeWasteMaxMM = 400
	stocks := []model.StockRoll{testStock("S1", 1000, 5000)}
	orders := []model.Order{testOrder("A", 600, 1000), testOrder("B", 450, 1000)}
	prob, lay := buildFor(t, params, stocks, orders)

	x := make([]float64, prob.NumVars())
	for i := range x {
		x[i] = float64(i%3) * 0.5
	}

	assert.InDelta(t, prob.Objective(x), weightedObjective(lay, params, x), 1e-9)
}

func TestSlotCount_MinRunLength(t *testing.T) {
	params := scenarioParams()
	params.RollWeightMaxKg = 600
	params.MinRunRelaxationPct = 25
	stocks := []model.StockRoll{testStock("S1", 1000, 5000)}
	order := testOrder("A", 400, 1000)
	order.MinRunLengthM = 200
	orders := []model.Order{order}
	patterns := generateFor(t, params, stocks, orders, 1)

	b := &modelBuilder{params: params, stocks: stocks, orders: orders, patterns: patterns}

	assert.InDelta(t, 150, b.minRunMeters(patterns[0]), 1e-9)
	// 526.56 / 150
	assert.Equal(t, 3, b.slotCount(patterns[0]))
}

func TestSlotCount_MergeBound(t *testing.T) {
	params := scenarioParams()
	params.RollWeightMaxKg = 1000
	stocks := []model.StockRoll{testStock("S1", 1000, 5000)}
	orders := []model.Order{testOrder("A", 400, 1000)}
	patterns := generateFor(t, params, stocks, orders, 1)

	b := &modelBuilder{params: params, stocks: stocks, orders: orders, patterns: patterns}
	// 2·526.56 / 366.3 + 1 rolls, fewer than the 7 the weight floor allows.
	assert.Equal(t, 3, b.slotCount(patterns[0]))

	b.params.MinRemainderM = 100
	assert.Equal(t, 7, b.slotCount(patterns[0]), "rolls cannot be merged under the per-roll remainder rule")
}
