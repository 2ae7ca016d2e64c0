package engine

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/piwi3910/CoilCut/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func generateFor(t *testing.T, params model.Params, stocks []model.StockRoll, orders []model.Order, workers int) []model.Pattern {
	t.Helper()
	compat, _ := compatibleOrders(stocks, orders)
	patterns, err := generatePatterns(context.Background(), params, stocks, orders, compat, workers)
	require.NoError(t, err)
	return patterns
}

func TestCutCeiling(t *testing.T) {
	params := defaultTestParams()
	params.MaxCutsPerOrder = 15

	tests := []struct {
		name       string
		k, pos     int
		stockWidth float64
		orderWidth float64
		want       int
	}{
		{"single order capped by max cuts", 1, 0, 10000, 100, 15},
		{"single order capped by width", 1, 0, 1000, 400, 2},
		{"exact fit counts", 1, 0, 1000, 250, 4},
		{"pair", 2, 1, 10000, 50, 10},
		{"triple tail", 3, 2, 10000, 50, 8},
		{"six orders last", 6, 5, 10000, 50, 3},
		{"pair capped by width", 2, 0, 1000, 300, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cutCeiling(params, tt.k, tt.pos, tt.stockWidth, tt.orderWidth))
		})
	}

	params.MaxCutsPerOrder = 5
	assert.Equal(t, 5, cutCeiling(params, 2, 0, 10000, 50), "max_cuts_per_order also bounds multi-order patterns")
}

func TestGeneratePatterns_ScenarioA(t *testing.T) {
	params := scenarioParams()
	stocks := []model.StockRoll{testStock("S1", 1000, 5000)}
	orders := []model.Order{testOrder("A", 400, 1000)}

	patterns := generateFor(t, params, stocks, orders, 1)

	require.Len(t, patterns, 1)
	assert.Equal(t, "2×400", patterns[0].String())
	assert.Equal(t, 200.0, patterns[0].WasteWidthMM)
	assert.Equal(t, 0, patterns[0].Index)
	assert.Len(t, patterns[0].Key, 16)
	assert.Len(t, patterns[0].SetupKey, 16)
}

func TestGeneratePatterns_WasteBoundAndCeilings(t *testing.T) {
	params := defaultTestParams()
	params.EdgeWasteMinMM = 5
	params.EdgeWasteMaxMM = 40
	params.MaxOrdersPerPattern = 4
	stocks := []model.StockRoll{
		testStock("S1", 1250, 9000),
		testStock("S2", 1000, 9000),
	}
	orders := []model.Order{
		testOrder("A", 95, 500),
		testOrder("B", 120, 500),
		testOrder("C", 200, 500),
		testOrder("D", 310, 500),
		testOrder("E", 415, 500),
	}

	patterns := generateFor(t, params, stocks, orders, 2)
	require.NotEmpty(t, patterns)

	for i, p := range patterns {
		stock := stocks[p.Stock]
		assert.Equal(t, i, p.Index)
		assert.LessOrEqual(t, p.UsedWidthMM, stock.WidthMM+widthTolerance, "pattern %s", p)
		assert.GreaterOrEqual(t, p.WasteWidthMM, params.EdgeWasteMinMM-widthTolerance, "pattern %s", p)
		assert.LessOrEqual(t, p.WasteWidthMM, params.EdgeWasteMaxMM+widthTolerance, "pattern %s", p)
		assert.LessOrEqual(t, len(p.Cuts), params.MaxOrdersPerPattern)

		used := 0.0
		for _, c := range p.Cuts {
			assert.GreaterOrEqual(t, c.Count, 1)
			assert.LessOrEqual(t, c.Count, params.MaxCutsPerOrder)
			if len(p.Cuts) > 1 {
				assert.LessOrEqual(t, c.Count, cutCeilings[len(p.Cuts)][0])
			}
			used += c.Width()
		}
		assert.InDelta(t, used, p.UsedWidthMM, 1e-9)
	}
}

func TestGeneratePatterns_Dedup(t *testing.T) {
	params := defaultTestParams()
	params.EdgeWasteMaxMM = 50
	params.MaxOrdersPerPattern = 3
	stock := testStock("S1", 1000, 5000)
	// Duplicate records of one order collapse to the same logical key.
	orders := []model.Order{
		testOrder("A", 250, 500),
		testOrder("A", 250, 500),
		testOrder("B", 500, 500),
	}

	patterns, err := patternsForStock(context.Background(), params, 0, stock, orders, allIndices(len(orders)))
	require.NoError(t, err)

	seen := make(map[string]string)
	for _, p := range patterns {
		key := logicalKey(p.Stock, p.Cuts)
		prev, dup := seen[key]
		assert.False(t, dup, "%s duplicates %s", p, prev)
		seen[key] = p.String()
	}
	assert.Contains(t, seen, logicalKey(0, []model.Cut{{OrderID: "A", Count: 4, WidthMM: 250}}))
}

func TestGeneratePatterns_SameWidthSharesSetup(t *testing.T) {
	params := scenarioParams()
	params.EdgeWasteMaxMM = 10
	stocks := []model.StockRoll{testStock("S1", 1000, 5000)}
	orders := []model.Order{testOrder("X", 500, 1000), testOrder("Y", 500, 1000)}

	patterns := generateFor(t, params, stocks, orders, 1)

	require.Len(t, patterns, 3, "X×2, Y×2 and X+Y")
	keys := make(map[string]bool)
	for _, p := range patterns {
		keys[p.Key] = true
		assert.Equal(t, patterns[0].SetupKey, p.SetupKey)
	}
	assert.Len(t, keys, 3)
}

func TestGeneratePatterns_SetupKeyDependsOnStock(t *testing.T) {
	params := scenarioParams()
	params.EdgeWasteMaxMM = 100
	stocks := []model.StockRoll{testStock("S1", 1000, 5000), testStock("S2", 900, 5000)}
	orders := []model.Order{testOrder("A", 300, 1000)}

	patterns := generateFor(t, params, stocks, orders, 2)

	require.Len(t, patterns, 2)
	assert.Equal(t, 0, patterns[0].Stock)
	assert.Equal(t, 1, patterns[1].Stock)
	assert.Equal(t, "3×300", patterns[0].String())
	assert.Equal(t, "3×300", patterns[1].String())
	assert.NotEqual(t, patterns[0].SetupKey, patterns[1].SetupKey)
}

func TestGeneratePatterns_SingleOrderPatterns(t *testing.T) {
	params := defaultTestParams()
	params.EdgeWasteMaxMM = 100
	params.MaxOrdersPerPattern = 1
	stocks := []model.StockRoll{testStock("S1", 1000, 5000)}
	orders := []model.Order{testOrder("A", 300, 500), testOrder("B", 330, 500), testOrder("C", 450, 500)}

	patterns := generateFor(t, params, stocks, orders, 1)

	for _, p := range patterns {
		assert.Len(t, p.Cuts, 1, "pattern %s", p)
	}
}

func TestGeneratePatterns_NoCompatibleOrders(t *testing.T) {
	params := defaultTestParams()
	stocks := []model.StockRoll{testStock("S1", 300, 5000)}
	wide := testOrder("A", 400, 1000)
	other := testOrder("B", 200, 1000)
	other.ThicknessMM = 2.0

	compat, unmatched := compatibleOrders(stocks, []model.Order{wide, other})
	assert.Empty(t, compat[0])
	assert.Equal(t, []string{"A", "B"}, unmatched)

	patterns, err := generatePatterns(context.Background(), params, stocks, []model.Order{wide, other}, compat, 1)
	require.NoError(t, err)
	assert.Empty(t, patterns)
}

func TestGeneratePatterns_DeterministicAcrossWorkers(t *testing.T) {
	params := defaultTestParams()
	params.EdgeWasteMaxMM = 60
	params.MaxOrdersPerPattern = 3
	stocks := []model.StockRoll{
		testStock("S1", 1250, 9000),
		testStock("S2", 1000, 9000),
		testStock("S3", 1500, 9000),
	}
	orders := []model.Order{
		testOrder("A", 95, 500),
		testOrder("B", 120, 500),
		testOrder("C", 310, 500),
		testOrder("D", 415, 500),
	}

	sequential := generateFor(t, params, stocks, orders, 1)
	parallel := generateFor(t, params, stocks, orders, 4)

	if diff := cmp.Diff(sequential, parallel); diff != "" {
		t.Errorf("arena differs between worker counts (-seq +par):\n%s", diff)
	}
}

func TestGeneratePatterns_Cancelled(t *testing.T) {
	params := defaultTestParams()
	params.EdgeWasteMaxMM = 100
	stock := testStock("S1", 3000, 50000)
	var orders []model.Order
	for i := 0; i < 12; i++ {
		orders = append(orders, testOrder(string(rune('A'+i)), float64(40+7*i), 500))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := patternsForStock(ctx, params, 0, stock, orders, allIndices(len(orders)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLogicalKey_OrderIndependent(t *testing.T) {
	a := []model.Cut{{OrderID: "B", Count: 2}, {OrderID: "A", Count: 1}}
	b := []model.Cut{{OrderID: "A", Count: 1}, {OrderID: "B", Count: 2}}
	assert.Equal(t, logicalKey(0, a), logicalKey(0, b))
	assert.NotEqual(t, logicalKey(0, a), logicalKey(1, a))
	assert.NotEqual(t, logicalKey(0, a), logicalKey(0, []model.Cut{{OrderID: "A", Count: 2}, {OrderID: "B", Count: 1}}))
}

func TestSetupKey_MergesEqualWidths(t *testing.T) {
	stock := testStock("S1", 1000, 5000)
	mixed := []model.Cut{{OrderID: "X", Count: 1, WidthMM: 500}, {OrderID: "Y", Count: 1, WidthMM: 500}}
	single := []model.Cut{{OrderID: "X", Count: 2, WidthMM: 500}}
	assert.Equal(t, setupKey(stock, mixed), setupKey(stock, single))

	other := stock
	other.Temper = "H24"
	assert.NotEqual(t, setupKey(stock, single), setupKey(other, single))
}
