package engine

import (
	"context"
	"math"
	"sort"

	"github.com/piwi3910/CoilCut/internal/model"
	"golang.org/x/sync/errgroup"
)

// widthTolerance absorbs float noise when comparing widths in mm.
const widthTolerance = 1e-6

// cutCeilings[k][j] caps the cut count of the j-th order of a k-order
// pattern. Single-order patterns are capped by max_cuts_per_order only.
var cutCeilings = [][]int{
	2: {10, 10},
	3: {10, 8, 8},
	4: {8, 6, 6, 6},
	5: {6, 5, 5, 4, 4},
	6: {5, 4, 4, 3, 3, 3},
}

// cutCeiling returns the largest cut count tried for the order at position
// pos of a k-order pattern on a coil of the given width.
func cutCeiling(params model.Params, k, pos int, stockWidth, orderWidth float64) int {
	limit := params.MaxCutsPerOrder
	if k > 1 && cutCeilings[k][pos] < limit {
		limit = cutCeilings[k][pos]
	}
	if fit := int(math.Floor((stockWidth + widthTolerance) / orderWidth)); fit < limit {
		limit = fit
	}
	return limit
}

// generatePatterns enumerates the candidate patterns of every stock roll and
// returns them as one arena with stable indices. Stocks are processed
// concurrently; the arena order is the stock order, then enumeration order.
func generatePatterns(ctx context.Context, params model.Params, stocks []model.StockRoll, orders []model.Order, compat [][]int, workers int) ([]model.Pattern, error) {
	perStock := make([][]model.Pattern, len(stocks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for s := range stocks {
		s := s
		if len(compat[s]) == 0 {
			continue
		}
		g.Go(func() error {
			pats, err := patternsForStock(ctx, params, s, stocks[s], orders, compat[s])
			if err != nil {
				return err
			}
			perStock[s] = pats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var arena []model.Pattern
	for _, pats := range perStock {
		for _, p := range pats {
			p.Index = len(arena)
			arena = append(arena, p)
		}
	}
	return arena, nil
}

// patternsForStock enumerates, for k = 1..max_orders_per_pattern, every
// k-combination of the candidate orders and every cut-count assignment
// within the ceilings, keeping layouts that fit the coil with an edge waste
// inside [edge_waste_min_mm, edge_waste_max_mm].
func patternsForStock(ctx context.Context, params model.Params, si int, stock model.StockRoll, orders []model.Order, candidates []int) ([]model.Pattern, error) {
	var out []model.Pattern
	seen := make(map[string]struct{})

	minWidth := math.Inf(1)
	for _, o := range candidates {
		minWidth = math.Min(minWidth, orders[o].WidthMM)
	}

	maxK := params.MaxOrdersPerPattern
	if len(candidates) < maxK {
		maxK = len(candidates)
	}

	combo := make([]int, 0, maxK)
	counts := make([]int, 0, maxK)
	steps := 0

	var walk func(k, start int, used float64) error
	walk = func(k, start int, used float64) error {
		pos := len(combo)
		if pos == k {
			waste := stock.WidthMM - used
			if waste < params.EdgeWasteMinMM-widthTolerance || waste > params.EdgeWasteMaxMM+widthTolerance {
				return nil
			}
			p := newPattern(si, stock, orders, combo, counts)
			key := logicalKey(si, p.Cuts)
			if _, dup := seen[key]; dup {
				return nil
			}
			seen[key] = struct{}{}
			p.Key = shortHash(key)
			p.SetupKey = shortHash(setupKey(stock, p.Cuts))
			out = append(out, p)
			return nil
		}

		remaining := float64(k - pos - 1)
		for i := start; i <= len(candidates)-(k-pos); i++ {
			o := candidates[i]
			width := orders[o].WidthMM
			ceiling := cutCeiling(params, k, pos, stock.WidthMM, width)
			for c := 1; c <= ceiling; c++ {
				w := used + float64(c)*width
				// The orders still to be placed need at least one cut each.
				if w+remaining*minWidth > stock.WidthMM+widthTolerance {
					break
				}
				steps++
				if steps%4096 == 0 && ctx.Err() != nil {
					return ctx.Err()
				}
				combo = append(combo, o)
				counts = append(counts, c)
				err := walk(k, i+1, w)
				combo = combo[:pos]
				counts = counts[:pos]
				if err != nil {
					return err
				}
			}
		}
		return nil
	}

	for k := 1; k <= maxK; k++ {
		if err := walk(k, 0, 0); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// newPattern materialises a pattern with its cuts sorted by order ID.
func newPattern(si int, stock model.StockRoll, orders []model.Order, combo, counts []int) model.Pattern {
	cuts := make([]model.Cut, len(combo))
	used := 0.0
	for i, o := range combo {
		cuts[i] = model.Cut{
			Order:   o,
			OrderID: orders[o].ID,
			Count:   counts[i],
			WidthMM: orders[o].WidthMM,
		}
		used += cuts[i].Width()
	}
	sort.Slice(cuts, func(i, j int) bool {
		if cuts[i].OrderID != cuts[j].OrderID {
			return cuts[i].OrderID < cuts[j].OrderID
		}
		return cuts[i].Order < cuts[j].Order
	})
	return model.Pattern{
		Stock:        si,
		Cuts:         cuts,
		UsedWidthMM:  used,
		WasteWidthMM: stock.WidthMM - used,
	}
}
