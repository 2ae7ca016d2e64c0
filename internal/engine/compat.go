package engine

import (
	"sort"

	"github.com/piwi3910/CoilCut/internal/model"
)

// compatibleOrders returns, per stock roll, the indices of the orders that can
// be cut from it, plus the IDs of orders no stock roll can serve (sorted).
// Orders with an unmatched alloy, temper or thickness, or wider than every
// candidate coil, never appear in a pattern.
func compatibleOrders(stocks []model.StockRoll, orders []model.Order) ([][]int, []string) {
	perStock := make([][]int, len(stocks))
	matched := make([]bool, len(orders))
	for s, stock := range stocks {
		for o, order := range orders {
			if model.Compatible(stock, order) {
				perStock[s] = append(perStock[s], o)
				matched[o] = true
			}
		}
	}

	var unmatched []string
	for o, ok := range matched {
		if !ok {
			unmatched = append(unmatched, orders[o].ID)
		}
	}
	sort.Strings(unmatched)
	return perStock, unmatched
}
