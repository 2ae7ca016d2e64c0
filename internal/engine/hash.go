package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/piwi3910/CoilCut/internal/model"
)

// logicalKey is the canonical identity of a pattern: the stock roll it slits
// and the order-id→count mapping sorted by order ID.
func logicalKey(stock int, cuts []model.Cut) string {
	sorted := append([]model.Cut(nil), cuts...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].OrderID != sorted[j].OrderID {
			return sorted[i].OrderID < sorted[j].OrderID
		}
		return sorted[i].Count < sorted[j].Count
	})

	var b strings.Builder
	b.WriteString("s")
	b.WriteString(strconv.Itoa(stock))
	b.WriteString("|")
	for i, c := range sorted {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "%s×%d", strconv.Quote(c.OrderID), c.Count)
	}
	return b.String()
}

// setupKey identifies the physical slitting setup: the coil material and the
// multiset of cut widths. Orders sharing a width are interchangeable, so
// patterns that differ only in which order fills a slot share a setup.
func setupKey(stock model.StockRoll, cuts []model.Cut) string {
	byWidth := make(map[string]int)
	var widths []float64
	for _, c := range cuts {
		w := strconv.FormatFloat(c.WidthMM, 'f', 3, 64)
		if _, ok := byWidth[w]; !ok {
			widths = append(widths, c.WidthMM)
		}
		byWidth[w] += c.Count
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(widths)))

	var b strings.Builder
	fmt.Fprintf(&b, "%.3f|%.4f|%s|%s|", stock.WidthMM, stock.ThicknessMM,
		strings.ToUpper(strings.TrimSpace(stock.Alloy)), strings.ToUpper(strings.TrimSpace(stock.Temper)))
	for i, w := range widths {
		if i > 0 {
			b.WriteString(",")
		}
		key := strconv.FormatFloat(w, 'f', 3, 64)
		fmt.Fprintf(&b, "%s×%d", key, byWidth[key])
	}
	return b.String()
}

// shortHash condenses a canonical key for reports.
func shortHash(key string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}
