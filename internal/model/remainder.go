package model

import (
	"fmt"
	"sort"
)

// MinRemainderKg is the lightest leftover coil worth returning to stock.
// Lighter remainders are scrapped.
const MinRemainderKg = 50.0

// Remainder is the unslit part of a stock roll after a plan is executed.
type Remainder struct {
	StockID     string  `json:"stock_id"`
	Stock       string  `json:"stock"`
	WidthMM     float64 `json:"width_mm"`
	ThicknessMM float64 `json:"thickness_mm"`
	Alloy       string  `json:"alloy"`
	Temper      string  `json:"temper"`
	Kg          float64 `json:"kg"`
	Meters      float64 `json:"meters"`
	Untouched   bool    `json:"untouched"` // the plan did not use this stock roll
}

// ToStockRoll converts a remainder into a stock roll for the next job.
func (r Remainder) ToStockRoll() StockRoll {
	s := NewStockRoll(r.WidthMM, r.ThicknessMM, r.Alloy, r.Temper, Round2(r.Kg))
	s.ID = r.StockID
	if !r.Untouched {
		s.ID = r.StockID + "-R"
		s.Label = fmt.Sprintf("Remainder %s", s.Descriptor())
	}
	return s
}

// DetectRemainders lists what is left of every stock roll after the plan in
// report, heaviest first. Remainders below minKg are dropped; pass
// MinRemainderKg for the usual cutoff.
func DetectRemainders(stocks []StockRoll, report SolutionReport, minKg float64) []Remainder {
	used := make(map[string]float64, len(report.StockUsage))
	for _, u := range report.StockUsage {
		used[u.StockID] += u.UsedKg
	}

	var out []Remainder
	for _, s := range stocks {
		usedKg, touched := used[s.ID]
		left := s.AvailableKg - usedKg
		if left < minKg || left <= 0 {
			continue
		}
		out = append(out, Remainder{
			StockID:     s.ID,
			Stock:       s.Label,
			WidthMM:     s.WidthMM,
			ThicknessMM: s.ThicknessMM,
			Alloy:       s.Alloy,
			Temper:      s.Temper,
			Kg:          left,
			Meters:      MetersForKg(s.WidthMM, s.ThicknessMM, left),
			Untouched:   !touched || usedKg == 0,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Kg > out[j].Kg
	})
	return out
}

// TotalRemainderKg returns the combined weight of the remainders.
func TotalRemainderKg(remainders []Remainder) float64 {
	var total float64
	for _, r := range remainders {
		total += r.Kg
	}
	return total
}
