package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DensityFactor converts linear meters of strip into kilograms:
// kg = meters × DensityFactor × thickness(mm) × width(mm)/1000.
const DensityFactor = 2.73

// KgPerMeter returns the weight of one linear meter of strip of the given
// width and thickness.
func KgPerMeter(widthMM, thicknessMM float64) float64 {
	return DensityFactor * thicknessMM * widthMM / 1000
}

// MetersForKg returns the linear meters of strip needed to reach kg.
// Returns 0 for degenerate widths or thicknesses.
func MetersForKg(widthMM, thicknessMM, kg float64) float64 {
	perMeter := KgPerMeter(widthMM, thicknessMM)
	if perMeter <= 0 {
		return 0
	}
	return kg / perMeter
}

// StockRoll is a master coil available for slitting (a "development").
type StockRoll struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	WidthMM     float64 `json:"width_mm"`
	ThicknessMM float64 `json:"thickness_mm"`
	Alloy       string  `json:"alloy"`
	Temper      string  `json:"temper"`
	AvailableKg float64 `json:"available_kg"`
}

func NewStockRoll(width, thickness float64, alloy, temper string, availableKg float64) StockRoll {
	s := StockRoll{
		ID:          uuid.New().String()[:8],
		WidthMM:     width,
		ThicknessMM: thickness,
		Alloy:       alloy,
		Temper:      temper,
		AvailableKg: availableKg,
	}
	s.Label = s.Descriptor()
	return s
}

// Descriptor is the human readable material description of the coil,
// e.g. "1000×1.00 (3003-H14)".
func (s StockRoll) Descriptor() string {
	return fmt.Sprintf("%.0f×%.2f (%s-%s)", s.WidthMM, s.ThicknessMM, s.Alloy, s.Temper)
}

// KgPerMeter is the full-width weight of one linear meter of this coil.
func (s StockRoll) KgPerMeter() float64 {
	return KgPerMeter(s.WidthMM, s.ThicknessMM)
}

// BudgetMeters is the linear length of material available on this coil.
func (s StockRoll) BudgetMeters() float64 {
	return MetersForKg(s.WidthMM, s.ThicknessMM, s.AvailableKg)
}

// Order is a customer requirement for strips of one width.
type Order struct {
	ID            string  `json:"id"`
	Color         string  `json:"color,omitempty"`
	WidthMM       float64 `json:"width_mm"`
	RequestedKg   float64 `json:"requested_kg"`
	Alloy         string  `json:"alloy"`
	Temper        string  `json:"temper"`
	ThicknessMM   float64 `json:"thickness_mm"`
	MinRunLengthM float64 `json:"min_run_length_m,omitempty"` // 0 = no minimum
}

func NewOrder(id string, width, thickness float64, alloy, temper string, requestedKg float64) Order {
	if id == "" {
		id = uuid.New().String()[:8]
	}
	return Order{
		ID:          id,
		WidthMM:     width,
		RequestedKg: requestedKg,
		Alloy:       alloy,
		Temper:      temper,
		ThicknessMM: thickness,
	}
}

// thicknessTolerance absorbs float noise from spreadsheet input.
const thicknessTolerance = 1e-6

// Compatible reports whether an order can be cut from a stock roll: same
// thickness, alloy and temper, and the order fits within the coil width.
func Compatible(s StockRoll, o Order) bool {
	if diff := s.ThicknessMM - o.ThicknessMM; diff > thicknessTolerance || diff < -thicknessTolerance {
		return false
	}
	if !sameGrade(s.Alloy, o.Alloy) || !sameGrade(s.Temper, o.Temper) {
		return false
	}
	return o.WidthMM <= s.WidthMM
}

func sameGrade(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Cut is one order's share of a pattern.
type Cut struct {
	Order   int     `json:"order"` // index into the order slice
	OrderID string  `json:"order_id"`
	Count   int     `json:"count"`
	WidthMM float64 `json:"width_mm"`
}

// Width is the total width occupied by this cut group.
func (c Cut) Width() float64 {
	return float64(c.Count) * c.WidthMM
}

// Pattern is a candidate way of slitting one stock roll. Patterns live in an
// arena and are referenced by Index.
type Pattern struct {
	Index        int     `json:"index"`
	Stock        int     `json:"stock"` // index into the stock slice
	Cuts         []Cut   `json:"cuts"`
	UsedWidthMM  float64 `json:"used_width_mm"`
	WasteWidthMM float64 `json:"waste_width_mm"`
	Key          string  `json:"key"`       // logical hash: stock + order-id→count
	SetupKey     string  `json:"setup_key"` // physical hash: stock + width→count
}

// Contains reports whether the pattern cuts the order at the given index.
func (p Pattern) Contains(order int) bool {
	for _, c := range p.Cuts {
		if c.Order == order {
			return true
		}
	}
	return false
}

// String renders the layout, e.g. "2×400+1×150".
func (p Pattern) String() string {
	parts := make([]string, len(p.Cuts))
	for i, c := range p.Cuts {
		parts[i] = fmt.Sprintf("%d×%.0f", c.Count, c.WidthMM)
	}
	return strings.Join(parts, "+")
}

// Allocation is the weight of one order produced by a roll.
type Allocation struct {
	OrderID     string  `json:"order_id"`
	Cuts        int     `json:"cuts"`
	CutWidthMM  float64 `json:"cut_width_mm"`
	AllocatedKg float64 `json:"allocated_kg"`
}

// RollInstance is one physical roll produced by slitting a stock roll
// according to a pattern (a "bobina").
type RollInstance struct {
	ID           string       `json:"id"`
	Pattern      int          `json:"pattern"`
	PatternKey   string       `json:"pattern_key"`
	SetupKey     string       `json:"setup_key"`
	StockID      string       `json:"stock_id"`
	Stock        string       `json:"stock"`
	StockWidthMM float64      `json:"stock_width_mm"`
	LinearMeters float64      `json:"linear_meters"`
	GrossKg      float64      `json:"gross_kg"`
	UsedWidthMM  float64      `json:"used_width_mm"`
	WasteWidthMM float64      `json:"waste_width_mm"`
	Allocations  []Allocation `json:"allocations"`
}

// AllocatedKg is the weight attributed to orders (gross minus edge waste).
func (r RollInstance) AllocatedKg() float64 {
	total := 0.0
	for _, a := range r.Allocations {
		total += a.AllocatedKg
	}
	return total
}

// Layout renders the slitting layout of the roll.
func (r RollInstance) Layout() string {
	parts := make([]string, len(r.Allocations))
	for i, a := range r.Allocations {
		parts[i] = fmt.Sprintf("%d×%.0f", a.Cuts, a.CutWidthMM)
	}
	return strings.Join(parts, "+")
}
