package engine

import (
	"fmt"
	"math"

	"github.com/piwi3910/CoilCut/internal/milp"
	"github.com/piwi3910/CoilCut/internal/model"
)

// Objective weights. The setup term dominates, produced meters come second
// and the configurable waste penalty last.
const (
	setupWeight = 10000.0
	meterWeight = 0.1
)

// Branching priorities: decide setups first, then remainder switches, then
// individual roll slots.
const (
	priorityUse       = 3
	priorityRemainder = 2
	prioritySlot      = 1
)

const noSlotVar = -1

// layout maps the arena of patterns and their instance slots to problem
// variables. All slices indexed by pattern have len(patterns) entries; all
// slices indexed by slot have one entry per instance slot, with the slots of
// pattern p at firstSlot[p] .. firstSlot[p]+numSlots[p]-1.
type layout struct {
	patterns []model.Pattern

	use       []int
	firstSlot []int
	numSlots  []int
	bigM      []float64 // max linear meters of one roll of the pattern

	slotPattern []int
	active      []int
	ml          []int
	full        []int // noSlotVar when the per-roll remainder rule is off

	touched []int // per stock, noSlotVar when the stock remainder rule is off
	leaves  []int
}

func (l *layout) slots(p int) (int, int) {
	return l.firstSlot[p], l.firstSlot[p] + l.numSlots[p]
}

type modelBuilder struct {
	params   model.Params
	stocks   []model.StockRoll
	orders   []model.Order
	patterns []model.Pattern

	prob *milp.Problem
	lay  *layout
}

// buildModel constructs the integer program over the pattern arena with the
// weighted objective.
func buildModel(params model.Params, stocks []model.StockRoll, orders []model.Order, patterns []model.Pattern) (*milp.Problem, *layout) {
	b := &modelBuilder{
		params:   params,
		stocks:   stocks,
		orders:   orders,
		patterns: patterns,
		prob:     milp.NewProblem(),
		lay:      &layout{patterns: patterns},
	}
	b.addPatternVars()
	b.addSlotRows()
	b.addCoverageRows()
	b.addStockRows()
	setWeightedObjective(b.prob, b.lay, params)
	return b.prob, b.lay
}

// instanceMaxMeters is the big-M of a roll: the longest roll that respects
// both the roll weight ceiling and the coil's available material.
func instanceMaxMeters(params model.Params, stock model.StockRoll) float64 {
	return math.Min(params.RollWeightMaxKg, stock.AvailableKg) / stock.KgPerMeter()
}

// minRunMeters is the relaxed minimum run length of a pattern, the strongest
// requirement among its orders.
func (b *modelBuilder) minRunMeters(p model.Pattern) float64 {
	floor := 0.0
	for _, c := range p.Cuts {
		if run := b.orders[c.Order].MinRunLengthM; run > 0 {
			floor = math.Max(floor, run*(1-b.params.MinRunRelaxationPct/100))
		}
	}
	return floor
}

// slotCount bounds the rolls a pattern can produce: each roll needs at least
// the weight floor (and run length) in meters, and all rolls together cannot
// exceed what the tightest order of the pattern may absorb within its excess
// margin. Without the per-roll remainder rule two rolls of a pattern that fit
// into one can always be merged without making the objective worse, so an
// optimal plan never has more than 2·maxMeters/M + 1 of them.
func (b *modelBuilder) slotCount(p model.Pattern) int {
	stock := b.stocks[p.Stock]
	perMeter := stock.KgPerMeter()
	minMeters := math.Max(b.params.RollWeightMinKg/perMeter, b.minRunMeters(p))
	maxMeters := stock.BudgetMeters()
	for _, c := range p.Cuts {
		o := b.orders[c.Order]
		share := model.KgPerMeter(c.Width(), stock.ThicknessMM)
		maxMeters = math.Min(maxMeters, o.RequestedKg*b.params.ExcessMarginFactor/share)
	}
	M := instanceMaxMeters(b.params, stock)
	if minMeters > M+1e-9 {
		return 0
	}
	n := b.params.MaxInstances
	if minMeters > 0 {
		n = min(n, int(math.Floor(maxMeters/minMeters+1e-9)))
	}
	if b.params.MinRemainderM <= 0 && M > 0 {
		n = min(n, int(math.Floor(2*maxMeters/M+1e-9))+1)
	}
	return n
}

func (b *modelBuilder) addPatternVars() {
	remainder := b.params.MinRemainderM > 0
	for i, p := range b.patterns {
		stock := b.stocks[p.Stock]
		b.lay.use = append(b.lay.use, b.prob.AddBinary(fmt.Sprintf("use[%d]", i), priorityUse))
		b.lay.bigM = append(b.lay.bigM, instanceMaxMeters(b.params, stock))
		b.lay.firstSlot = append(b.lay.firstSlot, len(b.lay.slotPattern))
		n := b.slotCount(p)
		b.lay.numSlots = append(b.lay.numSlots, n)
		for s := 0; s < n; s++ {
			b.lay.slotPattern = append(b.lay.slotPattern, i)
			b.lay.active = append(b.lay.active, b.prob.AddBinary(fmt.Sprintf("active[%d,%d]", i, s), prioritySlot))
			b.lay.ml = append(b.lay.ml, b.prob.AddContinuous(fmt.Sprintf("ml[%d,%d]", i, s), b.lay.bigM[i]))
			full := noSlotVar
			if remainder {
				full = b.prob.AddBinary(fmt.Sprintf("full[%d,%d]", i, s), priorityRemainder)
			}
			b.lay.full = append(b.lay.full, full)
		}
	}
}

// addSlotRows adds activation linkage, the per-roll weight window, the
// minimum run length and the per-roll remainder rule. Slots of a pattern are
// interchangeable, so they are ordered: slot s is only active when slot s-1
// is, and is never longer.
func (b *modelBuilder) addSlotRows() {
	R := b.params.MinRemainderM
	for i, p := range b.patterns {
		stock := b.stocks[p.Stock]
		perMeter := stock.KgPerMeter()
		M := b.lay.bigM[i]
		minRun := b.minRunMeters(p)

		first, end := b.lay.slots(i)
		for s := first; s < end; s++ {
			active, ml := b.lay.active[s], b.lay.ml[s]
			if s == first {
				b.prob.AddConstraint("link_use", milp.LessEq, 0, milp.T(active, 1), milp.T(b.lay.use[i], -1))
			} else {
				b.prob.AddConstraint("order_active", milp.LessEq, 0, milp.T(active, 1), milp.T(b.lay.active[s-1], -1))
				b.prob.AddConstraint("order_ml", milp.LessEq, 0, milp.T(ml, 1), milp.T(b.lay.ml[s-1], -1))
			}
			// ml <= M·active also caps the roll at roll_weight_max_kg.
			b.prob.AddConstraint("link_ml", milp.LessEq, 0, milp.T(ml, 1), milp.T(active, -M))
			b.prob.AddConstraint("kg_min", milp.GreaterEq, 0, milp.T(ml, perMeter), milp.T(active, -b.params.RollWeightMinKg))
			if minRun > 0 {
				b.prob.AddConstraint("min_run", milp.GreaterEq, 0, milp.T(ml, 1), milp.T(active, -minRun))
			}
			if full := b.lay.full[s]; full != noSlotVar {
				// Either the roll uses its full length (full=1) or it stops at
				// least R meters short of it.
				b.prob.AddConstraint("full_active", milp.LessEq, 0, milp.T(full, 1), milp.T(active, -1))
				b.prob.AddConstraint("full_len", milp.GreaterEq, 0, milp.T(ml, 1), milp.T(full, -M))
				b.prob.AddConstraint("roll_remainder", milp.LessEq, 0, milp.T(ml, 1), milp.T(active, -(M-R)), milp.T(full, -R))
			}
		}
	}
}

// addCoverageRows keeps every order's allocated weight inside
// [requested·coverage_margin, requested·excess_margin_factor]. An order with
// no pattern gets rows without terms, which are infeasible.
func (b *modelBuilder) addCoverageRows() {
	terms := make([][]milp.Term, len(b.orders))
	for i, p := range b.patterns {
		stock := b.stocks[p.Stock]
		first, end := b.lay.slots(i)
		for _, c := range p.Cuts {
			share := model.KgPerMeter(c.Width(), stock.ThicknessMM)
			for s := first; s < end; s++ {
				terms[c.Order] = append(terms[c.Order], milp.T(b.lay.ml[s], share))
			}
		}
	}
	for o, order := range b.orders {
		b.prob.AddConstraint("cover_min["+order.ID+"]", milp.GreaterEq, order.RequestedKg*b.params.CoverageMargin, terms[o]...)
		b.prob.AddConstraint("cover_max["+order.ID+"]", milp.LessEq, order.RequestedKg*b.params.ExcessMarginFactor, terms[o]...)
	}
}

// addStockRows adds the material budget of each stock roll and, when
// min_remainder_m is set, the rule that a touched coil is either consumed
// completely or keeps at least min_remainder_m meters.
func (b *modelBuilder) addStockRows() {
	R := b.params.MinRemainderM
	meters := make([][]milp.Term, len(b.stocks))
	for i, p := range b.patterns {
		first, end := b.lay.slots(i)
		for s := first; s < end; s++ {
			meters[p.Stock] = append(meters[p.Stock], milp.T(b.lay.ml[s], 1))
		}
	}

	b.lay.touched = make([]int, len(b.stocks))
	b.lay.leaves = make([]int, len(b.stocks))
	for si, stock := range b.stocks {
		b.lay.touched[si], b.lay.leaves[si] = noSlotVar, noSlotVar
		if len(meters[si]) == 0 {
			continue
		}
		perMeter := stock.KgPerMeter()
		budget := make([]milp.Term, len(meters[si]))
		for k, t := range meters[si] {
			budget[k] = milp.T(t.Var, perMeter)
		}
		b.prob.AddConstraint("budget["+stock.ID+"]", milp.LessEq, stock.AvailableKg, budget...)

		if R <= 0 {
			continue
		}
		B := stock.BudgetMeters()
		touched := b.prob.AddBinary("touched["+stock.ID+"]", priorityRemainder)
		leaves := b.prob.AddBinary("leaves["+stock.ID+"]", priorityRemainder)
		b.lay.touched[si], b.lay.leaves[si] = touched, leaves

		b.prob.AddConstraint("stock_touched", milp.LessEq, 0, append(cloneTerms(meters[si]), milp.T(touched, -B))...)
		b.prob.AddConstraint("stock_full", milp.GreaterEq, 0, append(cloneTerms(meters[si]), milp.T(touched, -B), milp.T(leaves, B))...)
		b.prob.AddConstraint("stock_remainder", milp.LessEq, B, append(cloneTerms(meters[si]), milp.T(leaves, R))...)
		b.prob.AddConstraint("leaves_touched", milp.LessEq, 0, milp.T(leaves, 1), milp.T(touched, -1))
	}
}

func cloneTerms(terms []milp.Term) []milp.Term {
	return append(make([]milp.Term, 0, len(terms)+2), terms...)
}

// setWeightedObjective installs 10000·Σuse − 0.1·Σml + penalty·Σwaste·active.
func setWeightedObjective(prob *milp.Problem, lay *layout, params model.Params) {
	prob.ClearObjective()
	setSetupObjective(prob, lay)
	setProductionObjective(prob, lay, params)
}

func setSetupObjective(prob *milp.Problem, lay *layout) {
	for _, u := range lay.use {
		prob.SetObjective(u, setupWeight)
	}
}

func setProductionObjective(prob *milp.Problem, lay *layout, params model.Params) {
	for s, p := range lay.slotPattern {
		prob.SetObjective(lay.ml[s], -meterWeight)
		prob.SetObjective(lay.active[s], params.WastePenaltyFactor*lay.patterns[p].WasteWidthMM)
	}
}

// weightedObjective evaluates the weighted objective at x, whatever objective
// the problem was solved with.
func weightedObjective(lay *layout, params model.Params, x []float64) float64 {
	total := 0.0
	for _, u := range lay.use {
		total += setupWeight * x[u]
	}
	for s, p := range lay.slotPattern {
		total -= meterWeight * x[lay.ml[s]]
		total += params.WastePenaltyFactor * lay.patterns[p].WasteWidthMM * x[lay.active[s]]
	}
	return total
}
