package tuning

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/piwi3910/CoilCut/internal/engine"
	"github.com/piwi3910/CoilCut/internal/model"
	"golang.org/x/sync/errgroup"
)

// Mode selects the size of the search grid.
type Mode string

const (
	ModeQuick      Mode = "quick"
	ModeFull       Mode = "full"
	ModeExhaustive Mode = "exhaustive"
)

// ValidCoveragePercent is the minimum order coverage a trial needs to be
// ranked.
const ValidCoveragePercent = 90.0

// TopN is the number of ranked alternatives kept in a SearchResult.
const TopN = 5

// Grid lists the values tried for each searched parameter. The other
// parameters come from the base.
type Grid struct {
	WasteMinMM    []float64
	WasteMaxMM    []float64
	Excess        []float64
	RemainderM    []float64
	Coverage      []float64
	RelaxationPct []float64
	Penalty       []float64
}

// Size is the number of combinations in the grid, including those skipped
// because waste_min ≥ waste_max.
func (g Grid) Size() int {
	return len(g.WasteMinMM) * len(g.WasteMaxMM) * len(g.Excess) * len(g.RemainderM) *
		len(g.Coverage) * len(g.RelaxationPct) * len(g.Penalty)
}

// GridFor returns the predefined grid of a mode.
func GridFor(mode Mode) (Grid, error) {
	switch mode {
	case ModeQuick:
		return Grid{
			WasteMinMM:    []float64{0, 8},
			WasteMaxMM:    []float64{40, 70},
			Excess:        []float64{1.30, 1.50, 2.00},
			RemainderM:    []float64{0, 600},
			Coverage:      []float64{0.90, 0.95},
			RelaxationPct: []float64{30, 50, 80},
			Penalty:       []float64{0.01, 0.05},
		}, nil
	case ModeFull:
		return Grid{
			WasteMinMM:    []float64{0, 5, 8},
			WasteMaxMM:    []float64{30, 50, 70, 100},
			Excess:        []float64{1.20, 1.30, 1.50, 2.00},
			RemainderM:    []float64{0, 300, 600},
			Coverage:      []float64{0.85, 0.90, 0.95},
			RelaxationPct: []float64{30, 50, 70, 90},
			Penalty:       []float64{0.01, 0.03, 0.05},
		}, nil
	case ModeExhaustive:
		return Grid{
			WasteMinMM:    []float64{0, 5, 8, 10},
			WasteMaxMM:    []float64{30, 40, 50, 70, 100},
			Excess:        []float64{1.10, 1.20, 1.30, 1.50, 2.00},
			RemainderM:    []float64{0, 300, 600, 900},
			Coverage:      []float64{0.80, 0.85, 0.90, 0.95},
			RelaxationPct: []float64{20, 30, 50, 70, 90},
			Penalty:       []float64{0.001, 0.01, 0.03, 0.05},
		}, nil
	default:
		return Grid{}, fmt.Errorf("unknown search mode %q (want quick, full or exhaustive)", mode)
	}
}

// combinations expands the grid in a fixed order, dropping empty waste
// windows.
func (g Grid) combinations(base model.Params) (out []model.Params, skipped int) {
	for _, wmin := range g.WasteMinMM {
		for _, wmax := range g.WasteMaxMM {
			for _, excess := range g.Excess {
				for _, rest := range g.RemainderM {
					for _, cov := range g.Coverage {
						for _, relax := range g.RelaxationPct {
							for _, pen := range g.Penalty {
								if wmin >= wmax {
									skipped++
									continue
								}
								p := base
								p.EdgeWasteMinMM = wmin
								p.EdgeWasteMaxMM = wmax
								p.ExcessMarginFactor = excess
								p.MinRemainderM = rest
								p.CoverageMargin = cov
								p.MinRunRelaxationPct = relax
								p.WastePenaltyFactor = pen
								out = append(out, p)
							}
						}
					}
				}
			}
		}
	}
	return out, skipped
}

// Trial is the outcome of one parameter combination that produced a plan.
type Trial struct {
	Seq         int // position in the grid
	Params      model.Params
	Rolls       int
	WasteMM     float64
	MinCoverage float64
	Score       float64 // rolls·1000 + waste, lower is better
	Valid       bool
	Elapsed     time.Duration
}

// SearchResult collects all trials of a search.
type SearchResult struct {
	Best    *Trial
	Top     []Trial // best TopN valid trials by score
	Trials  []Trial // every trial with a plan, in grid order
	Tried   int
	Skipped int
	Failed  int // combinations without a plan
}

// Searcher runs engine invocations over a parameter grid.
type Searcher struct {
	// Base supplies every parameter the grid does not vary.
	Base model.Params
	// Workers bounds concurrent engine runs; 0 or less means one.
	Workers int
	Log     logr.Logger
	// Progress, when set, is called after each trial with the number of
	// finished and total combinations. Calls are serialised.
	Progress func(done, total int)
	// EngineOptions are passed to every engine invocation.
	EngineOptions []engine.Option
}

// NewSearcher returns a Searcher with the search defaults: the production
// parameters with a 60 s solve budget and one solver thread per trial.
func NewSearcher(log logr.Logger) *Searcher {
	base := model.DefaultParams()
	base.SolveTimeLimitS = 60
	base.Threads = 1
	base.GenerationWorkers = 1
	return &Searcher{Base: base, Workers: 1, Log: log}
}

// Search runs the predefined grid of mode.
func (s *Searcher) Search(ctx context.Context, stocks []model.StockRoll, orders []model.Order, mode Mode) (*SearchResult, error) {
	grid, err := GridFor(mode)
	if err != nil {
		return nil, err
	}
	return s.SearchGrid(ctx, stocks, orders, grid)
}

// SearchGrid runs every valid combination of grid. Combinations without a
// plan are counted, not returned as errors. When ctx is cancelled the trials
// finished so far are returned together with the context error.
func (s *Searcher) SearchGrid(ctx context.Context, stocks []model.StockRoll, orders []model.Order, grid Grid) (*SearchResult, error) {
	combos, skipped := grid.combinations(s.Base)
	res := &SearchResult{Skipped: skipped}

	log := s.Log
	log.Info("Starting parameter search", "combinations", len(combos), "skipped", skipped)

	workers := s.Workers
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	done := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, params := range combos {
		i, params := i, params
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			trial, ok := s.runTrial(gctx, i, params, stocks, orders)

			mu.Lock()
			defer mu.Unlock()
			res.Tried++
			if ok {
				res.Trials = append(res.Trials, trial)
				if trial.Valid && (res.Best == nil || better(trial, *res.Best)) {
					best := trial
					res.Best = &best
					log.Info("New best parameters", "rolls", trial.Rolls, "wasteMM", trial.WasteMM,
						"wasteWindow", fmt.Sprintf("%.0f-%.0f", params.EdgeWasteMinMM, params.EdgeWasteMaxMM),
						"excessPct", (params.ExcessMarginFactor-1)*100, "remainderM", params.MinRemainderM)
				}
			} else {
				res.Failed++
			}
			done++
			if s.Progress != nil {
				s.Progress(done, len(combos))
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(res.Trials, func(a, b int) bool { return res.Trials[a].Seq < res.Trials[b].Seq })
	for _, t := range res.Trials {
		if t.Valid {
			res.Top = append(res.Top, t)
		}
	}
	sort.SliceStable(res.Top, func(a, b int) bool { return better(res.Top[a], res.Top[b]) })
	if len(res.Top) > TopN {
		res.Top = res.Top[:TopN]
	}

	log.Info("Parameter search finished", "tried", res.Tried, "withPlan", len(res.Trials), "failed", res.Failed)
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func (s *Searcher) runTrial(ctx context.Context, seq int, params model.Params, stocks []model.StockRoll, orders []model.Order) (Trial, bool) {
	start := time.Now()
	reports, err := engine.New(params, s.EngineOptions...).Optimize(ctx, stocks, orders)
	if err != nil {
		s.Log.V(1).Info("Trial without plan", "seq", seq, "reason", err.Error())
		return Trial{}, false
	}
	report := reports[0]
	t := Trial{
		Seq:         seq,
		Params:      params,
		Rolls:       report.NumRolls,
		WasteMM:     report.TotalWasteMM,
		MinCoverage: report.MinCoveragePercent(),
		Elapsed:     time.Since(start),
	}
	t.Score = float64(t.Rolls)*1000 + t.WasteMM
	t.Valid = t.MinCoverage >= ValidCoveragePercent
	return t, true
}

// better orders trials by score, then grid position.
func better(a, b Trial) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Seq < b.Seq
}
