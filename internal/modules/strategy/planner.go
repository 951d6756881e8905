// Package strategy decides how many units to order when stock is observed.
package strategy

import (
	"math"

	"github.com/aristath/restock/internal/domain"
	"github.com/rs/zerolog"
)

// StrategyKind names how a plan was derived
type StrategyKind string

const (
	StrategyNone        StrategyKind = "none"
	StrategyLimited     StrategyKind = "limited"
	StrategyProgressive StrategyKind = "progressive"
	StrategySingle      StrategyKind = "single"
	StrategySplit       StrategyKind = "split"
	StrategyFallback    StrategyKind = "fallback"
	StrategyMinimum     StrategyKind = "minimum"
)

// DefaultSplitCombinations are tried in order when a single order exceeds the budget
var DefaultSplitCombinations = [][]int{
	{350, 350},
	{350, 200, 150},
	{350, 100, 100, 100, 50},
	{300, 200, 200},
	{250, 250, 200},
	{350, 140, 110, 100},
}

// Budget bounds the spend of one restock.
// PerOrder limits a single submission; zero means Total.
type Budget struct {
	Total    float64 `json:"total"`
	PerOrder float64 `json:"per_order,omitempty"`
}

func (b Budget) perOrder() float64 {
	if b.PerOrder <= 0 || b.PerOrder > b.Total {
		return b.Total
	}
	return b.PerOrder
}

// SplitPolicy configures budget planning
type SplitPolicy struct {
	Combinations       [][]int
	MinViableQuantity  int
	LastResortQuantity int
}

// DefaultSplitPolicy returns the standard split combinations and fallbacks
func DefaultSplitPolicy() SplitPolicy {
	return SplitPolicy{
		Combinations:       DefaultSplitCombinations,
		MinViableQuantity:  100,
		LastResortQuantity: 50,
	}
}

// Plan is the ordered list of quantities to submit for one restock
type Plan struct {
	Strategy      StrategyKind `json:"strategy"`
	Quantities    []int        `json:"quantities"`
	EstimatedCost float64      `json:"estimated_cost,omitempty"`
}

// Total returns the number of units in the plan
func (p Plan) Total() int {
	total := 0
	for _, q := range p.Quantities {
		total += q
	}
	return total
}

// Empty reports whether the plan orders nothing
func (p Plan) Empty() bool {
	return p.Total() == 0
}

// Planner derives order quantities from product configuration and daily state
type Planner struct {
	policy SplitPolicy
	log    zerolog.Logger
}

// NewPlanner creates a planner
func NewPlanner(policy SplitPolicy, log zerolog.Logger) *Planner {
	if len(policy.Combinations) == 0 {
		policy.Combinations = DefaultSplitCombinations
	}
	if policy.MinViableQuantity <= 0 {
		policy.MinViableQuantity = 100
	}
	if policy.LastResortQuantity <= 0 {
		policy.LastResortQuantity = 50
	}
	return &Planner{
		policy: policy,
		log:    log.With().Str("service", "strategy").Logger(),
	}
}

// NextQuantity returns the units to order for a product in the given state,
// zero meaning do not order. It never exceeds the remaining daily cap.
func (p *Planner) NextQuantity(cfg domain.ProductConfig, state domain.DailyState, status domain.StockStatus) int {
	if !status.Orderable() {
		return 0
	}
	counters := state.Counters(cfg.ID)
	if counters.StoppedForToday {
		return 0
	}

	remaining := math.MaxInt
	if cfg.Capped() {
		remaining = cfg.DailyUnitCap - counters.UnitsOrderedToday
		if remaining <= 0 {
			return 0
		}
	}

	if status == domain.StockLimited {
		return minInt(cfg.LimitedStockQuantity, remaining)
	}

	var candidate int
	switch {
	case counters.OrderCount < len(cfg.ProgressiveQuantities):
		candidate = cfg.ProgressiveQuantities[counters.OrderCount]
	case cfg.ContinuousQuantity > 0:
		candidate = cfg.ContinuousQuantity
	default:
		return 0
	}

	if candidate > remaining {
		p.log.Debug().
			Str("product", cfg.ID).
			Int("candidate", candidate).
			Int("remaining", remaining).
			Msg("Clamping quantity to daily cap")
		candidate = remaining
	}
	return candidate
}

// PlanOrder builds the plan for one observed restock. Budget-mode products
// with a known price are planned against the budget; everything else is a
// single order of NextQuantity.
func (p *Planner) PlanOrder(cfg domain.ProductConfig, state domain.DailyState, sample domain.StockSample, budget Budget) Plan {
	qty := p.NextQuantity(cfg, state, sample.Status)
	if qty == 0 {
		return Plan{Strategy: StrategyNone}
	}

	if sample.Status == domain.StockLimited {
		return Plan{Strategy: StrategyLimited, Quantities: []int{qty}, EstimatedCost: cost(qty, sample.Price)}
	}
	if !cfg.BudgetMode || budget.Total <= 0 {
		return Plan{Strategy: StrategyProgressive, Quantities: []int{qty}, EstimatedCost: cost(qty, sample.Price)}
	}
	if !sample.HasPrice || sample.Price <= 0 {
		p.log.Warn().
			Str("product", cfg.ID).
			Str("price_text", sample.PriceText).
			Msg("No usable price, ordering without budget check")
		return Plan{Strategy: StrategyProgressive, Quantities: []int{qty}}
	}
	return p.PlanBudget(qty, sample.Price, budget)
}

// PlanBudget fits target units at unitPrice into budget.
//
// The single order wins when it fits. Otherwise the first combination that
// sums to target, stays within the total and keeps every sub-order within
// the per-order limit is used. Failing that a single order of as many units
// as the per-order limit affords (capped at target) is used when it reaches
// the minimum viable quantity, else the last-resort quantity.
func (p *Planner) PlanBudget(target int, unitPrice float64, budget Budget) Plan {
	if target <= 0 || unitPrice <= 0 {
		return Plan{Strategy: StrategyNone}
	}
	perOrder := budget.perOrder()

	single := cost(target, unitPrice)
	if single <= perOrder {
		return Plan{Strategy: StrategySingle, Quantities: []int{target}, EstimatedCost: single}
	}

	for _, combo := range p.policy.Combinations {
		if sum(combo) != target {
			continue
		}
		total := cost(sum(combo), unitPrice)
		largest := cost(maxOf(combo), unitPrice)
		if total <= budget.Total && largest <= perOrder {
			p.log.Info().
				Ints("combination", combo).
				Float64("total_cost", total).
				Msg("Splitting order to fit budget")
			return Plan{Strategy: StrategySplit, Quantities: append([]int(nil), combo...), EstimatedCost: total}
		}
	}

	affordable := minInt(int(math.Floor(perOrder/unitPrice)), target)
	if affordable >= p.policy.MinViableQuantity {
		return Plan{Strategy: StrategyFallback, Quantities: []int{affordable}, EstimatedCost: cost(affordable, unitPrice)}
	}

	last := minInt(p.policy.LastResortQuantity, target)
	p.log.Warn().
		Int("target", target).
		Float64("unit_price", unitPrice).
		Int("quantity", last).
		Msg("Budget too small, using last-resort quantity")
	return Plan{Strategy: StrategyMinimum, Quantities: []int{last}, EstimatedCost: cost(last, unitPrice)}
}

func cost(qty int, unitPrice float64) float64 {
	return float64(qty) * unitPrice
}

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}

func maxOf(xs []int) int {
	m := 0
	for _, x := range xs {
		if x > m {
			m = x
		}
	}
	return m
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
