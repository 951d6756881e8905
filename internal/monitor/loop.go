// Package monitor runs the polling loop that checks stock and places orders.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/restock/internal/domain"
	"github.com/aristath/restock/internal/events"
	"github.com/aristath/restock/internal/modules/cooldown"
	"github.com/aristath/restock/internal/modules/stock"
	"github.com/aristath/restock/internal/modules/strategy"
	"github.com/aristath/restock/internal/utils"
	"github.com/rs/zerolog"
)

// Modes reported by Stats
const (
	ModeStarting = "starting"
	ModeActive   = "active"
	ModeInactive = "inactive"
	ModeStopped  = "stopped"
)

// DefaultStockSelectors are tried after a product's own stock selector
var DefaultStockSelectors = []string{".product-availability", ".stock-status", ".availability"}

// DefaultPriceSelectors are tried after a product's own price selector
var DefaultPriceSelectors = []string{".price", ".product-price"}

// Orderer places the orders of a plan
type Orderer interface {
	ExecuteSequence(ctx context.Context, product domain.ProductConfig, quantities []int, delay time.Duration) ([]domain.OrderAttempt, error)
}

// StateStore provides the current daily state
type StateStore interface {
	RolloverIfNeeded(now time.Time) (domain.DailyState, error)
}

// Schedule decides when the loop is active and how it paces itself
type Schedule interface {
	IsActiveNow(now time.Time) bool
	NextActiveStart(now time.Time) time.Time
	PollInterval() time.Duration
	InactiveSleep(now time.Time) time.Duration
}

// Sweeper purges backorders after each cycle
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) ([]string, error)
}

// Config holds loop configuration
type Config struct {
	Products []domain.ProductConfig
	// AutoOrder off turns orderable stock into alerts only
	AutoOrder bool
	Budget    strategy.Budget
	// MinConfidence above zero alerts instead of ordering on less certain samples
	MinConfidence  int
	SplitDelay     time.Duration
	StockSelectors []string
	PriceSelectors []string
}

// Stats are the running counters of the loop
type Stats struct {
	TotalChecks      int       `json:"totalChecks"`
	SuccessfulOrders int       `json:"successfulOrders"`
	FailedOrders     int       `json:"failedOrders"`
	Errors           int       `json:"errors"`
	Cycles           int       `json:"cycles"`
	LastCheck        time.Time `json:"lastCheck"`
	Mode             string    `json:"mode"`
	NextActiveStart  time.Time `json:"nextActiveStart,omitempty"`
}

// Loop checks every configured product in order, one page at a time, and
// orders when stock appears. It owns the web session for its lifetime.
type Loop struct {
	cfg          Config
	session      domain.WebSession
	classifier   *stock.Classifier
	planner      *strategy.Planner
	orderer      Orderer
	store        StateStore
	cooldowns    *cooldown.Tracker
	schedule     Schedule
	sweeper      Sweeper
	eventManager *events.Manager

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	stats    Stats
	lastDate string
	log      zerolog.Logger
}

// NewLoop creates a monitor loop
func NewLoop(
	cfg Config,
	session domain.WebSession,
	classifier *stock.Classifier,
	planner *strategy.Planner,
	orderer Orderer,
	store StateStore,
	cooldowns *cooldown.Tracker,
	schedule Schedule,
	log zerolog.Logger,
) *Loop {
	if cfg.SplitDelay <= 0 {
		cfg.SplitDelay = 30 * time.Second
	}
	if len(cfg.StockSelectors) == 0 {
		cfg.StockSelectors = DefaultStockSelectors
	}
	if len(cfg.PriceSelectors) == 0 {
		cfg.PriceSelectors = DefaultPriceSelectors
	}

	return &Loop{
		cfg:        cfg,
		session:    session,
		classifier: classifier,
		planner:    planner,
		orderer:    orderer,
		store:      store,
		cooldowns:  cooldowns,
		schedule:   schedule,
		now:        time.Now,
		sleep:      utils.Sleep,
		stats:      Stats{Mode: ModeStarting},
		log:        log.With().Str("service", "monitor").Logger(),
	}
}

// SetSweeper sets the backorder sweeper run after each cycle
func (l *Loop) SetSweeper(s Sweeper) {
	l.sweeper = s
}

// SetEventManager sets the event manager
func (l *Loop) SetEventManager(m *events.Manager) {
	l.eventManager = m
}

// SetClock replaces the clock and sleep functions
func (l *Loop) SetClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) {
	if now != nil {
		l.now = now
	}
	if sleep != nil {
		l.sleep = sleep
	}
}

// Stats returns a snapshot of the counters
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Run polls until ctx is cancelled. Outside the active window it sleeps in
// long increments. Only a fatal error ends the loop early and is returned.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info().
		Int("products", len(l.cfg.Products)).
		Bool("auto_order", l.cfg.AutoOrder).
		Float64("budget", l.cfg.Budget.Total).
		Msg("Monitor loop started")
	defer l.setMode(ModeStopped, time.Time{})

	for {
		if ctx.Err() != nil {
			l.log.Info().Msg("Monitor loop stopped")
			return nil
		}

		now := l.now()
		if !l.schedule.IsActiveNow(now) {
			l.setMode(ModeInactive, l.schedule.NextActiveStart(now))
			d := l.schedule.InactiveSleep(now)
			if d <= 0 {
				d = time.Second
			}
			_ = l.sleep(ctx, d)
			continue
		}
		l.setMode(ModeActive, time.Time{})

		if err := l.RunCycle(ctx); err != nil {
			if domain.IsFatal(err) {
				l.log.Error().Err(err).Msg("Fatal error, stopping monitor loop")
				l.eventManager.EmitError("monitor", err, map[string]interface{}{"fatal": true})
				return err
			}
			if ctx.Err() == nil {
				l.log.Warn().Err(err).Msg("Cycle ended early")
			}
		}

		_ = l.sleep(ctx, l.schedule.PollInterval())
	}
}

// RunCycle checks each product once, in configured order, then sweeps
// backorders. Per-product failures are logged and counted; only fatal
// errors and cancellation end the cycle early.
func (l *Loop) RunCycle(ctx context.Context) error {
	defer utils.OperationTimer("monitor_cycle", l.log)()
	start := l.now()
	summary := events.CycleCompletedData{}

	for i, product := range l.cfg.Products {
		if i > 0 {
			if err := l.sleep(ctx, l.schedule.PollInterval()); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		out, err := l.checkProduct(ctx, product)
		switch out {
		case outcomeSkipped:
			summary.Skipped++
		case outcomeChecked:
			summary.Checked++
		case outcomeOrdered:
			summary.Checked++
			summary.Ordered++
		}
		if err != nil {
			if domain.IsFatal(err) {
				return err
			}
			summary.Errors++
			l.recordError()
			l.log.Warn().
				Err(err).
				Str("product", product.ID).
				Str("kind", domain.KindOf(err).String()).
				Msg("Product check failed, retrying next cycle")
			l.eventManager.EmitError("monitor", err, map[string]interface{}{"product": product.ID})
		}
	}

	if l.sweeper != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := l.sweeper.Sweep(ctx, l.now()); err != nil {
			if domain.IsFatal(err) {
				return err
			}
			summary.Errors++
			l.recordError()
			l.log.Warn().Err(err).Msg("Backorder sweep failed")
		}
	}

	l.mu.Lock()
	l.stats.Cycles++
	l.mu.Unlock()

	summary.Duration = l.now().Sub(start).Milliseconds()
	l.eventManager.EmitTyped("monitor", &summary)
	return nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeChecked
	outcomeOrdered
)

func (l *Loop) checkProduct(ctx context.Context, product domain.ProductConfig) (outcome, error) {
	now := l.now()
	log := l.log.With().Str("product", product.ID).Logger()

	if remaining := l.cooldowns.RemainingSeconds(product.ID, now); remaining > 0 {
		log.Info().Int("remaining_seconds", remaining).Msg("Waiting after backorder")
		l.eventManager.EmitTyped("monitor", &events.CooldownActiveData{
			ProductID:        product.ID,
			RemainingSeconds: remaining,
		})
		return outcomeSkipped, nil
	}

	state, err := l.currentState(now)
	if err != nil {
		return outcomeSkipped, err
	}
	counters := state.Counters(product.ID)
	if counters.StoppedForToday {
		log.Debug().Msg("Stopped for today")
		return outcomeSkipped, nil
	}
	if product.Capped() && counters.UnitsOrderedToday >= product.DailyUnitCap {
		log.Debug().Int("daily_unit_cap", product.DailyUnitCap).Msg("Daily cap reached")
		return outcomeSkipped, nil
	}

	if err := l.session.Goto(ctx, product.URL); err != nil {
		return outcomeSkipped, err
	}
	raw, err := l.firstText(ctx, "stock_status", prepend(product.StockSelector, l.cfg.StockSelectors))
	if err != nil {
		return outcomeSkipped, err
	}
	priceText, err := l.firstText(ctx, "price", prepend(product.PriceSelector, l.cfg.PriceSelectors))
	if err != nil && !domain.IsNotFound(err) {
		return outcomeSkipped, err
	}

	sample := l.classifier.Sample(product.ID, raw, priceText, l.now())
	l.recordCheck(sample.ObservedAt)

	log.Info().
		Str("status", string(sample.Status)).
		Int("confidence", sample.Confidence).
		Str("raw", sample.RawText).
		Msg("Stock checked")
	l.eventManager.EmitTyped("monitor", &events.StockCheckedData{
		ProductID:  product.ID,
		Status:     string(sample.Status),
		RawText:    sample.RawText,
		Confidence: sample.Confidence,
		Price:      sample.Price,
	})

	if !sample.Status.Orderable() {
		return outcomeChecked, nil
	}
	if l.cfg.MinConfidence > 0 && sample.Confidence < l.cfg.MinConfidence {
		l.alert(sample, fmt.Sprintf("confidence %d below %d", sample.Confidence, l.cfg.MinConfidence))
		return outcomeChecked, nil
	}
	if !l.cfg.AutoOrder {
		l.alert(sample, "auto-order disabled")
		return outcomeChecked, nil
	}

	plan := l.planner.PlanOrder(product, state, sample, l.cfg.Budget)
	if plan.Empty() {
		log.Debug().Msg("Nothing to order")
		return outcomeChecked, nil
	}

	log.Info().
		Str("strategy", string(plan.Strategy)).
		Ints("quantities", plan.Quantities).
		Float64("estimated_cost", plan.EstimatedCost).
		Msg("Stock available, ordering")

	attempts, err := l.orderer.ExecuteSequence(ctx, product, plan.Quantities, l.cfg.SplitDelay)
	l.recordAttempts(attempts)

	ordered := false
	for _, a := range attempts {
		if a.Success {
			ordered = true
		}
	}
	out := outcomeChecked
	if ordered {
		out = outcomeOrdered
	}

	// Exhausting the reduction ladder is a handled outcome, not a failure of the loop
	if errors.Is(err, domain.ErrStoppedForToday) {
		log.Warn().Err(err).Msg("Product stopped for today")
		return out, nil
	}
	return out, err
}

// currentState rolls the daily state over when the date changed. A store
// that cannot be read or written is fatal: counters could not be trusted.
func (l *Loop) currentState(now time.Time) (domain.DailyState, error) {
	state, err := l.store.RolloverIfNeeded(now)
	if err != nil {
		return state, domain.Fatal("daily_state", err)
	}

	l.mu.Lock()
	previous := l.lastDate
	l.lastDate = state.Date
	l.mu.Unlock()

	if previous != "" && previous != state.Date {
		l.eventManager.EmitTyped("monitor", &events.DailyStateRolledData{Date: state.Date})
	}
	return state, nil
}

func (l *Loop) firstText(ctx context.Context, op string, selectors []string) (string, error) {
	for _, s := range selectors {
		text, err := l.session.TextContent(ctx, s)
		if err == nil {
			return text, nil
		}
		if !domain.IsNotFound(err) {
			return "", err
		}
	}
	return "", domain.NotFound(op, fmt.Sprintf("any of %q", selectors))
}

func (l *Loop) alert(sample domain.StockSample, reason string) {
	l.log.Warn().
		Str("product", sample.ProductID).
		Str("status", string(sample.Status)).
		Int("confidence", sample.Confidence).
		Str("reason", reason).
		Msg("Stock alert, not ordering")
	l.eventManager.EmitTyped("monitor", &events.StockAlertData{
		ProductID:  sample.ProductID,
		Status:     string(sample.Status),
		Reason:     reason,
		Confidence: sample.Confidence,
	})
}

func (l *Loop) setMode(mode string, next time.Time) {
	l.mu.Lock()
	changed := l.stats.Mode != mode
	l.stats.Mode = mode
	l.stats.NextActiveStart = next
	l.mu.Unlock()

	if !changed {
		return
	}
	data := &events.ModeChangedData{Mode: mode}
	if !next.IsZero() {
		data.NextActiveStart = next.Format(time.RFC3339)
	}
	l.log.Info().Str("mode", mode).Str("next_active_start", data.NextActiveStart).Msg("Mode changed")
	l.eventManager.EmitTyped("monitor", data)
}

func (l *Loop) recordCheck(at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stats.TotalChecks++
	l.stats.LastCheck = at
}

func (l *Loop) recordAttempts(attempts []domain.OrderAttempt) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range attempts {
		if a.Success {
			l.stats.SuccessfulOrders++
		} else {
			l.stats.FailedOrders++
		}
	}
}

func (l *Loop) recordError() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stats.Errors++
}

func prepend(first string, rest []string) []string {
	if first == "" {
		return rest
	}
	out := make([]string, 0, len(rest)+1)
	out = append(out, first)
	for _, s := range rest {
		if s != first {
			out = append(out, s)
		}
	}
	return out
}
