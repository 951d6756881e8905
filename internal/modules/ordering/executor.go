// Package ordering places supplier orders through the browser session.
package ordering

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/restock/internal/domain"
	"github.com/aristath/restock/internal/events"
	"github.com/aristath/restock/internal/modules/strategy"
	"github.com/aristath/restock/internal/utils"
	"github.com/rs/zerolog"
)

// DefaultSuccessText is shown on the supplier's order confirmation page
const DefaultSuccessText = "TACK FÖR DIN ORDER"

// DefaultCreditLimitMarkers identify a credit-limit rejection in the error banner
var DefaultCreditLimitMarkers = []string{"credit", "kredit", "limit", "gräns"}

// StateStore is the part of the daily state store the executor writes to
type StateStore interface {
	RecordAttempt(attempt domain.OrderAttempt, now time.Time) (domain.DailyState, error)
	MarkStopped(productID string, now time.Time) (domain.DailyState, error)
	NextReference(now time.Time) (string, error)
}

// Calendar provides the delivery date submitted with an order
type Calendar interface {
	DeliveryDate(now time.Time) string
}

// Config holds executor configuration
type Config struct {
	Selectors          Selectors
	CartURL            string // used when no cart link resolves
	SuccessText        string
	CreditLimitMarkers []string
	SelectorTimeout    time.Duration // per selector in a fallback list
	NavigationTimeout  time.Duration
	ConfirmTimeout     time.Duration
	ConfirmPoll        time.Duration
	SettleDelay        time.Duration // pause after cart mutations
	ScreenshotDir      string        // empty disables diagnostic screenshots
}

// DefaultConfig returns the supplier defaults
func DefaultConfig() Config {
	return Config{
		Selectors:          DefaultSelectors(),
		SuccessText:        DefaultSuccessText,
		CreditLimitMarkers: DefaultCreditLimitMarkers,
		SelectorTimeout:    3 * time.Second,
		NavigationTimeout:  30 * time.Second,
		ConfirmTimeout:     10 * time.Second,
		ConfirmPoll:        500 * time.Millisecond,
		SettleDelay:        2 * time.Second,
	}
}

// Executor drives the checkout flow for one product at a time.
// It is used only from the monitor loop, which owns the session.
type Executor struct {
	cfg          Config
	session      domain.WebSession
	store        StateStore
	calendar     Calendar
	ledger       domain.AttemptLedger
	eventManager *events.Manager
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
	log          zerolog.Logger
}

// NewExecutor creates an executor
func NewExecutor(
	cfg Config,
	session domain.WebSession,
	store StateStore,
	calendar Calendar,
	log zerolog.Logger,
) *Executor {
	defaults := DefaultConfig()
	cfg.Selectors = cfg.Selectors.Merge(defaults.Selectors)
	if cfg.SuccessText == "" {
		cfg.SuccessText = defaults.SuccessText
	}
	if len(cfg.CreditLimitMarkers) == 0 {
		cfg.CreditLimitMarkers = defaults.CreditLimitMarkers
	}
	if cfg.SelectorTimeout <= 0 {
		cfg.SelectorTimeout = defaults.SelectorTimeout
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaults.NavigationTimeout
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = defaults.ConfirmTimeout
	}
	if cfg.ConfirmPoll <= 0 {
		cfg.ConfirmPoll = defaults.ConfirmPoll
	}

	return &Executor{
		cfg:      cfg,
		session:  session,
		store:    store,
		calendar: calendar,
		now:      time.Now,
		sleep:    utils.Sleep,
		log:      log.With().Str("service", "order_executor").Logger(),
	}
}

// SetLedger sets the durable attempt ledger
func (e *Executor) SetLedger(ledger domain.AttemptLedger) {
	e.ledger = ledger
}

// SetEventManager sets the event manager
func (e *Executor) SetEventManager(m *events.Manager) {
	e.eventManager = m
}

// SetClock replaces the clock and sleep functions
func (e *Executor) SetClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) {
	if now != nil {
		e.now = now
	}
	if sleep != nil {
		e.sleep = sleep
	}
}

// Execute orders quantity units of product and returns the final attempt.
//
// A credit-limit rejection is retried down the reduction ladder with the
// product still in the cart. When the minimum quantity is rejected too the
// product is stopped for today and the returned error wraps
// domain.ErrStoppedForToday. Any other failure ends the call and is left to
// the next poll cycle.
//
// An attempt that has started always runs to completion, even when ctx is
// cancelled, so the supplier cart is never abandoned mid-checkout.
func (e *Executor) Execute(ctx context.Context, product domain.ProductConfig, quantity int) (domain.OrderAttempt, error) {
	ctx = context.WithoutCancel(ctx)

	quantities := append([]int{quantity}, strategy.ReductionLadder(quantity, product.MinQuantity, product.ReductionDivisor)...)

	var last domain.OrderAttempt
	for i, qty := range quantities {
		if i > 0 {
			e.log.Warn().
				Str("product", product.ID).
				Int("from_quantity", quantities[i-1]).
				Int("quantity", qty).
				Msg("Credit limit hit, retrying with reduced quantity")
			e.eventManager.EmitTyped("ordering", &events.OrderReducedData{
				ProductID:    product.ID,
				FromQuantity: quantities[i-1],
				ToQuantity:   qty,
			})
		}

		attempt, err := e.attempt(ctx, product, quantity, qty, i > 0)
		last = attempt

		state, recErr := e.record(attempt)
		if recErr != nil {
			return attempt, recErr
		}

		if err == nil {
			e.placed(attempt, state)
			return attempt, nil
		}

		e.failed(attempt, err)
		if !domain.IsBusinessRejected(err) {
			e.screenshot(ctx, product.ID, "failed")
			return attempt, err
		}
	}

	if _, err := e.store.MarkStopped(product.ID, e.now()); err != nil {
		return last, domain.Fatal("mark_stopped", err)
	}
	e.screenshot(ctx, product.ID, "stopped")
	e.eventManager.EmitTyped("ordering", &events.ProductStoppedData{
		ProductID: product.ID,
		Reason:    last.FailureReason,
	})
	return last, fmt.Errorf("%s rejected at minimum quantity %d: %w", product.ID, last.FinalQuantity, domain.ErrStoppedForToday)
}

// ExecuteSequence places the sub-orders of a split plan one after another,
// pausing delay between them. The first failing sub-order aborts the rest,
// and cancellation is honoured between sub-orders only.
func (e *Executor) ExecuteSequence(ctx context.Context, product domain.ProductConfig, quantities []int, delay time.Duration) ([]domain.OrderAttempt, error) {
	attempts := make([]domain.OrderAttempt, 0, len(quantities))

	for i, qty := range quantities {
		if i > 0 {
			if err := e.sleep(ctx, delay); err != nil {
				return attempts, err
			}
		}
		if err := ctx.Err(); err != nil {
			return attempts, err
		}

		attempt, err := e.Execute(ctx, product, qty)
		attempts = append(attempts, attempt)
		if err != nil {
			if remaining := len(quantities) - i - 1; remaining > 0 {
				e.log.Warn().
					Str("product", product.ID).
					Ints("aborted", quantities[i+1:]).
					Msg("Sub-order failed, aborting remaining split orders")
			}
			return attempts, err
		}
	}
	return attempts, nil
}

// attempt runs one submission. requested is the quantity the plan asked
// for and qty the quantity of this step of the ladder.
func (e *Executor) attempt(ctx context.Context, product domain.ProductConfig, requested, qty int, reduced bool) (domain.OrderAttempt, error) {
	attempt := domain.OrderAttempt{
		Timestamp:         e.now(),
		ProductID:         product.ID,
		RequestedQuantity: requested,
		FinalQuantity:     qty,
	}

	e.log.Info().
		Str("product", product.ID).
		Int("quantity", qty).
		Bool("reduced", reduced).
		Msg("Placing order")

	ref, err := e.submit(ctx, product, qty, reduced)
	attempt.Reference = ref
	if err != nil {
		attempt.FailureReason = err.Error()
		return attempt, err
	}
	attempt.Success = true
	return attempt, nil
}

func (e *Executor) submit(ctx context.Context, product domain.ProductConfig, qty int, reduced bool) (string, error) {
	sel := e.cfg.Selectors
	value := strconv.Itoa(qty)

	if !reduced {
		if err := e.session.Goto(ctx, product.URL); err != nil {
			return "", err
		}
		if err := e.fill(ctx, "set_quantity", sel.Quantity, value); err != nil {
			return "", err
		}
		if err := e.click(ctx, "add_to_cart", sel.AddToCart); err != nil {
			return "", err
		}
		if err := e.sleep(ctx, e.cfg.SettleDelay); err != nil {
			return "", err
		}
	}

	if err := e.openCart(ctx); err != nil {
		return "", err
	}

	if reduced {
		if err := e.fill(ctx, "update_cart_quantity", sel.CartQuantity, value); err != nil {
			return "", err
		}
		if err := e.click(ctx, "update_cart", sel.UpdateCart); err != nil {
			return "", err
		}
		if err := e.sleep(ctx, e.cfg.SettleDelay); err != nil {
			return "", err
		}
	}

	if err := e.click(ctx, "checkout", sel.Checkout); err != nil {
		return "", err
	}
	if err := e.session.WaitForNavigation(ctx, e.cfg.NavigationTimeout); err != nil {
		return "", err
	}

	now := e.now()
	if err := e.fill(ctx, "delivery_date", sel.DeliveryDate, e.calendar.DeliveryDate(now)); err != nil {
		return "", err
	}

	ref, err := e.store.NextReference(now)
	if err != nil {
		return "", domain.Fatal("next_reference", err)
	}
	if err := e.fill(ctx, "reference", sel.Reference, ref); err != nil {
		return ref, err
	}
	// Not every checkout variant has a separate order number field
	if err := e.fill(ctx, "order_number", sel.OrderNumber, ref); err != nil && !domain.IsNotFound(err) {
		return ref, err
	}
	if err := e.click(ctx, "accept_terms", sel.AcceptTerms); err != nil {
		return ref, err
	}
	if err := e.click(ctx, "submit", sel.Submit); err != nil {
		return ref, err
	}

	return ref, e.confirm(ctx)
}

func (e *Executor) openCart(ctx context.Context) error {
	err := e.click(ctx, "open_cart", e.cfg.Selectors.Cart)
	if err == nil || !domain.IsNotFound(err) || e.cfg.CartURL == "" {
		return err
	}
	return e.session.Goto(ctx, e.cfg.CartURL)
}

// confirm polls for the success text until ConfirmTimeout. An error banner
// mentioning the credit limit is a business rejection; anything else is transient.
func (e *Executor) confirm(ctx context.Context) error {
	polls := int(e.cfg.ConfirmTimeout / e.cfg.ConfirmPoll)
	if polls < 1 {
		polls = 1
	}
	success := strings.ToLower(e.cfg.SuccessText)

	var banner string
	for i := 0; i < polls; i++ {
		if i > 0 {
			if err := e.sleep(ctx, e.cfg.ConfirmPoll); err != nil {
				return domain.Transient("confirm", err)
			}
		}

		for _, s := range e.cfg.Selectors.Confirmation {
			text, err := e.session.TextContent(ctx, s)
			if domain.IsFatal(err) {
				return err
			}
			if err == nil && strings.Contains(strings.ToLower(text), success) {
				return nil
			}
		}

		banner = e.errorBanner(ctx)
		if banner != "" && e.isCreditLimit(banner) {
			return &domain.Error{
				Kind:   domain.KindBusinessRejected,
				Op:     "confirm",
				Reason: domain.ErrCreditLimit.Reason,
				Err:    fmt.Errorf("supplier said %q", banner),
			}
		}
	}

	if banner != "" {
		return domain.NewError(domain.KindTransient, "confirm", "order rejected", fmt.Errorf("supplier said %q", banner))
	}
	return domain.NewError(domain.KindTransient, "confirm", "no confirmation within "+e.cfg.ConfirmTimeout.String(), nil)
}

func (e *Executor) errorBanner(ctx context.Context) string {
	for _, s := range e.cfg.Selectors.ErrorBanner {
		text, err := e.session.TextContent(ctx, s)
		if err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}
	return ""
}

func (e *Executor) isCreditLimit(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range e.cfg.CreditLimitMarkers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// resolve returns the first selector of candidates present on the page
func (e *Executor) resolve(ctx context.Context, op string, candidates []string) (string, error) {
	for _, s := range candidates {
		err := e.session.WaitForSelector(ctx, s, e.cfg.SelectorTimeout)
		if err == nil {
			return s, nil
		}
		if !domain.IsNotFound(err) {
			return "", err
		}
	}
	return "", domain.NotFound(op, fmt.Sprintf("any of %q", candidates))
}

func (e *Executor) fill(ctx context.Context, op string, candidates []string, value string) error {
	s, err := e.resolve(ctx, op, candidates)
	if err != nil {
		return err
	}
	return e.session.Fill(ctx, s, value)
}

func (e *Executor) click(ctx context.Context, op string, candidates []string) error {
	s, err := e.resolve(ctx, op, candidates)
	if err != nil {
		return err
	}
	return e.session.Click(ctx, s)
}

// record persists the attempt. The daily state must reflect every
// submission, so a failed write is fatal; the ledger is secondary.
func (e *Executor) record(attempt domain.OrderAttempt) (domain.DailyState, error) {
	state, err := e.store.RecordAttempt(attempt, e.now())
	if err != nil {
		e.log.Error().Err(err).Str("product", attempt.ProductID).Msg("Failed to record order attempt")
		return state, domain.Fatal("record_attempt", err)
	}
	if e.ledger != nil {
		if err := e.ledger.RecordAttempt(attempt); err != nil {
			e.log.Warn().Err(err).Str("reference", attempt.Reference).Msg("Failed to write attempt to ledger")
		}
	}
	return state, nil
}

func (e *Executor) placed(attempt domain.OrderAttempt, state domain.DailyState) {
	e.log.Info().
		Str("product", attempt.ProductID).
		Str("reference", attempt.Reference).
		Int("quantity", attempt.FinalQuantity).
		Msg("Order placed")

	data := orderData(attempt)
	e.eventManager.EmitTyped("ordering", &events.OrderPlacedData{OrderData: data})

	successes := 0
	for _, a := range state.OrdersPlacedToday {
		if a.Success {
			successes++
		}
	}
	if successes == 1 {
		e.eventManager.EmitTyped("ordering", &events.FirstOrderOfDayData{OrderData: data})
	}
}

func (e *Executor) failed(attempt domain.OrderAttempt, err error) {
	e.log.Warn().
		Err(err).
		Str("product", attempt.ProductID).
		Str("reference", attempt.Reference).
		Int("quantity", attempt.FinalQuantity).
		Str("kind", domain.KindOf(err).String()).
		Msg("Order attempt failed")

	e.eventManager.EmitTyped("ordering", &events.OrderFailedData{
		OrderData: orderData(attempt),
		Kind:      domain.KindOf(err).String(),
	})
}

// screenshot captures the page for operator triage. Failures are only logged.
func (e *Executor) screenshot(ctx context.Context, productID, label string) {
	if e.cfg.ScreenshotDir == "" {
		return
	}
	name := fmt.Sprintf("%s-%s-%s.png", productID, label, e.now().Format("20060102-150405"))
	path := filepath.Join(e.cfg.ScreenshotDir, name)
	if err := e.session.Screenshot(ctx, path); err != nil {
		e.log.Warn().Err(err).Str("path", path).Msg("Failed to capture diagnostic screenshot")
		return
	}
	e.log.Info().Str("path", path).Msg("Diagnostic screenshot saved")
}

func orderData(a domain.OrderAttempt) events.OrderData {
	return events.OrderData{
		ProductID:         a.ProductID,
		Reference:         a.Reference,
		FailureReason:     a.FailureReason,
		RequestedQuantity: a.RequestedQuantity,
		Quantity:          a.FinalQuantity,
	}
}
