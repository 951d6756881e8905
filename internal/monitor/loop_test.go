package monitor_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aristath/restock/internal/domain"
	"github.com/aristath/restock/internal/events"
	"github.com/aristath/restock/internal/modules/cooldown"
	"github.com/aristath/restock/internal/modules/dailystate"
	"github.com/aristath/restock/internal/modules/ordering"
	"github.com/aristath/restock/internal/modules/stock"
	"github.com/aristath/restock/internal/modules/strategy"
	"github.com/aristath/restock/internal/modules/workhours"
	"github.com/aristath/restock/internal/monitor"
	testingpkg "github.com/aristath/restock/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// Tuesday morning
var tuesday = time.Date(2026, 10, 13, 9, 30, 0, 0, time.UTC)

type fakeSchedule struct {
	active   bool
	next     time.Time
	poll     time.Duration
	inactive time.Duration
}

func (s *fakeSchedule) IsActiveNow(time.Time) bool            { return s.active }
func (s *fakeSchedule) NextActiveStart(time.Time) time.Time   { return s.next }
func (s *fakeSchedule) PollInterval() time.Duration           { return s.poll }
func (s *fakeSchedule) InactiveSleep(time.Time) time.Duration { return s.inactive }

type orderCall struct {
	productID  string
	quantities []int
	delay      time.Duration
}

type fakeOrderer struct {
	mu    sync.Mutex
	calls []orderCall
	err   error
}

func (o *fakeOrderer) ExecuteSequence(ctx context.Context, product domain.ProductConfig, quantities []int, delay time.Duration) ([]domain.OrderAttempt, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, orderCall{productID: product.ID, quantities: quantities, delay: delay})

	attempts := make([]domain.OrderAttempt, 0, len(quantities))
	for _, q := range quantities {
		attempts = append(attempts, domain.OrderAttempt{
			ProductID:         product.ID,
			RequestedQuantity: q,
			FinalQuantity:     q,
			Success:           o.err == nil,
		})
	}
	return attempts, o.err
}

type fakeSweeper struct {
	calls int
	err   error
}

func (s *fakeSweeper) Sweep(ctx context.Context, now time.Time) ([]string, error) {
	s.calls++
	return nil, s.err
}

type failingStore struct{}

func (failingStore) RolloverIfNeeded(time.Time) (domain.DailyState, error) {
	return domain.DailyState{}, errors.New("disk full")
}

type harness struct {
	session   *testingpkg.FakeSession
	store     *dailystate.Store
	cooldowns *cooldown.Tracker
	orderer   *fakeOrderer
	schedule  *fakeSchedule
	recorder  *testingpkg.EventRecorder
	loop      *monitor.Loop

	now    time.Time
	sleeps []time.Duration
	// cancel is called once this many sleeps have happened; zero never cancels
	cancelAfter int
	cancel      context.CancelFunc
}

func newHarness(t *testing.T, cfg monitor.Config) *harness {
	t.Helper()
	h := &harness{
		session: testingpkg.NewFakeSession(),
		store: dailystate.NewStore(dailystate.Config{
			Path:     filepath.Join(t.TempDir(), "daily-state.json"),
			Location: time.UTC,
		}, zerolog.Nop()),
		cooldowns: cooldown.NewTracker(180*time.Second, zerolog.Nop()),
		orderer:   &fakeOrderer{},
		schedule:  &fakeSchedule{active: true, poll: 5 * time.Second, inactive: time.Hour},
		now:       tuesday,
	}
	if len(cfg.Products) == 0 {
		cfg.Products = []domain.ProductConfig{testingpkg.WoundProduct()}
	}
	h.loop = h.build(cfg, h.store)
	return h
}

func (h *harness) build(cfg monitor.Config, store monitor.StateStore) *monitor.Loop {
	loop := monitor.NewLoop(
		cfg,
		h.session,
		stock.NewClassifier(stock.Vocabulary{}),
		strategy.NewPlanner(strategy.DefaultSplitPolicy(), zerolog.Nop()),
		h.orderer,
		store,
		h.cooldowns,
		h.schedule,
		zerolog.Nop(),
	)
	loop.SetClock(
		func() time.Time { return h.now },
		func(ctx context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			if h.cancelAfter > 0 && len(h.sleeps) >= h.cancelAfter && h.cancel != nil {
				h.cancel()
			}
			return ctx.Err()
		},
	)

	bus := events.NewBus()
	h.recorder = testingpkg.RecordEvents(bus)
	loop.SetEventManager(events.NewManager(bus, zerolog.Nop()))
	return loop
}

func TestRunCycle_OrdersWhenAvailable(t *testing.T) {
	h := newHarness(t, monitor.Config{AutoOrder: true})
	h.session.SetText(".product-availability", "Finns i lager")

	require.NoError(t, h.loop.RunCycle(context.Background()))

	require.Len(t, h.orderer.calls, 1)
	assert.Equal(t, "product1", h.orderer.calls[0].productID)
	assert.Equal(t, []int{700}, h.orderer.calls[0].quantities)
	assert.Equal(t, 30*time.Second, h.orderer.calls[0].delay)
	assert.Equal(t, "https://supplier.test/p/product1", h.session.Page())

	stats := h.loop.Stats()
	assert.Equal(t, 1, stats.TotalChecks)
	assert.Equal(t, 1, stats.SuccessfulOrders)
	assert.Equal(t, 1, stats.Cycles)
	assert.Equal(t, tuesday, stats.LastCheck)

	assert.Equal(t, []events.EventType{events.StockChecked, events.CycleCompleted}, h.recorder.Types())
	completed := h.recorder.Of(events.CycleCompleted)[0].Data
	assert.EqualValues(t, 1, completed["checked"])
	assert.EqualValues(t, 1, completed["ordered"])
}

func TestRunCycle_UsesPriceWhenPresent(t *testing.T) {
	h := newHarness(t, monitor.Config{AutoOrder: true})
	h.session.SetText(".product-availability", "I lager")
	h.session.SetText(".price", "123,50 kr")

	require.NoError(t, h.loop.RunCycle(context.Background()))

	checked := h.recorder.Of(events.StockChecked)
	require.Len(t, checked, 1)
	assert.EqualValues(t, 123.5, checked[0].Data["price"])
}

func TestRunCycle_UnavailableDoesNotOrder(t *testing.T) {
	h := newHarness(t, monitor.Config{AutoOrder: true})
	h.session.SetText(".product-availability", "Slut i lager")

	require.NoError(t, h.loop.RunCycle(context.Background()))

	assert.Empty(t, h.orderer.calls)
	checked := h.recorder.Of(events.StockChecked)
	require.Len(t, checked, 1)
	assert.Equal(t, "unavailable", checked[0].Data["status"])
}

func TestRunCycle_AutoOrderOffAlerts(t *testing.T) {
	h := newHarness(t, monitor.Config{AutoOrder: false})
	h.session.SetText(".product-availability", "I lager")

	require.NoError(t, h.loop.RunCycle(context.Background()))

	assert.Empty(t, h.orderer.calls)
	alerts := h.recorder.Of(events.StockAlert)
	require.Len(t, alerts, 1)
	assert.Equal(t, "auto-order disabled", alerts[0].Data["reason"])
}

func TestRunCycle_LowConfidenceAlerts(t *testing.T) {
	h := newHarness(t, monitor.Config{AutoOrder: true, MinConfidence: 90})
	// Delivery mention only: available at 80
	h.session.SetText(".product-availability", "Delivery within 3 days")

	require.NoError(t, h.loop.RunCycle(context.Background()))

	assert.Empty(t, h.orderer.calls)
	alerts := h.recorder.Of(events.StockAlert)
	require.Len(t, alerts, 1)
	assert.Equal(t, "confidence 80 below 90", alerts[0].Data["reason"])
}

func TestRunCycle_StockSelectorFallback(t *testing.T) {
	h := newHarness(t, monitor.Config{AutoOrder: true})
	h.session.SetText(".stock-status", "Tillgänglig")

	require.NoError(t, h.loop.RunCycle(context.Background()))

	assert.Len(t, h.orderer.calls, 1)
}

func TestRunCycle_CooldownSkipsProduct(t *testing.T) {
	h := newHarness(t, monitor.Config{AutoOrder: true})
	h.session.SetText(".product-availability", "I lager")
	h.cooldowns.StartCooldown("product1", tuesday.Add(-60*time.Second))

	require.NoError(t, h.loop.RunCycle(context.Background()))

	assert.Empty(t, h.orderer.calls)
	assert.Zero(t, h.session.CountCalls("goto https://supplier.test/p/product1"))
	cooling := h.recorder.Of(events.CooldownActive)
	require.Len(t, cooling, 1)
	assert.EqualValues(t, 120, cooling[0].Data["remaining_seconds"])
	assert.Zero(t, h.loop.Stats().TotalChecks)
}

func TestRunCycle_StoppedProductSkipped(t *testing.T) {
	h := newHarness(t, monitor.Config{AutoOrder: true})
	h.session.SetText(".product-availability", "I lager")
	_, err := h.store.MarkStopped("product1", tuesday)
	require.NoError(t, err)

	require.NoError(t, h.loop.RunCycle(context.Background()))

	assert.Empty(t, h.orderer.calls)
	assert.Empty(t, h.session.Calls())
}

func TestRunCycle_CapReachedSkipped(t *testing.T) {
	product := testingpkg.CappedProduct()
	h := newHarness(t, monitor.Config{AutoOrder: true, Products: []domain.ProductConfig{product}})
	h.session.SetText(".product-availability", "I lager")
	for _, q := range []int{900, 450, 270} {
		_, err := h.store.RecordAttempt(domain.OrderAttempt{
			Timestamp:         tuesday,
			ProductID:         product.ID,
			RequestedQuantity: q,
			FinalQuantity:     q,
			Success:           true,
		}, tuesday)
		require.NoError(t, err)
	}

	require.NoError(t, h.loop.RunCycle(context.Background()))

	assert.Empty(t, h.orderer.calls)
	assert.Empty(t, h.session.Calls())
}

func TestRunCycle_ProductErrorDoesNotStopCycle(t *testing.T) {
	second := testingpkg.CappedProduct()
	second.StockSelector = ".stock-line"
	h := newHarness(t, monitor.Config{
		AutoOrder: true,
		Products:  []domain.ProductConfig{testingpkg.WoundProduct(), second},
		// No shared fallbacks: product1 has nothing to read
		StockSelectors: []string{".never-there"},
	})
	h.session.SetText(".stock-line", "I lager")

	require.NoError(t, h.loop.RunCycle(context.Background()))

	require.Len(t, h.orderer.calls, 1)
	assert.Equal(t, "product2", h.orderer.calls[0].productID)
	assert.Equal(t, []time.Duration{5 * time.Second}, h.sleeps)

	stats := h.loop.Stats()
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 1, stats.TotalChecks)
	assert.Len(t, h.recorder.Of(events.ErrorOccurred), 1)
	completed := h.recorder.Of(events.CycleCompleted)[0].Data
	assert.EqualValues(t, 1, completed["errors"])
}

func TestRunCycle_FatalSessionEndsCycle(t *testing.T) {
	h := newHarness(t, monitor.Config{AutoOrder: true})
	h.session.SetGotoError("https://supplier.test/p/product1",
		domain.Fatal("goto", fmt.Errorf("browser closed: %w", domain.ErrSessionExpired)))
	sweeper := &fakeSweeper{}
	h.loop.SetSweeper(sweeper)

	err := h.loop.RunCycle(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsFatal(err))
	assert.Zero(t, sweeper.calls)
	assert.Empty(t, h.recorder.Of(events.CycleCompleted))
}

func TestRunCycle_StoppedForTodayIsHandled(t *testing.T) {
	h := newHarness(t, monitor.Config{AutoOrder: true})
	h.session.SetText(".product-availability", "I lager")
	h.orderer.err = fmt.Errorf("order: %w", domain.ErrStoppedForToday)

	require.NoError(t, h.loop.RunCycle(context.Background()))

	stats := h.loop.Stats()
	assert.Equal(t, 1, stats.FailedOrders)
	assert.Zero(t, stats.Errors)
}

func TestRunCycle_OrderFailureCounted(t *testing.T) {
	h := newHarness(t, monitor.Config{AutoOrder: true})
	h.session.SetText(".product-availability", "I lager")
	h.orderer.err = domain.Transient("confirm", errors.New("no confirmation"))

	require.NoError(t, h.loop.RunCycle(context.Background()))

	stats := h.loop.Stats()
	assert.Equal(t, 1, stats.FailedOrders)
	assert.Equal(t, 1, stats.Errors)
}

func TestRunCycle_SweepsAfterProducts(t *testing.T) {
	h := newHarness(t, monitor.Config{AutoOrder: true})
	h.session.SetText(".product-availability", "Slut")
	sweeper := &fakeSweeper{}
	h.loop.SetSweeper(sweeper)

	require.NoError(t, h.loop.RunCycle(context.Background()))
	assert.Equal(t, 1, sweeper.calls)

	sweeper.err = errors.New("backorders page timed out")
	require.NoError(t, h.loop.RunCycle(context.Background()))
	assert.Equal(t, 1, h.loop.Stats().Errors)

	sweeper.err = domain.Fatal("sweep", domain.ErrSessionExpired)
	err := h.loop.RunCycle(context.Background())
	assert.True(t, domain.IsFatal(err))
}

func TestRunCycle_RolloverEmitsEvent(t *testing.T) {
	h := newHarness(t, monitor.Config{AutoOrder: true})
	h.session.SetText(".product-availability", "Slut")

	require.NoError(t, h.loop.RunCycle(context.Background()))
	assert.Empty(t, h.recorder.Of(events.DailyStateRolled))

	h.now = tuesday.Add(24 * time.Hour)
	require.NoError(t, h.loop.RunCycle(context.Background()))

	rolled := h.recorder.Of(events.DailyStateRolled)
	require.Len(t, rolled, 1)
	assert.Equal(t, "Wed Oct 14 2026", rolled[0].Data["date"])
}

func TestRunCycle_StateStoreFailureIsFatal(t *testing.T) {
	h := newHarness(t, monitor.Config{AutoOrder: true})
	loop := h.build(monitor.Config{
		AutoOrder: true,
		Products:  []domain.ProductConfig{testingpkg.WoundProduct()},
	}, failingStore{})

	err := loop.RunCycle(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsFatal(err))
}

func TestRunCycle_CancelledBetweenProducts(t *testing.T) {
	h := newHarness(t, monitor.Config{
		AutoOrder: true,
		Products:  []domain.ProductConfig{testingpkg.WoundProduct(), testingpkg.CappedProduct()},
	})
	h.session.SetText(".product-availability", "Slut")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.cancel = cancel
	h.cancelAfter = 1

	err := h.loop.RunCycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, h.loop.Stats().TotalChecks)
}

func TestRun_InactiveSleepsUntilCancelled(t *testing.T) {
	h := newHarness(t, monitor.Config{AutoOrder: true})
	h.schedule.active = false
	h.schedule.next = tuesday.Add(22 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.cancel = cancel
	h.cancelAfter = 2

	require.NoError(t, h.loop.Run(ctx))

	assert.Equal(t, []time.Duration{time.Hour, time.Hour}, h.sleeps)
	assert.Empty(t, h.session.Calls())

	modes := h.recorder.Of(events.ModeChanged)
	require.Len(t, modes, 2)
	assert.Equal(t, monitor.ModeInactive, modes[0].Data["mode"])
	assert.Equal(t, "2026-10-14T07:30:00Z", modes[0].Data["next_active_start"])
	assert.Equal(t, monitor.ModeStopped, modes[1].Data["mode"])
	assert.Equal(t, monitor.ModeStopped, h.loop.Stats().Mode)
}

func TestRun_InactiveSleepHasFloor(t *testing.T) {
	h := newHarness(t, monitor.Config{AutoOrder: true})
	h.schedule.active = false
	h.schedule.inactive = 0

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.cancel = cancel
	h.cancelAfter = 1

	require.NoError(t, h.loop.Run(ctx))
	assert.Equal(t, []time.Duration{time.Second}, h.sleeps)
}

func TestRun_PollsWhileActive(t *testing.T) {
	h := newHarness(t, monitor.Config{AutoOrder: true})
	h.session.SetText(".product-availability", "Slut")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.cancel = cancel
	h.cancelAfter = 3

	require.NoError(t, h.loop.Run(ctx))

	stats := h.loop.Stats()
	assert.Equal(t, 3, stats.Cycles)
	assert.Equal(t, 3, stats.TotalChecks)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second}, h.sleeps)
	assert.Equal(t, monitor.ModeActive, h.recorder.Of(events.ModeChanged)[0].Data["mode"])
}

func TestRun_FatalStopsLoop(t *testing.T) {
	h := newHarness(t, monitor.Config{AutoOrder: true})
	h.session.SetFatal(domain.Fatal("session", domain.ErrSessionExpired))

	err := h.loop.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
	assert.Empty(t, h.sleeps)

	errs := h.recorder.Of(events.ErrorOccurred)
	require.Len(t, errs, 1)
	assert.Equal(t, map[string]interface{}{"fatal": true}, errs[0].Data["context"])
}

func TestRunCycle_WithExecutorPlacesOrder(t *testing.T) {
	h := newHarness(t, monitor.Config{AutoOrder: true})
	h.session.SetText(".product-availability", "I lager")
	checkout := testingpkg.ScriptCheckout(h.session, testingpkg.CreditLimitAbove(400))

	gateCfg := workhours.DefaultConfig()
	gateCfg.Location = time.UTC
	gate := workhours.NewGate(gateCfg, zerolog.Nop())

	execCfg := ordering.DefaultConfig()
	execCfg.ScreenshotDir = t.TempDir()
	executor := ordering.NewExecutor(execCfg, h.session, h.store, gate, zerolog.Nop())
	executor.SetClock(func() time.Time { return h.now }, func(ctx context.Context, d time.Duration) error { return ctx.Err() })

	loop := monitor.NewLoop(
		monitor.Config{AutoOrder: true, Products: []domain.ProductConfig{testingpkg.WoundProduct()}},
		h.session,
		stock.NewClassifier(stock.Vocabulary{}),
		strategy.NewPlanner(strategy.DefaultSplitPolicy(), zerolog.Nop()),
		executor,
		h.store,
		h.cooldowns,
		h.schedule,
		zerolog.Nop(),
	)
	loop.SetClock(func() time.Time { return h.now }, nil)

	require.NoError(t, loop.RunCycle(context.Background()))

	assert.Equal(t, []string{"700", "350"}, checkout.SubmittedQuantities())
	state, err := h.store.Load()
	require.NoError(t, err)
	assert.Equal(t, 350, state.Counters("product1").UnitsOrderedToday)
	assert.Equal(t, 1, state.Counters("product1").OrderCount)
	assert.Len(t, state.OrdersPlacedToday, 2)

	// The executor reports the settled attempt of a reduced order
	stats := loop.Stats()
	assert.Equal(t, 1, stats.SuccessfulOrders)
	assert.Zero(t, stats.FailedOrders)
}
