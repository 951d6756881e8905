package di

import (
	"fmt"

	"github.com/aristath/restock/internal/config"
	"github.com/aristath/restock/internal/domain"
	"github.com/aristath/restock/internal/events"
	"github.com/aristath/restock/internal/modules/backorders"
	"github.com/aristath/restock/internal/modules/cooldown"
	"github.com/aristath/restock/internal/modules/dailystate"
	"github.com/aristath/restock/internal/modules/ledger"
	ledgerhandlers "github.com/aristath/restock/internal/modules/ledger/handlers"
	"github.com/aristath/restock/internal/modules/ordering"
	"github.com/aristath/restock/internal/modules/stock"
	"github.com/aristath/restock/internal/modules/strategy"
	"github.com/aristath/restock/internal/modules/workhours"
	"github.com/aristath/restock/internal/monitor"
	"github.com/rs/zerolog"
)

// InitializeServices builds the engine around an already logged-in session.
// backorderPage may be nil, which disables the backorder sweep.
func InitializeServices(
	container *Container,
	cfg *config.Config,
	session domain.WebSession,
	backorderPage domain.BackorderPage,
	log zerolog.Logger,
) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}
	if container.LedgerDB == nil {
		return fmt.Errorf("ledger database not initialized")
	}
	if session == nil {
		return fmt.Errorf("web session cannot be nil")
	}
	container.Session = session

	// Events
	container.EventBus = events.NewBus()
	container.EventManager = events.NewManager(container.EventBus, log)

	// Ledger
	container.LedgerRepo = ledger.NewRepository(container.LedgerDB, cfg.Location, log)
	container.LedgerHandler = ledgerhandlers.NewHandler(container.LedgerRepo, cfg.Location, log)

	// Daily state, archived to disk and to the ledger on rollover
	container.StateStore = dailystate.NewStore(dailystate.Config{
		Path:       cfg.StatePath(),
		ArchiveDir: cfg.ArchiveDir(),
		Location:   cfg.Location,
	}, log)
	container.StateStore.AddArchiver(container.LedgerRepo)
	container.StateStore.SetHistory(container.LedgerRepo)

	container.Cooldowns = cooldown.NewTracker(cfg.BackorderCooldown, log)
	container.Gate = workhours.NewGate(cfg.Schedule(), log)
	container.Classifier = stock.NewClassifier(stock.DefaultVocabulary())
	container.Planner = strategy.NewPlanner(strategy.DefaultSplitPolicy(), log)

	execCfg := ordering.DefaultConfig()
	execCfg.Selectors = cfg.Selectors
	execCfg.CartURL = cfg.Supplier.CartURL()
	execCfg.ScreenshotDir = cfg.ScreenshotDir
	container.Executor = ordering.NewExecutor(execCfg, session, container.StateStore, container.Gate, log)
	container.Executor.SetLedger(container.LedgerRepo)
	container.Executor.SetEventManager(container.EventManager)

	container.Loop = monitor.NewLoop(monitor.Config{
		Products:      cfg.Products,
		AutoOrder:     cfg.AutoOrder,
		Budget:        cfg.Budget(),
		MinConfidence: cfg.MinConfidence,
		SplitDelay:    cfg.SplitOrderDelay,
	}, session, container.Classifier, container.Planner, container.Executor,
		container.StateStore, container.Cooldowns, container.Gate, log)
	container.Loop.SetEventManager(container.EventManager)

	if backorderPage != nil {
		container.Sweeper = backorders.NewSweeper(backorderPage, container.Cooldowns, cfg.Products, log)
		container.Sweeper.SetEventManager(container.EventManager)
		container.Loop.SetSweeper(container.Sweeper)
	}

	log.Info().
		Int("products", len(cfg.Products)).
		Bool("auto_order", cfg.AutoOrder).
		Float64("max_order_amount", cfg.MaxOrderAmount).
		Msg("Services initialized")
	return nil
}
