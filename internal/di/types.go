// Package di provides dependency injection type definitions.
package di

import (
	"github.com/aristath/restock/internal/browser"
	"github.com/aristath/restock/internal/database"
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
	"github.com/aristath/restock/internal/reliability"
	"github.com/aristath/restock/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	// Databases
	LedgerDB *database.DB

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Persistence
	LedgerRepo    *ledger.Repository
	LedgerHandler *ledgerhandlers.Handler
	StateStore    *dailystate.Store

	// Core
	Cooldowns  *cooldown.Tracker
	Gate       *workhours.Gate
	Classifier *stock.Classifier
	Planner    *strategy.Planner
	Executor   *ordering.Executor
	Sweeper    *backorders.Sweeper
	Loop       *monitor.Loop

	// Browser. Browser is nil when the session was supplied by the caller.
	Browser *browser.Manager
	Session domain.WebSession

	// Background jobs
	Scheduler     *scheduler.Scheduler
	ArchiveStore  reliability.ObjectStore
	ArchiveUpload *reliability.ArchiveUploadJob
	LedgerUpkeep  *reliability.LedgerMaintenanceJob
	RolloverJob   *scheduler.DailyRolloverJob
	HeartbeatJob  *scheduler.HeartbeatJob
}

// Close releases the browser and the ledger database
func (c *Container) Close() error {
	var firstErr error
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.Browser != nil {
		if err := c.Browser.Close(); err != nil {
			firstErr = err
		}
	}
	if c.LedgerDB != nil {
		if err := c.LedgerDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
