package scheduler

import (
	"fmt"
	"time"

	"github.com/aristath/restock/internal/domain"
	"github.com/aristath/restock/internal/monitor"
	"github.com/rs/zerolog"
)

// StateStore rolls the daily state over at a date change
type StateStore interface {
	RolloverIfNeeded(now time.Time) (domain.DailyState, error)
}

// StatsSource reports the monitor loop counters
type StatsSource interface {
	Stats() monitor.Stats
}

// CooldownSource reports active backorder cooldowns
type CooldownSource interface {
	Snapshot(now time.Time) map[string]int
}

// DailyRolloverJob resets the daily state just after midnight so the
// previous day is archived even when the loop is asleep.
type DailyRolloverJob struct {
	store StateStore
	now   func() time.Time
	log   zerolog.Logger
}

// NewDailyRolloverJob creates a new DailyRolloverJob
func NewDailyRolloverJob(store StateStore, log zerolog.Logger) *DailyRolloverJob {
	return &DailyRolloverJob{
		store: store,
		now:   time.Now,
		log:   log.With().Str("job", "daily_rollover").Logger(),
	}
}

// SetClock replaces the clock
func (j *DailyRolloverJob) SetClock(now func() time.Time) {
	j.now = now
}

// Name returns the job name
func (j *DailyRolloverJob) Name() string {
	return "daily_rollover"
}

// Run executes the rollover
func (j *DailyRolloverJob) Run() error {
	state, err := j.store.RolloverIfNeeded(j.now())
	if err != nil {
		return fmt.Errorf("daily rollover: %w", err)
	}
	j.log.Info().Str("date", state.Date).Int("orders", len(state.OrdersPlacedToday)).Msg("Daily state current")
	return nil
}

// HeartbeatJob logs the loop counters and active cooldowns (hourly)
type HeartbeatJob struct {
	stats     StatsSource
	cooldowns CooldownSource
	now       func() time.Time
	log       zerolog.Logger
}

// NewHeartbeatJob creates a new HeartbeatJob. cooldowns may be nil.
func NewHeartbeatJob(stats StatsSource, cooldowns CooldownSource, log zerolog.Logger) *HeartbeatJob {
	return &HeartbeatJob{
		stats:     stats,
		cooldowns: cooldowns,
		now:       time.Now,
		log:       log.With().Str("job", "heartbeat").Logger(),
	}
}

// Name returns the job name
func (j *HeartbeatJob) Name() string {
	return "heartbeat"
}

// Run logs one heartbeat line
func (j *HeartbeatJob) Run() error {
	s := j.stats.Stats()
	event := j.log.Info().
		Str("mode", s.Mode).
		Int("cycles", s.Cycles).
		Int("total_checks", s.TotalChecks).
		Int("successful_orders", s.SuccessfulOrders).
		Int("failed_orders", s.FailedOrders).
		Int("errors", s.Errors)
	if !s.LastCheck.IsZero() {
		event = event.Time("last_check", s.LastCheck)
	}
	if j.cooldowns != nil {
		event = event.Interface("cooldowns", j.cooldowns.Snapshot(j.now()))
	}
	event.Msg("Heartbeat")
	return nil
}
