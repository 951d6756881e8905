// Package cooldown tracks per-product suppression windows after backorder purges.
package cooldown

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultDuration is the suppression window after a backorder purge
const DefaultDuration = 180 * time.Second

// Tracker holds the cooldown deadline of each product.
// State is in memory only and is lost on restart.
type Tracker struct {
	until    map[string]time.Time
	log      zerolog.Logger
	duration time.Duration
	mu       sync.Mutex
}

// NewTracker creates a tracker with the given window; non-positive means DefaultDuration
func NewTracker(duration time.Duration, log zerolog.Logger) *Tracker {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Tracker{
		until:    make(map[string]time.Time),
		duration: duration,
		log:      log.With().Str("component", "cooldown").Logger(),
	}
}

// Duration returns the configured window
func (t *Tracker) Duration() time.Duration {
	return t.duration
}

// StartCooldown suppresses the product for the configured window starting at now.
// Restarting an active cooldown extends it.
func (t *Tracker) StartCooldown(productID string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.until[productID] = now.Add(t.duration)
	t.log.Info().
		Str("product", productID).
		Dur("duration", t.duration).
		Msg("Cooldown started")
}

// IsCoolingDown reports whether the product is still suppressed at now
func (t *Tracker) IsCoolingDown(productID string, now time.Time) bool {
	return t.Remaining(productID, now) > 0
}

// Remaining returns how long the product stays suppressed, zero when it is not
func (t *Tracker) Remaining(productID string, now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	until, ok := t.until[productID]
	if !ok {
		return 0
	}
	if !now.Before(until) {
		delete(t.until, productID)
		return 0
	}
	return until.Sub(now)
}

// RemainingSeconds is Remaining rounded up to whole seconds
func (t *Tracker) RemainingSeconds(productID string, now time.Time) int {
	return int(math.Ceil(t.Remaining(productID, now).Seconds()))
}

// Snapshot returns the remaining whole seconds of every active cooldown
func (t *Tracker) Snapshot(now time.Time) map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]int, len(t.until))
	for id, until := range t.until {
		if !now.Before(until) {
			delete(t.until, id)
			continue
		}
		out[id] = int(math.Ceil(until.Sub(now).Seconds()))
	}
	return out
}
