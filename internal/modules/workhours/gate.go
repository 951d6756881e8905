// Package workhours decides when the restock automation may run.
package workhours

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DateLayout is the layout of holiday dates and delivery dates
const DateLayout = "2006-01-02"

// DefaultHolidays is the Swedish supplier calendar
var DefaultHolidays = []string{
	"2026-01-01", // New Year's Day
	"2026-01-06", // Epiphany
	"2026-04-03", // Good Friday
	"2026-04-06", // Easter Monday
	"2026-05-01", // Labour Day
	"2026-05-14", // Ascension Day
	"2026-06-19", // Midsummer Eve
	"2026-12-24", // Christmas Eve
	"2026-12-25", // Christmas Day
	"2026-12-26", // Boxing Day
	"2026-12-31", // New Year's Eve
	"2027-01-01",
	"2027-01-06",
	"2027-03-26",
	"2027-03-29",
	"2027-05-06",
	"2027-06-25",
	"2027-12-24",
	"2027-12-31",
}

// Config describes the active window
type Config struct {
	Location      *time.Location
	Weekdays      []time.Weekday
	Holidays      []string // YYYY-MM-DD in Location
	StartHour     int      // inclusive
	EndHour       int      // exclusive
	JitterMin     time.Duration
	JitterMax     time.Duration
	InactiveSleep time.Duration
}

// DefaultConfig is Mon-Fri 07:00-18:00 Stockholm time with 8-12s jitter
func DefaultConfig() Config {
	loc, err := time.LoadLocation("Europe/Stockholm")
	if err != nil {
		loc = time.UTC
	}
	return Config{
		Location:      loc,
		Weekdays:      []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		Holidays:      DefaultHolidays,
		StartHour:     7,
		EndHour:       18,
		JitterMin:     8 * time.Second,
		JitterMax:     12 * time.Second,
		InactiveSleep: 30 * time.Minute,
	}
}

// Gate answers whether the engine should be active
type Gate struct {
	loc           *time.Location
	weekdays      map[time.Weekday]bool
	holidays      map[string]bool
	startHour     int
	endHour       int
	jitterMin     time.Duration
	jitterMax     time.Duration
	inactiveSleep time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand
	log   zerolog.Logger
}

// NewGate creates a gate from cfg
func NewGate(cfg Config, log zerolog.Logger) *Gate {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if len(cfg.Weekdays) == 0 {
		cfg.Weekdays = DefaultConfig().Weekdays
	}
	if cfg.JitterMax < cfg.JitterMin {
		cfg.JitterMax = cfg.JitterMin
	}
	if cfg.InactiveSleep <= 0 {
		cfg.InactiveSleep = 30 * time.Minute
	}

	g := &Gate{
		loc:           cfg.Location,
		weekdays:      make(map[time.Weekday]bool, len(cfg.Weekdays)),
		holidays:      make(map[string]bool, len(cfg.Holidays)),
		startHour:     cfg.StartHour,
		endHour:       cfg.EndHour,
		jitterMin:     cfg.JitterMin,
		jitterMax:     cfg.JitterMax,
		inactiveSleep: cfg.InactiveSleep,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		log:           log.With().Str("component", "work_hours").Logger(),
	}
	for _, d := range cfg.Weekdays {
		g.weekdays[d] = true
	}
	for _, h := range cfg.Holidays {
		g.holidays[h] = true
	}
	return g
}

// Location returns the supplier-local timezone
func (g *Gate) Location() *time.Location {
	return g.loc
}

// IsHoliday reports whether the local date of t is in the holiday calendar
func (g *Gate) IsHoliday(t time.Time) bool {
	return g.holidays[t.In(g.loc).Format(DateLayout)]
}

func (g *Gate) isWorkDay(t time.Time) bool {
	local := t.In(g.loc)
	return g.weekdays[local.Weekday()] && !g.IsHoliday(local)
}

// IsActiveNow reports whether now falls in the active window on a working day
func (g *Gate) IsActiveNow(now time.Time) bool {
	local := now.In(g.loc)
	if !g.isWorkDay(local) {
		return false
	}
	hour := local.Hour()
	return hour >= g.startHour && hour < g.endHour
}

// NextActiveStart returns the start of the next active window after now.
// When now is already inside a window, now is returned.
func (g *Gate) NextActiveStart(now time.Time) time.Time {
	if g.IsActiveNow(now) {
		return now
	}
	local := now.In(g.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), g.startHour, 0, 0, 0, g.loc)
	if !local.Before(day) {
		day = day.AddDate(0, 0, 1)
	}
	// A year bounds the search so a calendar without working days cannot spin
	for i := 0; i < 366; i++ {
		if g.isWorkDay(day) {
			return day
		}
		day = day.AddDate(0, 0, 1)
	}
	return day
}

// NextBusinessDay returns the next Monday-Friday date after now
func (g *Gate) NextBusinessDay(now time.Time) time.Time {
	local := now.In(g.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, g.loc).AddDate(0, 0, 1)
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

// DeliveryDate is NextBusinessDay formatted as YYYY-MM-DD
func (g *Gate) DeliveryDate(now time.Time) string {
	return g.NextBusinessDay(now).Format(DateLayout)
}

// PollInterval returns a random pause between product checks within the jitter range
func (g *Gate) PollInterval() time.Duration {
	spread := g.jitterMax - g.jitterMin
	if spread <= 0 {
		return g.jitterMin
	}
	g.rngMu.Lock()
	defer g.rngMu.Unlock()
	return g.jitterMin + time.Duration(g.rng.Int63n(int64(spread)+1))
}

// InactiveSleep returns how long to sleep outside the active window:
// the configured increment, shortened so the next window start is not missed.
func (g *Gate) InactiveSleep(now time.Time) time.Duration {
	until := g.NextActiveStart(now).Sub(now)
	if until <= 0 {
		return 0
	}
	if until < g.inactiveSleep {
		return until
	}
	return g.inactiveSleep
}
