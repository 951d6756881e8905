package workhours

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newTestGate(holidays ...string) *Gate {
	cfg := DefaultConfig()
	cfg.Location = time.UTC
	cfg.Holidays = holidays
	return NewGate(cfg, zerolog.Nop())
}

func at(day, hour, minute int) time.Time {
	// October 2026: the 13th is a Tuesday
	return time.Date(2026, 10, day, hour, minute, 0, 0, time.UTC)
}

func TestIsActiveNow(t *testing.T) {
	g := newTestGate("2026-10-15")

	tests := []struct {
		name   string
		now    time.Time
		active bool
	}{
		{"weekday morning before start", at(13, 6, 59), false},
		{"weekday at start", at(13, 7, 0), true},
		{"weekday afternoon", at(13, 17, 59), true},
		{"weekday at end", at(13, 18, 0), false},
		{"saturday", at(17, 10, 0), false},
		{"sunday", at(18, 10, 0), false},
		{"holiday inside window", at(15, 10, 0), false},
		{"friday", at(16, 10, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.active, g.IsActiveNow(tt.now))
		})
	}
}

func TestIsActiveNow_UsesSupplierTimezone(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	cfg := DefaultConfig()
	cfg.Location = loc
	cfg.Holidays = nil
	g := NewGate(cfg, zerolog.Nop())

	// 05:30 UTC is 07:30 local
	assert.True(t, g.IsActiveNow(at(13, 5, 30)))
	// 16:30 UTC is 18:30 local
	assert.False(t, g.IsActiveNow(at(13, 16, 30)))
}

func TestNextActiveStart(t *testing.T) {
	g := newTestGate("2026-10-19")

	tests := []struct {
		name     string
		now      time.Time
		expected time.Time
	}{
		{"inside window returns now", at(13, 10, 0), at(13, 10, 0)},
		{"early morning same day", at(13, 5, 0), at(13, 7, 0)},
		{"evening next day", at(13, 19, 0), at(14, 7, 0)},
		{"friday evening skips weekend and holiday monday", at(16, 19, 0), at(20, 7, 0)},
		{"saturday", at(17, 12, 0), at(20, 7, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, g.NextActiveStart(tt.now))
		})
	}
}

func TestNextBusinessDay(t *testing.T) {
	g := newTestGate()

	assert.Equal(t, "2026-10-14", g.DeliveryDate(at(13, 10, 0)))
	// Friday -> Monday
	assert.Equal(t, "2026-10-19", g.DeliveryDate(at(16, 10, 0)))
	// Saturday and Sunday -> Monday
	assert.Equal(t, "2026-10-19", g.DeliveryDate(at(17, 10, 0)))
	assert.Equal(t, "2026-10-19", g.DeliveryDate(at(18, 10, 0)))
	assert.Equal(t, time.Monday, g.NextBusinessDay(at(16, 23, 59)).Weekday())
}

func TestNextBusinessDay_HolidayNotSkipped(t *testing.T) {
	g := newTestGate("2026-10-14")

	assert.False(t, g.IsActiveNow(at(14, 10, 0)))
	assert.Equal(t, "2026-10-14", g.DeliveryDate(at(13, 10, 0)))
}

func TestPollInterval_WithinJitter(t *testing.T) {
	g := newTestGate()

	for i := 0; i < 200; i++ {
		d := g.PollInterval()
		assert.GreaterOrEqual(t, d, 8*time.Second)
		assert.LessOrEqual(t, d, 12*time.Second)
	}
}

func TestPollInterval_NoSpread(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JitterMin = 5 * time.Second
	cfg.JitterMax = 5 * time.Second
	g := NewGate(cfg, zerolog.Nop())

	assert.Equal(t, 5*time.Second, g.PollInterval())
}

func TestInactiveSleep(t *testing.T) {
	g := newTestGate()

	// Long before the window: full increment
	assert.Equal(t, 30*time.Minute, g.InactiveSleep(at(13, 2, 0)))
	// Close to the window: only until it opens
	assert.Equal(t, 10*time.Minute, g.InactiveSleep(at(13, 6, 50)))
	// Inside the window: no sleep
	assert.Equal(t, time.Duration(0), g.InactiveSleep(at(13, 9, 0)))
}

func TestIsHoliday(t *testing.T) {
	g := NewGate(DefaultConfig(), zerolog.Nop())
	loc := g.Location()

	assert.True(t, g.IsHoliday(time.Date(2026, 12, 24, 12, 0, 0, 0, loc)))
	assert.False(t, g.IsHoliday(time.Date(2026, 12, 23, 12, 0, 0, 0, loc)))
}
