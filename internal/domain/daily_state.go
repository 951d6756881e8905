package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DailyStateDateLayout is the calendar-date format stored in the state file
const DailyStateDateLayout = "Mon Jan 02 2006"

const (
	orderCountSuffix   = "OrderCount"
	dailyOrderedSuffix = "DailyOrdered"
	stoppedSuffix      = "StoppedForToday"
)

// DailyState is the persisted per-day progress of the engine.
// It resets at the first observation on a new local calendar date.
type DailyState struct {
	Products          map[string]ProductCounters
	Date              string
	OrdersPlacedToday []OrderAttempt
	ReferenceSequence int
}

// NewDailyState returns an empty state for the calendar date of now
func NewDailyState(now time.Time) DailyState {
	return DailyState{
		Date:              now.Format(DailyStateDateLayout),
		Products:          map[string]ProductCounters{},
		OrdersPlacedToday: []OrderAttempt{},
	}
}

// IsFor reports whether the state belongs to the local calendar date of now
func (s DailyState) IsFor(now time.Time) bool {
	return s.Date == now.Format(DailyStateDateLayout)
}

// Counters returns the counters of a product, zero-valued when absent
func (s DailyState) Counters(productID string) ProductCounters {
	if s.Products == nil {
		return ProductCounters{}
	}
	return s.Products[productID]
}

// WithCounters returns a copy of the state with the product's counters replaced
func (s DailyState) WithCounters(productID string, c ProductCounters) DailyState {
	products := make(map[string]ProductCounters, len(s.Products)+1)
	for k, v := range s.Products {
		products[k] = v
	}
	products[productID] = c
	s.Products = products
	return s
}

// ISODate returns the state date as YYYY-MM-DD, or the raw value if it cannot be parsed
func (s DailyState) ISODate() string {
	t, err := time.Parse(DailyStateDateLayout, s.Date)
	if err != nil {
		return s.Date
	}
	return t.Format("2006-01-02")
}

// MarshalJSON writes the flat on-disk layout:
// { date, <id>OrderCount, <id>DailyOrdered, todaysOrders: [...] }
func (s DailyState) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"date":              s.Date,
		"todaysOrders":      s.orders(),
		"referenceSequence": s.ReferenceSequence,
	}

	ids := make([]string, 0, len(s.Products))
	for id := range s.Products {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		c := s.Products[id]
		out[id+orderCountSuffix] = c.OrderCount
		out[id+dailyOrderedSuffix] = c.UnitsOrderedToday
		if c.StoppedForToday {
			out[id+stoppedSuffix] = true
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the flat on-disk layout
func (s *DailyState) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	state := DailyState{Products: map[string]ProductCounters{}, OrdersPlacedToday: []OrderAttempt{}}
	for key, value := range raw {
		var err error
		switch {
		case key == "date":
			err = json.Unmarshal(value, &state.Date)
		case key == "todaysOrders":
			err = json.Unmarshal(value, &state.OrdersPlacedToday)
		case key == "referenceSequence":
			err = json.Unmarshal(value, &state.ReferenceSequence)
		case strings.HasSuffix(key, orderCountSuffix):
			id := strings.TrimSuffix(key, orderCountSuffix)
			c := state.Products[id]
			err = json.Unmarshal(value, &c.OrderCount)
			state.Products[id] = c
		case strings.HasSuffix(key, dailyOrderedSuffix):
			id := strings.TrimSuffix(key, dailyOrderedSuffix)
			c := state.Products[id]
			err = json.Unmarshal(value, &c.UnitsOrderedToday)
			state.Products[id] = c
		case strings.HasSuffix(key, stoppedSuffix):
			id := strings.TrimSuffix(key, stoppedSuffix)
			c := state.Products[id]
			err = json.Unmarshal(value, &c.StoppedForToday)
			state.Products[id] = c
		}
		if err != nil {
			return fmt.Errorf("daily state field %q: %w", key, err)
		}
	}

	if state.OrdersPlacedToday == nil {
		state.OrdersPlacedToday = []OrderAttempt{}
	}
	*s = state
	return nil
}

func (s DailyState) orders() []OrderAttempt {
	if s.OrdersPlacedToday == nil {
		return []OrderAttempt{}
	}
	return s.OrdersPlacedToday
}
