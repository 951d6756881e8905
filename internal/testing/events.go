package testing

import (
	"sync"

	"github.com/aristath/restock/internal/events"
)

// EventRecorder collects events published on a bus
type EventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

// RecordEvents subscribes to every event type of bus
func RecordEvents(bus *events.Bus) *EventRecorder {
	r := &EventRecorder{}
	for _, t := range events.AllTypes {
		bus.Subscribe(t, func(e *events.Event) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, *e)
		})
	}
	return r
}

// Types returns the recorded event types in order
func (r *EventRecorder) Types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

// Of returns the recorded events of type t
func (r *EventRecorder) Of(t events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
