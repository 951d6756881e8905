// Package events provides event management functionality.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	// Stock observation
	StockChecked   EventType = "STOCK_CHECKED"
	StockAlert     EventType = "STOCK_ALERT"
	CooldownActive EventType = "COOLDOWN_ACTIVE"

	// Ordering
	OrderPlaced      EventType = "ORDER_PLACED"
	OrderFailed      EventType = "ORDER_FAILED"
	OrderReduced     EventType = "ORDER_REDUCED"
	FirstOrderOfDay  EventType = "FIRST_ORDER_OF_DAY"
	ProductStopped   EventType = "PRODUCT_STOPPED"
	BackorderDeleted EventType = "BACKORDER_DELETED"

	// Engine lifecycle
	CycleCompleted   EventType = "CYCLE_COMPLETED"
	ModeChanged      EventType = "MODE_CHANGED"
	DailyStateRolled EventType = "DAILY_STATE_ROLLED"
	ErrorOccurred    EventType = "ERROR_OCCURRED"
)

// AllTypes lists every event type, in declaration order
var AllTypes = []EventType{
	StockChecked,
	StockAlert,
	CooldownActive,
	OrderPlaced,
	OrderFailed,
	OrderReduced,
	FirstOrderOfDay,
	ProductStopped,
	BackorderDeleted,
	CycleCompleted,
	ModeChanged,
	DailyStateRolled,
	ErrorOccurred,
}

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}
