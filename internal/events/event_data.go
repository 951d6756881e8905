package events

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// StockCheckedData contains data for StockChecked events
type StockCheckedData struct {
	ProductID  string  `json:"product_id"`
	Status     string  `json:"status"`
	RawText    string  `json:"raw_text"`
	Confidence int     `json:"confidence"`
	Price      float64 `json:"price,omitempty"`
}

// EventType returns the event type for StockCheckedData
func (d *StockCheckedData) EventType() EventType {
	return StockChecked
}

// StockAlertData is emitted when stock appears while auto-ordering is off
// or the classification is too uncertain to order on
type StockAlertData struct {
	ProductID  string `json:"product_id"`
	Status     string `json:"status"`
	Reason     string `json:"reason"`
	Confidence int    `json:"confidence"`
}

// EventType returns the event type for StockAlertData
func (d *StockAlertData) EventType() EventType {
	return StockAlert
}

// CooldownActiveData contains data for CooldownActive events
type CooldownActiveData struct {
	ProductID        string `json:"product_id"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

// EventType returns the event type for CooldownActiveData
func (d *CooldownActiveData) EventType() EventType {
	return CooldownActive
}

// OrderData describes one order attempt
type OrderData struct {
	ProductID         string `json:"product_id"`
	Reference         string `json:"reference"`
	FailureReason     string `json:"failure_reason,omitempty"`
	RequestedQuantity int    `json:"requested_quantity"`
	Quantity          int    `json:"quantity"`
}

// OrderPlacedData contains data for OrderPlaced events
type OrderPlacedData struct{ OrderData }

// EventType returns the event type for OrderPlacedData
func (d *OrderPlacedData) EventType() EventType {
	return OrderPlaced
}

// OrderFailedData contains data for OrderFailed events
type OrderFailedData struct {
	OrderData
	Kind string `json:"kind"`
}

// EventType returns the event type for OrderFailedData
func (d *OrderFailedData) EventType() EventType {
	return OrderFailed
}

// OrderReducedData is emitted before a reduced retry after a credit-limit rejection
type OrderReducedData struct {
	ProductID    string `json:"product_id"`
	FromQuantity int    `json:"from_quantity"`
	ToQuantity   int    `json:"to_quantity"`
}

// EventType returns the event type for OrderReducedData
func (d *OrderReducedData) EventType() EventType {
	return OrderReduced
}

// FirstOrderOfDayData contains data for FirstOrderOfDay events
type FirstOrderOfDayData struct{ OrderData }

// EventType returns the event type for FirstOrderOfDayData
func (d *FirstOrderOfDayData) EventType() EventType {
	return FirstOrderOfDay
}

// ProductStoppedData contains data for ProductStopped events
type ProductStoppedData struct {
	ProductID string `json:"product_id"`
	Reason    string `json:"reason"`
}

// EventType returns the event type for ProductStoppedData
func (d *ProductStoppedData) EventType() EventType {
	return ProductStopped
}

// BackorderDeletedData contains data for BackorderDeleted events
type BackorderDeletedData struct {
	ProductName string `json:"product_name"`
	ProductID   string `json:"product_id,omitempty"`
	Quantity    int    `json:"quantity"`
}

// EventType returns the event type for BackorderDeletedData
func (d *BackorderDeletedData) EventType() EventType {
	return BackorderDeleted
}

// CycleCompletedData contains data for CycleCompleted events
type CycleCompletedData struct {
	Checked  int   `json:"checked"`
	Skipped  int   `json:"skipped"`
	Ordered  int   `json:"ordered"`
	Errors   int   `json:"errors"`
	Duration int64 `json:"duration_ms"`
}

// EventType returns the event type for CycleCompletedData
func (d *CycleCompletedData) EventType() EventType {
	return CycleCompleted
}

// ModeChangedData is emitted when the engine enters or leaves the active window
type ModeChangedData struct {
	Mode            string `json:"mode"`
	NextActiveStart string `json:"next_active_start,omitempty"`
}

// EventType returns the event type for ModeChangedData
func (d *ModeChangedData) EventType() EventType {
	return ModeChanged
}

// DailyStateRolledData contains data for DailyStateRolled events
type DailyStateRolledData struct {
	Date string `json:"date"`
}

// EventType returns the event type for DailyStateRolledData
func (d *DailyStateRolledData) EventType() EventType {
	return DailyStateRolled
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
