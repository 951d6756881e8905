// Package domain provides core domain models and types.
package domain

import (
	"time"
)

// StockStatus is the supplier-side availability of a product as read from its page
type StockStatus string

const (
	StockAvailable   StockStatus = "available"
	StockLimited     StockStatus = "limited"
	StockUnavailable StockStatus = "unavailable"
	StockUnknown     StockStatus = "unknown"
)

// Orderable reports whether a status can lead to an order.
// Only available and limited stock is ever ordered; unknown never is.
func (s StockStatus) Orderable() bool {
	return s == StockAvailable || s == StockLimited
}

// StockSample is a single observation of a product page
type StockSample struct {
	ObservedAt time.Time   `json:"observed_at"`
	ProductID  string      `json:"product_id"`
	RawText    string      `json:"raw_text"`
	PriceText  string      `json:"price_text,omitempty"`
	Status     StockStatus `json:"status"`
	Price      float64     `json:"price,omitempty"`
	Confidence int         `json:"confidence"`
	HasPrice   bool        `json:"has_price"`
}

// ProductConfig is the static, per-product ordering configuration
type ProductConfig struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	URL           string `json:"url" yaml:"url"`
	StockSelector string `json:"stock_selector" yaml:"stock_selector"`
	PriceSelector string `json:"price_selector,omitempty" yaml:"price_selector"`
	// BackorderMatch is the product-name fragment used to match backorder lines
	BackorderMatch string `json:"backorder_match,omitempty" yaml:"backorder_match"`

	ProgressiveQuantities []int `json:"progressive_quantities" yaml:"progressive_quantities"`
	// ContinuousQuantity is used once the progressive list is exhausted.
	// Zero means the product stops ordering after the list.
	ContinuousQuantity   int `json:"continuous_quantity,omitempty" yaml:"continuous_quantity"`
	MinQuantity          int `json:"min_quantity" yaml:"min_quantity"`
	LimitedStockQuantity int `json:"limited_stock_quantity" yaml:"limited_stock_quantity"`
	// DailyUnitCap of zero means uncapped
	DailyUnitCap     int `json:"daily_unit_cap,omitempty" yaml:"daily_unit_cap"`
	ReductionDivisor int `json:"reduction_divisor" yaml:"reduction_divisor"`

	// BudgetMode enables single-order-per-restock planning against a monetary budget
	BudgetMode bool `json:"budget_mode,omitempty" yaml:"budget_mode"`
}

// Capped reports whether the product has a daily unit cap
func (p ProductConfig) Capped() bool {
	return p.DailyUnitCap > 0
}

// OrderAttempt is one submission to the supplier, successful or not
type OrderAttempt struct {
	Timestamp         time.Time `json:"time"`
	ProductID         string    `json:"product"`
	Reference         string    `json:"reference"`
	FailureReason     string    `json:"failureReason,omitempty"`
	RequestedQuantity int       `json:"requestedQuantity"`
	FinalQuantity     int       `json:"quantity"`
	Success           bool      `json:"success"`
}

// ProductCounters are the per-product fields of the daily state
type ProductCounters struct {
	OrderCount        int
	UnitsOrderedToday int
	StoppedForToday   bool
}
