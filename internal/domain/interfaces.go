package domain

import (
	"context"
	"time"
)

// WebSession is the browser capability the engine drives.
// Implementations return *Error values classified as NotFound for missing
// elements, Transient for timeouts and navigation failures and Fatal when
// the supplier session is gone.
type WebSession interface {
	Goto(ctx context.Context, url string) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	WaitForNavigation(ctx context.Context, timeout time.Duration) error
	TextContent(ctx context.Context, selector string) (string, error)
	Screenshot(ctx context.Context, path string) error
}

// BackorderLine is one row of the supplier's backorder page
type BackorderLine struct {
	ProductName       string `json:"product_name"`
	Index             int    `json:"index"`
	OrderedQuantity   int    `json:"ordered_quantity"`
	BackorderQuantity int    `json:"backorder_quantity"`
}

// FullyBackordered reports whether nothing of the line was delivered
func (l BackorderLine) FullyBackordered() bool {
	return l.OrderedQuantity > 0 && l.OrderedQuantity == l.BackorderQuantity
}

// BackorderPage lists and deletes supplier backorder lines
type BackorderPage interface {
	ListBackorders(ctx context.Context) ([]BackorderLine, error)
	DeleteBackorder(ctx context.Context, line BackorderLine) error
}

// AttemptLedger durably records order attempts beyond the daily state file
type AttemptLedger interface {
	RecordAttempt(attempt OrderAttempt) error
}

// AttemptHistory returns the recorded attempts of a YYYY-MM-DD day, oldest first
type AttemptHistory interface {
	AttemptsOn(date string) ([]OrderAttempt, error)
}

// DayArchiver receives a daily state when the calendar date rolls over
type DayArchiver interface {
	ArchiveDay(state DailyState) error
}
