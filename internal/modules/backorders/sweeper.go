// Package backorders purges fully backordered lines from the supplier account.
package backorders

import (
	"context"
	"strings"
	"time"

	"github.com/aristath/restock/internal/domain"
	"github.com/aristath/restock/internal/events"
	"github.com/rs/zerolog"
)

// Cooldowns receives the products whose backorders were purged
type Cooldowns interface {
	StartCooldown(productID string, now time.Time)
}

// Sweeper deletes backorder lines on which nothing was delivered. A purged
// line matching a product starts that product's cooldown so it is not
// re-ordered straight into another backorder.
type Sweeper struct {
	page         domain.BackorderPage
	cooldowns    Cooldowns
	products     []domain.ProductConfig
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewSweeper creates a sweeper
func NewSweeper(page domain.BackorderPage, cooldowns Cooldowns, products []domain.ProductConfig, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		page:      page,
		cooldowns: cooldowns,
		products:  products,
		log:       log.With().Str("service", "backorders").Logger(),
	}
}

// SetEventManager sets the event manager
func (s *Sweeper) SetEventManager(m *events.Manager) {
	s.eventManager = m
}

// Sweep deletes fully backordered lines and returns the product IDs whose
// cooldown was started. Failing to delete one line does not stop the sweep;
// the first such error is returned after the remaining lines were tried.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) ([]string, error) {
	lines, err := s.page.ListBackorders(ctx)
	if err != nil {
		return nil, err
	}

	var (
		cooled   []string
		firstErr error
	)
	seen := make(map[string]bool)

	for _, line := range lines {
		if !line.FullyBackordered() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return cooled, err
		}

		if err := s.page.DeleteBackorder(ctx, line); err != nil {
			if domain.IsFatal(err) {
				return cooled, err
			}
			s.log.Warn().Err(err).Str("line", line.ProductName).Msg("Failed to delete backorder")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		productID := s.match(line.ProductName)
		s.log.Info().
			Str("line", line.ProductName).
			Str("product", productID).
			Int("quantity", line.BackorderQuantity).
			Msg("Deleted backorder")
		s.eventManager.EmitTyped("backorders", &events.BackorderDeletedData{
			ProductName: line.ProductName,
			ProductID:   productID,
			Quantity:    line.BackorderQuantity,
		})

		if productID != "" && !seen[productID] {
			seen[productID] = true
			s.cooldowns.StartCooldown(productID, now)
			cooled = append(cooled, productID)
		}
	}
	return cooled, firstErr
}

// match returns the product whose backorder fragment occurs in name
func (s *Sweeper) match(name string) string {
	upper := strings.ToUpper(name)
	for _, p := range s.products {
		if p.BackorderMatch != "" && strings.Contains(upper, strings.ToUpper(p.BackorderMatch)) {
			return p.ID
		}
	}
	return ""
}
