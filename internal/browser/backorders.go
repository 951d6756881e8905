package browser

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/aristath/restock/internal/domain"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

// BackorderSelectors locate backorder rows and their cells. Each value is a
// CSS selector group, tried as a whole.
type BackorderSelectors struct {
	Row           string
	Name          string
	Ordered       string
	Backordered   string
	Delete        string
	ConfirmDelete string
}

// DefaultBackorderSelectors returns the selectors of the supplier's backorder page
func DefaultBackorderSelectors() BackorderSelectors {
	return BackorderSelectors{
		Row:           ".backorder-item, tr[data-product]",
		Name:          ".product-name, td.name",
		Ordered:       ".ordered-qty, td:nth-child(3)",
		Backordered:   ".backorder-qty, td:nth-child(4)",
		Delete:        ".delete-button, button.delete",
		ConfirmDelete: "button.confirm-delete",
	}
}

// BackorderPage reads and purges the account's backorder list
type BackorderPage struct {
	session *Session
	url     string
	sel     BackorderSelectors
	log     zerolog.Logger
}

// NewBackorderPage creates a backorder page at url using session's tab
func NewBackorderPage(session *Session, url string, sel BackorderSelectors, log zerolog.Logger) *BackorderPage {
	if sel.Row == "" {
		sel = DefaultBackorderSelectors()
	}
	return &BackorderPage{
		session: session,
		url:     url,
		sel:     sel,
		log:     log.With().Str("component", "backorder_page").Logger(),
	}
}

// ListBackorders implements domain.BackorderPage
func (b *BackorderPage) ListBackorders(ctx context.Context) ([]domain.BackorderLine, error) {
	rows, err := b.rows(ctx)
	if err != nil {
		return nil, err
	}

	lines := make([]domain.BackorderLine, 0, len(rows))
	for i, row := range rows {
		lines = append(lines, b.readRow(i, row))
	}
	b.log.Debug().Int("rows", len(lines)).Msg("Read backorders")
	return lines, nil
}

// DeleteBackorder implements domain.BackorderPage. The row is located again
// by content since earlier deletions shift the row positions.
func (b *BackorderPage) DeleteBackorder(ctx context.Context, line domain.BackorderLine) error {
	rows, err := b.rows(ctx)
	if err != nil {
		return err
	}

	for i, row := range rows {
		current := b.readRow(i, row)
		if current.ProductName != line.ProductName ||
			current.OrderedQuantity != line.OrderedQuantity ||
			current.BackorderQuantity != line.BackorderQuantity {
			continue
		}

		has, button, err := row.Has(b.sel.Delete)
		if err != nil {
			return classify("delete_backorder", err, domain.KindNotFound)
		}
		if !has {
			return domain.NotFound("delete_backorder", "delete button")
		}
		if err := button.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
			return classify("delete_backorder", err, domain.KindNotFound)
		}

		// Some accounts ask for confirmation
		if has, confirm, err := b.session.Page().Context(ctx).Has(b.sel.ConfirmDelete); err == nil && has {
			if err := confirm.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
				return classify("confirm_delete_backorder", err, domain.KindNotFound)
			}
		}
		return b.session.WaitForNavigation(ctx, b.session.navigationTimeout)
	}
	return domain.NotFound("delete_backorder", fmt.Sprintf("row %q", line.ProductName))
}

func (b *BackorderPage) rows(ctx context.Context) (rod.Elements, error) {
	if err := b.session.Goto(ctx, b.url); err != nil {
		return nil, err
	}
	rows, err := b.session.Page().Context(ctx).Elements(b.sel.Row)
	if err != nil {
		return nil, classify("list_backorders", err, domain.KindTransient)
	}
	return rows, nil
}

func (b *BackorderPage) readRow(index int, row *rod.Element) domain.BackorderLine {
	return domain.BackorderLine{
		Index:             index,
		ProductName:       cellText(row, b.sel.Name),
		OrderedQuantity:   parseQuantity(cellText(row, b.sel.Ordered)),
		BackorderQuantity: parseQuantity(cellText(row, b.sel.Backordered)),
	}
}

func cellText(row *rod.Element, selector string) string {
	has, el, err := row.Has(selector)
	if err != nil || !has {
		return ""
	}
	text, err := el.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// parseQuantity reads the digits of a cell such as "1 620 st"
func parseQuantity(text string) int {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, text)
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}
