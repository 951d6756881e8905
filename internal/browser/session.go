package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aristath/restock/internal/domain"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

// Session is a domain.WebSession backed by one rod page.
// It is not safe for concurrent use; the monitor loop owns it.
type Session struct {
	page              *rod.Page
	navigationTimeout time.Duration
	actionTimeout     time.Duration
	log               zerolog.Logger
}

// NewSession wraps page
func NewSession(page *rod.Page, cfg Config, log zerolog.Logger) *Session {
	cfg.defaults()
	return &Session{
		page:              page,
		navigationTimeout: cfg.NavigationTimeout,
		actionTimeout:     cfg.ActionTimeout,
		log:               log.With().Str("component", "browser_session").Logger(),
	}
}

// Page returns the underlying rod page
func (s *Session) Page() *rod.Page {
	return s.page
}

// Goto navigates and waits for the load event
func (s *Session) Goto(ctx context.Context, url string) error {
	p := s.page.Context(ctx).Timeout(s.navigationTimeout)
	if err := p.Navigate(url); err != nil {
		return classify("goto", err, domain.KindTransient)
	}
	if err := p.WaitLoad(); err != nil {
		return classify("goto", err, domain.KindTransient)
	}
	s.log.Debug().Str("url", url).Msg("Navigated")
	return nil
}

// Fill replaces the value of the input matching selector
func (s *Session) Fill(ctx context.Context, selector, value string) error {
	el, err := s.element(ctx, "fill", selector)
	if err != nil {
		return err
	}
	el = el.Timeout(s.actionTimeout)
	if err := el.SelectAllText(); err != nil {
		return classify("fill", err, domain.KindNotFound)
	}
	return classify("fill", el.Input(value), domain.KindNotFound)
}

// Click clicks the element matching selector
func (s *Session) Click(ctx context.Context, selector string) error {
	el, err := s.element(ctx, "click", selector)
	if err != nil {
		return err
	}
	return classify("click", el.Timeout(s.actionTimeout).Click(proto.InputMouseButtonLeft, 1), domain.KindNotFound)
}

// WaitForSelector waits up to timeout for selector to appear
func (s *Session) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := s.page.Context(ctx).Timeout(timeout).Element(selector)
	return classify("wait_for_selector", err, domain.KindNotFound)
}

// WaitForNavigation waits up to timeout for the current page to finish loading
func (s *Session) WaitForNavigation(ctx context.Context, timeout time.Duration) error {
	err := s.page.Context(ctx).Timeout(timeout).WaitLoad()
	return classify("wait_for_navigation", err, domain.KindTransient)
}

// TextContent returns the text of the element matching selector without waiting for it
func (s *Session) TextContent(ctx context.Context, selector string) (string, error) {
	has, el, err := s.page.Context(ctx).Has(selector)
	if err != nil {
		return "", classify("text_content", err, domain.KindNotFound)
	}
	if !has {
		return "", domain.NotFound("text_content", fmt.Sprintf("selector %q", selector))
	}
	text, err := el.Context(ctx).Timeout(s.actionTimeout).Text()
	if err != nil {
		return "", classify("text_content", err, domain.KindNotFound)
	}
	return text, nil
}

// Screenshot writes a full-page PNG to path
func (s *Session) Screenshot(ctx context.Context, path string) error {
	data, err := s.page.Context(ctx).Timeout(s.navigationTimeout).Screenshot(true, nil)
	if err != nil {
		return classify("screenshot", err, domain.KindTransient)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	return nil
}

// CurrentURL returns the URL of the page
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", classify("current_url", err, domain.KindTransient)
	}
	return info.URL, nil
}

func (s *Session) element(ctx context.Context, op, selector string) (*rod.Element, error) {
	el, err := s.page.Context(ctx).Timeout(s.actionTimeout).Element(selector)
	if err != nil {
		return nil, classify(op, err, domain.KindNotFound)
	}
	return el.Context(ctx), nil
}
