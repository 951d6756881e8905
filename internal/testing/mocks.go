package testing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/restock/internal/domain"
)

// ActionHook lets a test react to a session action, e.g. to render the
// confirmation page after the submit button is clicked.
type ActionHook func(f *FakeSession, action, selector, value string)

// FakeSession is a scripted in-memory WebSession.
// Selectors are present when they have text or were added with SetPresent;
// everything else is NotFound.
type FakeSession struct {
	mu          sync.Mutex
	page        string
	texts       map[string]string
	present     map[string]bool
	values      map[string]string
	gotoErrors  map[string]error
	fatal       error
	hook        ActionHook
	calls       []string
	screenshots []string
}

// NewFakeSession creates an empty fake session
func NewFakeSession() *FakeSession {
	return &FakeSession{
		texts:      make(map[string]string),
		present:    make(map[string]bool),
		values:     make(map[string]string),
		gotoErrors: make(map[string]error),
	}
}

// SetText makes selector present with the given text content
func (f *FakeSession) SetText(selector, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setTextLocked(selector, text)
}

func (f *FakeSession) setTextLocked(selector, text string) {
	f.texts[selector] = text
	f.present[selector] = true
}

// SetPresent makes selectors present without text
func (f *FakeSession) SetPresent(selectors ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range selectors {
		f.present[s] = true
	}
}

// Remove makes a selector absent
func (f *FakeSession) Remove(selector string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.present, selector)
	delete(f.texts, selector)
}

// SetGotoError makes navigation to url fail
func (f *FakeSession) SetGotoError(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotoErrors[url] = err
}

// SetFatal makes every call fail with err
func (f *FakeSession) SetFatal(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fatal = err
}

// OnAction registers the action hook
func (f *FakeSession) OnAction(h ActionHook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hook = h
}

// Value returns the last value filled into selector
func (f *FakeSession) Value(selector string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[selector]
}

// Page returns the last URL navigated to
func (f *FakeSession) Page() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.page
}

// Calls returns the recorded actions as "action selector[=value]" strings
func (f *FakeSession) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Screenshots returns the paths of captured screenshots
func (f *FakeSession) Screenshots() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.screenshots...)
}

// CountCalls returns how many recorded calls equal call
func (f *FakeSession) CountCalls(call string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *FakeSession) record(action, selector, value string) (ActionHook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry := action + " " + selector
	if value != "" {
		entry += "=" + value
	}
	f.calls = append(f.calls, entry)
	return f.hook, f.fatal
}

func (f *FakeSession) after(hook ActionHook, action, selector, value string) {
	if hook != nil {
		hook(f, action, selector, value)
	}
}

func (f *FakeSession) require(op, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.present[selector] {
		return domain.NotFound(op, fmt.Sprintf("selector %q", selector))
	}
	return nil
}

// Goto implements domain.WebSession
func (f *FakeSession) Goto(ctx context.Context, url string) error {
	hook, fatal := f.record("goto", url, "")
	if fatal != nil {
		return fatal
	}
	f.mu.Lock()
	err := f.gotoErrors[url]
	if err == nil {
		f.page = url
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}
	f.after(hook, "goto", url, "")
	return nil
}

// Fill implements domain.WebSession
func (f *FakeSession) Fill(ctx context.Context, selector, value string) error {
	hook, fatal := f.record("fill", selector, value)
	if fatal != nil {
		return fatal
	}
	if err := f.require("fill", selector); err != nil {
		return err
	}
	f.mu.Lock()
	f.values[selector] = value
	f.mu.Unlock()
	f.after(hook, "fill", selector, value)
	return nil
}

// Click implements domain.WebSession
func (f *FakeSession) Click(ctx context.Context, selector string) error {
	hook, fatal := f.record("click", selector, "")
	if fatal != nil {
		return fatal
	}
	if err := f.require("click", selector); err != nil {
		return err
	}
	f.after(hook, "click", selector, "")
	return nil
}

// WaitForSelector implements domain.WebSession
func (f *FakeSession) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	f.mu.Lock()
	fatal := f.fatal
	f.mu.Unlock()
	if fatal != nil {
		return fatal
	}
	return f.require("wait_for_selector", selector)
}

// WaitForNavigation implements domain.WebSession
func (f *FakeSession) WaitForNavigation(ctx context.Context, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fatal
}

// TextContent implements domain.WebSession
func (f *FakeSession) TextContent(ctx context.Context, selector string) (string, error) {
	f.mu.Lock()
	fatal := f.fatal
	f.mu.Unlock()
	if fatal != nil {
		return "", fatal
	}
	if err := f.require("text_content", selector); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.texts[selector], nil
}

// Screenshot implements domain.WebSession
func (f *FakeSession) Screenshot(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fatal != nil {
		return f.fatal
	}
	f.screenshots = append(f.screenshots, path)
	return nil
}

// MockBackorderPage is an in-memory supplier backorder list
type MockBackorderPage struct {
	mu      sync.Mutex
	lines   []domain.BackorderLine
	deleted []domain.BackorderLine
	listErr error
	delErr  error
}

// NewMockBackorderPage creates a page holding lines
func NewMockBackorderPage(lines ...domain.BackorderLine) *MockBackorderPage {
	return &MockBackorderPage{lines: lines}
}

// SetListError makes ListBackorders fail
func (m *MockBackorderPage) SetListError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

// SetDeleteError makes DeleteBackorder fail
func (m *MockBackorderPage) SetDeleteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delErr = err
}

// Deleted returns the lines deleted so far
func (m *MockBackorderPage) Deleted() []domain.BackorderLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.BackorderLine(nil), m.deleted...)
}

// ListBackorders implements domain.BackorderPage
func (m *MockBackorderPage) ListBackorders(ctx context.Context) ([]domain.BackorderLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]domain.BackorderLine(nil), m.lines...), nil
}

// DeleteBackorder implements domain.BackorderPage
func (m *MockBackorderPage) DeleteBackorder(ctx context.Context, line domain.BackorderLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delErr != nil {
		return m.delErr
	}
	for i, l := range m.lines {
		if l.Index == line.Index && l.ProductName == line.ProductName {
			m.lines = append(m.lines[:i], m.lines[i+1:]...)
			break
		}
	}
	m.deleted = append(m.deleted, line)
	return nil
}

// MockLedger records attempts and archived days in memory
type MockLedger struct {
	mu       sync.Mutex
	attempts []domain.OrderAttempt
	days     []domain.DailyState
	err      error
}

// NewMockLedger creates an empty ledger
func NewMockLedger() *MockLedger {
	return &MockLedger{}
}

// SetError makes every call fail with err
func (m *MockLedger) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// RecordAttempt implements domain.AttemptLedger
func (m *MockLedger) RecordAttempt(attempt domain.OrderAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.attempts = append(m.attempts, attempt)
	return nil
}

// ArchiveDay implements domain.DayArchiver
func (m *MockLedger) ArchiveDay(state domain.DailyState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.days = append(m.days, state)
	return nil
}

// Attempts returns the recorded attempts
func (m *MockLedger) Attempts() []domain.OrderAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OrderAttempt(nil), m.attempts...)
}

// Days returns the archived days
func (m *MockLedger) Days() []domain.DailyState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.DailyState(nil), m.days...)
}
