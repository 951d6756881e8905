// Package browser drives the supplier web shop through Chrome using rod.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

// Config configures the browser manager
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty launches a local Chrome.
	RemoteURL string
	Headless  bool
	// BinPath overrides the Chrome binary of a local launch
	BinPath           string
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
}

func (c *Config) defaults() {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 30 * time.Second
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = 10 * time.Second
	}
}

// Manager owns the Chrome process and the connection to it
type Manager struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	log     zerolog.Logger
}

// NewManager creates a manager. Call Start to launch or connect.
func NewManager(cfg Config, log zerolog.Logger) *Manager {
	cfg.defaults()
	return &Manager{
		cfg: cfg,
		log: log.With().Str("component", "browser").Logger(),
	}
}

// Start launches Chrome (or connects to the remote instance)
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		return nil
	}

	wsURL := m.cfg.RemoteURL
	if wsURL != "" {
		m.log.Info().Str("url", wsURL).Msg("Connecting to remote Chrome")
	} else {
		l := launcher.New().Headless(m.cfg.Headless)
		if m.cfg.BinPath != "" {
			l = l.Bin(m.cfg.BinPath)
		}
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		m.log.Info().Str("url", wsURL).Bool("headless", m.cfg.Headless).Msg("Launched local Chrome")
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		m.cleanup()
		return fmt.Errorf("browser: connect: %w", err)
	}
	m.browser = b
	return nil
}

// NewSession opens a tab and wraps it as a WebSession
func (m *Manager) NewSession() (*Session, error) {
	m.mu.Lock()
	b := m.browser
	m.mu.Unlock()

	if b == nil {
		return nil, fmt.Errorf("browser: not started")
	}
	page, err := b.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	return NewSession(page, m.cfg, m.log), nil
}

// Close shuts Chrome down
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanup()
	m.log.Info().Msg("Browser closed")
	return nil
}

func (m *Manager) cleanup() {
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			m.log.Debug().Err(err).Msg("Browser close returned error")
		}
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
}
