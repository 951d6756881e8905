package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/restock/internal/domain"
	"github.com/rs/zerolog"
)

// LoginSelectors are the fallback lists of the login form
type LoginSelectors struct {
	Username []string
	Password []string
	Submit   []string
	Error    []string
}

// DefaultLoginSelectors returns the supplier's login form selectors
func DefaultLoginSelectors() LoginSelectors {
	return LoginSelectors{
		Username: []string{"#UserName", "#j_username", `input[name="username"]`, `input[type="email"]`},
		Password: []string{"#Password", "#j_password", `input[name="password"]`, `input[type="password"]`},
		Submit:   []string{"#login-submit", `button[type="submit"]`, `input[type="submit"]`, ".login-button"},
		Error:    []string{".validation-summary-errors", ".error-message", ".alert-danger"},
	}
}

// Credentials identify the supplier account
type Credentials struct {
	LoginURL string
	Username string
	Password string
}

// LoginOptions tune the login flow
type LoginOptions struct {
	Selectors         LoginSelectors
	SelectorTimeout   time.Duration
	NavigationTimeout time.Duration
}

// urlReporter is implemented by sessions that know their current URL
type urlReporter interface {
	CurrentURL(ctx context.Context) (string, error)
}

// Login signs in to the supplier. Every failure is fatal: the engine cannot
// do anything useful without a session.
func Login(ctx context.Context, session domain.WebSession, creds Credentials, opts LoginOptions, log zerolog.Logger) error {
	log = log.With().Str("component", "login").Logger()
	if creds.Username == "" || creds.Password == "" {
		return domain.Fatal("login", fmt.Errorf("supplier credentials are not configured"))
	}
	if len(opts.Selectors.Username) == 0 {
		opts.Selectors = DefaultLoginSelectors()
	}
	if opts.SelectorTimeout <= 0 {
		opts.SelectorTimeout = 3 * time.Second
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}

	fatal := func(err error) error {
		if domain.IsFatal(err) {
			return err
		}
		return domain.Fatal("login", err)
	}

	if err := session.Goto(ctx, creds.LoginURL); err != nil {
		return fatal(err)
	}

	user, err := firstPresent(ctx, session, opts.Selectors.Username, opts.SelectorTimeout)
	if err != nil {
		return fatal(err)
	}
	if err := session.Fill(ctx, user, creds.Username); err != nil {
		return fatal(err)
	}

	pass, err := firstPresent(ctx, session, opts.Selectors.Password, opts.SelectorTimeout)
	if err != nil {
		return fatal(err)
	}
	if err := session.Fill(ctx, pass, creds.Password); err != nil {
		return fatal(err)
	}

	submit, err := firstPresent(ctx, session, opts.Selectors.Submit, opts.SelectorTimeout)
	if err != nil {
		return fatal(err)
	}
	if err := session.Click(ctx, submit); err != nil {
		return fatal(err)
	}
	if err := session.WaitForNavigation(ctx, opts.NavigationTimeout); err != nil {
		return fatal(err)
	}

	for _, s := range opts.Selectors.Error {
		if text, err := session.TextContent(ctx, s); err == nil && strings.TrimSpace(text) != "" {
			return domain.Fatal("login", fmt.Errorf("supplier rejected login: %s", strings.TrimSpace(text)))
		}
	}

	if r, ok := session.(urlReporter); ok {
		if url, err := r.CurrentURL(ctx); err == nil && strings.Contains(strings.ToLower(url), "/login") {
			return domain.Fatal("login", fmt.Errorf("still on login page %s", url))
		}
	}
	// The password field disappears once signed in
	if _, err := session.TextContent(ctx, pass); err == nil {
		return domain.Fatal("login", fmt.Errorf("login form still shown"))
	}

	log.Info().Str("user", creds.Username).Msg("Logged in to supplier")
	return nil
}

func firstPresent(ctx context.Context, session domain.WebSession, candidates []string, timeout time.Duration) (string, error) {
	for _, s := range candidates {
		err := session.WaitForSelector(ctx, s, timeout)
		if err == nil {
			return s, nil
		}
		if !domain.IsNotFound(err) {
			return "", err
		}
	}
	return "", domain.NotFound("login", fmt.Sprintf("any of %q", candidates))
}
