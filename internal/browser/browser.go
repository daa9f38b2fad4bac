package browser

import (
	"context"
	"errors"
	"strings"
	"time"

	"social-autopilot/internal/models"
)

// ErrNotFound is returned when a selector matches nothing.
var ErrNotFound = errors.New("element not found")

// Element is one matched node. An empty selector addresses the element itself.
type Element interface {
	Text(ctx context.Context, selector string) (string, error)
	Has(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string) error
}

// Page is the surface the task runner drives.
type Page interface {
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	Elements(ctx context.Context, selector string) ([]Element, error)
	Has(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, text string) error
	SetFiles(ctx context.Context, selector string, paths ...string) error
	Scroll(ctx context.Context, dy float64) error
	MoveMouse(ctx context.Context) error
}

// Session owns one browser process, one context and one page.
type Session interface {
	Page() Page
	// Capture snapshots cookies and storage of the live session.
	Capture(ctx context.Context) (models.SessionState, error)
	// WaitForURL blocks until the page URL matches pattern or ctx ends.
	WaitForURL(ctx context.Context, pattern string) error
	Close() error
}

// LaunchOptions selects a fresh or restored session.
type LaunchOptions struct {
	// State restores cookies and storage when non-nil.
	State *models.SessionState
	// Headless overrides the configured mode; the login flow forces a visible window.
	Headless bool
	// StartURL is opened after setup. Empty means the site base URL.
	StartURL string
}

// Launcher starts browser sessions.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Session, error)
}

// MatchURL reports whether url matches pattern. Leading "**" and trailing "*" are
// accepted and ignored; the rest must appear in url.
func MatchURL(url, pattern string) bool {
	p := strings.TrimPrefix(pattern, "**")
	p = strings.TrimRight(p, "*")
	if p == "" {
		return true
	}
	return strings.Contains(url, p)
}

const urlPollInterval = 500 * time.Millisecond

func waitForURL(ctx context.Context, current func(context.Context) (string, error), pattern string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if u, err := current(ctx); err == nil && MatchURL(u, pattern) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
