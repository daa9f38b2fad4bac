package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"social-autopilot/internal/apperrors"
	"social-autopilot/internal/config"
	"social-autopilot/internal/models"
)

const (
	viewportWidth  = 1280
	viewportHeight = 720
)

// RodLauncher starts Chrome through go-rod and opens a stealth page.
type RodLauncher struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
}

// NewRodLauncher returns a launcher for cfg.
func NewRodLauncher(cfg config.BrowserConfig, logger *zap.Logger) *RodLauncher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RodLauncher{cfg: cfg, logger: logger.Named("browser")}
}

// Launch starts (or connects to) Chrome, prepares the page and restores opts.State.
func (l *RodLauncher) Launch(ctx context.Context, opts LaunchOptions) (Session, error) {
	controlURL := l.cfg.ControlURL
	var proc *launcher.Launcher
	if controlURL == "" {
		proc = launcher.New().
			Headless(opts.Headless).
			Set(flags.Flag("disable-blink-features"), "AutomationControlled").
			Set(flags.Flag("lang"), l.cfg.Locale)
		bin := l.cfg.ChromeBin
		if bin == "" {
			if path, ok := launcher.LookPath(); ok {
				bin = path
			}
		}
		if bin != "" {
			proc = proc.Bin(bin)
		}
		u, err := proc.Launch()
		if err != nil {
			return nil, &apperrors.StartupError{Stage: "launch chrome", Err: err}
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		if proc != nil {
			proc.Kill()
		}
		return nil, &apperrors.StartupError{Stage: "connect chrome", Err: err}
	}

	s := &rodSession{
		browser: b,
		proc:    proc,
		cfg:     l.cfg,
		logger:  l.logger,
	}
	if err := s.setup(ctx, opts); err != nil {
		_ = s.Close()
		return nil, &apperrors.StartupError{Stage: "prepare page", Err: err}
	}
	l.logger.Info("browser session ready",
		zap.Bool("restored", opts.State != nil),
		zap.Bool("headless", opts.Headless),
	)
	return s, nil
}

type rodSession struct {
	browser *rod.Browser
	proc    *launcher.Launcher
	page    *rodPage
	cfg     config.BrowserConfig
	logger  *zap.Logger

	mu       sync.Mutex
	restored []models.OriginStorage
	closed   bool
}

func (s *rodSession) setup(ctx context.Context, opts LaunchOptions) error {
	page, err := stealth.Page(s.browser)
	if err != nil {
		return fmt.Errorf("stealth page: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             viewportWidth,
		Height:            viewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("viewport: %w", err)
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      s.cfg.UserAgent,
		AcceptLanguage: s.cfg.Locale,
	}); err != nil {
		return fmt.Errorf("user agent: %w", err)
	}
	s.page = &rodPage{page: page, navTimeout: s.cfg.NavTimeout}

	if opts.State != nil {
		if err := s.restore(ctx, *opts.State); err != nil {
			return err
		}
	}

	start := opts.StartURL
	if start == "" {
		start = s.cfg.BaseURL
	}
	if err := s.page.Navigate(ctx, start); err != nil {
		return err
	}
	pacer := Pacer{Min: 2 * time.Second, Max: 4 * time.Second}
	if err := pacer.Sleep(ctx); err != nil {
		return err
	}
	return s.page.MoveMouse(ctx)
}

func (s *rodSession) restore(ctx context.Context, state models.SessionState) error {
	if params := toCookieParams(state.Cookies); len(params) > 0 {
		if err := s.browser.SetCookies(params); err != nil {
			return fmt.Errorf("restore cookies: %w", err)
		}
	}
	for _, origin := range state.Origins {
		if len(origin.LocalStorage) == 0 && len(origin.SessionStorage) == 0 {
			continue
		}
		if err := s.page.Navigate(ctx, origin.Origin); err != nil {
			s.logger.Warn("storage origin unreachable", zap.String("origin", origin.Origin), zap.Error(err))
			continue
		}
		if err := restoreStorage(s.page.page, origin); err != nil {
			s.logger.Warn("restore storage failed", zap.String("origin", origin.Origin), zap.Error(err))
		}
	}
	s.mu.Lock()
	s.restored = state.Origins
	s.mu.Unlock()
	return nil
}

func (s *rodSession) Page() Page {
	return s.page
}

func (s *rodSession) Capture(ctx context.Context) (models.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return models.SessionState{}, fmt.Errorf("capture: session closed")
	}

	cookies, err := s.browser.Context(ctx).GetCookies()
	if err != nil {
		return models.SessionState{}, fmt.Errorf("read cookies: %w", err)
	}

	var fresh []models.OriginStorage
	if info, err := s.page.page.Context(ctx).Info(); err == nil {
		if origin := originOf(info.URL); origin != "" {
			fresh = append(fresh, models.OriginStorage{
				Origin:         origin,
				LocalStorage:   snapshotStorage(s.page.page, "localStorage"),
				SessionStorage: snapshotStorage(s.page.page, "sessionStorage"),
			})
		}
	}

	return models.SessionState{
		Cookies: toModelCookies(cookies),
		Origins: mergeOrigins(s.restored, fresh),
		SavedAt: time.Now().UTC(),
	}, nil
}

func (s *rodSession) WaitForURL(ctx context.Context, pattern string) error {
	return waitForURL(ctx, s.page.URL, pattern, urlPollInterval)
}

func (s *rodSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.browser.Close()
	if s.proc != nil {
		s.proc.Kill()
		s.proc.Cleanup()
	}
	return err
}
