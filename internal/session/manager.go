// Package session owns the browser process of a run, the cached login of each
// authentication profile, and the per-test browsing contexts built from them.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/testme/tcm-e2e/internal/config"
	"github.com/testme/tcm-e2e/internal/logging"
	"github.com/testme/tcm-e2e/internal/pages"
	"github.com/testme/tcm-e2e/internal/services"
)

// Session errors
var (
	// ErrAuthentication is fatal for the run: every authenticated context
	// depends on the cached login.
	ErrAuthentication = errors.New("authentication failed")
	// ErrUnsupportedDevice marks a declared incompatibility; callers skip.
	ErrUnsupportedDevice = errors.New("mobile emulation is not supported by this browser")
	// ErrClosed is returned when a browser is requested after Close.
	ErrClosed = errors.New("session manager is closed")
)

// LoginFunc performs the interactive login on a fresh anonymous page
type LoginFunc func(app *pages.Application, cfg config.Settings) error

// InteractiveLogin fills the login form with the admin credentials and waits
// for the form to go away
func InteractiveLogin(app *pages.Application, cfg config.Settings) error {
	if err := app.GotoURL(cfg.URL(services.LoginPath)); err != nil {
		return err
	}
	if err := app.Login(cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return err
	}
	return app.ExpectLoggedIn()
}

// Manager owns one browser for the whole run
type Manager struct {
	cfg    config.Settings
	logger *zap.Logger
	login  LoginFunc
	states *stateCache

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	engine  string
	keep    bool
	closed  bool
}

// NewManager creates a manager. No browser is started until one is needed.
func NewManager(cfg config.Settings, logger *zap.Logger) (*Manager, error) {
	if err := cfg.RequireBaseURL(); err != nil {
		return nil, err
	}
	return &Manager{
		cfg:    cfg,
		logger: logging.OrNop(logger).Named("session"),
		login:  InteractiveLogin,
		states: newStateCache(cfg.StorageDir),
	}, nil
}

// AcquireBrowser starts playwright and launches the browser on first use.
// Later calls return the same browser.
func (m *Manager) AcquireBrowser(engine string, headless bool) (playwright.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if m.browser != nil {
		if engine != m.engine {
			return nil, fmt.Errorf("browser %s already running, cannot switch to %s", m.engine, engine)
		}
		return m.browser, nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	var browserType playwright.BrowserType
	switch engine {
	case config.BrowserChromium:
		browserType = pw.Chromium
	case config.BrowserFirefox:
		browserType = pw.Firefox
	case config.BrowserWebKit:
		browserType = pw.WebKit
	default:
		pw.Stop()
		return nil, fmt.Errorf("%w: unsupported browser %q", config.ErrInvalidSetting, engine)
	}

	browser, err := browserType.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch %s: %w", engine, err)
	}

	m.pw = pw
	m.browser = browser
	m.engine = engine
	m.logger.Info("Browser launched", zap.String("engine", engine), zap.Bool("headless", headless))
	return browser, nil
}

// Browser returns the browser configured in the settings
func (m *Manager) Browser() (playwright.Browser, error) {
	return m.AcquireBrowser(m.cfg.Browser, m.cfg.Headless)
}

// Authenticate returns the storage-state file of an authenticated profile,
// logging in once per run to produce it. The anonymous profile has no state.
func (m *Manager) Authenticate(p Profile) (string, error) {
	if p == ProfileAnonymous {
		return "", nil
	}
	if p.StateFile() == "" {
		return "", fmt.Errorf("unknown profile %q", p)
	}
	if p == ProfileMobile && !SupportsMobile(m.cfg.Browser) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDevice, m.cfg.Browser)
	}

	return m.states.get(p, func(path string) error {
		if err := m.cfg.RequireAdmin(); err != nil {
			return err
		}
		return m.captureLogin(p, path)
	})
}

// captureLogin logs in on a fresh anonymous context and saves its storage state
func (m *Manager) captureLogin(p Profile, path string) error {
	browser, err := m.Browser()
	if err != nil {
		return err
	}

	bctx, err := browser.NewContext(contextOptions(m.cfg, "", p.Device()))
	if err != nil {
		return fmt.Errorf("failed to create login context: %w", err)
	}
	defer bctx.Close()

	if err := m.grantGeolocation(bctx); err != nil {
		return err
	}

	page, err := bctx.NewPage()
	if err != nil {
		return fmt.Errorf("failed to open login page: %w", err)
	}

	app := pages.NewApplication(page, m.cfg.BaseURL, m.cfg.Timeout, m.logger)
	if err := m.login(app, m.cfg); err != nil {
		return err
	}

	if _, err := bctx.StorageState(path); err != nil {
		return fmt.Errorf("failed to save storage state: %w", err)
	}

	m.logger.Info("Storage state captured", zap.String("profile", string(p)), zap.String("path", path))
	return nil
}

// NewContext builds an isolated browsing context for one test. The caller must
// Close it when the test ends.
func (m *Manager) NewContext(p Profile, device *config.DeviceProfile) (*Context, error) {
	if device != nil && device.IsMobile && !SupportsMobile(m.cfg.Browser) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDevice, m.cfg.Browser)
	}

	statePath, err := m.Authenticate(p)
	if err != nil {
		return nil, err
	}

	browser, err := m.Browser()
	if err != nil {
		return nil, err
	}

	bctx, err := browser.NewContext(contextOptions(m.cfg, statePath, device))
	if err != nil {
		return nil, fmt.Errorf("failed to create browsing context: %w", err)
	}

	if err := m.grantGeolocation(bctx); err != nil {
		bctx.Close()
		return nil, err
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	return &Context{
		Profile: p,
		Device:  device,
		App:     pages.NewApplication(page, m.cfg.BaseURL, m.cfg.Timeout, m.logger),
		bctx:    bctx,
		page:    page,
	}, nil
}

func (m *Manager) grantGeolocation(bctx playwright.BrowserContext) error {
	err := bctx.GrantPermissions([]string{"geolocation"}, playwright.BrowserContextGrantPermissionsOptions{
		Origin: playwright.String(m.cfg.Origin()),
	})
	if err != nil {
		return fmt.Errorf("failed to grant geolocation: %w", err)
	}
	return nil
}

// KeepStateFiles makes Close leave the storage-state files on disk
func (m *Manager) KeepStateFiles() {
	m.mu.Lock()
	m.keep = true
	m.mu.Unlock()
}

// Close removes the storage-state files, closes the browser and stops
// playwright. It is safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	if !m.keep {
		errs = append(errs, m.states.remove())
	}
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}
	if m.pw != nil {
		if err := m.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	m.logger.Info("Session closed")
	return errors.Join(errs...)
}

// Context is one browsing context with its single page
type Context struct {
	Profile Profile
	Device  *config.DeviceProfile
	App     *pages.Application

	bctx      playwright.BrowserContext
	page      playwright.Page
	closeOnce sync.Once
	closeErr  error
}

// CurrentPage returns the page of the context, for failure reporting
func (c *Context) CurrentPage() playwright.Page {
	return c.page
}

// Close closes the browsing context
func (c *Context) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.bctx.Close()
	})
	return c.closeErr
}
