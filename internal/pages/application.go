// Package pages holds the page objects used by the scenarios. Every operation
// takes semantic identifiers (link text, row text, button labels) and waits
// for the element it acts on up to the configured timeout.
package pages

import (
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/testme/tcm-e2e/internal/logging"
)

const (
	menuButtonSelector = ".menuBtn"
	positionSelector   = ".position"
	nameFieldSelector  = "#id_name"
)

// Application is the root page object
type Application struct {
	region
	baseURL string
	logger  *zap.Logger

	TestCases *TestCasesPage
	DemoPages *DemoPages
}

// NewApplication wraps a page. Console errors are logged and dialogs are
// logged then accepted for the lifetime of the page.
func NewApplication(page playwright.Page, baseURL string, timeout time.Duration, logger *zap.Logger) *Application {
	logger = logging.OrNop(logger).Named("page")
	ms := float64(timeout.Milliseconds())
	page.SetDefaultTimeout(ms)

	r := region{
		page:    page,
		timeout: timeout,
		expect:  playwright.NewPlaywrightAssertions(ms),
	}

	app := &Application{
		region:    r,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger,
		TestCases: &TestCasesPage{region: r},
		DemoPages: &DemoPages{region: r, logger: logger},
	}

	page.OnConsole(func(msg playwright.ConsoleMessage) {
		if msg.Type() == "error" {
			logger.Error("Console error", zap.String("page", page.URL()), zap.String("text", msg.Text()))
		}
	})
	page.OnDialog(func(dialog playwright.Dialog) {
		logger.Warn("Dialog", zap.String("page", page.URL()), zap.String("message", dialog.Message()))
		if err := dialog.Accept(); err != nil {
			logger.Warn("Failed to accept dialog", zap.Error(err))
		}
	})

	return app
}

// Goto opens an endpoint relative to the base URL
func (a *Application) Goto(endpoint string) error {
	return a.GotoURL(a.baseURL + endpoint)
}

// GotoURL opens an absolute URL
func (a *Application) GotoURL(url string) error {
	if _, err := a.page.Goto(url); err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	return nil
}

// NavigateTo follows a menu link, expanding the collapsed mobile menu first
// when the link is not directly visible
func (a *Application) NavigateTo(menu string) error {
	link := a.page.GetByRole("link", playwright.PageGetByRoleOptions{Name: menu})

	visible, err := link.IsVisible()
	if err != nil {
		return fmt.Errorf("failed to check menu link %q: %w", menu, err)
	}
	if !visible {
		if err := a.ClickMenuButton(); err != nil {
			return err
		}
	}

	if err := link.Click(); err != nil {
		return a.waitError(fmt.Sprintf("link %q", menu), "clickable", err)
	}
	a.logger.Debug("Navigated", zap.String("menu", menu))
	return nil
}

// Login submits the login form
func (a *Application) Login(username, password string) error {
	if err := a.page.GetByRole("textbox", playwright.PageGetByRoleOptions{Name: "Username:"}).Fill(username); err != nil {
		return a.waitError(`textbox "Username:"`, "editable", err)
	}
	if err := a.page.GetByRole("textbox", playwright.PageGetByRoleOptions{Name: "Password:"}).Fill(password); err != nil {
		return a.waitError(`textbox "Password:"`, "editable", err)
	}
	if err := a.page.GetByRole("button", playwright.PageGetByRoleOptions{Name: "Login"}).Click(); err != nil {
		return a.waitError(`button "Login"`, "clickable", err)
	}
	return nil
}

// ExpectLoggedIn waits until the login form is gone
func (a *Application) ExpectLoggedIn() error {
	button := a.page.GetByRole("button", playwright.PageGetByRoleOptions{Name: "Login"})
	if err := a.expect.Locator(button).ToBeHidden(); err != nil {
		return a.waitError(`button "Login"`, "hidden", err)
	}
	return nil
}

// ClickMenuButton toggles the collapsed navigation menu
func (a *Application) ClickMenuButton() error {
	if err := a.page.Locator(menuButtonSelector).Click(); err != nil {
		return a.waitError(menuButtonSelector, "clickable", err)
	}
	return nil
}

// Location waits for the geolocation readout to be filled and returns it
func (a *Application) Location() (string, error) {
	loc := a.page.Locator(positionSelector)
	if err := a.expect.Locator(loc).Not().ToBeEmpty(); err != nil {
		return "", a.waitError(positionSelector, "filled", err)
	}
	text, err := loc.TextContent()
	if err != nil {
		return "", a.waitError(positionSelector, "attached", err)
	}
	return strings.TrimSpace(text), nil
}

// ExpectLocation waits until the geolocation readout contains every part
func (a *Application) ExpectLocation(parts ...string) error {
	loc := a.page.Locator(positionSelector)
	for _, part := range parts {
		if err := a.expect.Locator(loc).ToContainText(part); err != nil {
			return a.waitError(positionSelector, fmt.Sprintf("containing %q", part), err)
		}
	}
	return nil
}

// CreateTest fills and submits the new test case form
func (a *Application) CreateTest(name, description string) error {
	if err := a.page.Locator(nameFieldSelector).Fill(name); err != nil {
		return a.waitError(nameFieldSelector, "editable", err)
	}
	if err := a.page.GetByRole("textbox", playwright.PageGetByRoleOptions{Name: "Test description"}).Fill(description); err != nil {
		return a.waitError(`textbox "Test description"`, "editable", err)
	}
	if err := a.page.GetByRole("button", playwright.PageGetByRoleOptions{Name: "Create"}).Click(); err != nil {
		return a.waitError(`button "Create"`, "clickable", err)
	}
	return nil
}

// region is the shared state of every page object bound to one page
type region struct {
	page    playwright.Page
	timeout time.Duration
	expect  playwright.PlaywrightAssertions
}

func (r region) waitError(selector, state string, err error) error {
	return &WaitError{Selector: selector, State: state, Timeout: r.timeout, Err: err}
}
