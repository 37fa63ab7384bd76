// Package browsertest gives unit tests a real headless chromium. Tests that
// need it are skipped in -short mode and when the playwright driver or the
// browser is not installed (run "tcm-e2e install" once to get them).
package browsertest

import (
	"sync"
	"testing"

	"github.com/playwright-community/playwright-go"
)

var (
	once     sync.Once
	pw       *playwright.Playwright
	browser  playwright.Browser
	startErr error
)

func start() {
	pw, startErr = playwright.Run()
	if startErr != nil {
		return
	}
	browser, startErr = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if startErr != nil {
		pw.Stop()
		pw = nil
	}
}

// Browser returns the chromium shared by the tests of the package, starting
// it on first use. Packages using it call Stop from TestMain.
func Browser(t *testing.T) playwright.Browser {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests do not run in -short mode")
	}
	once.Do(start)
	if startErr != nil {
		t.Skipf("browser not available: %v", startErr)
	}
	return browser
}

// Stop closes the shared browser, if one was started
func Stop() {
	if browser != nil {
		browser.Close()
	}
	if pw != nil {
		pw.Stop()
	}
}
