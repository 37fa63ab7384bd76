//go:build e2e

package e2e

import (
	"testing"
	"time"

	"github.com/testme/tcm-e2e/internal/pages"
)

// TestWaitForDelayedPage (101) opens a page that shows up after a delay
func TestWaitForDelayedPage(t *testing.T) {
	const delay = 3

	app := authApp(t)
	if err := app.NavigateTo("Demo pages"); err != nil {
		t.Fatal(err)
	}
	if err := app.DemoPages.OpenPageAfterWait(delay); err != nil {
		t.Fatal(err)
	}
	if err := app.DemoPages.CheckWaitPage(delay * time.Second); err != nil {
		t.Error(err)
	}
}

// TestWaitAjaxRequests (102) counts the AJAX responses of the demo page
func TestWaitAjaxRequests(t *testing.T) {
	app := authApp(t)
	if err := app.NavigateTo("Demo pages"); err != nil {
		t.Fatal(err)
	}
	if err := app.DemoPages.OpenPageAndWaitAjax(2); err != nil {
		t.Fatal(err)
	}
	if got := app.DemoPages.AjaxResponsesCount(); got != 2 {
		t.Errorf("Expected 2 AJAX responses, got %d", got)
	}
}

// TestHandlers (103) opens a popup, then creates a test case from injected
// script and finds it in the list
func TestHandlers(t *testing.T) {
	app := authApp(t)
	deleteWhenDone(t, pages.InjectedTestName)

	if err := app.NavigateTo("Demo pages"); err != nil {
		t.Fatal(err)
	}
	if err := app.DemoPages.ClickNewPageButton(); err != nil {
		t.Fatal(err)
	}
	if err := app.DemoPages.InjectJS(); err != nil {
		t.Fatal(err)
	}
	if err := app.NavigateTo("Test Cases"); err != nil {
		t.Fatal(err)
	}
	if err := app.TestCases.CheckTestExist(pages.InjectedTestName); err != nil {
		t.Error(err)
	}
}
