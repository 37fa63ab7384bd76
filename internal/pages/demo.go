package pages

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// InjectedTestName is the test case created by InjectJS
const InjectedTestName = "Check new test"

// createTestScript submits the new test form from inside the page, reusing the
// session and CSRF cookie of the logged-in user
const createTestScript = `async (name) => {
	const form = await fetch("/test/new", {credentials: "same-origin"}).then(r => r.text());
	const match = form.match(/name="csrfmiddlewaretoken" value="(.+?)"/);
	if (!match) throw new Error("CSRF token not found");
	const body = new URLSearchParams({name: name, description: "", csrfmiddlewaretoken: match[1]});
	const resp = await fetch("/test/new", {method: "POST", body: body, credentials: "same-origin"});
	if (!resp.ok) throw new Error("create test returned status " + resp.status);
	return resp.status;
}`

// DemoPages wraps the timed and asynchronous demo behaviours
type DemoPages struct {
	region
	logger *zap.Logger

	ajaxResponses atomic.Int64
	listening     atomic.Bool
}

// OpenPageAfterWait asks the demo to open its wait page after the given delay
func (d *DemoPages) OpenPageAfterWait(seconds int) error {
	if err := d.page.GetByRole("spinbutton", playwright.PageGetByRoleOptions{Name: "Delay"}).Fill(strconv.Itoa(seconds)); err != nil {
		return d.waitError(`spinbutton "Delay"`, "editable", err)
	}
	if err := d.page.GetByRole("button", playwright.PageGetByRoleOptions{Name: "Open page"}).Click(); err != nil {
		return d.waitError(`button "Open page"`, "clickable", err)
	}
	return nil
}

// CheckWaitPage waits for the delayed page, allowing for the demo delay on top
// of the regular timeout
func (d *DemoPages) CheckWaitPage(delay time.Duration) error {
	heading := d.page.GetByRole("heading", playwright.PageGetByRoleOptions{Name: "Wait page"})
	timeout := d.timeout + delay
	err := d.expect.Locator(heading).ToBeVisible(playwright.LocatorAssertionsToBeVisibleOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return &WaitError{Selector: `heading "Wait page"`, State: "visible", Timeout: timeout, Err: err}
	}
	return nil
}

// ajaxPollInterval is how often OpenPageAndWaitAjax rechecks the response count
const ajaxPollInterval = 50 * time.Millisecond

// OpenPageAndWaitAjax triggers the given number of AJAX requests and waits
// until that many XHR/fetch responses have arrived
func (d *DemoPages) OpenPageAndWaitAjax(requests int) error {
	d.listen()
	d.ajaxResponses.Store(0)

	if err := d.page.GetByRole("spinbutton", playwright.PageGetByRoleOptions{Name: "Requests"}).Fill(strconv.Itoa(requests)); err != nil {
		return d.waitError(`spinbutton "Requests"`, "editable", err)
	}
	if err := d.page.GetByRole("button", playwright.PageGetByRoleOptions{Name: "Send requests"}).Click(); err != nil {
		return d.waitError(`button "Send requests"`, "clickable", err)
	}
	want := int64(requests)
	if !poll(d.timeout, ajaxPollInterval, func() bool { return d.ajaxResponses.Load() >= want }) {
		return d.waitError(fmt.Sprintf("%d AJAX responses", requests), "received",
			fmt.Errorf("got %d", d.ajaxResponses.Load()))
	}
	return nil
}

// AjaxResponsesCount returns the XHR/fetch responses seen since the last
// OpenPageAndWaitAjax call
func (d *DemoPages) AjaxResponsesCount() int {
	return int(d.ajaxResponses.Load())
}

func (d *DemoPages) listen() {
	if !d.listening.CompareAndSwap(false, true) {
		return
	}
	d.page.OnResponse(func(resp playwright.Response) {
		switch resp.Request().ResourceType() {
		case "xhr", "fetch":
			d.ajaxResponses.Add(1)
		}
	})
}

// ClickNewPageButton clicks the button that opens a second page, then closes it
func (d *DemoPages) ClickNewPageButton() error {
	button := d.page.GetByRole("button", playwright.PageGetByRoleOptions{Name: "New page"})
	popup, err := d.page.ExpectPopup(func() error {
		return button.Click()
	})
	if err != nil {
		return d.waitError(`popup from button "New page"`, "opened", err)
	}
	d.logger.Debug("Popup opened", zap.String("url", popup.URL()))
	return popup.Close()
}

// InjectJS creates the InjectedTestName test case from script running in the page
func (d *DemoPages) InjectJS() error {
	result, err := d.page.Evaluate(createTestScript, InjectedTestName)
	if err != nil {
		return fmt.Errorf("failed to run injected script: %w", err)
	}
	status, err := statusCode(result)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("injected create returned status %d", status)
	}
	d.logger.Debug("Injected script finished", zap.Int("status", status))
	return nil
}

// statusCode converts the number returned by page script, which arrives as
// an int or a float64 depending on its value
func statusCode(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("status %v is not an integer", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("unexpected status %v (%T)", v, v)
	}
}
