//go:build e2e

package e2e

import (
	"context"
	"errors"
	"testing"

	"github.com/playwright-community/playwright-go"

	"github.com/testme/tcm-e2e/internal/config"
	"github.com/testme/tcm-e2e/internal/database"
	"github.com/testme/tcm-e2e/internal/pages"
	"github.com/testme/tcm-e2e/internal/reporting"
	"github.com/testme/tcm-e2e/internal/repository"
	"github.com/testme/tcm-e2e/internal/services"
	"github.com/testme/tcm-e2e/internal/session"
)

// openApp creates a browsing context for the test and opens the root page.
// The context is closed when the test ends; a failed authenticated test gets
// a screenshot attached first.
func openApp(t *testing.T, profile session.Profile, device *config.DeviceProfile) *pages.Application {
	t.Helper()

	sctx, err := manager.NewContext(profile, device)
	if errors.Is(err, session.ErrUnsupportedDevice) {
		t.Skipf("Skipping: %v", err)
	}
	if err != nil {
		t.Fatalf("Failed to create browsing context: %v", err)
	}

	t.Cleanup(func() {
		if t.Failed() && profile != session.ProfileAnonymous {
			attachScreenshot(t, sctx.CurrentPage())
		}
		if err := sctx.Close(); err != nil {
			t.Logf("Failed to close browsing context: %v", err)
		}
	})

	if err := sctx.App.Goto("/"); err != nil {
		t.Fatalf("Failed to open root page: %v", err)
	}
	return sctx.App
}

func attachScreenshot(t *testing.T, page playwright.Page) {
	png, err := page.Screenshot()
	if err != nil {
		t.Logf("Failed to capture failure screenshot: %v", err)
		return
	}
	path, err := reporter.Attach(t.Name(), reporting.FailureScreenshot, png)
	if err != nil {
		t.Logf("Failed to attach failure screenshot: %v", err)
		return
	}
	t.Logf("Failure screenshot: %s", path)
}

// authApp is the admin application on the configured device
func authApp(t *testing.T) *pages.Application {
	t.Helper()
	return openApp(t, session.AuthProfileFor(settings.IsMobile), config.DeviceFor(settings.IsMobile))
}

// mobileAuthApp is the admin application on the mobile device, whatever the
// mobile flag says
func mobileAuthApp(t *testing.T) *pages.Application {
	t.Helper()
	return openApp(t, session.ProfileMobile, config.DeviceFor(true))
}

// mobileApp is the anonymous application on the mobile device
func mobileApp(t *testing.T) *pages.Application {
	t.Helper()
	return openApp(t, session.ProfileAnonymous, config.DeviceFor(true))
}

// webService is an HTTP client logged in as admin
func webService(t *testing.T) services.TCMClient {
	t.Helper()

	client, err := services.NewTCMClient(settings, logger)
	if err != nil {
		t.Fatalf("Failed to create web service client: %v", err)
	}
	t.Cleanup(client.Close)

	if err := settings.RequireAdmin(); err != nil {
		t.Fatalf("Web service needs admin credentials: %v", err)
	}
	if err := client.Login(context.Background(), settings.AdminUsername, settings.AdminPassword); err != nil {
		t.Fatalf("Web service login failed: %v", err)
	}
	return client
}

// dbRepo returns a repository over the database shared by the whole run.
// Tests are skipped when no database is configured.
func dbRepo(t *testing.T) *repository.TestCaseRepository {
	t.Helper()

	if err := settings.RequireDBPath(); err != nil {
		t.Skipf("Skipping: %v", err)
	}
	db, err := sharedDB()
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	return repository.NewTestCaseRepository(db, database.DialectFor(settings.DBPath))
}

// deleteWhenDone removes test cases created by the test once it ends, when a
// database is configured
func deleteWhenDone(t *testing.T, names ...string) {
	t.Helper()
	if settings.DBPath == "" {
		return
	}
	cleaner := services.NewTestCaseService(nil, dbRepo(t), logger)
	t.Cleanup(func() {
		if err := cleaner.Cleanup(context.Background(), names...); err != nil {
			t.Logf("Cleanup of %v failed: %v", names, err)
		}
	})
}
