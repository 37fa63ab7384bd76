package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/testme/tcm-e2e/internal/config"
	"github.com/testme/tcm-e2e/internal/models"
	"github.com/testme/tcm-e2e/internal/repository/testutil"
	"github.com/testme/tcm-e2e/internal/session"
	"github.com/testme/tcm-e2e/internal/tcmfake"
)

const (
	adminUser     = "admin"
	adminPassword = "admin-password"
)

// runApp runs the binary's application with a fixed environment and returns stdout
func runApp(t *testing.T, env map[string]string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := NewApp("test", envFrom(env))
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(*cli.Context, error) {}

	base := []string{"tcm-e2e", "--" + FlagSettingsFile, "", "--" + FlagLogLevel, "error"}
	err := app.Run(append(base, args...))
	return out.String(), err
}

func TestSettingsCommand_MasksSecrets(t *testing.T) {
	out, err := runApp(t, map[string]string{
		"BASE_URL":       "http://localhost:8000",
		"ADMIN_USERNAME": adminUser,
		"ADMIN_PASSWORD": adminPassword,
	}, "--"+FlagMobile, "settings")
	require.NoError(t, err)

	assert.Contains(t, out, "http://localhost:8000")
	assert.Contains(t, out, adminUser)
	assert.NotContains(t, out, adminPassword)
	assert.Regexp(t, `IS_MOBILE\s+true`, out)
}

func TestTestCasesList(t *testing.T) {
	td := testutil.SetupTestDatabase(t)
	defer td.Teardown(t)
	td.Insert(t, "Login works", "Open /login/")
	td.Insert(t, "Logout works", nil)

	out, err := runApp(t, nil, "--"+FlagDBPath, td.DSN, "testcases", "list")
	require.NoError(t, err)

	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Login works")
	assert.Contains(t, out, "Open /login/")
	assert.Contains(t, out, "Logout works")
}

func TestTestCasesList_RequiresDBPath(t *testing.T) {
	_, err := runApp(t, nil, "testcases", "list")
	assert.ErrorIs(t, err, config.ErrMissingDBPath)
}

func TestTestCasesCreate(t *testing.T) {
	td := testutil.SetupTestDatabase(t)
	defer td.Teardown(t)

	app := tcmfake.New(adminUser, adminPassword)
	defer app.Close()
	app.OnCreate = func(tc models.TestCase) error {
		_, err := td.DB.Exec("INSERT INTO tcm_testcase (name, description) VALUES (?, ?)", tc.Name, tc.Description)
		return err
	}

	env := map[string]string{
		"BASE_URL":       app.URL,
		"ADMIN_USERNAME": adminUser,
		"ADMIN_PASSWORD": adminPassword,
		"DB_PATH":        td.DSN,
	}

	t.Run("without verification", func(t *testing.T) {
		out, err := runApp(t, env, "testcases", "create", "--name", "Plain case")
		require.NoError(t, err)
		assert.Contains(t, out, `created test case "Plain case"`)
	})

	t.Run("with verification", func(t *testing.T) {
		out, err := runApp(t, env, "testcases", "create", "--name", "Verified case", "--description", "steps", "--verify")
		require.NoError(t, err)
		assert.Regexp(t, `created test case "Verified case" with id \d+`, out)
	})

	cases := app.Cases()
	require.Len(t, cases, 2)
	assert.Equal(t, "Plain case", cases[0].Name)
	assert.Equal(t, "Verified case", cases[1].Name)
}

func TestTestCasesCreate_RequiresAdmin(t *testing.T) {
	app := tcmfake.New(adminUser, adminPassword)
	defer app.Close()

	_, err := runApp(t, map[string]string{"BASE_URL": app.URL}, "testcases", "create", "--name", "No admin")
	assert.ErrorIs(t, err, config.ErrMissingCredentials)
	assert.Empty(t, app.Cases())
}

func TestTestCasesCreate_RequiresName(t *testing.T) {
	_, err := runApp(t, nil, "testcases", "create")
	assert.Error(t, err)
}

func TestTestCasesDelete(t *testing.T) {
	td := testutil.SetupTestDatabase(t)
	defer td.Teardown(t)
	td.Insert(t, "test to delete", nil)
	td.Insert(t, "test to delete", "duplicate")
	td.Insert(t, "keep me", nil)

	out, err := runApp(t, map[string]string{"DB_PATH": td.DSN}, "testcases", "delete", "--name", "test to delete")
	require.NoError(t, err)
	assert.Contains(t, out, `deleted 2 test case(s) named "test to delete"`)

	var remaining int
	require.NoError(t, td.DB.QueryRow("SELECT COUNT(*) FROM tcm_testcase").Scan(&remaining))
	assert.Equal(t, 1, remaining)
}

func TestAuthCommand_RequiresBaseURL(t *testing.T) {
	_, err := runApp(t, nil, "auth")
	assert.ErrorIs(t, err, config.ErrMissingBaseURL)
}

func TestAuthCommand_MobileOnFirefox(t *testing.T) {
	out, err := runApp(t, map[string]string{"BASE_URL": "http://127.0.0.1:8000"},
		"--"+FlagTargetBrowser, "firefox", "--"+FlagMobile, "--"+FlagStorageDir, t.TempDir(), "auth")
	require.NoError(t, err, "an unsupported device is skipped, not failed")
	assert.Contains(t, out, "mobile: skipped")
	assert.Contains(t, out, "firefox")
}

func TestAuthCommand_AllWithoutCredentials(t *testing.T) {
	// Mobile is skipped on firefox; desktop fails before any browser starts
	out, err := runApp(t, map[string]string{"BASE_URL": "http://127.0.0.1:8000"},
		"--"+FlagTargetBrowser, "firefox", "--"+FlagStorageDir, t.TempDir(), "auth", "--all")
	assert.ErrorIs(t, err, session.ErrAuthentication)
	assert.ErrorIs(t, err, config.ErrMissingCredentials)
	assert.Empty(t, out)
}
