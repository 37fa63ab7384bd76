package cli

import (
	"flag"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/testme/tcm-e2e/internal/config"
	"github.com/testme/tcm-e2e/internal/logging"
)

// Flag names shared by the binary and the e2e suite
const (
	FlagTargetURL      = "target-url"
	FlagAdminUsername  = "admin-username"
	FlagAdminPassword  = "admin-password"
	FlagMobile         = "mobile"
	FlagLatitude       = "lat"
	FlagLongitude      = "long"
	FlagTargetBrowser  = "target-browser"
	FlagTargetHeadless = "target-headless"
	FlagDBPath         = "db-path"
	FlagSettingsFile   = "settings-file"
	FlagStorageDir     = "storage-dir"
	FlagReportDir      = "report-dir"
	FlagTimeout        = "timeout"
	FlagLogLevel       = "log-level"
	FlagLogFormat      = "log-format"
	FlagLogFile        = "log-file"
)

// Flags returns the global flag set. Values given here win over the
// environment and the settings file.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: FlagTargetURL, Usage: "base URL of the application under test"},
		&cli.StringFlag{Name: FlagAdminUsername, Usage: "admin login"},
		&cli.StringFlag{Name: FlagAdminPassword, Usage: "admin password"},
		&cli.BoolFlag{Name: FlagMobile, Usage: "emulate a mobile device"},
		&cli.Float64Flag{Name: FlagLatitude, Usage: "geolocation latitude", Value: config.DefaultLatitude},
		&cli.Float64Flag{Name: FlagLongitude, Usage: "geolocation longitude", Value: config.DefaultLongitude},
		&cli.StringFlag{Name: FlagTargetBrowser, Usage: "chromium, firefox or webkit", Value: config.BrowserChromium},
		&cli.StringFlag{Name: FlagTargetHeadless, Usage: `"true" or "1" runs the browser headless`, Value: "true"},
		&cli.StringFlag{Name: FlagDBPath, Usage: "SQLite file or postgres:// URL of the application database"},
		&cli.StringFlag{Name: FlagSettingsFile, Usage: "dotenv settings file", Value: ".env"},
		&cli.StringFlag{Name: FlagStorageDir, Usage: "directory for cached login state"},
		&cli.StringFlag{Name: FlagReportDir, Usage: "directory for failure attachments", Value: config.DefaultReportDir},
		&cli.DurationFlag{Name: FlagTimeout, Usage: "UI wait timeout", Value: config.DefaultTimeout},
		&cli.StringFlag{Name: FlagLogLevel, Usage: "debug, info, warn or error", Value: "info"},
		&cli.StringFlag{Name: FlagLogFormat, Usage: "console or json", Value: "console"},
		&cli.StringFlag{Name: FlagLogFile, Usage: "also write JSON logs to this file, rotated by size"},
	}
}

func flagValue[T any](c *cli.Context, name string, get func(string) T) *T {
	if !c.IsSet(name) {
		return nil
	}
	v := get(name)
	return &v
}

// OverridesFrom collects the flags that were given explicitly
func OverridesFrom(c *cli.Context) (config.Overrides, error) {
	o := config.Overrides{
		BaseURL:       flagValue(c, FlagTargetURL, c.String),
		AdminUsername: flagValue(c, FlagAdminUsername, c.String),
		AdminPassword: flagValue(c, FlagAdminPassword, c.String),
		IsMobile:      flagValue(c, FlagMobile, c.Bool),
		Latitude:      flagValue(c, FlagLatitude, c.Float64),
		Longitude:     flagValue(c, FlagLongitude, c.Float64),
		DBPath:        flagValue(c, FlagDBPath, c.String),
		Browser:       flagValue(c, FlagTargetBrowser, c.String),
		StorageDir:    flagValue(c, FlagStorageDir, c.String),
		ReportDir:     flagValue(c, FlagReportDir, c.String),
		Timeout:       flagValue(c, FlagTimeout, c.Duration),
	}
	if c.IsSet(FlagTargetHeadless) {
		headless, err := config.ParseHeadless(c.String(FlagTargetHeadless))
		if err != nil {
			return config.Overrides{}, err
		}
		o.Headless = &headless
	}
	return o, nil
}

// LoadSettings resolves the settings for a command invocation
func LoadSettings(c *cli.Context, getenv func(string) string) (config.Settings, error) {
	o, err := OverridesFrom(c)
	if err != nil {
		return config.Settings{}, err
	}
	return config.Load(getenv, c.String(FlagSettingsFile), o)
}

// NewLogger builds the logger selected by the log flags
func NewLogger(c *cli.Context) (*zap.Logger, error) {
	return logging.New(c.String(FlagLogLevel), c.String(FlagLogFormat), c.String(FlagLogFile))
}

// ParseArgs resolves settings and a logger from a bare argument list, using
// the same flags as the binary
func ParseArgs(args []string, getenv func(string) string) (config.Settings, *zap.Logger, error) {
	var (
		settings config.Settings
		logger   *zap.Logger
	)
	app := &cli.App{
		Name:           "tcm-e2e",
		Flags:          Flags(),
		HideHelp:       true,
		ExitErrHandler: func(*cli.Context, error) {},
		Action: func(c *cli.Context) error {
			var err error
			if settings, err = LoadSettings(c, getenv); err != nil {
				return err
			}
			logger, err = NewLogger(c)
			return err
		},
	}
	if err := app.Run(append([]string{app.Name}, args...)); err != nil {
		return config.Settings{}, nil, err
	}
	return settings, logger, nil
}

// SplitTestArgs separates the flags of the go test runner, as registered in
// testFlags, from the suite's own. A non-boolean test flag written without "="
// takes the next argument as its value.
func SplitTestArgs(args []string, testFlags *flag.FlagSet) (testArgs, own []string) {
	for i := 0; i < len(args); i++ {
		name, inline := testFlagName(args[i])
		if name == "" {
			own = append(own, args[i])
			continue
		}
		testArgs = append(testArgs, args[i])
		if !inline && takesValue(testFlags, name) && i+1 < len(args) {
			i++
			testArgs = append(testArgs, args[i])
		}
	}
	return testArgs, own
}

// testFlagName returns the name of a -test.* flag and whether its value is
// inline, or "" when arg is not a test flag
func testFlagName(arg string) (name string, inline bool) {
	trimmed := strings.TrimPrefix(arg, "-")
	trimmed = strings.TrimPrefix(trimmed, "-")
	if trimmed == arg || !strings.HasPrefix(trimmed, "test.") {
		return "", false
	}
	name, _, inline = strings.Cut(trimmed, "=")
	return name, inline
}

func takesValue(fs *flag.FlagSet, name string) bool {
	if fs == nil {
		return false
	}
	f := fs.Lookup(name)
	if f == nil {
		return false
	}
	if b, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && b.IsBoolFlag() {
		return false
	}
	return true
}
