// Package config resolves the run settings from defaults, a dotenv file, the
// environment and command-line overrides, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported rendering engines
const (
	BrowserChromium = "chromium"
	BrowserFirefox  = "firefox"
	BrowserWebKit   = "webkit"
)

// Default values used when no layer provides a setting
const (
	DefaultLatitude          = 48.9
	DefaultLongitude         = 2.4
	DefaultSecondaryUsername = "bob"
	DefaultSecondaryPassword = "password"
	DefaultReportDir         = "reports"
	DefaultTimeout           = 5 * time.Second
)

// Configuration errors
var (
	ErrMissingBaseURL     = errors.New("base URL is required")
	ErrInvalidBaseURL     = errors.New("base URL must be an absolute http(s) URL")
	ErrMissingCredentials = errors.New("admin username and password are required")
	ErrMissingDBPath      = errors.New("database path is required")
	ErrInvalidSetting     = errors.New("invalid setting")
)

// Settings is the resolved configuration snapshot for one run.
// It is built once by Load and passed by value afterwards.
type Settings struct {
	BaseURL           string
	AdminUsername     string
	AdminPassword     string
	SecondaryUsername string
	SecondaryPassword string
	IsMobile          bool
	Latitude          float64
	Longitude         float64
	DBPath            string
	Browser           string
	Headless          bool
	StorageDir        string
	ReportDir         string
	Timeout           time.Duration
}

// Overrides carries command-line values. Nil fields leave the lower layers untouched.
type Overrides struct {
	BaseURL       *string
	AdminUsername *string
	AdminPassword *string
	IsMobile      *bool
	Latitude      *float64
	Longitude     *float64
	DBPath        *string
	Browser       *string
	Headless      *bool
	StorageDir    *string
	ReportDir     *string
	Timeout       *time.Duration
}

// Defaults returns the built-in settings layer
func Defaults() Settings {
	return Settings{
		SecondaryUsername: DefaultSecondaryUsername,
		Latitude:          DefaultLatitude,
		Longitude:         DefaultLongitude,
		Browser:           BrowserChromium,
		Headless:          true,
		StorageDir:        ".",
		ReportDir:         DefaultReportDir,
		Timeout:           DefaultTimeout,
	}
}

// Load resolves settings from defaults, the settings file, the environment and
// command-line overrides, in increasing order of precedence. A missing settings
// file is not an error.
func Load(getenv func(string) string, file string, o Overrides) (Settings, error) {
	s := Defaults()
	secondaryPasswordSet := false

	if file != "" {
		values, err := godotenv.Read(file)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Settings{}, fmt.Errorf("failed to read settings file %s: %w", file, err)
		}
		if err == nil {
			upper := make(map[string]string, len(values))
			for k, v := range values {
				upper[strings.ToUpper(k)] = v
			}
			set, err := s.apply(func(key string) string { return upper[key] })
			if err != nil {
				return Settings{}, fmt.Errorf("settings file %s: %w", file, err)
			}
			secondaryPasswordSet = secondaryPasswordSet || set
		}
	}

	if getenv != nil {
		set, err := s.apply(getenv)
		if err != nil {
			return Settings{}, fmt.Errorf("environment: %w", err)
		}
		secondaryPasswordSet = secondaryPasswordSet || set
	}

	o.apply(&s)

	if !secondaryPasswordSet {
		s.SecondaryPassword = DefaultSecondaryPassword
		if s.AdminPassword != "" {
			s.SecondaryPassword = s.AdminPassword
		}
	}

	if err := validateBrowser(s.Browser); err != nil {
		return Settings{}, err
	}
	if s.Timeout <= 0 {
		return Settings{}, fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidSetting, s.Timeout)
	}

	return s, nil
}

// apply copies every non-empty key from get into s and reports whether the
// secondary password was provided by this layer
func (s *Settings) apply(get func(string) string) (bool, error) {
	strs := map[string]*string{
		"BASE_URL":           &s.BaseURL,
		"ADMIN_USERNAME":     &s.AdminUsername,
		"ADMIN_PASSWORD":     &s.AdminPassword,
		"SECONDARY_USERNAME": &s.SecondaryUsername,
		"DB_PATH":            &s.DBPath,
		"TARGET_BROWSER":     &s.Browser,
		"STORAGE_DIR":        &s.StorageDir,
		"REPORT_DIR":         &s.ReportDir,
	}
	for key, dst := range strs {
		if v := get(key); v != "" {
			*dst = v
		}
	}

	secondarySet := false
	if v := get("SECONDARY_PASSWORD"); v != "" {
		s.SecondaryPassword = v
		secondarySet = true
	}

	bools := map[string]*bool{
		"IS_MOBILE":       &s.IsMobile,
		"TARGET_HEADLESS": &s.Headless,
	}
	for key, dst := range bools {
		if v := get(key); v != "" {
			b, err := parseBool(key, v)
			if err != nil {
				return false, err
			}
			*dst = b
		}
	}

	floats := map[string]*float64{
		"LATITUDE":  &s.Latitude,
		"LONGITUDE": &s.Longitude,
	}
	for key, dst := range floats {
		if v := get(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return false, fmt.Errorf("%w: %s=%q is not a number", ErrInvalidSetting, key, v)
			}
			*dst = f
		}
	}

	if v := get("UI_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return false, fmt.Errorf("%w: UI_TIMEOUT=%q is not a duration", ErrInvalidSetting, v)
		}
		s.Timeout = d
	}

	return secondarySet, nil
}

func (o Overrides) apply(s *Settings) {
	if o.BaseURL != nil {
		s.BaseURL = *o.BaseURL
	}
	if o.AdminUsername != nil {
		s.AdminUsername = *o.AdminUsername
	}
	if o.AdminPassword != nil {
		s.AdminPassword = *o.AdminPassword
	}
	if o.IsMobile != nil {
		s.IsMobile = *o.IsMobile
	}
	if o.Latitude != nil {
		s.Latitude = *o.Latitude
	}
	if o.Longitude != nil {
		s.Longitude = *o.Longitude
	}
	if o.DBPath != nil {
		s.DBPath = *o.DBPath
	}
	if o.Browser != nil {
		s.Browser = *o.Browser
	}
	if o.Headless != nil {
		s.Headless = *o.Headless
	}
	if o.StorageDir != nil {
		s.StorageDir = *o.StorageDir
	}
	if o.ReportDir != nil {
		s.ReportDir = *o.ReportDir
	}
	if o.Timeout != nil {
		s.Timeout = *o.Timeout
	}
}

func validateBrowser(name string) error {
	switch name {
	case BrowserChromium, BrowserFirefox, BrowserWebKit:
		return nil
	}
	return fmt.Errorf("%w: unsupported browser %q (chromium, firefox, webkit)", ErrInvalidSetting, name)
}

// ParseHeadless interprets a TARGET_HEADLESS or --target-headless value with
// the same rules on every layer: 1, t, true, 0, f, false in any case.
func ParseHeadless(v string) (bool, error) {
	return parseBool("TARGET_HEADLESS", v)
}

func parseBool(key, v string) (bool, error) {
	b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(v)))
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidSetting, key, v)
	}
	return b, nil
}

// RequireBaseURL validates the base URL for network-dependent fixtures
func (s Settings) RequireBaseURL() error {
	if s.BaseURL == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, s.BaseURL)
	}
	return nil
}

// RequireAdmin validates that admin credentials are present
func (s Settings) RequireAdmin() error {
	if s.AdminUsername == "" || s.AdminPassword == "" {
		return ErrMissingCredentials
	}
	return nil
}

// RequireDBPath validates that a database location is configured
func (s Settings) RequireDBPath() error {
	if s.DBPath == "" {
		return ErrMissingDBPath
	}
	return nil
}

// URL joins an endpoint onto the base URL
func (s Settings) URL(endpoint string) string {
	base := strings.TrimRight(s.BaseURL, "/")
	if endpoint == "" {
		return base + "/"
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return base + endpoint
}

// Origin returns scheme://host of the base URL, or "" when it does not parse
func (s Settings) Origin() string {
	u, err := url.Parse(s.BaseURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// Redacted returns a copy that is safe to log
func (s Settings) Redacted() Settings {
	if s.AdminPassword != "" {
		s.AdminPassword = "********"
	}
	if s.SecondaryPassword != "" {
		s.SecondaryPassword = "********"
	}
	return s
}
