package session

import (
	"github.com/playwright-community/playwright-go"

	"github.com/testme/tcm-e2e/internal/config"
)

// Profile selects which cached login a browsing context starts from
type Profile string

// Authentication profiles
const (
	ProfileAnonymous Profile = "anonymous"
	ProfileDesktop   Profile = "desktop"
	ProfileMobile    Profile = "mobile"
)

// Storage-state file names, written under Settings.StorageDir
const (
	DesktopStateFile = "storage_state.json"
	MobileStateFile  = "mobile_storage_state.json"
)

// StateFile returns the storage-state file name of an authenticated profile
func (p Profile) StateFile() string {
	switch p {
	case ProfileDesktop:
		return DesktopStateFile
	case ProfileMobile:
		return MobileStateFile
	}
	return ""
}

// Device returns the emulation the profile logs in under. The mobile cookie
// is valid on desktop too, but visual checks need the matching viewport.
func (p Profile) Device() *config.DeviceProfile {
	return config.DeviceFor(p == ProfileMobile)
}

// AuthProfileFor picks the authenticated profile matching the mobile flag
func AuthProfileFor(isMobile bool) Profile {
	if isMobile {
		return ProfileMobile
	}
	return ProfileDesktop
}

// SupportsMobile reports whether an engine can emulate mobile devices
func SupportsMobile(engine string) bool {
	return engine != config.BrowserFirefox
}

// contextOptions builds the options for a new browsing context. Geolocation is
// always granted and set to the configured coordinates.
func contextOptions(cfg config.Settings, statePath string, device *config.DeviceProfile) playwright.BrowserNewContextOptions {
	opts := playwright.BrowserNewContextOptions{
		Permissions: []string{"geolocation"},
		Geolocation: &playwright.Geolocation{
			Latitude:  cfg.Latitude,
			Longitude: cfg.Longitude,
		},
	}
	if statePath != "" {
		opts.StorageStatePath = playwright.String(statePath)
	}
	if device != nil {
		opts.UserAgent = playwright.String(device.UserAgent)
		opts.Screen = &playwright.Size{Width: device.Screen.Width, Height: device.Screen.Height}
		opts.Viewport = &playwright.Size{Width: device.Viewport.Width, Height: device.Viewport.Height}
		opts.DeviceScaleFactor = playwright.Float(device.DeviceScaleFactor)
		opts.IsMobile = playwright.Bool(device.IsMobile)
		opts.HasTouch = playwright.Bool(device.HasTouch)
	}
	return opts
}
