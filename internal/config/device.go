package config

// Size is a width/height pair in CSS pixels
type Size struct {
	Width  int
	Height int
}

// DeviceProfile is a named bundle of emulation parameters
type DeviceProfile struct {
	Name              string
	UserAgent         string
	Screen            Size
	Viewport          Size
	DeviceScaleFactor float64
	IsMobile          bool
	HasTouch          bool
}

// IPhone15 is the mobile profile used by every mobile flow
var IPhone15 = DeviceProfile{
	Name:              "iPhone 15",
	UserAgent:         "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/26.0 Mobile/15E148 Safari/604.1",
	Screen:            Size{Width: 393, Height: 852},
	Viewport:          Size{Width: 393, Height: 659},
	DeviceScaleFactor: 3,
	IsMobile:          true,
	HasTouch:          true,
}

// DeviceFor selects the emulated device for the mobile flag. Desktop runs get nil.
func DeviceFor(isMobile bool) *DeviceProfile {
	if !isMobile {
		return nil
	}
	d := IPhone15
	return &d
}
