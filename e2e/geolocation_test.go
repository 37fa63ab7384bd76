//go:build e2e

package e2e

import (
	"strconv"
	"testing"
)

// TestGeolocation checks the position readout reflects the configured coordinates
func TestGeolocation(t *testing.T) {
	app := authApp(t)

	err := app.ExpectLocation(
		strconv.FormatFloat(settings.Latitude, 'f', -1, 64),
		strconv.FormatFloat(settings.Longitude, 'f', -1, 64),
	)
	if err != nil {
		t.Fatal(err)
	}
}
