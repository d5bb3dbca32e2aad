package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/locator/internal/location"
)

func TestFormatFix(t *testing.T) {
	alt := 545.4
	f := location.Fix{
		Latitude: 48.1173, Longitude: 11.516667, Accuracy: 4.5,
		Altitude: &alt, Speed: 5.1, Bearing: 84.4, Timestamp: 1773483330000,
	}
	assert.Equal(t,
		"[GPS ] lat=48.117300 lon=11.516667 acc=4.5m alt=545.4m speed=5.1m/s bearing=84.4° ts=1773483330000",
		formatFix("[GPS ]", f))

	f.Altitude = nil
	assert.Contains(t, formatFix("[NET ]", f), "alt=n/a")
}
