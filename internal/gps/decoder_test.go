package gps

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/locator/internal/location"
)

const (
	rmc1530 = "$GPRMC,101530.00,A,4807.038,N,01131.000,E,010.0,084.4,140326,003.1,W*47"
	gga1530 = "$GPGGA,101530.00,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*62"
	rmc1531 = "$GPRMC,101531.00,A,4807.040,N,01131.010,E,000.0,084.4,140326,003.1,W*49"
	rmcVoid = "$GPRMC,101532.00,V,,,,,,,140326,,,N*7B"
	ggaNone = "$GPGGA,101533.00,,,,,0,00,99.99,,,,,,*63"
	gga1534 = "$GPGGA,101534.00,4807.050,N,01131.020,E,1,06,1.6,540.0,M,46.9,M,,*6B"
	rmc1534 = "$GPRMC,101534.00,A,4807.050,N,01131.020,E,001.0,270.0,140326,003.1,W*42"
	gsv     = "$GPGSV,1,1,01,05,40,083,46*40"
)

func at(sec int) int64 {
	return time.Date(2026, 3, 14, 10, 15, sec, 0, time.UTC).UnixMilli()
}

func TestDecoderRMCThenGGA(t *testing.T) {
	d := NewDecoder(5)

	fix, err := d.Decode(rmc1530)
	require.NoError(t, err)
	assert.Nil(t, fix, "RMC waits for the GGA of its epoch")

	fix, err = d.Decode(gga1530)
	require.NoError(t, err)
	require.NotNil(t, fix)

	assert.InDelta(t, 48.1173, fix.Latitude, 1e-6)
	assert.InDelta(t, 11.516667, fix.Longitude, 1e-6)
	assert.InDelta(t, 4.5, fix.Accuracy, 1e-9)
	assert.InDelta(t, 5.14444, fix.Speed, 1e-9)
	assert.InDelta(t, 84.4, fix.Bearing, 1e-9)
	require.NotNil(t, fix.Altitude)
	assert.InDelta(t, 545.4, *fix.Altitude, 1e-9)
	assert.Equal(t, location.ProviderGPS, fix.Provider)
	assert.Equal(t, at(30), fix.Timestamp)
}

func TestDecoderGGAThenRMC(t *testing.T) {
	d := NewDecoder(5)

	fix, err := d.Decode(gga1534)
	require.NoError(t, err)
	assert.Nil(t, fix)

	fix, err = d.Decode(rmc1534)
	require.NoError(t, err)
	require.NotNil(t, fix)
	assert.InDelta(t, 8.0, fix.Accuracy, 1e-9)
	assert.InDelta(t, 270.0, fix.Bearing, 1e-9)
	assert.Equal(t, at(34), fix.Timestamp)
}

func TestDecoderVoidFlushesPendingEpoch(t *testing.T) {
	d := NewDecoder(5)
	for _, line := range []string{rmc1530, gga1530} {
		_, err := d.Decode(line)
		require.NoError(t, err)
	}

	fix, err := d.Decode(rmc1531)
	require.NoError(t, err)
	assert.Nil(t, fix)

	fix, err = d.Decode(rmcVoid)
	require.NoError(t, err)
	require.NotNil(t, fix, "the last valid epoch is emitted without its GGA")
	assert.Equal(t, at(31), fix.Timestamp)
	assert.InDelta(t, 4.5, fix.Accuracy, 1e-9, "HDOP carries over from the previous GGA")
	assert.Nil(t, fix.Altitude)
	assert.Equal(t, 0.0, fix.Speed)

	fix, err = d.Decode(rmcVoid)
	require.NoError(t, err)
	assert.Nil(t, fix)
	assert.Nil(t, d.Flush())
}

func TestDecoderSkipsInvalidGGA(t *testing.T) {
	d := NewDecoder(5)
	fix, err := d.Decode(ggaNone)
	require.NoError(t, err)
	assert.Nil(t, fix)

	// no GGA was kept, so the RMC stays pending
	fix, err = d.Decode(rmc1534)
	require.NoError(t, err)
	assert.Nil(t, fix)

	fix = d.Flush()
	require.NotNil(t, fix)
	assert.InDelta(t, fallbackHDOP*5, fix.Accuracy, 1e-9)
}

func TestDecoderIgnoresNoise(t *testing.T) {
	d := NewDecoder(0)
	assert.Equal(t, DefaultUERE, d.UERE)

	for _, line := range []string{"", "   ", "garbage", gsv} {
		fix, err := d.Decode(line)
		assert.NoError(t, err, line)
		assert.Nil(t, fix, line)
	}

	_, err := d.Decode("$GPRMC,101530.00,A,4807.038,N,01131.000,E,010.0,084.4,140326,003.1,W*00")
	assert.Error(t, err, "bad checksum")
}
