// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package gps turns the NMEA stream of a serial GPS receiver into location
// fixes.
package gps

import (
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/relabs-tech/locator/internal/location"
)

const (
	knotsToMetersPerSecond = 0.514444

	// DefaultUERE is the user equivalent range error of a consumer receiver.
	DefaultUERE = 5.0

	// fallbackHDOP is used until the receiver has reported a GGA.
	fallbackHDOP = 10.0
)

// Decoder combines an RMC sentence (position, speed, course, date) with the
// GGA sentence of the same epoch (HDOP, altitude, fix quality). Receivers
// send the two in either order.
type Decoder struct {
	// UERE scales HDOP into a horizontal accuracy in meters.
	UERE float64

	rmc  *nmea.RMC // waiting for its GGA
	gga  *nmea.GGA // waiting for its RMC
	hdop float64   // last reported HDOP
}

func NewDecoder(uere float64) *Decoder {
	if uere <= 0 {
		uere = DefaultUERE
	}
	return &Decoder{UERE: uere}
}

// Decode consumes one line. It returns a fix when an epoch is complete, and
// nil for anything else: other sentence types, void fixes, input that is not
// NMEA. A parse error is returned for a corrupted sentence.
func (d *Decoder) Decode(line string) (*location.Fix, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return nil, nil
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return nil, err
	}

	switch sentence.DataType() {
	case nmea.TypeRMC:
		return d.onRMC(sentence.(nmea.RMC)), nil
	case nmea.TypeGGA:
		return d.onGGA(sentence.(nmea.GGA)), nil
	}
	return nil, nil
}

// Flush returns the pending RMC fix, if any, without waiting for its GGA.
func (d *Decoder) Flush() *location.Fix {
	if d.rmc == nil {
		return nil
	}
	fix := d.merge(*d.rmc, nil)
	d.rmc = nil
	return fix
}

func (d *Decoder) onRMC(m nmea.RMC) *location.Fix {
	if m.Validity != nmea.ValidRMC {
		// the receiver lost its fix; the previous epoch still stands
		return d.Flush()
	}
	if d.gga != nil && sameEpoch(d.gga.Time, m.Time) {
		fix := d.merge(m, d.gga)
		d.gga = nil
		return fix
	}

	// a newer epoch started before the previous one got its GGA
	prev := d.Flush()
	d.rmc = &m
	return prev
}

func (d *Decoder) onGGA(m nmea.GGA) *location.Fix {
	if m.FixQuality == nmea.Invalid {
		d.gga = nil
		return nil
	}
	if m.HDOP > 0 {
		d.hdop = m.HDOP
	}
	if d.rmc != nil && sameEpoch(d.rmc.Time, m.Time) {
		fix := d.merge(*d.rmc, &m)
		d.rmc = nil
		return fix
	}
	d.gga = &m
	return nil
}

func (d *Decoder) merge(rmc nmea.RMC, gga *nmea.GGA) *location.Fix {
	hdop := d.hdop
	if gga != nil && gga.HDOP > 0 {
		hdop = gga.HDOP
	}
	if hdop <= 0 {
		hdop = fallbackHDOP
	}

	fix := &location.Fix{
		Latitude:  rmc.Latitude,
		Longitude: rmc.Longitude,
		Accuracy:  hdop * d.UERE,
		Speed:     rmc.Speed * knotsToMetersPerSecond,
		Bearing:   rmc.Course,
		Provider:  location.ProviderGPS,
		Timestamp: timestamp(rmc.Date, rmc.Time),
	}
	if gga != nil {
		alt := gga.Altitude
		fix.Altitude = &alt
	}
	return fix
}

func sameEpoch(a, b nmea.Time) bool {
	return a.Valid && b.Valid &&
		a.Hour == b.Hour && a.Minute == b.Minute && a.Second == b.Second && a.Millisecond == b.Millisecond
}

// timestamp returns epoch millis for an RMC date and time, 0 when either is
// missing.
func timestamp(d nmea.Date, t nmea.Time) int64 {
	if !d.Valid || !t.Valid {
		return 0
	}
	year := 2000 + d.YY
	if d.YY >= 80 {
		year = 1900 + d.YY
	}
	ts := time.Date(year, time.Month(d.MM), d.DD, t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
	return ts.UnixMilli()
}
