// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"time"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/relabs-tech/geofence/internal/geo"
)

// Validity values carried over from RMC.
const (
	ValidityActive = "A"
	ValidityVoid   = "V"
)

// Fix represents a single combined GPS fix suitable for JSON and MQTT.
type Fix struct {
	Time       string  `json:"time"`        // e.g. "12:34:56.0000"
	Date       string  `json:"date"`        // e.g. "13/06/94"
	Latitude   float64 `json:"lat"`         // decimal degrees
	Longitude  float64 `json:"lon"`         // decimal degrees
	SpeedKnots float64 `json:"speed_knots"` // speed over ground
	CourseDeg  float64 `json:"course_deg"`  // course over ground
	Validity   string  `json:"validity"`    // "A" (valid) / "V" (void)

	// Unix milliseconds; zero when the sentence carried no usable date.
	TimestampMs int64 `json:"ts_ms,omitempty"`
}

// Valid reports whether the receiver had a fix when the sentence was produced.
func (f Fix) Valid() bool {
	return f.Validity == ValidityActive
}

// Position converts the fix into a geo.Position. When the fix has no
// timestamp the receive time is used instead.
func (f Fix) Position(received time.Time) geo.Position {
	ts := received
	if f.TimestampMs != 0 {
		ts = time.UnixMilli(f.TimestampMs).UTC()
	}
	return geo.Position{
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		Timestamp: ts,
	}
}

// FromSentence builds a Fix from an RMC or GGA sentence. Other sentence types
// return false.
func FromSentence(sentence nmea.Sentence) (Fix, bool) {
	switch sentence.DataType() {
	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)
		f := Fix{
			Time:       m.Time.String(),
			Date:       m.Date.String(),
			Latitude:   m.Latitude,
			Longitude:  m.Longitude,
			SpeedKnots: m.Speed,
			CourseDeg:  m.Course,
			Validity:   string(m.Validity),
		}
		if ts, ok := timestamp(m.Date, m.Time); ok {
			f.TimestampMs = ts.UnixMilli()
		}
		return f, true

	case nmea.TypeGGA:
		m := sentence.(nmea.GGA)
		// GGA has no date and no validity flag; fix quality "0" means no fix.
		validity := ValidityActive
		if m.FixQuality == nmea.Invalid || m.FixQuality == "" {
			validity = ValidityVoid
		}
		return Fix{
			Time:      m.Time.String(),
			Latitude:  m.Latitude,
			Longitude: m.Longitude,
			Validity:  validity,
		}, true

	default:
		return Fix{}, false
	}
}

func timestamp(d nmea.Date, t nmea.Time) (time.Time, bool) {
	if !d.Valid || !t.Valid {
		return time.Time{}, false
	}
	year := 2000 + d.YY
	if d.YY >= 80 {
		year = 1900 + d.YY
	}
	return time.Date(year, time.Month(d.MM), d.DD,
		t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC), true
}
