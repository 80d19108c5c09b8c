// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package geo

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// EarthRadiusMeters is the mean Earth radius used by Distance.
const EarthRadiusMeters = 6371000

// degToRad is rounded to float64 before dividing, same as a runtime division.
const degToRad = float64(math.Pi) / 180

// ErrInvalidCoordinate is returned by Validate for coordinates that are not
// finite or fall outside [-90,90] / [-180,180].
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Position is a single sample delivered by a location source.
type Position struct {
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
	Timestamp time.Time `json:"timestamp"`
}

// Point drops the timestamp.
func (p Position) Point() Point {
	return Point{Latitude: p.Latitude, Longitude: p.Longitude}
}

// Distance returns the great-circle distance in meters between a and b using
// the haversine formula. Inputs are not validated.
func Distance(a, b Point) float64 {
	phi1 := a.Latitude * degToRad
	phi2 := b.Latitude * degToRad
	dPhi := (b.Latitude - a.Latitude) * degToRad
	dLambda := (b.Longitude - a.Longitude) * degToRad

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	h := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*(sinLambda*sinLambda)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// Validate reports whether p is a usable coordinate.
func Validate(p Point) error {
	if math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0) {
		return fmt.Errorf("%w: latitude %v is not finite", ErrInvalidCoordinate, p.Latitude)
	}
	if math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0) {
		return fmt.Errorf("%w: longitude %v is not finite", ErrInvalidCoordinate, p.Longitude)
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v must be between -90 and 90", ErrInvalidCoordinate, p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v must be between -180 and 180", ErrInvalidCoordinate, p.Longitude)
	}
	return nil
}
