// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package geofence

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/relabs-tech/geofence/internal/geo"
)

var (
	ErrPermissionDenied  = errors.New("geofence: location permission denied")
	ErrInvalidInput      = errors.New("geofence: invalid position")
	ErrAlreadyMonitoring = errors.New("geofence: monitoring already started")
	ErrInvalidConfig     = errors.New("geofence: invalid config")
)

// Reason is the error state carried in RangeStatus.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonPermissionDenied Reason = "permission_denied"
	ReasonInvalidInput     Reason = "invalid_input"
	ReasonUnavailable      Reason = "unavailable"
)

// Config describes one fence and the sampling cadence requested upstream.
type Config struct {
	Reference                 geo.Point
	ThresholdMeters           float64
	MinDistanceIntervalMeters float64
	MinTimeInterval           time.Duration
}

func (c Config) validate() error {
	if err := geo.Validate(c.Reference); err != nil {
		return fmt.Errorf("%w: reference point: %v", ErrInvalidConfig, err)
	}
	if math.IsNaN(c.ThresholdMeters) || c.ThresholdMeters < 0 {
		return fmt.Errorf("%w: threshold must be >= 0, got %v", ErrInvalidConfig, c.ThresholdMeters)
	}
	if math.IsNaN(c.MinDistanceIntervalMeters) || c.MinDistanceIntervalMeters < 0 {
		return fmt.Errorf("%w: distance interval must be >= 0, got %v", ErrInvalidConfig, c.MinDistanceIntervalMeters)
	}
	if c.MinTimeInterval < 0 {
		return fmt.Errorf("%w: time interval must be >= 0, got %v", ErrInvalidConfig, c.MinTimeInterval)
	}
	return nil
}

// RangeStatus is the derived geofence decision.
type RangeStatus struct {
	WithinRange    bool          `json:"within_range"`
	DistanceMeters float64       `json:"distance_m"`
	Known          bool          `json:"known"` // a valid sample was seen this session
	Position       *geo.Position `json:"position,omitempty"`
	Error          Reason        `json:"error,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Event is emitted to observers after every status computation.
type Event struct {
	Session  string      `json:"session"`
	Status   RangeStatus `json:"status"`
	Previous RangeStatus `json:"previous"`
	Changed  bool        `json:"changed"`
}

// Entered reports a transition from outside (or unknown) to inside.
func (e Event) Entered() bool {
	return e.Status.WithinRange && !e.Previous.WithinRange
}

// Exited reports a transition from inside to outside.
func (e Event) Exited() bool {
	return !e.Status.WithinRange && e.Previous.WithinRange
}

func changed(prev, next RangeStatus) bool {
	return prev.WithinRange != next.WithinRange ||
		prev.Error != next.Error ||
		prev.Known != next.Known
}
