// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package alert holds the observers that turn geofence events into
// user-facing signals: log lines, MQTT and Redis messages, a status LED.
package alert

import (
	"github.com/rs/zerolog"

	"github.com/relabs-tech/geofence/internal/geofence"
)

// OutOfRangeMessage is the alert shown for every sample outside the fence.
const OutOfRangeMessage = "Location Error: You are not within the required range."

// Log writes geofence events to a zerolog logger.
type Log struct {
	logger zerolog.Logger
}

func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "alert").Logger()}
}

func (l *Log) OnEvent(e geofence.Event) {
	st := e.Status

	switch st.Error {
	case geofence.ReasonPermissionDenied:
		l.logger.Error().Str("session", e.Session).Msg("Permission to access location was denied")
		return
	case geofence.ReasonUnavailable:
		l.logger.Error().Str("session", e.Session).Msg("location source unavailable")
		return
	case geofence.ReasonInvalidInput:
		l.logger.Warn().Str("session", e.Session).Msg("invalid position ignored")
		return
	}

	if e.Entered() {
		l.logger.Info().
			Str("session", e.Session).
			Float64("distance_m", st.DistanceMeters).
			Msg("entered geofence")
	} else if e.Exited() {
		l.logger.Info().
			Str("session", e.Session).
			Float64("distance_m", st.DistanceMeters).
			Msg("left geofence")
	}

	if !st.WithinRange {
		l.logger.Warn().
			Str("session", e.Session).
			Float64("distance_m", st.DistanceMeters).
			Msg(OutOfRangeMessage)
	}
}
