// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"context"
	"time"

	"github.com/relabs-tech/geofence/internal/geo"
)

// Permission is the answer of a provider to an authorization request.
type Permission int

const (
	Denied Permission = iota
	Granted
)

func (p Permission) String() string {
	if p == Granted {
		return "granted"
	}
	return "denied"
}

// Accuracy is a hint passed to the provider; sources that cannot honour it
// ignore it.
type Accuracy int

const (
	AccuracyBalanced Accuracy = iota
	AccuracyHigh
)

// WatchOptions configures the upstream sampling cadence.
type WatchOptions struct {
	Accuracy         Accuracy
	DistanceInterval float64       // meters
	TimeInterval     time.Duration // minimum time between samples
}

// Provider is a source of device positions.
type Provider interface {
	// RequestPermission asks the platform for access to location data.
	// A refusal is reported as Denied with a nil error; errors are
	// reserved for sources that could not be reached at all.
	RequestPermission(ctx context.Context) (Permission, error)

	// Watch starts delivering positions to fn until the returned stream is
	// stopped. Calls to fn never overlap.
	Watch(ctx context.Context, opts WatchOptions, fn func(geo.Position)) (Stream, error)
}

// Stream is a running position subscription.
type Stream interface {
	// Stop ends the subscription. Once Stop returns the callback passed to
	// Watch is not invoked again. Stop is safe to call more than once.
	Stop()
}
