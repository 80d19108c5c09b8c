// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/geofence/internal/geo"
)

// Mock is a scripted provider. Positions are pushed with Emit and delivered
// synchronously to the active watcher, if any, subject to its WatchOptions.
type Mock struct {
	mu         sync.Mutex
	permission Permission
	watchErr   error
	fn         func(geo.Position)
	opts       WatchOptions
	throttle   *Throttle
	now        func() time.Time

	PermissionRequests int
	Watches            int
}

func NewMock(permission Permission) *Mock {
	return &Mock{permission: permission, now: time.Now}
}

// FailWatch makes subsequent Watch calls return err.
func (m *Mock) FailWatch(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchErr = err
}

// SetPermission changes the answer to future permission requests.
func (m *Mock) SetPermission(p Permission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permission = p
}

func (m *Mock) RequestPermission(ctx context.Context) (Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PermissionRequests++
	return m.permission, ctx.Err()
}

func (m *Mock) Watch(_ context.Context, opts WatchOptions, fn func(geo.Position)) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Watches++
	if m.watchErr != nil {
		return nil, m.watchErr
	}
	m.fn = fn
	m.opts = opts
	m.throttle = NewThrottle(opts)
	return &mockStream{m: m}, nil
}

// Options returns the options of the last Watch call.
func (m *Mock) Options() WatchOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opts
}

// Active reports whether a watcher is registered.
func (m *Mock) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fn != nil
}

// Emit offers p to the active watcher and reports whether one was active.
// Samples inside the watch intervals are dropped.
func (m *Mock) Emit(p geo.Position) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fn == nil {
		return false
	}
	if m.throttle.Allow(p, m.now()) {
		m.fn(p)
	}
	return true
}

type mockStream struct {
	m *Mock
}

func (s *mockStream) Stop() {
	s.m.mu.Lock()
	s.m.fn = nil
	s.m.mu.Unlock()
}

// Walk generates positions that swing north and south of center along the
// meridian, crossing back and forth over a fence of the given radius.
type Walk struct {
	center    geo.Point
	amplitude float64 // meters
	period    time.Duration
	start     time.Time
}

func NewWalk(center geo.Point, amplitudeMeters float64, period time.Duration) *Walk {
	return &Walk{
		center:    center,
		amplitude: amplitudeMeters,
		period:    period,
		start:     time.Now(),
	}
}

// At returns the position at time t.
func (w *Walk) At(t time.Time) geo.Position {
	elapsed := t.Sub(w.start).Seconds()
	offset := w.amplitude * math.Sin(2*math.Pi*elapsed/w.period.Seconds())
	// meters to degrees of latitude
	dLat := offset / geo.EarthRadiusMeters * 180 / math.Pi
	return geo.Position{
		Latitude:  w.center.Latitude + dLat,
		Longitude: w.center.Longitude,
		Timestamp: t,
	}
}

// Run emits a walk position on m every interval until ctx is done.
func (w *Walk) Run(ctx context.Context, m *Mock, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			m.Emit(w.At(t))
		}
	}
}
