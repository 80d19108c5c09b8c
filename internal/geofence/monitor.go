// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package geofence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/geofence/internal/geo"
	"github.com/relabs-tech/geofence/internal/location"
)

// Monitor decides from a stream of positions whether the device is within
// ThresholdMeters of the reference point. One monitor watches one fence and
// owns exactly one RangeStatus.
type Monitor struct {
	cfg       Config
	provider  location.Provider
	logger    zerolog.Logger
	observers []Observer
	now       func() time.Time

	// mu serializes Start/Stop bookkeeping and every update.
	mu      sync.Mutex
	session *Subscription

	stateMu sync.RWMutex
	status  RangeStatus
}

// Subscription is the handle returned by Start.
type Subscription struct {
	ID string

	monitor *Monitor
	stream  location.Stream
	stopped bool // guarded by monitor.mu
	once    sync.Once
}

// Stop is shorthand for Monitor.Stop(s).
func (s *Subscription) Stop() {
	if s == nil || s.monitor == nil {
		return
	}
	s.monitor.Stop(s)
}

func New(cfg Config, provider location.Provider, logger zerolog.Logger, observers ...Observer) (*Monitor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: nil location provider", ErrInvalidConfig)
	}
	return &Monitor{
		cfg:       cfg,
		provider:  provider,
		logger:    logger.With().Str("component", "geofence").Logger(),
		observers: observers,
		now:       time.Now,
	}, nil
}

// Status returns the latest status.
func (m *Monitor) Status() RangeStatus {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.status
}

// Start requests location permission and, when granted, begins consuming
// positions. On denial the status records ReasonPermissionDenied, the stream
// is never opened and a no-op subscription is returned with
// ErrPermissionDenied. Denial is not retried; call Start again once access
// has been granted.
func (m *Monitor) Start(ctx context.Context) (*Subscription, error) {
	sub := &Subscription{ID: uuid.NewString(), monitor: m}

	m.mu.Lock()
	if m.session != nil {
		m.mu.Unlock()
		return nil, ErrAlreadyMonitoring
	}
	m.session = sub
	// a new session starts from an unknown status
	m.setStatus(RangeStatus{UpdatedAt: m.now()})
	m.mu.Unlock()

	log := m.logger.With().Str("session", sub.ID).Logger()

	perm, err := m.provider.RequestPermission(ctx)
	if err != nil {
		m.abort(sub, ReasonUnavailable)
		return noopSubscription(sub), fmt.Errorf("request location permission: %w", err)
	}
	if perm != location.Granted {
		log.Warn().Msg("location permission denied")
		m.abort(sub, ReasonPermissionDenied)
		return noopSubscription(sub), ErrPermissionDenied
	}

	opts := location.WatchOptions{
		Accuracy:         location.AccuracyHigh,
		DistanceInterval: m.cfg.MinDistanceIntervalMeters,
		TimeInterval:     m.cfg.MinTimeInterval,
	}
	stream, err := m.provider.Watch(ctx, opts, func(p geo.Position) {
		m.deliver(sub, p)
	})
	if err != nil {
		if errors.Is(err, location.ErrPermissionDenied) {
			log.Warn().Err(err).Msg("location permission revoked")
			m.abort(sub, ReasonPermissionDenied)
			return noopSubscription(sub), ErrPermissionDenied
		}
		m.abort(sub, ReasonUnavailable)
		return noopSubscription(sub), fmt.Errorf("watch position: %w", err)
	}

	m.mu.Lock()
	sub.stream = stream
	m.mu.Unlock()

	log.Info().
		Float64("ref_lat", m.cfg.Reference.Latitude).
		Float64("ref_lon", m.cfg.Reference.Longitude).
		Float64("threshold_m", m.cfg.ThresholdMeters).
		Msg("geofence monitoring started")
	return sub, nil
}

// Stop releases the upstream stream of sub. Once Stop returns no further
// update from that stream is applied. It is safe to call more than once, with
// a nil subscription, or on a monitor that never started.
func (m *Monitor) Stop(sub *Subscription) {
	if sub == nil || sub.monitor != m {
		return
	}
	sub.once.Do(func() {
		m.mu.Lock()
		sub.stopped = true
		if m.session == sub {
			m.session = nil
		}
		stream := sub.stream
		sub.stream = nil
		m.mu.Unlock()

		// the stream takes its own lock around callbacks; stop it
		// outside mu to keep the lock order one way
		if stream != nil {
			stream.Stop()
			m.logger.Info().Str("session", sub.ID).Msg("geofence monitoring stopped")
		}
	})
}

// OnUpdate applies one position sample and returns the resulting status.
// Invalid coordinates fail with ErrInvalidInput; the last good decision is
// kept and only the error reason is updated.
func (m *Monitor) OnUpdate(p geo.Position) (RangeStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := ""
	if m.session != nil {
		session = m.session.ID
	}
	return m.update(session, p)
}

func (m *Monitor) deliver(sub *Subscription, p geo.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub.stopped || m.session != sub {
		return
	}
	if _, err := m.update(sub.ID, p); err != nil {
		m.logger.Warn().Err(err).Str("session", sub.ID).Msg("position rejected")
	}
}

// update must be called with mu held.
func (m *Monitor) update(session string, p geo.Position) (RangeStatus, error) {
	prev := m.Status()

	if err := geo.Validate(p.Point()); err != nil {
		next := prev
		next.Error = ReasonInvalidInput
		next.UpdatedAt = m.now()
		m.commit(session, prev, next)
		return next, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	d := geo.Distance(p.Point(), m.cfg.Reference)
	pos := p
	next := RangeStatus{
		WithinRange:    d <= m.cfg.ThresholdMeters,
		DistanceMeters: d,
		Known:          true,
		Position:       &pos,
		UpdatedAt:      m.now(),
	}
	m.commit(session, prev, next)
	return next, nil
}

func (m *Monitor) commit(session string, prev, next RangeStatus) {
	m.setStatus(next)
	m.notify(Event{
		Session:  session,
		Status:   next,
		Previous: prev,
		Changed:  changed(prev, next),
	})
}

// abort ends a session that never got a stream.
func (m *Monitor) abort(sub *Subscription, reason Reason) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub.stopped = true
	if m.session == sub {
		m.session = nil
	}
	prev := m.Status()
	next := RangeStatus{Error: reason, UpdatedAt: m.now()}
	m.commit(sub.ID, prev, next)
}

func (m *Monitor) setStatus(s RangeStatus) {
	m.stateMu.Lock()
	m.status = s
	m.stateMu.Unlock()
}

func (m *Monitor) notify(e Event) {
	for _, o := range m.observers {
		o.OnEvent(e)
	}
}

// noopSubscription returns an inert handle for a session that never
// started a stream.
func noopSubscription(sub *Subscription) *Subscription {
	return &Subscription{ID: sub.ID, stopped: true}
}
