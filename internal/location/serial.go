// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/geofence/internal/geo"
	"github.com/relabs-tech/geofence/internal/gps"
)

// ErrPermissionDenied is returned by Watch when the source refuses access
// after permission was granted (e.g. revoked in between).
var ErrPermissionDenied = errors.New("location permission denied")

// idleBackoff is how long the reader waits after a read returned no data.
const idleBackoff = 50 * time.Millisecond

// SerialProvider reads NMEA sentences from a serial GPS receiver.
type SerialProvider struct {
	opts   serial.OpenOptions
	logger zerolog.Logger

	// open is serial.Open and now is time.Now; replaced in tests.
	open func(serial.OpenOptions) (io.ReadWriteCloser, error)
	now  func() time.Time
}

// NewSerialProvider returns a provider for the receiver on portName.
// Reads time out every 100ms so a stopped stream is noticed promptly.
func NewSerialProvider(portName string, baudRate uint, logger zerolog.Logger) *SerialProvider {
	return &SerialProvider{
		opts: serial.OpenOptions{
			PortName:              portName,
			BaudRate:              baudRate,
			DataBits:              8,
			StopBits:              1,
			MinimumReadSize:       0,
			ParityMode:            serial.PARITY_NONE,
			InterCharacterTimeout: 100,
		},
		logger: logger.With().Str("component", "serial_provider").Str("port", portName).Logger(),
		open:   serial.Open,
		now:    time.Now,
	}
}

// RequestPermission opens and closes the device once. Lack of access rights
// on the device node is the serial equivalent of a refused location
// permission.
func (p *SerialProvider) RequestPermission(ctx context.Context) (Permission, error) {
	if err := ctx.Err(); err != nil {
		return Denied, err
	}

	port, err := p.open(p.opts)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			p.logger.Warn().Err(err).Msg("access to GPS serial port denied")
			return Denied, nil
		}
		return Denied, fmt.Errorf("open %s: %w", p.opts.PortName, err)
	}
	port.Close()
	return Granted, nil
}

func (p *SerialProvider) Watch(ctx context.Context, opts WatchOptions, fn func(geo.Position)) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	port, err := p.open(p.opts)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("open %s: %w", p.opts.PortName, ErrPermissionDenied)
		}
		return nil, fmt.Errorf("open %s: %w", p.opts.PortName, err)
	}
	p.logger.Info().Uint("baud", p.opts.BaudRate).Msg("GPS serial port opened")

	s := &serialStream{
		port:   port,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		now:    p.now,
		logger: p.logger,
	}
	go s.run(gps.NewDecoder(port), NewThrottle(opts), fn)
	return s, nil
}

type serialStream struct {
	port   io.ReadWriteCloser
	quit   chan struct{}
	done   chan struct{}
	now    func() time.Time
	logger zerolog.Logger

	mu      sync.Mutex
	stopped bool
	once    sync.Once
}

func (s *serialStream) run(dec *gps.Decoder, throttle *Throttle, fn func(geo.Position)) {
	defer close(s.done)

	for {
		select {
		case <-s.quit:
			return
		default:
		}

		fix, err := dec.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				// read timeout with no data
				select {
				case <-s.quit:
					return
				case <-time.After(idleBackoff):
				}
				continue
			}
			select {
			case <-s.quit:
			default:
				s.logger.Error().Err(err).Msg("GPS read error, stream ended")
			}
			return
		}

		if !fix.Valid() {
			continue
		}
		received := s.now()
		pos := fix.Position(received)
		if !throttle.Allow(pos, received) {
			continue
		}
		s.deliver(fn, pos)
	}
}

func (s *serialStream) deliver(fn func(geo.Position), pos geo.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	fn(pos)
}

func (s *serialStream) Stop() {
	s.once.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()

		close(s.quit)
		if err := s.port.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("closing GPS serial port")
		}
		s.logger.Info().Msg("GPS serial stream stopped")
	})
}
