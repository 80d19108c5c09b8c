// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package alert

import (
	"fmt"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/geofence/internal/geofence"
)

// LED lights a GPIO pin while the device is inside the fence.
type LED struct {
	pin    gpio.PinOut
	logger zerolog.Logger
}

// OpenLED initializes periph and drives pinName low.
func OpenLED(pinName string, logger zerolog.Logger) (*LED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("LED pin %q not found", pinName)
	}
	return NewLED(pin, logger)
}

func NewLED(pin gpio.PinOut, logger zerolog.Logger) (*LED, error) {
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("LED pin %s: %w", pin, err)
	}
	return &LED{
		pin:    pin,
		logger: logger.With().Str("component", "alert_led").Str("pin", pin.String()).Logger(),
	}, nil
}

func (l *LED) OnEvent(e geofence.Event) {
	level := gpio.Low
	if e.Status.WithinRange {
		level = gpio.High
	}
	if err := l.pin.Out(level); err != nil {
		l.logger.Warn().Err(err).Msg("LED write error")
	}
}

// Off turns the LED off.
func (l *LED) Off() error {
	return l.pin.Out(gpio.Low)
}
