// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package connectivity

import (
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// Monitor tracks whether the broker link is up. It starts disconnected and
// is driven by the paho connection handlers installed with Attach.
type Monitor struct {
	logger zerolog.Logger

	mu        sync.RWMutex
	connected bool
	listeners []func(connected bool)
}

func New(logger zerolog.Logger) *Monitor {
	return &Monitor{logger: logger.With().Str("component", "connectivity").Logger()}
}

// Attach installs connect and connection-lost handlers on opts.
func (m *Monitor) Attach(opts *mqtt.ClientOptions) *mqtt.ClientOptions {
	return opts.
		SetOnConnectHandler(func(mqtt.Client) {
			m.Set(true, nil)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			m.Set(false, err)
		})
}

// OnChange registers fn to be called on every connectivity transition.
func (m *Monitor) OnChange(fn func(connected bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Monitor) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Set records the link state; cause is the error that dropped the link, if
// any. Listeners only hear about actual transitions.
func (m *Monitor) Set(connected bool, cause error) {
	m.mu.Lock()
	if m.connected == connected {
		m.mu.Unlock()
		return
	}
	m.connected = connected
	listeners := append([]func(bool){}, m.listeners...)
	m.mu.Unlock()

	if connected {
		m.logger.Info().Msg("broker connection established")
	} else {
		m.logger.Warn().Err(cause).Msg("No Internet Connection: please check your connection")
	}

	for _, fn := range listeners {
		fn(connected)
	}
}
