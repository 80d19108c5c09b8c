// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package alert

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/geofence/internal/geofence"
)

const (
	publishTimeout = 2 * time.Second
	// queueSize bounds the messages waiting for the broker.
	queueSize = 32
)

var errPublishTimeout = errors.New("publish timed out")

// publisher is the subset of mqtt.Client used here.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type message struct {
	topic    string
	retained bool
	payload  []byte
}

// MQTT publishes the status (retained) on every event and the event itself
// on transitions. Publishing happens on its own goroutine so a slow or absent
// broker never holds up the monitor; when the queue is full new messages are
// dropped.
type MQTT struct {
	client      publisher
	statusTopic string
	alertTopic  string
	logger      zerolog.Logger

	queue chan message
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewMQTT(client mqtt.Client, statusTopic, alertTopic string, logger zerolog.Logger) *MQTT {
	return newMQTT(client, statusTopic, alertTopic, logger)
}

func newMQTT(client publisher, statusTopic, alertTopic string, logger zerolog.Logger) *MQTT {
	m := &MQTT{
		client:      client,
		statusTopic: statusTopic,
		alertTopic:  alertTopic,
		logger:      logger.With().Str("component", "alert_mqtt").Logger(),
		queue:       make(chan message, queueSize),
		done:        make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *MQTT) OnEvent(e geofence.Event) {
	status, err := json.Marshal(e.Status)
	if err != nil {
		m.logger.Error().Err(err).Msg("status JSON marshal error")
		return
	}
	m.enqueue(message{topic: m.statusTopic, retained: true, payload: status})

	if !e.Changed || m.alertTopic == "" {
		return
	}
	event, err := json.Marshal(e)
	if err != nil {
		m.logger.Error().Err(err).Msg("event JSON marshal error")
		return
	}
	m.enqueue(message{topic: m.alertTopic, payload: event})
}

// Close publishes what is still queued and stops the publisher goroutine.
// Events after Close are discarded.
func (m *MQTT) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()
	<-m.done
}

func (m *MQTT) enqueue(msg message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	select {
	case m.queue <- msg:
	default:
		m.logger.Warn().Str("topic", msg.topic).Msg("publish queue full, message dropped")
	}
}

func (m *MQTT) run() {
	defer close(m.done)
	for msg := range m.queue {
		if err := m.publish(msg); err != nil {
			m.logger.Warn().Err(err).Str("topic", msg.topic).Msg("publish error")
		}
	}
}

func (m *MQTT) publish(msg message) error {
	token := m.client.Publish(msg.topic, 0, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return errPublishTimeout
	}
	return token.Error()
}
