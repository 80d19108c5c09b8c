// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/geofence/internal/geo"
	"github.com/relabs-tech/geofence/internal/gps"
)

// tokenTimeout bounds every wait on a paho token.
const tokenTimeout = 5 * time.Second

// subackFailure is the SUBACK return code for a refused subscription.
const subackFailure = 0x80

var errTokenTimeout = errors.New("mqtt: timed out waiting for broker")

// mqttClient is the subset of mqtt.Client used by MQTTProvider.
type mqttClient interface {
	IsConnected() bool
	Connect() mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// MQTTProvider consumes gps.Fix JSON messages, as published by the GPS
// producer, from an MQTT topic.
type MQTTProvider struct {
	client mqttClient
	topic  string
	qos    byte
	now    func() time.Time
	logger zerolog.Logger
}

func NewMQTTProvider(client mqtt.Client, topic string, logger zerolog.Logger) *MQTTProvider {
	return newMQTTProvider(client, topic, logger)
}

func newMQTTProvider(client mqttClient, topic string, logger zerolog.Logger) *MQTTProvider {
	return &MQTTProvider{
		client: client,
		topic:  topic,
		now:    time.Now,
		logger: logger.With().Str("component", "mqtt_provider").Str("topic", topic).Logger(),
	}
}

// RequestPermission connects to the broker if needed. A broker refusing the
// client as not authorised maps to Denied.
func (p *MQTTProvider) RequestPermission(ctx context.Context) (Permission, error) {
	if p.client.IsConnected() {
		return Granted, nil
	}

	err := waitToken(ctx, p.client.Connect())
	switch {
	case err == nil:
		return Granted, nil
	case errors.Is(err, packets.ErrorRefusedNotAuthorised), errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword):
		p.logger.Warn().Err(err).Msg("broker refused location access")
		return Denied, nil
	default:
		return Denied, fmt.Errorf("mqtt connect: %w", err)
	}
}

func (p *MQTTProvider) Watch(ctx context.Context, opts WatchOptions, fn func(geo.Position)) (Stream, error) {
	s := &mqttStream{
		client:   p.client,
		topic:    p.topic,
		throttle: NewThrottle(opts),
		fn:       fn,
		now:      p.now,
		logger:   p.logger,
	}

	token := p.client.Subscribe(p.topic, p.qos, s.handleMessage)
	if err := waitToken(ctx, token); err != nil {
		// the SUBACK may still arrive; drop the handler either way
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		p.client.Unsubscribe(p.topic)
		return nil, fmt.Errorf("mqtt subscribe %s: %w", p.topic, err)
	}
	if st, ok := token.(*mqtt.SubscribeToken); ok {
		for topic, code := range st.Result() {
			if code == subackFailure {
				return nil, fmt.Errorf("mqtt subscribe %s: %w", topic, ErrPermissionDenied)
			}
		}
	}
	p.logger.Info().Msg("subscribed to GPS fixes")
	return s, nil
}

type mqttStream struct {
	client   mqttClient
	topic    string
	throttle *Throttle
	fn       func(geo.Position)
	now      func() time.Time
	logger   zerolog.Logger

	mu      sync.Mutex
	stopped bool
	once    sync.Once
}

func (s *mqttStream) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var fix gps.Fix
	if err := json.Unmarshal(msg.Payload(), &fix); err != nil {
		s.logger.Warn().Err(err).Msg("invalid GPS fix payload")
		return
	}
	if !fix.Valid() {
		return
	}
	received := s.now()
	pos := fix.Position(received)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || !s.throttle.Allow(pos, received) {
		return
	}
	s.fn(pos)
}

func (s *mqttStream) Stop() {
	s.once.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()

		if err := waitToken(context.Background(), s.client.Unsubscribe(s.topic)); err != nil {
			s.logger.Warn().Err(err).Msg("mqtt unsubscribe")
		}
	})
}

// waitToken waits for a paho token, giving up on ctx cancellation or after
// tokenTimeout.
func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(tokenTimeout):
		return errTokenTimeout
	}
}
