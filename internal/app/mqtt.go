// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/geofence/internal/config"
	"github.com/relabs-tech/geofence/internal/connectivity"
)

const connectTimeout = 5 * time.Second

// mqttOptions builds client options for clientID from cfg. When conn is
// non-nil it tracks the broker link.
func mqttOptions(cfg *config.Config, clientID string, conn *connectivity.Monitor) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)
	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername).SetPassword(cfg.MQTTPassword)
	}
	if conn != nil {
		conn.Attach(opts)
	}
	return opts
}

// connectMQTT connects and fails if the broker does not answer in time.
func connectMQTT(cfg *config.Config, clientID string, logger zerolog.Logger) (mqtt.Client, error) {
	client := mqtt.NewClient(mqttOptions(cfg, clientID, nil))
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect %s: timeout", cfg.MQTTBroker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.MQTTBroker, err)
	}
	logger.Info().Str("broker", cfg.MQTTBroker).Str("client_id", clientID).Msg("connected to MQTT broker")
	return client, nil
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
