// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	serial "github.com/jacobsa/go-serial/serial"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/geofence/internal/config"
	"github.com/relabs-tech/geofence/internal/gps"
)

// RunGPSProducer opens the GPS serial port, decodes NMEA sentences, and
// publishes every fix as retained JSON to TOPIC_GPS, where the monitor's
// mqtt location source picks it up.
func RunGPSProducer(cfg *config.Config, logger zerolog.Logger) error {
	ctx, cancel := signalContext()
	defer cancel()

	// ---- 1) Connect to MQTT broker ----
	client, err := connectMQTT(cfg, cfg.MQTTClientIDGPS, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	// ---- 2) Open GPS serial port ----
	// Reads time out after 100ms so shutdown is noticed between sentences.
	serialOpts := serial.OpenOptions{
		PortName:              cfg.GPSSerialPort,
		BaudRate:              cfg.GPSBaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 100,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return fmt.Errorf("open gps serial %s: %w", cfg.GPSSerialPort, err)
	}
	defer port.Close()
	logger.Info().Str("port", serialOpts.PortName).Uint("baud", serialOpts.BaudRate).Msg("GPS serial port opened")

	dec := gps.NewDecoder(port)
	for {
		if ctx.Err() != nil {
			logger.Info().Msg("GPS producer shutting down")
			return nil
		}

		fix, err := dec.Next()
		switch {
		case err == nil:
			publishFix(client, cfg.TopicGPS, fix, logger)
		case errors.Is(err, io.EOF):
			// read timeout with no data
			time.Sleep(50 * time.Millisecond)
		default:
			return fmt.Errorf("gps read: %w", err)
		}
	}
}

func publishFix(client mqtt.Client, topic string, fix gps.Fix, logger zerolog.Logger) {
	payload, err := json.Marshal(fix)
	if err != nil {
		logger.Warn().Err(err).Msg("GPS JSON marshal error")
		return
	}

	token := client.Publish(topic, 0, true, payload)
	if !token.WaitTimeout(2 * time.Second) {
		logger.Warn().Str("topic", topic).Msg("GPS publish timeout")
		return
	}
	if err := token.Error(); err != nil {
		logger.Warn().Err(err).Str("topic", topic).Msg("GPS publish error")
		return
	}
	logger.Debug().
		Float64("lat", fix.Latitude).
		Float64("lon", fix.Longitude).
		Str("validity", fix.Validity).
		Msg("published GPS fix")
}
