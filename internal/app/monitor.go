// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/geofence/internal/alert"
	"github.com/relabs-tech/geofence/internal/config"
	"github.com/relabs-tech/geofence/internal/connectivity"
	"github.com/relabs-tech/geofence/internal/geo"
	"github.com/relabs-tech/geofence/internal/geofence"
	"github.com/relabs-tech/geofence/internal/location"
	"github.com/relabs-tech/geofence/internal/web"
)

// RunMonitor watches the configured location source, keeps the geofence
// status and fans every update out to the alert sinks and the web server.
// It returns when interrupted.
func RunMonitor(cfg *config.Config, logger zerolog.Logger) error {
	ctx, cancel := signalContext()
	defer cancel()

	fence := fenceConfig(cfg)

	// ---- 1) MQTT link, used for alerts and the mqtt location source ----
	conn := connectivity.New(logger)
	// the hub reads the monitor built below
	var mon *geofence.Monitor
	hub := web.NewHub(func() geofence.RangeStatus { return mon.Status() }, logger)
	conn.OnChange(hub.OnConnectivity)
	opts := mqttOptions(cfg, cfg.MQTTClientIDMonitor, conn)
	if cfg.LocationSource != config.SourceMQTT {
		// nothing depends on the broker being up at start
		opts.SetConnectRetry(true)
	}
	client := mqtt.NewClient(opts)
	if cfg.LocationSource != config.SourceMQTT {
		if token := client.Connect(); !token.WaitTimeout(connectTimeout) {
			logger.Warn().Str("broker", cfg.MQTTBroker).Msg("broker not reachable yet, retrying in background")
		}
	}
	defer client.Disconnect(250)

	// ---- 2) Location source ----
	provider, mock, err := newProvider(cfg, client, logger)
	if err != nil {
		return err
	}
	if mock != nil {
		walk := location.NewWalk(fence.Reference, cfg.MockWalkAmplitudeMeters, time.Duration(cfg.MockWalkPeriodMs)*time.Millisecond)
		go walk.Run(ctx, mock, time.Duration(cfg.MockSampleIntervalMs)*time.Millisecond)
		logger.Info().Float64("amplitude_m", cfg.MockWalkAmplitudeMeters).Msg("using mock location walk")
	}

	// ---- 3) Sinks ----
	mqttSink := alert.NewMQTT(client, cfg.TopicGeofenceStatus, cfg.TopicGeofenceAlert, logger)
	defer mqttSink.Close()

	observers := []geofence.Observer{
		alert.NewLog(logger),
		mqttSink,
		hub,
	}

	if cfg.RedisAddr != "" {
		rdb, err := alert.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		observers = append(observers, alert.NewRedis(rdb, cfg.RedisChannel, logger))
		logger.Info().Str("addr", cfg.RedisAddr).Str("channel", cfg.RedisChannel).Msg("redis alerts enabled")
	}

	if cfg.LEDPin != "" {
		led, err := alert.OpenLED(cfg.LEDPin, logger)
		if err != nil {
			return err
		}
		defer led.Off()
		observers = append(observers, led)
	}

	// ---- 4) Monitor ----
	mon, err = geofence.New(fence, provider, logger, observers...)
	if err != nil {
		return err
	}

	// ---- 5) Web server ----
	errCh := make(chan error, 1)
	if cfg.WebServerPort != 0 {
		srv := web.NewServer(mon.Status, conn.Connected, hub, cfg.WebStaticDir, logger)
		go func() {
			errCh <- srv.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.WebServerPort))
		}()
	}

	sub, err := mon.Start(ctx)
	switch {
	case errors.Is(err, geofence.ErrPermissionDenied):
		// status already says so; keep serving it until interrupted
		logger.Error().Msg("location permission denied; geofence monitoring disabled")
	case err != nil:
		return err
	}
	defer sub.Stop()

	select {
	case <-ctx.Done():
		logger.Info().Msg("geofence monitor shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}

func fenceConfig(cfg *config.Config) geofence.Config {
	return geofence.Config{
		Reference:                 geo.Point{Latitude: cfg.ReferenceLat, Longitude: cfg.ReferenceLon},
		ThresholdMeters:           cfg.ThresholdMeters,
		MinDistanceIntervalMeters: cfg.MinDistanceIntervalMeters,
		MinTimeInterval:           cfg.MinTimeInterval(),
	}
}

// newProvider returns the location provider selected by LOCATION_SOURCE. For
// the mock source the *location.Mock is returned too so a walk can drive it.
func newProvider(cfg *config.Config, client mqtt.Client, logger zerolog.Logger) (location.Provider, *location.Mock, error) {
	switch cfg.LocationSource {
	case config.SourceSerial:
		return location.NewSerialProvider(cfg.GPSSerialPort, cfg.GPSBaudRate, logger), nil, nil
	case config.SourceMQTT:
		return location.NewMQTTProvider(client, cfg.TopicGPS, logger), nil, nil
	case config.SourceMock:
		m := location.NewMock(location.Granted)
		return m, m, nil
	default:
		return nil, nil, fmt.Errorf("unknown location source %q", cfg.LocationSource)
	}
}

