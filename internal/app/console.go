// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/geofence/internal/alert"
	"github.com/relabs-tech/geofence/internal/config"
	"github.com/relabs-tech/geofence/internal/geofence"
	"github.com/relabs-tech/geofence/internal/gps"
	"github.com/relabs-tech/geofence/internal/location"
)

// RunConsole runs a monitor against the mock walk and prints every status to
// stdout. No broker or hardware is needed.
func RunConsole(cfg *config.Config, logger zerolog.Logger) error {
	ctx, cancel := signalContext()
	defer cancel()

	fence := fenceConfig(cfg)
	mock := location.NewMock(location.Granted)
	walk := location.NewWalk(fence.Reference, cfg.MockWalkAmplitudeMeters, time.Duration(cfg.MockWalkPeriodMs)*time.Millisecond)

	mon, err := geofence.New(fence, mock, logger, alert.NewLog(logger), printer(os.Stdout))
	if err != nil {
		return err
	}
	sub, err := mon.Start(ctx)
	if err != nil {
		return err
	}
	defer sub.Stop()

	walk.Run(ctx, mock, time.Duration(cfg.MockSampleIntervalMs)*time.Millisecond)
	return nil
}

// RunConsoleMQTT prints the status, alerts and raw GPS fixes seen on the
// broker.
func RunConsoleMQTT(cfg *config.Config, logger zerolog.Logger) error {
	ctx, cancel := signalContext()
	defer cancel()

	client, err := connectMQTT(cfg, cfg.MQTTClientIDConsole, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	subs := map[string]mqtt.MessageHandler{
		cfg.TopicGeofenceStatus: func(_ mqtt.Client, msg mqtt.Message) {
			var st geofence.RangeStatus
			if err := json.Unmarshal(msg.Payload(), &st); err != nil {
				logger.Warn().Err(err).Msg("console: status unmarshal error")
				return
			}
			fmt.Printf("[STAT] %s\n", formatStatus(st))
		},
		cfg.TopicGeofenceAlert: func(_ mqtt.Client, msg mqtt.Message) {
			var e geofence.Event
			if err := json.Unmarshal(msg.Payload(), &e); err != nil {
				logger.Warn().Err(err).Msg("console: alert unmarshal error")
				return
			}
			fmt.Printf("[ALRT] %s\n", formatEvent(e))
		},
		cfg.TopicGPS: func(_ mqtt.Client, msg mqtt.Message) {
			var f gps.Fix
			if err := json.Unmarshal(msg.Payload(), &f); err != nil {
				logger.Warn().Err(err).Msg("console: gps unmarshal error")
				return
			}
			fmt.Printf(
				"[GPS ] time=%s date=%s lat=%.6f lon=%.6f speed=%.1fkn course=%.1f° validity=%s\n",
				f.Time, f.Date, f.Latitude, f.Longitude, f.SpeedKnots, f.CourseDeg, f.Validity,
			)
		},
	}

	for topic, handler := range subs {
		token := client.Subscribe(topic, 0, handler)
		if !token.WaitTimeout(connectTimeout) {
			return fmt.Errorf("subscribe %s: timeout", topic)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		logger.Info().Str("topic", topic).Msg("console: subscribed")
	}

	<-ctx.Done()
	logger.Info().Msg("console: shutting down")
	return nil
}

// printer writes one line per event to w.
func printer(w io.Writer) geofence.Observer {
	return geofence.ObserverFunc(func(e geofence.Event) {
		fmt.Fprintln(w, formatEvent(e))
	})
}

func formatEvent(e geofence.Event) string {
	switch {
	case e.Entered():
		return "ENTER " + formatStatus(e.Status)
	case e.Exited():
		return "EXIT  " + formatStatus(e.Status)
	default:
		return "      " + formatStatus(e.Status)
	}
}

func formatStatus(st geofence.RangeStatus) string {
	switch {
	case st.Error == geofence.ReasonPermissionDenied:
		return "permission denied"
	case st.Error == geofence.ReasonUnavailable:
		return "location unavailable"
	case !st.Known:
		return "waiting for first position"
	}

	state := "OUT"
	if st.WithinRange {
		state = "IN "
	}
	line := fmt.Sprintf("%s dist=%8.2fm", state, st.DistanceMeters)
	if st.Position != nil {
		line += fmt.Sprintf(" lat=%.6f lon=%.6f", st.Position.Latitude, st.Position.Longitude)
	}
	if st.Error == geofence.ReasonInvalidInput {
		line += " (last sample rejected)"
	}
	return line
}
