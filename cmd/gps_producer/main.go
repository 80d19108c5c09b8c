// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/geofence/internal/app"
)

func main() {
	configPath := flag.String("config", "geofence_config.txt", "path to KEY=VALUE config file")
	flag.Parse()

	cfg, logger, err := app.Bootstrap(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	logger.Info().Msg("starting geofence GPS producer (NMEA → MQTT)")

	if err := app.RunGPSProducer(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("fatal")
	}
}
