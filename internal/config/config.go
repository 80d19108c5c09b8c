// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Location sources.
const (
	SourceSerial = "serial"
	SourceMQTT   = "mqtt"
	SourceMock   = "mock"
)

// Config holds all application configuration values. Every key can be set in
// the config file and overridden by an environment variable of the same name.
type Config struct {
	// MQTT
	MQTTBroker          string `env:"MQTT_BROKER"`
	MQTTUsername        string `env:"MQTT_USERNAME"`
	MQTTPassword        string `env:"MQTT_PASSWORD"`
	MQTTClientIDMonitor string `env:"MQTT_CLIENT_ID_MONITOR"`
	MQTTClientIDGPS     string `env:"MQTT_CLIENT_ID_GPS"`
	MQTTClientIDConsole string `env:"MQTT_CLIENT_ID_CONSOLE"`

	// Topics
	TopicGPS            string `env:"TOPIC_GPS"`
	TopicGeofenceStatus string `env:"TOPIC_GEOFENCE_STATUS"`
	TopicGeofenceAlert  string `env:"TOPIC_GEOFENCE_ALERT"`

	// Location source: "serial", "mqtt" or "mock"
	LocationSource string `env:"LOCATION_SOURCE"`

	// GPS
	GPSSerialPort string `env:"GPS_SERIAL_PORT"`
	GPSBaudRate   uint   `env:"GPS_BAUD_RATE"`

	// Geofence
	ReferenceLat              float64 `env:"REFERENCE_LAT"`
	ReferenceLon              float64 `env:"REFERENCE_LON"`
	ThresholdMeters           float64 `env:"THRESHOLD_METERS"`
	MinDistanceIntervalMeters float64 `env:"MIN_DISTANCE_INTERVAL_METERS"`
	MinTimeIntervalMs         int     `env:"MIN_TIME_INTERVAL_MS"`

	// Mock walk
	MockWalkAmplitudeMeters float64 `env:"MOCK_WALK_AMPLITUDE_METERS"`
	MockWalkPeriodMs        int     `env:"MOCK_WALK_PERIOD_MS"`
	MockSampleIntervalMs    int     `env:"MOCK_SAMPLE_INTERVAL_MS"`

	// Redis alert channel; empty address disables it
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`
	RedisChannel  string `env:"REDIS_CHANNEL"`

	// Status LED GPIO pin name (e.g. "GPIO17"); empty disables it
	LEDPin string `env:"LED_PIN"`

	// Web Server; port 0 disables it
	WebServerPort int    `env:"WEB_SERVER_PORT"`
	WebStaticDir  string `env:"WEB_STATIC_DIR"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`
}

// Default returns the configuration used when a key is absent. The fence
// defaults to a 5m radius around 0,0 sampled every 10m / 10s.
func Default() *Config {
	return &Config{
		MQTTBroker:          "tcp://localhost:1883",
		MQTTClientIDMonitor: "geofence-monitor",
		MQTTClientIDGPS:     "geofence-gps-producer",
		MQTTClientIDConsole: "geofence-console",

		TopicGPS:            "geofence/gps",
		TopicGeofenceStatus: "geofence/status",
		TopicGeofenceAlert:  "geofence/alert",

		LocationSource: SourceSerial,
		GPSSerialPort:  "/dev/serial0",
		GPSBaudRate:    9600,

		ThresholdMeters:           5,
		MinDistanceIntervalMeters: 10,
		MinTimeIntervalMs:         10000,

		MockWalkAmplitudeMeters: 12,
		MockWalkPeriodMs:        20000,
		MockSampleIntervalMs:    500,

		RedisChannel: "geofence:alerts",

		WebServerPort: 8080,
		WebStaticDir:  "web",

		LogLevel:  "info",
		LogFormat: "console",
	}
}

// Load applies the config file at configPath (if non-empty) and then the
// environment on top of the defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFile(configPath); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MinTimeInterval is MinTimeIntervalMs as a duration.
func (c *Config) MinTimeInterval() time.Duration {
	return time.Duration(c.MinTimeIntervalMs) * time.Millisecond
}

func (c *Config) loadFile(configPath string) error {
	file, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := c.setValue(key, value); err != nil {
			return fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error

	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_USERNAME":
		c.MQTTUsername = value
	case "MQTT_PASSWORD":
		c.MQTTPassword = value
	case "MQTT_CLIENT_ID_MONITOR":
		c.MQTTClientIDMonitor = value
	case "MQTT_CLIENT_ID_GPS":
		c.MQTTClientIDGPS = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value

	// Topics
	case "TOPIC_GPS":
		c.TopicGPS = value
	case "TOPIC_GEOFENCE_STATUS":
		c.TopicGeofenceStatus = value
	case "TOPIC_GEOFENCE_ALERT":
		c.TopicGeofenceAlert = value

	case "LOCATION_SOURCE":
		c.LocationSource = value

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, perr := strconv.ParseUint(value, 10, 32)
		if perr != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, perr)
		}
		c.GPSBaudRate = uint(rate)

	// Geofence
	case "REFERENCE_LAT":
		c.ReferenceLat, err = parseFloat(key, value)
	case "REFERENCE_LON":
		c.ReferenceLon, err = parseFloat(key, value)
	case "THRESHOLD_METERS":
		c.ThresholdMeters, err = parseFloat(key, value)
	case "MIN_DISTANCE_INTERVAL_METERS":
		c.MinDistanceIntervalMeters, err = parseFloat(key, value)
	case "MIN_TIME_INTERVAL_MS":
		c.MinTimeIntervalMs, err = parseInt(key, value)

	// Mock walk
	case "MOCK_WALK_AMPLITUDE_METERS":
		c.MockWalkAmplitudeMeters, err = parseFloat(key, value)
	case "MOCK_WALK_PERIOD_MS":
		c.MockWalkPeriodMs, err = parseInt(key, value)
	case "MOCK_SAMPLE_INTERVAL_MS":
		c.MockSampleIntervalMs, err = parseInt(key, value)

	// Redis
	case "REDIS_ADDR":
		c.RedisAddr = value
	case "REDIS_PASSWORD":
		c.RedisPassword = value
	case "REDIS_DB":
		c.RedisDB, err = parseInt(key, value)
	case "REDIS_CHANNEL":
		c.RedisChannel = value

	case "LED_PIN":
		c.LEDPin = value

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value)
	case "WEB_STATIC_DIR":
		c.WebStaticDir = value

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = value
	case "LOG_FORMAT":
		c.LogFormat = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseInt(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	switch c.LocationSource {
	case SourceSerial:
		if c.GPSSerialPort == "" {
			return fmt.Errorf("GPS_SERIAL_PORT is required")
		}
		if c.GPSBaudRate == 0 {
			return fmt.Errorf("GPS_BAUD_RATE is required")
		}
	case SourceMQTT:
		if c.TopicGPS == "" {
			return fmt.Errorf("TOPIC_GPS is required")
		}
	case SourceMock:
		if c.MockWalkPeriodMs <= 0 || c.MockSampleIntervalMs <= 0 {
			return fmt.Errorf("MOCK_WALK_PERIOD_MS and MOCK_SAMPLE_INTERVAL_MS must be positive")
		}
	default:
		return fmt.Errorf("LOCATION_SOURCE must be one of serial, mqtt, mock; got %q", c.LocationSource)
	}

	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.ReferenceLat < -90 || c.ReferenceLat > 90 {
		return fmt.Errorf("REFERENCE_LAT must be between -90 and 90, got %v", c.ReferenceLat)
	}
	if c.ReferenceLon < -180 || c.ReferenceLon > 180 {
		return fmt.Errorf("REFERENCE_LON must be between -180 and 180, got %v", c.ReferenceLon)
	}
	if c.ThresholdMeters < 0 {
		return fmt.Errorf("THRESHOLD_METERS must be >= 0, got %v", c.ThresholdMeters)
	}
	if c.MinDistanceIntervalMeters < 0 || c.MinTimeIntervalMs < 0 {
		return fmt.Errorf("MIN_DISTANCE_INTERVAL_METERS and MIN_TIME_INTERVAL_MS must be >= 0")
	}
	if c.WebServerPort < 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 0-65535, got %d", c.WebServerPort)
	}
	return nil
}
