// Package config handles configuration loading from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"radiation_exporter/internal/types"
)

// Config holds all configuration for the radiation exporter.
type Config struct {
	// Monitored stations
	Stations     []types.StationConfig
	ScanInterval time.Duration

	// Server configuration
	ListenAddr string

	// History storage
	DBPath string

	// Optional MQTT bridge to the home automation platform
	MQTTBroker          string
	MQTTPort            int
	MQTTClientID        string
	MQTTDiscoveryPrefix string

	// Remote API override, used by tests and air-gapped mirrors
	APIBaseURL string

	// Logging configuration
	LogLevel  string // debug, info, warn, error
	LogFormat string // text, json
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		// Set defaults
		ScanInterval: types.DefaultScanInterval,
		ListenAddr:   ":9810",
		DBPath:       "radiation.db",
		MQTTPort:     1883,
		LogLevel:     "info",
		LogFormat:    "text",
	}

	stations, err := parseStations(os.Getenv("RADMON_STATIONS"))
	if err != nil {
		return nil, err
	}
	cfg.Stations = stations

	if interval := os.Getenv("RADMON_SCAN_INTERVAL"); interval != "" {
		seconds, err := strconv.Atoi(interval)
		if err != nil || seconds <= 0 {
			return nil, fmt.Errorf("RADMON_SCAN_INTERVAL must be a positive integer, got %q", interval)
		}
		cfg.ScanInterval = time.Duration(seconds) * time.Second
	}

	if addr := os.Getenv("RADMON_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}

	if path := os.Getenv("RADMON_DB_PATH"); path != "" {
		cfg.DBPath = path
	}

	cfg.MQTTBroker = os.Getenv("RADMON_MQTT_BROKER")
	if port := os.Getenv("RADMON_MQTT_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("RADMON_MQTT_PORT must be an integer, got %q", port)
		}
		cfg.MQTTPort = p
	}
	cfg.MQTTClientID = os.Getenv("RADMON_MQTT_CLIENT_ID")
	cfg.MQTTDiscoveryPrefix = os.Getenv("RADMON_MQTT_DISCOVERY_PREFIX")

	cfg.APIBaseURL = os.Getenv("RADMON_API_BASE_URL")

	if level := os.Getenv("RADMON_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if format := os.Getenv("RADMON_LOG_FORMAT"); format != "" {
		cfg.LogFormat = format
	}

	// Every station shares the configured interval.
	for i := range cfg.Stations {
		cfg.Stations[i].ScanInterval = cfg.ScanInterval
	}

	return cfg, nil
}

// parseStations parses "code=name,code=name" pairs. The name is optional and
// defaults to the code.
func parseStations(raw string) ([]types.StationConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var out []types.StationConfig
	seen := make(map[string]bool)

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		code, name, found := strings.Cut(part, "=")
		code = strings.TrimSpace(code)
		name = strings.TrimSpace(name)
		if code == "" {
			return nil, fmt.Errorf("invalid station entry %q in RADMON_STATIONS", part)
		}
		if !found || name == "" {
			name = code
		}
		if seen[code] {
			return nil, fmt.Errorf("duplicate station code %q in RADMON_STATIONS", code)
		}
		seen[code] = true

		out = append(out, types.StationConfig{Code: code, Name: name})
	}

	return out, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if len(c.Stations) == 0 {
		return errors.New("at least one station is required (set RADMON_STATIONS, e.g. \"DE1234=Freiburg\")")
	}
	if c.ScanInterval <= 0 {
		return errors.New("scan interval must be positive")
	}
	if c.MQTTBroker != "" && (c.MQTTPort < 1 || c.MQTTPort > 65535) {
		return fmt.Errorf("mqtt port %d out of range", c.MQTTPort)
	}
	return nil
}

// MQTTEnabled reports whether the Home Assistant bridge is configured.
func (c *Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}
