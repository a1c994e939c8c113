package config

import (
	"os"
	"testing"
	"time"

	"radiation_exporter/internal/types"
)

func oneStation() []types.StationConfig {
	return []types.StationConfig{{Code: "DE1234", Name: "Freiburg", ScanInterval: time.Hour}}
}

func clearEnv() {
	for _, key := range []string{
		"RADMON_STATIONS", "RADMON_SCAN_INTERVAL", "RADMON_ADDR", "RADMON_DB_PATH",
		"RADMON_MQTT_BROKER", "RADMON_MQTT_PORT", "RADMON_MQTT_CLIENT_ID",
		"RADMON_MQTT_DISCOVERY_PREFIX", "RADMON_API_BASE_URL",
		"RADMON_LOG_LEVEL", "RADMON_LOG_FORMAT",
	} {
		os.Unsetenv(key)
	}
}

func TestLoadConfig_EnvVars(t *testing.T) {
	clearEnv()
	os.Setenv("RADMON_STATIONS", "DE1234=Freiburg, FR5678=Paris")
	os.Setenv("RADMON_SCAN_INTERVAL", "600")
	os.Setenv("RADMON_ADDR", ":9999")
	os.Setenv("RADMON_MQTT_BROKER", "broker.local")
	os.Setenv("RADMON_LOG_LEVEL", "debug")
	os.Setenv("RADMON_LOG_FORMAT", "json")
	defer clearEnv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if len(cfg.Stations) != 2 {
		t.Fatalf("Stations = %d, want 2", len(cfg.Stations))
	}
	if cfg.Stations[0].Code != "DE1234" || cfg.Stations[0].Name != "Freiburg" {
		t.Errorf("station[0] = %+v", cfg.Stations[0])
	}
	if cfg.Stations[1].Code != "FR5678" || cfg.Stations[1].Name != "Paris" {
		t.Errorf("station[1] = %+v", cfg.Stations[1])
	}
	if cfg.Stations[0].ScanInterval != 600*time.Second {
		t.Errorf("station interval = %v, want 10m", cfg.Stations[0].ScanInterval)
	}
	if cfg.ListenAddr != ":9999" {
		t.Errorf("ListenAddr = %v, want :9999", cfg.ListenAddr)
	}
	if !cfg.MQTTEnabled() {
		t.Error("MQTTEnabled() = false, want true")
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("log settings = %v/%v", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv()
	os.Setenv("RADMON_STATIONS", "DE1234")
	defer clearEnv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.ScanInterval != 3600*time.Second {
		t.Errorf("ScanInterval = %v, want 1h", cfg.ScanInterval)
	}
	if cfg.ListenAddr != ":9810" {
		t.Errorf("ListenAddr = %v, want :9810", cfg.ListenAddr)
	}
	if cfg.DBPath != "radiation.db" {
		t.Errorf("DBPath = %v", cfg.DBPath)
	}
	if cfg.MQTTEnabled() {
		t.Error("MQTTEnabled() = true, want false without a broker")
	}
	// Name defaults to the code when omitted.
	if cfg.Stations[0].Name != "DE1234" {
		t.Errorf("station name = %q, want DE1234", cfg.Stations[0].Name)
	}
}

func TestLoadConfig_InvalidInterval(t *testing.T) {
	clearEnv()
	os.Setenv("RADMON_STATIONS", "DE1234")
	os.Setenv("RADMON_SCAN_INTERVAL", "-5")
	defer clearEnv()

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() expected error for negative interval")
	}
}

func TestParseStations_Duplicate(t *testing.T) {
	if _, err := parseStations("DE1234=A,DE1234=B"); err == nil {
		t.Error("parseStations() expected error for duplicate code")
	}
}

func TestParseStations_Empty(t *testing.T) {
	stations, err := parseStations("  ")
	if err != nil {
		t.Fatalf("parseStations() error = %v", err)
	}
	if stations != nil {
		t.Errorf("stations = %+v, want nil", stations)
	}
}

func TestValidate_NoStations(t *testing.T) {
	cfg := &Config{ScanInterval: time.Hour}

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for missing stations")
	}
}

func TestValidate_BadMQTTPort(t *testing.T) {
	cfg := &Config{
		Stations:     oneStation(),
		ScanInterval: time.Hour,
		MQTTBroker:   "broker.local",
		MQTTPort:     0,
	}

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for port 0")
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := &Config{
		Stations:     oneStation(),
		ScanInterval: time.Hour,
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}
