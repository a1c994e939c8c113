// Package hass publishes readings to a home automation platform over MQTT,
// using Home Assistant's discovery convention so each station shows up as a
// sensor entity without manual configuration.
package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"radiation_exporter/internal/types"
)

// Config holds the MQTT connection settings.
type Config struct {
	Broker          string
	Port            int
	ClientID        string
	DiscoveryPrefix string
}

// Publisher pushes station state and discovery payloads to an MQTT broker.
type Publisher struct {
	client mqtt.Client
	cfg    Config
	logger *slog.Logger

	// station code -> display name, for discovery payloads
	names map[string]string

	mu         sync.Mutex
	discovered map[string]bool
}

// NewPublisher creates a publisher for the given stations. Call Connect
// before publishing.
func NewPublisher(cfg Config, stations []types.StationConfig, logger *slog.Logger) *Publisher {
	if cfg.DiscoveryPrefix == "" {
		cfg.DiscoveryPrefix = "homeassistant"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "radiation-exporter"
	}

	names := make(map[string]string, len(stations))
	for _, s := range stations {
		names[s.Code] = s.Name
	}

	p := &Publisher{
		cfg:        cfg,
		logger:     logger,
		names:      names,
		discovered: make(map[string]bool),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("mqtt connected", "broker", cfg.Broker, "port", cfg.Port)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = mqtt.NewClient(opts)
	return p
}

// Connect establishes the broker connection, honoring context cancellation.
func (p *Publisher) Connect(ctx context.Context) error {
	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			p.client.Disconnect(0)
			return ctx.Err()
		default:
		}
	}
}

// Disconnect closes the broker connection.
func (p *Publisher) Disconnect() {
	p.client.Disconnect(250)
	p.logger.Info("mqtt publisher disconnected")
}

// Publish implements the scheduler sink contract: it announces the station
// entity on first sight, then pushes state and attributes.
func (p *Publisher) Publish(_ context.Context, reading *types.Reading) error {
	code := reading.StationCode

	p.mu.Lock()
	needsDiscovery := !p.discovered[code]
	if needsDiscovery {
		p.discovered[code] = true
	}
	p.mu.Unlock()

	if needsDiscovery {
		payload, err := json.Marshal(discoveryPayload(code, p.names[code]))
		if err != nil {
			return fmt.Errorf("marshal discovery: %w", err)
		}
		// Retained so Home Assistant re-creates the entity after restarts.
		if err := p.publish(discoveryTopic(p.cfg.DiscoveryPrefix, code), payload, true); err != nil {
			p.mu.Lock()
			p.discovered[code] = false
			p.mu.Unlock()
			return err
		}
	}

	state := []byte(fmt.Sprintf("%g", reading.Value))
	if err := p.publish(stateTopic(code), state, true); err != nil {
		return err
	}

	attrs, err := json.Marshal(attributesPayload(reading))
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}
	return p.publish(attributesTopic(code), attrs, true)
}

// Name implements the sink contract.
func (p *Publisher) Name() string {
	return "hass"
}

func (p *Publisher) publish(topic string, payload []byte, retained bool) error {
	token := p.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	p.logger.Debug("published mqtt message", "topic", topic, "size", len(payload))
	return nil
}

// discoveryConfig is the Home Assistant MQTT discovery payload for a
// radiation sensor entity.
type discoveryConfig struct {
	Name                string `json:"name"`
	UniqueID            string `json:"unique_id"`
	StateTopic          string `json:"state_topic"`
	JSONAttributesTopic string `json:"json_attributes_topic"`
	UnitOfMeasurement   string `json:"unit_of_measurement"`
	StateClass          string `json:"state_class"`
	Icon                string `json:"icon"`
}

func discoveryPayload(code, name string) discoveryConfig {
	if name == "" {
		name = code
	}
	return discoveryConfig{
		Name:                fmt.Sprintf("Radiation %s", name),
		UniqueID:            fmt.Sprintf("radiation_%s", code),
		StateTopic:          stateTopic(code),
		JSONAttributesTopic: attributesTopic(code),
		UnitOfMeasurement:   "nSv/h",
		StateClass:          "measurement",
		Icon:                "mdi:radioactive",
	}
}

// attributesPayload builds the entity attribute set: everything except the
// displayed value, plus the optional placeholder status.
func attributesPayload(reading *types.Reading) map[string]any {
	attrs := map[string]any{
		"timestamp":    reading.Timestamp,
		"station_code": reading.StationCode,
		"raw_value":    reading.RawValue,
		"stamp":        reading.Stamp,
		"divisor":      reading.Divisor,
	}
	if reading.ReturnedCode != "" {
		attrs["returned_code"] = reading.ReturnedCode
	}
	if reading.Status != "" {
		attrs["status"] = reading.Status
	}
	return attrs
}

func discoveryTopic(prefix, code string) string {
	return fmt.Sprintf("%s/sensor/radiation_%s/config", prefix, code)
}

func stateTopic(code string) string {
	return fmt.Sprintf("radiation/%s/state", code)
}

func attributesTopic(code string) string {
	return fmt.Sprintf("radiation/%s/attributes", code)
}
