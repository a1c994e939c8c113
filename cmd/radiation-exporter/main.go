package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"radiation_exporter/internal/collector"
	"radiation_exporter/internal/config"
	"radiation_exporter/internal/coordinator"
	"radiation_exporter/internal/hass"
	"radiation_exporter/internal/history"
	"radiation_exporter/internal/httpapi"
	"radiation_exporter/internal/logging"
	"radiation_exporter/internal/remap"
	"radiation_exporter/internal/scheduler"
	"radiation_exporter/internal/types"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("Starting Radiation Exporter",
		"listen_addr", cfg.ListenAddr, "stations", len(cfg.Stations))

	// Open history storage
	db, err := history.Open(cfg.DBPath)
	if err != nil {
		logger.Error("Failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := history.Migrate(db); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}
	repo := history.NewRepository(db)

	// Remote API client, shared by all coordinators
	client := remap.NewClient(cfg.APIBaseURL, logger)

	// One coordinator per station; the stamp is drawn once here and stays
	// fixed for the lifetime of the installation.
	coordinators := make([]*coordinator.Coordinator, 0, len(cfg.Stations))
	for _, station := range cfg.Stations {
		obf := types.NewObfuscation()
		logger.Info("Configured station",
			"station", station.Code, "name", station.Name,
			"stamp", obf.Stamp, "divisor", obf.Divisor)
		coordinators = append(coordinators, coordinator.New(station, obf, client, logger))
	}

	// Sinks receive every fresh reading
	sinks := []scheduler.Sink{history.NewSink(repo)}

	var publisher *hass.Publisher
	if cfg.MQTTEnabled() {
		publisher = hass.NewPublisher(hass.Config{
			Broker:          cfg.MQTTBroker,
			Port:            cfg.MQTTPort,
			ClientID:        cfg.MQTTClientID,
			DiscoveryPrefix: cfg.MQTTDiscoveryPrefix,
		}, cfg.Stations, logger)

		connectCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := publisher.Connect(connectCtx); err != nil {
			// The paho client keeps retrying in the background.
			logger.Warn("MQTT connect failed, continuing with auto-reconnect", "error", err)
		}
		cancel()
		defer publisher.Disconnect()

		sinks = append(sinks, publisher)
	}

	// Create and register Prometheus collector
	radiationCollector := collector.NewRadiationCollector(coordinators, logger)
	prometheus.MustRegister(radiationCollector)

	// Start the per-station refresh loops
	ctx, stop := context.WithCancel(context.Background())
	runner := scheduler.NewRunner(coordinators, sinks, radiationCollector, logger)
	runner.Start(ctx)

	// Setup HTTP server
	router := httpapi.NewRouter(runner, client, repo, logger)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully...")

	stop()
	runner.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}

	logger.Info("Exporter stopped")
}
