package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"

	"spc2mqtt/internal/cache"
	"spc2mqtt/internal/config"
	"spc2mqtt/internal/homeassistant"
	"spc2mqtt/internal/log"
	"spc2mqtt/internal/metrics"
	"spc2mqtt/internal/mqtt"
	"spc2mqtt/internal/panel"
)

func main() {
	configFile := flag.String("config", "/etc/spc2mqtt/config.yml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	logger := log.NewLogger(cfg.Log)

	// Single-instance lock: two watchdogs sharing a session cache would
	// invalidate each other's sessions on the panel.
	lock := flock.New(cfg.Watchdog.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		logger.Fatal("Failed to acquire instance lock: %v", err)
	}
	if !locked {
		logger.Error("Another instance is already running, exiting")
		os.Exit(0)
	}
	defer lock.Unlock()

	// Create panel poller
	p, err := panel.NewPanel(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create panel: %v", err)
	}

	// Create MQTT client
	mqttClient := mqtt.NewMQTT(&cfg.MQTT, p, logger)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Warm start: seed the diff baseline from the last snapshot so
	// unchanged retained values are not republished.
	snap, err := cache.Load(cfg.SPC.SessionCacheDir)
	if err != nil {
		logger.Warning("Failed to load snapshot cache: %v", err)
	} else if snap != nil {
		p.SetCachedStatus(snap.Status)
		logger.Info("Loaded snapshot from cache")
	}

	// Optional metrics endpoint
	if cfg.Watchdog.MetricsListen != "" {
		go func() {
			logger.Info("Serving metrics on %s", cfg.Watchdog.MetricsListen)
			if err := metrics.Serve(cfg.Watchdog.MetricsListen); err != nil {
				logger.Error("Metrics endpoint failed: %v", err)
			}
		}()
	}

	// Connect to MQTT broker before the first poll so the initial state
	// is published as soon as it is known.
	if err := mqttClient.Connect(); err != nil {
		logger.Error("Failed to connect to MQTT broker: %v", err)
		os.Exit(1)
	}

	// Start polling
	if err := p.Start(); err != nil {
		logger.Error("Failed to start panel polling: %v", err)
		mqttClient.Close()
		os.Exit(1)
	}

	// Publish change events as they arrive
	go mqttClient.Run()

	// Home Assistant discovery, once the initial state is known
	if cfg.HomeAssistant.Discovery {
		ha := homeassistant.New(&cfg.HomeAssistant, mqttClient, p, logger)
		ha.Start()
	}

	// Wait for termination signal
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down...")
	p.Stop()
	if err := cache.Save(cfg.SPC.SessionCacheDir, p.Status()); err != nil {
		logger.Warning("Failed to save snapshot cache: %v", err)
	}
	mqttClient.Close()
}
