package app

import (
	"fmt"
	"log"
	"net/http"

	"github.com/relabs-tech/locator/internal/config"
	"github.com/relabs-tech/locator/internal/location"
	"github.com/relabs-tech/locator/internal/platform"
	"github.com/relabs-tech/locator/internal/store"
)

// RunLocator serves the location commands for the MQTT-fed device described
// by the global configuration.
func RunLocator() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}

	// 1) Connect to MQTT broker
	broker, err := platform.DialMQTT(cfg.MQTTBroker, cfg.MQTTClientIDLocator)
	if err != nil {
		return err
	}
	defer broker.Close()

	// 2) Last-known store and device
	st := store.Open(cfg.RedisURL, cfg.FixTTL())
	device, err := platform.NewDevice(broker, platform.DeviceTopics{
		GPSFix:           cfg.TopicGPSFix,
		NetworkFix:       cfg.TopicNetworkFix,
		ProviderStatus:   cfg.TopicProviderStatus,
		Permission:       cfg.TopicPermission,
		PermissionPrompt: cfg.TopicPermissionPrompt,
	}, st, cfg.LocationPermission, cfg.LocationServicesEnabled)
	if err != nil {
		return err
	}
	broker.OnConnectionChange(device.ConnectionChanged)
	log.Printf("locator: %s", device)

	// 3) Orchestrator and command surface
	acq := location.NewAcquirer(device, cfg.AcquirerOptions())
	srv := NewServer(acq, device, ServerOptions{
		Broker:      broker,
		ResultTopic: cfg.TopicLocationResult,
		Answer:      device.Authority().Set,
	})

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("locator: listening on %s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
