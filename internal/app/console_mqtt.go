package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/locator/internal/config"
	"github.com/relabs-tech/locator/internal/location"
	"github.com/relabs-tech/locator/internal/platform"
)

// RunConsoleMQTT prints provider fixes, permission prompts and location
// results as they cross the broker.
func RunConsoleMQTT() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}

	broker, err := platform.DialMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer broker.Close()

	subs := map[string]platform.Handler{
		cfg.TopicGPSFix:           printFix("[GPS ]"),
		cfg.TopicNetworkFix:       printFix("[NET ]"),
		cfg.TopicLocationResult:   printResult,
		cfg.TopicPermissionPrompt: printPrompt,
	}
	for topic, h := range subs {
		if topic == "" {
			continue
		}
		if err := broker.Subscribe(topic, h); err != nil {
			return err
		}
	}
	log.Println("console: subscribed, waiting for messages")

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	return nil
}

func printFix(tag string) platform.Handler {
	return func(_ string, payload []byte) {
		var f location.Fix
		if err := json.Unmarshal(payload, &f); err != nil {
			log.Printf("console: %s unmarshal error: %v", tag, err)
			return
		}
		fmt.Println(formatFix(tag, f))
	}
}

func formatFix(tag string, f location.Fix) string {
	alt := "n/a"
	if f.Altitude != nil {
		alt = fmt.Sprintf("%.1fm", *f.Altitude)
	}
	return fmt.Sprintf("%s lat=%.6f lon=%.6f acc=%.1fm alt=%s speed=%.1fm/s bearing=%.1f° ts=%d",
		tag, f.Latitude, f.Longitude, f.Accuracy, alt, f.Speed, f.Bearing, f.Timestamp)
}

func printResult(_ string, payload []byte) {
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		log.Printf("console: result unmarshal error: %v", err)
		return
	}
	if m == nil {
		fmt.Println("[LOC ] no location")
		return
	}
	fmt.Printf("[LOC ] lat=%v lon=%v acc=%vm provider=%v age=%vs\n",
		m["latitude"], m["longitude"], m["accuracy"], m["provider"], m["age_seconds"])
}

func printPrompt(_ string, payload []byte) {
	fmt.Printf("[PERM] permission prompt requested %s\n", payload)
}
