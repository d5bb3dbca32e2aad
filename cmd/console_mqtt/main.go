package main

import (
	"log"

	"github.com/relabs-tech/locator/internal/app"
	"github.com/relabs-tech/locator/internal/config"
)

func main() {
	log.Println("starting locator console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal("locator_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsoleMQTT(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
