// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"

	"github.com/relabs-tech/locator/internal/app"
	"github.com/relabs-tech/locator/internal/config"
)

func main() {
	log.Println("starting locator (HTTP + websocket, MQTT-fed device)")

	// Load configuration
	if err := config.InitGlobal("locator_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunLocator(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
