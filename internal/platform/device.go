// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/locator/internal/location"
	"github.com/relabs-tech/locator/internal/store"
)

// DeviceTopics names the MQTT topics a Device listens and publishes on.
type DeviceTopics struct {
	GPSFix           string
	NetworkFix       string
	ProviderStatus   string // "<topic>/<provider>" carries "enabled" or "disabled"
	Permission       string
	PermissionPrompt string
}

// Device is the location subsystem of a host whose providers report over
// MQTT.
type Device struct {
	broker   Broker
	topics   DeviceTopics
	auth     *Authority
	services atomic.Bool
	feeds    feedSet
	now      func() time.Time
}

// NewDevice builds the feeds on st and subscribes to the provider topics.
func NewDevice(b Broker, topics DeviceTopics, st store.Store, initial location.PermissionStatus, servicesEnabled bool) (*Device, error) {
	d := &Device{
		broker: b,
		topics: topics,
		auth:   NewAuthority(initial),
		feeds:  newFeedSet(st, func(location.Provider) bool { return true }),
		now:    time.Now,
	}
	d.services.Store(servicesEnabled)

	subs := []struct {
		topic string
		h     Handler
	}{
		{topics.GPSFix, d.fixHandler(location.ProviderGPS)},
		{topics.NetworkFix, d.fixHandler(location.ProviderNetwork)},
		{topics.ProviderStatus + "/+", d.onProviderStatus},
		{topics.Permission, d.onPermission},
	}
	for _, s := range subs {
		if s.topic == "" {
			continue
		}
		if err := b.Subscribe(s.topic, s.h); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Authority exposes the permission state so the command surface can answer
// prompts.
func (d *Device) Authority() *Authority { return d.auth }

func (d *Device) SetServicesEnabled(on bool) { d.services.Store(on) }

// ConnectionChanged enables or disables the MQTT-fed providers.
func (d *Device) ConnectionChanged(connected bool) {
	for _, p := range []location.Provider{location.ProviderGPS, location.ProviderNetwork} {
		d.feeds[p].SetEnabled(connected)
	}
	if !connected {
		log.Println("device: broker connection lost, mqtt providers disabled")
	}
}

func (d *Device) PermissionStatus() location.PermissionStatus { return d.auth.Status() }

func (d *Device) ServicesEnabled() bool { return d.services.Load() }

func (d *Device) AvailableProviders() []location.Provider { return d.feeds.available() }

func (d *Device) LastKnownFix(p location.Provider) (*location.Fix, error) {
	return d.feeds.lastKnown(p)
}

func (d *Device) SubscribeLiveFix(p location.Provider) (location.Subscription, error) {
	return d.feeds.subscribe(p, d.auth.Status())
}

// RequestPermissionPrompt asks whoever listens on the prompt topic (the UI)
// to show the system prompt.
func (d *Device) RequestPermissionPrompt() {
	payload, err := json.Marshal(map[string]string{"status": d.auth.Status().String()})
	if err != nil {
		log.Printf("device: permission prompt marshal error: %v", err)
		return
	}
	if err := d.broker.Publish(d.topics.PermissionPrompt, false, payload); err != nil {
		log.Printf("device: publish permission prompt: %v", err)
	}
}

func (d *Device) WatchPermission() (<-chan location.PermissionStatus, func()) {
	return d.auth.Watch()
}

func (d *Device) fixHandler(p location.Provider) Handler {
	return func(topic string, payload []byte) {
		var fix location.Fix
		if err := json.Unmarshal(payload, &fix); err != nil {
			log.Printf("device: %s fix unmarshal error: %v", p, err)
			return
		}
		if fix.Timestamp == 0 {
			fix.Timestamp = d.now().UnixMilli()
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := d.feeds[p].Record(ctx, fix); err != nil {
			log.Printf("device: %v", err)
		}
	}
}

func (d *Device) onProviderStatus(topic string, payload []byte) {
	name := topic[strings.LastIndex(topic, "/")+1:]
	p, ok := location.ParseProvider(name)
	if !ok {
		log.Printf("device: provider status on %s: unknown provider %q", topic, name)
		return
	}
	f, err := d.feeds.feed(p)
	if err != nil {
		log.Printf("device: %v", err)
		return
	}

	switch v := strings.ToLower(strings.TrimSpace(string(payload))); v {
	case "enabled", "on", "1", "true":
		f.SetEnabled(true)
	case "disabled", "off", "0", "false":
		f.SetEnabled(false)
	default:
		log.Printf("device: provider status %q for %s not understood", v, p)
		return
	}
	log.Printf("device: provider %s enabled=%v", p, f.Enabled())
}

func (d *Device) onPermission(_ string, payload []byte) {
	raw := strings.TrimSpace(string(payload))
	// accept both a bare status and {"status": "..."}
	if strings.HasPrefix(raw, "{") {
		var msg struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(payload, &msg); err != nil {
			log.Printf("device: permission unmarshal error: %v", err)
			return
		}
		raw = msg.Status
	}

	st, err := location.ParsePermissionStatus(raw)
	if err != nil {
		log.Printf("device: %v", err)
		return
	}
	d.auth.Set(st)
	log.Printf("device: permission is now %s", st)
}

// String is used in startup logs.
func (d *Device) String() string {
	return fmt.Sprintf("device(permission=%s, services=%v, providers=%v)",
		d.auth.Status(), d.ServicesEnabled(), d.AvailableProviders())
}
