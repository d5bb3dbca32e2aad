// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package platform

import (
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler receives one MQTT message.
type Handler func(topic string, payload []byte)

// Broker is the slice of an MQTT client the locator needs.
type Broker interface {
	Subscribe(topic string, h Handler) error
	Publish(topic string, retained bool, payload []byte) error
}

// MQTTBroker is a Broker on a paho client. Subscriptions are replayed on
// every reconnect.
type MQTTBroker struct {
	client mqtt.Client

	mu       sync.Mutex
	subs     map[string]Handler
	onChange []func(connected bool)
}

// DialMQTT connects to broker as clientID.
func DialMQTT(broker, clientID string) (*MQTTBroker, error) {
	b := &MQTTBroker{subs: make(map[string]Handler)}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(2 * time.Second).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(b.onLost)

	b.client = mqtt.NewClient(opts)
	if token := b.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", broker, token.Error())
	}
	log.Printf("mqtt: connected to %s as %s", broker, clientID)
	return b, nil
}

// OnConnectionChange registers fn to run on every connect and connection
// loss.
func (b *MQTTBroker) OnConnectionChange(fn func(connected bool)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = append(b.onChange, fn)
}

func (b *MQTTBroker) Subscribe(topic string, h Handler) error {
	b.mu.Lock()
	b.subs[topic] = h
	b.mu.Unlock()
	return b.subscribe(topic, h)
}

func (b *MQTTBroker) subscribe(topic string, h Handler) error {
	token := b.client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		h(msg.Topic(), msg.Payload())
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	log.Printf("mqtt: subscribed to %s", topic)
	return nil
}

func (b *MQTTBroker) Publish(topic string, retained bool, payload []byte) error {
	token := b.client.Publish(topic, 0, retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("publish %s: %w", topic, token.Error())
	}
	return nil
}

// Close disconnects after giving in-flight messages 250ms.
func (b *MQTTBroker) Close() {
	b.client.Disconnect(250)
}

func (b *MQTTBroker) onConnect(mqtt.Client) {
	b.mu.Lock()
	subs := make(map[string]Handler, len(b.subs))
	for t, h := range b.subs {
		subs[t] = h
	}
	listeners := append([]func(bool){}, b.onChange...)
	b.mu.Unlock()

	// the first connect happens before any Subscribe, so this only replays
	// after a reconnect
	for t, h := range subs {
		go func() {
			if err := b.subscribe(t, h); err != nil {
				log.Printf("mqtt: resubscribe: %v", err)
			}
		}()
	}
	for _, fn := range listeners {
		fn(true)
	}
}

func (b *MQTTBroker) onLost(_ mqtt.Client, err error) {
	log.Printf("mqtt: connection lost: %v", err)
	b.mu.Lock()
	listeners := append([]func(bool){}, b.onChange...)
	b.mu.Unlock()
	for _, fn := range listeners {
		fn(false)
	}
}
