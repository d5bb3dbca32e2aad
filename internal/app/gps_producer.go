package app

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/locator/internal/config"
	"github.com/relabs-tech/locator/internal/gps"
	"github.com/relabs-tech/locator/internal/platform"
)

// RunGPSProducer opens the GPS serial port, decodes NMEA sentences, and
// publishes each completed fix as JSON to the GPS fix topic.
func RunGPSProducer() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}

	// ---- 1) Connect to MQTT broker ----
	broker, err := platform.DialMQTT(cfg.MQTTBroker, cfg.MQTTClientIDGPS)
	if err != nil {
		return err
	}
	defer broker.Close()

	// ---- 2) Open GPS serial port ----
	serialOpts := serial.OpenOptions{
		PortName:              cfg.GPSSerialPort,
		BaudRate:              uint(cfg.GPSBaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return err
	}
	defer port.Close()
	log.Printf("gps producer: serial port opened on %s at %d baud", serialOpts.PortName, serialOpts.BaudRate)

	return pumpNMEA(port, gps.NewDecoder(cfg.GPSUEREMeters), broker, cfg.TopicGPSFix)
}

// pumpNMEA decodes r line by line until it fails and publishes every fix.
func pumpNMEA(r io.Reader, dec *gps.Decoder, broker platform.Broker, topic string) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if fix, derr := dec.Decode(line); derr == nil && fix != nil {
			publishFix(broker, topic, fix)
		}
		if err != nil {
			if fix := dec.Flush(); fix != nil {
				publishFix(broker, topic, fix)
			}
			if err == io.EOF {
				return nil
			}
			log.Printf("gps producer: read error: %v", err)
			return err
		}
		// decode errors are noisy GPS or partial sentences; keep reading
	}
}

func publishFix(broker platform.Broker, topic string, fix any) {
	payload, err := json.Marshal(fix)
	if err != nil {
		log.Printf("gps producer: JSON marshal error: %v", err)
		return
	}
	if err := broker.Publish(topic, true, payload); err != nil {
		log.Printf("gps producer: publish error: %v", err)
		return
	}
	log.Printf("gps producer: published fix %s", payload)
}
