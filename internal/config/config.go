package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/locator/internal/location"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDLocator string
	MQTTClientIDGPS     string
	MQTTClientIDConsole string

	// Topics
	TopicGPSFix           string
	TopicNetworkFix       string
	TopicProviderStatus   string // one subtopic per provider: <topic>/gps, <topic>/network
	TopicPermission       string
	TopicPermissionPrompt string
	TopicLocationResult   string

	// GPS receiver
	GPSSerialPort string
	GPSBaudRate   int
	GPSUEREMeters float64 // accuracy = HDOP * UERE

	// Location subsystem
	LocationServicesEnabled bool
	LocationPermission      location.PermissionStatus // state at startup

	// Acquisition budgets
	MaxFixAgeSeconds int
	ProbeTimeoutMS   int
	AttemptTimeoutMS int

	// Last-known store
	RedisURL      string // empty keeps fixes in memory
	FixTTLSeconds int    // 0 keeps them forever

	// Web Server
	WebServerPort int
}

// Package-level singleton, written once by InitGlobal and read through Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used for every key the file omits.
func Default() *Config {
	return &Config{
		MQTTBroker:          "tcp://localhost:1883",
		MQTTClientIDLocator: "locator",
		MQTTClientIDGPS:     "locator-gps-producer",
		MQTTClientIDConsole: "locator-console",

		TopicGPSFix:           "locator/fix/gps",
		TopicNetworkFix:       "locator/fix/network",
		TopicProviderStatus:   "locator/provider",
		TopicPermission:       "locator/permission",
		TopicPermissionPrompt: "locator/permission/prompt",
		TopicLocationResult:   "locator/result",

		GPSSerialPort: "/dev/serial0",
		GPSBaudRate:   9600,
		GPSUEREMeters: 5,

		LocationServicesEnabled: true,
		LocationPermission:      location.NotDetermined,

		MaxFixAgeSeconds: 300,
		ProbeTimeoutMS:   8000,
		AttemptTimeoutMS: 10000,

		WebServerPort: 8080,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default. Blank lines and lines
// starting with # are skipped.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_LOCATOR":
		c.MQTTClientIDLocator = value
	case "MQTT_CLIENT_ID_GPS":
		c.MQTTClientIDGPS = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value

	// Topics
	case "TOPIC_GPS_FIX":
		c.TopicGPSFix = value
	case "TOPIC_NETWORK_FIX":
		c.TopicNetworkFix = value
	case "TOPIC_PROVIDER_STATUS":
		c.TopicProviderStatus = value
	case "TOPIC_PERMISSION":
		c.TopicPermission = value
	case "TOPIC_PERMISSION_PROMPT":
		c.TopicPermissionPrompt = value
	case "TOPIC_LOCATION_RESULT":
		c.TopicLocationResult = value

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		c.GPSBaudRate, err = positiveInt(key, value)
	case "GPS_UERE_METERS":
		uere, perr := strconv.ParseFloat(value, 64)
		if perr != nil {
			return fmt.Errorf("invalid GPS_UERE_METERS %q: %w", value, perr)
		}
		if uere <= 0 {
			return fmt.Errorf("GPS_UERE_METERS must be positive, got %g", uere)
		}
		c.GPSUEREMeters = uere

	// Location subsystem
	case "LOCATION_SERVICES_ENABLED":
		on, perr := strconv.ParseBool(value)
		if perr != nil {
			return fmt.Errorf("invalid LOCATION_SERVICES_ENABLED %q: %w", value, perr)
		}
		c.LocationServicesEnabled = on
	case "LOCATION_PERMISSION":
		st, perr := location.ParsePermissionStatus(value)
		if perr != nil {
			return fmt.Errorf("invalid LOCATION_PERMISSION: %w", perr)
		}
		c.LocationPermission = st

	// Budgets
	case "MAX_FIX_AGE_SECONDS":
		c.MaxFixAgeSeconds, err = positiveInt(key, value)
	case "PROBE_TIMEOUT_MS":
		c.ProbeTimeoutMS, err = positiveInt(key, value)
	case "ATTEMPT_TIMEOUT_MS":
		c.AttemptTimeoutMS, err = positiveInt(key, value)

	// Store
	case "REDIS_URL":
		c.RedisURL = value
	case "FIX_TTL_SECONDS":
		ttl, perr := strconv.Atoi(value)
		if perr != nil {
			return fmt.Errorf("invalid FIX_TTL_SECONDS %q: %w", value, perr)
		}
		if ttl < 0 {
			return fmt.Errorf("FIX_TTL_SECONDS must not be negative, got %d", ttl)
		}
		c.FixTTLSeconds = ttl

	// Web Server
	case "WEB_SERVER_PORT":
		port, perr := strconv.Atoi(value)
		if perr != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, perr)
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", port)
		}
		c.WebServerPort = port

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}
	return err
}

func positiveInt(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, v)
	}
	return v, nil
}

// validate checks the fields that depend on each other.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicLocationResult == "" {
		return fmt.Errorf("TOPIC_LOCATION_RESULT is required")
	}
	if c.AttemptTimeoutMS < c.ProbeTimeoutMS {
		return fmt.Errorf("ATTEMPT_TIMEOUT_MS (%d) must not be shorter than PROBE_TIMEOUT_MS (%d)",
			c.AttemptTimeoutMS, c.ProbeTimeoutMS)
	}
	return nil
}

// MaxFixAge is MAX_FIX_AGE_SECONDS as a duration.
func (c *Config) MaxFixAge() time.Duration {
	return time.Duration(c.MaxFixAgeSeconds) * time.Second
}

func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutMS) * time.Millisecond
}

func (c *Config) AttemptTimeout() time.Duration {
	return time.Duration(c.AttemptTimeoutMS) * time.Millisecond
}

func (c *Config) FixTTL() time.Duration {
	return time.Duration(c.FixTTLSeconds) * time.Second
}

// AcquirerOptions returns the orchestrator budgets on the wall clock.
func (c *Config) AcquirerOptions() location.Options {
	return location.Options{
		MaxFixAge:      c.MaxFixAge(),
		ProbeTimeout:   c.ProbeTimeout(),
		AttemptTimeout: c.AttemptTimeout(),
	}
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
