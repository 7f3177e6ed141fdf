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

	"github.com/sirupsen/logrus"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string

	// Topics
	TopicMag       string
	TopicMagStatus string

	// ICM-20948 host
	ICMBus        string // "i2c" or "spi"
	ICMI2CBus     string // periph bus name, "" opens the first one
	ICMI2CAddr    uint16
	ICMSPIDevice  string
	ICMSPISpeedHz int64
	ICMExternal   bool

	// AK09916 through the auxiliary master
	MagMock            bool
	MagSampleInterval  int // milliseconds
	MagInitRetries     int
	MagReadDelayUS     int
	MagWriteDelayUS    int
	MagRecoveryDelayUS int
	MagReadAdjustments bool

	// Timing
	ConsoleLogInterval int // milliseconds

	// Web Server
	WebServerPort int

	// Register debugger
	RegisterDebugPort        int
	RegisterDebugAllowWrites bool

	LogLevel logrus.Level
}

// Default returns a Config with every optional value set. The AK09916
// timings are the chip's documented minimums at 400 kHz.
func Default() *Config {
	return &Config{
		MQTTClientIDProducer: "auxmag-producer",
		MQTTClientIDConsole:  "auxmag-console",
		MQTTClientIDWeb:      "auxmag-web",
		TopicMag:             "auxmag/mag",
		TopicMagStatus:       "auxmag/mag/status",
		ICMBus:               "i2c",
		ICMI2CAddr:           0x68,
		ICMSPIDevice:         "/dev/spidev0.0",
		ICMSPISpeedHz:        7000000,
		MagSampleInterval:    10,
		MagInitRetries:       20,
		MagReadDelayUS:       50,
		MagWriteDelayUS:      50,
		MagRecoveryDelayUS:   200,
		MagReadAdjustments:   true,
		ConsoleLogInterval:   1000,
		WebServerPort:        8080,
		RegisterDebugPort:    8081,
		LogLevel:             logrus.InfoLevel,
	}
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default(). Empty lines and lines
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

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value

	// Topics
	case "TOPIC_MAG":
		c.TopicMag = value
	case "TOPIC_MAG_STATUS":
		c.TopicMagStatus = value

	// ICM-20948
	case "ICM_BUS":
		v := strings.ToLower(value)
		if v != "i2c" && v != "spi" {
			return fmt.Errorf("invalid ICM_BUS %q: must be i2c or spi", value)
		}
		c.ICMBus = v
	case "ICM_I2C_BUS":
		c.ICMI2CBus = value
	case "ICM_I2C_ADDR":
		addr, perr := strconv.ParseUint(value, 0, 16)
		if perr != nil {
			return fmt.Errorf("invalid ICM_I2C_ADDR %q: %w", value, perr)
		}
		if addr != 0x68 && addr != 0x69 {
			return fmt.Errorf("invalid ICM_I2C_ADDR %q: must be 0x68 or 0x69", value)
		}
		c.ICMI2CAddr = uint16(addr)
	case "ICM_SPI_DEVICE":
		c.ICMSPIDevice = value
	case "ICM_SPI_SPEED_HZ":
		hz, perr := strconv.ParseInt(value, 10, 64)
		if perr != nil {
			return fmt.Errorf("invalid ICM_SPI_SPEED_HZ %q: %w", value, perr)
		}
		c.ICMSPISpeedHz = hz
	case "ICM_EXTERNAL":
		c.ICMExternal, err = parseBool(key, value)

	// AK09916
	case "MAG_MOCK":
		c.MagMock, err = parseBool(key, value)
	case "MAG_SAMPLE_INTERVAL":
		c.MagSampleInterval, err = parseInt(key, value)
	case "MAG_INIT_RETRIES":
		c.MagInitRetries, err = parseInt(key, value)
	case "MAG_READ_DELAY_US":
		c.MagReadDelayUS, err = parseInt(key, value)
	case "MAG_WRITE_DELAY_US":
		c.MagWriteDelayUS, err = parseInt(key, value)
	case "MAG_RECOVERY_DELAY_US":
		c.MagRecoveryDelayUS, err = parseInt(key, value)
	case "MAG_READ_ADJUSTMENTS":
		c.MagReadAdjustments, err = parseBool(key, value)

	// Timing
	case "CONSOLE_LOG_INTERVAL":
		c.ConsoleLogInterval, err = parseInt(key, value)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value)

	// Register debugger
	case "REGISTER_DEBUG_PORT":
		c.RegisterDebugPort, err = parseInt(key, value)
	case "REGISTER_DEBUG_ALLOW_WRITES":
		c.RegisterDebugAllowWrites, err = parseBool(key, value)

	case "LOG_LEVEL":
		lvl, perr := logrus.ParseLevel(value)
		if perr != nil {
			return fmt.Errorf("invalid LOG_LEVEL %q: %w", value, perr)
		}
		c.LogLevel = lvl

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.ICMBus == "spi" && c.ICMSPIDevice == "" && !c.MagMock {
		return fmt.Errorf("ICM_SPI_DEVICE is required when ICM_BUS=spi")
	}
	if c.MagSampleInterval <= 0 {
		return fmt.Errorf("MAG_SAMPLE_INTERVAL must be positive")
	}
	if c.MagInitRetries <= 0 {
		return fmt.Errorf("MAG_INIT_RETRIES must be positive")
	}
	if c.MagReadDelayUS <= 0 || c.MagWriteDelayUS <= 0 || c.MagRecoveryDelayUS <= 0 {
		return fmt.Errorf("MAG_*_DELAY_US values must be positive")
	}
	if c.ConsoleLogInterval <= 0 {
		return fmt.Errorf("CONSOLE_LOG_INTERVAL must be positive")
	}
	return nil
}

// SampleInterval is MAG_SAMPLE_INTERVAL as a duration.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.MagSampleInterval) * time.Millisecond
}

// ReadDelay is MAG_READ_DELAY_US as a duration.
func (c *Config) ReadDelay() time.Duration {
	return time.Duration(c.MagReadDelayUS) * time.Microsecond
}

// WriteDelay is MAG_WRITE_DELAY_US as a duration.
func (c *Config) WriteDelay() time.Duration {
	return time.Duration(c.MagWriteDelayUS) * time.Microsecond
}

// RecoveryDelay is MAG_RECOVERY_DELAY_US as a duration.
func (c *Config) RecoveryDelay() time.Duration {
	return time.Duration(c.MagRecoveryDelayUS) * time.Microsecond
}

// Source names where samples come from: "mock", "i2c" or "spi".
func (c *Config) Source() string {
	if c.MagMock {
		return "mock"
	}
	return c.ICMBus
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
// This is the only function that can set globalConfig.
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
