package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/hcl"

	"i4.energy/across/nbrelay/hardware"
)

// Config holds the node configuration
type Config struct {
	// RelayURL is the base URL of the message relay (e.g. "http://10.0.0.1:8000")
	RelayURL string `hcl:"relay_url"`
	// SerialPort is the path to the modem's serial port (e.g. "/dev/ttyS0")
	SerialPort string `hcl:"serial_port"`
	// BaudRate is the baud rate for serial communication with the modem (e.g. 115200)
	BaudRate int `hcl:"baud_rate"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `hcl:"log_level"`
	// ProviderAPN is configured before the network assigns one
	ProviderAPN string `hcl:"provider_apn"`
	// PollInterval is the pause between two receive mode fetches (e.g. "30s")
	PollInterval string `hcl:"poll_interval"`
	// Hardware describes the GPIO and I2C peripherals
	Hardware hardware.Config `hcl:"hardware"`
}

// Poll returns the parsed poll interval.
func (c *Config) Poll() time.Duration {
	d, _ := time.ParseDuration(c.PollInterval)
	return d
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	if config.RelayURL == "" {
		return nil, fmt.Errorf("relay URL is required")
	}
	if _, err := time.ParseDuration(config.PollInterval); err != nil {
		return nil, fmt.Errorf("poll interval: %w", err)
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.SerialPort = "/dev/ttyS0"
		c.BaudRate = 115200
		c.LogLevel = "info"
		c.ProviderAPN = "super"
		c.PollInterval = "30s"
		c.Hardware = hardware.Config{
			Chip: "/dev/gpiochip0",
			Pins: hardware.PinMap{
				PowerKey: 14,
				LED:      25,
				Switch:   15,
				Button:   16,
			},
			SensorVolts: 3.3,
			Display:     true,
		}
		return nil
	}
}

// WithFile loads configuration from an HCL file. An empty path is ignored.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		if err := hcl.Unmarshal(b, c); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if url := os.Getenv("RELAY_URL"); url != "" {
			c.RelayURL = url
		}

		if serial := os.Getenv("SERIAL_PORT"); serial != "" {
			c.SerialPort = serial
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if apn := os.Getenv("PROVIDER_APN"); apn != "" {
			c.ProviderAPN = apn
		}

		if poll := os.Getenv("POLL_INTERVAL"); poll != "" {
			c.PollInterval = poll
		}

		if chip := os.Getenv("GPIO_CHIP"); chip != "" {
			c.Hardware.Chip = chip
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "relay-url":
				c.RelayURL = f.Value.String()
			case "serial-port":
				c.SerialPort = f.Value.String()
			case "baud-rate":
				if b, err := strconv.Atoi(f.Value.String()); err == nil {
					c.BaudRate = b
				}
			case "log-level":
				c.LogLevel = f.Value.String()
			case "provider-apn":
				c.ProviderAPN = f.Value.String()
			case "poll-interval":
				c.PollInterval = f.Value.String()
			case "gpio-chip":
				c.Hardware.Chip = f.Value.String()
			case "display":
				if b, err := strconv.ParseBool(f.Value.String()); err == nil {
					c.Hardware.Display = b
				}
			}
		})
		return nil
	}
}
