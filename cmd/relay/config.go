package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/hashicorp/hcl"
)

// Config holds the relay configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8000")
	BindAddress string `hcl:"bind_address"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `hcl:"log_level"`
	// Store selects the message store: "sqlite" or "postgres"
	Store string `hcl:"store"`
	// SQLitePath is the database file of the sqlite store
	SQLitePath string `hcl:"sqlite_path"`
	// DatabaseURL is the connection string of the postgres store
	DatabaseURL string `hcl:"database_url"`
	// InsecureTLS disables certificate verification towards postgres
	InsecureTLS bool `hcl:"insecure_tls"`
	// NATSURL enables fan-out of appended messages when set
	NATSURL     string `hcl:"nats_url"`
	NATSSubject string `hcl:"nats_subject"`
	// ExposeErrors returns storage error text to clients
	ExposeErrors bool `hcl:"expose_errors"`
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

	if config.Store != "sqlite" && config.Store != "postgres" {
		return nil, fmt.Errorf("unknown store %q", config.Store)
	}
	if config.Store == "postgres" && config.DatabaseURL == "" {
		return nil, fmt.Errorf("postgres store requires a database URL")
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8000"
		c.LogLevel = "info"
		c.Store = "sqlite"
		c.SQLitePath = "relay.db"
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
		if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
			c.BindAddress = addr
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if store := os.Getenv("RELAY_STORE"); store != "" {
			c.Store = store
		}

		if path := os.Getenv("SQLITE_PATH"); path != "" {
			c.SQLitePath = path
		}

		if url := os.Getenv("DATABASE_URL"); url != "" {
			c.DatabaseURL = url
		}

		if insecure := os.Getenv("DATABASE_INSECURE_TLS"); insecure != "" {
			if b, err := strconv.ParseBool(insecure); err == nil {
				c.InsecureTLS = b
			}
		}

		if url := os.Getenv("NATS_URL"); url != "" {
			c.NATSURL = url
		}

		if subject := os.Getenv("NATS_SUBJECT"); subject != "" {
			c.NATSSubject = subject
		}

		if expose := os.Getenv("EXPOSE_ERRORS"); expose != "" {
			if b, err := strconv.ParseBool(expose); err == nil {
				c.ExposeErrors = b
			}
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "log-level":
				c.LogLevel = f.Value.String()
			case "store":
				c.Store = f.Value.String()
			case "sqlite-path":
				c.SQLitePath = f.Value.String()
			case "database-url":
				c.DatabaseURL = f.Value.String()
			case "insecure-tls":
				if b, err := strconv.ParseBool(f.Value.String()); err == nil {
					c.InsecureTLS = b
				}
			case "nats-url":
				c.NATSURL = f.Value.String()
			case "nats-subject":
				c.NATSSubject = f.Value.String()
			case "expose-errors":
				if b, err := strconv.ParseBool(f.Value.String()); err == nil {
					c.ExposeErrors = b
				}
			}
		})
		return nil
	}
}
