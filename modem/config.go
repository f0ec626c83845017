package modem

import (
	"io"
	"log/slog"
	"time"
)

// Timeouts groups every response window and delay used by the driver.
// Zero fields are replaced by DefaultTimeouts.
type Timeouts struct {
	// Command is the base window of a plain AT exchange.
	Command time.Duration
	// RetryExtension is added to the window of every retry attempt.
	RetryExtension time.Duration
	// Poll is the pause between two empty transport reads.
	Poll time.Duration

	// PowerPulse is how long the power key is held asserted.
	PowerPulse time.Duration
	// BootWait is the pause after a power cycle before probing again.
	BootWait time.Duration
	// AttachInterval is the pause between two attachment polls.
	AttachInterval time.Duration

	// ConnectGet and ConnectPost bound AT+SHCONN.
	ConnectGet  time.Duration
	ConnectPost time.Duration
	// Request bounds AT+SHREQ.
	Request time.Duration
	// ReadGet and ReadPost bound AT+SHREAD.
	ReadGet  time.Duration
	ReadPost time.Duration
}

// DefaultTimeouts returns the windows tuned for a SIM7080G on NB-IoT.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Command:        1500 * time.Millisecond,
		RetryExtension: 500 * time.Millisecond,
		Poll:           5 * time.Millisecond,
		PowerPulse:     2 * time.Second,
		BootWait:       5 * time.Second,
		AttachInterval: 5 * time.Second,
		ConnectGet:     3 * time.Second,
		ConnectPost:    5 * time.Second,
		Request:        8 * time.Second,
		ReadGet:        5 * time.Second,
		ReadPost:       3 * time.Second,
	}
}

func (t *Timeouts) setDefaults() {
	d := DefaultTimeouts()
	fill := func(v *time.Duration, def time.Duration) {
		if *v == 0 {
			*v = def
		}
	}
	fill(&t.Command, d.Command)
	fill(&t.RetryExtension, d.RetryExtension)
	fill(&t.Poll, d.Poll)
	fill(&t.PowerPulse, d.PowerPulse)
	fill(&t.BootWait, d.BootWait)
	fill(&t.AttachInterval, d.AttachInterval)
	fill(&t.ConnectGet, d.ConnectGet)
	fill(&t.ConnectPost, d.ConnectPost)
	fill(&t.Request, d.Request)
	fill(&t.ReadGet, d.ReadGet)
	fill(&t.ReadPost, d.ReadPost)
}

type Config struct {
	Dialer   Dialer
	PowerKey PowerKey
	Logger   *slog.Logger
	Timeouts Timeouts
	// Retries is the number of extra attempts for silent or unmatched
	// commands. Negative disables retries.
	Retries        int
	StartAttempts  int
	AttachAttempts int
	// ProviderAPN is configured before the network assigned APN is known.
	ProviderAPN string
}

func (c *Config) validate() error {
	if c.Dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	c.Timeouts.setDefaults()
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.Retries == 0 {
		c.Retries = 1
	}
	if c.StartAttempts == 0 {
		c.StartAttempts = 3
	}
	if c.AttachAttempts == 0 {
		c.AttachAttempts = 9
	}
	if c.ProviderAPN == "" {
		c.ProviderAPN = "super"
	}
}

// ConfigBuilder assembles a Config step by step.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.Dialer = d
	return b
}

func (b *ConfigBuilder) WithPowerKey(p PowerKey) *ConfigBuilder {
	b.config.PowerKey = p
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.Logger = l
	return b
}

func (b *ConfigBuilder) WithTimeouts(t Timeouts) *ConfigBuilder {
	b.config.Timeouts = t
	return b
}

func (b *ConfigBuilder) WithATTimeout(d time.Duration) *ConfigBuilder {
	b.config.Timeouts.Command = d
	return b
}

func (b *ConfigBuilder) WithRetries(n int) *ConfigBuilder {
	b.config.Retries = n
	return b
}

func (b *ConfigBuilder) WithStartAttempts(n int) *ConfigBuilder {
	b.config.StartAttempts = n
	return b
}

func (b *ConfigBuilder) WithAttachAttempts(n int) *ConfigBuilder {
	b.config.AttachAttempts = n
	return b
}

func (b *ConfigBuilder) WithProviderAPN(apn string) *ConfigBuilder {
	b.config.ProviderAPN = apn
	return b
}

// Build validates the collected settings and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.setDefaults()
	return c, nil
}
