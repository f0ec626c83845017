// Package node runs the sensor node: it brings the modem up, then either
// posts the sensor code when the button is pressed (send mode) or polls the
// relay for the latest text message (receive mode), depending on the slide
// switch.
package node

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

const (
	PathPostMsg    = "/post-msg/"
	PathLatestText = "/latest-text-msg/"
)

const (
	DefaultPollInterval = 30 * time.Second
	DefaultTick         = 100 * time.Millisecond
	DefaultHold         = 2 * time.Second
	DefaultBlink        = time.Second
)

var (
	// ErrNoModem is returned by New when no modem is configured.
	ErrNoModem = errors.New("no modem configured")
	// ErrNoInputs is returned by New when the switch, button or sensor is
	// missing.
	ErrNoInputs = errors.New("switch, button and sensor are required")
)

type Config struct {
	Modem  Modem
	Switch Input
	Button Input
	Sensor Sensor
	// Display and LED are optional; without them the node only logs.
	Display Display
	LED     Indicator

	RelayURL string
	// PollInterval is the pause between two receive mode fetches.
	PollInterval time.Duration
	// Tick is the pause between two loop iterations.
	Tick time.Duration
	// Hold is how long a send result stays on screen.
	Hold time.Duration
	// Blink is the LED on and off time at boot.
	Blink  time.Duration
	Logger *slog.Logger
}

func (c *Config) setDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
	if c.Hold <= 0 {
		c.Hold = DefaultHold
	}
	if c.Blink <= 0 {
		c.Blink = DefaultBlink
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

type screen struct {
	header, body, footer string
}

// Loop is the node application. It is driven by a single goroutine.
type Loop struct {
	config Config
	logger *slog.Logger

	now      func() time.Time
	lastGet  time.Time
	lastText string
	hasText  bool
	shown    screen
	drawn    bool
}

func New(config Config) (*Loop, error) {
	if config.Modem == nil {
		return nil, ErrNoModem
	}
	if config.Switch == nil || config.Button == nil || config.Sensor == nil {
		return nil, ErrNoInputs
	}
	config.setDefaults()
	return &Loop{
		config: config,
		logger: config.Logger,
		now:    time.Now,
	}, nil
}

// Boot blinks the LED and runs the modem bring-up, reporting every stage on
// the display.
func (l *Loop) Boot(ctx context.Context) error {
	l.show("Starting:", "Modem", "")
	if err := l.blink(ctx); err != nil {
		return err
	}

	stages := []struct {
		label string
		run   func(context.Context) error
	}{
		{"Modem started", l.config.Modem.CheckStart},
		{"Network", l.config.Modem.SetNetwork},
		{"Checking network", l.config.Modem.CheckNetwork},
	}
	for _, stage := range stages {
		if err := stage.run(ctx); err != nil {
			l.show("Starting:", "Failed", stage.label)
			return err
		}
		l.show("Starting:", stage.label, "")
	}

	l.show("Starting:", "Connected", "")
	l.logger.Info("Node ready", "relay", l.config.RelayURL)
	return nil
}

// Run executes the loop until ctx is done. Failures of single iterations
// are logged and never stop the loop.
func (l *Loop) Run(ctx context.Context) error {
	l.lastGet = l.now()
	for {
		l.Step(ctx)
		if err := sleep(ctx, l.config.Tick); err != nil {
			return err
		}
	}
}

// Step runs one iteration in the mode selected by the switch.
func (l *Loop) Step(ctx context.Context) {
	position, err := l.config.Switch.Value()
	if err != nil {
		l.logger.Warn("Failed to read mode switch", "error", err)
		return
	}
	if position == 0 {
		l.sendMode(ctx)
		return
	}
	l.receiveMode(ctx)
}

func (l *Loop) sendMode(ctx context.Context) {
	reading, err := l.config.Sensor.Read()
	if err != nil {
		l.logger.Warn("Failed to read sensor", "error", err)
		return
	}
	code := Normalize(reading)
	value := "Value: " + code
	l.show("Send mode:", value, "Press to send")

	pressed, err := l.config.Button.Value()
	if err != nil {
		l.logger.Warn("Failed to read button", "error", err)
		return
	}
	if pressed != 0 {
		return
	}

	l.show("Send mode:", value, "Sending, wait")
	if err := l.post(ctx, code); err != nil {
		l.logger.Error("Failed to send message", "code", code, "error", err)
		l.show("Send mode:", value, "Error, try again")
	} else {
		l.logger.Info("Message sent", "code", code)
		l.show("Send mode:", value, "Message sent")
	}
	// Cancellation surfaces in Run.
	_ = sleep(ctx, l.config.Hold)
}

func (l *Loop) post(ctx context.Context, code string) error {
	body, err := sendPayload(code)
	if err != nil {
		return err
	}
	return l.config.Modem.Post(ctx, l.config.RelayURL, PathPostMsg, body)
}

func (l *Loop) receiveMode(ctx context.Context) {
	now := l.now()
	if now.Sub(l.lastGet) >= l.config.PollInterval {
		l.fetch(ctx)
		l.lastGet = now
	}

	if l.hasText {
		l.show("Receive mode", "Message: "+l.lastText, "")
	} else {
		l.show("Receive mode", "Waiting for msgs", "")
	}
}

func (l *Loop) fetch(ctx context.Context) {
	body, err := l.config.Modem.Get(ctx, l.config.RelayURL, PathLatestText)
	if err != nil {
		l.logger.Warn("Failed to fetch latest message", "error", err)
		return
	}
	text, err := ExtractText(body)
	if err != nil {
		l.logger.Warn("Failed to decode latest message", "body", string(body), "error", err)
		return
	}
	l.logger.Info("Received message", "text", text)
	l.lastText, l.hasText = text, true
}

// show draws a screen unless it is already displayed.
func (l *Loop) show(header, body, footer string) {
	s := screen{header, body, footer}
	if l.config.Display == nil || (l.drawn && s == l.shown) {
		return
	}
	if err := l.config.Display.Show(header, body, footer); err != nil {
		l.logger.Debug("Display update failed", "error", err)
		return
	}
	l.shown, l.drawn = s, true
}

// blink flashes the LED twice.
func (l *Loop) blink(ctx context.Context) error {
	if l.config.LED == nil {
		return nil
	}
	for range 2 {
		if err := l.config.LED.High(); err != nil {
			l.logger.Debug("LED failed", "error", err)
			return nil
		}
		if err := sleep(ctx, l.config.Blink); err != nil {
			l.config.LED.Low() //nolint:errcheck
			return err
		}
		if err := l.config.LED.Low(); err != nil {
			l.logger.Debug("LED failed", "error", err)
			return nil
		}
		if err := sleep(ctx, l.config.Blink); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
