package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"i4.energy/across/nbrelay/hardware"
	"i4.energy/across/nbrelay/modem"
	"i4.energy/across/nbrelay/node"
)

func main() {
	configFile := flag.String("config", "", "Path to an HCL configuration file")
	flag.String("relay-url", "", "Base URL of the message relay")
	flag.String("serial-port", "/dev/ttyS0", "Serial port to connect to the modem")
	flag.Int("baud-rate", 115200, "Baud rate for serial communication")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.String("provider-apn", "super", "APN configured before the network assigns one")
	flag.String("poll-interval", "30s", "Pause between two receive mode fetches")
	flag.String("gpio-chip", "/dev/gpiochip0", "GPIO character device")
	flag.Bool("display", true, "Drive the SSD1306 display")
	flag.Parse()

	config, err := LoadConfig(WithDefaults(), WithFile(*configFile), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	if err := run(config, logger); err != nil {
		logger.Error("Node stopped", "error", err)
		os.Exit(1)
	}
}

func run(config *Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	board, err := hardware.OpenBoard(config.Hardware, logger.With("component", "hardware"))
	if err != nil {
		return err
	}
	defer func() {
		if err := board.Close(); err != nil {
			logger.Error("Failed to release hardware", "error", err)
		}
	}()

	modemConfig, err := modem.NewConfigBuilder().
		WithProviderAPN(config.ProviderAPN).
		WithPowerKey(board.PowerKey).
		WithLogger(logger.With("component", "modem")).
		WithDialer(modem.SerialDialer{
			PortName: config.SerialPort,
			BaudRate: config.BaudRate,
		}).
		Build()
	if err != nil {
		return err
	}

	m, err := modem.New(ctx, modemConfig)
	if err != nil {
		return err
	}
	defer func() {
		logger.Info("Closing modem connection")
		if err := m.Close(); err != nil {
			logger.Error("Failed to close modem", "error", err)
		}
	}()

	loopConfig := node.Config{
		Modem:        m,
		Switch:       board.Switch,
		Button:       board.Button,
		Sensor:       board.Sensor,
		LED:          board.LED,
		RelayURL:     config.RelayURL,
		PollInterval: config.Poll(),
		Logger:       logger.With("component", "node"),
	}
	if board.Screen != nil {
		loopConfig.Display = board.Screen
	}

	loop, err := node.New(loopConfig)
	if err != nil {
		return err
	}

	logger.Info("Starting node", "relay", config.RelayURL, "serial_port", config.SerialPort)

	if err := loop.Boot(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if errors.Is(err, modem.ErrModemUnresponsive) {
			logger.Error("Modem did not answer after power cycling")
		}
		return err
	}

	err = loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("Received shutdown signal")
		return nil
	}
	return err
}
