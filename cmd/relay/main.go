package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"i4.energy/across/nbrelay/relay"
)

func main() {
	configFile := flag.String("config", "", "Path to an HCL configuration file")
	flag.String("bind-address", "0.0.0.0:8000", "Bind address for the HTTP server")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.String("store", "sqlite", "Message store (sqlite, postgres)")
	flag.String("sqlite-path", "relay.db", "SQLite database file")
	flag.String("database-url", "", "PostgreSQL connection URL")
	flag.Bool("insecure-tls", false, "Skip PostgreSQL certificate verification")
	flag.String("nats-url", "", "NATS server URL for message fan-out")
	flag.String("nats-subject", relay.DefaultSubject, "NATS subject for appended messages")
	flag.Bool("expose-errors", false, "Return storage error text to clients")
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

	store, err := openStore(context.Background(), config, logger)
	if err != nil {
		logger.Error("Failed to open message store", "store", config.Store, "error", err)
		os.Exit(1)
	}

	var publisher relay.Publisher
	if config.NATSURL != "" {
		nc, err := relay.ConnectNATS(config.NATSURL, logger.With("component", "nats"))
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			store.Close()
			os.Exit(1)
		}
		defer nc.Drain()
		publisher = nc
	}

	logger.Info("Starting relay", "store", config.Store, "nats", config.NATSURL != "")

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: relay.NewServer(relay.Config{
			Store:        store,
			Publisher:    publisher,
			Subject:      config.NATSSubject,
			ExposeErrors: config.ExposeErrors,
			Logger:       logger.With("component", "server"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sig := <-sigChan
	logger.Info("Received shutdown signal", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Failed to gracefully shutdown server", "error", err)
	}

	logger.Info("Closing message store")
	if err := store.Close(); err != nil {
		logger.Error("Failed to close message store", "error", err)
	}
}

func openStore(ctx context.Context, config *Config, logger *slog.Logger) (relay.Store, error) {
	if config.Store != "postgres" {
		store, err := relay.OpenSQLite(config.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	store, err := relay.OpenPostgres(ctx, relay.PostgresConfig{
		URL:         config.DatabaseURL,
		InsecureTLS: config.InsecureTLS,
		Logger:      logger.With("component", "postgres"),
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}
