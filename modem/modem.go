package modem

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"i4.energy/across/nbrelay/at"
)

// Modem represents a SIM7080-class NB-IoT modem driven by AT commands over
// a serial link. Every exchange goes through a single Engine and is
// serialized by a mutex: the protocol is half duplex and a command's
// response window must not overlap another command.
type Modem struct {
	mu sync.Mutex

	// transport provides the physical connection to the modem (serial, TCP, etc.)
	transport Transport
	// engine sends commands and classifies responses
	engine *Engine
	// power drives the power key; nil disables power cycling
	power PowerKey
	// config contains the modem configuration settings
	config Config
	logger *slog.Logger

	// state is the lifecycle position, only ever moved forward or reset
	state State
	// apn is the network assigned access point name
	apn string
	// closed indicates if the modem has been shut down
	closed bool
}

// New creates a new Modem instance with the given configuration and
// establishes the transport connection. The modem is left Uninitialized;
// call Start to bring the network up.
func New(ctx context.Context, config Config) (*Modem, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.Dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial modem: %w", err)
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	return &Modem{
		transport: transport,
		engine:    NewEngine(transport, config),
		power:     config.PowerKey,
		config:    config,
		logger:    config.Logger,
		state:     StateUninitialized,
	}, nil
}

// Close releases the transport. After calling Close, the modem cannot be
// reused.
func (m *Modem) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrAlreadyClosed
	}
	m.closed = true

	return m.transport.Close()
}

// State returns the current lifecycle state.
func (m *Modem) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// APN returns the access point name in use once resolved.
func (m *Modem) APN() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apn
}

// Send runs a raw command. It is meant for diagnostics; regular operations
// use the lifecycle and HTTP methods.
func (m *Modem) Send(ctx context.Context, cmd at.Command) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Result{}, ErrAlreadyClosed
	}
	return m.engine.Send(ctx, cmd), nil
}
