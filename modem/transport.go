package modem

//go:generate go tool mockgen -source=transport.go -destination=mock_transport.go -package=modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Transport represents an established, bidirectional byte stream to the
// cellular modem.
//
// A Transport is assumed to be already connected and ready for use. Read
// must behave like a poll: it returns the bytes currently buffered and
// must not block longer than a short interval, returning 0 and a nil
// error when nothing is pending. Write sends immediately; there is no
// flow control and no framing. Reliability is left entirely to the
// command engine.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to the modem.
//
// Dialer abstracts how the modem connection is created (for example, via a
// serial port, a TCP-based emulator, or a test double) and is intended to
// be used during modem construction only.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport.
	// It should respect cancellation provided by the context.
	Dial(ctx context.Context) (Transport, error)
}

// PowerKey drives the modem's power control line. Holding it high for a
// couple of seconds toggles the modem power state.
type PowerKey interface {
	High() error
	Low() error
}

// DefaultReadPoll is the read timeout applied to serial ports.
const DefaultReadPoll = 10 * time.Millisecond

// SerialDialer opens the modem over a serial port using go.bug.st/serial.
type SerialDialer struct {
	PortName string
	BaudRate int
	// Mode overrides BaudRate when set.
	Mode *serial.Mode
	// ReadPoll bounds a single Read on the port.
	ReadPoll time.Duration
}

func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("modem: context is nil")
	}
	if d.PortName == "" {
		return nil, errors.New("modem: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		baud := d.BaudRate
		if baud == 0 {
			baud = 115200
		}
		mode = &serial.Mode{
			BaudRate: baud,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("modem: open %s: %w", d.PortName, err)
	}

	poll := d.ReadPoll
	if poll <= 0 {
		poll = DefaultReadPoll
	}
	if err := port.SetReadTimeout(poll); err != nil {
		port.Close()
		return nil, fmt.Errorf("modem: set read timeout: %w", err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("modem: reset input buffer: %w", err)
	}

	return port, nil
}
