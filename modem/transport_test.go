package modem_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.bug.st/serial"
	"i4.energy/across/nbrelay/modem"
)

var _ modem.Transport = serial.Port(nil)

func TestSerialDialerDial(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		dialer  modem.SerialDialer
		ctx     context.Context
		wantErr string
		wantIs  error
	}{
		{
			name:    "nil context",
			dialer:  modem.SerialDialer{PortName: "/dev/ttyS0"},
			ctx:     nil,
			wantErr: "modem: context is nil",
		},
		{
			name:    "missing port name",
			dialer:  modem.SerialDialer{},
			ctx:     context.Background(),
			wantErr: "modem: serial port name is required",
		},
		{
			name:   "cancelled before open",
			dialer: modem.SerialDialer{PortName: "/dev/nonexistent"},
			ctx:    cancelled,
			wantIs: context.Canceled,
		},
		{
			name:    "default 115200 8N1 on a missing port",
			dialer:  modem.SerialDialer{PortName: "/dev/nonexistent"},
			ctx:     context.Background(),
			wantErr: "modem: open /dev/nonexistent",
		},
		{
			name: "explicit mode on a missing port",
			dialer: modem.SerialDialer{
				PortName: "/dev/nonexistent",
				Mode: &serial.Mode{
					BaudRate: 9600,
					Parity:   serial.NoParity,
					DataBits: 8,
					StopBits: serial.OneStopBit,
				},
			},
			ctx:     context.Background(),
			wantErr: "modem: open /dev/nonexistent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport, err := tt.dialer.Dial(tt.ctx)

			if err == nil {
				t.Fatal("expected an error")
			}
			if transport != nil {
				t.Errorf("expected nil transport, got: %v", transport)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("expected %v, got: %v", tt.wantIs, err)
			}
			if tt.wantErr != "" && !strings.HasPrefix(err.Error(), tt.wantErr) {
				t.Errorf("expected error starting with %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestTestTransportPolling(t *testing.T) {
	transport := modem.NewTestTransport(func(line string) string {
		if line == "AT" {
			return "AT\r\r\nOK\r\n"
		}
		return ""
	})

	buf := make([]byte, 64)
	if n, err := transport.Read(buf); n != 0 || err != nil {
		t.Fatalf("expected an idle read, got: %d, %v", n, err)
	}

	if _, err := transport.Write([]byte("AT\r\n")); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	n, err := transport.Read(buf)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if got := string(buf[:n]); got != "AT\r\r\nOK\r\n" {
		t.Errorf("unexpected reply: %q", got)
	}

	if err := transport.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if _, err := transport.Write([]byte("AT\r\n")); err == nil {
		t.Error("expected write after close to fail")
	}
}
