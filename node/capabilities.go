package node

//go:generate go tool mockgen -source=capabilities.go -destination=mock_capabilities.go -package=node

import "context"

// Relay reaches the relay's HTTP API.
type Relay interface {
	Get(ctx context.Context, url, path string) ([]byte, error)
	Post(ctx context.Context, url, path string, body []byte) error
}

// Modem is a Relay that must be brought up before use.
type Modem interface {
	Relay
	CheckStart(ctx context.Context) error
	SetNetwork(ctx context.Context) error
	CheckNetwork(ctx context.Context) error
}

// Input is a digital input wired with a pull-up: 0 when closed.
type Input interface {
	Value() (byte, error)
}

// Sensor reports a reading on a 0..65535 scale.
type Sensor interface {
	Read() (uint16, error)
}

// Display shows three lines of text: a header, a body and a footer.
type Display interface {
	Show(header, body, footer string) error
}

// Indicator is the status LED.
type Indicator interface {
	High() error
	Low() error
}
