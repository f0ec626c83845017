package modem_test

import (
	gomock "go.uber.org/mock/gomock"
	"i4.energy/across/nbrelay/modem"
)

// MockSequenceBuilder records the transport calls of settled exchanges:
// the engine drains stale input, writes the command and reads the answer.
type MockSequenceBuilder struct {
	transport *modem.MockTransport
	calls     []any
}

func NewMockSequence(transport *modem.MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
		calls:     []any{},
	}
}

func (b *MockSequenceBuilder) Exchange(line, resp string) *MockSequenceBuilder {
	cmd := []byte(line + "\r\n")
	b.calls = append(b.calls,
		b.transport.EXPECT().Read(gomock.Any()).Return(0, nil),
		b.transport.EXPECT().Write(cmd).Return(len(cmd), nil),
		b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			return copy(p, resp), nil
		}),
	)
	return b
}

func (b *MockSequenceBuilder) AT() *MockSequenceBuilder {
	return b.Exchange("AT", "AT\r\r\nOK\r\n")
}

func (b *MockSequenceBuilder) EchoOn() *MockSequenceBuilder {
	return b.Exchange("ATE1", "ATE1\r\r\nOK\r\n")
}

func (b *MockSequenceBuilder) SimReady() *MockSequenceBuilder {
	return b.Exchange("AT+CPIN?", "AT+CPIN?\r\r\n+CPIN: READY\r\n\r\nOK\r\n")
}

func (b *MockSequenceBuilder) SimNotInserted() *MockSequenceBuilder {
	return b.Exchange("AT+CPIN?", "AT+CPIN?\r\r\n+CME ERROR: SIM not inserted\r\n")
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}
