package modem

import (
	"context"
	"io"
	"strings"
	"sync"

	"i4.energy/across/nbrelay/at"
)

// TestTransport is a test helper that simulates the modem side of the
// serial link. Every complete line written to it is passed to a responder
// whose answer is queued for reading, the way a real modem answers a
// command. Reads never block, matching the Transport contract.
type TestTransport struct {
	mu      sync.Mutex
	respond func(line string) string
	partial string
	pending []byte
	written []string
	chunk   int
	closed  bool
}

// NewTestTransport creates a new test transport answering with respond.
// A nil respond leaves the link silent.
func NewTestTransport(respond func(line string) string) *TestTransport {
	return &TestTransport{respond: respond}
}

// WithChunk limits how many bytes a single Read returns, simulating a
// slow link that delivers a response byte by byte.
func (t *TestTransport) WithChunk(n int) *TestTransport {
	t.chunk = n
	return t
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}

	t.partial += string(p)
	for {
		i := strings.Index(t.partial, at.CRLF)
		if i < 0 {
			break
		}
		line := t.partial[:i]
		t.partial = t.partial[i+len(at.CRLF):]
		t.written = append(t.written, line)
		if t.respond != nil {
			t.pending = append(t.pending, t.respond(line)...)
		}
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}
	limit := len(t.pending)
	if t.chunk > 0 && limit > t.chunk {
		limit = t.chunk
	}
	n = copy(p, t.pending[:limit])
	t.pending = t.pending[n:]
	return n, nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return nil
}

// SendData queues unsolicited data to be read by the transport.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.pending = append(t.pending, data...)
	}
}

// Written returns every line written so far, without terminators.
func (t *TestTransport) Written() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.written...)
}

// Count returns how many times line was written.
func (t *TestTransport) Count(line string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, w := range t.written {
		if w == line {
			n++
		}
	}
	return n
}

// TestDialer hands out a prepared transport.
type TestDialer struct {
	Transport Transport
	Err       error
}

func (d TestDialer) Dial(_ context.Context) (Transport, error) {
	return d.Transport, d.Err
}
