package modem

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"i4.energy/across/nbrelay/at"
)

// Result is the classified outcome of one command, including every retry.
type Result struct {
	Cmd     at.Command
	Outcome at.Outcome
	// Response holds the buffer of the last attempt.
	Response []byte
	Attempts int
	// Failure is set when the transport or the context aborted the command.
	Failure error
}

// OK reports whether the expected marker was seen.
func (r Result) OK() bool {
	return r.Failure == nil && r.Outcome == at.Matched
}

// Text returns the raw response as a string.
func (r Result) Text() string {
	return string(r.Response)
}

// Err converts a non matched result into an error.
func (r Result) Err() error {
	if r.Failure != nil {
		return fmt.Errorf("%s: %w", r.Cmd.Line, r.Failure)
	}
	if r.Outcome == at.Matched {
		return nil
	}
	return &CommandError{Cmd: r.Cmd.Line, Outcome: r.Outcome, Response: string(r.Response)}
}

// Engine sends AT commands over a Transport and classifies the answers.
//
// Responses are free text without reliable framing, so an exchange is
// bounded by time: bytes are accumulated until the window elapses or the
// expected marker shows up together with a final result code. Silent and
// unmatched exchanges are retried with an extended window; an explicit
// ERROR is returned to the caller at once.
//
// Engine is not safe for concurrent use; Modem serializes access.
type Engine struct {
	transport Transport
	logger    *slog.Logger
	timeouts  Timeouts
	retries   int
	buf       []byte
}

// NewEngine creates an engine writing to t. Zero config fields take
// their defaults.
func NewEngine(t Transport, config Config) *Engine {
	config.setDefaults()
	return &Engine{
		transport: t,
		logger:    config.Logger,
		timeouts:  config.Timeouts,
		retries:   max(config.Retries, 0),
		buf:       make([]byte, 256),
	}
}

// Send runs cmd and returns its classified result. It never returns a
// Matched outcome unless the marker was actually received.
func (e *Engine) Send(ctx context.Context, cmd at.Command) Result {
	if cmd.Marker == "" {
		cmd.Marker = at.OK
	}
	base := cmd.Timeout
	if base <= 0 {
		base = e.timeouts.Command
	}

	retries := e.retries
	if cmd.NoRetry {
		retries = 0
	}

	var res Result
	for attempt := 0; attempt <= retries; attempt++ {
		window := base + time.Duration(attempt)*e.timeouts.RetryExtension
		resp, err := e.exchange(ctx, cmd, window)

		res = Result{
			Cmd:      cmd,
			Outcome:  at.Evaluate(resp, cmd.Marker),
			Response: resp,
			Attempts: attempt + 1,
			Failure:  err,
		}

		e.logger.Debug("AT exchange",
			"cmd", cmd.Line,
			"attempt", res.Attempts,
			"window", window,
			"outcome", res.Outcome,
			"response", at.Lines(resp),
		)

		if err != nil || !res.Outcome.Retriable() {
			return res
		}
	}
	return res
}

// Expect is a shorthand for commands that only need the marker.
func (e *Engine) Expect(ctx context.Context, line, marker string, timeout time.Duration) error {
	return e.Send(ctx, at.Command{Line: line, Marker: marker, Timeout: timeout}).Err()
}

// exchange performs a single attempt: flush stale input, write the line
// and accumulate the answer for at most window.
func (e *Engine) exchange(ctx context.Context, cmd at.Command, window time.Duration) ([]byte, error) {
	if e.transport == nil {
		return nil, ErrNotInitialized
	}
	if err := e.discard(); err != nil {
		return nil, err
	}

	if _, err := e.transport.Write([]byte(cmd.Line + at.CRLF)); err != nil {
		return nil, fmt.Errorf("write command: %w", err)
	}

	var resp []byte
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return resp, err
		}

		n, err := e.transport.Read(e.buf)
		if n > 0 {
			resp = append(resp, e.buf[:n]...)
			if !cmd.Drain && at.Settled(resp, cmd.Marker) {
				return resp, nil
			}
			if at.Rejected(resp) && !bytes.Contains(resp, []byte(cmd.Marker)) {
				return resp, nil
			}
		}
		if err != nil {
			return resp, fmt.Errorf("read response: %w", err)
		}
		if n == 0 {
			pause := min(e.timeouts.Poll, time.Until(deadline))
			if err := sleep(ctx, pause); err != nil {
				return resp, err
			}
		}
	}
	return resp, nil
}

// maxDiscard bounds how much stale input is dropped before a command so
// that a babbling link cannot stall the engine.
const maxDiscard = 4096

// discard drops bytes left over from a previous exchange.
func (e *Engine) discard() error {
	dropped := 0
	for dropped < maxDiscard {
		n, err := e.transport.Read(e.buf)
		if err != nil {
			return fmt.Errorf("flush input: %w", err)
		}
		if n == 0 {
			break
		}
		dropped += n
	}
	if dropped > 0 {
		e.logger.Debug("Discarded stale input", "bytes", dropped)
	}
	return nil
}

// sleep pauses for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
