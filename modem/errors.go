package modem

import (
	"errors"
	"fmt"

	"i4.energy/across/nbrelay/at"
)

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when an operation is attempted on a Modem
	// whose transport is missing.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when Close is called on a Modem that has
	// already been closed.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrNotReady is returned when a lifecycle or session step is attempted
	// before the steps it depends on have succeeded.
	ErrNotReady = errors.New("modem not ready")

	// ErrNoResponse is returned when the link stayed silent for every
	// attempt of a command.
	ErrNoResponse = errors.New("no response")

	// ErrRejected is returned when the modem answered with an ERROR result
	// code instead of the expected marker.
	ErrRejected = errors.New("command rejected")

	// ErrUnmatched is returned when the modem answered but the expected
	// marker never showed up.
	ErrUnmatched = errors.New("expected marker not found")

	// ErrModemUnresponsive is returned by CheckStart once every check and
	// power cycle has failed.
	//
	// The modem is left powered in an unknown state. Callers decide whether
	// to abort or to try a new start cycle later.
	ErrModemUnresponsive = errors.New("modem not responding to AT")

	// ErrSIMNotReady is returned when AT+CPIN? does not report READY.
	ErrSIMNotReady = errors.New("SIM not ready")

	// ErrNotAttached is returned when the modem did not attach to the
	// packet domain within the polling budget.
	ErrNotAttached = errors.New("not attached to network")

	// ErrActivationFailed is returned when the PDP context could not be
	// activated.
	ErrActivationFailed = errors.New("PDP context activation failed")

	// ErrConnectionRefused is returned when the HTTP session is not active
	// after AT+SHCONN.
	ErrConnectionRefused = errors.New("HTTP session not connected")

	// ErrEmptyReply is returned when the relay answered with a zero length
	// payload.
	ErrEmptyReply = errors.New("empty reply")
)

// CommandError describes a command whose outcome was not Matched.
type CommandError struct {
	Cmd      string
	Outcome  at.Outcome
	Response string
}

func (e *CommandError) Error() string {
	if e.Response == "" {
		return fmt.Sprintf("%s: %s", e.Cmd, e.Outcome)
	}
	return fmt.Sprintf("%s: %s: %q", e.Cmd, e.Outcome, e.Response)
}

func (e *CommandError) Unwrap() error {
	switch e.Outcome {
	case at.NoResponse:
		return ErrNoResponse
	case at.ErrorMarker:
		return ErrRejected
	default:
		return ErrUnmatched
	}
}

// StepError wraps the failure of a named bring-up or session step.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return e.Step + ": " + e.Err.Error() }
func (e *StepError) Unwrap() error { return e.Err }

// ParseError is returned when an expected numeric or string field is
// absent from a response.
type ParseError struct {
	Field    string
	Response string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
