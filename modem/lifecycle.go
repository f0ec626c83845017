package modem

import (
	"context"
	"fmt"

	"i4.energy/across/nbrelay/at"
)

// State is the position of the modem in its bring-up sequence. States only
// move forward; a power cycle resets to StateUninitialized.
type State int

const (
	StateUninitialized State = iota
	StateEchoConfigured
	StateNetworkSelected
	StateSIMReady
	StateAttached
	StateAPNResolved
	StateNetworkActive
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateEchoConfigured:
		return "echo-configured"
	case StateNetworkSelected:
		return "network-selected"
	case StateSIMReady:
		return "sim-ready"
	case StateAttached:
		return "attached"
	case StateAPNResolved:
		return "apn-resolved"
	case StateNetworkActive:
		return "network-active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (m *Modem) advance(to State) {
	if to <= m.state {
		return
	}
	m.logger.Debug("Modem state changed", "from", m.state, "to", to)
	m.state = to
}

func (m *Modem) require(s State) error {
	if m.closed {
		return ErrAlreadyClosed
	}
	if m.state < s {
		return fmt.Errorf("%w: state %s, need %s", ErrNotReady, m.state, s)
	}
	return nil
}

// Start runs the whole bring-up: CheckStart, SetNetwork and CheckNetwork.
func (m *Modem) Start(ctx context.Context) error {
	if err := m.CheckStart(ctx); err != nil {
		return err
	}
	if err := m.SetNetwork(ctx); err != nil {
		return err
	}
	return m.CheckNetwork(ctx)
}

// CheckStart checks the modem with AT. Every failed check is followed by
// a power cycle, up to the configured number of attempts. Once the modem
// answers, command echo is enabled.
//
// When every attempt failed ErrModemUnresponsive is returned and the
// state stays StateUninitialized; retrying is up to the caller.
func (m *Modem) CheckStart(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrAlreadyClosed
	}

	for attempt := 1; attempt <= m.config.StartAttempts; attempt++ {
		res := m.engine.Send(ctx, at.Command{Line: at.CmdAt, Marker: at.OK})
		if res.Failure != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if res.OK() {
			m.logger.Info("Modem is ready", "attempt", attempt)
			if err := m.engine.Send(ctx, at.Command{Line: at.CmdEchoOn, Marker: at.OK}).Err(); err != nil {
				return &StepError{Step: "enable echo", Err: err}
			}
			m.advance(StateEchoConfigured)
			return nil
		}

		m.logger.Warn("Modem not responding, power cycling",
			"attempt", attempt, "outcome", res.Outcome, "error", res.Failure)
		if err := m.powerCycle(ctx); err != nil {
			return err
		}
	}

	return ErrModemUnresponsive
}

// powerCycle toggles the power key and waits for the modem to boot.
func (m *Modem) powerCycle(ctx context.Context) error {
	m.state = StateUninitialized
	m.apn = ""

	if m.power == nil {
		m.logger.Warn("No power key configured, waiting for the modem instead")
		return sleep(ctx, m.config.Timeouts.BootWait)
	}

	if err := m.power.High(); err != nil {
		return fmt.Errorf("power key high: %w", err)
	}
	if err := sleep(ctx, m.config.Timeouts.PowerPulse); err != nil {
		m.power.Low() //nolint:errcheck
		return err
	}
	if err := m.power.Low(); err != nil {
		return fmt.Errorf("power key low: %w", err)
	}
	return sleep(ctx, m.config.Timeouts.BootWait)
}

// networkStep is one command of the radio setup. Optional steps are
// logged on failure but do not stop the sequence.
type networkStep struct {
	name     string
	line     string
	optional bool
}

// SetNetwork switches the radio to NB-IoT only and configures the
// provider PDP context. Radio steps must succeed; the provider APN and
// the band query are best effort since the APN is configured again from
// the network assigned value by CheckNetwork.
func (m *Modem) SetNetwork(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require(StateEchoConfigured); err != nil {
		return err
	}

	steps := []networkStep{
		{name: "radio off", line: at.CmdRadioOff},
		{name: "LTE only", line: at.CmdModeLTE},
		{name: "NB-IoT only", line: at.CmdModeNBIoT},
		{name: "radio on", line: at.CmdRadioOn},
		{name: "PDP context", line: at.SetPDPContext(m.config.ProviderAPN), optional: true},
		{name: "band config", line: at.CmdBandConfig, optional: true},
	}

	m.logger.Info("Setting NB-IoT mode")
	for _, step := range steps {
		res := m.engine.Send(ctx, at.Command{Line: step.line, Marker: at.OK})
		if res.OK() {
			continue
		}
		if step.optional && ctx.Err() == nil {
			m.logger.Warn("Network setup step failed", "step", step.name, "error", res.Err())
			continue
		}
		return &StepError{Step: step.name, Err: res.Err()}
	}

	m.advance(StateNetworkSelected)
	return nil
}

// CheckNetwork verifies the SIM, waits for packet domain attachment,
// resolves the network assigned APN and activates the PDP context.
func (m *Modem) CheckNetwork(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require(StateNetworkSelected); err != nil {
		return err
	}

	res := m.engine.Send(ctx, at.Command{Line: at.CmdSimStatus, Marker: at.MarkerReady})
	if !res.OK() {
		return &StepError{Step: "SIM status", Err: fmt.Errorf("%w: %w", ErrSIMNotReady, res.Err())}
	}
	m.advance(StateSIMReady)

	if err := m.waitForAttach(ctx); err != nil {
		return &StepError{Step: "attach", Err: err}
	}
	m.advance(StateAttached)

	m.logNetworkInfo(ctx)

	res = m.engine.Send(ctx, at.Command{Line: at.CmdNetworkAPN, Marker: at.OK})
	apn, ok := at.ExtractAPN(res.Text())
	if !ok {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.logger.Warn("Network APN not reported, using provider APN",
			"apn", m.config.ProviderAPN,
			"error", &ParseError{Field: "apn", Response: res.Text(), Err: at.ErrMissingField})
		apn = m.config.ProviderAPN
	}
	m.apn = apn
	m.advance(StateAPNResolved)

	if err := m.engine.Send(ctx, at.Command{Line: at.ConfigureAPN(apn), Marker: at.OK}).Err(); err != nil {
		return &StepError{Step: "configure APN", Err: err}
	}

	res = m.engine.Send(ctx, at.Command{Line: at.CmdActivatePDP, Marker: at.MarkerActive})
	if !res.OK() {
		return &StepError{Step: "activate PDP", Err: fmt.Errorf("%w: %w", ErrActivationFailed, res.Err())}
	}
	m.advance(StateNetworkActive)
	m.logger.Info("Network activation successful", "apn", apn)
	return nil
}

// waitForAttach polls AT+CGATT? until the modem reports attachment.
func (m *Modem) waitForAttach(ctx context.Context) error {
	for attempt := 1; attempt <= m.config.AttachAttempts; attempt++ {
		res := m.engine.Send(ctx, at.Command{Line: at.CmdAttachStatus, Marker: at.MarkerAttached})
		if res.OK() {
			m.logger.Info("Modem is online", "attempt", attempt)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		m.logger.Info("Modem is offline, waiting", "attempt", attempt, "outcome", res.Outcome)
		if attempt < m.config.AttachAttempts {
			if err := sleep(ctx, m.config.Timeouts.AttachInterval); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("%w after %d polls", ErrNotAttached, m.config.AttachAttempts)
}

// logNetworkInfo queries signal and registration details. The answers are
// informational and never gate the bring-up.
func (m *Modem) logNetworkInfo(ctx context.Context) {
	res := m.engine.Send(ctx, at.Command{Line: at.CmdSignalQuality, Marker: at.OK})
	if rssi, ber, err := at.ParseSignalQuality(res.Response); err == nil {
		m.logger.Info("Signal quality", "rssi", rssi, "ber", ber)
	} else {
		m.logger.Debug("Signal quality unavailable", "error", err)
	}

	for _, line := range []string{at.CmdSystemInfo, at.CmdOperator} {
		res := m.engine.Send(ctx, at.Command{Line: line, Marker: at.OK})
		m.logger.Info("Network info", "cmd", line, "response", at.Lines(res.Response))
	}
}
