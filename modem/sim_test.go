package modem_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"i4.energy/across/nbrelay/modem"
)

// sim7080 plays the modem side of the serial link for protocol tests.
type sim7080 struct {
	// silentChecks is the number of AT checks left unanswered.
	silentChecks int
	pin          string
	// detachedPolls is the number of CGATT polls answered with 0.
	detachedPolls int
	apn           string
	pdp           string
	reachable     bool
	reject        map[string]bool

	echo        bool
	connected   bool
	bodyPending bool

	// reply is the relay payload for every request.
	reply string
	// noRequestURC drops the +SHREQ line, as when the relay answers after
	// the response window.
	noRequestURC bool
	// noReadHeader drops the +SHREAD line from read responses.
	noReadHeader bool
	// readLimit cuts the read payload short when positive.
	readLimit int

	bodies   []string
	requests []string
}

func newSIM() *sim7080 {
	return &sim7080{
		pin:       "READY",
		apn:       "iot.provider.net",
		pdp:       "ACTIVE",
		reachable: true,
		reject:    map[string]bool{},
		reply:     `{"text_msg":"hello"}`,
	}
}

func (s *sim7080) respond(line string) string {
	if s.bodyPending {
		s.bodyPending = false
		s.bodies = append(s.bodies, line)
		return "OK\r\n"
	}

	echo := ""
	if s.echo {
		echo = line + "\r\r\n"
	}
	if s.reject[line] {
		return echo + "ERROR\r\n"
	}
	ok := echo + "OK\r\n"
	info := func(format string, args ...any) string {
		return echo + fmt.Sprintf(format, args...) + "\r\n\r\nOK\r\n"
	}

	switch {
	case line == "AT":
		if s.silentChecks > 0 {
			s.silentChecks--
			return ""
		}
		return ok
	case line == "ATE1":
		s.echo = true
		return line + "\r\r\nOK\r\n"
	case line == "AT+CPIN?":
		return info("+CPIN: %s", s.pin)
	case line == "AT+CGATT?":
		if s.detachedPolls > 0 {
			s.detachedPolls--
			return info("+CGATT: 0")
		}
		return info("+CGATT: 1")
	case line == "AT+CSQ":
		return info("+CSQ: 18,99")
	case line == "AT+CPSI?":
		return info("+CPSI: LTE NB-IOT,Online,460-00,0x5D04,27447843,84,EUTRAN-BAND8,3734,0,0,-10,-74,-64,11")
	case line == "AT+COPS?":
		return info(`+COPS: 0,0,"PROVIDER",9`)
	case line == "AT+CGNAPN":
		if s.apn == "" {
			return info(`+CGNAPN: 0,""`)
		}
		return info(`+CGNAPN: 1,"%s"`, s.apn)
	case line == "AT+CNACT=0,1":
		return ok + "\r\n+APP PDP: 0," + s.pdp + "\r\n"
	case line == "AT+SHCONN":
		if !s.reachable {
			return echo + "ERROR\r\n"
		}
		s.connected = true
		return ok
	case line == "AT+SHSTATE?":
		state := 0
		if s.connected {
			state = 1
		}
		return info("+SHSTATE: %d", state)
	case line == "AT+SHDISC":
		if !s.connected {
			return echo + "ERROR\r\n"
		}
		s.connected = false
		return ok
	case strings.HasPrefix(line, "AT+SHBOD="):
		s.bodyPending = true
		return echo + ">"
	case strings.HasPrefix(line, "AT+SHREQ="):
		s.requests = append(s.requests, line)
		method := "GET"
		if strings.HasSuffix(line, ",3") {
			method = "POST"
		}
		if s.noRequestURC {
			return ok
		}
		return ok + fmt.Sprintf("\r\n+SHREQ: \"%s\",200,%d\r\n", method, len(s.reply))
	case strings.HasPrefix(line, "AT+SHREAD="):
		payload := s.reply
		if s.readLimit > 0 && s.readLimit < len(payload) {
			payload = payload[:s.readLimit]
		}
		if s.noReadHeader {
			return ok + "\r\n" + payload + "\r\n"
		}
		return ok + fmt.Sprintf("\r\n+SHREAD: %d\r\n%s\r\n", len(payload), payload)
	default:
		return ok
	}
}

// testTimeouts keeps every window short so that silent and draining
// exchanges finish quickly.
func testTimeouts() modem.Timeouts {
	return modem.Timeouts{
		Command:        40 * time.Millisecond,
		RetryExtension: 10 * time.Millisecond,
		Poll:           time.Millisecond,
		PowerPulse:     time.Millisecond,
		BootWait:       time.Millisecond,
		AttachInterval: time.Millisecond,
		ConnectGet:     40 * time.Millisecond,
		ConnectPost:    40 * time.Millisecond,
		Request:        30 * time.Millisecond,
		ReadGet:        30 * time.Millisecond,
		ReadPost:       30 * time.Millisecond,
	}
}

// newSimModem wires a modem to sim over a TestTransport.
func newSimModem(t *testing.T, sim *sim7080, opts ...func(*modem.ConfigBuilder)) (*modem.Modem, *modem.TestTransport) {
	t.Helper()
	transport := modem.NewTestTransport(sim.respond)

	b := modem.NewConfigBuilder().
		WithDialer(modem.TestDialer{Transport: transport}).
		WithTimeouts(testTimeouts())
	for _, opt := range opts {
		opt(b)
	}
	config, err := b.Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}

	m, err := modem.New(context.Background(), config)
	if err != nil {
		t.Fatalf("unexpected error from New(): %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m, transport
}

// newActiveModem returns a modem that completed Start.
func newActiveModem(t *testing.T, sim *sim7080) (*modem.Modem, *modem.TestTransport) {
	t.Helper()
	m, transport := newSimModem(t, sim)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error from Start(): %v", err)
	}
	return m, transport
}
