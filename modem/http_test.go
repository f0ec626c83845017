package modem_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"i4.energy/across/nbrelay/at"
	"i4.energy/across/nbrelay/modem"
)

const relayURL = "http://relay.example:8000"

func TestModemGet(t *testing.T) {
	t.Run("Returns the relay payload", func(t *testing.T) {
		m, transport := newActiveModem(t, newSIM())
		started := len(transport.Written())

		path := "/latest-text-msg/"
		body, err := m.Get(context.Background(), relayURL, path)
		if err != nil {
			t.Fatalf("unexpected error from Get(): %v", err)
		}
		if string(body) != `{"text_msg":"hello"}` {
			t.Errorf("unexpected body: %q", body)
		}

		want := []string{
			"AT+SHDISC",
			`AT+SHCONF="URL","` + relayURL + `"`,
			fmt.Sprintf(`AT+SHCONF="BODYLEN",%d`, len(path)),
			`AT+SHCONF="HEADERLEN",350`,
			"AT+SHCONN",
			"AT+SHSTATE?",
			"AT+SHCHEAD",
			`AT+SHAHEAD="Content-Type","application/json"`,
			`AT+SHAHEAD="Cache-control","no-cache"`,
			`AT+SHAHEAD="Connection","keep-alive"`,
			`AT+SHAHEAD="Accept","*/*"`,
			`AT+SHREQ="/latest-text-msg/",1`,
			"AT+SHREAD=0,20",
			"AT+SHDISC",
		}
		if got := transport.Written()[started:]; !slices.Equal(got, want) {
			t.Errorf("unexpected command sequence:\n got: %q\nwant: %q", got, want)
		}
	})

	t.Run("ErrNotReady before the network is active", func(t *testing.T) {
		m, transport := newSimModem(t, newSIM())

		_, err := m.Get(context.Background(), relayURL, "/latest-text-msg/")
		if !errors.Is(err, modem.ErrNotReady) {
			t.Errorf("expected ErrNotReady, got: %v", err)
		}
		if len(transport.Written()) != 0 {
			t.Errorf("expected nothing written, got: %v", transport.Written())
		}
	})

	t.Run("ErrConnectionRefused skips the request", func(t *testing.T) {
		sim := newSIM()
		sim.reachable = false
		m, transport := newActiveModem(t, sim)

		_, err := m.Get(context.Background(), relayURL, "/latest-text-msg/")
		if !errors.Is(err, modem.ErrConnectionRefused) {
			t.Errorf("expected ErrConnectionRefused, got: %v", err)
		}
		if len(sim.requests) != 0 {
			t.Errorf("expected no request, got: %v", sim.requests)
		}
		written := transport.Written()
		if written[len(written)-1] != "AT+SHDISC" {
			t.Errorf("expected session to be closed, got: %v", written)
		}
	})

	t.Run("ErrEmptyReply on zero length", func(t *testing.T) {
		sim := newSIM()
		sim.reply = ""
		m, transport := newActiveModem(t, sim)

		body, err := m.Get(context.Background(), relayURL, "/latest-text-msg/")
		if !errors.Is(err, modem.ErrEmptyReply) {
			t.Errorf("expected ErrEmptyReply, got: %v", err)
		}
		if body != nil {
			t.Errorf("expected no body, got: %q", body)
		}
		if n := transport.Count("AT+SHREAD=0,0"); n != 0 {
			t.Errorf("expected no read, got: %d", n)
		}
	})

	t.Run("Rejected configuration aborts the call", func(t *testing.T) {
		sim := newSIM()
		sim.reject[`AT+SHCONF="HEADERLEN",350`] = true
		m, transport := newActiveModem(t, sim)

		_, err := m.Get(context.Background(), relayURL, "/latest-text-msg/")
		var stepErr *modem.StepError
		if !errors.As(err, &stepErr) || stepErr.Step != "header length" {
			t.Fatalf("expected header length step error, got: %v", err)
		}
		if !errors.Is(err, modem.ErrRejected) {
			t.Errorf("expected ErrRejected, got: %v", err)
		}
		if n := transport.Count("AT+SHCONN"); n != 0 {
			t.Errorf("expected no connect, got: %d", n)
		}
	})

	t.Run("Cancelled call still disconnects", func(t *testing.T) {
		m, transport := newActiveModem(t, newSIM())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := m.Get(ctx, relayURL, "/latest-text-msg/")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got: %v", err)
		}
		if n := transport.Count("AT+SHDISC"); n != 2 {
			t.Errorf("expected 2 disconnects, got: %d", n)
		}
	})
}

func TestModemPost(t *testing.T) {
	t.Run("Sends the body", func(t *testing.T) {
		sim := newSIM()
		sim.reply = `{"status":"ok"}`
		m, transport := newActiveModem(t, sim)

		body := []byte(`{"msg":13}`)
		if err := m.Post(context.Background(), relayURL, "/post-msg/", body); err != nil {
			t.Fatalf("unexpected error from Post(): %v", err)
		}

		if !slices.Equal(sim.bodies, []string{string(body)}) {
			t.Errorf("unexpected bodies: %q", sim.bodies)
		}
		if !slices.Equal(sim.requests, []string{`AT+SHREQ="/post-msg/",3`}) {
			t.Errorf("unexpected requests: %q", sim.requests)
		}
		if n := transport.Count(`AT+SHCONF="BODYLEN",10`); n != 1 {
			t.Errorf("expected body length configured, got: %d", n)
		}
		if n := transport.Count("AT+SHBOD=10,10000"); n != 1 {
			t.Errorf("expected body announced, got: %d", n)
		}
		if n := transport.Count("AT+SHSTATE?"); n != 2 {
			t.Errorf("expected state queried before and after connect, got: %d", n)
		}
		written := transport.Written()
		if written[len(written)-1] != "AT+SHDISC" {
			t.Errorf("expected session to be closed, got: %v", written)
		}
	})

	t.Run("Every call posts again", func(t *testing.T) {
		sim := newSIM()
		m, _ := newActiveModem(t, sim)

		body := []byte(`{"msg":0}`)
		for range 2 {
			if err := m.Post(context.Background(), relayURL, "/post-msg/", body); err != nil {
				t.Fatalf("unexpected error from Post(): %v", err)
			}
		}
		if len(sim.requests) != 2 {
			t.Errorf("expected 2 requests, got: %d", len(sim.requests))
		}
	})

	t.Run("ErrEmptyReply fails the post", func(t *testing.T) {
		sim := newSIM()
		sim.reply = ""
		m, _ := newActiveModem(t, sim)

		err := m.Post(context.Background(), relayURL, "/post-msg/", []byte(`{"msg":21}`))
		if !errors.Is(err, modem.ErrEmptyReply) {
			t.Errorf("expected ErrEmptyReply, got: %v", err)
		}
	})
}

func TestModemHTTPUnreliableReplies(t *testing.T) {
	const (
		getPath    = "/latest-text-msg/"
		getRequest = `AT+SHREQ="/latest-text-msg/",1`
		getRead    = "AT+SHREAD=0,20"
	)

	t.Run("Get without a request line is sent once", func(t *testing.T) {
		sim := newSIM()
		sim.noRequestURC = true
		m, transport := newActiveModem(t, sim)

		body, err := m.Get(context.Background(), relayURL, getPath)

		var stepErr *modem.StepError
		if !errors.As(err, &stepErr) || stepErr.Step != "request" {
			t.Fatalf("expected request step error, got: %v", err)
		}
		var parseErr *modem.ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("expected ParseError, got: %v", err)
		}
		if body != nil {
			t.Errorf("expected no body, got: %q", body)
		}
		if n := transport.Count(getRequest); n != 1 {
			t.Errorf("expected request sent once, got: %d", n)
		}
		if n := transport.Count(getRead); n != 0 {
			t.Errorf("expected no read, got: %d", n)
		}
	})

	t.Run("Post without a request line fails and is sent once", func(t *testing.T) {
		sim := newSIM()
		sim.noRequestURC = true
		m, transport := newActiveModem(t, sim)

		err := m.Post(context.Background(), relayURL, "/post-msg/", []byte(`{"msg":13}`))

		var parseErr *modem.ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("expected ParseError, got: %v", err)
		}
		if !errors.Is(err, at.ErrMissingField) {
			t.Errorf("expected ErrMissingField, got: %v", err)
		}
		if n := transport.Count(`AT+SHREQ="/post-msg/",3`); n != 1 {
			t.Errorf("expected request sent once, got: %d", n)
		}
		if len(sim.bodies) != 1 {
			t.Errorf("expected body sent once, got: %q", sim.bodies)
		}
	})

	t.Run("Rejected read returns no data", func(t *testing.T) {
		sim := newSIM()
		sim.reject[getRead] = true
		m, _ := newActiveModem(t, sim)

		body, err := m.Get(context.Background(), relayURL, getPath)

		var stepErr *modem.StepError
		if !errors.As(err, &stepErr) || stepErr.Step != "read" {
			t.Fatalf("expected read step error, got: %v", err)
		}
		if !errors.Is(err, modem.ErrRejected) {
			t.Errorf("expected ErrRejected, got: %v", err)
		}
		if body != nil {
			t.Errorf("expected no body, got: %q", body)
		}
	})

	t.Run("Read without header returns no data", func(t *testing.T) {
		sim := newSIM()
		sim.noReadHeader = true
		m, _ := newActiveModem(t, sim)

		body, err := m.Get(context.Background(), relayURL, getPath)

		var stepErr *modem.StepError
		if !errors.As(err, &stepErr) || stepErr.Step != "read" {
			t.Fatalf("expected read step error, got: %v", err)
		}
		if body != nil {
			t.Errorf("expected no body, got: %q", body)
		}
	})

	t.Run("Short read returns no data", func(t *testing.T) {
		sim := newSIM()
		sim.readLimit = 5
		m, _ := newActiveModem(t, sim)

		body, err := m.Get(context.Background(), relayURL, getPath)

		var parseErr *modem.ParseError
		if !errors.As(err, &parseErr) || parseErr.Field != "body" {
			t.Fatalf("expected body ParseError, got: %v", err)
		}
		if body != nil {
			t.Errorf("expected no body, got: %q", body)
		}
	})

	t.Run("Replies split across reads", func(t *testing.T) {
		sim := newSIM()
		m, transport := newActiveModem(t, sim)
		transport.WithChunk(3)

		body, err := m.Get(context.Background(), relayURL, getPath)
		if err != nil {
			t.Fatalf("unexpected error from Get(): %v", err)
		}
		if string(body) != sim.reply {
			t.Errorf("unexpected body: %q", body)
		}

		if err := m.Post(context.Background(), relayURL, "/post-msg/", []byte(`{"msg":21}`)); err != nil {
			t.Fatalf("unexpected error from Post(): %v", err)
		}
		if len(sim.requests) != 2 {
			t.Errorf("expected 2 requests, got: %q", sim.requests)
		}
	})
}
