package modem_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
	"i4.energy/across/nbrelay/at"
	"i4.energy/across/nbrelay/modem"
)

func newTestEngine(t modem.Transport) *modem.Engine {
	return modem.NewEngine(t, modem.Config{Timeouts: testTimeouts()})
}

func TestEngineSend(t *testing.T) {
	t.Run("Matched on expected marker", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := modem.NewMockTransport(ctrl)
		gomock.InOrder(NewMockSequence(mockTransport).AT().Build()...)

		res := newTestEngine(mockTransport).Send(context.Background(), at.Command{Line: at.CmdAt})

		if !res.OK() {
			t.Fatalf("expected matched result, got: %v", res.Err())
		}
		if res.Attempts != 1 {
			t.Errorf("expected 1 attempt, got: %d", res.Attempts)
		}
	})

	t.Run("NoResponse after every retry", func(t *testing.T) {
		transport := modem.NewTestTransport(nil)

		res := newTestEngine(transport).Send(context.Background(), at.Command{Line: at.CmdAt})

		if res.Outcome != at.NoResponse {
			t.Errorf("expected NoResponse, got: %v", res.Outcome)
		}
		if !errors.Is(res.Err(), modem.ErrNoResponse) {
			t.Errorf("expected ErrNoResponse, got: %v", res.Err())
		}
		if res.Attempts != 2 {
			t.Errorf("expected 2 attempts, got: %d", res.Attempts)
		}
		if n := transport.Count(at.CmdAt); n != 2 {
			t.Errorf("expected AT written twice, got: %d", n)
		}
	})

	t.Run("NoRetry sends a silent command once", func(t *testing.T) {
		transport := modem.NewTestTransport(nil)

		res := newTestEngine(transport).Send(context.Background(),
			at.Command{Line: at.Request("/post-msg/", at.MethodPost), Marker: at.PrefixRequest, NoRetry: true})

		if res.Outcome != at.NoResponse {
			t.Errorf("expected NoResponse, got: %v", res.Outcome)
		}
		if res.Attempts != 1 {
			t.Errorf("expected 1 attempt, got: %d", res.Attempts)
		}
		if n := len(transport.Written()); n != 1 {
			t.Errorf("expected one write, got: %d", n)
		}
	})

	t.Run("ERROR is returned without retry", func(t *testing.T) {
		transport := modem.NewTestTransport(func(line string) string {
			return line + "\r\r\nERROR\r\n"
		})

		start := time.Now()
		res := newTestEngine(transport).Send(context.Background(), at.Command{Line: "AT+CFUN=9"})

		if !errors.Is(res.Err(), modem.ErrRejected) {
			t.Errorf("expected ErrRejected, got: %v", res.Err())
		}
		if res.Attempts != 1 {
			t.Errorf("expected 1 attempt, got: %d", res.Attempts)
		}
		if elapsed := time.Since(start); elapsed >= testTimeouts().Command {
			t.Errorf("expected ERROR to end the exchange early, took %v", elapsed)
		}
	})

	t.Run("Unmatched is retried", func(t *testing.T) {
		transport := modem.NewTestTransport(func(line string) string {
			return line + "\r\r\n+CPIN: NOT READY\r\n\r\nOK\r\n"
		})

		res := newTestEngine(transport).Send(context.Background(),
			at.Command{Line: at.CmdSimStatus, Marker: at.MarkerReady})

		if res.Outcome != at.Unmatched {
			t.Errorf("expected Unmatched, got: %v", res.Outcome)
		}
		if !errors.Is(res.Err(), modem.ErrUnmatched) {
			t.Errorf("expected ErrUnmatched, got: %v", res.Err())
		}
		if n := transport.Count(at.CmdSimStatus); n != 2 {
			t.Errorf("expected command written twice, got: %d", n)
		}
	})

	t.Run("Marker split across reads", func(t *testing.T) {
		transport := modem.NewTestTransport(func(line string) string {
			return line + "\r\r\n+CGATT: 1\r\n\r\nOK\r\n"
		}).WithChunk(1)

		res := newTestEngine(transport).Send(context.Background(),
			at.Command{Line: at.CmdAttachStatus, Marker: at.MarkerAttached})

		if !res.OK() {
			t.Fatalf("expected matched result, got: %v", res.Err())
		}
		if !strings.HasSuffix(res.Text(), "OK\r\n") {
			t.Errorf("expected complete response, got: %q", res.Text())
		}
	})

	t.Run("Stale input never matches the next command", func(t *testing.T) {
		transport := modem.NewTestTransport(nil)
		transport.SendData("\r\nOK\r\n")

		res := newTestEngine(transport).Send(context.Background(), at.Command{Line: at.CmdAt})

		if res.OK() {
			t.Fatalf("expected no match from stale input, got: %q", res.Text())
		}
		if res.Outcome != at.NoResponse {
			t.Errorf("expected NoResponse, got: %v", res.Outcome)
		}
	})

	t.Run("Drain collects data after the final result code", func(t *testing.T) {
		respond := func(line string) string {
			return line + "\r\r\nOK\r\n\r\n+SHREAD: 5\r\nhello\r\n"
		}

		settled := newTestEngine(modem.NewTestTransport(respond).WithChunk(1)).
			Send(context.Background(), at.Command{Line: at.Read(0, 5)})
		drained := newTestEngine(modem.NewTestTransport(respond).WithChunk(1)).
			Send(context.Background(), at.Command{Line: at.Read(0, 5), Drain: true})

		if strings.Contains(settled.Text(), "hello") {
			t.Errorf("expected exchange to settle at OK, got: %q", settled.Text())
		}
		if !strings.HasSuffix(drained.Text(), "hello\r\n") {
			t.Errorf("expected drained payload, got: %q", drained.Text())
		}
	})

	t.Run("Context cancellation aborts the exchange", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res := newTestEngine(modem.NewTestTransport(nil)).Send(ctx, at.Command{Line: at.CmdAt})

		if !errors.Is(res.Failure, context.Canceled) {
			t.Errorf("expected context.Canceled, got: %v", res.Failure)
		}
		if res.Attempts != 1 {
			t.Errorf("expected no retry after cancellation, got: %d", res.Attempts)
		}
	})

	t.Run("Write error is a failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := modem.NewMockTransport(ctrl)
		writeErr := errors.New("port gone")
		gomock.InOrder(
			mockTransport.EXPECT().Read(gomock.Any()).Return(0, nil),
			mockTransport.EXPECT().Write([]byte("AT\r\n")).Return(0, writeErr),
		)

		res := newTestEngine(mockTransport).Send(context.Background(), at.Command{Line: at.CmdAt})

		if !errors.Is(res.Err(), writeErr) {
			t.Errorf("expected write error, got: %v", res.Err())
		}
	})
}
