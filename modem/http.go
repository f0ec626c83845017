package modem

import (
	"context"
	"errors"
	"fmt"
	"time"

	"i4.energy/across/nbrelay/at"
)

// session is a single HTTP exchange driven through the modem's built-in
// HTTP client. It lives for one Get or Post call.
type session struct {
	m      *Modem
	method int
	url    string
	path   string
	// bodyLen is announced through SHCONF BODYLEN.
	bodyLen int
}

// Get fetches path from the relay at url and returns the response body.
//
// A reply length of zero is reported as ErrEmptyReply. The session is
// disconnected on every exit path.
func (m *Modem) Get(ctx context.Context, url, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require(StateNetworkActive); err != nil {
		return nil, err
	}

	s := &session{m: m, method: at.MethodGet, url: url, path: path, bodyLen: len(path)}
	defer s.disconnect(ctx)

	if err := s.open(ctx, m.config.Timeouts.ConnectGet); err != nil {
		return nil, err
	}
	if err := s.headers(ctx); err != nil {
		return nil, err
	}

	n, err := s.request(ctx)
	if err != nil {
		return nil, err
	}

	res := m.engine.Send(ctx, at.Command{
		Line:    at.Read(0, n),
		Marker:  at.PrefixRead,
		Timeout: m.config.Timeouts.ReadGet,
		Drain:   true,
	})
	if !res.OK() {
		return nil, &StepError{Step: "read", Err: res.Err()}
	}
	body, ok := at.ParseReadBody(res.Response, n)
	if !ok || len(body) < n {
		return nil, &StepError{Step: "read", Err: &ParseError{
			Field:    "body",
			Response: res.Text(),
			Err:      fmt.Errorf("%d of %d bytes: %w", len(body), n, at.ErrMissingField),
		}}
	}
	m.logger.Debug("HTTP GET done", "path", path, "len", n)
	return body, nil
}

// Post sends body to path on the relay at url. It succeeds once the
// relay answered with a non empty payload.
func (m *Modem) Post(ctx context.Context, url, path string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require(StateNetworkActive); err != nil {
		return err
	}

	s := &session{m: m, method: at.MethodPost, url: url, path: path, bodyLen: len(body)}
	defer s.disconnect(ctx)

	if err := s.open(ctx, m.config.Timeouts.ConnectPost); err != nil {
		return err
	}
	if err := s.headers(ctx); err != nil {
		return err
	}

	err := m.engine.Expect(ctx, at.SetBody(len(body), at.BodyWriteTimeout), at.Prompt, 0)
	if err != nil {
		return &StepError{Step: "body prompt", Err: err}
	}
	// A resent body would reach the modem as a command line.
	res := m.engine.Send(ctx, at.Command{Line: string(body), NoRetry: true})
	if !res.OK() {
		return &StepError{Step: "body", Err: res.Err()}
	}

	n, err := s.request(ctx)
	if err != nil {
		return err
	}

	// The reply is read only to clear the modem's receive buffer.
	res = m.engine.Send(ctx, at.Command{
		Line:    at.Read(0, n),
		Timeout: m.config.Timeouts.ReadPost,
		Drain:   true,
	})
	m.logger.Debug("HTTP POST done", "path", path, "len", n, "reply", at.Lines(res.Response))
	return nil
}

// open configures the session and connects it.
func (s *session) open(ctx context.Context, connectTimeout time.Duration) error {
	e := s.m.engine

	// A session left over from an aborted call would make SHCONF fail.
	if err := e.Expect(ctx, at.CmdHTTPDisconnect, at.OK, 0); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.m.logger.Debug("No session to disconnect", "error", err)
	}

	steps := []struct {
		name string
		line string
	}{
		{"url", at.SetURL(s.url)},
		{"body length", at.SetBodyLen(s.bodyLen)},
		{"header length", at.SetHeaderLen(at.HeaderLen)},
	}
	for _, step := range steps {
		if err := e.Expect(ctx, step.line, at.OK, 0); err != nil {
			return &StepError{Step: step.name, Err: err}
		}
	}

	if s.method == at.MethodPost {
		res := e.Send(ctx, at.Command{Line: at.CmdHTTPState, Marker: at.OK})
		s.m.logger.Debug("Session state before connect", "response", at.Lines(res.Response))
	}

	if err := e.Expect(ctx, at.CmdHTTPConnect, at.OK, connectTimeout); err != nil {
		s.m.logger.Warn("Connect did not confirm", "url", s.url, "error", err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if err := e.Expect(ctx, at.CmdHTTPState, at.MarkerSession, 0); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &StepError{Step: "connect", Err: fmt.Errorf("%w: %w", ErrConnectionRefused, err)}
	}
	return nil
}

// headers replaces the request headers with the fixed set.
func (s *session) headers(ctx context.Context) error {
	e := s.m.engine
	if err := e.Expect(ctx, at.CmdHTTPClearHead, at.OK, 0); err != nil {
		return &StepError{Step: "clear headers", Err: err}
	}
	for _, h := range at.DefaultHeaders {
		if err := e.Expect(ctx, at.AddHeader(h), at.OK, 0); err != nil {
			return &StepError{Step: "header " + h.Key, Err: err}
		}
	}
	return nil
}

// request issues SHREQ once and returns the reply length reported by the
// modem. A missing +SHREQ line fails the call without resending, since the
// relay may already have acted on the request.
func (s *session) request(ctx context.Context) (int, error) {
	res := s.m.engine.Send(ctx, at.Command{
		Line:    at.Request(s.path, s.method),
		Marker:  at.PrefixRequest,
		Timeout: s.m.config.Timeouts.Request,
		Drain:   true,
		NoRetry: true,
	})
	if res.Failure != nil || res.Outcome == at.ErrorMarker || res.Outcome == at.NoResponse {
		return 0, &StepError{Step: "request", Err: res.Err()}
	}

	n, err := at.ParseRequestReply(res.Response)
	if err != nil {
		return 0, &StepError{Step: "request", Err: &ParseError{Field: "reply length", Response: res.Text(), Err: err}}
	}
	if n == 0 {
		return 0, &StepError{Step: "request", Err: ErrEmptyReply}
	}
	return n, nil
}

// disconnect closes the session. It runs on every exit path and ignores
// cancellation of ctx so a cancelled call still leaves the link clean.
func (s *session) disconnect(ctx context.Context) {
	err := s.m.engine.Expect(context.WithoutCancel(ctx), at.CmdHTTPDisconnect, at.OK, 0)
	if err != nil && !errors.Is(err, ErrRejected) {
		s.m.logger.Debug("Session disconnect failed", "error", err)
	}
}
