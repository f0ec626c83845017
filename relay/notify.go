package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the NATS subject appended rows are published on.
const DefaultSubject = "relay.msgs"

// ConnectNATS connects to a NATS server and keeps reconnecting for the
// lifetime of the relay. Link changes are logged.
func ConnectNATS(url string, logger *slog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("nbrelay"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return nc, nil
}

// publish fans out an appended row. The row is already stored, so failures
// are only logged.
func (s *Server) publish(m Message) {
	if s.config.Publisher == nil {
		return
	}
	data, err := json.Marshal(m)
	if err != nil {
		s.logger.Error("Failed to encode message", "id", m.ID, "error", err)
		return
	}
	if err := s.config.Publisher.Publish(s.config.Subject, data); err != nil {
		s.logger.Warn("Failed to publish message", "id", m.ID, "subject", s.config.Subject, "error", err)
	}
}
