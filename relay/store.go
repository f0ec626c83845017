// Package relay implements the store-and-forward message relay: an HTTP API
// in front of a SQLite or PostgreSQL message table, with optional NATS
// fan-out of every appended row.
package relay

import (
	"context"
	"time"
)

//go:generate go tool mockgen -source=store.go -destination=mock_store.go -package=relay

// Message is one stored row. Nil fields are NULL in the table.
type Message struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Receiver  *int      `json:"receiver"`
	Msg       *int      `json:"msg"`
	TextMsg   *string   `json:"text_msg"`
}

// NewMessage holds the client supplied columns of a row to append.
type NewMessage struct {
	Receiver *int
	Msg      *int
	TextMsg  *string
}

// Store persists relay messages. Listings are ordered newest first.
type Store interface {
	// Append inserts a row and returns it with its id and creation time.
	// Identical calls create distinct rows.
	Append(ctx context.Context, m NewMessage) (Message, error)
	// LatestText returns the newest non-null text message or ErrNotFound.
	LatestText(ctx context.Context) (string, error)
	TextMessages(ctx context.Context) ([]*string, error)
	Codes(ctx context.Context) ([]*int, error)
	// Messages returns every row ordered by creation time.
	Messages(ctx context.Context) ([]Message, error)
	Close() error
}

// Publisher is the subset of *nats.Conn used to fan out appended rows.
type Publisher interface {
	Publish(subject string, data []byte) error
}
