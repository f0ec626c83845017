package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	// URL is a libpq style connection string or URL.
	URL string
	// InsecureTLS keeps TLS but skips certificate verification.
	InsecureTLS bool
	Logger      *slog.Logger
}

// PostgresStore keeps messages in the lithings.msgs table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool and creates the schema if needed.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	if cfg.InsecureTLS {
		logger.Warn("PostgreSQL certificate verification disabled")
		skipVerify(poolCfg.ConnConfig)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.createSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

func skipVerify(cfg *pgx.ConnConfig) {
	if cfg.TLSConfig != nil {
		cfg.TLSConfig.InsecureSkipVerify = true
	}
	for _, fb := range cfg.Fallbacks {
		if fb.TLSConfig != nil {
			fb.TLSConfig.InsecureSkipVerify = true
		}
	}
}

func (s *PostgresStore) createSchema(ctx context.Context) error {
	schema := `
	CREATE SCHEMA IF NOT EXISTS lithings;

	CREATE TABLE IF NOT EXISTS lithings.msgs (
		id          SERIAL PRIMARY KEY,
		created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		sender      SMALLINT,
		receiver    SMALLINT,
		msg         SMALLINT,
		text_msg    VARCHAR(255),
		latitude    DOUBLE PRECISION,
		longitude   DOUBLE PRECISION,
		delivered   BOOLEAN,
		seen        BOOLEAN
	);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Append inserts the row in its own transaction, rolled back on any failure.
func (s *PostgresStore) Append(ctx context.Context, m NewMessage) (Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	msg := Message{Receiver: m.Receiver, Msg: m.Msg, TextMsg: m.TextMsg}
	err = tx.QueryRow(ctx, `
		INSERT INTO lithings.msgs (receiver, msg, text_msg)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		m.Receiver, m.Msg, m.TextMsg,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, fmt.Errorf("commit: %w", err)
	}
	return msg, nil
}

func (s *PostgresStore) LatestText(ctx context.Context) (string, error) {
	var text string
	err := s.pool.QueryRow(ctx, `
		SELECT text_msg FROM lithings.msgs
		WHERE text_msg IS NOT NULL
		ORDER BY id DESC
		LIMIT 1`).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query latest text: %w", err)
	}
	return text, nil
}

func (s *PostgresStore) TextMessages(ctx context.Context) ([]*string, error) {
	rows, err := s.pool.Query(ctx, `SELECT text_msg FROM lithings.msgs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query text messages: %w", err)
	}
	texts, err := pgx.CollectRows(rows, pgx.RowTo[*string])
	if err != nil {
		return nil, fmt.Errorf("scan text messages: %w", err)
	}
	return texts, nil
}

func (s *PostgresStore) Codes(ctx context.Context) ([]*int, error) {
	rows, err := s.pool.Query(ctx, `SELECT msg FROM lithings.msgs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query codes: %w", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[*int])
	if err != nil {
		return nil, fmt.Errorf("scan codes: %w", err)
	}
	return codes, nil
}

func (s *PostgresStore) Messages(ctx context.Context) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, created_at, receiver, msg, text_msg
		FROM lithings.msgs
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	messages, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Message])
	if err != nil {
		return nil, fmt.Errorf("scan messages: %w", err)
	}
	return messages, nil
}
