package relay

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteTime is fixed width so that created_at sorts as text.
const sqliteTime = "2006-01-02 15:04:05.000000000"

// SQLiteStore keeps messages in a local SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens or creates a SQLite database at the given path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// createSQLiteSchema mirrors the lithings.msgs table of the PostgreSQL
// deployment. created_at is stored as UTC text in sqliteTime layout.
func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS msgs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at TEXT NOT NULL,
		sender SMALLINT,
		receiver SMALLINT,
		msg SMALLINT,
		text_msg VARCHAR(255),
		latitude REAL,
		longitude REAL,
		delivered BOOLEAN,
		seen BOOLEAN
	);

	CREATE INDEX IF NOT EXISTS idx_msgs_created_at ON msgs(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Append(ctx context.Context, m NewMessage) (Message, error) {
	created := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO msgs (created_at, receiver, msg, text_msg) VALUES (?, ?, ?, ?)`,
		created.Format(sqliteTime), m.Receiver, m.Msg, m.TextMsg)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return Message{
		ID:        id,
		CreatedAt: created,
		Receiver:  m.Receiver,
		Msg:       m.Msg,
		TextMsg:   m.TextMsg,
	}, nil
}

func (s *SQLiteStore) LatestText(ctx context.Context) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx,
		`SELECT text_msg FROM msgs WHERE text_msg IS NOT NULL ORDER BY id DESC LIMIT 1`).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query latest text: %w", err)
	}
	return text, nil
}

func (s *SQLiteStore) TextMessages(ctx context.Context) ([]*string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT text_msg FROM msgs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query text messages: %w", err)
	}
	defer rows.Close()

	var texts []*string
	for rows.Next() {
		var text sql.NullString
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scan text message: %w", err)
		}
		texts = append(texts, nullString(text))
	}
	return texts, rows.Err()
}

func (s *SQLiteStore) Codes(ctx context.Context) ([]*int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT msg FROM msgs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query codes: %w", err)
	}
	defer rows.Close()

	var codes []*int
	for rows.Next() {
		var code sql.NullInt64
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan code: %w", err)
		}
		codes = append(codes, nullInt(code))
	}
	return codes, rows.Err()
}

func (s *SQLiteStore) Messages(ctx context.Context) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, receiver, msg, text_msg
		FROM msgs
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			m        Message
			created  string
			receiver sql.NullInt64
			msg      sql.NullInt64
			text     sql.NullString
		)
		if err := rows.Scan(&m.ID, &created, &receiver, &msg, &text); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if m.CreatedAt, err = time.Parse(sqliteTime, created); err != nil {
			return nil, fmt.Errorf("parse created_at of message %d: %w", m.ID, err)
		}
		m.Receiver, m.Msg, m.TextMsg = nullInt(receiver), nullInt(msg), nullString(text)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
