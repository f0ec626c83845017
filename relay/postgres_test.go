package relay

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a live database when RELAY_TEST_DATABASE_URL is set. The
// test appends rows and does not clean up.
func TestPostgresStore(t *testing.T) {
	url := os.Getenv("RELAY_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("RELAY_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	store, err := OpenPostgres(ctx, PostgresConfig{URL: url})
	require.NoError(t, err)
	defer store.Close()

	first, err := store.Append(ctx, NewMessage{Receiver: ptr(1), TextMsg: ptr("pg hello")})
	require.NoError(t, err)
	second, err := store.Append(ctx, NewMessage{Receiver: ptr(1), Msg: ptr(13)})
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)
	assert.False(t, second.CreatedAt.IsZero())

	text, err := store.LatestText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pg hello", text)

	codes, err := store.Codes(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, codes)
	require.NotNil(t, codes[0])
	assert.Equal(t, 13, *codes[0])

	texts, err := store.TextMessages(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(texts), 2)
	assert.Nil(t, texts[0])

	messages, err := store.Messages(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, messages)
}

func TestOpenPostgresBadURL(t *testing.T) {
	_, err := OpenPostgres(context.Background(), PostgresConfig{URL: "postgres://%zz"})
	assert.ErrorContains(t, err, "parse postgres config")
}
