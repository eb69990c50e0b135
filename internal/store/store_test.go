package store_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freshnest/internal/db"
	"freshnest/internal/domain"
	"freshnest/internal/fault"
	"freshnest/internal/migrate"
	"freshnest/internal/store"
)

func newTestStore(t *testing.T) (store.Store, *sql.DB) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return store.New(conn), conn
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	in := []domain.Message{
		{ID: "m1", ConversationID: "c1", Sender: domain.RoleHost, Text: "hello", SentAt: "2024-01-01T00:00:00Z", ReadByHost: true},
		{ID: "m2", ConversationID: "c1", Sender: domain.RoleCleaner, Text: "hi", SentAt: "2024-01-01T00:01:00Z", ReadByCleaner: true},
	}
	require.NoError(t, s.Save(ctx, store.KeyMessages, in))

	var out []domain.Message
	require.True(t, s.Load(ctx, store.KeyMessages, &out))
	assert.Equal(t, in, out)
}

func TestLoadAbsentKeyFallsBack(t *testing.T) {
	s, _ := newTestStore(t)
	var out []domain.Message
	assert.False(t, s.Load(context.Background(), store.KeyMessages, &out))
	assert.Nil(t, out)
}

func TestLoadCorruptPayloadFallsBack(t *testing.T) {
	s, conn := newTestStore(t)
	ctx := context.Background()

	_, err := conn.ExecContext(ctx,
		`INSERT INTO collections(key, payload_json, updated_at) VALUES(?, ?, ?)`,
		store.KeyRequests, "{not json", "2024-01-01T00:00:00Z")
	require.NoError(t, err)

	var out []domain.ServiceRequest
	assert.False(t, s.Load(ctx, store.KeyRequests, &out), "corrupt data must read as absent")
}

func TestSaveOverwrites(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, store.KeyNotifications, []domain.Notification{{ID: "n1"}}))
	require.NoError(t, s.Save(ctx, store.KeyNotifications, []domain.Notification{{ID: "n2"}, {ID: "n3"}}))

	var out []domain.Notification
	require.True(t, s.Load(ctx, store.KeyNotifications, &out))
	require.Len(t, out, 2)
	assert.Equal(t, "n2", out[0].ID)
}

func TestSaveAgainstClosedDBReportsPersistenceError(t *testing.T) {
	s, conn := newTestStore(t)
	require.NoError(t, conn.Close())

	err := s.Save(context.Background(), store.KeyRequests, []domain.ServiceRequest{})
	require.Error(t, err)
	var pe *fault.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, store.KeyRequests, pe.Key)
}
