package store

import (
	"testing"
	"time"

	"github.com/soyeahso/supportwire/internal/domain"
	"github.com/soyeahso/supportwire/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func msg(id, text string, sender domain.Sender, at time.Time) domain.Message {
	return domain.Message{
		ID:        id,
		Text:      text,
		Sender:    sender,
		CreatedAt: at,
		Origin:    domain.OriginConfirmed,
	}
}

// --- DB/Migration tests ---

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	assert.NotNil(t, db)
	assert.NotNil(t, db.SQL())
}

func TestMigrations_Applied(t *testing.T) {
	db := testDB(t)

	var count int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)

	err := db.migrate()
	require.NoError(t, err)

	var count int
	err = db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestSchema_TablesExist(t *testing.T) {
	db := testDB(t)

	tables := []string{"history_cache", "conversation_messages"}
	for _, table := range tables {
		var name string
		err := db.sql.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

// --- History cache tests ---

func TestHistoryCache_SaveAndLoad(t *testing.T) {
	hc := NewHistoryCache(testDB(t))

	now := time.Now().UTC().Truncate(time.Millisecond)
	entries := []domain.Message{
		msg("m1", "hello", domain.SenderUser, now),
		msg("m2", "hi there", domain.SenderBot, now.Add(time.Second)),
	}

	require.NoError(t, hc.Save("visitor:v1", entries))

	loaded, err := hc.Load("visitor:v1")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "m1", loaded[0].ID)
	assert.Equal(t, "m2", loaded[1].ID)
	assert.Equal(t, "hello", loaded[0].Text)
	assert.True(t, loaded[0].CreatedAt.Equal(now))
}

func TestHistoryCache_SaveReplaces(t *testing.T) {
	hc := NewHistoryCache(testDB(t))
	now := time.Now().UTC()

	require.NoError(t, hc.Save("visitor:v1", []domain.Message{
		msg("old", "old entry", domain.SenderUser, now),
	}))
	require.NoError(t, hc.Save("visitor:v1", []domain.Message{
		msg("new1", "new entry", domain.SenderBot, now),
		msg("new2", "another", domain.SenderBot, now.Add(time.Second)),
	}))

	loaded, err := hc.Load("visitor:v1")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "new1", loaded[0].ID)
}

func TestHistoryCache_PreservesOrder(t *testing.T) {
	hc := NewHistoryCache(testDB(t))

	// Positions, not timestamps, define the stored order.
	now := time.Now().UTC()
	entries := []domain.Message{
		msg("b", "second by time", domain.SenderBot, now.Add(time.Hour)),
		msg("a", "first by time", domain.SenderUser, now),
	}
	require.NoError(t, hc.Save("k", entries))

	loaded, err := hc.Load("k")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "b", loaded[0].ID)
	assert.Equal(t, "a", loaded[1].ID)
}

func TestHistoryCache_KeysAreIsolated(t *testing.T) {
	hc := NewHistoryCache(testDB(t))
	now := time.Now().UTC()

	require.NoError(t, hc.Save("visitor:v1", []domain.Message{msg("m1", "anon", domain.SenderUser, now)}))
	require.NoError(t, hc.Save("user:tok", []domain.Message{msg("m2", "authed", domain.SenderUser, now)}))

	anon, err := hc.Load("visitor:v1")
	require.NoError(t, err)
	authed, err := hc.Load("user:tok")
	require.NoError(t, err)

	require.Len(t, anon, 1)
	require.Len(t, authed, 1)
	assert.Equal(t, "m1", anon[0].ID)
	assert.Equal(t, "m2", authed[0].ID)
}

func TestHistoryCache_Clear(t *testing.T) {
	hc := NewHistoryCache(testDB(t))

	require.NoError(t, hc.Save("k", []domain.Message{msg("m1", "x", domain.SenderUser, time.Now())}))
	require.NoError(t, hc.Clear("k"))

	loaded, err := hc.Load("k")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

// --- Conversation store tests ---

func TestConversationStore_AppendAssignsIDAndTime(t *testing.T) {
	cs := NewSQLiteConversationStore(testDB(t))

	stored := cs.Append("visitor:v1", domain.Message{Text: "hello", Sender: domain.SenderUser})
	assert.NotEmpty(t, stored.ID)
	assert.False(t, stored.CreatedAt.IsZero())
}

func TestConversationStore_HistoryOrdered(t *testing.T) {
	cs := NewSQLiteConversationStore(testDB(t))
	now := time.Now().UTC()

	cs.Append("c", msg("m2", "second", domain.SenderBot, now.Add(time.Second)))
	cs.Append("c", msg("m1", "first", domain.SenderUser, now))

	history := cs.History("c", 0)
	require.Len(t, history, 2)
	assert.Equal(t, "m1", history[0].ID)
	assert.Equal(t, "m2", history[1].ID)
}

func TestConversationStore_HistoryLimitKeepsNewest(t *testing.T) {
	cs := NewSQLiteConversationStore(testDB(t))
	now := time.Now().UTC()

	cs.Append("c", msg("m1", "one", domain.SenderUser, now))
	cs.Append("c", msg("m2", "two", domain.SenderUser, now.Add(time.Second)))
	cs.Append("c", msg("m3", "three", domain.SenderUser, now.Add(2*time.Second)))

	history := cs.History("c", 2)
	require.Len(t, history, 2)
	assert.Equal(t, "m2", history[0].ID)
	assert.Equal(t, "m3", history[1].ID)
}

func TestConversationStore_ConversationsAreIsolated(t *testing.T) {
	cs := NewSQLiteConversationStore(testDB(t))
	now := time.Now().UTC()

	cs.Append("a", msg("m1", "in a", domain.SenderUser, now))
	cs.Append("b", msg("m2", "in b", domain.SenderUser, now))

	assert.Len(t, cs.History("a", 0), 1)
	assert.Len(t, cs.History("b", 0), 1)
}

func TestConversationStore_CorrelationIDSurvives(t *testing.T) {
	cs := NewSQLiteConversationStore(testDB(t))

	m := msg("m1", "hello", domain.SenderUser, time.Now().UTC())
	m.CorrelationID = "corr-1"
	cs.Append("c", m)

	history := cs.History("c", 0)
	require.Len(t, history, 1)
	assert.Equal(t, "corr-1", history[0].CorrelationID)
}

// --- Memory store tests ---

func TestMemoryConversationStore_Basics(t *testing.T) {
	cs := NewMemoryConversationStore()

	stored := cs.Append("c", domain.Message{Text: "hi", Sender: domain.SenderUser})
	assert.NotEmpty(t, stored.ID)

	history := cs.History("c", 0)
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0].Text)
}

func TestMemoryHistoryCache_Basics(t *testing.T) {
	hc := NewMemoryHistoryCache()
	now := time.Now()

	require.NoError(t, hc.Save("k", []domain.Message{msg("m1", "x", domain.SenderUser, now)}))

	loaded, err := hc.Load("k")
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	require.NoError(t, hc.Clear("k"))
	loaded, err = hc.Load("k")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
