package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/supportwire/internal/domain"
)

// ConversationStore is the server-side canonical message log.
type ConversationStore interface {
	// Append stores one message. A zero ID or CreatedAt is assigned by the store.
	Append(conversation string, msg domain.Message) domain.Message
	// History returns the most recent messages in ascending order.
	History(conversation string, limit int) []domain.Message
}

// SQLiteConversationStore implements ConversationStore backed by SQLite.
type SQLiteConversationStore struct {
	db *DB
}

// NewSQLiteConversationStore creates a conversation store using the given database.
func NewSQLiteConversationStore(db *DB) *SQLiteConversationStore {
	return &SQLiteConversationStore{db: db}
}

// Append stores one message, assigning the server ID and timestamp.
func (s *SQLiteConversationStore) Append(conversation string, msg domain.Message) domain.Message {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.sql.Exec(
		`INSERT INTO conversation_messages (id, conversation, sender, text, created_at, correlation_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, conversation, string(msg.Sender), msg.Text,
		msg.CreatedAt.Format(time.RFC3339Nano), msg.CorrelationID,
	)
	if err != nil {
		s.db.log.Error().Err(err).Str("conversation", conversation).Msg("failed to append message")
	}
	return msg
}

// History returns the most recent limit messages in ascending order.
// A limit <= 0 returns the full log.
func (s *SQLiteConversationStore) History(conversation string, limit int) []domain.Message {
	query := `SELECT id, sender, text, created_at, correlation_id
	          FROM conversation_messages WHERE conversation = ?
	          ORDER BY created_at, id`
	rows, err := s.db.sql.Query(query, conversation)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var sender, createdAt string
		if err := rows.Scan(&m.ID, &sender, &m.Text, &createdAt, &m.CorrelationID); err != nil {
			continue
		}
		m.Sender = domain.Sender(sender)
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		msgs = append(msgs, m)
	}

	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs
}
