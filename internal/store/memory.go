package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/supportwire/internal/domain"
)

// MemoryConversationStore is an in-memory ConversationStore for tests and
// the "memory" store mode.
type MemoryConversationStore struct {
	mu            sync.Mutex
	conversations map[string][]domain.Message
}

// NewMemoryConversationStore creates an empty in-memory conversation store.
func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{
		conversations: make(map[string][]domain.Message),
	}
}

// Append stores one message, assigning the server ID and timestamp.
func (s *MemoryConversationStore) Append(conversation string, msg domain.Message) domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.conversations[conversation] = append(s.conversations[conversation], msg)
	return msg
}

// History returns the most recent limit messages in ascending order.
func (s *MemoryConversationStore) History(conversation string, limit int) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.conversations[conversation]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out
}

// MemoryHistoryCache is an in-memory stand-in for HistoryCache.
type MemoryHistoryCache struct {
	mu     sync.Mutex
	slices map[string][]domain.Message
}

// NewMemoryHistoryCache creates an empty in-memory history cache.
func NewMemoryHistoryCache() *MemoryHistoryCache {
	return &MemoryHistoryCache{slices: make(map[string][]domain.Message)}
}

// Save replaces the persisted slice for the given cache key.
func (c *MemoryHistoryCache) Save(key string, entries []domain.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Message, len(entries))
	copy(out, entries)
	c.slices[key] = out
	return nil
}

// Load returns the persisted slice for the given cache key.
func (c *MemoryHistoryCache) Load(key string) ([]domain.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.slices[key]
	out := make([]domain.Message, len(entries))
	copy(out, entries)
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// Clear removes all persisted history for the given cache key.
func (c *MemoryHistoryCache) Clear(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.slices, key)
	return nil
}
