// Package msglog maintains the ordered, deduplicated local message history
// and reconciles it against the server-canonical log.
package msglog

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/supportwire/internal/domain"
	"github.com/soyeahso/supportwire/internal/logging"
)

// Cache persists the bounded tail of the log across restarts. The log is
// its only writer.
type Cache interface {
	Save(key string, entries []domain.Message) error
	Load(key string) ([]domain.Message, error)
	Clear(key string) error
}

// Log is the widget's local message history. All methods are called from
// the widget's event loop; the log holds no locks.
type Log struct {
	log      *logging.Logger
	cache    Cache
	cacheKey string
	keep     int

	entries []domain.Message
}

// New creates an empty log persisting at most keep entries under cacheKey.
// A nil cache disables persistence.
func New(cache Cache, cacheKey string, keep int, log *logging.Logger) *Log {
	if keep <= 0 {
		keep = 50
	}
	return &Log{
		log:      log.Sub("msglog"),
		cache:    cache,
		cacheKey: cacheKey,
		keep:     keep,
	}
}

// Restore loads the persisted slice for the current cache key. Called once
// at widget start, before any live traffic.
func (l *Log) Restore() {
	if l.cache == nil {
		return
	}
	entries, err := l.cache.Load(l.cacheKey)
	if err != nil {
		l.log.Warn().Err(err).Msg("history cache load failed")
		return
	}
	// Optimistic entries carry their correlation ID as their ID, so a
	// restored pending send can still be reconciled against its echo.
	for i := range entries {
		if entries[i].Origin == domain.OriginOptimistic && entries[i].CorrelationID == "" {
			entries[i].CorrelationID = entries[i].ID
		}
	}

	l.entries = entries
	if len(entries) > 0 {
		l.log.Debug().Int("entries", len(entries)).Msg("restored cached history")
	}
}

// AppendLocal constructs an optimistic entry for the given text and
// appends it. The caller has already validated the text (non-empty after
// trim, within the length limit). The returned message carries the
// correlation ID to put on the outbound emission.
func (l *Log) AppendLocal(text string) domain.Message {
	cid := uuid.New().String()
	msg := domain.Message{
		ID:            cid,
		Text:          text,
		Sender:        domain.SenderUser,
		CreatedAt:     time.Now(),
		Origin:        domain.OriginOptimistic,
		CorrelationID: cid,
	}
	l.entries = append(l.entries, msg)
	l.persist()
	return msg
}

// Reconcile merges one live server message. A correlation ID matching a
// pending optimistic entry replaces that entry in place, preserving its
// log position; anything else is appended (messages from the other party,
// or from other devices of the same identity). Returns false when the
// message was already present and nothing changed.
func (l *Log) Reconcile(msg domain.Message) bool {
	msg.Origin = domain.OriginConfirmed

	if msg.CorrelationID != "" {
		for i, e := range l.entries {
			if e.Origin == domain.OriginOptimistic && e.CorrelationID == msg.CorrelationID {
				l.entries[i] = msg
				l.persist()
				return true
			}
		}
	}

	if l.has(msg.ID) {
		return false
	}

	l.entries = append(l.entries, msg)
	l.persist()
	return true
}

// LoadHistory merges a server history batch. Existing entries are not
// duplicated; the result is ordered by createdAt ascending with a stable
// tie-break on id. Returns the number of entries added.
func (l *Log) LoadHistory(batch []domain.Message) int {
	added, replaced := 0, 0
	for _, msg := range batch {
		if l.has(msg.ID) {
			continue
		}
		if l.matchesPending(msg) {
			replaced++
			continue
		}
		msg.Origin = domain.OriginHistory
		l.entries = append(l.entries, msg)
		added++
	}
	if added == 0 {
		if replaced > 0 {
			l.persist()
		}
		return 0
	}

	sort.SliceStable(l.entries, func(i, j int) bool {
		a, b := l.entries[i], l.entries[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	l.persist()
	return added
}

// matchesPending reports whether a history message is the echo of a still
// pending optimistic entry; in that case Reconcile semantics apply instead
// of a plain merge.
func (l *Log) matchesPending(msg domain.Message) bool {
	if msg.CorrelationID == "" {
		return false
	}
	for i, e := range l.entries {
		if e.Origin == domain.OriginOptimistic && e.CorrelationID == msg.CorrelationID {
			msg.Origin = domain.OriginConfirmed
			l.entries[i] = msg
			return true
		}
	}
	return false
}

// Entries returns a copy of the full in-memory log.
func (l *Log) Entries() []domain.Message {
	out := make([]domain.Message, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries in memory.
func (l *Log) Len() int { return len(l.entries) }

// Clear drops the in-memory log and the persisted slice for the current
// key. Called on logout so no history crosses identities.
func (l *Log) Clear() {
	l.entries = nil
	if l.cache != nil {
		if err := l.cache.Clear(l.cacheKey); err != nil {
			l.log.Warn().Err(err).Msg("history cache clear failed")
		}
	}
}

// Rekey switches the cache key after an identity replacement. The
// in-memory log and the old key's persisted slice are dropped first.
func (l *Log) Rekey(cacheKey string) {
	l.Clear()
	l.cacheKey = cacheKey
}

// SetCacheKey switches the cache key while keeping the in-memory log, then
// persists under the new key. Used on login, where the anonymous
// conversation carries over into the authenticated session.
func (l *Log) SetCacheKey(cacheKey string) {
	l.cacheKey = cacheKey
	l.persist()
}

// Persisted returns the slice that is written to the cache: the keep most
// recent entries, evicted FIFO.
func (l *Log) Persisted() []domain.Message {
	if len(l.entries) <= l.keep {
		return l.Entries()
	}
	tail := l.entries[len(l.entries)-l.keep:]
	out := make([]domain.Message, len(tail))
	copy(out, tail)
	return out
}

func (l *Log) has(id string) bool {
	for _, e := range l.entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

func (l *Log) persist() {
	if l.cache == nil {
		return
	}
	if err := l.cache.Save(l.cacheKey, l.Persisted()); err != nil {
		l.log.Warn().Err(err).Msg("history cache save failed")
	}
}
