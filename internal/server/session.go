package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/supportwire/internal/domain"
	"github.com/soyeahso/supportwire/internal/logging"
	"github.com/soyeahso/supportwire/internal/wire"
)

// ErrSessionClosed is returned when sending on a closed session.
var ErrSessionClosed = errors.New("session closed")

// session is one WebSocket connection. A session becomes bound to a
// conversation once the client announces an identity; until then only the
// announce event is meaningful.
type session struct {
	ConnID      string
	Socket      *websocket.Conn
	ConnectedAt time.Time

	mu           sync.Mutex
	closed       bool
	identity     domain.Identity
	conversation string
	announced    bool
	authorized   bool
	log          *logging.Logger
}

func newSession(conn *websocket.Conn, log *logging.Logger) *session {
	return &session{
		ConnID:      uuid.New().String(),
		Socket:      conn,
		ConnectedAt: time.Now(),
		log:         log,
	}
}

// Send writes a frame to the client. Safe for concurrent use.
func (s *session) Send(f wire.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return s.Socket.WriteJSON(f)
}

// SendEvent marshals and sends a named event.
func (s *session) SendEvent(event string, payload any) error {
	f, err := wire.NewFrame(event, payload)
	if err != nil {
		return err
	}
	return s.Send(f)
}

// Bind records the announced identity and its conversation. Returns the
// previous conversation so the registry can move the session between rooms.
func (s *session) Bind(identity domain.Identity, conversation string, authorized bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.conversation
	s.identity = identity
	s.conversation = conversation
	s.announced = true
	s.authorized = authorized
	return prev
}

// Conversation returns the bound conversation key, empty before announce.
func (s *session) Conversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversation
}

// Identity returns the announced identity.
func (s *session) Identity() domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Announced reports whether the client has announced an identity yet.
func (s *session) Announced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.announced
}

// Authorized reports whether the session may send messages.
func (s *session) Authorized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authorized
}

// Close closes the underlying socket. Idempotent.
func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.Socket.Close()
}

// Registry tracks live sessions grouped by conversation. Sessions of the
// same identity (multiple tabs, multiple devices) share a room and receive
// each other's messages.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*session
	all   map[string]*session
	log   *logging.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		rooms: make(map[string]map[string]*session),
		all:   make(map[string]*session),
		log:   log,
	}
}

// Add tracks a freshly upgraded session, not yet in any room.
func (r *Registry) Add(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all[s.ConnID] = s
	r.log.Debug().Str("connId", s.ConnID).Msg("session connected")
}

// Move places a session in the room for conversation, removing it from
// prev when it was bound before. Used on announce and re-announce.
func (r *Registry) Move(s *session, prev, conversation string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev != "" && prev != conversation {
		if room := r.rooms[prev]; room != nil {
			delete(room, s.ConnID)
			if len(room) == 0 {
				delete(r.rooms, prev)
			}
		}
	}

	room := r.rooms[conversation]
	if room == nil {
		room = make(map[string]*session)
		r.rooms[conversation] = room
	}
	room[s.ConnID] = s
}

// Remove drops a session from the registry and its room.
func (r *Registry) Remove(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.all, s.ConnID)
	conv := s.Conversation()
	if room := r.rooms[conv]; room != nil {
		delete(room, s.ConnID)
		if len(room) == 0 {
			delete(r.rooms, conv)
		}
	}
	r.log.Debug().Str("connId", s.ConnID).Msg("session disconnected")
}

// Broadcast sends an event to every session in a conversation.
func (r *Registry) Broadcast(conversation, event string, payload any) {
	for _, s := range r.members(conversation) {
		if err := s.SendEvent(event, payload); err != nil {
			r.log.Warn().Err(err).Str("connId", s.ConnID).Msg("broadcast send failed")
		}
	}
}

// BroadcastExcept sends an event to every session in a conversation other
// than the given one. Used for typing relay and presence.
func (r *Registry) BroadcastExcept(conversation, exceptConnID, event string, payload any) {
	for _, s := range r.members(conversation) {
		if s.ConnID == exceptConnID {
			continue
		}
		if err := s.SendEvent(event, payload); err != nil {
			r.log.Warn().Err(err).Str("connId", s.ConnID).Msg("relay send failed")
		}
	}
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.all)
}

// Conversations returns the number of active rooms.
func (r *Registry) Conversations() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// CloseAll closes every live session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.all {
		s.Close()
		delete(r.all, id)
	}
	r.rooms = make(map[string]map[string]*session)
}

func (r *Registry) members(conversation string) []*session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.rooms[conversation]
	out := make([]*session, 0, len(room))
	for _, s := range room {
		out = append(out, s)
	}
	return out
}
