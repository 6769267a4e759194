// Package server is the reference support server: one WebSocket endpoint
// speaking the widget's event protocol, with per-conversation rooms, a
// canonical message store, and an optional echo bot for local development.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/supportwire/internal/config"
	"github.com/soyeahso/supportwire/internal/domain"
	"github.com/soyeahso/supportwire/internal/hooks"
	"github.com/soyeahso/supportwire/internal/logging"
	"github.com/soyeahso/supportwire/internal/store"
	"github.com/soyeahso/supportwire/internal/wire"
)

const (
	handshakeDeadline = 10 * time.Second
	maxFrameBytes     = 64 * 1024
)

// Server serves the widget protocol over HTTP + WebSocket.
type Server struct {
	cfg     config.ServerConfig
	history config.HistoryConfig
	log     *logging.Logger
	store   store.ConversationStore
	rooms   *Registry
	hooks   *hooks.Manager

	startedAt   time.Time
	httpServer  *http.Server
	upgrader    websocket.Upgrader
	connLimiter *connRateLimiter
}

// Option configures the server.
type Option func(*Server)

// WithHooks sets the hook manager for lifecycle events.
func WithHooks(hm *hooks.Manager) Option {
	return func(s *Server) { s.hooks = hm }
}

// New creates a support server backed by the given conversation store.
func New(cfg config.ServerConfig, history config.HistoryConfig, st store.ConversationStore, log *logging.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:         cfg,
		history:     history,
		log:         log.Sub("server"),
		store:       st,
		rooms:       NewRegistry(log.Sub("sessions")),
		connLimiter: newConnRateLimiter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.AllowedOrigins),
		},
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// checkWebSocketOrigin validates WebSocket Origin headers. Requests without
// an Origin header (non-browser clients) are always allowed; browser
// requests must match a configured origin.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.ServerConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening. It blocks until the context is cancelled or an
// error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	handler := withMiddleware(mux, s.log, s.cfg.AllowedOrigins)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.startedAt = time.Now()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Bind).
		Str("auth", s.cfg.Auth.Mode).
		Bool("echo", s.cfg.Echo).
		Msg("support server starting")

	if s.hooks != nil {
		s.hooks.Emit(ctx, hooks.EventServerStart, map[string]any{
			"addr": ln.Addr().String(),
		})
	}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down support server")
		if s.hooks != nil {
			s.hooks.Emit(context.Background(), hooks.EventServerStop, nil)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.rooms.CloseAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

// handleWebSocket upgrades the connection and runs the session loop. The
// first frame must be an identity announcement; after that the session is
// bound to a conversation and all events are dispatched.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.connLimiter.allow(r.RemoteAddr) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("rate limited")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	sess := newSession(conn, s.log.Sub("ws"))
	s.rooms.Add(sess)
	if s.hooks != nil {
		s.hooks.EmitAsync(r.Context(), hooks.EventClientConnected, map[string]any{
			"connId": sess.ConnID,
			"remote": r.RemoteAddr,
		})
	}

	defer func() {
		s.leave(sess)
		sess.Close()
	}()

	// The announcement must arrive promptly; afterward the connection may
	// idle indefinitely.
	conn.SetReadDeadline(time.Now().Add(handshakeDeadline))

	s.readLoop(sess)
}

func (s *Server) readLoop(sess *session) {
	for {
		var f wire.Frame
		if err := sess.Socket.ReadJSON(&f); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", sess.ConnID).Msg("client closed connection")
			} else {
				s.log.Warn().Err(err).Str("connId", sess.ConnID).Msg("read error")
			}
			return
		}

		if !sess.Announced() && f.Event != wire.EventAnnounceIdentity {
			s.log.Warn().
				Str("connId", sess.ConnID).
				Str("event", f.Event).
				Msg("event before identity announcement")
			return
		}

		s.dispatch(sess, f)
	}
}

func (s *Server) dispatch(sess *session, f wire.Frame) {
	switch f.Event {
	case wire.EventAnnounceIdentity:
		s.handleAnnounce(sess, f)
	case wire.EventRequestHistory:
		s.handleRequestHistory(sess, f)
	case wire.EventSendMessage:
		s.handleSendMessage(sess, f)
	case wire.EventTypingStart:
		s.relayTyping(sess, wire.EventTyping)
	case wire.EventTypingStop:
		s.relayTyping(sess, wire.EventStopTyping)
	default:
		s.log.Debug().Str("event", f.Event).Msg("ignoring unknown event")
	}
}

// handleAnnounce binds (or re-binds) a session to the conversation for the
// announced identity. Announcements are idempotent; clients repeat them on
// every reconnect and on identity replacement.
func (s *Server) handleAnnounce(sess *session, f wire.Frame) {
	var p wire.AnnounceIdentity
	if err := f.Decode(&p); err != nil {
		s.log.Warn().Err(err).Msg("bad announce payload")
		return
	}
	if p.VisitorID == "" {
		s.log.Warn().Str("connId", sess.ConnID).Msg("announce without visitor id")
		return
	}

	identity := domain.Anonymous(p.VisitorID)
	tokenValid := p.Token != "" && s.tokenValid(p.Token)
	if tokenValid {
		identity = domain.AuthenticatedIdentity(p.VisitorID, p.Token, p.DisplayName, p.Contact)
	} else if p.Token != "" {
		s.connLimiter.recordFailure(sess.Socket.RemoteAddr().String())
		s.log.Warn().Str("connId", sess.ConnID).Msg("announce with invalid token")
	}

	authorized := tokenValid || s.cfg.Auth.Mode != "required"

	prev := sess.Bind(identity, identity.CacheKey(), authorized)
	s.rooms.Move(sess, prev, identity.CacheKey())

	// The connection survives a failed authorization; sends stay rejected
	// until a valid token is announced on this same socket.
	if !authorized {
		sess.SendEvent(wire.EventAuthRequired, wire.AuthRequired{Reason: "login required"})
	}

	sess.Socket.SetReadDeadline(time.Time{})

	name := identity.DisplayName
	if name == "" {
		name = "visitor"
	}
	s.rooms.BroadcastExcept(identity.CacheKey(), sess.ConnID, wire.EventPeerJoined, wire.Peer{Name: name})

	s.log.Info().
		Str("connId", sess.ConnID).
		Bool("authenticated", identity.Authenticated).
		Bool("authorized", authorized).
		Msg("identity announced")
}

func (s *Server) handleRequestHistory(sess *session, f wire.Frame) {
	var p wire.RequestHistory
	if err := f.Decode(&p); err != nil {
		s.log.Warn().Err(err).Msg("bad history request")
		return
	}

	limit := p.Limit
	if limit <= 0 || limit > s.history.Keep {
		limit = s.history.Keep
	}

	msgs := s.store.History(sess.Conversation(), limit)

	batch := wire.HistoryBatch{Messages: make([]wire.MessagePayload, 0, len(msgs))}
	for _, m := range msgs {
		batch.Messages = append(batch.Messages, wire.FromMessage(m))
	}
	if err := sess.SendEvent(wire.EventHistoryBatch, batch); err != nil {
		s.log.Warn().Err(err).Str("connId", sess.ConnID).Msg("history send failed")
	}
}

func (s *Server) handleSendMessage(sess *session, f wire.Frame) {
	if !sess.Authorized() {
		sess.SendEvent(wire.EventAuthRequired, wire.AuthRequired{Reason: "login required"})
		return
	}

	var p wire.SendMessage
	if err := f.Decode(&p); err != nil {
		s.log.Warn().Err(err).Msg("bad send payload")
		return
	}

	text, err := domain.ValidateText(p.Text)
	if err != nil {
		s.log.Warn().Err(err).Str("connId", sess.ConnID).Msg("rejected message")
		return
	}

	conv := sess.Conversation()
	stored := s.store.Append(conv, domain.Message{
		ID:            uuid.New().String(),
		Text:          text,
		Sender:        domain.SenderUser,
		CreatedAt:     time.Now().UTC(),
		CorrelationID: p.CorrelationID,
	})

	// The echo back to the sender doubles as the delivery confirmation:
	// the widget reconciles it against its optimistic entry by correlation ID.
	s.rooms.Broadcast(conv, wire.EventMessage, wire.FromMessage(stored))

	if s.hooks != nil {
		s.hooks.EmitAsync(context.Background(), hooks.EventMessageStored, map[string]any{
			"conversation": conv,
			"messageId":    stored.ID,
			"sender":       string(stored.Sender),
		})
	}

	if s.cfg.Echo {
		go s.echoReply(conv, text)
	}
}

func (s *Server) relayTyping(sess *session, event string) {
	s.rooms.BroadcastExcept(sess.Conversation(), sess.ConnID, event, nil)
}

func (s *Server) leave(sess *session) {
	conv := sess.Conversation()
	s.rooms.Remove(sess)
	if conv != "" {
		name := sess.Identity().DisplayName
		if name == "" {
			name = "visitor"
		}
		s.rooms.BroadcastExcept(conv, sess.ConnID, wire.EventPeerLeft, wire.Peer{Name: name})
	}
	if s.hooks != nil {
		s.hooks.EmitAsync(context.Background(), hooks.EventClientDisconnected, map[string]any{
			"connId": sess.ConnID,
		})
	}
}

func (s *Server) tokenValid(token string) bool {
	for _, t := range s.cfg.Auth.Tokens {
		if t == token {
			return true
		}
	}
	return false
}
