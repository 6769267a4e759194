// Package widget wires the transport link, session binder, message log,
// typing coordinator, and notification counter into one chat-widget core
// behind a single event loop.
package widget

import (
	"sync"

	"github.com/soyeahso/supportwire/internal/config"
	"github.com/soyeahso/supportwire/internal/domain"
	"github.com/soyeahso/supportwire/internal/link"
	"github.com/soyeahso/supportwire/internal/logging"
	"github.com/soyeahso/supportwire/internal/msglog"
	"github.com/soyeahso/supportwire/internal/notify"
	"github.com/soyeahso/supportwire/internal/session"
	"github.com/soyeahso/supportwire/internal/typing"
	"github.com/soyeahso/supportwire/internal/wire"
)

// SendInterceptor inspects or rewrites an outbound message before it is
// appended and emitted. Returning an error vetoes the send. Interceptors
// run in registration order on the event loop.
type SendInterceptor func(text string) (string, error)

// Core is one widget instance. Construct one per widget; instances share
// no mutable state, so an embedded widget and an admin preview can coexist
// in a process.
//
// Every state transition runs on the core's event loop: link callbacks,
// timer expirations, and user input are all posted onto one queue and
// processed in order, with connection-state transitions ahead of the
// payloads that follow them.
type Core struct {
	cfg     config.ClientConfig
	log     *logging.Logger
	adapter Adapter

	lnk          *link.Link
	binder       *session.Binder
	msgs         *msglog.Log
	typing       *typing.Coordinator
	unread       *notify.Counter
	interceptors []SendInterceptor

	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Core.
type Option func(*Core)

// WithInterceptor appends a send interceptor.
func WithInterceptor(i SendInterceptor) Option {
	return func(c *Core) { c.interceptors = append(c.interceptors, i) }
}

// New creates a widget core for the given identity. cache may be nil to
// disable local persistence. The core is inert until Start.
func New(cfg config.ClientConfig, historyCfg config.HistoryConfig, identity domain.Identity, cache msglog.Cache, adapter Adapter, log *logging.Logger, opts ...Option) *Core {
	c := &Core{
		cfg:     cfg,
		log:     log.Sub("widget"),
		adapter: adapter,
		tasks:   make(chan func(), 64),
		done:    make(chan struct{}),
	}

	c.lnk = link.New(cfg, log)
	c.binder = session.New(c.lnk, identity, log)
	c.msgs = msglog.New(cache, identity.CacheKey(), historyCfg.Keep, log)
	c.unread = notify.New(func(count int) { adapter.UnreadChanged(count) })
	c.typing = typing.New(
		cfg.Typing.Debounce,
		cfg.Typing.RemoteExpiry,
		c.post,
		c.emitTyping,
		func(on bool) { adapter.RemoteTypingChanged(on) },
		log,
	)

	for _, opt := range opts {
		opt(c)
	}

	c.lnk.OnState(func(s domain.ConnState) {
		c.post(func() { c.handleState(s) })
	})
	c.lnk.OnFrame(func(f wire.Frame) {
		c.post(func() { c.handleFrame(f) })
	})

	return c
}

// Start restores cached history, begins the event loop, and connects.
func (c *Core) Start() error {
	go c.run()

	c.post(func() {
		c.msgs.Restore()
		if c.msgs.Len() > 0 {
			c.adapter.LogChanged(c.msgs.Entries())
		}
	})

	return c.lnk.Connect()
}

// Close tears down the widget: the link is closed, all pending timers are
// cancelled, and no adapter callback fires afterward.
func (c *Core) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.typing.Stop()
		err = c.lnk.Close()
	})
	return err
}

// Submit sends one user message. Validation errors (empty after trim, over
// the length limit) are returned immediately; everything else happens
// asynchronously: the optimistic entry is appended and the emission is
// queued for flush-on-reconnect when the link is down.
func (c *Core) Submit(text string) error {
	trimmed, err := domain.ValidateText(text)
	if err != nil {
		return err
	}

	c.post(func() { c.submit(trimmed) })
	return nil
}

// Keystroke reports one composer keystroke for typing coordination.
func (c *Core) Keystroke() {
	c.post(c.typing.Keystroke)
}

// OpenWidget reports that the chat panel became visible.
func (c *Core) OpenWidget() {
	c.post(c.unread.Open)
}

// CloseWidget reports that the chat panel was hidden.
func (c *Core) CloseWidget() {
	c.post(c.unread.Close)
}

// Login replaces the identity with an authenticated one. The new identity
// is announced (immediately or on the next connect) and a fresh history
// sync is requested; the local log is re-keyed to the new identity.
func (c *Core) Login(token, displayName, contact string) {
	c.post(func() {
		id := domain.AuthenticatedIdentity(c.binder.Identity().VisitorID, token, displayName, contact)
		c.binder.Replace(id)
		c.msgs.SetCacheKey(id.CacheKey())
	})
}

// Logout replaces the identity with an anonymous one and clears the local
// log and its persisted cache so nothing leaks across identities.
func (c *Core) Logout() {
	c.post(func() {
		id := domain.Anonymous(c.binder.Identity().VisitorID)
		c.binder.Replace(id)
		c.msgs.Rekey(id.CacheKey())
		c.adapter.LogChanged(c.msgs.Entries())
	})
}

// State returns the link's connection state.
func (c *Core) State() domain.ConnState { return c.lnk.State() }

// run is the event loop. Everything that mutates widget state executes here.
func (c *Core) run() {
	for {
		select {
		case fn := <-c.tasks:
			fn()
		case <-c.done:
			return
		}
	}
}

// post schedules fn on the event loop. Posts after Close are dropped.
func (c *Core) post(fn func()) {
	select {
	case <-c.done:
	case c.tasks <- fn:
	}
}

func (c *Core) handleState(s domain.ConnState) {
	switch s {
	case domain.StateConnected:
		// Announce before releasing any traffic queued while offline; the
		// server binds the conversation off the first frame it sees.
		c.binder.HandleConnected()
		c.lnk.Flush()
	case domain.StateReconnecting, domain.StateDisconnected:
		c.binder.HandleDisconnected()
	}
	c.adapter.ConnectionStateChanged(s)
}

func (c *Core) handleFrame(f wire.Frame) {
	switch f.Event {
	case wire.EventMessage:
		var p wire.MessagePayload
		if err := f.Decode(&p); err != nil {
			c.log.Warn().Err(err).Msg("bad message payload")
			return
		}
		if c.msgs.Reconcile(p.Message(domain.OriginConfirmed)) {
			c.unread.Inbound(p.Sender)
			c.adapter.LogChanged(c.msgs.Entries())
		}

	case wire.EventHistoryBatch:
		var p wire.HistoryBatch
		if err := f.Decode(&p); err != nil {
			c.log.Warn().Err(err).Msg("bad history payload")
			return
		}
		batch := make([]domain.Message, 0, len(p.Messages))
		for _, m := range p.Messages {
			batch = append(batch, m.Message(domain.OriginHistory))
		}
		if c.msgs.LoadHistory(batch) > 0 {
			c.adapter.LogChanged(c.msgs.Entries())
		}

	case wire.EventTyping:
		c.typing.RemoteTyping()

	case wire.EventStopTyping:
		c.typing.RemoteStopTyping()

	case wire.EventAuthRequired:
		c.binder.HandleAuthRequired()
		c.adapter.AuthRequired()

	case wire.EventPeerJoined, wire.EventPeerLeft:
		var p wire.Peer
		if err := f.Decode(&p); err != nil {
			return
		}
		if po, ok := c.adapter.(PresenceObserver); ok {
			po.PeerPresence(p.Name, f.Event == wire.EventPeerJoined)
		}

	default:
		c.log.Debug().Str("event", f.Event).Msg("ignoring unknown event")
	}
}

// submit runs on the event loop: auth gate, interceptors, optimistic
// append, emission.
func (c *Core) submit(text string) {
	if err := c.binder.CheckSend(); err != nil {
		c.log.Warn().Msg("send blocked until login")
		c.adapter.AuthRequired()
		return
	}

	for _, intercept := range c.interceptors {
		rewritten, err := intercept(text)
		if err != nil {
			c.log.Debug().Err(err).Msg("send vetoed by interceptor")
			return
		}
		text = rewritten
	}

	msg := c.msgs.AppendLocal(text)
	c.adapter.LogChanged(c.msgs.Entries())

	err := c.lnk.Send(wire.EventSendMessage, wire.SendMessage{
		Text:            msg.Text,
		CorrelationID:   msg.CorrelationID,
		ClientTimestamp: msg.CreatedAt,
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("message not delivered or queued")
	}
}

// emitTyping sends a typing signal when the link is up. Typing is
// ephemeral: signals are dropped rather than queued while offline.
func (c *Core) emitTyping(event string) {
	if c.lnk.State() != domain.StateConnected {
		return
	}
	if err := c.lnk.Send(event, nil); err != nil {
		c.log.Debug().Err(err).Str("event", event).Msg("typing signal not sent")
	}
}
