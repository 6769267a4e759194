// Package link owns the bidirectional WebSocket connection to the support
// server: connect, send, receive, and automatic reconnection with jittered
// exponential backoff. It emits events only; it never touches UI state.
package link

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soyeahso/supportwire/internal/config"
	"github.com/soyeahso/supportwire/internal/domain"
	"github.com/soyeahso/supportwire/internal/logging"
	"github.com/soyeahso/supportwire/internal/wire"
)

var (
	// ErrLinkClosed is returned when the link has been torn down.
	ErrLinkClosed = errors.New("link closed")
	// ErrLinkUnavailable is returned when a send cannot be delivered or
	// queued: the link is down and the outbound queue is full.
	ErrLinkUnavailable = errors.New("link unavailable")
)

// Link maintains one connection to the support server. Retries are
// unlimited; the link recovers without operator intervention or reports
// its state while trying.
type Link struct {
	cfg    config.ClientConfig
	log    *logging.Logger
	dialer *websocket.Dialer

	// Callbacks are invoked from link-owned goroutines, in order: a state
	// transition is always delivered before any frame received under that
	// state. Consumers serialize them onto their own event loop.
	onState func(domain.ConnState)
	onFrame func(wire.Frame)

	mu         sync.Mutex
	state      domain.ConnState
	conn       *websocket.Conn
	queue      []wire.Frame
	attempts   int
	gen        int
	dialing    bool
	closed     bool
	retryTimer *time.Timer

	writeMu sync.Mutex
}

// New creates a link for the configured server URL. Callbacks must be
// registered before Connect.
func New(cfg config.ClientConfig, log *logging.Logger) *Link {
	return &Link{
		cfg: cfg,
		log: log.Sub("link"),
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.DialTimeout,
		},
		state: domain.StateDisconnected,
	}
}

// OnState registers the connection-state callback.
func (l *Link) OnState(fn func(domain.ConnState)) { l.onState = fn }

// OnFrame registers the inbound-frame callback.
func (l *Link) OnFrame(fn func(wire.Frame)) { l.onFrame = fn }

// State returns the current connection state.
func (l *Link) State() domain.ConnState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Connect starts the initial connection attempt. A call while the link is
// already Connecting, Reconnecting, or Connected is a no-op: at most one
// attempt is in flight at any time.
func (l *Link) Connect() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLinkClosed
	}
	if l.state != domain.StateDisconnected {
		l.mu.Unlock()
		return nil
	}
	l.state = domain.StateConnecting
	l.dialing = true
	gen := l.gen
	l.mu.Unlock()

	l.notifyState(domain.StateConnecting)
	go l.dial(gen)
	return nil
}

// Send delivers an event frame when Connected. While the link is down the
// frame is queued until the consumer calls Flush after the next connect;
// a full queue returns ErrLinkUnavailable so a send is never silently
// dropped.
func (l *Link) Send(event string, payload any) error {
	frame, err := wire.NewFrame(event, payload)
	if err != nil {
		return err
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLinkClosed
	}
	if l.state != domain.StateConnected {
		if len(l.queue) >= l.cfg.SendQueue {
			l.mu.Unlock()
			return ErrLinkUnavailable
		}
		l.queue = append(l.queue, frame)
		queued := len(l.queue)
		l.mu.Unlock()
		l.log.Debug().Str("event", event).Int("queued", queued).Msg("queued frame while offline")
		return nil
	}
	conn := l.conn
	l.mu.Unlock()

	if err := l.write(conn, frame); err != nil {
		// The connection is dying; the read loop will notice and reconnect.
		// Hold the frame so it rides the next flush instead of vanishing.
		l.mu.Lock()
		defer l.mu.Unlock()
		if len(l.queue) >= l.cfg.SendQueue {
			return ErrLinkUnavailable
		}
		l.queue = append(l.queue, frame)
		l.log.Debug().Err(err).Str("event", event).Msg("write failed, frame re-queued")
	}
	return nil
}

// Close tears down the link and cancels any pending retry. No callback
// fires after Close returns.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.state = domain.StateDisconnected
	l.gen++
	if l.retryTimer != nil {
		l.retryTimer.Stop()
		l.retryTimer = nil
	}
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	if conn != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing"))
		return conn.Close()
	}
	return nil
}

// dial performs one connection attempt for the given generation.
func (l *Link) dial(gen int) {
	conn, _, err := l.dialer.Dial(l.cfg.URL, nil)

	l.mu.Lock()
	if l.closed || gen != l.gen {
		l.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	l.dialing = false

	if err != nil {
		l.state = domain.StateReconnecting
		l.scheduleRetryLocked()
		delay := l.nextDelayLocked()
		l.mu.Unlock()

		l.log.Warn().Err(err).Dur("retryIn", delay).Msg("connect failed")
		l.notifyState(domain.StateReconnecting)
		return
	}

	l.conn = conn
	l.state = domain.StateConnected
	l.attempts = 0
	l.mu.Unlock()

	l.log.Info().Str("url", l.cfg.URL).Msg("connected")
	l.notifyState(domain.StateConnected)

	go l.readLoop(conn, gen)
}

// Flush writes the frames queued while offline, preserving submission
// order. The consumer calls it after its post-connect handshake so queued
// traffic never reaches the server ahead of the identity announcement. A
// frame that fails to write is re-queued for the next connect.
func (l *Link) Flush() {
	l.mu.Lock()
	if l.closed || l.state != domain.StateConnected || len(l.queue) == 0 {
		l.mu.Unlock()
		return
	}
	conn := l.conn
	pending := l.queue
	l.queue = nil
	l.mu.Unlock()

	for i, f := range pending {
		if err := l.write(conn, f); err != nil {
			l.log.Warn().Err(err).Str("event", f.Event).Msg("flush of queued frame failed")
			l.mu.Lock()
			l.queue = append(pending[i:], l.queue...)
			l.mu.Unlock()
			return
		}
	}
	l.log.Debug().Int("flushed", len(pending)).Msg("offline queue flushed")
}

// readLoop reads frames until the connection drops, then schedules a retry.
func (l *Link) readLoop(conn *websocket.Conn, gen int) {
	for {
		var frame wire.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			l.mu.Lock()
			if l.closed || gen != l.gen {
				l.mu.Unlock()
				return
			}
			l.conn = nil
			l.state = domain.StateReconnecting
			l.scheduleRetryLocked()
			l.mu.Unlock()

			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				l.log.Info().Msg("server closed connection")
			} else {
				l.log.Warn().Err(err).Msg("connection lost")
			}
			conn.Close()
			l.notifyState(domain.StateReconnecting)
			return
		}

		if l.onFrame != nil {
			l.onFrame(frame)
		}
	}
}

// scheduleRetryLocked arms the backoff timer for the next attempt.
// Caller holds l.mu.
func (l *Link) scheduleRetryLocked() {
	l.attempts++
	gen := l.gen
	delay := l.nextDelayLocked()

	if l.retryTimer != nil {
		l.retryTimer.Stop()
	}
	l.retryTimer = time.AfterFunc(delay, func() {
		l.mu.Lock()
		if l.closed || gen != l.gen || l.state != domain.StateReconnecting || l.dialing {
			l.mu.Unlock()
			return
		}
		l.dialing = true
		l.mu.Unlock()
		l.dial(gen)
	})
}

// nextDelayLocked computes the jittered exponential backoff delay for the
// current attempt count. Caller holds l.mu.
func (l *Link) nextDelayLocked() time.Duration {
	rc := l.cfg.Reconnect
	delay := rc.BaseDelay
	for i := 1; i < l.attempts; i++ {
		delay *= 2
		if delay >= rc.MaxDelay {
			delay = rc.MaxDelay
			break
		}
	}
	if delay > rc.MaxDelay {
		delay = rc.MaxDelay
	}
	if rc.Jitter > 0 {
		spread := 1 + rc.Jitter*(2*rand.Float64()-1)
		delay = time.Duration(float64(delay) * spread)
	}
	return delay
}

// write serializes frame writes across goroutines.
func (l *Link) write(conn *websocket.Conn, frame wire.Frame) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return conn.WriteJSON(frame)
}

func (l *Link) notifyState(s domain.ConnState) {
	if l.onState != nil {
		l.onState(s)
	}
}

// QueuedFrames reports how many frames are waiting for the next connect.
func (l *Link) QueuedFrames() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}
