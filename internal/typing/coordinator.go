// Package typing coordinates typing indicators in both directions:
// rate-limited emission of the local signal and timeout-guarded display of
// the remote one.
package typing

import (
	"time"

	"github.com/soyeahso/supportwire/internal/logging"
)

// Coordinator debounces local keystrokes into at most one typing-start per
// burst and expires the remote indicator when the peer's stop signal is
// lost. Timer callbacks are handed to post, which serializes them onto the
// widget's event loop; every other method is already called from that loop.
type Coordinator struct {
	debounce time.Duration
	expiry   time.Duration
	post     func(func())
	emit     func(event string)
	onRemote func(bool)
	log      *logging.Logger

	typingLocal   bool
	remoteTyping  bool
	debounceTimer *time.Timer
	expiryTimer   *time.Timer
	stopped       bool
}

// New creates a coordinator. emit sends typing-start/typing-stop over the
// link; onRemote reports remote indicator changes to the presentation layer.
func New(debounce, expiry time.Duration, post func(func()), emit func(event string), onRemote func(bool), log *logging.Logger) *Coordinator {
	if debounce <= 0 {
		debounce = time.Second
	}
	if expiry <= 0 {
		expiry = 5 * time.Second
	}
	return &Coordinator{
		debounce: debounce,
		expiry:   expiry,
		post:     post,
		emit:     emit,
		onRemote: onRemote,
		log:      log.Sub("typing"),
	}
}

// Keystroke handles one local keystroke. The first keystroke of a burst
// emits typing-start; each subsequent one only pushes the debounce timer
// out without re-emitting.
func (c *Coordinator) Keystroke() {
	if c.stopped {
		return
	}

	if !c.typingLocal {
		c.typingLocal = true
		c.emit("typing-start")
	}

	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	c.debounceTimer = time.AfterFunc(c.debounce, func() {
		c.post(c.debounceExpired)
	})
}

// debounceExpired runs on the event loop when a typing burst ends.
func (c *Coordinator) debounceExpired() {
	if c.stopped || !c.typingLocal {
		return
	}
	c.typingLocal = false
	c.debounceTimer = nil
	c.emit("typing-stop")
}

// RemoteTyping shows the remote indicator and arms the safety expiry so a
// dropped stop signal cannot leave it stuck.
func (c *Coordinator) RemoteTyping() {
	if c.stopped {
		return
	}

	if c.expiryTimer != nil {
		c.expiryTimer.Stop()
	}
	c.expiryTimer = time.AfterFunc(c.expiry, func() {
		c.post(c.remoteExpired)
	})

	if !c.remoteTyping {
		c.remoteTyping = true
		c.onRemote(true)
	}
}

// RemoteStopTyping clears the remote indicator on an explicit stop signal.
func (c *Coordinator) RemoteStopTyping() {
	if c.stopped {
		return
	}
	if c.expiryTimer != nil {
		c.expiryTimer.Stop()
		c.expiryTimer = nil
	}
	if c.remoteTyping {
		c.remoteTyping = false
		c.onRemote(false)
	}
}

// remoteExpired runs on the event loop when the safety window elapses
// without a fresh remote signal.
func (c *Coordinator) remoteExpired() {
	if c.stopped || !c.remoteTyping {
		return
	}
	c.log.Debug().Msg("remote typing expired without stop signal")
	c.expiryTimer = nil
	c.remoteTyping = false
	c.onRemote(false)
}

// IsRemoteTyping reports whether the remote indicator is currently shown.
func (c *Coordinator) IsRemoteTyping() bool { return c.remoteTyping }

// IsTypingLocally reports whether a local typing burst is in progress.
func (c *Coordinator) IsTypingLocally() bool { return c.typingLocal }

// Stop cancels all pending timers. No callback fires afterward.
func (c *Coordinator) Stop() {
	c.stopped = true
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
		c.debounceTimer = nil
	}
	if c.expiryTimer != nil {
		c.expiryTimer.Stop()
		c.expiryTimer = nil
	}
}
