// Package session keeps the server-side identity in sync with the link.
package session

import (
	"errors"

	"github.com/soyeahso/supportwire/internal/domain"
	"github.com/soyeahso/supportwire/internal/logging"
	"github.com/soyeahso/supportwire/internal/wire"
)

// ErrAuthRequired is returned when the channel requires login and the
// current identity is anonymous.
var ErrAuthRequired = errors.New("authentication required")

// Sender is the slice of the link the binder needs.
type Sender interface {
	Send(event string, payload any) error
}

// Binder attaches an identity to a transport link and re-announces it
// after every reconnect. All methods are called from the widget's event
// loop; the binder holds no locks of its own.
type Binder struct {
	link     Sender
	log      *logging.Logger
	identity domain.Identity

	connected    bool
	authRequired bool
}

// New creates a binder for the given starting identity.
func New(link Sender, identity domain.Identity, log *logging.Logger) *Binder {
	return &Binder{
		link:     link,
		log:      log.Sub("session"),
		identity: identity,
	}
}

// Identity returns the current identity.
func (b *Binder) Identity() domain.Identity { return b.identity }

// HandleConnected announces the identity and requests a fresh history
// sync. Announcements are idempotent; the server tolerates repeats, so an
// identity replaced while offline needs no special casing here.
func (b *Binder) HandleConnected() {
	b.connected = true
	b.announce()
	b.requestHistory()
}

// HandleDisconnected records that the link is down. Any identity change
// made before the next connect is announced then.
func (b *Binder) HandleDisconnected() {
	b.connected = false
}

// Replace swaps the identity in place. If the link is up the new identity
// is announced immediately with a fresh history sync; otherwise the
// announcement is deferred to the next connect. A login clears the
// auth-required gate.
func (b *Binder) Replace(identity domain.Identity) {
	b.identity = identity
	if identity.Authenticated {
		b.authRequired = false
	}

	if b.connected {
		b.announce()
		b.requestHistory()
	}

	b.log.Info().
		Bool("authenticated", identity.Authenticated).
		Str("displayName", identity.DisplayName).
		Msg("identity replaced")
}

// HandleAuthRequired records the server's authentication-required signal.
// Sends stay gated until the identity transitions to authenticated.
func (b *Binder) HandleAuthRequired() {
	b.authRequired = true
	b.log.Warn().Msg("server requires authentication")
}

// AuthRequired reports whether outbound messages are currently gated.
func (b *Binder) AuthRequired() bool {
	return b.authRequired && !b.identity.Authenticated
}

// CheckSend returns ErrAuthRequired when the channel is gated.
func (b *Binder) CheckSend() error {
	if b.AuthRequired() {
		return ErrAuthRequired
	}
	return nil
}

func (b *Binder) announce() {
	payload := wire.AnnounceIdentity{
		VisitorID:   b.identity.VisitorID,
		Token:       b.identity.Token,
		DisplayName: b.identity.DisplayName,
		Contact:     b.identity.Contact,
	}
	if err := b.link.Send(wire.EventAnnounceIdentity, payload); err != nil {
		b.log.Warn().Err(err).Msg("identity announcement not delivered")
	}
}

func (b *Binder) requestHistory() {
	if err := b.link.Send(wire.EventRequestHistory, wire.RequestHistory{}); err != nil {
		b.log.Warn().Err(err).Msg("history request not delivered")
	}
}
