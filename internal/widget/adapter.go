package widget

import "github.com/soyeahso/supportwire/internal/domain"

// Adapter is the contract between the core and a presentation layer. All
// callbacks are invoked from the core's event loop, one at a time, so an
// implementation never observes partial updates. Message text must always
// be rendered as plain text, never interpreted as markup.
type Adapter interface {
	// LogChanged delivers the full current log after any change.
	LogChanged(entries []domain.Message)
	// RemoteTypingChanged reports the remote typing indicator.
	RemoteTypingChanged(typing bool)
	// UnreadChanged reports the unread badge count.
	UnreadChanged(count int)
	// ConnectionStateChanged reports transport state for the status indicator.
	ConnectionStateChanged(state domain.ConnState)
	// AuthRequired signals that the channel requires login; the composer
	// should be replaced with a login affordance.
	AuthRequired()
}

// PresenceObserver is an optional extension of Adapter for presentation
// layers that surface peer join/leave events.
type PresenceObserver interface {
	PeerPresence(name string, joined bool)
}
