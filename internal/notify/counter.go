// Package notify tracks the unread-message badge for a closed widget.
package notify

import "github.com/soyeahso/supportwire/internal/domain"

// Counter is the unread-notification state machine. Unread only grows on
// inbound non-user messages while the widget is closed, and only opening
// the widget clears it. Methods run on the widget's event loop.
type Counter struct {
	unread   int
	open     bool
	onChange func(int)
}

// New creates a closed counter at zero. onChange fires on every change to
// the unread count; it may be nil.
func New(onChange func(int)) *Counter {
	return &Counter{onChange: onChange}
}

// Inbound records one inbound message. Messages sent by the user never
// count, nor does anything received while the widget is open.
func (c *Counter) Inbound(sender domain.Sender) {
	if c.open || sender == domain.SenderUser {
		return
	}
	c.unread++
	c.notify()
}

// Open marks the widget open and clears the unread count. This is the only
// transition that clears it.
func (c *Counter) Open() {
	c.open = true
	if c.unread != 0 {
		c.unread = 0
		c.notify()
	}
}

// Close marks the widget closed. The count is untouched and resumes
// accumulating on the next inbound message.
func (c *Counter) Close() {
	c.open = false
}

// Unread returns the current unread count.
func (c *Counter) Unread() int { return c.unread }

// IsOpen reports whether the widget is open.
func (c *Counter) IsOpen() bool { return c.open }

// BadgeVisible is the badge's visibility: a pure function of the count.
func (c *Counter) BadgeVisible() bool { return c.unread > 0 }

func (c *Counter) notify() {
	if c.onChange != nil {
		c.onChange(c.unread)
	}
}
