package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/soyeahso/supportwire/internal/domain"
)

// terminalAdapter renders the widget in a terminal. It remembers which
// entry IDs it has already printed so each change appends rather than
// reprinting the whole transcript.
type terminalAdapter struct {
	mu      sync.Mutex
	out     io.Writer
	lastIDs map[string]bool
}

func newTerminalAdapter(out io.Writer) *terminalAdapter {
	return &terminalAdapter{out: out, lastIDs: make(map[string]bool)}
}

func (a *terminalAdapter) LogChanged(entries []domain.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, m := range entries {
		if a.lastIDs[m.ID] {
			continue
		}
		a.lastIDs[m.ID] = true

		marker := ""
		if m.Origin == domain.OriginOptimistic {
			marker = " (sending)"
		}
		fmt.Fprintf(a.out, "[%s] %s: %s%s\n",
			m.CreatedAt.Format("15:04:05"), m.Sender, m.Text, marker)
	}
}

func (a *terminalAdapter) RemoteTypingChanged(typing bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if typing {
		fmt.Fprintln(a.out, "... agent is typing")
	}
}

func (a *terminalAdapter) UnreadChanged(count int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if count > 0 {
		fmt.Fprintf(a.out, "(%d unread)\n", count)
	}
}

func (a *terminalAdapter) ConnectionStateChanged(state domain.ConnState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(a.out, "-- %s --\n", state)
}

func (a *terminalAdapter) AuthRequired() {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintln(a.out, "-- login required: /login <token> --")
}

func (a *terminalAdapter) PeerPresence(name string, joined bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if joined {
		fmt.Fprintf(a.out, "-- %s joined --\n", name)
	} else {
		fmt.Fprintf(a.out, "-- %s left --\n", name)
	}
}
