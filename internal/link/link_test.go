package link

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soyeahso/supportwire/internal/config"
	"github.com/soyeahso/supportwire/internal/domain"
	"github.com/soyeahso/supportwire/internal/logging"
	"github.com/soyeahso/supportwire/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsServer is a minimal WebSocket endpoint that records received frames
// and can push frames or drop connections on demand.
type wsServer struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	received []wire.Frame
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{t: t}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		for {
			var f wire.Frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			s.mu.Lock()
			s.received = append(s.received, f)
			s.mu.Unlock()
		}
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func (s *wsServer) frames() []wire.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wire.Frame, len(s.received))
	copy(out, s.received)
	return out
}

func (s *wsServer) push(f wire.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		s.t.Fatal("no connection to push to")
	}
	return s.conns[len(s.conns)-1].WriteJSON(f)
}

func (s *wsServer) dropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

func (s *wsServer) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// stateRecorder collects connection-state callbacks.
type stateRecorder struct {
	mu     sync.Mutex
	states []domain.ConnState
}

func (r *stateRecorder) record(s domain.ConnState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) snapshot() []domain.ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ConnState, len(r.states))
	copy(out, r.states)
	return out
}

func (r *stateRecorder) last() domain.ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return ""
	}
	return r.states[len(r.states)-1]
}

func testConfig(url string) config.ClientConfig {
	return config.ClientConfig{
		URL: url,
		Reconnect: config.Reconnect{
			BaseDelay: 20 * time.Millisecond,
			MaxDelay:  100 * time.Millisecond,
			Jitter:    0,
		},
		SendQueue:   8,
		DialTimeout: 2 * time.Second,
	}
}

func newTestLink(t *testing.T, url string) (*Link, *stateRecorder) {
	t.Helper()
	l := New(testConfig(url), logging.New(nil, "silent"))
	rec := &stateRecorder{}
	l.OnState(rec.record)
	t.Cleanup(func() { l.Close() })
	return l, rec
}

func waitForState(t *testing.T, rec *stateRecorder, want domain.ConnState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return rec.last() == want
	}, 5*time.Second, 10*time.Millisecond, "waiting for state %s", want)
}

func TestConnect_ReachesConnected(t *testing.T) {
	srv := newWSServer(t)
	l, rec := newTestLink(t, srv.url())

	require.NoError(t, l.Connect())
	waitForState(t, rec, domain.StateConnected)

	states := rec.snapshot()
	assert.Equal(t, domain.StateConnecting, states[0])
	assert.Equal(t, domain.StateConnected, states[len(states)-1])
}

func TestConnect_Idempotent(t *testing.T) {
	srv := newWSServer(t)
	l, rec := newTestLink(t, srv.url())

	require.NoError(t, l.Connect())
	require.NoError(t, l.Connect())
	require.NoError(t, l.Connect())
	waitForState(t, rec, domain.StateConnected)

	// One attempt, one connection.
	assert.Equal(t, 1, srv.connCount())

	var connecting int
	for _, s := range rec.snapshot() {
		if s == domain.StateConnecting {
			connecting++
		}
	}
	assert.Equal(t, 1, connecting)
}

func TestSend_DeliversWhenConnected(t *testing.T) {
	srv := newWSServer(t)
	l, rec := newTestLink(t, srv.url())

	require.NoError(t, l.Connect())
	waitForState(t, rec, domain.StateConnected)

	require.NoError(t, l.Send(wire.EventSendMessage, wire.SendMessage{Text: "hi", CorrelationID: "c1"}))

	require.Eventually(t, func() bool {
		return len(srv.frames()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	f := srv.frames()[0]
	assert.Equal(t, wire.EventSendMessage, f.Event)
	var p wire.SendMessage
	require.NoError(t, f.Decode(&p))
	assert.Equal(t, "hi", p.Text)
}

func TestSend_QueuesWhileOffline(t *testing.T) {
	l, _ := newTestLink(t, "ws://127.0.0.1:1/ws")

	require.NoError(t, l.Send(wire.EventSendMessage, wire.SendMessage{Text: "queued"}))
	assert.Equal(t, 1, l.QueuedFrames())
}

func TestSend_QueueOverflow(t *testing.T) {
	l, _ := newTestLink(t, "ws://127.0.0.1:1/ws")

	for i := 0; i < 8; i++ {
		require.NoError(t, l.Send(wire.EventSendMessage, wire.SendMessage{Text: "x"}))
	}
	err := l.Send(wire.EventSendMessage, wire.SendMessage{Text: "one too many"})
	assert.ErrorIs(t, err, ErrLinkUnavailable)
}

func TestSend_QueueFlushedInOrderAfterHandshake(t *testing.T) {
	srv := newWSServer(t)
	l, rec := newTestLink(t, srv.url())

	// Queue before any connection exists.
	require.NoError(t, l.Send(wire.EventSendMessage, wire.SendMessage{Text: "first", CorrelationID: "c1"}))
	require.NoError(t, l.Send(wire.EventSendMessage, wire.SendMessage{Text: "second", CorrelationID: "c2"}))

	require.NoError(t, l.Connect())
	waitForState(t, rec, domain.StateConnected)

	// Queued frames are held until the consumer has run its handshake.
	require.NoError(t, l.Send(wire.EventAnnounceIdentity, wire.AnnounceIdentity{VisitorID: "v1"}))
	assert.Equal(t, 2, l.QueuedFrames())
	l.Flush()

	require.Eventually(t, func() bool {
		return len(srv.frames()) == 3
	}, 5*time.Second, 10*time.Millisecond)

	frames := srv.frames()
	assert.Equal(t, wire.EventAnnounceIdentity, frames[0].Event)
	var p1, p2 wire.SendMessage
	require.NoError(t, frames[1].Decode(&p1))
	require.NoError(t, frames[2].Decode(&p2))
	assert.Equal(t, "first", p1.Text)
	assert.Equal(t, "second", p2.Text)
	assert.Equal(t, 0, l.QueuedFrames())
}

func TestFlush_NoopWhileOffline(t *testing.T) {
	l, _ := newTestLink(t, "ws://127.0.0.1:1/ws")

	require.NoError(t, l.Send(wire.EventSendMessage, wire.SendMessage{Text: "held"}))
	l.Flush()
	assert.Equal(t, 1, l.QueuedFrames())
}

func TestReceive_StateDeliveredBeforeFrames(t *testing.T) {
	srv := newWSServer(t)
	l := New(testConfig(srv.url()), logging.New(nil, "silent"))
	t.Cleanup(func() { l.Close() })

	var mu sync.Mutex
	var order []string
	l.OnState(func(s domain.ConnState) {
		mu.Lock()
		order = append(order, "state:"+string(s))
		mu.Unlock()
	})
	l.OnFrame(func(f wire.Frame) {
		mu.Lock()
		order = append(order, "frame:"+f.Event)
		mu.Unlock()
	})

	require.NoError(t, l.Connect())
	require.Eventually(t, func() bool {
		return l.State() == domain.StateConnected && srv.connCount() == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, srv.push(wire.Frame{Event: wire.EventTyping}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) >= 3
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"state:connecting", "state:connected", "frame:typing"}, order[:3])
}

func TestReconnect_AfterServerDrop(t *testing.T) {
	srv := newWSServer(t)
	l, rec := newTestLink(t, srv.url())

	require.NoError(t, l.Connect())
	waitForState(t, rec, domain.StateConnected)

	srv.dropAll()
	waitForState(t, rec, domain.StateReconnecting)
	waitForState(t, rec, domain.StateConnected)

	assert.Equal(t, 1, srv.connCount())
}

func TestReconnect_InitialDialFailureRetries(t *testing.T) {
	// Reserve a URL, but start the server only after the first failures.
	l, rec := newTestLink(t, "ws://127.0.0.1:1/ws")

	require.NoError(t, l.Connect())
	waitForState(t, rec, domain.StateReconnecting)
	assert.Equal(t, domain.StateReconnecting, l.State())
}

func TestClose_StopsEverything(t *testing.T) {
	srv := newWSServer(t)
	l, rec := newTestLink(t, srv.url())

	require.NoError(t, l.Connect())
	waitForState(t, rec, domain.StateConnected)

	require.NoError(t, l.Close())
	assert.ErrorIs(t, l.Send(wire.EventTypingStart, nil), ErrLinkClosed)
	assert.ErrorIs(t, l.Connect(), ErrLinkClosed)
	assert.Equal(t, domain.StateDisconnected, l.State())
}

func TestBackoff_DoublesAndCaps(t *testing.T) {
	l := New(config.ClientConfig{
		Reconnect: config.Reconnect{
			BaseDelay: 500 * time.Millisecond,
			MaxDelay:  30 * time.Second,
			Jitter:    0,
		},
	}, logging.New(nil, "silent"))

	l.mu.Lock()
	defer l.mu.Unlock()

	want := []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, expected := range want {
		l.attempts = i + 1
		assert.Equal(t, expected, l.nextDelayLocked(), "attempt %d", i+1)
	}
}

func TestBackoff_JitterStaysWithinSpread(t *testing.T) {
	l := New(config.ClientConfig{
		Reconnect: config.Reconnect{
			BaseDelay: time.Second,
			MaxDelay:  time.Second,
			Jitter:    0.25,
		},
	}, logging.New(nil, "silent"))

	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = 1

	for i := 0; i < 100; i++ {
		d := l.nextDelayLocked()
		assert.GreaterOrEqual(t, d, 750*time.Millisecond)
		assert.LessOrEqual(t, d, 1250*time.Millisecond)
	}
}
