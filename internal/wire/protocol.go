// Package wire defines the WebSocket protocol between the support widget
// and the support server. All traffic is event frames; there is no
// request/response correlation at the transport level. Message echoes are
// correlated by the correlation ID carried on send-message.
package wire

import (
	"encoding/json"
	"time"

	"github.com/soyeahso/supportwire/internal/domain"
)

// Client → server events.
const (
	EventAnnounceIdentity = "announce-identity"
	EventRequestHistory   = "request-history"
	EventSendMessage      = "send-message"
	EventTypingStart      = "typing-start"
	EventTypingStop       = "typing-stop"
)

// Server → client events.
const (
	EventHistoryBatch = "history-batch"
	EventMessage      = "message"
	EventTyping       = "typing"
	EventStopTyping   = "stop-typing"
	EventAuthRequired = "authentication-required"
	EventPeerJoined   = "peer-joined"
	EventPeerLeft     = "peer-left"
)

// Frame is the envelope for every event in either direction.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Seq     int64           `json:"seq,omitempty"`
}

// NewFrame creates an event frame with a marshaled payload.
func NewFrame(event string, payload any) (Frame, error) {
	if payload == nil {
		return Frame{Event: event}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Payload: raw}, nil
}

// Decode unmarshals the frame payload into target. A frame without a
// payload leaves target untouched.
func (f Frame) Decode(target any) error {
	if f.Payload == nil {
		return nil
	}
	return json.Unmarshal(f.Payload, target)
}

// AnnounceIdentity binds an identity to the connection. Sent after every
// connect, and again whenever the identity is replaced. Idempotent on the
// server side.
type AnnounceIdentity struct {
	VisitorID   string `json:"visitorId"`
	Token       string `json:"token,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Contact     string `json:"contact,omitempty"`
}

// RequestHistory asks the server to re-deliver the canonical history for
// the announced identity. Idempotent; may be issued after every reconnect.
type RequestHistory struct {
	Limit int `json:"limit,omitempty"`
}

// SendMessage carries one outbound user message. The correlation ID links
// the optimistic local entry to the eventual server echo.
type SendMessage struct {
	Text            string    `json:"text"`
	CorrelationID   string    `json:"correlationId"`
	ClientTimestamp time.Time `json:"clientTimestamp"`
}

// MessagePayload is a server-canonical message, pushed live or inside a
// history batch.
type MessagePayload struct {
	ID            string        `json:"id"`
	Text          string        `json:"text"`
	Sender        domain.Sender `json:"sender"`
	CreatedAt     time.Time     `json:"createdAt"`
	CorrelationID string        `json:"correlationId,omitempty"`
}

// HistoryBatch is the canonical ordered history for a conversation.
type HistoryBatch struct {
	Messages []MessagePayload `json:"messages"`
}

// Peer announces a participant joining or leaving the conversation.
type Peer struct {
	Name string `json:"name"`
}

// AuthRequired tells the client the channel requires login before any
// further send is accepted.
type AuthRequired struct {
	Reason string `json:"reason,omitempty"`
}

// Message converts a wire payload into a domain message with the given origin.
func (p MessagePayload) Message(origin domain.Origin) domain.Message {
	return domain.Message{
		ID:            p.ID,
		Text:          p.Text,
		Sender:        p.Sender,
		CreatedAt:     p.CreatedAt,
		Origin:        origin,
		CorrelationID: p.CorrelationID,
	}
}

// FromMessage converts a domain message into its wire form.
func FromMessage(m domain.Message) MessagePayload {
	return MessagePayload{
		ID:            m.ID,
		Text:          m.Text,
		Sender:        m.Sender,
		CreatedAt:     m.CreatedAt,
		CorrelationID: m.CorrelationID,
	}
}
