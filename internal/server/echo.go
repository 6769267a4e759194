package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/supportwire/internal/domain"
	"github.com/soyeahso/supportwire/internal/hooks"
	"github.com/soyeahso/supportwire/internal/wire"
)

const (
	echoTypingDelay = 300 * time.Millisecond
	echoReplyDelay  = 900 * time.Millisecond
)

// echoReply emulates an agent answering: a typing signal, a pause, then a
// bot message echoing the user's text. Only active with server.echo set;
// it exists so the widget can be exercised end to end without a human
// support agent on the other side.
func (s *Server) echoReply(conversation, text string) {
	time.Sleep(echoTypingDelay)
	s.rooms.Broadcast(conversation, wire.EventTyping, nil)

	time.Sleep(echoReplyDelay)
	s.rooms.Broadcast(conversation, wire.EventStopTyping, nil)

	stored := s.store.Append(conversation, domain.Message{
		ID:        uuid.New().String(),
		Text:      fmt.Sprintf("You said: %s", text),
		Sender:    domain.SenderBot,
		CreatedAt: time.Now().UTC(),
	})

	s.rooms.Broadcast(conversation, wire.EventMessage, wire.FromMessage(stored))

	if s.hooks != nil {
		s.hooks.EmitAsync(context.Background(), hooks.EventMessageStored, map[string]any{
			"conversation": conversation,
			"messageId":    stored.ID,
			"sender":       string(stored.Sender),
		})
	}
}
