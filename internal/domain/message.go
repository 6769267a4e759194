package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Sender classifies who produced a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderBot    Sender = "bot"
	SenderSystem Sender = "system"
)

// Origin records how a message entered the local log. It decides whether
// the entry counts toward the unread badge and whether it may later be
// replaced by a server echo.
type Origin string

const (
	// OriginOptimistic marks a locally produced message shown before the
	// server has acknowledged it.
	OriginOptimistic Origin = "local-optimistic"
	// OriginConfirmed marks a message pushed live by the server.
	OriginConfirmed Origin = "server-confirmed"
	// OriginHistory marks a message delivered as part of a history batch.
	OriginHistory Origin = "server-history"
)

// MaxMessageLen is the maximum message length in runes, enforced before
// any network interaction.
const MaxMessageLen = 500

var (
	// ErrEmptyMessage is returned when a submitted message is empty after trimming.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrMessageTooLong is returned when a submitted message exceeds MaxMessageLen runes.
	ErrMessageTooLong = errors.New("message exceeds maximum length")
)

// Message is one entry in a conversation. Text is always plain text:
// no consumer may interpret it as markup.
type Message struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	Sender        Sender    `json:"sender"`
	CreatedAt     time.Time `json:"createdAt"`
	Origin        Origin    `json:"origin"`
	CorrelationID string    `json:"correlationId,omitempty"`
}

// ValidateText checks a candidate outbound message body against the
// client-side input rules. The returned string is the trimmed text.
func ValidateText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(trimmed) > MaxMessageLen {
		return "", ErrMessageTooLong
	}
	return trimmed, nil
}
