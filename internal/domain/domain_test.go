package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateText_TrimsWhitespace(t *testing.T) {
	text, err := ValidateText("  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestValidateText_EmptyRejected(t *testing.T) {
	_, err := ValidateText("")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = ValidateText("   \n\t ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestValidateText_LengthLimitInRunes(t *testing.T) {
	_, err := ValidateText(strings.Repeat("a", MaxMessageLen))
	assert.NoError(t, err)

	_, err = ValidateText(strings.Repeat("a", MaxMessageLen+1))
	assert.ErrorIs(t, err, ErrMessageTooLong)

	// Multi-byte characters count as single runes.
	_, err = ValidateText(strings.Repeat("é", MaxMessageLen))
	assert.NoError(t, err)
}

func TestIdentity_CacheKey(t *testing.T) {
	anon := Anonymous("v-123")
	assert.Equal(t, "visitor:v-123", anon.CacheKey())
	assert.False(t, anon.Authenticated)

	authed := AuthenticatedIdentity("v-123", "tok-9", "Ada", "ada@example.com")
	assert.Equal(t, "user:tok-9", authed.CacheKey())
	assert.True(t, authed.Authenticated)
	assert.Equal(t, "v-123", authed.VisitorID)
}

func TestConnState_Values(t *testing.T) {
	assert.Equal(t, "disconnected", string(StateDisconnected))
	assert.Equal(t, "connecting", string(StateConnecting))
	assert.Equal(t, "connected", string(StateConnected))
	assert.Equal(t, "reconnecting", string(StateReconnecting))
}
