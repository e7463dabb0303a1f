package rtcbase

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineErrorIsByCategory(t *testing.T) {
	a := NewEngineError(ErrInvalidState, "signaling", "cannot set local answer in stable")
	b := NewEngineError(ErrInvalidState, "ice", "unrelated message")

	assert.True(t, errors.Is(a, b), "две ошибки одной категории должны совпадать через errors.Is")

	c := NewEngineError(ErrSecurity, "dtls", "fingerprint mismatch")
	assert.False(t, errors.Is(a, c))
}

func TestWrapEngineErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	wrapped := WrapEngineError(ErrProtocolParse, "sctp", "bad chunk", cause)

	require.ErrorIs(t, wrapped, cause)
	assert.Equal(t, ErrProtocolParse, CategoryOf(wrapped))
}

func TestCategoryOfPlainError(t *testing.T) {
	assert.Equal(t, ErrInternal, CategoryOf(fmt.Errorf("not an engine error")))
}

func TestDirectionCapabilities(t *testing.T) {
	assert.True(t, DirectionSendRecv.CanSend())
	assert.True(t, DirectionSendRecv.CanReceive())
	assert.True(t, DirectionSendOnly.CanSend())
	assert.False(t, DirectionSendOnly.CanReceive())
	assert.False(t, DirectionInactive.CanSend())
	assert.False(t, DirectionInactive.CanReceive())
}
