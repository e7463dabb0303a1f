package mdns

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLocalNameLooksLikeUUIDDotLocal(t *testing.T) {
	name, err := GenerateLocalName()
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\.local$`, name)
}

func TestHandlerAnswersBoundName(t *testing.T) {
	h := NewHandler()
	h.BindLocalName("abc.local", net.IPv4(10, 0, 0, 5))

	query := h.buildQuery("abc.local")
	require.NoError(t, h.HandleRead(query))

	out, ok := h.PollWrite()
	require.True(t, ok)
	assert.Equal(t, MsgRaw, out.Kind)
	assert.NotEmpty(t, out.Raw)
}

func TestHandlerResolvesPendingQuery(t *testing.T) {
	h := NewHandler()
	responder := NewHandler()
	responder.BindLocalName("remote.local", net.IPv4(192, 168, 1, 7))

	h.Query("remote.local")
	queryMsg, ok := h.PollWrite()
	require.True(t, ok)

	require.NoError(t, responder.HandleRead(queryMsg))
	answerMsg, ok := responder.PollWrite()
	require.True(t, ok)

	require.NoError(t, h.HandleRead(answerMsg))
	resolved, ok := h.PollRead()
	require.True(t, ok)
	assert.Equal(t, MsgResolved, resolved.Kind)
	assert.Equal(t, "remote.local", resolved.ResolvedName)
	assert.True(t, net.IPv4(192, 168, 1, 7).Equal(resolved.ResolvedAddr))
}

func TestHandlerTimesOutAfterMaxRetries(t *testing.T) {
	h := NewHandler()
	h.Query("nobody.local")
	_, _ = h.PollWrite() // первая попытка, отправленная сразу в Query

	now := time.Now()
	for i := 0; i < queryMaxRetries; i++ {
		h.HandleTimeout(now)
		now = now.Add(queryInterval)
	}
	h.HandleTimeout(now)

	evt, ok := h.PollEvent()
	require.True(t, ok)
	assert.Equal(t, EventQueryTimedOut, evt.Kind)
	assert.Equal(t, "nobody.local", evt.Name)
}
