package pipeline

import (
	"testing"

	"github.com/pion/datachannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

func TestDataChannelOpenAckHandshake(t *testing.T) {
	opener := NewDataChannel()
	acceptor := NewDataChannel()

	id := rtcbase.DataChannelId(0)
	opener.OpenChannel(id, "chat", datachannel.ChannelTypeReliable, 0)
	assert.Equal(t, rtcbase.DataChannelConnecting, opener.channels[id].state)

	openMsg, ok := opener.PollWrite()
	require.True(t, ok)
	require.Equal(t, MsgDataChannelCtrl, openMsg.Kind)

	require.NoError(t, acceptor.HandleRead(openMsg))
	assert.Equal(t, rtcbase.DataChannelOpen, acceptor.channels[id].state)
	assert.Equal(t, "chat", acceptor.channels[id].label)

	evt, ok := acceptor.PollEvent()
	require.True(t, ok)
	assert.Equal(t, EventDataChannelOpen, evt.Kind)
	assert.Equal(t, "chat", evt.DataChannelLabel)

	ackMsg, ok := acceptor.PollWrite()
	require.True(t, ok)
	require.Equal(t, MsgDataChannelCtrl, ackMsg.Kind)

	require.NoError(t, opener.HandleRead(ackMsg))
	assert.Equal(t, rtcbase.DataChannelOpen, opener.channels[id].state)

	evt, ok = opener.PollEvent()
	require.True(t, ok)
	assert.Equal(t, EventDataChannelOpen, evt.Kind)
	assert.Equal(t, "chat", evt.DataChannelLabel)
}

func TestDataChannelDataPassesThroughUnmodified(t *testing.T) {
	dc := NewDataChannel()
	msg := PipelineMessage{Kind: MsgDataChannelData, DataChannelID: 4, DataChannelPayload: []byte("payload")}

	require.NoError(t, dc.HandleRead(msg))
	out, ok := dc.PollRead()
	require.True(t, ok)
	assert.Equal(t, msg, out)
}

func TestDataChannelCloseChannelEmitsEventAndForgetsChannel(t *testing.T) {
	dc := NewDataChannel()
	id := rtcbase.DataChannelId(1)
	dc.OpenChannel(id, "label", datachannel.ChannelTypeReliable, 0)
	_, _ = dc.PollWrite()

	dc.CloseChannel(id)
	evt, ok := dc.PollEvent()
	require.True(t, ok)
	assert.Equal(t, EventDataChannelClose, evt.Kind)
	assert.Equal(t, id, evt.DataChannelID)

	_, exists := dc.channels[id]
	assert.False(t, exists)
}

func TestDataChannelCloseProducesNoFurtherOutput(t *testing.T) {
	dc := NewDataChannel()
	dc.OpenChannel(0, "a", datachannel.ChannelTypeReliable, 0)
	dc.OpenChannel(2, "b", datachannel.ChannelTypeReliable, 0)
	_, _ = dc.PollWrite()
	_, _ = dc.PollWrite()

	require.NoError(t, dc.Close())

	_, ok := dc.PollEvent()
	assert.False(t, ok, "Close is infallible and idempotent: it must not enqueue new output")

	require.NoError(t, dc.HandleRead(PipelineMessage{Kind: MsgDataChannelData, DataChannelID: 0, DataChannelPayload: []byte("x")}))
	_, ok = dc.PollRead()
	assert.False(t, ok)
}
