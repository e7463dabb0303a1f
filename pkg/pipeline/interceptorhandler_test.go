package pipeline

import (
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/rtcengine/pkg/interceptor"
	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

func TestInterceptorHandlerPassesRtpThroughNoopChain(t *testing.T) {
	h := NewInterceptorHandler(interceptor.NewNoop())
	pkt := &rtp.Packet{Header: rtp.Header{SequenceNumber: 5, SSRC: 7}, Payload: []byte("x")}

	require.NoError(t, h.HandleWrite(PipelineMessage{Kind: MsgRtpPacket, RtpPacket: pkt, TrackSSRC: 7}))
	out, ok := h.PollWrite()
	require.True(t, ok)
	assert.Equal(t, MsgRtpPacket, out.Kind)
	assert.Equal(t, pkt, out.RtpPacket)

	require.NoError(t, h.HandleRead(PipelineMessage{Kind: MsgRtpPacket, RtpPacket: pkt, TrackSSRC: 7}))
	in, ok := h.PollRead()
	require.True(t, ok)
	assert.Equal(t, MsgRtpPacket, in.Kind)
	assert.Equal(t, pkt, in.RtpPacket)
}

func TestInterceptorHandlerPassesNonMediaMessagesUnmodified(t *testing.T) {
	h := NewInterceptorHandler(interceptor.NewNoop())
	msg := PipelineMessage{Kind: MsgDataChannelData, DataChannelPayload: []byte("hi")}

	require.NoError(t, h.HandleRead(msg))
	out, ok := h.PollRead()
	require.True(t, ok)
	assert.Equal(t, msg, out)
}

func TestInterceptorHandlerForwardsOnTrackAsStreamAdded(t *testing.T) {
	chain := interceptor.NewNoop()
	h := NewInterceptorHandler(chain)
	require.NoError(t, h.HandleEvent(Event{Kind: EventOnTrack, TrackSSRC: rtcbase.SSRC(99), Mid: "0"}))

	evt, ok := chain.PollEvent()
	require.True(t, ok)
	assert.Equal(t, interceptor.EventStreamAdded, evt.Kind)
	assert.Equal(t, rtcbase.SSRC(99), evt.SSRC)
}

func TestInterceptorHandlerHandleTimeoutDrainsChainOutput(t *testing.T) {
	h := NewInterceptorHandler(interceptor.NewNoop())
	h.HandleTimeout(time.Unix(0, 0))
	_, ok := h.PollWrite()
	assert.False(t, ok)
}

func TestInterceptorHandlerCloseStopsFurtherOutput(t *testing.T) {
	h := NewInterceptorHandler(interceptor.NewNoop())
	require.NoError(t, h.Close())

	pkt := &rtp.Packet{Header: rtp.Header{SequenceNumber: 1}}
	require.NoError(t, h.HandleWrite(PipelineMessage{Kind: MsgRtpPacket, RtpPacket: pkt}))
	_, ok := h.PollWrite()
	assert.False(t, ok)
}
