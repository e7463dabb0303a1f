package interceptor

import (
	"testing"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

func TestNackGeneratorDetectsGap(t *testing.T) {
	reg := NewRegistry().Use(NewNackGeneratorFactory())
	chain := reg.Build()

	ssrc := rtcbase.SSRC(42)
	chain.BindRemoteStream(streamWithNack(ssrc))

	start := time.Unix(0, 0)
	for _, seq := range []uint16{1, 2, 4} {
		require.NoError(t, chain.HandleRead(RtpPacket(ssrc, &rtp.Packet{Header: rtp.Header{SequenceNumber: seq}})))
	}

	// Генератор только наблюдает: входящие RTP проходят по цепочке без
	// изменений и в исходном порядке, ничего лишнего к чтению не появляется.
	for _, want := range []uint16{1, 2, 4} {
		in, ok := chain.PollRead()
		require.True(t, ok)
		assert.Equal(t, want, in.Rtp.SequenceNumber)
	}
	_, ok := chain.PollRead()
	assert.False(t, ok)

	chain.HandleTimeout(start.Add(25 * time.Millisecond))

	out, ok := chain.PollWrite()
	require.True(t, ok)
	require.Equal(t, PacketRtcp, out.Kind)
	require.Len(t, out.Rtcp, 1)
	nack, ok := out.Rtcp[0].(*rtcp.TransportLayerNack)
	require.True(t, ok)
	assert.Equal(t, uint32(ssrc), nack.MediaSSRC)

	var missing []uint16
	for _, pair := range nack.Nacks {
		missing = append(missing, pair.PacketList()...)
	}
	assert.Equal(t, []uint16{3}, missing)
}

func TestNackGeneratorIgnoresUnboundStream(t *testing.T) {
	chain := NewRegistry().Use(NewNackGeneratorFactory()).Build()
	ssrc := rtcbase.SSRC(9)
	// Не привязан — наблюдение не включается, ничего не генерируется.
	require.NoError(t, chain.HandleRead(RtpPacket(ssrc, &rtp.Packet{Header: rtp.Header{SequenceNumber: 1}})))
	require.NoError(t, chain.HandleRead(RtpPacket(ssrc, &rtp.Packet{Header: rtp.Header{SequenceNumber: 5}})))
	chain.HandleTimeout(time.Unix(0, 0).Add(time.Second))
	_, ok := chain.PollWrite()
	assert.False(t, ok)
}
