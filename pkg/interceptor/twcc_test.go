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

func twccStream(ssrc rtcbase.SSRC) rtcbase.StreamInfo {
	return rtcbase.StreamInfo{
		SSRC: ssrc,
		HeaderExtensions: []rtcbase.RTPHeaderExtension{
			{URI: rtcbase.ExtensionURITransportWideCC, ID: 5},
		},
	}
}

// TestTwccSenderMonotonic покрывает свойство 7: транспортный счётчик
// TWCC строго возрастает по пакетам независимо от их потока (SSRC).
func TestTwccSenderMonotonic(t *testing.T) {
	chain := NewRegistry().Use(NewTwccSenderFactory()).Build()
	ssrcA, ssrcB := rtcbase.SSRC(1), rtcbase.SSRC(2)
	chain.BindLocalStream(twccStream(ssrcA))
	chain.BindLocalStream(twccStream(ssrcB))

	var seqs []uint16
	for i, ssrc := range []rtcbase.SSRC{ssrcA, ssrcB, ssrcA} {
		p := &rtp.Packet{Header: rtp.Header{SequenceNumber: uint16(i)}}
		require.NoError(t, chain.HandleWrite(RtpPacket(ssrc, p)))
		ext := p.GetExtension(5)
		require.Len(t, ext, 2)
		seqs = append(seqs, uint16(ext[0])<<8|uint16(ext[1]))
	}

	assert.Equal(t, []uint16{0, 1, 2}, seqs)
}

func TestTwccReceiverBuildsFeedback(t *testing.T) {
	chain := NewRegistry().Use(NewTwccReceiverFactory()).Build()
	local := rtcbase.SSRC(77)
	remote := rtcbase.SSRC(88)
	chain.BindLocalStream(rtcbase.StreamInfo{SSRC: local})
	chain.BindRemoteStream(twccStream(remote))

	base := time.Unix(100, 0)
	for i, twccSeq := range []uint16{0, 1, 3} {
		ext := []byte{byte(twccSeq >> 8), byte(twccSeq)}
		p := &rtp.Packet{Header: rtp.Header{SequenceNumber: uint16(i)}}
		require.NoError(t, p.SetExtension(5, ext))
		pkt := RtpPacket(remote, p)
		pkt.Timestamp = base.Add(time.Duration(i) * 10 * time.Millisecond)
		require.NoError(t, chain.HandleRead(pkt))
	}

	chain.HandleTimeout(base.Add(200 * time.Millisecond))

	out, ok := chain.PollWrite()
	require.True(t, ok)
	tcc, ok := out.Rtcp[0].(*rtcp.TransportLayerCC)
	require.True(t, ok)
	assert.Equal(t, uint16(0), tcc.BaseSequenceNumber)
	assert.Equal(t, uint16(4), tcc.PacketStatusCount) // seqs 0..3, 2 отсутствует
}
