package interceptor

import (
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

// TestNoopPassthrough покрывает свойство 8: на цепочке, состоящей только из
// Noop, handle_read(x) затем poll_read() должны вернуть x один раз, затем
// None, и ничего больше не произойти.
func TestNoopPassthrough(t *testing.T) {
	n := NewNoop()
	p := RtpPacket(1, &rtp.Packet{Header: rtp.Header{SequenceNumber: 7}})

	assert.NoError(t, n.HandleRead(p))

	out, ok := n.PollRead()
	assert.True(t, ok)
	assert.Equal(t, uint16(7), out.Rtp.SequenceNumber)

	_, ok = n.PollRead()
	assert.False(t, ok)
}

func TestRegistryBuildsEmptyAsNoop(t *testing.T) {
	reg := NewRegistry()
	chain := reg.Build()

	p := RtpPacket(1, &rtp.Packet{Header: rtp.Header{SequenceNumber: 3}})
	assert.NoError(t, chain.HandleRead(p))
	out, ok := chain.PollRead()
	assert.True(t, ok)
	assert.Equal(t, uint16(3), out.Rtp.SequenceNumber)
}

func streamWithNack(ssrc rtcbase.SSRC) rtcbase.StreamInfo {
	return rtcbase.StreamInfo{
		SSRC:         ssrc,
		RTCPFeedback: []rtcbase.RTCPFeedback{{Type: "nack", Parameter: ""}},
	}
}
