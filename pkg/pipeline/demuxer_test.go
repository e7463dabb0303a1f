package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

// TestClassifyTotality покрывает свойство 2 спецификации: для каждого
// байта {0..255} классификация — ровно один из четырёх исходов RFC 7983.
func TestClassifyTotality(t *testing.T) {
	for b := 0; b <= 255; b++ {
		got := Classify(byte(b))
		switch {
		case b <= 3:
			assert.Equal(t, ClassStun, got, "byte %d", b)
		case b >= 20 && b <= 63:
			assert.Equal(t, ClassDtls, got, "byte %d", b)
		case b >= 64 && b <= 79:
			assert.Equal(t, ClassDrop, got, "byte %d", b)
		case b >= 128 && b <= 191:
			assert.Equal(t, ClassRtpRtcp, got, "byte %d", b)
		default:
			assert.Equal(t, ClassDrop, got, "byte %d", b)
		}
	}
}

func TestDemuxerClassifiesRtp(t *testing.T) {
	d := NewDemuxer()
	transport := rtcbase.TransportContext{}
	// 0x80 = version 2, padding/ext off; second byte 0x60 -> PT=96, RTP.
	raw := []byte{0x80, 0x60, 0x00, 0x01, 0, 0, 0, 0, 0, 0, 0, 0}

	err := d.HandleRead(RawMessage(transport, raw))
	assert.NoError(t, err)

	out, ok := d.PollRead()
	assert.True(t, ok)
	assert.Equal(t, MsgRtpRaw, out.Kind)

	_, ok = d.PollRead()
	assert.False(t, ok)
}

func TestDemuxerClassifiesRtcp(t *testing.T) {
	d := NewDemuxer()
	// PT=200 (SR) within RTCP reserved range 64-95 after masking 0x7f -> 72.
	raw := []byte{0x80, 0xC8, 0x00, 0x06, 0, 0, 0, 0}
	err := d.HandleRead(RawMessage(rtcbase.TransportContext{}, raw))
	assert.NoError(t, err)

	out, ok := d.PollRead()
	assert.True(t, ok)
	assert.Equal(t, MsgRtcpRaw, out.Kind)
}

func TestDemuxerDropsReserved(t *testing.T) {
	d := NewDemuxer()
	raw := []byte{70, 0, 0, 0}
	err := d.HandleRead(RawMessage(rtcbase.TransportContext{}, raw))
	assert.NoError(t, err)
	_, ok := d.PollRead()
	assert.False(t, ok, "reserved range must be dropped silently")
}
