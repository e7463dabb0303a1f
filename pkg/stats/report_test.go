package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

func TestSnapshotReflectsOutboundRtpAfterOnePacket(t *testing.T) {
	a := NewAccumulator()
	a.BindSender("sender-0", rtcbase.SSRC(0x11223344), "0")
	a.RecordRtpSent(rtcbase.SSRC(0x11223344), 4)

	now := time.Unix(0, 0)
	report := a.Snapshot(now, Selector{Kind: SelectorNone})

	require.Len(t, report.Outbound, 1)
	assert.Equal(t, uint64(1), report.Outbound[0].PacketsSent)
	assert.Equal(t, uint64(4), report.Outbound[0].BytesSent)
	assert.Equal(t, rtcbase.SSRC(0x11223344), report.Outbound[0].SSRC)
}

func TestSnapshotIsInvariantAcrossRepeatedCallsAtSameInstant(t *testing.T) {
	a := NewAccumulator()
	a.BindSender("sender-0", rtcbase.SSRC(1), "0")
	a.BindReceiver("receiver-0", rtcbase.SSRC(2), "1")
	a.RecordRtpSent(rtcbase.SSRC(1), 100)
	a.RecordRtpReceived(rtcbase.SSRC(2), 200)
	a.RecordCandidatePair("pair-0", "transport-0", "succeeded", true)
	a.SetTransportState("transport-0", "connected", "pair-0")

	now := time.Unix(10, 0)
	first := a.Snapshot(now, Selector{Kind: SelectorNone})
	second := a.Snapshot(now, Selector{Kind: SelectorNone})

	assert.Equal(t, first, second)
}

func TestSnapshotSenderSelectorFiltersToThatStream(t *testing.T) {
	a := NewAccumulator()
	a.BindSender("sender-0", rtcbase.SSRC(1), "0")
	a.BindSender("sender-1", rtcbase.SSRC(2), "1")
	a.RecordRtpSent(rtcbase.SSRC(1), 10)
	a.RecordRtpSent(rtcbase.SSRC(2), 20)

	report := a.Snapshot(time.Unix(0, 0), Selector{Kind: SelectorSender, ID: "sender-0"})
	require.Len(t, report.Outbound, 1)
	assert.Equal(t, "sender-0", report.Outbound[0].ID)
	assert.Empty(t, report.Inbound)
}

func TestSnapshotUnknownSelectorIDReturnsEmptyReport(t *testing.T) {
	a := NewAccumulator()
	report := a.Snapshot(time.Unix(0, 0), Selector{Kind: SelectorSender, ID: "does-not-exist"})
	assert.Empty(t, report.Outbound)
	assert.Empty(t, report.CandidatePairs)
}

func TestRecordPacketDiscardedIsVisibleOnlyThroughStats(t *testing.T) {
	a := NewAccumulator()
	a.BindReceiver("receiver-0", rtcbase.SSRC(9), "0")
	a.RecordPacketDiscarded(rtcbase.SSRC(9))
	a.RecordPacketDiscarded(rtcbase.SSRC(9))

	report := a.Snapshot(time.Unix(0, 0), Selector{Kind: SelectorNone})
	require.Len(t, report.Inbound, 1)
	assert.Equal(t, uint64(2), report.Inbound[0].PacketsDiscarded)
}
