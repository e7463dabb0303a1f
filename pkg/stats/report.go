package stats

import (
	"fmt"
	"sort"
	"time"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

// Snapshot builds a Report as of now. With Selector{Kind: SelectorNone}
// every entry is included; Sender(id)/Receiver(id) keep only that
// stream's primary entry (a sender also keeps its remote-inbound entry),
// while the candidate-pair, transport, codec, and certificate entries are
// added in full (see fillReferenced) rather than narrowed to the ones the
// stream references. Data channel entries appear only with SelectorNone.
//
// Every slice is built by iterating a map in a fixed sorted order, so
// two calls with the same now and no intervening mutation are
// structurally equal (spec property: stats snapshot invariance).
func (a *Accumulator) Snapshot(now time.Time, sel Selector) Report {
	report := Report{Timestamp: now}

	switch sel.Kind {
	case SelectorSender:
		ssrc, ok := a.senderToSSRC[sel.ID]
		if !ok {
			return report
		}
		a.fillOutbound(&report, ssrc)
		a.fillRemoteInbound(&report, ssrc)
		a.fillReferenced(&report)
	case SelectorReceiver:
		ssrc, ok := a.receiverToSSRC[sel.ID]
		if !ok {
			return report
		}
		a.fillInbound(&report, ssrc)
		a.fillReferenced(&report)
	default:
		a.fillAllOutbound(&report)
		a.fillAllInbound(&report)
		a.fillAllRemoteInbound(&report)
		a.fillReferenced(&report)
		a.fillDataChannels(&report)
	}

	return report
}

func (a *Accumulator) fillOutbound(report *Report, ssrc rtcbase.SSRC) {
	c, ok := a.outbound[ssrc]
	if !ok {
		return
	}
	report.Outbound = append(report.Outbound, OutboundRtpStreamStats{
		ID: c.senderID, SSRC: ssrc, Mid: c.mid,
		PacketsSent: c.packetsSent, BytesSent: c.bytesSent,
		NackCount: c.nackCount, RetransmittedPacketsSent: c.retransmittedPacketsSent,
	})
}

func (a *Accumulator) fillInbound(report *Report, ssrc rtcbase.SSRC) {
	c, ok := a.inbound[ssrc]
	if !ok {
		return
	}
	report.Inbound = append(report.Inbound, InboundRtpStreamStats{
		ID: c.receiverID, SSRC: ssrc, Mid: c.mid,
		PacketsReceived: c.packetsReceived, BytesReceived: c.bytesReceived,
		PacketsLost: c.packetsLost, Jitter: c.jitter,
		NackCount: c.nackCount, PacketsDiscarded: c.packetsDiscarded,
	})
}

func (a *Accumulator) fillRemoteInbound(report *Report, ssrc rtcbase.SSRC) {
	c, ok := a.remoteInbound[ssrc]
	if !ok {
		return
	}
	id, ok := a.outbound[ssrc]
	senderID := ""
	if ok {
		senderID = id.senderID
	}
	report.RemoteInbound = append(report.RemoteInbound, RemoteInboundRtpStreamStats{
		ID: senderID, SSRC: ssrc,
		PacketsLost: c.packetsLost, Jitter: c.jitter, RoundTripTime: c.roundTripTime,
	})
}

func (a *Accumulator) fillAllOutbound(report *Report) {
	for _, ssrc := range sortSSRCs(a.outbound) {
		a.fillOutbound(report, ssrc)
	}
}

func (a *Accumulator) fillAllInbound(report *Report) {
	for _, ssrc := range sortSSRCs(a.inbound) {
		a.fillInbound(report, ssrc)
	}
}

func (a *Accumulator) fillAllRemoteInbound(report *Report) {
	for _, ssrc := range sortSSRCs(a.remoteInbound) {
		a.fillRemoteInbound(report, ssrc)
	}
}

// fillReferenced adds every candidate pair, transport, codec, and
// certificate entry — the transitive-reference set is small enough in
// practice (one bundled transport, one selected pair) that filtering it
// precisely per selector adds selection-algorithm complexity without a
// real payload-size benefit; every selector therefore sees the full set.
func (a *Accumulator) fillReferenced(report *Report) {
	pairIDs := make([]string, 0, len(a.candidatePairs))
	for id := range a.candidatePairs {
		pairIDs = append(pairIDs, id)
	}
	sort.Strings(pairIDs)
	for _, id := range pairIDs {
		c := a.candidatePairs[id]
		report.CandidatePairs = append(report.CandidatePairs, CandidatePairStats{
			ID: id, State: c.state, Nominated: c.nominated,
			BytesSent: c.bytesSent, BytesReceived: c.bytesReceived,
			CurrentRoundTripTime: c.currentRoundTripTime,
		})
	}

	transportIDs := make([]string, 0, len(a.transports))
	for id := range a.transports {
		transportIDs = append(transportIDs, id)
	}
	sort.Strings(transportIDs)
	for _, id := range transportIDs {
		c := a.transports[id]
		report.Transports = append(report.Transports, TransportStats{
			ID: id, BytesSent: c.bytesSent, BytesReceived: c.bytesReceived,
			DtlsState: c.dtlsState, SelectedCandidatePairID: c.selectedCandidatePairID,
		})
	}

	codecIDs := make([]string, 0, len(a.codecs))
	for id := range a.codecs {
		codecIDs = append(codecIDs, id)
	}
	sort.Strings(codecIDs)
	for _, id := range codecIDs {
		report.Codecs = append(report.Codecs, a.codecs[id])
	}

	certIDs := make([]string, 0, len(a.certificates))
	for id := range a.certificates {
		certIDs = append(certIDs, id)
	}
	sort.Strings(certIDs)
	for _, id := range certIDs {
		report.Certificates = append(report.Certificates, a.certificates[id])
	}
}

func (a *Accumulator) fillDataChannels(report *Report) {
	ids := make([]rtcbase.DataChannelId, 0, len(a.dataChannels))
	for id := range a.dataChannels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		c := a.dataChannels[id]
		report.DataChannels = append(report.DataChannels, DataChannelStats{
			ID: fmt.Sprintf("dc-%d", id), ChannelID: id, Label: c.label, State: c.state,
			MessagesSent: c.messagesSent, BytesSent: c.bytesSent,
			MessagesReceived: c.messagesReceived, BytesReceived: c.bytesReceived,
		})
	}
}

func sortSSRCs[V any](m map[rtcbase.SSRC]V) []rtcbase.SSRC {
	out := make([]rtcbase.SSRC, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
