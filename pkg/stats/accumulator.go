package stats

import (
	"time"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

type outboundCounters struct {
	senderID                 string
	mid                      rtcbase.Mid
	packetsSent              uint64
	bytesSent                uint64
	nackCount                uint64
	retransmittedPacketsSent uint64
}

type inboundCounters struct {
	receiverID       string
	mid              rtcbase.Mid
	packetsReceived  uint64
	bytesReceived    uint64
	packetsLost      int64
	jitter           float64
	nackCount        uint64
	packetsDiscarded uint64
}

type remoteInboundCounters struct {
	senderID      string
	packetsLost   int64
	jitter        float64
	roundTripTime time.Duration
}

type candidatePairCounters struct {
	transportID          string
	state                string
	nominated            bool
	bytesSent            uint64
	bytesReceived        uint64
	currentRoundTripTime time.Duration
}

type transportCounters struct {
	bytesSent               uint64
	bytesReceived           uint64
	dtlsState               string
	selectedCandidatePairID string
}

type dataChannelCounters struct {
	channelID        rtcbase.DataChannelId
	label            string
	state            string
	messagesSent     uint64
	bytesSent        uint64
	messagesReceived uint64
	bytesReceived    uint64
}

// Accumulator is the mapping-keyed counter bag that the pipeline's
// Endpoint and the orchestrator mutate inline as packets flow through the
// pipeline; no interceptor and no lower handler holds a reference to it. It
// never itself reads the clock or performs I/O — every mutation method
// takes whatever data it needs as plain arguments, and Snapshot takes
// now explicitly.
type Accumulator struct {
	outbound       map[rtcbase.SSRC]*outboundCounters
	inbound        map[rtcbase.SSRC]*inboundCounters
	remoteInbound  map[rtcbase.SSRC]*remoteInboundCounters
	candidatePairs map[string]*candidatePairCounters
	transports     map[string]*transportCounters
	codecs         map[string]CodecStats
	certificates   map[string]CertificateStats
	dataChannels   map[rtcbase.DataChannelId]*dataChannelCounters

	senderToSSRC   map[string]rtcbase.SSRC
	receiverToSSRC map[string]rtcbase.SSRC
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		outbound:       make(map[rtcbase.SSRC]*outboundCounters),
		inbound:        make(map[rtcbase.SSRC]*inboundCounters),
		remoteInbound:  make(map[rtcbase.SSRC]*remoteInboundCounters),
		candidatePairs: make(map[string]*candidatePairCounters),
		transports:     make(map[string]*transportCounters),
		codecs:         make(map[string]CodecStats),
		certificates:   make(map[string]CertificateStats),
		dataChannels:   make(map[rtcbase.DataChannelId]*dataChannelCounters),
		senderToSSRC:   make(map[string]rtcbase.SSRC),
		receiverToSSRC: make(map[string]rtcbase.SSRC),
	}
}

// BindSender/BindReceiver register the stable stats ID for a stream so
// Snapshot's selector can filter to it; called once when SDP negotiation
// binds a transceiver's encoding to an SSRC (§3 lifecycle).
func (a *Accumulator) BindSender(senderID string, ssrc rtcbase.SSRC, mid rtcbase.Mid) {
	a.senderToSSRC[senderID] = ssrc
	a.outbound[ssrc] = &outboundCounters{senderID: senderID, mid: mid}
}

func (a *Accumulator) BindReceiver(receiverID string, ssrc rtcbase.SSRC, mid rtcbase.Mid) {
	a.receiverToSSRC[receiverID] = ssrc
	a.inbound[ssrc] = &inboundCounters{receiverID: receiverID, mid: mid}
}

func (a *Accumulator) outboundFor(ssrc rtcbase.SSRC) *outboundCounters {
	c, ok := a.outbound[ssrc]
	if !ok {
		c = &outboundCounters{}
		a.outbound[ssrc] = c
	}
	return c
}

func (a *Accumulator) inboundFor(ssrc rtcbase.SSRC) *inboundCounters {
	c, ok := a.inbound[ssrc]
	if !ok {
		c = &inboundCounters{}
		a.inbound[ssrc] = c
	}
	return c
}

// RecordRtpSent is called by Endpoint for every RTP packet the
// application writes into the pipeline.
func (a *Accumulator) RecordRtpSent(ssrc rtcbase.SSRC, bytes int) {
	c := a.outboundFor(ssrc)
	c.packetsSent++
	c.bytesSent += uint64(bytes)
}

// RecordRtpReceived is called from the inbound read path for every RTP
// packet that passed SRTP authentication.
func (a *Accumulator) RecordRtpReceived(ssrc rtcbase.SSRC, bytes int) {
	c := a.inboundFor(ssrc)
	c.packetsReceived++
	c.bytesReceived += uint64(bytes)
}

// RecordPacketDiscarded counts a protocol-parse or SRTP-auth/replay
// failure per §7's error policy: the packet is dropped silently, its
// occurrence is only visible through stats.
func (a *Accumulator) RecordPacketDiscarded(ssrc rtcbase.SSRC) {
	a.inboundFor(ssrc).packetsDiscarded++
}

// RecordNackSent/RecordNackReceived count NACKs sent for an inbound stream
// and received for an outbound stream. The nack generator and responder
// interceptors do not call them, so with the built-in pipeline these
// counters stay at zero.
func (a *Accumulator) RecordNackSent(ssrc rtcbase.SSRC) { a.inboundFor(ssrc).nackCount++ }
func (a *Accumulator) RecordNackReceived(ssrc rtcbase.SSRC, retransmitted int) {
	c := a.outboundFor(ssrc)
	c.nackCount++
	c.retransmittedPacketsSent += uint64(retransmitted)
}

// RecordReceiverReport folds an RFC 3550 receiver report's fields into
// the matching outbound stream's remote-inbound view.
func (a *Accumulator) RecordReceiverReport(ssrc rtcbase.SSRC, packetsLost int64, jitter float64, rtt time.Duration) {
	a.remoteInbound[ssrc] = &remoteInboundCounters{packetsLost: packetsLost, jitter: jitter, roundTripTime: rtt}
}

func (a *Accumulator) SetJitter(ssrc rtcbase.SSRC, jitter float64) {
	a.inboundFor(ssrc).jitter = jitter
}

func (a *Accumulator) SetPacketsLost(ssrc rtcbase.SSRC, lost int64) {
	a.inboundFor(ssrc).packetsLost = lost
}

func (a *Accumulator) candidatePairFor(id string) *candidatePairCounters {
	c, ok := a.candidatePairs[id]
	if !ok {
		c = &candidatePairCounters{}
		a.candidatePairs[id] = c
	}
	return c
}

func (a *Accumulator) RecordCandidatePair(id, transportID, state string, nominated bool) {
	c := a.candidatePairFor(id)
	c.transportID, c.state, c.nominated = transportID, state, nominated
}

func (a *Accumulator) RecordCandidatePairBytes(id string, sent, received uint64) {
	c := a.candidatePairFor(id)
	c.bytesSent += sent
	c.bytesReceived += received
}

func (a *Accumulator) transportFor(id string) *transportCounters {
	c, ok := a.transports[id]
	if !ok {
		c = &transportCounters{}
		a.transports[id] = c
	}
	return c
}

func (a *Accumulator) SetTransportState(id, dtlsState, selectedPairID string) {
	c := a.transportFor(id)
	c.dtlsState = dtlsState
	c.selectedCandidatePairID = selectedPairID
}

func (a *Accumulator) RecordTransportBytes(id string, sent, received uint64) {
	c := a.transportFor(id)
	c.bytesSent += sent
	c.bytesReceived += received
}

func (a *Accumulator) RecordCodec(codec CodecStats) { a.codecs[codec.ID] = codec }

func (a *Accumulator) RecordCertificate(cert CertificateStats) { a.certificates[cert.ID] = cert }

func (a *Accumulator) dataChannelFor(id rtcbase.DataChannelId) *dataChannelCounters {
	c, ok := a.dataChannels[id]
	if !ok {
		c = &dataChannelCounters{channelID: id}
		a.dataChannels[id] = c
	}
	return c
}

func (a *Accumulator) BindDataChannel(id rtcbase.DataChannelId, label string) {
	a.dataChannelFor(id).label = label
}

func (a *Accumulator) SetDataChannelState(id rtcbase.DataChannelId, state string) {
	a.dataChannelFor(id).state = state
}

func (a *Accumulator) RecordDataChannelSent(id rtcbase.DataChannelId, bytes int) {
	c := a.dataChannelFor(id)
	c.messagesSent++
	c.bytesSent += uint64(bytes)
}

func (a *Accumulator) RecordDataChannelReceived(id rtcbase.DataChannelId, bytes int) {
	c := a.dataChannelFor(id)
	c.messagesReceived++
	c.bytesReceived += uint64(bytes)
}
