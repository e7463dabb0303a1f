package stats

import (
	"time"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

// SelectorKind names which primary entry a Snapshot call should filter
// the report down to.
type SelectorKind int

const (
	SelectorNone SelectorKind = iota
	SelectorSender
	SelectorReceiver
)

// Selector mirrors get_stats(now, selector) from the orchestrator's
// public API: None returns every entry; Sender/Receiver keep only that
// stream's primary entry (a sender also keeps its remote-inbound entry)
// plus every candidate-pair, transport, codec, and certificate entry, and
// leave out data channel entries.
type Selector struct {
	Kind SelectorKind
	ID   string
}

// OutboundRtpStreamStats mirrors W3C RTCOutboundRtpStreamStats.
type OutboundRtpStreamStats struct {
	ID            string
	SSRC          rtcbase.SSRC
	Mid           rtcbase.Mid
	PacketsSent   uint64
	BytesSent     uint64
	NackCount     uint64
	RetransmittedPacketsSent uint64
}

// InboundRtpStreamStats mirrors W3C RTCInboundRtpStreamStats.
type InboundRtpStreamStats struct {
	ID                  string
	SSRC                rtcbase.SSRC
	Mid                 rtcbase.Mid
	PacketsReceived     uint64
	BytesReceived       uint64
	PacketsLost         int64
	Jitter              float64
	NackCount           uint64
	PacketsDiscarded    uint64 // повреждённые/отклонённые пакеты, см. ERROR HANDLING DESIGN
}

// RemoteInboundRtpStreamStats mirrors W3C RTCRemoteInboundRtpStreamStats
// — the sender side's view of receiver reports about its own stream.
type RemoteInboundRtpStreamStats struct {
	ID          string
	SSRC        rtcbase.SSRC
	PacketsLost int64
	Jitter      float64
	RoundTripTime time.Duration
}

// CandidatePairStats mirrors W3C RTCIceCandidatePairStats.
type CandidatePairStats struct {
	ID              string
	State           string
	Nominated       bool
	BytesSent       uint64
	BytesReceived   uint64
	CurrentRoundTripTime time.Duration
}

// TransportStats mirrors W3C RTCTransportStats.
type TransportStats struct {
	ID                string
	BytesSent         uint64
	BytesReceived     uint64
	DtlsState         string
	SelectedCandidatePairID string
}

// CodecStats mirrors W3C RTCCodecStats.
type CodecStats struct {
	ID          string
	PayloadType rtcbase.PayloadType
	MimeType    string
	ClockRate   uint32
}

// CertificateStats mirrors W3C RTCCertificateStats.
type CertificateStats struct {
	ID          string
	Fingerprint string
	FingerprintAlgorithm string
}

// DataChannelStats mirrors W3C RTCDataChannelStats.
type DataChannelStats struct {
	ID            string
	ChannelID     rtcbase.DataChannelId
	Label         string
	State         string
	MessagesSent  uint64
	BytesSent     uint64
	MessagesReceived uint64
	BytesReceived uint64
}

// Report is the full or selector-filtered snapshot returned by
// Snapshot. Slices are always built in a stable, sorted order so two
// snapshots taken at the same instant are structurally equal (spec
// property: stats snapshot invariance).
type Report struct {
	Timestamp        time.Time
	Outbound         []OutboundRtpStreamStats
	Inbound          []InboundRtpStreamStats
	RemoteInbound    []RemoteInboundRtpStreamStats
	CandidatePairs   []CandidatePairStats
	Transports       []TransportStats
	Codecs           []CodecStats
	Certificates     []CertificateStats
	DataChannels     []DataChannelStats
}
