package signaling

import (
	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

// EventKind enumerates the PeerConnection-level events from spec.md §6 —
// one level up from pipeline.EventKind, which names wire-facing layer
// events. Most PeerConnection events are a routed/relabeled pipeline
// event; a few (NegotiationNeeded, SignalingStateChange,
// ConnectionStateChange, OnDataChannel) exist only at this level.
type EventKind int

const (
	EventNegotiationNeeded EventKind = iota
	EventIceCandidate
	EventIceCandidateError
	EventIceConnectionStateChange
	EventIceGatheringStateChange
	EventSignalingStateChange
	EventConnectionStateChange
	EventOnTrack
	EventOnDataChannel
	EventDataChannelOpen
	EventDataChannelClose
	EventDataChannelMessage
	EventDataChannelError
	EventBufferedAmountLow
)

func (k EventKind) String() string {
	names := [...]string{
		"NegotiationNeeded", "IceCandidate", "IceCandidateError",
		"IceConnectionStateChange", "IceGatheringStateChange",
		"SignalingStateChange", "ConnectionStateChange", "OnTrack",
		"OnDataChannel", "DataChannelOpen", "DataChannelClose",
		"DataChannelMessage", "DataChannelError", "BufferedAmountLow",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// Event — размеченное объединение, которое poll_event оркестратора
// отдаёт host-у. Поля валидны по Kind, как и pipeline.Event.
type Event struct {
	Kind EventKind

	IceConnectionState rtcbase.IceConnectionState
	IceGatheringState  rtcbase.IceGatheringState
	SignalingState     rtcbase.SignalingState
	ConnectionState    rtcbase.PeerConnectionState
	Candidate          string
	Err                error

	TrackSSRC rtcbase.SSRC
	Mid       rtcbase.Mid

	DataChannelID      rtcbase.DataChannelId
	DataChannelLabel   string
	DataChannelInit    DataChannelInit
	DataChannelPayload []byte
	DataChannelIsText  bool
}
