package pipeline

import (
	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

// EventKind различает варианты событий, распространяемых handle_event/
// poll_event вверх по конвейеру к оркестратору и приложению.
type EventKind int

const (
	EventIceCandidate EventKind = iota
	EventIceCandidateError
	EventIceConnectionStateChange
	EventIceGatheringStateChange
	EventSelectedCandidatePairChange
	EventDtlsStateChange
	EventDtlsSrtpKeysReady
	EventSecurityFailure
	EventSctpStateChange
	EventDataChannelOpen
	EventDataChannelClose
	EventDataChannelMessage
	EventDataChannelError
	EventBufferedAmountLow
	EventOnTrack
	EventResourceExhausted
)

func (k EventKind) String() string {
	names := [...]string{
		"IceCandidate", "IceCandidateError", "IceConnectionStateChange",
		"IceGatheringStateChange", "SelectedCandidatePairChange",
		"DtlsStateChange", "DtlsSrtpKeysReady", "SecurityFailure",
		"SctpStateChange", "DataChannelOpen", "DataChannelClose",
		"DataChannelMessage", "DataChannelError", "BufferedAmountLow",
		"OnTrack", "ResourceExhausted",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// SrtpKeyingMaterial — экспортированный после хендшейка DTLS материал,
// достаточный для инициализации SRTP-контекстов в обоих направлениях
// (RFC 5764).
type SrtpKeyingMaterial struct {
	Profile         string
	LocalMasterKey  []byte
	LocalMasterSalt []byte
	RemoteMasterKey []byte
	RemoteMasterSalt []byte
	IsClient        bool
}

// Event — размеченное объединение событий слоёв.
type Event struct {
	Kind EventKind

	IceConnectionState  rtcbase.IceConnectionState
	IceGatheringState   rtcbase.IceGatheringState
	Candidate           string // строка a=candidate:...
	Err                 error

	DtlsState rtcbase.DtlsTransportState
	Keying    *SrtpKeyingMaterial

	SctpState rtcbase.SctpTransportState

	DataChannelID      rtcbase.DataChannelId
	DataChannelPayload []byte
	DataChannelIsText  bool
	DataChannelLabel   string

	TrackSSRC rtcbase.SSRC
	Mid       rtcbase.Mid
}
