package rtcbase

// SignalingState — состояние согласования SDP согласно W3C webrtc §4.3.5.
type SignalingState int

const (
	SignalingStable SignalingState = iota
	SignalingHaveLocalOffer
	SignalingHaveLocalPranswer
	SignalingHaveRemoteOffer
	SignalingHaveRemotePranswer
	SignalingClosed
)

func (s SignalingState) String() string {
	switch s {
	case SignalingStable:
		return "stable"
	case SignalingHaveLocalOffer:
		return "have-local-offer"
	case SignalingHaveLocalPranswer:
		return "have-local-pranswer"
	case SignalingHaveRemoteOffer:
		return "have-remote-offer"
	case SignalingHaveRemotePranswer:
		return "have-remote-pranswer"
	case SignalingClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// IceConnectionState согласно W3C RTCIceConnectionState.
type IceConnectionState int

const (
	IceConnectionNew IceConnectionState = iota
	IceConnectionChecking
	IceConnectionConnected
	IceConnectionCompleted
	IceConnectionFailed
	IceConnectionDisconnected
	IceConnectionClosed
)

func (s IceConnectionState) String() string {
	switch s {
	case IceConnectionNew:
		return "new"
	case IceConnectionChecking:
		return "checking"
	case IceConnectionConnected:
		return "connected"
	case IceConnectionCompleted:
		return "completed"
	case IceConnectionFailed:
		return "failed"
	case IceConnectionDisconnected:
		return "disconnected"
	case IceConnectionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// IceGatheringState согласно W3C RTCIceGatheringState.
type IceGatheringState int

const (
	IceGatheringNew IceGatheringState = iota
	IceGatheringGathering
	IceGatheringComplete
)

func (s IceGatheringState) String() string {
	switch s {
	case IceGatheringNew:
		return "new"
	case IceGatheringGathering:
		return "gathering"
	case IceGatheringComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// PeerConnectionState согласно W3C RTCPeerConnectionState.
type PeerConnectionState int

const (
	PeerConnectionNew PeerConnectionState = iota
	PeerConnectionConnecting
	PeerConnectionConnected
	PeerConnectionDisconnected
	PeerConnectionFailed
	PeerConnectionClosed
)

func (s PeerConnectionState) String() string {
	switch s {
	case PeerConnectionNew:
		return "new"
	case PeerConnectionConnecting:
		return "connecting"
	case PeerConnectionConnected:
		return "connected"
	case PeerConnectionDisconnected:
		return "disconnected"
	case PeerConnectionFailed:
		return "failed"
	case PeerConnectionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DataChannelState согласно W3C RTCDataChannelState.
type DataChannelState int

const (
	DataChannelConnecting DataChannelState = iota
	DataChannelOpen
	DataChannelClosing
	DataChannelClosed
)

func (s DataChannelState) String() string {
	switch s {
	case DataChannelConnecting:
		return "connecting"
	case DataChannelOpen:
		return "open"
	case DataChannelClosing:
		return "closing"
	case DataChannelClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DtlsTransportState согласно W3C RTCDtlsTransportState.
type DtlsTransportState int

const (
	DtlsNew DtlsTransportState = iota
	DtlsConnecting
	DtlsConnected
	DtlsClosed
	DtlsFailed
)

func (s DtlsTransportState) String() string {
	switch s {
	case DtlsNew:
		return "new"
	case DtlsConnecting:
		return "connecting"
	case DtlsConnected:
		return "connected"
	case DtlsClosed:
		return "closed"
	case DtlsFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SctpTransportState согласно W3C RTCSctpTransportState.
type SctpTransportState int

const (
	SctpConnecting SctpTransportState = iota
	SctpConnected
	SctpClosed
)

func (s SctpTransportState) String() string {
	switch s {
	case SctpConnecting:
		return "connecting"
	case SctpConnected:
		return "connected"
	case SctpClosed:
		return "closed"
	default:
		return "unknown"
	}
}
