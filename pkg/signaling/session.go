package signaling

import (
	pionsdp "github.com/pion/sdp/v3"

	"github.com/arzzra/rtcengine/pkg/sdp"
)

// SdpType mirrors W3C RTCSdpType.
type SdpType int

const (
	SdpOffer SdpType = iota
	SdpAnswer
	SdpPranswer
	SdpRollback
)

func (t SdpType) String() string {
	switch t {
	case SdpOffer:
		return "offer"
	case SdpAnswer:
		return "answer"
	case SdpPranswer:
		return "pranswer"
	case SdpRollback:
		return "rollback"
	default:
		return "unknown"
	}
}

// SessionDescription — аналог W3C RTCSessionDescriptionInit: пара
// (type, sdp), где sdp — сериализованный текст, которым обмениваются
// стороны через их собственный signaling channel (явный non-goal этого
// движка — см. spec.md §3).
type SessionDescription struct {
	Type SdpType
	SDP  string
}

// parseSessionDescription unmarshals the wire SDP text and decomposes it
// into the (SessionParams, []MediaSection) pair pkg/sdp works with.
func parseSessionDescription(desc SessionDescription) (sdp.SessionParams, []sdp.MediaSection, error) {
	if desc.Type == SdpRollback {
		return sdp.SessionParams{}, nil, nil
	}
	parsed := &pionsdp.SessionDescription{}
	if err := parsed.Unmarshal([]byte(desc.SDP)); err != nil {
		return sdp.SessionParams{}, nil, errInvalidParameter("malformed sdp: %v", err)
	}
	return sdp.Parse(parsed)
}

// buildSessionDescription is the inverse of parseSessionDescription: it
// renders (params, sections) into the wire SDP text, tagged with typ.
func buildSessionDescription(typ SdpType, params sdp.SessionParams, sections []sdp.MediaSection) (SessionDescription, error) {
	built, err := sdp.Build(typ == SdpOffer, params, sections)
	if err != nil {
		return SessionDescription{}, err
	}
	raw, err := built.Marshal()
	if err != nil {
		return SessionDescription{}, err
	}
	return SessionDescription{Type: typ, SDP: string(raw)}, nil
}
