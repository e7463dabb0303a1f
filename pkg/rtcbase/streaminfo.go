package rtcbase

// RTCPFeedback — одна запись a=rtcp-fb:<pt> <type> [<parameter>].
type RTCPFeedback struct {
	Type      string // "nack", "ccm", "transport-cc", ...
	Parameter string // "pli", "fir", "" ...
}

// RTPHeaderExtension — одна запись a=extmap:<id> <uri>, согласованная при
// negotiation.
type RTPHeaderExtension struct {
	URI string
	ID  int
}

// Известные URI расширений заголовка RTP, используемые интерсепторами для
// самоактивации на потоке.
const (
	ExtensionURIMid              = "urn:ietf:params:rtp-hdrext:sdes:mid"
	ExtensionURIRid              = "urn:ietf:params:rtp-hdrext:sdes:rtp-stream-id"
	ExtensionURIRepairedRid      = "urn:ietf:params:rtp-hdrext:sdes:repaired-rtp-stream-id"
	ExtensionURITransportWideCC  = "http://www.ietf.org/id/draft-holmer-rmcat-transport-wide-cc-extensions-01"
	ExtensionURIAbsSendTime      = "http://www.webrtc.org/experiments/rtp-hdrext/abs-send-time"
)

// StreamInfo — пакет возможностей потока, полученный при согласовании SDP
// и привязываемый к потоку в момент, когда он становится активным.
// Инвариант: интерсептор может трогать только те потоки, чей StreamInfo
// объявляет нужную ему возможность.
type StreamInfo struct {
	SSRC        SSRC
	RtxSSRC     SSRC // 0 если RTX не согласован
	FecSSRC     SSRC // 0 если FEC не согласован
	RtxPayloadType PayloadType
	HasRtx      bool
	PayloadType PayloadType
	Codec       string
	ClockRate   uint32
	Mid         Mid
	Rid         Rid
	RTCPFeedback []RTCPFeedback
	HeaderExtensions []RTPHeaderExtension
}

// HasFeedback проверяет, объявлен ли fbType (опционально с параметром) для
// этого потока.
func (s StreamInfo) HasFeedback(fbType, parameter string) bool {
	for _, fb := range s.RTCPFeedback {
		if fb.Type == fbType && (parameter == "" || fb.Parameter == parameter) {
			return true
		}
	}
	return false
}

// ExtensionID возвращает согласованный id расширения по URI, либо 0, false.
func (s StreamInfo) ExtensionID(uri string) (int, bool) {
	for _, ext := range s.HeaderExtensions {
		if ext.URI == uri {
			return ext.ID, true
		}
	}
	return 0, false
}
