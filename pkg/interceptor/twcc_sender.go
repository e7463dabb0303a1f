package interceptor

import (
	"time"

	"github.com/pion/rtp"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

// twccSender проставляет расширение transport-wide-cc в исходящие RTP,
// используя единый 16-битный счётчик, общий для всех локальных потоков,
// подписавшихся на это расширение — требование draft-holmer-rmcat TWCC:
// нумерация сквозная по транспорту, а не по потоку.
type twccSender struct {
	baseInterceptor

	extID map[rtcbase.SSRC]int
	next  uint16
}

func NewTwccSenderFactory() Factory {
	return func(inner Interceptor) Interceptor {
		return &twccSender{
			baseInterceptor: baseInterceptor{inner: inner},
			extID:           make(map[rtcbase.SSRC]int),
		}
	}
}

func (s *twccSender) BindLocalStream(info rtcbase.StreamInfo) {
	if id, ok := info.ExtensionID(rtcbase.ExtensionURITransportWideCC); ok {
		s.extID[info.SSRC] = id
	}
	s.inner.BindLocalStream(info)
}

func (s *twccSender) UnbindLocalStream(ssrc rtcbase.SSRC) {
	delete(s.extID, ssrc)
	s.inner.UnbindLocalStream(ssrc)
}

func (s *twccSender) HandleRead(pkt Packet) error { return s.inner.HandleRead(pkt) }

func (s *twccSender) HandleWrite(pkt Packet) error {
	if pkt.Kind == PacketRtp && pkt.Rtp != nil {
		if id, ok := s.extID[pkt.RtpSSRC]; ok {
			seq := s.next
			s.next++
			payload := []byte{byte(seq >> 8), byte(seq)}
			_ = setRtpExtension(pkt.Rtp, id, payload)
		}
	}
	return s.inner.HandleWrite(pkt)
}

func (s *twccSender) HandleTimeout(now time.Time) { s.inner.HandleTimeout(now) }

// setRtpExtension — небольшая обёртка над rtp.Packet.SetExtension; флаг
// расширения и профиль (one-byte/two-byte) при первой записи выставляет
// сам SetExtension.
func setRtpExtension(p *rtp.Packet, id int, payload []byte) error {
	return p.SetExtension(uint8(id), payload)
}
