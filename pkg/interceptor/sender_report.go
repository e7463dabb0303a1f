package interceptor

import (
	"time"

	"github.com/pion/rtcp"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

const senderReportInterval = 5 * time.Second

type srState struct {
	clockRate   uint32
	packetCount uint32
	octetCount  uint32
	lastRtpTs   uint32
	lastWall    time.Time
	haveRtp     bool
	nextAt      time.Time
}

// senderReportInterceptor накапливает счётчики отправленных пакетов/октетов
// на локальных потоках и раз в senderReportInterval эмитирует
// rtcp.SenderReport на poll_write — источник NTP/RTP-времени для DLSR на
// приёмной стороне.
type senderReportInterceptor struct {
	baseInterceptor

	streams map[rtcbase.SSRC]*srState
}

func NewSenderReportFactory() Factory {
	return func(inner Interceptor) Interceptor {
		return &senderReportInterceptor{
			baseInterceptor: baseInterceptor{inner: inner},
			streams:         make(map[rtcbase.SSRC]*srState),
		}
	}
}

func (s *senderReportInterceptor) BindLocalStream(info rtcbase.StreamInfo) {
	s.streams[info.SSRC] = &srState{clockRate: info.ClockRate}
	s.inner.BindLocalStream(info)
}

func (s *senderReportInterceptor) UnbindLocalStream(ssrc rtcbase.SSRC) {
	delete(s.streams, ssrc)
	s.inner.UnbindLocalStream(ssrc)
}

func (s *senderReportInterceptor) HandleRead(pkt Packet) error {
	return s.inner.HandleRead(pkt)
}

func (s *senderReportInterceptor) HandleWrite(pkt Packet) error {
	if pkt.Kind == PacketRtp && pkt.Rtp != nil {
		if st, ok := s.streams[pkt.RtpSSRC]; ok {
			st.packetCount++
			st.octetCount += uint32(len(pkt.Rtp.Payload))
			st.lastRtpTs = pkt.Rtp.Timestamp
			st.haveRtp = true
		}
	}
	return s.inner.HandleWrite(pkt)
}

func (s *senderReportInterceptor) HandleTimeout(now time.Time) {
	for ssrc, st := range s.streams {
		if !st.haveRtp {
			continue
		}
		if !st.nextAt.IsZero() && now.Before(st.nextAt) {
			continue
		}
		st.nextAt = now.Add(senderReportInterval)
		st.lastWall = now
		sr := &rtcp.SenderReport{
			SSRC:        uint32(ssrc),
			NTPTime:     toNTP(now),
			RTPTime:     st.lastRtpTs,
			PacketCount: st.packetCount,
			OctetCount:  st.octetCount,
		}
		s.writeOut.push(RtcpPacket([]rtcp.Packet{sr}))
	}
	s.inner.HandleTimeout(now)
}
