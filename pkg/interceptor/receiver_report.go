package interceptor

import (
	"time"

	"github.com/pion/rtcp"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

const receiverReportInterval = 5 * time.Second

type rrState struct {
	clockRate uint32

	initialized bool
	baseSeq     uint16
	cycles      uint16
	highestSeq  uint16
	received    uint32

	lastTransit int64
	jitter      uint32 // RFC 3550 §A.8, единицы тактов clockRate, без масштабирования

	lastSRNTP  uint64
	lastSRWall time.Time
	haveSR     bool

	nextAt time.Time
}

// extendedHighest возвращает 32-битное расширенное (с учётом циклов) значение
// старшего полученного seq — нужно для cumulative lost.
func (st *rrState) extendedHighest() uint32 {
	return uint32(st.cycles)<<16 | uint32(st.highestSeq)
}

// receiverReportInterceptor реализует приёмную сторону RTCP RR: отслеживает
// cumulative lost, fraction lost за интервал, interarrival jitter (RFC 3550
// §A.8) и LSR/DLSR по последнему увиденному SR, раз в
// receiverReportInterval эмитирует rtcp.ReceiverReport на poll_write.
type receiverReportInterceptor struct {
	baseInterceptor

	streams map[rtcbase.SSRC]*rrState
	// localSSRC — SSRC, от имени которого отправляются RR; в простом случае
	// один медиапоток на направление, поэтому достаточно последнего
	// привязанного локального потока.
	localSSRC rtcbase.SSRC
}

func NewReceiverReportFactory() Factory {
	return func(inner Interceptor) Interceptor {
		return &receiverReportInterceptor{
			baseInterceptor: baseInterceptor{inner: inner},
			streams:         make(map[rtcbase.SSRC]*rrState),
		}
	}
}

func (r *receiverReportInterceptor) BindLocalStream(info rtcbase.StreamInfo) {
	r.localSSRC = info.SSRC
	r.inner.BindLocalStream(info)
}

func (r *receiverReportInterceptor) UnbindLocalStream(ssrc rtcbase.SSRC) {
	if r.localSSRC == ssrc {
		r.localSSRC = 0
	}
	r.inner.UnbindLocalStream(ssrc)
}

func (r *receiverReportInterceptor) BindRemoteStream(info rtcbase.StreamInfo) {
	r.streams[info.SSRC] = &rrState{clockRate: info.ClockRate}
	r.inner.BindRemoteStream(info)
}

func (r *receiverReportInterceptor) UnbindRemoteStream(ssrc rtcbase.SSRC) {
	delete(r.streams, ssrc)
	r.inner.UnbindRemoteStream(ssrc)
}

func (r *receiverReportInterceptor) HandleRead(pkt Packet) error {
	switch pkt.Kind {
	case PacketRtp:
		if pkt.Rtp != nil {
			if st, ok := r.streams[pkt.RtpSSRC]; ok {
				r.observe(st, pkt)
			}
		}
	case PacketRtcp:
		for _, p := range pkt.Rtcp {
			sr, ok := p.(*rtcp.SenderReport)
			if !ok {
				continue
			}
			if st, ok := r.streams[rtcbase.SSRC(sr.SSRC)]; ok {
				st.lastSRNTP = sr.NTPTime
				st.lastSRWall = pkt.Timestamp
				st.haveSR = true
			}
		}
	}
	return r.inner.HandleRead(pkt)
}

func (r *receiverReportInterceptor) HandleWrite(pkt Packet) error {
	return r.inner.HandleWrite(pkt)
}

func (r *receiverReportInterceptor) observe(st *rrState, pkt Packet) {
	seq := pkt.Rtp.SequenceNumber
	if !st.initialized {
		st.initialized = true
		st.baseSeq = seq
		st.highestSeq = seq
		st.received = 1
		return
	}
	st.received++

	if seq < st.highestSeq && st.highestSeq-seq > 0x8000 {
		st.cycles++
	}
	if extendedSeqAfter(seq, st.highestSeq, st.cycles) {
		st.highestSeq = seq
	}

	if st.clockRate == 0 || pkt.Timestamp.IsZero() {
		return
	}
	arrival := int64(pkt.Timestamp.UnixNano()) * int64(st.clockRate) / int64(time.Second)
	transit := arrival - int64(pkt.Rtp.Timestamp)
	if st.lastTransit != 0 {
		d := transit - st.lastTransit
		if d < 0 {
			d = -d
		}
		st.jitter += uint32((d - int64(st.jitter)) >> 4)
	}
	st.lastTransit = transit
}

// extendedSeqAfter решает, продвигает ли новый seq "старшую" границу —
// сравнение по кратчайшей дуге 16-битного пространства.
func extendedSeqAfter(seq, highest, cycles uint16) bool {
	diff := int32(seq) - int32(highest)
	if diff > 0x8000 {
		diff -= 0x10000
	} else if diff < -0x8000 {
		diff += 0x10000
	}
	return diff > 0
}

func (r *receiverReportInterceptor) HandleTimeout(now time.Time) {
	for ssrc, st := range r.streams {
		if !st.initialized {
			continue
		}
		if !st.nextAt.IsZero() && now.Before(st.nextAt) {
			continue
		}
		st.nextAt = now.Add(receiverReportInterval)

		expected := st.extendedHighest() - uint32(st.baseSeq) + 1
		lost := uint32(0)
		if expected > st.received {
			lost = expected - st.received
		}
		fraction := uint8(0)
		if expected > 0 {
			fraction = uint8(uint64(lost) * 256 / uint64(expected))
		}

		block := rtcp.ReceptionReport{
			SSRC:               uint32(ssrc),
			FractionLost:       fraction,
			TotalLost:          lost,
			LastSequenceNumber: st.extendedHighest(),
			Jitter:             st.jitter,
		}
		if st.haveSR {
			block.LastSenderReport = middle32(st.lastSRNTP)
			if !st.lastSRWall.IsZero() && !now.Before(st.lastSRWall) {
				block.Delay = uint32(now.Sub(st.lastSRWall).Seconds() * 65536)
			}
		}

		rr := &rtcp.ReceiverReport{SSRC: uint32(r.localSSRC), Reports: []rtcp.ReceptionReport{block}}
		r.writeOut.push(RtcpPacket([]rtcp.Packet{rr}))
	}
	r.inner.HandleTimeout(now)
}
