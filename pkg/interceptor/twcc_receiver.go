package interceptor

import (
	"time"

	"github.com/pion/rtcp"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

const twccFeedbackInterval = 100 * time.Millisecond

type twccArrival struct {
	seq     uint16
	arrived bool
	at      time.Time
}

// twccReceiver собирает прибытия пакетов, помеченных расширением
// transport-wide-cc, и раз в twccFeedbackInterval строит
// rtcp.TransportLayerCC, группируя подряд идущие одноимённые статусы в
// RunLengthChunk — без этого группирования пакет рос бы линейно с
// PacketStatusCount, что практика pion избегает там же.
type twccReceiver struct {
	baseInterceptor

	extID        map[rtcbase.SSRC]int
	localSSRC    rtcbase.SSRC
	fbPktCount   uint8
	referenceSet bool
	reference    time.Time

	pending []twccArrival
	haveMin bool
	minSeq  uint16
	maxSeq  uint16

	nextAt time.Time
}

func NewTwccReceiverFactory() Factory {
	return func(inner Interceptor) Interceptor {
		return &twccReceiver{
			baseInterceptor: baseInterceptor{inner: inner},
			extID:           make(map[rtcbase.SSRC]int),
		}
	}
}

func (r *twccReceiver) BindLocalStream(info rtcbase.StreamInfo) {
	r.localSSRC = info.SSRC
	r.inner.BindLocalStream(info)
}

func (r *twccReceiver) UnbindLocalStream(ssrc rtcbase.SSRC) {
	if r.localSSRC == ssrc {
		r.localSSRC = 0
	}
	r.inner.UnbindLocalStream(ssrc)
}

func (r *twccReceiver) BindRemoteStream(info rtcbase.StreamInfo) {
	if id, ok := info.ExtensionID(rtcbase.ExtensionURITransportWideCC); ok {
		r.extID[info.SSRC] = id
	}
	r.inner.BindRemoteStream(info)
}

func (r *twccReceiver) UnbindRemoteStream(ssrc rtcbase.SSRC) {
	delete(r.extID, ssrc)
	r.inner.UnbindRemoteStream(ssrc)
}

func (r *twccReceiver) HandleWrite(pkt Packet) error { return r.inner.HandleWrite(pkt) }

func (r *twccReceiver) HandleRead(pkt Packet) error {
	if pkt.Kind == PacketRtp && pkt.Rtp != nil {
		if id, ok := r.extID[pkt.RtpSSRC]; ok {
			if ext := pkt.Rtp.GetExtension(uint8(id)); len(ext) == 2 {
				seq := uint16(ext[0])<<8 | uint16(ext[1])
				r.record(seq, pkt.Timestamp)
			}
		}
	}
	return r.inner.HandleRead(pkt)
}

func (r *twccReceiver) record(seq uint16, at time.Time) {
	if !r.haveMin {
		r.haveMin = true
		r.minSeq = seq
		r.maxSeq = seq
	} else {
		if seqLess(seq, r.minSeq) {
			r.minSeq = seq
		}
		if seqLess(r.maxSeq, seq) {
			r.maxSeq = seq
		}
	}
	r.pending = append(r.pending, twccArrival{seq: seq, arrived: true, at: at})
	if !r.referenceSet {
		r.referenceSet = true
		r.reference = at
	}
}

func seqLess(a, b uint16) bool {
	diff := int32(a) - int32(b)
	if diff > 0x8000 {
		diff -= 0x10000
	} else if diff < -0x8000 {
		diff += 0x10000
	}
	return diff < 0
}

func (r *twccReceiver) HandleTimeout(now time.Time) {
	if !r.nextAt.IsZero() && now.Before(r.nextAt) {
		r.inner.HandleTimeout(now)
		return
	}
	r.nextAt = now.Add(twccFeedbackInterval)
	if len(r.pending) > 0 {
		r.writeOut.push(RtcpPacket([]rtcp.Packet{r.buildFeedback()}))
	}
	r.inner.HandleTimeout(now)
}

func (r *twccReceiver) buildFeedback() *rtcp.TransportLayerCC {
	byArrival := make(map[uint16]twccArrival, len(r.pending))
	for _, a := range r.pending {
		byArrival[a.seq] = a
	}

	count := uint16(r.maxSeq-r.minSeq) + 1
	statuses := make([]bool, count)
	for i := range statuses {
		seq := r.minSeq + uint16(i)
		if _, ok := byArrival[seq]; ok {
			statuses[i] = true
		}
	}

	var chunks []rtcp.PacketStatusChunk
	var deltas []*rtcp.RecvDelta
	var lastAt time.Time
	i := 0
	for i < len(statuses) {
		symbol := rtcp.TypeTCCPacketNotReceived
		if statuses[i] {
			symbol = rtcp.TypeTCCPacketReceivedSmallDelta
		}
		run := 1
		for i+run < len(statuses) && statuses[i+run] == statuses[i] {
			run++
		}
		chunks = append(chunks, &rtcp.RunLengthChunk{
			Type:               rtcp.TypeTCCRunLengthChunk,
			PacketStatusSymbol: symbol,
			RunLength:          uint16(run),
		})
		if statuses[i] {
			for j := 0; j < run; j++ {
				seq := r.minSeq + uint16(i+j)
				at := byArrival[seq].at
				var deltaUs int64
				if !lastAt.IsZero() {
					deltaUs = at.Sub(lastAt).Microseconds()
				}
				lastAt = at
				deltas = append(deltas, &rtcp.RecvDelta{Type: rtcp.TypeTCCPacketReceivedSmallDelta, Delta: deltaUs})
			}
		}
		i += run
	}

	r.fbPktCount++
	tcc := &rtcp.TransportLayerCC{
		SenderSSRC:         uint32(r.localSSRC),
		MediaSSRC:          0,
		BaseSequenceNumber: r.minSeq,
		PacketStatusCount:  count,
		ReferenceTime:      uint32(r.reference.UnixMilli()/64) & 0xFFFFFF,
		FbPktCount:         r.fbPktCount,
		PacketChunks:       chunks,
		RecvDeltas:         deltas,
	}

	r.pending = r.pending[:0]
	r.haveMin = false
	return tcc
}
