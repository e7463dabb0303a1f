package interceptor

import (
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

const nackResponderBufferSize = 1024

type sendRing struct {
	packets [nackResponderBufferSize]*rtp.Packet
	filled  [nackResponderBufferSize]bool
}

func (r *sendRing) put(p *rtp.Packet) {
	i := p.SequenceNumber % nackResponderBufferSize
	r.packets[i] = p
	r.filled[i] = true
}

func (r *sendRing) get(seq uint16) (*rtp.Packet, bool) {
	i := seq % nackResponderBufferSize
	if !r.filled[i] || r.packets[i].SequenceNumber != seq {
		return nil, false
	}
	return r.packets[i], true
}

// nackResponder — отправляющая сторона RTCP NACK: запоминает исходящие RTP
// в кольцевом буфере на nackResponderBufferSize пакетов и при получении
// TransportLayerNack, адресованного локальному потоку, повторно
// отправляет найденные пакеты — через RTX (RFC 4588), если поток его
// поддерживает, иначе как есть. Пакеты, вытолкнутые из буфера, тихо
// пропускаются — свойство "NACK responder locality".
type nackResponder struct {
	baseInterceptor

	streams map[rtcbase.SSRC]rtcbase.StreamInfo
	buffers map[rtcbase.SSRC]*sendRing
	rtxSeq  map[rtcbase.SSRC]uint16
}

func NewNackResponderFactory() Factory {
	return func(inner Interceptor) Interceptor {
		return &nackResponder{
			baseInterceptor: baseInterceptor{inner: inner},
			streams:         make(map[rtcbase.SSRC]rtcbase.StreamInfo),
			buffers:         make(map[rtcbase.SSRC]*sendRing),
			rtxSeq:          make(map[rtcbase.SSRC]uint16),
		}
	}
}

func (r *nackResponder) BindLocalStream(info rtcbase.StreamInfo) {
	if info.HasFeedback("nack", "") {
		r.streams[info.SSRC] = info
		r.buffers[info.SSRC] = &sendRing{}
	}
	r.inner.BindLocalStream(info)
}

func (r *nackResponder) UnbindLocalStream(ssrc rtcbase.SSRC) {
	delete(r.streams, ssrc)
	delete(r.buffers, ssrc)
	delete(r.rtxSeq, ssrc)
	r.inner.UnbindLocalStream(ssrc)
}

func (r *nackResponder) HandleWrite(pkt Packet) error {
	if pkt.Kind == PacketRtp && pkt.Rtp != nil {
		if buf, ok := r.buffers[pkt.RtpSSRC]; ok {
			buf.put(pkt.Rtp)
		}
	}
	return r.inner.HandleWrite(pkt)
}

func (r *nackResponder) HandleRead(pkt Packet) error {
	if pkt.Kind == PacketRtcp {
		for _, p := range pkt.Rtcp {
			nack, ok := p.(*rtcp.TransportLayerNack)
			if !ok {
				continue
			}
			r.respond(rtcbase.SSRC(nack.MediaSSRC), nack)
		}
	}
	return r.inner.HandleRead(pkt)
}

func (r *nackResponder) respond(ssrc rtcbase.SSRC, nack *rtcp.TransportLayerNack) {
	info, ok := r.streams[ssrc]
	if !ok {
		return
	}
	buf := r.buffers[ssrc]
	for _, pair := range nack.Nacks {
		for _, seq := range pair.PacketList() {
			orig, found := buf.get(seq)
			if !found {
				continue // давно вытолкнут из буфера — пропускаем без ошибки
			}
			r.writeOut.push(RtpPacket(ssrc, r.buildRetransmit(info, orig)))
		}
	}
}

func (r *nackResponder) buildRetransmit(info rtcbase.StreamInfo, orig *rtp.Packet) *rtp.Packet {
	if !info.HasRtx {
		clone := *orig
		return &clone
	}
	seq := r.rtxSeq[info.SSRC]
	r.rtxSeq[info.SSRC] = seq + 1

	payload := make([]byte, 2+len(orig.Payload))
	payload[0] = byte(orig.SequenceNumber >> 8)
	payload[1] = byte(orig.SequenceNumber)
	copy(payload[2:], orig.Payload)

	hdr := orig.Header
	hdr.SSRC = uint32(info.RtxSSRC)
	hdr.PayloadType = uint8(info.RtxPayloadType)
	hdr.SequenceNumber = seq
	return &rtp.Packet{Header: hdr, Payload: payload}
}

func (r *nackResponder) HandleTimeout(now time.Time) { r.inner.HandleTimeout(now) }
