package pipeline

import (
	"time"

	"github.com/arzzra/rtcengine/pkg/interceptor"
	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

// InterceptorHandler оборачивает цепочку interceptor.Interceptor как
// обычный Handler конвейера, переводя PipelineMessage в interceptor.Packet
// и обратно. Располагается между Srtp и Endpoint — работает с уже
// расшифрованными RTP/RTCP.
type InterceptorHandler struct {
	BaseHandler

	chain interceptor.Interceptor
}

func NewInterceptorHandler(chain interceptor.Interceptor) *InterceptorHandler {
	return &InterceptorHandler{chain: chain}
}

func (h *InterceptorHandler) BindLocalStream(info rtcbase.StreamInfo)  { h.chain.BindLocalStream(info) }
func (h *InterceptorHandler) UnbindLocalStream(ssrc rtcbase.SSRC)      { h.chain.UnbindLocalStream(ssrc) }
func (h *InterceptorHandler) BindRemoteStream(info rtcbase.StreamInfo) { h.chain.BindRemoteStream(info) }
func (h *InterceptorHandler) UnbindRemoteStream(ssrc rtcbase.SSRC)     { h.chain.UnbindRemoteStream(ssrc) }

func (h *InterceptorHandler) HandleRead(msg PipelineMessage) error {
	if h.IsClosed() {
		return nil
	}
	switch msg.Kind {
	case MsgRtpPacket:
		if err := h.chain.HandleRead(interceptor.RtpPacket(msg.TrackSSRC, msg.RtpPacket)); err != nil {
			return err
		}
	case MsgRtcpPackets:
		if err := h.chain.HandleRead(interceptor.RtcpPacket(msg.RtcpPackets)); err != nil {
			return err
		}
	default:
		h.emitRead(msg)
		return nil
	}
	h.drainRead(msg.Transport)
	return nil
}

func (h *InterceptorHandler) drainRead(transport rtcbase.TransportContext) {
	for {
		pkt, ok := h.chain.PollRead()
		if !ok {
			return
		}
		h.emitRead(toPipelineMessage(pkt, transport))
	}
}

func (h *InterceptorHandler) HandleWrite(msg PipelineMessage) error {
	if h.IsClosed() {
		return nil
	}
	switch msg.Kind {
	case MsgRtpPacket:
		if err := h.chain.HandleWrite(interceptor.RtpPacket(msg.TrackSSRC, msg.RtpPacket)); err != nil {
			return err
		}
	case MsgRtcpPackets:
		if err := h.chain.HandleWrite(interceptor.RtcpPacket(msg.RtcpPackets)); err != nil {
			return err
		}
	default:
		h.emitWrite(msg)
		return nil
	}
	h.drainWrite(msg.Transport)
	return nil
}

func (h *InterceptorHandler) drainWrite(transport rtcbase.TransportContext) {
	for {
		pkt, ok := h.chain.PollWrite()
		if !ok {
			return
		}
		h.emitWrite(toPipelineMessage(pkt, transport))
	}
}

func toPipelineMessage(pkt interceptor.Packet, transport rtcbase.TransportContext) PipelineMessage {
	if pkt.Kind == interceptor.PacketRtp {
		return PipelineMessage{Kind: MsgRtpPacket, Transport: transport, RtpPacket: pkt.Rtp, TrackSSRC: pkt.RtpSSRC}
	}
	return PipelineMessage{Kind: MsgRtcpPackets, Transport: transport, RtcpPackets: pkt.Rtcp}
}

func (h *InterceptorHandler) HandleEvent(evt Event) error {
	switch evt.Kind {
	case EventOnTrack:
		return h.chain.HandleEvent(interceptor.Event{Kind: interceptor.EventStreamAdded, SSRC: evt.TrackSSRC, Mid: evt.Mid})
	default:
		return nil
	}
}

func (h *InterceptorHandler) HandleTimeout(now time.Time) {
	if h.IsClosed() {
		return
	}
	h.chain.HandleTimeout(now)
	h.drainWrite(rtcbase.TransportContext{})
	h.drainRead(rtcbase.TransportContext{})
}

func (h *InterceptorHandler) PollTimeout() (time.Time, bool) {
	if h.IsClosed() {
		return time.Time{}, false
	}
	return h.chain.PollTimeout()
}

func (h *InterceptorHandler) Close() error {
	h.markClosed()
	return h.chain.Close()
}
