package pipeline

import (
	"time"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
	"github.com/arzzra/rtcengine/pkg/stats"
)

// Endpoint — верхний слой конвейера, граничащий с приложением. Превращает
// MsgRtpPacket в MsgTrackSample, привязанный к конкретному mid (через
// ранее объявленные StreamInfo), и эмитит EventOnTrack при первом пакете
// с незнакомым SSRC.
//
// acc, если выставлен оркестратором через SetStatsAccumulator, считает
// packets_sent/bytes_sent и packets_received/bytes_received инлайн на
// каждом пакете — это единственная точка конвейера, которая видит и
// направление (read/write), и присвоенный mid одновременно.
type Endpoint struct {
	BaseHandler

	ssrcToMid map[rtcbase.SSRC]rtcbase.Mid
	seenSSRC  map[rtcbase.SSRC]bool

	acc *stats.Accumulator
}

func NewEndpoint() *Endpoint {
	return &Endpoint{
		ssrcToMid: make(map[rtcbase.SSRC]rtcbase.Mid),
		seenSSRC:  make(map[rtcbase.SSRC]bool),
	}
}

func (e *Endpoint) SetStatsAccumulator(acc *stats.Accumulator) {
	e.acc = acc
}

func (e *Endpoint) BindRemoteStream(info rtcbase.StreamInfo) {
	e.ssrcToMid[info.SSRC] = info.Mid
}

func (e *Endpoint) UnbindRemoteStream(ssrc rtcbase.SSRC) {
	delete(e.ssrcToMid, ssrc)
	delete(e.seenSSRC, ssrc)
}

func (e *Endpoint) HandleRead(msg PipelineMessage) error {
	if e.IsClosed() {
		return nil
	}
	if msg.Kind != MsgRtpPacket {
		e.emitRead(msg)
		return nil
	}
	if !e.seenSSRC[msg.TrackSSRC] {
		e.seenSSRC[msg.TrackSSRC] = true
		e.emitEvent(Event{Kind: EventOnTrack, TrackSSRC: msg.TrackSSRC, Mid: e.ssrcToMid[msg.TrackSSRC]})
	}
	if e.acc != nil && msg.RtpPacket != nil {
		e.acc.RecordRtpReceived(msg.TrackSSRC, msg.RtpPacket.MarshalSize())
	}
	e.emitRead(PipelineMessage{
		Kind:      MsgTrackSample,
		Transport: msg.Transport,
		RtpPacket: msg.RtpPacket,
		TrackSSRC: msg.TrackSSRC,
		Mid:       e.ssrcToMid[msg.TrackSSRC],
	})
	return nil
}

func (e *Endpoint) HandleWrite(msg PipelineMessage) error {
	if e.IsClosed() {
		return nil
	}
	if msg.Kind == MsgTrackSample {
		if e.acc != nil && msg.RtpPacket != nil {
			e.acc.RecordRtpSent(msg.TrackSSRC, msg.RtpPacket.MarshalSize())
		}
		e.emitWrite(PipelineMessage{Kind: MsgRtpPacket, Transport: msg.Transport, RtpPacket: msg.RtpPacket, TrackSSRC: msg.TrackSSRC})
		return nil
	}
	e.emitWrite(msg)
	return nil
}

func (e *Endpoint) HandleEvent(Event) error        { return nil }
func (e *Endpoint) HandleTimeout(time.Time)        {}
func (e *Endpoint) PollTimeout() (time.Time, bool) { return time.Time{}, false }

func (e *Endpoint) Close() error {
	e.markClosed()
	return nil
}
