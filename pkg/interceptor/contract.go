package interceptor

import (
	"time"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

// Interceptor — контракт одного звена цепочки обработки RTP/RTCP. Форма
// повторяет pipeline.Handler (синхронность, poll-после-handle), но оперирует
// Packet, а не PipelineMessage, и дополнительно несёт привязку к потокам:
// именно через Bind*Stream интерсептор узнаёт, какие SSRC/возможности
// (rtcp-fb, extmap) ему доступны, и включает или выключает себя для этого
// потока.
//
// Цепочка строится как вложение: каждый интерсептор хранит inner —
// следующее звено в сторону провода (terminate в Noop). HandleRead/HandleWrite
// сначала наблюдают или модифицируют пакет, затем делегируют его inner;
// PollRead/PollWrite сначала вычерпывают собственный буфер произведённых
// пакетов и только потом — inner.
type Interceptor interface {
	HandleRead(pkt Packet) error
	PollRead() (Packet, bool)

	HandleWrite(pkt Packet) error
	PollWrite() (Packet, bool)

	HandleEvent(evt Event) error
	PollEvent() (Event, bool)

	HandleTimeout(now time.Time)
	PollTimeout() (time.Time, bool)

	Close() error

	BindLocalStream(info rtcbase.StreamInfo)
	UnbindLocalStream(ssrc rtcbase.SSRC)
	BindRemoteStream(info rtcbase.StreamInfo)
	UnbindRemoteStream(ssrc rtcbase.SSRC)
}

// baseInterceptor несёт общую bookkeeping-логику: собственные буферы вывода
// и ссылку на inner. Конкретные интерсепторы встраивают baseInterceptor и
// переопределяют только те методы, в которых у них есть собственная логика;
// остальные наследуются как есть и просто делегируют вглубь цепочки.
type baseInterceptor struct {
	inner Interceptor

	readOut  queue[Packet]
	writeOut queue[Packet]
	eventOut queue[Event]
}

func (b *baseInterceptor) PollRead() (Packet, bool) {
	if pkt, ok := b.readOut.pop(); ok {
		return pkt, true
	}
	return b.inner.PollRead()
}

func (b *baseInterceptor) PollWrite() (Packet, bool) {
	if pkt, ok := b.writeOut.pop(); ok {
		return pkt, true
	}
	return b.inner.PollWrite()
}

func (b *baseInterceptor) PollEvent() (Event, bool) {
	if evt, ok := b.eventOut.pop(); ok {
		return evt, true
	}
	return b.inner.PollEvent()
}

func (b *baseInterceptor) HandleEvent(evt Event) error {
	return b.inner.HandleEvent(evt)
}

func (b *baseInterceptor) HandleTimeout(now time.Time) {
	b.inner.HandleTimeout(now)
}

func (b *baseInterceptor) PollTimeout() (time.Time, bool) {
	return b.inner.PollTimeout()
}

func (b *baseInterceptor) Close() error {
	return b.inner.Close()
}

func (b *baseInterceptor) BindLocalStream(info rtcbase.StreamInfo) {
	b.inner.BindLocalStream(info)
}

func (b *baseInterceptor) UnbindLocalStream(ssrc rtcbase.SSRC) {
	b.inner.UnbindLocalStream(ssrc)
}

func (b *baseInterceptor) BindRemoteStream(info rtcbase.StreamInfo) {
	b.inner.BindRemoteStream(info)
}

func (b *baseInterceptor) UnbindRemoteStream(ssrc rtcbase.SSRC) {
	b.inner.UnbindRemoteStream(ssrc)
}

// Noop — терминатор цепочки. Не делает ничего, кроме прозрачной буферизации:
// то, что пришло в HandleRead/HandleWrite, выходит неизменным из
// PollRead/PollWrite. Свойство 8 спецификации проверяется ровно на этом
// типе.
type Noop struct {
	readOut  queue[Packet]
	writeOut queue[Packet]
	eventOut queue[Event]
}

func NewNoop() *Noop { return &Noop{} }

func (n *Noop) HandleRead(pkt Packet) error {
	n.readOut.push(pkt)
	return nil
}

func (n *Noop) PollRead() (Packet, bool) { return n.readOut.pop() }

func (n *Noop) HandleWrite(pkt Packet) error {
	n.writeOut.push(pkt)
	return nil
}

func (n *Noop) PollWrite() (Packet, bool) { return n.writeOut.pop() }

func (n *Noop) HandleEvent(evt Event) error {
	n.eventOut.push(evt)
	return nil
}

func (n *Noop) PollEvent() (Event, bool) { return n.eventOut.pop() }

func (n *Noop) HandleTimeout(time.Time)         {}
func (n *Noop) PollTimeout() (time.Time, bool) { return time.Time{}, false }
func (n *Noop) Close() error                    { return nil }

func (n *Noop) BindLocalStream(rtcbase.StreamInfo)    {}
func (n *Noop) UnbindLocalStream(rtcbase.SSRC)        {}
func (n *Noop) BindRemoteStream(rtcbase.StreamInfo)   {}
func (n *Noop) UnbindRemoteStream(rtcbase.SSRC)       {}
