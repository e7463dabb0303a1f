package pipeline

import (
	"time"

	"github.com/pion/stun/v3"
)

// Demuxer — безстейтовый самый нижний слой конвейера. Классифицирует
// входящие сырые байты по первому октету согласно RFC 7983 и распаковывает
// типизированные варианты обратно в Raw на выходном пути.
type Demuxer struct {
	BaseHandler
}

func NewDemuxer() *Demuxer {
	return &Demuxer{}
}

// Classification — один из четырёх непересекающихся исходов классификации
// RFC 7983 по первому байту пакета.
type Classification int

const (
	ClassStun Classification = iota
	ClassDtls
	ClassRtpRtcp
	ClassDrop
)

// Classify — тотальная функция на {0..255}: для каждого байта определён
// ровно один исход.
func Classify(firstByte byte) Classification {
	switch {
	case firstByte <= 3:
		return ClassStun
	case firstByte >= 20 && firstByte <= 63:
		return ClassDtls
	case firstByte >= 64 && firstByte <= 79:
		return ClassDrop
	case firstByte >= 128 && firstByte <= 191:
		return ClassRtpRtcp
	default:
		return ClassDrop
	}
}

func (d *Demuxer) HandleRead(msg PipelineMessage) error {
	if d.IsClosed() {
		return nil
	}
	if msg.Kind != MsgRaw {
		// Демультиплексор — самый нижний слой; всё, что приходит сюда, уже
		// должно быть Raw. Пропускаем неизвестные варианты без изменений.
		d.emitRead(msg)
		return nil
	}
	if len(msg.Raw) == 0 {
		return nil
	}
	switch Classify(msg.Raw[0]) {
	case ClassStun:
		m := &stun.Message{Raw: append([]byte(nil), msg.Raw...)}
		if err := m.Decode(); err != nil {
			// Malformed STUN на проводе: не валидная ошибка API, пакет
			// отбрасывается молча (см. §7 ERROR HANDLING DESIGN).
			return nil
		}
		d.emitRead(PipelineMessage{Kind: MsgStun, Transport: msg.Transport, Stun: m})
	case ClassDtls:
		d.emitRead(PipelineMessage{Kind: MsgDtlsRaw, Transport: msg.Transport, Raw: msg.Raw})
	case ClassRtpRtcp:
		// RFC 3550 §5.1: второй старший бит PT различает RTP (<200 или
		// >=200 но не SR/RR/...) от RTCP; надёжнее смотреть PT в [64..95]U{72..76}
		// как зарезервированный диапазон RTCP согласно практике pion/webrtc.
		pt := msg.Raw[1] & 0x7f
		if pt >= 64 && pt <= 95 {
			d.emitRead(PipelineMessage{Kind: MsgRtcpRaw, Transport: msg.Transport, Raw: msg.Raw})
		} else {
			d.emitRead(PipelineMessage{Kind: MsgRtpRaw, Transport: msg.Transport, Raw: msg.Raw})
		}
	case ClassDrop:
		// Зарезервированный диапазон или неизвестный байт — молча отбрасываем.
	}
	return nil
}

func (d *Demuxer) HandleWrite(msg PipelineMessage) error {
	if d.IsClosed() {
		return nil
	}
	switch msg.Kind {
	case MsgRaw:
		d.emitWrite(msg)
	case MsgRtpRaw, MsgRtcpRaw, MsgDtlsRaw:
		d.emitWrite(PipelineMessage{Kind: MsgRaw, Transport: msg.Transport, Raw: msg.Raw})
	case MsgStun:
		msg.Stun.Encode()
		d.emitWrite(PipelineMessage{Kind: MsgRaw, Transport: msg.Transport, Raw: append([]byte(nil), msg.Stun.Raw...)})
	default:
		// Вариант, не понятный демультиплексору, дошедший досюда — ошибка
		// верхнего слоя. Молча отбрасываем, не блокируя write-путь.
	}
	return nil
}

func (d *Demuxer) HandleEvent(Event) error           { return nil }
func (d *Demuxer) HandleTimeout(time.Time)           {}
func (d *Demuxer) PollTimeout() (time.Time, bool)     { return time.Time{}, false }
func (d *Demuxer) Close() error                        { d.markClosed(); return nil }
