package pipeline

import (
	"encoding/binary"
	"time"

	"github.com/pion/datachannel"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

// dcepMessageType — типы управляющих сообщений DCEP (RFC 8832 §5.1). Сами
// структуры сообщений в github.com/pion/datachannel не экспортированы
// (channelOpen/channelAck и их Marshal/Unmarshal видны только внутри
// пакета, см. DESIGN.md), поэтому кодек здесь написан от руки по RFC;
// используются только экспортированные datachannel.ChannelType* —
// они как раз занимают байт ChannelType заголовка DATA_CHANNEL_OPEN.
const (
	dcepOpen byte = 0x03
	dcepAck  byte = 0x02

	dcepOpenHeaderLength = 12
)

type dataChannelState struct {
	label string
	state rtcbase.DataChannelState
}

// DataChannel — слой RFC 8831/8832 поверх SCTP: разбирает и строит
// DATA_CHANNEL_OPEN/_ACK, отслеживает состояние каждого канала по SID.
type DataChannel struct {
	BaseHandler

	channels map[rtcbase.DataChannelId]*dataChannelState
}

func NewDataChannel() *DataChannel {
	return &DataChannel{channels: make(map[rtcbase.DataChannelId]*dataChannelState)}
}

// OpenChannel инициирует канал локально: отправляет DATA_CHANNEL_OPEN и
// заводит состояние Connecting в ожидании ACK. channelType/priority
// заполняют те же поля заголовка, что описаны в RFC 8832 §5.1 —
// channelType использует константы datachannel.ChannelType*.
func (dc *DataChannel) OpenChannel(id rtcbase.DataChannelId, label string, channelType datachannel.ChannelType, priority uint16) {
	dc.channels[id] = &dataChannelState{label: label, state: rtcbase.DataChannelConnecting}
	dc.emitWrite(PipelineMessage{
		Kind:               MsgDataChannelCtrl,
		DataChannelID:      id,
		DataChannelOp:      DCEPOpen,
		DataChannelPayload: encodeDcepOpen(label, channelType, priority),
	})
}

func encodeDcepOpen(label string, channelType datachannel.ChannelType, priority uint16) []byte {
	buf := make([]byte, dcepOpenHeaderLength+len(label))
	buf[0] = dcepOpen
	buf[1] = byte(channelType)
	binary.BigEndian.PutUint16(buf[2:], priority)
	// ReliabilityParameter (buf[4:8]) оставлен нулевым — канал полностью
	// надёжный и упорядоченный, если channelType не говорит иначе.
	binary.BigEndian.PutUint16(buf[8:], uint16(len(label)))
	copy(buf[dcepOpenHeaderLength:], label)
	return buf
}

func decodeDcepOpenLabel(payload []byte) string {
	if len(payload) < dcepOpenHeaderLength {
		return ""
	}
	labelLen := binary.BigEndian.Uint16(payload[8:10])
	end := dcepOpenHeaderLength + int(labelLen)
	if end > len(payload) {
		end = len(payload)
	}
	return string(payload[dcepOpenHeaderLength:end])
}

func (dc *DataChannel) HandleRead(msg PipelineMessage) error {
	if dc.IsClosed() {
		return nil
	}
	switch msg.Kind {
	case MsgDataChannelCtrl:
		dc.handleCtrl(msg)
	case MsgDataChannelData:
		dc.emitRead(msg)
	default:
		dc.emitRead(msg)
	}
	return nil
}

func (dc *DataChannel) handleCtrl(msg PipelineMessage) {
	if len(msg.DataChannelPayload) == 0 {
		return
	}
	switch msg.DataChannelPayload[0] {
	case dcepOpen:
		label := decodeDcepOpenLabel(msg.DataChannelPayload)
		dc.channels[msg.DataChannelID] = &dataChannelState{label: label, state: rtcbase.DataChannelOpen}
		dc.emitWrite(PipelineMessage{
			Kind:          MsgDataChannelCtrl,
			DataChannelID: msg.DataChannelID,
			DataChannelOp: DCEPAck,
			DataChannelPayload: []byte{dcepAck},
		})
		dc.emitEvent(Event{Kind: EventDataChannelOpen, DataChannelID: msg.DataChannelID, DataChannelLabel: label})
	case dcepAck:
		if st, ok := dc.channels[msg.DataChannelID]; ok {
			st.state = rtcbase.DataChannelOpen
			dc.emitEvent(Event{Kind: EventDataChannelOpen, DataChannelID: msg.DataChannelID, DataChannelLabel: st.label})
		}
	}
}

func (dc *DataChannel) HandleWrite(msg PipelineMessage) error {
	if dc.IsClosed() {
		return nil
	}
	dc.emitWrite(msg)
	return nil
}

func (dc *DataChannel) CloseChannel(id rtcbase.DataChannelId) {
	if st, ok := dc.channels[id]; ok {
		st.state = rtcbase.DataChannelClosed
		dc.emitEvent(Event{Kind: EventDataChannelClose, DataChannelID: id})
	}
	delete(dc.channels, id)
}

func (dc *DataChannel) HandleEvent(Event) error        { return nil }
func (dc *DataChannel) HandleTimeout(time.Time)        {}
func (dc *DataChannel) PollTimeout() (time.Time, bool) { return time.Time{}, false }

// Close — как и у остальных слоёв, markClosed() вызывается первым: Close
// идемпотентен и не производит новых выходов (см. контракт Handler), так
// что попытка эмитить EventDataChannelClose здесь была бы no-op.
func (dc *DataChannel) Close() error {
	dc.markClosed()
	dc.channels = nil
	return nil
}
