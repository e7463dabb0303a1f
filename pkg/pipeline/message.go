package pipeline

import (
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/stun/v3"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

// MessageKind различает варианты внутреннего сообщения конвейера. Ни один
// вариант не должен пересекать слой, который его не понимает — каждый
// Handler либо трансформирует Raw в разобранный вариант (или наоборот),
// либо пропускает сообщение как есть.
type MessageKind int

const (
	MsgRaw MessageKind = iota
	MsgStun
	MsgDtlsRaw          // application data DTLS-записи, ещё не классифицированные
	MsgSctpRaw          // байты SCTP association payload поверх DTLS
	MsgDataChannelCtrl  // разобранное сообщение DCEP (OPEN/ACK)
	MsgDataChannelData  // полезная нагрузка канала данных (строка или бинарь)
	MsgRtpRaw           // зашифрованный/сырой RTP до SRTP
	MsgRtpPacket        // разобранный RTP-пакет после SRTP
	MsgRtcpRaw          // зашифрованный/сырой RTCP до SRTP
	MsgRtcpPackets      // разобранный список RTCP-пакетов
	MsgTrackSample      // RTP-пакет, доставленный приложению по конкретному треку
)

func (k MessageKind) String() string {
	names := [...]string{
		"Raw", "Stun", "DtlsRaw", "SctpRaw", "DataChannelCtrl",
		"DataChannelData", "RtpRaw", "RtpPacket", "RtcpRaw", "RtcpPackets",
		"TrackSample",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// DataChannelControlOp — операция DCEP, переносимая в MsgDataChannelCtrl.
type DataChannelControlOp int

const (
	DCEPOpen DataChannelControlOp = iota
	DCEPAck
)

// PipelineMessage — размеченное объединение, пересекающее границы Handler'ов
// внутри одного вызова handle_read/handle_write. Kind определяет, какие поля
// валидны; остальные поля нулевые.
type PipelineMessage struct {
	Kind      MessageKind
	Transport rtcbase.TransportContext

	Raw []byte

	Stun *stun.Message

	RtpPacket   *rtp.Packet
	RtcpPackets []rtcp.Packet

	DataChannelID      rtcbase.DataChannelId
	DataChannelOp      DataChannelControlOp
	DataChannelPayload []byte
	DataChannelIsText  bool

	TrackSSRC rtcbase.SSRC
	Mid       rtcbase.Mid
}

func RawMessage(transport rtcbase.TransportContext, raw []byte) PipelineMessage {
	return PipelineMessage{Kind: MsgRaw, Transport: transport, Raw: raw}
}
