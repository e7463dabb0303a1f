package rtcbase

import "fmt"

// SSRC — 32-битный идентификатор синхронизирующего источника RTP потока.
type SSRC uint32

// PayloadType — 7-битный идентификатор типа полезной нагрузки RTP (RFC 3550).
type PayloadType uint8

// Mid — значение атрибута SDP a=mid, идентифицирует m-секцию/трансивер.
type Mid string

// Rid — значение атрибута SDP a=rid, идентифицирует слой симулкаста (RFC 8852).
type Rid string

// RepairedRid — Rid потока восстановления (RTX) для данного симулкаст-слоя.
type RepairedRid string

// DataChannelId — 16-битный идентификатор потока SCTP, используемый DCEP.
type DataChannelId uint16

// Direction — направление медиапотока трансивера согласно W3C.
type Direction int

const (
	DirectionSendRecv Direction = iota
	DirectionSendOnly
	DirectionRecvOnly
	DirectionInactive
	DirectionStopped
)

func (d Direction) String() string {
	switch d {
	case DirectionSendRecv:
		return "sendrecv"
	case DirectionSendOnly:
		return "sendonly"
	case DirectionRecvOnly:
		return "recvonly"
	case DirectionInactive:
		return "inactive"
	case DirectionStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int(d))
	}
}

// CanSend сообщает, допускает ли направление отправку медиаданных.
func (d Direction) CanSend() bool {
	return d == DirectionSendRecv || d == DirectionSendOnly
}

// CanReceive сообщает, допускает ли направление приём медиаданных.
func (d Direction) CanReceive() bool {
	return d == DirectionSendRecv || d == DirectionRecvOnly
}

// TransportProtocol — транспорт, по которому пришёл или уйдёт пакет.
type TransportProtocol int

const (
	TransportUDP TransportProtocol = iota
	TransportTCP
)

func (p TransportProtocol) String() string {
	if p == TransportTCP {
		return "tcp"
	}
	return "udp"
}
