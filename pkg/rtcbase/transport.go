package rtcbase

import (
	"fmt"
	"net"
)

// Ecn — explicit congestion notification марка, прочитанная хостом из
// сокета; движок её не интерпретирует, только переносит.
type Ecn uint8

const (
	EcnNotECT Ecn = iota
	EcnECT1
	EcnECT0
	EcnCE
)

// TransportContext описывает 5-tuple, по которому пришло или уйдёт
// сообщение. Неизменяем после создания — каждый TaggedMessage несёт свою
// собственную копию.
type TransportContext struct {
	LocalAddr  net.Addr
	PeerAddr   net.Addr
	Protocol   TransportProtocol
	Ecn        Ecn
	HasEcn     bool
}

// String возвращает краткое представление для логов.
func (t TransportContext) String() string {
	return fmt.Sprintf("%s %s<-%s", t.Protocol, addrString(t.LocalAddr), addrString(t.PeerAddr))
}

func addrString(a net.Addr) string {
	if a == nil {
		return "?"
	}
	return a.String()
}
