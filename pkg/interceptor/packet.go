package interceptor

import (
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

// PacketKind различает два варианта тегированного объединения Packet.
type PacketKind int

const (
	PacketRtp PacketKind = iota
	PacketRtcp
)

// Packet — единица работы интерсептора: либо один RTP-пакет (связанный с
// конкретным SSRC), либо пачка RTCP-пакетов одного компаунда.
type Packet struct {
	Kind PacketKind

	// Timestamp — момент прихода пакета, если его проставил тот, кто
	// передаёт пакет в цепочку. Интерсепторы не читают собственные часы —
	// всё временное (RFC 3550 jitter, LSR/DLSR) считается относительно этого
	// значения. pipeline.InterceptorHandler Timestamp не заполняет: у
	// пакетов из конвейера он нулевой, и receiver report для них не
	// обновляет jitter и не заполняет DLSR.
	Timestamp time.Time

	Rtp     *rtp.Packet
	RtpSSRC rtcbase.SSRC

	Rtcp []rtcp.Packet
}

func RtpPacket(ssrc rtcbase.SSRC, p *rtp.Packet) Packet {
	return Packet{Kind: PacketRtp, Rtp: p, RtpSSRC: ssrc}
}

func RtcpPacket(pkts []rtcp.Packet) Packet {
	return Packet{Kind: PacketRtcp, Rtcp: pkts}
}
