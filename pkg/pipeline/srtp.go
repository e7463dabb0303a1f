package pipeline

import (
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/srtp/v3"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

// Srtp — шифрование/дешифрование медиапотока поверх ключевого материала,
// экспортированного DTLS (RFC 5764). srtp.Context не делает сетевого
// ввода-вывода и не требует собственной синхронизации сверх вызывающего —
// подходит для однопоточного sans-I/O конвейера "как есть".
type Srtp struct {
	BaseHandler

	encryptRTP  *srtp.Context
	decryptRTP  *srtp.Context
	encryptRTCP *srtp.Context
	decryptRTCP *srtp.Context
}

func NewSrtp() *Srtp { return &Srtp{} }

// SetKeys инициализирует четыре односторонних контекста (RTP/RTCP ×
// encrypt/decrypt) по материалу, который HandleEvent получает при
// EventDtlsSrtpKeysReady. Контексты дешифрования получают replay-окно на
// 64 пакета на SSRC: без этих опций CreateContext replay не проверяет.
func (s *Srtp) SetKeys(keying *SrtpKeyingMaterial, profile srtp.ProtectionProfile) error {
	localKey, localSalt := keying.LocalMasterKey, keying.LocalMasterSalt
	remoteKey, remoteSalt := keying.RemoteMasterKey, keying.RemoteMasterSalt

	var err error
	if s.encryptRTP, err = srtp.CreateContext(localKey, localSalt, profile); err != nil {
		return err
	}
	if s.decryptRTP, err = srtp.CreateContext(remoteKey, remoteSalt, profile, srtp.SRTPReplayProtection(64)); err != nil {
		return err
	}
	if s.encryptRTCP, err = srtp.CreateContext(localKey, localSalt, profile); err != nil {
		return err
	}
	if s.decryptRTCP, err = srtp.CreateContext(remoteKey, remoteSalt, profile, srtp.SRTCPReplayProtection(64)); err != nil {
		return err
	}
	return nil
}

func (s *Srtp) ready() bool { return s.decryptRTP != nil && s.decryptRTCP != nil }

func (s *Srtp) HandleRead(msg PipelineMessage) error {
	if s.IsClosed() {
		return nil
	}
	if !s.ready() {
		s.emitRead(msg)
		return nil
	}
	switch msg.Kind {
	case MsgRtpRaw:
		return s.handleReadRtp(msg)
	case MsgRtcpRaw:
		return s.handleReadRtcp(msg)
	default:
		s.emitRead(msg)
	}
	return nil
}

func (s *Srtp) handleReadRtp(msg PipelineMessage) error {
	var hdr rtp.Header
	n, err := hdr.Unmarshal(msg.Raw)
	if err != nil {
		return nil // повреждённый заголовок — тихо отбрасываем
	}
	plain, err := s.decryptRTP.DecryptRTP(nil, msg.Raw, &hdr)
	if err != nil {
		return nil // неверный тег аутентификации/replay — тихо отбрасываем
	}
	pkt := &rtp.Packet{Header: hdr, Payload: plain[n:]}
	s.emitRead(PipelineMessage{Kind: MsgRtpPacket, Transport: msg.Transport, RtpPacket: pkt, TrackSSRC: rtcbase.SSRC(hdr.SSRC)})
	return nil
}

func (s *Srtp) handleReadRtcp(msg PipelineMessage) error {
	plain, err := s.decryptRTCP.DecryptRTCP(nil, msg.Raw, nil)
	if err != nil {
		return nil
	}
	pkts, err := rtcp.Unmarshal(plain)
	if err != nil {
		return nil
	}
	s.emitRead(PipelineMessage{Kind: MsgRtcpPackets, Transport: msg.Transport, RtcpPackets: pkts})
	return nil
}

func (s *Srtp) HandleWrite(msg PipelineMessage) error {
	if s.IsClosed() {
		return nil
	}
	if !s.ready() {
		s.emitWrite(msg)
		return nil
	}
	switch msg.Kind {
	case MsgRtpPacket:
		return s.handleWriteRtp(msg)
	case MsgRtcpPackets:
		return s.handleWriteRtcp(msg)
	default:
		s.emitWrite(msg)
	}
	return nil
}

func (s *Srtp) handleWriteRtp(msg PipelineMessage) error {
	plain, err := msg.RtpPacket.Marshal()
	if err != nil {
		return err
	}
	encrypted, err := s.encryptRTP.EncryptRTP(nil, plain, &msg.RtpPacket.Header)
	if err != nil {
		return err
	}
	s.emitWrite(PipelineMessage{Kind: MsgRtpRaw, Transport: msg.Transport, Raw: encrypted})
	return nil
}

func (s *Srtp) handleWriteRtcp(msg PipelineMessage) error {
	plain, err := rtcp.Marshal(msg.RtcpPackets)
	if err != nil {
		return err
	}
	encrypted, err := s.encryptRTCP.EncryptRTCP(nil, plain, nil)
	if err != nil {
		return err
	}
	s.emitWrite(PipelineMessage{Kind: MsgRtcpRaw, Transport: msg.Transport, Raw: encrypted})
	return nil
}

func (s *Srtp) HandleEvent(evt Event) error {
	if evt.Kind == EventDtlsSrtpKeysReady && evt.Keying != nil {
		return s.SetKeys(evt.Keying, srtp.ProtectionProfileAes128CmHmacSha1_80)
	}
	return nil
}

func (s *Srtp) HandleTimeout(time.Time)        {}
func (s *Srtp) PollTimeout() (time.Time, bool) { return time.Time{}, false }

func (s *Srtp) Close() error {
	s.markClosed()
	return nil
}
