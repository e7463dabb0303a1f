package interceptor

import (
	"time"

	"github.com/pion/rtcp"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

const (
	nackGeneratorLogSize    = 512
	nackGeneratorInterval   = 20 * time.Millisecond
	nackGeneratorMaxPerPkt  = 10
	nackGeneratorMaxRetries = 5
)

type missingSeq struct {
	seq     uint16
	retries int
}

type nackReceiveState struct {
	initialized bool
	highestSeq  uint16
	missing     []missingSeq // FIFO, capped at nackGeneratorLogSize
}

// nackGenerator — приёмная сторона RTCP NACK (RFC 4585): наблюдает входящие
// RTP seq на handle_read, по таймеру формирует TransportLayerNack с не более
// nackGeneratorMaxPerPkt FCI-записями на пакет, отправляет их через
// собственный writeOut — вычерпывается poll_write раньше, чем делегирование
// вглубь цепочки.
type nackGenerator struct {
	baseInterceptor

	enabled      map[rtcbase.SSRC]bool
	state        map[rtcbase.SSRC]*nackReceiveState
	nextDeadline map[rtcbase.SSRC]time.Time
}

func NewNackGeneratorFactory() Factory {
	return func(inner Interceptor) Interceptor {
		return &nackGenerator{
			baseInterceptor: baseInterceptor{inner: inner},
			enabled:         make(map[rtcbase.SSRC]bool),
			state:           make(map[rtcbase.SSRC]*nackReceiveState),
			nextDeadline:    make(map[rtcbase.SSRC]time.Time),
		}
	}
}

func (g *nackGenerator) BindRemoteStream(info rtcbase.StreamInfo) {
	if info.HasFeedback("nack", "") {
		g.enabled[info.SSRC] = true
		g.state[info.SSRC] = &nackReceiveState{}
	}
	g.inner.BindRemoteStream(info)
}

func (g *nackGenerator) UnbindRemoteStream(ssrc rtcbase.SSRC) {
	delete(g.enabled, ssrc)
	delete(g.state, ssrc)
	delete(g.nextDeadline, ssrc)
	g.inner.UnbindRemoteStream(ssrc)
}

func (g *nackGenerator) HandleWrite(pkt Packet) error {
	return g.inner.HandleWrite(pkt)
}

func (g *nackGenerator) HandleRead(pkt Packet) error {
	if pkt.Kind == PacketRtp && pkt.Rtp != nil && g.enabled[pkt.RtpSSRC] {
		g.observe(pkt.RtpSSRC, pkt.Rtp.SequenceNumber)
	}
	return g.inner.HandleRead(pkt)
}

func (g *nackGenerator) observe(ssrc rtcbase.SSRC, seq uint16) {
	st := g.state[ssrc]
	if st == nil {
		st = &nackReceiveState{}
		g.state[ssrc] = st
	}
	if !st.initialized {
		st.initialized = true
		st.highestSeq = seq
		return
	}
	diff := int32(seq) - int32(st.highestSeq)
	// Учитываем цикличность 16-битного seq: расстояния интерпретируются по
	// кратчайшей дуге.
	if diff > 0x8000 {
		diff -= 0x10000
	} else if diff < -0x8000 {
		diff += 0x10000
	}
	switch {
	case diff <= 0:
		// Пришёл старый/переупорядоченный пакет — если он был в списке
		// пропущенных, снимаем его оттуда.
		st.removeMissing(seq)
	case diff == 1:
		st.highestSeq = seq
	default:
		for s := st.highestSeq + 1; s != seq; s++ {
			st.appendMissing(s)
		}
		st.highestSeq = seq
	}
}

func (st *nackReceiveState) appendMissing(seq uint16) {
	if len(st.missing) >= nackGeneratorLogSize {
		st.missing = st.missing[1:]
	}
	st.missing = append(st.missing, missingSeq{seq: seq})
}

func (st *nackReceiveState) removeMissing(seq uint16) {
	for i, m := range st.missing {
		if m.seq == seq {
			st.missing = append(st.missing[:i], st.missing[i+1:]...)
			return
		}
	}
}

func (g *nackGenerator) HandleTimeout(now time.Time) {
	for ssrc, st := range g.state {
		if len(st.missing) == 0 {
			continue
		}
		if due, ok := g.nextDeadline[ssrc]; ok && now.Before(due) {
			continue
		}
		g.nextDeadline[ssrc] = now.Add(nackGeneratorInterval)
		g.emitNacks(ssrc, st)
	}
	g.inner.HandleTimeout(now)
}

func (g *nackGenerator) emitNacks(ssrc rtcbase.SSRC, st *nackReceiveState) {
	var batch []missingSeq
	survivors := make([]missingSeq, 0, len(st.missing))
	for _, m := range st.missing {
		m.retries++
		if m.retries > nackGeneratorMaxRetries {
			continue // превысили число попыток — дальше не напоминаем
		}
		survivors = append(survivors, m)
		batch = append(batch, m)
		if len(batch) == nackGeneratorMaxPerPkt {
			g.pushNack(ssrc, batch)
			batch = nil
		}
	}
	if len(batch) > 0 {
		g.pushNack(ssrc, batch)
	}
	st.missing = survivors
}

func (g *nackGenerator) pushNack(ssrc rtcbase.SSRC, seqs []missingSeq) {
	nums := make([]uint16, len(seqs))
	for i, m := range seqs {
		nums[i] = m.seq
	}
	nack := &rtcp.TransportLayerNack{
		MediaSSRC: uint32(ssrc),
		Nacks:     rtcp.NackPairsFromSequenceNumbers(nums),
	}
	g.writeOut.push(RtcpPacket([]rtcp.Packet{nack}))
}
