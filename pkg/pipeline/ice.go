package pipeline

import (
	"time"

	"github.com/pion/randutil"
	"github.com/pion/stun/v3"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

// Длины и алфавит ufrag/pwd — те же, что pion/ice/rand.go использует
// для generateUFrag/generatePwd (RFC 8445 §15.4 ice-char — здесь сужен
// до латиницы, как и в pion/ice).
const (
	runesAlpha = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lenUFrag   = 4
	lenPwd     = 22
)

// CandidateType — тип ICE-кандидата (RFC 8445 §5.1.1).
type CandidateType int

const (
	CandidateHost CandidateType = iota
	CandidateServerReflexive
	CandidatePeerReflexive
	CandidateRelay
)

// Candidate — один ICE-кандидат. Сокеты кандидата host-у не принадлежат
// движку: gathering инициируется событием наружу, а добавленный кандидат
// (локальный или удалённый) приходит как вызов AddLocalCandidate/
// AddRemoteCandidate.
type Candidate struct {
	Type      CandidateType
	Protocol  rtcbase.TransportProtocol
	Address   string
	Port      int
	Priority  uint32
	Component int
	Foundation string
}

type candidatePair struct {
	local, remote Candidate
	priority      uint64
	state         pairState
	txID          [stun.TransactionIDSize]byte
	txPending     bool
	nominated     bool
}

type pairState int

const (
	pairWaiting pairState = iota
	pairInProgress
	pairSucceeded
	pairFailed
)

// Ice — слой установления связности. Ведёт список кандидатов, формирует
// пары, проводит STUN connectivity checks (RFC 8445 §7) и выбирает лучшую
// пару. ICE restart выполняется сменой ufrag/pwd, что сбрасывает все пары.
type Ice struct {
	BaseHandler

	localUfrag, localPwd   string
	remoteUfrag, remotePwd string

	controlling bool

	localCandidates  []Candidate
	remoteCandidates []Candidate
	pairs            []*candidatePair
	selected         *candidatePair

	connState     rtcbase.IceConnectionState
	gatherState   rtcbase.IceGatheringState

	checkInterval time.Duration
	nextCheckAt   time.Time
}

func NewIce(controlling bool) *Ice {
	ice := &Ice{
		controlling:   controlling,
		connState:     rtcbase.IceConnectionNew,
		gatherState:   rtcbase.IceGatheringNew,
		checkInterval: 50 * time.Millisecond,
	}
	ice.localUfrag = randomIceString(lenUFrag)
	ice.localPwd = randomIceString(lenPwd)
	return ice
}

// randomIceString draws a credential the same way pion/ice's
// generateUFrag/generatePwd do — GenerateCryptoRandomString, never a
// clock-seeded generator, since ufrag/pwd double as a shared secret.
func randomIceString(n int) string {
	s, err := randutil.GenerateCryptoRandomString(n, runesAlpha)
	if err != nil {
		// crypto/rand failing here means the host has no usable entropy
		// source; there is nothing for a sans-I/O layer to recover with.
		panic(err)
	}
	return s
}

func (ice *Ice) LocalCredentials() (ufrag, pwd string) { return ice.localUfrag, ice.localPwd }

// Restart генерирует новые ufrag/pwd и сбрасывает все пары — RFC 8445 §14.
func (ice *Ice) Restart() {
	ice.localUfrag = randomIceString(lenUFrag)
	ice.localPwd = randomIceString(lenPwd)
	ice.remoteCandidates = nil
	ice.pairs = nil
	ice.selected = nil
	ice.setConnState(rtcbase.IceConnectionNew)
}

func (ice *Ice) SetRemoteCredentials(ufrag, pwd string) {
	ice.remoteUfrag, ice.remotePwd = ufrag, pwd
}

func (ice *Ice) AddLocalCandidate(c Candidate) {
	ice.localCandidates = append(ice.localCandidates, c)
	ice.formPairsWith(c, ice.remoteCandidates)
}

func (ice *Ice) AddRemoteCandidate(c Candidate) {
	ice.remoteCandidates = append(ice.remoteCandidates, c)
	ice.formPairsWith2(ice.localCandidates, c)
}

func (ice *Ice) formPairsWith(local Candidate, remotes []Candidate) {
	for _, r := range remotes {
		ice.addPair(local, r)
	}
}

func (ice *Ice) formPairsWith2(locals []Candidate, remote Candidate) {
	for _, l := range locals {
		ice.addPair(l, remote)
	}
}

func (ice *Ice) addPair(local, remote Candidate) {
	pair := &candidatePair{local: local, remote: remote, priority: pairPriority(local, remote, ice.controlling)}
	ice.pairs = append(ice.pairs, pair)
	if ice.connState == rtcbase.IceConnectionNew {
		ice.setConnState(rtcbase.IceConnectionChecking)
	}
}

// pairPriority — формула RFC 8445 §6.1.2.3 (упрощённая: приоритет
// кандидата уже несёт тип/компонент, здесь комбинируем по roles).
func pairPriority(local, remote Candidate, controlling bool) uint64 {
	g, d := uint64(local.Priority), uint64(remote.Priority)
	if !controlling {
		g, d = d, g
	}
	min, max := g, d
	if min > max {
		min, max = max, min
	}
	result := (min << 32) + 2*max
	if g > d {
		result++
	}
	return result
}

func (ice *Ice) setConnState(s rtcbase.IceConnectionState) {
	if ice.connState == s {
		return
	}
	ice.connState = s
	ice.emitEvent(Event{Kind: EventIceConnectionStateChange, IceConnectionState: s})
}

func (ice *Ice) setGatherState(s rtcbase.IceGatheringState) {
	if ice.gatherState == s {
		return
	}
	ice.gatherState = s
	ice.emitEvent(Event{Kind: EventIceGatheringStateChange, IceGatheringState: s})
}

// HandleRead обрабатывает только MsgStun: STUN Binding запросы от
// удалённого агента (отвечаем) и ответы на собственные проверки
// (продвигаем состояние пары).
func (ice *Ice) HandleRead(msg PipelineMessage) error {
	if ice.IsClosed() {
		return nil
	}
	if msg.Kind != MsgStun {
		ice.emitRead(msg)
		return nil
	}
	m := msg.Stun
	switch {
	case m.Type == stun.BindingRequest:
		ice.handleBindingRequest(msg)
	case m.Type == stun.BindingSuccess:
		ice.handleBindingSuccess(msg, m)
	}
	return nil
}

func (ice *Ice) handleBindingRequest(msg PipelineMessage) {
	resp := stun.MustBuild(stun.BindingSuccess, stun.NewTransactionIDSetter(msg.Stun.TransactionID))
	ice.emitWrite(PipelineMessage{Kind: MsgStun, Transport: msg.Transport, Stun: resp})
}

func (ice *Ice) handleBindingSuccess(msg PipelineMessage, m *stun.Message) {
	for _, pair := range ice.pairs {
		if pair.txPending && pair.txID == m.TransactionID {
			pair.txPending = false
			pair.state = pairSucceeded
			ice.maybeSelect(pair)
			return
		}
	}
}

func (ice *Ice) maybeSelect(pair *candidatePair) {
	if ice.selected == nil || pair.priority > ice.selected.priority {
		ice.selected = pair
		ice.emitEvent(Event{Kind: EventSelectedCandidatePairChange})
		ice.setConnState(rtcbase.IceConnectionConnected)
	}
}

func (ice *Ice) HandleWrite(msg PipelineMessage) error {
	if ice.IsClosed() {
		return nil
	}
	ice.emitWrite(msg)
	return nil
}

func (ice *Ice) HandleEvent(Event) error { return nil }

// HandleTimeout продвигает connectivity checks: раз в checkInterval
// отправляет Binding Request по следующей ожидающей паре.
func (ice *Ice) HandleTimeout(now time.Time) {
	if ice.IsClosed() {
		return
	}
	if !ice.nextCheckAt.IsZero() && now.Before(ice.nextCheckAt) {
		return
	}
	ice.nextCheckAt = now.Add(ice.checkInterval)
	for _, pair := range ice.pairs {
		if pair.state != pairWaiting {
			continue
		}
		pair.state = pairInProgress
		req := stun.MustBuild(stun.TransactionID, stun.BindingRequest)
		pair.txID = req.TransactionID
		pair.txPending = true
		ice.emitWrite(PipelineMessage{Kind: MsgStun, Stun: req})
		break
	}
}

func (ice *Ice) PollTimeout() (time.Time, bool) {
	if ice.IsClosed() {
		return time.Time{}, false
	}
	return ice.nextCheckAt, !ice.nextCheckAt.IsZero()
}

func (ice *Ice) Close() error {
	ice.markClosed()
	ice.setConnState(rtcbase.IceConnectionClosed)
	return nil
}
